package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/xsync/internal/config"
	"github.com/ppiankov/xsync/internal/filter"
	"github.com/ppiankov/xsync/internal/privacy"
	"github.com/ppiankov/xsync/internal/store"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check config, credentials and database",
	RunE:  doctorAction,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func doctorAction(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	ok := true

	if info, err := os.Stat(configDir); err != nil || !info.IsDir() {
		printCheck(out, false, "config directory %s", configDir)
		ok = false
	} else {
		printCheck(out, true, "config directory %s", configDir)
	}

	cfg, err := config.Load(configDir)
	if err != nil {
		printCheck(out, false, "config.yaml: %v", err)
		return errors.New("some checks failed")
	}
	printCheck(out, true, "config.yaml (%d users, %d hashtags)", len(cfg.Users), len(cfg.Hashtags))

	if cfg.API.Token == "" {
		printCheck(out, false, "bearer token: %s is not set", cfg.API.TokenEnv)
		ok = false
	} else {
		printCheck(out, true, "bearer token from %s", cfg.API.TokenEnv)
	}

	opts := cfg.Options()
	if len(opts.Users) == 0 && len(opts.Hashtags) == 0 {
		printInfo(out, "no users or hashtags configured, updates will be empty")
	}
	if r, err := privacy.NewRedactor(opts.RedactPatterns); err != nil {
		printCheck(out, false, "privacy.redact: %v", err)
		ok = false
	} else if r.Enabled() {
		printInfo(out, "redaction on (%d patterns)", len(opts.RedactPatterns))
	}
	if len(opts.Hashtags) > 0 {
		printInfo(out, "hashtag search only reaches back 7 days")
	}
	if !opts.StartDate.IsZero() || opts.DropAfter > 0 {
		c := filter.NewCriteria(opts.StartDate, opts.DropAfter, opts.DirtyWords)
		printInfo(out, "fetch window starts %s", filter.WindowStart(c, time.Now()).Format("2006-01-02 15:04 MST"))
	}
	if opts.NoDelete {
		printInfo(out, "deletions disabled (no_delete: true)")
	}

	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		printCheck(out, false, "database: %v", err)
		ok = false
	} else {
		defer func() { _ = db.Close() }()
		existing, err := db.Existing(cmd.Context())
		if err != nil {
			printCheck(out, false, "database %s: %v", cfg.Storage.Path, err)
			ok = false
		} else {
			printCheck(out, true, "database %s (%d stored)", cfg.Storage.Path, len(existing))
		}
	}

	if !ok {
		return errors.New("some checks failed")
	}
	fmt.Fprintln(out, "\nAll checks passed.")
	return nil
}

func printCheck(w io.Writer, pass bool, format string, args ...any) {
	mark := "FAIL"
	if pass {
		mark = " OK "
	}
	fmt.Fprintf(w, "[%s] %s\n", mark, fmt.Sprintf(format, args...))
}

func printInfo(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "[INFO] %s\n", fmt.Sprintf(format, args...))
}
