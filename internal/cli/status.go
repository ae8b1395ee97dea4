package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ppiankov/xsync/internal/reconcile"
	"github.com/ppiankov/xsync/internal/store"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent runs",
	RunE:  statusAction,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored content",
	RunE:  listAction,
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one stored content",
	Args:  cobra.ExactArgs(1),
	RunE:  showAction,
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 10, "number of runs to show")
	rootCmd.AddCommand(statusCmd, listCmd, showCmd)
}

// openStore opens the database named by the config without building a connector.
func openStore(cmd *cobra.Command) (*store.Store, error) {
	cfg, _, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return db, nil
}

func statusAction(cmd *cobra.Command, _ []string) error {
	db, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	runs, err := db.Runs(cmd.Context(), statusLimit)
	if err != nil {
		return err
	}
	printRuns(cmd.OutOrStdout(), runs, time.Now())
	return nil
}

func printRuns(w io.Writer, runs []store.Run, now time.Time) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs yet. Run 'xsync run' first.")
		return
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%-16s +%-4d -%-4d %s (took %s)\n",
			humanize.RelTime(r.StartedAt, now, "ago", "from now"),
			r.Added,
			r.Deleted,
			r.StartedAt.UTC().Format(time.DateTime),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond),
		)
	}
}

func listAction(cmd *cobra.Command, _ []string) error {
	db, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	contents, err := db.Contents(cmd.Context())
	if err != nil {
		return err
	}
	printContents(cmd.OutOrStdout(), contents, time.Now())
	return nil
}

func printContents(w io.Writer, contents []store.Content, now time.Time) {
	for _, c := range contents {
		fmt.Fprintf(w, "%-32s %8s  %-16s %s\n",
			c.ID,
			humanize.Bytes(uint64(len(c.Body))),
			humanize.RelTime(c.WrittenAt, now, "ago", "from now"),
			postLink(c.ID),
		)
	}
	fmt.Fprintf(w, "%s stored\n", humanize.Comma(int64(len(contents))))
}

// postLink points at the post behind a content id, or is empty for foreign ids.
func postLink(contentID string) string {
	id, ok := reconcile.PostID(contentID)
	if !ok {
		return ""
	}
	return "https://x.com/i/status/" + id
}

func showAction(cmd *cobra.Command, args []string) error {
	db, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	c, err := db.Content(cmd.Context(), args[0])
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("no stored content with id %q", args[0])
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), c.Body)
	return nil
}
