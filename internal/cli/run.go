package cli

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ppiankov/xsync/internal/reconcile"
	"github.com/ppiankov/xsync/internal/store"
)

var runDryRun bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch posts and apply the update set to the local store",
	RunE:  runAction,
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "print the update set without applying it")
	rootCmd.AddCommand(runCmd)
}

func runAction(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	started := time.Now()

	cfg, logger, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	ctx := cmd.Context()

	lastUsed, err := db.LastUsed(ctx)
	if err != nil {
		return err
	}
	existing, err := db.Existing(ctx)
	if err != nil {
		return err
	}

	c, err := openConnector(ctx, cfg, logger)
	if err != nil {
		return err
	}
	updates := c.Update(ctx, lastUsed, existing)

	if runDryRun {
		printUpdates(out, updates)
		return nil
	}

	added, deleted, err := db.Apply(ctx, updates, writeTime(started))
	if err != nil {
		return fmt.Errorf("apply updates: %w", err)
	}

	if err := db.RecordRun(ctx, store.Run{
		RunID:      uuid.NewString(),
		StartedAt:  started,
		FinishedAt: time.Now(),
		Added:      added,
		Deleted:    deleted,
	}); err != nil {
		return err
	}

	fmt.Fprintf(out, "Added %d, deleted %d (%d stored).\n", added, deleted, len(existing)+added-deleted)
	return nil
}

// writeTime is strictly after started at millisecond precision, so the next
// run sees this run's writes as eligible for deletion.
func writeTime(started time.Time) time.Time {
	now := time.Now()
	if now.UnixMilli() <= started.UnixMilli() {
		return time.UnixMilli(started.UnixMilli() + 1)
	}
	return now
}

func printUpdates(w io.Writer, updates reconcile.UpdateMap) {
	if len(updates) == 0 {
		fmt.Fprintln(w, "No changes.")
		return
	}

	ids := make([]string, 0, len(updates))
	for id := range updates {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		fmt.Fprintf(w, "%-6s %s\n", updates[id].Action, id)
	}
}
