package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppiankov/xsync/internal/reconcile"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "xsync.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st, path
}

func TestOpenAndMigrate(t *testing.T) {
	st, path := openTestStore(t)

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("db file not created: %v", err)
	}

	var version string
	if err := st.db.QueryRow("SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&version); err != nil {
		t.Fatalf("read schema version: %v", err)
	}
	if version != "1" {
		t.Fatalf("unexpected schema version: %s", version)
	}
}

func TestOpen_Reopen(t *testing.T) {
	st, path := openTestStore(t)
	ctx := context.Background()

	if _, _, err := st.Apply(ctx, reconcile.UpdateMap{"a": {Action: reconcile.ActionAdd, Content: "x"}}, time.UnixMilli(10)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	_ = st.Close()

	again, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = again.Close() }()

	existing, err := again.Existing(ctx)
	if err != nil {
		t.Fatalf("existing: %v", err)
	}
	if existing["a"] != 10 {
		t.Errorf("existing = %v", existing)
	}
}

func TestOpen_RejectsNewerSchema(t *testing.T) {
	st, path := openTestStore(t)
	if _, err := st.db.Exec("UPDATE metadata SET value = '99' WHERE key = 'schema_version'"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = st.Close()

	if _, err := Open(path); err == nil {
		t.Fatal("expected error for newer schema")
	}
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestApply(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()

	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	added, deleted, err := st.Apply(ctx, reconcile.UpdateMap{
		"x-post-1": {Action: reconcile.ActionAdd, Content: "one"},
		"x-post-2": {Action: reconcile.ActionAdd, Content: "two"},
	}, first)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if added != 2 || deleted != 0 {
		t.Fatalf("added=%d deleted=%d", added, deleted)
	}

	second := first.Add(time.Hour)
	added, deleted, err = st.Apply(ctx, reconcile.UpdateMap{
		"x-post-1": {Action: reconcile.ActionDelete},
		"x-post-3": {Action: reconcile.ActionAdd, Content: "three"},
		"x-post-9": {Action: reconcile.ActionDelete},
	}, second)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if added != 1 || deleted != 1 {
		t.Fatalf("added=%d deleted=%d, unknown ids must not count", added, deleted)
	}

	existing, err := st.Existing(ctx)
	if err != nil {
		t.Fatalf("existing: %v", err)
	}
	want := map[string]int64{
		"x-post-2": first.UnixMilli(),
		"x-post-3": second.UnixMilli(),
	}
	if len(existing) != len(want) {
		t.Fatalf("existing = %v", existing)
	}
	for id, ts := range want {
		if existing[id] != ts {
			t.Errorf("existing[%s] = %d, want %d", id, existing[id], ts)
		}
	}
}

func TestApply_UnknownActionRollsBack(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()

	_, _, err := st.Apply(ctx, reconcile.UpdateMap{
		"a": {Action: reconcile.ActionAdd, Content: "a"},
		"b": {Action: "rename"},
	}, time.Now())
	if err == nil {
		t.Fatal("expected error for unknown action")
	}

	existing, err := st.Existing(ctx)
	if err != nil {
		t.Fatalf("existing: %v", err)
	}
	if len(existing) != 0 {
		t.Errorf("transaction should roll back, got %v", existing)
	}
}

func TestContent(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()

	at := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	if _, _, err := st.Apply(ctx, reconcile.UpdateMap{"x-post-1": {Action: reconcile.ActionAdd, Content: "body"}}, at); err != nil {
		t.Fatalf("apply: %v", err)
	}

	c, err := st.Content(ctx, "x-post-1")
	if err != nil {
		t.Fatalf("content: %v", err)
	}
	if c.Body != "body" || !c.WrittenAt.Equal(at) {
		t.Errorf("content = %+v", c)
	}

	_, err = st.Content(ctx, "x-post-404")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	list, err := st.Contents(ctx)
	if err != nil {
		t.Fatalf("contents: %v", err)
	}
	if len(list) != 1 || list[0].ID != "x-post-1" {
		t.Errorf("contents = %+v", list)
	}
}

func TestRuns(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()

	last, err := st.LastUsed(ctx)
	if err != nil {
		t.Fatalf("last used: %v", err)
	}
	if last != 0 {
		t.Fatalf("last used on empty store = %d, want 0", last)
	}

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		started := base.Add(time.Duration(i) * time.Hour)
		if err := st.RecordRun(ctx, Run{
			RunID:      "run-" + string(rune('a'+i)),
			StartedAt:  started,
			FinishedAt: started.Add(time.Minute),
			Added:      i,
		}); err != nil {
			t.Fatalf("record run: %v", err)
		}
	}

	last, err = st.LastUsed(ctx)
	if err != nil {
		t.Fatalf("last used: %v", err)
	}
	if want := base.Add(2 * time.Hour).UnixMilli(); last != want {
		t.Errorf("last used = %d, want %d", last, want)
	}

	runs, err := st.Runs(ctx, 2)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != "run-c" || runs[1].RunID != "run-b" {
		t.Errorf("runs = %+v", runs)
	}
	if runs[0].Added != 2 || !runs[0].FinishedAt.Equal(base.Add(2*time.Hour+time.Minute)) {
		t.Errorf("latest run = %+v", runs[0])
	}

	all, err := st.Runs(ctx, 0)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("all runs = %d, want 3", len(all))
	}
}

func TestRecordRun_RequiresStart(t *testing.T) {
	st, _ := openTestStore(t)
	if err := st.RecordRun(context.Background(), Run{}); err == nil {
		t.Fatal("expected error for zero started_at")
	}
}

func TestNilStore(t *testing.T) {
	var st *Store
	if err := st.Close(); err != nil {
		t.Errorf("close nil store: %v", err)
	}
	if _, err := st.Existing(context.Background()); err == nil {
		t.Error("expected error from nil store")
	}
}
