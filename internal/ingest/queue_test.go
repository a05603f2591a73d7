package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"tweet_collector/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestQueue(t *testing.T) (*Queue, *FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	store := NewFileStore(dir, testLogger())
	queue := NewQueue(store, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go queue.Run(ctx)

	return queue, store, dir
}

func record(id, text string) model.WireTweet {
	return model.WireTweet{
		TweetID:   id,
		Content:   text,
		CreatedAt: "2024-10-17T10:00:00Z",
	}
}

func TestSubmitStoresNovelRecords(t *testing.T) {
	ctx := context.Background()
	queue, store, dir := newTestQueue(t)

	res, err := queue.Submit(ctx, []model.WireTweet{
		record("1", "first tweet"),
		record("2", "second tweet"),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if diff := cmp.Diff(2, res.Count); diff != "" {
		t.Errorf("count mismatch (-want +got):\n%s", diff)
	}
	if res.Filename == "" {
		t.Fatal("expected shard filename")
	}

	// The shard holds exactly the accepted records.
	data, err := os.ReadFile(filepath.Join(dir, res.Filename))
	if err != nil {
		t.Fatalf("read shard: %v", err)
	}
	var stored []model.WireTweet
	if err := json.Unmarshal(data, &stored); err != nil {
		t.Fatalf("parse shard: %v", err)
	}
	if diff := cmp.Diff(2, len(stored)); diff != "" {
		t.Errorf("shard size mismatch (-want +got):\n%s", diff)
	}

	// The dedup index now knows both hashes.
	index, err := store.LoadIndex()
	if err != nil {
		t.Fatalf("load index: %v", err)
	}
	if diff := cmp.Diff(2, len(index)); diff != "" {
		t.Errorf("index size mismatch (-want +got):\n%s", diff)
	}
}

func TestServerDedupConvergence(t *testing.T) {
	ctx := context.Background()
	queue, store, _ := newTestQueue(t)

	rec := record("1", "exactly once")

	first, err := queue.Submit(ctx, []model.WireTweet{rec})
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if diff := cmp.Diff(1, first.Count); diff != "" {
		t.Errorf("first count mismatch (-want +got):\n%s", diff)
	}

	// Same identity, text, and timestamp in a second job: a normal
	// zero-count success, and no second occurrence anywhere.
	second, err := queue.Submit(ctx, []model.WireTweet{rec})
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if diff := cmp.Diff(0, second.Count); diff != "" {
		t.Errorf("second count mismatch (-want +got):\n%s", diff)
	}
	if second.Filename != "" {
		t.Errorf("zero-count job should not write a shard, got %q", second.Filename)
	}

	merged, err := store.ReadMerged()
	if err != nil {
		t.Fatalf("read merged: %v", err)
	}
	if diff := cmp.Diff(1, len(merged)); diff != "" {
		t.Errorf("occurrence count mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmitTrimsOversizedBatch(t *testing.T) {
	ctx := context.Background()
	queue, _, _ := newTestQueue(t)

	var records []model.WireTweet
	for i := 0; i < 150; i++ {
		records = append(records, record(fmt.Sprintf("%d", i), fmt.Sprintf("tweet number %d", i)))
	}

	res, err := queue.Submit(ctx, records)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	// Only the first 100 are considered; all of them are novel.
	if diff := cmp.Diff(100, res.Count); diff != "" {
		t.Errorf("count mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmitDropsInvalidRecords(t *testing.T) {
	ctx := context.Background()
	queue, _, _ := newTestQueue(t)

	res, err := queue.Submit(ctx, []model.WireTweet{
		record("1", "a fine tweet"),
		{Content: "identity missing", CreatedAt: "2024-10-17T10:00:00Z"},
		record("2", "this one is sponsored content"),
		record("3", ""), // no text, never hashes
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if diff := cmp.Diff(1, res.Count); diff != "" {
		t.Errorf("count mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveIndexRotatesBackup(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, testLogger())

	if err := store.SaveIndex(map[string]struct{}{"aaa": {}}); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := store.SaveIndex(map[string]struct{}{"aaa": {}, "bbb": {}}); err != nil {
		t.Fatalf("second save: %v", err)
	}

	backup, err := os.ReadFile(filepath.Join(dir, IndexFile+".backup"))
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	var hashes []string
	if err := json.Unmarshal(backup, &hashes); err != nil {
		t.Fatalf("parse backup: %v", err)
	}
	// The backup holds the previous generation.
	if diff := cmp.Diff([]string{"aaa"}, hashes); diff != "" {
		t.Errorf("backup content mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadIndexMissingFile(t *testing.T) {
	store := NewFileStore(t.TempDir(), testLogger())
	index, err := store.LoadIndex()
	if err != nil {
		t.Fatalf("load index: %v", err)
	}
	if diff := cmp.Diff(0, len(index)); diff != "" {
		t.Errorf("expected empty index (-want +got):\n%s", diff)
	}
}
