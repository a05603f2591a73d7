package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"tweet_collector/internal/model"
)

func seedShards(t *testing.T) *FileStore {
	t.Helper()
	store := NewFileStore(t.TempDir(), testLogger())

	first := []model.WireTweet{
		{TweetID: "1", AuthorHandle: "@a", Content: "oldest", CreatedAt: "2024-10-15T10:00:00Z"},
		{TweetID: "2", AuthorHandle: "@a", Content: "middle", CreatedAt: "2024-10-16T10:00:00Z"},
	}
	second := []model.WireTweet{
		{TweetID: "3", AuthorHandle: "@b", Content: "newest", CreatedAt: "2024-10-17T10:00:00Z",
			MediaURL: "https://pbs.example.com/pic.jpg"},
		// Same identity in two shards: tolerated, collapses to one entry.
		{TweetID: "2", AuthorHandle: "@a", Content: "middle", CreatedAt: "2024-10-16T10:00:00Z"},
	}

	if _, err := store.WriteShard(first); err != nil {
		t.Fatalf("write first shard: %v", err)
	}
	if _, err := store.WriteShard(second); err != nil {
		t.Fatalf("write second shard: %v", err)
	}
	return store
}

func TestReadMergedFoldsAndSorts(t *testing.T) {
	store := seedShards(t)

	merged, err := store.ReadMerged()
	if err != nil {
		t.Fatalf("read merged: %v", err)
	}

	var ids []string
	for _, r := range merged {
		ids = append(ids, r.TweetID)
	}
	// Timestamp descending, duplicate identity collapsed.
	if diff := cmp.Diff([]string{"3", "2", "1"}, ids); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestReadPagePagination(t *testing.T) {
	store := seedShards(t)

	tests := []struct {
		name      string
		page      int
		limit     int
		wantIDs   []string
		wantPage  int
		wantLimit int
	}{
		{name: "first page of two", page: 1, limit: 2, wantIDs: []string{"3", "2"}, wantPage: 1, wantLimit: 2},
		{name: "second page of two", page: 2, limit: 2, wantIDs: []string{"1"}, wantPage: 2, wantLimit: 2},
		{name: "page beyond end", page: 5, limit: 2, wantIDs: nil, wantPage: 5, wantLimit: 2},
		{name: "defaults", page: 0, limit: 0, wantIDs: []string{"3", "2", "1"}, wantPage: 1, wantLimit: DefaultPageLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ReadPage(tt.page, tt.limit)
			if err != nil {
				t.Fatalf("read page: %v", err)
			}

			var ids []string
			for _, tw := range got.Tweets {
				ids = append(ids, tw.ID)
			}
			if diff := cmp.Diff(tt.wantIDs, ids); diff != "" {
				t.Errorf("page content mismatch (-want +got):\n%s", diff)
			}
			// Total reports the full deduplicated count regardless of page.
			if diff := cmp.Diff(3, got.Total); diff != "" {
				t.Errorf("total mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantPage, got.Page); diff != "" {
				t.Errorf("page mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantLimit, got.Limit); diff != "" {
				t.Errorf("limit mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReadPageSubstitutesDefaults(t *testing.T) {
	store := seedShards(t)

	got, err := store.ReadPage(1, 1)
	if err != nil {
		t.Fatalf("read page: %v", err)
	}
	if len(got.Tweets) != 1 {
		t.Fatalf("expected one tweet, got %d", len(got.Tweets))
	}

	want := model.Tweet{
		ID:           "3",
		AuthorHandle: "@b",
		AuthorName:   "Unknown User",
		Text:         "newest",
		CreatedAt:    "2024-10-17T10:00:00Z",
		Metrics:      model.Metrics{Replies: "0", Reshares: "0", Likes: "0", Views: "0"},
		MediaURLs:    []string{"https://pbs.example.com/pic.jpg"},
		HasMedia:     true,
	}
	if diff := cmp.Diff(want, got.Tweets[0]); diff != "" {
		t.Errorf("record shape mismatch (-want +got):\n%s", diff)
	}
}

func TestReadMergedSkipsCorruptShardAndIndex(t *testing.T) {
	store := seedShards(t)

	// A corrupt shard and the dedup index itself must both be ignored.
	if err := os.WriteFile(filepath.Join(store.dir, "tweets_999.json"), []byte("{not json"), 0o640); err != nil {
		t.Fatalf("write corrupt shard: %v", err)
	}
	if err := store.SaveIndex(map[string]struct{}{"somehash": {}}); err != nil {
		t.Fatalf("save index: %v", err)
	}

	merged, err := store.ReadMerged()
	if err != nil {
		t.Fatalf("read merged: %v", err)
	}
	if diff := cmp.Diff(3, len(merged)); diff != "" {
		t.Errorf("merged count mismatch (-want +got):\n%s", diff)
	}
}
