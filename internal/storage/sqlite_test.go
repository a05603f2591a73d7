package storage

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestDB(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMarkSeenAndIsSeen(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	tests := []struct {
		name     string
		tweetID  string
		wantSeen bool
	}{
		{name: "not seen yet", tweetID: "1846912345678901234", wantSeen: false},
		{name: "after marking", tweetID: "1846912345678901234", wantSeen: true},
	}

	tt := tests[0]
	t.Run(tt.name, func(t *testing.T) {
		got, err := s.IsSeen(ctx, tt.tweetID)
		if err != nil {
			t.Fatalf("is seen: %v", err)
		}
		if diff := cmp.Diff(tt.wantSeen, got); diff != "" {
			t.Errorf("IsSeen mismatch (-want +got):\n%s", diff)
		}
	})

	if err := s.MarkSeen(ctx, "1846912345678901234"); err != nil {
		t.Fatalf("mark seen: %v", err)
	}

	tt = tests[1]
	t.Run(tt.name, func(t *testing.T) {
		got, err := s.IsSeen(ctx, tt.tweetID)
		if err != nil {
			t.Fatalf("is seen: %v", err)
		}
		if diff := cmp.Diff(tt.wantSeen, got); diff != "" {
			t.Errorf("IsSeen mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestMarkSeenIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	for i := 0; i < 3; i++ {
		if err := s.MarkSeen(ctx, "42"); err != nil {
			t.Fatalf("mark seen attempt %d: %v", i, err)
		}
	}

	count, err := s.SeenCount(ctx)
	if err != nil {
		t.Fatalf("seen count: %v", err)
	}
	if diff := cmp.Diff(1, count); diff != "" {
		t.Errorf("SeenCount mismatch (-want +got):\n%s", diff)
	}
}

func TestSeenCount(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	ids := []string{"1", "2", "3"}
	for _, id := range ids {
		if err := s.MarkSeen(ctx, id); err != nil {
			t.Fatalf("mark seen %s: %v", id, err)
		}
	}

	count, err := s.SeenCount(ctx)
	if err != nil {
		t.Fatalf("seen count: %v", err)
	}
	if diff := cmp.Diff(len(ids), count); diff != "" {
		t.Errorf("SeenCount mismatch (-want +got):\n%s", diff)
	}
}

func TestIsSeenDistinguishesIdentities(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	if err := s.MarkSeen(ctx, "100"); err != nil {
		t.Fatalf("mark seen: %v", err)
	}

	seen, err := s.IsSeen(ctx, "101")
	if err != nil {
		t.Fatalf("is seen: %v", err)
	}
	if seen {
		t.Error("expected unmarked identity to be unseen")
	}
}

// Ensure the Journal interface is satisfied.
var _ Journal = (*SQLite)(nil)
