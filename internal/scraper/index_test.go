package scraper

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"tweet_collector/internal/model"
)

func tweet(id string) model.Tweet {
	return model.Tweet{ID: id, Text: "text for " + id}
}

func TestAdmitIdempotent(t *testing.T) {
	ix := NewIndex()

	if !ix.Admit(tweet("42")) {
		t.Fatal("first admit should succeed")
	}
	if ix.Admit(tweet("42")) {
		t.Error("second admit of same identity should be discarded")
	}

	if diff := cmp.Diff(1, ix.PendingCount()); diff != "" {
		t.Errorf("pending count mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(1, ix.StoreCount()); diff != "" {
		t.Errorf("store count mismatch (-want +got):\n%s", diff)
	}
}

func TestAdmitRejectsEmptyIdentity(t *testing.T) {
	ix := NewIndex()
	if ix.Admit(model.Tweet{Text: "no identity"}) {
		t.Error("tweet without identity should be discarded")
	}
}

func TestSentAndPendingDisjoint(t *testing.T) {
	ix := NewIndex()

	ix.Admit(tweet("1"))
	ix.Admit(tweet("2"))
	ix.MarkSent([]string{"1"})

	// "1" is sent; it must not be pending nor re-admittable.
	if ix.Admit(tweet("1")) {
		t.Error("sent identity must not be re-admitted")
	}
	if diff := cmp.Diff(1, ix.PendingCount()); diff != "" {
		t.Errorf("pending count mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(1, ix.StoreCount()); diff != "" {
		t.Errorf("store count mismatch (-want +got):\n%s", diff)
	}
}

func TestReleaseKeepsStore(t *testing.T) {
	ix := NewIndex()

	ix.Admit(tweet("1"))
	ix.Admit(tweet("2"))
	ix.Release([]string{"1", "2"})

	if diff := cmp.Diff(0, ix.PendingCount()); diff != "" {
		t.Errorf("pending count mismatch (-want +got):\n%s", diff)
	}
	// Released identities stay retrievable for the next send cycle.
	if diff := cmp.Diff(2, ix.StoreCount()); diff != "" {
		t.Errorf("store count mismatch (-want +got):\n%s", diff)
	}

	// A rescan can re-mark them pending without duplicating the record.
	if !ix.Admit(tweet("1")) {
		t.Error("released identity should be re-admittable")
	}
	var ids []string
	for _, tw := range ix.Snapshot() {
		ids = append(ids, tw.ID)
	}
	if diff := cmp.Diff([]string{"1", "2"}, ids); diff != "" {
		t.Errorf("snapshot order mismatch (-want +got):\n%s", diff)
	}
}

func TestSnapshotAdmissionOrder(t *testing.T) {
	ix := NewIndex()
	for _, id := range []string{"30", "10", "20"} {
		ix.Admit(tweet(id))
	}
	ix.MarkSent([]string{"10"})

	var ids []string
	for _, tw := range ix.Snapshot() {
		ids = append(ids, tw.ID)
	}
	if diff := cmp.Diff([]string{"30", "20"}, ids); diff != "" {
		t.Errorf("snapshot order mismatch (-want +got):\n%s", diff)
	}
}

func TestRememberSkipsDelivery(t *testing.T) {
	ix := NewIndex()
	ix.Remember("99")

	if ix.Admit(tweet("99")) {
		t.Error("remembered identity should be discarded")
	}
	if !ix.Processed("99") {
		t.Error("remembered identity should count as processed")
	}
	if diff := cmp.Diff(0, ix.StoreCount()); diff != "" {
		t.Errorf("store count mismatch (-want +got):\n%s", diff)
	}
}
