// Package scraper drives timeline extraction: it owns the local dedup
// index, the serialized processing pipeline, and the rescan triggers.
package scraper

import (
	"sync"

	"tweet_collector/internal/model"
)

// Index is the local dedup and pending index. Three collections share the
// tweet-identity key space: sent (delivered), pending (queued, in flight or
// awaiting pickup), and store (identity to record, not-yet-sent only).
//
// Invariant: sent and pending are disjoint, and every identity in store is
// either pending or awaiting batch pickup, never both sent and stored.
type Index struct {
	mu        sync.Mutex
	sent      map[string]struct{}
	pending   map[string]struct{}
	store     map[string]model.Tweet
	order     []string
	processed map[string]struct{}
}

// NewIndex creates an empty Index.
func NewIndex() *Index {
	return &Index{
		sent:      make(map[string]struct{}),
		pending:   make(map[string]struct{}),
		store:     make(map[string]model.Tweet),
		processed: make(map[string]struct{}),
	}
}

// Admit queues a newly extracted tweet for delivery. It reports false when
// the tweet has no identity or the identity is already sent or pending.
func (ix *Index) Admit(t model.Tweet) bool {
	if t.ID == "" {
		return false
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, ok := ix.sent[t.ID]; ok {
		return false
	}
	if _, ok := ix.pending[t.ID]; ok {
		return false
	}

	if _, ok := ix.store[t.ID]; !ok {
		ix.order = append(ix.order, t.ID)
	}
	ix.store[t.ID] = t
	ix.pending[t.ID] = struct{}{}
	ix.processed[t.ID] = struct{}{}
	return true
}

// Remember marks an identity as already delivered without it ever passing
// through the pending set (used for identities found in the seen journal).
func (ix *Index) Remember(id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.sent[id] = struct{}{}
	ix.processed[id] = struct{}{}
}

// Processed reports whether an identity has been handled by a rescan.
func (ix *Index) Processed(id string) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	_, ok := ix.processed[id]
	return ok
}

// Snapshot returns the not-yet-sent tweets in admission order.
func (ix *Index) Snapshot() []model.Tweet {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	tweets := make([]model.Tweet, 0, len(ix.store))
	for _, id := range ix.order {
		if t, ok := ix.store[id]; ok {
			tweets = append(tweets, t)
		}
	}
	return tweets
}

// StoreCount returns the number of not-yet-sent tweets.
func (ix *Index) StoreCount() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.store)
}

// PendingCount returns the number of identities currently marked pending.
func (ix *Index) PendingCount() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.pending)
}

// MarkSent records a successful delivery: each identity leaves store and
// pending and joins sent.
func (ix *Index) MarkSent(ids []string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for _, id := range ids {
		delete(ix.store, id)
		delete(ix.pending, id)
		ix.sent[id] = struct{}{}
	}
	ix.compactOrderLocked()
}

// Release returns identities to the awaiting-pickup state after a failed
// delivery. They stay in store so a later send cycle retries them.
func (ix *Index) Release(ids []string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, id := range ids {
		delete(ix.pending, id)
	}
}

func (ix *Index) compactOrderLocked() {
	kept := ix.order[:0]
	for _, id := range ix.order {
		if _, ok := ix.store[id]; ok {
			kept = append(kept, id)
		}
	}
	ix.order = kept
}
