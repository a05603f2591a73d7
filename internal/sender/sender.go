// Package sender delivers batches of pending tweets to the ingestion
// service under a minimum-interval rate limit with bounded retries.
package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"

	"tweet_collector/internal/model"
	"tweet_collector/internal/scraper"
	"tweet_collector/internal/storage"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Sender periodically drains the pending index and posts batches to the
// ingestion endpoint.
type Sender struct {
	client   HTTPClient
	endpoint string
	index    *scraper.Index
	journal  storage.Journal
	log      *slog.Logger

	gate        time.Duration
	minInterval time.Duration
	attempts    uint64
	backoff     time.Duration

	lastSend time.Time
	sending  atomic.Bool
}

// New creates a Sender. The journal may be nil.
func New(client HTTPClient, endpoint string, index *scraper.Index, journal storage.Journal, log *slog.Logger) *Sender {
	return &Sender{
		client:   client,
		endpoint: endpoint,
		index:    index,
		journal:  journal,
		log:      log,

		gate:        1 * time.Second,
		minInterval: 2 * time.Second,
		attempts:    3,
		backoff:     1 * time.Second,

		lastSend: time.Now(),
	}
}

// SetTimings overrides the gate period, minimum send interval, and retry
// backoff (useful for testing).
func (s *Sender) SetTimings(gate, minInterval, backoff time.Duration) {
	s.gate = gate
	s.minInterval = minInterval
	s.backoff = backoff
}

// Run starts the send loop, blocking until ctx is cancelled. The gate
// ticker fires every second but a send only starts when records are
// waiting and the minimum interval since the last successful send has
// elapsed.
func (s *Sender) Run(ctx context.Context) {
	ticker := time.NewTicker(s.gate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.index.StoreCount() > 0 && time.Since(s.lastSend) >= s.minInterval {
				s.Send(ctx)
			}
		}
	}
}

// Send performs one delivery cycle. Overlapping cycles are prevented by an
// atomic guard; delivery failures release the batch for a later cycle and
// never crash the agent.
func (s *Sender) Send(ctx context.Context) {
	if !s.sending.CompareAndSwap(false, true) {
		return
	}
	defer s.sending.Store(false)

	tweets := s.index.Snapshot()
	if len(tweets) == 0 {
		return
	}

	ids := make([]string, len(tweets))
	for i, t := range tweets {
		ids[i] = t.ID
	}

	payload := Transform(tweets)
	body, err := json.Marshal(payload)
	if err != nil {
		s.log.Error("marshal batch", "error", err)
		s.index.Release(ids)
		return
	}

	backoff := retry.WithMaxRetries(s.attempts-1, retry.NewConstant(s.backoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := s.post(ctx, body); err != nil {
			s.log.Warn("delivery attempt failed", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		// Released identities stay in the store, so the next cycle picks
		// them up again: at-least-once, never dropped.
		s.log.Error("delivery failed, releasing batch", "count", len(ids), "error", err)
		s.index.Release(ids)
		return
	}

	s.index.MarkSent(ids)
	s.journalSent(ctx, ids)
	s.lastSend = time.Now()
	s.log.Info("batch delivered", "count", len(ids))
}

func (s *Sender) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post batch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, snippet)
	}
	return nil
}

func (s *Sender) journalSent(ctx context.Context, ids []string) {
	if s.journal == nil {
		return
	}
	for _, id := range ids {
		if err := s.journal.MarkSeen(ctx, id); err != nil {
			s.log.Error("journal mark seen", "tweet_id", id, "error", err)
		}
	}
}

// Transform builds the wire payload: records are grouped per author
// (authors in first-appearance order, tweets in admission order within a
// group) and then flattened, because the ingestion contract is a raw array
// of record objects.
func Transform(tweets []model.Tweet) []model.WireTweet {
	groups := Group(tweets)
	var out []model.WireTweet
	for _, g := range groups {
		out = append(out, g.Tweets...)
	}
	return out
}

// Group arranges tweets into per-author envelope groups.
func Group(tweets []model.Tweet) []model.AuthorGroup {
	byHandle := make(map[string]int)
	var groups []model.AuthorGroup

	for _, t := range tweets {
		i, ok := byHandle[t.AuthorHandle]
		if !ok {
			i = len(groups)
			byHandle[t.AuthorHandle] = i
			groups = append(groups, model.AuthorGroup{
				Handle:   t.AuthorHandle,
				Name:     t.AuthorName,
				Verified: t.Verified,
			})
		}
		groups[i].Tweets = append(groups[i].Tweets, toWire(t))
	}
	return groups
}

func toWire(t model.Tweet) model.WireTweet {
	createdAt := t.CreatedAt
	if createdAt == "" {
		createdAt = time.Now().UTC().Format(time.RFC3339)
	}

	w := model.WireTweet{
		TweetID:      t.ID,
		AuthorHandle: t.AuthorHandle,
		AuthorName:   t.AuthorName,
		Verified:     t.Verified,
		Content:      t.Text,
		CreatedAt:    createdAt,
		ReplyCount:   toCount(t.Metrics.Replies),
		ReshareCount: toCount(t.Metrics.Reshares),
		LikeCount:    toCount(t.Metrics.Likes),
		ViewCount:    toCount(t.Metrics.Views),
	}
	if len(t.MediaURLs) > 0 {
		w.MediaURL = t.MediaURLs[0]
	}
	return w
}

func toCount(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
