package scraper

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"

	"tweet_collector/internal/extract"
	"tweet_collector/internal/model"
	"tweet_collector/internal/storage"
)

// SnapshotSource provides the current state of the monitored document.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*goquery.Document, error)
}

type rescanKind int

const (
	rescanAll     rescanKind = iota // process every entity in the document
	rescanMissing                   // only entities absent from the processed set
)

// Scraper owns the three rescan triggers and funnels all extraction work
// through a single sequential pipeline, so no two rescans ever interleave
// on the Index.
type Scraper struct {
	source    SnapshotSource
	events    <-chan model.PageEvent
	extractor *extract.Extractor
	index     *Index
	journal   storage.Journal
	log       *slog.Logger

	batchSize        int
	mutationDebounce time.Duration
	scrollThrottle   time.Duration
	scrollQuiet      time.Duration
	recoveryInterval time.Duration

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	jobs    chan rescanKind
}

// New creates a Scraper. The journal may be nil, in which case dedup is
// purely in-memory.
func New(source SnapshotSource, events <-chan model.PageEvent, index *Index, journal storage.Journal, log *slog.Logger) *Scraper {
	return &Scraper{
		source:    source,
		events:    events,
		extractor: extract.New(log),
		index:     index,
		journal:   journal,
		log:       log,

		batchSize:        5,
		mutationDebounce: 200 * time.Millisecond,
		scrollThrottle:   500 * time.Millisecond,
		scrollQuiet:      500 * time.Millisecond,
		recoveryInterval: 30 * time.Second,

		jobs: make(chan rescanKind, 16),
	}
}

// SetIntervals overrides the trigger timings (useful for testing).
func (s *Scraper) SetIntervals(debounce, throttle, quiet, recovery time.Duration) {
	s.mutationDebounce = debounce
	s.scrollThrottle = throttle
	s.scrollQuiet = quiet
	s.recoveryInterval = recovery
}

// Start launches the trigger loop and the pipeline worker. Starting an
// already-running scraper is a no-op. The scraper is constructed exactly
// once per monitored document; Start and Stop may be called repeatedly.
func (s *Scraper) Start() {
	if !s.running.CompareAndSwap(false, true) {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(2)
	go s.triggerLoop(ctx)
	go s.worker(ctx)

	// Initial rescan so a document that is already populated is picked up
	// without waiting for a trigger.
	s.schedule(rescanAll)

	s.log.Info("scraper started")
}

// Stop gates all triggers, stops the timers, and lets in-flight pipeline
// work drain. No new work is scheduled after Stop returns.
func (s *Scraper) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.log.Info("scraper stopped")
}

func (s *Scraper) schedule(kind rescanKind) {
	if !s.running.Load() {
		return
	}
	select {
	case s.jobs <- kind:
	default:
		// The queue is saturated with identical work; the pending rescans
		// will observe the same document state.
	}
}

// triggerLoop turns page events and the recovery ticker into scheduled
// rescans. Mutation bursts are coalesced behind a short debounce; scroll
// events are throttled and then rescanned only after scroll quiescence.
func (s *Scraper) triggerLoop(ctx context.Context) {
	defer s.wg.Done()

	recovery := time.NewTicker(s.recoveryInterval)
	defer recovery.Stop()

	mutation := newStoppedTimer()
	defer mutation.Stop()
	quiet := newStoppedTimer()
	defer quiet.Stop()

	var lastScroll time.Time
	var lastThrottled time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-s.events:
			if !ok {
				return
			}
			switch ev.Kind {
			case model.EventMutation:
				if ev.Articles > 0 {
					mutation.Reset(s.mutationDebounce)
				}
			case model.EventScroll:
				lastScroll = time.Now()
				if ev.NearBottom() {
					s.log.Debug("near bottom of document")
				}
				if time.Since(lastThrottled) >= s.scrollThrottle {
					lastThrottled = time.Now()
					quiet.Reset(s.scrollQuiet)
				}
			}

		case <-mutation.C:
			s.schedule(rescanAll)

		case <-quiet.C:
			if since := time.Since(lastScroll); since >= s.scrollQuiet {
				s.schedule(rescanAll)
			} else {
				quiet.Reset(s.scrollQuiet - since)
			}

		case <-recovery.C:
			s.schedule(rescanMissing)
		}
	}
}

// worker is the single consumer of the rescan queue. Batches execute
// strictly in order and entities strictly in document order.
func (s *Scraper) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case kind := <-s.jobs:
			s.rescan(ctx, kind)
		}
	}
}

func (s *Scraper) rescan(ctx context.Context, kind rescanKind) {
	doc, err := s.source.Snapshot(ctx)
	if err != nil {
		s.log.Error("snapshot document", "error", err)
		return
	}

	tweets := s.extractor.All(doc)
	if kind == rescanMissing {
		tweets = s.unprocessed(tweets)
		if len(tweets) > 0 {
			s.log.Debug("recovery rescan", "missed", len(tweets))
		}
	}

	for start := 0; start < len(tweets); start += s.batchSize {
		end := min(start+s.batchSize, len(tweets))
		for _, t := range tweets[start:end] {
			if !s.running.Load() {
				return
			}
			s.admit(ctx, t)
		}
	}
}

func (s *Scraper) unprocessed(tweets []model.Tweet) []model.Tweet {
	var missing []model.Tweet
	for _, t := range tweets {
		if !s.index.Processed(t.ID) {
			missing = append(missing, t)
		}
	}
	return missing
}

// admit is the single client-side dedup gate. It consults the persisted
// seen journal first so identities delivered in a previous agent run are
// not queued again; journal errors degrade to in-memory dedup.
func (s *Scraper) admit(ctx context.Context, t model.Tweet) {
	if s.journal != nil {
		seen, err := s.journal.IsSeen(ctx, t.ID)
		if err != nil {
			s.log.Error("journal lookup", "tweet_id", t.ID, "error", err)
		} else if seen {
			s.index.Remember(t.ID)
			return
		}
	}

	if s.index.Admit(t) {
		s.log.Debug("tweet queued", "tweet_id", t.ID)
	}
}

// newStoppedTimer returns a timer that will not fire until Reset.
func newStoppedTimer() *time.Timer {
	t := time.NewTimer(time.Hour)
	if !t.Stop() {
		<-t.C
	}
	return t
}
