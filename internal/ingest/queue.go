package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"tweet_collector/internal/model"
)

// MaxRecordsPerJob is the hard cap on records considered per ingestion
// job; anything beyond it is discarded before validation.
const MaxRecordsPerJob = 100

// Result is the outcome of a successful ingestion job.
type Result struct {
	Count    int
	Filename string
}

type job struct {
	records []model.WireTweet
	result  chan jobResult
}

type jobResult struct {
	res Result
	err error
}

// Queue serializes all storage mutations through a single worker, so
// concurrent inbound batches never read-modify-write the dedup index at
// the same time.
type Queue struct {
	store *FileStore
	jobs  chan job
	log   *slog.Logger
}

// NewQueue creates a Queue over the given store.
func NewQueue(store *FileStore, log *slog.Logger) *Queue {
	return &Queue{
		store: store,
		jobs:  make(chan job, 64),
		log:   log,
	}
}

// Run consumes jobs until ctx is cancelled. Exactly one Run must be
// active per Queue.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-q.jobs:
			res, err := q.process(j.records)
			j.result <- jobResult{res: res, err: err}
		}
	}
}

// Submit enqueues a batch and waits for its outcome.
func (q *Queue) Submit(ctx context.Context, records []model.WireTweet) (Result, error) {
	j := job{records: records, result: make(chan jobResult, 1)}

	select {
	case q.jobs <- j:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	select {
	case r := <-j.result:
		return r.res, r.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// process runs one ingestion job: trim, validate, dedup against the
// persistent store, then persist the store and a new shard. A job where
// nothing novel remains is a normal zero-count success.
func (q *Queue) process(records []model.WireTweet) (Result, error) {
	if len(records) > MaxRecordsPerJob {
		q.log.Warn("trimming oversized batch", "received", len(records), "kept", MaxRecordsPerJob)
		records = records[:MaxRecordsPerJob]
	}

	index, err := q.store.LoadIndex()
	if err != nil {
		return Result{}, fmt.Errorf("load dedup store: %w", err)
	}

	var novel []model.WireTweet
	for _, r := range records {
		if !Validate(r) {
			q.log.Debug("record rejected by policy", "tweet_id", r.TweetID)
			continue
		}
		h := ContentHash(r)
		if h == "" {
			continue
		}
		if _, dup := index[h]; dup {
			continue
		}
		index[h] = struct{}{}
		novel = append(novel, r)
	}

	if len(novel) == 0 {
		q.log.Info("no new unique tweets")
		return Result{Count: 0}, nil
	}

	if err := q.store.SaveIndex(index); err != nil {
		return Result{}, fmt.Errorf("save dedup store: %w", err)
	}

	filename, err := q.store.WriteShard(novel)
	if err != nil {
		return Result{}, fmt.Errorf("write shard: %w", err)
	}

	q.log.Info("stored tweets", "count", len(novel), "file", filename)
	return Result{Count: len(novel), Filename: filename}, nil
}
