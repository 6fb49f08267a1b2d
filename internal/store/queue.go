package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	queueDepth     = 256
	maxWriteTries  = 3
	initialBackoff = 50 * time.Millisecond
)

// writeOp is one durable write queued from the UI thread. Ops carry an id
// so retries and failures can be correlated in the log.
type writeOp struct {
	id    uuid.UUID
	path  string
	kind  string
	apply func() error
}

// Queue serializes background writes to one store. A single worker applies
// ops in submission order, which gives the required per-record ordering:
// writes to the same record's same field are never reordered. Failures are
// retried with doubling backoff and surfaced once via the failure callback;
// in-memory state stays authoritative regardless.
type Queue struct {
	db        *DB
	ops       chan writeOp
	done      chan struct{}
	log       zerolog.Logger
	onFailure func(error)

	mu     sync.Mutex
	closed bool
}

// NewQueue starts the worker for db. onFailure may be nil; when set it is
// invoked once per op that exhausted its retries.
func NewQueue(db *DB, log zerolog.Logger, onFailure func(error)) *Queue {
	q := &Queue{
		db:        db,
		ops:       make(chan writeOp, queueDepth),
		done:      make(chan struct{}),
		log:       log,
		onFailure: onFailure,
	}
	go q.run()
	return q
}

// EnqueueRating queues a durable rating update for path.
func (q *Queue) EnqueueRating(path string, rating int) {
	q.enqueue(writeOp{
		id:    uuid.New(),
		path:  path,
		kind:  "rating",
		apply: func() error { return q.db.UpdateRating(path, rating) },
	})
}

// EnqueueMarkViewed queues a durable viewed-state update for path.
func (q *Queue) EnqueueMarkViewed(path string, ts time.Time) {
	q.enqueue(writeOp{
		id:    uuid.New(),
		path:  path,
		kind:  "mark-viewed",
		apply: func() error { return q.db.MarkViewed(path, ts) },
	})
}

func (q *Queue) enqueue(op writeOp) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.log.Warn().Str("op", op.id.String()).Str("path", op.path).Msg("write queue closed, dropping op")
		return
	}
	q.ops <- op
}

func (q *Queue) run() {
	defer close(q.done)
	for op := range q.ops {
		q.execute(op)
	}
}

func (q *Queue) execute(op writeOp) {
	backoff := initialBackoff
	var err error
	for attempt := 1; attempt <= maxWriteTries; attempt++ {
		if err = op.apply(); err == nil {
			return
		}
		if attempt < maxWriteTries {
			q.log.Debug().
				Str("op", op.id.String()).
				Str("kind", op.kind).
				Str("path", op.path).
				Int("attempt", attempt).
				Err(err).
				Msg("write failed, retrying")
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	q.log.Error().
		Str("op", op.id.String()).
		Str("kind", op.kind).
		Str("path", op.path).
		Err(err).
		Msg("write failed after retries")
	if q.onFailure != nil {
		q.onFailure(err)
	}
}

// Close stops intake and waits for queued ops to drain, bounded by ctx.
// Ops are never discarded while the deadline holds.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ops)
	}
	q.mu.Unlock()

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
