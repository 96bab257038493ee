// Package syncqueue persists progress writes in the background with at most
// one write in flight per key. A newer value for a key replaces any value
// still waiting to be written, so storage always converges on the latest
// state and never receives writes for one key out of order.
package syncqueue

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/vytor/phonicsmastery/internal/logger"
	"github.com/vytor/phonicsmastery/internal/models"
	"github.com/vytor/phonicsmastery/internal/repository"
	"github.com/vytor/phonicsmastery/internal/worker"
)

// Store is the persistence backend writes are flushed to.
type Store interface {
	Upsert(ctx context.Context, p models.ActivityProgress) error
}

// Submitter runs flush jobs; *worker.Pool satisfies it.
type Submitter interface {
	Submit(job worker.Job) error
}

type Options struct {
	MaxAttempts  int
	Backoff      time.Duration
	WriteTimeout time.Duration
}

type slot struct {
	latest   models.ActivityProgress
	pending  bool
	inFlight bool
	failed   *models.UnsyncedWrite
}

type Queue struct {
	mu      sync.Mutex
	slots   map[models.ProgressKey]*slot
	changed chan struct{}

	store Store
	pool  Submitter
	opts  Options
	log   *logger.Logger
}

func New(store Store, pool Submitter, opts Options) *Queue {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	return &Queue{
		slots:   make(map[models.ProgressKey]*slot),
		changed: make(chan struct{}),
		store:   store,
		pool:    pool,
		opts:    opts,
		log:     logger.Default().WithPrefix("syncqueue"),
	}
}

// Enqueue makes p the value to persist for its key and schedules a flush if
// none is running. It never blocks on storage, so the value is always
// pending when it returns unless the pool refused the flush.
func (q *Queue) Enqueue(p models.ActivityProgress) models.SyncStatus {
	key := p.Key()

	q.mu.Lock()
	s, ok := q.slots[key]
	if !ok {
		s = &slot{}
		q.slots[key] = s
	}
	s.latest = p
	s.pending = true
	s.failed = nil
	start := !s.inFlight
	if start {
		s.inFlight = true
	}
	q.notifyLocked()
	q.mu.Unlock()

	if start && !q.submit(key) {
		return models.SyncStatusUnsynced
	}
	return models.SyncStatusPending
}

// Latest returns the newest value accepted for key that storage may not
// have yet.
func (q *Queue) Latest(key models.ProgressKey) (models.ActivityProgress, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if s, ok := q.slots[key]; ok {
		return s.latest, true
	}
	return models.ActivityProgress{}, false
}

// LatestFor returns every value held in memory for one learner.
func (q *Queue) LatestFor(learnerID string) []models.ActivityProgress {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []models.ActivityProgress
	for key, s := range q.slots {
		if key.LearnerID == learnerID {
			out = append(out, s.latest)
		}
	}
	return out
}

// Unsynced lists writes that exhausted their retries. An empty learnerID
// returns every learner's.
func (q *Queue) Unsynced(learnerID string) []models.UnsyncedWrite {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []models.UnsyncedWrite
	for key, s := range q.slots {
		if s.failed == nil || (learnerID != "" && key.LearnerID != learnerID) {
			continue
		}
		out = append(out, *s.failed)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.String() < out[j].Key.String() })
	return out
}

// Resync schedules another flush for every failed key and returns how many
// were resubmitted.
func (q *Queue) Resync() int {
	q.mu.Lock()
	var keys []models.ProgressKey
	for key, s := range q.slots {
		if s.failed != nil && !s.inFlight {
			s.pending = true
			s.inFlight = true
			keys = append(keys, key)
		}
	}
	q.notifyLocked()
	q.mu.Unlock()

	for _, key := range keys {
		q.submit(key)
	}
	if len(keys) > 0 {
		q.log.Info("resubmitted %d unsynced writes", len(keys))
	}
	return len(keys)
}

// Drain waits until no write is waiting or in flight. Failed writes do not
// hold it up.
func (q *Queue) Drain(ctx context.Context) error {
	for {
		q.mu.Lock()
		busy := false
		for _, s := range q.slots {
			if s.inFlight {
				busy = true
				break
			}
		}
		ch := q.changed
		q.mu.Unlock()

		if !busy {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// submit schedules a flush for key and reports whether the pool took it.
func (q *Queue) submit(key models.ProgressKey) bool {
	err := q.pool.Submit(&flushJob{queue: q, key: key})
	if err != nil {
		q.log.Error("cannot schedule write for %s: %v", key, err)
		q.mu.Lock()
		if s, ok := q.slots[key]; ok {
			s.inFlight = false
			s.pending = false
			s.failed = &models.UnsyncedWrite{
				Key:       key,
				Percent:   s.latest.Percent,
				LastError: err.Error(),
				FailedAt:  time.Now(),
			}
		}
		q.notifyLocked()
		q.mu.Unlock()
	}
	return err == nil
}

// flush writes the latest value for key until nothing newer is waiting.
func (q *Queue) flush(ctx context.Context, key models.ProgressKey) error {
	log := logger.FromContext(ctx).WithField("key", key.String())
	for {
		q.mu.Lock()
		s, ok := q.slots[key]
		if !ok || !s.pending {
			if ok {
				s.inFlight = false
				if s.failed == nil {
					delete(q.slots, key)
				}
			}
			q.notifyLocked()
			q.mu.Unlock()
			return nil
		}
		p := s.latest
		s.pending = false
		q.mu.Unlock()

		attempts, err := q.write(ctx, p)

		q.mu.Lock()
		if err == nil {
			s.failed = nil
		} else if !s.pending {
			s.failed = &models.UnsyncedWrite{
				Key:       key,
				Percent:   p.Percent,
				Attempts:  attempts,
				LastError: err.Error(),
				FailedAt:  time.Now(),
			}
			s.inFlight = false
			q.notifyLocked()
			q.mu.Unlock()
			log.Error("giving up on write after %d attempts: %v", attempts, err)
			return err
		}
		q.mu.Unlock()
		if err != nil {
			log.Warn("write failed but a newer value is queued: %v", err)
		}
	}
}

func (q *Queue) write(ctx context.Context, p models.ActivityProgress) (int, error) {
	log := logger.FromContext(ctx)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = q.opts.Backoff
	b.MaxInterval = 8 * q.opts.Backoff

	attempts := 0
	op := func() (struct{}, error) {
		attempts++
		wctx, cancel := context.WithTimeout(ctx, q.opts.WriteTimeout)
		defer cancel()
		err := q.store.Upsert(wctx, p)
		if errors.Is(err, repository.ErrStaleWrite) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}
	notify := func(err error, next time.Duration) {
		log.Warn("write attempt %d for %s failed, retrying in %v: %v", attempts, p.Key(), next, err)
	}
	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(q.opts.MaxAttempts)),
		backoff.WithNotify(notify),
	)
	return attempts, err
}

func (q *Queue) notifyLocked() {
	close(q.changed)
	q.changed = make(chan struct{})
}

type flushJob struct {
	queue *Queue
	key   models.ProgressKey
}

func (j *flushJob) Name() string { return "flush_progress:" + j.key.String() }

func (j *flushJob) Run(ctx context.Context) error {
	return j.queue.flush(ctx, j.key)
}
