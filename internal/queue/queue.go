package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrClosed is returned when a job is submitted after Close.
var ErrClosed = errors.New("queue: closed")

// ErrFull is returned when the pending buffer is exhausted.
var ErrFull = errors.New("queue: full")

// Job is a unit of provider work. The supplied context is cancelled when the
// queue shuts down.
type Job func(ctx context.Context)

// Queue runs jobs one at a time, paced by a rate limiter so bursts of
// generation requests do not overrun provider quotas.
type Queue struct {
	jobs    chan Job
	limiter *rate.Limiter
	logger  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// New starts a queue that admits at most perMinute jobs per minute, keeping
// up to buffer jobs pending.
func New(perMinute, buffer int, logger zerolog.Logger) *Queue {
	if perMinute <= 0 {
		perMinute = 30
	}
	if buffer <= 0 {
		buffer = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		jobs:    make(chan Job, buffer),
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 1),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
	q.wg.Add(1)
	go q.run()
	return q
}

// Enqueue submits a job. It never blocks; a full buffer is reported to the
// caller instead.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrFull
	}
}

// Len reports the number of pending jobs.
func (q *Queue) Len() int {
	return len(q.jobs)
}

// Close stops accepting jobs, cancels the running one, and waits for the
// worker to exit. Pending jobs are discarded.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
}

func (q *Queue) run() {
	defer q.wg.Done()
	for job := range q.jobs {
		if err := q.limiter.Wait(q.ctx); err != nil {
			q.logger.Debug().Err(err).Msg("queue: worker stopping")
			return
		}
		job(q.ctx)
	}
}
