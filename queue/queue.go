// Package queue serializes session mutation per remote address: every
// encrypt/decrypt call for a given address runs strictly after the
// previous one completes, while calls against distinct addresses
// proceed independently. It is the single-writer discipline
// SessionCipher depends on.
package queue

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/ratchetproto/signalcore/metrics"
)

// Job is a unit of work submitted against one address. It returns a
// completion value or an error; a failing job does not clog the
// queue for jobs behind it.
type Job func(ctx context.Context) (any, error)

type worker struct {
	jobs chan func()
	once sync.Once
}

func newWorker(buffer int) *worker {
	w := &worker{jobs: make(chan func(), buffer)}
	go w.run()
	return w
}

func (w *worker) run() {
	for fn := range w.jobs {
		fn()
	}
}

func (w *worker) close() {
	w.once.Do(func() { close(w.jobs) })
}

// Queue dispatches jobs to a per-address FIFO worker goroutine,
// creating workers lazily and reusing them across calls.
type Queue struct {
	mu      sync.Mutex
	buffer  int
	workers map[string]*worker
	metrics *metrics.Collector
}

// New returns a Queue whose per-address channels are sized buffer
// deep. A buffer of 0 makes every Submit block until the previous job
// for that address has been accepted. mc may be metrics.Noop() (or
// nil) to disable reporting.
func New(buffer int, mc *metrics.Collector) *Queue {
	return &Queue{buffer: buffer, workers: make(map[string]*worker), metrics: mc}
}

func (q *Queue) workerFor(addr string) *worker {
	q.mu.Lock()
	defer q.mu.Unlock()
	w, ok := q.workers[addr]
	if !ok {
		w = newWorker(q.buffer)
		q.workers[addr] = w
	}
	return w
}

// Submit enqueues job under addr and blocks until it has run,
// returning whatever it returned. Jobs for the same addr never run
// concurrently; jobs for different addresses may. Each call is
// tagged with a job id that appears in its failure log line.
func (q *Queue) Submit(ctx context.Context, addr string, job Job) (any, error) {
	w := q.workerFor(addr)
	id := uuid.New()

	type result struct {
		val any
		err error
	}
	done := make(chan result, 1)

	select {
	case w.jobs <- func() {
		v, err := job(ctx)
		if err != nil {
			log.Printf("queue: job %s for %s failed: %v", id, addr, err)
		}
		done <- result{v, err}
	}:
		q.metrics.QueueDepthSampled(addr, len(w.jobs))
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops every per-address worker. Submit must not be called
// after Close.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, w := range q.workers {
		w.close()
	}
}
