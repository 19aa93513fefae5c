package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amansir99/trustscan-ai-sub001/internal/types"
)

// Task is a unit of work executed by the queue. The context passed to the
// task carries the caller's cancellation and deadlines.
type Task func(ctx context.Context) (any, error)

// Config configures a Queue.
type Config struct {
	// MaxQueueSize bounds the number of pending items. Enqueue rejects
	// immediately once the bound is reached.
	MaxQueueSize int

	// ConcurrentLimit caps the number of tasks running simultaneously.
	ConcurrentLimit int

	// MaxWait bounds how long a pending item may wait before starting.
	// Items that wait longer are rejected with a timeout error.
	MaxWait time.Duration
}

// Stats is a point-in-time snapshot of queue activity counters.
type Stats struct {
	Pending   int   `json:"pending"`
	Active    int   `json:"active"`
	Completed int64 `json:"completed"`
	Rejected  int64 `json:"rejected"`
	TimedOut  int64 `json:"timed_out"`
	Enqueued  int64 `json:"enqueued"`
}

// item is one queued unit of work. It lives only inside the queue and is
// destroyed on completion, rejection, or wait timeout.
type item struct {
	priority   int
	seq        uint64
	enqueuedAt time.Time
	task       Task
	ctx        context.Context
	done       chan outcome
	started    bool
	removed    bool
}

type outcome struct {
	value any
	err   error
}

// Queue is a bounded priority queue with a concurrency cap. It decouples
// admission (the rate limiter, instantaneous) from execution concurrency
// (bounded parallelism), so bursts of expensive audit work shed load
// predictably instead of running unbounded concurrent scraping and AI calls.
//
// Higher priority drains first; ties preserve arrival order. At all times
// the number of running tasks stays at or below ConcurrentLimit.
type Queue struct {
	cfg Config

	mu      sync.Mutex
	pending []*item
	active  int
	seq     uint64

	completed int64
	rejected  int64
	timedOut  int64
	enqueued  int64
}

// New creates a Queue with the given configuration.
func New(cfg Config) *Queue {
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 50
	}
	if cfg.ConcurrentLimit <= 0 {
		cfg.ConcurrentLimit = 5
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 2 * time.Minute
	}
	return &Queue{cfg: cfg}
}

// Enqueue submits a task and blocks until it completes, is rejected, or
// times out waiting for a slot. Rejection is immediate when the queue is at
// capacity. Every accepted item eventually resolves or fails; none are
// silently dropped.
func (q *Queue) Enqueue(ctx context.Context, priority int, task Task) (any, error) {
	q.mu.Lock()

	if len(q.pending) >= q.cfg.MaxQueueSize {
		q.rejected++
		q.mu.Unlock()
		return nil, types.NewError(types.QUEUE_FULL_ERROR,
			fmt.Sprintf("request queue at capacity (%d pending)", q.cfg.MaxQueueSize))
	}

	q.seq++
	it := &item{
		priority:   priority,
		seq:        q.seq,
		enqueuedAt: time.Now(),
		task:       task,
		ctx:        ctx,
		done:       make(chan outcome, 1),
	}
	q.enqueued++
	q.insert(it)
	q.dispatch()
	q.mu.Unlock()

	// Reject the item if it waits too long without starting
	waitTimer := time.AfterFunc(q.cfg.MaxWait, func() {
		q.expire(it)
	})
	defer waitTimer.Stop()

	select {
	case out := <-it.done:
		return out.value, out.err
	case <-ctx.Done():
		q.abandon(it)
		return nil, types.WrapError(types.TIMEOUT_ERROR, "request cancelled while queued", ctx.Err())
	}
}

// Stats returns a snapshot of the queue's counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Pending:   len(q.pending),
		Active:    q.active,
		Completed: q.completed,
		Rejected:  q.rejected,
		TimedOut:  q.timedOut,
		Enqueued:  q.enqueued,
	}
}

// insert places an item into the pending list ordered by priority
// (descending) with arrival order preserved among equal priorities.
// Caller must hold q.mu.
func (q *Queue) insert(it *item) {
	pos := len(q.pending)
	for i, existing := range q.pending {
		if it.priority > existing.priority {
			pos = i
			break
		}
	}
	q.pending = append(q.pending, nil)
	copy(q.pending[pos+1:], q.pending[pos:])
	q.pending[pos] = it
}

// dispatch starts pending items while execution slots are available.
// Caller must hold q.mu.
func (q *Queue) dispatch() {
	for q.active < q.cfg.ConcurrentLimit && len(q.pending) > 0 {
		it := q.pending[0]
		q.pending = q.pending[1:]
		it.started = true
		q.active++
		go q.run(it)
	}
}

// run executes one item and then pulls the next eligible item.
func (q *Queue) run(it *item) {
	var out outcome
	if err := it.ctx.Err(); err != nil {
		out = outcome{err: types.WrapError(types.TIMEOUT_ERROR, "request cancelled before execution", err)}
	} else {
		value, err := it.task(it.ctx)
		out = outcome{value: value, err: err}
	}

	it.done <- out

	q.mu.Lock()
	q.active--
	q.completed++
	q.dispatch()
	q.mu.Unlock()
}

// expire rejects an item that has waited past MaxWait without starting.
func (q *Queue) expire(it *item) {
	q.mu.Lock()
	if it.started || it.removed {
		q.mu.Unlock()
		return
	}
	q.remove(it)
	q.timedOut++
	q.mu.Unlock()

	it.done <- outcome{err: types.NewError(types.TIMEOUT_ERROR,
		fmt.Sprintf("request waited longer than %s in queue", q.cfg.MaxWait))}
}

// abandon removes a still-pending item whose caller has gone away.
func (q *Queue) abandon(it *item) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if it.started || it.removed {
		return
	}
	q.remove(it)
}

// remove deletes an item from the pending list. Caller must hold q.mu.
func (q *Queue) remove(it *item) {
	for i, existing := range q.pending {
		if existing == it {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			break
		}
	}
	it.removed = true
}
