package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amansir99/trustscan-ai-sub001/internal/types"
)

func TestQueue_ExecutesTask(t *testing.T) {
	q := New(Config{MaxQueueSize: 10, ConcurrentLimit: 2, MaxWait: time.Second})

	result, err := q.Enqueue(context.Background(), 0, func(ctx context.Context) (any, error) {
		return "done", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "done", result)

	stats := q.Stats()
	assert.Equal(t, int64(1), stats.Completed)
	assert.Equal(t, 0, stats.Active)
}

func TestQueue_PropagatesTaskError(t *testing.T) {
	q := New(Config{MaxQueueSize: 10, ConcurrentLimit: 2, MaxWait: time.Second})

	taskErr := errors.New("boom")
	_, err := q.Enqueue(context.Background(), 0, func(ctx context.Context) (any, error) {
		return nil, taskErr
	})

	assert.Equal(t, taskErr, err)
}

func TestQueue_RejectsWhenFull(t *testing.T) {
	q := New(Config{MaxQueueSize: 2, ConcurrentLimit: 1, MaxWait: time.Minute})

	release := make(chan struct{})
	var wg sync.WaitGroup

	// One running task plus two pending items fill the queue
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Enqueue(context.Background(), 0, func(ctx context.Context) (any, error) {
				<-release
				return nil, nil
			})
		}()
	}

	require.Eventually(t, func() bool {
		s := q.Stats()
		return s.Active == 1 && s.Pending == 2
	}, time.Second, 5*time.Millisecond)

	// The next enqueue is rejected immediately
	start := time.Now()
	_, err := q.Enqueue(context.Background(), 0, func(ctx context.Context) (any, error) {
		return nil, nil
	})
	require.Error(t, err)
	assert.Equal(t, types.QUEUE_FULL_ERROR, types.CodeOf(err))
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	close(release)
	wg.Wait()
}

func TestQueue_ConcurrencyCapHolds(t *testing.T) {
	q := New(Config{MaxQueueSize: 50, ConcurrentLimit: 3, MaxWait: time.Minute})

	var active int32
	var peak int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Enqueue(context.Background(), 0, func(ctx context.Context) (any, error) {
				n := atomic.AddInt32(&active, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil, nil
			})
		}()
	}

	wg.Wait()
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
	assert.Equal(t, int64(20), q.Stats().Completed)
}

func TestQueue_PriorityOrdering(t *testing.T) {
	q := New(Config{MaxQueueSize: 10, ConcurrentLimit: 1, MaxWait: time.Minute})

	release := make(chan struct{})
	var order []int
	var orderMu sync.Mutex
	var wg sync.WaitGroup

	// Occupy the single execution slot so later items queue up
	wg.Add(1)
	go func() {
		defer wg.Done()
		q.Enqueue(context.Background(), 0, func(ctx context.Context) (any, error) {
			<-release
			return nil, nil
		})
	}()

	require.Eventually(t, func() bool {
		return q.Stats().Active == 1
	}, time.Second, 5*time.Millisecond)

	enqueue := func(priority, id, wantPending int) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Enqueue(context.Background(), priority, func(ctx context.Context) (any, error) {
				orderMu.Lock()
				order = append(order, id)
				orderMu.Unlock()
				return nil, nil
			})
		}()
		require.Eventually(t, func() bool {
			return q.Stats().Pending == wantPending
		}, time.Second, time.Millisecond)
	}

	enqueue(1, 1, 1) // low priority, first in
	enqueue(1, 2, 2) // low priority, second in
	enqueue(5, 3, 3) // high priority, last in

	close(release)
	wg.Wait()

	// High priority drains first; ties preserve arrival order
	assert.Equal(t, []int{3, 1, 2}, order)
}

func TestQueue_MaxWaitTimeout(t *testing.T) {
	q := New(Config{MaxQueueSize: 10, ConcurrentLimit: 1, MaxWait: 30 * time.Millisecond})

	release := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		q.Enqueue(context.Background(), 0, func(ctx context.Context) (any, error) {
			<-release
			return nil, nil
		})
	}()

	require.Eventually(t, func() bool {
		return q.Stats().Active == 1
	}, time.Second, 5*time.Millisecond)

	_, err := q.Enqueue(context.Background(), 0, func(ctx context.Context) (any, error) {
		return nil, nil
	})
	require.Error(t, err)
	assert.Equal(t, types.TIMEOUT_ERROR, types.CodeOf(err))
	assert.Equal(t, int64(1), q.Stats().TimedOut)

	close(release)
	wg.Wait()
}

func TestQueue_ContextCancelledWhileQueued(t *testing.T) {
	q := New(Config{MaxQueueSize: 10, ConcurrentLimit: 1, MaxWait: time.Minute})

	release := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		q.Enqueue(context.Background(), 0, func(ctx context.Context) (any, error) {
			<-release
			return nil, nil
		})
	}()

	require.Eventually(t, func() bool {
		return q.Stats().Active == 1
	}, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := q.Enqueue(ctx, 0, func(ctx context.Context) (any, error) {
		return nil, nil
	})
	require.Error(t, err)
	assert.Equal(t, types.TIMEOUT_ERROR, types.CodeOf(err))

	close(release)
	wg.Wait()
}
