package sched

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-coros/coro"
)

func TestSchedule_funcRunsOnWorker(t *testing.T) {
	s := New(2, false, "t1")
	require.NoError(t, s.Start())

	var ran int32
	done := make(chan struct{})
	require.NoError(t, s.Schedule(func() {
		atomic.StoreInt32(&ran, 1)
		close(done)
	}, -1))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for scheduled func")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&ran))
	require.NoError(t, s.Stop())
}

func TestSchedule_coroutineRunsToCompletion(t *testing.T) {
	s := New(2, false, "t2")
	require.NoError(t, s.Start())

	var steps []string
	var mu sync.Mutex
	done := make(chan struct{})
	var c *coro.Coroutine
	c = coro.New(func() {
		mu.Lock()
		steps = append(steps, "a")
		mu.Unlock()
		// a yielding coroutine must re-enqueue itself before yielding, or
		// nothing will ever resume it again (spec.md §9's "escape" caveat).
		require.NoError(t, s.Schedule(c, -1))
		coro.Current().Yield()
		mu.Lock()
		steps = append(steps, "b")
		mu.Unlock()
		close(done)
	})
	require.NoError(t, s.Schedule(c, -1))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
	}
	mu.Lock()
	assert.Equal(t, []string{"a", "b"}, steps)
	mu.Unlock()
	require.NoError(t, s.Stop())
}

func TestSchedule_manyTasksAllRun(t *testing.T) {
	s := New(4, false, "t3")
	require.NoError(t, s.Start())

	const n = 200
	var count int64
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		require.NoError(t, s.Schedule(func() {
			atomic.AddInt64(&count, 1)
			wg.Done()
		}, -1))
	}

	waitOrTimeout(t, &wg, 10*time.Second)
	assert.Equal(t, int64(n), atomic.LoadInt64(&count))
	require.NoError(t, s.Stop())
}

func TestScheduler_useCaller_drainsOnStop(t *testing.T) {
	s := New(1, true, "t4")
	require.NoError(t, s.Start()) // zero dedicated workers: threads=1, useCaller consumes the one slot

	var ran int32
	require.NoError(t, s.Schedule(func() {
		atomic.StoreInt32(&ran, 1)
	}, -1))

	// nothing has run yet: use_caller mode only drains its queue from Stop.
	assert.Equal(t, int32(0), atomic.LoadInt32(&ran))

	require.NoError(t, s.Stop())
	assert.Equal(t, int32(1), atomic.LoadInt32(&ran))
}

func TestSchedule_threadPinning(t *testing.T) {
	s := New(3, false, "t5")
	require.NoError(t, s.Start())

	pinnedTID := s.threadIDs[1]

	// keyed by the dispatching worker's scheduling coroutine: every pinned
	// task must have been dispatched by the same single worker.
	var mu sync.Mutex
	seen := make(map[uint64]int)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		require.NoError(t, s.Schedule(func() {
			defer wg.Done()
			mu.Lock()
			defer mu.Unlock()
			seen[s.MainCoroutine().ID()]++
		}, pinnedTID))
	}
	waitOrTimeout(t, &wg, 10*time.Second)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 1)
	for _, n := range seen {
		assert.Equal(t, 20, n)
	}
	require.NoError(t, s.Stop())
}

func TestStopping_falseWhileTasksQueued(t *testing.T) {
	s := New(1, false, "t6")
	require.NoError(t, s.Schedule(func() {}, -1)) // never started: stays queued
	s.mu.Lock()
	s.stopping = true
	s.mu.Unlock()
	assert.False(t, s.Stopping())
}

func TestSchedule_afterStop_isFatal(t *testing.T) {
	s := New(1, false, "t7")
	require.NoError(t, s.Start())
	require.NoError(t, s.Stop())
	assert.Panics(t, func() { _ = s.Schedule(func() {}, -1) })
}

func waitOrTimeout(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatal("timed out waiting for tasks")
	}
}
