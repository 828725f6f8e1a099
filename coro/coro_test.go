package coro

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_startsReady(t *testing.T) {
	c := New(func() {})
	assert.Equal(t, Ready, c.State())
	assert.True(t, c.Pinned())
	assert.NotZero(t, c.ID())
}

func TestResume_runsToCompletion(t *testing.T) {
	var ran bool
	c := New(func() { ran = true })
	c.Resume()
	assert.True(t, ran)
	assert.Equal(t, Term, c.State())
}

func TestYield_suspendsAndResumes(t *testing.T) {
	var steps []string
	c := New(func() {
		steps = append(steps, "a")
		Current().Yield()
		steps = append(steps, "b")
		Current().Yield()
		steps = append(steps, "c")
	})

	c.Resume()
	assert.Equal(t, []string{"a"}, steps)
	assert.Equal(t, Ready, c.State())

	c.Resume()
	assert.Equal(t, []string{"a", "b"}, steps)
	assert.Equal(t, Ready, c.State())

	c.Resume()
	assert.Equal(t, []string{"a", "b", "c"}, steps)
	assert.Equal(t, Term, c.State())
}

func TestCurrent_insideEntryIsSelf(t *testing.T) {
	var self *Coroutine
	c := New(func() {
		self = Current()
	})
	c.Resume()
	assert.Same(t, c, self)
}

func TestCurrent_outsideEntryIsThreadMain(t *testing.T) {
	m1 := Current()
	m2 := Current()
	assert.Same(t, m1, m2)
	assert.Equal(t, Running, m1.State())
}

func TestResume_onNonReady_isFatal(t *testing.T) {
	c := New(func() {})
	c.Resume()
	assert.Panics(t, func() { c.Resume() })
}

func TestYield_onNonRunning_isFatal(t *testing.T) {
	c := New(func() {})
	assert.Panics(t, func() { c.Yield() })
}

func TestReset_onNonTerm_isFatal(t *testing.T) {
	c := New(func() { Current().Yield() })
	c.Resume()
	require.Equal(t, Ready, c.State())
	assert.Panics(t, func() { c.Reset(func() {}) })
}

func TestReset_revivesSameID(t *testing.T) {
	c := New(func() {})
	c.Resume()
	require.Equal(t, Term, c.State())
	id := c.ID()

	var secondRan bool
	c.Reset(func() { secondRan = true })
	assert.Equal(t, Ready, c.State())
	assert.Equal(t, id, c.ID())

	c.Resume()
	assert.True(t, secondRan)
	assert.Equal(t, Term, c.State())
}

func TestResume_fromDifferentGoroutines_bindsCorrectThreadMain(t *testing.T) {
	// A non-pinned coroutine yields to whichever goroutine resumed it, not
	// to the goroutine that constructed it.
	c := New(func() {
		Current().Yield()
	}, WithPinned(false))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		mainHere := Current()
		c.Resume()
		// after the coroutine yields, control returns to this goroutine;
		// its own thread-main coroutine must be unaffected.
		assert.Same(t, mainHere, Current())
	}()
	wg.Wait()
}

func TestTotalCount_tracksLiveCoroutines(t *testing.T) {
	before := TotalCount()
	c := New(func() {})
	assert.Equal(t, before+1, TotalCount())
	c.Resume()
	_ = c
}

func TestCurrentID_zeroWithoutEstablishedCoroutine(t *testing.T) {
	done := make(chan uint64, 1)
	go func() {
		done <- CurrentID()
	}()
	select {
	case id := <-done:
		assert.Zero(t, id)
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}
