package coros_test

import (
	"fmt"
	"sync"

	"github.com/joeycumines/go-coros/coro"
	"github.com/joeycumines/go-coros/sched"
)

// This mirrors the original project's simple_scheduler.cpp: a scheduler is
// constructed, a batch of coroutines is queued up front, and running them
// drains the queue.
func Example() {
	s := sched.New(2, false, "example")
	if err := s.Start(); err != nil {
		panic(err)
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	results := make([]int, 0, 10)
	for i := 0; i < 10; i++ {
		i := i
		wg.Add(1)
		c := coro.New(func() {
			mu.Lock()
			results = append(results, i*i)
			mu.Unlock()
			wg.Done()
		})
		if err := s.Schedule(c, -1); err != nil {
			panic(err)
		}
	}

	wg.Wait()
	if err := s.Stop(); err != nil {
		panic(err)
	}

	fmt.Println(len(results))
	// Output: 10
}
