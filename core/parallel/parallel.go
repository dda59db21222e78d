// Package parallel fans independent work items out over goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// Parallelize divides items into contiguous ranges, one per CPU core, and
// runs fn on each range concurrently.
func Parallelize(items int, fn func(start, end int)) {
	ParallelizeWithJobs(items, 0, fn)
}

// ParallelizeWithJobs divides items into at most nJobs contiguous ranges and
// runs fn on each range concurrently. nJobs <= 0 uses every CPU core and
// nJobs == 1 runs fn(0, items) on the calling goroutine.
func ParallelizeWithJobs(items, nJobs int, fn func(start, end int)) {
	if items <= 0 {
		return
	}

	numWorkers := nJobs
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > items {
		numWorkers = items
	}
	if numWorkers == 1 {
		fn(0, items)
		return
	}

	// ceiling division
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}
