package parallel

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParallelizeWithJobsCoversEveryItemOnce(t *testing.T) {
	for _, jobs := range []int{-1, 0, 1, 3, 64} {
		seen := make([]int, 17)
		var mu sync.Mutex
		ParallelizeWithJobs(len(seen), jobs, func(start, end int) {
			for i := start; i < end; i++ {
				mu.Lock()
				seen[i]++
				mu.Unlock()
			}
		})
		for i, n := range seen {
			assert.Equal(t, 1, n, "jobs=%d item=%d", jobs, i)
		}
	}
}

func TestParallelizeWithJobsSequential(t *testing.T) {
	calls := 0
	ParallelizeWithJobs(10, 1, func(start, end int) {
		calls++
		assert.Equal(t, 0, start)
		assert.Equal(t, 10, end)
	})
	assert.Equal(t, 1, calls)
}

func TestParallelizeZeroItems(t *testing.T) {
	Parallelize(0, func(start, end int) {
		t.Fatal("fn must not be called")
	})
}
