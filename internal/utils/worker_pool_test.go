package utils

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkerPool_SingleWorkerPreservesOrder(t *testing.T) {
	pool := NewWorkerPool(1, 16)
	defer pool.Shutdown()

	var mu sync.Mutex
	var got []int
	done := make(chan struct{})

	for i := 0; i < 10; i++ {
		i := i
		assert.True(t, pool.Submit(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}
	pool.Submit(func() { close(done) })
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestWorkerPool_SubmitAfterShutdown(t *testing.T) {
	pool := NewWorkerPool(2, 2)
	pool.Shutdown()
	pool.Shutdown()

	assert.False(t, pool.Submit(func() { t.Error("job ran after shutdown") }))
}
