package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskRunner_FIFO(t *testing.T) {
	runner := NewTaskRunner()

	var mu sync.Mutex
	var order []int
	done := make(chan struct{})

	for i := 1; i <= 3; i++ {
		i := i
		ok := runner.Enqueue(func(ctx context.Context) {
			mu.Lock()
			order = append(order, i)
			if len(order) == 3 {
				close(done)
			}
			mu.Unlock()
		})
		require.True(t, ok, "enqueue should succeed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runner.Run(ctx)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tasks did not run")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestTaskRunner_StopDrainsThenRejects(t *testing.T) {
	runner := NewTaskRunner()

	ran := make(chan struct{})
	require.True(t, runner.Enqueue(func(ctx context.Context) { close(ran) }))

	go runner.Run(context.Background())
	runner.Stop()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("queued task should run before stop completes")
	}

	assert.False(t, runner.Enqueue(func(ctx context.Context) {}), "stopped runner rejects tasks")
	assert.Equal(t, 0, runner.Pending())
}

func TestTaskRunner_PanicDoesNotKillWorker(t *testing.T) {
	runner := NewTaskRunner()

	survived := make(chan struct{})
	runner.Enqueue(func(ctx context.Context) { panic("boom") })
	runner.Enqueue(func(ctx context.Context) { close(survived) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runner.Run(ctx)

	select {
	case <-survived:
	case <-time.After(2 * time.Second):
		t.Fatal("worker should survive a panicking task")
	}
}
