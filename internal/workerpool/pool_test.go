package workerpool_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ArunaStorage/aos-server/internal/workerpool"
)

func TestSubmitReturnsFunctionResult(t *testing.T) {
	p := workerpool.New(2)
	got, err := workerpool.Submit(context.Background(), p, func() (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, got)
}

func TestSubmitBoundsConcurrency(t *testing.T) {
	p := workerpool.New(2)
	var running int32
	var maxRunning int32

	release := make(chan struct{})
	started := make(chan struct{}, 4)

	for i := 0; i < 4; i++ {
		go func() {
			_, _ = workerpool.Submit(context.Background(), p, func() (struct{}, error) {
				cur := atomic.AddInt32(&running, 1)
				for {
					old := atomic.LoadInt32(&maxRunning)
					if cur <= old || atomic.CompareAndSwapInt32(&maxRunning, old, cur) {
						break
					}
				}
				started <- struct{}{}
				<-release
				atomic.AddInt32(&running, -1)
				return struct{}{}, nil
			})
		}()
	}

	// Exactly two of the four goroutines can be inside fn at once.
	<-started
	<-started
	select {
	case <-started:
		t.Fatal("a third goroutine entered the pool while it was full")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
}

func TestSubmitReturnsContextErrorWhenCancelledBeforeSlot(t *testing.T) {
	p := workerpool.New(1)
	block := make(chan struct{})
	defer close(block)

	go func() {
		_, _ = workerpool.Submit(context.Background(), p, func() (struct{}, error) {
			<-block
			return struct{}{}, nil
		})
	}()
	time.Sleep(10 * time.Millisecond) // let the first submission occupy the only slot

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := workerpool.Submit(ctx, p, func() (struct{}, error) {
		return struct{}{}, nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
