package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ratchetproto/signalcore/metrics"
)

func TestSubmitReturnsJobResult(t *testing.T) {
	q := New(4, metrics.Noop())
	defer q.Close()

	v, err := q.Submit(context.Background(), "alice", func(ctx context.Context) (any, error) {
		return 42, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, v)
}

func TestSubmitPropagatesJobError(t *testing.T) {
	q := New(4, metrics.Noop())
	defer q.Close()

	wantErr := require.Error
	_, err := q.Submit(context.Background(), "alice", func(ctx context.Context) (any, error) {
		return nil, errBoom
	})
	wantErr(t, err)
}

func TestSameAddressJobsRunInFIFOOrder(t *testing.T) {
	q := New(0, metrics.Noop())
	defer q.Close()

	var mu sync.Mutex
	var order []int

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			_, err := q.Submit(context.Background(), "bob", func(ctx context.Context) (any, error) {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil, nil
			})
			require.NoError(t, err)
		}()
		// Submit is called from distinct goroutines but the worker
		// drains its channel in arrival order once queued; sleeping a
		// hair keeps arrival order deterministic for the assertion.
		time.Sleep(time.Millisecond)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 20)
	for i := 1; i < len(order); i++ {
		require.Less(t, order[i-1], order[i])
	}
}

func TestDistinctAddressesProceedIndependently(t *testing.T) {
	q := New(0, metrics.Noop())
	defer q.Close()

	release := make(chan struct{})
	started := make(chan struct{})

	go q.Submit(context.Background(), "alice", func(ctx context.Context) (any, error) {
		close(started)
		<-release
		return nil, nil
	})
	<-started

	done := make(chan struct{})
	go func() {
		q.Submit(context.Background(), "bob", func(ctx context.Context) (any, error) {
			return nil, nil
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("bob's job blocked behind alice's in-flight job")
	}
	close(release)
}

func TestSubmitRespectsContextCancellation(t *testing.T) {
	q := New(0, metrics.Noop())
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	block := make(chan struct{})
	go q.Submit(context.Background(), "carol", func(ctx context.Context) (any, error) {
		<-block
		return nil, nil
	})

	_, err := q.Submit(ctx, "carol", func(ctx context.Context) (any, error) {
		return nil, nil
	})
	require.ErrorIs(t, err, context.Canceled)
	close(block)
}

type boomError struct{}

func (boomError) Error() string { return "boom" }

var errBoom = boomError{}
