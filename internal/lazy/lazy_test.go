package lazy

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignal_SettlesOnce(t *testing.T) {
	s := NewSignal[int]()

	assert.False(t, s.Settled())

	assert.True(t, s.Resolve(1))
	assert.False(t, s.Resolve(2))
	assert.False(t, s.Fail(errors.New("late")))

	v, err := s.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.True(t, s.Settled())
}

func TestSignal_Fail(t *testing.T) {
	s := NewSignal[string]()
	boom := errors.New("boom")
	require.True(t, s.Fail(boom))

	for i := 0; i < 3; i++ {
		_, err := s.Wait(context.Background())
		assert.ErrorIs(t, err, boom)
	}
}

func TestSignal_ObserversBeforeAndAfter(t *testing.T) {
	s := NewSignal[int]()

	var wg sync.WaitGroup
	results := make([]int, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _ := s.Wait(context.Background())
			results[i] = v
		}(i)
	}

	s.Resolve(42)
	wg.Wait()
	for _, r := range results {
		assert.Equal(t, 42, r)
	}

	v, err := s.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestSignal_WaitCancelled(t *testing.T) {
	s := NewSignal[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	// The signal itself is still pending.
	assert.False(t, s.Settled())
}

func TestValue_ComputesOnce(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	v := NewValue(func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "done", nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := v.Get(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "done", got)
		}()
	}

	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestValue_FailureIsCached(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("fetch failed")
	v := NewValue(func(context.Context) (int, error) {
		calls.Add(1)
		return 0, boom
	})

	for i := 0; i < 3; i++ {
		_, err := v.Get(context.Background())
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestValue_DetachedFromCallerCancellation(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	v := NewValue(func(ctx context.Context) (int, error) {
		close(started)
		<-release
		return 7, ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	v.Start(ctx)
	<-started
	cancel()

	_, err := v.Get(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	got, err := v.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}
