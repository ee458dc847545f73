package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "signals/pkg/domain-errors"
	"signals/pkg/platform/sentinel"
)

func TestSharded_SerializesSameSignal(t *testing.T) {
	l := NewSharded(time.Second)

	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.WithLock(context.Background(), 42, func(context.Context) error {
				n := inside.Add(1)
				if n > maxSeen.Load() {
					maxSeen.Store(n)
				}
				time.Sleep(time.Millisecond)
				inside.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load())
}

func TestSharded_Reentrant(t *testing.T) {
	l := NewSharded(100 * time.Millisecond)

	calls := 0
	err := l.WithLock(context.Background(), 7, func(ctx context.Context) error {
		calls++
		return l.WithLock(ctx, 7, func(context.Context) error {
			calls++
			return nil
		})
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestSharded_ReturnsFnError(t *testing.T) {
	l := NewSharded(0)
	boom := errors.New("boom")

	err := l.WithLock(context.Background(), 1, func(context.Context) error { return boom })

	assert.ErrorIs(t, err, boom)
}

func TestSharded_TimesOutWhileHeld(t *testing.T) {
	l := NewSharded(0)
	acquired := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = l.WithLock(context.Background(), 9, func(context.Context) error {
			close(acquired)
			<-release
			return nil
		})
	}()
	<-acquired
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.WithLock(ctx, 9, func(context.Context) error {
		t.Fatal("must not run while the lock is held")
		return nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel.ErrLockNotAcquired)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
}

func TestSharded_CancelledContext(t *testing.T) {
	l := NewSharded(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.WithLock(ctx, 3, func(context.Context) error { return nil })

	assert.ErrorIs(t, err, sentinel.ErrLockNotAcquired)
}

func TestShardFor_InRange(t *testing.T) {
	for _, id := range []int64{0, 1, 42, 1 << 40, -1} {
		s := shardFor(id)
		assert.GreaterOrEqual(t, s, 0)
		assert.Less(t, s, numShards)
	}
}
