package lock

import (
	"context"
	"time"
)

// numShards spreads signals over independent mutexes so unrelated signals
// rarely contend.
const numShards = 128

// Sharded is the in-process Locker for single-instance deployments.
type Sharded struct {
	shards  [numShards]chan struct{}
	timeout time.Duration
}

// NewSharded creates a Sharded locker. timeout bounds acquisition when the
// caller's context has no deadline; zero selects the default.
func NewSharded(timeout time.Duration) *Sharded {
	s := &Sharded{timeout: timeout}
	for i := range s.shards {
		s.shards[i] = make(chan struct{}, 1)
	}
	return s
}

func (s *Sharded) WithLock(ctx context.Context, signalID int64, fn func(ctx context.Context) error) error {
	if held(ctx, s, signalID) {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return notAcquired(err)
	}

	waitCtx, cancel := waitContext(ctx, s.timeout)
	defer cancel()

	shard := s.shards[shardFor(signalID)]
	select {
	case shard <- struct{}{}:
	case <-waitCtx.Done():
		return notAcquired(waitCtx.Err())
	}
	defer func() { <-shard }()

	return fn(withHeld(ctx, s, signalID))
}

// shardFor hashes the id with FNV-1a.
func shardFor(signalID int64) int {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	v := uint64(signalID)
	for i := 0; i < 8; i++ {
		h ^= uint32(v & 0xff)
		h *= fnvPrime
		v >>= 8
	}
	return int(h % numShards)
}
