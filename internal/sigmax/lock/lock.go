// Package lock serializes work on a single signal. Sequence allocation and
// the inbound status decision both run under the same per-signal lock, held
// across the outbound network calls.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	dErrors "signals/pkg/domain-errors"
	"signals/pkg/platform/sentinel"
)

// defaultWaitTimeout bounds how long a caller waits for a lock when its
// context has no deadline.
const defaultWaitTimeout = 30 * time.Second

// Locker runs fn while holding the lock for signalID. Nested calls for the
// same signal on the same context run fn directly.
type Locker interface {
	WithLock(ctx context.Context, signalID int64, fn func(ctx context.Context) error) error
}

type heldKey struct{}

// held reports whether ctx already carries the lock for signalID from owner.
func held(ctx context.Context, owner any, signalID int64) bool {
	h, ok := ctx.Value(heldKey{}).(*holding)
	for ; ok && h != nil; h = h.parent {
		if h.owner == owner && h.signalID == signalID {
			return true
		}
	}
	return false
}

type holding struct {
	owner    any
	signalID int64
	parent   *holding
}

func withHeld(ctx context.Context, owner any, signalID int64) context.Context {
	parent, _ := ctx.Value(heldKey{}).(*holding)
	return context.WithValue(ctx, heldKey{}, &holding{owner: owner, signalID: signalID, parent: parent})
}

// waitContext applies the default wait timeout when ctx has no deadline. The
// returned context is only for acquisition; fn runs on the caller's context.
func waitContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	if timeout <= 0 {
		timeout = defaultWaitTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

func notAcquired(err error) error {
	if err == nil || errors.Is(err, sentinel.ErrLockNotAcquired) {
		return dErrors.Wrap(sentinel.ErrLockNotAcquired, dErrors.CodeTimeout, "signal lock not acquired")
	}
	return dErrors.Wrap(fmt.Errorf("%w: %w", sentinel.ErrLockNotAcquired, err), dErrors.CodeTimeout, "signal lock not acquired")
}
