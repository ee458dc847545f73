package lock

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"
)

// advisoryClass namespaces the two-key advisory lock so signal locks do not
// collide with other advisory users of the same database.
const advisoryClass int32 = 0x51a0

const postgresRetryBackoff = 50 * time.Millisecond

// PostgresAdvisory takes a session-level advisory lock on a dedicated
// connection. Waiters poll pg_try_advisory_lock and return their connection
// to the pool between attempts, so only the holder pins one while fn queries
// the same pool. The lock is released when fn returns or the connection dies.
type PostgresAdvisory struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgresAdvisory creates the locker. timeout bounds acquisition when the
// caller's context has no deadline. The pool needs room for at least two
// connections: the lock holder's and one for fn.
func NewPostgresAdvisory(db *sql.DB, timeout time.Duration) *PostgresAdvisory {
	return &PostgresAdvisory{db: db, timeout: timeout}
}

func (p *PostgresAdvisory) WithLock(ctx context.Context, signalID int64, fn func(ctx context.Context) error) error {
	if held(ctx, p, signalID) {
		return fn(ctx)
	}

	conn, err := p.acquire(ctx, signalID)
	if err != nil {
		return err
	}
	defer conn.Close()
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if _, err := conn.ExecContext(releaseCtx, `SELECT pg_advisory_unlock($1, $2)`, advisoryClass, advisoryKey(signalID)); err != nil {
			// Drop the connection so the session, and with it the lock, ends.
			_ = conn.Raw(func(any) error { return driver.ErrBadConn })
		}
	}()

	return fn(withHeld(ctx, p, signalID))
}

// acquire returns the connection that holds the lock for signalID.
func (p *PostgresAdvisory) acquire(ctx context.Context, signalID int64) (*sql.Conn, error) {
	waitCtx, cancel := waitContext(ctx, p.timeout)
	defer cancel()

	ticker := time.NewTicker(postgresRetryBackoff)
	defer ticker.Stop()
	for {
		conn, ok, err := p.tryLock(waitCtx, signalID)
		if err != nil {
			if waitCtx.Err() != nil {
				return nil, notAcquired(waitCtx.Err())
			}
			return nil, notAcquired(err)
		}
		if ok {
			return conn, nil
		}
		select {
		case <-waitCtx.Done():
			return nil, notAcquired(waitCtx.Err())
		case <-ticker.C:
		}
	}
}

// tryLock takes a pool connection for one attempt and gives it back unless the
// lock was granted.
func (p *PostgresAdvisory) tryLock(ctx context.Context, signalID int64) (*sql.Conn, bool, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}
	var ok bool
	err = conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1, $2)`, advisoryClass, advisoryKey(signalID)).Scan(&ok)
	if err != nil {
		// The lock may have been granted before the error; discard the session.
		_ = conn.Raw(func(any) error { return driver.ErrBadConn })
		_ = conn.Close()
		return nil, false, err
	}
	if !ok {
		_ = conn.Close()
		return nil, false, nil
	}
	return conn, true, nil
}

// advisoryKey folds the signal id into the int4 key space.
func advisoryKey(signalID int64) int32 {
	return int32(signalID ^ (signalID >> 32))
}
