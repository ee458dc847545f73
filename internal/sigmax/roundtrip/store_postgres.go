package roundtrip

import (
	"context"
	"database/sql"
	"fmt"

	"signals/internal/sigmax/models"
	"signals/pkg/platform/tx"
	"signals/pkg/requestcontext"
)

// PostgresStore persists roundtrips in sigmax_roundtrips.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Count(ctx context.Context, signalID int64) (int, error) {
	var n int
	err := tx.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sigmax_roundtrips WHERE signal_id = $1`, signalID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count roundtrips: %w", err)
	}
	return n, nil
}

// Record inserts n rows in one statement.
func (s *PostgresStore) Record(ctx context.Context, signalID int64, n int, backfilled bool) error {
	if n <= 0 {
		return nil
	}
	_, err := tx.Executor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO sigmax_roundtrips (signal_id, backfilled, created_at)
		SELECT $1::bigint, $2::boolean, $3::timestamptz FROM generate_series(1, $4::int)
	`, signalID, backfilled, requestcontext.Now(ctx), n)
	if err != nil {
		return fmt.Errorf("insert roundtrips: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, signalID int64) ([]models.Roundtrip, error) {
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx, `
		SELECT signal_id, backfilled, created_at
		FROM sigmax_roundtrips
		WHERE signal_id = $1
		ORDER BY id
	`, signalID)
	if err != nil {
		return nil, fmt.Errorf("list roundtrips: %w", err)
	}
	defer rows.Close()

	var out []models.Roundtrip
	for rows.Next() {
		var r models.Roundtrip
		if err := rows.Scan(&r.SignalID, &r.Backfilled, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan roundtrip: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
