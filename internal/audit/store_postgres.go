package audit

import (
	"context"
	"database/sql"
	"fmt"

	"signals/pkg/platform/tx"
)

// PostgresStore writes audit events to sigmax_audit_events. Inside a
// transaction in ctx the event commits or rolls back with it.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	_, err := tx.Executor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO sigmax_audit_events (id, action, signal_id, case_id, outcome, detail, request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, event.ID, string(event.Action), event.SignalID, event.CaseID, event.Outcome, event.Detail, event.RequestID, event.Timestamp)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListBySignal(ctx context.Context, signalID int64) ([]Event, error) {
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx, `
		SELECT id, action, signal_id, case_id, outcome, detail, request_id, created_at
		FROM sigmax_audit_events
		WHERE signal_id = $1
		ORDER BY created_at, id
	`, signalID)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e      Event
			action string
		)
		if err := rows.Scan(&e.ID, &action, &e.SignalID, &e.CaseID, &e.Outcome, &e.Detail, &e.RequestID, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Action = Action(action)
		out = append(out, e)
	}
	return out, rows.Err()
}
