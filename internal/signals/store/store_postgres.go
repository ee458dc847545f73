package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"signals/internal/signals/models"
	"signals/pkg/platform/sentinel"
	"signals/pkg/platform/tx"
	"signals/pkg/requestcontext"
)

// PostgresStore persists signals, their status history and notes.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type addressJSON struct {
	OpenbareRuimte       string `json:"openbare_ruimte,omitempty"`
	Huisnummer           string `json:"huisnummer,omitempty"`
	Huisletter           string `json:"huisletter,omitempty"`
	Huisnummertoevoeging string `json:"huisnummer_toevoeging,omitempty"`
	Postcode             string `json:"postcode,omitempty"`
	Woonplaats           string `json:"woonplaats,omitempty"`
}

func (s *PostgresStore) Create(ctx context.Context, signal *models.Signal) error {
	address, err := marshalAddress(signal.Location.Address)
	if err != nil {
		return err
	}
	extra, err := marshalExtra(signal.Status.ExtraProperties)
	if err != nil {
		return err
	}
	if signal.Status.CreatedAt.IsZero() {
		signal.Status.CreatedAt = requestcontext.Now(ctx)
	}

	return tx.Run(ctx, s.db, func(ctx context.Context) error {
		exec := tx.Executor(ctx, s.db)
		query := `
			INSERT INTO signals (text, priority, created_at, incident_date_start, incident_date_end,
				lat, lon, stadsdeel, address, state, status_text, target_api, status_extra, status_created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			RETURNING id
		`
		if signal.ID != 0 {
			query = `
				INSERT INTO signals (id, text, priority, created_at, incident_date_start, incident_date_end,
					lat, lon, stadsdeel, address, state, status_text, target_api, status_extra, status_created_at)
				VALUES ($15, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
				RETURNING id
			`
		}
		args := []any{
			signal.Text, string(signal.Priority), signal.CreatedAt, signal.IncidentDateStart, signal.IncidentDateEnd,
			signal.Location.Lat, signal.Location.Lon, signal.Location.Stadsdeel, address,
			string(signal.Status.State), signal.Status.Text, signal.Status.TargetAPI, extra, signal.Status.CreatedAt,
		}
		if signal.ID != 0 {
			args = append(args, signal.ID)
		}
		if err := exec.QueryRowContext(ctx, query, args...).Scan(&signal.ID); err != nil {
			return fmt.Errorf("insert signal: %w", err)
		}
		return insertHistory(ctx, exec, signal.ID, signal.Status, extra)
	})
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (*models.Signal, error) {
	exec := tx.Executor(ctx, s.db)
	var (
		signal   models.Signal
		priority string
		state    string
		end      sql.NullTime
		address  []byte
		extra    []byte
	)
	err := exec.QueryRowContext(ctx, `
		SELECT id, text, priority, created_at, incident_date_start, incident_date_end,
			lat, lon, stadsdeel, address, state, status_text, target_api, status_extra, status_created_at
		FROM signals WHERE id = $1
	`, id).Scan(
		&signal.ID, &signal.Text, &priority, &signal.CreatedAt, &signal.IncidentDateStart, &end,
		&signal.Location.Lat, &signal.Location.Lon, &signal.Location.Stadsdeel, &address,
		&state, &signal.Status.Text, &signal.Status.TargetAPI, &extra, &signal.Status.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get signal: %w", err)
	}
	signal.Priority = models.Priority(priority)
	signal.Status.State = models.State(state)
	if end.Valid {
		t := end.Time
		signal.IncidentDateEnd = &t
	}
	if signal.Location.Address, err = unmarshalAddress(address); err != nil {
		return nil, err
	}
	if signal.Status.ExtraProperties, err = unmarshalExtra(extra); err != nil {
		return nil, err
	}
	if signal.History, err = s.history(ctx, exec, id); err != nil {
		return nil, err
	}
	return &signal, nil
}

func (s *PostgresStore) history(ctx context.Context, exec tx.DBTX, id int64) ([]models.Status, error) {
	rows, err := exec.QueryContext(ctx, `
		SELECT state, text, target_api, extra_properties, created_at
		FROM signal_statuses WHERE signal_id = $1 ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	defer rows.Close()

	var history []models.Status
	for rows.Next() {
		var (
			st    models.Status
			state string
			extra []byte
		)
		if err := rows.Scan(&state, &st.Text, &st.TargetAPI, &extra, &st.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan status history: %w", err)
		}
		st.State = models.State(state)
		if st.ExtraProperties, err = unmarshalExtra(extra); err != nil {
			return nil, err
		}
		history = append(history, st)
	}
	return history, rows.Err()
}

// TransitionStatus is a conditional UPDATE on the current state; the history
// row is written in the same transaction.
func (s *PostgresStore) TransitionStatus(ctx context.Context, id int64, expected models.State, next models.Status) (bool, error) {
	extra, err := marshalExtra(next.ExtraProperties)
	if err != nil {
		return false, err
	}
	if next.CreatedAt.IsZero() {
		next.CreatedAt = requestcontext.Now(ctx)
	}

	var applied bool
	err = tx.Run(ctx, s.db, func(ctx context.Context) error {
		exec := tx.Executor(ctx, s.db)
		res, err := exec.ExecContext(ctx, `
			UPDATE signals
			SET state = $3, status_text = $4, target_api = $5, status_extra = $6, status_created_at = $7
			WHERE id = $1 AND state = $2
		`, id, string(expected), string(next.State), next.Text, next.TargetAPI, extra, next.CreatedAt)
		if err != nil {
			return fmt.Errorf("transition status: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("transition status rows: %w", err)
		}
		if n == 0 {
			var exists bool
			if err := exec.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM signals WHERE id = $1)`, id).Scan(&exists); err != nil {
				return fmt.Errorf("check signal exists: %w", err)
			}
			if !exists {
				return sentinel.ErrNotFound
			}
			return nil
		}
		applied = true
		return insertHistory(ctx, exec, id, next, extra)
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (s *PostgresStore) AppendNote(ctx context.Context, id int64, text string) error {
	exec := tx.Executor(ctx, s.db)
	res, err := exec.ExecContext(ctx, `
		INSERT INTO signal_notes (signal_id, text, created_by, created_at)
		SELECT id, $2, $3, $4 FROM signals WHERE id = $1
	`, id, text, models.NoteAuthorSigmax, requestcontext.Now(ctx))
	if err != nil {
		return fmt.Errorf("append note: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("append note rows: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Notes(ctx context.Context, id int64) ([]models.Note, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx, `
		SELECT signal_id, text, created_by, created_at FROM signal_notes WHERE signal_id = $1 ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var notes []models.Note
	for rows.Next() {
		var n models.Note
		if err := rows.Scan(&n.SignalID, &n.Text, &n.CreatedBy, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func (s *PostgresStore) ListIDsInState(ctx context.Context, states []models.State, targetAPI string, before time.Time) ([]int64, error) {
	names := make([]string, len(states))
	for i, st := range states {
		names[i] = string(st)
	}
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx, `
		SELECT id FROM signals
		WHERE state = ANY($1) AND target_api = $2 AND status_created_at <= $3
		ORDER BY id
	`, pq.Array(names), targetAPI, before)
	if err != nil {
		return nil, fmt.Errorf("list signals in state: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan signal id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func insertHistory(ctx context.Context, exec tx.DBTX, id int64, st models.Status, extra []byte) error {
	_, err := exec.ExecContext(ctx, `
		INSERT INTO signal_statuses (signal_id, state, text, target_api, extra_properties, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, string(st.State), st.Text, st.TargetAPI, extra, st.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}
	return nil
}

func marshalAddress(a *models.Address) ([]byte, error) {
	if a == nil {
		return nil, nil
	}
	b, err := json.Marshal(addressJSON(*a))
	if err != nil {
		return nil, fmt.Errorf("marshal address: %w", err)
	}
	return b, nil
}

func unmarshalAddress(b []byte) (*models.Address, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var a addressJSON
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("unmarshal address: %w", err)
	}
	addr := models.Address(a)
	return &addr, nil
}

func marshalExtra(extra map[string]string) ([]byte, error) {
	if extra == nil {
		extra = map[string]string{}
	}
	b, err := json.Marshal(extra)
	if err != nil {
		return nil, fmt.Errorf("marshal status metadata: %w", err)
	}
	return b, nil
}

func unmarshalExtra(b []byte) (map[string]string, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var extra map[string]string
	if err := json.Unmarshal(b, &extra); err != nil {
		return nil, fmt.Errorf("unmarshal status metadata: %w", err)
	}
	if len(extra) == 0 {
		return nil, nil
	}
	return extra, nil
}
