package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action names a handoff event.
type Action string

const (
	ActionCaseCreated          Action = "sigmax_case_created"
	ActionSendFailed           Action = "sigmax_send_failed"
	ActionStatusApplied        Action = "sigmax_status_applied"
	ActionStatusFallback       Action = "sigmax_status_fallback"
	ActionRoundtripsBackfilled Action = "sigmax_roundtrips_backfilled"
	ActionStuckFailed          Action = "sigmax_stuck_failed"
)

// Event captures one step of the CityControl handoff for later inspection.
type Event struct {
	ID        uuid.UUID
	Action    Action
	SignalID  int64
	CaseID    string
	Outcome   string
	Detail    string
	RequestID string
	Timestamp time.Time
}
