package models

import (
	"fmt"
	"strings"
	"time"
)

// State is a workflow state of a Signal.
type State string

const (
	StateGemeld              State = "m"
	StateInBehandeling       State = "b"
	StateAfgehandeld         State = "o"
	StateTeVerzenden         State = "ready to send"
	StateVerzonden           State = "sent"
	StateVerzendenMislukt    State = "send failed"
	StateAfgehandeldExtern   State = "done external"
	StateGeannuleerd         State = "a"
	StateVerzoekTotHeropenen State = "reopen requested"
)

// TargetAPISigmax marks a status that hands the signal off to CityControl.
const TargetAPISigmax = "sigmax"

// Priority of a Signal.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Stadsdeel names as stored on a location.
const (
	StadsdeelCentrum   = "A"
	StadsdeelNoord     = "N"
	StadsdeelNieuwWest = "F"
	StadsdeelOost      = "M"
	StadsdeelWest      = "E"
	StadsdeelZuid      = "K"
	StadsdeelZuidoost  = "T"
	StadsdeelWestpoort = "B"
)

// Status is one entry in a Signal's append-only status history.
type Status struct {
	State           State
	Text            string
	TargetAPI       string
	ExtraProperties map[string]string
	CreatedAt       time.Time
}

// Signal is a citizen-reported incident.
type Signal struct {
	ID                int64
	Text              string
	Status            Status
	History           []Status
	Priority          Priority
	Location          Location
	CreatedAt         time.Time
	IncidentDateStart time.Time
	IncidentDateEnd   *time.Time
}

// SIAID is the legacy external identifier, SIA-<id>.
func (s *Signal) SIAID() string {
	return fmt.Sprintf("SIA-%d", s.ID)
}

// IsSigmaxApplicable reports whether the current status asks for a handoff to CityControl.
func (s *Signal) IsSigmaxApplicable() bool {
	return s.Status.State == StateTeVerzenden && s.Status.TargetAPI == TargetAPISigmax
}

// Note is an audit remark attached to a Signal.
type Note struct {
	SignalID  int64
	Text      string
	CreatedBy string
	CreatedAt time.Time
}

// Location is where the incident happened.
type Location struct {
	Lat       float64
	Lon       float64
	Stadsdeel string
	Address   *Address
}

// Address is a postal address; any field may be blank.
type Address struct {
	OpenbareRuimte       string
	Huisnummer           string
	Huisletter           string
	Huisnummertoevoeging string
	Postcode             string
	Woonplaats           string
}

// ShortAddressText renders "street number+letter-addition", or "" without an address.
func (l Location) ShortAddressText() string {
	if l.Address == nil {
		return ""
	}
	a := l.Address
	var b strings.Builder
	b.WriteString(strings.TrimSpace(a.OpenbareRuimte))
	if n := strings.TrimSpace(a.Huisnummer); n != "" {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(n)
		b.WriteString(strings.TrimSpace(a.Huisletter))
		if t := strings.TrimSpace(a.Huisnummertoevoeging); t != "" {
			b.WriteByte('-')
			b.WriteString(t)
		}
	}
	return b.String()
}

// NoteAuthorSigmax is the author recorded on notes written by the CityControl bridge.
const NoteAuthorSigmax = "sigmax"
