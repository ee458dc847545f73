package models

import (
	"fmt"
	"regexp"
	"strconv"

	dErrors "signals/pkg/domain-errors"
)

// MaxSequenceNumber is the largest sequence a two-digit case identifier can carry.
const MaxSequenceNumber = 99

var (
	legacyCaseID = regexp.MustCompile(`^\s*SIA-([1-9]\d*)\s*$`)
	caseID       = regexp.MustCompile(`^\s*SIA-([1-9]\d*)\.(\d{2})\s*$`)
)

// CaseID identifies a case in CityControl: SIA-<signal id>[.<sequence>].
// Sequence 0 means the legacy form without a sequence number.
type CaseID struct {
	SignalID int64
	Sequence int
}

// NewCaseID builds a sequenced identifier.
func NewCaseID(signalID int64, sequence int) (CaseID, error) {
	if signalID <= 0 {
		return CaseID{}, dErrors.New(dErrors.CodeInvalidInput, "signal id must be positive")
	}
	if sequence < 1 || sequence > MaxSequenceNumber {
		return CaseID{}, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("sequence number %d out of range", sequence))
	}
	return CaseID{SignalID: signalID, Sequence: sequence}, nil
}

// ParseCaseID accepts SIA-<id> and SIA-<id>.<NN> with surrounding whitespace.
// Leading zeros in the id and a 00 sequence are rejected.
func ParseCaseID(raw string) (CaseID, error) {
	invalid := dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("Incorrect value for sia_id: %q", raw))

	if m := caseID.FindStringSubmatch(raw); m != nil {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return CaseID{}, invalid
		}
		seq, _ := strconv.Atoi(m[2])
		if seq == 0 {
			return CaseID{}, invalid
		}
		return CaseID{SignalID: id, Sequence: seq}, nil
	}
	if m := legacyCaseID.FindStringSubmatch(raw); m != nil {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return CaseID{}, invalid
		}
		return CaseID{SignalID: id}, nil
	}
	return CaseID{}, invalid
}

// HasSequence reports whether the identifier carries a sequence number.
func (c CaseID) HasSequence() bool {
	return c.Sequence > 0
}

// SequenceString is the zero-padded sequence, or "" for legacy identifiers.
func (c CaseID) SequenceString() string {
	if !c.HasSequence() {
		return ""
	}
	return fmt.Sprintf("%02d", c.Sequence)
}

func (c CaseID) String() string {
	if !c.HasSequence() {
		return fmt.Sprintf("SIA-%d", c.SignalID)
	}
	return fmt.Sprintf("SIA-%d.%02d", c.SignalID, c.Sequence)
}
