package models

import (
	"strings"
)

// Status metadata keys stored with an externally-handled status.
const (
	ExtraDatumAfgehandeld = "sigmax_datum_afgehandeld"
	ExtraResultaat        = "sigmax_resultaat"
	ExtraReden            = "sigmax_reden"
)

const (
	noReason          = "Geen reden aangeleverd vanuit THOR"
	noResult          = "Geen resultaat aangeleverd vanuit THOR"
	defaultHandled    = "Melding is afgehandeld door THOR."
	fallbackNoteIntro = "Zaak status update ontvangen van CityControl terwijl SIA melding niet in verzonden staat was."
)

// StatusUpdate holds the fields of an inbound actualiseerZaakstatus message.
type StatusUpdate struct {
	ZaakID           string
	Resultaat        string
	Reden            string
	DatumAfgehandeld string
	// ReferentieNummer is the sender's message reference, echoed as crossRefnummer.
	ReferentieNummer string
}

// StatusText composes the text for the new status from result and reason.
func (u StatusUpdate) StatusText() string {
	result := strings.TrimSpace(u.Resultaat)
	reason := strings.TrimSpace(u.Reden)
	switch {
	case result != "" && reason != "":
		return result + ": " + reason
	case result != "":
		return result + ": " + noReason
	case reason != "":
		return noResult + ": " + reason
	default:
		return defaultHandled
	}
}

// Metadata is stored on the new status as-is.
func (u StatusUpdate) Metadata() map[string]string {
	return map[string]string{
		ExtraDatumAfgehandeld: u.DatumAfgehandeld,
		ExtraResultaat:        u.Resultaat,
		ExtraReden:            u.Reden,
	}
}

// FallbackNoteText is the note appended when the signal was not in the sent state.
func (u StatusUpdate) FallbackNoteText() string {
	return fallbackNoteIntro + "\n\n " + u.StatusText()
}
