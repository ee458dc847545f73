package service

import (
	"fmt"

	"signals/internal/signals/models"
)

const (
	sendFailedText = "Verzending van melding naar THOR is mislukt."

	// legacySequence stands in for the sequence number in fault texts about
	// identifiers without one.
	legacySequence = "-"
)

func sendSucceededText(caseID string) string {
	return fmt.Sprintf("Verzending van melding naar THOR is gelukt onder nummer %s.", caseID)
}

func stuckText(minutes int) string {
	return fmt.Sprintf("Melding stond langer dan %d minuten op TE_VERZENDEN. Mislukt", minutes)
}

func notFoundText(zaakID string) string {
	return fmt.Sprintf("Melding met sia_id %s niet gevonden.", zaakID)
}

func notSentText(zaakID, sequence string) string {
	if sequence == "" {
		sequence = legacySequence
	}
	return fmt.Sprintf("Melding met zaak identificatie %s en volgnummer %s was niet in verzonden staat in SIA.", zaakID, sequence)
}

func notReadyText(state models.State, targetAPI string) string {
	if targetAPI == "" {
		targetAPI = "-"
	}
	return fmt.Sprintf("status %s/%s is not ready for sigmax", state, targetAPI)
}
