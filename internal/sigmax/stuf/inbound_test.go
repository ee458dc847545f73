package stuf

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sigmaxModels "signals/internal/sigmax/models"
)

const statusUpdate = `<?xml version="1.0" encoding="UTF-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/" xmlns:StUF="http://www.egem.nl/StUF/StUF0301" xmlns:ZKN="http://www.egem.nl/StUF/sector/zkn/0310">
  <soap:Body>
    <ZKN:zakLk01>
      <ZKN:stuurgegevens>
        <StUF:berichtcode>Lk01</StUF:berichtcode>
        <StUF:referentienummer>CTC-123</StUF:referentienummer>
      </ZKN:stuurgegevens>
      <ZKN:object StUF:entiteittype="ZAK">
        <ZKN:identificatie> SIA-42.02 </ZKN:identificatie>
        <ZKN:einddatum>20240502</ZKN:einddatum>
        <ZKN:resultaat>
          <ZKN:omschrijving>Er is gehandhaafd</ZKN:omschrijving>
          <ZKN:toelichting></ZKN:toelichting>
        </ZKN:resultaat>
        %s
      </ZKN:object>
    </ZKN:zakLk01>
  </soap:Body>
</soap:Envelope>`

func TestParseStatusUpdate(t *testing.T) {
	heeft := `<ZKN:heeft StUF:entiteittype="ZAKSTT"><ZKN:datumStatusGezet>20240501120000</ZKN:datumStatusGezet></ZKN:heeft>`

	t.Run("datumStatusGezet", func(t *testing.T) {
		u, err := ParseStatusUpdate([]byte(fmt.Sprintf(statusUpdate, heeft)))
		require.NoError(t, err)
		assert.Equal(t, sigmaxModels.StatusUpdate{
			ZaakID:           "SIA-42.02",
			Resultaat:        "Er is gehandhaafd",
			DatumAfgehandeld: "20240501120000",
			ReferentieNummer: "CTC-123",
		}, u)
		assert.Equal(t, "Er is gehandhaafd: Geen reden aangeleverd vanuit THOR", u.StatusText())
	})

	t.Run("falls back to einddatum", func(t *testing.T) {
		u, err := ParseStatusUpdate([]byte(fmt.Sprintf(statusUpdate, "")))
		require.NoError(t, err)
		assert.Equal(t, "20240502", u.DatumAfgehandeld)
	})

	t.Run("not XML", func(t *testing.T) {
		_, err := ParseStatusUpdate([]byte("zaak afgehandeld"))
		assert.Error(t, err)
	})
}

func TestReplies(t *testing.T) {
	b := newTestBuilder()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Bv03 echoes the sequenced case id", func(t *testing.T) {
		out, err := b.BuildBv03(sigmaxModels.CaseID{SignalID: 42, Sequence: 2}, "CTC-123", now)
		require.NoError(t, err)

		ack, err := ParseAcknowledgement(out)
		require.NoError(t, err)
		assert.Equal(t, "SIA-42.02", ack.ReferentieNummer)
		assert.Equal(t, "CTC-123", ack.CrossRefnummer)
	})

	t.Run("Bv03 without crossRef", func(t *testing.T) {
		out, err := b.BuildBv03(sigmaxModels.CaseID{SignalID: 42}, "", now)
		require.NoError(t, err)
		assert.NotContains(t, string(out), "crossRefnummer")
		assert.Contains(t, string(out), "SIA-42<")
	})

	t.Run("Fo03 carries the message", func(t *testing.T) {
		out, err := b.BuildFo03(`Incorrect value for sia_id: "<x>"`, now)
		require.NoError(t, err)
		assert.NotContains(t, string(out), "<x>")

		ack, err := ParseAcknowledgement(out)
		require.Error(t, err)
		assert.Equal(t, BerichtcodeFo03, ack.Berichtcode)
		assert.Equal(t, `Incorrect value for sia_id: "<x>"`, ack.Fault)
	})
}
