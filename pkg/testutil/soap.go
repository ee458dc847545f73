package testutil

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StatusUpdate describes an inbound actualiseerZaakstatus_Lk01 for tests.
type StatusUpdate struct {
	ZaakID           string
	ReferentieNummer string
	Resultaat        string
	Reden            string
	DatumStatusGezet string
	Einddatum        string
}

// StatusUpdateEnvelope renders u as CityControl would post it. Empty dates
// are left out of the message.
func StatusUpdateEnvelope(u StatusUpdate) []byte {
	if u.ReferentieNummer == "" {
		u.ReferentieNummer = "CTC-1"
	}
	var extra strings.Builder
	if u.Einddatum != "" {
		fmt.Fprintf(&extra, "\n        <ZKN:einddatum>%s</ZKN:einddatum>", u.Einddatum)
	}
	heeft := ""
	if u.DatumStatusGezet != "" {
		heeft = fmt.Sprintf("\n        <ZKN:heeft><ZKN:datumStatusGezet>%s</ZKN:datumStatusGezet></ZKN:heeft>", u.DatumStatusGezet)
	}
	return []byte(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/" xmlns:StUF="http://www.egem.nl/StUF/StUF0301" xmlns:ZKN="http://www.egem.nl/StUF/sector/zkn/0310">
  <soap:Body>
    <ZKN:zakLk01>
      <ZKN:stuurgegevens><StUF:referentienummer>%s</StUF:referentienummer></ZKN:stuurgegevens>
      <ZKN:object>
        <ZKN:identificatie>%s</ZKN:identificatie>%s
        <ZKN:resultaat><ZKN:omschrijving>%s</ZKN:omschrijving><ZKN:toelichting>%s</ZKN:toelichting></ZKN:resultaat>%s
      </ZKN:object>
    </ZKN:zakLk01>
  </soap:Body>
</soap:Envelope>`, u.ReferentieNummer, u.ZaakID, extra.String(), u.Resultaat, u.Reden, heeft))
}

// NewSOAPRequest builds a POST with the given SOAPAction. An empty action
// leaves the header out.
func NewSOAPRequest(t *testing.T, path, action string, body []byte) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	if action != "" {
		req.Header.Set("SOAPAction", action)
	}
	return req
}

// DoRequest executes the request against the handler and returns the recorder.
func DoRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// ReadBody returns the response body.
func ReadBody(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	return string(body)
}

// AssertBv03 checks for an acknowledgement of the given case.
func AssertBv03(t *testing.T, rr *httptest.ResponseRecorder, caseID string) {
	t.Helper()
	assert.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Bv03Bericht")
	assert.Contains(t, body, caseID)
}

// AssertFo03 checks for a SOAP fault carrying message.
func AssertFo03(t *testing.T, rr *httptest.ResponseRecorder, message string) {
	t.Helper()
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Fo03Bericht")
	assert.Contains(t, body, message)
}
