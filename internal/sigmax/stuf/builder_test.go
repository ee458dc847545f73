package stuf

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sigmaxModels "signals/internal/sigmax/models"
	"signals/internal/signals/models"
	dErrors "signals/pkg/domain-errors"
)

const poison = "<poison>tastes nice</poison>"

var fixedNow = time.Date(2024, 5, 1, 10, 30, 15, 0, time.UTC)

func testSignal() *models.Signal {
	return &models.Signal{
		ID:                42,
		Text:              "Er ligt afval " + poison,
		Priority:          models.PriorityNormal,
		CreatedAt:         time.Date(2024, 4, 30, 8, 0, 0, 0, time.UTC),
		IncidentDateStart: time.Date(2024, 4, 29, 22, 0, 0, 0, time.UTC),
		Location: models.Location{
			Lat:       52.3731081,
			Lon:       4.8932945,
			Stadsdeel: models.StadsdeelCentrum,
			Address: &models.Address{
				OpenbareRuimte: "Dam",
				Huisnummer:     "1",
				Huisletter:     "A",
				Postcode:       "1012JS",
				Woonplaats:     "Amsterdam",
			},
		},
	}
}

func newTestBuilder() *Builder {
	return NewBuilder(
		WithSender(Party{Organisatie: "SIA", Applicatie: "SIA"}),
		WithIDGenerator(func() string { return "doc-1" }),
	)
}

func parse(t *testing.T, out []byte) *etree.Element {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(out))
	require.NotNil(t, doc.Root())
	return doc.Root()
}

func caseText(t *testing.T, root *etree.Element, path string) string {
	t.Helper()
	el := findIn(root, path, NSZKN)
	require.NotNil(t, el, "missing %s", path)
	return el.Text()
}

func TestBuildCaseCreation(t *testing.T) {
	b := newTestBuilder()
	id, _ := sigmaxModels.NewCaseID(42, 2)

	out, err := b.BuildCaseCreation(testSignal(), id, fixedNow)
	require.NoError(t, err)
	root := parse(t, out)

	assert.Equal(t, "SIA-42.02", caseText(t, root, "//object/identificatie"))
	assert.Equal(t, "SIA-42.02 Terugkerend SDC Dam 1A", caseText(t, root, "//object/omschrijving"))
	assert.Equal(t, "20240429", caseText(t, root, "//object/startdatum"))
	assert.Equal(t, "20240430", caseText(t, root, "//object/registratiedatum"))
	assert.Equal(t, "20240503", caseText(t, root, "//object/einddatumGepland"))
	assert.Equal(t, "SIA-42.02", textOf(findIn(root, "//stuurgegevens/referentienummer", NSStUF)))
	assert.Equal(t, "20240501103015", textOf(findIn(root, "//stuurgegevens/tijdstipBericht", NSStUF)))
	assert.Equal(t, "Lk01", textOf(findIn(root, "//stuurgegevens/berichtcode", NSStUF)))

	extras := findAllIn(root, "//extraElementen/extraElement", NSStUF)
	require.Len(t, extras, 2)
	assert.Equal(t, "Ycoordinaat", extras[0].SelectAttrValue("naam", ""))
	assert.Equal(t, "52.3731081", extras[0].Text())
	assert.Equal(t, "Xcoordinaat", extras[1].SelectAttrValue("naam", ""))
	assert.Equal(t, "4.8932945", extras[1].Text())

	addr := findIn(root, "//heeftBetrekkingOp/gerelateerde/adres", NSZKN)
	require.NotNil(t, addr)
	assert.Equal(t, "Dam", textOf(findIn(addr, "gor.openbareRuimteNaam", NSBG)))
	assert.Equal(t, "Amsterdam", textOf(findIn(addr, "wpl.woonplaatsNaam", NSBG)))
	assert.Equal(t, "1012JS", textOf(findIn(addr, "postcode", NSBG)))
}

func TestBuildCaseCreation_PlannedEndDate(t *testing.T) {
	b := newTestBuilder()
	id, _ := sigmaxModels.NewCaseID(42, 1)

	t.Run("high priority adds one day", func(t *testing.T) {
		s := testSignal()
		s.Priority = models.PriorityHigh
		out, err := b.BuildCaseCreation(s, id, fixedNow)
		require.NoError(t, err)
		root := parse(t, out)
		assert.Equal(t, "20240501", caseText(t, root, "//object/einddatumGepland"))
		assert.Contains(t, caseText(t, root, "//object/omschrijving"), " URGENT ")
	})

	t.Run("reporter end date wins", func(t *testing.T) {
		s := testSignal()
		s.Priority = models.PriorityHigh
		end := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
		s.IncidentDateEnd = &end
		out, err := b.BuildCaseCreation(s, id, fixedNow)
		require.NoError(t, err)
		assert.Equal(t, "20240615", caseText(t, parse(t, out), "//object/einddatumGepland"))
	})
}

func TestBuildCaseCreation_OmitsIncompleteAddress(t *testing.T) {
	b := newTestBuilder()
	id, _ := sigmaxModels.NewCaseID(42, 1)

	tests := []struct {
		name    string
		address *models.Address
	}{
		{"no address", nil},
		{"blank street", &models.Address{OpenbareRuimte: "  ", Huisnummer: "1", Woonplaats: "Amsterdam"}},
		{"blank city", &models.Address{OpenbareRuimte: "Dam", Huisnummer: "1", Woonplaats: ""}},
		{"non-numeric house number", &models.Address{OpenbareRuimte: "Dam", Huisnummer: "1-3", Woonplaats: "Amsterdam"}},
		{"missing house number", &models.Address{OpenbareRuimte: "Vondelpark", Woonplaats: "Amsterdam"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSignal()
			s.Location.Address = tt.address
			out, err := b.BuildCaseCreation(s, id, fixedNow)
			require.NoError(t, err)

			root := parse(t, out)
			assert.Nil(t, findIn(root, "//heeftBetrekkingOp", NSZKN))
			assert.Len(t, findAllIn(root, "//extraElementen/extraElement", NSStUF), 2)
		})
	}
}

func TestBuildCaseCreation_UnknownStadsdeel(t *testing.T) {
	s := testSignal()
	s.Location.Stadsdeel = ""
	s.Location.Address = nil
	id, _ := sigmaxModels.NewCaseID(42, 3)

	assert.Equal(t, "SIA-42.03 Terugkerend SD--", Omschrijving(s, id))
}

func TestBuildCaseCreation_Rejects(t *testing.T) {
	b := newTestBuilder()

	_, err := b.BuildCaseCreation(nil, sigmaxModels.CaseID{SignalID: 42, Sequence: 1}, fixedNow)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = b.BuildCaseCreation(testSignal(), sigmaxModels.CaseID{SignalID: 7, Sequence: 1}, fixedNow)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	_, err = b.BuildCaseCreation(testSignal(), sigmaxModels.CaseID{SignalID: 42}, fixedNow)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestBuildDocumentAttach(t *testing.T) {
	b := newTestBuilder()
	id, _ := sigmaxModels.NewCaseID(42, 2)
	pdf := []byte("%PDF-1.3 fake")

	out, err := b.BuildDocumentAttach(testSignal(), id, pdf, fixedNow)
	require.NoError(t, err)
	root := parse(t, out)

	assert.Equal(t, "doc-1", caseText(t, root, "//object/identificatie"))
	assert.Equal(t, "Melding SIA-42", caseText(t, root, "//object/titel"))
	assert.Equal(t, "SIA-42.02", caseText(t, root, "//object/isRelevantVoor/gerelateerde/identificatie"))

	inhoud := findIn(root, "//object/inhoud", NSZKN)
	require.NotNil(t, inhoud)
	assert.Equal(t, "SIA-42.pdf", inhoud.SelectAttrValue("StUF:bestandsnaam", ""))
	assert.Equal(t, "application/pdf", inhoud.SelectAttrValue("mime:contentType", ""))
	decoded, err := base64.StdEncoding.DecodeString(inhoud.Text())
	require.NoError(t, err)
	assert.Equal(t, pdf, decoded)

	_, err = b.BuildDocumentAttach(testSignal(), id, nil, fixedNow)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestBuild_EscapesFreeText(t *testing.T) {
	b := newTestBuilder()
	id, _ := sigmaxModels.NewCaseID(42, 1)
	s := testSignal()
	s.Location.Address.OpenbareRuimte = poison

	creation, err := b.BuildCaseCreation(s, id, fixedNow)
	require.NoError(t, err)
	attach, err := b.BuildDocumentAttach(s, id, []byte(poison), fixedNow)
	require.NoError(t, err)

	for name, out := range map[string][]byte{"creeerZaak": creation, "voegZaakdocumentToe": attach} {
		assert.NotContains(t, string(out), "<poison>", name)
		assert.NotContains(t, string(out), "</poison>", name)
	}
	assert.Contains(t, string(creation), "&lt;poison&gt;")

	root := parse(t, creation)
	assert.Equal(t, poison, textOf(findIn(root, "//adres/gor.openbareRuimteNaam", NSBG)))
}
