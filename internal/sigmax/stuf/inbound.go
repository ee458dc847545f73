package stuf

import (
	"strings"

	"github.com/beevik/etree"

	sigmaxModels "signals/internal/sigmax/models"
	dErrors "signals/pkg/domain-errors"
)

// ParseStatusUpdate extracts the fields of an actualiseerZaakstatus_Lk01. The
// handled-at timestamp comes from heeft/datumStatusGezet and falls back to
// einddatum. Missing optional fields come back empty; only a body that does not
// parse as XML is an error.
func ParseStatusUpdate(body []byte) (sigmaxModels.StatusUpdate, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return sigmaxModels.StatusUpdate{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "status update is not valid XML")
	}
	root := doc.Root()
	if root == nil {
		return sigmaxModels.StatusUpdate{}, dErrors.New(dErrors.CodeBadRequest, "status update is empty")
	}

	handled := zkn(root, "//object/heeft/datumStatusGezet")
	if handled == "" {
		handled = zkn(root, "//object/einddatum")
	}

	return sigmaxModels.StatusUpdate{
		ZaakID:           zkn(root, "//object/identificatie"),
		Resultaat:        zkn(root, "//object/resultaat/omschrijving"),
		Reden:            zkn(root, "//object/resultaat/toelichting"),
		DatumAfgehandeld: handled,
		ReferentieNummer: strings.TrimSpace(textOf(findIn(root, "//stuurgegevens/referentienummer", NSStUF))),
	}, nil
}

func zkn(root *etree.Element, path string) string {
	return strings.TrimSpace(textOf(findIn(root, path, NSZKN)))
}
