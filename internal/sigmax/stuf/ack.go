package stuf

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"

	dErrors "signals/pkg/domain-errors"
)

// Acknowledgement is the synchronous StUF reply to an outbound Lk01.
type Acknowledgement struct {
	Berichtcode      string
	ReferentieNummer string
	CrossRefnummer   string
	// Fault is the faultstring or Fo03 omschrijving when CityControl rejected the message.
	Fault string
}

// OK reports whether the acknowledgement is a Bv03.
func (a *Acknowledgement) OK() bool {
	return a != nil && a.Berichtcode == BerichtcodeBv03
}

// ParseAcknowledgement reads the stuurgegevens of a synchronous reply. The
// returned error is non-nil for unparseable XML, a missing or ambiguous
// berichtcode, and any berichtcode other than Bv03. The acknowledgement is
// returned alongside the error whenever the body parsed.
func ParseAcknowledgement(body []byte) (*Acknowledgement, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "acknowledgement is not valid XML")
	}
	root := doc.Root()
	if root == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "acknowledgement is empty")
	}

	ack := &Acknowledgement{
		ReferentieNummer: strings.TrimSpace(textOf(findIn(root, "//stuurgegevens/referentienummer", NSStUF))),
		CrossRefnummer:   strings.TrimSpace(textOf(findIn(root, "//stuurgegevens/crossRefnummer", NSStUF))),
		Fault:            faultText(root),
	}

	codes := findAllIn(root, "//stuurgegevens/berichtcode", NSStUF)
	switch len(codes) {
	case 0:
		return ack, dErrors.New(dErrors.CodeValidation, "acknowledgement carries no berichtcode")
	case 1:
		ack.Berichtcode = strings.TrimSpace(codes[0].Text())
	default:
		return ack, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("acknowledgement carries %d berichtcode elements", len(codes)))
	}

	if !ack.OK() {
		msg := fmt.Sprintf("acknowledgement berichtcode is %q, expected %s", ack.Berichtcode, BerichtcodeBv03)
		if ack.Fault != "" {
			msg += ": " + ack.Fault
		}
		return ack, dErrors.New(dErrors.CodeValidation, msg)
	}
	return ack, nil
}

func faultText(root *etree.Element) string {
	if fs := root.FindElement("//Fault/faultstring"); fs != nil {
		if s := strings.TrimSpace(fs.Text()); s != "" {
			return s
		}
	}
	return strings.TrimSpace(textOf(findIn(root, "//body/omschrijving", NSStUF)))
}
