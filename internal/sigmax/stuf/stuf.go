// Package stuf renders and parses the StUF 0301 zaak messages exchanged with
// CityControl: creeerZaak and voegZaakdocumentToe going out, the synchronous
// Bv03/Fo03 acknowledgements coming back, and the asynchronous
// actualiseerZaakstatus callback with its Bv03/Fo03 replies.
//
// All documents are built as element trees, so interpolated text is escaped on
// serialization.
package stuf

import (
	"github.com/beevik/etree"
)

// XML namespaces.
const (
	NSSoap = "http://schemas.xmlsoap.org/soap/envelope/"
	NSStUF = "http://www.egem.nl/StUF/StUF0301"
	NSZKN  = "http://www.egem.nl/StUF/sector/zkn/0310"
	NSBG   = "http://www.egem.nl/StUF/sector/bg/0310"
	NSXSI  = "http://www.w3.org/2001/XMLSchema-instance"
	NSMime = "http://www.w3.org/2005/05/xmlmime"
)

// SOAPAction header values. The surrounding quotes are part of the value.
const (
	ActionCreeerZaak            = `"http://www.egem.nl/StUF/sector/zkn/0310/CreeerZaak_Lk01"`
	ActionVoegZaakdocumentToe   = `"http://www.egem.nl/StUF/sector/zkn/0310/VoegZaakdocumentToe_Lk01"`
	ActionActualiseerZaakstatus = `"http://www.egem.nl/StUF/sector/zkn/0310/actualiseerZaakstatus_Lk01"`
)

// StUF message codes.
const (
	BerichtcodeLk01 = "Lk01"
	BerichtcodeBv03 = "Bv03"
	BerichtcodeFo03 = "Fo03"
)

const (
	datetimeLayout = "20060102150405"
	dateLayout     = "20060102"
)

// Party identifies a StUF sender or receiver.
type Party struct {
	Organisatie string
	Applicatie  string
}

// CityControl is the receiving party of every message this bridge sends.
var CityControl = Party{Organisatie: "SMX", Applicatie: "CTC"}

func newEnvelope() (*etree.Document, *etree.Element) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	env := doc.CreateElement("soap:Envelope")
	env.CreateAttr("xmlns:soap", NSSoap)
	env.CreateAttr("xmlns:xsi", NSXSI)
	return doc, env.CreateElement("soap:Body")
}

func addText(parent *etree.Element, tag, text string) *etree.Element {
	el := parent.CreateElement(tag)
	el.SetText(text)
	return el
}

func addNil(parent *etree.Element, tag string) *etree.Element {
	el := parent.CreateElement(tag)
	el.CreateAttr("StUF:noValue", "geenWaarde")
	el.CreateAttr("xsi:nil", "true")
	return el
}

func addParty(parent *etree.Element, tag string, p Party) {
	el := parent.CreateElement(tag)
	addText(el, "StUF:organisatie", p.Organisatie)
	addText(el, "StUF:applicatie", p.Applicatie)
}

// findIn returns the first element matching path whose namespace is ns.
func findIn(root *etree.Element, path, ns string) *etree.Element {
	for _, el := range root.FindElements(path) {
		if el.NamespaceURI() == ns {
			return el
		}
	}
	return nil
}

// findAllIn returns every element matching path whose namespace is ns.
func findAllIn(root *etree.Element, path, ns string) []*etree.Element {
	var out []*etree.Element
	for _, el := range root.FindElements(path) {
		if el.NamespaceURI() == ns {
			out = append(out, el)
		}
	}
	return out
}

func textOf(el *etree.Element) string {
	if el == nil {
		return ""
	}
	return el.Text()
}
