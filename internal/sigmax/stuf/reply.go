package stuf

import (
	"time"

	"github.com/beevik/etree"

	sigmaxModels "signals/internal/sigmax/models"
)

// BuildBv03 renders the success reply to an actualiseerZaakstatus callback.
// crossRef echoes the inbound referentienummer and is omitted when empty.
func (b *Builder) BuildBv03(id sigmaxModels.CaseID, crossRef string, now time.Time) ([]byte, error) {
	doc, body := newEnvelope()
	msg := body.CreateElement("StUF:Bv03Bericht")
	msg.CreateAttr("xmlns:StUF", NSStUF)

	b.replyHeader(msg, BerichtcodeBv03, id.String(), crossRef, now)
	return serialize(doc)
}

// BuildFo03 renders the fault reply carrying message as the error description.
func (b *Builder) BuildFo03(message string, now time.Time) ([]byte, error) {
	doc, body := newEnvelope()
	fault := body.CreateElement("soap:Fault")
	addText(fault, "faultcode", "soap:Server")
	addText(fault, "faultstring", message)

	msg := fault.CreateElement("detail").CreateElement("StUF:Fo03Bericht")
	msg.CreateAttr("xmlns:StUF", NSStUF)
	b.replyHeader(msg, BerichtcodeFo03, b.newID(), "", now)

	fo := msg.CreateElement("StUF:body")
	addText(fo, "StUF:code", "StUF058")
	addText(fo, "StUF:plek", "server")
	addText(fo, "StUF:omschrijving", message)
	return serialize(doc)
}

func (b *Builder) replyHeader(msg *etree.Element, code, referentie, crossRef string, now time.Time) {
	sg := msg.CreateElement("StUF:stuurgegevens")
	addText(sg, "StUF:berichtcode", code)
	addParty(sg, "StUF:zender", b.sender)
	addParty(sg, "StUF:ontvanger", CityControl)
	addText(sg, "StUF:referentienummer", referentie)
	addText(sg, "StUF:tijdstipBericht", b.datetime(now))
	if crossRef != "" {
		addText(sg, "StUF:crossRefnummer", crossRef)
	}
}
