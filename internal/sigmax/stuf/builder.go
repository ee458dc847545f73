package stuf

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"

	sigmaxModels "signals/internal/sigmax/models"
	"signals/internal/signals/models"
	dErrors "signals/pkg/domain-errors"
)

// stadsdeelCodes maps a stadsdeel to CityControl's own borough codes, which
// differ from the municipality's official ones.
var stadsdeelCodes = map[string]string{
	models.StadsdeelCentrum:   "SDC",
	models.StadsdeelNoord:     "SDN",
	models.StadsdeelNieuwWest: "SDNW",
	models.StadsdeelOost:      "SDO",
	models.StadsdeelWest:      "SDW",
	models.StadsdeelZuid:      "SDZ",
	models.StadsdeelZuidoost:  "SDZO",
	models.StadsdeelWestpoort: "SDWP",
}

const unknownStadsdeelCode = "SD--"

// Builder renders StUF documents. It holds no mutable state and is safe for
// concurrent use.
type Builder struct {
	sender   Party
	location *time.Location
	newID    func() string
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithSender sets the zender block of every message.
func WithSender(p Party) BuilderOption {
	return func(b *Builder) {
		b.sender = p
	}
}

// WithLocation sets the timezone used for StUF dates and timestamps.
func WithLocation(loc *time.Location) BuilderOption {
	return func(b *Builder) {
		if loc != nil {
			b.location = loc
		}
	}
}

// WithIDGenerator overrides document identifier generation.
func WithIDGenerator(fn func() string) BuilderOption {
	return func(b *Builder) {
		b.newID = fn
	}
}

func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		sender:   Party{Organisatie: "SIA", Applicatie: "SIA"},
		location: time.UTC,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BuildCaseCreation renders creeerZaak_Lk01 for a signal under a sequenced case id.
func (b *Builder) BuildCaseCreation(signal *models.Signal, id sigmaxModels.CaseID, now time.Time) ([]byte, error) {
	if err := checkCase(signal, id); err != nil {
		return nil, err
	}

	doc, body := newEnvelope()
	msg := body.CreateElement("ZKN:zakLk01")
	msg.CreateAttr("xmlns:ZKN", NSZKN)
	msg.CreateAttr("xmlns:BG", NSBG)
	msg.CreateAttr("xmlns:StUF", NSStUF)

	b.stuurgegevens(msg, "ZKN:stuurgegevens", id.String(), "ZAK", now)
	parameters(msg)

	obj := msg.CreateElement("ZKN:object")
	obj.CreateAttr("StUF:entiteittype", "ZAK")
	obj.CreateAttr("StUF:sleutelGegevensbeheer", "")
	obj.CreateAttr("StUF:verwerkingssoort", "T")
	addText(obj, "ZKN:identificatie", id.String())
	addText(obj, "ZKN:omschrijving", Omschrijving(signal, id))
	addText(obj, "ZKN:startdatum", b.date(signal.IncidentDateStart))
	addText(obj, "ZKN:registratiedatum", b.date(signal.CreatedAt))
	addText(obj, "ZKN:einddatumGepland", b.date(PlannedEndDate(signal)))
	addText(obj, "ZKN:archiefnominatie", "N")
	addText(obj, "ZKN:zaakniveau", "1")
	addText(obj, "ZKN:deelzakenIndicatie", "N")

	extra := obj.CreateElement("StUF:extraElementen")
	addText(extra, "StUF:extraElement", formatCoordinate(signal.Location.Lat)).CreateAttr("naam", "Ycoordinaat")
	addText(extra, "StUF:extraElement", formatCoordinate(signal.Location.Lon)).CreateAttr("naam", "Xcoordinaat")

	isVan := obj.CreateElement("ZKN:isVan")
	isVan.CreateAttr("StUF:entiteittype", "ZAKZKT")
	isVan.CreateAttr("StUF:verwerkingssoort", "T")
	zkt := isVan.CreateElement("ZKN:gerelateerde")
	zkt.CreateAttr("StUF:entiteittype", "ZKT")
	zkt.CreateAttr("StUF:sleutelOntvangend", "1")
	zkt.CreateAttr("StUF:verwerkingssoort", "T")
	addText(zkt, "ZKN:omschrijving", "Uitvoeren controle")
	addText(zkt, "ZKN:code", "2")

	if AddressComplete(signal.Location.Address) {
		addAddress(obj, signal.Location.Address)
	}

	return serialize(doc)
}

// BuildDocumentAttach renders voegZaakdocumentToe_Lk01 carrying the PDF summary
// of a signal, linked to the case it was created under.
func (b *Builder) BuildDocumentAttach(signal *models.Signal, id sigmaxModels.CaseID, pdf []byte, now time.Time) ([]byte, error) {
	if err := checkCase(signal, id); err != nil {
		return nil, err
	}
	if len(pdf) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "document attach requires a rendered PDF")
	}

	docID := b.newID()
	doc, body := newEnvelope()
	msg := body.CreateElement("ZKN:edcLk01")
	msg.CreateAttr("xmlns:ZKN", NSZKN)
	msg.CreateAttr("xmlns:StUF", NSStUF)
	msg.CreateAttr("xmlns:mime", NSMime)

	b.stuurgegevens(msg, "ZKN:stuurgegevens", docID, "EDC", now)
	parameters(msg)

	obj := msg.CreateElement("ZKN:object")
	obj.CreateAttr("StUF:entiteittype", "EDC")
	obj.CreateAttr("StUF:verwerkingssoort", "T")
	addText(obj, "ZKN:identificatie", docID)
	addText(obj, "ZKN:dct.omschrijving", "Melding")
	addText(obj, "ZKN:creatiedatum", b.date(signal.CreatedAt))
	addNil(obj, "ZKN:ontvangstdatum")
	addText(obj, "ZKN:titel", "Melding "+signal.SIAID())
	addNil(obj, "ZKN:beschrijving")
	addText(obj, "ZKN:formaat", "PDF")
	addText(obj, "ZKN:taal", "NL")
	addNil(obj, "ZKN:versie")
	addText(obj, "ZKN:status", "Definitief")
	addNil(obj, "ZKN:verzenddatum")
	addText(obj, "ZKN:vertrouwelijkAanduiding", "OPENBAAR")
	addText(obj, "ZKN:auteur", "SIA Amsterdam")

	inhoud := addText(obj, "ZKN:inhoud", base64.StdEncoding.EncodeToString(pdf))
	inhoud.CreateAttr("mime:contentType", "application/pdf")
	inhoud.CreateAttr("StUF:bestandsnaam", signal.SIAID()+".pdf")

	rel := obj.CreateElement("ZKN:isRelevantVoor")
	rel.CreateAttr("StUF:entiteittype", "EDCZAK")
	rel.CreateAttr("StUF:verwerkingssoort", "T")
	zaak := rel.CreateElement("ZKN:gerelateerde")
	zaak.CreateAttr("StUF:entiteittype", "ZAK")
	zaak.CreateAttr("StUF:verwerkingssoort", "I")
	addText(zaak, "ZKN:identificatie", id.String())

	return serialize(doc)
}

// Omschrijving is the short case summary shown in CityControl's list view. It
// never includes the free-text description.
func Omschrijving(signal *models.Signal, id sigmaxModels.CaseID) string {
	urgency := "Terugkerend"
	if signal.Priority == models.PriorityHigh {
		urgency = "URGENT"
	}
	code, ok := stadsdeelCodes[signal.Location.Stadsdeel]
	if !ok {
		code = unknownStadsdeelCode
	}
	return strings.TrimSpace(fmt.Sprintf("%s %s %s %s", id, urgency, code, signal.Location.ShortAddressText()))
}

// PlannedEndDate is the reporter's end date when set, otherwise creation plus
// one day for high priority and three days for anything else.
func PlannedEndDate(signal *models.Signal) time.Time {
	if signal.IncidentDateEnd != nil {
		return *signal.IncidentDateEnd
	}
	days := 3
	if signal.Priority == models.PriorityHigh {
		days = 1
	}
	return signal.CreatedAt.AddDate(0, 0, days)
}

// AddressComplete reports whether CityControl can use the address: street and
// city non-blank and an integer house number.
func AddressComplete(a *models.Address) bool {
	if a == nil {
		return false
	}
	if strings.TrimSpace(a.OpenbareRuimte) == "" || strings.TrimSpace(a.Woonplaats) == "" {
		return false
	}
	_, err := strconv.Atoi(strings.TrimSpace(a.Huisnummer))
	return err == nil
}

func addAddress(obj *etree.Element, a *models.Address) {
	rel := obj.CreateElement("ZKN:heeftBetrekkingOp")
	rel.CreateAttr("StUF:entiteittype", "ZAKOBJ")
	rel.CreateAttr("StUF:verwerkingssoort", "T")
	adres := rel.CreateElement("ZKN:gerelateerde").CreateElement("ZKN:adres")
	adres.CreateAttr("StUF:entiteittype", "AOA")
	adres.CreateAttr("StUF:verwerkingssoort", "T")

	addText(adres, "BG:wpl.woonplaatsNaam", strings.TrimSpace(a.Woonplaats))
	addText(adres, "BG:gor.openbareRuimteNaam", strings.TrimSpace(a.OpenbareRuimte))
	addText(adres, "BG:huisnummer", strings.TrimSpace(a.Huisnummer))
	optionalText(adres, "BG:huisletter", a.Huisletter)
	optionalText(adres, "BG:huisnummertoevoeging", a.Huisnummertoevoeging)
	optionalText(adres, "BG:postcode", a.Postcode)
}

func optionalText(parent *etree.Element, tag, value string) {
	if v := strings.TrimSpace(value); v != "" {
		addText(parent, tag, v)
		return
	}
	addNil(parent, tag)
}

func (b *Builder) stuurgegevens(parent *etree.Element, tag, referentie, entiteittype string, now time.Time) {
	sg := parent.CreateElement(tag)
	addText(sg, "StUF:berichtcode", BerichtcodeLk01)
	addParty(sg, "StUF:zender", b.sender)
	addParty(sg, "StUF:ontvanger", CityControl)
	addText(sg, "StUF:referentienummer", referentie)
	addText(sg, "StUF:tijdstipBericht", b.datetime(now))
	addText(sg, "StUF:entiteittype", entiteittype)
}

func parameters(parent *etree.Element) {
	p := parent.CreateElement("ZKN:parameters")
	addText(p, "StUF:mutatiesoort", "T")
	addText(p, "StUF:indicatorOvername", "V")
}

func (b *Builder) date(t time.Time) string {
	return t.In(b.location).Format(dateLayout)
}

func (b *Builder) datetime(t time.Time) string {
	return t.In(b.location).Format(datetimeLayout)
}

func formatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func checkCase(signal *models.Signal, id sigmaxModels.CaseID) error {
	if signal == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "signal is required")
	}
	if id.SignalID != signal.ID {
		return dErrors.New(dErrors.CodeInvariantViolation,
			fmt.Sprintf("case %s does not belong to signal %d", id, signal.ID))
	}
	if !id.HasSequence() {
		return dErrors.New(dErrors.CodeInvalidInput, "outbound case identifiers require a sequence number")
	}
	return nil
}

func serialize(doc *etree.Document) ([]byte, error) {
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "serialize StUF message")
	}
	return out, nil
}
