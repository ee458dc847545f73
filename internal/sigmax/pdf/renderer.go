// Package pdf renders the one-page signal summary attached to every case in
// CityControl.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"

	"signals/internal/signals/models"
	dErrors "signals/pkg/domain-errors"
)

const (
	dateTimeLayout = "02-01-2006 15:04"
	labelWidth     = 45
	lineHeight     = 6
)

var priorityLabels = map[models.Priority]string{
	models.PriorityLow:    "Laag",
	models.PriorityNormal: "Normaal",
	models.PriorityHigh:   "Hoog",
}

// Renderer produces A4 PDFs. The zero value is not usable; call NewRenderer.
type Renderer struct {
	location *time.Location
}

func NewRenderer(loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{location: loc}
}

// Render draws the summary for signal.
func (r *Renderer) Render(ctx context.Context, signal *models.Signal) ([]byte, error) {
	if signal == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "signal is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc := fpdf.New("P", "mm", "A4", "")
	tr := doc.UnicodeTranslatorFromDescriptor("")
	doc.SetTitle(signal.SIAID(), true)
	doc.SetCreator("signals", true)
	doc.SetCreationDate(signal.CreatedAt)
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 16)
	doc.CellFormat(0, 10, signal.SIAID(), "", 1, "L", false, 0, "")
	doc.Ln(2)

	doc.SetFont("Helvetica", "", 10)
	row := func(label, value string) {
		doc.SetFont("Helvetica", "B", 10)
		doc.CellFormat(labelWidth, lineHeight, tr(label), "", 0, "L", false, 0, "")
		doc.SetFont("Helvetica", "", 10)
		doc.MultiCell(0, lineHeight, tr(value), "", "L", false)
	}

	row("Gemeld op", r.format(signal.CreatedAt))
	row("Overlast begonnen", r.format(signal.IncidentDateStart))
	if signal.IncidentDateEnd != nil {
		row("Overlast beëindigd", r.format(*signal.IncidentDateEnd))
	}
	row("Urgentie", priorityLabel(signal.Priority))
	row("Stadsdeel", signal.Location.Stadsdeel)
	if addr := signal.Location.ShortAddressText(); addr != "" {
		if a := signal.Location.Address; a != nil && a.Postcode != "" {
			addr += ", " + a.Postcode
		}
		if a := signal.Location.Address; a != nil && a.Woonplaats != "" {
			addr += " " + a.Woonplaats
		}
		row("Adres", addr)
	}
	row("Coördinaten", coordinates(signal.Location))
	doc.Ln(4)

	doc.SetFont("Helvetica", "B", 12)
	doc.CellFormat(0, 8, "Omschrijving", "", 1, "L", false, 0, "")
	doc.SetFont("Helvetica", "", 10)
	doc.MultiCell(0, lineHeight, tr(signal.Text), "", "L", false)
	doc.Ln(4)

	if len(signal.History) > 0 {
		doc.SetFont("Helvetica", "B", 12)
		doc.CellFormat(0, 8, "Statushistorie", "", 1, "L", false, 0, "")
		for _, st := range signal.History {
			line := r.format(st.CreatedAt) + "  " + string(st.State)
			if st.Text != "" {
				line += ": " + st.Text
			}
			doc.SetFont("Helvetica", "", 10)
			doc.MultiCell(0, lineHeight, tr(line), "", "L", false)
		}
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("render PDF for %s", signal.SIAID()))
	}
	return buf.Bytes(), nil
}

func (r *Renderer) format(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(r.location).Format(dateTimeLayout)
}

func priorityLabel(p models.Priority) string {
	if l, ok := priorityLabels[p]; ok {
		return l
	}
	return string(p)
}

func coordinates(l models.Location) string {
	return strconv.FormatFloat(l.Lat, 'f', 6, 64) + ", " + strconv.FormatFloat(l.Lon, 'f', 6, 64)
}
