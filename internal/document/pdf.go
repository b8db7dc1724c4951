package document

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// A4 page geometry in points.
const (
	pageHeight = 842.0
	leftMargin = 50.0
	bodyTop    = 160.0
	leading    = 16.0
)

// Signature block geometry, measured from the bottom edge like the layout
// the registrar's office signs off on: slots at fixed columns, image above
// the label, marker text where the image would sit.
const (
	slotBaseline  = 120.0
	slotImageW    = 120.0
	slotImageH    = 50.0
	slotImageLift = 20.0
	slotMarkLift  = 40.0
	slotLabelDrop = 10.0
)

var slotColumns = []float64{80, 250, 420}

// PDFRenderer turns a computed Layout into PDF bytes. Rendering is a pure
// function of the layout: the creation date is pinned so that re-rendering
// the same layout yields byte-identical output.
type PDFRenderer struct {
	creationDate time.Time
}

// NewPDFRenderer constructs a renderer with a fixed creation date.
func NewPDFRenderer(creationDate time.Time) *PDFRenderer {
	if creationDate.IsZero() {
		creationDate = time.Unix(0, 0).UTC()
	}
	return &PDFRenderer{creationDate: creationDate}
}

// Render draws the layout onto a single A4 page.
func (r *PDFRenderer) Render(layout Layout) ([]byte, error) {
	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetCreationDate(r.creationDate)
	pdf.SetModificationDate(r.creationDate)
	// gofpdf emits font catalogs in map order unless told to sort; both the
	// sort and the pinned dates are required for byte-identical output.
	pdf.SetCatalogSort(true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Text(leftMargin, 50, layout.Heading)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Text(leftMargin, 80, layout.Title)
	pdf.Text(leftMargin, 100, layout.SubmittedBy)
	pdf.Text(leftMargin, 120, layout.FinalStatus)

	y := bodyTop
	for _, line := range layout.BodyLines {
		if y > pageHeight-slotBaseline-slotImageLift-slotImageH-leading {
			break
		}
		pdf.Text(leftMargin, y, line)
		y += leading
	}

	for i, slot := range layout.Signatures {
		if i >= len(slotColumns) {
			break
		}
		x := slotColumns[i]

		if slot.Missing {
			pdf.SetFont("Helvetica", "I", 10)
			pdf.SetTextColor(255, 0, 0)
			pdf.Text(x, pageHeight-(slotBaseline+slotMarkLift), "[SIGNATURE MISSING]")
		} else {
			opts := gofpdf.ImageOptions{ImageType: "", ReadDpi: true}
			top := pageHeight - (slotBaseline + slotImageLift + slotImageH)
			pdf.ImageOptions(slot.ImagePath, x, top, slotImageW, slotImageH, false, opts, 0, "")
		}

		pdf.SetFont("Helvetica", "B", 11)
		pdf.SetTextColor(0, 0, 255)
		pdf.Text(x, pageHeight-(slotBaseline-slotLabelDrop), slot.Label)
	}
	pdf.SetTextColor(0, 0, 0)

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render signed document: %w", err)
	}
	return buf.Bytes(), nil
}
