package interfaces

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"broker-pricing/internal/pricing/application"
	pricing "broker-pricing/internal/pricing/domain"
)

// PDFContentType is the MIME type of the price summary.
const PDFContentType = "application/pdf"

// BuildPriceSummaryPDF renders a printable summary of a priced session: one line
// per meter with the annual cost of each quoted term, then the warnings.
func BuildPriceSummaryPDF(session *application.Session, out application.BrokerOutput) ([]byte, error) {
	if session == nil {
		return nil, errors.New("price summary: nil session")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Broker Price Summary")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Company: %s", session.CompanyName)))
	pdf.Ln(5)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Company Reg: %s", session.CompanyReg)))
	pdf.Ln(5)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Category: %s", session.Category)))
	pdf.Ln(5)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Source: %s", session.Source)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", session.UpdatedAt.Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(60, 6, "MPXN", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Type", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "EAC (kWh)", "1", 0, "C", false, 0, "")
	for _, term := range pricing.ContractTerms {
		pdf.CellFormat(45, 6, tr(fmt.Sprintf("Annual Cost %s (£)", term.Suffix())), "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, p := range out.Priced {
		rec := p.Record
		pdf.CellFormat(60, 6, tr(rec.MeterID), "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 6, string(rec.MeterType), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.0f", rec.EAC), "1", 0, "R", false, 0, "")
		for _, term := range pricing.ContractTerms {
			pdf.CellFormat(45, 6, costCell(p, term), "1", 0, "R", false, 0, "")
		}
		pdf.Ln(-1)
	}

	if !out.Report.Empty() {
		pdf.Ln(6)
		pdf.SetFont("Arial", "B", 10)
		pdf.Cell(0, 6, fmt.Sprintf("Warnings (%d)", len(out.Report.Warnings)))
		pdf.Ln(6)
		pdf.SetFont("Arial", "", 9)
		for _, w := range out.Report.Warnings {
			line := string(w.Kind)
			if w.SourceRow > 0 {
				line = fmt.Sprintf("row %d: %s", w.SourceRow, line)
			}
			if w.MeterID != "" {
				line += " " + w.MeterID
			}
			if w.Term != 0 {
				line += " " + w.Term.Suffix()
			}
			pdf.MultiCell(0, 5, tr(line+" - "+w.Detail), "", "L", false)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func costCell(p application.PricedRecord, term pricing.ContractTerm) string {
	pt, ok := p.Terms[term]
	if !ok {
		return ""
	}
	if !pt.OK() {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", pricing.RoundCurrency(pt.Result.TAC))
}
