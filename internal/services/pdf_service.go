package services

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"billbook/internal/models"
	"billbook/internal/money"
	"billbook/internal/obs"
	"billbook/internal/tax"

	"github.com/jung-kurt/gofpdf"
)

type PDFService interface {
	RenderInvoice(invoice *models.Invoice) ([]byte, error)
}

type pdfService struct {
	locale  money.Locale
	terms   []string
	metrics *obs.DomainMetrics
}

// NewPDFService renders amounts with the given locale's grouping. terms are printed under the totals.
func NewPDFService(locale money.Locale, terms []string, metrics *obs.DomainMetrics) PDFService {
	if len(terms) == 0 {
		terms = []string{
			"1. Payment is due by the due date shown above",
			"2. Late payments may incur additional charges",
			"3. This is a computer generated invoice",
		}
	}
	return &pdfService{locale: locale, terms: terms, metrics: metrics}
}

// RenderInvoice draws the stored invoice. Figures come from the invoice verbatim, never recomputed.
func (s *pdfService) RenderInvoice(invoice *models.Invoice) ([]byte, error) {
	start := time.Now()
	defer func() { s.metrics.ObservePDFRender(time.Since(start)) }()

	// core fonts are cp1252, so the rupee sign is written as "Rs."
	f := money.Formatter{Currency: invoice.Currency, Locale: s.locale, ASCII: true}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Invoice "+invoice.InvoiceNumber, false)
	pdf.AddPage()

	marginX := 15.0
	marginY := 15.0
	pdf.SetMargins(marginX, marginY, marginX)
	pdf.SetAutoPageBreak(true, marginY)

	pdf.SetFont("Arial", "B", 16)
	pdf.SetTextColor(33, 37, 41)
	pdf.SetXY(marginX, marginY)
	title := "INVOICE"
	if invoice.GSTConfig.TaxType == tax.TaxTypeGST {
		title = "TAX INVOICE"
	}
	pdf.Cell(0, 10, title)
	pdf.Ln(12)

	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Invoice Number: %s", invoice.InvoiceNumber))
	pdf.Ln(6)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Invoice Date: %s", invoice.InvoiceDate.Format("02-Jan-2006")))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Due Date: %s", invoice.DueDate.Format("02-Jan-2006")))
	pdf.Ln(6)
	if invoice.GSTConfig.PlaceOfSupply != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Place of Supply: %s", invoice.GSTConfig.PlaceOfSupply))
		pdf.Ln(6)
	}
	pdf.Ln(4)

	partyTop := pdf.GetY()
	writeParty(pdf, marginX, partyTop, "BILL FROM:", invoice.BillFrom)
	fromBottom := pdf.GetY()
	writeParty(pdf, 110, partyTop, "BILL TO:", invoice.BillTo)
	if fromBottom > pdf.GetY() {
		pdf.SetY(fromBottom)
	}
	pdf.Ln(6)

	intra := invoice.Summary.IGST == 0 && invoice.GSTConfig.GSTType != tax.GSTTypeInterState
	headers := []string{"#", "Description", "HSN/SAC", "Qty", "Rate", "GST", "Tax", "Amount"}
	colWidths := []float64{8, 54, 20, 14, 24, 12, 22, 26}

	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(240, 240, 240)
	for i, header := range headers {
		pdf.CellFormat(colWidths[i], 7, header, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(7)

	pdf.SetFont("Arial", "", 9)
	for i, item := range invoice.Items {
		row := []string{
			fmt.Sprintf("%d", i+1),
			truncate(item.Description, 34),
			item.HSNSAC,
			money.Round(item.Quantity).String(),
			money.Format(item.Rate, s.locale),
			money.FormatRate(item.GSTRatePercent),
			money.Format(item.TotalTax(), s.locale),
			money.Format(item.Total, s.locale),
		}
		aligns := []string{"C", "L", "C", "R", "R", "R", "R", "R"}
		for j, cell := range row {
			pdf.CellFormat(colWidths[j], 7, cell, "1", 0, aligns[j], false, 0, "")
		}
		pdf.Ln(7)
	}
	pdf.Ln(4)

	labelW, valueW := 140.0, 40.0
	line := func(label string, v float64) {
		pdf.CellFormat(labelW, 6, label, "", 0, "R", false, 0, "")
		pdf.CellFormat(valueW, 6, f.Amount(v), "", 0, "R", false, 0, "")
		pdf.Ln(6)
	}

	pdf.SetFont("Arial", "B", 10)
	line("Subtotal:", invoice.Summary.Subtotal)
	pdf.SetFont("Arial", "", 9)
	if invoice.GSTConfig.TaxType == tax.TaxTypeGST {
		if intra {
			line("CGST:", invoice.Summary.CGST)
			line("SGST:", invoice.Summary.SGST)
		} else {
			line("IGST:", invoice.Summary.IGST)
		}
	}
	if invoice.Summary.Discount != 0 {
		line("Discount:", -invoice.Summary.Discount)
	}
	if invoice.Summary.AdditionalCharges != 0 {
		line("Additional Charges:", invoice.Summary.AdditionalCharges)
	}

	pdf.SetFont("Arial", "B", 11)
	pdf.SetTextColor(220, 20, 60)
	line("GRAND TOTAL:", invoice.Summary.GrandTotal)
	pdf.SetTextColor(33, 37, 41)
	pdf.Ln(4)

	if strings.TrimSpace(invoice.Notes) != "" {
		pdf.SetFont("Arial", "B", 9)
		pdf.Cell(0, 6, "Notes:")
		pdf.Ln(6)
		pdf.SetFont("Arial", "", 8)
		pdf.MultiCell(0, 5, invoice.Notes, "", "L", false)
		pdf.Ln(2)
	}

	pdf.SetFont("Arial", "B", 9)
	pdf.Cell(0, 6, "Terms & Conditions:")
	pdf.Ln(6)
	pdf.SetFont("Arial", "", 8)
	for _, term := range s.terms {
		pdf.Cell(0, 5, term)
		pdf.Ln(5)
	}

	pdf.Ln(8)
	pdf.SetFont("Arial", "I", 8)
	pdf.SetTextColor(128, 128, 128)
	pdf.Cell(0, 5, "Thank you for your business!")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func writeParty(pdf *gofpdf.Fpdf, x, y float64, heading string, p models.Party) {
	pdf.SetXY(x, y)
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(80, 6, heading)
	pdf.Ln(6)
	pdf.SetFont("Arial", "", 9)

	lines := []string{p.Name, p.Address, p.State}
	if p.GSTIN != "" {
		lines = append(lines, "GSTIN: "+p.GSTIN)
	}
	if p.Email != "" {
		lines = append(lines, p.Email)
	}
	if p.Phone != "" {
		lines = append(lines, p.Phone)
	}
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		pdf.SetX(x)
		pdf.Cell(80, 5, truncate(l, 48))
		pdf.Ln(5)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
