// Package pdf renders payment receipts for settled invoices.
package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

// Receipt is the data rendered onto an invoice receipt.
type Receipt struct {
	InvoiceNumber    string
	PaymentID        string
	Amount           decimal.Decimal
	Currency         string
	Gateway          string
	GatewayReference string
	PaidAt           time.Time
}

// Renderer produces single-page A4 receipt PDFs.
type Renderer struct {
	companyName string
}

// NewRenderer creates a receipt renderer. companyName appears as the
// document heading; empty defaults to "Leasehold".
func NewRenderer(companyName string) *Renderer {
	if companyName == "" {
		companyName = "Leasehold"
	}
	return &Renderer{companyName: companyName}
}

// Render produces the receipt PDF as a byte slice.
func (r *Renderer) Render(rc Receipt) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetTitle(fmt.Sprintf("Receipt %s", rc.PaymentID), false)
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 18)
	doc.Cell(0, 12, r.companyName)
	doc.Ln(16)

	doc.SetFont("Helvetica", "B", 14)
	doc.Cell(0, 10, "Payment Receipt")
	doc.Ln(14)

	rows := [][2]string{
		{"Invoice number", rc.InvoiceNumber},
		{"Payment ID", rc.PaymentID},
		{"Amount paid", fmt.Sprintf("%s %s", rc.Amount.StringFixed(2), strings.ToUpper(rc.Currency))},
		{"Payment method", capitalize(rc.Gateway)},
		{"Gateway reference", rc.GatewayReference},
		{"Paid at", rc.PaidAt.UTC().Format("2 January 2006 15:04 MST")},
	}
	for _, row := range rows {
		doc.SetFont("Helvetica", "B", 11)
		doc.CellFormat(55, 8, row[0], "", 0, "L", false, 0, "")
		doc.SetFont("Helvetica", "", 11)
		doc.CellFormat(0, 8, row[1], "", 1, "L", false, 0, "")
	}

	doc.Ln(10)
	doc.SetFont("Helvetica", "I", 9)
	doc.SetTextColor(120, 120, 120)
	doc.Cell(0, 6, "This receipt confirms the payment above was received in full.")

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render receipt %s: %w", rc.PaymentID, err)
	}
	return buf.Bytes(), nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
