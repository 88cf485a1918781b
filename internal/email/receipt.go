package email

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/thorvaldsen/leasehold/internal/domain"
)

// ReceiptData carries everything the receipt notification renders.
type ReceiptData struct {
	TenantEmail      string
	InvoiceNumber    string
	PaymentID        string
	Amount           decimal.Decimal
	Currency         string
	Gateway          string
	PaidAt           time.Time
	ReceiptURL       string // optional hosted PDF link
	PDF              []byte // optional attachment
}

// ReceiptMailer composes and sends the payment-received notification to the
// tenant after settlement.
type ReceiptMailer struct {
	sender Sender
	from   string
}

// NewReceiptMailer creates a receipt mailer sending from the given address.
func NewReceiptMailer(sender Sender, from string) *ReceiptMailer {
	return &ReceiptMailer{sender: sender, from: from}
}

// SendReceipt sends the receipt email. The settlement pipeline treats a
// failure here as non-fatal.
func (m *ReceiptMailer) SendReceipt(ctx context.Context, data ReceiptData) error {
	if data.TenantEmail == "" {
		return domain.Invalid("email.receipt", "tenant email is required")
	}

	amount := fmt.Sprintf("%s %s", data.Amount.StringFixed(2), strings.ToUpper(data.Currency))
	paidAt := data.PaidAt.UTC().Format("2 January 2006")

	text := fmt.Sprintf(
		"We received your rent payment of %s on %s.\n\n"+
			"Invoice: %s\nPayment reference: %s\n",
		amount, paidAt, data.InvoiceNumber, data.PaymentID)
	if data.ReceiptURL != "" {
		text += fmt.Sprintf("\nYour receipt: %s\n", data.ReceiptURL)
	}

	html := fmt.Sprintf(
		"<p>We received your rent payment of <strong>%s</strong> on %s.</p>"+
			"<p>Invoice: %s<br>Payment reference: %s</p>",
		amount, paidAt, data.InvoiceNumber, data.PaymentID)
	if data.ReceiptURL != "" {
		html += fmt.Sprintf(`<p><a href="%s">Download your receipt</a></p>`, data.ReceiptURL)
	}

	msg := &Email{
		To:       []string{data.TenantEmail},
		From:     m.from,
		Subject:  fmt.Sprintf("Payment received for invoice %s", data.InvoiceNumber),
		TextBody: text,
		HTMLBody: html,
	}
	if len(data.PDF) > 0 {
		msg.Attachments = append(msg.Attachments, Attachment{
			Filename:    fmt.Sprintf("%s.pdf", data.PaymentID),
			ContentType: "application/pdf",
			Content:     data.PDF,
		})
	}

	_, err := m.sender.Send(ctx, msg)
	return err
}
