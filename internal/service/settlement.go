package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/thorvaldsen/leasehold/internal/domain"
	"github.com/thorvaldsen/leasehold/internal/email"
	"github.com/thorvaldsen/leasehold/internal/pdf"
	"github.com/thorvaldsen/leasehold/internal/storage"
	"github.com/thorvaldsen/leasehold/internal/telemetry"
)

// ReceiptRenderer renders a settlement receipt PDF.
type ReceiptRenderer interface {
	Render(r pdf.Receipt) ([]byte, error)
}

// ReceiptNotifier sends the payment-received email to the tenant.
type ReceiptNotifier interface {
	SendReceipt(ctx context.Context, data email.ReceiptData) error
}

// SettlementService turns confirmed gateway payments into durable billing
// state: the paid invoice, the payment record and its enrichments.
//
// The archive, renderer and notifier are optional; a nil dependency skips
// the corresponding enrichment step.
type SettlementService struct {
	invoices  domain.InvoiceStore
	payments  domain.PaymentStore
	units     domain.UnitStore
	reminders domain.ReminderStore
	renderer  ReceiptRenderer
	archive   storage.Storage
	notifier  ReceiptNotifier
	logger    *slog.Logger
	now       func() time.Time
}

// NewSettlementService creates a new SettlementService instance.
func NewSettlementService(
	invoices domain.InvoiceStore,
	payments domain.PaymentStore,
	units domain.UnitStore,
	reminders domain.ReminderStore,
	renderer ReceiptRenderer,
	archive storage.Storage,
	notifier ReceiptNotifier,
	logger *slog.Logger,
) *SettlementService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettlementService{
		invoices:  invoices,
		payments:  payments,
		units:     units,
		reminders: reminders,
		renderer:  renderer,
		archive:   archive,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

// HandleSuccessfulPayment settles a confirmed payment event and returns the
// payment ID.
//
// The pipeline is an ordered saga. Durably recording the payment is the only
// step that must succeed; everything after it is an enrichment that is
// logged and skipped on failure, because the money has already moved and a
// gateway retry must not be provoked. Delivering the same gateway reference
// twice returns the original payment ID without re-running any side effect.
func (s *SettlementService) HandleSuccessfulPayment(ctx context.Context, ev domain.PaymentEvent) (string, error) {
	if !ev.Gateway.Valid() {
		return "", domain.Errorf(domain.EINVALID, "settlement", "unsupported gateway: %s", ev.Gateway)
	}
	if ev.GatewayReference == "" {
		return "", domain.Invalid("settlement", "gateway reference is required")
	}

	// Duplicate delivery: the reference has already been settled.
	if existing, err := s.payments.GetPaymentByReference(ctx, ev.Gateway, ev.GatewayReference); err == nil {
		s.logger.Info("settlement: duplicate delivery, returning original payment",
			"gateway", ev.Gateway,
			"gateway_reference", ev.GatewayReference,
			"payment_id", existing.PaymentID)
		if telemetry.Business != nil {
			telemetry.Business.SettlementsDuplicate.WithLabelValues(string(ev.Gateway)).Inc()
		}
		return existing.PaymentID, nil
	}

	now := s.now().UTC()
	paymentID := domain.NewPaymentID(now)

	// Backfill identity from the invoice and mark it paid. A missing invoice
	// is skipped: the payment is still real and must be recorded.
	inv := s.markInvoicePaid(ctx, &ev, paymentID, now)

	payment := &domain.Payment{
		PaymentID:        paymentID,
		InvoiceID:        ev.InvoiceID,
		TenantID:         ev.TenantID,
		LandlordID:       ev.LandlordID,
		PropertyID:       ev.PropertyID,
		UnitID:           ev.UnitID,
		Amount:           ev.Amount,
		Currency:         ev.Currency,
		Status:           "paid",
		Gateway:          ev.Gateway,
		GatewayReference: ev.GatewayReference,
		PaidAt:           now,
	}

	if err := s.payments.CreatePayment(ctx, payment); err != nil {
		if errors.Is(err, domain.ErrDuplicateReference) {
			// Lost a race with a concurrent delivery of the same reference.
			if existing, lookupErr := s.payments.GetPaymentByReference(ctx, ev.Gateway, ev.GatewayReference); lookupErr == nil {
				if telemetry.Business != nil {
					telemetry.Business.SettlementsDuplicate.WithLabelValues(string(ev.Gateway)).Inc()
				}
				return existing.PaymentID, nil
			}
		}
		if telemetry.Business != nil {
			telemetry.Business.SettlementsFailed.WithLabelValues(string(ev.Gateway)).Inc()
		}
		telemetry.CaptureError(err, map[string]interface{}{
			"gateway":           string(ev.Gateway),
			"gateway_reference": ev.GatewayReference,
		})
		return "", domain.WrapError(err, domain.EINTERNAL, "settlement", "failed to record payment")
	}

	s.logger.Info("settlement: payment recorded",
		"payment_id", paymentID,
		"gateway", ev.Gateway,
		"gateway_reference", ev.GatewayReference,
		"amount", ev.Amount,
		"currency", ev.Currency)

	// Enrichments. Each failure is isolated, logged and absorbed.
	s.writeTenantReceipt(ctx, payment)
	s.updateUnit(ctx, payment)
	s.settleReminders(ctx, &ev, inv)
	pdfBytes, receiptURL := s.archiveReceipt(ctx, payment, inv)
	s.sendReceiptEmail(ctx, &ev, payment, inv, pdfBytes, receiptURL)

	if telemetry.Business != nil {
		telemetry.Business.SettlementsCompleted.WithLabelValues(string(ev.Gateway)).Inc()
		amount, _ := ev.Amount.Float64()
		telemetry.Business.RevenueCollected.WithLabelValues(ev.LandlordID, ev.Currency).Add(amount)
	}
	return paymentID, nil
}

// markInvoicePaid resolves the invoice the event references, backfills the
// event's missing identity fields from it, and transitions it to paid.
// Returns nil when no invoice could be resolved.
func (s *SettlementService) markInvoicePaid(ctx context.Context, ev *domain.PaymentEvent, paymentID string, now time.Time) *domain.Invoice {
	if ev.InvoiceID == "" {
		return nil
	}

	inv, err := s.lookupInvoice(ctx, ev.InvoiceID)
	if err != nil {
		s.logger.Warn("settlement: invoice not found, continuing without it",
			"invoice_id", ev.InvoiceID, "error", err)
		return nil
	}

	*ev = domain.ResolveIdentity(*ev, inv)

	if err := s.invoices.MarkPaid(ctx, inv.ID, paymentID, ev.GatewayReference, now); err != nil {
		// Already paid or cancelled. The money still moved, so the pipeline
		// records the payment regardless; the mismatch is surfaced for review.
		s.logger.Warn("settlement: could not mark invoice paid",
			"invoice_id", inv.ID, "status", inv.Status, "error", err)
		telemetry.CaptureError(err, map[string]interface{}{
			"invoice_id": inv.ID.String(),
			"payment_id": paymentID,
		})
	}
	return inv
}

// lookupInvoice accepts either the invoice UUID or its human-readable number;
// gateway metadata carries whichever the checkout flow had at hand.
func (s *SettlementService) lookupInvoice(ctx context.Context, ref string) (*domain.Invoice, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return s.invoices.GetInvoice(ctx, id)
	}
	return s.invoices.GetInvoiceByNumber(ctx, ref)
}

func (s *SettlementService) writeTenantReceipt(ctx context.Context, p *domain.Payment) {
	if p.TenantID == "" {
		return
	}
	if err := s.payments.CreateTenantReceipt(ctx, p); err != nil {
		s.logger.Error("settlement: failed to write tenant receipt",
			"payment_id", p.PaymentID, "tenant_id", p.TenantID, "error", err)
	}
}

func (s *SettlementService) updateUnit(ctx context.Context, p *domain.Payment) {
	if p.LandlordID == "" || p.PropertyID == "" || p.UnitID == "" {
		return
	}
	err := s.units.RecordUnitPayment(ctx, p.LandlordID, p.PropertyID, p.UnitID, p.PaymentID, p.Amount, p.PaidAt)
	if err != nil {
		s.logger.Warn("settlement: failed to update unit rent status",
			"payment_id", p.PaymentID, "unit_id", p.UnitID, "error", err)
	}
}

// settleReminders closes the pending reminders for the settled invoice, for
// the landlord and the tenant.
func (s *SettlementService) settleReminders(ctx context.Context, ev *domain.PaymentEvent, inv *domain.Invoice) {
	if inv == nil {
		return
	}
	for _, owner := range []string{ev.LandlordID, ev.TenantID} {
		if owner == "" {
			continue
		}
		n, err := s.reminders.MarkRemindersPaid(ctx, owner, inv.ID)
		if err != nil {
			s.logger.Warn("settlement: failed to settle reminders",
				"invoice_id", inv.ID, "owner_id", owner, "error", err)
			continue
		}
		if n > 0 && telemetry.Business != nil {
			telemetry.Business.RemindersSettled.Add(float64(n))
		}
	}
}

// archiveReceipt renders the receipt PDF, stores it, and writes the URL back
// onto the invoice. Returns the rendered bytes and URL for the email step.
func (s *SettlementService) archiveReceipt(ctx context.Context, p *domain.Payment, inv *domain.Invoice) ([]byte, string) {
	if s.renderer == nil || s.archive == nil || inv == nil {
		return nil, ""
	}
	if p.LandlordID == "" || p.PropertyID == "" {
		return nil, ""
	}

	data, err := s.renderer.Render(pdf.Receipt{
		InvoiceNumber:    inv.InvoiceNumber,
		PaymentID:        p.PaymentID,
		Amount:           p.Amount,
		Currency:         p.Currency,
		Gateway:          string(p.Gateway),
		GatewayReference: p.GatewayReference,
		PaidAt:           p.PaidAt,
	})
	if err != nil {
		s.logger.Error("settlement: failed to render receipt PDF",
			"payment_id", p.PaymentID, "error", err)
		if telemetry.Business != nil {
			telemetry.Business.ReceiptPDFFailed.Inc()
		}
		return nil, ""
	}

	key := storage.ReceiptKey(p.LandlordID, p.PropertyID, p.PaymentID)
	url, err := s.archive.Put(ctx, key, bytes.NewReader(data), "application/pdf")
	if err != nil {
		s.logger.Error("settlement: failed to store receipt PDF",
			"payment_id", p.PaymentID, "key", key, "error", err)
		if telemetry.Business != nil {
			telemetry.Business.ReceiptPDFFailed.Inc()
		}
		return data, ""
	}

	if err := s.invoices.SetPDFURL(ctx, inv.ID, url); err != nil {
		s.logger.Warn("settlement: failed to write receipt URL onto invoice",
			"invoice_id", inv.ID, "url", url, "error", err)
	}
	if telemetry.Business != nil {
		telemetry.Business.ReceiptPDFRendered.Inc()
	}
	return data, url
}

func (s *SettlementService) sendReceiptEmail(ctx context.Context, ev *domain.PaymentEvent, p *domain.Payment, inv *domain.Invoice, pdfBytes []byte, receiptURL string) {
	if s.notifier == nil || ev.TenantEmail == "" {
		return
	}

	invoiceNumber := ev.InvoiceID
	if inv != nil {
		invoiceNumber = inv.InvoiceNumber
	}

	err := s.notifier.SendReceipt(ctx, email.ReceiptData{
		TenantEmail:   ev.TenantEmail,
		InvoiceNumber: invoiceNumber,
		PaymentID:     p.PaymentID,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Gateway:       string(p.Gateway),
		PaidAt:        p.PaidAt,
		ReceiptURL:    receiptURL,
		PDF:           pdfBytes,
	})
	if err != nil {
		s.logger.Warn("settlement: failed to send receipt email",
			"payment_id", p.PaymentID, "to", ev.TenantEmail, "error", err)
		if telemetry.Business != nil {
			telemetry.Business.EmailFailed.WithLabelValues("receipt").Inc()
		}
		return
	}
	if telemetry.Business != nil {
		telemetry.Business.EmailSent.WithLabelValues("receipt").Inc()
	}
}
