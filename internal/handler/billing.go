package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/thorvaldsen/leasehold/internal/domain"
)

// BillingHandler exposes operator read endpoints over invoices and payments.
type BillingHandler struct {
	invoices domain.InvoiceStore
	payments domain.PaymentStore
}

// NewBillingHandler creates a new BillingHandler instance.
func NewBillingHandler(invoices domain.InvoiceStore, payments domain.PaymentStore) *BillingHandler {
	return &BillingHandler{invoices: invoices, payments: payments}
}

type invoiceResponseBody struct {
	ID               string          `json:"id"`
	InvoiceNumber    string          `json:"invoiceNumber"`
	TenancyID        string          `json:"tenancyId"`
	TenantID         string          `json:"tenantId"`
	LandlordID       string          `json:"landlordId"`
	PropertyID       string          `json:"propertyId"`
	UnitID           string          `json:"unitId"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Status           string          `json:"status"`
	DueDate          time.Time       `json:"dueDate"`
	PaidDate         *time.Time      `json:"paidDate,omitempty"`
	PaymentID        string          `json:"paymentId,omitempty"`
	GatewayReference string          `json:"gatewayReference,omitempty"`
	PDFURL           string          `json:"pdfUrl,omitempty"`
}

// GetInvoice handles GET /api/invoices/{number}.
func (h *BillingHandler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	number := r.PathValue("number")
	if number == "" {
		ErrorResponse(w, r, domain.Invalid("invoice.get", "invoice number is required"))
		return
	}

	inv, err := h.invoices.GetInvoiceByNumber(r.Context(), number)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, invoiceResponseBody{
		ID:               inv.ID.String(),
		InvoiceNumber:    inv.InvoiceNumber,
		TenancyID:        inv.TenancyID.String(),
		TenantID:         inv.TenantID,
		LandlordID:       inv.LandlordID,
		PropertyID:       inv.PropertyID,
		UnitID:           inv.UnitID,
		Amount:           inv.Amount,
		Currency:         inv.Currency,
		Status:           string(inv.Status),
		DueDate:          inv.DueDate,
		PaidDate:         inv.PaidDate,
		PaymentID:        inv.PaymentID,
		GatewayReference: inv.GatewayReference,
		PDFURL:           inv.PDFURL,
	})
}

type paymentResponseBody struct {
	PaymentID        string          `json:"paymentId"`
	InvoiceID        string          `json:"invoiceId,omitempty"`
	TenantID         string          `json:"tenantId,omitempty"`
	LandlordID       string          `json:"landlordId,omitempty"`
	PropertyID       string          `json:"propertyId,omitempty"`
	UnitID           string          `json:"unitId,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Status           string          `json:"status"`
	Gateway          string          `json:"gateway"`
	GatewayReference string          `json:"gatewayReference"`
	PaidAt           time.Time       `json:"paidAt"`
}

// GetPayment handles GET /api/payments/{gateway}/{reference}.
func (h *BillingHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	gateway := domain.Gateway(r.PathValue("gateway"))
	reference := r.PathValue("reference")
	if !gateway.Valid() {
		ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "payment.get", "unsupported gateway: %s", gateway))
		return
	}
	if reference == "" {
		ErrorResponse(w, r, domain.Invalid("payment.get", "gateway reference is required"))
		return
	}

	p, err := h.payments.GetPaymentByReference(r.Context(), gateway, reference)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, paymentResponseBody{
		PaymentID:        p.PaymentID,
		InvoiceID:        p.InvoiceID,
		TenantID:         p.TenantID,
		LandlordID:       p.LandlordID,
		PropertyID:       p.PropertyID,
		UnitID:           p.UnitID,
		Amount:           p.Amount,
		Currency:         p.Currency,
		Status:           p.Status,
		Gateway:          string(p.Gateway),
		GatewayReference: p.GatewayReference,
		PaidAt:           p.PaidAt,
	})
}
