package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/thorvaldsen/leasehold/internal/domain"
	"github.com/thorvaldsen/leasehold/internal/service"
)

// TenancyManager is the lease lifecycle surface the HTTP layer needs.
type TenancyManager interface {
	CreateInvite(ctx context.Context, inv *domain.Invite) error
	AcceptInvite(ctx context.Context, token, tenantID string) (*domain.Tenancy, error)
	CloseTenancy(ctx context.Context, id uuid.UUID) (*service.CloseResult, error)
}

// TenancyHandler exposes invite and tenancy lifecycle endpoints.
type TenancyHandler struct {
	tenancies TenancyManager
}

// NewTenancyHandler creates a new TenancyHandler instance.
func NewTenancyHandler(tenancies TenancyManager) *TenancyHandler {
	return &TenancyHandler{tenancies: tenancies}
}

type inviteRequestBody struct {
	LandlordID   string          `json:"landlordId"`
	PropertyID   string          `json:"propertyId"`
	UnitID       string          `json:"unitId"`
	TenantEmail  string          `json:"tenantEmail"`
	RentAmount   decimal.Decimal `json:"rentAmount"`
	Currency     string          `json:"currency"`
	BillingCycle string          `json:"billingCycle"`
	StartDate    *time.Time      `json:"startDate,omitempty"`
}

// CreateInvite handles POST /api/invites.
func (h *TenancyHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowedResponse(w, r)
		return
	}

	var body inviteRequestBody
	if err := decodeJSON(r, &body); err != nil {
		ErrorResponse(w, r, err)
		return
	}

	inv := &domain.Invite{
		LandlordID:   body.LandlordID,
		PropertyID:   body.PropertyID,
		UnitID:       body.UnitID,
		TenantEmail:  body.TenantEmail,
		RentAmount:   body.RentAmount,
		Currency:     body.Currency,
		BillingCycle: domain.BillingCycle(body.BillingCycle),
	}
	if body.StartDate != nil {
		inv.StartDate = *body.StartDate
	}

	if err := h.tenancies.CreateInvite(r.Context(), inv); err != nil {
		ErrorResponse(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"token": inv.Token})
}

type acceptInviteRequestBody struct {
	Token    string `json:"token"`
	TenantID string `json:"tenantId"`
}

type tenancyResponseBody struct {
	ID              string          `json:"id"`
	TenantID        string          `json:"tenantId"`
	LandlordID      string          `json:"landlordId"`
	PropertyID      string          `json:"propertyId"`
	UnitID          string          `json:"unitId"`
	RentAmount      decimal.Decimal `json:"rentAmount"`
	Currency        string          `json:"currency"`
	BillingCycle    string          `json:"billingCycle"`
	Status          string          `json:"status"`
	NextInvoiceDate time.Time       `json:"nextInvoiceDate"`
	StartDate       time.Time       `json:"startDate"`
}

// AcceptInvite handles POST /api/invites/accept.
func (h *TenancyHandler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowedResponse(w, r)
		return
	}

	var body acceptInviteRequestBody
	if err := decodeJSON(r, &body); err != nil {
		ErrorResponse(w, r, err)
		return
	}
	if body.Token == "" {
		ErrorResponse(w, r, domain.Invalid("invite.accept", "token is required"))
		return
	}

	t, err := h.tenancies.AcceptInvite(r.Context(), body.Token, body.TenantID)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, tenancyResponseBody{
		ID:              t.ID.String(),
		TenantID:        t.TenantID,
		LandlordID:      t.LandlordID,
		PropertyID:      t.PropertyID,
		UnitID:          t.UnitID,
		RentAmount:      t.RentAmount,
		Currency:        t.Currency,
		BillingCycle:    string(t.BillingCycle),
		Status:          string(t.Status),
		NextInvoiceDate: t.NextInvoiceDate,
		StartDate:       t.StartDate,
	})
}

type closeTenancyResponseBody struct {
	Closed            bool  `json:"closed"`
	InvoicesCancelled int64 `json:"invoicesCancelled"`
}

// CloseTenancy handles POST /api/tenancies/{id}/close.
func (h *TenancyHandler) CloseTenancy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowedResponse(w, r)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, domain.Invalid("tenancy.close", "invalid tenancy ID"))
		return
	}

	res, err := h.tenancies.CloseTenancy(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, closeTenancyResponseBody{
		Closed:            res.ClosedNow,
		InvoicesCancelled: res.Cancelled,
	})
}
