package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thorvaldsen/leasehold/internal/domain"
	"github.com/thorvaldsen/leasehold/internal/service"
)

type mockTenancyManager struct {
	invites     []*domain.Invite
	tenancy     *domain.Tenancy
	closeResult *service.CloseResult
	closedIDs   []uuid.UUID
	err         error
}

func (m *mockTenancyManager) CreateInvite(ctx context.Context, inv *domain.Invite) error {
	if m.err != nil {
		return m.err
	}
	inv.Token = "tok-issued"
	m.invites = append(m.invites, inv)
	return nil
}

func (m *mockTenancyManager) AcceptInvite(ctx context.Context, token, tenantID string) (*domain.Tenancy, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.tenancy, nil
}

func (m *mockTenancyManager) CloseTenancy(ctx context.Context, id uuid.UUID) (*service.CloseResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.closedIDs = append(m.closedIDs, id)
	return m.closeResult, nil
}

func TestCreateInviteHandler(t *testing.T) {
	svc := &mockTenancyManager{}
	h := NewTenancyHandler(svc)

	body := `{
		"landlordId": "L1",
		"propertyId": "P1",
		"unitId": "U1",
		"tenantEmail": "tenant@example.com",
		"rentAmount": "100000",
		"currency": "NGN",
		"billingCycle": "monthly"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/invites", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.CreateInvite(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "tok-issued", resp["token"])

	require.Len(t, svc.invites, 1)
	assert.Equal(t, domain.CycleMonthly, svc.invites[0].BillingCycle)
	assert.True(t, svc.invites[0].RentAmount.Equal(decimal.NewFromInt(100000)))
}

func TestAcceptInviteHandler(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	svc := &mockTenancyManager{
		tenancy: &domain.Tenancy{
			ID:              uuid.New(),
			TenantID:        "T1",
			LandlordID:      "L1",
			RentAmount:      decimal.NewFromInt(100000),
			Currency:        "NGN",
			BillingCycle:    domain.CycleMonthly,
			Status:          domain.TenancyActive,
			NextInvoiceDate: start,
			StartDate:       start,
		},
	}
	h := NewTenancyHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/invites/accept",
		strings.NewReader(`{"token": "tok-1", "tenantId": "T1"}`))
	rec := httptest.NewRecorder()
	h.AcceptInvite(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"active"`)
	assert.Contains(t, rec.Body.String(), `"tenantId":"T1"`)
}

func TestAcceptInviteHandlerMissingToken(t *testing.T) {
	h := NewTenancyHandler(&mockTenancyManager{})

	req := httptest.NewRequest(http.MethodPost, "/api/invites/accept",
		strings.NewReader(`{"tenantId": "T1"}`))
	rec := httptest.NewRecorder()
	h.AcceptInvite(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAcceptInviteHandlerRedeemedToken(t *testing.T) {
	h := NewTenancyHandler(&mockTenancyManager{err: domain.ErrInviteRedeemed})

	req := httptest.NewRequest(http.MethodPost, "/api/invites/accept",
		strings.NewReader(`{"token": "tok-1", "tenantId": "T1"}`))
	rec := httptest.NewRecorder()
	h.AcceptInvite(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCloseTenancyHandler(t *testing.T) {
	svc := &mockTenancyManager{closeResult: &service.CloseResult{ClosedNow: true, Cancelled: 2}}
	h := NewTenancyHandler(svc)

	id := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/tenancies/"+id.String()+"/close", nil)
	req.SetPathValue("id", id.String())
	rec := httptest.NewRecorder()
	h.CloseTenancy(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"closed":true`)
	assert.Contains(t, rec.Body.String(), `"invoicesCancelled":2`)
	require.Len(t, svc.closedIDs, 1)
	assert.Equal(t, id, svc.closedIDs[0])
}

func TestCloseTenancyHandlerBadID(t *testing.T) {
	h := NewTenancyHandler(&mockTenancyManager{})

	req := httptest.NewRequest(http.MethodPost, "/api/tenancies/not-a-uuid/close", nil)
	req.SetPathValue("id", "not-a-uuid")
	rec := httptest.NewRecorder()
	h.CloseTenancy(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
