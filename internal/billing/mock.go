package billing

import (
	"context"

	"github.com/thorvaldsen/leasehold/internal/domain"
)

// MockGateway implements Gateway for testing. Fields configure canned
// responses; call records capture what the code under test passed in.
type MockGateway struct {
	GatewayName domain.Gateway

	Session    *domain.CheckoutSession
	SessionErr error

	VerifyErr error

	Event    *domain.PaymentEvent
	EventOK  bool
	EventErr error

	CreateCalls []domain.CheckoutRequest
	VerifyCalls [][]byte
}

var _ Gateway = (*MockGateway)(nil)

// Name implements Gateway.
func (m *MockGateway) Name() domain.Gateway {
	if m.GatewayName == "" {
		return domain.GatewayStripe
	}
	return m.GatewayName
}

// CreateCheckoutSession implements Gateway.
func (m *MockGateway) CreateCheckoutSession(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	m.CreateCalls = append(m.CreateCalls, req)
	if m.SessionErr != nil {
		return nil, m.SessionErr
	}
	if m.Session != nil {
		return m.Session, nil
	}
	return &domain.CheckoutSession{SessionID: "mock_session", URL: "https://pay.example.com/mock"}, nil
}

// VerifyWebhookSignature implements Gateway.
func (m *MockGateway) VerifyWebhookSignature(payload []byte, signature string) error {
	m.VerifyCalls = append(m.VerifyCalls, payload)
	return m.VerifyErr
}

// ParsePaymentEvent implements Gateway.
func (m *MockGateway) ParsePaymentEvent(payload []byte) (*domain.PaymentEvent, bool, error) {
	if m.EventErr != nil {
		return nil, false, m.EventErr
	}
	return m.Event, m.EventOK, nil
}
