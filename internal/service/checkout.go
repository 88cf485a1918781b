package service

import (
	"context"
	"log/slog"

	"github.com/thorvaldsen/leasehold/internal/billing"
	"github.com/thorvaldsen/leasehold/internal/domain"
	"github.com/thorvaldsen/leasehold/internal/telemetry"
)

// CheckoutService issues gateway-hosted checkout sessions for rent payments.
type CheckoutService struct {
	gateways billing.Registry
	logger   *slog.Logger
}

// NewCheckoutService creates a new CheckoutService instance.
func NewCheckoutService(gateways billing.Registry, logger *slog.Logger) *CheckoutService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckoutService{gateways: gateways, logger: logger}
}

// CreateSession validates the request and dispatches it to the selected
// gateway. Validation failures and unknown gateways surface as EINVALID;
// gateway call failures surface as EPAYMENT with the gateway's message.
func (s *CheckoutService) CreateSession(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	gw, err := s.gateways.Get(req.Gateway)
	if err != nil {
		return nil, err
	}

	session, err := gw.CreateCheckoutSession(ctx, req)
	if err != nil {
		s.logger.Error("checkout: gateway session creation failed",
			"gateway", req.Gateway, "error", err)
		if telemetry.Business != nil {
			telemetry.Business.CheckoutSessionsFailed.WithLabelValues(string(req.Gateway)).Inc()
		}
		return nil, domain.WrapError(err, domain.EPAYMENT, "checkout.create", domain.ErrorMessage(err))
	}

	s.logger.Info("checkout: session created",
		"gateway", req.Gateway,
		"session_id", session.SessionID,
		"amount", req.Amount,
		"currency", req.Currency)
	if telemetry.Business != nil {
		telemetry.Business.CheckoutSessions.WithLabelValues(string(req.Gateway)).Inc()
	}
	return session, nil
}
