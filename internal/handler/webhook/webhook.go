// Package webhook ingests payment gateway callbacks. Signature verification
// over the raw request body is the sole authentication for this boundary.
package webhook

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/thorvaldsen/leasehold/internal/billing"
	"github.com/thorvaldsen/leasehold/internal/domain"
	"github.com/thorvaldsen/leasehold/internal/handler"
	"github.com/thorvaldsen/leasehold/internal/telemetry"
)

// Settler is the settlement pipeline entry point.
type Settler interface {
	HandleSuccessfulPayment(ctx context.Context, ev domain.PaymentEvent) (string, error)
}

// Handler processes one gateway's webhook deliveries. The flow is identical
// for every gateway; only the signature header and acknowledgment body differ.
type Handler struct {
	gateway         billing.Gateway
	settler         Settler
	logger          *slog.Logger
	signatureHeader string
	ackBody         []byte
}

func newHandler(gw billing.Gateway, settler Settler, logger *slog.Logger, signatureHeader string, ackBody string) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		gateway:         gw,
		settler:         settler,
		logger:          logger,
		signatureHeader: signatureHeader,
		ackBody:         []byte(ackBody),
	}
}

// HandleWebhook verifies, parses and settles a webhook delivery.
//
// The raw body is read before anything else: signature schemes hash the exact
// bytes the gateway sent, and a decode/re-encode round trip would break the
// match. Once the signature and shape check out, the handler always ACKs 200;
// settlement failures are logged and absorbed so the gateway does not retry a
// delivery that already passed authentication.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	name := string(h.gateway.Name())

	if r.Method != http.MethodPost {
		handler.MethodNotAllowedResponse(w, r)
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		handler.ErrorResponse(w, r, domain.Invalid("webhook", "error reading request body"))
		return
	}

	if telemetry.Business != nil {
		telemetry.Business.WebhookReceived.WithLabelValues(name).Inc()
	}
	defer func() {
		if telemetry.Business != nil {
			telemetry.Business.WebhookLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())
		}
	}()

	signature := r.Header.Get(h.signatureHeader)
	if signature == "" {
		h.reject(w, r, name, "missing_signature")
		return
	}
	if err := h.gateway.VerifyWebhookSignature(payload, signature); err != nil {
		h.logger.Warn("webhook: signature verification failed",
			"gateway", name, "error", err)
		h.reject(w, r, name, "bad_signature")
		return
	}

	ev, ok, err := h.gateway.ParsePaymentEvent(payload)
	if err != nil {
		h.logger.Warn("webhook: malformed payload",
			"gateway", name, "error", err)
		h.reject(w, r, name, "bad_payload")
		return
	}
	if !ok {
		// Not a payment success. Acknowledge and drop.
		h.ack(w)
		return
	}

	paymentID, err := h.settler.HandleSuccessfulPayment(r.Context(), *ev)
	if err != nil {
		// The delivery is authenticated and well-formed; a retry would only
		// replay the same failure. Log, count, still ACK.
		h.logger.Error("webhook: settlement failed",
			"gateway", name,
			"gateway_reference", ev.GatewayReference,
			"error", err)
		telemetry.CaptureError(err, map[string]interface{}{
			"gateway":           name,
			"gateway_reference": ev.GatewayReference,
		})
		h.ack(w)
		return
	}

	h.logger.Info("webhook: payment settled",
		"gateway", name,
		"gateway_reference", ev.GatewayReference,
		"payment_id", paymentID)
	if telemetry.Business != nil {
		telemetry.Business.WebhookProcessed.WithLabelValues(name, "payment_success").Inc()
	}
	h.ack(w)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request, gateway, reason string) {
	if telemetry.Business != nil {
		telemetry.Business.WebhookRejected.WithLabelValues(gateway, reason).Inc()
	}
	handler.ErrorResponse(w, r, domain.Invalid("webhook", "invalid webhook request"))
}

func (h *Handler) ack(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.ackBody)
}
