package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/kavexa/storefront/internal/middleware"
	"github.com/kavexa/storefront/internal/payment"
)

// maxCallbackBody bounds webhook request bodies.
const maxCallbackBody = 1 << 20

// WebhookHandlers holds dependencies for provider callback handlers.
// Every handler follows the same pipeline: read the raw body, verify
// the signature with the owning adapter, parse the verified body, then
// hand the canonical event to the reconciler. Nothing is read from or
// written to storage before verification passes.
type WebhookHandlers struct {
	gateways   payment.Registry
	reconciler *payment.Reconciler
}

// NewWebhookHandlers creates a new WebhookHandlers instance.
func NewWebhookHandlers(gateways payment.Registry, reconciler *payment.Reconciler) *WebhookHandlers {
	return &WebhookHandlers{
		gateways:   gateways,
		reconciler: reconciler,
	}
}

// HandleStripe processes Stripe webhook deliveries.
// POST /webhooks/stripe
func (h *WebhookHandlers) HandleStripe(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, payment.ProviderStripe, r.Header.Get("Stripe-Signature"), "")
}

// HandlePayThor processes PayThor callback deliveries.
// POST /webhooks/paythor
func (h *WebhookHandlers) HandlePayThor(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, payment.ProviderPayThor, r.Header.Get("X-PayThor-Signature"), "")
}

// HandlePayTR processes PayTR callback deliveries. PayTR authenticates
// via a hash field inside the form body and requires the literal body
// "OK" as acknowledgement or it keeps redelivering.
// POST /webhooks/paytr
func (h *WebhookHandlers) HandlePayTR(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, payment.ProviderPayTR, "", "OK")
}

// handle runs the shared callback pipeline for one provider.
func (h *WebhookHandlers) handle(w http.ResponseWriter, r *http.Request, provider payment.Provider, signature, ackBody string) {
	ctx := r.Context()

	gw, ok := h.gateways[provider]
	if !ok {
		// Provider not configured for this deployment.
		ctx = middleware.SetErrorCode(ctx, ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "provider not configured")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "failed to read request body")
		return
	}

	if err := gw.VerifyCallback(body, signature); err != nil {
		// Security event: reject before any state is touched.
		slog.WarnContext(ctx, "callback signature verification failed",
			"provider", provider, "remote_addr", r.RemoteAddr, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeSignatureInvalid)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeSignatureInvalid, "invalid signature")
		return
	}

	ev, err := gw.ParseEvent(body)
	if err != nil {
		slog.WarnContext(ctx, "failed to parse verified callback",
			"provider", provider, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "malformed callback body")
		return
	}

	slog.InfoContext(ctx, "callback event received",
		"provider", provider, "event_type", ev.Type, "event_id", ev.ID, "kind", ev.Kind)

	if err := h.reconciler.HandleEvent(ctx, ev); err != nil {
		if errors.Is(err, payment.ErrEventAlreadyProcessed) {
			// Should not escape the reconciler, but acknowledge anyway.
			h.ack(w, ackBody)
			return
		}
		// Internal failure: 5xx so the provider redelivers.
		slog.ErrorContext(ctx, "failed to apply callback event",
			"provider", provider, "event_id", ev.ID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to process callback")
		return
	}

	h.ack(w, ackBody)
}

// ack acknowledges a delivery. Providers that require a specific body
// (PayTR's "OK") get it; everyone else gets a bare 200.
func (h *WebhookHandlers) ack(w http.ResponseWriter, body string) {
	if body != "" {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, body)
		return
	}
	w.WriteHeader(http.StatusOK)
}
