package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/kavexa/storefront/internal/middleware"
	"github.com/kavexa/storefront/internal/order"
	"github.com/kavexa/storefront/internal/payment"
)

// PaymentHandlers holds dependencies for payment-related HTTP handlers.
type PaymentHandlers struct {
	orch     *payment.Orchestrator
	payments payment.Repository
	orders   order.Repository
}

// NewPaymentHandlers creates a new PaymentHandlers instance.
func NewPaymentHandlers(orch *payment.Orchestrator, payments payment.Repository, orders order.Repository) *PaymentHandlers {
	return &PaymentHandlers{
		orch:     orch,
		payments: payments,
		orders:   orders,
	}
}

// CreatePaymentRequest is the request body for starting a payment attempt.
type CreatePaymentRequest struct {
	OrderID   string             `json:"order_id"`
	Method    payment.Method     `json:"method"`
	Customer  payment.Customer   `json:"customer"`
	Items     []payment.LineItem `json:"items"`
	ReturnURL string             `json:"return_url"`
	CancelURL string             `json:"cancel_url"`
}

// PaymentResponse is the response body for payment create/retry/get.
type PaymentResponse struct {
	Payment      *payment.Payment `json:"payment"`
	RedirectURL  string           `json:"redirect_url,omitempty"`
	ClientSecret string           `json:"client_secret,omitempty"`
}

// Create starts a new payment attempt for an order.
// POST /payments
func (h *PaymentHandlers) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity := GetIdentity(ctx)
	if identity == nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	var body CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	if body.OrderID == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "order_id is required")
		return
	}

	ord, err := h.orders.GetByID(ctx, body.OrderID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			ctx = middleware.SetErrorCode(ctx, ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "order not found")
			return
		}
		slog.ErrorContext(ctx, "failed to get order", "order_id", body.OrderID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to load order")
		return
	}
	if ord.UserID != identity.UserID && !identity.IsAdmin() {
		ctx = middleware.SetErrorCode(ctx, ErrCodeForbidden)
		WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "order belongs to another user")
		return
	}

	req := &payment.Request{
		OrderID:   body.OrderID,
		Method:    body.Method,
		Customer:  body.Customer,
		Items:     body.Items,
		ReturnURL: body.ReturnURL,
		CancelURL: body.CancelURL,
		ClientIP:  clientIP(r),
	}
	if req.Customer.Email == "" {
		req.Customer.Email = identity.Email
	}

	p, result, err := h.orch.Create(ctx, req)
	if err != nil {
		h.writePaymentError(w, ctx, p, err)
		return
	}

	resp := PaymentResponse{Payment: p}
	if result != nil {
		resp.RedirectURL = result.RedirectURL
		resp.ClientSecret = result.ClientSecret
	}
	writeJSON(w, http.StatusCreated, resp)
}

// Get returns a payment by ID.
// GET /payments/{id}
func (h *PaymentHandlers) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity := GetIdentity(ctx)
	if identity == nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	p, ok := h.loadOwnedPayment(w, r, identity)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, PaymentResponse{Payment: p})
}

// RetryPaymentRequest is the request body for retrying a failed payment.
// The amount and currency of the original attempt are always preserved;
// only the payment method may change.
type RetryPaymentRequest struct {
	Method   payment.Method   `json:"method"`
	Customer payment.Customer `json:"customer"`
}

// Retry supersedes a failed or cancelled payment with a new attempt.
// POST /payments/{id}/retry
func (h *PaymentHandlers) Retry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity := GetIdentity(ctx)
	if identity == nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	prior, ok := h.loadOwnedPayment(w, r, identity)
	if !ok {
		return
	}

	var body RetryPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	if body.Method == "" {
		body.Method = prior.Method
	}

	ord, err := h.orders.GetByID(ctx, prior.OrderID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to get order for retry", "order_id", prior.OrderID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to load order")
		return
	}

	req := &payment.Request{
		Method:   body.Method,
		Customer: body.Customer,
		ClientIP: clientIP(r),
	}
	if req.Customer.Email == "" {
		req.Customer.Email = ord.Email
	}

	p, result, err := h.orch.Retry(ctx, prior.ID, req)
	if err != nil {
		h.writePaymentError(w, ctx, p, err)
		return
	}

	resp := PaymentResponse{Payment: p}
	if result != nil {
		resp.RedirectURL = result.RedirectURL
		resp.ClientSecret = result.ClientSecret
	}
	writeJSON(w, http.StatusCreated, resp)
}

// CancelPaymentRequest is the request body for cancelling a payment.
type CancelPaymentRequest struct {
	Reason string `json:"reason"`
}

// Cancel abandons a pending payment attempt.
// POST /payments/{id}/cancel
func (h *PaymentHandlers) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity := GetIdentity(ctx)
	if identity == nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	p, ok := h.loadOwnedPayment(w, r, identity)
	if !ok {
		return
	}

	var body CancelPaymentRequest
	if r.Body != nil {
		// Reason is optional; an empty body is fine.
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	if body.Reason == "" {
		body.Reason = "cancelled by customer"
	}

	if err := h.orch.Cancel(ctx, p.ID, body.Reason, true); err != nil {
		if errors.Is(err, payment.ErrCannotCancel) {
			ctx = middleware.SetErrorCode(ctx, ErrCodeConflict)
			WriteError(w, ctx, http.StatusConflict, ErrCodeConflict, "completed payment cannot be cancelled")
			return
		}
		slog.ErrorContext(ctx, "failed to cancel payment", "payment_id", p.ID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to cancel payment")
		return
	}

	updated, err := h.payments.GetByID(ctx, p.ID)
	if err != nil {
		updated = p
	}
	writeJSON(w, http.StatusOK, PaymentResponse{Payment: updated})
}

// loadOwnedPayment fetches the payment from the path and enforces that
// the caller owns its order. Writes the error response itself when the
// payment cannot be served.
func (h *PaymentHandlers) loadOwnedPayment(w http.ResponseWriter, r *http.Request, identity *Identity) (*payment.Payment, bool) {
	ctx := r.Context()

	id := r.PathValue("id")
	if id == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "payment id is required")
		return nil, false
	}

	p, err := h.payments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, payment.ErrPaymentNotFound) {
			ctx = middleware.SetErrorCode(ctx, ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "payment not found")
			return nil, false
		}
		slog.ErrorContext(ctx, "failed to get payment", "payment_id", id, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to load payment")
		return nil, false
	}

	if !identity.IsAdmin() {
		ord, err := h.orders.GetByID(ctx, p.OrderID)
		if err != nil {
			slog.ErrorContext(ctx, "failed to get order for payment", "order_id", p.OrderID, "error", err)
			ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to load order")
			return nil, false
		}
		if ord.UserID != identity.UserID {
			ctx = middleware.SetErrorCode(ctx, ErrCodeForbidden)
			WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "payment belongs to another user")
			return nil, false
		}
	}
	return p, true
}

// writePaymentError maps orchestrator errors to the API error taxonomy.
// Gateway rejections carry the failed payment row in the response body
// so the client can show the audit trail and offer a retry.
func (h *PaymentHandlers) writePaymentError(w http.ResponseWriter, ctx context.Context, p *payment.Payment, err error) {
	var gwErr *payment.GatewayError
	switch {
	case errors.Is(err, payment.ErrDuplicatePayment):
		ctx = middleware.SetErrorCode(ctx, ErrCodeDuplicatePayment)
		WriteError(w, ctx, http.StatusConflict, ErrCodeDuplicatePayment, "order already has a completed payment")
	case errors.Is(err, payment.ErrNotRetryable):
		ctx = middleware.SetErrorCode(ctx, ErrCodeNotRetryable)
		WriteError(w, ctx, http.StatusConflict, ErrCodeNotRetryable, "payment is not in a retryable state")
	case errors.Is(err, payment.ErrAmountMismatch):
		ctx = middleware.SetErrorCode(ctx, ErrCodeAmountMismatch)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeAmountMismatch, "payment amount does not match order total")
	case errors.Is(err, payment.ErrUnknownProvider):
		ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "unsupported payment method")
	case errors.Is(err, order.ErrOrderNotFound):
		ctx = middleware.SetErrorCode(ctx, ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "order not found")
	case errors.As(err, &gwErr):
		if gwErr.Retryable {
			// Unknown outcome: the row stays pending and the status
			// sweep resolves it. The client is told to wait, not retry.
			ctx = middleware.SetErrorCode(ctx, ErrCodeGateway)
			WriteError(w, ctx, http.StatusBadGateway, ErrCodeGateway, "payment provider unavailable; the payment outcome will be resolved shortly")
			return
		}
		// Definitive rejection: pass the provider's reason through and
		// include the failed attempt for the retry flow.
		middleware.UpdateResponseContext(w, middleware.SetErrorCode(ctx, ErrCodeGateway))
		writeJSON(w, http.StatusUnprocessableEntity, struct {
			Error   ErrorDetail      `json:"error"`
			Payment *payment.Payment `json:"payment,omitempty"`
		}{
			Error:   ErrorDetail{Code: ErrCodeGateway, Message: gwErr.Message},
			Payment: p,
		})
	default:
		// Validation errors from Request.Validate surface as-is.
		if isValidationError(err) {
			ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
		slog.ErrorContext(ctx, "payment operation failed", "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "payment could not be processed")
	}
}

// isValidationError reports whether the error is one of the request
// validation sentinels.
func isValidationError(err error) bool {
	for _, sentinel := range []error{
		payment.ErrMissingOrderID,
		payment.ErrInvalidAmount,
		payment.ErrMissingCurrency,
		payment.ErrMissingName,
		payment.ErrInvalidEmail,
		payment.ErrMissingPhone,
		payment.ErrMissingAddress,
		payment.ErrNoItems,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// clientIP extracts the caller's IP for gateways that hash it into
// their request tokens. Trusts the first X-Forwarded-For hop when the
// request came through the proxy.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
