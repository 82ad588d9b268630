package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kavexa/storefront/internal/order"
	"github.com/kavexa/storefront/internal/payment"
)

func TestCreatePayment_Success(t *testing.T) {
	f := newFixture(t)
	ord := f.seedOrder(t, "user-1", 5000)
	h := NewPaymentHandlers(f.orch, f.payments, f.orders)

	req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(paymentRequestBody(ord.ID)))
	req = withIdentity(req, "user-1", "customer")
	w := httptest.NewRecorder()

	h.Create(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp PaymentResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Payment == nil {
		t.Fatal("expected payment in response")
	}
	if resp.Payment.Status != payment.StatusPending {
		t.Errorf("expected pending status, got %s", resp.Payment.Status)
	}
	if resp.Payment.Amount != 5000 {
		t.Errorf("expected amount 5000, got %d", resp.Payment.Amount)
	}
	if resp.RedirectURL == "" {
		t.Error("expected redirect URL from gateway")
	}
	if resp.Payment.TransactionID == "" {
		t.Error("expected gateway transaction reference on the payment")
	}
}

func TestCreatePayment_Unauthenticated(t *testing.T) {
	f := newFixture(t)
	h := NewPaymentHandlers(f.orch, f.payments, f.orders)

	req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(`{}`))
	w := httptest.NewRecorder()

	h.Create(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error.Code != ErrCodeUnauthorized {
		t.Errorf("expected code %s, got %s", ErrCodeUnauthorized, resp.Error.Code)
	}
}

func TestCreatePayment_OrderOwnership(t *testing.T) {
	f := newFixture(t)
	ord := f.seedOrder(t, "owner", 5000)
	h := NewPaymentHandlers(f.orch, f.payments, f.orders)

	req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(paymentRequestBody(ord.ID)))
	req = withIdentity(req, "intruder", "customer")
	w := httptest.NewRecorder()

	h.Create(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", w.Code, w.Body.String())
	}
	if f.gateway.calls.Load() != 0 {
		t.Error("gateway must not be called for another user's order")
	}
}

func TestCreatePayment_OrderNotFound(t *testing.T) {
	f := newFixture(t)
	h := NewPaymentHandlers(f.orch, f.payments, f.orders)

	req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(paymentRequestBody("no-such-order")))
	req = withIdentity(req, "user-1", "customer")
	w := httptest.NewRecorder()

	h.Create(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestCreatePayment_GatewayRejected(t *testing.T) {
	f := newFixture(t)
	ord := f.seedOrder(t, "user-1", 5000)
	f.gateway.createErr = &payment.GatewayError{
		Provider:  payment.ProviderStripe,
		Code:      "card_declined",
		Message:   "Your card was declined.",
		Retryable: false,
	}
	h := NewPaymentHandlers(f.orch, f.payments, f.orders)

	req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(paymentRequestBody(ord.ID)))
	req = withIdentity(req, "user-1", "customer")
	w := httptest.NewRecorder()

	h.Create(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Error   ErrorDetail      `json:"error"`
		Payment *payment.Payment `json:"payment"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error.Code != ErrCodeGateway {
		t.Errorf("expected code %s, got %s", ErrCodeGateway, resp.Error.Code)
	}
	if resp.Payment == nil || resp.Payment.Status != payment.StatusFailed {
		t.Error("expected the failed payment row in the response body")
	}
}

func TestCreatePayment_GatewayUnavailable(t *testing.T) {
	f := newFixture(t)
	ord := f.seedOrder(t, "user-1", 5000)
	f.gateway.createErr = &payment.GatewayError{
		Provider:  payment.ProviderStripe,
		Code:      "timeout",
		Message:   "request timed out",
		Retryable: true,
	}
	h := NewPaymentHandlers(f.orch, f.payments, f.orders)

	req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(paymentRequestBody(ord.ID)))
	req = withIdentity(req, "user-1", "customer")
	w := httptest.NewRecorder()

	h.Create(w, req)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", w.Code, w.Body.String())
	}

	// The attempt stays pending for the status sweep to resolve.
	attempts, err := f.payments.ListByOrder(context.Background(), ord.ID)
	if err != nil {
		t.Fatalf("list attempts: %v", err)
	}
	if len(attempts) != 1 {
		t.Fatalf("expected 1 attempt, got %d", len(attempts))
	}
	if attempts[0].Status != payment.StatusPending {
		t.Errorf("expected pending attempt after timeout, got %s", attempts[0].Status)
	}
}

func TestCreatePayment_Duplicate(t *testing.T) {
	f := newFixture(t)
	ord := f.seedOrder(t, "user-1", 5000)
	now := time.Now()
	paid := &payment.Payment{
		OrderID:       ord.ID,
		Amount:        5000,
		Currency:      "USD",
		Method:        payment.MethodCreditCard,
		Provider:      payment.ProviderStripe,
		Status:        payment.StatusCompleted,
		TransactionID: "stripe-paid-1",
		PaymentDate:   &now,
	}
	if err := f.payments.Create(context.Background(), paid); err != nil {
		t.Fatalf("seed completed payment: %v", err)
	}
	h := NewPaymentHandlers(f.orch, f.payments, f.orders)

	req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(paymentRequestBody(ord.ID)))
	req = withIdentity(req, "user-1", "customer")
	w := httptest.NewRecorder()

	h.Create(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error.Code != ErrCodeDuplicatePayment {
		t.Errorf("expected code %s, got %s", ErrCodeDuplicatePayment, resp.Error.Code)
	}
}

func TestGetPayment(t *testing.T) {
	f := newFixture(t)
	ord := f.seedOrder(t, "user-1", 5000)
	p := seedPayment(t, f, ord, payment.StatusPending, "stripe-get-1")
	h := NewPaymentHandlers(f.orch, f.payments, f.orders)

	tests := []struct {
		name       string
		paymentID  string
		userID     string
		role       string
		wantStatus int
	}{
		{"owner", p.ID, "user-1", "customer", http.StatusOK},
		{"admin", p.ID, "staff", "admin", http.StatusOK},
		{"other user", p.ID, "intruder", "customer", http.StatusForbidden},
		{"unknown id", "missing", "user-1", "customer", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/payments/"+tt.paymentID, nil)
			req.SetPathValue("id", tt.paymentID)
			req = withIdentity(req, tt.userID, tt.role)
			w := httptest.NewRecorder()

			h.Get(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestRetryPayment_Success(t *testing.T) {
	f := newFixture(t)
	ord := f.seedOrder(t, "user-1", 5000)
	failed := seedPayment(t, f, ord, payment.StatusFailed, "stripe-failed-1")
	h := NewPaymentHandlers(f.orch, f.payments, f.orders)

	req := httptest.NewRequest(http.MethodPost, "/payments/"+failed.ID+"/retry", strings.NewReader(`{}`))
	req.SetPathValue("id", failed.ID)
	req = withIdentity(req, "user-1", "customer")
	w := httptest.NewRecorder()

	h.Retry(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp PaymentResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Payment.ID == failed.ID {
		t.Error("retry must create a new attempt, not reuse the failed one")
	}
	if resp.Payment.Amount != failed.Amount || resp.Payment.Currency != failed.Currency {
		t.Error("retry must preserve the original amount and currency")
	}

	prior, err := f.payments.GetByID(context.Background(), failed.ID)
	if err != nil {
		t.Fatalf("get prior attempt: %v", err)
	}
	if prior.SupersededBy == nil || *prior.SupersededBy != resp.Payment.ID {
		t.Error("prior attempt should record the superseding payment")
	}
}

func TestRetryPayment_NotRetryable(t *testing.T) {
	f := newFixture(t)
	ord := f.seedOrder(t, "user-1", 5000)
	pending := seedPayment(t, f, ord, payment.StatusPending, "stripe-pending-1")
	h := NewPaymentHandlers(f.orch, f.payments, f.orders)

	req := httptest.NewRequest(http.MethodPost, "/payments/"+pending.ID+"/retry", strings.NewReader(`{}`))
	req.SetPathValue("id", pending.ID)
	req = withIdentity(req, "user-1", "customer")
	w := httptest.NewRecorder()

	h.Retry(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error.Code != ErrCodeNotRetryable {
		t.Errorf("expected code %s, got %s", ErrCodeNotRetryable, resp.Error.Code)
	}
}

func TestCancelPayment(t *testing.T) {
	f := newFixture(t)
	ord := f.seedOrder(t, "user-1", 5000)
	pending := seedPayment(t, f, ord, payment.StatusPending, "stripe-cancel-1")
	h := NewPaymentHandlers(f.orch, f.payments, f.orders)

	req := httptest.NewRequest(http.MethodPost, "/payments/"+pending.ID+"/cancel", strings.NewReader(`{"reason":"changed my mind"}`))
	req.SetPathValue("id", pending.ID)
	req = withIdentity(req, "user-1", "customer")
	w := httptest.NewRecorder()

	h.Cancel(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp PaymentResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Payment.Status != payment.StatusCancelled {
		t.Errorf("expected cancelled status, got %s", resp.Payment.Status)
	}
	if resp.Payment.FailureReason != "changed my mind" {
		t.Errorf("unexpected failure reason %q", resp.Payment.FailureReason)
	}

	updated, err := f.orders.GetByID(context.Background(), ord.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if updated.Status != order.StatusCancelled {
		t.Errorf("expected the order cancelled with its only attempt, got %s", updated.Status)
	}
}

func TestCancelPayment_Completed(t *testing.T) {
	f := newFixture(t)
	ord := f.seedOrder(t, "user-1", 5000)
	paid := seedPayment(t, f, ord, payment.StatusCompleted, "stripe-done-1")
	h := NewPaymentHandlers(f.orch, f.payments, f.orders)

	req := httptest.NewRequest(http.MethodPost, "/payments/"+paid.ID+"/cancel", nil)
	req.SetPathValue("id", paid.ID)
	req = withIdentity(req, "user-1", "customer")
	w := httptest.NewRecorder()

	h.Cancel(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

// seedPayment inserts a payment row directly, bypassing the gateway.
func seedPayment(t *testing.T, f *fixture, ord *order.Order, status payment.Status, txnID string) *payment.Payment {
	t.Helper()
	p := &payment.Payment{
		OrderID:       ord.ID,
		Amount:        ord.TotalAmount,
		Currency:      ord.Currency,
		Method:        payment.MethodCreditCard,
		Provider:      payment.ProviderStripe,
		Status:        status,
		TransactionID: txnID,
	}
	if err := f.payments.Create(context.Background(), p); err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	return p
}
