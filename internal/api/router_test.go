package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kavexa/storefront/internal/auth"
	"github.com/kavexa/storefront/internal/idempotency"
	"github.com/kavexa/storefront/internal/middleware"
	"github.com/kavexa/storefront/internal/payment"
)

func newTestRouter(t *testing.T, f *fixture, jwtSvc *auth.JWTService) http.Handler {
	t.Helper()
	return NewRouter(RouterConfig{
		Payments:    NewPaymentHandlers(f.orch, f.payments, f.orders),
		Webhooks:    NewWebhookHandlers(f.gateways, f.reconcile),
		Orders:      NewOrderHandlers(f.orders, f.payments, f.carts, f.catalog),
		Catalog:     NewCatalogHandlers(f.catalog),
		Cart:        NewCartHandlers(f.carts, f.catalog),
		Wishlist:    NewWishlistHandlers(f.wishlists, f.catalog),
		Reviews:     NewReviewHandlers(f.reviews, f.catalog),
		Health:      NewHealthHandlers(nil, nil),
		JWT:         jwtSvc,
		Idempotency: idempotency.NewInMemoryRepository(),
		RateLimits:  middleware.NewInMemoryRateLimitStore(),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestRouter_PublicAndProtectedRoutes(t *testing.T) {
	f := newFixture(t)
	jwtSvc := auth.NewJWTService("router-secret")
	router := newTestRouter(t, f, jwtSvc)

	// Catalog is public.
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products", nil))
	if w.Code != http.StatusOK {
		t.Errorf("GET /products: expected 200, got %d", w.Code)
	}

	// Orders require a token.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("GET /orders without token: expected 401, got %d", w.Code)
	}

	// Unknown paths fall through to the JSON 404.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("GET /nope: expected 404, got %d", w.Code)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Errorf("404 fallback should be JSON: %v", err)
	}

	// Probes are open.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("GET /health: expected 200, got %d", w.Code)
	}
}

func TestRouter_PaymentFlowWithIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	ord := f.seedOrder(t, "user-1", 5000)
	jwtSvc := auth.NewJWTService("router-secret")
	router := newTestRouter(t, f, jwtSvc)

	token, err := jwtSvc.GenerateAccessToken("user-1", "u@example.com", "customer")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(paymentRequestBody(ord.ID)))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Idempotency-Key", "key-router-1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	first := send()
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", first.Code, first.Body.String())
	}

	// Same key replays the cached response instead of charging twice.
	second := send()
	if second.Code != http.StatusCreated {
		t.Fatalf("replay: expected 201, got %d: %s", second.Code, second.Body.String())
	}
	if first.Body.String() != second.Body.String() {
		t.Error("replayed response body differs from original")
	}
	if got := f.gateway.calls.Load(); got != 1 {
		t.Errorf("expected 1 gateway call across replays, got %d", got)
	}

	// Missing key is rejected before the handler runs.
	req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(paymentRequestBody(ord.ID)))
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing idempotency key: expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

// A double-clicked retry must not fork two supersession chains: the
// retry route sits behind the same Idempotency-Key replay cache as
// payment creation.
func TestRouter_RetryReplayProtected(t *testing.T) {
	f := newFixture(t)
	ord := f.seedOrder(t, "user-1", 5000)
	prior := seedPayment(t, f, ord, payment.StatusFailed, "txn-retry-replay")
	jwtSvc := auth.NewJWTService("router-secret")
	router := newTestRouter(t, f, jwtSvc)

	token, err := jwtSvc.GenerateAccessToken("user-1", "u@example.com", "customer")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/payments/"+prior.ID+"/retry", strings.NewReader(`{}`))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Idempotency-Key", "retry-router-1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	first := send()
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", first.Code, first.Body.String())
	}
	second := send()
	if second.Code != http.StatusCreated {
		t.Fatalf("replay: expected 201, got %d: %s", second.Code, second.Body.String())
	}
	if first.Body.String() != second.Body.String() {
		t.Error("replayed response body differs from original")
	}
	if got := f.gateway.calls.Load(); got != 1 {
		t.Errorf("expected 1 gateway call across replays, got %d", got)
	}

	attempts, err := f.payments.ListByOrder(context.Background(), ord.ID)
	if err != nil {
		t.Fatalf("list attempts: %v", err)
	}
	if len(attempts) != 2 {
		t.Errorf("got %d attempts, want the prior plus one retry", len(attempts))
	}

	// Without a key the retry is rejected before the handler runs.
	req := httptest.NewRequest(http.MethodPost, "/payments/"+prior.ID+"/retry", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing idempotency key: expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRouter_WebhookNeedsNoAuth(t *testing.T) {
	f := newFixture(t) // stripe only, paythor left unconfigured
	jwtSvc := auth.NewJWTService("router-secret")
	router := newTestRouter(t, f, jwtSvc)

	// Unconfigured provider 404s without touching auth.
	req := httptest.NewRequest(http.MethodPost, "/webhooks/paythor", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unconfigured provider, got %d", w.Code)
	}
}
