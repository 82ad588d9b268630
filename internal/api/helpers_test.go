package api

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/kavexa/storefront/internal/cart"
	"github.com/kavexa/storefront/internal/catalog"
	"github.com/kavexa/storefront/internal/notifier"
	"github.com/kavexa/storefront/internal/order"
	"github.com/kavexa/storefront/internal/payment"
	"github.com/kavexa/storefront/internal/review"
	"github.com/kavexa/storefront/internal/wishlist"
)

// fakeGateway is a scriptable payment.Gateway for handler tests.
type fakeGateway struct {
	provider  payment.Provider
	createErr error
	status    payment.GatewayStatus
	calls     atomic.Int64
}

func (g *fakeGateway) Provider() payment.Provider { return g.provider }

func (g *fakeGateway) CreatePayment(ctx context.Context, req *payment.Request) (*payment.Result, error) {
	n := g.calls.Add(1)
	if g.createErr != nil {
		return nil, g.createErr
	}
	return &payment.Result{
		Success:          true,
		GatewayReference: fmt.Sprintf("%s-ref-%d", g.provider, n),
		RedirectURL:      "https://pay.example.com/session",
	}, nil
}

func (g *fakeGateway) Status(ctx context.Context, reference string) (payment.GatewayStatus, error) {
	if g.status == "" {
		return payment.GatewayStatusPending, nil
	}
	return g.status, nil
}

func (g *fakeGateway) VerifyCallback(body []byte, signature string) error { return nil }

func (g *fakeGateway) ParseEvent(body []byte) (*payment.Event, error) {
	return &payment.Event{Provider: g.provider, Kind: payment.EventUnknown}, nil
}

// fixture bundles the in-memory stores and domain services the handler
// tests share.
type fixture struct {
	payments  *payment.InMemoryRepository
	orders    *order.InMemoryRepository
	webhooks  *payment.InMemoryWebhookRepository
	catalog   *catalog.InMemoryRepository
	carts     *cart.InMemoryStore
	wishlists *wishlist.InMemoryRepository
	reviews   *review.InMemoryRepository
	notify    *notifier.Recorder
	gateway   *fakeGateway
	gateways  payment.Registry
	orch      *payment.Orchestrator
	reconcile *payment.Reconciler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		payments:  payment.NewInMemoryRepository(),
		orders:    order.NewInMemoryRepository(),
		webhooks:  payment.NewInMemoryWebhookRepository(),
		catalog:   catalog.NewInMemoryRepository(),
		carts:     cart.NewInMemoryStore(),
		wishlists: wishlist.NewInMemoryRepository(),
		reviews:   review.NewInMemoryRepository(),
		notify:    notifier.NewRecorder(),
		gateway:   &fakeGateway{provider: payment.ProviderStripe},
	}
	f.gateways = payment.Registry{payment.ProviderStripe: f.gateway}
	metrics := payment.NewMetrics()
	f.orch = payment.NewOrchestrator(f.gateways, f.payments, f.orders, f.notify, nil, metrics)
	f.reconcile = payment.NewReconciler(f.payments, f.webhooks, f.orch, nil, metrics)
	return f
}

// seedOrder creates a pending order for the given user.
func (f *fixture) seedOrder(t *testing.T, userID string, amount int64) *order.Order {
	t.Helper()
	ord := &order.Order{
		UserID:          userID,
		Email:           "buyer@example.com",
		TotalAmount:     amount,
		Currency:        "USD",
		Status:          order.StatusPending,
		ShippingAddress: "1 Main St",
		BillingAddress:  "1 Main St",
	}
	if err := f.orders.Create(context.Background(), ord); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return ord
}

// seedProduct creates an active catalog product.
func (f *fixture) seedProduct(t *testing.T, name string, price int64, stock int) *catalog.Product {
	t.Helper()
	p := &catalog.Product{
		SKU:      "sku-" + name,
		Name:     name,
		Price:    price,
		Currency: "USD",
		Stock:    stock,
		Active:   true,
	}
	if err := f.catalog.CreateProduct(context.Background(), p); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

// withIdentity attaches an authenticated identity to the request.
func withIdentity(r *http.Request, userID, role string) *http.Request {
	identity := &Identity{UserID: userID, Email: userID + "@example.com", Role: role}
	ctx := context.WithValue(r.Context(), identityContextKey{}, identity)
	return r.WithContext(ctx)
}

// paymentRequestBody is a minimal valid create-payment body.
func paymentRequestBody(orderID string) string {
	return `{
		"order_id": "` + orderID + `",
		"method": "credit_card",
		"customer": {
			"name": "Ada Buyer",
			"email": "buyer@example.com"
		},
		"items": [{"id": "sku-1", "name": "Widget", "unit_price": 5000, "quantity": 1}]
	}`
}
