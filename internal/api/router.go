package api

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kavexa/storefront/internal/auth"
	"github.com/kavexa/storefront/internal/idempotency"
	"github.com/kavexa/storefront/internal/middleware"
)

// RouterConfig carries the handlers and cross-cutting dependencies the
// router wires together.
type RouterConfig struct {
	Payments *PaymentHandlers
	Webhooks *WebhookHandlers
	Orders   *OrderHandlers
	Catalog  *CatalogHandlers
	Cart     *CartHandlers
	Wishlist *WishlistHandlers
	Reviews  *ReviewHandlers
	Health   *HealthHandlers

	JWT            *auth.JWTService
	Idempotency    idempotency.Repository
	RateLimits     middleware.RateLimitStore
	HTTPMetrics    *middleware.Metrics
	MetricsHandler http.Handler
	Logger         *slog.Logger
	CORS           middleware.CORSConfig
}

// NewRouter builds the full HTTP handler: routes plus the middleware
// chain Tracing -> RequestID -> Logging -> CORS -> HTTPMetrics -> rate
// limiting, with auth and idempotency applied per route group.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	requireAuth := RequireAuth(cfg.JWT)

	// Payment create and retry are replay-protected via Idempotency-Key.
	idem := middleware.Idempotency(cfg.Idempotency, map[string]bool{
		"/payments":                 true,
		"POST /payments/{id}/retry": true,
	})
	checkoutLimit := middleware.RateLimiter(cfg.RateLimits, middleware.DefaultCheckoutLimit(), middleware.UserKeyFunc())
	webhookLimit := middleware.RateLimiter(cfg.RateLimits, middleware.DefaultWebhookLimit(), middleware.IPKeyFunc())

	// Public catalog.
	mux.HandleFunc("GET /products", cfg.Catalog.ListProducts)
	mux.HandleFunc("GET /products/{id}", cfg.Catalog.GetProduct)
	mux.HandleFunc("GET /products/{id}/reviews", cfg.Reviews.ListByProduct)
	mux.HandleFunc("GET /categories", cfg.Catalog.ListCategories)
	mux.HandleFunc("GET /categories/{id}/products", cfg.Catalog.CategoryProducts)

	// Authenticated storefront.
	mux.Handle("POST /products/{id}/reviews", requireAuth(http.HandlerFunc(cfg.Reviews.Create)))
	mux.Handle("PUT /reviews/{id}", requireAuth(RequireAdmin(http.HandlerFunc(cfg.Reviews.Moderate))))

	mux.Handle("GET /cart", requireAuth(http.HandlerFunc(cfg.Cart.Get)))
	mux.Handle("DELETE /cart", requireAuth(http.HandlerFunc(cfg.Cart.Clear)))
	mux.Handle("POST /cart/items", requireAuth(http.HandlerFunc(cfg.Cart.AddItem)))
	mux.Handle("PUT /cart/items/{id}", requireAuth(http.HandlerFunc(cfg.Cart.UpdateItem)))
	mux.Handle("DELETE /cart/items/{id}", requireAuth(http.HandlerFunc(cfg.Cart.RemoveItem)))

	mux.Handle("GET /wishlist", requireAuth(http.HandlerFunc(cfg.Wishlist.List)))
	mux.Handle("POST /wishlist", requireAuth(http.HandlerFunc(cfg.Wishlist.Add)))
	mux.Handle("DELETE /wishlist/{id}", requireAuth(http.HandlerFunc(cfg.Wishlist.Remove)))

	mux.Handle("GET /orders", requireAuth(http.HandlerFunc(cfg.Orders.List)))
	mux.Handle("POST /orders", requireAuth(http.HandlerFunc(cfg.Orders.Create)))
	mux.Handle("GET /orders/{id}", requireAuth(http.HandlerFunc(cfg.Orders.Get)))
	mux.Handle("GET /orders/{id}/payments", requireAuth(http.HandlerFunc(cfg.Orders.Payments)))

	// Payments: auth + per-user rate limit + idempotency replay cache.
	mux.Handle("POST /payments", requireAuth(checkoutLimit(idem(http.HandlerFunc(cfg.Payments.Create)))))
	mux.Handle("GET /payments/{id}", requireAuth(http.HandlerFunc(cfg.Payments.Get)))
	mux.Handle("POST /payments/{id}/retry", requireAuth(checkoutLimit(idem(http.HandlerFunc(cfg.Payments.Retry)))))
	mux.Handle("POST /payments/{id}/cancel", requireAuth(http.HandlerFunc(cfg.Payments.Cancel)))

	// Provider callbacks: no auth, signature-verified, IP rate limited.
	mux.Handle("POST /webhooks/stripe", webhookLimit(http.HandlerFunc(cfg.Webhooks.HandleStripe)))
	mux.Handle("POST /webhooks/paythor", webhookLimit(http.HandlerFunc(cfg.Webhooks.HandlePayThor)))
	mux.Handle("POST /webhooks/paytr", webhookLimit(http.HandlerFunc(cfg.Webhooks.HandlePayTR)))

	// Probes and metrics.
	mux.HandleFunc("GET /health", cfg.Health.Health)
	mux.HandleFunc("GET /ready", cfg.Health.Ready)
	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	mux.Handle("GET /metrics", metricsHandler)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "the requested resource was not found")
	})

	var handler http.Handler = mux
	handler = middleware.RateLimiter(cfg.RateLimits, middleware.DefaultGlobalLimit(), middleware.IPKeyFunc())(handler)
	if cfg.HTTPMetrics != nil {
		handler = middleware.HTTPMetrics(cfg.HTTPMetrics)(handler)
	}
	handler = middleware.CORS(cfg.CORS)(handler)
	handler = middleware.Logging(cfg.Logger)(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Tracing("storefront-api")(handler)
	return handler
}
