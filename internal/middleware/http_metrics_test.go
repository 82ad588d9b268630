package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/", "/"},
		{"/products", "/products"},
		{"/products/9b1a4c", "/products/{id}"},
		{"/products/9b1a4c/reviews", "/products/{id}/reviews"},
		{"/categories/electronics", "/categories/{id}"},
		{"/categories/electronics/products", "/categories/{id}/products"},
		{"/orders/ord-1", "/orders/{id}"},
		{"/orders/ord-1/payments", "/orders/{id}/payments"},
		{"/payments", "/payments"},
		{"/payments/pay-1", "/payments/{id}"},
		{"/payments/pay-1/retry", "/payments/{id}/retry"},
		{"/payments/pay-1/cancel", "/payments/{id}/cancel"},
		{"/cart/items", "/cart/items"},
		{"/cart/items/sku-1", "/cart/items/{id}"},
		{"/wishlist", "/wishlist"},
		{"/wishlist/sku-1", "/wishlist/{id}"},
		{"/reviews/rev-1", "/reviews/{id}"},
		{"/webhooks/stripe", "/webhooks/stripe"},
		{"/webhooks/paytr", "/webhooks/paytr"},
		{"/metrics", "/metrics"},
		{"/unknown/route", "/unknown/route"},
	}
	for _, tt := range tests {
		if got := normalizePath(tt.path); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestHTTPMetricsRecordsRequests(t *testing.T) {
	metrics := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		t.Fatalf("register metrics: %v", err)
	}

	handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/products/abc123", strings.NewReader("body"))
	req.Header.Set("Content-Length", "4")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var found bool
	for _, fam := range families {
		if fam.GetName() != MetricHTTPRequestsTotal {
			continue
		}
		found = true
		for _, m := range fam.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "path" && label.GetValue() != "/products/{id}" {
					t.Errorf("path label = %q, want normalized /products/{id}", label.GetValue())
				}
			}
		}
	}
	if !found {
		t.Errorf("%s not found in gathered metrics", MetricHTTPRequestsTotal)
	}
}

func TestHTTPMetricsSkipsHealthEndpoints(t *testing.T) {
	metrics := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		t.Fatalf("register metrics: %v", err)
	}

	handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ready", nil))

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() == MetricHTTPRequestsTotal && len(fam.GetMetric()) > 0 {
			t.Error("health endpoints were recorded in request metrics")
		}
	}
}
