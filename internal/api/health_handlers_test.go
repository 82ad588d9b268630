package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type staticChecker struct{ err error }

func (c staticChecker) HealthCheck(ctx context.Context) error { return c.err }

func TestHealth(t *testing.T) {
	h := NewHealthHandlers(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.Health(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("expected healthy, got %s", resp.Status)
	}
}

func TestReady(t *testing.T) {
	tests := []struct {
		name       string
		db         HealthChecker
		redis      HealthChecker
		wantStatus int
		wantBody   string
	}{
		{"all healthy", staticChecker{}, staticChecker{}, http.StatusOK, "ready"},
		{"db down", staticChecker{err: errors.New("connection refused")}, staticChecker{}, http.StatusServiceUnavailable, "not_ready"},
		{"redis optional", staticChecker{}, nil, http.StatusOK, "ready"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandlers(tt.db, tt.redis)

			req := httptest.NewRequest(http.MethodGet, "/ready", nil)
			w := httptest.NewRecorder()
			h.Ready(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			var resp HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp.Status != tt.wantBody {
				t.Errorf("expected status %q, got %q", tt.wantBody, resp.Status)
			}
		})
	}
}

func TestReady_ExtraChecker(t *testing.T) {
	h := NewHealthHandlers(staticChecker{}, staticChecker{})
	h.AddChecker("paythor", staticChecker{err: errors.New("gateway unreachable")})

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	h.Ready(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.HasPrefix(resp.Checks["paythor"], "unavailable") {
		t.Errorf("expected paythor check failure, got %q", resp.Checks["paythor"])
	}
}
