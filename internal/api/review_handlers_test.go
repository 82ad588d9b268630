package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kavexa/storefront/internal/review"
)

func TestCreateReview_PendingUntilModerated(t *testing.T) {
	f := newFixture(t)
	widget := f.seedProduct(t, "widget", 2500, 10)
	h := NewReviewHandlers(f.reviews, f.catalog)

	body := `{"rating":5,"title":"<b>Great</b>","content":"Does exactly what it says on the tin."}`
	req := httptest.NewRequest(http.MethodPost, "/products/"+widget.ID+"/reviews", strings.NewReader(body))
	req.SetPathValue("id", widget.ID)
	req = withIdentity(req, "user-1", "customer")
	w := httptest.NewRecorder()
	h.Create(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var rev review.Review
	if err := json.NewDecoder(w.Body).Decode(&rev); err != nil {
		t.Fatalf("decode review: %v", err)
	}
	if rev.Status != review.StatusPending {
		t.Errorf("new reviews must await moderation, got %s", rev.Status)
	}
	if strings.Contains(rev.Title, "<b>") {
		t.Errorf("title not sanitized: %q", rev.Title)
	}

	// Not visible on the product until approved.
	listReq := httptest.NewRequest(http.MethodGet, "/products/"+widget.ID+"/reviews", nil)
	listReq.SetPathValue("id", widget.ID)
	lw := httptest.NewRecorder()
	h.ListByProduct(lw, listReq)

	var listResp struct {
		Reviews []*review.Review `json:"reviews"`
	}
	if err := json.NewDecoder(lw.Body).Decode(&listResp); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listResp.Reviews) != 0 {
		t.Errorf("pending review leaked into product listing")
	}

	// Approve and list again.
	modReq := httptest.NewRequest(http.MethodPut, "/reviews/"+rev.ID, strings.NewReader(`{"status":"approved"}`))
	modReq.SetPathValue("id", rev.ID)
	modReq = withIdentity(modReq, "staff", "admin")
	mw := httptest.NewRecorder()
	h.Moderate(mw, modReq)

	if mw.Code != http.StatusNoContent {
		t.Fatalf("moderate: expected 204, got %d: %s", mw.Code, mw.Body.String())
	}

	lw = httptest.NewRecorder()
	listReq = httptest.NewRequest(http.MethodGet, "/products/"+widget.ID+"/reviews", nil)
	listReq.SetPathValue("id", widget.ID)
	h.ListByProduct(lw, listReq)
	listResp.Reviews = nil
	if err := json.NewDecoder(lw.Body).Decode(&listResp); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listResp.Reviews) != 1 {
		t.Errorf("expected 1 approved review, got %d", len(listResp.Reviews))
	}
}

func TestCreateReview_Rejections(t *testing.T) {
	f := newFixture(t)
	widget := f.seedProduct(t, "widget", 2500, 10)
	h := NewReviewHandlers(f.reviews, f.catalog)

	tests := []struct {
		name       string
		productID  string
		body       string
		wantStatus int
	}{
		{"unknown product", "missing", `{"rating":4,"content":"Nice product overall."}`, http.StatusNotFound},
		{"rating out of range", widget.ID, `{"rating":6,"content":"Nice product overall."}`, http.StatusBadRequest},
		{"empty content", widget.ID, `{"rating":4,"content":""}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/products/"+tt.productID+"/reviews", strings.NewReader(tt.body))
			req.SetPathValue("id", tt.productID)
			req = withIdentity(req, "user-1", "customer")
			w := httptest.NewRecorder()
			h.Create(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestCreateReview_Duplicate(t *testing.T) {
	f := newFixture(t)
	widget := f.seedProduct(t, "widget", 2500, 10)
	h := NewReviewHandlers(f.reviews, f.catalog)

	body := `{"rating":4,"content":"Solid, would buy again."}`
	for i, want := range []int{http.StatusCreated, http.StatusConflict} {
		req := httptest.NewRequest(http.MethodPost, "/products/"+widget.ID+"/reviews", strings.NewReader(body))
		req.SetPathValue("id", widget.ID)
		req = withIdentity(req, "user-1", "customer")
		w := httptest.NewRecorder()
		h.Create(w, req)
		if w.Code != want {
			t.Fatalf("attempt %d: expected %d, got %d: %s", i+1, want, w.Code, w.Body.String())
		}
	}
}

func TestModerateReview_InvalidStatus(t *testing.T) {
	f := newFixture(t)
	h := NewReviewHandlers(f.reviews, f.catalog)

	req := httptest.NewRequest(http.MethodPut, "/reviews/r-1", strings.NewReader(`{"status":"maybe"}`))
	req.SetPathValue("id", "r-1")
	req = withIdentity(req, "staff", "admin")
	w := httptest.NewRecorder()
	h.Moderate(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
