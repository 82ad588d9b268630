package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

const paythorTestSecret = "paythor-webhook-secret"

func paythorSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func paythorTestRequest() *Request {
	return &Request{
		OrderID:  "order-1",
		Amount:   129900,
		Currency: "TRY",
		Method:   MethodPayThor,
		Customer: Customer{
			Name:     "Ayse Yilmaz",
			Email:    "ayse@example.com",
			Phone:    "+905551112233",
			Address:  "Istiklal Cad. 1",
			City:     "Istanbul",
			Country:  "TR",
			Postcode: "34000",
		},
		Items: []LineItem{
			{ID: "sku-1", Name: "Mechanical Keyboard", UnitPrice: 129900, Quantity: 1},
		},
		ReturnURL:   "https://shop.example.com/return",
		CancelURL:   "https://shop.example.com/cancel",
		CallbackURL: "https://shop.example.com/webhooks/paythor",
	}
}

func TestPayThorCreatePayment(t *testing.T) {
	var captured paythorCreateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/payment/create" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer api-key" {
			t.Errorf("Authorization = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"data": map[string]string{
				"payment_token": "tok_123",
				"payment_link":  "https://pay.paythor.com/tok_123",
			},
		})
	}))
	defer srv.Close()

	adapter := NewPayThorAdapter(srv.URL, "api-key", paythorTestSecret)
	result, err := adapter.CreatePayment(context.Background(), paythorTestRequest())
	if err != nil {
		t.Fatalf("CreatePayment returned error: %v", err)
	}
	if !result.Success {
		t.Error("result.Success = false")
	}
	if result.GatewayReference != "tok_123" {
		t.Errorf("gateway reference = %s, want tok_123", result.GatewayReference)
	}
	if result.RedirectURL != "https://pay.paythor.com/tok_123" {
		t.Errorf("redirect URL = %s", result.RedirectURL)
	}

	// Amounts cross this boundary as decimal strings.
	if captured.Amount != "1299.00" {
		t.Errorf("wire amount = %q, want 1299.00", captured.Amount)
	}
	if len(captured.Items) != 1 || captured.Items[0].Price != "1299.00" {
		t.Errorf("wire items = %+v", captured.Items)
	}
}

func TestPayThorCreatePaymentRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status":  "error",
			"message": "insufficient merchant balance",
		})
	}))
	defer srv.Close()

	adapter := NewPayThorAdapter(srv.URL, "api-key", paythorTestSecret)
	_, err := adapter.CreatePayment(context.Background(), paythorTestRequest())

	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("error = %v, want *GatewayError", err)
	}
	if gwErr.Retryable {
		t.Error("rejection marked retryable")
	}
	if gwErr.Message != "insufficient merchant balance" {
		t.Errorf("message = %q", gwErr.Message)
	}
}

func TestPayThorCreatePaymentServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	adapter := NewPayThorAdapter(srv.URL, "api-key", paythorTestSecret)
	_, err := adapter.CreatePayment(context.Background(), paythorTestRequest())

	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("error = %v, want *GatewayError", err)
	}
	if !gwErr.Retryable {
		t.Error("5xx not marked retryable")
	}
}

func TestPayThorCreatePaymentRequiresAddress(t *testing.T) {
	adapter := NewPayThorAdapter("http://unused", "api-key", paythorTestSecret)

	req := paythorTestRequest()
	req.Customer.Phone = ""
	if _, err := adapter.CreatePayment(context.Background(), req); !errors.Is(err, ErrMissingPhone) {
		t.Errorf("missing phone error = %v, want ErrMissingPhone", err)
	}

	req = paythorTestRequest()
	req.Customer.Address = ""
	if _, err := adapter.CreatePayment(context.Background(), req); !errors.Is(err, ErrMissingAddress) {
		t.Errorf("missing address error = %v, want ErrMissingAddress", err)
	}
}

func TestPayThorStatus(t *testing.T) {
	tests := []struct {
		provider string
		want     GatewayStatus
	}{
		{"completed", GatewayStatusPaid},
		{"approved", GatewayStatusPaid},
		{"failed", GatewayStatusFailed},
		{"declined", GatewayStatusFailed},
		{"expired", GatewayStatusFailed},
		{"refunded", GatewayStatusRefunded},
		{"pending", GatewayStatusPending},
		{"processing", GatewayStatusPending},
		{"weird", GatewayStatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{
					"status": "success",
					"data":   map[string]string{"payment_status": tt.provider},
				})
			}))
			defer srv.Close()

			adapter := NewPayThorAdapter(srv.URL, "api-key", paythorTestSecret)
			got, err := adapter.Status(context.Background(), "tok_123")
			if err != nil {
				t.Fatalf("Status returned error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Status(%s) = %s, want %s", tt.provider, got, tt.want)
			}
		})
	}
}

func TestPayThorStatusDownProviderIsUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	adapter := NewPayThorAdapter(srv.URL, "api-key", paythorTestSecret)
	got, err := adapter.Status(context.Background(), "tok_123")
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if got != GatewayStatusUnknown {
		t.Errorf("Status on provider outage = %s, want unknown", got)
	}
}

func TestPayThorVerifyCallback(t *testing.T) {
	adapter := NewPayThorAdapter("http://unused", "api-key", paythorTestSecret)
	body := []byte(`{"event_type":"payment.completed","payment_token":"tok_123","event_id":"evt_1"}`)

	sig := paythorSignature(paythorTestSecret, body)
	if err := adapter.VerifyCallback(body, sig); err != nil {
		t.Fatalf("VerifyCallback rejected a valid signature: %v", err)
	}

	// Flipping any body byte must invalidate the signature.
	tampered := append([]byte(nil), body...)
	tampered[10] ^= 0x01
	if err := adapter.VerifyCallback(tampered, sig); !errors.Is(err, ErrSignatureInvalid) {
		t.Errorf("tampered body error = %v, want ErrSignatureInvalid", err)
	}

	// Wrong secret.
	wrongSig := paythorSignature("other-secret", body)
	if err := adapter.VerifyCallback(body, wrongSig); !errors.Is(err, ErrSignatureInvalid) {
		t.Errorf("wrong-secret signature error = %v, want ErrSignatureInvalid", err)
	}

	// Garbage signature encoding.
	if err := adapter.VerifyCallback(body, "not-hex!"); !errors.Is(err, ErrSignatureInvalid) {
		t.Errorf("malformed signature error = %v, want ErrSignatureInvalid", err)
	}
}

func TestPayThorParseEvent(t *testing.T) {
	adapter := NewPayThorAdapter("http://unused", "api-key", paythorTestSecret)

	body := []byte(`{
		"event_type": "payment.completed",
		"payment_token": "tok_123",
		"event_id": "evt_1",
		"order_ref": "order-1",
		"amount": "1299.00"
	}`)
	ev, err := adapter.ParseEvent(body)
	if err != nil {
		t.Fatalf("ParseEvent returned error: %v", err)
	}
	if ev.Provider != ProviderPayThor {
		t.Errorf("provider = %s", ev.Provider)
	}
	if ev.Kind != EventCompleted {
		t.Errorf("kind = %s, want completed", ev.Kind)
	}
	if ev.Reference != "tok_123" || ev.ID != "evt_1" {
		t.Errorf("reference/ID = %s/%s", ev.Reference, ev.ID)
	}
	if ev.Amount != 129900 {
		t.Errorf("amount = %d, want 129900", ev.Amount)
	}
}

func TestPayThorParseEventKinds(t *testing.T) {
	adapter := NewPayThorAdapter("http://unused", "api-key", paythorTestSecret)

	tests := []struct {
		eventType string
		want      EventKind
	}{
		{"payment.completed", EventCompleted},
		{"payment.approved", EventCompleted},
		{"payment.failed", EventFailed},
		{"payment.declined", EventFailed},
		{"payment.expired", EventFailed},
		{"payment.refunded", EventRefunded},
		{"payment.disputed", EventChargeback},
		{"payment.created", EventUnknown},
		{"merchant.settings_changed", EventUnknown},
	}

	for _, tt := range tests {
		body, _ := json.Marshal(map[string]string{"event_type": tt.eventType, "payment_token": "tok"})
		ev, err := adapter.ParseEvent(body)
		if err != nil {
			t.Fatalf("ParseEvent(%s) returned error: %v", tt.eventType, err)
		}
		if ev.Kind != tt.want {
			t.Errorf("ParseEvent(%s).Kind = %s, want %s", tt.eventType, ev.Kind, tt.want)
		}
	}
}

func TestPayThorParseEventFailureReason(t *testing.T) {
	adapter := NewPayThorAdapter("http://unused", "api-key", paythorTestSecret)

	body := []byte(`{"event_type":"payment.declined","payment_token":"tok","reason":"limit exceeded"}`)
	ev, err := adapter.ParseEvent(body)
	if err != nil {
		t.Fatalf("ParseEvent returned error: %v", err)
	}
	if ev.FailureReason != "limit exceeded" {
		t.Errorf("failure reason = %q", ev.FailureReason)
	}
}
