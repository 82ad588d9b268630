package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// paythorEventKinds maps PayThor callback event types to canonical kinds.
var paythorEventKinds = map[string]EventKind{
	"payment.completed": EventCompleted,
	"payment.approved":  EventCompleted,
	"payment.failed":    EventFailed,
	"payment.declined":  EventFailed,
	"payment.expired":   EventFailed,
	"payment.refunded":  EventRefunded,
	"payment.disputed":  EventChargeback,
}

// paythorRequestTimeout bounds outbound PayThor calls below the shared
// HTTP client default so a hung provider surfaces as an unknown outcome.
const paythorRequestTimeout = 10 * time.Second

// PayThorAdapter implements Gateway for the PayThor hosted payment page.
// PayThor requires a full postal address and phone for every payer and
// expects amounts as decimal strings (round-half-up at this boundary).
type PayThorAdapter struct {
	baseURL       string
	apiKey        string
	webhookSecret string
	client        *http.Client
}

// NewPayThorAdapter creates a PayThor adapter.
func NewPayThorAdapter(baseURL, apiKey, webhookSecret string) *PayThorAdapter {
	return &PayThorAdapter{
		baseURL:       baseURL,
		apiKey:        apiKey,
		webhookSecret: webhookSecret,
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Provider returns ProviderPayThor.
func (a *PayThorAdapter) Provider() Provider { return ProviderPayThor }

type paythorItem struct {
	Name     string `json:"name"`
	Price    string `json:"price"`
	Quantity int64  `json:"quantity"`
}

type paythorCreateRequest struct {
	Amount      string        `json:"amount"`
	Currency    string        `json:"currency"`
	OrderRef    string        `json:"order_ref"`
	FirstName   string        `json:"payer_first_name"`
	Email       string        `json:"payer_email"`
	Phone       string        `json:"payer_phone"`
	Address     string        `json:"payer_address"`
	City        string        `json:"payer_city"`
	Country     string        `json:"payer_country"`
	Postcode    string        `json:"payer_postcode"`
	Items       []paythorItem `json:"items"`
	ReturnURL   string        `json:"return_url"`
	CancelURL   string        `json:"cancel_url"`
	CallbackURL string        `json:"callback_url"`
}

type paythorCreateResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		PaymentToken string `json:"payment_token"`
		PaymentLink  string `json:"payment_link"`
	} `json:"data"`
}

// CreatePayment creates a PayThor payment and returns the hosted payment
// link. Missing payer address or phone fails fast before any network call.
func (a *PayThorAdapter) CreatePayment(ctx context.Context, req *Request) (*Result, error) {
	if err := req.Validate(true); err != nil {
		return nil, err
	}

	items := make([]paythorItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = paythorItem{
			Name:     item.Name,
			Price:    FormatMinor(item.UnitPrice, 2),
			Quantity: item.Quantity,
		}
	}

	body := paythorCreateRequest{
		Amount:      FormatMinor(req.Amount, 2),
		Currency:    req.Currency,
		OrderRef:    req.OrderID,
		FirstName:   req.Customer.Name,
		Email:       req.Customer.Email,
		Phone:       req.Customer.Phone,
		Address:     req.Customer.Address,
		City:        req.Customer.City,
		Country:     req.Customer.Country,
		Postcode:    req.Customer.Postcode,
		Items:       items,
		ReturnURL:   req.ReturnURL,
		CancelURL:   req.CancelURL,
		CallbackURL: req.CallbackURL,
	}

	var resp paythorCreateResponse
	if err := a.do(ctx, http.MethodPost, "/payment/create", body, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "success" {
		return nil, &GatewayError{
			Provider: ProviderPayThor,
			Code:     "rejected",
			Message:  resp.Message,
		}
	}

	return &Result{
		Success:          true,
		GatewayReference: resp.Data.PaymentToken,
		RedirectURL:      resp.Data.PaymentLink,
	}, nil
}

type paythorStatusResponse struct {
	Status string `json:"status"`
	Data   struct {
		PaymentStatus string `json:"payment_status"`
	} `json:"data"`
}

// Status polls PayThor for the state of a payment token. Transport
// failures yield GatewayStatusUnknown.
func (a *PayThorAdapter) Status(ctx context.Context, reference string) (GatewayStatus, error) {
	var resp paythorStatusResponse
	if err := a.do(ctx, http.MethodGet, "/payment/status/"+reference, nil, &resp); err != nil {
		return GatewayStatusUnknown, nil
	}
	switch resp.Data.PaymentStatus {
	case "completed", "approved":
		return GatewayStatusPaid, nil
	case "failed", "declined", "expired":
		return GatewayStatusFailed, nil
	case "refunded":
		return GatewayStatusRefunded, nil
	case "pending", "processing":
		return GatewayStatusPending, nil
	default:
		return GatewayStatusUnknown, nil
	}
}

// VerifyCallback authenticates a callback as HMAC-SHA256 over the raw
// body, hex encoded, compared in constant time. Every PayThor callback
// must pass here before any state is read or written.
func (a *PayThorAdapter) VerifyCallback(body []byte, signature string) error {
	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("%w: malformed signature", ErrSignatureInvalid)
	}
	want, _ := hex.DecodeString(expected)
	if !hmac.Equal(provided, want) {
		return ErrSignatureInvalid
	}
	return nil
}

type paythorCallback struct {
	EventType    string `json:"event_type"`
	PaymentToken string `json:"payment_token"`
	EventID      string `json:"event_id"`
	OrderRef     string `json:"order_ref"`
	Amount       string `json:"amount"`
	Reason       string `json:"reason"`
}

// ParseEvent parses a verified PayThor callback body.
func (a *PayThorAdapter) ParseEvent(body []byte) (*Event, error) {
	var cb paythorCallback
	if err := json.Unmarshal(body, &cb); err != nil {
		return nil, fmt.Errorf("parse paythor callback: %w", err)
	}

	ev := &Event{
		Provider:      ProviderPayThor,
		ID:            cb.EventID,
		Type:          cb.EventType,
		Kind:          EventUnknown,
		Reference:     cb.PaymentToken,
		FailureReason: cb.Reason,
	}
	if kind, ok := paythorEventKinds[cb.EventType]; ok {
		ev.Kind = kind
	}
	if cb.Amount != "" {
		if minor, err := ParseMinor(cb.Amount, 2); err == nil {
			ev.Amount = minor
		}
	}
	return ev, nil
}

// do executes a JSON API call with the adapter's own timeout applied on
// top of the client timeout. Non-2xx responses and transport failures
// both surface as *GatewayError with Retryable set for the latter.
func (a *PayThorAdapter) do(ctx context.Context, method, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, paythorRequestTimeout)
	defer cancel()

	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode paythor request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build paythor request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return &GatewayError{
			Provider:  ProviderPayThor,
			Code:      "transport_error",
			Message:   err.Error(),
			Retryable: true,
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &GatewayError{
			Provider:  ProviderPayThor,
			Code:      "transport_error",
			Message:   err.Error(),
			Retryable: true,
		}
	}
	if resp.StatusCode >= 500 {
		return &GatewayError{
			Provider:  ProviderPayThor,
			Code:      fmt.Sprintf("http_%d", resp.StatusCode),
			Message:   string(data),
			Retryable: true,
		}
	}
	if resp.StatusCode >= 400 {
		return &GatewayError{
			Provider: ProviderPayThor,
			Code:     fmt.Sprintf("http_%d", resp.StatusCode),
			Message:  string(data),
		}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode paythor response: %w", err)
	}
	return nil
}
