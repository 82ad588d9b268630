package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// paytrStatusKinds maps PayTR callback status values to canonical kinds.
// PayTR callbacks carry a status field instead of an event type.
var paytrStatusKinds = map[string]EventKind{
	"success": EventCompleted,
	"failed":  EventFailed,
	"refund":  EventRefunded,
}

// paytrRequestTimeout bounds outbound PayTR calls.
const paytrRequestTimeout = 10 * time.Second

// PayTRAdapter implements Gateway for PayTR's iframe/hosted checkout.
// PayTR speaks form-encoded requests and callbacks; the merchant_oid we
// generate at create time is the reference its callbacks echo back.
// Amounts convert to integer kurus for the token request and to decimal
// strings (round-half-up) inside the basket payload.
type PayTRAdapter struct {
	merchantID   string
	merchantKey  string
	merchantSalt string
	baseURL      string
	testMode     bool
	client       *http.Client
}

// NewPayTRAdapter creates a PayTR adapter.
func NewPayTRAdapter(merchantID, merchantKey, merchantSalt string, testMode bool) *PayTRAdapter {
	return &PayTRAdapter{
		merchantID:   merchantID,
		merchantKey:  merchantKey,
		merchantSalt: merchantSalt,
		baseURL:      "https://www.paytr.com",
		testMode:     testMode,
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Provider returns ProviderPayTR.
func (a *PayTRAdapter) Provider() Provider { return ProviderPayTR }

// merchantOID derives the alphanumeric merchant reference PayTR requires
// from the local payment ID.
func merchantOID(paymentID string) string {
	return strings.ReplaceAll(paymentID, "-", "")
}

type paytrTokenResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
	Token  string `json:"token"`
}

// CreatePayment requests a PayTR checkout token. The paytr_token field is
// base64(HMAC-SHA256) over the pipe-free concatenation of the request
// fields plus the merchant salt, per PayTR's token contract.
func (a *PayTRAdapter) CreatePayment(ctx context.Context, req *Request) (*Result, error) {
	if err := req.Validate(true); err != nil {
		return nil, err
	}

	oid := merchantOID(req.PaymentID)
	amount := strconv.FormatInt(req.Amount, 10)
	basket, err := a.encodeBasket(req.Items)
	if err != nil {
		return nil, err
	}

	testMode := "0"
	if a.testMode {
		testMode = "1"
	}
	noInstallment, maxInstallment := "0", "0"
	currency := strings.ToUpper(req.Currency)

	hashBase := a.merchantID + req.ClientIP + oid + req.Customer.Email + amount +
		basket + noInstallment + maxInstallment + currency + testMode
	token := a.sign(hashBase + a.merchantSalt)

	form := url.Values{
		"merchant_id":       {a.merchantID},
		"user_ip":           {req.ClientIP},
		"merchant_oid":      {oid},
		"email":             {req.Customer.Email},
		"payment_amount":    {amount},
		"paytr_token":       {token},
		"user_basket":       {basket},
		"no_installment":    {noInstallment},
		"max_installment":   {maxInstallment},
		"user_name":         {req.Customer.Name},
		"user_address":      {req.Customer.Address + " " + req.Customer.City},
		"user_phone":        {req.Customer.Phone},
		"merchant_ok_url":   {req.ReturnURL},
		"merchant_fail_url": {req.CancelURL},
		"currency":          {currency},
		"test_mode":         {testMode},
		"timeout_limit":     {"30"},
	}

	var resp paytrTokenResponse
	if err := a.postForm(ctx, "/odeme/api/get-token", form, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "success" {
		return nil, &GatewayError{
			Provider: ProviderPayTR,
			Code:     "rejected",
			Message:  resp.Reason,
		}
	}

	return &Result{
		Success:          true,
		GatewayReference: oid,
		RedirectURL:      a.baseURL + "/odeme/guvenli/" + resp.Token,
	}, nil
}

type paytrStatusResponse struct {
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	Reason        string `json:"err_msg"`
}

// Status queries PayTR's transaction status API for a merchant_oid.
// Transport failures yield GatewayStatusUnknown.
func (a *PayTRAdapter) Status(ctx context.Context, reference string) (GatewayStatus, error) {
	token := a.sign(a.merchantID + reference + a.merchantSalt)
	form := url.Values{
		"merchant_id":  {a.merchantID},
		"merchant_oid": {reference},
		"paytr_token":  {token},
	}

	var resp paytrStatusResponse
	if err := a.postForm(ctx, "/odeme/durum-sorgu", form, &resp); err != nil {
		return GatewayStatusUnknown, nil
	}
	switch resp.PaymentStatus {
	case "success":
		return GatewayStatusPaid, nil
	case "failed":
		return GatewayStatusFailed, nil
	case "waiting", "pending":
		return GatewayStatusPending, nil
	default:
		if resp.Status == "success" {
			return GatewayStatusPaid, nil
		}
		return GatewayStatusUnknown, nil
	}
}

// VerifyCallback authenticates a form-encoded PayTR callback. The hash
// travels inside the body: base64(HMAC-SHA256(merchant_oid + salt +
// status + total_amount)). The signature argument is unused for this
// provider.
func (a *PayTRAdapter) VerifyCallback(body []byte, signature string) error {
	fields, err := url.ParseQuery(string(body))
	if err != nil {
		return fmt.Errorf("%w: malformed callback body", ErrSignatureInvalid)
	}
	oid := fields.Get("merchant_oid")
	status := fields.Get("status")
	total := fields.Get("total_amount")
	provided := fields.Get("hash")
	if oid == "" || status == "" || provided == "" {
		return fmt.Errorf("%w: missing callback fields", ErrSignatureInvalid)
	}

	expected := a.sign(oid + a.merchantSalt + status + total)
	if !hmac.Equal([]byte(provided), []byte(expected)) {
		return ErrSignatureInvalid
	}
	return nil
}

// ParseEvent parses a verified form-encoded PayTR callback. PayTR has no
// event ID, so merchant_oid plus status forms the idempotency key.
func (a *PayTRAdapter) ParseEvent(body []byte) (*Event, error) {
	fields, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse paytr callback: %w", err)
	}

	status := fields.Get("status")
	ev := &Event{
		Provider:      ProviderPayTR,
		ID:            fields.Get("merchant_oid") + ":" + status,
		Type:          status,
		Kind:          EventUnknown,
		Reference:     fields.Get("merchant_oid"),
		FailureReason: fields.Get("failed_reason_msg"),
	}
	if kind, ok := paytrStatusKinds[status]; ok {
		ev.Kind = kind
	}
	if total := fields.Get("total_amount"); total != "" {
		if minor, err := strconv.ParseInt(total, 10, 64); err == nil {
			ev.Amount = minor
		}
	}
	return ev, nil
}

// sign computes base64(HMAC-SHA256(data)) with the merchant key.
func (a *PayTRAdapter) sign(data string) string {
	mac := hmac.New(sha256.New, []byte(a.merchantKey))
	mac.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// encodeBasket renders line items as PayTR's base64 JSON basket with
// decimal-string prices.
func (a *PayTRAdapter) encodeBasket(items []LineItem) (string, error) {
	basket := make([][3]any, len(items))
	for i, item := range items {
		basket[i] = [3]any{item.Name, FormatMinor(item.UnitPrice, 2), item.Quantity}
	}
	data, err := json.Marshal(basket)
	if err != nil {
		return "", fmt.Errorf("encode basket: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// postForm executes a form-encoded API call with the adapter timeout.
func (a *PayTRAdapter) postForm(ctx context.Context, path string, form url.Values, out any) error {
	ctx, cancel := context.WithTimeout(ctx, paytrRequestTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build paytr request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return &GatewayError{
			Provider:  ProviderPayTR,
			Code:      "transport_error",
			Message:   err.Error(),
			Retryable: true,
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &GatewayError{
			Provider:  ProviderPayTR,
			Code:      "transport_error",
			Message:   err.Error(),
			Retryable: true,
		}
	}
	if resp.StatusCode >= 400 {
		return &GatewayError{
			Provider:  ProviderPayTR,
			Code:      fmt.Sprintf("http_%d", resp.StatusCode),
			Message:   string(data),
			Retryable: resp.StatusCode >= 500,
		}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode paytr response: %w", err)
	}
	return nil
}
