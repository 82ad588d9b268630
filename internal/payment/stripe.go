package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/webhook"
)

// stripeEventKinds maps Stripe webhook event types to canonical kinds.
// This table is the single source of truth for Stripe status mapping;
// anything absent parses to EventUnknown.
var stripeEventKinds = map[string]EventKind{
	"checkout.session.completed":    EventCompleted,
	"payment_intent.succeeded":      EventCompleted,
	"payment_intent.payment_failed": EventFailed,
	"charge.refunded":               EventRefunded,
	"charge.dispute.created":        EventChargeback,
}

// StripeAdapter implements Gateway using Stripe Checkout Sessions.
// Stripe already expects integer minor units, so amounts pass through
// unchanged (round-half-up never fires for this adapter).
type StripeAdapter struct {
	webhookSecret string
}

// NewStripeAdapter creates a Stripe adapter with the given API key and
// webhook signing secret.
func NewStripeAdapter(apiKey, webhookSecret string) *StripeAdapter {
	stripe.Key = apiKey
	return &StripeAdapter{webhookSecret: webhookSecret}
}

// Provider returns ProviderStripe.
func (a *StripeAdapter) Provider() Provider { return ProviderStripe }

// CreatePayment creates a hosted Checkout Session. The local payment and
// order IDs travel in the PaymentIntent metadata so webhook events can be
// joined back even when the session reference is unavailable.
func (a *StripeAdapter) CreatePayment(ctx context.Context, req *Request) (*Result, error) {
	if err := req.Validate(false); err != nil {
		return nil, err
	}

	lineItems := make([]*stripe.CheckoutSessionLineItemParams, len(req.Items))
	for i, item := range req.Items {
		lineItems[i] = &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(req.Currency)),
				UnitAmount: stripe.Int64(item.UnitPrice),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
			},
			Quantity: stripe.Int64(item.Quantity),
		}
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:         lineItems,
		SuccessURL:        stripe.String(req.ReturnURL),
		CancelURL:         stripe.String(req.CancelURL),
		CustomerEmail:     stripe.String(req.Customer.Email),
		ClientReferenceID: stripe.String(req.OrderID),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{
				"order_id":   req.OrderID,
				"payment_id": req.PaymentID,
			},
		},
	}
	params.Context = ctx

	sess, err := session.New(params)
	if err != nil {
		return nil, a.wrapError(err)
	}

	return &Result{
		Success:          true,
		GatewayReference: sess.ID,
		RedirectURL:      sess.URL,
	}, nil
}

// Status polls the Checkout Session. Stripe downtime (5xx or transport
// failure) yields GatewayStatusUnknown so the caller keeps local state.
func (a *StripeAdapter) Status(ctx context.Context, reference string) (GatewayStatus, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := session.Get(reference, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode < 500 {
			return GatewayStatusUnknown, a.wrapError(err)
		}
		return GatewayStatusUnknown, nil
	}

	switch sess.PaymentStatus {
	case stripe.CheckoutSessionPaymentStatusPaid:
		return GatewayStatusPaid, nil
	case stripe.CheckoutSessionPaymentStatusUnpaid:
		if sess.Status == stripe.CheckoutSessionStatusExpired {
			return GatewayStatusFailed, nil
		}
		return GatewayStatusPending, nil
	default:
		return GatewayStatusPending, nil
	}
}

// VerifyCallback checks the Stripe-Signature header using the SDK's
// timestamped HMAC scheme.
func (a *StripeAdapter) VerifyCallback(body []byte, signature string) error {
	if _, err := webhook.ConstructEvent(body, signature, a.webhookSecret); err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	return nil
}

// ParseEvent maps a verified Stripe event envelope to the canonical form.
func (a *StripeAdapter) ParseEvent(body []byte) (*Event, error) {
	var event stripe.Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("parse stripe event: %w", err)
	}

	ev := &Event{
		Provider: ProviderStripe,
		ID:       event.ID,
		Type:     string(event.Type),
		Kind:     EventUnknown,
	}
	if kind, ok := stripeEventKinds[string(event.Type)]; ok {
		ev.Kind = kind
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("parse checkout session: %w", err)
		}
		ev.Reference = sess.ID
		ev.Amount = sess.AmountTotal
		// A completed session is only a completed payment once Stripe
		// reports it paid; async methods settle later via the intent.
		if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			ev.Kind = EventUnknown
		}
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return nil, fmt.Errorf("parse payment intent: %w", err)
		}
		ev.Reference = intent.ID
		ev.Amount = intent.Amount
		if intent.Metadata != nil {
			ev.PaymentID = intent.Metadata["payment_id"]
		}
		if intent.LastPaymentError != nil {
			if intent.LastPaymentError.Code != "" {
				ev.FailureReason = string(intent.LastPaymentError.Code)
			} else {
				ev.FailureReason = intent.LastPaymentError.Msg
			}
		}
	case "charge.refunded", "charge.dispute.created":
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return nil, fmt.Errorf("parse charge: %w", err)
		}
		if charge.PaymentIntent != nil {
			ev.Reference = charge.PaymentIntent.ID
		}
		ev.Amount = charge.Amount
		if charge.Metadata != nil {
			ev.PaymentID = charge.Metadata["payment_id"]
		}
	}

	return ev, nil
}

// wrapError converts SDK errors into *GatewayError, preserving Stripe's
// message for user-facing retry guidance. API keys never appear in
// stripe-go error messages.
func (a *StripeAdapter) wrapError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return &GatewayError{
			Provider:  ProviderStripe,
			Code:      string(stripeErr.Code),
			Message:   stripeErr.Msg,
			Retryable: stripeErr.HTTPStatusCode >= 500,
		}
	}
	return &GatewayError{
		Provider:  ProviderStripe,
		Code:      "transport_error",
		Message:   err.Error(),
		Retryable: true,
	}
}
