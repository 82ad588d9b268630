package payment

import (
	"context"
	"errors"
	"fmt"
)

// GatewayStatus is the canonical answer to a provider status poll.
type GatewayStatus string

// Status poll results. GatewayStatusUnknown is the deliberate answer when
// the provider is unreachable: the caller falls back to locally known
// state instead of treating downtime as a failed payment.
const (
	GatewayStatusPending  GatewayStatus = "pending"
	GatewayStatusPaid     GatewayStatus = "paid"
	GatewayStatusFailed   GatewayStatus = "failed"
	GatewayStatusRefunded GatewayStatus = "refunded"
	GatewayStatusUnknown  GatewayStatus = "unknown"
)

// EventKind is the canonical classification of a provider callback event.
type EventKind string

// Canonical event kinds. Unmapped provider event types become
// EventUnknown and are acknowledged without mutation.
const (
	EventCompleted  EventKind = "completed"
	EventFailed     EventKind = "failed"
	EventRefunded   EventKind = "refunded"
	EventChargeback EventKind = "chargeback"
	EventUnknown    EventKind = "unknown"
)

// Event is a verified, parsed callback notification. Raw provider fields
// never leave the adapter that owns them; consumers see only this shape.
type Event struct {
	Provider      Provider
	ID            string // Provider event ID, used for webhook idempotency
	Type          string // Provider-specific event type, for logging
	Kind          EventKind
	Reference     string // Gateway transaction reference joining back to a Payment
	PaymentID     string // Metadata-embedded local payment ID, when the provider echoes one
	Amount        int64  // Minor units when the provider reports one, else 0
	FailureReason string
}

// GatewayError is a provider-reported rejection or transport failure.
// Retryable distinguishes transient transport problems from a definitive
// rejection; only the former should be retried against the same attempt.
type GatewayError struct {
	Provider  Provider
	Code      string
	Message   string
	Retryable bool
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s gateway error [%s]: %s", e.Provider, e.Code, e.Message)
}

// ErrSignatureInvalid is returned by VerifyCallback when a callback body
// fails authentication. Handlers must not mutate any state after seeing it.
var ErrSignatureInvalid = errors.New("callback signature verification failed")

// Gateway adapts the canonical payment contract onto one external
// provider. One instance per provider is constructed at process start and
// injected into the orchestrator; adapters hold no request state.
type Gateway interface {
	// Provider returns the provider this adapter talks to.
	Provider() Provider

	// CreatePayment translates req into the provider's wire format,
	// invokes the provider, and returns the canonical result. Rejections
	// and transport failures surface as *GatewayError.
	CreatePayment(ctx context.Context, req *Request) (*Result, error)

	// Status polls the provider for the current state of a payment.
	// Provider downtime yields GatewayStatusUnknown, not an error.
	Status(ctx context.Context, reference string) (GatewayStatus, error)

	// VerifyCallback authenticates a raw callback body against its
	// signature. Returns ErrSignatureInvalid on any mismatch.
	VerifyCallback(body []byte, signature string) error

	// ParseEvent parses a verified callback body into a canonical Event.
	ParseEvent(body []byte) (*Event, error)
}

// Registry holds the configured gateway adapters keyed by provider.
type Registry map[Provider]Gateway

// ErrUnknownProvider is returned when no adapter is registered for the
// requested provider or method.
var ErrUnknownProvider = errors.New("no gateway registered for provider")

// ForMethod resolves the adapter handling the given payment method.
func (r Registry) ForMethod(m Method) (Gateway, error) {
	p, ok := ProviderForMethod(m)
	if !ok {
		return nil, fmt.Errorf("%w: method %q", ErrUnknownProvider, m)
	}
	g, ok := r[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, p)
	}
	return g, nil
}
