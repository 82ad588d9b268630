// Package payment implements the payment orchestration core: gateway
// adapters, the payment state machine, and webhook reconciliation.
package payment

import "time"

// Status represents the lifecycle state of a payment attempt.
type Status string

// Payment status values.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

// Method represents the payment method chosen by the customer.
type Method string

// Payment method values.
const (
	MethodCreditCard Method = "credit_card"
	MethodDebitCard  Method = "debit_card"
	MethodStripe     Method = "stripe"
	MethodPayThor    Method = "paythor"
	MethodPayTR      Method = "paytr"
)

// Provider identifies an external payment gateway.
type Provider string

// Supported gateway providers.
const (
	ProviderStripe  Provider = "stripe"
	ProviderPayThor Provider = "paythor"
	ProviderPayTR   Provider = "paytr"
)

// ProviderForMethod maps a payment method to the gateway that processes it.
// Card methods are routed through Stripe; provider-named methods map to
// their own gateway.
func ProviderForMethod(m Method) (Provider, bool) {
	switch m {
	case MethodCreditCard, MethodDebitCard, MethodStripe:
		return ProviderStripe, true
	case MethodPayThor:
		return ProviderPayThor, true
	case MethodPayTR:
		return ProviderPayTR, true
	}
	return "", false
}

// Payment represents a single payment attempt against an order.
// Rows are never deleted: failed and cancelled attempts are retained for
// audit and superseded by new rows on retry.
type Payment struct {
	ID            string     `json:"id"`
	OrderID       string     `json:"order_id"`
	Amount        int64      `json:"amount"` // Minor currency units
	Currency      string     `json:"currency"`
	Items         []LineItem `json:"items,omitempty"` // Quoted lines; replayed verbatim on retry
	Method        Method     `json:"method"`
	Provider      Provider   `json:"provider"`
	Status        Status     `json:"status"`
	TransactionID string     `json:"transaction_id"` // Gateway reference; locally generated until the gateway assigns one
	SupersededBy  *string    `json:"superseded_by,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
	PaymentDate   *time.Time `json:"payment_date,omitempty"` // Set on completion
	CreatedAt     *time.Time `json:"created_at,omitempty"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

// IsTerminal reports whether the status admits no further gateway-driven
// transition. Completed is not terminal because a refund can still land.
func (s Status) IsTerminal() bool {
	return s == StatusFailed || s == StatusCancelled || s == StatusRefunded
}

// CanRetry reports whether a payment in this status may be superseded by a
// new attempt.
func (s Status) CanRetry() bool {
	return s == StatusFailed || s == StatusCancelled
}

// ValidTransition reports whether moving from one status to another is
// allowed by the payment state machine. Refunded is reachable only from
// completed; a completed payment otherwise absorbs further events.
func ValidTransition(from, to Status) bool {
	if from == to {
		return false
	}
	switch from {
	case StatusPending:
		return to == StatusProcessing || to == StatusCompleted || to == StatusFailed || to == StatusCancelled
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed || to == StatusCancelled
	case StatusCompleted:
		return to == StatusRefunded
	}
	return false
}
