package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kavexa/storefront/internal/notifier"
	"github.com/kavexa/storefront/internal/order"
)

var (
	// ErrDuplicatePayment is returned when an order already has a
	// completed payment. Callers treat it as benign for idempotent
	// completion paths and as a rejection for new create calls.
	ErrDuplicatePayment = errors.New("order already paid")

	// ErrNotRetryable is returned when retrying a payment that is not
	// failed or cancelled.
	ErrNotRetryable = errors.New("payment is not in a retryable state")

	// ErrAmountMismatch is returned when a create request's amount does
	// not match the order total.
	ErrAmountMismatch = errors.New("payment amount does not match order total")

	// ErrCannotCancel is returned when cancelling a completed payment.
	ErrCannotCancel = errors.New("completed payment cannot be cancelled")
)

// DefaultGatewayTimeout bounds a single outbound gateway call from the
// orchestrator's side, below the adapters' HTTP client timeouts.
const DefaultGatewayTimeout = 15 * time.Second

// Orchestrator is the payment state-transition engine. It creates
// attempts, enforces at most one completed payment per order, handles
// retry with supersession, and derives order status from payment
// outcomes. One instance serves the whole process; adapters are injected
// at construction.
type Orchestrator struct {
	gateways Registry
	payments Repository
	orders   order.Repository
	notify   notifier.Notifier
	logger   *slog.Logger
	metrics  *Metrics
	timeout  time.Duration

	// Per-order advisory locks serialize create/retry for one order in
	// this process. The store-level exclusive completion remains the
	// real enforcement point.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewOrchestrator creates a payment orchestrator.
func NewOrchestrator(
	gateways Registry,
	payments Repository,
	orders order.Repository,
	notify notifier.Notifier,
	logger *slog.Logger,
	metrics *Metrics,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		gateways: gateways,
		payments: payments,
		orders:   orders,
		notify:   notify,
		logger:   logger,
		metrics:  metrics,
		timeout:  DefaultGatewayTimeout,
		locks:    make(map[string]*sync.Mutex),
	}
}

// orderLock returns the advisory lock for an order, creating it on first
// use. Locks are never removed; the table stays small because it only
// grows with orders that saw payment activity in this process.
func (o *Orchestrator) orderLock(orderID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.locks[orderID]
	if !ok {
		l = &sync.Mutex{}
		o.locks[orderID] = l
	}
	return l
}

// localReference generates the placeholder transaction ID a payment row
// carries until the gateway assigns its own reference.
func localReference() string {
	return "local-" + uuid.New().String()
}

// syntheticReference generates the audit transaction ID for attempts the
// gateway rejected before assigning a reference.
func syntheticReference() string {
	return fmt.Sprintf("failed-%d", time.Now().UnixNano())
}

// Create starts a new payment attempt for an order. The request's amount
// must match the order total; a zero amount is filled in from the order.
// On gateway rejection the attempt is persisted as failed with a
// synthetic transaction ID and the gateway's reason is returned verbatim.
// A transport timeout leaves the row pending: the outcome is unknown and
// the status sweep resolves it.
func (o *Orchestrator) Create(ctx context.Context, req *Request) (*Payment, *Result, error) {
	gw, err := o.gateways.ForMethod(req.Method)
	if err != nil {
		return nil, nil, err
	}

	ord, err := o.orders.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, nil, err
	}
	if req.Amount == 0 {
		req.Amount = ord.TotalAmount
	}
	if req.Amount != ord.TotalAmount {
		return nil, nil, ErrAmountMismatch
	}
	if req.Currency == "" {
		req.Currency = ord.Currency
	}

	lock := o.orderLock(req.OrderID)
	lock.Lock()
	defer lock.Unlock()

	attempts, err := o.payments.ListByOrder(ctx, req.OrderID)
	if err != nil {
		return nil, nil, err
	}
	for _, a := range attempts {
		if a.Status == StatusCompleted {
			return nil, nil, ErrDuplicatePayment
		}
	}

	return o.attempt(ctx, gw, req)
}

// Retry supersedes a failed or cancelled payment with a new attempt for
// the same order. The original quote is preserved: amount, currency, and
// line items come from the superseded row unless the caller supplies a
// replacement basket, never re-derived. The superseded row
// keeps its transaction ID and becomes cancelled; the chain only moves
// forward even if the new attempt fails too.
func (o *Orchestrator) Retry(ctx context.Context, paymentID string, req *Request) (*Payment, *Result, error) {
	prior, err := o.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, nil, err
	}
	if !prior.Status.CanRetry() {
		return nil, nil, ErrNotRetryable
	}

	gw, err := o.gateways.ForMethod(req.Method)
	if err != nil {
		return nil, nil, err
	}

	req.OrderID = prior.OrderID
	req.Amount = prior.Amount
	req.Currency = prior.Currency
	if len(req.Items) == 0 {
		req.Items = prior.Items
	}

	lock := o.orderLock(prior.OrderID)
	lock.Lock()
	defer lock.Unlock()

	attempts, err := o.payments.ListByOrder(ctx, prior.OrderID)
	if err != nil {
		return nil, nil, err
	}
	for _, a := range attempts {
		if a.Status == StatusCompleted {
			return nil, nil, ErrDuplicatePayment
		}
	}

	p, result, attemptErr := o.attempt(ctx, gw, req)
	if p != nil {
		// Mark the prior attempt superseded regardless of the new
		// attempt's outcome; the chain never resurrects it.
		prior.Status = StatusCancelled
		prior.SupersededBy = &p.ID
		if err := o.payments.Update(ctx, prior); err != nil {
			o.logger.ErrorContext(ctx, "failed to mark payment superseded",
				"payment_id", prior.ID, "error", err)
		}
	}
	return p, result, attemptErr
}

// attempt persists a pending row, invokes the gateway, and applies the
// outcome. Callers hold the order lock.
func (o *Orchestrator) attempt(ctx context.Context, gw Gateway, req *Request) (*Payment, *Result, error) {
	p := &Payment{
		OrderID:       req.OrderID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Items:         req.Items,
		Method:        req.Method,
		Provider:      gw.Provider(),
		Status:        StatusPending,
		TransactionID: localReference(),
	}
	if err := o.payments.Create(ctx, p); err != nil {
		return nil, nil, err
	}
	req.PaymentID = p.ID

	gwCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	result, err := gw.CreatePayment(gwCtx, req)
	if err != nil {
		var gwErr *GatewayError
		if errors.As(err, &gwErr) && gwErr.Retryable {
			// Unknown outcome: the call may have reached the provider.
			// Leave the row pending for the status sweep to resolve.
			o.metrics.IncAttempt(gw.Provider(), "unknown")
			o.logger.WarnContext(ctx, "gateway call outcome unknown",
				"payment_id", p.ID, "provider", gw.Provider(), "error", err)
			return p, nil, err
		}

		p.Status = StatusFailed
		p.TransactionID = syntheticReference()
		p.FailureReason = err.Error()
		if updateErr := o.payments.Update(ctx, p); updateErr != nil {
			o.logger.ErrorContext(ctx, "failed to persist rejected payment",
				"payment_id", p.ID, "error", updateErr)
		}
		o.metrics.IncAttempt(gw.Provider(), "rejected")
		return p, nil, err
	}

	p.TransactionID = result.GatewayReference
	if err := o.payments.Update(ctx, p); err != nil {
		return nil, nil, fmt.Errorf("persist gateway reference: %w", err)
	}
	o.metrics.IncAttempt(gw.Provider(), "created")
	return p, result, nil
}

// Complete marks a payment completed and moves its order from pending to
// processing. The method is re-runnable: completing an already completed
// payment skips the row update but still finishes the order transition
// and notification if an earlier run died between the two, so a webhook
// redelivery can repair a half-applied completion. Once the order has
// left pending the whole call is a no-op.
func (o *Orchestrator) Complete(ctx context.Context, paymentID, gatewayTransactionID string) error {
	p, err := o.payments.GetByID(ctx, paymentID)
	if err != nil {
		return err
	}
	if p.Status == StatusRefunded {
		return fmt.Errorf("payment %s is refunded and cannot be completed", paymentID)
	}
	if p.Status == StatusCancelled {
		// A superseded attempt settled after its replacement was
		// created. The customer's money moved, so the completion is
		// honored; order-level exclusivity still applies below.
		o.logger.WarnContext(ctx, "completing superseded payment",
			"payment_id", p.ID, "order_id", p.OrderID)
	}

	if p.Status != StatusCompleted {
		if err := o.payments.CompleteExclusive(ctx, paymentID, gatewayTransactionID, time.Now()); err != nil {
			if errors.Is(err, ErrOrderAlreadyPaid) {
				return ErrDuplicatePayment
			}
			return err
		}
	}

	ord, err := o.orders.GetByID(ctx, p.OrderID)
	if err != nil {
		return err
	}
	if ord.Status != order.StatusPending {
		return nil
	}
	if err := o.orders.UpdateStatus(ctx, ord.ID, order.StatusProcessing); err != nil &&
		!errors.Is(err, order.ErrInvalidTransition) {
		return err
	}

	if o.notify != nil && ord.Email != "" {
		if err := o.notify.Send(ctx, ord.Email, notifier.TemplateOrderConfirmed, map[string]string{
			"order_id": ord.ID,
			"amount":   FormatMinor(p.Amount, 2),
			"currency": p.Currency,
		}); err != nil {
			o.logger.ErrorContext(ctx, "order confirmation notification failed",
				"order_id", ord.ID, "error", err)
		}
	}
	return nil
}

// Cancel marks a payment failed (or cancelled when asCancelled is set)
// and cancels the order only when the failing attempt is the newest in
// its chain and nothing has completed. A late failure callback for a
// superseded attempt must not cancel an order whose retry is in flight.
func (o *Orchestrator) Cancel(ctx context.Context, paymentID, reason string, asCancelled bool) error {
	p, err := o.payments.GetByID(ctx, paymentID)
	if err != nil {
		return err
	}
	if p.Status == StatusCompleted || p.Status == StatusRefunded {
		return ErrCannotCancel
	}
	if p.Status.IsTerminal() {
		return nil
	}

	p.Status = StatusFailed
	if asCancelled {
		p.Status = StatusCancelled
	}
	p.FailureReason = reason
	if err := o.payments.Update(ctx, p); err != nil {
		return err
	}

	attempts, err := o.payments.ListByOrder(ctx, p.OrderID)
	if err != nil {
		return err
	}
	active := attempts[len(attempts)-1]
	for _, a := range attempts {
		if a.Status == StatusCompleted {
			return nil
		}
	}
	if active.ID != p.ID {
		return nil
	}

	ord, err := o.orders.GetByID(ctx, p.OrderID)
	if err != nil {
		return err
	}
	if ord.Status != order.StatusPending {
		return nil
	}
	if err := o.orders.UpdateStatus(ctx, ord.ID, order.StatusCancelled); err != nil {
		if errors.Is(err, order.ErrInvalidTransition) {
			return nil
		}
		return err
	}

	if o.notify != nil && ord.Email != "" {
		if err := o.notify.Send(ctx, ord.Email, notifier.TemplateOrderCancelled, map[string]string{
			"order_id": ord.ID,
			"reason":   reason,
		}); err != nil {
			o.logger.ErrorContext(ctx, "order cancellation notification failed",
				"order_id", ord.ID, "error", err)
		}
	}
	return nil
}

// Refund marks a completed payment refunded.
func (o *Orchestrator) Refund(ctx context.Context, paymentID string) error {
	p, err := o.payments.GetByID(ctx, paymentID)
	if err != nil {
		return err
	}
	if p.Status == StatusRefunded {
		return nil
	}
	if !ValidTransition(p.Status, StatusRefunded) {
		return fmt.Errorf("payment %s cannot be refunded from status %s", paymentID, p.Status)
	}
	p.Status = StatusRefunded
	return o.payments.Update(ctx, p)
}
