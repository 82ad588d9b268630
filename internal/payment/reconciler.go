package payment

import (
	"context"
	"errors"
	"log/slog"
)

// Reconciler consumes verified, parsed gateway events and applies
// idempotent state transitions to payment and order rows. It never sees
// an unverified body: handlers verify signatures before parsing, and
// parsing happens inside the owning adapter.
type Reconciler struct {
	payments Repository
	webhooks WebhookRepository
	orch     *Orchestrator
	logger   *slog.Logger
	metrics  *Metrics
}

// NewReconciler creates a reconciler.
func NewReconciler(
	payments Repository,
	webhooks WebhookRepository,
	orch *Orchestrator,
	logger *slog.Logger,
	metrics *Metrics,
) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		payments: payments,
		webhooks: webhooks,
		orch:     orch,
		logger:   logger,
		metrics:  metrics,
	}
}

// HandleEvent processes one verified event. A nil return means the
// delivery should be acknowledged with 2xx; orphaned events, duplicate
// deliveries, and unknown kinds are all acknowledged without mutation so
// provider redelivery cannot storm. Only genuine internal failures
// return an error, which the handler converts to a 5xx so the provider
// retries.
func (r *Reconciler) HandleEvent(ctx context.Context, ev *Event) error {
	if ev.ID != "" {
		seen, err := r.webhooks.HasProcessed(ev.Provider, ev.ID)
		if err != nil {
			return err
		}
		if seen {
			r.logger.InfoContext(ctx, "duplicate webhook delivery ignored",
				"provider", ev.Provider, "event_id", ev.ID)
			r.metrics.IncDuplicate(ev.Provider)
			return nil
		}
	}

	if ev.Kind == EventUnknown {
		r.logger.InfoContext(ctx, "ignoring unmapped webhook event",
			"provider", ev.Provider, "event_type", ev.Type, "event_id", ev.ID)
		r.metrics.IncWebhook(ev.Provider, ev.Kind, "ignored")
		r.markProcessed(ctx, ev)
		return nil
	}

	p, err := r.locate(ctx, ev)
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			// Stale or test event. Acknowledge so the provider stops
			// redelivering, but count it: a rising orphan rate means
			// references are being lost somewhere.
			r.logger.WarnContext(ctx, "webhook event matches no payment",
				"provider", ev.Provider, "event_type", ev.Type, "reference", ev.Reference)
			r.metrics.IncOrphaned(ev.Provider)
			r.markProcessed(ctx, ev)
			return nil
		}
		return err
	}

	switch ev.Kind {
	case EventCompleted:
		err = r.orch.Complete(ctx, p.ID, ev.Reference)
		if errors.Is(err, ErrDuplicatePayment) {
			// Another attempt for the order already completed; this
			// delivery resolves nothing but is not a failure.
			r.logger.WarnContext(ctx, "completion event for already-paid order",
				"payment_id", p.ID, "order_id", p.OrderID)
			err = nil
		}
	case EventFailed:
		err = r.orch.Cancel(ctx, p.ID, ev.FailureReason, false)
	case EventRefunded:
		err = r.orch.Refund(ctx, p.ID)
	case EventChargeback:
		// Recorded for the manual-review workflow; never auto-reversed.
		r.logger.WarnContext(ctx, "chargeback received",
			"provider", ev.Provider, "payment_id", p.ID, "order_id", p.OrderID)
		r.metrics.IncChargeback(ev.Provider)
	}

	if err != nil {
		r.metrics.IncWebhook(ev.Provider, ev.Kind, "error")
		return err
	}
	r.metrics.IncWebhook(ev.Provider, ev.Kind, "applied")
	r.markProcessed(ctx, ev)
	return nil
}

// markProcessed records the event ID so redeliveries short-circuit at
// the duplicate gate. It runs only after the event's effect has been
// applied: a failed apply stays unrecorded so the provider's redelivery
// gets a second chance instead of being swallowed as a duplicate.
func (r *Reconciler) markProcessed(ctx context.Context, ev *Event) {
	if ev.ID == "" {
		return
	}
	if err := r.webhooks.RecordEvent(ev.Provider, ev.ID, ev.Type); err != nil &&
		!errors.Is(err, ErrEventAlreadyProcessed) {
		// The transition already landed and is idempotent on replay, so
		// a bookkeeping failure is logged rather than turned into a 5xx.
		r.logger.ErrorContext(ctx, "failed to record processed webhook event",
			"provider", ev.Provider, "event_id", ev.ID, "error", err)
	}
}

// locate finds the payment an event refers to, by gateway reference
// first and by metadata-embedded payment ID as fallback.
func (r *Reconciler) locate(ctx context.Context, ev *Event) (*Payment, error) {
	if ev.Reference != "" {
		p, err := r.payments.GetByTransactionID(ctx, ev.Provider, ev.Reference)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrPaymentNotFound) {
			return nil, err
		}
	}
	if ev.PaymentID != "" {
		return r.payments.GetByID(ctx, ev.PaymentID)
	}
	return nil, ErrPaymentNotFound
}
