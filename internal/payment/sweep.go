package payment

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// JobMetrics provides centralized background job metrics tracking.
type JobMetrics interface {
	IncJobsTotal(jobType, status string)
	ObserveJobDuration(jobType string, seconds float64)
	IncJobErrors(jobType, errorType string)
}

// SweepConfig configures the pending-payment status sweep.
type SweepConfig struct {
	// Interval is the duration between sweep cycles.
	Interval time.Duration
	// StaleAfter is how old a pending payment must be before it gets
	// polled. Young rows are still waiting for their normal callback.
	StaleAfter time.Duration
	// BatchLimit caps how many rows one cycle polls.
	BatchLimit int
	// Timeout bounds one sweep cycle.
	Timeout time.Duration
	// Logger for sweep activity.
	Logger *slog.Logger
	// JobMetrics for centralized background job tracking.
	JobMetrics JobMetrics
}

// Default sweep tuning.
const (
	DefaultSweepInterval   = 5 * time.Minute
	DefaultSweepStaleAfter = 30 * time.Minute
	DefaultSweepBatchLimit = 100
	DefaultSweepTimeout    = 2 * time.Minute
)

// jobTypeSweep is the label the sweep reports under in job metrics.
const jobTypeSweep = "payment_sweep"

// Sweep periodically polls gateways for payments stuck in pending.
// Once a gateway call has been sent there is no client-side cancellation;
// a row stays pending until a callback arrives or this sweep resolves it
// from the provider's own view of the transaction.
type Sweep struct {
	config   SweepConfig
	gateways Registry
	payments Repository
	orch     *Orchestrator
	metrics  *Metrics

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSweep creates a pending-payment sweep.
func NewSweep(config SweepConfig, gateways Registry, payments Repository, orch *Orchestrator, metrics *Metrics) *Sweep {
	if config.Interval == 0 {
		config.Interval = DefaultSweepInterval
	}
	if config.StaleAfter == 0 {
		config.StaleAfter = DefaultSweepStaleAfter
	}
	if config.BatchLimit == 0 {
		config.BatchLimit = DefaultSweepBatchLimit
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultSweepTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Sweep{
		config:   config,
		gateways: gateways,
		payments: payments,
		orch:     orch,
		metrics:  metrics,
	}
}

// Start begins the periodic sweep. Returns immediately; the sweep runs
// in a background goroutine.
func (s *Sweep) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.run(ctx)
}

// Stop signals the sweep to stop and waits for it to finish.
func (s *Sweep) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	stopCh := s.stopCh
	doneCh := s.doneCh
	s.mu.Unlock()

	close(stopCh)
	<-doneCh

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

func (s *Sweep) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single sweep cycle. Exposed for tests and for
// operator-triggered sweeps.
func (s *Sweep) RunOnce(ctx context.Context) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	cutoff := time.Now().Add(-s.config.StaleAfter)
	stale, err := s.payments.ListStalePending(ctx, cutoff, s.config.BatchLimit)
	if err != nil {
		s.config.Logger.ErrorContext(ctx, "sweep failed to list stale payments", "error", err)
		s.reportCycle(start, "failure")
		if s.config.JobMetrics != nil {
			s.config.JobMetrics.IncJobErrors(jobTypeSweep, "list")
		}
		return
	}

	for _, p := range stale {
		if ctx.Err() != nil {
			break
		}
		s.resolve(ctx, p)
	}
	s.reportCycle(start, "success")
}

// resolve polls the gateway for one stale payment and applies the
// answer. An unknown status leaves the row for the next cycle.
func (s *Sweep) resolve(ctx context.Context, p *Payment) {
	gw, ok := s.gateways[p.Provider]
	if !ok {
		s.config.Logger.ErrorContext(ctx, "stale payment has no gateway",
			"payment_id", p.ID, "provider", p.Provider)
		return
	}

	status, err := gw.Status(ctx, p.TransactionID)
	if err != nil {
		s.config.Logger.WarnContext(ctx, "status poll failed",
			"payment_id", p.ID, "provider", p.Provider, "error", err)
		return
	}

	switch status {
	case GatewayStatusPaid:
		if err := s.orch.Complete(ctx, p.ID, p.TransactionID); err != nil {
			s.config.Logger.ErrorContext(ctx, "sweep completion failed",
				"payment_id", p.ID, "error", err)
			return
		}
		s.metrics.IncSwept(p.Provider, "completed")
	case GatewayStatusFailed:
		if err := s.orch.Cancel(ctx, p.ID, "resolved failed by status sweep", false); err != nil {
			s.config.Logger.ErrorContext(ctx, "sweep cancellation failed",
				"payment_id", p.ID, "error", err)
			return
		}
		s.metrics.IncSwept(p.Provider, "failed")
	case GatewayStatusRefunded:
		if err := s.orch.Refund(ctx, p.ID); err != nil {
			s.config.Logger.ErrorContext(ctx, "sweep refund failed",
				"payment_id", p.ID, "error", err)
			return
		}
		s.metrics.IncSwept(p.Provider, "refunded")
	case GatewayStatusPending, GatewayStatusUnknown:
		// Still unresolved; the next cycle will look again.
	}
}

func (s *Sweep) reportCycle(start time.Time, status string) {
	if s.config.JobMetrics == nil {
		return
	}
	s.config.JobMetrics.IncJobsTotal(jobTypeSweep, status)
	s.config.JobMetrics.ObserveJobDuration(jobTypeSweep, time.Since(start).Seconds())
}
