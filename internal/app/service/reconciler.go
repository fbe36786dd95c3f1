package service

import (
	"context"
	"sync"
	"time"

	"sakura_marketplace/internal/app/port"
	"sakura_marketplace/internal/domain/entity"
	"sakura_marketplace/internal/infrastructure/configloader"
	"sakura_marketplace/internal/infrastructure/metrics"
)

type reconcileJob struct {
	entity.ReconciliationJob
	write func(ctx context.Context) error
}

// Reconciler retries off-chain writes that failed after their on-chain action was confirmed.
// It never touches the chain.
type Reconciler struct {
	logger      port.Logger
	metrics     port.Metrics
	interval    time.Duration
	maxAttempts int
	callTimeout time.Duration

	mu   sync.Mutex
	jobs []*reconcileJob
}

// NewReconciler creates an idle reconciler; Run starts the retry loop.
func NewReconciler(cfg configloader.ReconcilerConfig, logger port.Logger, recorder port.Metrics) *Reconciler {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Reconciler{
		logger:      logger.With("component", "reconciler"),
		metrics:     recorder,
		interval:    time.Duration(cfg.IntervalSeconds) * time.Second,
		maxAttempts: cfg.MaxAttempts,
		callTimeout: 30 * time.Second,
	}
}

// Enqueue adds a write. write must be idempotent.
func (r *Reconciler) Enqueue(description string, write func(ctx context.Context) error) {
	r.mu.Lock()
	r.jobs = append(r.jobs, &reconcileJob{
		ReconciliationJob: entity.ReconciliationJob{Description: description, QueuedAt: time.Now()},
		write:             write,
	})
	n := len(r.jobs)
	r.mu.Unlock()

	r.metrics.SetReconciliationPending(n)
	r.logger.Warn("Off-chain write queued for reconciliation", "job", description, "pending", n)
}

// Pending returns the number of queued writes.
func (r *Reconciler) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// Jobs returns a snapshot of the queue.
func (r *Reconciler) Jobs() []entity.ReconciliationJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entity.ReconciliationJob, len(r.jobs))
	for i, j := range r.jobs {
		out[i] = j.ReconciliationJob
	}
	return out
}

// Run retries the queue every interval until ctx is done.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce attempts every queued write once. Jobs that succeed or exhaust their attempts leave the queue.
func (r *Reconciler) RunOnce(ctx context.Context) {
	r.mu.Lock()
	batch := r.jobs
	r.jobs = nil
	r.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	var remaining []*reconcileJob
	for _, job := range batch {
		if ctx.Err() != nil {
			remaining = append(remaining, job)
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
		err := job.write(callCtx)
		cancel()
		job.Attempts++

		switch {
		case err == nil:
			r.logger.Info("Reconciled off-chain write", "job", job.Description, "attempts", job.Attempts)
		case job.Attempts >= r.maxAttempts:
			r.logger.Error("Giving up on off-chain write", "job", job.Description, "attempts", job.Attempts, "error", err)
		default:
			job.LastError = err.Error()
			remaining = append(remaining, job)
		}
	}

	r.mu.Lock()
	r.jobs = append(remaining, r.jobs...)
	n := len(r.jobs)
	r.mu.Unlock()
	r.metrics.SetReconciliationPending(n)
}

var _ port.ReconciliationQueue = (*Reconciler)(nil)
