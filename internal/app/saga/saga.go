package saga

import (
	"context"
	"fmt"
	"time"

	"sakura_marketplace/internal/app/port"
	"sakura_marketplace/internal/domain/entity"
)

// Step is one unit of a saga. Execute reads and writes the shared state S.
type Step[S any] struct {
	Name       string
	Execute    func(ctx context.Context, state *S) error
	Compensate func(ctx context.Context, state *S) error

	// MaxRetries is the number of attempts for retryable failures; zero means one attempt.
	MaxRetries int
	RetryDelay time.Duration

	// Submits marks the step that hands a transaction to the wallet.
	Submits bool

	// Soft steps run after the on-chain action is final. Their failure is reported
	// as Warning and handed to the deferred-retry hook instead of failing the saga.
	Soft    bool
	Warning string
}

// Classifier maps any step error onto the failure taxonomy.
type Classifier func(op string, err error) *entity.WorkflowError

// DeferFunc receives soft-step failures for later retry.
type DeferFunc func(description string, retry func(ctx context.Context) error)

// Saga runs its steps strictly in order; step N+1 starts only after step N settled.
type Saga[S any] struct {
	name      string
	steps     []Step[S]
	classify  Classifier
	deferred  DeferFunc
	logger    port.Logger
	observers []func(entity.TransactionIntent)
	details   func(state *S, intent *entity.TransactionIntent)
	sleep     func(ctx context.Context, d time.Duration) error
}

// Outcome is the terminal report of a saga run.
type Outcome struct {
	Intent   entity.TransactionIntent
	Warnings []string
}

// New creates an empty saga.
func New[S any](name string, classify Classifier, logger port.Logger) *Saga[S] {
	return &Saga[S]{
		name:     name,
		classify: classify,
		logger:   logger.With("saga", name),
		sleep:    sleepContext,
	}
}

// WithStep appends a hard step.
func (s *Saga[S]) WithStep(name string, execute func(context.Context, *S) error) *Saga[S] {
	return s.AddStep(Step[S]{Name: name, Execute: execute})
}

// WithCompensableStep appends a hard step whose side effect is undone if a later hard step fails
// before any transaction was submitted.
func (s *Saga[S]) WithCompensableStep(name string, execute, compensate func(context.Context, *S) error) *Saga[S] {
	return s.AddStep(Step[S]{Name: name, Execute: execute, Compensate: compensate})
}

// WithRetryableStep appends a hard step retried on transient failures.
func (s *Saga[S]) WithRetryableStep(name string, execute func(context.Context, *S) error, maxRetries int, delay time.Duration) *Saga[S] {
	return s.AddStep(Step[S]{Name: name, Execute: execute, MaxRetries: maxRetries, RetryDelay: delay})
}

// WithSubmitStep appends the step that sends a transaction to the wallet.
func (s *Saga[S]) WithSubmitStep(name string, execute func(context.Context, *S) error) *Saga[S] {
	return s.AddStep(Step[S]{Name: name, Execute: execute, Submits: true})
}

// WithSoftStep appends a post-confirmation step whose failure only produces warning.
func (s *Saga[S]) WithSoftStep(name, warning string, execute func(context.Context, *S) error, maxRetries int, delay time.Duration) *Saga[S] {
	return s.AddStep(Step[S]{Name: name, Execute: execute, Soft: true, Warning: warning, MaxRetries: maxRetries, RetryDelay: delay})
}

// AddStep appends step as is.
func (s *Saga[S]) AddStep(step Step[S]) *Saga[S] {
	s.steps = append(s.steps, step)
	return s
}

// OnStatus registers an observer notified on every intent status change.
func (s *Saga[S]) OnStatus(fn func(entity.TransactionIntent)) *Saga[S] {
	s.observers = append(s.observers, fn)
	return s
}

// WithIntentDetails lets the saga copy state (tx hashes, account) into the intent before observers see it.
func (s *Saga[S]) WithIntentDetails(fn func(state *S, intent *entity.TransactionIntent)) *Saga[S] {
	s.details = fn
	return s
}

// DeferSoftFailures routes failed soft steps to fn.
func (s *Saga[S]) DeferSoftFailures(fn DeferFunc) *Saga[S] {
	s.deferred = fn
	return s
}

// Steps returns the step names in execution order.
func (s *Saga[S]) Steps() []string {
	names := make([]string, len(s.steps))
	for i, st := range s.steps {
		names[i] = st.Name
	}
	return names
}

// Run executes the saga against state. The returned error is always a *entity.WorkflowError.
func (s *Saga[S]) Run(ctx context.Context, intent entity.TransactionIntent, state *S) (Outcome, error) {
	out := Outcome{Intent: intent}
	out.Intent.Status = entity.IntentPending
	if out.Intent.StartedAt.IsZero() {
		out.Intent.StartedAt = time.Now()
	}
	s.notify(&out.Intent, entity.IntentPending, state)

	log := s.logger.With("intent_id", intent.ID)
	log.Info("Starting saga execution", "total_steps", len(s.steps))

	var completed []Step[S]
	submitted := false
	for i, step := range s.steps {
		log.Debug("Executing saga step", "step_name", step.Name, "step_number", i+1)

		err := s.executeStepWithRetry(ctx, log, step, state)
		if err == nil {
			completed = append(completed, step)
			if step.Submits {
				submitted = true
				if out.Intent.Status == entity.IntentPending {
					s.notify(&out.Intent, entity.IntentSubmitted, state)
				}
			}
			continue
		}

		if step.Soft {
			log.Warn("Soft saga step failed, deferring", "step_name", step.Name, "error", err)
			out.Warnings = append(out.Warnings, step.Warning)
			if s.deferred != nil {
				st := step
				s.deferred(fmt.Sprintf("%s/%s (%s)", s.name, st.Name, intent.ID), func(ctx context.Context) error {
					return st.Execute(ctx, state)
				})
			}
			continue
		}

		werr := s.classify(step.Name, err)
		log.Error("Saga step failed", "step_name", step.Name, "kind", werr.Kind.String(), "error", err)
		if submitted {
			// The transaction may still land; off-chain assets it references must stay.
			log.Warn("Skipping compensation after submission", "step_name", step.Name)
		} else {
			s.compensate(ctx, log, completed, state)
		}

		out.Intent.Error = werr.Error()
		s.notify(&out.Intent, entity.IntentFailed, state)
		return out, werr
	}

	s.notify(&out.Intent, entity.IntentConfirmed, state)
	log.Info("Saga completed successfully", "completed_steps", len(completed), "warnings", len(out.Warnings))
	return out, nil
}

func (s *Saga[S]) executeStepWithRetry(ctx context.Context, log port.Logger, step Step[S], state *S) error {
	attempts := step.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}
	delay := step.RetryDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			log.Debug("Retrying saga step", "step_name", step.Name, "attempt", attempt+1, "max_retries", attempts)
			if err := s.sleep(ctx, delay); err != nil {
				return lastErr
			}
		}

		err := step.Execute(ctx, state)
		if err == nil {
			return nil
		}
		lastErr = err
		if !s.classify(step.Name, err).Kind.Retryable() {
			return err
		}
		log.Warn("Saga step execution failed", "step_name", step.Name, "attempt", attempt+1, "error", err)
	}
	return lastErr
}

// compensate undoes completed steps in reverse order. Failures are logged and the rest still run.
func (s *Saga[S]) compensate(ctx context.Context, log port.Logger, completed []Step[S], state *S) {
	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		if step.Compensate == nil {
			continue
		}
		log.Debug("Executing compensation", "step_name", step.Name)
		if err := step.Compensate(context.WithoutCancel(ctx), state); err != nil {
			log.Error("Compensation failed", "step_name", step.Name, "error", err)
		}
	}
}

func (s *Saga[S]) notify(intent *entity.TransactionIntent, status entity.IntentStatus, state *S) {
	if s.details != nil {
		s.details(state, intent)
	}
	intent.Status = status
	intent.UpdatedAt = time.Now()
	for _, fn := range s.observers {
		fn(*intent)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
