package worker

import (
	"context"
	"fmt"
	"time"

	"orcamento/internal/amqp"
	"orcamento/internal/budget"
	"orcamento/internal/core"
	"orcamento/internal/log"
	"orcamento/internal/metrics"
)

// DefaultMaxMessageAge bounds how long a failing message keeps being requeued.
const DefaultMaxMessageAge = 10 * time.Minute

// SummaryService is the part of the budget service the worker drives.
type SummaryService interface {
	Summary(ctx context.Context, req budget.Request) (core.MonthlyBudgetSummary, error)
	Invalidate(owner string, p *core.Period) int
}

// Consumer delivers budget change messages to a handler until ctx is done.
type Consumer interface {
	ConsumeBudgetChanges(ctx context.Context, handler amqp.Handler) error
}

// SummaryWorker recomputes the summary of the month a change touched and
// logs its alerts.
type SummaryWorker struct {
	summaries   SummaryService
	metrics     *metrics.Metrics
	logger      *log.Logger
	now         func() time.Time
	ruleEnabled bool
	maxAge      time.Duration
}

type Config struct {
	// RuleEnabled selects the 50/30/20 view used for recomputation.
	RuleEnabled bool
	MaxAge      time.Duration
	Metrics     *metrics.Metrics
	Logger      *log.Logger
	Now         func() time.Time
}

func NewSummaryWorker(summaries SummaryService, cfg Config) *SummaryWorker {
	w := &SummaryWorker{
		summaries:   summaries,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		now:         cfg.Now,
		ruleEnabled: cfg.RuleEnabled,
		maxAge:      cfg.MaxAge,
	}
	if w.logger == nil {
		w.logger = log.FromContext(context.Background())
	}
	w.logger = w.logger.WithComponent(log.ComponentWorker)
	if w.now == nil {
		w.now = time.Now
	}
	if w.maxAge <= 0 {
		w.maxAge = DefaultMaxMessageAge
	}
	return w
}

// Run consumes until ctx is cancelled.
func (w *SummaryWorker) Run(ctx context.Context, consumer Consumer) error {
	w.logger.InfoContext(ctx, "Summary worker started", "operation", log.OpStartup, "rule_enabled", w.ruleEnabled)
	err := consumer.ConsumeBudgetChanges(ctx, w.HandleBudgetChanged)
	if ctx.Err() != nil {
		w.logger.InfoContext(ctx, "Summary worker stopped", "operation", log.OpShutdown)
		return nil
	}
	return err
}

// HandleBudgetChanged processes one message. Changes that are not tied to a
// month recompute the current month. Errors are returned only when a retry
// can succeed.
func (w *SummaryWorker) HandleBudgetChanged(ctx context.Context, msg *amqp.BudgetChangedMessage) error {
	period := core.Period{Month: msg.Month, Year: msg.Year}
	if msg.AllMonths() {
		today := w.now().UTC()
		period = core.Period{Month: int(today.Month()), Year: today.Year()}
	}
	fields := log.NewFields().
		WithPeriod(msg.OwnerID, period.Month, period.Year).
		WithOperation(log.OpConsume).
		With("kind", string(msg.Kind)).
		With(log.FieldVersion, msg.Version)

	var scope *core.Period
	if !msg.AllMonths() {
		scope = &period
	}
	w.summaries.Invalidate(msg.OwnerID, scope)

	summary, err := w.summaries.Summary(ctx, budget.Request{Owner: msg.OwnerID, Period: period, RuleEnabled: w.ruleEnabled})
	if err != nil {
		w.metrics.Consumed(string(msg.Kind), false)
		fields = fields.WithError(err)
		if core.IsValidation(err) || core.IsNotFound(err) || core.IsUnauthorized(err) {
			w.logger.WarnContext(ctx, "Dropping budget change that cannot be recomputed", fields.ToSlice()...)
			return nil
		}
		if age := w.now().Sub(msg.Timestamp); age > w.maxAge {
			w.logger.ErrorContext(ctx, "Dropping stale budget change after repeated failures", fields.With("age", age.String()).ToSlice()...)
			return nil
		}
		w.logger.ErrorContext(ctx, "Failed to recompute budget summary", fields.ToSlice()...)
		return fmt.Errorf("recompute summary: %w", err)
	}

	w.metrics.Consumed(string(msg.Kind), true)
	w.logger.InfoContext(ctx, "Budget summary recomputed",
		fields.
			With("balance_cents", summary.Balance.Cents).
			With("remaining_to_plan_cents", summary.TotalRemainingToPlan.Cents).
			With("alerts", len(summary.Alerts)).
			ToSlice()...)
	for _, alert := range summary.Alerts {
		w.logger.WarnContext(ctx, "Budget alert", log.FieldOwnerID, msg.OwnerID, "period", period.String(), "alert", alert)
	}
	return nil
}
