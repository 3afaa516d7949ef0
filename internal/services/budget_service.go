package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"orcamento/internal/amqp"
	"orcamento/internal/budget"
	"orcamento/internal/cache"
	"orcamento/internal/core"
	"orcamento/internal/log"
	"orcamento/internal/metrics"
	"orcamento/internal/ports"
)

// ChangePublisher announces committed budget mutations.
type ChangePublisher interface {
	PublishBudgetChanged(ctx context.Context, msg *amqp.BudgetChangedMessage) error
}

// BudgetService applies the budget mutators and serves monthly summaries.
// Writes go to the store first; cache invalidation and event publishing
// follow and never fail a committed write.
//
// Only the month's plan (catalog, targets, planned income) is cached. Actual
// amounts and goal contributions belong to other subsystems and are fetched
// on every summary.
type BudgetService struct {
	store     ports.BudgetStore
	assembler *budget.Assembler
	publisher ChangePublisher
	plans     cache.Cache[budget.Plan]
	metrics   *metrics.Metrics
	logger    *log.Logger
	events    *log.StructuredLogger
}

type Option func(*BudgetService)

// WithPublisher enables change events. Pass nothing rather than a nil client.
func WithPublisher(p ChangePublisher) Option {
	return func(s *BudgetService) { s.publisher = p }
}

// WithPlanCache caches each month's plan between summaries.
func WithPlanCache(c cache.Cache[budget.Plan]) Option {
	return func(s *BudgetService) { s.plans = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *BudgetService) { s.metrics = m }
}

func WithLogger(l *log.Logger) Option {
	return func(s *BudgetService) { s.logger = l.WithComponent(log.ComponentBudget) }
}

func NewBudgetService(store ports.BudgetStore, assembler *budget.Assembler, opts ...Option) *BudgetService {
	s := &BudgetService{
		store:     store,
		assembler: assembler,
		logger:    log.FromContext(context.Background()).WithComponent(log.ComponentBudget),
	}
	for _, o := range opts {
		o(s)
	}
	s.events = log.NewStructuredLogger(s.logger)
	return s
}

// TargetInput is a request to set a category's planned amount for a month.
type TargetInput struct {
	Owner      string
	CategoryID int64
	Period     core.Period
	Amount     core.Money
}

// Summary assembles the monthly summary, reusing the cached plan when there is one.
func (s *BudgetService) Summary(ctx context.Context, req budget.Request) (core.MonthlyBudgetSummary, error) {
	key := planKey(req.Owner, req.Period)
	var plan *budget.Plan
	if s.plans != nil {
		if cached, ok := s.plans.Get(key); ok {
			s.metrics.CacheLookup(true)
			plan = &cached
		} else {
			s.metrics.CacheLookup(false)
		}
	}

	start := time.Now()
	summary, loaded, err := s.assembler.AssembleWith(ctx, req, plan)
	s.metrics.ObserveSummary(time.Since(start), err)
	if err != nil {
		var ae *core.AssemblyError
		if errors.As(err, &ae) {
			s.events.LogError(ctx, "Summary assembly failed", err, log.ComponentBudget, log.OpSummary,
				log.NewFields().
					WithPeriod(req.Owner, req.Period.Month, req.Period.Year).
					WithErrorType(log.ErrorTypeAssembly).
					With(log.FieldStage, ae.Stage))
		}
		return core.MonthlyBudgetSummary{}, err
	}

	if s.plans != nil && plan == nil {
		s.plans.Set(key, loaded)
	}
	return summary, nil
}

// ListTargets returns the stored targets of the owner for a month.
func (s *BudgetService) ListTargets(ctx context.Context, owner string, p core.Period) ([]core.CategoryTarget, error) {
	if err := core.ValidateOwner(owner); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return s.store.ListCategoryTargets(ctx, owner, p)
}

// SetCategoryTarget upserts the planned amount of a category for a month.
func (s *BudgetService) SetCategoryTarget(ctx context.Context, in TargetInput) (core.CategoryTarget, error) {
	if err := core.ValidateOwner(in.Owner); err != nil {
		return core.CategoryTarget{}, err
	}
	if err := in.Period.Validate(); err != nil {
		return core.CategoryTarget{}, err
	}
	if err := in.Amount.Validate(); err != nil {
		return core.CategoryTarget{}, core.InvalidField("target_amount", err)
	}
	c, err := s.ownedCategory(ctx, in.Owner, in.CategoryID)
	if err != nil {
		return core.CategoryTarget{}, err
	}
	if c.Type == core.Income {
		return core.CategoryTarget{}, &core.ValidationError{Field: "category_id", Message: "income categories cannot carry a target; use planned_income"}
	}

	stored, err := s.store.UpsertCategoryTarget(ctx, core.CategoryTarget{
		OwnerID:    in.Owner,
		CategoryID: in.CategoryID,
		Month:      in.Period.Month,
		Year:       in.Period.Year,
		Amount:     in.Amount,
	})
	if err != nil {
		return core.CategoryTarget{}, fmt.Errorf("save category target: %w", err)
	}

	s.afterWrite(ctx, amqp.NewBudgetChangedMessage(amqp.ChangeCategoryTarget, in.Owner, in.CategoryID, in.Period.Month, in.Period.Year, stored.Version))
	s.events.LogBudgetChange(ctx, log.OpSetTarget, in.Owner, in.Period.Month, in.Period.Year,
		log.NewFields().WithTarget(in.CategoryID, stored.Amount.Cents, stored.Version))
	return stored, nil
}

// SetBudgetGroup assigns a category to a budget group. Ungrouped clears it.
func (s *BudgetService) SetBudgetGroup(ctx context.Context, owner string, categoryID int64, g core.BudgetGroup) (core.GroupAssignment, error) {
	if err := core.ValidateOwner(owner); err != nil {
		return core.GroupAssignment{}, err
	}
	if !g.Valid() {
		return core.GroupAssignment{}, core.InvalidField("budget_group", core.ErrInvalidBudgetGroup)
	}
	if _, err := s.ownedCategory(ctx, owner, categoryID); err != nil {
		return core.GroupAssignment{}, err
	}

	stored, err := s.store.UpsertBudgetGroup(ctx, core.GroupAssignment{OwnerID: owner, CategoryID: categoryID, Group: g})
	if err != nil {
		return core.GroupAssignment{}, fmt.Errorf("save budget group: %w", err)
	}

	s.afterWrite(ctx, amqp.NewBudgetChangedMessage(amqp.ChangeBudgetGroup, owner, categoryID, 0, 0, stored.Version))
	s.logger.InfoContext(ctx, "Budget group updated",
		log.NewFields().
			WithOperation(log.OpSetGroup).
			With(log.FieldOwnerID, owner).
			With(log.FieldCategoryID, categoryID).
			With(log.FieldBudgetGroup, g.String()).
			With(log.FieldVersion, stored.Version).
			ToSlice()...)
	return stored, nil
}

// SetPlannedIncome upserts the planned income of a month.
func (s *BudgetService) SetPlannedIncome(ctx context.Context, owner string, p core.Period, amount core.Money) (core.PlannedIncome, error) {
	if err := core.ValidateOwner(owner); err != nil {
		return core.PlannedIncome{}, err
	}
	if err := p.Validate(); err != nil {
		return core.PlannedIncome{}, err
	}
	if err := amount.Validate(); err != nil {
		return core.PlannedIncome{}, core.InvalidField("planned_income", err)
	}

	stored, err := s.store.UpsertPlannedIncome(ctx, core.PlannedIncome{OwnerID: owner, Month: p.Month, Year: p.Year, Amount: amount})
	if err != nil {
		return core.PlannedIncome{}, fmt.Errorf("save planned income: %w", err)
	}

	s.afterWrite(ctx, amqp.NewBudgetChangedMessage(amqp.ChangePlannedIncome, owner, 0, p.Month, p.Year, stored.Version))
	s.events.LogBudgetChange(ctx, log.OpSetIncome, owner, p.Month, p.Year,
		log.NewFields().With(log.FieldAmountCents, stored.Amount.Cents).With(log.FieldVersion, stored.Version))
	return stored, nil
}

// Invalidate drops cached plans of owner for one month, or for every month
// when p is nil. It returns the number of evicted entries.
func (s *BudgetService) Invalidate(owner string, p *core.Period) int {
	if s.plans == nil {
		return 0
	}
	prefix := ownerPrefix(owner)
	if p != nil {
		prefix = planKey(owner, *p)
	}
	return s.plans.DeletePrefix(prefix)
}

func (s *BudgetService) ownedCategory(ctx context.Context, owner string, id int64) (core.Category, error) {
	if id <= 0 {
		return core.Category{}, &core.ValidationError{Field: "category_id", Message: "category_id must be a positive integer"}
	}
	c, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return core.Category{}, err
	}
	if c.OwnerID != owner {
		return core.Category{}, &core.AuthorizationError{Resource: "category", ID: strconv.FormatInt(id, 10)}
	}
	return c, nil
}

func (s *BudgetService) afterWrite(ctx context.Context, msg *amqp.BudgetChangedMessage) {
	s.metrics.Mutation(string(msg.Kind))

	var p *core.Period
	if !msg.AllMonths() {
		p = &core.Period{Month: msg.Month, Year: msg.Year}
	}
	if n := s.Invalidate(msg.OwnerID, p); n > 0 {
		s.logger.DebugContext(ctx, "Plan cache invalidated", "operation", log.OpInvalidate, "owner_id", msg.OwnerID, "removed", n)
	}

	if s.publisher == nil {
		s.logger.WarnContext(ctx, "AMQP publisher not available, skipping budget change event", "kind", msg.Kind)
		return
	}
	if err := s.publisher.PublishBudgetChanged(ctx, msg); err != nil {
		s.metrics.PublishFailed()
		s.events.LogError(ctx, "Failed to publish budget change", err, log.ComponentAMQP, log.OpPublish,
			log.NewFields().With(log.FieldOwnerID, msg.OwnerID).With(log.FieldVersion, msg.Version))
	}
}

func ownerPrefix(owner string) string {
	return url.PathEscape(owner) + "|"
}

func planKey(owner string, p core.Period) string {
	return ownerPrefix(owner) + p.String() + "|"
}
