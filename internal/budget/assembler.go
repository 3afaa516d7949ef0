package budget

import (
	"cmp"
	"context"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"orcamento/internal/core"
	"orcamento/internal/ports"
)

const defaultGoalConcurrency = 4

// Stages reported in core.AssemblyError.
const (
	StageCategories    = "categories"
	StageTargets       = "targets"
	StagePlannedIncome = "planned_income"
	StageActuals       = "actuals"
	StageGoals         = "goals"
	StageContributions = "contributions"
	StageLedger        = "ledger"
	StageAllocation    = "allocation"
	StageGoalPlan      = "goal_plan"
)

// Inputs is everything Compute needs. It is built by Assembler from the
// ports, or directly by tests.
type Inputs struct {
	Period        core.Period
	RuleEnabled   bool
	Categories    []core.Category
	Targets       []core.CategoryTarget
	PlannedIncome *core.Money
	Actuals       core.MonthActuals
	Goals         []GoalInput
	Today         core.Date
}

// Compute assembles a summary from already loaded inputs. It either returns
// a complete summary or an AssemblyError, never both.
func Compute(in Inputs) (core.MonthlyBudgetSummary, error) {
	categories := slices.Clone(in.Categories)
	slices.SortStableFunc(categories, func(a, b core.Category) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	if in.Actuals.Income.IsNegative() {
		return core.MonthlyBudgetSummary{}, &core.AssemblyError{Stage: StageActuals, Err: core.ErrInvalidAmount}
	}

	lines, err := BuildLedger(categories, in.Targets, in.Actuals.ByCategory)
	if err != nil {
		return core.MonthlyBudgetSummary{}, &core.AssemblyError{Stage: StageLedger, Err: err}
	}

	var planned *core.Money
	if in.PlannedIncome != nil {
		p := *in.PlannedIncome
		planned = &p
	}
	basis := IncomeBasis(planned, in.Actuals.Income)

	alloc, err := Allocate(basis, in.RuleEnabled, lines)
	if err != nil {
		return core.MonthlyBudgetSummary{}, &core.AssemblyError{Stage: StageAllocation, Err: err}
	}

	dist := Distribute(basis, lines)
	dist.Apply(lines)

	s := core.MonthlyBudgetSummary{
		Month:                in.Period.Month,
		Year:                 in.Period.Year,
		RuleEnabled:          in.RuleEnabled,
		TotalIncome:          in.Actuals.Income,
		PlannedIncome:        planned,
		IncomeBasis:          basis,
		TotalRemainingToPlan: dist.TotalRemaining,
		Necessities:          alloc.Necessities,
		Wants:                alloc.Wants,
		Savings:              alloc.Savings,
		Ungrouped:            alloc.Ungrouped,
		Categories:           lines,
		Goals:                make([]core.GoalSummary, 0, len(in.Goals)),
	}
	for _, l := range lines {
		s.TotalPlannedExpenses = s.TotalPlannedExpenses.Add(l.TargetAmount)
		s.TotalActualExpenses = s.TotalActualExpenses.Add(l.ActualAmount)
	}
	s.Balance = s.TotalIncome.Sub(s.TotalActualExpenses)

	for _, gi := range in.Goals {
		gs, err := PlanGoal(gi, in.Period, in.Today)
		if err != nil {
			return core.MonthlyBudgetSummary{}, &core.AssemblyError{Stage: StageGoalPlan, Err: err}
		}
		s.Goals = append(s.Goals, gs)
	}

	s.Alerts = Alerts(s)
	return s, nil
}

// Request identifies one summary computation.
type Request struct {
	Owner       string
	Period      core.Period
	RuleEnabled bool
}

// Assembler loads summary inputs from the ports concurrently and hands them to Compute.
type Assembler struct {
	store           ports.BudgetStore
	actuals         ports.TransactionAggregator
	goals           ports.GoalReader
	now             func() time.Time
	goalConcurrency int
}

type AssemblerOption func(*Assembler)

// WithClock overrides the source of "today" used for months_remaining.
func WithClock(now func() time.Time) AssemblerOption {
	return func(a *Assembler) { a.now = now }
}

// WithGoalConcurrency bounds the number of concurrent contribution fetches.
func WithGoalConcurrency(n int) AssemblerOption {
	return func(a *Assembler) {
		if n > 0 {
			a.goalConcurrency = n
		}
	}
}

// NewAssembler wires the input ports. goals may be nil, in which case the
// summary carries no goals.
func NewAssembler(store ports.BudgetStore, actuals ports.TransactionAggregator, goals ports.GoalReader, opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		store:           store,
		actuals:         actuals,
		goals:           goals,
		now:             time.Now,
		goalConcurrency: defaultGoalConcurrency,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Plan is the user-entered state of a month: the catalog, the stored
// targets and the planned income. It changes only through the mutators.
type Plan struct {
	Categories    []core.Category
	Targets       []core.CategoryTarget
	PlannedIncome *core.Money
}

// Assemble validates the request and computes the summary. Input errors are
// returned as ValidationError; any failure after that is an AssemblyError.
func (a *Assembler) Assemble(ctx context.Context, req Request) (core.MonthlyBudgetSummary, error) {
	s, _, err := a.AssembleWith(ctx, req, nil)
	return s, err
}

// AssembleWith is Assemble with an already loaded plan. A nil plan is read
// from the store and returned so callers can keep it. Actuals and goals are
// fetched on every call.
func (a *Assembler) AssembleWith(ctx context.Context, req Request, plan *Plan) (core.MonthlyBudgetSummary, Plan, error) {
	if err := core.ValidateOwner(req.Owner); err != nil {
		return core.MonthlyBudgetSummary{}, Plan{}, err
	}
	if err := req.Period.Validate(); err != nil {
		return core.MonthlyBudgetSummary{}, Plan{}, err
	}

	in := Inputs{
		Period:      req.Period,
		RuleEnabled: req.RuleEnabled,
		Today:       core.DateOf(a.now()),
	}

	g, gctx := errgroup.WithContext(ctx)
	var loaded Plan
	if plan != nil {
		loaded = *plan
	} else {
		a.loadPlan(g, gctx, req, &loaded)
	}
	g.Go(func() error {
		act, err := a.actuals.MonthActuals(gctx, req.Owner, req.Period)
		if err != nil {
			return &core.AssemblyError{Stage: StageActuals, Err: err}
		}
		in.Actuals = act
		return nil
	})
	if a.goals != nil {
		g.Go(func() error {
			goals, err := a.loadGoals(gctx, req)
			if err != nil {
				return err
			}
			in.Goals = goals
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return core.MonthlyBudgetSummary{}, Plan{}, err
	}
	in.Categories = loaded.Categories
	in.Targets = loaded.Targets
	in.PlannedIncome = loaded.PlannedIncome

	s, err := Compute(in)
	if err != nil {
		return core.MonthlyBudgetSummary{}, Plan{}, err
	}
	return s, loaded, nil
}

func (a *Assembler) loadPlan(g *errgroup.Group, ctx context.Context, req Request, out *Plan) {
	g.Go(func() error {
		cats, err := a.store.ListCategories(ctx, req.Owner)
		if err != nil {
			return &core.AssemblyError{Stage: StageCategories, Err: err}
		}
		out.Categories = cats
		return nil
	})
	g.Go(func() error {
		targets, err := a.store.ListCategoryTargets(ctx, req.Owner, req.Period)
		if err != nil {
			return &core.AssemblyError{Stage: StageTargets, Err: err}
		}
		out.Targets = targets
		return nil
	})
	g.Go(func() error {
		pi, ok, err := a.store.GetPlannedIncome(ctx, req.Owner, req.Period)
		if err != nil {
			return &core.AssemblyError{Stage: StagePlannedIncome, Err: err}
		}
		if ok {
			amount := pi.Amount
			out.PlannedIncome = &amount
		}
		return nil
	})
}

func (a *Assembler) loadGoals(ctx context.Context, req Request) ([]GoalInput, error) {
	goals, err := a.goals.ListGoals(ctx, req.Owner)
	if err != nil {
		return nil, &core.AssemblyError{Stage: StageGoals, Err: err}
	}

	out := make([]GoalInput, len(goals))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.goalConcurrency)
	for i, goal := range goals {
		g.Go(func() error {
			contribs, err := a.goals.ListContributions(gctx, req.Owner, goal.ID, req.Period.Start(), req.Period.End())
			if err != nil {
				return &core.AssemblyError{Stage: StageContributions, Err: err}
			}
			out[i] = GoalInput{Goal: goal, Contributions: contribs}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
