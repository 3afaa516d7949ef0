package budget

import (
	"fmt"

	"orcamento/internal/core"
)

const (
	warningThreshold = 80.0
	limitThreshold   = 100.0
)

// Allocation holds the 50/30/20 totals. All three are nil when the rule is disabled.
type Allocation struct {
	Necessities *core.BudgetGroupTotals
	Wants       *core.BudgetGroupTotals
	Savings     *core.BudgetGroupTotals
	Ungrouped   core.UngroupedTotals
}

// IncomeBasis picks planned income when it is set and positive, actual income otherwise.
func IncomeBasis(planned *core.Money, actual core.Money) core.Money {
	if planned != nil && planned.Cents > 0 {
		return *planned
	}
	return actual
}

// Limits splits the income basis into group limits. Savings absorbs the
// rounding so the three limits always add up to the basis exactly.
func Limits(basis core.Money) map[core.BudgetGroup]core.Money {
	n, _ := core.Necessities.RatioPercent()
	w, _ := core.Wants.RatioPercent()
	necessities := basis.Cents * n / 100
	wants := basis.Cents * w / 100
	return map[core.BudgetGroup]core.Money{
		core.Necessities: core.Cents(necessities),
		core.Wants:       core.Cents(wants),
		core.Savings:     core.Cents(basis.Cents - necessities - wants),
	}
}

// Status maps a spending percentage to its presentational state. Savings
// inverts the polarity: staying under 80% of the savings target is the bad case.
func Status(g core.BudgetGroup, percentage float64) core.GroupStatus {
	if g == core.Savings {
		if percentage < warningThreshold {
			return core.StatusWarning
		}
		return core.StatusOnTrack
	}
	switch {
	case percentage < warningThreshold:
		return core.StatusOnTrack
	case percentage <= limitThreshold:
		return core.StatusWarning
	default:
		return core.StatusOver
	}
}

// Allocate computes the per-group planned and actual totals. With the rule
// disabled only the ungrouped block is filled and every line is counted there.
func Allocate(basis core.Money, enabled bool, lines []core.CategoryBudget) (Allocation, error) {
	var a Allocation
	if !enabled {
		for _, l := range lines {
			a.Ungrouped.Planned = a.Ungrouped.Planned.Add(l.TargetAmount)
			a.Ungrouped.Actual = a.Ungrouped.Actual.Add(l.ActualAmount)
		}
		return a, nil
	}

	limits := Limits(basis)
	totals := make(map[core.BudgetGroup]*core.BudgetGroupTotals, len(core.RuleGroups))
	for _, g := range core.RuleGroups {
		totals[g] = &core.BudgetGroupTotals{Group: g, Limit: limits[g]}
	}

	for _, l := range lines {
		if l.BudgetGroup == core.Ungrouped {
			a.Ungrouped.Planned = a.Ungrouped.Planned.Add(l.TargetAmount)
			a.Ungrouped.Actual = a.Ungrouped.Actual.Add(l.ActualAmount)
			continue
		}
		t, ok := totals[l.BudgetGroup]
		if !ok {
			return Allocation{}, fmt.Errorf("category %d: no limit for group %s: %w", l.CategoryID, l.BudgetGroup, core.ErrInconsistentState)
		}
		t.Planned = t.Planned.Add(l.TargetAmount)
		t.Actual = t.Actual.Add(l.ActualAmount)
	}

	for _, t := range totals {
		t.Percentage = percentOf(t.Actual, t.Limit)
		t.Status = Status(t.Group, t.Percentage)
		GroupRemaining(t)
	}

	a.Necessities = totals[core.Necessities]
	a.Wants = totals[core.Wants]
	a.Savings = totals[core.Savings]
	return a, nil
}
