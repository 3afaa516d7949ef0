// Package budget implements the monthly budget allocation engine: the per
// category ledger, the 50/30/20 rule allocator, the remaining-to-plan
// distributor, the goal contribution planner and the summary assembler.
//
// Everything in this package except Assembler.Assemble is a pure function of
// its arguments.
package budget

import (
	"fmt"

	"github.com/shopspring/decimal"

	"orcamento/internal/core"
)

var hundred = decimal.NewFromInt(100)

// percentOf returns part/whole*100 rounded half-up to two decimals, or 0 when whole is 0.
func percentOf(part, whole core.Money) float64 {
	if whole.Cents == 0 {
		return 0
	}
	return decimal.NewFromInt(part.Cents).
		Mul(hundred).
		DivRound(decimal.NewFromInt(whole.Cents), 2).
		InexactFloat64()
}

// NewCategoryBudget derives the computed fields of a budget line.
func NewCategoryBudget(c core.Category, group core.BudgetGroup, target, actual core.Money) core.CategoryBudget {
	return core.CategoryBudget{
		CategoryID:      c.ID,
		CategoryName:    c.Name,
		CategoryType:    c.Type,
		BudgetGroup:     group,
		TargetAmount:    target,
		ActualAmount:    actual,
		Percentage:      percentOf(actual, target),
		RemainingAmount: target.Sub(actual),
		IsOverBudget:    target.Cents > 0 && actual.Cents > target.Cents,
	}
}

// BuildLedger joins the category catalog with the month's targets and actual
// amounts. Every expense category gets a line; transfer categories get one
// only when they carry a non-zero target. Income categories never do: their
// actuals are the month's income, not spending. Targets and actuals for
// categories outside the catalog are ignored. Lines keep catalog order.
func BuildLedger(categories []core.Category, targets []core.CategoryTarget, actuals map[int64]core.Money) ([]core.CategoryBudget, error) {
	targetByID := make(map[int64]core.Money, len(targets))
	for _, t := range targets {
		if t.Amount.IsNegative() {
			return nil, fmt.Errorf("category %d has negative target %s: %w", t.CategoryID, t.Amount, core.ErrInconsistentState)
		}
		targetByID[t.CategoryID] = t.Amount
	}

	seen := make(map[int64]struct{}, len(categories))
	lines := make([]core.CategoryBudget, 0, len(categories))
	for _, c := range categories {
		if _, dup := seen[c.ID]; dup {
			return nil, fmt.Errorf("category %d listed twice: %w", c.ID, core.ErrInconsistentState)
		}
		seen[c.ID] = struct{}{}

		if !c.Type.Valid() {
			return nil, fmt.Errorf("category %d has type %q: %w", c.ID, c.Type, core.ErrInconsistentState)
		}
		group, err := Classify(c)
		if err != nil {
			return nil, err
		}

		if c.Type == core.Income {
			continue
		}
		target := targetByID[c.ID]
		if c.Type != core.Expense && target.IsZero() {
			continue
		}
		actual := actuals[c.ID]
		if actual.IsNegative() {
			return nil, fmt.Errorf("category %d has negative actual amount %s: %w", c.ID, actual, core.ErrInconsistentState)
		}
		lines = append(lines, NewCategoryBudget(c, group, target, actual))
	}
	return lines, nil
}
