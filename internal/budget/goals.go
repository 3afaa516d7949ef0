package budget

import (
	"fmt"

	"github.com/shopspring/decimal"

	"orcamento/internal/core"
)

const daysPerMonth = 30

// GoalInput pairs a goal with the contributions recorded against it.
type GoalInput struct {
	Goal          core.Goal
	Contributions []core.Contribution
}

// MonthsRemaining is ceil(days/30) between today and target, never below 1.
// A past or same-day target date therefore asks for everything this month.
func MonthsRemaining(today, target core.Date) int {
	days := today.DaysUntil(target)
	if days <= 0 {
		return 1
	}
	months := (days + daysPerMonth - 1) / daysPerMonth
	if months < 1 {
		return 1
	}
	return months
}

// GoalPercentage is current/target*100 rounded to two decimals. A goal with a
// zero target counts as complete. The value is not capped at 100.
func GoalPercentage(current, target core.Money) float64 {
	if target.Cents == 0 {
		return 100
	}
	return percentOf(current, target)
}

// PlanGoal derives the contribution plan for one goal. current_month_contribution
// counts contributions dated inside period; months_remaining is measured from today.
func PlanGoal(in GoalInput, period core.Period, today core.Date) (core.GoalSummary, error) {
	g := in.Goal
	if g.TargetAmount.IsNegative() || g.CurrentAmount.IsNegative() {
		return core.GoalSummary{}, fmt.Errorf("goal %s has negative amounts: %w", g.ID, core.ErrInconsistentState)
	}

	remaining := g.TargetAmount.Sub(g.CurrentAmount)
	if remaining.IsNegative() {
		remaining = core.Money{}
	}

	pct := GoalPercentage(g.CurrentAmount, g.TargetAmount)
	s := core.GoalSummary{
		ID:                g.ID,
		Name:              g.Name,
		Icon:              g.Icon,
		TargetAmount:      g.TargetAmount,
		CurrentAmount:     g.CurrentAmount,
		RemainingAmount:   remaining,
		Percentage:        pct,
		DisplayPercentage: min(pct, 100),
		TargetDate:        g.TargetDate,
	}

	for _, c := range in.Contributions {
		if c.GoalID != g.ID {
			return core.GoalSummary{}, fmt.Errorf("contribution %s belongs to goal %s, not %s: %w", c.ID, c.GoalID, g.ID, core.ErrInconsistentState)
		}
		if period.Contains(c.Date) {
			s.CurrentMonthContribution = s.CurrentMonthContribution.Add(c.Amount)
		}
	}

	if g.TargetDate == nil {
		return s, nil
	}

	months := MonthsRemaining(today, *g.TargetDate)
	suggested := suggestedContribution(remaining, months)
	s.MonthsRemaining = &months
	s.SuggestedMonthlyContribution = &suggested
	s.IsBelowTarget = s.CurrentMonthContribution.Cents < suggested.Cents
	return s, nil
}

// suggestedContribution is remaining/months rounded up to the cent.
func suggestedContribution(remaining core.Money, months int) core.Money {
	q := decimal.NewFromInt(remaining.Cents).
		Div(decimal.NewFromInt(int64(months))).
		Ceil()
	return core.Cents(q.IntPart())
}
