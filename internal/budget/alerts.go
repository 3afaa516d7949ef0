package budget

import (
	"fmt"
	"strings"

	"orcamento/internal/core"
)

// Alerts lists human readable warnings about a computed summary, in a fixed order:
// income basis, categories over budget, rule groups, goals behind plan, unassigned income.
func Alerts(s core.MonthlyBudgetSummary) []string {
	alerts := []string{}

	if s.PlannedIncome == nil || s.PlannedIncome.Cents <= 0 {
		alerts = append(alerts, fmt.Sprintf("Planned income is not set for %04d-%02d; using actual income as the basis.", s.Year, s.Month))
	}

	for _, c := range s.Categories {
		if c.IsOverBudget {
			alerts = append(alerts, fmt.Sprintf("Category %q is over budget: spent %s of %s.", c.CategoryName, c.ActualAmount, c.TargetAmount))
		}
	}

	if s.RuleEnabled {
		for _, g := range core.RuleGroups {
			t := s.Group(g)
			if t == nil {
				continue
			}
			name := groupTitle(g)
			if t.IsOverAllocated {
				alerts = append(alerts, fmt.Sprintf("%s targets exceed the group limit by %s.", name, t.Planned.Sub(t.Limit)))
			}
			switch {
			case g == core.Savings && t.Status == core.StatusWarning && t.Limit.Cents > 0:
				alerts = append(alerts, fmt.Sprintf("Savings are at %.2f%% of the 20%% target (%s of %s).", t.Percentage, t.Actual, t.Limit))
			case g != core.Savings && t.Status == core.StatusOver:
				alerts = append(alerts, fmt.Sprintf("%s spending is at %.2f%% of its limit (%s of %s).", name, t.Percentage, t.Actual, t.Limit))
			}
		}
	}

	for _, g := range s.Goals {
		if g.IsBelowTarget && g.SuggestedMonthlyContribution != nil {
			alerts = append(alerts, fmt.Sprintf("Goal %q is below its suggested contribution this month: %s of %s.", g.Name, g.CurrentMonthContribution, *g.SuggestedMonthlyContribution))
		}
	}

	if s.TotalRemainingToPlan.Cents > 0 {
		alerts = append(alerts, fmt.Sprintf("%s of income is not yet assigned to any category.", s.TotalRemainingToPlan))
	}
	return alerts
}

func groupTitle(g core.BudgetGroup) string {
	n := g.String()
	return strings.ToUpper(n[:1]) + n[1:]
}
