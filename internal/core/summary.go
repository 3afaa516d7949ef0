package core

import "github.com/google/uuid"

// CategoryBudget is one budget line of a month: the stored target next to the
// actual spending reported by the transactions subsystem.
type CategoryBudget struct {
	CategoryID           int64        `json:"category_id"`
	CategoryName         string       `json:"category_name"`
	CategoryType         CategoryType `json:"category_type"`
	BudgetGroup          BudgetGroup  `json:"budget_group"`
	TargetAmount         Money        `json:"target_amount"`
	ActualAmount         Money        `json:"actual_amount"`
	Percentage           float64      `json:"percentage"`
	RemainingAmount      Money        `json:"remaining_amount"`
	IsOverBudget         bool         `json:"is_over_budget"`
	RemainingPerCategory Money        `json:"remaining_per_category"`
}

// BudgetGroupTotals aggregates the categories of one 50/30/20 group.
type BudgetGroupTotals struct {
	Group           BudgetGroup `json:"-"`
	Planned         Money       `json:"planned"`
	Actual          Money       `json:"actual"`
	Percentage      float64     `json:"percentage"`
	Limit           Money       `json:"limit"`
	Remaining       Money       `json:"remaining"`
	IsOverAllocated bool        `json:"is_over_allocated"`
	Status          GroupStatus `json:"status"`
}

// UngroupedTotals aggregates categories without a budget group.
type UngroupedTotals struct {
	Planned Money `json:"planned"`
	Actual  Money `json:"actual"`
}

type GoalSummary struct {
	ID                           uuid.UUID `json:"id"`
	Name                         string    `json:"name"`
	Icon                         string    `json:"icon"`
	TargetAmount                 Money     `json:"target_amount"`
	CurrentAmount                Money     `json:"current_amount"`
	RemainingAmount              Money     `json:"remaining_amount"`
	Percentage                   float64   `json:"percentage"`
	DisplayPercentage            float64   `json:"display_percentage"`
	TargetDate                   *Date     `json:"target_date"`
	MonthsRemaining              *int      `json:"months_remaining"`
	SuggestedMonthlyContribution *Money    `json:"suggested_monthly_contribution"`
	CurrentMonthContribution     Money     `json:"current_month_contribution"`
	IsBelowTarget                bool      `json:"is_below_target"`
}

// MonthlyBudgetSummary is recomputed on every request and never persisted.
type MonthlyBudgetSummary struct {
	Month                int                `json:"month"`
	Year                 int                `json:"year"`
	RuleEnabled          bool               `json:"rule_50_30_20_enabled"`
	TotalIncome          Money              `json:"total_income"`
	PlannedIncome        *Money             `json:"planned_income"`
	IncomeBasis          Money              `json:"income_basis"`
	TotalPlannedExpenses Money              `json:"total_planned_expenses"`
	TotalActualExpenses  Money              `json:"total_actual_expenses"`
	Balance              Money              `json:"balance"`
	TotalRemainingToPlan Money              `json:"total_remaining_to_plan"`
	Necessities          *BudgetGroupTotals `json:"necessities"`
	Wants                *BudgetGroupTotals `json:"wants"`
	Savings              *BudgetGroupTotals `json:"savings"`
	Ungrouped            UngroupedTotals    `json:"ungrouped"`
	Categories           []CategoryBudget   `json:"categories"`
	Goals                []GoalSummary      `json:"goals"`
	Alerts               []string           `json:"alerts"`
}

// Group returns the totals of g, or nil when the rule is disabled.
func (s *MonthlyBudgetSummary) Group(g BudgetGroup) *BudgetGroupTotals {
	switch g {
	case Necessities:
		return s.Necessities
	case Wants:
		return s.Wants
	case Savings:
		return s.Savings
	default:
		return nil
	}
}
