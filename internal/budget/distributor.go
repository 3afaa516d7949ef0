package budget

import "orcamento/internal/core"

// Distribution is the advisory split of unassigned income.
type Distribution struct {
	TotalRemaining core.Money
	// PerCategory only holds categories whose target is zero.
	PerCategory map[int64]core.Money
}

// TotalRemainingToPlan is max(0, basis - sum of all targets).
func TotalRemainingToPlan(basis core.Money, lines []core.CategoryBudget) core.Money {
	remaining := basis
	for _, l := range lines {
		remaining = remaining.Sub(l.TargetAmount)
	}
	if remaining.IsNegative() {
		return core.Money{}
	}
	return remaining
}

// Distribute splits the remaining income equally over the unplanned lines.
// The split is in whole cents: the first (total mod n) unplanned lines, in
// the order given, receive one extra cent, so the parts add up to the total.
func Distribute(basis core.Money, lines []core.CategoryBudget) Distribution {
	d := Distribution{
		TotalRemaining: TotalRemainingToPlan(basis, lines),
		PerCategory:    map[int64]core.Money{},
	}

	var unplanned []int64
	for _, l := range lines {
		if l.TargetAmount.IsZero() {
			unplanned = append(unplanned, l.CategoryID)
		}
	}
	if len(unplanned) == 0 {
		return d
	}

	n := int64(len(unplanned))
	base := d.TotalRemaining.Cents / n
	extra := d.TotalRemaining.Cents % n
	for i, id := range unplanned {
		share := base
		if int64(i) < extra {
			share++
		}
		d.PerCategory[id] = core.Cents(share)
	}
	return d
}

// Apply writes the advisory shares onto the lines. Planned lines get zero.
// Targets are never touched.
func (d Distribution) Apply(lines []core.CategoryBudget) {
	for i := range lines {
		lines[i].RemainingPerCategory = d.PerCategory[lines[i].CategoryID]
	}
}

// GroupRemaining sets limit - planned on a group. The value may be negative,
// in which case the group is flagged as over-allocated rather than clamped.
func GroupRemaining(t *core.BudgetGroupTotals) {
	t.Remaining = t.Limit.Sub(t.Planned)
	t.IsOverAllocated = t.Remaining.IsNegative()
}
