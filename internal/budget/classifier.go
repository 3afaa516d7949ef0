package budget

import (
	"fmt"

	"orcamento/internal/core"
)

// Classify returns the stored budget group of a category. There is no name
// based guessing: a category the user never classified is Ungrouped.
func Classify(c core.Category) (core.BudgetGroup, error) {
	if !c.Group.Valid() {
		return core.Ungrouped, fmt.Errorf("category %d has group %s: %w", c.ID, c.Group, core.ErrInconsistentState)
	}
	return c.Group, nil
}

// Partition splits budget lines by group. Ungrouped lines are returned under core.Ungrouped.
func Partition(lines []core.CategoryBudget) map[core.BudgetGroup][]core.CategoryBudget {
	out := make(map[core.BudgetGroup][]core.CategoryBudget, 4)
	for _, l := range lines {
		out[l.BudgetGroup] = append(out[l.BudgetGroup], l)
	}
	return out
}
