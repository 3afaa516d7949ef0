package ports

import (
	"context"

	"github.com/google/uuid"

	"orcamento/internal/core"
)

// Ports for outbound adapters.
type (
	// CategoryReader gives read access to the owner's category catalog.
	// Category CRUD itself lives in another subsystem.
	CategoryReader interface {
		// ListCategories returns the owner's categories with their budget group.
		ListCategories(ctx context.Context, owner string) ([]core.Category, error)
		// GetCategory returns a category regardless of owner, or a *core.NotFoundError.
		GetCategory(ctx context.Context, id int64) (core.Category, error)
	}

	// BudgetStore holds the durable budget state. Every mutator is an atomic
	// last-write-wins upsert and returns the stored record with its new version.
	BudgetStore interface {
		CategoryReader

		ListCategoryTargets(ctx context.Context, owner string, period core.Period) ([]core.CategoryTarget, error)
		UpsertCategoryTarget(ctx context.Context, t core.CategoryTarget) (core.CategoryTarget, error)
		UpsertBudgetGroup(ctx context.Context, a core.GroupAssignment) (core.GroupAssignment, error)
		// GetPlannedIncome reports ok=false when no income was planned for the month.
		GetPlannedIncome(ctx context.Context, owner string, period core.Period) (income core.PlannedIncome, ok bool, err error)
		UpsertPlannedIncome(ctx context.Context, p core.PlannedIncome) (core.PlannedIncome, error)
	}

	// TransactionAggregator sums posted transactions for a month.
	TransactionAggregator interface {
		// MonthActuals returns spending per category and total income.
		MonthActuals(ctx context.Context, owner string, period core.Period) (core.MonthActuals, error)
	}

	// GoalReader exposes the goals subsystem. The budget engine only reads it.
	GoalReader interface {
		ListGoals(ctx context.Context, owner string) ([]core.Goal, error)
		// ListContributions returns contributions to a goal dated within [from, to].
		ListContributions(ctx context.Context, owner string, goalID uuid.UUID, from, to core.Date) ([]core.Contribution, error)
	}

	// Pinger is implemented by backends that can report readiness.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)
