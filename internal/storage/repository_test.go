package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orcamento/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestMigrationsSeedDemoCatalog(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	cats, err := repo.ListCategories(ctx, "demo")
	require.NoError(t, err)
	require.NotEmpty(t, cats)

	byName := map[string]core.Category{}
	for _, c := range cats {
		byName[c.Name] = c
	}
	assert.Equal(t, core.Necessities, byName["Moradia"].Group)
	assert.Equal(t, core.Income, byName["Salário"].Type)
	assert.Equal(t, core.Ungrouped, byName["Vestuário"].Group)

	require.NoError(t, repo.Ping(ctx))
}

func TestMigrationVersionAndRollback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	repo, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	v, dirty, err := MigrationVersion(path)
	require.NoError(t, err)
	assert.Equal(t, uint(2), v)
	assert.False(t, dirty)

	require.NoError(t, RollbackMigrations(path, 1))
	v, _, err = MigrationVersion(path)
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)

	assert.Error(t, RollbackMigrations(path, 0))
	require.NoError(t, RunMigrations(path))
}

func TestGetCategoryNotFound(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.GetCategory(context.Background(), 999_999)
	assert.True(t, core.IsNotFound(err))
}

func TestUpsertCategoryTargetBumpsVersion(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	cat, err := repo.CreateCategory(ctx, core.Category{OwnerID: "u1", Name: "Mercado", Type: core.Expense})
	require.NoError(t, err)

	first, err := repo.UpsertCategoryTarget(ctx, core.CategoryTarget{OwnerID: "u1", CategoryID: cat.ID, Month: 3, Year: 2025, Amount: core.Cents(50000)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Version)

	second, err := repo.UpsertCategoryTarget(ctx, core.CategoryTarget{OwnerID: "u1", CategoryID: cat.ID, Month: 3, Year: 2025, Amount: core.Cents(65000)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Version)
	assert.Equal(t, core.Cents(65000), second.Amount)
	assert.False(t, second.UpdatedAt.IsZero())

	targets, err := repo.ListCategoryTargets(ctx, "u1", core.Period{Month: 3, Year: 2025})
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, core.Cents(65000), targets[0].Amount)

	other, err := repo.ListCategoryTargets(ctx, "u1", core.Period{Month: 4, Year: 2025})
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestConcurrentUpsertsAreLastWriteWins(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	cat, err := repo.CreateCategory(ctx, core.Category{OwnerID: "u1", Name: "Lazer", Type: core.Expense})
	require.NoError(t, err)

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.UpsertCategoryTarget(ctx, core.CategoryTarget{OwnerID: "u1", CategoryID: cat.ID, Month: 1, Year: 2025, Amount: core.Cents(int64(i+1) * 100)})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	targets, err := repo.ListCategoryTargets(ctx, "u1", core.Period{Month: 1, Year: 2025})
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, int64(writers), targets[0].Version)
}

func TestUpsertBudgetGroup(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	cat, err := repo.CreateCategory(ctx, core.Category{OwnerID: "u1", Name: "Moradia", Type: core.Expense})
	require.NoError(t, err)
	assert.Equal(t, core.Ungrouped, cat.Group)

	a, err := repo.UpsertBudgetGroup(ctx, core.GroupAssignment{OwnerID: "u1", CategoryID: cat.ID, Group: core.Necessities})
	require.NoError(t, err)
	assert.Equal(t, core.Necessities, a.Group)
	assert.Equal(t, int64(1), a.Version)

	a, err = repo.UpsertBudgetGroup(ctx, core.GroupAssignment{OwnerID: "u1", CategoryID: cat.ID, Group: core.Ungrouped})
	require.NoError(t, err)
	assert.Equal(t, core.Ungrouped, a.Group)
	assert.Equal(t, int64(2), a.Version)

	_, err = repo.UpsertBudgetGroup(ctx, core.GroupAssignment{OwnerID: "u2", CategoryID: cat.ID, Group: core.Wants})
	assert.True(t, core.IsNotFound(err))
}

func TestPlannedIncome(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	p := core.Period{Month: 5, Year: 2025}

	_, ok, err := repo.GetPlannedIncome(ctx, "u1", p)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.UpsertPlannedIncome(ctx, core.PlannedIncome{OwnerID: "u1", Month: 5, Year: 2025, Amount: core.Cents(300000)})
	require.NoError(t, err)
	stored, err := repo.UpsertPlannedIncome(ctx, core.PlannedIncome{OwnerID: "u1", Month: 5, Year: 2025, Amount: core.Cents(320000)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)

	got, ok, err := repo.GetPlannedIncome(ctx, "u1", p)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, core.Cents(320000), got.Amount)
}

func TestMonthActuals(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	salary, err := repo.CreateCategory(ctx, core.Category{OwnerID: "u1", Name: "Salário", Type: core.Income})
	require.NoError(t, err)
	food, err := repo.CreateCategory(ctx, core.Category{OwnerID: "u1", Name: "Mercado", Type: core.Expense})
	require.NoError(t, err)

	for _, tx := range []core.Transaction{
		{OwnerID: "u1", CategoryID: salary.ID, Amount: core.Cents(500000), Date: core.NewDate(2025, 3, 5)},
		{OwnerID: "u1", CategoryID: food.ID, Amount: core.Cents(12050), Date: core.NewDate(2025, 3, 1)},
		{OwnerID: "u1", CategoryID: food.ID, Amount: core.Cents(7950), Date: core.NewDate(2025, 3, 31)},
		{OwnerID: "u1", CategoryID: food.ID, Amount: core.Cents(99999), Date: core.NewDate(2025, 4, 1)},
	} {
		_, err := repo.RecordTransaction(ctx, tx)
		require.NoError(t, err)
	}

	act, err := repo.MonthActuals(ctx, "u1", core.Period{Month: 3, Year: 2025})
	require.NoError(t, err)
	assert.Equal(t, core.Cents(500000), act.Income)
	assert.Equal(t, core.Cents(20000), act.ByCategory[food.ID])

	_, err = repo.RecordTransaction(ctx, core.Transaction{OwnerID: "u1", CategoryID: food.ID, Amount: core.Cents(-1), Date: core.NewDate(2025, 3, 2)})
	assert.True(t, core.IsValidation(err))
}

func TestGoalsAndContributions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	target := core.NewDate(2025, 12, 31)

	g, err := repo.CreateGoal(ctx, core.Goal{OwnerID: "u1", Name: "Viagem", Icon: "plane", TargetAmount: core.Cents(1200000), TargetDate: &target})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, g.ID)

	_, err = repo.AddContribution(ctx, "u1", core.Contribution{GoalID: g.ID, Amount: core.Cents(50000), Date: core.NewDate(2025, 3, 10)})
	require.NoError(t, err)
	_, err = repo.AddContribution(ctx, "u1", core.Contribution{GoalID: g.ID, Amount: core.Cents(25000), Date: core.NewDate(2025, 2, 10)})
	require.NoError(t, err)

	goals, err := repo.ListGoals(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, goals, 1)
	assert.Equal(t, core.Cents(75000), goals[0].CurrentAmount)
	require.NotNil(t, goals[0].TargetDate)
	assert.Equal(t, "2025-12-31", goals[0].TargetDate.String())

	march := core.Period{Month: 3, Year: 2025}
	contribs, err := repo.ListContributions(ctx, "u1", g.ID, march.Start(), march.End())
	require.NoError(t, err)
	require.Len(t, contribs, 1)
	assert.Equal(t, core.Cents(50000), contribs[0].Amount)

	_, err = repo.ListContributions(ctx, "u2", g.ID, march.Start(), march.End())
	assert.True(t, core.IsUnauthorized(err))

	_, err = repo.ListContributions(ctx, "u1", uuid.New(), march.Start(), march.End())
	assert.True(t, core.IsNotFound(err))
}

func TestTimestampsUseInjectedClock(t *testing.T) {
	repo := newTestRepo(t)
	fixed := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	stored, err := repo.UpsertPlannedIncome(context.Background(), core.PlannedIncome{OwnerID: "u1", Month: 3, Year: 2025, Amount: core.Cents(1)})
	require.NoError(t, err)
	assert.True(t, fixed.Equal(stored.UpdatedAt))
}
