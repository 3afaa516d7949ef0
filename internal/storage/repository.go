package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"orcamento/internal/core"

	_ "modernc.org/sqlite"
)

const dsnPragmas = "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// SQLiteRepository implements ports.BudgetStore, ports.TransactionAggregator
// and ports.GoalReader on a single SQLite database.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+dsnPragmas)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping implements ports.Pinger
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) timestamp() string {
	return r.now().UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func toCategory(c Category) (core.Category, error) {
	typ, err := core.ParseCategoryType(c.Type)
	if err != nil {
		return core.Category{}, fmt.Errorf("category %d: %w", c.ID, err)
	}
	group, err := storedGroup(c.BudgetGroup)
	if err != nil {
		return core.Category{}, fmt.Errorf("category %d: %w", c.ID, err)
	}
	return core.Category{
		ID:      c.ID,
		OwnerID: c.OwnerID,
		Name:    c.Name,
		Type:    typ,
		Group:   group,
	}, nil
}

func storedGroup(v sql.NullString) (core.BudgetGroup, error) {
	if !v.Valid {
		return core.Ungrouped, nil
	}
	g, err := core.ParseBudgetGroup(v.String)
	if err != nil {
		return core.Ungrouped, fmt.Errorf("stored budget group %q: %w", v.String, core.ErrInconsistentState)
	}
	return g, nil
}

func groupColumn(g core.BudgetGroup) sql.NullString {
	if !g.IsSet() {
		return sql.NullString{}
	}
	return sql.NullString{String: g.String(), Valid: true}
}

// ListCategories implements ports.CategoryReader
func (r *SQLiteRepository) ListCategories(ctx context.Context, owner string) ([]core.Category, error) {
	rows, err := r.queries.ListCategoriesByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]core.Category, 0, len(rows))
	for _, row := range rows {
		c, err := toCategory(row)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// GetCategory implements ports.CategoryReader
func (r *SQLiteRepository) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	row, err := r.queries.GetCategory(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, &core.NotFoundError{Resource: "category", ID: strconv.FormatInt(id, 10)}
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %d: %w", id, err)
	}
	return toCategory(row)
}

// CreateCategory adds a category to an owner's catalog. It backs seeding and tests;
// catalog management itself belongs to the categories subsystem.
func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := core.ValidateOwner(c.OwnerID); err != nil {
		return core.Category{}, err
	}
	if !c.Type.Valid() {
		return core.Category{}, &core.ValidationError{Field: "type", Message: fmt.Sprintf("unknown category type %q", c.Type)}
	}
	row, err := r.queries.CreateCategory(ctx, CreateCategoryParams{
		OwnerID:     c.OwnerID,
		Name:        c.Name,
		Type:        string(c.Type),
		BudgetGroup: groupColumn(c.Group),
	})
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return toCategory(row)
}

// ListCategoryTargets implements ports.BudgetStore
func (r *SQLiteRepository) ListCategoryTargets(ctx context.Context, owner string, period core.Period) ([]core.CategoryTarget, error) {
	rows, err := r.queries.ListCategoryTargets(ctx, ListCategoryTargetsParams{
		OwnerID: owner,
		Month:   int64(period.Month),
		Year:    int64(period.Year),
	})
	if err != nil {
		return nil, fmt.Errorf("list category targets: %w", err)
	}
	out := make([]core.CategoryTarget, len(rows))
	for i, row := range rows {
		out[i] = toCategoryTarget(row)
	}
	return out, nil
}

func toCategoryTarget(row CategoryTarget) core.CategoryTarget {
	return core.CategoryTarget{
		OwnerID:    row.OwnerID,
		CategoryID: row.CategoryID,
		Month:      int(row.Month),
		Year:       int(row.Year),
		Amount:     core.Cents(row.AmountCents),
		Version:    row.Version,
		UpdatedAt:  parseTimestamp(row.UpdatedAt),
	}
}

// UpsertCategoryTarget implements ports.BudgetStore. The last write wins and bumps the version.
func (r *SQLiteRepository) UpsertCategoryTarget(ctx context.Context, t core.CategoryTarget) (core.CategoryTarget, error) {
	row, err := r.queries.UpsertCategoryTarget(ctx, UpsertCategoryTargetParams{
		OwnerID:     t.OwnerID,
		CategoryID:  t.CategoryID,
		Month:       int64(t.Month),
		Year:        int64(t.Year),
		AmountCents: t.Amount.Cents,
		UpdatedAt:   r.timestamp(),
	})
	if err != nil {
		return core.CategoryTarget{}, fmt.Errorf("upsert category target: %w", err)
	}

	slog.DebugContext(ctx, "Category target stored",
		"owner_id", row.OwnerID,
		"category_id", row.CategoryID,
		"amount_cents", row.AmountCents,
		"version", row.Version)

	return toCategoryTarget(row), nil
}

// UpsertBudgetGroup implements ports.BudgetStore
func (r *SQLiteRepository) UpsertBudgetGroup(ctx context.Context, a core.GroupAssignment) (core.GroupAssignment, error) {
	row, err := r.queries.SetCategoryGroup(ctx, SetCategoryGroupParams{
		BudgetGroup: groupColumn(a.Group),
		UpdatedAt:   r.timestamp(),
		ID:          a.CategoryID,
		OwnerID:     a.OwnerID,
	})
	if errors.Is(err, sql.ErrNoRows) {
		return core.GroupAssignment{}, &core.NotFoundError{Resource: "category", ID: strconv.FormatInt(a.CategoryID, 10)}
	}
	if err != nil {
		return core.GroupAssignment{}, fmt.Errorf("set budget group: %w", err)
	}

	group, err := storedGroup(row.BudgetGroup)
	if err != nil {
		return core.GroupAssignment{}, err
	}
	return core.GroupAssignment{
		OwnerID:    row.OwnerID,
		CategoryID: row.ID,
		Group:      group,
		Version:    row.GroupVersion,
		UpdatedAt:  parseTimestamp(row.GroupUpdatedAt.String),
	}, nil
}

// GetPlannedIncome implements ports.BudgetStore
func (r *SQLiteRepository) GetPlannedIncome(ctx context.Context, owner string, period core.Period) (core.PlannedIncome, bool, error) {
	row, err := r.queries.GetPlannedIncome(ctx, GetPlannedIncomeParams{
		OwnerID: owner,
		Month:   int64(period.Month),
		Year:    int64(period.Year),
	})
	if errors.Is(err, sql.ErrNoRows) {
		return core.PlannedIncome{}, false, nil
	}
	if err != nil {
		return core.PlannedIncome{}, false, fmt.Errorf("get planned income: %w", err)
	}
	return toPlannedIncome(row), true, nil
}

func toPlannedIncome(row PlannedIncome) core.PlannedIncome {
	return core.PlannedIncome{
		OwnerID:   row.OwnerID,
		Month:     int(row.Month),
		Year:      int(row.Year),
		Amount:    core.Cents(row.AmountCents),
		Version:   row.Version,
		UpdatedAt: parseTimestamp(row.UpdatedAt),
	}
}

// UpsertPlannedIncome implements ports.BudgetStore
func (r *SQLiteRepository) UpsertPlannedIncome(ctx context.Context, p core.PlannedIncome) (core.PlannedIncome, error) {
	row, err := r.queries.UpsertPlannedIncome(ctx, UpsertPlannedIncomeParams{
		OwnerID:     p.OwnerID,
		Month:       int64(p.Month),
		Year:        int64(p.Year),
		AmountCents: p.Amount.Cents,
		UpdatedAt:   r.timestamp(),
	})
	if err != nil {
		return core.PlannedIncome{}, fmt.Errorf("upsert planned income: %w", err)
	}
	return toPlannedIncome(row), nil
}

// RecordTransaction stores a posted transaction for local aggregation.
func (r *SQLiteRepository) RecordTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	if err := t.Amount.Validate(); err != nil {
		return 0, core.InvalidField("amount", err)
	}
	id, err := r.queries.CreateTransaction(ctx, CreateTransactionParams{
		OwnerID:     t.OwnerID,
		CategoryID:  t.CategoryID,
		AmountCents: t.Amount.Cents,
		OccurredOn:  t.Date.String(),
		Description: t.Description,
	})
	if err != nil {
		return 0, fmt.Errorf("create transaction: %w", err)
	}
	return id, nil
}

// MonthActuals implements ports.TransactionAggregator
func (r *SQLiteRepository) MonthActuals(ctx context.Context, owner string, period core.Period) (core.MonthActuals, error) {
	rows, err := r.queries.SumTransactionsByCategory(ctx, SumTransactionsByCategoryParams{
		OwnerID: owner,
		From:    period.Start().String(),
		To:      period.End().String(),
	})
	if err != nil {
		return core.MonthActuals{}, fmt.Errorf("sum transactions: %w", err)
	}

	out := core.MonthActuals{ByCategory: make(map[int64]core.Money, len(rows))}
	for _, row := range rows {
		amount := core.Cents(row.AmountCents)
		out.ByCategory[row.CategoryID] = amount
		if core.CategoryType(row.Type) == core.Income {
			out.Income = out.Income.Add(amount)
		}
	}
	return out, nil
}

// ListGoals implements ports.GoalReader
func (r *SQLiteRepository) ListGoals(ctx context.Context, owner string) ([]core.Goal, error) {
	rows, err := r.queries.ListGoalsByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	out := make([]core.Goal, 0, len(rows))
	for _, row := range rows {
		g, err := toGoal(row)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

func toGoal(row Goal) (core.Goal, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return core.Goal{}, fmt.Errorf("goal id %q: %w", row.ID, core.ErrInconsistentState)
	}
	g := core.Goal{
		ID:            id,
		OwnerID:       row.OwnerID,
		Name:          row.Name,
		Icon:          row.Icon,
		TargetAmount:  core.Cents(row.TargetCents),
		CurrentAmount: core.Cents(row.CurrentCents),
	}
	if row.TargetDate.Valid {
		d, err := core.ParseDate(row.TargetDate.String)
		if err != nil {
			return core.Goal{}, fmt.Errorf("goal %s target date: %w", row.ID, core.ErrInconsistentState)
		}
		g.TargetDate = &d
	}
	return g, nil
}

// ListContributions implements ports.GoalReader
func (r *SQLiteRepository) ListContributions(ctx context.Context, owner string, goalID uuid.UUID, from, to core.Date) ([]core.Contribution, error) {
	if err := r.checkGoalOwner(ctx, owner, goalID); err != nil {
		return nil, err
	}
	rows, err := r.queries.ListContributions(ctx, ListContributionsParams{
		GoalID: goalID.String(),
		From:   from.String(),
		To:     to.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("list contributions: %w", err)
	}

	out := make([]core.Contribution, 0, len(rows))
	for _, row := range rows {
		id, err := uuid.Parse(row.ID)
		if err != nil {
			return nil, fmt.Errorf("contribution id %q: %w", row.ID, core.ErrInconsistentState)
		}
		d, err := core.ParseDate(row.ContributedOn)
		if err != nil {
			return nil, fmt.Errorf("contribution %s date: %w", row.ID, core.ErrInconsistentState)
		}
		out = append(out, core.Contribution{ID: id, GoalID: goalID, Amount: core.Cents(row.AmountCents), Date: d})
	}
	return out, nil
}

func (r *SQLiteRepository) checkGoalOwner(ctx context.Context, owner string, goalID uuid.UUID) error {
	got, err := r.queries.GetGoalOwner(ctx, goalID.String())
	if errors.Is(err, sql.ErrNoRows) {
		return &core.NotFoundError{Resource: "goal", ID: goalID.String()}
	}
	if err != nil {
		return fmt.Errorf("get goal %s: %w", goalID, err)
	}
	if got != owner {
		return &core.AuthorizationError{Resource: "goal", ID: goalID.String()}
	}
	return nil
}

// CreateGoal stores a goal. A nil ID is replaced by a fresh UUID.
func (r *SQLiteRepository) CreateGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	var target sql.NullString
	if g.TargetDate != nil {
		target = sql.NullString{String: g.TargetDate.String(), Valid: true}
	}
	err := r.queries.CreateGoal(ctx, Goal{
		ID:           g.ID.String(),
		OwnerID:      g.OwnerID,
		Name:         g.Name,
		Icon:         g.Icon,
		TargetCents:  g.TargetAmount.Cents,
		CurrentCents: g.CurrentAmount.Cents,
		TargetDate:   target,
	})
	if err != nil {
		return core.Goal{}, fmt.Errorf("create goal: %w", err)
	}
	return g, nil
}

// AddContribution records a contribution and moves the goal's current amount in one transaction.
func (r *SQLiteRepository) AddContribution(ctx context.Context, owner string, c core.Contribution) (core.Contribution, error) {
	if err := r.checkGoalOwner(ctx, owner, c.GoalID); err != nil {
		return core.Contribution{}, err
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Contribution{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	if err := q.CreateContribution(ctx, GoalContribution{
		ID:            c.ID.String(),
		GoalID:        c.GoalID.String(),
		AmountCents:   c.Amount.Cents,
		ContributedOn: c.Date.String(),
	}); err != nil {
		return core.Contribution{}, fmt.Errorf("create contribution: %w", err)
	}
	if err := q.AddGoalProgress(ctx, AddGoalProgressParams{AmountCents: c.Amount.Cents, ID: c.GoalID.String()}); err != nil {
		return core.Contribution{}, fmt.Errorf("update goal progress: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return core.Contribution{}, fmt.Errorf("commit contribution: %w", err)
	}
	return c, nil
}
