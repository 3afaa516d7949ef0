package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Category struct {
	ID             int64
	OwnerID        string
	Name           string
	Type           string
	BudgetGroup    sql.NullString
	GroupVersion   int64
	GroupUpdatedAt sql.NullString
}

type CategoryTarget struct {
	OwnerID     string
	CategoryID  int64
	Month       int64
	Year        int64
	AmountCents int64
	Version     int64
	UpdatedAt   string
}

type PlannedIncome struct {
	OwnerID     string
	Month       int64
	Year        int64
	AmountCents int64
	Version     int64
	UpdatedAt   string
}

type Goal struct {
	ID           string
	OwnerID      string
	Name         string
	Icon         string
	TargetCents  int64
	CurrentCents int64
	TargetDate   sql.NullString
}

type GoalContribution struct {
	ID            string
	GoalID        string
	AmountCents   int64
	ContributedOn string
}

const categoryColumns = `id, owner_id, name, type, budget_group, group_version, group_updated_at`

func scanCategory(row interface{ Scan(...any) error }) (Category, error) {
	var c Category
	err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Type, &c.BudgetGroup, &c.GroupVersion, &c.GroupUpdatedAt)
	return c, err
}

const listCategoriesByOwner = `SELECT ` + categoryColumns + `
FROM categories
WHERE owner_id = ?
ORDER BY name, id`

func (q *Queries) ListCategoriesByOwner(ctx context.Context, ownerID string) ([]Category, error) {
	rows, err := q.db.QueryContext(ctx, listCategoriesByOwner, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getCategory = `SELECT ` + categoryColumns + ` FROM categories WHERE id = ?`

func (q *Queries) GetCategory(ctx context.Context, id int64) (Category, error) {
	return scanCategory(q.db.QueryRowContext(ctx, getCategory, id))
}

const createCategory = `INSERT INTO categories (owner_id, name, type, budget_group)
VALUES (?, ?, ?, ?)
RETURNING ` + categoryColumns

type CreateCategoryParams struct {
	OwnerID     string
	Name        string
	Type        string
	BudgetGroup sql.NullString
}

func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) (Category, error) {
	return scanCategory(q.db.QueryRowContext(ctx, createCategory, arg.OwnerID, arg.Name, arg.Type, arg.BudgetGroup))
}

const setCategoryGroup = `UPDATE categories
SET budget_group = ?, group_version = group_version + 1, group_updated_at = ?
WHERE id = ? AND owner_id = ?
RETURNING ` + categoryColumns

type SetCategoryGroupParams struct {
	BudgetGroup sql.NullString
	UpdatedAt   string
	ID          int64
	OwnerID     string
}

func (q *Queries) SetCategoryGroup(ctx context.Context, arg SetCategoryGroupParams) (Category, error) {
	return scanCategory(q.db.QueryRowContext(ctx, setCategoryGroup, arg.BudgetGroup, arg.UpdatedAt, arg.ID, arg.OwnerID))
}

const listCategoryTargets = `SELECT owner_id, category_id, month, year, amount_cents, version, updated_at
FROM category_targets
WHERE owner_id = ? AND month = ? AND year = ?
ORDER BY category_id`

type ListCategoryTargetsParams struct {
	OwnerID string
	Month   int64
	Year    int64
}

func (q *Queries) ListCategoryTargets(ctx context.Context, arg ListCategoryTargetsParams) ([]CategoryTarget, error) {
	rows, err := q.db.QueryContext(ctx, listCategoryTargets, arg.OwnerID, arg.Month, arg.Year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CategoryTarget
	for rows.Next() {
		var i CategoryTarget
		if err := rows.Scan(&i.OwnerID, &i.CategoryID, &i.Month, &i.Year, &i.AmountCents, &i.Version, &i.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertCategoryTarget = `INSERT INTO category_targets (owner_id, category_id, month, year, amount_cents, version, updated_at)
VALUES (?, ?, ?, ?, ?, 1, ?)
ON CONFLICT (owner_id, category_id, month, year) DO UPDATE SET
    amount_cents = excluded.amount_cents,
    version = category_targets.version + 1,
    updated_at = excluded.updated_at
RETURNING owner_id, category_id, month, year, amount_cents, version, updated_at`

type UpsertCategoryTargetParams struct {
	OwnerID     string
	CategoryID  int64
	Month       int64
	Year        int64
	AmountCents int64
	UpdatedAt   string
}

func (q *Queries) UpsertCategoryTarget(ctx context.Context, arg UpsertCategoryTargetParams) (CategoryTarget, error) {
	row := q.db.QueryRowContext(ctx, upsertCategoryTarget, arg.OwnerID, arg.CategoryID, arg.Month, arg.Year, arg.AmountCents, arg.UpdatedAt)
	var i CategoryTarget
	err := row.Scan(&i.OwnerID, &i.CategoryID, &i.Month, &i.Year, &i.AmountCents, &i.Version, &i.UpdatedAt)
	return i, err
}

const getPlannedIncome = `SELECT owner_id, month, year, amount_cents, version, updated_at
FROM planned_incomes
WHERE owner_id = ? AND month = ? AND year = ?`

type GetPlannedIncomeParams struct {
	OwnerID string
	Month   int64
	Year    int64
}

func (q *Queries) GetPlannedIncome(ctx context.Context, arg GetPlannedIncomeParams) (PlannedIncome, error) {
	row := q.db.QueryRowContext(ctx, getPlannedIncome, arg.OwnerID, arg.Month, arg.Year)
	var i PlannedIncome
	err := row.Scan(&i.OwnerID, &i.Month, &i.Year, &i.AmountCents, &i.Version, &i.UpdatedAt)
	return i, err
}

const upsertPlannedIncome = `INSERT INTO planned_incomes (owner_id, month, year, amount_cents, version, updated_at)
VALUES (?, ?, ?, ?, 1, ?)
ON CONFLICT (owner_id, month, year) DO UPDATE SET
    amount_cents = excluded.amount_cents,
    version = planned_incomes.version + 1,
    updated_at = excluded.updated_at
RETURNING owner_id, month, year, amount_cents, version, updated_at`

type UpsertPlannedIncomeParams struct {
	OwnerID     string
	Month       int64
	Year        int64
	AmountCents int64
	UpdatedAt   string
}

func (q *Queries) UpsertPlannedIncome(ctx context.Context, arg UpsertPlannedIncomeParams) (PlannedIncome, error) {
	row := q.db.QueryRowContext(ctx, upsertPlannedIncome, arg.OwnerID, arg.Month, arg.Year, arg.AmountCents, arg.UpdatedAt)
	var i PlannedIncome
	err := row.Scan(&i.OwnerID, &i.Month, &i.Year, &i.AmountCents, &i.Version, &i.UpdatedAt)
	return i, err
}

const createTransaction = `INSERT INTO transactions (owner_id, category_id, amount_cents, occurred_on, description)
VALUES (?, ?, ?, ?, ?)
RETURNING id`

type CreateTransactionParams struct {
	OwnerID     string
	CategoryID  int64
	AmountCents int64
	OccurredOn  string
	Description string
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, createTransaction, arg.OwnerID, arg.CategoryID, arg.AmountCents, arg.OccurredOn, arg.Description).Scan(&id)
	return id, err
}

const sumTransactionsByCategory = `SELECT t.category_id, c.type, SUM(t.amount_cents)
FROM transactions t
JOIN categories c ON c.id = t.category_id
WHERE t.owner_id = ? AND t.occurred_on BETWEEN ? AND ?
GROUP BY t.category_id, c.type
ORDER BY t.category_id`

type SumTransactionsByCategoryParams struct {
	OwnerID string
	From    string
	To      string
}

type SumTransactionsByCategoryRow struct {
	CategoryID  int64
	Type        string
	AmountCents int64
}

func (q *Queries) SumTransactionsByCategory(ctx context.Context, arg SumTransactionsByCategoryParams) ([]SumTransactionsByCategoryRow, error) {
	rows, err := q.db.QueryContext(ctx, sumTransactionsByCategory, arg.OwnerID, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SumTransactionsByCategoryRow
	for rows.Next() {
		var i SumTransactionsByCategoryRow
		if err := rows.Scan(&i.CategoryID, &i.Type, &i.AmountCents); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const goalColumns = `id, owner_id, name, icon, target_cents, current_cents, target_date`

const listGoalsByOwner = `SELECT ` + goalColumns + ` FROM goals WHERE owner_id = ? ORDER BY name, id`

func (q *Queries) ListGoalsByOwner(ctx context.Context, ownerID string) ([]Goal, error) {
	rows, err := q.db.QueryContext(ctx, listGoalsByOwner, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Goal
	for rows.Next() {
		var i Goal
		if err := rows.Scan(&i.ID, &i.OwnerID, &i.Name, &i.Icon, &i.TargetCents, &i.CurrentCents, &i.TargetDate); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createGoal = `INSERT INTO goals (` + goalColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateGoal(ctx context.Context, arg Goal) error {
	_, err := q.db.ExecContext(ctx, createGoal, arg.ID, arg.OwnerID, arg.Name, arg.Icon, arg.TargetCents, arg.CurrentCents, arg.TargetDate)
	return err
}

const getGoalOwner = `SELECT owner_id FROM goals WHERE id = ?`

func (q *Queries) GetGoalOwner(ctx context.Context, id string) (string, error) {
	var owner string
	err := q.db.QueryRowContext(ctx, getGoalOwner, id).Scan(&owner)
	return owner, err
}

const listContributions = `SELECT id, goal_id, amount_cents, contributed_on
FROM goal_contributions
WHERE goal_id = ? AND contributed_on BETWEEN ? AND ?
ORDER BY contributed_on, id`

type ListContributionsParams struct {
	GoalID string
	From   string
	To     string
}

func (q *Queries) ListContributions(ctx context.Context, arg ListContributionsParams) ([]GoalContribution, error) {
	rows, err := q.db.QueryContext(ctx, listContributions, arg.GoalID, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GoalContribution
	for rows.Next() {
		var i GoalContribution
		if err := rows.Scan(&i.ID, &i.GoalID, &i.AmountCents, &i.ContributedOn); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createContribution = `INSERT INTO goal_contributions (id, goal_id, amount_cents, contributed_on) VALUES (?, ?, ?, ?)`

func (q *Queries) CreateContribution(ctx context.Context, arg GoalContribution) error {
	_, err := q.db.ExecContext(ctx, createContribution, arg.ID, arg.GoalID, arg.AmountCents, arg.ContributedOn)
	return err
}

const addGoalProgress = `UPDATE goals SET current_cents = current_cents + ? WHERE id = ?`

type AddGoalProgressParams struct {
	AmountCents int64
	ID          string
}

func (q *Queries) AddGoalProgress(ctx context.Context, arg AddGoalProgressParams) error {
	_, err := q.db.ExecContext(ctx, addGoalProgress, arg.AmountCents, arg.ID)
	return err
}
