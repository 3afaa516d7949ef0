// Package memory is an in-process backend used in development and tests.
package memory

import (
	"bufio"
	"cmp"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"orcamento/internal/core"
)

type targetKey struct {
	owner      string
	categoryID int64
	month      int
	year       int
}

type incomeKey struct {
	owner string
	month int
	year  int
}

type group struct {
	group     core.BudgetGroup
	version   int64
	updatedAt time.Time
}

type Store struct {
	mu         sync.RWMutex
	nextID     int64
	categories map[int64]core.Category
	groups     map[int64]group
	targets    map[targetKey]core.CategoryTarget
	incomes    map[incomeKey]core.PlannedIncome
	txs        []core.Transaction
	goals      map[uuid.UUID]core.Goal
	contribs   map[uuid.UUID][]core.Contribution
	now        func() time.Time
}

func New() *Store {
	return &Store{
		categories: map[int64]core.Category{},
		groups:     map[int64]group{},
		targets:    map[targetKey]core.CategoryTarget{},
		incomes:    map[incomeKey]core.PlannedIncome{},
		goals:      map[uuid.UUID]core.Goal{},
		contribs:   map[uuid.UUID][]core.Contribution{},
		now:        time.Now,
	}
}

var defaultSeed = []core.Category{
	{Name: "Salário", Type: core.Income},
	{Name: "Moradia", Type: core.Expense, Group: core.Necessities},
	{Name: "Mercado", Type: core.Expense, Group: core.Necessities},
	{Name: "Transporte", Type: core.Expense, Group: core.Necessities},
	{Name: "Restaurantes", Type: core.Expense, Group: core.Wants},
	{Name: "Lazer", Type: core.Expense, Group: core.Wants},
	{Name: "Presentes", Type: core.Expense},
	{Name: "Reserva de emergência", Type: core.Transfer, Group: core.Savings},
}

// NewFromFiles seeds the catalog of owner from base/seed_categories.txt.
// Each line is "name;type[;group]". Blank lines and # comments are skipped.
// A missing or empty file falls back to a small default catalog.
func NewFromFiles(base, owner string) (*Store, error) {
	seed, err := readSeed(filepath.Join(base, "seed_categories.txt"))
	if err != nil {
		return nil, err
	}
	if len(seed) == 0 {
		seed = defaultSeed
	}
	s := New()
	for _, c := range seed {
		c.OwnerID = owner
		if _, err := s.CreateCategory(context.Background(), c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func readSeed(path string) ([]core.Category, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	var out []core.Category
	seen := map[string]struct{}{}
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ";")
		if len(parts) < 2 {
			return nil, fmt.Errorf("%s:%d: expected name;type[;group]", path, lineNo)
		}
		name := strings.TrimSpace(parts[0])
		if _, dup := seen[name]; dup || name == "" {
			continue
		}
		typ, err := core.ParseCategoryType(parts[1])
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		c := core.Category{Name: name, Type: typ}
		if len(parts) > 2 && strings.TrimSpace(parts[2]) != "" {
			g, err := core.ParseBudgetGroup(parts[2])
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
			}
			c.Group = g
		}
		seen[name] = struct{}{}
		out = append(out, c)
	}
	return out, sc.Err()
}

// CreateCategory adds a category and assigns it the next id.
func (s *Store) CreateCategory(_ context.Context, c core.Category) (core.Category, error) {
	if err := core.ValidateOwner(c.OwnerID); err != nil {
		return core.Category{}, err
	}
	if !c.Type.Valid() {
		return core.Category{}, &core.ValidationError{Field: "type", Message: fmt.Sprintf("unknown category type %q", c.Type)}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	c.ID = s.nextID
	s.categories[c.ID] = c
	s.groups[c.ID] = group{group: c.Group}
	return c, nil
}

func (s *Store) category(id int64) (core.Category, bool) {
	c, ok := s.categories[id]
	if !ok {
		return core.Category{}, false
	}
	c.Group = s.groups[id].group
	return c, true
}

// ListCategories returns the owner's categories in id order.
func (s *Store) ListCategories(_ context.Context, owner string) ([]core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Category, 0)
	for id := int64(1); id <= s.nextID; id++ {
		if c, ok := s.category(id); ok && c.OwnerID == owner {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) GetCategory(_ context.Context, id int64) (core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.category(id)
	if !ok {
		return core.Category{}, &core.NotFoundError{Resource: "category", ID: strconv.FormatInt(id, 10)}
	}
	return c, nil
}

func (s *Store) ListCategoryTargets(_ context.Context, owner string, p core.Period) ([]core.CategoryTarget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.CategoryTarget, 0)
	for k, t := range s.targets {
		if k.owner == owner && k.month == p.Month && k.year == p.Year {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b core.CategoryTarget) int { return cmp.Compare(a.CategoryID, b.CategoryID) })
	return out, nil
}

func (s *Store) UpsertCategoryTarget(_ context.Context, t core.CategoryTarget) (core.CategoryTarget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := targetKey{owner: t.OwnerID, categoryID: t.CategoryID, month: t.Month, year: t.Year}
	prev := s.targets[k]
	t.Version = prev.Version + 1
	t.UpdatedAt = s.now().UTC()
	s.targets[k] = t
	return t, nil
}

func (s *Store) UpsertBudgetGroup(_ context.Context, a core.GroupAssignment) (core.GroupAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[a.CategoryID]
	if !ok || c.OwnerID != a.OwnerID {
		return core.GroupAssignment{}, &core.NotFoundError{Resource: "category", ID: strconv.FormatInt(a.CategoryID, 10)}
	}
	g := s.groups[a.CategoryID]
	g.group = a.Group
	g.version++
	g.updatedAt = s.now().UTC()
	s.groups[a.CategoryID] = g

	a.Version = g.version
	a.UpdatedAt = g.updatedAt
	return a, nil
}

func (s *Store) GetPlannedIncome(_ context.Context, owner string, p core.Period) (core.PlannedIncome, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pi, ok := s.incomes[incomeKey{owner: owner, month: p.Month, year: p.Year}]
	return pi, ok, nil
}

func (s *Store) UpsertPlannedIncome(_ context.Context, p core.PlannedIncome) (core.PlannedIncome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := incomeKey{owner: p.OwnerID, month: p.Month, year: p.Year}
	p.Version = s.incomes[k].Version + 1
	p.UpdatedAt = s.now().UTC()
	s.incomes[k] = p
	return p, nil
}

// RecordTransaction stores a posted transaction.
func (s *Store) RecordTransaction(_ context.Context, t core.Transaction) (int64, error) {
	if err := t.Amount.Validate(); err != nil {
		return 0, core.InvalidField("amount", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[t.CategoryID]; !ok {
		return 0, &core.NotFoundError{Resource: "category", ID: strconv.FormatInt(t.CategoryID, 10)}
	}
	t.ID = int64(len(s.txs) + 1)
	s.txs = append(s.txs, t)
	return t.ID, nil
}

func (s *Store) MonthActuals(_ context.Context, owner string, p core.Period) (core.MonthActuals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := core.MonthActuals{ByCategory: map[int64]core.Money{}}
	for _, t := range s.txs {
		if t.OwnerID != owner || !p.Contains(t.Date) {
			continue
		}
		out.ByCategory[t.CategoryID] = out.ByCategory[t.CategoryID].Add(t.Amount)
		if s.categories[t.CategoryID].Type == core.Income {
			out.Income = out.Income.Add(t.Amount)
		}
	}
	return out, nil
}

// CreateGoal stores a goal. A nil ID is replaced by a fresh UUID.
func (s *Store) CreateGoal(_ context.Context, g core.Goal) (core.Goal, error) {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals[g.ID] = g
	return g, nil
}

// AddContribution records a contribution and moves the goal's current amount.
func (s *Store) AddContribution(_ context.Context, owner string, c core.Contribution) (core.Contribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.ownedGoal(owner, c.GoalID)
	if err != nil {
		return core.Contribution{}, err
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	g.CurrentAmount = g.CurrentAmount.Add(c.Amount)
	s.goals[g.ID] = g
	s.contribs[g.ID] = append(s.contribs[g.ID], c)
	return c, nil
}

func (s *Store) ownedGoal(owner string, id uuid.UUID) (core.Goal, error) {
	g, ok := s.goals[id]
	if !ok {
		return core.Goal{}, &core.NotFoundError{Resource: "goal", ID: id.String()}
	}
	if g.OwnerID != owner {
		return core.Goal{}, &core.AuthorizationError{Resource: "goal", ID: id.String()}
	}
	return g, nil
}

// ListGoals returns the owner's goals ordered by name.
func (s *Store) ListGoals(_ context.Context, owner string) ([]core.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Goal, 0)
	for _, g := range s.goals {
		if g.OwnerID == owner {
			out = append(out, g)
		}
	}
	sortGoals(out)
	return out, nil
}

func (s *Store) ListContributions(_ context.Context, owner string, goalID uuid.UUID, from, to core.Date) ([]core.Contribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, err := s.ownedGoal(owner, goalID); err != nil {
		return nil, err
	}
	out := make([]core.Contribution, 0)
	for _, c := range s.contribs[goalID] {
		if !c.Date.Before(from.Time) && !c.Date.After(to.Time) {
			out = append(out, c)
		}
	}
	return out, nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

func sortGoals(goals []core.Goal) {
	slices.SortFunc(goals, func(a, b core.Goal) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
}
