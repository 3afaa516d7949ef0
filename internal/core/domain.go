package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	Income   CategoryType = "income"
	Expense  CategoryType = "expense"
	Transfer CategoryType = "transfer"
)

const dateLayout = "2006-01-02"

type (
	CategoryType string

	// Date is a calendar day in UTC.
	Date struct {
		time.Time
	}

	// Period identifies a budget month.
	Period struct {
		Month int
		Year  int
	}

	Category struct {
		ID      int64
		OwnerID string
		Name    string
		Type    CategoryType
		Group   BudgetGroup
	}

	// CategoryTarget is the durable planned amount for one category in one month.
	CategoryTarget struct {
		OwnerID    string    `json:"-"`
		CategoryID int64     `json:"category_id"`
		Month      int       `json:"month"`
		Year       int       `json:"year"`
		Amount     Money     `json:"target_amount"`
		Version    int64     `json:"version"`
		UpdatedAt  time.Time `json:"updated_at"`
	}

	// GroupAssignment is the durable budget group of a category.
	GroupAssignment struct {
		OwnerID    string      `json:"-"`
		CategoryID int64       `json:"category_id"`
		Group      BudgetGroup `json:"budget_group"`
		Version    int64       `json:"version"`
		UpdatedAt  time.Time   `json:"updated_at"`
	}

	// PlannedIncome is the user-declared expected income for a month.
	PlannedIncome struct {
		OwnerID   string    `json:"-"`
		Month     int       `json:"month"`
		Year      int       `json:"year"`
		Amount    Money     `json:"planned_income"`
		Version   int64     `json:"version"`
		UpdatedAt time.Time `json:"updated_at"`
	}

	// MonthActuals is what the transactions subsystem reports for a month.
	MonthActuals struct {
		ByCategory map[int64]Money
		Income     Money
	}

	// Transaction is a posted movement on a category. Amounts are positive;
	// the category type tells income from spending.
	Transaction struct {
		ID          int64
		OwnerID     string
		CategoryID  int64
		Amount      Money
		Date        Date
		Description string
	}

	Goal struct {
		ID            uuid.UUID
		OwnerID       string
		Name          string
		Icon          string
		TargetAmount  Money
		CurrentAmount Money
		TargetDate    *Date
	}

	Contribution struct {
		ID     uuid.UUID
		GoalID uuid.UUID
		Amount Money
		Date   Date
	}
)

const (
	minYear = 1970
	maxYear = 9999
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its UTC calendar day.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

// AddDays returns the date n days after d.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.AddDate(0, 0, n)}
}

// DaysUntil returns the number of whole days from d to other (negative if other is earlier).
func (d Date) DaysUntil(other Date) int {
	return int(other.Sub(d.Time).Hours() / 24)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	// Remote services may send full timestamps.
	if len(s) > len(dateLayout) {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return err
		}
		*d = DateOf(t)
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return &ValidationError{Field: "month", Message: fmt.Sprintf("month %d must be between 1 and 12", p.Month), Err: ErrInvalidMonth}
	}
	if p.Year < minYear || p.Year > maxYear {
		return &ValidationError{Field: "year", Message: fmt.Sprintf("year %d must be between %d and %d", p.Year, minYear, maxYear), Err: ErrInvalidYear}
	}
	return nil
}

// Start returns the first day of the month.
func (p Period) Start() Date {
	return NewDate(p.Year, p.Month, 1)
}

// End returns the last day of the month.
func (p Period) End() Date {
	return Date{Time: p.Start().AddDate(0, 1, -1)}
}

// Contains reports whether d falls inside the month.
func (p Period) Contains(d Date) bool {
	y, m, _ := d.Date()
	return y == p.Year && int(m) == p.Month
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

func (t CategoryType) Valid() bool {
	switch t {
	case Income, Expense, Transfer:
		return true
	default:
		return false
	}
}

// ParseCategoryType parses a stored category type.
func ParseCategoryType(s string) (CategoryType, error) {
	t := CategoryType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown category type %q: %w", s, ErrInconsistentState)
	}
	return t, nil
}

// ValidateOwner rejects an empty owner scope.
func ValidateOwner(owner string) error {
	if strings.TrimSpace(owner) == "" {
		return &ValidationError{Field: "owner", Message: "owner scope is required"}
	}
	return nil
}
