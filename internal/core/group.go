package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BudgetGroup is one of the 50/30/20 buckets. The zero value is Ungrouped.
type BudgetGroup uint8

const (
	Ungrouped BudgetGroup = iota
	Necessities
	Wants
	Savings
)

// RuleGroups lists the groups that take part in the 50/30/20 rule, in display order.
var RuleGroups = []BudgetGroup{Necessities, Wants, Savings}

// ParseBudgetGroup parses the wire name of a group. Unset is expressed by
// JSON null, not by a string, so every non-group string is rejected.
func ParseBudgetGroup(s string) (BudgetGroup, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "necessities":
		return Necessities, nil
	case "wants":
		return Wants, nil
	case "savings":
		return Savings, nil
	default:
		return Ungrouped, fmt.Errorf("%q: %w", s, ErrInvalidBudgetGroup)
	}
}

func (g BudgetGroup) String() string {
	switch g {
	case Ungrouped:
		return "ungrouped"
	case Necessities:
		return "necessities"
	case Wants:
		return "wants"
	case Savings:
		return "savings"
	default:
		return fmt.Sprintf("BudgetGroup(%d)", uint8(g))
	}
}

func (g BudgetGroup) Valid() bool {
	return g <= Savings
}

// IsSet reports whether the group is one of the three rule groups.
func (g BudgetGroup) IsSet() bool {
	return g != Ungrouped && g.Valid()
}

// RatioPercent returns the share of income the group is entitled to.
func (g BudgetGroup) RatioPercent() (int64, bool) {
	switch g {
	case Necessities:
		return 50, true
	case Wants:
		return 30, true
	case Savings:
		return 20, true
	default:
		return 0, false
	}
}

func (g BudgetGroup) MarshalJSON() ([]byte, error) {
	if !g.IsSet() {
		return []byte("null"), nil
	}
	return json.Marshal(g.String())
}

func (g *BudgetGroup) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*g = Ungrouped
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("budget group must be a string or null: %w", ErrInvalidBudgetGroup)
	}
	parsed, err := ParseBudgetGroup(s)
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// GroupStatus is the presentational state of a group's spending against its limit.
type GroupStatus string

const (
	StatusOnTrack GroupStatus = "on_track"
	StatusWarning GroupStatus = "warning"
	StatusOver    GroupStatus = "over"
)
