package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodValidate(t *testing.T) {
	cases := []struct {
		p  Period
		ok bool
	}{
		{Period{Month: 1, Year: 2025}, true},
		{Period{Month: 12, Year: 2025}, true},
		{Period{Month: 0, Year: 2025}, false},
		{Period{Month: 13, Year: 2025}, false},
		{Period{Month: 5, Year: 1900}, false},
	}
	for i, tc := range cases {
		err := tc.p.Validate()
		if tc.ok {
			assert.NoError(t, err, "case %d", i)
		} else {
			assert.True(t, IsValidation(err), "case %d expected validation error, got %v", i, err)
		}
	}
}

func TestPeriodBounds(t *testing.T) {
	p := Period{Month: 2, Year: 2024}
	assert.Equal(t, "2024-02-01", p.Start().String())
	assert.Equal(t, "2024-02-29", p.End().String())
	assert.True(t, p.Contains(NewDate(2024, 2, 29)))
	assert.False(t, p.Contains(NewDate(2024, 3, 1)))
	assert.False(t, p.Contains(NewDate(2023, 2, 10)))
}

func TestDateDaysUntil(t *testing.T) {
	a := NewDate(2025, 1, 1)
	assert.Equal(t, 31, a.DaysUntil(NewDate(2025, 2, 1)))
	assert.Equal(t, -1, a.DaysUntil(NewDate(2024, 12, 31)))
	assert.Equal(t, 0, a.DaysUntil(a))
}

func TestDateJSON(t *testing.T) {
	var d Date
	require.NoError(t, json.Unmarshal([]byte(`"2025-06-30"`), &d))
	assert.Equal(t, "2025-06-30", d.String())

	require.NoError(t, json.Unmarshal([]byte(`"2025-06-30T22:15:00Z"`), &d))
	assert.Equal(t, "2025-06-30", d.String())

	b, err := json.Marshal(NewDate(2025, 1, 9))
	require.NoError(t, err)
	assert.Equal(t, `"2025-01-09"`, string(b))

	assert.Error(t, json.Unmarshal([]byte(`"june"`), &d))
}

func TestParseBudgetGroup(t *testing.T) {
	for in, want := range map[string]BudgetGroup{
		"necessities": Necessities,
		"Wants":       Wants,
		" savings ":   Savings,
	} {
		got, err := ParseBudgetGroup(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"", "ungrouped", "needs", "null"} {
		_, err := ParseBudgetGroup(bad)
		assert.ErrorIs(t, err, ErrInvalidBudgetGroup, bad)
	}
}

func TestBudgetGroupJSON(t *testing.T) {
	type body struct {
		G BudgetGroup `json:"budget_group"`
	}

	var b body
	require.NoError(t, json.Unmarshal([]byte(`{"budget_group":"wants"}`), &b))
	assert.Equal(t, Wants, b.G)

	b.G = Savings
	require.NoError(t, json.Unmarshal([]byte(`{"budget_group":null}`), &b))
	assert.Equal(t, Ungrouped, b.G)

	assert.Error(t, json.Unmarshal([]byte(`{"budget_group":"luxury"}`), &b))
	assert.Error(t, json.Unmarshal([]byte(`{"budget_group":3}`), &b))

	out, err := json.Marshal(body{G: Ungrouped})
	require.NoError(t, err)
	assert.JSONEq(t, `{"budget_group":null}`, string(out))

	out, err = json.Marshal(body{G: Necessities})
	require.NoError(t, err)
	assert.JSONEq(t, `{"budget_group":"necessities"}`, string(out))
}

func TestRatiosSumToWhole(t *testing.T) {
	var total int64
	for _, g := range RuleGroups {
		r, ok := g.RatioPercent()
		require.True(t, ok)
		total += r
	}
	assert.Equal(t, int64(100), total)
	_, ok := Ungrouped.RatioPercent()
	assert.False(t, ok)
}

func TestParseCategoryType(t *testing.T) {
	ct, err := ParseCategoryType("Expense")
	require.NoError(t, err)
	assert.Equal(t, Expense, ct)
	_, err = ParseCategoryType("loan")
	assert.ErrorIs(t, err, ErrInconsistentState)
}
