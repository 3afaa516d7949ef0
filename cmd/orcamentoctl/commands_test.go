package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("AMQP_URL", "")
	cmd := rootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "orcamentoctl version")
}

func TestMigrateLifecycle(t *testing.T) {
	db := filepath.Join(t.TempDir(), "ctl.db")

	out, err := run(t, "migrate", "up", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "schema version 2")

	out, err = run(t, "migrate", "down", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "schema version 1")

	_, err = run(t, "migrate", "down", "x", "--db", db)
	assert.Error(t, err)

	_, err = run(t, "migrate", "version", "--db", filepath.Join(t.TempDir(), "missing.db"))
	assert.Error(t, err)
}

func TestBudgetCommandsPersistInSQLite(t *testing.T) {
	db := filepath.Join(t.TempDir(), "ctl.db")
	base := []string{"--backend", "sqlite", "--db", db, "--owner", "demo"}

	out, err := run(t, append([]string{"set-income", "--amount", "5000.00", "--month", "3", "--year", "2025"}, base...)...)
	require.NoError(t, err)
	var income struct {
		Amount  json.Number `json:"planned_income"`
		Version int64       `json:"version"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &income))
	assert.Equal(t, "5000.00", income.Amount.String())
	assert.Equal(t, int64(1), income.Version)

	out, err = run(t, append([]string{"summary", "--month", "3", "--year", "2025", "--rule"}, base...)...)
	require.NoError(t, err)
	var summary struct {
		PlannedIncome json.Number `json:"planned_income"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, "5000.00", summary.PlannedIncome.String())
}

func TestBudgetCommandsRejectBadInput(t *testing.T) {
	db := filepath.Join(t.TempDir(), "ctl.db")

	_, err := run(t, "summary", "--backend", "sqlite", "--db", db)
	assert.ErrorContains(t, err, "--owner is required")

	_, err = run(t, "set-target", "--owner", "demo", "--category", "1", "--amount", "-3", "--backend", "sqlite", "--db", db)
	assert.Error(t, err)

	_, err = run(t, "set-group", "--owner", "demo", "--category", "1", "--group", "luxury", "--backend", "sqlite", "--db", db)
	assert.ErrorContains(t, err, "group")

	_, err = run(t, "summary", "--owner", "demo", "--month", "13", "--backend", "sqlite", "--db", db)
	assert.Error(t, err)
}

func TestLocalLedgerCommandsFeedSummary(t *testing.T) {
	db := filepath.Join(t.TempDir(), "ctl.db")
	base := []string{"--backend", "sqlite", "--db", db, "--owner", "demo"}

	// Moradia is the second seeded demo category.
	out, err := run(t, append([]string{"record-transaction", "--category", "2", "--amount", "1200.00", "--date", "2025-03-05", "--description", "rent"}, base...)...)
	require.NoError(t, err)
	var tx struct {
		ID     int64       `json:"id"`
		Amount json.Number `json:"amount"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &tx))
	assert.Positive(t, tx.ID)
	assert.Equal(t, "1200.00", tx.Amount.String())

	out, err = run(t, append([]string{"create-goal", "--name", "Reserva", "--target", "6000.00", "--target-date", "2025-12-31"}, base...)...)
	require.NoError(t, err)
	var goal struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &goal))
	require.NotEmpty(t, goal.ID)

	_, err = run(t, append([]string{"add-contribution", "--goal", goal.ID, "--amount", "250.00", "--date", "2025-03-10"}, base...)...)
	require.NoError(t, err)

	out, err = run(t, append([]string{"summary", "--month", "3", "--year", "2025"}, base...)...)
	require.NoError(t, err)
	var summary struct {
		TotalActualExpenses json.Number `json:"total_actual_expenses"`
		Goals               []struct {
			ID           string      `json:"id"`
			Contribution json.Number `json:"current_month_contribution"`
		} `json:"goals"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, "1200.00", summary.TotalActualExpenses.String())
	require.Len(t, summary.Goals, 1)
	assert.Equal(t, goal.ID, summary.Goals[0].ID)
	assert.Equal(t, "250.00", summary.Goals[0].Contribution.String())
}

func TestLocalLedgerCommandsRejectBadInput(t *testing.T) {
	db := filepath.Join(t.TempDir(), "ctl.db")
	base := []string{"--backend", "sqlite", "--db", db, "--owner", "demo"}

	_, err := run(t, append([]string{"record-transaction", "--category", "2", "--amount", "abc"}, base...)...)
	assert.ErrorContains(t, err, "amount")

	_, err = run(t, append([]string{"record-transaction", "--category", "2", "--amount", "10", "--date", "05/03/2025"}, base...)...)
	assert.ErrorContains(t, err, "date")

	_, err = run(t, append([]string{"create-goal", "--name", " ", "--target", "10"}, base...)...)
	assert.ErrorContains(t, err, "name")

	_, err = run(t, append([]string{"add-contribution", "--goal", "not-a-uuid", "--amount", "10"}, base...)...)
	assert.ErrorContains(t, err, "goal")

	t.Setenv("TRANSACTIONS_API_URL", "http://transactions.internal")
	_, err = run(t, append([]string{"record-transaction", "--category", "2", "--amount", "10"}, base...)...)
	assert.ErrorContains(t, err, "transactions.internal")
}
