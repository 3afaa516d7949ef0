package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orcamento/internal/budget"
	"orcamento/internal/core"
	"orcamento/internal/log"
	"orcamento/internal/metrics"
	"orcamento/internal/ports"
	"orcamento/internal/services"
	"orcamento/internal/storage/memory"
)

var testNow = time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)

func quietLogger() *log.Logger {
	return log.New(log.Config{Level: slog.LevelError, Format: "text", Output: io.Discard})
}

type apiFixture struct {
	store   *memory.Store
	handler http.Handler
	food    core.Category
	rent    core.Category
	foreign core.Category
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	ctx := context.Background()
	f := &apiFixture{store: memory.New()}

	var err error
	_, err = f.store.CreateCategory(ctx, core.Category{OwnerID: "u1", Name: "Salário", Type: core.Income})
	require.NoError(t, err)
	f.food, err = f.store.CreateCategory(ctx, core.Category{OwnerID: "u1", Name: "Mercado", Type: core.Expense, Group: core.Necessities})
	require.NoError(t, err)
	f.rent, err = f.store.CreateCategory(ctx, core.Category{OwnerID: "u1", Name: "Moradia", Type: core.Expense})
	require.NoError(t, err)
	f.foreign, err = f.store.CreateCategory(ctx, core.Category{OwnerID: "u2", Name: "Lazer", Type: core.Expense})
	require.NoError(t, err)

	clock := func() time.Time { return testNow }
	svc := services.NewBudgetService(f.store,
		budget.NewAssembler(f.store, f.store, f.store, budget.WithClock(clock)),
		services.WithLogger(quietLogger()))

	srv := NewServer(Options{
		Service: svc,
		Checks:  map[string]ports.Pinger{"store": f.store},
		Metrics: metrics.New(),
		Logger:  quietLogger(),
		Now:     clock,
	})
	t.Cleanup(func() { srv.limiter.Stop() })
	f.handler = srv.Handler
	return f
}

func (f *apiFixture) do(t *testing.T, method, path, owner, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if owner != "" {
		req.Header.Set("X-Owner-ID", owner)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Error
}

func TestHealthAndReady(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = f.do(t, http.MethodGet, "/readyz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, map[string]any{"store": map[string]any{"status": "ok"}}, body["checks"])
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("database is locked") }

func TestReadyReportsFailedCheck(t *testing.T) {
	srv := NewServer(Options{
		Service: &stubAPI{},
		Checks:  map[string]ports.Pinger{"store": failingPinger{}},
		Logger:  quietLogger(),
	})
	defer srv.limiter.Stop()

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "database is locked")
}

func TestMetricsEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.do(t, http.MethodGet, "/healthz", "", "")

	rec := f.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `orcamento_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
}

func TestMissingOwnerIsUnauthorized(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodGet, "/monthly-budget/summary", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, CodeUnauthorized, errorOf(t, rec).Code)
}

func TestUnknownRouteAndMethod(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/nope", "u1", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeNotFound, errorOf(t, rec).Code)

	rec = f.do(t, http.MethodDelete, "/monthly-budget/income", "u1", "")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, CodeMethodNotAllowed, errorOf(t, rec).Code)
}

func TestBudgetFlowEndToEnd(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()
	_, err := f.store.RecordTransaction(ctx, core.Transaction{OwnerID: "u1", CategoryID: f.food.ID, Amount: core.Cents(12050), Date: core.NewDate(2025, 3, 4)})
	require.NoError(t, err)

	rec := f.do(t, http.MethodPut, "/monthly-budget/income", "u1", `{"month":3,"year":2025,"planned_income":"1000.00"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(1), decodeBody(t, rec)["version"])

	rec = f.do(t, http.MethodPost, "/monthly-budget/category", "u1",
		`{"category_id":`+strconv.FormatInt(f.food.ID, 10)+`,"target_amount":300,"month":3,"year":2025}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	target := decodeBody(t, rec)
	assert.Equal(t, float64(300), target["target_amount"])
	assert.Equal(t, float64(1), target["version"])

	rec = f.do(t, http.MethodPut, "/monthly-budget/category/"+strconv.FormatInt(f.rent.ID, 10)+"/budget-group", "u1", `{"budget_group":"necessities"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "necessities", decodeBody(t, rec)["budget_group"])

	rec = f.do(t, http.MethodGet, "/monthly-budget/category?month=3&year=2025", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	targets := decodeBody(t, rec)["targets"].([]any)
	require.Len(t, targets, 1)

	rec = f.do(t, http.MethodGet, "/monthly-budget/summary?month=3&year=2025&rule_50_30_20_enabled=true", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	summary := decodeBody(t, rec)
	assert.Equal(t, float64(3), summary["month"])
	assert.Equal(t, true, summary["rule_50_30_20_enabled"])
	assert.Equal(t, float64(1000), summary["planned_income"])
	assert.Equal(t, float64(1000), summary["income_basis"])
	assert.Equal(t, float64(300), summary["total_planned_expenses"])
	assert.Equal(t, 120.5, summary["total_actual_expenses"])

	necessities := summary["necessities"].(map[string]any)
	assert.Equal(t, float64(500), necessities["limit"])
	assert.Equal(t, float64(300), necessities["planned"])

	cats := summary["categories"].([]any)
	require.Len(t, cats, 2)
	first := cats[0].(map[string]any)
	assert.Equal(t, "Mercado", first["category_name"])
	assert.Equal(t, "necessities", first["budget_group"])

	rec = f.do(t, http.MethodGet, "/monthly-budget/summary?month=3&year=2025", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	summary = decodeBody(t, rec)
	assert.Nil(t, summary["necessities"])
	assert.Equal(t, false, summary["rule_50_30_20_enabled"])
}

func TestSummaryDefaultsToCurrentMonth(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodGet, "/monthly-budget/summary", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decodeBody(t, rec)
	assert.Equal(t, float64(3), summary["month"])
	assert.Equal(t, float64(2025), summary["year"])
	assert.Nil(t, summary["planned_income"])
}

func TestClearBudgetGroupWithNull(t *testing.T) {
	f := newAPIFixture(t)
	path := "/monthly-budget/category/" + strconv.FormatInt(f.food.ID, 10) + "/budget-group"

	rec := f.do(t, http.MethodPut, path, "u1", `{"budget_group":null}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Nil(t, body["budget_group"])

	cat, err := f.store.GetCategory(context.Background(), f.food.ID)
	require.NoError(t, err)
	assert.Equal(t, core.Ungrouped, cat.Group)
}

func TestRequestErrors(t *testing.T) {
	f := newAPIFixture(t)
	food := strconv.FormatInt(f.food.ID, 10)
	foreign := strconv.FormatInt(f.foreign.ID, 10)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantCode   string
		wantField  string
	}{
		{"summary month out of range", http.MethodGet, "/monthly-budget/summary?month=13&year=2025", "", http.StatusUnprocessableEntity, CodeValidation, "month"},
		{"summary month not a number", http.MethodGet, "/monthly-budget/summary?month=march", "", http.StatusUnprocessableEntity, CodeValidation, "month"},
		{"summary bad rule flag", http.MethodGet, "/monthly-budget/summary?rule_50_30_20_enabled=maybe", "", http.StatusUnprocessableEntity, CodeValidation, RuleParam},
		{"malformed json", http.MethodPost, "/monthly-budget/category", `{"category_id":`, http.StatusBadRequest, CodeBadRequest, ""},
		{"empty body", http.MethodPut, "/monthly-budget/income", "", http.StatusBadRequest, CodeBadRequest, ""},
		{"negative target", http.MethodPost, "/monthly-budget/category", `{"category_id":` + food + `,"target_amount":-5,"month":3,"year":2025}`, http.StatusUnprocessableEntity, CodeValidation, "target_amount"},
		{"non numeric target", http.MethodPost, "/monthly-budget/category", `{"category_id":` + food + `,"target_amount":"abc","month":3,"year":2025}`, http.StatusUnprocessableEntity, CodeValidation, "target_amount"},
		{"missing target", http.MethodPost, "/monthly-budget/category", `{"category_id":` + food + `,"month":3,"year":2025}`, http.StatusUnprocessableEntity, CodeValidation, "target_amount"},
		{"target month zero", http.MethodPost, "/monthly-budget/category", `{"category_id":` + food + `,"target_amount":1,"month":0,"year":2025}`, http.StatusUnprocessableEntity, CodeValidation, "month"},
		{"unknown category", http.MethodPost, "/monthly-budget/category", `{"category_id":999,"target_amount":1,"month":3,"year":2025}`, http.StatusNotFound, CodeNotFound, ""},
		{"foreign category", http.MethodPost, "/monthly-budget/category", `{"category_id":` + foreign + `,"target_amount":1,"month":3,"year":2025}`, http.StatusForbidden, CodeForbidden, ""},
		{"invalid group", http.MethodPut, "/monthly-budget/category/" + food + "/budget-group", `{"budget_group":"luxuries"}`, http.StatusUnprocessableEntity, CodeValidation, "budget_group"},
		{"missing group key", http.MethodPut, "/monthly-budget/category/" + food + "/budget-group", `{}`, http.StatusUnprocessableEntity, CodeValidation, "budget_group"},
		{"bad category id in path", http.MethodPut, "/monthly-budget/category/abc/budget-group", `{"budget_group":null}`, http.StatusUnprocessableEntity, CodeValidation, "category_id"},
		{"foreign group", http.MethodPut, "/monthly-budget/category/" + foreign + "/budget-group", `{"budget_group":"wants"}`, http.StatusForbidden, CodeForbidden, ""},
		{"negative income", http.MethodPut, "/monthly-budget/income", `{"month":3,"year":2025,"planned_income":"-1"}`, http.StatusUnprocessableEntity, CodeValidation, "planned_income"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, tt.method, tt.path, "u1", tt.body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			detail := errorOf(t, rec)
			assert.Equal(t, tt.wantCode, detail.Code)
			assert.Equal(t, tt.wantField, detail.Field)
		})
	}

	targets, err := f.store.ListCategoryTargets(context.Background(), "u1", core.Period{Month: 3, Year: 2025})
	require.NoError(t, err)
	assert.Empty(t, targets, "rejected requests must not persist anything")
}

type stubAPI struct {
	err error
}

func (s *stubAPI) Summary(context.Context, budget.Request) (core.MonthlyBudgetSummary, error) {
	return core.MonthlyBudgetSummary{}, s.err
}

func (s *stubAPI) ListTargets(context.Context, string, core.Period) ([]core.CategoryTarget, error) {
	return nil, s.err
}

func (s *stubAPI) SetCategoryTarget(context.Context, services.TargetInput) (core.CategoryTarget, error) {
	return core.CategoryTarget{}, s.err
}

func (s *stubAPI) SetBudgetGroup(context.Context, string, int64, core.BudgetGroup) (core.GroupAssignment, error) {
	return core.GroupAssignment{}, s.err
}

func (s *stubAPI) SetPlannedIncome(context.Context, string, core.Period, core.Money) (core.PlannedIncome, error) {
	return core.PlannedIncome{}, s.err
}

func TestAssemblyFailureIsInternalError(t *testing.T) {
	logs := &bytes.Buffer{}
	srv := NewServer(Options{
		Service: &stubAPI{err: &core.AssemblyError{Stage: budget.StageActuals, Err: errors.New("transactions service unavailable")}},
		Logger:  log.New(log.Config{Level: slog.LevelDebug, Format: "json", Output: logs}),
		Now:     func() time.Time { return testNow },
	})
	defer srv.limiter.Stop()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/monthly-budget/summary", nil)
	req.Header.Set("X-Owner-ID", "u1")
	srv.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	detail := errorOf(t, rec)
	assert.Equal(t, CodeInternal, detail.Code)
	assert.NotContains(t, detail.Message, "transactions service")
	assert.Contains(t, logs.String(), `"error_type":"assembly_error"`)
}

func TestMutationsAreRateLimited(t *testing.T) {
	srv := NewServer(Options{
		Service:            &stubAPI{},
		Logger:             quietLogger(),
		RateLimitPerMinute: 2,
	})
	defer srv.limiter.Stop()

	send := func(method string) int {
		req := httptest.NewRequest(method, "/monthly-budget/income", strings.NewReader(`{"month":3,"year":2025,"planned_income":1}`))
		req.Header.Set("X-Owner-ID", "u1")
		req.RemoteAddr = "203.0.113.9:5000"
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send(http.MethodPut))
	assert.Equal(t, http.StatusOK, send(http.MethodPut))
	assert.Equal(t, http.StatusTooManyRequests, send(http.MethodPut))
}
