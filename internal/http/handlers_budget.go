package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"orcamento/internal/budget"
	"orcamento/internal/core"
	"orcamento/internal/services"
)

// RuleParam toggles the 50/30/20 allocation on the summary endpoint.
const RuleParam = "rule_50_30_20_enabled"

type setTargetRequest struct {
	CategoryID   int64           `json:"category_id"`
	TargetAmount json.RawMessage `json:"target_amount"`
	Month        int             `json:"month"`
	Year         int             `json:"year"`
}

type setGroupRequest struct {
	// BudgetGroup is kept raw so a missing key can be told apart from null.
	BudgetGroup json.RawMessage `json:"budget_group"`
}

type setIncomeRequest struct {
	Month         int             `json:"month"`
	Year          int             `json:"year"`
	PlannedIncome json.RawMessage `json:"planned_income"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	period, err := ParsePeriodQuery(q, s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	rule, err := ParseBoolParam(q, RuleParam, false)
	if err != nil {
		writeError(w, r, err)
		return
	}

	summary, err := s.service.Summary(r.Context(), budget.Request{
		Owner:       ownerFrom(r.Context()),
		Period:      period,
		RuleEnabled: rule,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(summary).Write(w)
}

func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	period, err := ParsePeriodQuery(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	targets, err := s.service.ListTargets(r.Context(), ownerFrom(r.Context()), period)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(map[string]any{
		"month":   period.Month,
		"year":    period.Year,
		"targets": targets,
	}).Write(w)
}

func (s *Server) handleSetTarget(w http.ResponseWriter, r *http.Request) {
	var req setTargetRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := amountField(req.TargetAmount, "target_amount")
	if err != nil {
		writeError(w, r, err)
		return
	}

	stored, err := s.service.SetCategoryTarget(r.Context(), services.TargetInput{
		Owner:      ownerFrom(r.Context()),
		CategoryID: req.CategoryID,
		Period:     core.Period{Month: req.Month, Year: req.Year},
		Amount:     amount,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(stored).Write(w)
}

func (s *Server) handleSetBudgetGroup(w http.ResponseWriter, r *http.Request) {
	categoryID, err := ParseCategoryID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req setGroupRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.BudgetGroup == nil {
		writeError(w, r, &core.ValidationError{Field: "budget_group", Message: "budget_group is required; use null to clear it", Err: core.ErrInvalidBudgetGroup})
		return
	}
	var group core.BudgetGroup
	if err := json.Unmarshal(req.BudgetGroup, &group); err != nil {
		writeError(w, r, &core.ValidationError{Field: "budget_group", Message: "budget_group must be necessities, wants, savings or null", Err: err})
		return
	}

	stored, err := s.service.SetBudgetGroup(r.Context(), ownerFrom(r.Context()), categoryID, group)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(stored).Write(w)
}

func (s *Server) handleSetIncome(w http.ResponseWriter, r *http.Request) {
	var req setIncomeRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := amountField(req.PlannedIncome, "planned_income")
	if err != nil {
		writeError(w, r, err)
		return
	}

	stored, err := s.service.SetPlannedIncome(r.Context(), ownerFrom(r.Context()), core.Period{Month: req.Month, Year: req.Year}, amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(stored).Write(w)
}
