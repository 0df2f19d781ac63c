package http

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/1fach/einfach-budget/internal/core"
)

func monthlyKey(userID, budgetID string, p core.Period) string {
	return userID + "|" + budgetID + "|" + p.String()
}

func categoryKey(userID, categoryID string, p core.Period) string {
	return userID + "|" + categoryID + "|" + p.String()
}

// handleInitMonth backfills zero assignment rows for the period and returns
// the categories it created.
func (s *Server) handleInitMonth(w http.ResponseWriter, r *http.Request) {
	p, err := parsePeriod(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	budgetID := r.PathValue("budgetID")

	created, err := s.budgets.InitializeMonth(r.Context(), userID(r), budgetID, p)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.monthlyCache.Delete(monthlyKey(userID(r), budgetID, p))
	writeJSON(w, http.StatusOK, map[string]any{
		"created": created,
	})
}

func (s *Server) handleMonthlyBudget(w http.ResponseWriter, r *http.Request) {
	p, err := parsePeriod(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	budgetID := r.PathValue("budgetID")

	key := monthlyKey(userID(r), budgetID, p)
	if mb, found := s.monthlyCache.Get(key); found {
		writeJSON(w, http.StatusOK, mb)
		return
	}

	mb, err := s.budgets.MonthlyBudget(r.Context(), userID(r), budgetID, p)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.monthlyCache.Set(key, mb)
	writeJSON(w, http.StatusOK, mb)
}

func (s *Server) handleGroupMonths(w http.ResponseWriter, r *http.Request) {
	p, err := parsePeriod(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	groups, err := s.budgets.GroupMonths(r.Context(), userID(r), r.PathValue("budgetID"), p)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (s *Server) handleCategoryMonths(w http.ResponseWriter, r *http.Request) {
	p, err := parsePeriod(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	months, err := s.budgets.CategoryMonths(r.Context(), userID(r), r.PathValue("budgetID"), p)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, months)
}

func (s *Server) handleCategoryMonth(w http.ResponseWriter, r *http.Request) {
	p, err := parsePeriod(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	categoryID := r.PathValue("categoryID")

	key := categoryKey(userID(r), categoryID, p)
	if cm, found := s.categoryCache.Get(key); found {
		writeJSON(w, http.StatusOK, cm)
		return
	}

	cm, err := s.budgets.CategoryMonth(r.Context(), userID(r), categoryID, p)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.categoryCache.Set(key, cm)
	writeJSON(w, http.StatusOK, cm)
}

type assignRequest struct {
	Assigned decimal.Decimal `json:"assigned"`
}

// handleAssign sets the assigned amount of a category for a period and
// returns the recomputed triad.
func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	p, err := parsePeriod(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	categoryID := r.PathValue("categoryID")

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	cm, err := s.budgets.Assign(r.Context(), userID(r), categoryID, p, core.MoneyFromDecimal(req.Assigned))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.categoryCache.Delete(categoryKey(userID(r), categoryID, p))

	// The write moves the budget's ready-to-assign for this period; drop the
	// cached figure so the next read recomputes it. Other periods' cached
	// figures age out on their TTL.
	if cat, err := s.budgets.Category(r.Context(), userID(r), categoryID); err == nil {
		s.monthlyCache.Delete(monthlyKey(userID(r), cat.BudgetID, p))
	}

	writeJSON(w, http.StatusOK, cm)
}
