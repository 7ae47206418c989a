package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"budgetd/internal/amqp"
	"budgetd/internal/core"
	"budgetd/internal/filter"
	"budgetd/internal/storage"
)

const constructionKindName = "ConstructionBudget"

// ---- JSON API ----

func (s *Server) createConstructionJSON(w http.ResponseWriter, r *http.Request) {
	var b core.ConstructionBudget
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		writeBodyError(w, err)
		return
	}
	b.ID = 0

	created, err := s.store.CreateConstruction(r.Context(), b)
	if err != nil {
		writeServerError(w, r, err)
		return
	}
	s.publishSync(r, amqp.KindConstruction, created.ID)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) listConstructionJSON(w http.ResponseWriter, r *http.Request) {
	skip, limit := pagination(r)
	budgets, err := s.store.ListConstruction(r.Context(), skip, limit)
	if err != nil {
		writeServerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, budgets)
}

func (s *Server) getConstructionJSON(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, constructionKindName)
	if !ok {
		return
	}
	b, err := s.store.GetConstruction(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeNotFound(w, constructionKindName)
		return
	}
	if err != nil {
		writeServerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) updateConstruction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, constructionKindName)
	if !ok {
		return
	}

	var b core.ConstructionBudget
	if isJSONRequest(r) {
		if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
			writeBodyError(w, err)
			return
		}

		updated, err := s.store.UpdateConstruction(r.Context(), id, b)
		if errors.Is(err, storage.ErrNotFound) {
			writeNotFound(w, constructionKindName)
			return
		}
		if err != nil {
			writeServerError(w, r, err)
			return
		}
		s.publishSync(r, amqp.KindConstruction, id)
		writeJSON(w, http.StatusOK, updated)
		return
	}

	b, fieldErrs := constructionFromForm(r)
	if len(fieldErrs) > 0 {
		s.render(w, r, http.StatusUnprocessableEntity, "form_error.html", fieldErrs)
		return
	}

	updated, err := s.store.UpdateConstruction(r.Context(), id, b)
	if errors.Is(err, storage.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		writeServerError(w, r, err)
		return
	}
	s.publishSync(r, amqp.KindConstruction, id)
	s.render(w, r, http.StatusOK, "construction_budget_row.html", updated)
}

func (s *Server) deleteConstruction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, constructionKindName)
	if !ok {
		return
	}
	deleted, err := s.store.DeleteConstruction(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeNotFound(w, constructionKindName)
		return
	}
	if err != nil {
		writeServerError(w, r, err)
		return
	}
	if isHTMX(r) {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, deleted)
}

// ---- HTML views ----

type constructionPage struct {
	ConstructionBudgets []core.ConstructionBudget
}

// constructionIndex has no latest-year default: the source table has no
// required fiscal year, so the unfiltered page lists everything.
func (s *Server) constructionIndex(w http.ResponseWriter, r *http.Request) {
	params := queryParams(r)
	htmx := isHTMX(r)
	filtered := filter.Active(params)

	budgets, err := s.store.SearchConstruction(r.Context(), filter.FromParams(params, filter.ConstructionFields))
	if err != nil {
		writeServerError(w, r, err)
		return
	}

	name := "construction_index.html"
	if htmx || filtered {
		name = "construction_budget_rows.html"
	}
	s.render(w, r, http.StatusOK, name, constructionPage{ConstructionBudgets: budgets})
}

func (s *Server) createConstructionForm(w http.ResponseWriter, r *http.Request) {
	b, fieldErrs := constructionFromForm(r)
	if len(fieldErrs) > 0 {
		s.render(w, r, http.StatusUnprocessableEntity, "form_error.html", fieldErrs)
		return
	}

	created, err := s.store.CreateConstruction(r.Context(), b)
	if err != nil {
		writeServerError(w, r, err)
		return
	}
	s.publishSync(r, amqp.KindConstruction, created.ID)
	s.render(w, r, http.StatusOK, "construction_budget_row.html", created)
}

func (s *Server) editConstructionRow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, constructionKindName)
	if !ok {
		return
	}
	b, err := s.store.GetConstruction(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		writeServerError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "construction_budget_edit_row.html", b)
}

func (s *Server) cancelConstructionRow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, constructionKindName)
	if !ok {
		return
	}
	b, err := s.store.GetConstruction(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		writeServerError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "construction_budget_row.html", b)
}

func constructionFromForm(r *http.Request) (core.ConstructionBudget, []core.FieldError) {
	var fieldErrs []core.FieldError
	if err := r.ParseForm(); err != nil {
		return core.ConstructionBudget{}, []core.FieldError{{Field: "form", Reason: "malformed form body"}}
	}

	opt := func(name string) *string {
		if v := strings.TrimSpace(r.Form.Get(name)); v != "" {
			return &v
		}
		return nil
	}

	b := core.ConstructionBudget{
		BudgetPeriod: opt("budget_period"),
		FundCode:     opt("fund_code"),
		ProgramCode:  opt("program_code"),
		ProjectID:    opt("project_id"),
		ActivityID:   opt("activity_id"),
		LineDescr:    opt("line_descr"),
	}

	if v := strings.TrimSpace(r.Form.Get("monetary_amount")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			fieldErrs = append(fieldErrs, core.FieldError{Field: "monetary_amount", Reason: "must be a number"})
		} else {
			b.MonetaryAmount = &f
		}
	}

	return b, fieldErrs
}
