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

const operatingKindName = "Budget"

// ---- JSON API ----

func (s *Server) createOperatingJSON(w http.ResponseWriter, r *http.Request) {
	var b core.OperatingBudget
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		writeBodyError(w, err)
		return
	}
	b.ID = 0
	if err := b.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}

	created, err := s.store.CreateOperating(r.Context(), b)
	if err != nil {
		writeServerError(w, r, err)
		return
	}
	s.publishSync(r, amqp.KindOperating, created.ID)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) listOperatingJSON(w http.ResponseWriter, r *http.Request) {
	skip, limit := pagination(r)
	budgets, err := s.store.ListOperating(r.Context(), skip, limit)
	if err != nil {
		writeServerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, budgets)
}

func (s *Server) getOperatingJSON(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, operatingKindName)
	if !ok {
		return
	}
	b, err := s.store.GetOperating(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeNotFound(w, operatingKindName)
		return
	}
	if err != nil {
		writeServerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// updateOperating replaces the whole record. JSON bodies are served the
// API response; form bodies come from the htmx edit row and get the row
// fragment back.
func (s *Server) updateOperating(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, operatingKindName)
	if !ok {
		return
	}

	var b core.OperatingBudget
	if isJSONRequest(r) {
		if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
			writeBodyError(w, err)
			return
		}
		if err := b.Validate(); err != nil {
			writeValidationError(w, err)
			return
		}

		updated, err := s.store.UpdateOperating(r.Context(), id, b)
		if errors.Is(err, storage.ErrNotFound) {
			writeNotFound(w, operatingKindName)
			return
		}
		if err != nil {
			writeServerError(w, r, err)
			return
		}
		s.publishSync(r, amqp.KindOperating, id)
		writeJSON(w, http.StatusOK, updated)
		return
	}

	b, fieldErrs := operatingFromForm(r)
	if len(fieldErrs) > 0 {
		s.render(w, r, http.StatusUnprocessableEntity, "form_error.html", fieldErrs)
		return
	}

	updated, err := s.store.UpdateOperating(r.Context(), id, b)
	if errors.Is(err, storage.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		writeServerError(w, r, err)
		return
	}
	s.publishSync(r, amqp.KindOperating, id)
	s.render(w, r, http.StatusOK, "budget_row.html", updated)
}

// deleteOperating returns the deleted record to API callers and an
// empty fragment to htmx, which removes the row in place.
func (s *Server) deleteOperating(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, operatingKindName)
	if !ok {
		return
	}
	deleted, err := s.store.DeleteOperating(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeNotFound(w, operatingKindName)
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

type operatingPage struct {
	Budgets []core.OperatingBudget
}

// operatingIndex serves the landing page. Without an active filter the
// full page shows only the latest fiscal year present in the store;
// filtered and htmx requests get the row fragment computed store-side.
func (s *Server) operatingIndex(w http.ResponseWriter, r *http.Request) {
	params := queryParams(r)
	htmx := isHTMX(r)
	filtered := filter.Active(params)

	if !htmx && !filtered {
		budgets, err := s.store.ListOperatingLatestYear(r.Context())
		if err != nil {
			writeServerError(w, r, err)
			return
		}
		s.render(w, r, http.StatusOK, "index.html", operatingPage{Budgets: budgets})
		return
	}

	budgets, err := s.store.SearchOperating(r.Context(), filter.FromParams(params, filter.OperatingFields))
	if err != nil {
		writeServerError(w, r, err)
		return
	}

	name := "index.html"
	if htmx || filtered {
		name = "budget_rows.html"
	}
	s.render(w, r, http.StatusOK, name, operatingPage{Budgets: budgets})
}

func (s *Server) createOperatingForm(w http.ResponseWriter, r *http.Request) {
	b, fieldErrs := operatingFromForm(r)
	if len(fieldErrs) > 0 {
		s.render(w, r, http.StatusUnprocessableEntity, "form_error.html", fieldErrs)
		return
	}

	created, err := s.store.CreateOperating(r.Context(), b)
	if err != nil {
		writeServerError(w, r, err)
		return
	}
	s.publishSync(r, amqp.KindOperating, created.ID)
	s.render(w, r, http.StatusOK, "budget_row.html", created)
}

func (s *Server) editOperatingRow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, operatingKindName)
	if !ok {
		return
	}
	b, err := s.store.GetOperating(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		writeServerError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "budget_edit_row.html", b)
}

func (s *Server) cancelOperatingRow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, operatingKindName)
	if !ok {
		return
	}
	b, err := s.store.GetOperating(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		writeServerError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "budget_row.html", b)
}

// operatingFromForm builds a record from an HTML form. The form posts
// the "class" field under its schema alias.
func operatingFromForm(r *http.Request) (core.OperatingBudget, []core.FieldError) {
	var fieldErrs []core.FieldError
	if err := r.ParseForm(); err != nil {
		return core.OperatingBudget{}, []core.FieldError{{Field: "form", Reason: "malformed form body"}}
	}

	get := func(name string) string { return strings.TrimSpace(r.Form.Get(name)) }

	b := core.OperatingBudget{
		FundCode:      get("fund_code"),
		ProgramCode:   get("program_code"),
		Account:       get("account"),
		DeptID:        get("deptid"),
		OperatingUnit: get("operating_unit"),
		Class:         get("class"),
		ProjectID:     get("project_id"),
		Descr:         get("descr"),
	}

	if v := get("fiscal_year"); v == "" {
		fieldErrs = append(fieldErrs, core.FieldError{Field: "fiscal_year", Reason: "required"})
	} else if n, err := strconv.Atoi(v); err != nil {
		fieldErrs = append(fieldErrs, core.FieldError{Field: "fiscal_year", Reason: "must be an integer"})
	} else {
		b.FiscalYear = n
	}

	if v := get("budget_amount"); v == "" {
		fieldErrs = append(fieldErrs, core.FieldError{Field: "budget_amount", Reason: "required"})
	} else if f, err := strconv.ParseFloat(v, 64); err != nil {
		fieldErrs = append(fieldErrs, core.FieldError{Field: "budget_amount", Reason: "must be a number"})
	} else {
		b.BudgetAmount = f
	}

	if len(fieldErrs) == 0 {
		fieldErrs = appendValidation(fieldErrs, b.Validate())
	}
	return b, fieldErrs
}
