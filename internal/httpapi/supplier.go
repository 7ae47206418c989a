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

const supplierKindName = "SupplierBudget"

// ---- JSON API ----

func (s *Server) createSupplierJSON(w http.ResponseWriter, r *http.Request) {
	var b core.SupplierBudget
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		writeBodyError(w, err)
		return
	}
	b.ID = 0
	if err := b.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}

	created, err := s.store.CreateSupplier(r.Context(), b)
	if err != nil {
		writeServerError(w, r, err)
		return
	}
	s.publishSync(r, amqp.KindSupplier, created.ID)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) listSupplierJSON(w http.ResponseWriter, r *http.Request) {
	skip, limit := pagination(r)
	budgets, err := s.store.ListSupplier(r.Context(), skip, limit)
	if err != nil {
		writeServerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, budgets)
}

func (s *Server) getSupplierJSON(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, supplierKindName)
	if !ok {
		return
	}
	b, err := s.store.GetSupplier(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeNotFound(w, supplierKindName)
		return
	}
	if err != nil {
		writeServerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) updateSupplier(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, supplierKindName)
	if !ok {
		return
	}

	var b core.SupplierBudget
	if isJSONRequest(r) {
		if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
			writeBodyError(w, err)
			return
		}
		if err := b.Validate(); err != nil {
			writeValidationError(w, err)
			return
		}

		updated, err := s.store.UpdateSupplier(r.Context(), id, b)
		if errors.Is(err, storage.ErrNotFound) {
			writeNotFound(w, supplierKindName)
			return
		}
		if err != nil {
			writeServerError(w, r, err)
			return
		}
		s.publishSync(r, amqp.KindSupplier, id)
		writeJSON(w, http.StatusOK, updated)
		return
	}

	b, fieldErrs := supplierFromForm(r)
	if len(fieldErrs) > 0 {
		s.render(w, r, http.StatusUnprocessableEntity, "form_error.html", fieldErrs)
		return
	}

	updated, err := s.store.UpdateSupplier(r.Context(), id, b)
	if errors.Is(err, storage.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		writeServerError(w, r, err)
		return
	}
	s.publishSync(r, amqp.KindSupplier, id)
	s.render(w, r, http.StatusOK, "supplier_budget_row.html", updated)
}

func (s *Server) deleteSupplier(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, supplierKindName)
	if !ok {
		return
	}
	deleted, err := s.store.DeleteSupplier(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeNotFound(w, supplierKindName)
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

type supplierPage struct {
	SupplierBudgets []core.SupplierBudget
}

func (s *Server) supplierIndex(w http.ResponseWriter, r *http.Request) {
	params := queryParams(r)
	htmx := isHTMX(r)
	filtered := filter.Active(params)

	if !htmx && !filtered {
		budgets, err := s.store.ListSupplierLatestYear(r.Context())
		if err != nil {
			writeServerError(w, r, err)
			return
		}
		s.render(w, r, http.StatusOK, "supplier_index.html", supplierPage{SupplierBudgets: budgets})
		return
	}

	budgets, err := s.store.SearchSupplier(r.Context(), filter.FromParams(params, filter.SupplierFields))
	if err != nil {
		writeServerError(w, r, err)
		return
	}

	name := "supplier_index.html"
	if htmx || filtered {
		name = "supplier_budget_rows.html"
	}
	s.render(w, r, http.StatusOK, name, supplierPage{SupplierBudgets: budgets})
}

func (s *Server) createSupplierForm(w http.ResponseWriter, r *http.Request) {
	b, fieldErrs := supplierFromForm(r)
	if len(fieldErrs) > 0 {
		s.render(w, r, http.StatusUnprocessableEntity, "form_error.html", fieldErrs)
		return
	}

	created, err := s.store.CreateSupplier(r.Context(), b)
	if err != nil {
		writeServerError(w, r, err)
		return
	}
	s.publishSync(r, amqp.KindSupplier, created.ID)
	s.render(w, r, http.StatusOK, "supplier_budget_row.html", created)
}

func (s *Server) editSupplierRow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, supplierKindName)
	if !ok {
		return
	}
	b, err := s.store.GetSupplier(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		writeServerError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "supplier_budget_edit_row.html", b)
}

func (s *Server) cancelSupplierRow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, supplierKindName)
	if !ok {
		return
	}
	b, err := s.store.GetSupplier(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		writeServerError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "supplier_budget_row.html", b)
}

func supplierFromForm(r *http.Request) (core.SupplierBudget, []core.FieldError) {
	var fieldErrs []core.FieldError
	if err := r.ParseForm(); err != nil {
		return core.SupplierBudget{}, []core.FieldError{{Field: "form", Reason: "malformed form body"}}
	}

	get := func(name string) string { return strings.TrimSpace(r.Form.Get(name)) }
	opt := func(name string) *string {
		if v := get(name); v != "" {
			return &v
		}
		return nil
	}

	b := core.SupplierBudget{
		VendorID:      opt("vendor_id"),
		Descr:         opt("descr"),
		FiscalYear:    get("fiscal_year"),
		FundCode:      get("fund_code"),
		ProgramCode:   get("program_code"),
		Account:       get("account"),
		DeptID:        get("deptid"),
		OperatingUnit: get("operating_unit"),
		ProjectID:     opt("project_id"),
		BusinessUnit:  opt("business_unit"),
	}

	if v := get("amount"); v == "" {
		fieldErrs = append(fieldErrs, core.FieldError{Field: "amount", Reason: "required"})
	} else if f, err := strconv.ParseFloat(v, 64); err != nil {
		fieldErrs = append(fieldErrs, core.FieldError{Field: "amount", Reason: "must be a number"})
	} else {
		b.Amount = f
	}

	if len(fieldErrs) == 0 {
		fieldErrs = appendValidation(fieldErrs, b.Validate())
	}
	return b, fieldErrs
}
