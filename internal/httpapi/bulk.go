package httpapi

import (
	"errors"
	"net/http"

	"budgetd/internal/amqp"
	"budgetd/internal/core"
	"budgetd/internal/ingest"
	"budgetd/internal/metrics"
	"budgetd/internal/normalize"
)

// bulkKind parameterizes the shared bulk-upload templates per record kind.
type bulkKind struct {
	Kind       string
	Title      string
	BasePath   string
	aliasClass bool
}

var (
	bulkOperating    = bulkKind{Kind: amqp.KindOperating, Title: "Operating Budgets", BasePath: "/budgets", aliasClass: true}
	bulkSupplier     = bulkKind{Kind: amqp.KindSupplier, Title: "Supplier Budgets", BasePath: "/supplier_budgets"}
	bulkConstruction = bulkKind{Kind: amqp.KindConstruction, Title: "Construction Budgets", BasePath: "/construction_budgets"}
)

type bulkPreviewPage struct {
	bulkKind
	Headers []string
	Rows    []normalize.Row
	Payload string
}

type bulkErrorPage struct {
	Message string
}

func (s *Server) bulkUploadForm(kind bulkKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, r, http.StatusOK, "bulk_upload_form.html", kind)
	}
}

// bulkUploadPreview parses the uploaded workbook and renders the review
// table. Nothing is persisted at this phase.
func (s *Server) bulkUploadPreview(kind bulkKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file, _, err := r.FormFile("file")
		if err != nil {
			s.render(w, r, http.StatusUnprocessableEntity, "bulk_upload_error.html",
				bulkErrorPage{Message: "no file uploaded"})
			return
		}
		defer file.Close()

		preview, err := ingest.BuildPreview(file, kind.aliasClass)
		if errors.Is(err, ingest.ErrMalformedSpreadsheet) {
			s.render(w, r, http.StatusInternalServerError, "bulk_upload_error.html",
				bulkErrorPage{Message: "the uploaded file could not be read as a spreadsheet"})
			return
		}
		if err != nil {
			writeServerError(w, r, err)
			return
		}

		s.render(w, r, http.StatusOK, "bulk_upload_preview.html", bulkPreviewPage{
			bulkKind: kind,
			Headers:  preview.Headers,
			Rows:     preview.Rows,
			Payload:  preview.Payload,
		})
	}
}

func (s *Server) bulkUploadCancel(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) bulkUploadConfirmOperating(w http.ResponseWriter, r *http.Request) {
	payload := []byte(r.FormValue("rows_json"))
	created, err := ingest.Confirm(r.Context(), payload, true,
		normalize.OperatingFromRow, s.store.CreateOperating)

	s.finishBulkConfirm(w, r, amqp.KindOperating, err, len(created), func() {
		for _, b := range created {
			s.publishSync(r, amqp.KindOperating, b.ID)
		}
		s.render(w, r, http.StatusOK, "budget_rows.html", operatingPage{Budgets: created})
	})
}

func (s *Server) bulkUploadConfirmSupplier(w http.ResponseWriter, r *http.Request) {
	payload := []byte(r.FormValue("rows_json"))
	created, err := ingest.Confirm(r.Context(), payload, false,
		normalize.SupplierFromRow, s.store.CreateSupplier)

	s.finishBulkConfirm(w, r, amqp.KindSupplier, err, len(created), func() {
		for _, b := range created {
			s.publishSync(r, amqp.KindSupplier, b.ID)
		}
		s.render(w, r, http.StatusOK, "supplier_budget_rows.html", supplierPage{SupplierBudgets: created})
	})
}

func (s *Server) bulkUploadConfirmConstruction(w http.ResponseWriter, r *http.Request) {
	payload := []byte(r.FormValue("rows_json"))
	created, err := ingest.Confirm(r.Context(), payload, false,
		normalize.ConstructionFromRow, s.store.CreateConstruction)

	s.finishBulkConfirm(w, r, amqp.KindConstruction, err, len(created), func() {
		for _, b := range created {
			s.publishSync(r, amqp.KindConstruction, b.ID)
		}
		s.render(w, r, http.StatusOK, "construction_budget_rows.html", constructionPage{ConstructionBudgets: created})
	})
}

// finishBulkConfirm counts whatever was committed, then either reports
// the failure or lets the kind-specific success callback render the new
// rows. Records created before a failing row stay committed.
func (s *Server) finishBulkConfirm(w http.ResponseWriter, r *http.Request, kind string, err error, created int, success func()) {
	metrics.CountIngested(kind, created)

	if err == nil {
		success()
		return
	}

	var validationErr *normalize.ValidationError
	if errors.As(err, &validationErr) {
		s.render(w, r, http.StatusUnprocessableEntity, "bulk_upload_error.html",
			bulkErrorPage{Message: validationErr.Error()})
		return
	}

	var fieldErr *core.FieldError
	if errors.As(err, &fieldErr) {
		s.render(w, r, http.StatusUnprocessableEntity, "bulk_upload_error.html",
			bulkErrorPage{Message: fieldErr.Error()})
		return
	}

	writeServerError(w, r, err)
}
