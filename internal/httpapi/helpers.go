package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"budgetd/internal/core"
)

// detailResponse mirrors the JSON error envelope of the API.
type detailResponse struct {
	Detail any `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed encoding JSON response", "error", err)
	}
}

func writeNotFound(w http.ResponseWriter, kind string) {
	writeJSON(w, http.StatusNotFound, detailResponse{Detail: kind + " not found"})
}

func writeValidationError(w http.ResponseWriter, err error) {
	var fieldErr *core.FieldError
	if errors.As(err, &fieldErr) {
		writeJSON(w, http.StatusUnprocessableEntity, detailResponse{Detail: []core.FieldError{*fieldErr}})
		return
	}
	writeJSON(w, http.StatusUnprocessableEntity, detailResponse{Detail: err.Error()})
}

func writeBodyError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusUnprocessableEntity, detailResponse{Detail: err.Error()})
}

func writeServerError(w http.ResponseWriter, r *http.Request, err error) {
	slog.ErrorContext(r.Context(), "Request failed", "error", err, "url", r.URL.Path)
	writeJSON(w, http.StatusInternalServerError, detailResponse{Detail: "internal server error"})
}

// pathID parses the {id} path segment. ok is false after a 404 has been
// written.
func pathID(w http.ResponseWriter, r *http.Request, kind string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeNotFound(w, kind)
		return 0, false
	}
	return id, true
}

// pagination reads skip/limit query parameters. limit defaults to 100
// to match the JSON list endpoints.
func pagination(r *http.Request) (skip, limit int) {
	skip, limit = 0, 100
	if v := r.URL.Query().Get("skip"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			skip = n
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			limit = n
		}
	}
	return skip, limit
}

// queryParams flattens the query string to first values.
func queryParams(r *http.Request) map[string]string {
	params := map[string]string{}
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	return params
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") != ""
}

func isJSONRequest(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

// render executes an HTML template, falling back to a 500 on failure.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution failed", "error", err, "template", name)
	}
}

// appendValidation folds a Validate() error into a field error list.
func appendValidation(errs []core.FieldError, err error) []core.FieldError {
	if err == nil {
		return errs
	}
	var fieldErr *core.FieldError
	if errors.As(err, &fieldErr) {
		return append(errs, *fieldErr)
	}
	return append(errs, core.FieldError{Field: "body", Reason: err.Error()})
}

// publishSync announces a record change when a publisher is configured.
// Publish failures are logged, never surfaced to the client.
func (s *Server) publishSync(r *http.Request, kind string, id int64) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishRecordSync(r.Context(), kind, id); err != nil {
		slog.ErrorContext(r.Context(), "Failed publishing sync message",
			"error", err, "kind", kind, "id", id)
	}
}
