package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"budgetd/internal/metrics"
	"budgetd/internal/storage"
	appweb "budgetd/web"
)

// SyncPublisher notifies downstream consumers of record changes.
type SyncPublisher interface {
	PublishRecordSync(ctx context.Context, kind string, id int64) error
}

type Server struct {
	http.Server
	templates *template.Template
	store     storage.Store
	publisher SyncPublisher
	uiEnabled bool
}

// NewServer configures routes and templates, returning a ready-to-run
// http.Server. publisher may be nil; record changes are then not
// announced. When uiEnabled is false only the JSON API and service
// endpoints are mounted.
func NewServer(addr string, store storage.Store, publisher SyncPublisher, uiEnabled bool) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		store:     store,
		publisher: publisher,
		uiEnabled: uiEnabled,
	}

	t, err := template.New("").Funcs(template.FuncMap{
		"opt":    optString,
		"optNum": optFloat,
	}).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)
	mux.Handle("/metrics", metrics.Handler())

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	s.routes(mux)

	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	// JSON API, one prefix per record kind. Trailing-slash patterns keep
	// the collection endpoints apart from the form endpoints below.
	s.handle(mux, "POST /budgets/{$}", s.createOperatingJSON)
	s.handle(mux, "GET /budgets/{$}", s.listOperatingJSON)
	s.handle(mux, "GET /budgets/{id}", s.getOperatingJSON)
	s.handle(mux, "PUT /budgets/{id}", s.updateOperating)
	s.handle(mux, "DELETE /budgets/{id}", s.deleteOperating)

	s.handle(mux, "POST /supplier_budgets/{$}", s.createSupplierJSON)
	s.handle(mux, "GET /supplier_budgets/{$}", s.listSupplierJSON)
	s.handle(mux, "GET /supplier_budgets/{id}", s.getSupplierJSON)
	s.handle(mux, "PUT /supplier_budgets/{id}", s.updateSupplier)
	s.handle(mux, "DELETE /supplier_budgets/{id}", s.deleteSupplier)

	s.handle(mux, "POST /construction_budgets/{$}", s.createConstructionJSON)
	s.handle(mux, "GET /construction_budgets/{$}", s.listConstructionJSON)
	s.handle(mux, "GET /construction_budgets/{id}", s.getConstructionJSON)
	s.handle(mux, "PUT /construction_budgets/{id}", s.updateConstruction)
	s.handle(mux, "DELETE /construction_budgets/{id}", s.deleteConstruction)

	if !s.uiEnabled {
		return
	}

	// HTML views and htmx fragments.
	s.handle(mux, "GET /{$}", s.operatingIndex)
	s.handle(mux, "POST /budgets", s.createOperatingForm)
	s.handle(mux, "GET /budgets/{id}/edit", s.editOperatingRow)
	s.handle(mux, "GET /budgets/{id}/cancel", s.cancelOperatingRow)

	s.handle(mux, "GET /supplier_budgets", s.supplierIndex)
	s.handle(mux, "POST /supplier_budgets", s.createSupplierForm)
	s.handle(mux, "GET /supplier_budgets/{id}/edit", s.editSupplierRow)
	s.handle(mux, "GET /supplier_budgets/{id}/cancel", s.cancelSupplierRow)

	s.handle(mux, "GET /construction_budgets", s.constructionIndex)
	s.handle(mux, "POST /construction_budgets", s.createConstructionForm)
	s.handle(mux, "GET /construction_budgets/{id}/edit", s.editConstructionRow)
	s.handle(mux, "GET /construction_budgets/{id}/cancel", s.cancelConstructionRow)

	// Bulk upload, preview-then-confirm.
	s.handle(mux, "GET /budgets/bulk_upload", s.bulkUploadForm(bulkOperating))
	s.handle(mux, "POST /budgets/bulk_upload/preview", s.bulkUploadPreview(bulkOperating))
	s.handle(mux, "POST /budgets/bulk_upload", s.bulkUploadConfirmOperating)
	s.handle(mux, "GET /budgets/bulk_upload/cancel", s.bulkUploadCancel)

	s.handle(mux, "GET /supplier_budgets/bulk_upload", s.bulkUploadForm(bulkSupplier))
	s.handle(mux, "POST /supplier_budgets/bulk_upload/preview", s.bulkUploadPreview(bulkSupplier))
	s.handle(mux, "POST /supplier_budgets/bulk_upload", s.bulkUploadConfirmSupplier)
	s.handle(mux, "GET /supplier_budgets/bulk_upload/cancel", s.bulkUploadCancel)

	s.handle(mux, "GET /construction_budgets/bulk_upload", s.bulkUploadForm(bulkConstruction))
	s.handle(mux, "POST /construction_budgets/bulk_upload/preview", s.bulkUploadPreview(bulkConstruction))
	s.handle(mux, "POST /construction_budgets/bulk_upload", s.bulkUploadConfirmConstruction)
	s.handle(mux, "GET /construction_budgets/bulk_upload/cancel", s.bulkUploadCancel)
}

// handle registers a method-qualified pattern wrapped in the common
// middleware chain.
func (s *Server) handle(mux *http.ServeMux, pattern string, next http.HandlerFunc) {
	mux.HandleFunc(pattern, s.withMiddleware(pattern, next))
}

// withMiddleware adds security headers, request IDs, logging, and
// request metrics.
func (s *Server) withMiddleware(pattern string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path)

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' https://unpkg.com 'unsafe-eval'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		metrics.ObserveRequest(r.Method, pattern, rw.statusCode, duration)
		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds())
	}
}

type requestIDKey struct{}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func optString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return fmt.Sprintf("%g", *f)
}
