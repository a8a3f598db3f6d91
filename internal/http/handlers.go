package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"balances/internal/export"
	"balances/internal/log"
	"balances/internal/view"
)

// pageData is what index.html renders. Surface fields are promoted so the
// grand-total fragment renders from either pageData or a bare Surface.
type pageData struct {
	view.Surface
	Exportable bool
}

// handleIndex loads a fresh snapshot and renders the whole page. A failed load
// still renders with status 200: the failure text is the page content.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded",
			log.FieldPath, r.URL.Path,
			"error_type", log.ErrorTypeConfiguration)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	surface, err := s.load(r.Context())
	if errors.Is(err, view.ErrLoadInProgress) {
		surface = s.vm.Surface()
	}
	_, held := s.vm.View()

	s.render(w, r, "index.html", pageData{Surface: surface, Exportable: held && !surface.Failed()})
}

// handleGrandTotal switches the displayed grand total. It reads the held
// totals only and never triggers a load.
func (s *Server) handleGrandTotal(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	code := strings.TrimSpace(r.URL.Query().Get("ccy"))
	d := s.vm.SelectDisplayCurrency(code)
	log.FromContext(r.Context()).DebugContext(r.Context(), "Display currency selected",
		log.FieldOperation, log.OpToggle,
		log.FieldCurrency, d.Currency.String(),
		"requested", code,
		"available", d.Available,
	)

	s.render(w, r, "grand-total", s.vm.Surface())
}

// handleExport downloads the held view as xlsx. Nothing is fetched; without a
// successful load there is nothing to export.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	v, ok := s.vm.View()
	if !ok {
		http.Error(w, "No snapshot loaded. Open the dashboard first.", http.StatusConflict)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, v); err != nil {
		log.NewStructuredLogger(s.logger).LogError(r.Context(), "xlsx export failed", err, log.OpExport, nil)
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", export.XLSXContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="balances.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady reports whether the page can be rendered. The upstream is not
// probed: a failing upstream is shown on the page, it does not make the
// process unready.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	code := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		code = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	snapshot := "none"
	if _, held := s.vm.View(); held {
		snapshot = "held"
	}
	if s.vm.Loading() {
		snapshot = "loading"
	}
	checks["snapshot"] = snapshot
	checks["rate_limiter"] = map[string]any{"active_clients": s.limiter.ActiveClients()}
	checks["security"] = map[string]any{"suspicious_requests": s.detector.SuspiciousCount()}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// render executes name into a buffer first so a template error still yields a
// clean 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err.Error(),
			log.FieldOperation, log.OpRender,
			"template", name)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
