/*
handlers.go - HTTP API handlers for the investor report service

PURPOSE:
  Exposes report generation and report retrieval over HTTP. Handles
  request/response, JSON serialization, and delegates to report.Generator
  and the investor store.

ENDPOINTS:
  POST   /generate-report-by-id            Generate and store a report
  GET    /get-report-pdf/{investor_id}     Download the stored PDF
  GET    /get-report-html/{investor_id}    View the stored HTML
  POST   /generate-report                  Generate reports from a CSV upload
  GET    /health                           Liveness

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call the generator or the store
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON {"error": "..."}:
  - 400: Missing or malformed input
  - 404: Investor or stored report not found
  - 500: Generation or store failure, with the error message

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/report-engine/config"
	"github.com/warp/report-engine/ingest"
	"github.com/warp/report-engine/report"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// InvestorStore is the read side of the store used by the handlers.
type InvestorStore interface {
	GetInvestor(ctx context.Context, id int64) (*report.Investor, error)
	GetReportPDF(ctx context.Context, id int64) ([]byte, string, error)
	GetReportHTML(ctx context.Context, id int64) (string, bool, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     InvestorStore
	Generator *report.Generator

	publicBaseURL  string
	uploadDir      string
	maxUploadBytes int64
	log            *zap.Logger
	now            func() time.Time

	// Uploads number their reports from the output directory, which is
	// not safe across concurrent batches.
	uploadMu sync.Mutex
}

// NewHandler creates a handler. log may be nil.
func NewHandler(store InvestorStore, gen *report.Generator, cfg config.Config, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	maxUpload := cfg.Server.MaxUploadMB << 20
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &Handler{
		Store:          store,
		Generator:      gen,
		publicBaseURL:  strings.TrimRight(cfg.Server.PublicBaseURL, "/"),
		uploadDir:      cfg.Report.UploadDir,
		maxUploadBytes: maxUpload,
		log:            log,
		now:            time.Now,
	}
}

// =============================================================================
// REPORT GENERATION
// =============================================================================

// GenerateReportByID generates the report of a stored investor and writes
// it back onto the investor row.
// POST /generate-report-by-id
func (h *Handler) GenerateReportByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil || body == nil {
		writeError(w, http.StatusBadRequest, "No investor ID provided")
		return
	}
	raw, ok := body[report.FieldID]
	if !ok || raw == nil {
		writeError(w, http.StatusBadRequest, "No investor ID provided")
		return
	}
	investorID, ok := report.Data{report.FieldID: raw}.InvestorID()
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid investor ID")
		return
	}

	inv, err := h.Store.GetInvestor(ctx, investorID)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if inv == nil {
		writeError(w, http.StatusNotFound, "Investor not found")
		return
	}

	res, err := h.Generator.GenerateReport(ctx, inv.Data(), true)
	if err != nil {
		if report.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Investor not found")
			return
		}
		h.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, GenerateByIDResponse{
		Success:      true,
		Message:      fmt.Sprintf("Generated report for %s", inv.Name),
		InvestorID:   investorID,
		ReportID:     res.ReportID.String(),
		PDFURL:       fmt.Sprintf("%s/get-report-pdf/%d", h.publicBaseURL, investorID),
		HTMLURL:      fmt.Sprintf("%s/get-report-html/%d", h.publicBaseURL, investorID),
		PDFAvailable: res.PDF != nil,
	})
}

// GenerateFromUpload generates one report per row of an uploaded CSV file.
// Reports are written to the output directory; the store is not touched.
// POST /generate-report
func (h *Handler) GenerateFromUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid upload: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if name == "" || name == "." || name == string(filepath.Separator) {
		writeError(w, http.StatusBadRequest, "No file selected")
		return
	}
	if !strings.EqualFold(filepath.Ext(name), ".csv") {
		writeError(w, http.StatusBadRequest, "Unsupported file type, upload a .csv file")
		return
	}

	path, err := h.saveUpload(file, name)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	defer os.Remove(path)

	rows, err := ingest.LoadFile(path)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.uploadMu.Lock()
	defer h.uploadMu.Unlock()

	resp := UploadResponse{Reports: []GeneratedReportDTO{}, Errors: []RowErrorDTO{}}
	for _, row := range rows {
		res, err := h.Generator.GenerateReport(r.Context(), row, false)
		if err != nil {
			resp.Errors = append(resp.Errors, RowErrorDTO{InvestorName: row.Name(), Error: err.Error()})
			continue
		}
		dto := GeneratedReportDTO{InvestorName: row.Name(), ReportID: res.ReportID.String()}
		for _, f := range res.Files {
			switch filepath.Ext(f) {
			case ".html":
				dto.HTMLFile = filepath.Base(f)
			case ".pdf":
				dto.PDFFile = filepath.Base(f)
			}
		}
		resp.Reports = append(resp.Reports, dto)
	}
	resp.Success = len(resp.Errors) == 0

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) saveUpload(src io.Reader, name string) (string, error) {
	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}
	path := filepath.Join(h.uploadDir, uuid.NewString()+"_"+name)
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to store upload: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to store upload: %w", err)
	}
	return path, dst.Close()
}

// =============================================================================
// REPORT RETRIEVAL
// =============================================================================

// GetReportPDF downloads the stored PDF.
// GET /get-report-pdf/{investor_id}
func (h *Handler) GetReportPDF(w http.ResponseWriter, r *http.Request) {
	investorID, ok := parseInvestorID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "PDF report not found")
		return
	}

	pdf, reportID, err := h.Store.GetReportPDF(r.Context(), investorID)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if pdf == nil {
		writeError(w, http.StatusNotFound, "PDF report not found")
		return
	}

	name := reportID
	if name == "" {
		name = strconv.FormatInt(investorID, 10)
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="investor_report_%s.pdf"`, name))
	w.Header().Set("Content-Type", "application/pdf")
	http.ServeContent(w, r, "", time.Time{}, bytes.NewReader(pdf))
}

// GetReportHTML serves the stored HTML for viewing in a browser.
// GET /get-report-html/{investor_id}
func (h *Handler) GetReportHTML(w http.ResponseWriter, r *http.Request) {
	investorID, ok := parseInvestorID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "HTML report not found")
		return
	}

	html, found, err := h.Store.GetReportHTML(r.Context(), investorID)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "HTML report not found")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, html)
}

// Health reports liveness.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: h.now().Format("2006-01-02T15:04:05.000000"),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func parseInvestorID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "investor_id"), 10, 64)
	return id, err == nil
}

// internalError logs err and answers 500 with its message.
func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	fields := []zap.Field{
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err),
	}
	var genErr *report.GenerationError
	if errors.As(err, &genErr) {
		fields = append(fields, zap.String("stage", string(genErr.Stage)))
	}
	h.log.Error("request failed", fields...)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
