package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"broker-pricing/internal/observability/metrics"
	"broker-pricing/internal/pricing/application"
	pricing "broker-pricing/internal/pricing/domain"
	"broker-pricing/internal/pricing/interfaces"
)

const (
	basePath            = "/api/v1/pricing/sessions"
	defaultMaxUpload    = 32 << 20
	multipartMemoryHint = 8 << 20
)

// Renderer turns a broker output into a downloadable file.
type Renderer func(application.BrokerOutput) ([]byte, error)

// Handler provides pricing session HTTP endpoints.
type Handler struct {
	service   *application.Service
	xlsx      Renderer
	logger    *zap.Logger
	maxUpload int64
}

// Option configures the handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMaxUploadBytes caps the accepted workbook size.
func WithMaxUploadBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxUpload = n
		}
	}
}

// NewHandler constructs a handler.
func NewHandler(service *application.Service, xlsx Renderer, opts ...Option) (*Handler, error) {
	if service == nil {
		return nil, errors.New("pricing handler: nil service")
	}
	if xlsx == nil {
		return nil, errors.New("pricing handler: nil xlsx renderer")
	}
	h := &Handler{service: service, xlsx: xlsx, logger: zap.NewNop(), maxUpload: defaultMaxUpload}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// ServeHTTP handles /api/v1/pricing/sessions and subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")
	if path == basePath {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleImport(w, r)
		return
	}
	if !strings.HasPrefix(path, basePath+"/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	parts := strings.Split(strings.TrimPrefix(path, basePath+"/"), "/")
	id := parts[0]
	if id == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			h.handleGet(w, r, id)
		case http.MethodDelete:
			h.handleDelete(w, r, id)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case len(parts) == 2 && parts[1] == "uplifts":
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleApplyUplifts(w, r, id)
	case len(parts) == 4 && parts[1] == "meters" && parts[3] == "uplifts":
		if r.Method != http.MethodPatch {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleEditMeter(w, r, id, parts[2])
	case len(parts) == 4 && parts[1] == "meters" && parts[3] == "scenarios":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleScenarios(w, r, id, parts[2])
	case len(parts) == 2 && (parts[1] == "export.xlsx" || parts[1] == "export.pdf"):
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleExport(w, r, id, strings.TrimPrefix(parts[1], "export."))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(multipartMemoryHint); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "upload too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "invalid multipart upload", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	session, err := h.service.Import(r.Context(), application.ImportRequest{
		Source:      header.Filename,
		Workbook:    file,
		Sheet:       strings.TrimSpace(r.FormValue("sheet")),
		CompanyName: strings.TrimSpace(r.FormValue("company_name")),
		CompanyReg:  strings.TrimSpace(r.FormValue("company_reg")),
	})
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSessionSummary(session))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	out, session, err := h.service.Price(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(session, out))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.service.Delete(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type applyUpliftsRequest struct {
	Uplifts []pricing.UpliftEntry `json:"uplifts"`
}

func (h *Handler) handleApplyUplifts(w http.ResponseWriter, r *http.Request, id string) {
	var req applyUpliftsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	session, ignored, err := h.service.ApplyUplifts(r.Context(), id, req.Uplifts)
	if err != nil {
		respondError(w, err)
		return
	}
	resp := struct {
		sessionSummary
		Ignored []pricing.UpliftEntry `json:"ignored,omitempty"`
	}{newSessionSummary(session), ignored}
	writeJSON(w, http.StatusOK, resp)
}

type editMeterRequest struct {
	Edits []application.MeterUpliftEdit `json:"edits"`
}

func (h *Handler) handleEditMeter(w http.ResponseWriter, r *http.Request, id, meterID string) {
	var req editMeterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	_, ignored, err := h.service.EditMeterUplifts(r.Context(), id, meterID, req.Edits)
	if err != nil {
		respondError(w, err)
		return
	}
	if len(ignored) > 0 {
		h.logger.Debug("meter uplift edits ignored",
			zap.String("session_id", id),
			zap.String("meter_id", meterID),
			zap.Int("ignored", len(ignored)))
	}

	out, session, err := h.service.Price(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	for _, p := range out.Priced {
		if p.Record.MeterID == meterID {
			writeJSON(w, http.StatusOK, newRecordView(p))
			return
		}
	}
	h.logger.Error("edited meter missing from priced session",
		zap.String("session_id", session.ID),
		zap.String("meter_id", meterID))
	w.WriteHeader(http.StatusInternalServerError)
}

type scenariosRequest struct {
	Scenarios []application.Scenario `json:"scenarios"`
}

type scenariosResponse struct {
	MeterID string                     `json:"meter_id"`
	Results []application.ScenarioCost `json:"results"`
}

func (h *Handler) handleScenarios(w http.ResponseWriter, r *http.Request, id, meterID string) {
	var req scenariosRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	results, err := h.service.PriceScenarios(r.Context(), id, meterID, req.Scenarios)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scenariosResponse{MeterID: meterID, Results: results})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request, id, format string) {
	start := time.Now()
	out, session, err := h.service.Price(r.Context(), id)
	if err != nil {
		metrics.ObserveExport(format, metrics.ResultError, time.Since(start))
		respondError(w, err)
		return
	}

	var (
		data        []byte
		contentType string
	)
	switch format {
	case "pdf":
		data, err = interfaces.BuildPriceSummaryPDF(session, out)
		contentType = interfaces.PDFContentType
	default:
		data, err = h.xlsx(out)
		contentType = application.XLSXContentType
	}
	if err != nil {
		metrics.ObserveExport(format, metrics.ResultError, time.Since(start))
		h.logger.Error("export failed",
			zap.String("session_id", id),
			zap.String("format", format),
			zap.Error(err))
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	metrics.ObserveExport(format, metrics.ResultSuccess, time.Since(start))

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", application.ExportFileName(session.Source, format)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pricing.ErrMissingRequiredField):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, application.ErrSessionNotFound), errors.Is(err, application.ErrMeterNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, application.ErrSheetNotFound),
		errors.Is(err, pricing.ErrInvalidUplift),
		errors.Is(err, pricing.ErrTermNotPresent):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
