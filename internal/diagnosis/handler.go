package diagnosis

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/medsage/medsage-server/internal/audit"
	"github.com/medsage/medsage-server/internal/config"
	"github.com/medsage/medsage-server/internal/httputil"
	"github.com/medsage/medsage-server/internal/session"
	"github.com/medsage/medsage-server/internal/telemetry"
	"github.com/medsage/medsage-server/internal/types"
	"github.com/medsage/medsage-server/internal/upload"
	"github.com/medsage/medsage-server/internal/validate"
)

// RecordStore is the persistence surface the orchestrator needs.
type RecordStore interface {
	Create(ctx context.Context, rec *types.DiagnosisRecord) (string, error)
	Update(ctx context.Context, id string, fields map[string]any) (bool, error)
	GetByID(ctx context.Context, id string) (*types.DiagnosisRecord, error)
	ListByPatient(ctx context.Context, patientID string) ([]types.DiagnosisRecord, error)
	ListRecent(ctx context.Context, limit int) ([]types.DiagnosisRecord, error)
	Stats(ctx context.Context) (*types.DiagnosisStats, error)
}

// ImageClassifier analyzes a saved upload. A nil result means no usable
// analysis; the pipeline continues without one.
type ImageClassifier interface {
	Classify(ctx context.Context, path string) *types.ImageAnalysis
}

// Handler holds dependencies for the diagnosis HTTP handlers.
type Handler struct {
	cfg        func() *config.Config
	store      RecordStore
	classifier ImageClassifier
	composer   *Composer
	saver      *upload.Saver
	sessions   *session.Manager
	metrics    *telemetry.Metrics
}

func NewHandler(cfg func() *config.Config, store RecordStore, classifier ImageClassifier, composer *Composer, saver *upload.Saver, sessions *session.Manager, metrics *telemetry.Metrics) *Handler {
	return &Handler{
		cfg:        cfg,
		store:      store,
		classifier: classifier,
		composer:   composer,
		saver:      saver,
		sessions:   sessions,
		metrics:    metrics,
	}
}

// Diagnose handles POST /api/diagnose. Validation and the rate limiter
// (middleware) are the only stages that abort the pipeline; everything
// downstream degrades and the client always gets diagnosis text back.
func (h *Handler) Diagnose(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	cfg := h.cfg()

	r.Body = http.MaxBytesReader(w, r.Body, cfg.Upload.MaxBytes)
	if err := r.ParseMultipartForm(cfg.Upload.MaxBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			audit.SecurityEvent(r, "oversized_upload", "limit_bytes", cfg.Upload.MaxBytes)
			httputil.WritePayloadTooLargeError(w, reqID, "Uploaded file is too large")
			return
		}
		httputil.WriteValidationError(w, reqID, "Invalid form submission", nil)
		return
	}

	form := map[string]string{
		"age":      r.FormValue("age"),
		"weight":   r.FormValue("weight"),
		"height":   r.FormValue("height"),
		"symptoms": r.FormValue("symptoms"),
	}
	if missing := validate.MissingFields(form); len(missing) > 0 {
		audit.SecurityEvent(r, "validation_error", "missing_fields", missing)
		httputil.WriteValidationError(w, reqID, "Invalid medical data", missing)
		return
	}
	req, violations := validate.Validate(form)
	if len(violations) > 0 {
		audit.SecurityEvent(r, "invalid_medical_data", "violations", violations)
		httputil.WriteValidationError(w, reqID, "Invalid medical data", violations)
		return
	}

	var analysis *types.ImageAnalysis
	file, header, err := r.FormFile("imageUpload")
	if err == nil {
		defer file.Close()

		if !validate.ValidFilename(header.Filename, cfg.Upload.ExtensionSet()) {
			audit.SecurityEvent(r, "invalid_file_upload", "filename", header.Filename)
			httputil.WriteValidationError(w, reqID, "Invalid file type", nil)
			return
		}

		path, saveErr := h.saver.Save(file, header.Filename)
		if saveErr != nil {
			// The image is an optional input; diagnosis proceeds without it.
			slog.Error("upload save failed", "request_id", reqID, "error", saveErr)
		} else {
			req.ImagePath = path
			if h.classifier != nil {
				analysis = h.classifier.Classify(r.Context(), path)
				if analysis != nil {
					audit.Event("image_analysis", "diagnosis",
						"label", analysis.Label, "confidence", analysis.Confidence)
					if h.metrics != nil {
						h.metrics.RecordClassification(string(analysis.Label))
					}
				}
			}
		}
	}

	outcome := h.composer.Compose(r.Context(), req, analysis)
	if outcome.Degraded && h.metrics != nil {
		h.metrics.DegradedTotal.Inc()
	}
	audit.Event("ai_diagnosis", "diagnosis", "request_id", reqID, "degraded", outcome.Degraded)

	id := h.persist(r.Context(), reqID, req, outcome, analysis)

	if err := h.sessions.SetDiagnosis(w, r, outcome.Text, id); err != nil {
		slog.Error("session update failed", "request_id", reqID, "error", err)
	}

	resp := types.DiagnoseResponse{
		Diagnosis: outcome.Text,
		Status:    "success",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if id != "" {
		resp.DiagnosisID = &id
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// persist writes the record and returns its identifier, or "" when
// persistence failed. Failure never aborts the response.
func (h *Handler) persist(ctx context.Context, reqID string, req *types.DiagnosisRequest, outcome Outcome, analysis *types.ImageAnalysis) string {
	rec := &types.DiagnosisRecord{
		Symptoms:      req.Symptoms,
		Age:           req.Age,
		Weight:        req.Weight,
		Height:        req.Height,
		DiagnosisText: outcome.Text,
		Status:        types.StatusCompleted,
	}
	if outcome.Degraded {
		rec.Status = types.StatusDraft
	}
	if req.ImagePath != "" {
		rec.ImagePath = &req.ImagePath
	}
	if analysis != nil {
		result := string(analysis.Label)
		rec.ImageAnalysis = &result
		conf := analysis.Confidence
		rec.ConfidenceScore = &conf
	}

	id, err := h.store.Create(ctx, rec)
	if err != nil {
		slog.Error("diagnosis persistence failed", "request_id", reqID, "error", err)
		audit.Event("persistence_failure", "diagnosis", "request_id", reqID)
		if h.metrics != nil {
			h.metrics.PersistFailureTotal.Inc()
		}
		return ""
	}

	audit.Event("diagnosis_created", "diagnosis", "diagnosis_id", id, "status", rec.Status)
	return id
}

// GetDiagnosis handles GET /api/diagnoses/{id}.
func (h *Handler) GetDiagnosis(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	id := chi.URLParam(r, "id")

	rec, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		slog.Error("diagnosis lookup failed", "request_id", reqID, "diagnosis_id", id, "error", err)
		httputil.WriteInternalError(w, reqID)
		return
	}
	if rec == nil {
		httputil.WriteNotFoundError(w, reqID, "Diagnosis not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

// CompleteDiagnosis handles POST /api/diagnoses/{id}/complete,
// promoting a draft record once a clinician has reviewed it. Repeating
// the call on an already-completed record is harmless.
func (h *Handler) CompleteDiagnosis(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	id := chi.URLParam(r, "id")

	updated, err := h.store.Update(r.Context(), id, map[string]any{"status": types.StatusCompleted})
	if err != nil {
		slog.Error("diagnosis completion failed", "request_id", reqID, "diagnosis_id", id, "error", err)
		httputil.WriteInternalError(w, reqID)
		return
	}
	if !updated {
		httputil.WriteNotFoundError(w, reqID, "Diagnosis not found")
		return
	}

	audit.Event("diagnosis_completed", "diagnosis", "diagnosis_id", id)
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"diagnosis_id": id,
		"status":       string(types.StatusCompleted),
	})
}

// ListDiagnoses handles GET /api/diagnoses. With patient_id it returns
// that patient's history; otherwise the most recent records, capped by
// the limit parameter.
func (h *Handler) ListDiagnoses(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")

	var (
		records []types.DiagnosisRecord
		err     error
	)
	if patientID := r.URL.Query().Get("patient_id"); patientID != "" {
		records, err = h.store.ListByPatient(r.Context(), patientID)
	} else {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		records, err = h.store.ListRecent(r.Context(), limit)
	}
	if err != nil {
		slog.Error("diagnosis listing failed", "request_id", reqID, "error", err)
		httputil.WriteInternalError(w, reqID)
		return
	}

	if records == nil {
		records = []types.DiagnosisRecord{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"diagnoses": records,
		"count":     len(records),
	})
}

// Stats handles GET /api/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")

	stats, err := h.store.Stats(r.Context())
	if err != nil {
		slog.Error("stats query failed", "request_id", reqID, "error", err)
		httputil.WriteInternalError(w, reqID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}
