package patient

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/medsage/medsage-server/internal/audit"
	"github.com/medsage/medsage-server/internal/httputil"
	"github.com/medsage/medsage-server/internal/types"
)

// PatientStore is the persistence surface the handlers need.
type PatientStore interface {
	Create(ctx context.Context, p *types.Patient) (string, error)
	GetByID(ctx context.Context, id string) (*types.Patient, error)
}

type Handler struct {
	store PatientStore
}

func NewHandler(store PatientStore) *Handler {
	return &Handler{store: store}
}

// CreatePatient handles POST /api/patients.
func (h *Handler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")

	var p types.Patient
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		httputil.WriteValidationError(w, reqID, "Invalid JSON body", nil)
		return
	}
	if strings.TrimSpace(p.Name) == "" {
		httputil.WriteValidationError(w, reqID, "Invalid patient data", []string{"name"})
		return
	}

	id, err := h.store.Create(r.Context(), &p)
	if err != nil {
		slog.Error("patient creation failed", "request_id", reqID, "error", err)
		httputil.WriteInternalError(w, reqID)
		return
	}

	audit.Event("patient_created", "patient", "patient_id", id)
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"patient_id": id})
}

// GetPatient handles GET /api/patients/{id}.
func (h *Handler) GetPatient(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	id := chi.URLParam(r, "id")

	p, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		slog.Error("patient lookup failed", "request_id", reqID, "patient_id", id, "error", err)
		httputil.WriteInternalError(w, reqID)
		return
	}
	if p == nil {
		httputil.WriteNotFoundError(w, reqID, "Patient not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}
