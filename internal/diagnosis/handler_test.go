package diagnosis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/medsage/medsage-server/internal/config"
	"github.com/medsage/medsage-server/internal/session"
	"github.com/medsage/medsage-server/internal/types"
	"github.com/medsage/medsage-server/internal/upload"
)

type mockStore struct {
	createErr error
	created   *types.DiagnosisRecord
	records   map[string]*types.DiagnosisRecord
	stats     *types.DiagnosisStats
	updates   []string
}

func (m *mockStore) Create(_ context.Context, rec *types.DiagnosisRecord) (string, error) {
	if m.createErr != nil {
		return "", m.createErr
	}
	m.created = rec
	return "d-123", nil
}

func (m *mockStore) Update(_ context.Context, id string, _ map[string]any) (bool, error) {
	m.updates = append(m.updates, id)
	_, ok := m.records[id]
	return ok, nil
}

func (m *mockStore) GetByID(_ context.Context, id string) (*types.DiagnosisRecord, error) {
	return m.records[id], nil
}

func (m *mockStore) ListByPatient(_ context.Context, _ string) ([]types.DiagnosisRecord, error) {
	return nil, nil
}

func (m *mockStore) ListRecent(_ context.Context, _ int) ([]types.DiagnosisRecord, error) {
	return nil, nil
}

func (m *mockStore) Stats(_ context.Context) (*types.DiagnosisStats, error) {
	if m.stats == nil {
		return nil, errors.New("no stats")
	}
	return m.stats, nil
}

type mockClassifier struct {
	analysis *types.ImageAnalysis
	path     string
}

func (m *mockClassifier) Classify(_ context.Context, path string) *types.ImageAnalysis {
	m.path = path
	return m.analysis
}

func newTestHandler(t *testing.T, store RecordStore, cls ImageClassifier, gen Generator) *Handler {
	t.Helper()
	saver, err := upload.NewSaver(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	sessions := session.NewManager(session.NewMemoryStore(), func() config.SessionConfig {
		return config.SessionConfig{TTL: 2 * time.Hour}
	})
	cfg := config.DefaultConfig()
	return NewHandler(func() *config.Config { return cfg }, store, cls, NewComposer(gen), saver, sessions, nil)
}

func diagnoseForm(t *testing.T, fields map[string]string, imageName string, imageData []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if imageName != "" {
		fw, err := mw.CreateFormFile("imageUpload", imageName)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(imageData)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func validFields() map[string]string {
	return map[string]string{
		"age":      "34",
		"weight":   "72.5",
		"height":   "178",
		"symptoms": "fever, chills",
	}
}

func postDiagnose(h *Handler, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/api/diagnose", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	h.Diagnose(w, req)
	return w
}

func TestDiagnose_Success(t *testing.T) {
	store := &mockStore{}
	h := newTestHandler(t, store, nil, &mockGenerator{text: "Most likely diagnosis: influenza."})

	body, ct := diagnoseForm(t, validFields(), "", nil)
	w := postDiagnose(h, body, ct)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp types.DiagnoseResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Diagnosis != "Most likely diagnosis: influenza." {
		t.Errorf("diagnosis = %q", resp.Diagnosis)
	}
	if resp.Status != "success" {
		t.Errorf("status = %q", resp.Status)
	}
	if resp.DiagnosisID == nil || *resp.DiagnosisID != "d-123" {
		t.Errorf("diagnosis_id = %v", resp.DiagnosisID)
	}
	if store.created == nil || store.created.Status != types.StatusCompleted {
		t.Errorf("persisted record = %+v", store.created)
	}
}

func TestDiagnose_ValidationFailure(t *testing.T) {
	store := &mockStore{}
	h := newTestHandler(t, store, nil, &mockGenerator{text: "unused"})

	body, ct := diagnoseForm(t, map[string]string{"age": "abc", "weight": "72", "height": "178", "symptoms": "fever"}, "", nil)
	w := postDiagnose(h, body, ct)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Error   string   `json:"error"`
		Details []string `json:"details"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error != "Invalid medical data" {
		t.Errorf("error = %q", resp.Error)
	}
	if len(resp.Details) != 1 || resp.Details[0] != "Age must be a valid number" {
		t.Errorf("details = %v", resp.Details)
	}
	if store.created != nil {
		t.Error("invalid input must not be persisted")
	}
}

func TestDiagnose_MissingFieldsReportedByName(t *testing.T) {
	h := newTestHandler(t, &mockStore{}, nil, &mockGenerator{text: "unused"})

	body, ct := diagnoseForm(t, map[string]string{"age": "34"}, "", nil)
	w := postDiagnose(h, body, ct)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Details []string `json:"details"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	want := []string{"weight", "height", "symptoms"}
	if len(resp.Details) != len(want) {
		t.Fatalf("details = %v", resp.Details)
	}
	for i, name := range want {
		if resp.Details[i] != name {
			t.Errorf("details[%d] = %q, want %q", i, resp.Details[i], name)
		}
	}
}

func TestDiagnose_InvalidFileType(t *testing.T) {
	h := newTestHandler(t, &mockStore{}, nil, &mockGenerator{text: "unused"})

	body, ct := diagnoseForm(t, validFields(), "notes.exe", []byte("MZ"))
	w := postDiagnose(h, body, ct)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Error string `json:"error"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Error != "Invalid file type" {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestDiagnose_WithImage(t *testing.T) {
	store := &mockStore{}
	cls := &mockClassifier{analysis: &types.ImageAnalysis{Label: types.LabelParasitic, Confidence: 0.8}}
	h := newTestHandler(t, store, cls, &mockGenerator{text: "Generated text."})

	body, ct := diagnoseForm(t, validFields(), "smear.png", []byte("not-a-real-png"))
	w := postDiagnose(h, body, ct)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if cls.path == "" {
		t.Fatal("classifier never saw the saved upload")
	}
	var resp types.DiagnoseResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	want := "Generated text.\n\nImage Analysis Result: Parasitic (Confidence: 80.0%)"
	if resp.Diagnosis != want {
		t.Errorf("diagnosis = %q", resp.Diagnosis)
	}
	if store.created.ConfidenceScore == nil || *store.created.ConfidenceScore != 0.8 {
		t.Errorf("confidence = %v", store.created.ConfidenceScore)
	}
	if store.created.ImagePath == nil {
		t.Error("image path not persisted")
	}
}

func TestDiagnose_DegradedGeneratorStill200(t *testing.T) {
	store := &mockStore{}
	h := newTestHandler(t, store, nil, &mockGenerator{err: errors.New("api key missing")})

	body, ct := diagnoseForm(t, validFields(), "", nil)
	w := postDiagnose(h, body, ct)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp types.DiagnoseResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Diagnosis != FallbackDiagnosis {
		t.Errorf("diagnosis = %q", resp.Diagnosis)
	}
	if store.created == nil || store.created.Status != types.StatusDraft {
		t.Errorf("degraded record = %+v", store.created)
	}
}

func TestDiagnose_PersistenceFailureNullsID(t *testing.T) {
	store := &mockStore{createErr: errors.New("db down")}
	h := newTestHandler(t, store, nil, &mockGenerator{text: "Generated text."})

	body, ct := diagnoseForm(t, validFields(), "", nil)
	w := postDiagnose(h, body, ct)

	if w.Code != http.StatusOK {
		t.Fatalf("persistence failure must not fail the request, status = %d", w.Code)
	}
	var raw map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatal(err)
	}
	if raw["diagnosis_id"] != nil {
		t.Errorf("diagnosis_id = %v, want null", raw["diagnosis_id"])
	}
	if raw["diagnosis"] != "Generated text." {
		t.Errorf("diagnosis = %v", raw["diagnosis"])
	}
}

func TestDiagnose_AuditEventSplit(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	h := newTestHandler(t, &mockStore{}, nil, &mockGenerator{text: "unused"})

	// Absent fields are a presence failure.
	body, ct := diagnoseForm(t, map[string]string{"age": "34"}, "", nil)
	postDiagnose(h, body, ct)
	if !strings.Contains(buf.String(), `"event_type":"validation_error"`) {
		t.Errorf("missing fields logged as: %s", buf.String())
	}

	buf.Reset()

	// Present but out-of-range values are a data failure.
	fields := validFields()
	fields["age"] = "900"
	body, ct = diagnoseForm(t, fields, "", nil)
	postDiagnose(h, body, ct)
	if !strings.Contains(buf.String(), `"event_type":"invalid_medical_data"`) {
		t.Errorf("out-of-range values logged as: %s", buf.String())
	}
}

func completeRequest(h *Handler, id string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Post("/api/diagnoses/{id}/complete", h.CompleteDiagnosis)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/api/diagnoses/"+id+"/complete", nil))
	return w
}

func TestCompleteDiagnosis(t *testing.T) {
	store := &mockStore{records: map[string]*types.DiagnosisRecord{
		"d-1": {DiagnosisID: "d-1", Status: types.StatusDraft},
	}}
	h := newTestHandler(t, store, nil, &mockGenerator{})

	w := completeRequest(h, "d-1")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["status"] != "completed" {
		t.Errorf("status = %q", resp["status"])
	}
	if len(store.updates) != 1 || store.updates[0] != "d-1" {
		t.Errorf("updates = %v", store.updates)
	}

	// Completion is a status transition; repeating it stays 200.
	if w := completeRequest(h, "d-1"); w.Code != http.StatusOK {
		t.Errorf("repeat status = %d", w.Code)
	}
}

func TestCompleteDiagnosis_Unknown(t *testing.T) {
	h := newTestHandler(t, &mockStore{records: map[string]*types.DiagnosisRecord{}}, nil, &mockGenerator{})

	if w := completeRequest(h, "missing"); w.Code != http.StatusNotFound {
		t.Errorf("status = %d", w.Code)
	}
}

func TestGetDiagnosis_NotFound(t *testing.T) {
	h := newTestHandler(t, &mockStore{records: map[string]*types.DiagnosisRecord{}}, nil, &mockGenerator{})

	req := httptest.NewRequest("GET", "/api/diagnoses/missing", nil)
	w := httptest.NewRecorder()
	h.GetDiagnosis(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d", w.Code)
	}
}

func TestStats(t *testing.T) {
	h := newTestHandler(t, &mockStore{stats: &types.DiagnosisStats{TotalDiagnoses: 7, AvgConfidence: 0.81}}, nil, &mockGenerator{})

	req := httptest.NewRequest("GET", "/api/stats", nil)
	w := httptest.NewRecorder()
	h.Stats(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var stats types.DiagnosisStats
	json.Unmarshal(w.Body.Bytes(), &stats)
	if stats.TotalDiagnoses != 7 {
		t.Errorf("total = %d", stats.TotalDiagnoses)
	}
}
