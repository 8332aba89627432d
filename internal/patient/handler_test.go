package patient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/medsage/medsage-server/internal/types"
)

type mockPatientStore struct {
	created *types.Patient
	err     error
	records map[string]*types.Patient
}

func (m *mockPatientStore) Create(_ context.Context, p *types.Patient) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.created = p
	return "p-1", nil
}

func (m *mockPatientStore) GetByID(_ context.Context, id string) (*types.Patient, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.records[id], nil
}

func TestCreatePatient(t *testing.T) {
	store := &mockPatientStore{}
	h := NewHandler(store)

	body := `{"name": "Ada Okafor", "blood_group": "O+"}`
	req := httptest.NewRequest("POST", "/api/patients", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.CreatePatient(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["patient_id"] != "p-1" {
		t.Errorf("patient_id = %q", resp["patient_id"])
	}
	if store.created == nil || store.created.Name != "Ada Okafor" {
		t.Errorf("created = %+v", store.created)
	}
}

func TestCreatePatient_MissingName(t *testing.T) {
	h := NewHandler(&mockPatientStore{})

	req := httptest.NewRequest("POST", "/api/patients", strings.NewReader(`{"email": "a@b.c"}`))
	w := httptest.NewRecorder()
	h.CreatePatient(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
}

func TestCreatePatient_StoreFailure(t *testing.T) {
	h := NewHandler(&mockPatientStore{err: errors.New("db down")})

	req := httptest.NewRequest("POST", "/api/patients", strings.NewReader(`{"name": "Ada"}`))
	w := httptest.NewRecorder()
	h.CreatePatient(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", w.Code)
	}
}

func TestGetPatient_NotFound(t *testing.T) {
	h := NewHandler(&mockPatientStore{records: map[string]*types.Patient{}})

	req := httptest.NewRequest("GET", "/api/patients/unknown", nil)
	w := httptest.NewRecorder()
	h.GetPatient(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d", w.Code)
	}
}
