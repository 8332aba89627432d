package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/medsage/medsage-server/internal/config"
	"github.com/medsage/medsage-server/internal/session"
)

func newTestHandler() (*Handler, *session.Manager) {
	m := session.NewManager(session.NewMemoryStore(), func() config.SessionConfig {
		return config.SessionConfig{TTL: 2 * time.Hour}
	})
	return NewHandler(m), m
}

func TestIndex(t *testing.T) {
	h, _ := newTestHandler()

	w := httptest.NewRecorder()
	h.Index(w, httptest.NewRequest("GET", "/", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "MedSAGE") {
		t.Error("landing page missing title")
	}
}

func TestReview_NoSessionRedirects(t *testing.T) {
	h, _ := newTestHandler()

	w := httptest.NewRecorder()
	h.Review(w, httptest.NewRequest("GET", "/review", nil))

	if w.Code != http.StatusSeeOther {
		t.Errorf("status = %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/" {
		t.Errorf("location = %q", loc)
	}
}

func TestReview_RendersLastDiagnosis(t *testing.T) {
	h, m := newTestHandler()

	setW := httptest.NewRecorder()
	m.SetDiagnosis(setW, httptest.NewRequest("POST", "/api/diagnose", nil), "Most likely diagnosis: malaria.", "d-1")

	req := httptest.NewRequest("GET", "/review", nil)
	for _, c := range setW.Result().Cookies() {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.Review(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Most likely diagnosis: malaria.") {
		t.Error("review page missing diagnosis text")
	}
	if !strings.Contains(w.Body.String(), "d-1") {
		t.Error("review page missing record id")
	}
}

func TestLogout_ClearsSession(t *testing.T) {
	h, m := newTestHandler()

	setW := httptest.NewRecorder()
	m.SetDiagnosis(setW, httptest.NewRequest("POST", "/api/diagnose", nil), "text", "")

	req := httptest.NewRequest("POST", "/api/logout", nil)
	for _, c := range setW.Result().Cookies() {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.Logout(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if d := m.Current(req); d != nil {
		t.Error("session survived logout")
	}
}
