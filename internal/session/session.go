// Package session keeps per-client review state: the last diagnosis
// text and the client's last activity. Sessions idle past the
// configured TTL are invalidated; state never leaks between clients.
package session

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/medsage/medsage-server/internal/config"
)

// CookieName carries the opaque session identifier.
const CookieName = "medsage_session"

// Data is the state held for one client session.
type Data struct {
	DiagnosisText string    `json:"diagnosis_text"`
	DiagnosisID   string    `json:"diagnosis_id,omitempty"`
	LastActivity  time.Time `json:"last_activity"`
}

// Store persists session state keyed by session identifier.
type Store interface {
	Get(ctx context.Context, id string) (*Data, error)
	Set(ctx context.Context, id string, d *Data, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// Manager binds the store to cookie handling and the inactivity policy.
type Manager struct {
	store Store
	cfg   func() config.SessionConfig
}

func NewManager(store Store, cfg func() config.SessionConfig) *Manager {
	return &Manager{store: store, cfg: cfg}
}

// Current returns the request's session data, or nil when there is no
// session or it has been idle past the TTL. Expired sessions are
// removed; a subsequent call sees no session at all.
func (m *Manager) Current(r *http.Request) *Data {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	d, err := m.store.Get(r.Context(), cookie.Value)
	if err != nil || d == nil {
		return nil
	}

	if time.Since(d.LastActivity) > m.cfg().TTL {
		m.store.Delete(r.Context(), cookie.Value)
		return nil
	}
	return d
}

// SetDiagnosis stores the diagnosis for later review/print, creating the
// session if the client has none. Activity is touched as a side effect.
func (m *Manager) SetDiagnosis(w http.ResponseWriter, r *http.Request, text, diagnosisID string) error {
	id := m.sessionID(w, r)
	d := &Data{
		DiagnosisText: text,
		DiagnosisID:   diagnosisID,
		LastActivity:  time.Now(),
	}
	return m.store.Set(r.Context(), id, d, m.cfg().TTL)
}

// Touch refreshes the session's activity timestamp. Returns false when
// there is no live session to touch.
func (m *Manager) Touch(r *http.Request) bool {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return false
	}
	d, err := m.store.Get(r.Context(), cookie.Value)
	if err != nil || d == nil {
		return false
	}
	if time.Since(d.LastActivity) > m.cfg().TTL {
		m.store.Delete(r.Context(), cookie.Value)
		return false
	}
	d.LastActivity = time.Now()
	return m.store.Set(r.Context(), cookie.Value, d, m.cfg().TTL) == nil
}

// Clear removes the session state and expires the cookie.
func (m *Manager) Clear(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		m.store.Delete(r.Context(), cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cfg().SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// sessionID returns the request's session identifier, minting one and
// setting the cookie if the client has none.
func (m *Manager) sessionID(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	id := uuid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.cfg().SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}
