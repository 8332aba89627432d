// Package web serves the small browser-facing surface: the landing page
// and the review/print views of the caller's last diagnosis.
package web

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/medsage/medsage-server/internal/audit"
	"github.com/medsage/medsage-server/internal/httputil"
	"github.com/medsage/medsage-server/internal/session"
)

var indexTmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>MedSAGE</title></head>
<body>
<h1>MedSAGE</h1>
<p>AI-assisted preliminary diagnosis. Submit patient data to <code>POST /api/diagnose</code>.</p>
</body>
</html>`))

var reviewTmpl = template.Must(template.New("review").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Diagnosis Review</title></head>
<body>
<h1>Diagnosis Review</h1>
<pre>{{.Diagnosis}}</pre>
{{if .DiagnosisID}}<p>Record: {{.DiagnosisID}}</p>{{end}}
<p><a href="/print">Print view</a></p>
</body>
</html>`))

var printTmpl = template.Must(template.New("print").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Diagnosis</title>
<style>body { font-family: serif; margin: 2em; } @media print { a { display: none; } }</style>
</head>
<body onload="window.print()">
<pre>{{.Diagnosis}}</pre>
</body>
</html>`))

type reviewData struct {
	Diagnosis   string
	DiagnosisID string
}

type Handler struct {
	sessions *session.Manager
}

func NewHandler(sessions *session.Manager) *Handler {
	return &Handler{sessions: sessions}
}

// Index handles GET /.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	render(w, indexTmpl, nil)
}

// Review handles GET /review. Without a live session carrying a
// diagnosis the caller is sent back to the landing page.
func (h *Handler) Review(w http.ResponseWriter, r *http.Request) {
	d := h.sessions.Current(r)
	if d == nil || d.DiagnosisText == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.sessions.Touch(r)
	render(w, reviewTmpl, reviewData{Diagnosis: d.DiagnosisText, DiagnosisID: d.DiagnosisID})
}

// Print handles GET /print.
func (h *Handler) Print(w http.ResponseWriter, r *http.Request) {
	d := h.sessions.Current(r)
	if d == nil || d.DiagnosisText == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.sessions.Touch(r)
	render(w, printTmpl, reviewData{Diagnosis: d.DiagnosisText})
}

// Logout handles POST /api/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Clear(w, r)
	audit.Event("logout", "session")
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func render(w http.ResponseWriter, tmpl *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		slog.Error("template render failed", "template", tmpl.Name(), "error", err)
	}
}
