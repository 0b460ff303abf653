// Package page serves the HTML side of the portal: the layout (header,
// routed page, footer), the validation form with its results, and the
// error page.
//
// Handlers follow the factory pattern used across the HTTP layer: each
// function receives its dependencies once at startup and returns the
// http.HandlerFunc the router calls on every request.
package page

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/aanand-mishra/idcard-portal/internal/http/form"
	"github.com/aanand-mishra/idcard-portal/internal/session"
	"github.com/aanand-mishra/idcard-portal/internal/types"
	"github.com/aanand-mishra/idcard-portal/internal/widget"
)

//go:embed templates/*.html
var templateFS embed.FS

const title = "ID Card Validation"

// Pages holds the parsed templates. Each page is parsed together with the
// layout so that every page gets its own "content" block.
type Pages struct {
	home    *template.Template
	errPage *template.Template
}

func NewPages() (*Pages, error) {
	home, err := template.ParseFS(templateFS, "templates/layout.html", "templates/home.html")
	if err != nil {
		return nil, fmt.Errorf("NewPages: parse home: %w", err)
	}
	errPage, err := template.ParseFS(templateFS, "templates/layout.html", "templates/error.html")
	if err != nil {
		return nil, fmt.Errorf("NewPages: parse error page: %w", err)
	}
	return &Pages{home: home, errPage: errPage}, nil
}

type homeData struct {
	Title   string
	Refresh bool
	View    widget.View
}

type errorData struct {
	Title   string
	Refresh bool
	Status  int
	Message string
}

// render executes into a buffer first so a template error never leaves a
// half-written page behind.
func render(w http.ResponseWriter, status int, t *template.Template, data any) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		slog.Error("failed to render page", slog.String("error", err.Error()))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// Error renders the error page inside the layout.
func (p *Pages) Error(w http.ResponseWriter, status int, msg string) {
	render(w, status, p.errPage, errorData{Title: title, Status: status, Message: msg})
}

// ─────────────────────────────────────────────────────────────────────────────
// Home handles GET /
// Renders the caller's widget. While a dual-variant submission is in flight
// the page shows a loading indicator and refreshes itself until it settles.
// ─────────────────────────────────────────────────────────────────────────────
func Home(sessions *session.Store, pages *Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v := sessions.Widget(w, r).View()
		render(w, http.StatusOK, pages.home, homeData{
			Title:   title,
			Refresh: v.Loading,
			View:    v,
		})
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Submit handles POST /submit
// Reads the multipart form (name, university, image) and hands it to the
// caller's widget, then redirects back to /.
//
// In the single variant the redirect waits for the submission to settle, so
// the next page already shows the outcome. In the dual variant it returns at
// once and / shows the loading indicator.
// ─────────────────────────────────────────────────────────────────────────────
func Submit(sessions *session.Store, pages *Pages, variant types.Variant, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		input, err := form.Read(w, r, maxBytes)
		if err != nil {
			slog.Warn("unreadable submission form", slog.String("error", err.Error()))
			pages.Error(w, http.StatusBadRequest, "The form could not be read. Images are limited in size.")
			return
		}

		wg := sessions.Widget(w, r)
		task, err := wg.Submit(r.Context(), input)
		if err == nil && variant != types.VariantDual {
			// Giving up early (client gone) does not cancel the submission.
			_, _ = task.Wait(r.Context())
		} else if err != nil && !errors.Is(err, widget.ErrMissingFields) {
			slog.Error("submission could not start", slog.String("error", err.Error()))
		}

		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// SelectModel handles POST /model (dual variant only)
// Form field "model": 1 = YOLO, 2 = NLP.
// ─────────────────────────────────────────────────────────────────────────────
func SelectModel(sessions *session.Store, pages *Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := types.ParseModel(r.FormValue("model"))
		if err != nil {
			pages.Error(w, http.StatusBadRequest, "Unknown model selection.")
			return
		}

		if err := sessions.Widget(w, r).SelectModel(m); err != nil {
			if errors.Is(err, widget.ErrModelToggleUnsupported) {
				pages.Error(w, http.StatusNotFound, "This page does not exist.")
				return
			}
			pages.Error(w, http.StatusBadRequest, "Unknown model selection.")
			return
		}

		slog.Info("model selected", slog.String("model", m.String()))
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// NotFound renders the error page for unknown routes.
func NotFound(pages *Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pages.Error(w, http.StatusNotFound, "This page does not exist.")
	}
}

// MethodNotAllowed renders the error page for known routes hit with the wrong method.
func MethodNotAllowed(pages *Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pages.Error(w, http.StatusMethodNotAllowed, "This action is not supported here.")
	}
}
