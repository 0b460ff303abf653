// Package router wires every HTTP route of the portal.
package router

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/aanand-mishra/idcard-portal/internal/http/handlers/page"
	"github.com/aanand-mishra/idcard-portal/internal/http/handlers/submission"
	"github.com/aanand-mishra/idcard-portal/internal/http/middleware"
	"github.com/aanand-mishra/idcard-portal/internal/session"
	"github.com/aanand-mishra/idcard-portal/internal/storage"
	"github.com/aanand-mishra/idcard-portal/internal/types"
	"github.com/aanand-mishra/idcard-portal/internal/widget"
)

// Client is what the routes need from the validation service client.
type Client interface {
	widget.Submitter
	submission.Pinger
}

type Deps struct {
	Log          *slog.Logger
	Client       Client
	Store        storage.Storage
	Sessions     *session.Store
	Pages        *page.Pages
	Variant      types.Variant
	DefaultModel types.Model
	MaxBytes     int64
	OnSettle     func(context.Context, widget.Settlement)
}

// New builds the route table:
//
//	GET    /                          the form and its results
//	POST   /submit                    submit the form
//	POST   /model                     switch YOLO/NLP (dual variant)
//	POST   /api/v1/submissions        synchronous JSON submit
//	GET    /api/v1/submissions        history
//	GET    /api/v1/submissions/{id}   one history entry
//	DELETE /api/v1/submissions/{id}   remove a history entry
//	GET    /health                    portal + upstream status
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(d.Log))
	r.Use(chimw.Recoverer)

	r.NotFound(page.NotFound(d.Pages))
	r.MethodNotAllowed(page.MethodNotAllowed(d.Pages))

	r.Get("/", page.Home(d.Sessions, d.Pages))
	r.Post("/submit", page.Submit(d.Sessions, d.Pages, d.Variant, d.MaxBytes))
	if d.Variant == types.VariantDual {
		r.Post("/model", page.SelectModel(d.Sessions, d.Pages))
	}

	r.Route("/api/v1/submissions", func(r chi.Router) {
		r.Post("/", submission.New(d.Client, d.Variant, d.DefaultModel, d.MaxBytes, d.OnSettle))
		r.Get("/", submission.GetList(d.Store))
		r.Get("/{id}", submission.GetByID(d.Store))
		r.Delete("/{id}", submission.Delete(d.Store))
	})

	r.Get("/health", submission.Health(d.Client))

	return r
}
