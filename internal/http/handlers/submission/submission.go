// Package submission contains the JSON API handlers: a synchronous submit
// endpoint mirroring the form, the submission history, and a health check.
//
// Every function here is a factory: it receives its dependencies once, when
// the route is registered, and returns the handler the router calls on every
// request.
//
//	router.Post("/api/v1/submissions", submission.New(client, variant, model, max, recorder.OnSettle))
package submission

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aanand-mishra/idcard-portal/internal/http/form"
	"github.com/aanand-mishra/idcard-portal/internal/storage"
	"github.com/aanand-mishra/idcard-portal/internal/types"
	"github.com/aanand-mishra/idcard-portal/internal/utils/response"
	"github.com/aanand-mishra/idcard-portal/internal/widget"
)

// defaultListLimit caps GET /api/v1/submissions when no limit is given.
const defaultListLimit = 100

// ─────────────────────────────────────────────────────────────────────────────
// New handles POST /api/v1/submissions
// Sends one ID card to the validation service and waits for the answer.
//
// Request: multipart/form-data with parts name, university, image and, in the
// dual variant, an optional model (1 = YOLO, 2 = NLP).
//
// Success response (200 OK): the service's JSON, e.g.
//
//	{ "is_valid_card": true, "name_match": 87, "university_match": 92, "is_expired": false, "fields": {...} }
//
// Error responses:
//
//	400 Bad Request : unreadable form, missing field, unknown model
//	502 Bad Gateway : { "status": "error", "error": "Error uploading data." }
//
// ─────────────────────────────────────────────────────────────────────────────
func New(
	client widget.Submitter,
	variant types.Variant,
	defaultModel types.Model,
	maxBytes int64,
	onSettle func(context.Context, widget.Settlement),
) http.HandlerFunc {
	validate := validator.New()

	return func(w http.ResponseWriter, r *http.Request) {
		slog.Info("api submission received")

		input, err := form.Read(w, r, maxBytes)
		if err != nil {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		if err := validate.Struct(input); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				response.WriteJSON(w, http.StatusBadRequest, response.ValidationError(verrs))
				return
			}
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		model := defaultModel
		if raw := r.FormValue("model"); raw != "" {
			model, err = types.ParseModel(raw)
			if err != nil {
				response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
				return
			}
		}

		// A throwaway widget gives the API the same transitions, logging and
		// history hook as the form.
		opts := []widget.Option{widget.WithModel(model)}
		if onSettle != nil {
			opts = append(opts, widget.WithOnSettle(onSettle))
		}
		wg := widget.New(client, variant, opts...)

		task, err := wg.Submit(r.Context(), input)
		if err != nil {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		res, err := task.Wait(r.Context())
		if err != nil {
			response.WriteJSON(w, http.StatusBadGateway, response.ErrorMessage(widget.MsgUploadFailed))
			return
		}

		response.WriteJSON(w, http.StatusOK, res)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// GetList handles GET /api/v1/submissions?limit=N
// Returns the history newest first; [] (not null) when empty.
// ─────────────────────────────────────────────────────────────────────────────
func GetList(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultListLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				response.WriteJSON(w, http.StatusBadRequest,
					response.GeneralError(errors.New("invalid limit: must be a positive integer")))
				return
			}
			limit = n
		}

		subs, err := store.GetSubmissions(r.Context(), limit)
		if err != nil {
			slog.Error("error getting submissions", slog.String("error", err.Error()))
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
			return
		}

		response.WriteJSON(w, http.StatusOK, subs)
	}
}

// GetByID handles GET /api/v1/submissions/{id}
func GetByID(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}

		sub, err := store.GetSubmissionByID(r.Context(), id)
		if err != nil {
			writeStoreError(w, id, err)
			return
		}

		response.WriteJSON(w, http.StatusOK, sub)
	}
}

// Delete handles DELETE /api/v1/submissions/{id}
func Delete(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}

		if err := store.DeleteSubmissionByID(r.Context(), id); err != nil {
			writeStoreError(w, id, err)
			return
		}

		slog.Info("submission deleted", slog.Int64("id", id))
		response.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// Pinger checks the upstream service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ─────────────────────────────────────────────────────────────────────────────
// Health handles GET /health
// The portal itself is up if it answers; the upstream state is reported
// alongside:
//
//	{ "status": "ok", "upstream": "up" }
//
// ─────────────────────────────────────────────────────────────────────────────
func Health(upstream Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := "up"
		if err := upstream.Ping(r.Context()); err != nil {
			slog.Warn("validation service unreachable", slog.String("error", err.Error()))
			state = "down"
		}
		response.WriteJSON(w, http.StatusOK, map[string]string{
			"status":   response.StatusOK,
			"upstream": state,
		})
	}
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.WriteJSON(w, http.StatusBadRequest,
			response.GeneralError(errors.New("invalid id: must be an integer")))
		return 0, false
	}
	return id, true
}

func writeStoreError(w http.ResponseWriter, id int64, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		response.WriteJSON(w, http.StatusNotFound, response.GeneralError(err))
		return
	}
	slog.Error("storage error", slog.Int64("id", id), slog.String("error", err.Error()))
	response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
}
