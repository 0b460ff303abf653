// Package history turns settled submissions into storage rows.
package history

import (
	"context"
	"log/slog"
	"time"

	"github.com/aanand-mishra/idcard-portal/internal/storage"
	"github.com/aanand-mishra/idcard-portal/internal/types"
	"github.com/aanand-mishra/idcard-portal/internal/widget"
)

// Endpointer resolves where a submission was sent.
type Endpointer interface {
	Endpoint(model types.Model) (string, error)
	Variant() types.Variant
}

type Recorder struct {
	store    storage.Storage
	endpoint Endpointer
	log      *slog.Logger
	now      func() time.Time
}

func NewRecorder(store storage.Storage, endpoint Endpointer, log *slog.Logger) *Recorder {
	return &Recorder{store: store, endpoint: endpoint, log: log, now: time.Now}
}

// Record stores one settled network submission. Failures to store are logged
// and swallowed: history never changes what the user sees.
func (r *Recorder) Record(ctx context.Context, input types.FormInput, model types.Model, res types.SubmissionResult, err error) {
	sub := types.Submission{
		Name:       input.Name,
		University: input.University,
		Outcome:    types.OutcomeSucceeded,
		CreatedAt:  r.now(),
	}
	if input.Image != nil {
		sub.ImageName = input.Image.Filename
	}
	if r.endpoint.Variant() == types.VariantDual {
		sub.Model = model
	}
	sub.Endpoint, _ = r.endpoint.Endpoint(model)

	if err != nil {
		sub.Outcome = types.OutcomeFailed
		sub.Error = err.Error()
	} else {
		sub.Result = &res
	}

	id, storeErr := r.store.CreateSubmission(ctx, sub)
	if storeErr != nil {
		r.log.Error("failed to record submission", slog.String("error", storeErr.Error()))
		return
	}
	r.log.Debug("submission recorded", slog.Int64("id", id), slog.String("outcome", sub.Outcome))
}

// OnSettle adapts Record to widget.WithOnSettle.
func (r *Recorder) OnSettle(ctx context.Context, s widget.Settlement) {
	r.Record(ctx, s.Input, s.Model, s.Result, s.Err)
}
