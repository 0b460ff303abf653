// Package widget implements the submission widget: the state machine behind
// the ID card form.
//
//	Idle ──submit(valid)──▶ Submitting ──ok──▶ Succeeded
//	  │                        │
//	  └──submit(missing)──▶ Failed ◀──error──┘
//
// Succeeded and Failed accept a new submit, which restarts the cycle.
// The state is a single enumerated value plus its payload; it only changes
// through the transition methods below, so a result and an error are never
// visible at the same time.
package widget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/aanand-mishra/idcard-portal/internal/types"
)

// Messages shown to the user. Causes are never distinguished.
const (
	MsgMissingFields = "Please fill out all fields."
	MsgUploadFailed  = "Error uploading data."
)

var (
	// ErrMissingFields is the local validation failure: nothing was sent.
	ErrMissingFields = errors.New("missing required fields")

	// ErrModelToggleUnsupported is returned by SelectModel in the single variant.
	ErrModelToggleUnsupported = errors.New("model selection is only available in the dual variant")
)

// validate is shared; a validator caches struct metadata and is safe for concurrent use.
var validate = validator.New()

// State of the widget.
type State int

const (
	Idle State = iota
	Submitting
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Submitter sends a form to the validation service.
type Submitter interface {
	Submit(ctx context.Context, input types.FormInput, model types.Model) (types.SubmissionResult, error)
}

// Settlement describes a finished network submission.
type Settlement struct {
	Input  types.FormInput
	Model  types.Model
	Result types.SubmissionResult
	Err    error
}

// View is an immutable snapshot of the widget, ready to render.
type View struct {
	State      State
	Variant    types.Variant
	Model      types.Model
	Name       string
	University string
	ImageName  string

	// Result is set only in Succeeded, Error only in Failed.
	Result *types.SubmissionResult
	Error  string

	// Loading is true while a dual-variant submission is in flight.
	Loading bool
}

// ShowFields reports whether the detected raw fields block is rendered.
func (v View) ShowFields() bool {
	return v.Result != nil && v.Variant == types.VariantDual
}

type Option func(*Widget)

func WithLogger(log *slog.Logger) Option {
	return func(w *Widget) { w.log = log }
}

// WithModel sets the initial model selection.
func WithModel(m types.Model) Option {
	return func(w *Widget) { w.model = m }
}

// WithOnSettle registers a hook run after every network submission settles,
// before its Task completes.
func WithOnSettle(fn func(context.Context, Settlement)) Option {
	return func(w *Widget) { w.onSettle = fn }
}

// Widget is one user's form. It is safe for concurrent use.
type Widget struct {
	submitter Submitter
	variant   types.Variant
	log       *slog.Logger
	onSettle  func(context.Context, Settlement)

	mu         sync.Mutex
	state      State
	name       string
	university string
	imageName  string
	model      types.Model
	result     types.SubmissionResult
	errMsg     string
	seq        uint64
}

func New(submitter Submitter, variant types.Variant, opts ...Option) *Widget {
	w := &Widget{
		submitter: submitter,
		variant:   variant,
		log:       slog.Default(),
		model:     types.ModelYOLO,
		state:     Idle,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// View returns the current snapshot.
func (w *Widget) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()

	v := View{
		State:      w.state,
		Variant:    w.variant,
		Model:      w.model,
		Name:       w.name,
		University: w.university,
		ImageName:  w.imageName,
	}
	switch w.state {
	case Succeeded:
		res := w.result
		v.Result = &res
	case Failed:
		v.Error = w.errMsg
	case Submitting:
		v.Loading = w.variant == types.VariantDual
	}
	return v
}

// SelectModel changes the destination of later submissions.
// It does not touch the current state or any in-flight request.
func (w *Widget) SelectModel(m types.Model) error {
	if w.variant != types.VariantDual {
		return ErrModelToggleUnsupported
	}
	if !m.Valid() {
		return fmt.Errorf("SelectModel: %w: %d", types.ErrInvalidModel, m)
	}

	w.mu.Lock()
	w.model = m
	w.mu.Unlock()
	return nil
}

// Submit validates input and, when complete, starts one network submission.
//
// A missing field moves the widget to Failed and returns ErrMissingFields
// without a Task. Otherwise the widget moves to Submitting (clearing any
// prior result and error) and the returned Task settles when the service
// answers. The request is detached from ctx's cancellation: it is never
// aborted, retried or timed out by the widget.
func (w *Widget) Submit(ctx context.Context, input types.FormInput) (*Task, error) {
	if err := validate.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, fmt.Errorf("Submit: validate: %w", err)
		}
		w.fail(input)
		w.log.Info("submission rejected locally", slog.Int("missing", len(verrs)))
		return nil, ErrMissingFields
	}

	seq, model := w.begin(input)
	task := newTask()

	w.log.Info("submission started",
		slog.Uint64("seq", seq),
		slog.String("model", model.String()),
		slog.String("image", input.Image.Filename))

	go w.run(context.WithoutCancel(ctx), seq, input, model, task)
	return task, nil
}

// fail is the Idle|Succeeded|Failed → Failed (local) transition.
func (w *Widget) fail(input types.FormInput) {
	w.mu.Lock()
	defer w.mu.Unlock()

	// A local failure supersedes anything still in flight.
	w.seq++
	w.remember(input)
	w.state = Failed
	w.result = types.SubmissionResult{}
	w.errMsg = MsgMissingFields
}

// begin is the → Submitting transition.
func (w *Widget) begin(input types.FormInput) (uint64, types.Model) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.seq++
	w.remember(input)
	w.state = Submitting
	w.result = types.SubmissionResult{}
	w.errMsg = ""
	return w.seq, w.model
}

// settle is the Submitting → Succeeded|Failed transition. Results of a
// submission that is no longer the latest are dropped.
func (w *Widget) settle(seq uint64, res types.SubmissionResult, err error) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if seq != w.seq {
		return false
	}
	if err != nil {
		w.state = Failed
		w.result = types.SubmissionResult{}
		w.errMsg = MsgUploadFailed
		return true
	}
	w.state = Succeeded
	w.result = res
	w.errMsg = ""
	return true
}

// remember keeps the typed values so the form can be re-populated.
// Callers hold w.mu.
func (w *Widget) remember(input types.FormInput) {
	w.name = input.Name
	w.university = input.University
	w.imageName = ""
	if input.Image != nil {
		w.imageName = input.Image.Filename
	}
}

func (w *Widget) run(ctx context.Context, seq uint64, input types.FormInput, model types.Model, task *Task) {
	res, err := w.submitter.Submit(ctx, input, model)

	current := w.settle(seq, res, err)
	if err != nil {
		w.log.Error("submission failed",
			slog.Uint64("seq", seq),
			slog.Bool("current", current),
			slog.String("error", err.Error()))
	} else {
		w.log.Info("submission succeeded",
			slog.Uint64("seq", seq),
			slog.Bool("current", current),
			slog.Bool("is_valid_card", res.IsValidCard))
	}

	if w.onSettle != nil {
		w.onSettle(ctx, Settlement{Input: input, Model: model, Result: res, Err: err})
	}
	task.complete(res, err)
}
