package widget

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aanand-mishra/idcard-portal/internal/types"
)

// call is one request seen by fakeSubmitter.
type call struct {
	input types.FormInput
	model types.Model
}

type reply struct {
	res types.SubmissionResult
	err error
}

// fakeSubmitter blocks every Submit until the test sends a reply.
type fakeSubmitter struct {
	mu      sync.Mutex
	calls   []call
	replies chan reply
	started chan struct{}
}

func newFakeSubmitter() *fakeSubmitter {
	return &fakeSubmitter{
		replies: make(chan reply),
		started: make(chan struct{}, 16),
	}
}

func (f *fakeSubmitter) Submit(ctx context.Context, input types.FormInput, model types.Model) (types.SubmissionResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{input: input, model: model})
	f.mu.Unlock()
	f.started <- struct{}{}

	r := <-f.replies
	return r.res, r.err
}

func (f *fakeSubmitter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeSubmitter) call(i int) call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func completeInput() types.FormInput {
	return types.FormInput{
		Name:       "John Doe",
		University: "State University",
		Image:      &types.Image{Filename: "card.jpg", ContentType: "image/jpeg", Data: []byte("jpeg")},
	}
}

func okResult() types.SubmissionResult {
	return types.SubmissionResult{
		IsValidCard:     true,
		NameMatch:       types.NumericScore(87),
		UniversityMatch: types.NumericScore(91),
		Fields:          types.Fields{Name: "JOHN DOE", University: "STATE UNIVERSITY", Expiration: "05/31/2027"},
	}
}

func wait(t *testing.T, task *Task) (types.SubmissionResult, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return task.Wait(ctx)
}

func TestSubmitMissingFieldsNeverCallsNetwork(t *testing.T) {
	cases := map[string]func(*types.FormInput){
		"name":       func(in *types.FormInput) { in.Name = "" },
		"university": func(in *types.FormInput) { in.University = "" },
		"image":      func(in *types.FormInput) { in.Image = nil },
		"all":        func(in *types.FormInput) { *in = types.FormInput{} },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			sub := newFakeSubmitter()
			w := New(sub, types.VariantSingle, WithLogger(quietLogger()))

			in := completeInput()
			mutate(&in)
			task, err := w.Submit(context.Background(), in)
			require.ErrorIs(t, err, ErrMissingFields)
			require.Nil(t, task)
			require.Equal(t, 0, sub.callCount())

			v := w.View()
			require.Equal(t, Failed, v.State)
			require.Equal(t, MsgMissingFields, v.Error)
			require.Nil(t, v.Result)
		})
	}
}

func TestSubmitSuccess(t *testing.T) {
	sub := newFakeSubmitter()
	w := New(sub, types.VariantSingle, WithLogger(quietLogger()))
	require.Equal(t, Idle, w.View().State)

	task, err := w.Submit(context.Background(), completeInput())
	require.NoError(t, err)
	<-sub.started

	v := w.View()
	require.Equal(t, Submitting, v.State)
	require.False(t, v.Loading, "single variant has no loading indicator")

	sub.replies <- reply{res: okResult()}
	res, err := wait(t, task)
	require.NoError(t, err)
	require.True(t, res.IsValidCard)

	v = w.View()
	require.Equal(t, Succeeded, v.State)
	require.Empty(t, v.Error)
	require.NotNil(t, v.Result)
	require.Equal(t, "87%", v.Result.NameMatch.String())
	require.False(t, v.ShowFields())

	// Form values are kept for the next attempt.
	require.Equal(t, "John Doe", v.Name)
	require.Equal(t, "State University", v.University)
	require.Equal(t, "card.jpg", v.ImageName)
	require.Equal(t, 1, sub.callCount())
}

func TestSubmitFailureClearsResult(t *testing.T) {
	sub := newFakeSubmitter()
	w := New(sub, types.VariantSingle, WithLogger(quietLogger()))

	task, err := w.Submit(context.Background(), completeInput())
	require.NoError(t, err)
	<-sub.started
	sub.replies <- reply{res: okResult()}
	_, err = wait(t, task)
	require.NoError(t, err)
	require.Equal(t, Succeeded, w.View().State)

	task, err = w.Submit(context.Background(), completeInput())
	require.NoError(t, err)
	<-sub.started
	sub.replies <- reply{err: errors.New("status 500")}
	_, err = wait(t, task)
	require.Error(t, err)

	v := w.View()
	require.Equal(t, Failed, v.State)
	require.Equal(t, MsgUploadFailed, v.Error)
	require.Nil(t, v.Result)
}

func TestResubmitClearsPriorResultWhileSubmitting(t *testing.T) {
	sub := newFakeSubmitter()
	w := New(sub, types.VariantDual, WithLogger(quietLogger()))

	task, err := w.Submit(context.Background(), completeInput())
	require.NoError(t, err)
	<-sub.started
	sub.replies <- reply{res: okResult()}
	_, err = wait(t, task)
	require.NoError(t, err)
	require.True(t, w.View().ShowFields())

	task, err = w.Submit(context.Background(), completeInput())
	require.NoError(t, err)
	<-sub.started

	v := w.View()
	require.Equal(t, Submitting, v.State)
	require.Nil(t, v.Result)
	require.Empty(t, v.Error)
	require.True(t, v.Loading)

	sub.replies <- reply{res: okResult()}
	_, err = wait(t, task)
	require.NoError(t, err)
	require.False(t, w.View().Loading)
}

func TestSelectModelChangesOnlyEndpointChoice(t *testing.T) {
	sub := newFakeSubmitter()
	w := New(sub, types.VariantDual, WithLogger(quietLogger()))
	require.Equal(t, types.ModelYOLO, w.View().Model)

	for _, m := range []types.Model{types.ModelNLP, types.ModelYOLO} {
		require.NoError(t, w.SelectModel(m))
		task, err := w.Submit(context.Background(), completeInput())
		require.NoError(t, err)
		<-sub.started
		sub.replies <- reply{res: okResult()}
		_, err = wait(t, task)
		require.NoError(t, err)
	}

	require.Equal(t, types.ModelNLP, sub.call(0).model)
	require.Equal(t, types.ModelYOLO, sub.call(1).model)
	require.Equal(t, sub.call(0).input, sub.call(1).input)
}

func TestSelectModelRules(t *testing.T) {
	single := New(newFakeSubmitter(), types.VariantSingle)
	require.ErrorIs(t, single.SelectModel(types.ModelNLP), ErrModelToggleUnsupported)

	dual := New(newFakeSubmitter(), types.VariantDual, WithModel(types.ModelNLP))
	require.Equal(t, types.ModelNLP, dual.View().Model)
	require.ErrorIs(t, dual.SelectModel(types.Model(5)), types.ErrInvalidModel)
}

func TestStaleCompletionIsDropped(t *testing.T) {
	sub := newFakeSubmitter()
	w := New(sub, types.VariantSingle, WithLogger(quietLogger()))

	first, err := w.Submit(context.Background(), completeInput())
	require.NoError(t, err)
	<-sub.started

	second, err := w.Submit(context.Background(), completeInput())
	require.NoError(t, err)
	<-sub.started

	// Replies are taken in arrival order by whichever Submit receives first;
	// both calls are blocked, so send two distinguishable replies and check
	// that only the second task's outcome reaches the widget.
	sub.replies <- reply{err: errors.New("boom")}
	sub.replies <- reply{res: okResult()}

	r1, err1 := wait(t, first)
	r2, err2 := wait(t, second)

	v := w.View()
	if err2 == nil {
		require.Equal(t, Succeeded, v.State)
		require.Equal(t, r2, *v.Result)
	} else {
		require.Equal(t, Failed, v.State)
		require.Equal(t, MsgUploadFailed, v.Error)
	}
	// The first task still settles for its own subscriber.
	require.True(t, err1 != nil || r1.IsValidCard)
}

func TestSubmitDetachedFromCallerCancellation(t *testing.T) {
	sub := newFakeSubmitter()
	w := New(sub, types.VariantSingle, WithLogger(quietLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	task, err := w.Submit(ctx, completeInput())
	require.NoError(t, err)
	<-sub.started
	cancel()

	sub.replies <- reply{res: okResult()}
	_, err = wait(t, task)
	require.NoError(t, err)
	require.Equal(t, Succeeded, w.View().State)
}

func TestOnSettleRunsBeforeTaskCompletes(t *testing.T) {
	sub := newFakeSubmitter()
	var got []Settlement
	var mu sync.Mutex
	w := New(sub, types.VariantDual,
		WithLogger(quietLogger()),
		WithModel(types.ModelNLP),
		WithOnSettle(func(_ context.Context, s Settlement) {
			mu.Lock()
			got = append(got, s)
			mu.Unlock()
		}))

	task, err := w.Submit(context.Background(), completeInput())
	require.NoError(t, err)
	<-sub.started
	sub.replies <- reply{res: okResult()}
	_, err = wait(t, task)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	require.Equal(t, types.ModelNLP, got[0].Model)
	require.NoError(t, got[0].Err)
	require.Equal(t, "John Doe", got[0].Input.Name)
}

func TestLocalFailureSupersedesInFlight(t *testing.T) {
	sub := newFakeSubmitter()
	w := New(sub, types.VariantSingle, WithLogger(quietLogger()))

	task, err := w.Submit(context.Background(), completeInput())
	require.NoError(t, err)
	<-sub.started

	_, err = w.Submit(context.Background(), types.FormInput{Name: "only a name"})
	require.ErrorIs(t, err, ErrMissingFields)

	sub.replies <- reply{res: okResult()}
	_, err = wait(t, task)
	require.NoError(t, err)

	v := w.View()
	require.Equal(t, Failed, v.State)
	require.Equal(t, MsgMissingFields, v.Error)
	require.Equal(t, "only a name", v.Name)
}
