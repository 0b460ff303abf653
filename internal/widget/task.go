package widget

import (
	"context"

	"github.com/aanand-mishra/idcard-portal/internal/types"
)

// Task is one in-flight submission. It completes exactly once with either
// a result or an error.
type Task struct {
	done   chan struct{}
	result types.SubmissionResult
	err    error
}

func newTask() *Task {
	return &Task{done: make(chan struct{})}
}

func (t *Task) complete(res types.SubmissionResult, err error) {
	t.result = res
	t.err = err
	close(t.done)
}

// Done is closed when the submission has settled.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task settles or ctx ends. Giving up on the wait does
// not cancel the submission.
func (t *Task) Wait(ctx context.Context) (types.SubmissionResult, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		return types.SubmissionResult{}, ctx.Err()
	}
}
