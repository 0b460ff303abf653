package history

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aanand-mishra/idcard-portal/internal/idcheck"
	"github.com/aanand-mishra/idcard-portal/internal/storage"
	"github.com/aanand-mishra/idcard-portal/internal/types"
	"github.com/aanand-mishra/idcard-portal/internal/widget"
)

type memStore struct {
	rows []types.Submission
	err  error
}

func (m *memStore) CreateSubmission(_ context.Context, s types.Submission) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	s.ID = int64(len(m.rows) + 1)
	m.rows = append(m.rows, s)
	return s.ID, nil
}

func (m *memStore) GetSubmissionByID(context.Context, int64) (types.Submission, error) {
	return types.Submission{}, storage.ErrNotFound
}

func (m *memStore) GetSubmissions(context.Context, int) ([]types.Submission, error) {
	return m.rows, nil
}

func (m *memStore) DeleteSubmissionByID(context.Context, int64) error { return nil }

func (m *memStore) Close() error { return nil }

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRecordOutcomes(t *testing.T) {
	store := &memStore{}
	rec := NewRecorder(store, idcheck.New("http://svc:5000", types.VariantDual), quiet())
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rec.now = func() time.Time { return fixed }

	input := types.FormInput{Name: "A", University: "B", Image: &types.Image{Filename: "c.png"}}

	rec.OnSettle(context.Background(), widget.Settlement{
		Input:  input,
		Model:  types.ModelNLP,
		Result: types.SubmissionResult{IsValidCard: true, NameMatch: types.NumericScore(99)},
	})
	rec.Record(context.Background(), input, types.ModelYOLO, types.SubmissionResult{}, errors.New("connection refused"))

	require.Len(t, store.rows, 2)

	ok := store.rows[0]
	require.Equal(t, types.OutcomeSucceeded, ok.Outcome)
	require.Equal(t, "http://svc:5000/process-image-nlp", ok.Endpoint)
	require.Equal(t, types.ModelNLP, ok.Model)
	require.Equal(t, "c.png", ok.ImageName)
	require.Equal(t, fixed, ok.CreatedAt)
	require.NotNil(t, ok.Result)
	require.Empty(t, ok.Error)

	failed := store.rows[1]
	require.Equal(t, types.OutcomeFailed, failed.Outcome)
	require.Equal(t, "http://svc:5000/process-image-yolo", failed.Endpoint)
	require.Nil(t, failed.Result)
	require.Equal(t, "connection refused", failed.Error)
}

func TestRecordSingleVariantOmitsModel(t *testing.T) {
	store := &memStore{}
	rec := NewRecorder(store, idcheck.New("http://svc:5000", types.VariantSingle), quiet())

	rec.Record(context.Background(), types.FormInput{Name: "A", University: "B"}, types.ModelNLP, types.SubmissionResult{}, nil)

	require.Len(t, store.rows, 1)
	require.Equal(t, types.Model(0), store.rows[0].Model)
	require.Equal(t, "http://svc:5000/process-image", store.rows[0].Endpoint)
}

func TestRecordSwallowsStoreErrors(t *testing.T) {
	store := &memStore{err: errors.New("disk full")}
	rec := NewRecorder(store, idcheck.New("http://svc", types.VariantSingle), quiet())

	require.NotPanics(t, func() {
		rec.Record(context.Background(), types.FormInput{}, types.ModelYOLO, types.SubmissionResult{}, nil)
	})
	require.Empty(t, store.rows)
}
