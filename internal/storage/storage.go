// Package storage defines the Storage interface for the submission history.
//
// Handlers and the widget hook only depend on this interface, so tests can
// pass a fake and the SQLite backend can be swapped without touching them.
package storage

import (
	"context"
	"errors"

	"github.com/aanand-mishra/idcard-portal/internal/types"
)

// ErrNotFound is returned when no submission has the requested ID.
var ErrNotFound = errors.New("submission not found")

// Storage is the history contract.
type Storage interface {
	// CreateSubmission inserts a settled submission and returns its ID.
	CreateSubmission(ctx context.Context, s types.Submission) (int64, error)

	// GetSubmissionByID returns ErrNotFound (wrapped) for unknown IDs.
	GetSubmissionByID(ctx context.Context, id int64) (types.Submission, error)

	// GetSubmissions returns newest first; an empty slice (not nil) when there are none.
	GetSubmissions(ctx context.Context, limit int) ([]types.Submission, error)

	// DeleteSubmissionByID returns ErrNotFound (wrapped) for unknown IDs.
	DeleteSubmissionByID(ctx context.Context, id int64) error

	Close() error
}
