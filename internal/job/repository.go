package job

import (
	"context"
	"errors"
)

// ErrJobNotFound is returned when a job cannot be found by ID.
var ErrJobNotFound = errors.New("job not found")

// ListFilter narrows the result of Repository.List. The zero value matches
// every job.
type ListFilter struct {
	// Status keeps only jobs in this status when set.
	Status Status
	// Limit keeps only the most recent jobs when positive.
	Limit int
}

// Matches reports whether j passes the status filter.
func (f ListFilter) Matches(j *Job) bool {
	return f.Status == "" || j.Status == f.Status
}

// Repository is the persistence port for trim jobs.
type Repository interface {
	// Save inserts or replaces the job keyed by its ID.
	Save(ctx context.Context, job *Job) error

	// FindByID returns ErrJobNotFound for unknown IDs.
	FindByID(ctx context.Context, id string) (*Job, error)

	// List returns the jobs matching filter, oldest first.
	List(ctx context.Context, filter ListFilter) ([]*Job, error)

	// Delete returns ErrJobNotFound for unknown IDs.
	Delete(ctx context.Context, id string) error
}
