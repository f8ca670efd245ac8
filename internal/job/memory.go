package job

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
)

// ErrMissingID is returned when saving a job without an ID.
var ErrMissingID = errors.New("job has no id")

var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository keeps jobs in process memory. Jobs and their outputs'
// metadata are lost on restart; the stored audio files are not.
type MemoryRepository struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		jobs: make(map[string]*Job),
	}
}

// Save stores a snapshot of job. Later changes to job are not visible until
// it is saved again.
func (r *MemoryRepository) Save(_ context.Context, job *Job) error {
	if job.ID == "" {
		return ErrMissingID
	}
	snapshot := job.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[snapshot.ID] = snapshot
	return nil
}

// FindByID returns a copy of the stored job.
func (r *MemoryRepository) FindByID(_ context.Context, id string) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return stored.Clone(), nil
}

// List returns copies of the matching jobs ordered by creation time. With a
// limit, the newest jobs are kept.
func (r *MemoryRepository) List(_ context.Context, filter ListFilter) ([]*Job, error) {
	r.mu.RLock()
	result := make([]*Job, 0, len(r.jobs))
	for _, stored := range r.jobs {
		if filter.Matches(stored) {
			result = append(result, stored.Clone())
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(result, func(a, b *Job) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[len(result)-filter.Limit:]
	}
	return result, nil
}

// Delete removes the job.
func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; !ok {
		return ErrJobNotFound
	}
	delete(r.jobs, id)
	return nil
}
