// Package job provides the Job aggregate for trim requests.
// It includes the Job entity with its state machine, the repository port and
// the TrimService use case that runs the trimming pipeline.
package job

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/audiotrim/internal/audio"
	"github.com/maauso/audiotrim/internal/job/id"
	"github.com/maauso/audiotrim/internal/trim"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusInQueue indicates the job is waiting for a processing slot.
	StatusInQueue Status = "IN_QUEUE"
	// StatusRunning indicates the job is going through the pipeline.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates the job finished and its output is stored.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the job encountered an error during execution.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the job was deleted before it finished.
	StatusCancelled Status = "CANCELLED"
	// StatusTimedOut indicates the job exceeded the request timeout.
	StatusTimedOut Status = "TIMED_OUT"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusInQueue:   {StatusRunning, StatusCancelled, StatusTimedOut},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
	StatusTimedOut:  {},
}

// ErrUnknownStatus is returned by ParseStatus for names outside the state machine.
var ErrUnknownStatus = errors.New("unknown job status")

// ParseStatus converts a case-insensitive status name.
func ParseStatus(s string) (Status, error) {
	status := Status(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := validTransitions[status]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
	return status, nil
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Options is everything a trim run needs besides the audio itself.
type Options struct {
	// Preset is the name of the preset the options were resolved from.
	Preset string `json:"preset,omitempty"`
	// Params configures silence detection.
	Params trim.Params `json:"params"`
	// Format is the output container.
	Format audio.Format `json:"output_format" validate:"required,oneof=mp3 wav flac"`
	// Quality holds the encoder settings.
	Quality audio.Quality `json:"quality"`
	// Normalize raises the trimmed output to a common peak level.
	Normalize bool `json:"normalize"`
	// Denoise attenuates the noise floor before encoding.
	Denoise bool `json:"denoise"`
}

var validate = validator.New()

// Validate checks the detection parameters and output settings.
// Violations are reported as trim.ErrInvalidParameter.
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("%w: %s", trim.ErrInvalidParameter, err.Error())
	}
	return o.Params.Validate()
}

// filters returns the post-filters enabled by the options, in the order
// they are applied.
func (o Options) filters() []audio.PostFilter {
	var fs []audio.PostFilter
	if o.Denoise {
		fs = append(fs, audio.Denoise)
	}
	if o.Normalize {
		fs = append(fs, audio.Normalize)
	}
	return fs
}

// Job represents a trim job aggregate.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Status is the current job state.
	Status Status
	// Stage is the pipeline stage currently running.
	Stage string
	// Progress is the percentage of completion (0-100).
	Progress int
	// Error contains any error message if the job failed.
	Error string
	// ErrorCode is the machine-readable code for Error.
	ErrorCode string
	// InputName is the uploaded file name.
	InputName string
	// InputSize is the uploaded file size in bytes.
	InputSize int64
	// Options are the resolved trim settings.
	Options Options
	// Summary is set once trimming succeeded.
	Summary *trim.Summary
	// OutputKey is the storage key of the trimmed file.
	OutputKey string
	// OutputURL is the public URL when the output is stored remotely.
	OutputURL string
	// OutputSize is the trimmed file size in bytes.
	OutputSize int64
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when processing finished.
	CompletedAt time.Time
}

// New creates a new Job with a generated ID and initial IN_QUEUE status.
func New() *Job {
	return NewWithID(id.Generate())
}

// NewWithID creates a new Job with the specified ID and initial IN_QUEUE status.
// Useful for testing or when ID needs to be externally generated.
func NewWithID(jobID string) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Status:    StatusInQueue,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, status)
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	// Set timestamps based on state
	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted:
		j.CompletedAt = j.UpdatedAt
		j.Stage = ""
		j.Progress = 100
	case StatusFailed, StatusCancelled, StatusTimedOut:
		j.CompletedAt = j.UpdatedAt
		j.Stage = ""
	}

	return nil
}

// Start transitions the job from IN_QUEUE to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete transitions the job to COMPLETED state.
func (j *Job) Complete() error {
	return j.TransitionTo(StatusCompleted)
}

// Fail transitions the job to FAILED state with an error message and code.
func (j *Job) Fail(errMsg, code string) error {
	j.mu.Lock()
	j.Error = errMsg
	j.ErrorCode = code
	j.mu.Unlock()
	return j.TransitionTo(StatusFailed)
}

// Cancel transitions the job to CANCELLED state.
func (j *Job) Cancel() error {
	return j.TransitionTo(StatusCancelled)
}

// Timeout transitions the job to TIMED_OUT state.
func (j *Job) Timeout() error {
	return j.TransitionTo(StatusTimedOut)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// EnterStage records the pipeline stage being run and its progress (0-100).
func (j *Job) EnterStage(stage string, progress int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	j.Stage = stage
	j.Progress = progress
	j.UpdatedAt = time.Now()
}

// SetResult records the trim summary and where the output was stored.
func (j *Job) SetResult(summary trim.Summary, key, url string, size int64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Summary = &summary
	j.OutputKey = key
	j.OutputURL = url
	j.OutputSize = size
	j.UpdatedAt = time.Now()
}

// ClearOutput clears the output location.
// This is used when deleting the job's output file.
func (j *Job) ClearOutput() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.OutputKey = ""
	j.OutputURL = ""
	j.OutputSize = 0
	j.UpdatedAt = time.Now()
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted ||
		j.Status == StatusFailed ||
		j.Status == StatusCancelled ||
		j.Status == StatusTimedOut
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var summary *trim.Summary
	if j.Summary != nil {
		s := *j.Summary
		summary = &s
	}

	return &Job{
		ID:          j.ID,
		Status:      j.Status,
		Stage:       j.Stage,
		Progress:    j.Progress,
		Error:       j.Error,
		ErrorCode:   j.ErrorCode,
		InputName:   j.InputName,
		InputSize:   j.InputSize,
		Options:     j.Options,
		Summary:     summary,
		OutputKey:   j.OutputKey,
		OutputURL:   j.OutputURL,
		OutputSize:  j.OutputSize,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}

// OutputName builds the stored file name for a trimmed input:
// trimmed_<base>_<8 hex>.<format>.
func OutputName(inputName string, format audio.Format) string {
	base := filepath.Base(strings.ReplaceAll(inputName, "\\", "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ' || r == '.':
			return '_'
		default:
			return -1
		}
	}, base)
	if base == "" {
		base = "audio"
	}
	return fmt.Sprintf("trimmed_%s_%s.%s", base, id.Short(), format)
}
