package job

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/maauso/audiotrim/internal/audio"
	"github.com/maauso/audiotrim/internal/observe"
	"github.com/maauso/audiotrim/internal/storage"
	"github.com/maauso/audiotrim/internal/trim"
)

// ErrNoOutput is returned when a job has no stored output to download.
var ErrNoOutput = errors.New("job has no output")

// Progress reported when each pipeline stage starts.
const (
	progressDecode = 10
	progressDetect = 40
	progressFilter = 60
	progressEncode = 70
	progressStore  = 90
)

// TrimInput contains one uploaded recording and its resolved settings.
type TrimInput struct {
	// InputName is the uploaded file name; its extension selects the decoder.
	InputName string
	// Audio is the encoded input.
	Audio []byte
	// Options are the trim and output settings.
	Options Options
}

// TrimService runs the trimming pipeline for jobs:
// decode → detect and rebuild → post-filters → encode → store.
//
// Dependencies:
//   - audio.Codec: decoding uploads and encoding outputs
//   - trim.Trimmer: silence detection and reconstruction
//   - storage.Storage: output persistence
//   - Repository: job persistence
type TrimService struct {
	repo    Repository
	codec   audio.Codec
	trimmer *trim.Trimmer
	store   storage.Storage
	metrics *observe.Metrics
	logger  *slog.Logger

	// slots limits how many trims decode and encode at the same time.
	slots         *semaphore.Weighted
	maxConcurrent int
	timeout       time.Duration

	mu     sync.Mutex
	active map[string]*activeJob
	wg     sync.WaitGroup
}

// activeJob lets DeleteJob stop a running job and wait for it to settle.
type activeJob struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// ServiceOption configures a TrimService.
type ServiceOption func(*TrimService)

// WithMaxConcurrent sets how many trims may run at once. Values below one
// are ignored.
func WithMaxConcurrent(n int) ServiceOption {
	return func(s *TrimService) {
		if n > 0 {
			s.maxConcurrent = n
		}
	}
}

// WithTimeout bounds the whole pipeline of a single job. Zero disables it.
func WithTimeout(d time.Duration) ServiceOption {
	return func(s *TrimService) {
		s.timeout = d
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observe.Metrics) ServiceOption {
	return func(s *TrimService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *TrimService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewTrimService creates a new TrimService.
func NewTrimService(repo Repository, codec audio.Codec, trimmer *trim.Trimmer, store storage.Storage, opts ...ServiceOption) *TrimService {
	s := &TrimService{
		repo:          repo,
		codec:         codec,
		trimmer:       trimmer,
		store:         store,
		logger:        slog.Default(),
		maxConcurrent: 2, // Default concurrency
		active:        make(map[string]*activeJob),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.trimmer == nil {
		s.trimmer = trim.NewTrimmer(nil, s.logger)
	}
	s.slots = semaphore.NewWeighted(int64(s.maxConcurrent))
	return s
}

// MaxConcurrent returns the number of trims allowed to run at once.
func (s *TrimService) MaxConcurrent() int {
	return s.maxConcurrent
}

// validateInput rejects bad settings and unknown containers before any
// audio is touched.
func validateInput(in TrimInput) error {
	if err := in.Options.Validate(); err != nil {
		return err
	}
	if _, err := audio.ParseFormat(in.InputName); err != nil {
		return err
	}
	if len(in.Audio) == 0 {
		return fmt.Errorf("%w: empty upload", trim.ErrCorruptData)
	}
	return nil
}

// CreateJob validates the input and persists a new IN_QUEUE job.
func (s *TrimService) CreateJob(ctx context.Context, in TrimInput) (*Job, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	job := New()
	job.InputName = in.InputName
	job.InputSize = int64(len(in.Audio))
	job.Options = in.Options

	s.logger.Info("creating new job",
		slog.String("job_id", job.ID),
		slog.String("input", in.InputName),
		slog.Int64("input_bytes", job.InputSize),
		slog.String("preset", in.Options.Preset),
		slog.String("strategy", string(in.Options.Params.Strategy)),
		slog.String("output_format", string(in.Options.Format)),
	)

	if err := s.repo.Save(ctx, job); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	return job, nil
}

// Process runs a job to completion in the caller's goroutine and returns
// its final state. When the pipeline fails the failed job is returned along
// with the error.
func (s *TrimService) Process(ctx context.Context, in TrimInput) (*Job, error) {
	job, err := s.CreateJob(ctx, in)
	if err != nil {
		return nil, err
	}

	ctx, release := s.jobContext(ctx, job.ID)
	defer release()

	runErr := s.run(ctx, job, in.Audio)
	return job.Clone(), runErr
}

// Submit creates a job and runs it in the background. The job outlives the
// request that submitted it; only DeleteJob or the timeout stop it.
func (s *TrimService) Submit(ctx context.Context, in TrimInput) (*Job, error) {
	job, err := s.CreateJob(ctx, in)
	if err != nil {
		return nil, err
	}

	runCtx, release := s.jobContext(context.WithoutCancel(ctx), job.ID)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer release()
		_ = s.run(runCtx, job, in.Audio)
	}()

	return job.Clone(), nil
}

// Wait blocks until every submitted job has finished.
func (s *TrimService) Wait() {
	s.wg.Wait()
}

// jobContext derives the context a job runs under and registers it so
// DeleteJob can stop it. The returned release func must be called once the
// job reached a terminal state.
func (s *TrimService) jobContext(parent context.Context, jobID string) (context.Context, func()) {
	var ctx context.Context
	var cancel context.CancelFunc
	if s.timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, s.timeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}

	aj := &activeJob{cancel: cancel, done: make(chan struct{})}
	s.mu.Lock()
	s.active[jobID] = aj
	s.mu.Unlock()

	return ctx, func() {
		s.mu.Lock()
		delete(s.active, jobID)
		s.mu.Unlock()
		cancel()
		close(aj.done)
	}
}

// run executes the pipeline for job and records the outcome on it.
func (s *TrimService) run(ctx context.Context, job *Job, data []byte) (err error) {
	ctx, span := observe.StartSpan(ctx, "trim.job",
		trace.WithAttributes(
			attribute.String("job.id", job.ID),
			attribute.String("trim.strategy", string(job.Options.Params.Strategy)),
			attribute.String("audio.output_format", string(job.Options.Format)),
		),
	)
	defer func() { observe.EndSpan(span, err) }()

	logger := s.logger.With(slog.String("job_id", job.ID))

	if err = s.slots.Acquire(ctx, 1); err != nil {
		s.finish(ctx, logger, job, err)
		return err
	}
	s.metrics.ActiveTrims.Add(ctx, 1)
	defer func() {
		s.metrics.ActiveTrims.Add(context.WithoutCancel(ctx), -1)
		s.slots.Release(1)
	}()

	if err = job.Start(); err != nil {
		return err
	}
	s.save(ctx, logger, job)
	logger.Info("job started", slog.Int("input_bytes", len(data)))

	res, err := s.pipeline(ctx, logger, job, data)
	if err != nil {
		s.finish(ctx, logger, job, err)
		return err
	}

	job.SetResult(res.summary, res.object.Key, res.object.URL, res.object.Size)
	s.finish(ctx, logger, job, nil)
	return nil
}

type pipelineResult struct {
	summary trim.Summary
	object  storage.Object
}

func (s *TrimService) pipeline(ctx context.Context, logger *slog.Logger, job *Job, data []byte) (*pipelineResult, error) {
	opts := job.Options

	var buf *trim.SampleBuffer
	err := s.stage(ctx, job, observe.StageDecode, progressDecode, func(ctx context.Context) error {
		var err error
		buf, err = s.codec.Decode(ctx, data, job.InputName)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	s.metrics.AudioProcessed.Add(ctx, buf.Duration().Seconds())
	logger.Debug("decoded input",
		slog.Int("sample_rate", buf.SampleRate),
		slog.Int("channels", buf.Channels),
		slog.Float64("duration_sec", buf.Duration().Seconds()),
	)

	var res *trim.Result
	err = s.stage(ctx, job, observe.StageDetect, progressDetect, func(ctx context.Context) error {
		var err error
		res, err = s.trimmer.Trim(ctx, buf, opts.Params)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := res.Buffer
	if filters := opts.filters(); len(filters) > 0 {
		_ = s.stage(ctx, job, observe.StageFilter, progressFilter, func(context.Context) error {
			out = audio.ApplyFilters(out, filters...)
			return nil
		})
	}

	var encoded []byte
	err = s.stage(ctx, job, observe.StageEncode, progressEncode, func(ctx context.Context) error {
		var err error
		encoded, err = s.codec.Encode(ctx, out, opts.Format, opts.Quality)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}

	key := OutputName(job.InputName, opts.Format)
	var obj storage.Object
	err = s.stage(ctx, job, observe.StageStore, progressStore, func(ctx context.Context) error {
		var err error
		obj, err = s.store.Put(ctx, key, bytes.NewReader(encoded), opts.Format.ContentType())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("store output: %w", err)
	}

	return &pipelineResult{summary: res.Summary, object: obj}, nil
}

// stage runs fn as one named pipeline stage: it updates job progress, opens
// a span and records the stage latency.
func (s *TrimService) stage(ctx context.Context, job *Job, name string, progress int, fn func(context.Context) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	job.EnterStage(name, progress)

	ctx, span := observe.StartSpan(ctx, "trim."+name)
	start := time.Now()
	defer func() {
		s.metrics.RecordStage(ctx, name, time.Since(start))
		observe.EndSpan(span, err)
	}()

	return fn(ctx)
}

// finish moves the job to its terminal state, persists it and records the
// outcome. A nil err completes the job.
func (s *TrimService) finish(ctx context.Context, logger *slog.Logger, job *Job, err error) {
	// The job context may already be done; bookkeeping must still happen.
	ctx = context.WithoutCancel(ctx)
	strategy := string(job.Options.Params.Strategy)

	switch {
	case err == nil:
		_ = job.Complete()
		snapshot := job.Clone()
		var reduction float64
		if snapshot.Summary != nil {
			strategy = snapshot.Summary.Strategy
			reduction = snapshot.Summary.ReductionPercent
		}
		s.metrics.ReductionPercent.Record(ctx, reduction)
		s.metrics.RecordTrim(ctx, strategy, observe.StatusOK)
		logger.Info("job completed",
			slog.String("output", snapshot.OutputKey),
			slog.Int64("output_bytes", snapshot.OutputSize),
			slog.String("strategy", strategy),
			slog.Float64("reduction_percent", reduction),
		)
	case errors.Is(err, context.DeadlineExceeded):
		_ = job.Timeout()
		s.metrics.RecordTrim(ctx, strategy, observe.StatusError)
		logger.Warn("job timed out", slog.Duration("timeout", s.timeout))
	case errors.Is(err, context.Canceled):
		_ = job.Cancel()
		s.metrics.RecordTrim(ctx, strategy, observe.StatusError)
		logger.Info("job cancelled")
	default:
		code := trim.ErrorCode(err)
		_ = job.Fail(err.Error(), code)
		s.metrics.RecordTrim(ctx, strategy, observe.StatusError)
		logger.Error("job failed",
			slog.String("code", code),
			slog.String("error", err.Error()),
		)
	}

	s.save(ctx, logger, job)
}

func (s *TrimService) save(ctx context.Context, logger *slog.Logger, job *Job) {
	if err := s.repo.Save(ctx, job); err != nil {
		logger.Error("failed to save job", slog.String("error", err.Error()))
	}
}

// GetJob retrieves a job by ID.
func (s *TrimService) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// ListJobs returns the jobs matching filter, oldest first.
func (s *TrimService) ListJobs(ctx context.Context, filter ListFilter) ([]*Job, error) {
	return s.repo.List(ctx, filter)
}

// OpenOutput returns a reader for the trimmed file of a completed job.
// The caller is responsible for closing the returned ReadCloser.
func (s *TrimService) OpenOutput(ctx context.Context, id string) (io.ReadCloser, *Job, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if job.Status != StatusCompleted || job.OutputKey == "" {
		return nil, job, ErrNoOutput
	}

	rc, err := s.store.Open(ctx, job.OutputKey)
	if err != nil {
		return nil, job, err
	}
	return rc, job, nil
}

// DeleteJob stops the job if it is still running, removes its output and
// forgets it.
func (s *TrimService) DeleteJob(ctx context.Context, id string) error {
	s.mu.Lock()
	aj, running := s.active[id]
	s.mu.Unlock()
	if running {
		aj.cancel()
		select {
		case <-aj.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if job.OutputKey != "" {
		if err := s.store.Delete(ctx, job.OutputKey); err != nil {
			s.logger.Error("failed to delete output",
				slog.String("job_id", id),
				slog.String("key", job.OutputKey),
				slog.String("error", err.Error()),
			)
			return err
		}
	}

	s.logger.Info("deleting job", slog.String("job_id", id), slog.Bool("was_running", running))
	return s.repo.Delete(ctx, id)
}
