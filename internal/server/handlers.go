package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/audiotrim/internal/audio"
	"github.com/maauso/audiotrim/internal/job"
	"github.com/maauso/audiotrim/internal/preset"
	"github.com/maauso/audiotrim/internal/storage"
	"github.com/maauso/audiotrim/internal/trim"
)

// HTTP-only error codes. Pipeline errors use the codes from package trim.
const (
	codeMissingFile    = "MISSING_FILE"
	codeFileTooLarge   = "FILE_TOO_LARGE"
	codeUnknownPreset  = "UNKNOWN_PRESET"
	codeJobNotFound    = "JOB_NOT_FOUND"
	codeOutputNotReady = "OUTPUT_NOT_READY"
	codeOutputNotFound = "OUTPUT_NOT_FOUND"
	codeTimeout        = "TIMEOUT"
)

// defaultMaxUploadBytes matches the MAX_UPLOAD_MB default.
const defaultMaxUploadBytes = 50 << 20

// formOverhead allows for multipart headers and text fields on top of the
// audio file itself.
const formOverhead = 64 << 10

// multipartMemory is how much of an upload is buffered in memory before
// the multipart reader spills to disk.
const multipartMemory = 8 << 20

// TrimService is the use case the handlers drive.
type TrimService interface {
	Process(ctx context.Context, in job.TrimInput) (*job.Job, error)
	Submit(ctx context.Context, in job.TrimInput) (*job.Job, error)
	GetJob(ctx context.Context, id string) (*job.Job, error)
	ListJobs(ctx context.Context, filter job.ListFilter) ([]*job.Job, error)
	OpenOutput(ctx context.Context, id string) (io.ReadCloser, *job.Job, error)
	DeleteJob(ctx context.Context, id string) error
}

var _ TrimService = (*job.TrimService)(nil)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service        TrimService
	presets        *preset.Registry
	validator      *validator.Validate
	logger         *slog.Logger
	maxUploadBytes int64
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithMaxUploadBytes limits the size of request bodies on upload endpoints.
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *Handlers) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// NewHandlers creates a new Handlers instance. A nil registry serves the
// built-in presets.
func NewHandlers(service TrimService, presets *preset.Registry, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	if presets == nil {
		presets = preset.Builtin()
	}
	h := &Handlers{
		service:        service,
		presets:        presets,
		validator:      validator.New(),
		logger:         logger,
		maxUploadBytes: defaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// ListPresets handles GET /presets requests.
func (h *Handlers) ListPresets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, PresetListResponse{Presets: h.presets.List()})
}

// Trim handles POST /trim requests. The upload is trimmed before the
// response is written.
func (h *Handlers) Trim(w http.ResponseWriter, r *http.Request) {
	input, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	result, err := h.service.Process(r.Context(), input)
	if err != nil {
		h.writeServiceError(w, err, result)
		return
	}

	h.logger.Info("trim completed",
		slog.String("job_id", result.ID),
		slog.String("output", result.OutputKey),
	)

	resp := TrimResponse{
		JobID:       result.ID,
		Status:      string(result.Status),
		OutputFile:  result.OutputKey,
		DownloadURL: downloadPath(result.ID),
		OutputURL:   result.OutputURL,
	}
	if result.Summary != nil {
		resp.Summary = *result.Summary
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateJob handles POST /jobs requests. The upload is trimmed in the
// background; clients poll GET /jobs/{id}.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	input, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	created, err := h.service.Submit(r.Context(), input)
	if err != nil {
		h.writeServiceError(w, err, nil)
		return
	}

	h.logger.Info("job submitted",
		slog.String("job_id", created.ID),
		slog.String("input", input.InputName),
	)

	writeJSON(w, http.StatusAccepted, CreateJobResponse{
		ID:        created.ID,
		Status:    string(created.Status),
		StatusURL: "/jobs/" + created.ID,
	})
}

// ListJobs handles GET /jobs requests. Optional query parameters: status
// and limit.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	var filter job.ListFilter
	query := r.URL.Query()
	if v := query.Get("status"); v != "" {
		status, err := job.ParseStatus(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), trim.CodeInvalidParameter)
			return
		}
		filter.Status = status
	}
	if v := query.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", trim.CodeInvalidParameter)
			return
		}
		filter.Limit = n
	}

	jobs, err := h.service.ListJobs(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list jobs", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list jobs", trim.CodeInternal)
		return
	}

	resp := JobListResponse{Jobs: make([]JobResponse, 0, len(jobs))}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, toJobResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetJob handles GET /jobs/{id} requests.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	found, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", codeJobNotFound)
			return
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", trim.CodeInternal)
		return
	}

	writeJSON(w, http.StatusOK, toJobResponse(found))
}

// DeleteJob handles DELETE /jobs/{id} requests. Running jobs are cancelled.
func (h *Handlers) DeleteJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	if err := h.service.DeleteJob(r.Context(), jobID); err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", codeJobNotFound)
			return
		}
		h.logger.Error("failed to delete job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to delete job", trim.CodeInternal)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Download handles GET /download/{id} requests by streaming the trimmed file.
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	rc, found, err := h.service.OpenOutput(r.Context(), jobID)
	if err != nil {
		switch {
		case errors.Is(err, job.ErrJobNotFound):
			writeError(w, http.StatusNotFound, "job not found", codeJobNotFound)
		case errors.Is(err, job.ErrNoOutput):
			writeError(w, http.StatusConflict, "job has not produced an output yet", codeOutputNotReady)
		case errors.Is(err, storage.ErrObjectNotFound):
			writeError(w, http.StatusNotFound, "output file no longer exists", codeOutputNotFound)
		default:
			h.logger.Error("failed to open output",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to open output", trim.CodeInternal)
		}
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", found.Options.Format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", found.OutputKey))
	if found.OutputSize > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(found.OutputSize, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("output stream interrupted",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}

// readUpload parses the multipart request into a TrimInput. It writes the
// error response itself and reports false when the request is unusable.
func (h *Handlers) readUpload(w http.ResponseWriter, r *http.Request) (job.TrimInput, bool) {
	limit := h.maxUploadBytes + formOverhead
	if r.ContentLength > limit {
		h.writeTooLarge(w)
		return job.TrimInput{}, false
	}

	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeTooLarge(w)
			return job.TrimInput{}, false
		}
		writeError(w, http.StatusBadRequest, "expected a multipart/form-data body", trim.CodeInvalidParameter)
		return job.TrimInput{}, false
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	form, err := parseTrimForm(r.MultipartForm)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), trim.CodeInvalidParameter)
		return job.TrimInput{}, false
	}
	if err := h.validator.Struct(form); err != nil {
		h.logger.Warn("request validation failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error(), trim.CodeInvalidParameter)
		return job.TrimInput{}, false
	}

	opts, err := h.resolveOptions(form)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), codeUnknownPreset)
		return job.TrimInput{}, false
	}

	file, header, err := r.FormFile(fieldAudioFile)
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio_file is required", codeMissingFile)
		return job.TrimInput{}, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload", codeMissingFile)
		return job.TrimInput{}, false
	}
	if int64(len(data)) > h.maxUploadBytes {
		h.writeTooLarge(w)
		return job.TrimInput{}, false
	}

	return job.TrimInput{
		InputName: header.Filename,
		Audio:     data,
		Options:   opts,
	}, true
}

func (h *Handlers) writeTooLarge(w http.ResponseWriter) {
	writeError(w, http.StatusRequestEntityTooLarge,
		fmt.Sprintf("upload exceeds the %d MB limit", h.maxUploadBytes>>20), codeFileTooLarge)
}

// resolveOptions starts from the named preset and applies the form's
// overrides.
func (h *Handlers) resolveOptions(form TrimForm) (job.Options, error) {
	p := h.presets.Default()
	if form.Preset != "" {
		var err error
		if p, err = h.presets.Get(form.Preset); err != nil {
			return job.Options{}, err
		}
	}

	opts := job.Options{
		Preset:    p.Name,
		Params:    p.Params,
		Format:    p.OutputFormat,
		Quality:   p.Quality,
		Normalize: p.Normalize,
		Denoise:   p.Denoise,
	}

	switch form.DetectionMethod {
	case "":
	case "manual":
		opts.Params.Strategy = trim.StrategyFixed
	default:
		opts.Params.Strategy = trim.Strategy(form.DetectionMethod)
	}
	if form.MinSilence != nil {
		opts.Params.MinSilenceMs = *form.MinSilence
	}
	if form.Threshold != nil {
		opts.Params.ThresholdDB = *form.Threshold
	}
	if form.KeepSilence != nil {
		opts.Params.KeepSilenceMs = *form.KeepSilence
	}
	if form.SeekStep != nil {
		opts.Params.SeekStepMs = *form.SeekStep
	}
	if form.OutputFormat != "" {
		opts.Format = audio.Format(form.OutputFormat)
	}
	if form.Bitrate != "" {
		opts.Quality.Bitrate = form.Bitrate
	}
	if form.SampleFormat != "" {
		opts.Quality.SampleFormat = form.SampleFormat
	}
	if form.Normalize != nil {
		opts.Normalize = *form.Normalize
	}
	if form.Denoise != nil {
		opts.Denoise = *form.Denoise
	}
	return opts, nil
}

// parseTrimForm reads the optional text fields of the upload form.
func parseTrimForm(mf *multipart.Form) (TrimForm, error) {
	value := func(name string) string {
		if vs := mf.Value[name]; len(vs) > 0 {
			return strings.TrimSpace(vs[0])
		}
		return ""
	}

	form := TrimForm{
		Preset:          strings.ToLower(value(fieldPreset)),
		DetectionMethod: strings.ToLower(value(fieldDetectionMethod)),
		OutputFormat:    strings.ToLower(value(fieldOutputFormat)),
		Bitrate:         strings.ToLower(value(fieldBitrate)),
		SampleFormat:    strings.ToLower(value(fieldSampleFormat)),
	}

	var errs []error
	intField := func(name string) *int {
		v := value(name)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %q is not an integer", name, v))
			return nil
		}
		return &n
	}
	boolField := func(name string) *bool {
		v := value(name)
		if v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %q is not a boolean", name, v))
			return nil
		}
		return &b
	}

	form.MinSilence = intField(fieldMinSilence)
	form.KeepSilence = intField(fieldKeepSilence)
	form.SeekStep = intField(fieldSeekStep)
	form.Normalize = boolField(fieldNormalize)
	form.Denoise = boolField(fieldDenoise)
	if v := value(fieldThreshold); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %q is not a number", fieldThreshold, v))
		} else {
			form.Threshold = &f
		}
	}

	return form, errors.Join(errs...)
}

// writeServiceError maps a pipeline error to its HTTP status and code.
// A failed job, when known, is named in the log.
func (h *Handlers) writeServiceError(w http.ResponseWriter, err error, failed *job.Job) {
	status, code := statusForError(err)

	attrs := []any{
		slog.String("code", code),
		slog.String("error", err.Error()),
	}
	if failed != nil {
		attrs = append(attrs, slog.String("job_id", failed.ID))
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("trim failed", attrs...)
		if code == trim.CodeInternal {
			writeError(w, status, "internal server error", code)
			return
		}
	} else {
		h.logger.Warn("trim rejected", attrs...)
	}

	writeError(w, status, err.Error(), code)
}

// statusForError returns the HTTP status and error code for err.
func statusForError(err error) (int, string) {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, codeTimeout
	}

	code := trim.ErrorCode(err)
	switch code {
	case trim.CodeUnsupportedFormat:
		return http.StatusUnsupportedMediaType, code
	case trim.CodeCorruptData, trim.CodeNoSpeechDetected:
		return http.StatusUnprocessableEntity, code
	case trim.CodeInvalidParameter:
		return http.StatusBadRequest, code
	default:
		return http.StatusInternalServerError, code
	}
}

func downloadPath(jobID string) string {
	return "/download/" + jobID
}

func toJobResponse(j *job.Job) JobResponse {
	resp := JobResponse{
		ID:         j.ID,
		Status:     string(j.Status),
		Stage:      j.Stage,
		Progress:   j.Progress,
		Error:      j.Error,
		Code:       j.ErrorCode,
		InputName:  j.InputName,
		Preset:     j.Options.Preset,
		Strategy:   string(j.Options.Params.Strategy),
		Summary:    j.Summary,
		OutputFile: j.OutputKey,
		OutputURL:  j.OutputURL,
		CreatedAt:  j.CreatedAt,
	}
	if j.Status == job.StatusCompleted && j.OutputKey != "" {
		resp.DownloadURL = downloadPath(j.ID)
	}
	if !j.CompletedAt.IsZero() {
		completed := j.CompletedAt
		resp.CompletedAt = &completed
	}
	return resp
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
