// Package server provides the HTTP API for the audio trimmer.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"time"

	"github.com/maauso/audiotrim/internal/preset"
	"github.com/maauso/audiotrim/internal/trim"
)

// Multipart form fields accepted by POST /trim and POST /jobs.
const (
	fieldAudioFile       = "audio_file"
	fieldPreset          = "preset"
	fieldDetectionMethod = "detection_method"
	fieldMinSilence      = "min_silence"
	fieldThreshold       = "threshold"
	fieldKeepSilence     = "keep_silence"
	fieldSeekStep        = "seek_step"
	fieldOutputFormat    = "output_format"
	fieldBitrate         = "bitrate"
	fieldSampleFormat    = "sample_format"
	fieldNormalize       = "normalize_audio"
	fieldDenoise         = "remove_noise"
)

// TrimForm holds the optional overrides sent with an upload. Nil or empty
// fields keep the value of the selected preset.
type TrimForm struct {
	// Preset names the base settings. Default: "default".
	Preset string
	// DetectionMethod is fixed, adaptive or hybrid; "manual" is accepted
	// as an alias of fixed.
	DetectionMethod string `validate:"omitempty,oneof=manual fixed adaptive hybrid"`
	// MinSilence is the minimum silence length in milliseconds.
	MinSilence *int
	// Threshold is the silence threshold in dBFS.
	Threshold *float64
	// KeepSilence is the padding kept around speech in milliseconds.
	KeepSilence *int
	// SeekStep is the analysis step in milliseconds.
	SeekStep *int
	// OutputFormat is mp3, wav or flac.
	OutputFormat string `validate:"omitempty,oneof=mp3 wav flac"`
	// Bitrate applies to mp3 output.
	Bitrate string `validate:"omitempty,oneof=128k 192k 256k 320k"`
	// SampleFormat applies to wav and flac output.
	SampleFormat string `validate:"omitempty,oneof=s16 s24 s32"`
	// Normalize enables peak normalization.
	Normalize *bool
	// Denoise enables the noise gate.
	Denoise *bool
}

// TrimResponse is the HTTP response for a synchronous trim.
type TrimResponse struct {
	// JobID identifies the job that produced the output.
	JobID string `json:"job_id"`
	// Status is the final job status.
	Status string `json:"status"`
	// Summary reports what the trim removed.
	Summary trim.Summary `json:"summary"`
	// OutputFile is the stored file name.
	OutputFile string `json:"output_file"`
	// DownloadURL is the API path that serves the output.
	DownloadURL string `json:"download_url"`
	// OutputURL is the object URL when the output is stored in S3.
	OutputURL string `json:"output_url,omitempty"`
}

// CreateJobResponse is the HTTP response after submitting a job.
type CreateJobResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Status is the initial job status.
	Status string `json:"status"`
	// StatusURL is the API path to poll.
	StatusURL string `json:"status_url"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	ID          string        `json:"id"`
	Status      string        `json:"status"`
	Stage       string        `json:"stage,omitempty"`
	Progress    int           `json:"progress"`
	Error       string        `json:"error,omitempty"`
	Code        string        `json:"code,omitempty"`
	InputName   string        `json:"input_name"`
	Preset      string        `json:"preset,omitempty"`
	Strategy    string        `json:"strategy"`
	Summary     *trim.Summary `json:"summary,omitempty"`
	OutputFile  string        `json:"output_file,omitempty"`
	DownloadURL string        `json:"download_url,omitempty"`
	OutputURL   string        `json:"output_url,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

// JobListResponse is the HTTP response for listing jobs.
type JobListResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

// PresetListResponse is the HTTP response for listing presets.
type PresetListResponse struct {
	Presets []preset.Preset `json:"presets"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
