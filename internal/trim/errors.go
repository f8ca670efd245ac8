package trim

import "errors"

// Static errors surfaced by the trimming pipeline and its adapters.
var (
	// ErrUnsupportedFormat is returned when the input container or codec
	// cannot be decoded, or an output format is not supported.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrCorruptData is returned when input bytes claim a supported format
	// but cannot be decoded.
	ErrCorruptData = errors.New("corrupt audio data")
	// ErrNoSpeechDetected is returned when every part of the input was
	// classified as silence and there is nothing to keep.
	ErrNoSpeechDetected = errors.New("no audio segments found after trimming")
	// ErrInvalidParameter is returned when a request parameter is outside
	// its documented range. It is raised before any audio is processed.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// Error codes reported to API clients.
const (
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	CodeCorruptData       = "CORRUPT_DATA"
	CodeNoSpeechDetected  = "NO_SPEECH_DETECTED"
	CodeInvalidParameter  = "VALIDATION_ERROR"
	CodeInternal          = "INTERNAL_ERROR"
)

// ErrorCode maps an error from the pipeline to a stable machine-readable code.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnsupportedFormat):
		return CodeUnsupportedFormat
	case errors.Is(err, ErrCorruptData):
		return CodeCorruptData
	case errors.Is(err, ErrNoSpeechDetected):
		return CodeNoSpeechDetected
	case errors.Is(err, ErrInvalidParameter):
		return CodeInvalidParameter
	default:
		return CodeInternal
	}
}
