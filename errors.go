package transcode

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every way a transcode can fail. The set is closed:
// upstream validation failures (missing input, unsupported extension,
// output collision) are owned by the caller and never reach the pipeline.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNoVideoTrack
	KindReaderCreationFailed
	KindCannotAttachOutput
	KindReaderStartFailed
	KindReaderFailed
	KindWriterCreationFailed
	KindCannotAddVideoInput
	KindCannotAddAudioInput
	KindWriterStartFailed
	KindWriterFailed
)

func (k ErrorKind) String() string {
	switch k {
	case KindNoVideoTrack:
		return "no video track"
	case KindReaderCreationFailed:
		return "reader creation failed"
	case KindCannotAttachOutput:
		return "cannot attach output"
	case KindReaderStartFailed:
		return "reader start failed"
	case KindReaderFailed:
		return "reader failed"
	case KindWriterCreationFailed:
		return "writer creation failed"
	case KindCannotAddVideoInput:
		return "cannot add video input"
	case KindCannotAddAudioInput:
		return "cannot add audio input"
	case KindWriterStartFailed:
		return "writer start failed"
	case KindWriterFailed:
		return "writer failed"
	default:
		return "unknown"
	}
}

// Error is a classified transcode failure. The underlying backend
// diagnostic is preserved and reachable via Unwrap.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// newError wraps a backend diagnostic with its classification.
func newError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// errorf builds a classified error with a formatted diagnostic.
func errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the classification of err, or KindUnknown if err is not a
// transcode error.
func KindOf(err error) ErrorKind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindUnknown
}
