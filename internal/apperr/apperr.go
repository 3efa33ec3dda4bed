// Package apperr defines the error taxonomy shared by the timeline model,
// the edit engine, the project store and the encoder boundary.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	KindNotFound        Kind = "NOT_FOUND"
	KindInvalidInput    Kind = "INVALID_INPUT"
	KindEncodingFailure Kind = "ENCODING_FAILURE"
	KindStorageFailure  Kind = "STORAGE_FAILURE"
	KindResourceFailure Kind = "RESOURCE_FAILURE"
)

// Stage names the operation an error originated from.
type Stage string

const (
	StageProject    Stage = "project"
	StageImport     Stage = "import"
	StageTrim       Stage = "trim"
	StageSplit      Stage = "split"
	StageMerge      Stage = "merge"
	StageEffects    Stage = "effects"
	StageOverlay    Stage = "overlay"
	StageMix        Stage = "mix"
	StageTransition Stage = "transition"
	StageReorder    Stage = "reorder"
	StageAudio      Stage = "audio"
	StageStore      Stage = "store"
	StageExport     Stage = "export"
)

// Error is a classified failure carrying the stage it happened in.
type Error struct {
	Kind    Kind
	Stage   Stage
	Message string
	// Retryable is only meaningful for encoding failures.
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	prefix := string(e.Kind)
	if e.Stage != "" {
		prefix = fmt.Sprintf("%s/%s", e.Stage, e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", prefix, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error without a cause.
func New(kind Kind, stage Stage, message string) *Error {
	return &Error{Kind: kind, Stage: stage, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, stage Stage, format string, args ...any) *Error {
	return &Error{Kind: kind, Stage: stage, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and stage to an underlying error.
func Wrap(kind Kind, stage Stage, message string, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Message: message, Err: err}
}

func NotFound(stage Stage, format string, args ...any) *Error {
	return Newf(KindNotFound, stage, format, args...)
}

func Invalid(stage Stage, format string, args ...any) *Error {
	return Newf(KindInvalidInput, stage, format, args...)
}

func Storage(stage Stage, message string, err error) *Error {
	return Wrap(KindStorageFailure, stage, message, err)
}

// Encoding reports a non-successful encoder run. The diagnostic is the
// encoder's stderr tail.
func Encoding(stage Stage, diagnostic string, retryable bool) *Error {
	return &Error{
		Kind:      KindEncodingFailure,
		Stage:     stage,
		Message:   "encoder failed: " + diagnostic,
		Retryable: retryable,
	}
}

func Resource(stage Stage, message string, err error) *Error {
	return Wrap(KindResourceFailure, stage, message, err)
}

// WithStage returns err re-tagged with stage when it is an *Error without one.
func WithStage(err error, stage Stage) error {
	var e *Error
	if errors.As(err, &e) && e.Stage == "" {
		clone := *e
		clone.Stage = stage
		return &clone
	}
	return err
}

// Restage returns err re-tagged with stage whatever stage it carried. The
// editing service uses it so store failures report the operation that hit them.
func Restage(err error, stage Stage) error {
	var e *Error
	if errors.As(err, &e) {
		clone := *e
		clone.Stage = stage
		return &clone
	}
	return err
}

// Is reports whether any error in err's chain is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the kind of err, or "" for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// StageOf returns the stage of err, or "" when unknown.
func StageOf(err error) Stage {
	var e *Error
	if errors.As(err, &e) {
		return e.Stage
	}
	return ""
}
