package types

import (
	"errors"
	"fmt"
)

// ErrorClass is the failure taxonomy the orchestrator acts on. Stage adapters
// classify their own errors; the orchestrator never inspects raw service shapes.
type ErrorClass string

const (
	// ClassTransient: timeout, rate limit — retryable with backoff.
	ClassTransient ErrorClass = "transient"
	// ClassNonRetryable: auth failure, invalid request, quota exhausted.
	ClassNonRetryable ErrorClass = "non_retryable"
	// ClassResource: missing/empty local assets, filesystem failure. Fatal.
	ClassResource ErrorClass = "resource"
	// ClassRender: composition or validation failure. Deterministic, never retried.
	ClassRender ErrorClass = "render"
	// ClassUpload: publish failure. Non-fatal to the overall run.
	ClassUpload ErrorClass = "upload"
)

// ErrNoAudioAvailable signals an empty or matchless audio library.
// It is a setup problem, not a transient failure.
var ErrNoAudioAvailable = errors.New("no audio tracks available")

// PipelineError carries a classified stage failure back to the orchestrator.
type PipelineError struct {
	Class    ErrorClass
	Attempts int
	Err      error
}

func (e *PipelineError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("%s error after %d attempts: %v", e.Class, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s error: %v", e.Class, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// Transient wraps err as a retryable failure.
func Transient(err error) *PipelineError {
	return &PipelineError{Class: ClassTransient, Attempts: 1, Err: err}
}

// NonRetryable wraps err as a failure retrying would not change.
func NonRetryable(err error) *PipelineError {
	return &PipelineError{Class: ClassNonRetryable, Attempts: 1, Err: err}
}

// Resource wraps err as a fatal local-asset or filesystem failure.
func Resource(err error) *PipelineError {
	return &PipelineError{Class: ClassResource, Attempts: 1, Err: err}
}

// Render wraps err as a fatal, deterministic composition failure.
func Render(err error) *PipelineError {
	return &PipelineError{Class: ClassRender, Attempts: 1, Err: err}
}

// Upload wraps err as a non-fatal publish failure.
func Upload(err error) *PipelineError {
	return &PipelineError{Class: ClassUpload, Attempts: 1, Err: err}
}

// ClassOf reports the classification of err. Unclassified errors count as
// non-retryable so an unknown failure is never retried blindly.
func ClassOf(err error) ErrorClass {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Class
	}
	return ClassNonRetryable
}

// AttemptsOf reports how many attempts the failing stage made.
func AttemptsOf(err error) int {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Attempts
	}
	return 1
}

// IsTransient reports whether err would be worth retrying.
func IsTransient(err error) bool {
	return ClassOf(err) == ClassTransient
}
