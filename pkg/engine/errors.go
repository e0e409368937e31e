package engine

import (
	"errors"
	"fmt"
)

// ErrorClass classifies an error for retry and propagation logic.
type ErrorClass string

const (
	// ErrorClassManifest indicates an invalid manifest (cycle, duplicate
	// identity, dangling dependency). Fatal: nothing is applied.
	ErrorClassManifest ErrorClass = "manifest"

	// ErrorClassProbe indicates an inspection failure. Never fatal; the
	// planner treats the resource as absent and schedules a safe re-apply.
	ErrorClassProbe ErrorClass = "probe"

	// ErrorClassTransient indicates a temporary failure (network timeout,
	// connection reset) that may succeed on retry.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassIntegrity indicates a checksum mismatch on fetched content.
	// Fatal to the resource and never retried.
	ErrorClassIntegrity ErrorClass = "integrity"

	// ErrorClassDependency indicates a resource was skipped because a
	// dependency failed. It is a propagated outcome, not an apply attempt.
	ErrorClassDependency ErrorClass = "dependency"

	// ErrorClassPermanent indicates a non-recoverable execution failure.
	ErrorClassPermanent ErrorClass = "permanent"
)

// EngineError is a classified error with resource context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the error classification for retry and propagation logic.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Resource is the resource identity that caused the error, if any.
	Resource ResourceID `json:"resource,omitempty"`

	// Verb is the action verb being executed when the error occurred.
	Verb Verb `json:"verb,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	switch {
	case e.Resource != "" && e.Verb != "":
		return fmt.Sprintf("[%s] %s (resource=%s, verb=%s)%s", e.Class, e.Message, e.Resource, e.Verb, e.unwrapSuffix())
	case e.Resource != "":
		return fmt.Sprintf("[%s] %s (resource=%s)%s", e.Class, e.Message, e.Resource, e.unwrapSuffix())
	default:
		return fmt.Sprintf("[%s] %s%s", e.Class, e.Message, e.unwrapSuffix())
	}
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

func (e *EngineError) unwrapSuffix() string {
	if e.Err != nil {
		return ": " + e.Err.Error()
	}
	return ""
}

// Is implements class-based equality for errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class
}

// WithResource adds resource context to an error.
func (e *EngineError) WithResource(id ResourceID) *EngineError {
	e.Resource = id
	return e
}

// WithVerb adds the executing verb to an error.
func (e *EngineError) WithVerb(verb Verb) *EngineError {
	e.Verb = verb
	return e
}

// NewManifestError creates a fatal manifest validation error.
func NewManifestError(message string, err error) *EngineError {
	return &EngineError{Class: ErrorClassManifest, Message: message, Err: err}
}

// NewProbeError creates a non-fatal inspection error.
func NewProbeError(message string, err error) *EngineError {
	return &EngineError{Class: ErrorClassProbe, Message: message, Err: err}
}

// NewTransientError creates a retryable execution error.
func NewTransientError(message string, err error) *EngineError {
	return &EngineError{Class: ErrorClassTransient, Message: message, Err: err}
}

// NewIntegrityError creates a checksum-mismatch error.
func NewIntegrityError(message string, err error) *EngineError {
	return &EngineError{Class: ErrorClassIntegrity, Message: message, Err: err}
}

// NewDependencyError creates a propagated dependency-failure error.
func NewDependencyError(message string, err error) *EngineError {
	return &EngineError{Class: ErrorClassDependency, Message: message, Err: err}
}

// NewPermanentError creates a non-recoverable execution error.
func NewPermanentError(message string, err error) *EngineError {
	return &EngineError{Class: ErrorClassPermanent, Message: message, Err: err}
}

func classOf(err error) (ErrorClass, bool) {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class, true
	}
	return "", false
}

// IsManifest returns true if the error is a fatal manifest error.
func IsManifest(err error) bool {
	c, ok := classOf(err)
	return ok && c == ErrorClassManifest
}

// IsTransient returns true if the error is classified as transient.
func IsTransient(err error) bool {
	c, ok := classOf(err)
	return ok && c == ErrorClassTransient
}

// IsIntegrity returns true if the error is a checksum mismatch.
func IsIntegrity(err error) bool {
	c, ok := classOf(err)
	return ok && c == ErrorClassIntegrity
}

// IsRetryable returns true if the error can be retried. Only transient
// failures qualify: retrying a corrupt source or a permanent failure
// rarely helps.
func IsRetryable(err error) bool {
	return IsTransient(err)
}
