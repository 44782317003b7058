package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonathan/cv-anonymizer/internal/pipeline/steps"
)

// Sentinel errors
var (
	// ErrSessionBusy is returned when a stage is started while another one is processing
	ErrSessionBusy = errors.New("another stage is already processing for this session")
	// ErrNoRecord is returned when an operation needs the analyzed record before analysis completed
	ErrNoRecord = errors.New("no analyzed CV is available for this session")
	// ErrSessionNotFound is returned by the store for unknown or expired sessions
	ErrSessionNotFound = errors.New("session not found")
)

// ValidationError reports a rejected input, such as an upload of the wrong type or size.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// UnavailableError reports a collaborator that cannot be called at all,
// typically because its credential is not configured.
type UnavailableError struct {
	Service string
	Message string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %s", e.Service, e.Message)
}

// FailureCode classifies a collaborator failure
type FailureCode string

// Collaborator failure codes
const (
	FailureGeneric            FailureCode = "failed"
	FailureBlocked            FailureCode = "blocked"
	FailureInvalidCredentials FailureCode = "invalid_credentials"
	FailureQuota              FailureCode = "quota_exceeded"
	FailureTimeout            FailureCode = "timeout"
)

// CollaboratorError reports a failed OCR or AI call. Message is safe to show to users.
type CollaboratorError struct {
	Service string
	Code    FailureCode
	Message string
	Cause   error
}

func (e *CollaboratorError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s failed: %s: %v", e.Service, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s failed: %s", e.Service, e.Message)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Cause
}

// Blocked reports whether the collaborator refused the content on safety grounds
func (e *CollaboratorError) Blocked() bool {
	return e.Code == FailureBlocked
}

// FormattingError reports a failure while producing the output artifact.
type FormattingError struct {
	Format string
	Cause  error
}

func (e *FormattingError) Error() string {
	return fmt.Sprintf("failed to generate %s document: %v", e.Format, e.Cause)
}

func (e *FormattingError) Unwrap() error {
	return e.Cause
}

// TransitionError reports an illegal stage status change.
type TransitionError struct {
	Step steps.ID
	From steps.Status
	To   steps.Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal transition for step %s: %s -> %s", e.Step, e.From, e.To)
}

// StageError wraps an error with the stage it occurred in.
type StageError struct {
	Step steps.ID
	Err  error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// UserMessage returns the single message shown to users for err.
// Collaborator messages are surfaced verbatim; anything unexpected becomes
// a generic message so internals do not leak.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var (
		validationErr   *ValidationError
		unavailableErr  *UnavailableError
		collaboratorErr *CollaboratorError
		formattingErr   *FormattingError
		dependencyErr   *steps.DependencyError
		transitionErr   *TransitionError
	)

	switch {
	case errors.As(err, &validationErr):
		return validationErr.Message
	case errors.As(err, &unavailableErr):
		return unavailableErr.Message
	case errors.As(err, &collaboratorErr):
		return collaboratorErr.Message
	case errors.As(err, &formattingErr):
		return "Failed to generate the anonymized document. Please try again."
	case errors.Is(err, context.Canceled):
		return "Processing was cancelled."
	case errors.Is(err, context.DeadlineExceeded):
		return "Processing timed out. Please try again."
	case errors.Is(err, ErrSessionBusy):
		return "This CV is already being processed."
	case errors.Is(err, ErrNoRecord):
		return "The CV has not been analyzed yet."
	case errors.Is(err, ErrSessionNotFound):
		return "Session not found or expired. Please upload the CV again."
	case errors.As(err, &dependencyErr), errors.As(err, &transitionErr):
		return "This step cannot run yet. Please complete the previous steps first."
	default:
		return "Error processing file. Please try again."
	}
}
