package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/jonathan/cv-anonymizer/internal/pipeline"
	"github.com/jonathan/cv-anonymizer/internal/pipeline/steps"
	"github.com/jonathan/cv-anonymizer/internal/upload"
)

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		validationErr   *pipeline.ValidationError
		uploadErr       *upload.Error
		unavailableErr  *pipeline.UnavailableError
		collaboratorErr *pipeline.CollaboratorError
		formattingErr   *pipeline.FormattingError
		dependencyErr   *steps.DependencyError
		transitionErr   *pipeline.TransitionError
	)

	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &validationErr), errors.As(err, &uploadErr):
		return http.StatusBadRequest
	case errors.As(err, &unavailableErr):
		return http.StatusServiceUnavailable
	case errors.As(err, &collaboratorErr):
		return collaboratorStatus(collaboratorErr.Code)
	case errors.As(err, &formattingErr):
		return http.StatusInternalServerError
	case errors.Is(err, pipeline.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrSessionBusy),
		errors.Is(err, pipeline.ErrNoRecord),
		errors.Is(err, context.Canceled),
		errors.As(err, &dependencyErr),
		errors.As(err, &transitionErr):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func collaboratorStatus(code pipeline.FailureCode) int {
	switch code {
	case pipeline.FailureBlocked:
		return http.StatusUnprocessableEntity
	case pipeline.FailureQuota:
		return http.StatusTooManyRequests
	case pipeline.FailureTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error     string          `json:"error"`
	RequestID string          `json:"request_id,omitempty"`
	Session   *pipeline.State `json:"session,omitempty"`
}

// writeError replies with the user-facing message for err
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	message := pipeline.UserMessage(err)
	var uploadErr *upload.Error
	if errors.As(err, &uploadErr) {
		message = uploadErr.Message
	}

	log := s.logger.Warn()
	if status >= http.StatusInternalServerError {
		log = s.logger.Error()
	}
	log.Err(err).
		Str("request_id", GetRequestID(r.Context())).
		Int("status", status).
		Msg("request failed")

	s.jsonResponse(w, status, ErrorResponse{Error: message, RequestID: GetRequestID(r.Context())})
}
