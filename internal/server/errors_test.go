package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/cv-anonymizer/internal/pipeline"
	"github.com/jonathan/cv-anonymizer/internal/pipeline/steps"
	"github.com/jonathan/cv-anonymizer/internal/upload"
)

func TestHTTPStatus(t *testing.T) {
	collaborator := func(code pipeline.FailureCode) error {
		return &pipeline.StageError{Step: steps.Analysis, Err: &pipeline.CollaboratorError{Service: "gemini", Code: code}}
	}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", &pipeline.ValidationError{Message: "bad"}, http.StatusBadRequest},
		{"upload", &upload.Error{Field: "File", Message: "No file uploaded"}, http.StatusBadRequest},
		{"unavailable", &pipeline.UnavailableError{Service: "ocr"}, http.StatusServiceUnavailable},
		{"blocked", collaborator(pipeline.FailureBlocked), http.StatusUnprocessableEntity},
		{"quota", collaborator(pipeline.FailureQuota), http.StatusTooManyRequests},
		{"timeout", collaborator(pipeline.FailureTimeout), http.StatusGatewayTimeout},
		{"credentials", collaborator(pipeline.FailureInvalidCredentials), http.StatusBadGateway},
		{"generic", collaborator(pipeline.FailureGeneric), http.StatusBadGateway},
		{"formatting", &pipeline.FormattingError{Format: "pdf"}, http.StatusInternalServerError},
		{"not found", pipeline.ErrSessionNotFound, http.StatusNotFound},
		{"busy", fmt.Errorf("x: %w", pipeline.ErrSessionBusy), http.StatusConflict},
		{"no record", pipeline.ErrNoRecord, http.StatusConflict},
		{"cancelled", &pipeline.StageError{Step: steps.OCR, Err: context.Canceled}, http.StatusConflict},
		{"dependency", &steps.DependencyError{Step: steps.Generation}, http.StatusConflict},
		{"transition", &pipeline.TransitionError{Step: steps.OCR}, http.StatusConflict},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}
