// Package pipeline drives a CV through upload, text extraction, AI analysis,
// anonymization and document generation, tracking the status of every stage.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/jonathan/cv-anonymizer/internal/pipeline/steps"
	"github.com/jonathan/cv-anonymizer/internal/redaction"
	"github.com/jonathan/cv-anonymizer/internal/rendering"
	"github.com/jonathan/cv-anonymizer/internal/types"
	"github.com/jonathan/cv-anonymizer/internal/upload"
)

// DefaultTimeout bounds each collaborator call
const DefaultTimeout = 2 * time.Minute

// TextExtractor is the OCR collaborator
type TextExtractor interface {
	Extract(ctx context.Context, doc Document) (Extraction, error)
}

// Analyzer is the AI-analysis collaborator
type Analyzer interface {
	Analyze(ctx context.Context, text string) (Analysis, error)
}

// ProgressEvent represents a stage status change
type ProgressEvent struct {
	SessionID string       `json:"session_id"`
	Step      steps.ID     `json:"step"`
	Status    steps.Status `json:"status"`
	Progress  int          `json:"progress"`
	Message   string       `json:"message,omitempty"`
}

// ProgressCallback is called after every stage status change
type ProgressCallback func(event ProgressEvent)

// Options configures a Controller
type Options struct {
	Extractor TextExtractor
	Analyzer  Analyzer
	Validator *upload.Validator
	Renderer  *rendering.Renderer
	// Timeout bounds each collaborator call. Zero means DefaultTimeout;
	// a negative value disables the bound.
	Timeout    time.Duration
	Logger     zerolog.Logger
	OnProgress ProgressCallback
}

// Controller runs pipeline stages against sessions. It keeps no per-document
// state, so one controller serves any number of concurrent sessions.
type Controller struct {
	extractor  TextExtractor
	analyzer   Analyzer
	validator  *upload.Validator
	renderer   *rendering.Renderer
	timeout    time.Duration
	logger     zerolog.Logger
	onProgress ProgressCallback
}

// NewController creates a controller, filling defaults for the validator,
// renderer and timeout.
func NewController(opts Options) *Controller {
	c := &Controller{
		extractor:  opts.Extractor,
		analyzer:   opts.Analyzer,
		validator:  opts.Validator,
		renderer:   opts.Renderer,
		timeout:    opts.Timeout,
		logger:     opts.Logger.With().Str("component", "pipeline").Logger(),
		onProgress: opts.OnProgress,
	}
	if c.validator == nil {
		c.validator = upload.NewValidator(upload.DefaultMaxBytes)
	}
	if c.renderer == nil {
		c.renderer = rendering.NewRenderer(nil)
	}
	if c.timeout == 0 {
		c.timeout = DefaultTimeout
	}
	return c
}

// Process runs upload, text extraction and analysis for doc, leaving the
// session ready for policy configuration and generation.
func (c *Controller) Process(ctx context.Context, s *Session, doc Document, cb ProgressCallback) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pipeline panic: %v", rec)
			s.mu.Lock()
			id := s.failCurrentLocked(err)
			s.mu.Unlock()
			c.emit(s, id, steps.StatusError, cb)
		}
	}()

	if err := c.Upload(s, doc, cb); err != nil {
		return err
	}
	if err := c.Extract(ctx, s, cb); err != nil {
		return err
	}
	return c.Analyze(ctx, s, cb)
}

// Upload validates doc and stores it in the session. An invalid file is
// rejected with a *ValidationError and leaves every stage untouched. A valid
// file replaces anything a previous document left in the session.
func (c *Controller) Upload(s *Session, doc Document, cb ProgressCallback) error {
	if err := c.validator.Validate(upload.NewFile(doc.Name, doc.ContentType, doc.Data)); err != nil {
		var uerr *upload.Error
		if errors.As(err, &uerr) {
			return &ValidationError{Field: uerr.Field, Message: uerr.Message}
		}
		return &ValidationError{Message: err.Error()}
	}

	s.mu.Lock()
	if running, busy := s.processing(); busy {
		s.mu.Unlock()
		return fmt.Errorf("upload: %w (%s)", ErrSessionBusy, running)
	}
	s.clear()
	s.document = &doc
	if err := s.transitionLocked(steps.Upload, steps.StatusProcessing); err != nil {
		s.mu.Unlock()
		return err
	}
	err := s.transitionLocked(steps.Upload, steps.StatusCompleted)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	c.logger.Debug().
		Str("session_id", s.ID()).
		Int("bytes", len(doc.Data)).
		Msg("document uploaded")
	c.emit(s, steps.Upload, steps.StatusProcessing, cb)
	c.emit(s, steps.Upload, steps.StatusCompleted, cb)
	return nil
}

// Extract runs the OCR stage
func (c *Controller) Extract(ctx context.Context, s *Session, cb ProgressCallback) error {
	s.mu.Lock()
	doc := s.document
	s.mu.Unlock()

	return c.runStage(ctx, s, steps.OCR, cb, func(ctx context.Context) (func(), error) {
		if c.extractor == nil {
			return nil, &UnavailableError{Service: "ocr", Message: "OCR service not configured on server"}
		}
		if doc == nil {
			return nil, &ValidationError{Field: "File", Message: "No file uploaded"}
		}
		extraction, err := c.extractor.Extract(ctx, *doc)
		if err != nil {
			return nil, err
		}
		if len(bytes.TrimSpace([]byte(extraction.Text))) == 0 {
			return nil, &CollaboratorError{
				Service: "ocr",
				Code:    FailureGeneric,
				Message: "No text could be extracted from the document.",
			}
		}
		return func() {
			s.text = extraction.Text
			s.pages = extraction.Pages
		}, nil
	})
}

// Analyze runs the AI-analysis stage and, once it has produced data, marks
// anonymization as ready. Policies are reconciled against the findings.
func (c *Controller) Analyze(ctx context.Context, s *Session, cb ProgressCallback) error {
	text := s.Text()

	err := c.runStage(ctx, s, steps.Analysis, cb, func(ctx context.Context) (func(), error) {
		if c.analyzer == nil {
			return nil, &UnavailableError{Service: "gemini", Message: "Gemini API key not configured on server"}
		}
		analysis, err := c.analyzer.Analyze(ctx, text)
		if err != nil {
			return nil, err
		}
		result := analysis.Result
		result.StructuredData.Normalize()
		result.PersonalInfo.Normalize()
		if analysis.Warning != "" {
			c.logger.Warn().Str("session_id", s.ID()).Str("warning", analysis.Warning).Msg("analysis fell back")
		}
		return func() {
			s.analysis = &result
			s.warning = analysis.Warning
			base := s.policies
			if len(base) == 0 {
				base = redaction.DefaultPolicies()
			}
			s.policies = redaction.Reconcile(base, result.PersonalInfo)
		}, nil
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	err = s.transitionLocked(steps.Anonymization, steps.StatusProcessing)
	if err == nil {
		err = s.transitionLocked(steps.Anonymization, steps.StatusCompleted)
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	c.emit(s, steps.Anonymization, steps.StatusProcessing, cb)
	c.emit(s, steps.Anonymization, steps.StatusCompleted, cb)
	return nil
}

// Generate renders the preview record in format and hands it to w. The stage
// completes only after the whole document has been written.
func (c *Controller) Generate(ctx context.Context, s *Session, format rendering.Format, w io.Writer, cb ProgressCallback) error {
	return c.runStage(ctx, s, steps.Generation, cb, func(ctx context.Context) (func(), error) {
		record, err := s.Preview()
		if err != nil {
			return nil, err
		}
		data, err := c.renderer.Render(format, record)
		if err != nil {
			return nil, &FormattingError{Format: string(format), Cause: err}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("deliver %s document: %w", format, err)
		}
		c.logger.Debug().
			Str("session_id", s.ID()).
			Str("format", string(format)).
			Int("bytes", len(data)).
			Msg("document generated")
		return nil, nil
	})
}

// Cancel aborts the collaborator call of the stage currently processing in
// s. The stage returns to pending. It reports whether anything was running.
func (c *Controller) Cancel(s *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	return true
}

// SetPolicies replaces the redaction policies of an analyzed session.
// Categories without findings are forced off.
func (c *Controller) SetPolicies(s *Session, ps redaction.PolicySet) error {
	if err := ps.Validate(); err != nil {
		return &ValidationError{Field: "policies", Message: err.Error()}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.analysis == nil {
		return ErrNoRecord
	}
	s.policies = redaction.Reconcile(ps, s.analysis.PersonalInfo)
	s.touch()
	return nil
}

// SetCustomRecord stores a user-edited record that generation uses verbatim.
func (c *Controller) SetCustomRecord(s *Session, cv types.StructuredCV) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.analysis == nil {
		return ErrNoRecord
	}
	record := cv.Clone()
	record.Normalize()
	s.custom = &record
	s.touch()
	return nil
}

// ResetCustomRecord discards user edits so the preview is derived from the
// policies again.
func (c *Controller) ResetCustomRecord(s *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.analysis == nil {
		return ErrNoRecord
	}
	s.custom = nil
	s.touch()
	return nil
}

// stageFunc performs the work of a stage without holding the session lock.
// The returned commit, if any, runs under the lock just before the stage
// is marked completed.
type stageFunc func(ctx context.Context) (commit func(), err error)

func (c *Controller) runStage(ctx context.Context, s *Session, id steps.ID, cb ProgressCallback, fn stageFunc) error {
	var (
		stageCtx context.Context
		cancel   context.CancelFunc
	)
	if c.timeout > 0 {
		stageCtx, cancel = context.WithTimeout(ctx, c.timeout)
	} else {
		stageCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	s.mu.Lock()
	if err := s.transitionLocked(id, steps.StatusProcessing); err != nil {
		s.mu.Unlock()
		return err
	}
	s.cancel = cancel
	s.errMsg = ""
	s.mu.Unlock()

	log := c.logger.With().Str("session_id", s.ID()).Str("step", string(id)).Logger()
	log.Debug().Msg("stage started")
	c.emit(s, id, steps.StatusProcessing, cb)
	started := time.Now()

	commit, err := callStage(stageCtx, fn)

	s.mu.Lock()
	s.cancel = nil
	switch {
	case err == nil:
		if commit != nil {
			commit()
		}
		err = s.transitionLocked(id, steps.StatusCompleted)
		s.mu.Unlock()
		if err != nil {
			return err
		}
		log.Debug().Dur("duration", time.Since(started)).Msg("stage completed")
		c.emit(s, id, steps.StatusCompleted, cb)
		return nil

	case errors.Is(err, context.Canceled):
		_ = s.transitionLocked(id, steps.StatusPending)
		s.mu.Unlock()
		log.Info().Msg("stage cancelled")
		c.emit(s, id, steps.StatusPending, cb)
		return &StageError{Step: id, Err: err}

	default:
		if errors.Is(err, context.DeadlineExceeded) && !isClassified(err) {
			err = &CollaboratorError{
				Service: string(id),
				Code:    FailureTimeout,
				Message: "Processing timed out. Please try again.",
				Cause:   err,
			}
		}
		failed := s.failCurrentLocked(err)
		s.mu.Unlock()
		log.Warn().Err(err).Dur("duration", time.Since(started)).Msg("stage failed")
		c.emit(s, failed, steps.StatusError, cb)
		return &StageError{Step: failed, Err: err}
	}
}

// callStage runs fn, converting a panic into an error.
func callStage(ctx context.Context, fn stageFunc) (commit func(), err error) {
	defer func() {
		if rec := recover(); rec != nil {
			commit = nil
			err = fmt.Errorf("stage panic: %v", rec)
		}
	}()
	return fn(ctx)
}

func isClassified(err error) bool {
	var (
		collaboratorErr *CollaboratorError
		unavailableErr  *UnavailableError
	)
	return errors.As(err, &collaboratorErr) || errors.As(err, &unavailableErr)
}

func (c *Controller) emit(s *Session, id steps.ID, status steps.Status, cb ProgressCallback) {
	if c.onProgress == nil && cb == nil {
		return
	}
	s.mu.Lock()
	event := ProgressEvent{
		SessionID: s.id,
		Step:      id,
		Status:    status,
		Progress:  steps.Progress(s.statuses()),
	}
	if status == steps.StatusError {
		event.Message = s.errMsg
	}
	s.mu.Unlock()

	if c.onProgress != nil {
		c.onProgress(event)
	}
	if cb != nil {
		cb(event)
	}
}
