package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jonathan/cv-anonymizer/internal/pipeline"
	"github.com/jonathan/cv-anonymizer/internal/redaction"
	"github.com/jonathan/cv-anonymizer/internal/rendering"
	"github.com/jonathan/cv-anonymizer/internal/schemas"
	"github.com/jonathan/cv-anonymizer/internal/types"
	"github.com/jonathan/cv-anonymizer/internal/upload"
)

// multipartOverhead is the allowance for form boundaries and headers on top
// of the document itself
const multipartOverhead = 1 << 20

// maxJSONBody bounds policy and record payloads
const maxJSONBody = 1 << 20

// RecordResponse carries a record and whether it was edited by hand
type RecordResponse struct {
	Record types.StructuredCV `json:"record"`
	Custom bool               `json:"custom"`
}

// handleCreateSession accepts a single PDF and runs it through analysis.
// With Accept: text/event-stream every stage change is streamed as a step event.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	doc, err := s.readDocument(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	session := s.store.Create()
	log := s.logger.With().
		Str("request_id", GetRequestID(r.Context())).
		Str("session_id", session.ID()).
		Logger()

	if !strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		if err := s.controller.Process(r.Context(), session, doc, nil); err != nil {
			s.failSession(w, r, session, err)
			return
		}
		s.jsonResponse(w, http.StatusCreated, session.Snapshot())
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		_ = s.store.Delete(session.ID())
		s.writeError(w, r, err)
		return
	}

	log.Debug().Msg("streaming session progress")
	onProgress := func(event pipeline.ProgressEvent) {
		if err := sse.WriteEvent("step", event); err != nil {
			log.Warn().Err(err).Msg("error writing SSE event")
		}
	}
	if err := s.controller.Process(r.Context(), session, doc, onProgress); err != nil {
		log.Warn().Err(err).Msg("session processing failed")
		if isUploadRejection(err) {
			_ = s.store.Delete(session.ID())
		}
		sse.WriteError(session.ID(), pipeline.UserMessage(err))
		return
	}
	sse.WriteComplete(session.Snapshot())
}

// readDocument extracts the single uploaded file from a multipart form
func (s *Server) readDocument(w http.ResponseWriter, r *http.Request) (pipeline.Document, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.validator.MaxBytes()+multipartOverhead)
	if err := r.ParseMultipartForm(s.validator.MaxBytes() + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return pipeline.Document{}, &pipeline.ValidationError{
				Field:   "File",
				Message: fmt.Sprintf("File is too large. Maximum size is %s.", upload.FormatSize(s.validator.MaxBytes())),
			}
		}
		return pipeline.Document{}, &pipeline.ValidationError{Field: "File", Message: "No file uploaded"}
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	files := r.MultipartForm.File["file"]
	if err := s.validator.ValidateCount(len(files)); err != nil {
		return pipeline.Document{}, err
	}

	header := files[0]
	f, err := header.Open()
	if err != nil {
		return pipeline.Document{}, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close() //nolint:errcheck

	data, err := io.ReadAll(f)
	if err != nil {
		return pipeline.Document{}, fmt.Errorf("read upload: %w", err)
	}
	return pipeline.Document{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// failSession replies with the error and the session state. Sessions whose
// upload was rejected are dropped since nothing was accepted.
func (s *Server) failSession(w http.ResponseWriter, r *http.Request, session *pipeline.Session, err error) {
	if isUploadRejection(err) {
		_ = s.store.Delete(session.ID())
		s.writeError(w, r, err)
		return
	}
	state := session.Snapshot()
	status := HTTPStatus(err)
	s.logger.Warn().Err(err).
		Str("request_id", GetRequestID(r.Context())).
		Str("session_id", session.ID()).
		Int("status", status).
		Msg("session processing failed")
	s.jsonResponse(w, status, ErrorResponse{
		Error:     pipeline.UserMessage(err),
		RequestID: GetRequestID(r.Context()),
		Session:   &state,
	})
}

func isUploadRejection(err error) bool {
	var validationErr *pipeline.ValidationError
	return errors.As(err, &validationErr)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*pipeline.Session, bool) {
	session, err := s.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return session, true
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	s.jsonResponse(w, http.StatusOK, session.Snapshot())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]bool{"cancelled": s.controller.Cancel(session)})
}

func (s *Server) handleGetPolicies(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	s.jsonResponse(w, http.StatusOK, session.Policies())
}

func (s *Server) handlePutPolicies(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		s.writeError(w, r, &pipeline.ValidationError{Field: "policies", Message: "Invalid request body"})
		return
	}
	if err := schemas.Validate(schemas.Policies, body); err != nil {
		s.writeError(w, r, &pipeline.ValidationError{Field: "policies", Message: err.Error()})
		return
	}

	var policies redaction.PolicySet
	if err := json.Unmarshal(body, &policies); err != nil {
		s.writeError(w, r, &pipeline.ValidationError{Field: "policies", Message: "Invalid request body: " + err.Error()})
		return
	}
	if err := s.controller.SetPolicies(session, policies); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, session.Policies())
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	s.writeRecord(w, r, session)
}

func (s *Server) handlePutRecord(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		s.writeError(w, r, &pipeline.ValidationError{Field: "record", Message: "Invalid request body"})
		return
	}
	if err := schemas.ValidateRecord(body); err != nil {
		s.writeError(w, r, &pipeline.ValidationError{Field: "record", Message: err.Error()})
		return
	}

	var record types.StructuredCV
	if err := json.Unmarshal(body, &record); err != nil {
		s.writeError(w, r, &pipeline.ValidationError{Field: "record", Message: "Invalid request body: " + err.Error()})
		return
	}
	if err := s.controller.SetCustomRecord(session, record); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeRecord(w, r, session)
}

func (s *Server) handleResetRecord(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := s.controller.ResetCustomRecord(session); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeRecord(w, r, session)
}

func (s *Server) writeRecord(w http.ResponseWriter, r *http.Request, session *pipeline.Session) {
	record, err := session.Preview()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, RecordResponse{Record: record, Custom: session.Snapshot().CustomRecord})
}

// handleDocument generates the anonymized document. The whole document is
// rendered before anything is written so failures still produce a JSON error.
// Generation completes once the buffer holds the document; a client that goes
// away afterwards is logged as a delivery failure and can simply download again.
func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	format, err := rendering.ParseFormat(chi.URLParam(r, "ext"))
	if err != nil {
		s.writeError(w, r, &pipeline.ValidationError{Field: "format", Message: err.Error()})
		return
	}

	var buf bytes.Buffer
	if err := s.controller.Generate(r.Context(), session, format, &buf, nil); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="anonymized-cv.%s"`, format.Extension()))
	w.Header().Set("Content-Length", fmt.Sprint(buf.Len()))
	w.WriteHeader(http.StatusOK)
	size := buf.Len()
	if n, err := buf.WriteTo(w); err != nil {
		s.logger.Error().Err(err).
			Str("session_id", session.ID()).
			Str("format", string(format)).
			Int64("written", n).
			Int("size", size).
			Msg("document delivery failed")
	}
}
