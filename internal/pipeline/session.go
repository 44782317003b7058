package pipeline

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/jonathan/cv-anonymizer/internal/pipeline/steps"
	"github.com/jonathan/cv-anonymizer/internal/redaction"
	"github.com/jonathan/cv-anonymizer/internal/types"
)

// Step is the status of one stage as shown to users
type Step struct {
	ID          steps.ID     `json:"id"`
	Status      steps.Status `json:"status"`
	Description string       `json:"description"`
}

// Document is an uploaded file
type Document struct {
	Name        string
	ContentType string
	Data        []byte
}

// Extraction is the OCR collaborator's result
type Extraction struct {
	Text  string
	Pages int
}

// Analysis is the AI collaborator's result. A non-empty Warning means the
// result is the fallback record rather than the model's output.
type Analysis struct {
	Result  types.AnalysisResult
	Warning string
}

// Session is the state of one document moving through the pipeline. All
// fields are guarded by mu; stage methods on Controller are the only writers.
type Session struct {
	mu sync.Mutex

	id        string
	createdAt time.Time
	updatedAt time.Time

	document *Document
	text     string
	pages    int

	analysis *types.AnalysisResult
	policies redaction.PolicySet
	custom   *types.StructuredCV

	warning string
	errMsg  string
	steps   []Step

	// cancel aborts the collaborator call of the processing stage.
	cancel context.CancelFunc
}

// NewSession creates a session with every stage pending.
func NewSession() *Session {
	now := time.Now()
	s := &Session{
		id:        uuid.NewString(),
		createdAt: now,
		updatedAt: now,
	}
	s.resetSteps()
	return s
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

func (s *Session) resetSteps() {
	defs := steps.Definitions()
	s.steps = make([]Step, 0, len(defs))
	for _, def := range defs {
		s.steps = append(s.steps, Step{ID: def.ID, Status: steps.StatusPending, Description: def.Description})
	}
}

// clear drops everything derived from a previous document.
func (s *Session) clear() {
	s.document = nil
	s.text = ""
	s.pages = 0
	s.analysis = nil
	s.policies = nil
	s.custom = nil
	s.warning = ""
	s.errMsg = ""
	s.resetSteps()
}

func (s *Session) statuses() map[steps.ID]steps.Status {
	out := make(map[steps.ID]steps.Status, len(s.steps))
	for _, st := range s.steps {
		out[st.ID] = st.Status
	}
	return out
}

func (s *Session) status(id steps.ID) steps.Status {
	for _, st := range s.steps {
		if st.ID == id {
			return st.Status
		}
	}
	return ""
}

// processing returns the stage currently processing, if any.
func (s *Session) processing() (steps.ID, bool) {
	for _, st := range s.steps {
		if st.Status == steps.StatusProcessing {
			return st.ID, true
		}
	}
	return "", false
}

// State is a point-in-time copy of a session, safe to serialize.
type State struct {
	ID           string              `json:"id"`
	Steps        []Step              `json:"steps"`
	Progress     int                 `json:"progress"`
	FileName     string              `json:"file_name,omitempty"`
	Pages        int                 `json:"pages,omitempty"`
	TextLength   int                 `json:"text_length"`
	Analyzed     bool                `json:"analyzed"`
	PersonalInfo *types.PersonalInfo `json:"personal_info,omitempty"`
	Policies     redaction.PolicySet `json:"policies,omitempty"`
	CustomRecord bool                `json:"custom_record"`
	Warning      string              `json:"warning,omitempty"`
	Error        string              `json:"error,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// Snapshot returns a copy of the session state
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := State{
		ID:           s.id,
		Steps:        append([]Step(nil), s.steps...),
		Progress:     steps.Progress(s.statuses()),
		Pages:        s.pages,
		TextLength:   utf8.RuneCountInString(s.text),
		Analyzed:     s.analysis != nil,
		Policies:     append(redaction.PolicySet(nil), s.policies...),
		CustomRecord: s.custom != nil,
		Warning:      s.warning,
		Error:        s.errMsg,
		CreatedAt:    s.createdAt,
		UpdatedAt:    s.updatedAt,
	}
	if s.document != nil {
		state.FileName = s.document.Name
	}
	if s.analysis != nil {
		info := s.analysis.PersonalInfo.Clone()
		state.PersonalInfo = &info
	}
	return state
}

// Text returns the extracted text
func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

// Original returns the record as analyzed, before anonymization.
func (s *Session) Original() (types.StructuredCV, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.analysis == nil {
		return types.StructuredCV{}, ErrNoRecord
	}
	return s.analysis.StructuredData.Clone(), nil
}

// Analysis returns the full analysis result
func (s *Session) Analysis() (types.AnalysisResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.analysis == nil {
		return types.AnalysisResult{}, ErrNoRecord
	}
	return types.AnalysisResult{
		StructuredData: s.analysis.StructuredData.Clone(),
		PersonalInfo:   s.analysis.PersonalInfo.Clone(),
	}, nil
}

// Policies returns the current redaction policies
func (s *Session) Policies() redaction.PolicySet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(redaction.PolicySet(nil), s.policies...)
}

// Preview returns the record that generation would use: the custom-edited
// record when present, otherwise the original anonymized with the current policies.
func (s *Session) Preview() (types.StructuredCV, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.previewLocked()
}

func (s *Session) previewLocked() (types.StructuredCV, error) {
	if s.analysis == nil {
		return types.StructuredCV{}, ErrNoRecord
	}
	if s.custom != nil {
		return s.custom.Clone(), nil
	}
	return redaction.AnonymizeRecord(s.analysis.StructuredData, s.policies, s.analysis.PersonalInfo), nil
}

func (s *Session) touch() {
	s.updatedAt = time.Now()
}
