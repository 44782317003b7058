package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/cv-anonymizer/internal/pipeline/steps"
	"github.com/jonathan/cv-anonymizer/internal/redaction"
	"github.com/jonathan/cv-anonymizer/internal/rendering"
	"github.com/jonathan/cv-anonymizer/internal/types"
)

var samplePDF = []byte("%PDF-1.4\n%%EOF\n")

func sampleDocument() Document {
	return Document{Name: "cv.pdf", ContentType: "application/pdf", Data: append([]byte(nil), samplePDF...)}
}

type fakeExtractor struct {
	text  string
	err   error
	block bool
	calls int
}

func (f *fakeExtractor) Extract(ctx context.Context, _ Document) (Extraction, error) {
	f.calls++
	if f.block {
		<-ctx.Done()
		return Extraction{}, ctx.Err()
	}
	if f.err != nil {
		return Extraction{}, f.err
	}
	return Extraction{Text: f.text, Pages: 1}, nil
}

type fakeAnalyzer struct {
	result  Analysis
	err     error
	panics  bool
	gotText string
}

func (f *fakeAnalyzer) Analyze(_ context.Context, text string) (Analysis, error) {
	f.gotText = text
	if f.panics {
		panic("boom")
	}
	return f.result, f.err
}

func sampleAnalysis() Analysis {
	info := types.EmptyPersonalInfo()
	info.Names.Found = []string{"John Doe"}
	info.Email.Found = []string{"john@example.com"}
	info.Phone.Found = []string{"555-1234"}

	return Analysis{Result: types.AnalysisResult{
		StructuredData: types.StructuredCV{
			Summary: "John Doe builds payment systems. Reach him at john@example.com or 555-1234.",
			WorkExperience: []types.WorkExperience{{
				JobTitle: "Engineer", Company: "Acme", StartDate: "2019", EndDate: "Present",
				Description: "Mentored by John Doe's team",
			}},
			Skills: types.Skills{Technical: []string{"Go"}},
		},
		PersonalInfo: info,
	}}
}

func newTestController(ex TextExtractor, an Analyzer) *Controller {
	return NewController(Options{
		Extractor: ex,
		Analyzer:  an,
		Renderer:  rendering.NewRenderer(nil).WithClock(func() time.Time { return time.Date(2026, 3, 4, 15, 4, 5, 0, time.UTC) }),
		Logger:    zerolog.Nop(),
	})
}

func statusOf(state State, id steps.ID) steps.Status {
	for _, st := range state.Steps {
		if st.ID == id {
			return st.Status
		}
	}
	return ""
}

type eventLog struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (l *eventLog) record(e ProgressEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func TestProcess_HappyPath(t *testing.T) {
	ex := &fakeExtractor{text: "John Doe\njohn@example.com"}
	an := &fakeAnalyzer{result: sampleAnalysis()}
	c := newTestController(ex, an)
	s := NewSession()
	var log eventLog

	require.NoError(t, c.Process(context.Background(), s, sampleDocument(), log.record))

	state := s.Snapshot()
	assert.Equal(t, steps.StatusCompleted, statusOf(state, steps.Upload))
	assert.Equal(t, steps.StatusCompleted, statusOf(state, steps.OCR))
	assert.Equal(t, steps.StatusCompleted, statusOf(state, steps.Analysis))
	assert.Equal(t, steps.StatusCompleted, statusOf(state, steps.Anonymization))
	assert.Equal(t, steps.StatusPending, statusOf(state, steps.Generation))
	assert.Equal(t, 90, state.Progress)
	assert.True(t, state.Analyzed)
	assert.Empty(t, state.Warning)
	assert.Equal(t, "cv.pdf", state.FileName)
	assert.Equal(t, "John Doe\njohn@example.com", an.gotText)

	// every stage passes through processing before completing
	var progress []int
	var sequence []string
	for _, e := range log.events {
		sequence = append(sequence, string(e.Step)+":"+string(e.Status))
		progress = append(progress, e.Progress)
	}
	assert.Equal(t, []string{
		"upload:processing", "upload:completed",
		"ocr:processing", "ocr:completed",
		"gemini-analysis:processing", "gemini-analysis:completed",
		"anonymization:processing", "anonymization:completed",
	}, sequence)
	assert.Equal(t, []int{20, 20, 20, 40, 40, 70, 90, 90}, progress)

	// names, email and phone have findings and default to replace; the rest are off
	policies := s.Policies()
	require.Len(t, policies, 6)
	p, _ := policies.Lookup(types.CategoryAddress)
	assert.False(t, p.Enabled)

	preview, err := s.Preview()
	require.NoError(t, err)
	assert.Equal(t, "[CANDIDATE NAME] builds payment systems. Reach him at [EMAIL ADDRESS] or [PHONE NUMBER].", preview.Summary)
	assert.Equal(t, "Mentored by [CANDIDATE NAME]'s team", preview.WorkExperience[0].Description)

	original, err := s.Original()
	require.NoError(t, err)
	assert.Contains(t, original.Summary, "John Doe")
}

func TestUpload_InvalidFileLeavesStagesUntouched(t *testing.T) {
	c := newTestController(&fakeExtractor{text: "x"}, &fakeAnalyzer{result: sampleAnalysis()})
	s := NewSession()

	err := c.Upload(s, Document{Name: "cv.docx", ContentType: "application/msword", Data: []byte("PK..")}, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Only PDF files are allowed.", UserMessage(err))

	for _, st := range s.Snapshot().Steps {
		assert.Equal(t, steps.StatusPending, st.Status, st.ID)
	}
	assert.Equal(t, 0, s.Snapshot().Progress)
}

func TestUpload_ReplacesPreviousDocument(t *testing.T) {
	c := newTestController(&fakeExtractor{text: "x"}, &fakeAnalyzer{result: sampleAnalysis()})
	s := NewSession()
	require.NoError(t, c.Process(context.Background(), s, sampleDocument(), nil))

	require.NoError(t, c.Upload(s, sampleDocument(), nil))
	state := s.Snapshot()
	assert.False(t, state.Analyzed)
	assert.Equal(t, steps.StatusCompleted, statusOf(state, steps.Upload))
	assert.Equal(t, steps.StatusPending, statusOf(state, steps.OCR))
	assert.Equal(t, 20, state.Progress)
}

func TestExtract_CollaboratorFailure(t *testing.T) {
	ocrErr := &CollaboratorError{Service: "ocr", Code: FailureGeneric, Message: "OCR processing failed: bad scan"}
	an := &fakeAnalyzer{result: sampleAnalysis()}
	c := newTestController(&fakeExtractor{err: ocrErr}, an)
	s := NewSession()
	var log eventLog

	err := c.Process(context.Background(), s, sampleDocument(), log.record)
	require.Error(t, err)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, steps.OCR, stageErr.Step)
	assert.ErrorIs(t, err, ocrErr)

	state := s.Snapshot()
	assert.Equal(t, steps.StatusError, statusOf(state, steps.OCR))
	assert.Equal(t, steps.StatusPending, statusOf(state, steps.Analysis))
	assert.Equal(t, "OCR processing failed: bad scan", state.Error)
	assert.Empty(t, an.gotText, "analysis must not start after a failed stage")

	last := log.events[len(log.events)-1]
	assert.Equal(t, steps.StatusError, last.Status)
	assert.Equal(t, "OCR processing failed: bad scan", last.Message)
}

func TestExtract_EmptyText(t *testing.T) {
	c := newTestController(&fakeExtractor{text: "  \n"}, &fakeAnalyzer{})
	s := NewSession()

	err := c.Process(context.Background(), s, sampleDocument(), nil)
	require.Error(t, err)
	assert.Equal(t, "No text could be extracted from the document.", UserMessage(err))
	assert.Equal(t, steps.StatusError, statusOf(s.Snapshot(), steps.OCR))
}

func TestMissingCollaborators(t *testing.T) {
	c := newTestController(nil, nil)
	s := NewSession()

	err := c.Process(context.Background(), s, sampleDocument(), nil)
	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, steps.StatusError, statusOf(s.Snapshot(), steps.OCR))

	c = newTestController(&fakeExtractor{text: "cv"}, nil)
	s = NewSession()
	err = c.Process(context.Background(), s, sampleDocument(), nil)
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "Gemini API key not configured on server", UserMessage(err))
	assert.Equal(t, steps.StatusError, statusOf(s.Snapshot(), steps.Analysis))
}

func TestAnalyze_PanicMarksProcessingStage(t *testing.T) {
	c := newTestController(&fakeExtractor{text: "cv"}, &fakeAnalyzer{panics: true})
	s := NewSession()

	err := c.Process(context.Background(), s, sampleDocument(), nil)
	require.Error(t, err)

	state := s.Snapshot()
	assert.Equal(t, steps.StatusCompleted, statusOf(state, steps.OCR))
	assert.Equal(t, steps.StatusError, statusOf(state, steps.Analysis))
	assert.Equal(t, "Error processing file. Please try again.", state.Error)
}

func TestAnalyze_WarningIsNotAnError(t *testing.T) {
	fallback := Analysis{Result: types.FallbackAnalysis(), Warning: "Used fallback structure due to parsing error"}
	c := newTestController(&fakeExtractor{text: "cv"}, &fakeAnalyzer{result: fallback})
	s := NewSession()

	require.NoError(t, c.Process(context.Background(), s, sampleDocument(), nil))
	state := s.Snapshot()
	assert.Equal(t, steps.StatusCompleted, statusOf(state, steps.Analysis))
	assert.Equal(t, fallback.Warning, state.Warning)
	assert.Empty(t, state.Error)

	for _, p := range s.Policies() {
		assert.False(t, p.Enabled, "nothing found, nothing to redact: %s", p.Category)
	}
}

func TestCancel_ResetsStageToPending(t *testing.T) {
	ex := &fakeExtractor{block: true}
	c := newTestController(ex, &fakeAnalyzer{})
	s := NewSession()
	require.NoError(t, c.Upload(s, sampleDocument(), nil))

	done := make(chan error, 1)
	go func() { done <- c.Extract(context.Background(), s, nil) }()

	require.Eventually(t, func() bool {
		return statusOf(s.Snapshot(), steps.OCR) == steps.StatusProcessing
	}, time.Second, 5*time.Millisecond)
	assert.True(t, c.Cancel(s))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("extract did not return after cancel")
	}

	state := s.Snapshot()
	assert.Equal(t, steps.StatusPending, statusOf(state, steps.OCR))
	assert.Empty(t, state.Error)
	assert.False(t, c.Cancel(s), "nothing left to cancel")

	// the stage can be started again
	ex.block = false
	ex.text = "cv"
	require.NoError(t, c.Extract(context.Background(), s, nil))
	assert.Equal(t, steps.StatusCompleted, statusOf(s.Snapshot(), steps.OCR))
}

func TestTimeout_MarksStageError(t *testing.T) {
	c := NewController(Options{
		Extractor: &fakeExtractor{block: true},
		Timeout:   20 * time.Millisecond,
		Logger:    zerolog.Nop(),
	})
	s := NewSession()

	err := c.Process(context.Background(), s, sampleDocument(), nil)
	var collaboratorErr *CollaboratorError
	require.ErrorAs(t, err, &collaboratorErr)
	assert.Equal(t, FailureTimeout, collaboratorErr.Code)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, steps.StatusError, statusOf(s.Snapshot(), steps.OCR))
}

func TestGenerate_PDF(t *testing.T) {
	c := newTestController(&fakeExtractor{text: "cv"}, &fakeAnalyzer{result: sampleAnalysis()})
	s := NewSession()
	require.NoError(t, c.Process(context.Background(), s, sampleDocument(), nil))

	var out bytes.Buffer
	var log eventLog
	require.NoError(t, c.Generate(context.Background(), s, rendering.FormatPDF, &out, log.record))

	state := s.Snapshot()
	assert.Equal(t, steps.StatusCompleted, statusOf(state, steps.Generation))
	assert.Equal(t, 100, state.Progress)
	assert.Equal(t, 100, log.events[len(log.events)-1].Progress)

	reader, err := pdf.NewReader(bytes.NewReader(out.Bytes()), int64(out.Len()))
	require.NoError(t, err)
	plain, err := reader.GetPlainText()
	require.NoError(t, err)
	text, err := io.ReadAll(plain)
	require.NoError(t, err)
	assert.Contains(t, string(text), "[CANDIDATE NAME]")
	assert.NotContains(t, string(text), "John Doe")

	// generation can be re-run, e.g. in another format
	out.Reset()
	require.NoError(t, c.Generate(context.Background(), s, rendering.FormatText, &out, nil))
	assert.Contains(t, out.String(), "ANONYMIZED CV")
}

func TestGenerate_BeforeAnalysis(t *testing.T) {
	c := newTestController(&fakeExtractor{text: "cv"}, &fakeAnalyzer{})
	s := NewSession()
	require.NoError(t, c.Upload(s, sampleDocument(), nil))

	err := c.Generate(context.Background(), s, rendering.FormatPDF, io.Discard, nil)
	var depErr *steps.DependencyError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, steps.StatusPending, statusOf(s.Snapshot(), steps.Generation))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestGenerate_DeliveryFailure(t *testing.T) {
	c := newTestController(&fakeExtractor{text: "cv"}, &fakeAnalyzer{result: sampleAnalysis()})
	s := NewSession()
	require.NoError(t, c.Process(context.Background(), s, sampleDocument(), nil))

	err := c.Generate(context.Background(), s, rendering.FormatText, failingWriter{}, nil)
	require.Error(t, err)
	assert.Equal(t, steps.StatusError, statusOf(s.Snapshot(), steps.Generation))

	// a failed generation can be retried
	require.NoError(t, c.Generate(context.Background(), s, rendering.FormatText, io.Discard, nil))
	assert.Equal(t, steps.StatusCompleted, statusOf(s.Snapshot(), steps.Generation))
}

func TestGenerate_FormattingFailure(t *testing.T) {
	c := newTestController(&fakeExtractor{text: "cv"}, &fakeAnalyzer{result: sampleAnalysis()})
	s := NewSession()
	require.NoError(t, c.Process(context.Background(), s, sampleDocument(), nil))

	err := c.Generate(context.Background(), s, rendering.Format("docx"), io.Discard, nil)
	var formattingErr *FormattingError
	require.ErrorAs(t, err, &formattingErr)
	assert.Equal(t, "Failed to generate the anonymized document. Please try again.", UserMessage(err))
	assert.Equal(t, steps.StatusError, statusOf(s.Snapshot(), steps.Generation))
}

func TestPoliciesAndCustomRecord(t *testing.T) {
	c := newTestController(&fakeExtractor{text: "cv"}, &fakeAnalyzer{result: sampleAnalysis()})
	s := NewSession()

	assert.ErrorIs(t, c.SetPolicies(s, redaction.DefaultPolicies()), ErrNoRecord)
	assert.ErrorIs(t, c.SetCustomRecord(s, types.NewStructuredCV()), ErrNoRecord)
	assert.ErrorIs(t, c.ResetCustomRecord(s), ErrNoRecord)
	_, err := s.Preview()
	assert.ErrorIs(t, err, ErrNoRecord)

	require.NoError(t, c.Process(context.Background(), s, sampleDocument(), nil))

	err = c.SetPolicies(s, redaction.PolicySet{{Category: types.CategoryNames, Enabled: true, Method: "shred"}})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	require.NoError(t, c.SetPolicies(s, redaction.PolicySet{
		{Category: types.CategoryNames, Enabled: true, Method: redaction.MethodHash},
		{Category: types.CategoryEmail, Enabled: false, Method: redaction.MethodReplace},
		{Category: types.CategoryAddress, Enabled: true, Method: redaction.MethodRemove},
	}))
	policies := s.Policies()
	require.Len(t, policies, 6)
	address, _ := policies.Lookup(types.CategoryAddress)
	assert.False(t, address.Enabled, "no addresses were found")

	preview, err := s.Preview()
	require.NoError(t, err)
	assert.Equal(t, "[HASH:Sm9obiBE] builds payment systems. Reach him at john@example.com or [PHONE NUMBER].", preview.Summary)

	custom := preview.Clone()
	custom.Summary = "Edited by hand"
	require.NoError(t, c.SetCustomRecord(s, custom))
	custom.Summary = "mutated after storing"

	preview, err = s.Preview()
	require.NoError(t, err)
	assert.Equal(t, "Edited by hand", preview.Summary)
	assert.True(t, s.Snapshot().CustomRecord)

	require.NoError(t, c.ResetCustomRecord(s))
	preview, err = s.Preview()
	require.NoError(t, err)
	assert.Contains(t, preview.Summary, "[HASH:Sm9obiBE]")

	original, err := s.Original()
	require.NoError(t, err)
	assert.Contains(t, original.Summary, "John Doe", "the analyzed record is never modified")
}

func TestConcurrentSessionsAreIndependent(t *testing.T) {
	c := newTestController(staticExtractor{}, staticAnalyzer{result: sampleAnalysis()})

	var wg sync.WaitGroup
	sessions := make([]*Session, 8)
	for i := range sessions {
		sessions[i] = NewSession()
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			assert.NoError(t, c.Process(context.Background(), s, sampleDocument(), nil))
			assert.NoError(t, c.Generate(context.Background(), s, rendering.FormatText, io.Discard, nil))
		}(sessions[i])
	}
	wg.Wait()

	for _, s := range sessions {
		assert.Equal(t, 100, s.Snapshot().Progress)
	}
}

type staticExtractor struct{}

func (staticExtractor) Extract(context.Context, Document) (Extraction, error) {
	return Extraction{Text: "cv text", Pages: 1}, nil
}

type staticAnalyzer struct{ result Analysis }

func (a staticAnalyzer) Analyze(context.Context, string) (Analysis, error) {
	return a.result, nil
}

func TestSnapshotAndAnalysisDoNotShareFindings(t *testing.T) {
	c := newTestController(&fakeExtractor{text: "cv"}, &fakeAnalyzer{result: sampleAnalysis()})
	s := NewSession()
	require.NoError(t, c.Process(context.Background(), s, sampleDocument(), nil))

	state := s.Snapshot()
	require.NotNil(t, state.PersonalInfo)
	state.PersonalInfo.Names.Found[0] = "someone else"

	result, err := s.Analysis()
	require.NoError(t, err)
	result.PersonalInfo.Names.Found[0] = "another"

	again, err := s.Analysis()
	require.NoError(t, err)
	assert.Equal(t, "John Doe", again.PersonalInfo.Names.Found[0])
	assert.Equal(t, "John Doe", s.Snapshot().PersonalInfo.Names.Found[0])

	preview, err := s.Preview()
	require.NoError(t, err)
	assert.NotContains(t, preview.Summary, "John Doe")
}
