// Package analysis asks the generative model to structure CV text and to
// list the personal information it contains.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"

	"github.com/jonathan/cv-anonymizer/internal/llm"
	"github.com/jonathan/cv-anonymizer/internal/pipeline"
	"github.com/jonathan/cv-anonymizer/internal/prompts"
	"github.com/jonathan/cv-anonymizer/internal/schemas"
	"github.com/jonathan/cv-anonymizer/internal/types"
)

// DefaultMaxInputChars bounds the text sent to the model
const DefaultMaxInputChars = 3000

// FallbackWarning accompanies the fallback record
const FallbackWarning = "Used fallback structure due to parsing error"

const service = "gemini"

// User-facing messages
const (
	MsgMissingKey = "Gemini API key not configured on server"
	MsgInvalidKey = "Invalid API key. Please check your Gemini API configuration."
	MsgQuota      = "API quota exceeded. Please try again later."
	MsgBlocked    = "Content was blocked by safety filters. Please try with different content."
	MsgFailed     = "Gemini analysis failed. Please try again."
	MsgNoText     = "No text provided"
)

// Config tunes an Analyzer
type Config struct {
	MaxInputChars int
	Tier          llm.ModelTier
}

// Analyzer implements pipeline.Analyzer on top of an llm.Client
type Analyzer struct {
	client llm.Client
	cfg    Config
	logger zerolog.Logger
}

// New creates an analyzer. A nil client is allowed: every call then fails
// with an *pipeline.UnavailableError, the way a server without a key behaves.
func New(client llm.Client, cfg Config, logger zerolog.Logger) *Analyzer {
	if cfg.MaxInputChars <= 0 {
		cfg.MaxInputChars = DefaultMaxInputChars
	}
	if cfg.Tier == "" {
		cfg.Tier = llm.TierStandard
	}
	return &Analyzer{
		client: client,
		cfg:    cfg,
		logger: logger.With().Str("component", "analysis").Logger(),
	}
}

// NewGemini creates an analyzer backed by Gemini. An empty apiKey yields an
// analyzer without a client.
func NewGemini(ctx context.Context, apiKey, model string, cfg Config, logger zerolog.Logger) (*Analyzer, error) {
	if apiKey == "" {
		return New(nil, cfg, logger), nil
	}
	llmCfg := llm.DefaultConfig()
	if model != "" {
		llmCfg = llmCfg.WithModel(llm.TierStandard, model)
	}
	client, err := llm.NewClient(ctx, llmCfg, apiKey)
	if err != nil {
		return nil, err
	}
	return New(client, cfg, logger), nil
}

// Close releases the underlying client
func (a *Analyzer) Close() error {
	if a.client == nil {
		return nil
	}
	return a.client.Close()
}

// Analyze sends text to the model. Output that cannot be parsed into the
// expected shape is replaced by the fallback record with FallbackWarning.
func (a *Analyzer) Analyze(ctx context.Context, text string) (pipeline.Analysis, error) {
	if strings.TrimSpace(text) == "" {
		return pipeline.Analysis{}, &pipeline.ValidationError{Field: "text", Message: MsgNoText}
	}
	if a.client == nil {
		return pipeline.Analysis{}, &pipeline.UnavailableError{Service: service, Message: MsgMissingKey}
	}

	prompt, err := prompts.AnalysisPrompt(Truncate(text, a.cfg.MaxInputChars))
	if err != nil {
		return pipeline.Analysis{}, fmt.Errorf("build analysis prompt: %w", err)
	}

	a.logger.Debug().
		Int("input_chars", utf8.RuneCountInString(text)).
		Str("model", a.client.GetModel(a.cfg.Tier)).
		Msg("sending CV to model")

	raw, err := a.client.GenerateJSON(ctx, prompt, a.cfg.Tier)
	if err != nil {
		return pipeline.Analysis{}, classify(err)
	}

	result, ok := Parse(raw)
	if !ok {
		a.logger.Warn().Int("response_chars", len(raw)).Msg("model response did not match the expected shape")
		return pipeline.Analysis{Result: types.FallbackAnalysis(), Warning: FallbackWarning}, nil
	}

	a.logger.Debug().Int("findings", result.PersonalInfo.Total()).Msg("analysis parsed")
	return pipeline.Analysis{Result: result}, nil
}

// Truncate bounds text to limit characters, appending "..." when it cut anything.
func Truncate(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit]) + "..."
}

// Parse recovers the analysis payload from raw model output: code fences and
// text around the outermost object are dropped, and the object must carry
// both structured_data and personal_info.
func Parse(raw string) (types.AnalysisResult, bool) {
	payload := llm.ExtractJSONObject(raw)
	if payload == "" {
		return types.AnalysisResult{}, false
	}
	if err := schemas.ValidateAnalysisPayload([]byte(payload)); err != nil {
		return types.AnalysisResult{}, false
	}

	var result types.AnalysisResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return types.AnalysisResult{}, false
	}
	result.StructuredData.Normalize()
	result.PersonalInfo.Normalize()
	return result, true
}

// classify maps a client error to the pipeline taxonomy. Context errors
// pass through so the pipeline can tell cancellation from failure.
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("gemini analysis: %w", err)
	}
	if errors.Is(err, llm.ErrMissingAPIKey) {
		return &pipeline.UnavailableError{Service: service, Message: MsgMissingKey}
	}
	if errors.Is(err, llm.ErrContentBlocked) {
		return &pipeline.CollaboratorError{Service: service, Code: pipeline.FailureBlocked, Message: MsgBlocked, Cause: err}
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &pipeline.CollaboratorError{Service: service, Code: pipeline.FailureInvalidCredentials, Message: MsgInvalidKey, Cause: err}
		case http.StatusTooManyRequests:
			return &pipeline.CollaboratorError{Service: service, Code: pipeline.FailureQuota, Message: MsgQuota, Cause: err}
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "api key"):
		return &pipeline.CollaboratorError{Service: service, Code: pipeline.FailureInvalidCredentials, Message: MsgInvalidKey, Cause: err}
	case strings.Contains(msg, "quota"), strings.Contains(msg, "limit"):
		return &pipeline.CollaboratorError{Service: service, Code: pipeline.FailureQuota, Message: MsgQuota, Cause: err}
	default:
		return &pipeline.CollaboratorError{Service: service, Code: pipeline.FailureGeneric, Message: MsgFailed, Cause: err}
	}
}
