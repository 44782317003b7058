package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jonathan/cv-anonymizer/internal/pipeline"
)

// Mistral defaults
const (
	DefaultBaseURL = "https://api.mistral.ai"
	DefaultModel   = "mistral-ocr-latest"
	defaultTimeout = 90 * time.Second
	maxErrorBody   = 4096
)

// MsgMissingKey is reported when no Mistral key is configured
const MsgMissingKey = "Mistral API key not configured on server"

// Mistral calls the Mistral OCR endpoint with the document inlined as a data URL.
type Mistral struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewMistral creates a Mistral OCR client. Missing settings take the defaults.
func NewMistral(cfg Config, logger zerolog.Logger) *Mistral {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Mistral{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "ocr").Str("provider", ProviderMistral).Logger(),
	}
}

type ocrRequest struct {
	Model              string      `json:"model"`
	Document           ocrDocument `json:"document"`
	IncludeImageBase64 bool        `json:"include_image_base64"`
}

type ocrDocument struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url"`
}

type ocrResponse struct {
	Pages []struct {
		Index    int    `json:"index"`
		Markdown string `json:"markdown"`
	} `json:"pages"`
}

type apiErrorBody struct {
	Message string `json:"message"`
	Detail  any    `json:"detail"`
}

// Extract sends the document to the OCR endpoint and returns the cleaned text.
func (m *Mistral) Extract(ctx context.Context, doc pipeline.Document) (pipeline.Extraction, error) {
	if m.apiKey == "" {
		return pipeline.Extraction{}, &pipeline.UnavailableError{Service: service, Message: MsgMissingKey}
	}

	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}
	body, err := json.Marshal(ocrRequest{
		Model: m.model,
		Document: ocrDocument{
			Type:        "document_url",
			DocumentURL: "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(doc.Data),
		},
	})
	if err != nil {
		return pipeline.Extraction{}, fmt.Errorf("ocr: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/v1/ocr", bytes.NewReader(body))
	if err != nil {
		return pipeline.Extraction{}, fmt.Errorf("ocr: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	started := time.Now()
	resp, err := m.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return pipeline.Extraction{}, fmt.Errorf("ocr: %w", err)
		}
		return pipeline.Extraction{}, &pipeline.CollaboratorError{
			Service: service,
			Code:    pipeline.FailureGeneric,
			Message: "OCR processing failed: the OCR service could not be reached",
			Cause:   err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return pipeline.Extraction{}, statusError(resp)
	}

	var parsed ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return pipeline.Extraction{}, &pipeline.CollaboratorError{
			Service: service,
			Code:    pipeline.FailureGeneric,
			Message: "OCR processing failed: unreadable response from the OCR service",
			Cause:   err,
		}
	}

	pages := make([]string, 0, len(parsed.Pages))
	for _, page := range parsed.Pages {
		pages = append(pages, page.Markdown)
	}
	text := JoinPages(pages)

	m.logger.Debug().
		Int("pages", len(parsed.Pages)).
		Int("chars", len(text)).
		Dur("duration", time.Since(started)).
		Msg("ocr completed")

	return pipeline.Extraction{Text: text, Pages: len(parsed.Pages)}, nil
}

func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	detail := apiMessage(raw)
	cause := fmt.Errorf("ocr service returned %d: %s", resp.StatusCode, detail)

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &pipeline.CollaboratorError{
			Service: service,
			Code:    pipeline.FailureInvalidCredentials,
			Message: "Invalid Mistral API key. Please check your OCR configuration.",
			Cause:   cause,
		}
	case http.StatusTooManyRequests:
		return &pipeline.CollaboratorError{
			Service: service,
			Code:    pipeline.FailureQuota,
			Message: "OCR quota exceeded. Please try again later.",
			Cause:   cause,
		}
	default:
		return &pipeline.CollaboratorError{
			Service: service,
			Code:    pipeline.FailureGeneric,
			Message: "OCR processing failed: " + detail,
			Cause:   cause,
		}
	}
}

// apiMessage pulls a readable message out of an error body.
func apiMessage(raw []byte) string {
	var body apiErrorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if s, ok := body.Detail.(string); ok && s != "" {
			return s
		}
	}
	if text := strings.TrimSpace(string(raw)); text != "" && len(text) <= 200 {
		return text
	}
	return "unexpected response from the OCR service"
}
