package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/mailsignal/mailsignal/config"
	"github.com/mailsignal/mailsignal/dto"
	"github.com/mailsignal/mailsignal/interfaces"
	apperrors "github.com/mailsignal/mailsignal/internal/errors"
	"github.com/mailsignal/mailsignal/internal/tracing"
)

type geminiProvider struct {
	cfg    *config.ClassifierConfig
	client *http.Client
}

func NewGeminiProvider(cfg *config.ClassifierConfig) interfaces.ClassifierProvider {
	return &geminiProvider{
		cfg: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeout) * time.Second,
		},
	}
}

func (p *geminiProvider) Name() string {
	return "gemini"
}

type geminiGenerateRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"responseMimeType"`
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (p *geminiProvider) Classify(ctx context.Context, request dto.ClassificationRequest) (*dto.ProviderResponse, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "geminiProvider.Classify")
	defer span.Finish()
	tracing.TagComponentClassifier(span)
	tracing.TagProvider(span, p.Name())

	payload, err := json.Marshal(geminiGenerateRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: systemPrompt + "\n\n" + buildUserPrompt(request)}}},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      0,
			ResponseMimeType: "application/json",
		},
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to marshal payload")
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.cfg.GeminiBaseURL, p.cfg.GeminiModel, p.cfg.GeminiAPIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(apperrors.ErrConnectionTimeout, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "unable to read response body")
	}

	if err := geminiStatusError(resp.StatusCode, body); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	var completion geminiGenerateResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(apperrors.ErrProviderUnparseable, err.Error())
	}
	if len(completion.Candidates) == 0 || len(completion.Candidates[0].Content.Parts) == 0 {
		err := errors.Wrap(apperrors.ErrProviderUnparseable, "completion carries no candidates")
		tracing.TraceErr(span, err)
		return nil, err
	}

	return parseProviderResponse(completion.Candidates[0].Content.Parts[0].Text)
}

func geminiStatusError(status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.Wrapf(apperrors.ErrAuthenticationFailed, "gemini returned %d", status)
	case strings.Contains(string(body), "RESOURCE_EXHAUSTED") && status != http.StatusTooManyRequests:
		return errors.Wrapf(apperrors.ErrProviderQuotaExceeded, "gemini returned %d", status)
	case status == http.StatusTooManyRequests:
		return errors.Wrapf(apperrors.ErrProviderRateLimited, "gemini returned %d", status)
	default:
		return errors.Errorf("gemini returned %d: %.200s", status, string(body))
	}
}
