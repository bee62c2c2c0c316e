package classifier

import (
	"bytes"
	"context"
	"encoding/json"
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

type openaiProvider struct {
	cfg    *config.ClassifierConfig
	client *http.Client
}

func NewOpenAIProvider(cfg *config.ClassifierConfig) interfaces.ClassifierProvider {
	return &openaiProvider{
		cfg: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeout) * time.Second,
		},
	}
}

func (p *openaiProvider) Name() string {
	return "openai"
}

type openaiChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiChatResponse struct {
	Choices []struct {
		Message openaiMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

func (p *openaiProvider) Classify(ctx context.Context, request dto.ClassificationRequest) (*dto.ProviderResponse, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "openaiProvider.Classify")
	defer span.Finish()
	tracing.TagComponentClassifier(span)
	tracing.TagProvider(span, p.Name())

	payload, err := json.Marshal(openaiChatRequest{
		Model: p.cfg.OpenAIModel,
		Messages: []openaiMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(request)},
		},
		Temperature: 0,
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.OpenAIBaseURL+"/chat/completions", bytes.NewBuffer(payload))
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.OpenAIAPIKey)
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

	if err := openaiStatusError(resp.StatusCode, body); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	var completion openaiChatResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(apperrors.ErrProviderUnparseable, err.Error())
	}
	if len(completion.Choices) == 0 {
		err := errors.Wrap(apperrors.ErrProviderUnparseable, "completion carries no choices")
		tracing.TraceErr(span, err)
		return nil, err
	}

	return parseProviderResponse(completion.Choices[0].Message.Content)
}

// openaiStatusError maps HTTP failure codes onto the provider error
// taxonomy the orchestrator keys its circuit decisions on
func openaiStatusError(status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.Wrapf(apperrors.ErrAuthenticationFailed, "openai returned %d", status)
	case status == http.StatusPaymentRequired || strings.Contains(string(body), "insufficient_quota"):
		return errors.Wrapf(apperrors.ErrProviderQuotaExceeded, "openai returned %d", status)
	case status == http.StatusTooManyRequests:
		return errors.Wrapf(apperrors.ErrProviderRateLimited, "openai returned %d", status)
	default:
		return errors.Errorf("openai returned %d: %.200s", status, string(body))
	}
}
