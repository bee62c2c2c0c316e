package classifier

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/mailsignal/mailsignal/config"
	"github.com/mailsignal/mailsignal/dto"
	"github.com/mailsignal/mailsignal/interfaces"
	apperrors "github.com/mailsignal/mailsignal/internal/errors"
	"github.com/mailsignal/mailsignal/internal/logger"
	"github.com/mailsignal/mailsignal/internal/models"
	"github.com/mailsignal/mailsignal/internal/tracing"
	"github.com/mailsignal/mailsignal/services/rules"
)

const (
	memoSize = 4096

	stateAvailable = "available"
)

// classificationService walks the provider chain in order and guarantees
// a primary-category verdict for every message. Providers that fail
// fatally (bad credentials, exhausted quota) are disabled for the rest
// of the process; transient failures only skip the current call.
type classificationService struct {
	cfg       *config.ClassifierConfig
	log       logger.Logger
	providers []interfaces.ClassifierProvider
	remap     rules.RemapTable
	memo      *lru.Cache[string, dto.ClassificationResult]

	mu       sync.RWMutex
	disabled map[string]string
}

func NewClassificationService(
	cfg *config.ClassifierConfig,
	log logger.Logger,
	providers []interfaces.ClassifierProvider,
	remap rules.RemapTable,
) interfaces.ClassificationService {
	if remap == nil {
		remap = rules.DefaultRemapTable()
	}
	memo, _ := lru.New[string, dto.ClassificationResult](memoSize)
	return &classificationService{
		cfg:       cfg,
		log:       log,
		providers: providers,
		remap:     remap,
		memo:      memo,
		disabled:  make(map[string]string),
	}
}

// Classify resolves the category for one message. Results from a
// provider are memoized by the deterministic email id; the rule fallback
// is not, so a later call can retry the chain.
func (s *classificationService) Classify(ctx context.Context, email *models.Email) dto.ClassificationResult {
	span, ctx := opentracing.StartSpanFromContext(ctx, "classificationService.Classify")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagComponentClassifier(span)
	tracing.TagEmail(span, email.ID)

	if cached, ok := s.memo.Get(email.ID); ok {
		span.LogKV("result", "memoized")
		return cached
	}

	request := dto.ClassificationRequest{
		Subject:     email.Subject,
		FromName:    email.From.Name,
		FromAddress: email.From.Address,
		BodyText:    email.BodyText,
	}

	for _, provider := range s.providers {
		if reason, off := s.disabledReason(provider.Name()); off {
			span.LogKV("provider.skipped", provider.Name(), "reason", reason)
			continue
		}

		result, err := s.classifyWith(ctx, provider, request)
		if err != nil {
			tracing.TraceErr(span, err)
			if isFatalProviderError(err) {
				s.disable(provider.Name(), err.Error())
				s.log.Errorf("classifier provider %s disabled: %v", provider.Name(), err)
			} else {
				s.log.Warnf("classifier provider %s failed, trying next: %v", provider.Name(), err)
			}
			continue
		}

		s.memo.Add(email.ID, *result)
		return *result
	}

	match := rules.Final(email.Subject, email.BodyText)
	span.LogKV("result", "rule fallback")
	return dto.ClassificationResult{
		Category:   match.Category,
		Confidence: match.Confidence,
		Reasoning:  match.Reason,
	}
}

func (s *classificationService) classifyWith(ctx context.Context, provider interfaces.ClassifierProvider, request dto.ClassificationRequest) (*dto.ClassificationResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.RequestTimeout)*time.Second)
	defer cancel()

	response, err := provider.Classify(callCtx, request)
	if err != nil {
		return nil, err
	}

	category, ok := s.remap.Remap(response.Category)
	if !ok {
		return nil, errors.Wrapf(apperrors.ErrProviderUnparseable, "%s returned unknown category %q", provider.Name(), response.Category)
	}

	return &dto.ClassificationResult{
		Category:   category,
		Confidence: clampConfidence(response.Confidence),
		Reasoning:  response.Reasoning,
	}, nil
}

// ClassifyBatch processes messages in bounded groups with a pause
// between groups so a large sync does not trip provider rate limits.
// Every item gets a verdict; errors are informational only.
func (s *classificationService) ClassifyBatch(ctx context.Context, emails []*models.Email) []dto.BatchItemResult {
	span, ctx := opentracing.StartSpanFromContext(ctx, "classificationService.ClassifyBatch")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagComponentClassifier(span)
	span.LogKV("batch.size", len(emails))

	batchSize := s.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 5
	}

	results := make([]dto.BatchItemResult, 0, len(emails))
	for start := 0; start < len(emails); start += batchSize {
		if start > 0 && !s.pauseBetweenBatches(ctx) {
			s.log.Warnf("batch classification interrupted, remaining items fall back to rules")
		}

		end := start + batchSize
		if end > len(emails) {
			end = len(emails)
		}
		for _, email := range emails[start:end] {
			results = append(results, dto.BatchItemResult{
				EmailID: email.ID,
				Result:  s.Classify(ctx, email),
			})
		}
	}
	return results
}

func (s *classificationService) pauseBetweenBatches(ctx context.Context) bool {
	delay := time.Duration(s.cfg.BatchDelayMs) * time.Millisecond
	if delay <= 0 {
		return true
	}
	select {
	case <-time.After(delay):
		return true
	case <-ctx.Done():
		return false
	}
}

// ProviderStates reports each provider as available or the reason it was
// disabled; used by the status endpoint.
func (s *classificationService) ProviderStates() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	states := make(map[string]string, len(s.providers))
	for _, provider := range s.providers {
		if reason, ok := s.disabled[provider.Name()]; ok {
			states[provider.Name()] = "disabled: " + reason
		} else {
			states[provider.Name()] = stateAvailable
		}
	}
	return states
}

func (s *classificationService) disabledReason(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reason, ok := s.disabled[name]
	return reason, ok
}

func (s *classificationService) disable(name, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disabled[name] = reason
}

// isFatalProviderError decides whether a provider failure is permanent
// for this process. Bad credentials and exhausted quota will not recover
// by retrying; rate limits and timeouts will.
func isFatalProviderError(err error) bool {
	return errors.Is(err, apperrors.ErrAuthenticationFailed) ||
		errors.Is(err, apperrors.ErrProviderQuotaExceeded)
}

func clampConfidence(confidence float64) float64 {
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}
