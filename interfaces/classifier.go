package interfaces

import (
	"golang.org/x/net/context"

	"github.com/mailsignal/mailsignal/dto"
	"github.com/mailsignal/mailsignal/internal/models"
)

// ClassifierProvider wraps one remote classification backend
type ClassifierProvider interface {
	Name() string
	Classify(ctx context.Context, request dto.ClassificationRequest) (*dto.ProviderResponse, error)
}

// ClassificationService routes a message through the provider chain.
// Classify is total: it always returns a result in the primary
// category set, falling back to deterministic rules.
type ClassificationService interface {
	Classify(ctx context.Context, email *models.Email) dto.ClassificationResult
	ClassifyBatch(ctx context.Context, emails []*models.Email) []dto.BatchItemResult
	ProviderStates() map[string]string
}
