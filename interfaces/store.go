package interfaces

import (
	"context"

	"github.com/mailsignal/mailsignal/dto"
	"github.com/mailsignal/mailsignal/internal/models"
)

// EmailStore is the in-memory cache and query engine. All mutation is
// synchronous and safe under concurrent readers.
type EmailStore interface {
	Upsert(ctx context.Context, email *models.Email) (*models.Email, bool)
	Get(ctx context.Context, id string) (*models.Email, error)
	Update(ctx context.Context, id string, fields models.UpdateFields) (*models.Email, error)
	Delete(ctx context.Context, id string) error
	ReplaceAccount(ctx context.Context, accountID string, emails []*models.Email)
	Clear()
	Count() int
	Query(ctx context.Context, filter dto.EmailFilter) (*dto.EmailPage, error)
	Analytics(ctx context.Context, request dto.AnalyticsRequest) (*dto.AnalyticsResult, error)
}
