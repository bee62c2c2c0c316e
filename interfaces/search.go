package interfaces

import (
	"context"

	"github.com/mailsignal/mailsignal/dto"
	"github.com/mailsignal/mailsignal/internal/models"
)

// SearchIndex is the optional external document store. Every caller must
// function correctly with this collaborator absent or failing, falling
// back to the in-memory query path.
type SearchIndex interface {
	Enabled() bool
	IndexDocument(ctx context.Context, email *models.Email) error
	BulkIndex(ctx context.Context, emails []*models.Email) error
	Search(ctx context.Context, filter dto.EmailFilter) (*dto.EmailPage, error)
	Aggregate(ctx context.Context) (map[string]int, error)
}
