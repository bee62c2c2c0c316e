package interfaces

import (
	"context"

	"github.com/mailsignal/mailsignal/internal/models"
)

// EventPublisher fans categorized-email events out on the message bus
type EventPublisher interface {
	PublishEmailCategorized(ctx context.Context, email *models.Email) error
	Close() error
}
