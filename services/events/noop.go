package events

import (
	"context"

	"github.com/mailsignal/mailsignal/interfaces"
	"github.com/mailsignal/mailsignal/internal/models"
)

// noopPublisher stands in when no message bus is configured
type noopPublisher struct{}

func NewNoopPublisher() interfaces.EventPublisher {
	return noopPublisher{}
}

func (noopPublisher) PublishEmailCategorized(ctx context.Context, email *models.Email) error {
	return nil
}

func (noopPublisher) Close() error {
	return nil
}
