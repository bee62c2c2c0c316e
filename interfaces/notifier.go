package interfaces

import (
	"context"

	"github.com/mailsignal/mailsignal/internal/models"
)

// Notifier dispatches classification outcomes to external receivers.
// Dispatch is fire-and-forget relative to the ingestion path.
type Notifier interface {
	NotifyCategorized(ctx context.Context, email *models.Email)
}
