package interfaces

import (
	"context"
	"time"
)

// SyncService supervises the fetch/normalize/classify pipeline
type SyncService interface {
	Start(ctx context.Context) error
	Stop() error
	TriggerManualSync(accountID string) string
	GetStatus() SyncStatus
}

type SyncStatus struct {
	IsRunning         bool       `json:"isRunning"`
	ConnectedAccounts int        `json:"connectedAccounts"`
	TotalAccounts     int        `json:"totalAccounts"`
	LastSync          *time.Time `json:"lastSync,omitempty"`
}
