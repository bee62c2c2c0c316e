package interfaces

import (
	"context"
	"time"

	"github.com/emersion/go-imap"

	"github.com/mailsignal/mailsignal/internal/enum"
	"github.com/mailsignal/mailsignal/internal/models"
)

// ConnectionManager owns one persistent IMAP session per registered
// account. It never reconnects on its own; retry is the sync
// supervisor's responsibility.
type ConnectionManager interface {
	Register(account *models.Account) error
	Connect(ctx context.Context, accountID string) error
	Close(accountID string)
	CloseAll()
	State(accountID string) enum.ConnectionState
	Statuses() map[string]AccountStatus
	FetchRecent(ctx context.Context, accountID, folder string, limit int) ([]*RawMessage, error)
}

type AccountStatus struct {
	State       enum.ConnectionState `json:"state"`
	LastError   string               `json:"lastError,omitempty"`
	LastChecked time.Time            `json:"lastChecked"`
}

// RawMessage is one fetched message before normalization
type RawMessage struct {
	AccountID string
	Folder    string
	UID       uint32
	SeqNum    uint32
	Envelope  *imap.Envelope
	Flags     []string
	Structure *imap.BodyStructure
	Literal   []byte
}
