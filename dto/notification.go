package dto

import (
	"time"

	"github.com/mailsignal/mailsignal/internal/enum"
)

const (
	NotificationBodyLimit      = 500
	NotificationRecipientLimit = 5
)

// EmailNotification is the sanitized, size-bounded projection sent to
// webhook receivers: body truncated, recipient list capped.
type EmailNotification struct {
	Event       enum.NotificationEvent `json:"event"`
	EmailID     string                 `json:"emailId"`
	AccountID   string                 `json:"accountId"`
	Folder      string                 `json:"folder"`
	Subject     string                 `json:"subject"`
	FromName    string                 `json:"fromName"`
	FromAddress string                 `json:"fromAddress"`
	To          []string               `json:"to"`
	BodyPreview string                 `json:"bodyPreview"`
	Category    enum.Category          `json:"category"`
	Confidence  float64                `json:"confidence"`
	Date        time.Time              `json:"date"`
}

// EmailCategorized is the event fanned out on the message bus after a
// message has a final category.
type EmailCategorized struct {
	EmailID    string        `json:"emailId"`
	AccountID  string        `json:"accountId"`
	Category   enum.Category `json:"category"`
	Confidence float64       `json:"confidence"`
	OccurredAt time.Time     `json:"occurredAt"`
}
