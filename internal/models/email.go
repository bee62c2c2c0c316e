package models

import (
	"time"

	"github.com/mailsignal/mailsignal/internal/enum"
)

// EmailAddress is the uniform shape every address field normalizes to
type EmailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Attachment holds attachment metadata; binaries are never stored
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
	Disposition string `json:"disposition"`
}

// Email is the canonical, provider-agnostic representation of one mail item
type Email struct {
	ID        string `json:"id"`
	MessageID string `json:"messageId"`
	AccountID string `json:"accountId"`
	Folder    string `json:"folder"`
	ImapUID   uint32 `json:"imapUid"`

	Subject      string         `json:"subject"`
	CleanSubject string         `json:"cleanSubject"`
	From         EmailAddress   `json:"from"`
	To           []EmailAddress `json:"to"`
	Cc           []EmailAddress `json:"cc"`
	Bcc          []EmailAddress `json:"bcc"`

	BodyText string `json:"bodyText"`
	BodyHTML string `json:"bodyHtml"`

	Date  time.Time `json:"date"`
	Flags []string  `json:"flags"`

	HasAttachment bool         `json:"hasAttachment"`
	Attachments   []Attachment `json:"attachments,omitempty"`

	ThreadID   string   `json:"threadId"`
	InReplyTo  string   `json:"inReplyTo"`
	References []string `json:"references,omitempty"`

	Category             enum.Category `json:"category"`
	CategoryConfidence   float64       `json:"categoryConfidence"`
	ClassificationReason string        `json:"classificationReason,omitempty"`

	IsRead    bool `json:"isRead"`
	IsStarred bool `json:"isStarred"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SenderMatches reports whether the sender name or address contains the
// given lowercase needle
func (e *Email) SenderMatches(needle string) bool {
	if needle == "" {
		return true
	}
	return containsFold(e.From.Name, needle) || containsFold(e.From.Address, needle)
}

// Clone returns a deep copy so readers never share mutable slices with the store
func (e *Email) Clone() *Email {
	clone := *e
	clone.To = append([]EmailAddress(nil), e.To...)
	clone.Cc = append([]EmailAddress(nil), e.Cc...)
	clone.Bcc = append([]EmailAddress(nil), e.Bcc...)
	clone.Flags = append([]string(nil), e.Flags...)
	clone.Attachments = append([]Attachment(nil), e.Attachments...)
	clone.References = append([]string(nil), e.References...)
	return &clone
}

// UpdateFields carries the mutable subset accepted by the store's Update
type UpdateFields struct {
	IsRead     *bool          `json:"isRead,omitempty"`
	IsStarred  *bool          `json:"isStarred,omitempty"`
	Folder     *string        `json:"folder,omitempty"`
	Category   *enum.Category `json:"category,omitempty"`
	Confidence *float64       `json:"confidence,omitempty"`
	Reason     *string        `json:"reason,omitempty"`
}

// Empty reports whether no field is set
func (u UpdateFields) Empty() bool {
	return u.IsRead == nil && u.IsStarred == nil && u.Folder == nil &&
		u.Category == nil && u.Confidence == nil && u.Reason == nil
}
