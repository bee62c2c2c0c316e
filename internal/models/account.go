package models

import "github.com/mailsignal/mailsignal/internal/enum"

// Account identifies one remote mailbox. Accounts are built from
// configuration at startup and never mutated afterwards.
type Account struct {
	ID          string            `json:"id"`
	ImapServer  string            `json:"imapServer"`
	ImapPort    int               `json:"imapPort"`
	Username    string            `json:"username"`
	Password    string            `json:"-"`
	Security    enum.MailSecurity `json:"security"`
	Active      bool              `json:"active"`
	SyncFolders []string          `json:"syncFolders"`
}

// Folders returns the configured sync folders, defaulting to INBOX
func (a *Account) Folders() []string {
	if len(a.SyncFolders) == 0 {
		return []string{"INBOX"}
	}
	return a.SyncFolders
}
