package config

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/mailsignal/mailsignal/internal/enum"
	"github.com/mailsignal/mailsignal/internal/models"
)

type AppConfig struct {
	APIPort     string `env:"PORT" envDefault:"12233"`
	APIKey      string `env:"API_KEY,required"`
	RabbitMQURL string `env:"RABBITMQ_URL"`
}

// AccountsConfig carries the remote mailbox credentials as a JSON list,
// e.g. IMAP_ACCOUNTS='[{"id":"acct1","host":"imap.example.com","port":993,...}]'
type AccountsConfig struct {
	AccountsJSON string `env:"IMAP_ACCOUNTS,required"`
}

type accountEntry struct {
	ID       string   `json:"id"`
	Host     string   `json:"host"`
	Port     int      `json:"port"`
	User     string   `json:"user"`
	Password string   `json:"password"`
	TLS      bool     `json:"tls"`
	Active   *bool    `json:"active"`
	Folders  []string `json:"folders"`
}

// Accounts parses the configured account list into immutable Account records
func (c *AccountsConfig) Accounts() ([]*models.Account, error) {
	var entries []accountEntry
	if err := json.Unmarshal([]byte(c.AccountsJSON), &entries); err != nil {
		return nil, errors.Wrap(err, "failed to parse IMAP_ACCOUNTS")
	}

	accounts := make([]*models.Account, 0, len(entries))
	for _, entry := range entries {
		if entry.ID == "" || entry.Host == "" || entry.User == "" {
			return nil, errors.Errorf("account entry missing id, host or user: %+v", entry.ID)
		}
		port := entry.Port
		if port == 0 {
			port = 993
		}
		security := enum.MailSecurityNone
		if entry.TLS {
			security = enum.MailSecurityTLS
		}
		active := true
		if entry.Active != nil {
			active = *entry.Active
		}
		accounts = append(accounts, &models.Account{
			ID:          entry.ID,
			ImapServer:  entry.Host,
			ImapPort:    port,
			Username:    entry.User,
			Password:    entry.Password,
			Security:    security,
			Active:      active,
			SyncFolders: entry.Folders,
		})
	}

	return accounts, nil
}

type ClassifierConfig struct {
	OpenAIAPIKey   string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL  string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	OpenAIModel    string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	GeminiAPIKey   string `env:"GEMINI_API_KEY"`
	GeminiBaseURL  string `env:"GEMINI_BASE_URL" envDefault:"https://generativelanguage.googleapis.com/v1beta"`
	GeminiModel    string `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`
	RequestTimeout int    `env:"CLASSIFIER_REQUEST_TIMEOUT_SECONDS" envDefault:"30"`
	BatchSize      int    `env:"CLASSIFIER_BATCH_SIZE" envDefault:"5"`
	BatchDelayMs   int    `env:"CLASSIFIER_BATCH_DELAY_MS" envDefault:"1000"`
}

type SearchConfig struct {
	URL      string `env:"SEARCH_INDEX_URL"`
	Index    string `env:"SEARCH_INDEX_NAME" envDefault:"emails"`
	Username string `env:"SEARCH_INDEX_USERNAME"`
	Password string `env:"SEARCH_INDEX_PASSWORD"`
}

type NotifierConfig struct {
	SlackWebhookURL   string `env:"SLACK_WEBHOOK_URL"`
	SlackChannel      string `env:"SLACK_CHANNEL"`
	GenericWebhookURL string `env:"WEBHOOK_URL"`
	MaxRetries        int    `env:"WEBHOOK_MAX_RETRIES" envDefault:"3"`
}

type SyncConfig struct {
	FetchLimit          int `env:"SYNC_FETCH_LIMIT" envDefault:"100"`
	IntervalMinutes     int `env:"SYNC_INTERVAL_MINUTES" envDefault:"20"`
	HealthTickSeconds   int `env:"SYNC_HEALTH_TICK_SECONDS" envDefault:"60"`
	ConnectTimeoutSecs  int `env:"IMAP_CONNECT_TIMEOUT_SECONDS" envDefault:"30"`
	AuthTimeoutSecs     int `env:"IMAP_AUTH_TIMEOUT_SECONDS" envDefault:"30"`
}
