package services

import (
	"time"

	"github.com/mailsignal/mailsignal/config"
	"github.com/mailsignal/mailsignal/interfaces"
	"github.com/mailsignal/mailsignal/internal/logger"
	"github.com/mailsignal/mailsignal/internal/models"
	"github.com/mailsignal/mailsignal/services/cache"
	"github.com/mailsignal/mailsignal/services/classifier"
	"github.com/mailsignal/mailsignal/services/events"
	"github.com/mailsignal/mailsignal/services/imap"
	"github.com/mailsignal/mailsignal/services/normalizer"
	"github.com/mailsignal/mailsignal/services/notifier"
	"github.com/mailsignal/mailsignal/services/rules"
	"github.com/mailsignal/mailsignal/services/search"
	"github.com/mailsignal/mailsignal/services/syncsvc"
)

type Services struct {
	Accounts          []*models.Account
	ConnectionManager interfaces.ConnectionManager
	EmailStore        interfaces.EmailStore
	Classifier        interfaces.ClassificationService
	SearchIndex       interfaces.SearchIndex
	Notifier          interfaces.Notifier
	EventPublisher    interfaces.EventPublisher
	SyncService       interfaces.SyncService
}

func InitServices(cfg *config.Config, log logger.Logger) (*Services, error) {
	accounts, err := cfg.AccountsConfig.Accounts()
	if err != nil {
		return nil, err
	}

	manager := imap.NewConnectionManager(imap.Config{
		ConnectTimeout: time.Duration(cfg.SyncConfig.ConnectTimeoutSecs) * time.Second,
		AuthTimeout:    time.Duration(cfg.SyncConfig.AuthTimeoutSecs) * time.Second,
	}, log)

	store := cache.NewEmailStore(log)

	var providers []interfaces.ClassifierProvider
	if cfg.ClassifierConfig.OpenAIAPIKey != "" {
		providers = append(providers, classifier.NewOpenAIProvider(cfg.ClassifierConfig))
	}
	if cfg.ClassifierConfig.GeminiAPIKey != "" {
		providers = append(providers, classifier.NewGeminiProvider(cfg.ClassifierConfig))
	}
	classificationService := classifier.NewClassificationService(cfg.ClassifierConfig, log, providers, rules.DefaultRemapTable())

	searchIndex := search.NewSearchIndex(cfg.SearchConfig, log)
	notifierService := notifier.NewNotifierService(cfg.NotifierConfig, log)

	publisher := interfaces.EventPublisher(events.NewNoopPublisher())
	if cfg.AppConfig.RabbitMQURL != "" {
		publisher, err = events.NewRabbitMQPublisher(cfg.AppConfig.RabbitMQURL, log, nil)
		if err != nil {
			return nil, err
		}
	}

	syncService := syncsvc.NewSyncService(
		cfg.SyncConfig,
		log,
		accounts,
		manager,
		normalizer.NewNormalizerService(log),
		store,
		classificationService,
		notifierService,
		searchIndex,
		publisher,
	)

	return &Services{
		Accounts:          accounts,
		ConnectionManager: manager,
		EmailStore:        store,
		Classifier:        classificationService,
		SearchIndex:       searchIndex,
		Notifier:          notifierService,
		EventPublisher:    publisher,
		SyncService:       syncService,
	}, nil
}
