package config

import (
	"log"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/mailsignal/mailsignal/internal/logger"
	"github.com/mailsignal/mailsignal/internal/tracing"
)

type Config struct {
	AppConfig        *AppConfig
	Logger           *logger.Config
	Tracing          *tracing.JaegerConfig
	AccountsConfig   *AccountsConfig
	ClassifierConfig *ClassifierConfig
	SearchConfig     *SearchConfig
	NotifierConfig   *NotifierConfig
	SyncConfig       *SyncConfig
}

func InitConfig() (*Config, error) {
	config := &Config{
		AppConfig:        &AppConfig{},
		Logger:           &logger.Config{},
		Tracing:          &tracing.JaegerConfig{},
		AccountsConfig:   &AccountsConfig{},
		ClassifierConfig: &ClassifierConfig{},
		SearchConfig:     &SearchConfig{},
		NotifierConfig:   &NotifierConfig{},
		SyncConfig:       &SyncConfig{},
	}

	err := godotenv.Load()
	if err != nil {
		log.Print("Unable to load .env file")
	}

	err = env.Parse(config)
	if err != nil {
		log.Fatalf("Error loading mailsignal config: %v", err)
	}

	return config, nil
}
