package imap

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap/client"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/mailsignal/mailsignal/interfaces"
	"github.com/mailsignal/mailsignal/internal/enum"
	apperrors "github.com/mailsignal/mailsignal/internal/errors"
	"github.com/mailsignal/mailsignal/internal/logger"
	"github.com/mailsignal/mailsignal/internal/models"
	"github.com/mailsignal/mailsignal/internal/tracing"
	"github.com/mailsignal/mailsignal/internal/utils"
)

const (
	defaultConnectTimeout = 30 * time.Second
	defaultAuthTimeout    = 30 * time.Second
	logoutTimeout         = 5 * time.Second
	fetchTimeout          = 60 * time.Second
)

type Config struct {
	ConnectTimeout time.Duration
	AuthTimeout    time.Duration
}

// ConnectionManager owns one IMAP session per account. It performs no
// automatic reconnection: a failed connection stays disconnected until
// the sync supervisor asks for a new attempt.
type ConnectionManager struct {
	cfg          Config
	log          logger.Logger
	accounts     map[string]*models.Account
	clients      map[string]*client.Client
	clientsMutex sync.RWMutex
	statuses     map[string]interfaces.AccountStatus
	statusMutex  sync.RWMutex
}

func NewConnectionManager(cfg Config, log logger.Logger) interfaces.ConnectionManager {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.AuthTimeout == 0 {
		cfg.AuthTimeout = defaultAuthTimeout
	}
	return &ConnectionManager{
		cfg:      cfg,
		log:      log,
		accounts: make(map[string]*models.Account),
		clients:  make(map[string]*client.Client),
		statuses: make(map[string]interfaces.AccountStatus),
	}
}

// Register adds an account configuration without connecting it
func (s *ConnectionManager) Register(account *models.Account) error {
	if account == nil {
		return errors.New("account is nil")
	}

	s.clientsMutex.Lock()
	defer s.clientsMutex.Unlock()

	if _, exists := s.accounts[account.ID]; exists {
		return errors.Wrap(apperrors.ErrAccountExists, account.ID)
	}
	s.accounts[account.ID] = account
	s.setStatus(account.ID, enum.ConnectionDisconnected, "")
	return nil
}

// Connect brings up the session for one account. A timeout or auth error
// is terminal for this attempt and leaves the account disconnected.
func (s *ConnectionManager) Connect(ctx context.Context, accountID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ConnectionManager.Connect")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, accountID)

	s.clientsMutex.RLock()
	account, exists := s.accounts[accountID]
	s.clientsMutex.RUnlock()
	if !exists {
		err := errors.Wrap(apperrors.ErrAccountNotFound, accountID)
		tracing.TraceErr(span, err)
		return err
	}

	s.setStatus(accountID, enum.ConnectionConnecting, "")

	c, err := s.dialAndLogin(ctx, account)
	if err != nil {
		s.setStatus(accountID, enum.ConnectionDisconnected, err.Error())
		tracing.TraceErr(span, err)
		return err
	}

	s.clientsMutex.Lock()
	// Clean up any previous session before replacing it
	if existing, ok := s.clients[accountID]; ok {
		existing.Timeout = logoutTimeout
		go existing.Logout()
	}
	s.clients[accountID] = c
	s.clientsMutex.Unlock()

	s.setStatus(accountID, enum.ConnectionConnected, "")
	s.log.Infof("[%s] connected to %s:%d", accountID, account.ImapServer, account.ImapPort)
	return nil
}

// Close logs out and removes one account's session
func (s *ConnectionManager) Close(accountID string) {
	s.clientsMutex.Lock()
	c, exists := s.clients[accountID]
	delete(s.clients, accountID)
	s.clientsMutex.Unlock()

	if exists {
		s.logoutWithTimeout(accountID, c)
	}
	s.setStatus(accountID, enum.ConnectionDisconnected, "")
}

// CloseAll tears down every session
func (s *ConnectionManager) CloseAll() {
	s.clientsMutex.Lock()
	clients := make(map[string]*client.Client, len(s.clients))
	for id, c := range s.clients {
		clients[id] = c
		delete(s.clients, id)
	}
	s.clientsMutex.Unlock()

	for id, c := range clients {
		s.logoutWithTimeout(id, c)
		s.setStatus(id, enum.ConnectionDisconnected, "")
	}
}

func (s *ConnectionManager) State(accountID string) enum.ConnectionState {
	s.statusMutex.RLock()
	defer s.statusMutex.RUnlock()
	if status, ok := s.statuses[accountID]; ok {
		return status.State
	}
	return enum.ConnectionDisconnected
}

// Statuses returns a copy of every account's status
func (s *ConnectionManager) Statuses() map[string]interfaces.AccountStatus {
	s.statusMutex.RLock()
	defer s.statusMutex.RUnlock()

	result := make(map[string]interfaces.AccountStatus, len(s.statuses))
	for id, status := range s.statuses {
		result[id] = status
	}
	return result
}

func (s *ConnectionManager) setStatus(accountID string, state enum.ConnectionState, lastError string) {
	s.statusMutex.Lock()
	defer s.statusMutex.Unlock()
	s.statuses[accountID] = interfaces.AccountStatus{
		State:       state,
		LastError:   lastError,
		LastChecked: utils.Now(),
	}
}

func (s *ConnectionManager) getClient(accountID string) (*client.Client, error) {
	s.clientsMutex.RLock()
	c, exists := s.clients[accountID]
	s.clientsMutex.RUnlock()
	if !exists {
		return nil, errors.Wrap(apperrors.ErrNotConnected, accountID)
	}
	return c, nil
}

func (s *ConnectionManager) logoutWithTimeout(accountID string, c *client.Client) {
	if c == nil {
		return
	}

	c.Timeout = logoutTimeout
	done := make(chan error, 1)
	go func() {
		done <- c.Logout()
	}()

	select {
	case err := <-done:
		if err != nil {
			s.log.Warnf("[%s] error during logout: %v", accountID, err)
		}
	case <-time.After(logoutTimeout + time.Second):
		s.log.Warnf("[%s] logout timed out", accountID)
	}
}

// isConnectionError reports whether an error means the remote session is gone
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	errorMsg := err.Error()
	return strings.Contains(errorMsg, "connection closed") ||
		strings.Contains(errorMsg, "i/o timeout") ||
		strings.Contains(errorMsg, "EOF") ||
		strings.Contains(errorMsg, "connection reset") ||
		strings.Contains(errorMsg, "broken pipe")
}
