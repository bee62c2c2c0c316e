package syncsvc

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/mailsignal/mailsignal/config"
	"github.com/mailsignal/mailsignal/interfaces"
	"github.com/mailsignal/mailsignal/internal/enum"
	apperrors "github.com/mailsignal/mailsignal/internal/errors"
	"github.com/mailsignal/mailsignal/internal/logger"
	"github.com/mailsignal/mailsignal/internal/models"
	"github.com/mailsignal/mailsignal/internal/tracing"
	"github.com/mailsignal/mailsignal/internal/utils"
)

// normalizer is the piece of the normalization service the supervisor
// needs; narrowed for test fakes
type normalizer interface {
	Normalize(raw *interfaces.RawMessage, accountID string) *models.Email
}

// tickerFactory abstracts time.Ticker so tests can drive the loops
type tickerFactory func(d time.Duration) (<-chan time.Time, func())

func defaultTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// syncService owns the fetch, normalize, classify, notify pipeline and
// the connection lifecycle around it. The connection manager never
// retries on its own; reconnection lives in the health loop here.
type syncService struct {
	cfg        *config.SyncConfig
	log        logger.Logger
	accounts   []*models.Account
	manager    interfaces.ConnectionManager
	normalizer normalizer
	store      interfaces.EmailStore
	classifier interfaces.ClassificationService
	notifier   interfaces.Notifier
	search     interfaces.SearchIndex
	publisher  interfaces.EventPublisher
	newTicker  tickerFactory

	mu        sync.Mutex
	isRunning bool
	lastSync  *time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewSyncService(
	cfg *config.SyncConfig,
	log logger.Logger,
	accounts []*models.Account,
	manager interfaces.ConnectionManager,
	normalizerService normalizer,
	store interfaces.EmailStore,
	classifierService interfaces.ClassificationService,
	notifierService interfaces.Notifier,
	searchIndex interfaces.SearchIndex,
	publisher interfaces.EventPublisher,
) interfaces.SyncService {
	return &syncService{
		cfg:        cfg,
		log:        log,
		accounts:   accounts,
		manager:    manager,
		normalizer: normalizerService,
		store:      store,
		classifier: classifierService,
		notifier:   notifierService,
		search:     searchIndex,
		publisher:  publisher,
		newTicker:  defaultTicker,
	}
}

// Start registers and connects every active account sequentially, runs
// the initial load, then launches the periodic sync and health loops.
// A failing account degrades; it never aborts startup.
func (s *syncService) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return errors.New("sync service already running")
	}
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.isRunning = true
	s.mu.Unlock()

	span, ctx := opentracing.StartSpanFromContext(ctx, "syncService.Start")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	for _, account := range s.activeAccounts() {
		// A restart after a loop crash finds the accounts already registered
		if err := s.manager.Register(account); err != nil && !errors.Is(err, apperrors.ErrAccountExists) {
			tracing.TraceErr(span, err)
			s.log.Errorf("[%s] failed to register account: %v", account.ID, err)
			continue
		}
		if err := s.manager.Connect(ctx, account.ID); err != nil {
			tracing.TraceErr(span, err)
			s.log.Errorf("[%s] initial connect failed, health loop will retry: %v", account.ID, err)
			continue
		}
		s.syncAccount(ctx, account)
	}

	s.wg.Add(2)
	go s.runPeriodicSync(runCtx)
	go s.runHealthLoop(runCtx)

	return nil
}

// Stop tears down the loops, the connections and the cache
func (s *syncService) Stop() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.manager.CloseAll()
	s.store.Clear()
	s.log.Info("sync service stopped")
	return nil
}

// TriggerManualSync kicks one account (or all, for an empty id or
// "all") in the background and returns the run id for log correlation
func (s *syncService) TriggerManualSync(accountID string) string {
	runID := uuid.New().String()
	if accountID == "all" {
		accountID = ""
	}

	go func() {
		defer tracing.RecoverAndLog(s.log)

		ctx := context.Background()
		span, ctx := opentracing.StartSpanFromContext(ctx, "syncService.ManualSync")
		defer span.Finish()
		tracing.SetDefaultServiceSpanTags(ctx, span)
		span.LogKV("runId", runID)

		s.log.Infof("manual sync %s started for account %q", runID, accountID)
		for _, account := range s.activeAccounts() {
			if accountID != "" && account.ID != accountID {
				continue
			}
			s.ensureConnected(ctx, account)
			s.syncAccount(ctx, account)
		}
		s.log.Infof("manual sync %s finished", runID)
	}()

	return runID
}

func (s *syncService) GetStatus() interfaces.SyncStatus {
	s.mu.Lock()
	isRunning := s.isRunning
	lastSync := s.lastSync
	s.mu.Unlock()

	connected := 0
	for _, status := range s.manager.Statuses() {
		if status.State == enum.ConnectionConnected {
			connected++
		}
	}

	return interfaces.SyncStatus{
		IsRunning:         isRunning,
		ConnectedAccounts: connected,
		TotalAccounts:     len(s.activeAccounts()),
		LastSync:          lastSync,
	}
}

func (s *syncService) runPeriodicSync(ctx context.Context) {
	defer s.wg.Done()
	defer s.recoverLoop("periodic sync")

	tick, stop := s.newTicker(time.Duration(s.cfg.IntervalMinutes) * time.Minute)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			s.syncAll(ctx)
		}
	}
}

// runHealthLoop reconnects accounts the connection manager reports as
// unhealthy; a successful reconnect is followed by a catch-up sync
func (s *syncService) runHealthLoop(ctx context.Context) {
	defer s.wg.Done()
	defer s.recoverLoop("health")

	tick, stop := s.newTicker(time.Duration(s.cfg.HealthTickSeconds) * time.Second)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			s.healAccounts(ctx)
		}
	}
}

// recoverLoop catches a crashed supervisor loop and marks the service
// stopped so the scheduler's guard brings it back through Start. The
// sibling loop is cancelled too; a half-alive supervisor must never
// report isRunning true.
func (s *syncService) recoverLoop(name string) {
	r := recover()
	if r == nil {
		return
	}
	s.log.Errorf("sync %s loop crashed: %v", name, r)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		s.isRunning = false
		s.cancel()
	}
}

func (s *syncService) healAccounts(ctx context.Context) {
	for _, account := range s.activeAccounts() {
		state := s.manager.State(account.ID)
		if state == enum.ConnectionConnected || state == enum.ConnectionConnecting {
			continue
		}

		s.log.Warnf("[%s] unhealthy connection (%s), reconnecting", account.ID, state)
		s.manager.Close(account.ID)
		if err := s.manager.Connect(ctx, account.ID); err != nil {
			s.log.Errorf("[%s] reconnect failed: %v", account.ID, err)
			continue
		}
		s.syncAccount(ctx, account)
	}
}

// syncAll runs every account concurrently; per-account failures are
// isolated
func (s *syncService) syncAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, account := range s.activeAccounts() {
		wg.Add(1)
		go func(account *models.Account) {
			defer wg.Done()
			defer tracing.RecoverAndLog(s.log)
			s.ensureConnected(ctx, account)
			s.syncAccount(ctx, account)
		}(account)
	}
	wg.Wait()
}

func (s *syncService) ensureConnected(ctx context.Context, account *models.Account) {
	if s.manager.State(account.ID) == enum.ConnectionConnected {
		return
	}
	if err := s.manager.Register(account); err != nil && !errors.Is(err, apperrors.ErrAccountExists) {
		s.log.Errorf("[%s] failed to register account: %v", account.ID, err)
	}
	if err := s.manager.Connect(ctx, account.ID); err != nil {
		s.log.Errorf("[%s] connect failed: %v", account.ID, err)
	}
}

// syncAccount runs the full pipeline for one account: fetch recent
// messages per folder, normalize, cache, classify, then fan out.
func (s *syncService) syncAccount(ctx context.Context, account *models.Account) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncService.syncAccount")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, account.ID)

	var stored []*models.Email
	for _, folder := range account.Folders() {
		raws, err := s.manager.FetchRecent(ctx, account.ID, folder, s.cfg.FetchLimit)
		if err != nil {
			tracing.TraceErr(span, err)
			s.log.Errorf("[%s] fetch failed for folder %s: %v", account.ID, folder, err)
			continue
		}

		for _, raw := range raws {
			email := s.normalizer.Normalize(raw, account.ID)
			record, _ := s.store.Upsert(ctx, email)
			stored = append(stored, record)
		}
	}

	if len(stored) > 0 {
		s.classifyAndFanOut(ctx, stored)
	}

	now := utils.Now()
	s.mu.Lock()
	s.lastSync = &now
	s.mu.Unlock()

	s.log.Infof("[%s] sync complete: %d messages processed, cache size %d", account.ID, len(stored), s.store.Count())
}

func (s *syncService) classifyAndFanOut(ctx context.Context, emails []*models.Email) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncService.classifyAndFanOut")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("emails", len(emails))

	results := s.classifier.ClassifyBatch(ctx, emails)

	updated := make([]*models.Email, 0, len(results))
	for _, item := range results {
		record, err := s.store.Update(ctx, item.EmailID, models.UpdateFields{
			Category:   &item.Result.Category,
			Confidence: &item.Result.Confidence,
			Reason:     &item.Result.Reasoning,
		})
		if err != nil {
			tracing.TraceErr(span, err)
			s.log.Errorf("failed to store classification for %s: %v", item.EmailID, err)
			continue
		}
		updated = append(updated, record)

		s.notifier.NotifyCategorized(ctx, record)
		if err := s.publisher.PublishEmailCategorized(ctx, record); err != nil {
			s.log.Errorf("failed to publish categorized event for %s: %v", record.ID, err)
		}
	}

	if s.search.Enabled() && len(updated) > 0 {
		if err := s.search.BulkIndex(ctx, updated); err != nil {
			s.log.Warnf("search index update failed, in-memory query still serves: %v", err)
		}
	}
}

func (s *syncService) activeAccounts() []*models.Account {
	result := make([]*models.Account, 0, len(s.accounts))
	for _, account := range s.accounts {
		if account.Active {
			result = append(result, account)
		}
	}
	return result
}
