package syncsvc

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailsignal/mailsignal/config"
	"github.com/mailsignal/mailsignal/dto"
	"github.com/mailsignal/mailsignal/interfaces"
	"github.com/mailsignal/mailsignal/internal/enum"
	apperrors "github.com/mailsignal/mailsignal/internal/errors"
	"github.com/mailsignal/mailsignal/internal/logger"
	"github.com/mailsignal/mailsignal/internal/models"
	"github.com/mailsignal/mailsignal/services/cache"
)

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

type fakeManager struct {
	mu         sync.Mutex
	states     map[string]enum.ConnectionState
	registered map[string]bool
	connects   int
	closedAll  bool
	messages   map[string][]*interfaces.RawMessage
}

func newFakeManager() *fakeManager {
	return &fakeManager{
		states:     make(map[string]enum.ConnectionState),
		registered: make(map[string]bool),
		messages:   make(map[string][]*interfaces.RawMessage),
	}
}

func (m *fakeManager) Register(account *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.registered[account.ID] {
		return errors.Wrapf(apperrors.ErrAccountExists, "account %s", account.ID)
	}
	m.registered[account.ID] = true
	return nil
}

func (m *fakeManager) Connect(ctx context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connects++
	m.states[accountID] = enum.ConnectionConnected
	return nil
}

func (m *fakeManager) Close(accountID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[accountID] = enum.ConnectionDisconnected
}

func (m *fakeManager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closedAll = true
	for id := range m.states {
		m.states[id] = enum.ConnectionDisconnected
	}
}

func (m *fakeManager) State(accountID string) enum.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state, ok := m.states[accountID]; ok {
		return state
	}
	return enum.ConnectionDisconnected
}

func (m *fakeManager) Statuses() map[string]interfaces.AccountStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	statuses := make(map[string]interfaces.AccountStatus, len(m.states))
	for id, state := range m.states {
		statuses[id] = interfaces.AccountStatus{State: state}
	}
	return statuses
}

func (m *fakeManager) FetchRecent(ctx context.Context, accountID, folder string, limit int) ([]*interfaces.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messages[accountID], nil
}

func (m *fakeManager) connectCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connects
}

type fakeNormalizer struct{}

func (fakeNormalizer) Normalize(raw *interfaces.RawMessage, accountID string) *models.Email {
	return &models.Email{
		ID:        fmt.Sprintf("email_%s_%d", accountID, raw.UID),
		AccountID: accountID,
		Folder:    raw.Folder,
		Subject:   "normalized",
		Date:      time.Now().UTC(),
		Category:  enum.CategoryUncategorized,
	}
}

type fakeClassifier struct{}

func (fakeClassifier) Classify(ctx context.Context, email *models.Email) dto.ClassificationResult {
	return dto.ClassificationResult{
		Category:   enum.CategoryInterested,
		Confidence: 0.9,
		Reasoning:  "test verdict",
	}
}

func (f fakeClassifier) ClassifyBatch(ctx context.Context, emails []*models.Email) []dto.BatchItemResult {
	results := make([]dto.BatchItemResult, 0, len(emails))
	for _, email := range emails {
		results = append(results, dto.BatchItemResult{
			EmailID: email.ID,
			Result:  f.Classify(ctx, email),
		})
	}
	return results
}

func (fakeClassifier) ProviderStates() map[string]string { return map[string]string{} }

type fakeNotifier struct {
	mu    sync.Mutex
	count int
}

func (n *fakeNotifier) NotifyCategorized(ctx context.Context, email *models.Email) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.count++
}

func (n *fakeNotifier) notified() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.count
}

type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *fakePublisher) PublishEmailCategorized(ctx context.Context, email *models.Email) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, email.ID)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) published() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type disabledSearch struct{}

func (disabledSearch) Enabled() bool { return false }
func (disabledSearch) IndexDocument(ctx context.Context, email *models.Email) error {
	return nil
}
func (disabledSearch) BulkIndex(ctx context.Context, emails []*models.Email) error { return nil }
func (disabledSearch) Search(ctx context.Context, filter dto.EmailFilter) (*dto.EmailPage, error) {
	return nil, apperrors.ErrSearchUnavailable
}
func (disabledSearch) Aggregate(ctx context.Context) (map[string]int, error) {
	return nil, apperrors.ErrSearchUnavailable
}

type testHarness struct {
	service   *syncService
	manager   *fakeManager
	store     interfaces.EmailStore
	notifier  *fakeNotifier
	publisher *fakePublisher
}

func newHarness(accounts ...*models.Account) *testHarness {
	log := getLogger()
	manager := newFakeManager()
	store := cache.NewEmailStore(log)
	notifier := &fakeNotifier{}
	publisher := &fakePublisher{}

	cfg := &config.SyncConfig{
		IntervalMinutes:   5,
		HealthTickSeconds: 30,
		FetchLimit:        50,
	}

	service := NewSyncService(
		cfg, log, accounts, manager, fakeNormalizer{}, store,
		fakeClassifier{}, notifier, disabledSearch{}, publisher,
	).(*syncService)

	// Loops tick only when a test fires the channel
	service.newTicker = func(d time.Duration) (<-chan time.Time, func()) {
		return make(chan time.Time), func() {}
	}

	return &testHarness{
		service:   service,
		manager:   manager,
		store:     store,
		notifier:  notifier,
		publisher: publisher,
	}
}

func testAccount(id string) *models.Account {
	return &models.Account{
		ID:         id,
		ImapServer: "imap.example.com",
		ImapPort:   993,
		Username:   id + "@example.com",
		Active:     true,
	}
}

func seedMessages(manager *fakeManager, accountID string, count int) {
	for i := 0; i < count; i++ {
		manager.messages[accountID] = append(manager.messages[accountID], &interfaces.RawMessage{
			AccountID: accountID,
			Folder:    "INBOX",
			UID:       uint32(i + 1),
		})
	}
}

func TestStart_RunsInitialPipeline(t *testing.T) {
	h := newHarness(testAccount("acct1"))
	seedMessages(h.manager, "acct1", 3)

	require.NoError(t, h.service.Start(context.Background()))
	defer h.service.Stop()

	assert.Equal(t, 3, h.store.Count())
	assert.Equal(t, 3, h.notifier.notified())
	assert.Equal(t, 3, h.publisher.published())

	status := h.service.GetStatus()
	assert.True(t, status.IsRunning)
	assert.Equal(t, 1, status.ConnectedAccounts)
	assert.Equal(t, 1, status.TotalAccounts)
	require.NotNil(t, status.LastSync)

	// Every cached message carries a final primary category
	email, err := h.store.Get(context.Background(), "email_acct1_1")
	require.NoError(t, err)
	assert.Equal(t, enum.CategoryInterested, email.Category)
	assert.Equal(t, 0.9, email.CategoryConfidence)
}

func TestStart_AlreadyRunning(t *testing.T) {
	h := newHarness(testAccount("acct1"))

	require.NoError(t, h.service.Start(context.Background()))
	defer h.service.Stop()

	assert.Error(t, h.service.Start(context.Background()))
}

func TestStart_SkipsInactiveAccounts(t *testing.T) {
	inactive := testAccount("acct2")
	inactive.Active = false
	h := newHarness(testAccount("acct1"), inactive)
	seedMessages(h.manager, "acct2", 5)

	require.NoError(t, h.service.Start(context.Background()))
	defer h.service.Stop()

	status := h.service.GetStatus()
	assert.Equal(t, 1, status.TotalAccounts)
	assert.Equal(t, 0, h.store.Count())
}

func TestStop_TearsDownConnectionsAndCache(t *testing.T) {
	h := newHarness(testAccount("acct1"))
	seedMessages(h.manager, "acct1", 2)

	require.NoError(t, h.service.Start(context.Background()))
	require.Equal(t, 2, h.store.Count())

	require.NoError(t, h.service.Stop())

	assert.False(t, h.service.GetStatus().IsRunning)
	assert.True(t, h.manager.closedAll)
	assert.Equal(t, 0, h.store.Count())

	// Stop is idempotent
	require.NoError(t, h.service.Stop())
}

func TestTriggerManualSync_OneAccount(t *testing.T) {
	h := newHarness(testAccount("acct1"), testAccount("acct2"))
	seedMessages(h.manager, "acct1", 2)
	seedMessages(h.manager, "acct2", 4)

	runID := h.service.TriggerManualSync("acct1")

	assert.NotEmpty(t, runID)
	assert.Eventually(t, func() bool {
		return h.store.Count() == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTriggerManualSync_AllAccounts(t *testing.T) {
	h := newHarness(testAccount("acct1"), testAccount("acct2"))
	seedMessages(h.manager, "acct1", 2)
	seedMessages(h.manager, "acct2", 4)

	h.service.TriggerManualSync("")

	assert.Eventually(t, func() bool {
		return h.store.Count() == 6
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLoopCrashMarksServiceStopped(t *testing.T) {
	h := newHarness(testAccount("acct1"))

	require.NoError(t, h.service.Start(context.Background()))
	require.True(t, h.service.GetStatus().IsRunning)

	// A crashed loop must never leave a half-alive supervisor reporting
	// itself as running
	func() {
		defer h.service.recoverLoop("periodic sync")
		panic("ticker handler blew up")
	}()

	assert.False(t, h.service.GetStatus().IsRunning)

	// Start is the single restart entry point after a crash
	require.NoError(t, h.service.Start(context.Background()))
	assert.True(t, h.service.GetStatus().IsRunning)
	require.NoError(t, h.service.Stop())
}

func TestHealthLoop_DrivenByTicker(t *testing.T) {
	h := newHarness(testAccount("acct1"))
	healthTick := make(chan time.Time)
	h.service.newTicker = func(d time.Duration) (<-chan time.Time, func()) {
		if d == 30*time.Second {
			return healthTick, func() {}
		}
		return make(chan time.Time), func() {}
	}

	require.NoError(t, h.service.Start(context.Background()))
	defer h.service.Stop()

	h.manager.Close("acct1")
	require.Equal(t, enum.ConnectionDisconnected, h.manager.State("acct1"))

	healthTick <- time.Now()

	assert.Eventually(t, func() bool {
		return h.manager.State("acct1") == enum.ConnectionConnected
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHealAccounts_ReconnectsUnhealthy(t *testing.T) {
	h := newHarness(testAccount("acct1"), testAccount("acct2"))
	ctx := context.Background()

	require.NoError(t, h.service.Start(ctx))
	defer h.service.Stop()
	connectsAfterStart := h.manager.connectCount()

	h.manager.Close("acct1")
	h.service.healAccounts(ctx)

	assert.Equal(t, enum.ConnectionConnected, h.manager.State("acct1"))
	assert.Equal(t, connectsAfterStart+1, h.manager.connectCount())

	// Healthy accounts are left alone
	h.service.healAccounts(ctx)
	assert.Equal(t, connectsAfterStart+1, h.manager.connectCount())
}
