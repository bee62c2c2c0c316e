package cache

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/mailsignal/mailsignal/interfaces"
	"github.com/mailsignal/mailsignal/internal/enum"
	apperrors "github.com/mailsignal/mailsignal/internal/errors"
	"github.com/mailsignal/mailsignal/internal/logger"
	"github.com/mailsignal/mailsignal/internal/models"
	"github.com/mailsignal/mailsignal/internal/utils"
)

// EmailStore is the memory-resident cache: partitioned by account,
// queried over the union, rebuildable from a full sync at any time.
// Mutation is serialized; readers always see whole records.
type EmailStore struct {
	log logger.Logger

	mu        sync.RWMutex
	byAccount map[string]map[string]*models.Email
	accountOf map[string]string
	order     map[string]int64
	seq       int64
}

func NewEmailStore(log logger.Logger) interfaces.EmailStore {
	return &EmailStore{
		log:       log,
		byAccount: make(map[string]map[string]*models.Email),
		accountOf: make(map[string]string),
		order:     make(map[string]int64),
	}
}

// Upsert stores a message, updating in place when the deterministic id
// already exists. Returns the stored record and whether it was created.
func (s *EmailStore) Upsert(ctx context.Context, email *models.Email) (*models.Email, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := email.Clone()
	now := utils.Now()

	if existingAccount, ok := s.accountOf[record.ID]; ok {
		existing := s.byAccount[existingAccount][record.ID]
		// Content refresh: identity, ownership and creation time survive,
		// user state survives, updatedAt advances monotonically
		record.AccountID = existing.AccountID
		record.CreatedAt = existing.CreatedAt
		record.IsRead = record.IsRead || existing.IsRead
		record.IsStarred = existing.IsStarred
		record.UpdatedAt = monotonicAfter(existing.UpdatedAt, now)
		s.byAccount[existingAccount][record.ID] = record
		return record.Clone(), false
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	partition, ok := s.byAccount[record.AccountID]
	if !ok {
		partition = make(map[string]*models.Email)
		s.byAccount[record.AccountID] = partition
	}
	partition[record.ID] = record
	s.accountOf[record.ID] = record.AccountID
	s.seq++
	s.order[record.ID] = s.seq

	return record.Clone(), true
}

// Get returns a copy of one record
func (s *EmailStore) Get(ctx context.Context, id string) (*models.Email, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return record.Clone(), nil
}

// Update applies a partial mutation atomically to one record
func (s *EmailStore) Update(ctx context.Context, id string, fields models.UpdateFields) (*models.Email, error) {
	if fields.Empty() {
		return nil, errors.Wrap(apperrors.ErrInvalidInput, "no update fields provided")
	}
	if fields.Confidence != nil && (*fields.Confidence < 0 || *fields.Confidence > 1) {
		return nil, errors.Wrap(apperrors.ErrInvalidInput, "confidence must be within [0,1]")
	}
	if fields.Category != nil {
		normalized := enum.NormalizeCategory(fields.Category.String())
		if normalized == enum.CategoryUncategorized && *fields.Category != enum.CategoryUncategorized {
			return nil, errors.Wrapf(apperrors.ErrInvalidInput, "unknown category %q", *fields.Category)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	// Copy-on-write so concurrent readers holding the old pointer never
	// observe a half-applied update
	record := existing.Clone()
	if fields.IsRead != nil {
		record.IsRead = *fields.IsRead
	}
	if fields.IsStarred != nil {
		record.IsStarred = *fields.IsStarred
	}
	if fields.Folder != nil {
		record.Folder = *fields.Folder
	}
	if fields.Category != nil {
		record.Category = enum.NormalizeCategory(fields.Category.String())
	}
	if fields.Confidence != nil {
		record.CategoryConfidence = *fields.Confidence
	}
	if fields.Reason != nil {
		record.ClassificationReason = *fields.Reason
	}
	record.UpdatedAt = monotonicAfter(existing.UpdatedAt, utils.Now())

	s.byAccount[record.AccountID][id] = record
	return record.Clone(), nil
}

// Delete removes one record
func (s *EmailStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	accountID, ok := s.accountOf[id]
	if !ok {
		return errors.Wrap(apperrors.ErrNotFound, id)
	}
	delete(s.byAccount[accountID], id)
	delete(s.accountOf, id)
	delete(s.order, id)
	return nil
}

// ReplaceAccount swaps an account's whole partition for a fresh load
func (s *EmailStore) ReplaceAccount(ctx context.Context, accountID string, emails []*models.Email) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.byAccount[accountID] {
		delete(s.accountOf, id)
		delete(s.order, id)
	}

	partition := make(map[string]*models.Email, len(emails))
	now := utils.Now()
	for _, email := range emails {
		record := email.Clone()
		if record.CreatedAt.IsZero() {
			record.CreatedAt = now
		}
		if record.UpdatedAt.IsZero() {
			record.UpdatedAt = now
		}
		partition[record.ID] = record
		s.accountOf[record.ID] = accountID
		s.seq++
		s.order[record.ID] = s.seq
	}
	s.byAccount[accountID] = partition
}

// Clear drops everything; the cache is rebuilt by the next full sync
func (s *EmailStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byAccount = make(map[string]map[string]*models.Email)
	s.accountOf = make(map[string]string)
	s.order = make(map[string]int64)
}

func (s *EmailStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accountOf)
}

func (s *EmailStore) lookup(id string) (*models.Email, error) {
	accountID, ok := s.accountOf[id]
	if !ok {
		return nil, errors.Wrap(apperrors.ErrNotFound, id)
	}
	return s.byAccount[accountID][id], nil
}

// snapshot returns clones of every record in insertion order
func (s *EmailStore) snapshot() []*models.Email {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Email, 0, len(s.accountOf))
	for _, partition := range s.byAccount {
		for _, record := range partition {
			result = append(result, record.Clone())
		}
	}
	sortByInsertion(result, s.orderSnapshot())
	return result
}

func (s *EmailStore) orderSnapshot() map[string]int64 {
	// callers hold at least a read lock
	result := make(map[string]int64, len(s.order))
	for id, seq := range s.order {
		result[id] = seq
	}
	return result
}

func monotonicAfter(previous, candidate time.Time) time.Time {
	if candidate.After(previous) {
		return candidate
	}
	return previous.Add(time.Nanosecond)
}
