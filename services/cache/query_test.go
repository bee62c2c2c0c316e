package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailsignal/mailsignal/dto"
	"github.com/mailsignal/mailsignal/internal/enum"
	apperrors "github.com/mailsignal/mailsignal/internal/errors"
)

func seedStore(t *testing.T, store *EmailStore, count int) {
	t.Helper()
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < count; i++ {
		email := testEmail(fmt.Sprintf("email_%03d", i), "acct1", base.Add(time.Duration(i)*time.Hour))
		_, created := store.Upsert(context.Background(), email)
		require.True(t, created)
	}
}

func TestQuery_EmptyStore(t *testing.T) {
	store := newTestStore()

	page, err := store.Query(context.Background(), dto.EmailFilter{})

	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
	assert.Empty(t, page.Emails)
	assert.False(t, page.HasNextPage)
	assert.False(t, page.HasPrevPage)
}

func TestQuery_DefaultSortIsNewestFirst(t *testing.T) {
	store := newTestStore()
	seedStore(t, store, 5)

	page, err := store.Query(context.Background(), dto.EmailFilter{})

	require.NoError(t, err)
	require.Len(t, page.Emails, 5)
	for i := 1; i < len(page.Emails); i++ {
		assert.False(t, page.Emails[i].Date.After(page.Emails[i-1].Date))
	}
}

func TestQuery_Pagination(t *testing.T) {
	store := newTestStore()
	seedStore(t, store, 45)

	page, err := store.Query(context.Background(), dto.EmailFilter{Page: 2, PageSize: 20})

	require.NoError(t, err)
	assert.Equal(t, 45, page.Total)
	assert.Len(t, page.Emails, 20)
	assert.Equal(t, 3, page.TotalPages)
	assert.True(t, page.HasNextPage)
	assert.True(t, page.HasPrevPage)

	last, err := store.Query(context.Background(), dto.EmailFilter{Page: 3, PageSize: 20})
	require.NoError(t, err)
	assert.Len(t, last.Emails, 5)
	assert.False(t, last.HasNextPage)
	assert.True(t, last.HasPrevPage)
}

func TestQuery_PageBeyondEndIsEmpty(t *testing.T) {
	store := newTestStore()
	seedStore(t, store, 5)

	page, err := store.Query(context.Background(), dto.EmailFilter{Page: 9})

	require.NoError(t, err)
	assert.Empty(t, page.Emails)
	assert.Equal(t, 5, page.Total)
	assert.False(t, page.HasNextPage)
	assert.True(t, page.HasPrevPage)
}

func TestQuery_PageSizeCapped(t *testing.T) {
	store := newTestStore()
	seedStore(t, store, 150)

	page, err := store.Query(context.Background(), dto.EmailFilter{PageSize: 500})

	require.NoError(t, err)
	assert.Equal(t, maxPageSize, page.PageSize)
	assert.Len(t, page.Emails, maxPageSize)
}

func TestQuery_InvalidInput(t *testing.T) {
	store := newTestStore()

	_, err := store.Query(context.Background(), dto.EmailFilter{Page: -1})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	_, err = store.Query(context.Background(), dto.EmailFilter{SortBy: "priority"})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	_, err = store.Query(context.Background(), dto.EmailFilter{SortOrder: "sideways"})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	from := time.Now()
	to := from.Add(-time.Hour)
	_, err = store.Query(context.Background(), dto.EmailFilter{DateFrom: &from, DateTo: &to})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestQuery_FilterResultsAreSubset(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()
	now := time.Now().UTC()

	interested := testEmail("email_a", "acct1", now)
	interested.Category = enum.CategoryInterested
	store.Upsert(ctx, interested)

	spam := testEmail("email_b", "acct1", now.Add(time.Minute))
	spam.Category = enum.CategorySpam
	store.Upsert(ctx, spam)

	other := testEmail("email_c", "acct2", now.Add(2*time.Minute))
	other.Category = enum.CategoryInterested
	store.Upsert(ctx, other)

	page, err := store.Query(ctx, dto.EmailFilter{
		AccountID: "acct1",
		Category:  enum.CategoryInterested,
	})

	require.NoError(t, err)
	require.Len(t, page.Emails, 1)
	assert.Equal(t, "email_a", page.Emails[0].ID)
}

func TestQuery_BoolAndDateFilters(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	read := testEmail("email_a", "acct1", base)
	read.IsRead = true
	store.Upsert(ctx, read)

	unread := testEmail("email_b", "acct1", base.Add(48*time.Hour))
	store.Upsert(ctx, unread)

	isRead := false
	page, err := store.Query(ctx, dto.EmailFilter{IsRead: &isRead})
	require.NoError(t, err)
	require.Len(t, page.Emails, 1)
	assert.Equal(t, "email_b", page.Emails[0].ID)

	from := base.Add(time.Hour)
	page, err = store.Query(ctx, dto.EmailFilter{DateFrom: &from})
	require.NoError(t, err)
	require.Len(t, page.Emails, 1)
	assert.Equal(t, "email_b", page.Emails[0].ID)
}

func TestQuery_FreeText(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()
	now := time.Now().UTC()

	match := testEmail("email_a", "acct1", now)
	match.BodyText = "let's schedule a Demo next week"
	store.Upsert(ctx, match)

	store.Upsert(ctx, testEmail("email_b", "acct1", now))

	page, err := store.Query(ctx, dto.EmailFilter{Query: "demo"})

	require.NoError(t, err)
	require.Len(t, page.Emails, 1)
	assert.Equal(t, "email_a", page.Emails[0].ID)
}

func TestQuery_SortBySubjectAscending(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()
	now := time.Now().UTC()

	for i, subject := range []string{"zebra", "Alpha", "monkey"} {
		email := testEmail(fmt.Sprintf("email_%d", i), "acct1", now.Add(time.Duration(i)*time.Minute))
		email.Subject = subject
		store.Upsert(ctx, email)
	}

	page, err := store.Query(ctx, dto.EmailFilter{SortBy: dto.SortBySender})
	require.NoError(t, err)
	require.Len(t, page.Emails, 3)

	page, err = store.Query(ctx, dto.EmailFilter{SortBy: dto.SortBySubject})
	require.NoError(t, err)
	subjects := []string{page.Emails[0].Subject, page.Emails[1].Subject, page.Emails[2].Subject}
	assert.Equal(t, []string{"Alpha", "monkey", "zebra"}, subjects)
}

func TestQuery_FolderMatchIsCaseInsensitive(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	store.Upsert(ctx, testEmail("email_a", "acct1", time.Now().UTC()))

	page, err := store.Query(ctx, dto.EmailFilter{Folder: "inbox"})

	require.NoError(t, err)
	assert.Len(t, page.Emails, 1)
}
