package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailsignal/mailsignal/dto"
	"github.com/mailsignal/mailsignal/internal/enum"
)

func TestAnalytics_EmptyStore(t *testing.T) {
	store := newTestStore()

	result, err := store.Analytics(context.Background(), dto.AnalyticsRequest{})

	require.NoError(t, err)
	assert.Equal(t, 0, result.Total)
	assert.Empty(t, result.ByAccount)
	assert.Equal(t, 0, result.ResponseTimes.Count)
}

func TestAnalytics_Counts(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()
	base := time.Date(2026, 5, 4, 14, 30, 0, 0, time.UTC) // a Monday

	a := testEmail("email_a", "acct1", base)
	a.Category = enum.CategoryInterested
	store.Upsert(ctx, a)

	b := testEmail("email_b", "acct1", base.Add(time.Hour))
	b.Category = enum.CategorySpam
	store.Upsert(ctx, b)

	c := testEmail("email_c", "acct2", base.Add(24*time.Hour))
	c.Category = enum.CategoryInterested
	store.Upsert(ctx, c)

	result, err := store.Analytics(ctx, dto.AnalyticsRequest{})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 2, result.ByAccount["acct1"])
	assert.Equal(t, 1, result.ByAccount["acct2"])
	assert.Equal(t, 2, result.ByCategory["interested"])
	assert.Equal(t, 1, result.ByCategory["spam"])
	assert.Equal(t, 3, result.ByFolder["INBOX"])

	assert.Equal(t, 2, result.DailyVolume["2026-05-04"])
	assert.Equal(t, 1, result.DailyVolume["2026-05-05"])
	assert.Equal(t, 2, result.HourlyVolume[14])
	assert.Equal(t, 1, result.HourlyVolume[15])

	week := result.WeeklyTrend["2026-W19"]
	require.NotNil(t, week)
	assert.Equal(t, 2, week["interested"])
	assert.Equal(t, 1, week["spam"])
}

func TestAnalytics_FilteredByAccountAndDate(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()
	base := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	store.Upsert(ctx, testEmail("email_a", "acct1", base))
	store.Upsert(ctx, testEmail("email_b", "acct2", base))
	store.Upsert(ctx, testEmail("email_c", "acct1", base.Add(72*time.Hour)))

	from := base.Add(-time.Hour)
	to := base.Add(time.Hour)
	result, err := store.Analytics(ctx, dto.AnalyticsRequest{
		AccountID: "acct1",
		DateFrom:  &from,
		DateTo:    &to,
	})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
}

func TestAnalytics_ResponseTimes(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()
	base := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	// One thread of three messages: deltas of 30 and 90 minutes
	for i, offset := range []time.Duration{0, 30 * time.Minute, 2 * time.Hour} {
		email := testEmail("email_"+string(rune('a'+i)), "acct1", base.Add(offset))
		email.ThreadID = "thread-1"
		store.Upsert(ctx, email)
	}

	result, err := store.Analytics(ctx, dto.AnalyticsRequest{})
	require.NoError(t, err)

	stats := result.ResponseTimes
	assert.Equal(t, 2, stats.Count)
	assert.InDelta(t, 60.0, stats.MeanMins, 0.001)
	assert.InDelta(t, 30.0, stats.MinMins, 0.001)
	assert.InDelta(t, 90.0, stats.MaxMins, 0.001)
	assert.InDelta(t, 60.0, stats.MedianMins, 0.001)
	assert.Equal(t, 1, stats.Histogram["<1h"])
	assert.Equal(t, 1, stats.Histogram["1-4h"])
	assert.Equal(t, 0, stats.Histogram[">24h"])
}

func TestAnalytics_ResponseTimeOutlierExcluded(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()
	base := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	first := testEmail("email_a", "acct1", base)
	first.ThreadID = "thread-1"
	store.Upsert(ctx, first)

	// Eight days later: a new conversation, not a reply
	second := testEmail("email_b", "acct1", base.Add(8*24*time.Hour))
	second.ThreadID = "thread-1"
	store.Upsert(ctx, second)

	result, err := store.Analytics(ctx, dto.AnalyticsRequest{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ResponseTimes.Count)
}

func TestAnalytics_SingletonThreadsIgnored(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	email := testEmail("email_a", "acct1", time.Now().UTC())
	email.ThreadID = "thread-1"
	store.Upsert(ctx, email)

	result, err := store.Analytics(ctx, dto.AnalyticsRequest{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ResponseTimes.Count)
}
