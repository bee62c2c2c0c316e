package cache

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"

	"github.com/mailsignal/mailsignal/dto"
	"github.com/mailsignal/mailsignal/internal/models"
	"github.com/mailsignal/mailsignal/internal/tracing"
)

// responseTimeOutlier drops thread gaps that are almost certainly a new
// conversation rather than a reply
const responseTimeOutlier = 7 * 24 * time.Hour

// Analytics aggregates volume, category and response-time statistics
// over the cached messages matching the request.
func (s *EmailStore) Analytics(ctx context.Context, request dto.AnalyticsRequest) (*dto.AnalyticsResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "EmailStore.Analytics")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag(tracing.SpanTagAccountId, request.AccountID)

	result := &dto.AnalyticsResult{
		ByAccount:   make(map[string]int),
		ByCategory:  make(map[string]int),
		ByFolder:    make(map[string]int),
		DailyVolume: make(map[string]int),
		WeeklyTrend: make(map[string]map[string]int),
	}

	threads := make(map[string][]time.Time)

	for _, email := range s.snapshot() {
		if !matchesAnalyticsRequest(email, &request) {
			continue
		}

		result.Total++
		result.ByAccount[email.AccountID]++
		result.ByCategory[string(email.Category)]++
		result.ByFolder[email.Folder]++

		day := email.Date.UTC().Format("2006-01-02")
		result.DailyVolume[day]++
		result.HourlyVolume[email.Date.Hour()]++

		week := isoWeekKey(email.Date)
		if result.WeeklyTrend[week] == nil {
			result.WeeklyTrend[week] = make(map[string]int)
		}
		result.WeeklyTrend[week][string(email.Category)]++

		threads[threadKey(email)] = append(threads[threadKey(email)], email.Date)
	}

	result.ResponseTimes = responseTimeStats(threads)
	return result, nil
}

func matchesAnalyticsRequest(email *models.Email, request *dto.AnalyticsRequest) bool {
	if request.AccountID != "" && email.AccountID != request.AccountID {
		return false
	}
	if request.Folder != "" && !strings.EqualFold(email.Folder, request.Folder) {
		return false
	}
	if request.DateFrom != nil && email.Date.Before(*request.DateFrom) {
		return false
	}
	if request.DateTo != nil && email.Date.After(*request.DateTo) {
		return false
	}
	return true
}

func isoWeekKey(date time.Time) string {
	year, week := date.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

func threadKey(email *models.Email) string {
	if email.ThreadID != "" {
		return email.ThreadID
	}
	return email.ID
}

// responseTimeStats measures the gaps between consecutive messages of
// each reconstructed thread
func responseTimeStats(threads map[string][]time.Time) dto.ResponseTimeStats {
	var deltas []time.Duration
	for _, dates := range threads {
		if len(dates) < 2 {
			continue
		}
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
		for i := 1; i < len(dates); i++ {
			delta := dates[i].Sub(dates[i-1])
			if delta > responseTimeOutlier {
				continue
			}
			deltas = append(deltas, delta)
		}
	}

	stats := dto.ResponseTimeStats{
		Count:     len(deltas),
		Histogram: emptyHistogram(),
	}
	if len(deltas) == 0 {
		return stats
	}

	sort.Slice(deltas, func(i, j int) bool { return deltas[i] < deltas[j] })

	var sum time.Duration
	for _, delta := range deltas {
		sum += delta
		stats.Histogram[histogramBucket(delta)]++
	}

	stats.MeanMins = sum.Minutes() / float64(len(deltas))
	stats.MinMins = deltas[0].Minutes()
	stats.MaxMins = deltas[len(deltas)-1].Minutes()
	stats.MedianMins = medianMinutes(deltas)
	return stats
}

func medianMinutes(sorted []time.Duration) float64 {
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid].Minutes()
	}
	return (sorted[mid-1].Minutes() + sorted[mid].Minutes()) / 2
}

func emptyHistogram() map[string]int {
	return map[string]int{
		"<1h":    0,
		"1-4h":   0,
		"4-12h":  0,
		"12-24h": 0,
		">24h":   0,
	}
}

func histogramBucket(delta time.Duration) string {
	switch {
	case delta < time.Hour:
		return "<1h"
	case delta < 4*time.Hour:
		return "1-4h"
	case delta < 12*time.Hour:
		return "4-12h"
	case delta < 24*time.Hour:
		return "12-24h"
	default:
		return ">24h"
	}
}
