package dto

import "time"

// AnalyticsRequest narrows the message set the analytics run over;
// an empty request covers the whole cache.
type AnalyticsRequest struct {
	AccountID string     `json:"accountId" form:"accountId"`
	Folder    string     `json:"folder" form:"folder"`
	DateFrom  *time.Time `json:"dateFrom" form:"dateFrom" time_format:"2006-01-02T15:04:05Z07:00"`
	DateTo    *time.Time `json:"dateTo" form:"dateTo" time_format:"2006-01-02T15:04:05Z07:00"`
}

// ResponseTimeStats is derived from thread reconstruction: deltas between
// consecutive messages in a thread, outliers above 7 days excluded.
type ResponseTimeStats struct {
	Count      int            `json:"count"`
	MeanMins   float64        `json:"meanMinutes"`
	MinMins    float64        `json:"minMinutes"`
	MaxMins    float64        `json:"maxMinutes"`
	MedianMins float64        `json:"medianMinutes"`
	Histogram  map[string]int `json:"histogram"`
}

type AnalyticsResult struct {
	Total         int                       `json:"total"`
	ByAccount     map[string]int            `json:"byAccount"`
	ByCategory    map[string]int            `json:"byCategory"`
	ByFolder      map[string]int            `json:"byFolder"`
	DailyVolume   map[string]int            `json:"dailyVolume"`
	HourlyVolume  [24]int                   `json:"hourlyVolume"`
	WeeklyTrend   map[string]map[string]int `json:"weeklyTrend"`
	ResponseTimes ResponseTimeStats         `json:"responseTimes"`
}
