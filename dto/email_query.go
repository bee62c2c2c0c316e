package dto

import (
	"time"

	"github.com/mailsignal/mailsignal/internal/enum"
	"github.com/mailsignal/mailsignal/internal/models"
)

type SortKey string

const (
	SortByDate    SortKey = "date"
	SortBySender  SortKey = "sender"
	SortBySubject SortKey = "subject"
)

// EmailFilter selects a subset of the cached messages. Zero values mean
// "don't filter on this field".
type EmailFilter struct {
	AccountID     string         `json:"accountId" form:"accountId"`
	Folder        string         `json:"folder" form:"folder"`
	Category      enum.Category  `json:"category" form:"category"`
	Sender        string         `json:"sender" form:"sender"`
	Subject       string         `json:"subject" form:"subject"`
	IsRead        *bool          `json:"isRead" form:"isRead"`
	IsStarred     *bool          `json:"isStarred" form:"isStarred"`
	HasAttachment *bool          `json:"hasAttachment" form:"hasAttachment"`
	DateFrom      *time.Time     `json:"dateFrom" form:"dateFrom" time_format:"2006-01-02T15:04:05Z07:00"`
	DateTo        *time.Time     `json:"dateTo" form:"dateTo" time_format:"2006-01-02T15:04:05Z07:00"`
	Query         string         `json:"q" form:"q"`
	SortBy        SortKey        `json:"sortBy" form:"sortBy"`
	SortOrder     string         `json:"sortOrder" form:"sortOrder"`
	Page          int            `json:"page" form:"page"`
	PageSize      int            `json:"pageSize" form:"pageSize"`
}

// EmailPage is one page of query results with pagination bookkeeping
type EmailPage struct {
	Emails      []*models.Email `json:"emails"`
	Total       int             `json:"total"`
	Page        int             `json:"page"`
	PageSize    int             `json:"pageSize"`
	TotalPages  int             `json:"totalPages"`
	HasNextPage bool            `json:"hasNextPage"`
	HasPrevPage bool            `json:"hasPrevPage"`
}
