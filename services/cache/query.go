package cache

import (
	"context"
	"sort"
	"strings"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/mailsignal/mailsignal/dto"
	apperrors "github.com/mailsignal/mailsignal/internal/errors"
	"github.com/mailsignal/mailsignal/internal/models"
	"github.com/mailsignal/mailsignal/internal/tracing"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Query filters, sorts and paginates over the union of all account
// partitions. An empty cache yields a valid empty page, never an error.
func (s *EmailStore) Query(ctx context.Context, filter dto.EmailFilter) (*dto.EmailPage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "EmailStore.Query")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if err := validateFilter(&filter); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	matched := make([]*models.Email, 0)
	for _, email := range s.snapshot() {
		if matchesFilter(email, &filter) {
			matched = append(matched, email)
		}
	}

	sortEmails(matched, filter.SortBy, filter.SortOrder)

	total := len(matched)
	totalPages := (total + filter.PageSize - 1) / filter.PageSize
	start := (filter.Page - 1) * filter.PageSize
	end := start + filter.PageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return &dto.EmailPage{
		Emails:      matched[start:end],
		Total:       total,
		Page:        filter.Page,
		PageSize:    filter.PageSize,
		TotalPages:  totalPages,
		HasNextPage: filter.Page*filter.PageSize < total,
		HasPrevPage: filter.Page > 1,
	}, nil
}

func validateFilter(filter *dto.EmailFilter) error {
	if filter.Page < 0 || filter.PageSize < 0 {
		return errors.Wrap(apperrors.ErrInvalidInput, "page and pageSize must be positive")
	}
	if filter.Page == 0 {
		filter.Page = 1
	}
	if filter.PageSize == 0 {
		filter.PageSize = defaultPageSize
	}
	if filter.PageSize > maxPageSize {
		filter.PageSize = maxPageSize
	}
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateFrom.After(*filter.DateTo) {
		return errors.Wrap(apperrors.ErrInvalidInput, "dateFrom is after dateTo")
	}

	switch filter.SortBy {
	case "":
		filter.SortBy = dto.SortByDate
	case dto.SortByDate, dto.SortBySender, dto.SortBySubject:
	default:
		return errors.Wrapf(apperrors.ErrInvalidInput, "unknown sort key %q", filter.SortBy)
	}

	switch filter.SortOrder {
	case "":
		// date sorts newest first by default, the text keys A to Z
		if filter.SortBy == dto.SortByDate {
			filter.SortOrder = "desc"
		} else {
			filter.SortOrder = "asc"
		}
	case "asc", "desc":
	default:
		return errors.Wrapf(apperrors.ErrInvalidInput, "unknown sort order %q", filter.SortOrder)
	}

	return nil
}

func matchesFilter(email *models.Email, filter *dto.EmailFilter) bool {
	if filter.AccountID != "" && email.AccountID != filter.AccountID {
		return false
	}
	if filter.Folder != "" && !strings.EqualFold(email.Folder, filter.Folder) {
		return false
	}
	if filter.Category != "" && email.Category != filter.Category {
		return false
	}
	if filter.Sender != "" && !email.SenderMatches(strings.ToLower(filter.Sender)) {
		return false
	}
	if filter.Subject != "" && !strings.Contains(strings.ToLower(email.Subject), strings.ToLower(filter.Subject)) {
		return false
	}
	if filter.IsRead != nil && email.IsRead != *filter.IsRead {
		return false
	}
	if filter.IsStarred != nil && email.IsStarred != *filter.IsStarred {
		return false
	}
	if filter.HasAttachment != nil && email.HasAttachment != *filter.HasAttachment {
		return false
	}
	if filter.DateFrom != nil && email.Date.Before(*filter.DateFrom) {
		return false
	}
	if filter.DateTo != nil && email.Date.After(*filter.DateTo) {
		return false
	}
	if filter.Query != "" && !matchesFreeText(email, filter.Query) {
		return false
	}
	return true
}

// matchesFreeText is a plain case-insensitive substring match over
// subject, body and sender. Ranked full-text lives in the external
// search index; this is the bound the in-memory path accepts.
func matchesFreeText(email *models.Email, query string) bool {
	needle := strings.ToLower(query)
	return strings.Contains(strings.ToLower(email.Subject), needle) ||
		strings.Contains(strings.ToLower(email.BodyText), needle) ||
		email.SenderMatches(needle)
}

// sortEmails orders the result set; input arrives in insertion order,
// which the stable sort preserves for ties
func sortEmails(emails []*models.Email, key dto.SortKey, order string) {
	var less func(i, j int) bool

	switch key {
	case dto.SortBySender:
		less = func(i, j int) bool {
			return strings.ToLower(senderKey(emails[i])) < strings.ToLower(senderKey(emails[j]))
		}
	case dto.SortBySubject:
		less = func(i, j int) bool {
			return strings.ToLower(emails[i].Subject) < strings.ToLower(emails[j].Subject)
		}
	default:
		less = func(i, j int) bool {
			return emails[i].Date.Before(emails[j].Date)
		}
	}

	if order == "desc" {
		sort.SliceStable(emails, func(i, j int) bool { return less(j, i) })
	} else {
		sort.SliceStable(emails, less)
	}
}

func senderKey(email *models.Email) string {
	if email.From.Name != "" {
		return email.From.Name
	}
	return email.From.Address
}

func sortByInsertion(emails []*models.Email, order map[string]int64) {
	sort.SliceStable(emails, func(i, j int) bool {
		return order[emails[i].ID] < order[emails[j].ID]
	})
}
