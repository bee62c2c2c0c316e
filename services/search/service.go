package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/mailsignal/mailsignal/config"
	"github.com/mailsignal/mailsignal/dto"
	"github.com/mailsignal/mailsignal/interfaces"
	"github.com/mailsignal/mailsignal/internal/enum"
	apperrors "github.com/mailsignal/mailsignal/internal/errors"
	"github.com/mailsignal/mailsignal/internal/logger"
	"github.com/mailsignal/mailsignal/internal/models"
	"github.com/mailsignal/mailsignal/internal/tracing"
)

const requestTimeout = 10 * time.Second

// searchIndex talks to an external OpenSearch-compatible document store.
// It is strictly optional: when no URL is configured every call reports
// the index unavailable and callers use the in-memory query path.
type searchIndex struct {
	cfg    *config.SearchConfig
	log    logger.Logger
	client *http.Client
}

func NewSearchIndex(cfg *config.SearchConfig, log logger.Logger) interfaces.SearchIndex {
	return &searchIndex{
		cfg:    cfg,
		log:    log,
		client: &http.Client{Timeout: requestTimeout},
	}
}

func (s *searchIndex) Enabled() bool {
	return s.cfg.URL != ""
}

// searchDocument is the indexed projection of an email
type searchDocument struct {
	ID            string    `json:"id"`
	AccountID     string    `json:"accountId"`
	Folder        string    `json:"folder"`
	Subject       string    `json:"subject"`
	FromName      string    `json:"fromName"`
	FromAddress   string    `json:"fromAddress"`
	BodyText      string    `json:"bodyText"`
	Category      string    `json:"category"`
	IsRead        bool      `json:"isRead"`
	IsStarred     bool      `json:"isStarred"`
	HasAttachment bool      `json:"hasAttachment"`
	Date          time.Time `json:"date"`
}

func toDocument(email *models.Email) searchDocument {
	return searchDocument{
		ID:            email.ID,
		AccountID:     email.AccountID,
		Folder:        email.Folder,
		Subject:       email.Subject,
		FromName:      email.From.Name,
		FromAddress:   email.From.Address,
		BodyText:      email.BodyText,
		Category:      string(email.Category),
		IsRead:        email.IsRead,
		IsStarred:     email.IsStarred,
		HasAttachment: email.HasAttachment,
		Date:          email.Date,
	}
}

func (s *searchIndex) IndexDocument(ctx context.Context, email *models.Email) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "searchIndex.IndexDocument")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEmail(span, email.ID)

	if !s.Enabled() {
		return errors.Wrap(apperrors.ErrSearchUnavailable, "no search index configured")
	}

	payload, err := json.Marshal(toDocument(email))
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "failed to marshal document")
	}

	url := fmt.Sprintf("%s/%s/_doc/%s", s.cfg.URL, s.cfg.Index, email.ID)
	_, err = s.do(ctx, http.MethodPut, url, payload, "application/json")
	if err != nil {
		tracing.TraceErr(span, err)
	}
	return err
}

// BulkIndex writes one NDJSON _bulk request for the whole slice
func (s *searchIndex) BulkIndex(ctx context.Context, emails []*models.Email) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "searchIndex.BulkIndex")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("documents", len(emails))

	if !s.Enabled() {
		return errors.Wrap(apperrors.ErrSearchUnavailable, "no search index configured")
	}
	if len(emails) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, email := range emails {
		action := map[string]map[string]string{
			"index": {"_index": s.cfg.Index, "_id": email.ID},
		}
		actionLine, err := json.Marshal(action)
		if err != nil {
			tracing.TraceErr(span, err)
			return errors.Wrap(err, "failed to marshal bulk action")
		}
		docLine, err := json.Marshal(toDocument(email))
		if err != nil {
			tracing.TraceErr(span, err)
			return errors.Wrap(err, "failed to marshal document")
		}
		buf.Write(actionLine)
		buf.WriteByte('\n')
		buf.Write(docLine)
		buf.WriteByte('\n')
	}

	_, err := s.do(ctx, http.MethodPost, s.cfg.URL+"/_bulk", buf.Bytes(), "application/x-ndjson")
	if err != nil {
		tracing.TraceErr(span, err)
	}
	return err
}

// Search runs a ranked full-text query. The caller falls back to the
// in-memory substring path whenever this returns an error.
func (s *searchIndex) Search(ctx context.Context, filter dto.EmailFilter) (*dto.EmailPage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "searchIndex.Search")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if !s.Enabled() {
		return nil, errors.Wrap(apperrors.ErrSearchUnavailable, "no search index configured")
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}

	query := buildQuery(filter)
	body := map[string]interface{}{
		"from":  (page - 1) * size,
		"size":  size,
		"query": query,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to marshal query")
	}

	url := fmt.Sprintf("%s/%s/_search", s.cfg.URL, s.cfg.Index)
	responseBody, err := s.do(ctx, http.MethodPost, url, payload, "application/json")
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	var response struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source searchDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(responseBody, &response); err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(apperrors.ErrSearchUnavailable, err.Error())
	}

	emails := make([]*models.Email, 0, len(response.Hits.Hits))
	for _, hit := range response.Hits.Hits {
		emails = append(emails, fromDocument(hit.Source))
	}

	total := response.Hits.Total.Value
	return &dto.EmailPage{
		Emails:      emails,
		Total:       total,
		Page:        page,
		PageSize:    size,
		TotalPages:  (total + size - 1) / size,
		HasNextPage: page*size < total,
		HasPrevPage: page > 1,
	}, nil
}

// Aggregate returns category counts from a terms aggregation
func (s *searchIndex) Aggregate(ctx context.Context) (map[string]int, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "searchIndex.Aggregate")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if !s.Enabled() {
		return nil, errors.Wrap(apperrors.ErrSearchUnavailable, "no search index configured")
	}

	payload := []byte(`{"size":0,"aggs":{"categories":{"terms":{"field":"category.keyword","size":20}}}}`)
	url := fmt.Sprintf("%s/%s/_search", s.cfg.URL, s.cfg.Index)
	responseBody, err := s.do(ctx, http.MethodPost, url, payload, "application/json")
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	var response struct {
		Aggregations struct {
			Categories struct {
				Buckets []struct {
					Key      string `json:"key"`
					DocCount int    `json:"doc_count"`
				} `json:"buckets"`
			} `json:"categories"`
		} `json:"aggregations"`
	}
	if err := json.Unmarshal(responseBody, &response); err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(apperrors.ErrSearchUnavailable, err.Error())
	}

	counts := make(map[string]int, len(response.Aggregations.Categories.Buckets))
	for _, bucket := range response.Aggregations.Categories.Buckets {
		counts[bucket.Key] = bucket.DocCount
	}
	return counts, nil
}

func buildQuery(filter dto.EmailFilter) map[string]interface{} {
	must := make([]map[string]interface{}, 0, 4)
	if filter.Query != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  filter.Query,
				"fields": []string{"subject^2", "bodyText", "fromName", "fromAddress"},
			},
		})
	}
	if filter.AccountID != "" {
		must = append(must, termQuery("accountId", filter.AccountID))
	}
	if filter.Folder != "" {
		must = append(must, termQuery("folder", filter.Folder))
	}
	if filter.Category != "" {
		must = append(must, termQuery("category", string(filter.Category)))
	}
	if len(must) == 0 {
		return map[string]interface{}{"match_all": map[string]interface{}{}}
	}
	return map[string]interface{}{
		"bool": map[string]interface{}{"must": must},
	}
}

func termQuery(field, value string) map[string]interface{} {
	return map[string]interface{}{
		"term": map[string]interface{}{field + ".keyword": value},
	}
}

func fromDocument(doc searchDocument) *models.Email {
	return &models.Email{
		ID:            doc.ID,
		AccountID:     doc.AccountID,
		Folder:        doc.Folder,
		Subject:       doc.Subject,
		From:          models.EmailAddress{Name: doc.FromName, Address: doc.FromAddress},
		BodyText:      doc.BodyText,
		Category:      enum.Category(doc.Category),
		IsRead:        doc.IsRead,
		IsStarred:     doc.IsStarred,
		HasAttachment: doc.HasAttachment,
		Date:          doc.Date,
	}
}

func (s *searchIndex) do(ctx context.Context, method, url string, payload []byte, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewBuffer(payload))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", contentType)
	if s.cfg.Username != "" {
		req.SetBasicAuth(s.cfg.Username, s.cfg.Password)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(apperrors.ErrSearchUnavailable, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(apperrors.ErrSearchUnavailable, err.Error())
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Wrapf(apperrors.ErrSearchUnavailable, "search index returned %d: %.200s", resp.StatusCode, string(body))
	}
	return body, nil
}
