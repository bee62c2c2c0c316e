package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

type offlineSearch struct{}

func (offlineSearch) Enabled() bool { return false }
func (offlineSearch) IndexDocument(ctx context.Context, email *models.Email) error {
	return nil
}
func (offlineSearch) BulkIndex(ctx context.Context, emails []*models.Email) error { return nil }
func (offlineSearch) Search(ctx context.Context, filter dto.EmailFilter) (*dto.EmailPage, error) {
	return nil, apperrors.ErrSearchUnavailable
}
func (offlineSearch) Aggregate(ctx context.Context) (map[string]int, error) {
	return nil, apperrors.ErrSearchUnavailable
}

func setupRouter(store interfaces.EmailStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	handler := NewEmailHandler(store, offlineSearch{}, getLogger())
	r.GET("/v1/emails", handler.List())
	r.GET("/v1/emails/:id", handler.Get())
	r.PATCH("/v1/emails/:id", handler.Update())
	r.DELETE("/v1/emails/:id", handler.Delete())
	r.GET("/v1/analytics", Analytics(store))
	return r
}

func seededStore(t *testing.T) interfaces.EmailStore {
	t.Helper()
	store := cache.NewEmailStore(getLogger())
	base := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"email_a", "email_b", "email_c"} {
		_, created := store.Upsert(context.Background(), &models.Email{
			ID:        id,
			AccountID: "acct1",
			Folder:    "INBOX",
			Subject:   "subject " + id,
			From:      models.EmailAddress{Name: "Sender", Address: "sender@example.com"},
			Date:      base.Add(time.Duration(i) * time.Hour),
			Category:  enum.CategoryInterested,
		})
		require.True(t, created)
	}
	return store
}

func TestListEmails(t *testing.T) {
	router := setupRouter(seededStore(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/emails?accountId=acct1", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var page dto.EmailPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Emails, 3)
}

func TestListEmails_InvalidSort(t *testing.T) {
	router := setupRouter(seededStore(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/emails?sortBy=priority", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetEmail(t *testing.T) {
	router := setupRouter(seededStore(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/emails/email_a", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var email models.Email
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &email))
	assert.Equal(t, "email_a", email.ID)
}

func TestGetEmail_NotFound(t *testing.T) {
	router := setupRouter(seededStore(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/emails/ghost", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateEmail(t *testing.T) {
	router := setupRouter(seededStore(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/v1/emails/email_a",
		strings.NewReader(`{"isRead": true}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var email models.Email
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &email))
	assert.True(t, email.IsRead)
}

func TestUpdateEmail_NoFields(t *testing.T) {
	router := setupRouter(seededStore(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/v1/emails/email_a", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteEmail(t *testing.T) {
	store := seededStore(t)
	router := setupRouter(store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/v1/emails/email_a", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 2, store.Count())

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/v1/emails/email_a", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAnalyticsEndpoint(t *testing.T) {
	router := setupRouter(seededStore(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/analytics?accountId=acct1", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var result dto.AnalyticsResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 3, result.ByCategory["interested"])
}
