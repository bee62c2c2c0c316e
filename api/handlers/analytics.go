package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/mailsignal/mailsignal/dto"
	"github.com/mailsignal/mailsignal/interfaces"
	"github.com/mailsignal/mailsignal/internal/tracing"
)

// Analytics serves volume, category and response-time aggregates
func Analytics(store interfaces.EmailStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "handlers.Analytics")
		defer span.Finish()
		tracing.TagComponentRest(span)

		var request dto.AnalyticsRequest
		if err := c.ShouldBindQuery(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		result, err := store.Analytics(ctx, request)
		if err != nil {
			tracing.TraceErr(span, err)
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// TriggerSync kicks a manual sync for one account or all of them
func TriggerSync(syncService interfaces.SyncService) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, _ := opentracing.StartSpanFromContext(c.Request.Context(), "handlers.TriggerSync")
		defer span.Finish()
		tracing.TagComponentRest(span)

		accountID := c.Query("accountId")
		runID := syncService.TriggerManualSync(accountID)
		c.JSON(http.StatusAccepted, gin.H{
			"runId":     runID,
			"accountId": accountID,
		})
	}
}
