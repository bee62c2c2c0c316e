package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mailsignal/mailsignal/interfaces"
)

// HealthCheck provides a simple health check endpoint
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Status reports the sync supervisor, every connection and the
// classification provider circuit states
func Status(syncService interfaces.SyncService, manager interfaces.ConnectionManager, classifier interfaces.ClassificationService, store interfaces.EmailStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"sync":       syncService.GetStatus(),
			"accounts":   manager.Statuses(),
			"providers":  classifier.ProviderStates(),
			"cachedMail": store.Count(),
		})
	}
}
