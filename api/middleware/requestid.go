package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/mailsignal/mailsignal/internal/utils"
)

const RequestIDHeader = "X-Request-Id"

// RequestIDMiddleware tags every request with a short id for log
// correlation, honoring an id supplied by the caller
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = utils.GenerateRequestID()
		}
		c.Set("requestId", requestID)
		c.Writer.Header().Set(RequestIDHeader, requestID)
		c.Next()
	}
}
