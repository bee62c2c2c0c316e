package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/mailsignal/mailsignal/dto"
	"github.com/mailsignal/mailsignal/interfaces"
	apperrors "github.com/mailsignal/mailsignal/internal/errors"
	"github.com/mailsignal/mailsignal/internal/logger"
	"github.com/mailsignal/mailsignal/internal/models"
	"github.com/mailsignal/mailsignal/internal/tracing"
)

type EmailHandler struct {
	store  interfaces.EmailStore
	search interfaces.SearchIndex
	log    logger.Logger
}

func NewEmailHandler(store interfaces.EmailStore, search interfaces.SearchIndex, log logger.Logger) *EmailHandler {
	return &EmailHandler{store: store, search: search, log: log}
}

// List serves filtered, sorted, paginated emails. Free-text queries go
// to the search index first and fall back to the in-memory engine when
// the index is absent or failing.
func (h *EmailHandler) List() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "EmailHandler.List")
		defer span.Finish()
		tracing.TagComponentRest(span)

		var filter dto.EmailFilter
		if err := c.ShouldBindQuery(&filter); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if filter.Query != "" && h.search.Enabled() {
			page, err := h.search.Search(ctx, filter)
			if err == nil {
				c.JSON(http.StatusOK, page)
				return
			}
			tracing.TraceErr(span, err)
			h.log.Warnf("search index query failed, using in-memory path: %v", err)
		}

		page, err := h.store.Query(ctx, filter)
		if err != nil {
			tracing.TraceErr(span, err)
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

func (h *EmailHandler) Get() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "EmailHandler.Get")
		defer span.Finish()
		tracing.TagComponentRest(span)
		tracing.TagEmail(span, c.Param("id"))

		email, err := h.store.Get(ctx, c.Param("id"))
		if err != nil {
			tracing.TraceErr(span, err)
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, email)
	}
}

// Update applies a partial mutation (read/star flags, folder, category)
func (h *EmailHandler) Update() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "EmailHandler.Update")
		defer span.Finish()
		tracing.TagComponentRest(span)
		tracing.TagEmail(span, c.Param("id"))

		var fields models.UpdateFields
		if err := c.ShouldBindJSON(&fields); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		email, err := h.store.Update(ctx, c.Param("id"), fields)
		if err != nil {
			tracing.TraceErr(span, err)
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, email)
	}
}

func (h *EmailHandler) Delete() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "EmailHandler.Delete")
		defer span.Finish()
		tracing.TagComponentRest(span)
		tracing.TagEmail(span, c.Param("id"))

		if err := h.store.Delete(ctx, c.Param("id")); err != nil {
			tracing.TraceErr(span, err)
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
