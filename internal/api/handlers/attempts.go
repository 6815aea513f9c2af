package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"listingpilot/backend/internal/history"
	"listingpilot/backend/pkg/response"
)

func (a *API) GetAttempts(c *gin.Context) {
	if a.Attempts == nil {
		response.Error(c, http.StatusServiceUnavailable, "Attempt history is disabled")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 10
	}

	attempts, total, err := a.Attempts.List(c.Request.Context(), page, pageSize)
	if err != nil {
		response.InternalServerError(c, "Failed to list posting attempts")
		return
	}
	response.Page(c, attempts, total, page, pageSize)
}

func (a *API) GetAttempt(c *gin.Context) {
	if a.Attempts == nil {
		response.Error(c, http.StatusServiceUnavailable, "Attempt history is disabled")
		return
	}

	attempt, err := a.Attempts.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, history.ErrNotFound) {
		response.NotFound(c, "Posting attempt not found")
		return
	}
	if err != nil {
		response.InternalServerError(c, "Failed to load posting attempt")
		return
	}
	fields, err := attempt.GetFieldLog()
	if err != nil {
		log.Printf("⚠️ Attempt %s has an unreadable field log: %v", attempt.AttemptID, err)
		response.InternalServerError(c, "Failed to decode field outcomes")
		return
	}
	response.Success(c, gin.H{
		"attempt": attempt,
		"fields":  fields,
	})
}
