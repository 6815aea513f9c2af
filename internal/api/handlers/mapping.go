package handlers

import (
	"errors"
	"log"

	"github.com/gin-gonic/gin"

	"listingpilot/backend/internal/mapping"
	"listingpilot/backend/pkg/response"
)

func (a *API) GetMappings(c *gin.Context) {
	all, err := a.Mappings.All(c.Request.Context())
	if err != nil {
		log.Printf("❌ Failed to read field mappings: %v", err)
		response.InternalServerError(c, "Failed to read field mappings")
		return
	}
	response.Success(c, gin.H{
		"fields":   mapping.Fields,
		"mappings": all,
	})
}

func (a *API) PutMapping(c *gin.Context) {
	var req struct {
		Selector string `json:"selector" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	field := c.Param("field")
	err := a.Mappings.Save(c.Request.Context(), field, req.Selector)
	switch {
	case errors.Is(err, mapping.ErrUnknownField), errors.Is(err, mapping.ErrEmptySelector):
		response.BadRequest(c, err.Error())
		return
	case err != nil:
		log.Printf("❌ Failed to save mapping for %s: %v", field, err)
		response.InternalServerError(c, "Failed to save field mapping")
		return
	}

	log.Printf("💾 Mapping for %s set to %s", field, req.Selector)
	response.SuccessWithMessage(c, "Mapping saved", gin.H{"field": field, "selector": req.Selector})
}

func (a *API) ClearMappings(c *gin.Context) {
	if err := a.Mappings.Clear(c.Request.Context()); err != nil {
		log.Printf("❌ Failed to clear field mappings: %v", err)
		response.InternalServerError(c, "Failed to clear field mappings")
		return
	}
	log.Printf("🧹 All field mappings cleared")
	response.SuccessWithMessage(c, "Mappings cleared", nil)
}
