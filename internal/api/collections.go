package api

import (
	"net/http"
	"strings"

	"tabula/internal/collections"

	"github.com/gin-gonic/gin"
)

// GET /collections
func (a *API) listCollections(c *gin.Context) {
	out, err := a.Collections.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

// POST /collections
func (a *API) createCollection(c *gin.Context) {
	var payload collections.Collection
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"errors": []FieldError{ferr(ErrInvalidPayload, "", "invalid JSON")},
		})
		return
	}
	if strings.TrimSpace(payload.Collection) == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"errors": []FieldError{ferr(ErrInvalidPayload, "collection", "collection name is required")},
		})
		return
	}
	if err := a.Collections.Create(c.Request.Context(), payload); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": payload})
}
