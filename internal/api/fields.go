package api

import (
	"errors"
	"net/http"
	"strings"

	"tabula/internal/fields"

	"github.com/gin-gonic/gin"
)

type fieldPayload struct {
	Field  string         `json:"field"`
	Type   string         `json:"type"`
	Schema *fields.Schema `json:"schema"`
	Meta   map[string]any `json:"meta"`
}

func (p fieldPayload) toField(collection string) fields.Field {
	return fields.Field{
		Collection: collection,
		Field:      strings.TrimSpace(p.Field),
		Type:       p.Type,
		Schema:     p.Schema,
		Meta:       p.Meta,
	}
}

// GET /fields
func (a *API) listAllFields(c *gin.Context) {
	out, err := a.Fields.ReadAll(c.Request.Context(), accountability(c), "")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

// GET /fields/:collection
func (a *API) listFields(c *gin.Context) {
	out, err := a.Fields.ReadAll(c.Request.Context(), accountability(c), c.Param("collection"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

// GET /fields/:collection/:field
func (a *API) getField(c *gin.Context) {
	f, err := a.Fields.ReadOne(c.Request.Context(), accountability(c),
		c.Param("collection"), c.Param("field"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": f})
}

// POST /fields/:collection
func (a *API) createField(c *gin.Context) {
	collection := c.Param("collection")

	var p fieldPayload
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"errors": []FieldError{ferr(ErrInvalidPayload, "", "invalid JSON")},
		})
		return
	}

	acc := accountability(c)
	if err := a.Fields.CreateField(c.Request.Context(), acc, collection, p.toField(collection)); err != nil {
		respondError(c, err)
		return
	}

	// read-after-write: return the merged view; a forbidden re-read means
	// the caller may create but not read, so the payload stays empty
	created, err := a.Fields.ReadOne(c.Request.Context(), acc, collection, p.Field)
	if err != nil {
		if errors.Is(err, fields.ErrForbidden) {
			c.JSON(http.StatusOK, gin.H{"data": nil})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": created})
}

// PATCH /fields/:collection — array of patches, applied one by one
func (a *API) updateFields(c *gin.Context) {
	collection := c.Param("collection")

	var patches []fieldPayload
	if err := c.ShouldBindJSON(&patches); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"errors": []FieldError{ferr(ErrInvalidPayload, "", "submitted body has to be an array")},
		})
		return
	}

	acc := accountability(c)
	for _, p := range patches {
		if err := a.Fields.UpdateField(c.Request.Context(), acc, collection, p.toField(collection)); err != nil {
			respondError(c, err)
			return
		}
	}

	results := make([]any, 0, len(patches))
	for _, p := range patches {
		updated, err := a.Fields.ReadOne(c.Request.Context(), acc, collection, p.Field)
		if err != nil {
			if errors.Is(err, fields.ErrForbidden) {
				continue
			}
			respondError(c, err)
			return
		}
		results = append(results, updated)
	}
	c.JSON(http.StatusOK, gin.H{"data": results})
}

// PATCH /fields/:collection/:field
func (a *API) updateField(c *gin.Context) {
	collection := c.Param("collection")
	name := c.Param("field")

	var p fieldPayload
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"errors": []FieldError{ferr(ErrInvalidPayload, "", "invalid JSON")},
		})
		return
	}
	// field name defaults to the addressing context
	if p.Field == "" {
		p.Field = name
	}

	acc := accountability(c)
	if err := a.Fields.UpdateField(c.Request.Context(), acc, collection, p.toField(collection)); err != nil {
		respondError(c, err)
		return
	}

	updated, err := a.Fields.ReadOne(c.Request.Context(), acc, collection, name)
	if err != nil {
		if errors.Is(err, fields.ErrForbidden) {
			c.JSON(http.StatusOK, gin.H{"data": nil})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": updated})
}

// DELETE /fields/:collection/:field
func (a *API) deleteField(c *gin.Context) {
	err := a.Fields.DeleteField(c.Request.Context(), accountability(c),
		c.Param("collection"), c.Param("field"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /fields/:collection/:field/index?unique=true
func (a *API) createIndex(c *gin.Context) {
	unique := strings.EqualFold(c.Query("unique"), "true")
	err := a.Fields.CreateIndex(c.Request.Context(), accountability(c),
		c.Param("collection"), c.Param("field"), unique)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DELETE /fields/:collection/:field/index
func (a *API) dropIndex(c *gin.Context) {
	err := a.Fields.DropIndex(c.Request.Context(), accountability(c),
		c.Param("collection"), c.Param("field"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
