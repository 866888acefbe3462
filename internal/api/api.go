// Package api is the thin transport layer: routing, payload shape checks and
// error mapping. All field/schema logic lives in the services it calls.
package api

import (
	"errors"
	"net/http"

	"tabula/internal/access"
	"tabula/internal/blob"
	"tabula/internal/collections"
	"tabula/internal/db"
	"tabula/internal/fields"
	"tabula/internal/meta"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type API struct {
	Fields      *fields.Service
	Collections *collections.Service
	Store       *meta.Store
	Blobs       *blob.Registry
	Log         *zap.SugaredLogger
}

type FieldError struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

const (
	ErrInvalidPayload = "invalid_payload"
	ErrForbidden      = "forbidden"
	ErrNotFound       = "not_found"
	ErrSchemaMutation = "schema_mutation_failed"
	ErrMetadataStore  = "metadata_store_failed"
	ErrInternal       = "internal"
)

func ferr(code, field, msg string) FieldError {
	return FieldError{Code: code, Field: field, Message: msg}
}

// accountability builds the opaque caller context from request headers; the
// transport never interprets it.
func accountability(c *gin.Context) *access.Accountability {
	return &access.Accountability{
		User: c.GetHeader("X-Tabula-User"),
		Role: c.GetHeader("X-Tabula-Role"),
		IP:   c.ClientIP(),
	}
}

// respondError maps service failures onto HTTP statuses. The engine message
// of a rejected DDL statement is passed through so callers can tell which
// half of a two-phase write may have applied.
func respondError(c *gin.Context, err error) {
	var vErr *fields.ValidationError
	if errors.As(err, &vErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"errors": []FieldError{ferr(ErrInvalidPayload, vErr.Field, vErr.Reason)},
		})
		return
	}
	if errors.Is(err, fields.ErrForbidden) {
		c.JSON(http.StatusForbidden, gin.H{
			"errors": []FieldError{ferr(ErrForbidden, "", err.Error())},
		})
		return
	}
	if errors.Is(err, collections.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"errors": []FieldError{ferr(ErrNotFound, "", err.Error())},
		})
		return
	}
	var mutErr *db.SchemaMutationError
	if errors.As(err, &mutErr) {
		// a 400 only when the caller can correct the statement; engine or
		// connection failures mid-write are a 500
		status := http.StatusInternalServerError
		if db.IsCallerError(mutErr.Err) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{
			"errors": []FieldError{ferr(ErrSchemaMutation, "", mutErr.Error())},
		})
		return
	}
	var metaErr *meta.StoreError
	if errors.As(err, &metaErr) {
		c.JSON(http.StatusInternalServerError, gin.H{
			"errors": []FieldError{ferr(ErrMetadataStore, "", metaErr.Error())},
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"errors": []FieldError{ferr(ErrInternal, "", err.Error())},
	})
}

// collectionExists is the guard in front of every field route.
func (a *API) collectionExists() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := a.Collections.EnsureExists(c.Request.Context(), c.Param("collection")); err != nil {
			respondError(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}
