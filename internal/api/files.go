package api

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"tabula/internal/meta"

	"github.com/gin-gonic/gin"
)

// POST /files?disk=local — multipart upload, field name "file"
func (a *API) uploadFile(c *gin.Context) {
	file, hdr, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"errors": []FieldError{ferr(ErrInvalidPayload, "file", "multipart file not found (field name 'file')")},
		})
		return
	}
	defer file.Close()

	disk := c.Query("disk")
	if disk == "" {
		disk = a.Blobs.Default()
	}
	driver, err := a.Blobs.Get(disk)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"errors": []FieldError{ferr(ErrInvalidPayload, "disk", err.Error())},
		})
		return
	}

	key, size, sum, err := driver.Put(c.Request.Context(), "", file)
	if err != nil {
		respondError(c, err)
		return
	}

	row := meta.FileRow{
		ID:         a.Store.NewID(),
		Storage:    disk,
		Key:        key,
		Filename:   safeName(hdr),
		Mime:       hdr.Header.Get("Content-Type"),
		Size:       size,
		Hash:       sum,
		UploadedAt: time.Now().UTC(),
	}
	if err := a.Store.InsertFile(c.Request.Context(), row); err != nil {
		// the blob is already stored; the file row can be retried
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": gin.H{
		"id":      row.ID,
		"storage": row.Storage,
		"key":     row.Key,
		"size":    row.Size,
		"hash":    row.Hash,
	}})
}

// GET /files/:id/download
func (a *API) downloadFile(c *gin.Context) {
	row, err := a.Store.GetFile(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if row == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"errors": []FieldError{ferr(ErrNotFound, "", "file not found")},
		})
		return
	}

	driver, err := a.Blobs.Get(row.Storage)
	if err != nil {
		respondError(c, err)
		return
	}
	rc, err := driver.Get(c.Request.Context(), row.Key)
	if err != nil {
		respondError(c, err)
		return
	}
	defer rc.Close()

	mime := row.Mime
	if mime == "" {
		mime = "application/octet-stream"
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, row.Filename))
	c.DataFromReader(http.StatusOK, row.Size, mime, rc, nil)
}

func safeName(h *multipart.FileHeader) string {
	name := strings.TrimSpace(filepath.Base(h.Filename))
	if name == "" || name == "." {
		return "file"
	}
	return name
}
