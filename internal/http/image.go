package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"blog-service/internal/storage"
)

const defaultMaxImageBytes = 5 << 20

// uploadImage stores a multipart "image" and returns the URL to use as a
// blog's img.
func (h *Handler) uploadImage(c *gin.Context) {
	if h.images == nil {
		h.respondError(c, http.StatusServiceUnavailable, "Image storage is not configured", nil)
		return
	}

	maxBytes := h.maxImageBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxImageBytes
	}
	// room for the multipart envelope
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+64<<10)

	fh, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(c, http.StatusRequestEntityTooLarge, "Image too large", err)
			return
		}
		h.respondError(c, http.StatusBadRequest, "image is required", err)
		return
	}
	if fh.Size > maxBytes {
		h.respondError(c, http.StatusRequestEntityTooLarge, "Image too large", nil)
		return
	}

	file, err := fh.Open()
	if err != nil {
		h.respondError(c, http.StatusBadRequest, "image is unreadable", err)
		return
	}
	defer file.Close()

	mtype, err := mimetype.DetectReader(file)
	if err != nil {
		h.respondError(c, http.StatusBadRequest, "image is unreadable", err)
		return
	}
	if !strings.HasPrefix(mtype.String(), "image/") {
		h.respondError(c, http.StatusBadRequest, "File must be an image", nil)
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		h.respondError(c, http.StatusInternalServerError, "Unable to upload image", err)
		return
	}

	img, err := h.images.Upload(c.Request.Context(), file, mtype.String(), mtype.Extension())
	if err != nil {
		if errors.Is(err, storage.ErrDisabled) {
			h.respondError(c, http.StatusServiceUnavailable, "Image storage is not configured", err)
			return
		}
		h.respondError(c, http.StatusInternalServerError, "Unable to upload image", err)
		return
	}

	h.log.WithFields(logrus.Fields{"key": img.Key, "user_id": actorID(c)}).Info("image uploaded")
	c.JSON(http.StatusCreated, gin.H{"url": img.URL})
}

// removeBlogImage deletes the object behind a deleted blog's img when it is
// one of ours. Failures only log.
func (h *Handler) removeBlogImage(ctx context.Context, blogID, imgURL string) {
	if h.images == nil {
		return
	}
	key, ok := h.images.KeyForURL(imgURL)
	if !ok {
		return
	}
	if err := h.images.Delete(ctx, key); err != nil {
		h.log.WithError(err).WithFields(logrus.Fields{"blog_id": blogID, "key": key}).Warn("delete blog image")
	}
}
