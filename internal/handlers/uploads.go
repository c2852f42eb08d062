package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/buildx-app/backend/internal/storage"
	apperrors "github.com/buildx-app/backend/pkg/errors"
	"github.com/buildx-app/backend/pkg/response"
)

// UploadHandler stores media through the blob store.
type UploadHandler struct {
	store *storage.Store
}

func NewUploadHandler(store *storage.Store) *UploadHandler {
	return &UploadHandler{store: store}
}

// POST /api/uploads/image
func (h *UploadHandler) UploadImage(c *gin.Context) {
	h.upload(c, h.store.UploadImage)
}

// POST /api/uploads/document
func (h *UploadHandler) UploadDocument(c *gin.Context) {
	h.upload(c, h.store.UploadDocument)
}

// DELETE /api/uploads/*key
func (h *UploadHandler) Delete(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" {
		response.Error(c, apperrors.NewBadRequest("object key is required"))
		return
	}

	if err := h.store.Delete(c.Request.Context(), key); err != nil {
		response.Error(c, apperrors.ErrInternalServer.WithInternal(err))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"key": key})
}

type uploadFunc = storage.UploadFunc

func (h *UploadHandler) upload(c *gin.Context, fn uploadFunc) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, apperrors.NewBadRequest("file is required"))
		return
	}

	src, err := file.Open()
	if err != nil {
		response.Error(c, apperrors.ErrInternalServer.WithInternal(err))
		return
	}
	defer src.Close()

	folder := c.DefaultPostForm("folder", "uploads")
	contentType := file.Header.Get("Content-Type")

	obj, err := fn(c.Request.Context(), src, file.Size, contentType, folder)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrUnsupportedMediaType):
			response.Error(c, apperrors.New("UNSUPPORTED_MEDIA_TYPE", "File type is not allowed", http.StatusUnsupportedMediaType))
		case errors.Is(err, storage.ErrObjectTooLarge):
			response.Error(c, apperrors.New("PAYLOAD_TOO_LARGE", "File exceeds the size limit", http.StatusRequestEntityTooLarge))
		default:
			response.Error(c, apperrors.ErrInternalServer.WithInternal(err))
		}
		return
	}

	response.Success(c, http.StatusCreated, obj)
}
