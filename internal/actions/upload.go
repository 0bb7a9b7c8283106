package actions

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/phoenix-garage/garage/internal/platform/blob"
	"github.com/phoenix-garage/garage/internal/platform/httpx"
	"github.com/phoenix-garage/garage/internal/shared"
)

// UploadHandler accepts one multipart image under field "file" for the REST surface.
type UploadHandler struct {
	logger   *slog.Logger
	uploader blob.Uploader
	observer UploadObserver
	maxBytes int64
}

// NewUploadHandler constructs UploadHandler.
func NewUploadHandler(logger *slog.Logger, uploader blob.Uploader, observer UploadObserver, maxBytes int64) *UploadHandler {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &UploadHandler{logger: logger, uploader: uploader, observer: observer, maxBytes: maxBytes}
}

// MountRoutes registers the upload route.
func (h *UploadHandler) MountRoutes(r chi.Router) {
	r.Post("/", h.upload)
}

func (h *UploadHandler) upload(w http.ResponseWriter, r *http.Request) {
	if h.uploader == nil {
		httpx.RespondError(w, fmt.Errorf("image upload not configured: %w", shared.ErrUpload))
		return
	}
	// Multipart framing adds a little on top of the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+64<<10)
	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: file: %v", httpx.ErrBadRequest, err))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: file: %v", httpx.ErrBadRequest, err))
		return
	}

	obj, err := h.uploader.Upload(r.Context(), data, header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		h.logger.Warn("image upload failed", slog.String("file", header.Filename), slog.Any("error", err))
		if h.observer != nil {
			h.observer.ObserveUploadFailure("rest")
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, response{Status: "success", Data: obj, URL: obj.URL, FileID: obj.FileID})
}
