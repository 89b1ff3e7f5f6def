package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/your-org/storefront/internal/imaging"
	"github.com/your-org/storefront/internal/usecases"
)

const (
	uploadField = "image"

	// Uploaded SVGs are served same-origin; scripts and embeds inside them must not run.
	imageContentSecurityPolicy = "default-src 'none'; style-src 'unsafe-inline'; sandbox"
)

// ImageHandler serves uploads and image downloads
type ImageHandler struct {
	usecase        *usecases.ImageUsecase
	logger         *zap.Logger
	maxUploadBytes int64
}

// NewImageHandler creates a new image handler
func NewImageHandler(usecase *usecases.ImageUsecase, logger *zap.Logger, maxUploadBytes int64) *ImageHandler {
	return &ImageHandler{
		usecase:        usecase,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
}

// Routes mounts the handler.
func (h *ImageHandler) Routes(r chi.Router) {
	r.Post("/", h.Upload)
	r.Get("/{id}", h.Serve)
}

// Upload handles POST /api/images with a multipart "image" field
func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, h.logger, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		respondError(w, r, h.logger, http.StatusBadRequest, "multipart field \"image\" is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, r, h.logger, http.StatusBadRequest, "failed to read upload")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	res, err := h.usecase.Upload(r.Context(), data, header.Filename, contentType)
	if err != nil {
		respondFailure(w, r, h.logger, err)
		return
	}
	respondJSON(w, r, h.logger, http.StatusCreated, res)
}

// Serve handles GET /api/images/{id}. It always answers 200 with an image.
func (h *ImageHandler) Serve(w http.ResponseWriter, r *http.Request) {
	res := h.usecase.Resolve(r.Context(), chi.URLParam(r, "id"))

	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.Header().Set("Cache-Control", imaging.CacheControl)
	w.Header().Set("X-Image-Source", string(res.Source))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", imageContentSecurityPolicy)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Data); err != nil {
		h.logger.Debug("failed to write image", zap.Error(err))
	}
}
