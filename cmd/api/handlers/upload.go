package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/dandihub/archive/cmd/api/container"
	"github.com/dandihub/archive/common/queue"
	"github.com/dandihub/archive/core"
)

// Uploads per dandiset per minute before throttling kicks in
const uploadRateLimit = 60

// UploadHandler handles upload-verification requests
type UploadHandler struct {
	ctn *container.Container
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(ctn *container.Container) *UploadHandler {
	return &UploadHandler{ctn: ctn}
}

// ValidateUploadRequest claims a digest for an uploaded object
type ValidateUploadRequest struct {
	DandisetID int    `json:"dandiset_id"`
	Digest     string `json:"digest"`
	ObjectKey  string `json:"object_key"`
}

// ValidateUpload starts asynchronous verification of an uploaded object
// POST /api/uploads/validate
func (h *UploadHandler) ValidateUpload(c echo.Context) error {
	var req ValidateUploadRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request body"})
	}

	ctx := c.Request().Context()

	if h.ctn.Limiter != nil {
		res, err := h.ctn.Limiter.CheckUploadLimit(ctx, req.DandisetID, uploadRateLimit, 60)
		if err != nil {
			h.ctn.Components.Logger.Warn("upload rate limit check failed", "error", err)
		} else if !res.Allowed {
			c.Response().Header().Set("Retry-After", strconv.FormatInt(res.RetryAfterSeconds, 10))
			return c.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "upload rate limit exceeded",
			})
		}
	}

	upload, err := h.ctn.Uploads.StartValidation(ctx, req.Digest, req.ObjectKey)
	if err != nil {
		return jsonError(c, err)
	}

	payload, err := core.EncodeWork(core.UploadWork{Digest: upload.Digest})
	if err != nil {
		return jsonError(c, err)
	}
	if err := h.ctn.Components.Queue.Publish(ctx, queue.TopicUploadVerify, upload.Digest, payload); err != nil {
		h.ctn.Components.Logger.Warn("failed to schedule upload verification",
			"digest", upload.Digest, "error", err)
	}

	return c.JSON(http.StatusAccepted, upload)
}

// GetUpload returns the verification state for a digest
// GET /api/uploads/:digest
func (h *UploadHandler) GetUpload(c echo.Context) error {
	upload, err := h.ctn.Uploads.Status(c.Request().Context(), c.Param("digest"))
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, upload)
}
