package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dandihub/archive/cmd/api/container"
	"github.com/dandihub/archive/common/models"
	"github.com/dandihub/archive/common/queue"
	"github.com/dandihub/archive/core"
)

// ZarrHandler handles zarr archive requests
type ZarrHandler struct {
	ctn *container.Container
}

// NewZarrHandler creates a new zarr handler
func NewZarrHandler(ctn *container.Container) *ZarrHandler {
	return &ZarrHandler{ctn: ctn}
}

// CreateZarrRequest registers an empty archive under a dandiset
type CreateZarrRequest struct {
	Name       string `json:"name"`
	DandisetID int    `json:"dandiset"`
}

// ZarrFileEntry describes one uploaded file within an archive
type ZarrFileEntry struct {
	Path string `json:"path"`
	Etag string `json:"etag"`
	Size int64  `json:"size"`
}

// CreateZarr registers a new zarr archive
// POST /api/zarr
func (h *ZarrHandler) CreateZarr(c echo.Context) error {
	var req CreateZarrRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request body"})
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "name is required"})
	}

	archive, err := h.ctn.Zarrs.Create(c.Request().Context(), req.DandisetID, req.Name)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusCreated, archive)
}

// GetZarr returns an archive with its running totals and status
// GET /api/zarr/:zarr_id
func (h *ZarrHandler) GetZarr(c echo.Context) error {
	zarrID, err := uuid.Parse(c.Param("zarr_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed zarr identifier"})
	}

	archive, err := h.ctn.Zarrs.Get(c.Request().Context(), zarrID)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, archive)
}

// RegisterFiles records uploaded files in the archive
// POST /api/zarr/:zarr_id/files
func (h *ZarrHandler) RegisterFiles(c echo.Context) error {
	zarrID, err := uuid.Parse(c.Param("zarr_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed zarr identifier"})
	}

	var entries []ZarrFileEntry
	if err := c.Bind(&entries); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request body"})
	}

	files := make([]models.ZarrFile, len(entries))
	for i, e := range entries {
		files[i] = models.ZarrFile{Path: e.Path, Etag: e.Etag, Size: e.Size}
	}

	if err := h.ctn.Zarrs.RegisterFiles(c.Request().Context(), zarrID, files); err != nil {
		return jsonError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteFiles removes file records from the archive
// DELETE /api/zarr/:zarr_id/files
func (h *ZarrHandler) DeleteFiles(c echo.Context) error {
	zarrID, err := uuid.Parse(c.Param("zarr_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed zarr identifier"})
	}

	var body struct {
		Paths []string `json:"paths"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request body"})
	}

	if err := h.ctn.Zarrs.DeleteFiles(c.Request().Context(), zarrID, body.Paths); err != nil {
		return jsonError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Finalize schedules the full-tree checksum computation
// POST /api/zarr/:zarr_id/finalize
func (h *ZarrHandler) Finalize(c echo.Context) error {
	zarrID, err := uuid.Parse(c.Param("zarr_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed zarr identifier"})
	}

	ctx := c.Request().Context()
	if _, err := h.ctn.Zarrs.Get(ctx, zarrID); err != nil {
		return jsonError(c, err)
	}

	payload, err := core.EncodeWork(core.ZarrWork{ZarrID: zarrID})
	if err != nil {
		return jsonError(c, err)
	}
	if err := h.ctn.Components.Queue.Publish(ctx, queue.TopicZarrIngest, zarrID.String(), payload); err != nil {
		h.ctn.Components.Logger.Warn("failed to schedule zarr ingest",
			"zarr_id", zarrID, "error", err)
	}

	return c.NoContent(http.StatusAccepted)
}
