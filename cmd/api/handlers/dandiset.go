package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/dandihub/archive/cmd/api/container"
	"github.com/dandihub/archive/common/models"
	"github.com/dandihub/archive/common/queue"
	"github.com/dandihub/archive/common/repository"
	"github.com/dandihub/archive/core"
)

// DandisetHandler handles dandiset-level requests
type DandisetHandler struct {
	ctn *container.Container
}

// NewDandisetHandler creates a new dandiset handler
func NewDandisetHandler(ctn *container.Container) *DandisetHandler {
	return &DandisetHandler{ctn: ctn}
}

// CreateDandisetRequest is the dandiset registration payload
type CreateDandisetRequest struct {
	Name     string          `json:"name"`
	Metadata models.Metadata `json:"metadata"`
	Embargo  bool            `json:"embargo"`
}

// CreateDandiset registers a dandiset together with its draft version
// POST /api/dandisets
func (h *DandisetHandler) CreateDandiset(c echo.Context) error {
	var req CreateDandisetRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request body"})
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "name is required"})
	}

	status := models.EmbargoOpen
	if req.Embargo {
		status = models.EmbargoEmbargoed
	}
	dandiset := &models.Dandiset{EmbargoStatus: status}

	metadata := req.Metadata.Clone()
	if metadata == nil {
		metadata = models.Metadata{}
	}
	metadata["name"] = req.Name

	draft := &models.Version{
		Version:  models.DraftVersion,
		Metadata: metadata,
		Status:   models.StatusPending,
	}

	ctx := c.Request().Context()
	err := h.ctn.Store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.Dandisets().Create(ctx, dandiset); err != nil {
			return err
		}
		draft.DandisetID = dandiset.ID
		return tx.Versions().Create(ctx, draft)
	})
	if err != nil {
		h.ctn.Components.Logger.Error("failed to create dandiset", "error", err)
		return jsonError(c, err)
	}

	h.scheduleDraftValidation(c, draft.ID)

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"identifier":     dandiset.Identifier(),
		"embargo_status": dandiset.EmbargoStatus,
		"draft_version":  draft,
	})
}

// GetDandiset returns a dandiset and its draft version
// GET /api/dandisets/:id
func (h *DandisetHandler) GetDandiset(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed dandiset identifier"})
	}

	ctx := c.Request().Context()
	dandiset, err := h.ctn.Store.Dandisets().GetByID(ctx, id)
	if err != nil {
		return jsonError(c, err)
	}
	draft, err := h.ctn.Store.Versions().GetByDandisetAndVersion(ctx, id, models.DraftVersion)
	if err != nil {
		return jsonError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"identifier":     dandiset.Identifier(),
		"embargo_status": dandiset.EmbargoStatus,
		"created_at":     dandiset.CreatedAt,
		"draft_version":  draft,
	})
}

// GetVersion returns one version of a dandiset with validation state
// GET /api/dandisets/:id/versions/:version
func (h *DandisetHandler) GetVersion(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed dandiset identifier"})
	}

	version, err := h.ctn.Store.Versions().GetByDandisetAndVersion(
		c.Request().Context(), id, c.Param("version"))
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, version)
}

func (h *DandisetHandler) scheduleDraftValidation(c echo.Context, versionID int64) {
	payload, err := core.EncodeWork(core.VersionWork{VersionID: versionID})
	if err != nil {
		h.ctn.Components.Logger.Warn("failed to encode version work", "error", err)
		return
	}
	if err := h.ctn.Components.Queue.Publish(c.Request().Context(),
		queue.TopicVersionValidate, strconv.FormatInt(versionID, 10), payload); err != nil {
		h.ctn.Components.Logger.Warn("failed to schedule draft validation",
			"version_id", versionID, "error", err)
	}
}
