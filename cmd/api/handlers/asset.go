package handlers

import (
	"fmt"
	"net/http"
	"path"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dandihub/archive/cmd/api/container"
	"github.com/dandihub/archive/common/models"
)

// AssetHandler handles asset requests within a dandiset version
type AssetHandler struct {
	ctn *container.Container
}

// NewAssetHandler creates a new asset handler
func NewAssetHandler(ctn *container.Container) *AssetHandler {
	return &AssetHandler{ctn: ctn}
}

// AssetRequest is the attach/replace payload. Exactly one of the content
// references must be set.
type AssetRequest struct {
	Path            string          `json:"path"`
	Metadata        models.Metadata `json:"metadata"`
	BlobID          *uuid.UUID      `json:"blob_id"`
	EmbargoedBlobID *uuid.UUID      `json:"embargoed_blob_id"`
	ZarrID          *uuid.UUID      `json:"zarr_id"`
}

// contentRef builds the tagged content reference from the request fields
func (r *AssetRequest) contentRef() (models.ContentRef, error) {
	set := 0
	var ref models.ContentRef
	if r.BlobID != nil {
		set++
		ref = models.NewBlobRef(*r.BlobID)
	}
	if r.EmbargoedBlobID != nil {
		set++
		ref = models.NewEmbargoedBlobRef(*r.EmbargoedBlobID)
	}
	if r.ZarrID != nil {
		set++
		ref = models.NewZarrRef(*r.ZarrID)
	}
	if set != 1 {
		return models.ContentRef{}, models.ErrContentRefConflict
	}
	return ref, nil
}

// CreateAsset attaches a new asset to the draft version
// POST /api/dandisets/:id/versions/:version/assets
func (h *AssetHandler) CreateAsset(c echo.Context) error {
	dandisetID, versionName, err := versionScope(c)
	if err != nil {
		return err
	}

	var req AssetRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request body"})
	}
	ref, err := req.contentRef()
	if err != nil {
		return jsonError(c, err)
	}

	asset, err := h.ctn.Orchestrator.CreateAsset(
		c.Request().Context(), dandisetID, versionName, req.Path, req.Metadata, ref)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusCreated, asset)
}

// UpdateAsset replaces an asset's path, metadata or content
// PUT /api/dandisets/:id/versions/:version/assets/:asset_id
func (h *AssetHandler) UpdateAsset(c echo.Context) error {
	dandisetID, versionName, err := versionScope(c)
	if err != nil {
		return err
	}
	assetID, err := uuid.Parse(c.Param("asset_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed asset identifier"})
	}

	var req AssetRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request body"})
	}
	ref, err := req.contentRef()
	if err != nil {
		return jsonError(c, err)
	}

	asset, err := h.ctn.Orchestrator.UpdateAsset(
		c.Request().Context(), dandisetID, versionName, assetID, req.Path, req.Metadata, ref)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, asset)
}

// DeleteAsset detaches an asset from the draft version
// DELETE /api/dandisets/:id/versions/:version/assets/:asset_id
func (h *AssetHandler) DeleteAsset(c echo.Context) error {
	dandisetID, versionName, err := versionScope(c)
	if err != nil {
		return err
	}
	assetID, err := uuid.Parse(c.Param("asset_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed asset identifier"})
	}

	if err := h.ctn.Orchestrator.DeleteAsset(
		c.Request().Context(), dandisetID, versionName, assetID); err != nil {
		return jsonError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetAsset returns the live record for an asset id
// GET /api/dandisets/:id/versions/:version/assets/:asset_id
func (h *AssetHandler) GetAsset(c echo.Context) error {
	dandisetID, versionName, err := versionScope(c)
	if err != nil {
		return err
	}
	assetID, err := uuid.Parse(c.Param("asset_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed asset identifier"})
	}

	asset, err := h.ctn.Orchestrator.GetAsset(
		c.Request().Context(), dandisetID, versionName, assetID)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, asset)
}

// ListAssets lists the live asset set, optionally filtered by a CEL
// expression over path, size and metadata
// GET /api/dandisets/:id/versions/:version/assets?filter=...&limit=...&offset=...
func (h *AssetHandler) ListAssets(c echo.Context) error {
	dandisetID, versionName, err := versionScope(c)
	if err != nil {
		return err
	}

	assets, err := h.ctn.Orchestrator.ListAssets(c.Request().Context(), dandisetID, versionName)
	if err != nil {
		return jsonError(c, err)
	}

	if expr := c.QueryParam("filter"); expr != "" {
		assets, err = h.ctn.Filter.Apply(expr, assets)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorBody(err))
		}
	}

	limit, offset := pagination(c, 100)
	total := len(assets)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"count":   total,
		"results": assets[offset:end],
	})
}

// ListPaths lists the immediate children of a directory in the version's
// folder tree
// GET /api/dandisets/:id/versions/:version/paths?path_prefix=...&limit=...&offset=...
func (h *AssetHandler) ListPaths(c echo.Context) error {
	dandisetID, versionName, err := versionScope(c)
	if err != nil {
		return err
	}

	version, err := h.ctn.Orchestrator.ResolveVersion(c.Request().Context(), dandisetID, versionName)
	if err != nil {
		return jsonError(c, err)
	}

	limit, offset := pagination(c, 100)
	children, err := h.ctn.Paths.ChildrenOf(
		c.Request().Context(), version.ID, c.QueryParam("path_prefix"), limit, offset)
	if err != nil {
		return jsonError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"count":   len(children),
		"results": children,
	})
}

// DownloadAsset redirects to a presigned URL for the asset's blob content.
// Presigned URLs are cached for half their lifetime.
// GET /api/dandisets/:id/versions/:version/assets/:asset_id/download
func (h *AssetHandler) DownloadAsset(c echo.Context) error {
	dandisetID, versionName, err := versionScope(c)
	if err != nil {
		return err
	}
	assetID, err := uuid.Parse(c.Param("asset_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed asset identifier"})
	}

	ctx := c.Request().Context()
	asset, err := h.ctn.Orchestrator.GetAsset(ctx, dandisetID, versionName, assetID)
	if err != nil {
		return jsonError(c, err)
	}
	if asset.Content.IsZarr() {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "zarr archives are downloaded per file, not as one object",
		})
	}

	blob, err := h.ctn.Store.Blobs().GetByBlobID(ctx, asset.Content.ID())
	if err != nil {
		return jsonError(c, err)
	}

	filename := path.Base(asset.Path)
	cacheKey := fmt.Sprintf("presign:%s:%s", blob.StorageKey, filename)
	urlCache := h.ctn.Components.Cache
	if urlCache != nil {
		if cached, ok, err := urlCache.Get(ctx, cacheKey); err == nil && ok {
			return c.Redirect(http.StatusFound, string(cached))
		}
	}

	expiry := h.ctn.Components.Config.Storage.PresignExpiry
	url, err := h.ctn.Blobs.PresignedGetURL(ctx, blob.StorageKey, filename, expiry)
	if err != nil {
		h.ctn.Components.Logger.Error("failed to presign download", "error", err)
		return jsonError(c, err)
	}
	if urlCache != nil {
		if err := urlCache.Set(ctx, cacheKey, []byte(url), expiry/2); err != nil {
			h.ctn.Components.Logger.Warn("failed to cache presigned url", "error", err)
		}
	}

	return c.Redirect(http.StatusFound, url)
}

// versionScope parses the dandiset id and version name path parameters
func versionScope(c echo.Context) (int, string, error) {
	dandisetID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return 0, "", echo.NewHTTPError(http.StatusBadRequest, "malformed dandiset identifier")
	}
	return dandisetID, c.Param("version"), nil
}

// pagination parses limit/offset query parameters with a default page size
func pagination(c echo.Context, defaultLimit int) (limit, offset int) {
	limit = defaultLimit
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v > 0 {
		limit = v
	}
	if v, err := strconv.Atoi(c.QueryParam("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}
