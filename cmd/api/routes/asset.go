package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/dandihub/archive/cmd/api/container"
	"github.com/dandihub/archive/cmd/api/handlers"
)

// RegisterAssetRoutes registers asset and path-listing routes
func RegisterAssetRoutes(e *echo.Echo, ctn *container.Container) {
	h := handlers.NewAssetHandler(ctn)

	versions := e.Group("/api/dandisets/:id/versions/:version")
	{
		versions.GET("/assets", h.ListAssets)                        // GET    .../assets?filter=...
		versions.POST("/assets", h.CreateAsset)                      // POST   .../assets
		versions.GET("/assets/:asset_id", h.GetAsset)                // GET    .../assets/:asset_id
		versions.PUT("/assets/:asset_id", h.UpdateAsset)             // PUT    .../assets/:asset_id
		versions.DELETE("/assets/:asset_id", h.DeleteAsset)          // DELETE .../assets/:asset_id
		versions.GET("/assets/:asset_id/download", h.DownloadAsset)  // GET    .../assets/:asset_id/download
		versions.GET("/paths", h.ListPaths)                          // GET    .../paths?path_prefix=...
	}
}
