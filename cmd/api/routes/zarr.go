package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/dandihub/archive/cmd/api/container"
	"github.com/dandihub/archive/cmd/api/handlers"
)

// RegisterZarrRoutes registers zarr archive routes
func RegisterZarrRoutes(e *echo.Echo, ctn *container.Container) {
	h := handlers.NewZarrHandler(ctn)

	zarr := e.Group("/api/zarr")
	{
		zarr.POST("", h.CreateZarr)                     // POST   /api/zarr
		zarr.GET("/:zarr_id", h.GetZarr)                // GET    /api/zarr/:zarr_id
		zarr.POST("/:zarr_id/files", h.RegisterFiles)   // POST   /api/zarr/:zarr_id/files
		zarr.DELETE("/:zarr_id/files", h.DeleteFiles)   // DELETE /api/zarr/:zarr_id/files
		zarr.POST("/:zarr_id/finalize", h.Finalize)     // POST   /api/zarr/:zarr_id/finalize
	}
}
