package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/dandihub/archive/cmd/api/container"
	"github.com/dandihub/archive/cmd/api/handlers"
)

// RegisterDandisetRoutes registers dandiset and version routes
func RegisterDandisetRoutes(e *echo.Echo, ctn *container.Container) {
	h := handlers.NewDandisetHandler(ctn)

	dandisets := e.Group("/api/dandisets")
	{
		dandisets.POST("", h.CreateDandiset)                    // POST /api/dandisets
		dandisets.GET("/:id", h.GetDandiset)                    // GET /api/dandisets/000123
		dandisets.GET("/:id/versions/:version", h.GetVersion)   // GET /api/dandisets/000123/versions/draft
	}
}
