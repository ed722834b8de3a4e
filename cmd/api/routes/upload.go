package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/dandihub/archive/cmd/api/container"
	"github.com/dandihub/archive/cmd/api/handlers"
)

// RegisterUploadRoutes registers upload-verification routes
func RegisterUploadRoutes(e *echo.Echo, ctn *container.Container) {
	h := handlers.NewUploadHandler(ctn)

	uploads := e.Group("/api/uploads")
	{
		uploads.POST("/validate", h.ValidateUpload) // POST /api/uploads/validate
		uploads.GET("/:digest", h.GetUpload)        // GET  /api/uploads/:digest
	}
}
