package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dandihub/archive/common/models"
)

// jsonError maps domain errors to HTTP responses. Unrecognized errors
// become 500s with a generic body; the real cause goes to the log, not the
// client.
func jsonError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorBody(err))
	case errors.Is(err, models.ErrVersionImmutable):
		return c.JSON(http.StatusMethodNotAllowed, errorBody(err))
	case errors.Is(err, models.ErrInvalidPath),
		errors.Is(err, models.ErrContentRefConflict),
		errors.Is(err, models.ErrCrossDandisetZarr),
		errors.Is(err, models.ErrInvalidDigest),
		errors.Is(err, models.ErrObjectMissing):
		return c.JSON(http.StatusBadRequest, errorBody(err))
	case errors.Is(err, models.ErrDuplicatePath),
		errors.Is(err, models.ErrUploadInProgress),
		errors.Is(err, models.ErrConcurrentModification),
		errors.Is(err, models.ErrZarrNotPending):
		return c.JSON(http.StatusConflict, errorBody(err))
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "internal server error",
		})
	}
}

func errorBody(err error) map[string]string {
	return map[string]string{"error": err.Error()}
}
