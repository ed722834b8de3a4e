package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dandihub/archive/common/models"
)

func statusFor(t *testing.T, err error) int {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	require.NoError(t, jsonError(c, err))
	return rec.Code
}

func TestJSONErrorStatusMapping(t *testing.T) {
	cases := map[error]int{
		models.ErrNotFound:               http.StatusNotFound,
		models.ErrVersionImmutable:       http.StatusMethodNotAllowed,
		models.ErrInvalidPath:            http.StatusBadRequest,
		models.ErrContentRefConflict:     http.StatusBadRequest,
		models.ErrDuplicatePath:          http.StatusConflict,
		models.ErrUploadInProgress:       http.StatusConflict,
		models.ErrZarrNotPending:         http.StatusConflict,
		errors.New("something unhandled"): http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, statusFor(t, err), "error %v", err)
	}
}

func TestJSONErrorHidesInternalCause(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	require.NoError(t, jsonError(c, errors.New("pq: connection refused")))
	assert.NotContains(t, rec.Body.String(), "connection refused")
}
