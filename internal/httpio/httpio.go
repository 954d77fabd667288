// Package httpio holds the response helpers shared by the module handlers.
package httpio

import (
	"net/http"
	"strconv"

	"local-delivery/internal/models"

	"github.com/labstack/echo/v4"
)

// Fail writes err as an envelope with the mapped status. Server errors are
// logged and replaced by fallback so store details never leak.
func Fail(c echo.Context, op string, err error, fallback string) error {
	status := models.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		c.Logger().Errorf("Handler.%s: %v", op, err)
		return c.JSON(status, models.Failure(fallback))
	}
	return c.JSON(status, models.Failure(err.Error()))
}

// BadRequest reports a malformed or invalid body.
func BadRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, models.Failure(msg))
}

// OK wraps data in a success envelope.
func OK(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, models.Success(data))
}

// Pagination reads page and limit query parameters. Out of range values fall
// back to page 1 and defLimit.
func Pagination(c echo.Context, defLimit int) (int, int) {
	page := 1
	limit := defLimit
	if pageStr := c.QueryParam("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}
	return page, limit
}
