package admin

import (
	"errors"
	"net/http"

	"local-delivery/internal/auth"
	"local-delivery/internal/httpio"
	"local-delivery/internal/models"

	"github.com/labstack/echo/v4"
)

// Handler handles the admin dashboard and consistency endpoints.
type Handler struct {
	svc ServiceInterface
}

func NewHandler(svc ServiceInterface) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the routes on an admin-only group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/dashboard", h.GetDashboardStats)
	g.GET("/orders/:orderId/consistency", h.CheckConsistency)
}

func (h *Handler) GetDashboardStats(c echo.Context) error {
	stats, err := h.svc.GetDashboardStats(c.Request().Context(), auth.ActorFrom(c))
	if err != nil {
		return httpio.Fail(c, "GetDashboardStats", err, "Failed to load dashboard")
	}
	return httpio.OK(c, http.StatusOK, stats)
}

// CheckConsistency returns 409 with the full report when history records
// disagree with the order.
func (h *Handler) CheckConsistency(c echo.Context) error {
	report, err := h.svc.CheckConsistency(c.Request().Context(), auth.ActorFrom(c), c.Param("orderId"))
	if errors.Is(err, models.ErrInconsistentState) && report != nil {
		return c.JSON(http.StatusConflict, models.Response{Success: false, Data: report, Message: err.Error()})
	}
	if err != nil {
		return httpio.Fail(c, "CheckConsistency", err, "Failed to check order consistency")
	}
	return httpio.OK(c, http.StatusOK, report)
}
