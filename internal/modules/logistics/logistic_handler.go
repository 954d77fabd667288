package logistics

import (
	"net/http"

	"local-delivery/internal/auth"
	"local-delivery/internal/httpio"
	"local-delivery/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Handler serves the delivery endpoints: admin assignment, status reports
// from the delivery actor and their job history and stats.
type Handler struct {
	svc      ServiceInterface
	validate *validator.Validate
}

func NewHandler(svc ServiceInterface) *Handler {
	return &Handler{svc: svc, validate: validator.New()}
}

// RegisterRoutes mounts the delivery actor routes.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.PUT("/delivery/orders/:orderId/status", h.UpdateDeliveryStatus)
	g.GET("/delivery/jobs", h.ListMyJobs)
	g.GET("/delivery/stats", h.GetDeliveryStats)
}

// RegisterAdminRoutes mounts assignment on an admin-only group.
func (h *Handler) RegisterAdminRoutes(g *echo.Group) {
	g.POST("/orders/:orderId/assign", h.AssignDelivery)
}

// ---- 1) Admin assignment ----

func (h *Handler) AssignDelivery(c echo.Context) error {
	var req models.AssignDeliveryRequest
	if err := c.Bind(&req); err != nil {
		return httpio.BadRequest(c, "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return httpio.BadRequest(c, "Validation failed: "+err.Error())
	}

	order, err := h.svc.AssignDelivery(c.Request().Context(), auth.ActorFrom(c), c.Param("orderId"), req)
	if err != nil {
		return httpio.Fail(c, "AssignDelivery", err, "failed to assign order")
	}
	return httpio.OK(c, http.StatusOK, order)
}

// ---- 2) Delivery actor ----

// UpdateDeliveryStatus accepts PICKED_UP or DELIVERED from the assigned
// delivery actor.
func (h *Handler) UpdateDeliveryStatus(c echo.Context) error {
	var req models.DeliveryStatusRequest
	if err := c.Bind(&req); err != nil {
		return httpio.BadRequest(c, "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return httpio.BadRequest(c, "Validation failed: "+err.Error())
	}

	order, err := h.svc.UpdateDeliveryStatus(c.Request().Context(), auth.ActorFrom(c), c.Param("orderId"), req)
	if err != nil {
		return httpio.Fail(c, "UpdateDeliveryStatus", err, "failed to update delivery status")
	}
	return httpio.OK(c, http.StatusOK, order)
}

func (h *Handler) ListMyJobs(c echo.Context) error {
	jobs, err := h.svc.ListMyJobs(c.Request().Context(), auth.ActorFrom(c))
	if err != nil {
		return httpio.Fail(c, "ListMyJobs", err, "failed to list delivery jobs")
	}
	return httpio.OK(c, http.StatusOK, jobs)
}

func (h *Handler) GetDeliveryStats(c echo.Context) error {
	stats, err := h.svc.GetDeliveryStats(c.Request().Context(), auth.ActorFrom(c))
	if err != nil {
		return httpio.Fail(c, "GetDeliveryStats", err, "failed to load delivery stats")
	}
	return httpio.OK(c, http.StatusOK, stats)
}
