package partner

import (
	"net/http"

	"local-delivery/internal/auth"
	"local-delivery/internal/httpio"
	"local-delivery/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Handler handles HTTP requests for partners and their sub-orders.
type Handler struct {
	svc      ServiceInterface
	validate *validator.Validate
}

func NewHandler(svc ServiceInterface) *Handler {
	return &Handler{svc: svc, validate: validator.New()}
}

// RegisterRoutes mounts the partner-facing routes.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/partner/suborders", h.ListSubOrders)
	g.POST("/partner/suborders/:subOrderId/accept", h.AcceptSubOrder)
	g.POST("/partner/suborders/:subOrderId/reject", h.RejectSubOrder)
	g.PUT("/partner/suborders/:subOrderId/progress", h.ProgressSubOrder)
	g.GET("/partner/earnings", h.GetEarnings)
	g.PUT("/partner/open", h.SetOpen)
}

// RegisterAdminRoutes mounts sub-order creation and partner management on
// an admin-only group.
func (h *Handler) RegisterAdminRoutes(g *echo.Group) {
	g.POST("/orders/:orderId/suborders", h.CreateSubOrder)
	g.GET("/partners", h.ListPartners)
	g.PUT("/partners/:partnerId/status", h.SetPartnerStatus)
}

func (h *Handler) CreateSubOrder(c echo.Context) error {
	var req models.CreateSubOrderRequest
	if err := c.Bind(&req); err != nil {
		return httpio.BadRequest(c, "Invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return httpio.BadRequest(c, "Validation failed: "+err.Error())
	}

	sub, err := h.svc.CreateSubOrder(c.Request().Context(), auth.ActorFrom(c), c.Param("orderId"), req)
	if err != nil {
		return httpio.Fail(c, "CreateSubOrder", err, "Failed to create sub-order")
	}
	return httpio.OK(c, http.StatusCreated, sub)
}

func (h *Handler) AcceptSubOrder(c echo.Context) error {
	var req models.AcceptSubOrderRequest
	if err := c.Bind(&req); err != nil {
		return httpio.BadRequest(c, "Invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return httpio.BadRequest(c, "Validation failed: "+err.Error())
	}

	sub, err := h.svc.AcceptSubOrder(c.Request().Context(), auth.ActorFrom(c), c.Param("subOrderId"), req)
	if err != nil {
		return httpio.Fail(c, "AcceptSubOrder", err, "Failed to accept sub-order")
	}
	return httpio.OK(c, http.StatusOK, sub)
}

func (h *Handler) RejectSubOrder(c echo.Context) error {
	sub, err := h.svc.RejectSubOrder(c.Request().Context(), auth.ActorFrom(c), c.Param("subOrderId"))
	if err != nil {
		return httpio.Fail(c, "RejectSubOrder", err, "Failed to reject sub-order")
	}
	return httpio.OK(c, http.StatusOK, sub)
}

func (h *Handler) ProgressSubOrder(c echo.Context) error {
	var req models.SubOrderProgressRequest
	if err := c.Bind(&req); err != nil {
		return httpio.BadRequest(c, "Invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return httpio.BadRequest(c, "Validation failed: "+err.Error())
	}

	sub, err := h.svc.ProgressSubOrder(c.Request().Context(), auth.ActorFrom(c), c.Param("subOrderId"), req)
	if err != nil {
		return httpio.Fail(c, "ProgressSubOrder", err, "Failed to update sub-order")
	}
	return httpio.OK(c, http.StatusOK, sub)
}

func (h *Handler) ListSubOrders(c echo.Context) error {
	subs, err := h.svc.ListSubOrders(c.Request().Context(), auth.ActorFrom(c))
	if err != nil {
		return httpio.Fail(c, "ListSubOrders", err, "Failed to list sub-orders")
	}
	return httpio.OK(c, http.StatusOK, subs)
}

func (h *Handler) GetEarnings(c echo.Context) error {
	earnings, err := h.svc.GetEarnings(c.Request().Context(), auth.ActorFrom(c))
	if err != nil {
		return httpio.Fail(c, "GetEarnings", err, "Failed to load earnings")
	}
	return httpio.OK(c, http.StatusOK, earnings)
}

func (h *Handler) SetOpen(c echo.Context) error {
	var req models.PartnerOpenRequest
	if err := c.Bind(&req); err != nil {
		return httpio.BadRequest(c, "Invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return httpio.BadRequest(c, "Validation failed: "+err.Error())
	}

	p, err := h.svc.SetOpen(c.Request().Context(), auth.ActorFrom(c), req)
	if err != nil {
		return httpio.Fail(c, "SetOpen", err, "Failed to update partner")
	}
	return httpio.OK(c, http.StatusOK, p)
}

func (h *Handler) ListPartners(c echo.Context) error {
	partners, err := h.svc.ListPartners(c.Request().Context(), auth.ActorFrom(c), models.PartnerStatus(c.QueryParam("status")))
	if err != nil {
		return httpio.Fail(c, "ListPartners", err, "Failed to list partners")
	}
	return httpio.OK(c, http.StatusOK, partners)
}

func (h *Handler) SetPartnerStatus(c echo.Context) error {
	var req models.PartnerStatusRequest
	if err := c.Bind(&req); err != nil {
		return httpio.BadRequest(c, "Invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return httpio.BadRequest(c, "Validation failed: "+err.Error())
	}

	p, err := h.svc.SetPartnerStatus(c.Request().Context(), auth.ActorFrom(c), c.Param("partnerId"), req)
	if err != nil {
		return httpio.Fail(c, "SetPartnerStatus", err, "Failed to update partner status")
	}
	return httpio.OK(c, http.StatusOK, p)
}
