package order

import (
	"net/http"

	"local-delivery/internal/auth"
	"local-delivery/internal/httpio"
	"local-delivery/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Handler handles HTTP requests for orders.
type Handler struct {
	svc      ServiceInterface
	validate *validator.Validate // For request body validation
}

// NewHandler creates a new order handler.
func NewHandler(svc ServiceInterface) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

// RegisterRoutes mounts the customer-facing order routes.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/orders", h.CreateOrder)
	g.GET("/orders/mine", h.GetMyOrders)
	g.GET("/orders/:orderId", h.GetOrderDetails)
	g.GET("/orders/:orderId/custom-status", h.GetCustomOrderStatus)
	g.POST("/orders/:orderId/confirm", h.ConfirmPrice)
	g.POST("/orders/:orderId/cancel", h.CancelOrder)
}

// RegisterAdminRoutes mounts the admin order routes on an admin-only group.
func (h *Handler) RegisterAdminRoutes(g *echo.Group) {
	g.GET("/orders", h.ListAllOrders)
	g.POST("/orders/:orderId/price", h.PriceOrder)
}

func (h *Handler) CreateOrder(c echo.Context) error {
	var req models.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return httpio.BadRequest(c, "Invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return httpio.BadRequest(c, "Validation failed: "+err.Error())
	}

	order, err := h.svc.CreateOrder(c.Request().Context(), auth.ActorFrom(c), req)
	if err != nil {
		return httpio.Fail(c, "CreateOrder", err, "Failed to create order")
	}
	return httpio.OK(c, http.StatusCreated, order)
}

func (h *Handler) GetMyOrders(c echo.Context) error {
	page, limit := httpio.Pagination(c, 20)

	orders, total, err := h.svc.GetMyOrders(c.Request().Context(), auth.ActorFrom(c), page, limit)
	if err != nil {
		return httpio.Fail(c, "GetMyOrders", err, "Failed to retrieve orders")
	}
	return httpio.OK(c, http.StatusOK, models.Page{Items: orders, Total: total, Page: page, Limit: limit})
}

func (h *Handler) GetOrderDetails(c echo.Context) error {
	order, err := h.svc.GetOrderDetails(c.Request().Context(), auth.ActorFrom(c), c.Param("orderId"))
	if err != nil {
		return httpio.Fail(c, "GetOrderDetails", err, "Failed to retrieve order details")
	}
	return httpio.OK(c, http.StatusOK, order)
}

func (h *Handler) GetCustomOrderStatus(c echo.Context) error {
	status, err := h.svc.GetCustomOrderStatus(c.Request().Context(), auth.ActorFrom(c), c.Param("orderId"))
	if err != nil {
		return httpio.Fail(c, "GetCustomOrderStatus", err, "Failed to retrieve order status")
	}
	return httpio.OK(c, http.StatusOK, status)
}

func (h *Handler) ConfirmPrice(c echo.Context) error {
	var req models.PaymentRequest
	if err := c.Bind(&req); err != nil {
		return httpio.BadRequest(c, "Invalid request body")
	}

	order, err := h.svc.ConfirmPrice(c.Request().Context(), auth.ActorFrom(c), c.Param("orderId"), req)
	if err != nil {
		return httpio.Fail(c, "ConfirmPrice", err, "Failed to confirm order")
	}
	return httpio.OK(c, http.StatusOK, order)
}

func (h *Handler) CancelOrder(c echo.Context) error {
	order, err := h.svc.CancelOrder(c.Request().Context(), auth.ActorFrom(c), c.Param("orderId"))
	if err != nil {
		return httpio.Fail(c, "CancelOrder", err, "Failed to cancel order")
	}
	return httpio.OK(c, http.StatusOK, order)
}

func (h *Handler) PriceOrder(c echo.Context) error {
	var req models.PriceOrderRequest
	if err := c.Bind(&req); err != nil {
		return httpio.BadRequest(c, "Invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return httpio.BadRequest(c, "Validation failed: "+err.Error())
	}

	order, err := h.svc.PriceOrder(c.Request().Context(), auth.ActorFrom(c), c.Param("orderId"), req)
	if err != nil {
		return httpio.Fail(c, "PriceOrder", err, "Failed to price order")
	}
	return httpio.OK(c, http.StatusOK, order)
}

func (h *Handler) ListAllOrders(c echo.Context) error {
	// Role check is done in middleware and again in the service.
	page, limit := httpio.Pagination(c, 50)
	status := models.OrderStatus(c.QueryParam("status"))

	orders, total, err := h.svc.ListAllOrders(c.Request().Context(), auth.ActorFrom(c), status, page, limit)
	if err != nil {
		return httpio.Fail(c, "ListAllOrders", err, "Failed to list all orders")
	}
	return httpio.OK(c, http.StatusOK, models.Page{Items: orders, Total: total, Page: page, Limit: limit})
}
