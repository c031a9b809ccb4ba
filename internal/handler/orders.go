package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stockroom/internal/models"
	"stockroom/internal/repository"
	"stockroom/internal/service"
)

type OrderHandler struct {
	Fulfillment  *service.FulfillmentService
	Availability *service.AvailabilityService
	Repo         repository.Repository
	Logger       *zap.Logger
}

func (h *OrderHandler) Register(r *gin.Engine) {
	group := r.Group("/api/orders")
	group.GET("", h.listOrders)
	group.GET("/:id", h.getOrder)
	group.POST("/:id/allocate", h.allocate)
	group.POST("/:id/availability", h.checkAvailability)
	group.POST("/allocate-pending", h.allocatePending)
}

// @Summary List orders
// @Tags orders
// @Param status query string false "order status"
// @Param limit query int false "limit"
// @Param offset query int false "offset"
// @Success 200 {object} apiResponse
// @Router /api/orders [get]
func (h *OrderHandler) listOrders(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	orders, err := h.Repo.ListOrders(c.Request.Context(), repository.ListOrdersParams{
		Status: strings.TrimSpace(c.Query("status")),
		Limit:  intQuery(c, "limit", 50),
		Offset: intQuery(c, "offset", 0),
	})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, orders, nil)
}

type orderDetail struct {
	Order       *models.Order            `json:"order"`
	Processings []models.OrderProcessing `json:"processings"`
}

// @Summary Get one order with its processing history
// @Tags orders
// @Param id path int true "order id"
// @Success 200 {object} apiResponse
// @Router /api/orders/{id} [get]
func (h *OrderHandler) getOrder(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	order, err := h.Repo.GetOrderByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			Error(c, http.StatusNotFound, "order not found", nil)
			return
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	processings, err := h.Repo.ListProcessings(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, orderDetail{Order: order, Processings: processings}, nil)
}

// @Summary Allocate one order
// @Tags orders
// @Param id path int true "order id"
// @Success 200 {object} apiResponse
// @Router /api/orders/{id}/allocate [post]
func (h *OrderHandler) allocate(c *gin.Context) {
	if h.Fulfillment == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	outcome, err := h.Fulfillment.Allocate(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			Error(c, http.StatusNotFound, "order not found", nil)
			return
		}
		if h.Logger != nil {
			h.Logger.Warn("allocation failed", zap.Uint64("order_id", id), zap.Error(err))
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, outcome, nil)
}

// @Summary Check availability of an order against its storage point
// @Tags orders
// @Param id path int true "order id"
// @Param deep query bool false "count reserved stock too"
// @Success 200 {object} apiResponse
// @Router /api/orders/{id}/availability [post]
func (h *OrderHandler) checkAvailability(c *gin.Context) {
	if h.Availability == nil || h.Repo == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	order, err := h.Repo.GetOrderByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			Error(c, http.StatusNotFound, "order not found", nil)
			return
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	lines := make([]service.RequestedLine, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, service.RequestedLine{VariantID: line.VariantID, Qty: line.Quantity})
	}
	deep := false
	if raw := c.Query("deep"); raw != "" {
		if b, err := strconv.ParseBool(raw); err == nil {
			deep = b
		}
	}
	report, err := h.Availability.Check(c.Request.Context(), order.StoragePointID, lines, deep)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, report, nil)
}

// @Summary Allocate the pending order queue
// @Tags orders
// @Success 200 {object} apiResponse
// @Router /api/orders/allocate-pending [post]
func (h *OrderHandler) allocatePending(c *gin.Context) {
	if h.Fulfillment == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	processed, err := h.Fulfillment.AllocatePending(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"processed": processed}, nil)
}

func idParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id == 0 {
		Error(c, http.StatusBadRequest, "invalid order id", nil)
		return 0, false
	}
	return id, true
}
