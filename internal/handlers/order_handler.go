package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/onegreenvn/crm-campaign-backend/internal/apperror"
	"github.com/onegreenvn/crm-campaign-backend/internal/models"
	"github.com/onegreenvn/crm-campaign-backend/internal/services"
	"github.com/onegreenvn/crm-campaign-backend/internal/utils"
)

type OrderHandler struct {
	orderService *services.OrderService
}

func NewOrderHandler(orderService *services.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

// CreateOrder godoc
// @Summary Create an order
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CreateOrderRequest true "Order"
// @Success 201 {object} map[string]interface{} "success: true, data: models.Order"
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{} "customer not found"
// @Router /api/v1/orders [post]
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req models.CreateOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusCreated, order)
}

// ListOrders godoc
// @Summary List orders
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(10)
// @Param customerId query string false "Customer ID"
// @Param status query string false "pending, completed or cancelled"
// @Param minValue query number false "Minimum order value"
// @Param maxValue query number false "Maximum order value"
// @Param startDate query string false "Orders on or after (RFC3339 or YYYY-MM-DD)"
// @Param endDate query string false "Orders on or before (RFC3339 or YYYY-MM-DD)"
// @Param sortBy query string false "orderDate, orderValue or createdAt"
// @Param sortOrder query string false "asc or desc"
// @Success 200 {object} map[string]interface{} "success: true, data: []models.Order, pagination"
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/orders [get]
func (h *OrderHandler) ListOrders(c *gin.Context) {
	filter, err := orderFilterFromQuery(c)
	if err != nil {
		respondError(c, err)
		return
	}
	filter.CustomerID = c.Query("customerId")

	page, err := h.orderService.ListOrders(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       page.Orders,
		"pagination": page.Pagination,
	})
}

func orderFilterFromQuery(c *gin.Context) (models.OrderFilter, error) {
	filter := models.OrderFilter{
		Status:    c.Query("status"),
		SortBy:    c.DefaultQuery("sortBy", "orderDate"),
		SortOrder: c.DefaultQuery("sortOrder", "desc"),
	}
	filter.Page, filter.Limit = utils.ParsePaginationFromQuery(c.Query("page"), c.Query("limit"), defaultListLimit)

	var violations []string
	var err error
	if filter.MinValue, err = utils.ParseOptionalFloat(c.Query("minValue")); err != nil {
		violations = append(violations, "minValue must be a number")
	}
	if filter.MaxValue, err = utils.ParseOptionalFloat(c.Query("maxValue")); err != nil {
		violations = append(violations, "maxValue must be a number")
	}
	if filter.StartDate, err = utils.ParseOptionalTime(c.Query("startDate")); err != nil {
		violations = append(violations, "startDate must be a date")
	}
	if filter.EndDate, err = utils.ParseOptionalTime(c.Query("endDate")); err != nil {
		violations = append(violations, "endDate must be a date")
	}
	if len(violations) > 0 {
		return filter, apperror.Validation("Invalid query parameters", violations...)
	}
	return filter, nil
}

// GetOrder godoc
// @Summary Get an order
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Success 200 {object} map[string]interface{} "success: true, data: models.Order"
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/orders/{id} [get]
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.orderService.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, order)
}

// UpdateOrder godoc
// @Summary Update an order
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Param request body models.UpdateOrderRequest true "Fields to change"
// @Success 200 {object} map[string]interface{} "success: true, data: models.Order"
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/orders/{id} [put]
func (h *OrderHandler) UpdateOrder(c *gin.Context) {
	var req models.UpdateOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.orderService.UpdateOrder(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, order)
}

// DeleteOrder godoc
// @Summary Delete an order
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/orders/{id} [delete]
func (h *OrderHandler) DeleteOrder(c *gin.Context) {
	if err := h.orderService.DeleteOrder(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Order deleted successfully",
	})
}

// OrderStats godoc
// @Summary Order statistics
// @Description Overview and the last twelve monthly trends, optionally for one customer and a date range
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param customerId query string false "Customer ID"
// @Param startDate query string false "From (RFC3339 or YYYY-MM-DD)"
// @Param endDate query string false "To (RFC3339 or YYYY-MM-DD)"
// @Success 200 {object} map[string]interface{} "success: true, data: models.OrderStats"
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/orders/stats [get]
func (h *OrderHandler) OrderStats(c *gin.Context) {
	start, err := utils.ParseOptionalTime(c.Query("startDate"))
	if err != nil {
		respondError(c, apperror.Validation("Invalid query parameters", "startDate must be a date"))
		return
	}
	end, err := utils.ParseOptionalTime(c.Query("endDate"))
	if err != nil {
		respondError(c, apperror.Validation("Invalid query parameters", "endDate must be a date"))
		return
	}

	stats, err := h.orderService.OrderStats(c.Request.Context(), c.Query("customerId"), start, end)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, stats)
}

// BulkCreateOrders godoc
// @Summary Bulk create orders
// @Description Validates every order first, then inserts in batches of 100; failed batches are reported
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.BulkCreateOrdersRequest true "Orders"
// @Success 201 {object} map[string]interface{} "success: true, data: models.BulkCreateResult"
// @Success 207 {object} map[string]interface{} "partial success"
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/orders/bulk [post]
func (h *OrderHandler) BulkCreateOrders(c *gin.Context) {
	var req models.BulkCreateOrdersRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.orderService.BulkCreateOrders(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondBulk(c, result, "orders")
}
