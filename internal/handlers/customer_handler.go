package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/onegreenvn/crm-campaign-backend/internal/apperror"
	"github.com/onegreenvn/crm-campaign-backend/internal/models"
	"github.com/onegreenvn/crm-campaign-backend/internal/services"
	"github.com/onegreenvn/crm-campaign-backend/internal/utils"
)

const defaultListLimit = 10

type CustomerHandler struct {
	customerService *services.CustomerService
	orderService    *services.OrderService
	audienceService *services.AudienceService
}

func NewCustomerHandler(
	customerService *services.CustomerService,
	orderService *services.OrderService,
	audienceService *services.AudienceService,
) *CustomerHandler {
	return &CustomerHandler{
		customerService: customerService,
		orderService:    orderService,
		audienceService: audienceService,
	}
}

// CreateCustomer godoc
// @Summary Create a customer
// @Tags customers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CreateCustomerRequest true "Customer"
// @Success 201 {object} map[string]interface{} "success: true, data: models.Customer"
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/customers [post]
func (h *CustomerHandler) CreateCustomer(c *gin.Context) {
	var req models.CreateCustomerRequest
	if !bindJSON(c, &req) {
		return
	}

	customer, err := h.customerService.CreateCustomer(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusCreated, customer)
}

// ListCustomers godoc
// @Summary List customers
// @Tags customers
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(10)
// @Param segment query string false "high-value, regular or inactive"
// @Param isActive query bool false "Active flag"
// @Param minSpent query number false "Minimum total spent"
// @Param maxSpent query number false "Maximum total spent"
// @Param minVisits query int false "Minimum visit count"
// @Param maxVisits query int false "Maximum visit count"
// @Param search query string false "Name, email or phone contains"
// @Param sortBy query string false "createdAt, name, email, totalSpent, visitCount or lastVisit"
// @Param sortOrder query string false "asc or desc"
// @Success 200 {object} map[string]interface{} "success: true, data: []models.Customer, pagination"
// @Failure 400 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/customers [get]
func (h *CustomerHandler) ListCustomers(c *gin.Context) {
	filter, err := customerFilterFromQuery(c)
	if err != nil {
		respondError(c, err)
		return
	}

	page, err := h.customerService.ListCustomers(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       page.Customers,
		"pagination": page.Pagination,
	})
}

func customerFilterFromQuery(c *gin.Context) (models.CustomerFilter, error) {
	filter := models.CustomerFilter{
		Segment:   c.Query("segment"),
		Search:    c.Query("search"),
		SortBy:    c.DefaultQuery("sortBy", "createdAt"),
		SortOrder: c.DefaultQuery("sortOrder", "desc"),
	}
	filter.Page, filter.Limit = utils.ParsePaginationFromQuery(c.Query("page"), c.Query("limit"), defaultListLimit)

	var violations []string
	var err error
	if filter.IsActive, err = utils.ParseOptionalBool(c.Query("isActive")); err != nil {
		violations = append(violations, "isActive must be true or false")
	}
	if filter.MinSpent, err = utils.ParseOptionalFloat(c.Query("minSpent")); err != nil {
		violations = append(violations, "minSpent must be a number")
	}
	if filter.MaxSpent, err = utils.ParseOptionalFloat(c.Query("maxSpent")); err != nil {
		violations = append(violations, "maxSpent must be a number")
	}
	if filter.MinVisits, err = utils.ParseOptionalInt(c.Query("minVisits")); err != nil {
		violations = append(violations, "minVisits must be an integer")
	}
	if filter.MaxVisits, err = utils.ParseOptionalInt(c.Query("maxVisits")); err != nil {
		violations = append(violations, "maxVisits must be an integer")
	}
	if len(violations) > 0 {
		return filter, apperror.Validation("Invalid query parameters", violations...)
	}
	return filter, nil
}

// GetCustomer godoc
// @Summary Get a customer
// @Tags customers
// @Produce json
// @Security BearerAuth
// @Param id path string true "Customer ID"
// @Success 200 {object} map[string]interface{} "success: true, data: models.Customer"
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/customers/{id} [get]
func (h *CustomerHandler) GetCustomer(c *gin.Context) {
	customer, err := h.customerService.GetCustomer(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, customer)
}

// UpdateCustomer godoc
// @Summary Update a customer
// @Description Partial update; the segment is recomputed when totalSpent or lastVisit change
// @Tags customers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Customer ID"
// @Param request body models.UpdateCustomerRequest true "Fields to change"
// @Success 200 {object} map[string]interface{} "success: true, data: models.Customer"
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/v1/customers/{id} [put]
func (h *CustomerHandler) UpdateCustomer(c *gin.Context) {
	var req models.UpdateCustomerRequest
	if !bindJSON(c, &req) {
		return
	}

	customer, err := h.customerService.UpdateCustomer(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, customer)
}

// DeleteCustomer godoc
// @Summary Delete a customer
// @Description A customer with orders is only deleted with cascade=true, which removes the orders too
// @Tags customers
// @Produce json
// @Security BearerAuth
// @Param id path string true "Customer ID"
// @Param cascade query bool false "Also delete the customer's orders"
// @Success 200 {object} map[string]interface{} "success: true, data: models.CustomerDeleteResult"
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/v1/customers/{id} [delete]
func (h *CustomerHandler) DeleteCustomer(c *gin.Context) {
	cascade, err := utils.ParseOptionalBool(c.Query("cascade"))
	if err != nil {
		respondError(c, apperror.Validation("Invalid query parameters", "cascade must be true or false"))
		return
	}

	result, err := h.customerService.DeleteCustomer(c.Request.Context(), c.Param("id"), cascade != nil && *cascade)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Customer deleted successfully",
		"data":    result,
	})
}

// BulkCreateCustomers godoc
// @Summary Bulk create customers
// @Description Inserts up to 1000 customers; invalid rows and existing emails are skipped and reported
// @Tags customers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.BulkCreateCustomersRequest true "Customers"
// @Success 201 {object} map[string]interface{} "success: true, data: models.BulkCreateResult"
// @Success 207 {object} map[string]interface{} "partial success"
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/customers/bulk [post]
func (h *CustomerHandler) BulkCreateCustomers(c *gin.Context) {
	var req models.BulkCreateCustomersRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.customerService.BulkCreateCustomers(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondBulk(c, result, "customers")
}

// respondBulk answers 201 when every row was inserted and 207 otherwise
func respondBulk(c *gin.Context, result *models.BulkCreateResult, noun string) {
	status := http.StatusCreated
	if result.Failed > 0 {
		status = http.StatusMultiStatus
	}
	c.JSON(status, gin.H{
		"success": result.Inserted > 0 || result.Requested == 0,
		"message": fmt.Sprintf("%d of %d %s created", result.Inserted, result.Requested, noun),
		"data":    result,
	})
}

// CustomerStats godoc
// @Summary Customer statistics
// @Description Overview, per-segment totals and the five most recent customers
// @Tags customers
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{} "success: true, data: models.CustomerStats"
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/customers/stats [get]
func (h *CustomerHandler) CustomerStats(c *gin.Context) {
	stats, err := h.customerService.CustomerStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, stats)
}

// RecomputeSegments godoc
// @Summary Recompute customer segments
// @Description Refreshes segment and isActive of every customer against the current time
// @Tags customers
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/customers/recompute-segments [post]
func (h *CustomerHandler) RecomputeSegments(c *gin.Context) {
	updated, err := h.customerService.RecomputeSegments(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"updated": updated})
}

// SearchCustomers godoc
// @Summary Search customers by rules
// @Description Joins every rule with one operator (AND or OR) and returns the matches with a preview of the first ten
// @Tags customers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CustomerSearchRequest true "Rules and operator"
// @Success 200 {object} map[string]interface{} "success: true, data: models.CustomerSearchResponse"
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/customers/search [post]
func (h *CustomerHandler) SearchCustomers(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req models.CustomerSearchRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.audienceService.SearchCustomers(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, result)
}

// GetCustomerOrders godoc
// @Summary Orders of a customer
// @Tags customers
// @Produce json
// @Security BearerAuth
// @Param id path string true "Customer ID"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(10)
// @Param status query string false "pending, completed or cancelled"
// @Success 200 {object} map[string]interface{} "success: true, data: []models.Order, pagination"
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/customers/{id}/orders [get]
func (h *CustomerHandler) GetCustomerOrders(c *gin.Context) {
	filter, err := orderFilterFromQuery(c)
	if err != nil {
		respondError(c, err)
		return
	}

	page, err := h.orderService.CustomerOrders(c.Request.Context(), c.Param("id"), filter)
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
