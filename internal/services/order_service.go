package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/onegreenvn/crm-campaign-backend/internal/apperror"
	"github.com/onegreenvn/crm-campaign-backend/internal/models"
	"github.com/onegreenvn/crm-campaign-backend/internal/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const defaultOrderLimit = 10

type OrderService struct {
	orders    OrderStore
	customers CustomerStore
	now       func() time.Time
}

func NewOrderService(orders OrderStore, customers CustomerStore) *OrderService {
	return &OrderService{orders: orders, customers: customers, now: time.Now}
}

func (s *OrderService) newOrder(req models.CreateOrderRequest) (*models.Order, error) {
	order := &models.Order{
		CustomerID: req.CustomerID,
		OrderValue: *req.OrderValue,
		OrderDate:  s.now(),
		Status:     req.Status,
	}
	if req.OrderDate != nil {
		order.OrderDate = *req.OrderDate
	}
	if err := order.SetItems(req.Items); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *OrderService) requireCustomer(ctx context.Context, id string) error {
	exists, err := s.customers.Exists(ctx, id)
	if err != nil {
		return apperror.Internal("check customer", err)
	}
	if !exists {
		return apperror.NotFound("Customer", id)
	}
	return nil
}

// CreateOrder records an order for an existing customer
func (s *OrderService) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.Order, error) {
	if v := utils.ValidateStruct(req); len(v) > 0 {
		return nil, apperror.Validation("Validation failed", v...)
	}
	if err := s.requireCustomer(ctx, req.CustomerID); err != nil {
		return nil, err
	}

	order, err := s.newOrder(req)
	if err != nil {
		return nil, apperror.Internal("encode order items", err)
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, apperror.Internal("create order", err)
	}
	return order, nil
}

// GetOrder retrieves an order with its customer summary
func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperror.Validation("Invalid order ID format")
	}
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("Order", id)
		}
		return nil, apperror.Internal("get order", err)
	}
	return order, nil
}

// UpdateOrder applies a partial update
func (s *OrderService) UpdateOrder(ctx context.Context, id string, req models.UpdateOrderRequest) (*models.Order, error) {
	if v := utils.ValidateStruct(req); len(v) > 0 {
		return nil, apperror.Validation("Validation failed", v...)
	}

	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.CustomerID != nil && *req.CustomerID != order.CustomerID {
		if err := s.requireCustomer(ctx, *req.CustomerID); err != nil {
			return nil, err
		}
		order.CustomerID = *req.CustomerID
		order.Customer = nil
	}
	if req.OrderValue != nil {
		order.OrderValue = *req.OrderValue
	}
	if req.OrderDate != nil {
		order.OrderDate = *req.OrderDate
	}
	if req.Status != nil {
		order.Status = *req.Status
	}
	if req.Items != nil {
		if err := order.SetItems(req.Items); err != nil {
			return nil, apperror.Internal("encode order items", err)
		}
	}

	if err := s.orders.Update(ctx, order); err != nil {
		return nil, apperror.Internal("update order", err)
	}
	return order, nil
}

// DeleteOrder removes an order
func (s *OrderService) DeleteOrder(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperror.Validation("Invalid order ID format")
	}
	if err := s.orders.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFound("Order", id)
		}
		return apperror.Internal("delete order", err)
	}
	return nil
}

// ListOrders returns one page of orders matching filter
func (s *OrderService) ListOrders(ctx context.Context, filter models.OrderFilter) (*models.OrderPage, error) {
	filter.Page, filter.Limit = utils.ValidateAndNormalizePagination(filter.Page, filter.Limit, defaultOrderLimit)
	if filter.CustomerID != "" {
		if err := validateCustomerID(filter.CustomerID); err != nil {
			return nil, err
		}
	}
	if filter.Status != "" && !models.ValidOrderStatus(filter.Status) {
		return nil, apperror.Validation("Validation failed", "status must be one of pending, completed, cancelled")
	}

	orders, total, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, apperror.Internal("list orders", err)
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return &models.OrderPage{
		Orders:     orders,
		Pagination: utils.BuildPagination(total, filter.Page, filter.Limit),
	}, nil
}

// CustomerOrders lists the orders of one customer
func (s *OrderService) CustomerOrders(ctx context.Context, customerID string, filter models.OrderFilter) (*models.OrderPage, error) {
	if err := validateCustomerID(customerID); err != nil {
		return nil, err
	}
	if err := s.requireCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	filter.CustomerID = customerID
	return s.ListOrders(ctx, filter)
}

// OrderStats aggregates orders with the last 12 monthly trends
func (s *OrderService) OrderStats(ctx context.Context, customerID string, start, end *time.Time) (*models.OrderStats, error) {
	if customerID != "" {
		if err := validateCustomerID(customerID); err != nil {
			return nil, err
		}
	}
	stats, err := s.orders.Stats(ctx, customerID, start, end)
	if err != nil {
		return nil, apperror.Internal("order stats", err)
	}
	if stats.MonthlyTrends == nil {
		stats.MonthlyTrends = []models.MonthlyTrend{}
	}
	return stats, nil
}

// BulkCreateOrders validates every order up front, then inserts in batches.
// A failing batch is reported and does not stop the others.
func (s *OrderService) BulkCreateOrders(ctx context.Context, req models.BulkCreateOrdersRequest) (*models.BulkCreateResult, error) {
	if len(req.Orders) == 0 {
		return nil, apperror.Validation("Orders array is required and cannot be empty")
	}

	var violations []string
	ids := make([]string, 0, len(req.Orders))
	for i, row := range req.Orders {
		for _, v := range utils.ValidateStruct(row) {
			violations = append(violations, fmt.Sprintf("order %d: %s", i+1, v))
		}
		ids = append(ids, row.CustomerID)
	}
	if len(violations) > 0 {
		return nil, apperror.Validation("Validation failed", violations...)
	}

	existing, err := s.customers.ExistingIDs(ctx, ids)
	if err != nil {
		return nil, apperror.Internal("check customers", err)
	}

	result := &models.BulkCreateResult{Requested: len(req.Orders)}
	orders := make([]*models.Order, 0, len(req.Orders))
	for i, row := range req.Orders {
		if !existing[row.CustomerID] {
			result.Errors = append(result.Errors, fmt.Sprintf("order %d: customer %s not found", i+1, row.CustomerID))
			continue
		}
		order, err := s.newOrder(row)
		if err != nil {
			return nil, apperror.Internal("encode order items", err)
		}
		orders = append(orders, order)
	}

	for start := 0; start < len(orders); start += models.OrderBulkBatchSize {
		end := start + models.OrderBulkBatchSize
		if end > len(orders) {
			end = len(orders)
		}
		if err := s.orders.CreateBatch(ctx, orders[start:end]); err != nil {
			logrus.Errorf("Bulk order batch starting at %d failed: %v", start, err)
			result.Errors = append(result.Errors, fmt.Sprintf("batch starting at %d failed", start))
			continue
		}
		result.Inserted += end - start
	}
	result.Failed = result.Requested - result.Inserted

	logrus.Infof("Bulk order import: %d of %d inserted", result.Inserted, result.Requested)
	return result, nil
}
