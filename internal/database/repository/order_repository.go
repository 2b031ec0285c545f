package repository

import (
	"context"
	"time"

	"github.com/onegreenvn/crm-campaign-backend/internal/models"
	"github.com/onegreenvn/crm-campaign-backend/internal/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var orderSortColumns = map[string]string{
	"orderDate":  "order_date",
	"orderValue": "order_value",
	"status":     "status",
	"createdAt":  "created_at",
}

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func withCustomerSummary(db *gorm.DB) *gorm.DB {
	return db.Select("id", "name", "email", "phone")
}

// Create inserts an order
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// CreateBatch inserts orders in one statement
func (r *OrderRepository) CreateBatch(ctx context.Context, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(orders).Error
}

// GetByID retrieves an order with its customer summary
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Preload("Customer", withCustomerSummary).First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// Update saves every column of order
func (r *OrderRepository) Update(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(order).Error
}

// Delete removes an order. Returns gorm.ErrRecordNotFound when nothing was deleted.
func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.Order{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// List returns a filtered page of orders and the total match count
func (r *OrderRepository) List(ctx context.Context, filter models.OrderFilter) ([]models.Order, int64, error) {
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.Order{}), filter.CustomerID, filter.StartDate, filter.EndDate)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.MinValue != nil {
		query = query.Where("order_value >= ?", *filter.MinValue)
	}
	if filter.MaxValue != nil {
		query = query.Where("order_value <= ?", *filter.MaxValue)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	column, ok := orderSortColumns[filter.SortBy]
	if !ok {
		column = "order_date"
	}
	var orders []models.Order
	err := query.
		Preload("Customer", withCustomerSummary).
		Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: filter.SortOrder != "asc"}).
		Offset(utils.CalculateOffset(filter.Page, filter.Limit)).
		Limit(filter.Limit).
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *OrderRepository) applyFilter(query *gorm.DB, customerID string, start, end *time.Time) *gorm.DB {
	if customerID != "" {
		query = query.Where("customer_id = ?", customerID)
	}
	if start != nil {
		query = query.Where("order_date >= ?", *start)
	}
	if end != nil {
		query = query.Where("order_date <= ?", *end)
	}
	return query
}

// Stats aggregates orders, optionally scoped to a customer and a date range
func (r *OrderRepository) Stats(ctx context.Context, customerID string, start, end *time.Time) (*models.OrderStats, error) {
	stats := &models.OrderStats{}

	overview := r.applyFilter(r.db.WithContext(ctx).Model(&models.Order{}), customerID, start, end).
		Select(`COUNT(*) AS total_orders,
			COALESCE(SUM(order_value), 0) AS total_value,
			COALESCE(AVG(order_value), 0) AS average_order_value,
			COALESCE(MAX(order_value), 0) AS max_order_value,
			COALESCE(MIN(order_value), 0) AS min_order_value,
			COUNT(*) FILTER (WHERE status = 'completed') AS completed_orders,
			COUNT(*) FILTER (WHERE status = 'pending') AS pending_orders,
			COUNT(*) FILTER (WHERE status = 'cancelled') AS cancelled_orders`)
	if err := overview.Scan(&stats.Overview).Error; err != nil {
		return nil, err
	}

	trends := r.applyFilter(r.db.WithContext(ctx).Model(&models.Order{}), customerID, start, end).
		Select(`CAST(EXTRACT(YEAR FROM order_date) AS integer) AS year,
			CAST(EXTRACT(MONTH FROM order_date) AS integer) AS month,
			COUNT(*) AS order_count,
			COALESCE(SUM(order_value), 0) AS total_value`).
		Group("1, 2").
		Order("1 DESC, 2 DESC").
		Limit(12)
	if err := trends.Scan(&stats.MonthlyTrends).Error; err != nil {
		return nil, err
	}
	return stats, nil
}
