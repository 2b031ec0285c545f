package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Order statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

// OrderItem is a line of an order
type OrderItem struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName" binding:"required,max=200"`
	Quantity    int     `json:"quantity" binding:"min=1"`
	Price       float64 `json:"price" binding:"gte=0"`
}

// Order represents a customer purchase
type Order struct {
	ID         string         `json:"id" gorm:"primaryKey;type:uuid"`
	CustomerID string         `json:"customerId" gorm:"type:uuid;not null;index"`
	OrderValue float64        `json:"orderValue" gorm:"not null"`
	OrderDate  time.Time      `json:"orderDate" gorm:"not null;index:,sort:desc"`
	Status     string         `json:"status" gorm:"type:varchar(20);not null;default:'completed'"`
	Items      datatypes.JSON `json:"items" gorm:"type:jsonb" swaggertype:"array,object"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`

	Customer *Customer `json:"customer,omitempty" gorm:"foreignKey:CustomerID;references:ID"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// BeforeCreate assigns an id and the default status
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = OrderStatusCompleted
	}
	return nil
}

// SetItems stores items as JSON
func (o *Order) SetItems(items []OrderItem) error {
	if items == nil {
		items = []OrderItem{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	o.Items = datatypes.JSON(raw)
	return nil
}

// ValidOrderStatus reports whether s is a known order status
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// CreateOrderRequest represents the request to create an order
type CreateOrderRequest struct {
	CustomerID string      `json:"customerId" binding:"required,uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
	OrderValue *float64    `json:"orderValue" binding:"required,gte=0" example:"249.9"`
	OrderDate  *time.Time  `json:"orderDate"`
	Status     string      `json:"status,omitempty" binding:"omitempty,oneof=pending completed cancelled" example:"completed"`
	Items      []OrderItem `json:"items,omitempty" binding:"omitempty,dive"`
}

// UpdateOrderRequest represents a partial order update
type UpdateOrderRequest struct {
	CustomerID *string     `json:"customerId,omitempty" binding:"omitempty,uuid"`
	OrderValue *float64    `json:"orderValue,omitempty" binding:"omitempty,gte=0"`
	OrderDate  *time.Time  `json:"orderDate,omitempty"`
	Status     *string     `json:"status,omitempty" binding:"omitempty,oneof=pending completed cancelled"`
	Items      []OrderItem `json:"items,omitempty" binding:"omitempty,dive"`
}

// BulkCreateOrdersRequest carries orders for ingestion
type BulkCreateOrdersRequest struct {
	Orders []CreateOrderRequest `json:"orders"`
}

// OrderBulkBatchSize is the number of orders inserted per statement
const OrderBulkBatchSize = 100

// OrderFilter holds list filters
type OrderFilter struct {
	CustomerID string
	Status     string
	MinValue   *float64
	MaxValue   *float64
	StartDate  *time.Time
	EndDate    *time.Time
	SortBy     string
	SortOrder  string
	Page       int
	Limit      int
}

// OrderOverview is the headline of the order statistics
type OrderOverview struct {
	TotalOrders       int64   `json:"totalOrders"`
	TotalValue        float64 `json:"totalValue"`
	AverageOrderValue float64 `json:"averageOrderValue"`
	MaxOrderValue     float64 `json:"maxOrderValue"`
	MinOrderValue     float64 `json:"minOrderValue"`
	CompletedOrders   int64   `json:"completedOrders"`
	PendingOrders     int64   `json:"pendingOrders"`
	CancelledOrders   int64   `json:"cancelledOrders"`
}

// MonthlyTrend aggregates orders of one calendar month
type MonthlyTrend struct {
	Year       int     `json:"year"`
	Month      int     `json:"month"`
	OrderCount int64   `json:"orderCount"`
	TotalValue float64 `json:"totalValue"`
}

// OrderStats is the response of the order statistics endpoint
type OrderStats struct {
	Overview      OrderOverview  `json:"overview"`
	MonthlyTrends []MonthlyTrend `json:"monthlyTrends"`
}

// OrderPage is a page of orders
type OrderPage struct {
	Orders     []Order    `json:"orders"`
	Pagination Pagination `json:"pagination"`
}
