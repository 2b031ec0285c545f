package models

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Customer segments
const (
	SegmentHighValue = "high-value"
	SegmentRegular   = "regular"
	SegmentInactive  = "inactive"
)

const (
	// InactiveAfterDays is the visit gap after which a customer is inactive
	InactiveAfterDays = 90
	// HighValueThreshold is the spend above which an active customer is high-value
	HighValueThreshold = 10000.0
	// NeverVisitedDays stands in for the visit gap of a customer with no recorded visit
	NeverVisitedDays = 999
)

// Customer represents a CRM customer
type Customer struct {
	ID          string            `json:"id" gorm:"primaryKey;type:uuid"`
	Name        string            `json:"name" gorm:"type:varchar(100);not null"`
	Email       string            `json:"email" gorm:"type:varchar(255);not null;uniqueIndex"`
	Phone       string            `json:"phone" gorm:"type:varchar(20)"`
	TotalSpent  float64           `json:"totalSpent" gorm:"not null;default:0"`
	VisitCount  int               `json:"visitCount" gorm:"not null;default:0"`
	LastVisit   *time.Time        `json:"lastVisit,omitempty"`
	IsActive    bool              `json:"isActive" gorm:"default:true;index"`
	Segment     string            `json:"segment" gorm:"type:varchar(20);default:'regular';index"`
	Preferences datatypes.JSONMap `json:"preferences,omitempty" gorm:"type:jsonb"`
	CreatedAt   time.Time         `json:"createdAt" gorm:"index"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// TableName specifies the table name for the Customer model
func (Customer) TableName() string {
	return "customers"
}

// BeforeCreate assigns an id and normalises the email
func (c *Customer) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Email = NormalizeEmail(c.Email)
	return nil
}

// RecomputeSegment refreshes the derived segment and activity flag.
func (c *Customer) RecomputeSegment(now time.Time) {
	c.Segment, c.IsActive = DeriveSegment(c.TotalSpent, c.LastVisit, now)
}

// DaysSinceLastVisit returns whole days since lastVisit, or NeverVisitedDays when unknown.
func DaysSinceLastVisit(lastVisit *time.Time, now time.Time) int {
	if lastVisit == nil {
		return NeverVisitedDays
	}
	return int(math.Floor(now.Sub(*lastVisit).Hours() / 24))
}

// DeriveSegment classifies a customer by recency first, then by spend.
func DeriveSegment(totalSpent float64, lastVisit *time.Time, now time.Time) (segment string, isActive bool) {
	days := DaysSinceLastVisit(lastVisit, now)
	isActive = days <= InactiveAfterDays
	switch {
	case days > InactiveAfterDays:
		segment = SegmentInactive
	case totalSpent > HighValueThreshold:
		segment = SegmentHighValue
	default:
		segment = SegmentRegular
	}
	return segment, isActive
}

// NormalizeEmail lower-cases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateCustomerRequest represents the request to create a customer
type CreateCustomerRequest struct {
	Name        string                 `json:"name" binding:"required,max=100" example:"Nguyen Van A"`
	Email       string                 `json:"email" binding:"required,email,max=255" example:"a.nguyen@example.com"`
	Phone       string                 `json:"phone" binding:"max=20" example:"0912345678"`
	TotalSpent  *float64               `json:"totalSpent,omitempty" binding:"omitempty,gte=0" example:"1500"`
	VisitCount  *int                   `json:"visitCount,omitempty" binding:"omitempty,gte=0" example:"4"`
	LastVisit   *time.Time             `json:"lastVisit,omitempty"`
	Preferences map[string]interface{} `json:"preferences,omitempty"`
}

// Normalize trims the text fields and lower-cases the email
func (r *CreateCustomerRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = NormalizeEmail(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
}

// UpdateCustomerRequest represents a partial customer update
type UpdateCustomerRequest struct {
	Name        *string                `json:"name,omitempty" binding:"omitempty,min=1,max=100"`
	Email       *string                `json:"email,omitempty" binding:"omitempty,email,max=255"`
	Phone       *string                `json:"phone,omitempty" binding:"omitempty,max=20"`
	TotalSpent  *float64               `json:"totalSpent,omitempty" binding:"omitempty,gte=0"`
	VisitCount  *int                   `json:"visitCount,omitempty" binding:"omitempty,gte=0"`
	LastVisit   *time.Time             `json:"lastVisit,omitempty"`
	Preferences map[string]interface{} `json:"preferences,omitempty"`
}

// Normalize trims the text fields present in the update
func (r *UpdateCustomerRequest) Normalize() {
	trim := func(p *string, f func(string) string) *string {
		if p == nil {
			return nil
		}
		v := f(*p)
		return &v
	}
	r.Name = trim(r.Name, strings.TrimSpace)
	r.Email = trim(r.Email, NormalizeEmail)
	r.Phone = trim(r.Phone, strings.TrimSpace)
}

// BulkCreateCustomersRequest carries up to MaxBulkCustomers customers
type BulkCreateCustomersRequest struct {
	Customers []CreateCustomerRequest `json:"customers"`
}

// MaxBulkCustomers caps a single bulk customer import
const MaxBulkCustomers = 1000

// BulkCreateResult reports a bulk insert
type BulkCreateResult struct {
	Requested int      `json:"requested"`
	Inserted  int      `json:"inserted"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// CustomerFilter holds list filters
type CustomerFilter struct {
	Segment   string
	IsActive  *bool
	MinSpent  *float64
	MaxSpent  *float64
	MinVisits *int
	MaxVisits *int
	Search    string
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
}

// CustomerOverview is the headline of the customer statistics
type CustomerOverview struct {
	TotalCustomers  int64   `json:"totalCustomers"`
	ActiveCustomers int64   `json:"activeCustomers"`
	AverageSpent    float64 `json:"averageSpent"`
	TotalRevenue    float64 `json:"totalRevenue"`
	AverageVisits   float64 `json:"averageVisits"`
}

// SegmentStat aggregates customers of one segment
type SegmentStat struct {
	Segment      string  `json:"segment"`
	Count        int64   `json:"count"`
	TotalSpent   float64 `json:"totalSpent"`
	AverageSpent float64 `json:"averageSpent"`
}

// CustomerStats is the response of the customer statistics endpoint
type CustomerStats struct {
	Overview        CustomerOverview `json:"overview"`
	Segments        []SegmentStat    `json:"segments"`
	RecentCustomers []Customer       `json:"recentCustomers"`
}

// CustomerPage is a page of customers
type CustomerPage struct {
	Customers  []Customer `json:"customers"`
	Pagination Pagination `json:"pagination"`
}

// CustomerDeleteResult reports what a customer delete removed
type CustomerDeleteResult struct {
	CustomerID    string `json:"customerId"`
	DeletedOrders int64  `json:"deletedOrders"`
}
