package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/onegreenvn/crm-campaign-backend/internal/apperror"
	"github.com/onegreenvn/crm-campaign-backend/internal/models"
	"github.com/onegreenvn/crm-campaign-backend/internal/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const defaultCustomerLimit = 10

type CustomerService struct {
	customers CustomerStore
	now       func() time.Time
}

func NewCustomerService(customers CustomerStore) *CustomerService {
	return &CustomerService{customers: customers, now: time.Now}
}

func validateCustomerID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperror.Validation("Invalid customer ID format")
	}
	return nil
}

func (s *CustomerService) newCustomer(req models.CreateCustomerRequest) *models.Customer {
	now := s.now()
	c := &models.Customer{
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		Preferences: datatypes.JSONMap(req.Preferences),
		LastVisit:   &now,
	}
	if req.TotalSpent != nil {
		c.TotalSpent = *req.TotalSpent
	}
	if req.VisitCount != nil {
		c.VisitCount = *req.VisitCount
	}
	if req.LastVisit != nil {
		c.LastVisit = req.LastVisit
	}
	if c.Preferences == nil {
		c.Preferences = datatypes.JSONMap{}
	}
	c.RecomputeSegment(now)
	return c
}

// CreateCustomer creates a customer with its segment derived from spend and last visit
func (s *CustomerService) CreateCustomer(ctx context.Context, req models.CreateCustomerRequest) (*models.Customer, error) {
	req.Normalize()
	if v := utils.ValidateStruct(req); len(v) > 0 {
		return nil, apperror.Validation("Validation failed", v...)
	}

	taken, err := s.customers.EmailTaken(ctx, req.Email, "")
	if err != nil {
		return nil, apperror.Internal("check customer email", err)
	}
	if taken {
		return nil, apperror.Conflict("Customer with this email already exists")
	}

	customer := s.newCustomer(req)
	if err := s.customers.Create(ctx, customer); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperror.Conflict("Customer with this email already exists")
		}
		return nil, apperror.Internal("create customer", err)
	}
	logrus.Infof("Customer %s created (segment %s)", customer.ID, customer.Segment)
	return customer, nil
}

// GetCustomer retrieves a customer by ID
func (s *CustomerService) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	if err := validateCustomerID(id); err != nil {
		return nil, err
	}
	customer, err := s.customers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("Customer", id)
		}
		return nil, apperror.Internal("get customer", err)
	}
	return customer, nil
}

// UpdateCustomer applies a partial update. The segment is recomputed when spend or last visit change.
func (s *CustomerService) UpdateCustomer(ctx context.Context, id string, req models.UpdateCustomerRequest) (*models.Customer, error) {
	req.Normalize()
	if v := utils.ValidateStruct(req); len(v) > 0 {
		return nil, apperror.Validation("Validation failed", v...)
	}

	customer, err := s.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Email != nil && *req.Email != customer.Email {
		taken, err := s.customers.EmailTaken(ctx, *req.Email, id)
		if err != nil {
			return nil, apperror.Internal("check customer email", err)
		}
		if taken {
			return nil, apperror.Conflict("Email already exists for another customer")
		}
		customer.Email = *req.Email
	}
	if req.Name != nil {
		customer.Name = *req.Name
	}
	if req.Phone != nil {
		customer.Phone = *req.Phone
	}
	if req.VisitCount != nil {
		customer.VisitCount = *req.VisitCount
	}
	if req.Preferences != nil {
		customer.Preferences = datatypes.JSONMap(req.Preferences)
	}
	if req.TotalSpent != nil {
		customer.TotalSpent = *req.TotalSpent
	}
	if req.LastVisit != nil {
		customer.LastVisit = req.LastVisit
	}
	if req.TotalSpent != nil || req.LastVisit != nil {
		customer.RecomputeSegment(s.now())
	}

	if err := s.customers.Update(ctx, customer); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperror.Conflict("Email already exists for another customer")
		}
		return nil, apperror.Internal("update customer", err)
	}
	return customer, nil
}

// DeleteCustomer removes a customer. A customer with orders is only removed
// together with its orders, and only when cascade is set.
func (s *CustomerService) DeleteCustomer(ctx context.Context, id string, cascade bool) (*models.CustomerDeleteResult, error) {
	if err := validateCustomerID(id); err != nil {
		return nil, err
	}

	result := &models.CustomerDeleteResult{CustomerID: id}
	var err error
	if cascade {
		result.DeletedOrders, err = s.customers.DeleteWithOrders(ctx, id)
	} else {
		var orders int64
		orders, err = s.customers.CountOrders(ctx, id)
		if err != nil {
			return nil, apperror.Internal("count customer orders", err)
		}
		if orders > 0 {
			return nil, apperror.Conflict("Customer has %d order(s); delete with cascade=true to remove them too", orders)
		}
		err = s.customers.Delete(ctx, id)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("Customer", id)
		}
		return nil, apperror.Internal("delete customer", err)
	}

	logrus.Infof("Customer %s deleted with %d order(s)", id, result.DeletedOrders)
	return result, nil
}

// ListCustomers returns one page of customers matching filter
func (s *CustomerService) ListCustomers(ctx context.Context, filter models.CustomerFilter) (*models.CustomerPage, error) {
	filter.Page, filter.Limit = utils.ValidateAndNormalizePagination(filter.Page, filter.Limit, defaultCustomerLimit)
	if filter.Segment != "" {
		switch filter.Segment {
		case models.SegmentHighValue, models.SegmentRegular, models.SegmentInactive:
		default:
			return nil, apperror.Validation("Validation failed", fmt.Sprintf("unknown segment %q", filter.Segment))
		}
	}

	customers, total, err := s.customers.List(ctx, filter)
	if err != nil {
		return nil, apperror.Internal("list customers", err)
	}
	if customers == nil {
		customers = []models.Customer{}
	}
	return &models.CustomerPage{
		Customers:  customers,
		Pagination: utils.BuildPagination(total, filter.Page, filter.Limit),
	}, nil
}

// BulkCreateCustomers inserts valid rows and skips duplicates and invalid rows
func (s *CustomerService) BulkCreateCustomers(ctx context.Context, req models.BulkCreateCustomersRequest) (*models.BulkCreateResult, error) {
	if len(req.Customers) == 0 {
		return nil, apperror.Validation("Please provide an array of customers")
	}
	if len(req.Customers) > models.MaxBulkCustomers {
		return nil, apperror.Validation(fmt.Sprintf("Maximum %d customers allowed per bulk operation", models.MaxBulkCustomers))
	}

	result := &models.BulkCreateResult{Requested: len(req.Customers)}
	seen := make(map[string]bool, len(req.Customers))
	batch := make([]*models.Customer, 0, len(req.Customers))
	for i, row := range req.Customers {
		row.Normalize()
		if v := utils.ValidateStruct(row); len(v) > 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("customer %d: %s", i+1, strings.Join(v, "; ")))
			continue
		}
		email := row.Email
		if seen[email] {
			result.Errors = append(result.Errors, fmt.Sprintf("customer %d: duplicate email %s in request", i+1, email))
			continue
		}
		seen[email] = true
		batch = append(batch, s.newCustomer(row))
	}

	inserted, err := s.customers.BulkInsert(ctx, batch)
	if err != nil {
		return nil, apperror.Internal("bulk insert customers", err)
	}
	result.Inserted = int(inserted)
	result.Failed = result.Requested - result.Inserted
	if skipped := len(batch) - result.Inserted; skipped > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("%d customer(s) skipped: email already exists", skipped))
	}

	logrus.Infof("Bulk customer import: %d of %d inserted", result.Inserted, result.Requested)
	return result, nil
}

// CustomerStats aggregates customers overall and per segment
func (s *CustomerService) CustomerStats(ctx context.Context) (*models.CustomerStats, error) {
	stats, err := s.customers.Stats(ctx)
	if err != nil {
		return nil, apperror.Internal("customer stats", err)
	}
	return stats, nil
}

// RecomputeSegments refreshes every stored segment against the current time
func (s *CustomerService) RecomputeSegments(ctx context.Context) (int64, error) {
	updated, err := s.customers.RecomputeSegments(ctx, s.now())
	if err != nil {
		return 0, apperror.Internal("recompute segments", err)
	}
	logrus.Infof("Recomputed segments of %d customer(s)", updated)
	return updated, nil
}
