package repository

import (
	"context"
	"time"

	"github.com/onegreenvn/crm-campaign-backend/internal/models"
	"github.com/onegreenvn/crm-campaign-backend/internal/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var customerSortColumns = map[string]string{
	"createdAt":  "created_at",
	"updatedAt":  "updated_at",
	"name":       "name",
	"email":      "email",
	"totalSpent": "total_spent",
	"visitCount": "visit_count",
	"lastVisit":  "last_visit",
	"segment":    "segment",
}

type CustomerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// Create inserts a customer. A duplicate email surfaces as gorm.ErrDuplicatedKey.
func (r *CustomerRepository) Create(ctx context.Context, customer *models.Customer) error {
	return r.db.WithContext(ctx).Create(customer).Error
}

// GetByID retrieves a customer by ID
func (r *CustomerRepository) GetByID(ctx context.Context, id string) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).First(&customer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

// EmailTaken reports whether another customer already uses email
func (r *CustomerRepository) EmailTaken(ctx context.Context, email, exceptID string) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.Customer{}).Where("email = ?", models.NormalizeEmail(email))
	if exceptID != "" {
		query = query.Where("id <> ?", exceptID)
	}
	err := query.Count(&count).Error
	return count > 0, err
}

// Update saves every column of customer
func (r *CustomerRepository) Update(ctx context.Context, customer *models.Customer) error {
	return r.db.WithContext(ctx).Save(customer).Error
}

// Delete removes a customer. Returns gorm.ErrRecordNotFound when nothing was deleted.
func (r *CustomerRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.Customer{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteWithOrders removes a customer and all of its orders in one transaction
func (r *CustomerRepository) DeleteWithOrders(ctx context.Context, id string) (int64, error) {
	var deletedOrders int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&models.Order{}, "customer_id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		deletedOrders = result.RowsAffected

		result = tx.Delete(&models.Customer{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	return deletedOrders, err
}

// CountOrders counts the orders placed by a customer
func (r *CustomerRepository) CountOrders(ctx context.Context, id string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Order{}).Where("customer_id = ?", id).Count(&count).Error
	return count, err
}

// Exists reports whether a customer with id exists
func (r *CustomerRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Customer{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// ExistingIDs returns the subset of ids that belong to a customer
func (r *CustomerRepository) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	found := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	var existing []string
	err := r.db.WithContext(ctx).Model(&models.Customer{}).Where("id IN ?", ids).Pluck("id", &existing).Error
	if err != nil {
		return nil, err
	}
	for _, id := range existing {
		found[id] = true
	}
	return found, nil
}

// List returns a filtered page of customers and the total match count
func (r *CustomerRepository) List(ctx context.Context, filter models.CustomerFilter) ([]models.Customer, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Customer{})

	if filter.Segment != "" {
		query = query.Where("segment = ?", filter.Segment)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if filter.MinSpent != nil {
		query = query.Where("total_spent >= ?", *filter.MinSpent)
	}
	if filter.MaxSpent != nil {
		query = query.Where("total_spent <= ?", *filter.MaxSpent)
	}
	if filter.MinVisits != nil {
		query = query.Where("visit_count >= ?", *filter.MinVisits)
	}
	if filter.MaxVisits != nil {
		query = query.Where("visit_count <= ?", *filter.MaxVisits)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("(name ILIKE ? OR email ILIKE ? OR phone ILIKE ?)", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	column, ok := customerSortColumns[filter.SortBy]
	if !ok {
		column = "created_at"
	}
	var customers []models.Customer
	err := query.
		Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: filter.SortOrder != "asc"}).
		Offset(utils.CalculateOffset(filter.Page, filter.Limit)).
		Limit(filter.Limit).
		Find(&customers).Error
	if err != nil {
		return nil, 0, err
	}
	return customers, total, nil
}

// BulkInsert inserts customers, skipping rows whose email already exists.
// It returns the number of rows actually inserted.
func (r *CustomerRepository) BulkInsert(ctx context.Context, customers []*models.Customer) (int64, error) {
	if len(customers) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).
		CreateInBatches(customers, 200)
	return result.RowsAffected, result.Error
}

// Stats aggregates customers overall and per segment
func (r *CustomerRepository) Stats(ctx context.Context) (*models.CustomerStats, error) {
	db := r.db.WithContext(ctx)
	stats := &models.CustomerStats{}

	err := db.Raw(`SELECT COUNT(*) AS total_customers,
			COUNT(*) FILTER (WHERE is_active) AS active_customers,
			COALESCE(AVG(total_spent), 0) AS average_spent,
			COALESCE(SUM(total_spent), 0) AS total_revenue,
			COALESCE(AVG(visit_count), 0) AS average_visits
		FROM customers`).Scan(&stats.Overview).Error
	if err != nil {
		return nil, err
	}

	err = db.Raw(`SELECT segment, COUNT(*) AS count,
			COALESCE(SUM(total_spent), 0) AS total_spent,
			COALESCE(AVG(total_spent), 0) AS average_spent
		FROM customers GROUP BY segment ORDER BY segment`).Scan(&stats.Segments).Error
	if err != nil {
		return nil, err
	}

	err = db.Select("id", "name", "email", "total_spent", "segment", "created_at").
		Order("created_at DESC").Limit(5).Find(&stats.RecentCustomers).Error
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// RecomputeSegments refreshes derived segments in SQL and returns how many customers changed.
// Rows whose segment and activity already match are left untouched.
func (r *CustomerRepository) RecomputeSegments(ctx context.Context, now time.Time) (int64, error) {
	cutoff := activeCutoff(now)
	result := r.db.WithContext(ctx).Exec(`UPDATE customers AS c SET
			is_active = d.is_active,
			segment = d.segment,
			updated_at = ?
		FROM (
			SELECT id,
				last_visit IS NOT NULL AND last_visit > ? AS is_active,
				CASE
					WHEN last_visit IS NULL OR last_visit <= ? THEN ?
					WHEN total_spent > ? THEN ?
					ELSE ?
				END AS segment
			FROM customers
		) AS d
		WHERE c.id = d.id
			AND (c.segment IS DISTINCT FROM d.segment OR c.is_active IS DISTINCT FROM d.is_active)`,
		now, cutoff, cutoff, models.SegmentInactive,
		models.HighValueThreshold, models.SegmentHighValue, models.SegmentRegular)
	return result.RowsAffected, result.Error
}

// activeCutoff is the newest last visit that no longer counts as active.
// A visit InactiveAfterDays whole days ago is still active.
func activeCutoff(now time.Time) time.Time {
	return now.Add(-time.Duration(models.InactiveAfterDays+1) * 24 * time.Hour)
}
