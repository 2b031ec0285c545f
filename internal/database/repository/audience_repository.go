package repository

import (
	"context"
	"time"

	"github.com/onegreenvn/crm-campaign-backend/internal/models"
	"github.com/onegreenvn/crm-campaign-backend/internal/segmentation"

	"gorm.io/gorm"
)

// AudienceRepository runs compiled audience predicates against customers and orders
type AudienceRepository struct {
	db *gorm.DB
}

func NewAudienceRepository(db *gorm.DB) *AudienceRepository {
	return &AudienceRepository{db: db}
}

// CountAudience counts customers matching p
func (r *AudienceRepository) CountAudience(ctx context.Context, p *segmentation.Predicate, now time.Time) (int64, error) {
	query, args := segmentation.NewQueryBuilder(now).BuildCountQuery(p)
	var count int64
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// FindAudience lists customers matching p in creation order
func (r *AudienceRepository) FindAudience(ctx context.Context, p *segmentation.Predicate, now time.Time) ([]models.AudienceMember, error) {
	query, args := segmentation.NewQueryBuilder(now).BuildSelectQuery(p)
	var members []models.AudienceMember
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}
