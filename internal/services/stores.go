package services

import (
	"context"
	"time"

	"github.com/onegreenvn/crm-campaign-backend/internal/models"
	"github.com/onegreenvn/crm-campaign-backend/internal/segmentation"
)

// Store interfaces consumed by the services. The gorm repositories implement them.

type AudienceStore interface {
	CountAudience(ctx context.Context, p *segmentation.Predicate, now time.Time) (int64, error)
	FindAudience(ctx context.Context, p *segmentation.Predicate, now time.Time) ([]models.AudienceMember, error)
}

type CommunicationLogStore interface {
	CreateBatch(ctx context.Context, logs []*models.CommunicationLog) error
	GetByID(ctx context.Context, id string) (*models.CommunicationLog, error)
	MarkTerminal(ctx context.Context, id string, update models.TerminalUpdate) (bool, error)
	MarkRetry(ctx context.Context, id string, at time.Time) error
	FindStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.CommunicationLog, error)
	CampaignHistory(ctx context.Context, createdBy string, offset, limit int) ([]models.CampaignHistoryRow, int64, error)
}

type CustomerStore interface {
	Create(ctx context.Context, customer *models.Customer) error
	GetByID(ctx context.Context, id string) (*models.Customer, error)
	EmailTaken(ctx context.Context, email, exceptID string) (bool, error)
	Update(ctx context.Context, customer *models.Customer) error
	Delete(ctx context.Context, id string) error
	DeleteWithOrders(ctx context.Context, id string) (int64, error)
	CountOrders(ctx context.Context, id string) (int64, error)
	Exists(ctx context.Context, id string) (bool, error)
	ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error)
	List(ctx context.Context, filter models.CustomerFilter) ([]models.Customer, int64, error)
	BulkInsert(ctx context.Context, customers []*models.Customer) (int64, error)
	Stats(ctx context.Context) (*models.CustomerStats, error)
	RecomputeSegments(ctx context.Context, now time.Time) (int64, error)
}

type OrderStore interface {
	Create(ctx context.Context, order *models.Order) error
	CreateBatch(ctx context.Context, orders []*models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	Update(ctx context.Context, order *models.Order) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter models.OrderFilter) ([]models.Order, int64, error)
	Stats(ctx context.Context, customerID string, start, end *time.Time) (*models.OrderStats, error)
}
