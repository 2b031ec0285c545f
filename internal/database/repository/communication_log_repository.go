package repository

import (
	"context"
	"time"

	"github.com/onegreenvn/crm-campaign-backend/internal/models"

	"gorm.io/gorm"
)

// logInsertBatchSize bounds the rows per INSERT statement of a campaign
const logInsertBatchSize = 500

type CommunicationLogRepository struct {
	db *gorm.DB
}

func NewCommunicationLogRepository(db *gorm.DB) *CommunicationLogRepository {
	return &CommunicationLogRepository{db: db}
}

// CreateBatch persists all logs of a campaign atomically
func (r *CommunicationLogRepository) CreateBatch(ctx context.Context, logs []*models.CommunicationLog) error {
	if len(logs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(logs, logInsertBatchSize).Error
	})
}

// GetByID retrieves a log by ID
func (r *CommunicationLogRepository) GetByID(ctx context.Context, id string) (*models.CommunicationLog, error) {
	var log models.CommunicationLog
	if err := r.db.WithContext(ctx).First(&log, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &log, nil
}

// MarkTerminal moves a PENDING log to SENT or FAILED.
// It reports false when no pending log with that id exists.
func (r *CommunicationLogRepository) MarkTerminal(ctx context.Context, id string, update models.TerminalUpdate) (bool, error) {
	values := map[string]interface{}{
		"status":       update.Status,
		"delivered_at": update.DeliveredAt,
		"updated_at":   update.DeliveredAt,
	}
	if update.Status == models.DeliveryFailed {
		values["failure_reason"] = update.FailureReason
	}

	result := r.db.WithContext(ctx).
		Model(&models.CommunicationLog{}).
		Where("id = ? AND status = ?", id, models.DeliveryPending).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkRetry records another send attempt on a pending log
func (r *CommunicationLogRepository) MarkRetry(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.CommunicationLog{}).
		Where("id = ? AND status = ?", id, models.DeliveryPending).
		Updates(map[string]interface{}{
			"retry_count":   gorm.Expr("retry_count + 1"),
			"last_retry_at": at,
			"updated_at":    at,
		}).Error
}

// FindStalePending returns pending logs sent before olderThan, oldest first
func (r *CommunicationLogRepository) FindStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.CommunicationLog, error) {
	var logs []models.CommunicationLog
	err := r.db.WithContext(ctx).
		Where("status = ? AND sent_at < ?", models.DeliveryPending, olderThan).
		Order("sent_at ASC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

const historyGroupSQL = `FROM communication_logs
	WHERE created_by = ?
	GROUP BY campaign_name, DATE(created_at)`

// CampaignHistory aggregates the operator's logs per campaign and day,
// most recently sent first.
func (r *CommunicationLogRepository) CampaignHistory(ctx context.Context, createdBy string, offset, limit int) ([]models.CampaignHistoryRow, int64, error) {
	db := r.db.WithContext(ctx)

	var total int64
	if err := db.Raw("SELECT COUNT(*) FROM (SELECT 1 "+historyGroupSQL+") AS grouped", createdBy).Scan(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.CampaignHistoryRow
	err := db.Raw(`SELECT campaign_name,
			DATE(created_at) AS campaign_date,
			COUNT(*) AS total_sent,
			COUNT(*) FILTER (WHERE status = 'SENT') AS delivered,
			COUNT(*) FILTER (WHERE status = 'FAILED') AS failed,
			COUNT(*) FILTER (WHERE status = 'PENDING') AS pending,
			MAX(sent_at) AS last_sent_at,
			(ARRAY_AGG(message ORDER BY created_at, id))[1] AS sample_message,
			(ARRAY_AGG(audience_rules ORDER BY created_at, id))[1] AS audience_rules
		`+historyGroupSQL+`
		ORDER BY last_sent_at DESC, campaign_name ASC
		LIMIT ? OFFSET ?`, createdBy, limit, offset).Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
