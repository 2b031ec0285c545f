package services

import (
	"context"
	"encoding/json"
	"math"

	"github.com/onegreenvn/crm-campaign-backend/internal/apperror"
	"github.com/onegreenvn/crm-campaign-backend/internal/models"
	"github.com/onegreenvn/crm-campaign-backend/internal/segmentation"
	"github.com/onegreenvn/crm-campaign-backend/internal/utils"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultHistoryLimit is the history page size when none is given
	DefaultHistoryLimit = 10
	sampleMessageLength = 100
)

// HistoryService summarizes communication logs per campaign and day
type HistoryService struct {
	logs CommunicationLogStore
}

func NewHistoryService(logs CommunicationLogStore) *HistoryService {
	return &HistoryService{logs: logs}
}

// GetHistory returns one page of the operator's campaigns, most recently sent first
func (s *HistoryService) GetHistory(ctx context.Context, actor models.Actor, page, limit int) (*models.CampaignHistoryPage, error) {
	page, limit = utils.ValidateAndNormalizePagination(page, limit, DefaultHistoryLimit)

	rows, total, err := s.logs.CampaignHistory(ctx, actor.UserID, utils.CalculateOffset(page, limit), limit)
	if err != nil {
		return nil, apperror.Internal("campaign history", err)
	}

	items := make([]models.CampaignHistoryItem, len(rows))
	for i, row := range rows {
		items[i] = toHistoryItem(row)
	}
	return &models.CampaignHistoryPage{
		Items:      items,
		Pagination: utils.BuildPagination(total, page, limit),
	}, nil
}

// AllHistory returns every campaign of the operator
func (s *HistoryService) AllHistory(ctx context.Context, actor models.Actor) ([]models.CampaignHistoryItem, error) {
	var items []models.CampaignHistoryItem
	for page := 1; ; page++ {
		p, err := s.GetHistory(ctx, actor, page, utils.MaxPageLimit)
		if err != nil {
			return nil, err
		}
		items = append(items, p.Items...)
		if !p.Pagination.HasNextPage {
			return items, nil
		}
	}
}

func toHistoryItem(row models.CampaignHistoryRow) models.CampaignHistoryItem {
	item := models.CampaignHistoryItem{
		CampaignName:  row.CampaignName,
		Date:          row.CampaignDate.Format("2006-01-02"),
		AudienceSize:  row.TotalSent,
		Delivered:     row.Delivered,
		Failed:        row.Failed,
		Pending:       row.Pending,
		DeliveryRate:  DeliveryRate(row.Delivered, row.TotalSent),
		LastSentAt:    row.LastSentAt,
		SampleMessage: utils.Truncate(row.SampleMessage, sampleMessageLength),
	}
	if len(row.AudienceRules) > 0 {
		var rules []segmentation.Rule
		if err := json.Unmarshal(row.AudienceRules, &rules); err != nil {
			logrus.Warnf("Unreadable audience rules snapshot for campaign %q: %v", row.CampaignName, err)
		} else {
			item.AudienceRules = rules
		}
	}
	return item
}

// DeliveryRate is delivered/total as a percentage rounded to two decimals
func DeliveryRate(delivered, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(delivered)/float64(total)*100*100) / 100
}
