package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/onegreenvn/crm-campaign-backend/internal/apperror"
	"github.com/onegreenvn/crm-campaign-backend/internal/models"
	"github.com/onegreenvn/crm-campaign-backend/internal/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const defaultReceiptFailureReason = "Delivery failed"

// StatusBroadcaster publishes terminal transitions to live listeners
type StatusBroadcaster interface {
	Broadcast(userID string, ev models.DeliveryStatusEvent)
}

// DeliveryService owns the PENDING -> SENT|FAILED transition.
// The receipt webhook, the delivery workers and the pending sweeper all go through MarkTerminal.
type DeliveryService struct {
	logs CommunicationLogStore
	hub  StatusBroadcaster
	now  func() time.Time
}

func NewDeliveryService(logs CommunicationLogStore, hub StatusBroadcaster) *DeliveryService {
	return &DeliveryService{logs: logs, hub: hub, now: time.Now}
}

// MarkTerminal moves a pending log to status. It reports whether this call made the move;
// a log that is already terminal is returned unchanged.
func (s *DeliveryService) MarkTerminal(ctx context.Context, logID, status, failureReason string) (*models.CommunicationLog, bool, error) {
	if _, err := uuid.Parse(logID); err != nil {
		return nil, false, apperror.NotFound("Communication log", logID)
	}
	update := models.TerminalUpdate{
		Status:        status,
		DeliveredAt:   s.now(),
		FailureReason: failureReason,
	}
	moved, err := s.logs.MarkTerminal(ctx, logID, update)
	if err != nil {
		return nil, false, apperror.Internal("mark log terminal", err)
	}

	log, err := s.logs.GetByID(ctx, logID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, apperror.NotFound("Communication log", logID)
		}
		return nil, false, apperror.Internal("get communication log", err)
	}

	if moved {
		logrus.Debugf("Communication log %s -> %s", logID, status)
		if s.hub != nil {
			s.hub.Broadcast(log.CreatedBy, models.DeliveryStatusEvent{
				LogID:         log.ID,
				CampaignName:  log.CampaignName,
				CustomerID:    log.CustomerID,
				Status:        log.Status,
				DeliveredAt:   log.DeliveredAt,
				FailureReason: log.FailureReason,
			})
		}
	} else {
		logrus.Debugf("Communication log %s already %s, ignoring %s", logID, log.Status, status)
	}
	return log, moved, nil
}

// HandleReceipt applies a vendor delivery receipt.
// A repeated receipt for a terminal log is acknowledged with the stored state.
func (s *DeliveryService) HandleReceipt(ctx context.Context, req models.DeliveryReceiptRequest) (*models.CommunicationLog, error) {
	if v := utils.ValidateStruct(req); len(v) > 0 {
		return nil, apperror.Validation("logId and status are required", v...)
	}
	status := strings.ToUpper(strings.TrimSpace(req.Status))
	if status != models.DeliverySent && status != models.DeliveryFailed {
		return nil, apperror.Validation("Validation failed", "status must be SENT or FAILED")
	}

	reason := ""
	if status == models.DeliveryFailed {
		reason = strings.TrimSpace(req.FailureReason)
		if reason == "" {
			reason = defaultReceiptFailureReason
		}
	}

	log, _, err := s.MarkTerminal(ctx, req.LogID, status, reason)
	return log, err
}
