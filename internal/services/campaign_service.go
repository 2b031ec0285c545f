package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/onegreenvn/crm-campaign-backend/internal/apperror"
	"github.com/onegreenvn/crm-campaign-backend/internal/models"
	"github.com/onegreenvn/crm-campaign-backend/internal/pkg/distlock"
	"github.com/onegreenvn/crm-campaign-backend/internal/segmentation"
	"github.com/onegreenvn/crm-campaign-backend/internal/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// CampaignService creates campaigns: it resolves the audience, persists one
// PENDING log per recipient and hands the sends to the delivery queue.
type CampaignService struct {
	audience    *AudienceService
	logs        CommunicationLogStore
	queue       DeliveryQueue
	locks       *distlock.Factory
	callbackURL string
	now         func() time.Time
}

func NewCampaignService(
	audience *AudienceService,
	logs CommunicationLogStore,
	queue DeliveryQueue,
	locks *distlock.Factory,
	callbackURL string,
) *CampaignService {
	return &CampaignService{
		audience:    audience,
		logs:        logs,
		queue:       queue,
		locks:       locks,
		callbackURL: callbackURL,
		now:         time.Now,
	}
}

// RenderMessage replaces the first {name} in template with name
func RenderMessage(template, name string) string {
	return strings.Replace(template, models.NamePlaceholder, name, 1)
}

// CreateCampaign returns as soon as the logs are persisted; delivery outcomes arrive later
func (s *CampaignService) CreateCampaign(ctx context.Context, actor models.Actor, req models.CreateCampaignRequest) (*models.CampaignResult, error) {
	req.Name = strings.TrimSpace(req.Name)
	name := req.Name
	if err := validateCampaign(req, s.now()); err != nil {
		return nil, err
	}

	// one creation per operator and campaign name at a time
	lock := s.locks.NewLock(fmt.Sprintf("campaign:%s:%s", actor.UserID, name))
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return nil, apperror.Internal("acquire campaign lock", err)
	}
	if !acquired {
		return nil, apperror.Conflict("Campaign %q is already being created", name)
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			logrus.Warnf("Failed to release campaign lock for %q: %v", name, err)
		}
	}()

	members, err := s.audience.ResolveAudience(ctx, actor, req.AudienceRules)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, apperror.Validation("No customers match the audience rules", "audience is empty")
	}

	snapshot, err := json.Marshal(req.AudienceRules)
	if err != nil {
		return nil, apperror.Internal("snapshot audience rules", err)
	}

	sentAt := s.now()
	logs := make([]*models.CommunicationLog, len(members))
	for i, m := range members {
		logs[i] = &models.CommunicationLog{
			CustomerID:    m.ID,
			CampaignName:  name,
			Message:       RenderMessage(req.Message, m.Name),
			Status:        models.DeliveryPending,
			SentAt:        sentAt,
			AudienceRules: datatypes.JSON(snapshot),
			CreatedBy:     actor.UserID,
		}
	}
	if err := s.logs.CreateBatch(ctx, logs); err != nil {
		return nil, apperror.Internal("create communication logs", err)
	}

	tasks := make([]DeliveryTask, len(logs))
	for i, l := range logs {
		tasks[i] = DeliveryTask{
			LogID:       l.ID,
			CustomerID:  l.CustomerID,
			Message:     l.Message,
			CallbackURL: s.callbackURL,
		}
	}
	// The logs are already the record of what was sent; tasks that never reach a worker are timed out by the sweeper.
	if err := s.queue.Publish(context.WithoutCancel(ctx), tasks); err != nil {
		logrus.Errorf("Failed to enqueue %d send(s) for campaign %q: %v", len(tasks), name, err)
	}

	logrus.Infof("Campaign %q created by %s: %d recipient(s)", name, actor.Username, len(logs))
	return &models.CampaignResult{
		CampaignName: name,
		AudienceSize: len(members),
		Message:      req.Message,
		LogsCreated:  len(logs),
	}, nil
}

// validateCampaign reports every problem with the request at once
func validateCampaign(req models.CreateCampaignRequest, now time.Time) error {
	// a blank-padded message must still meet the minimum length
	checked := req
	checked.Message = strings.TrimSpace(req.Message)
	violations := utils.ValidateStruct(checked)

	if _, err := segmentation.Compile(req.AudienceRules, now); err != nil {
		violations = append(violations, apperror.Violations(err)...)
	}

	if len(violations) > 0 {
		return apperror.Validation("Validation failed", violations...)
	}
	return nil
}
