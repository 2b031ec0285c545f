package services

import (
	"context"
	"time"

	"github.com/onegreenvn/crm-campaign-backend/internal/apperror"
	"github.com/onegreenvn/crm-campaign-backend/internal/models"
	"github.com/onegreenvn/crm-campaign-backend/internal/segmentation"
	"github.com/sirupsen/logrus"
)

// searchPreviewSize is how many matches a customer search previews
const searchPreviewSize = 10

// AudienceService resolves audience rules against customers and their orders.
// Preview and resolve share one compile step and one derived-metric query.
type AudienceService struct {
	store AudienceStore
	now   func() time.Time
}

func NewAudienceService(store AudienceStore) *AudienceService {
	return &AudienceService{store: store, now: time.Now}
}

// PreviewAudience counts the customers matching rules without side effects
func (s *AudienceService) PreviewAudience(ctx context.Context, actor models.Actor, rules []segmentation.Rule) (*models.AudiencePreviewResponse, error) {
	now := s.now()
	p, err := segmentation.Compile(rules, now)
	if err != nil {
		return nil, err
	}

	count, err := s.store.CountAudience(ctx, p, now)
	if err != nil {
		return nil, apperror.Internal("count audience", err)
	}

	logrus.Debugf("Audience preview by %s: %d match %s", actor.UserID, count, p)
	return &models.AudiencePreviewResponse{AudienceSize: count, Rules: rules}, nil
}

// ResolveAudience lists the customers matching rules, oldest customer first.
// An empty result is not an error.
func (s *AudienceService) ResolveAudience(ctx context.Context, actor models.Actor, rules []segmentation.Rule) ([]models.AudienceMember, error) {
	now := s.now()
	p, err := segmentation.Compile(rules, now)
	if err != nil {
		return nil, err
	}

	members, err := s.store.FindAudience(ctx, p, now)
	if err != nil {
		return nil, apperror.Internal("resolve audience", err)
	}

	logrus.Debugf("Audience resolved by %s: %d match %s", actor.UserID, len(members), p)
	return members, nil
}

// SearchCustomers joins every rule with req.Operator and resolves the result
func (s *AudienceService) SearchCustomers(ctx context.Context, actor models.Actor, req models.CustomerSearchRequest) (*models.CustomerSearchResponse, error) {
	rules, err := segmentation.JoinAll(req.Rules, req.Operator)
	if err != nil {
		return nil, err
	}

	members, err := s.ResolveAudience(ctx, actor, rules)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []models.AudienceMember{}
	}

	preview := members
	if len(preview) > searchPreviewSize {
		preview = preview[:searchPreviewSize]
	}
	return &models.CustomerSearchResponse{
		Customers: members,
		Count:     len(members),
		Preview:   preview,
	}, nil
}
