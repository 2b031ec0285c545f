package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/onegreenvn/crm-campaign-backend/internal/models"
	"github.com/onegreenvn/crm-campaign-backend/internal/segmentation"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

// audienceFixture pairs a resolved member with the derived metrics the rules see
type audienceFixture struct {
	member models.AudienceMember
	record segmentation.Record
}

type fakeAudienceStore struct {
	fixtures []audienceFixture
	calls    int
}

func (s *fakeAudienceStore) CountAudience(_ context.Context, p *segmentation.Predicate, _ time.Time) (int64, error) {
	s.calls++
	var n int64
	for _, f := range s.fixtures {
		if p.Matches(f.record) {
			n++
		}
	}
	return n, nil
}

func (s *fakeAudienceStore) FindAudience(_ context.Context, p *segmentation.Predicate, _ time.Time) ([]models.AudienceMember, error) {
	s.calls++
	var out []models.AudienceMember
	for _, f := range s.fixtures {
		if p.Matches(f.record) {
			out = append(out, f.member)
		}
	}
	return out, nil
}

type fakeLogStore struct {
	mu         sync.Mutex
	logs       map[string]*models.CommunicationLog
	order      []string
	batchCalls int
}

func newFakeLogStore() *fakeLogStore {
	return &fakeLogStore{logs: make(map[string]*models.CommunicationLog)}
}

func (s *fakeLogStore) CreateBatch(_ context.Context, logs []*models.CommunicationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batchCalls++
	for _, l := range logs {
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		l.CreatedAt = l.SentAt
		cp := *l
		s.logs[l.ID] = &cp
		s.order = append(s.order, l.ID)
	}
	return nil
}

func (s *fakeLogStore) GetByID(_ context.Context, id string) (*models.CommunicationLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.logs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *l
	return &cp, nil
}

func (s *fakeLogStore) MarkTerminal(_ context.Context, id string, update models.TerminalUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.logs[id]
	if !ok || l.Status != models.DeliveryPending {
		return false, nil
	}
	l.Status = update.Status
	at := update.DeliveredAt
	l.DeliveredAt = &at
	if update.FailureReason != "" {
		reason := update.FailureReason
		l.FailureReason = &reason
	}
	return true, nil
}

func (s *fakeLogStore) MarkRetry(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.logs[id]; ok {
		l.RetryCount++
		l.LastRetryAt = &at
	}
	return nil
}

func (s *fakeLogStore) FindStalePending(_ context.Context, olderThan time.Time, limit int) ([]models.CommunicationLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.CommunicationLog
	for _, id := range s.order {
		l := s.logs[id]
		if l.Status == models.DeliveryPending && l.SentAt.Before(olderThan) {
			out = append(out, *l)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *fakeLogStore) CampaignHistory(_ context.Context, createdBy string, offset, limit int) ([]models.CampaignHistoryRow, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type key struct {
		name string
		day  string
	}
	rows := map[key]*models.CampaignHistoryRow{}
	var keys []key
	for _, id := range s.order {
		l := s.logs[id]
		if l.CreatedBy != createdBy {
			continue
		}
		k := key{l.CampaignName, l.CreatedAt.Format("2006-01-02")}
		row, ok := rows[k]
		if !ok {
			day, _ := time.Parse("2006-01-02", k.day)
			row = &models.CampaignHistoryRow{
				CampaignName:  l.CampaignName,
				CampaignDate:  day,
				SampleMessage: l.Message,
				AudienceRules: l.AudienceRules,
			}
			rows[k] = row
			keys = append(keys, k)
		}
		row.TotalSent++
		switch l.Status {
		case models.DeliverySent:
			row.Delivered++
		case models.DeliveryFailed:
			row.Failed++
		default:
			row.Pending++
		}
		if l.SentAt.After(row.LastSentAt) {
			row.LastSentAt = l.SentAt
		}
	}

	out := make([]models.CampaignHistoryRow, 0, len(keys))
	for _, k := range keys {
		out = append(out, *rows[k])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastSentAt.After(out[j].LastSentAt) })

	total := int64(len(out))
	if offset >= len(out) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], total, nil
}

func (s *fakeLogStore) get(id string) models.CommunicationLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.logs[id]
}

type fakeQueue struct {
	mu        sync.Mutex
	published []DeliveryTask
	err       error
}

func (q *fakeQueue) Publish(_ context.Context, tasks []DeliveryTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.published = append(q.published, tasks...)
	return nil
}

func (q *fakeQueue) Start(DeliveryHandler) error { return nil }
func (q *fakeQueue) Stop()                       {}

type fakeHub struct {
	mu     sync.Mutex
	events map[string][]models.DeliveryStatusEvent
}

func (h *fakeHub) Broadcast(userID string, ev models.DeliveryStatusEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.events == nil {
		h.events = make(map[string][]models.DeliveryStatusEvent)
	}
	h.events[userID] = append(h.events[userID], ev)
}

// fakeVendor returns errs in order, then nil
type fakeVendor struct {
	errs  []error
	calls int
}

func (v *fakeVendor) Send(context.Context, models.VendorSendRequest) error {
	v.calls++
	if len(v.errs) == 0 {
		return nil
	}
	err := v.errs[0]
	v.errs = v.errs[1:]
	return err
}
