package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeriveSegment(t *testing.T) {
	now := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	daysAgo := func(d int) *time.Time {
		v := now.AddDate(0, 0, -d)
		return &v
	}

	tests := []struct {
		name        string
		totalSpent  float64
		lastVisit   *time.Time
		wantSegment string
		wantActive  bool
	}{
		{"recent big spender", 15000, daysAgo(10), SegmentHighValue, true},
		{"lapsed big spender", 15000, daysAgo(120), SegmentInactive, false},
		{"recent small spender", 500, daysAgo(1), SegmentRegular, true},
		{"exactly 90 days is still active", 500, daysAgo(90), SegmentRegular, true},
		{"91 days is inactive", 500, daysAgo(91), SegmentInactive, false},
		{"spend at threshold is regular", HighValueThreshold, daysAgo(5), SegmentRegular, true},
		{"never visited", 50000, nil, SegmentInactive, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segment, active := DeriveSegment(tt.totalSpent, tt.lastVisit, now)
			assert.Equal(t, tt.wantSegment, segment)
			assert.Equal(t, tt.wantActive, active)
		})
	}
}

func TestCustomer_RecomputeSegment(t *testing.T) {
	now := time.Now()
	visit := now.Add(-48 * time.Hour)
	c := &Customer{TotalSpent: 20000, LastVisit: &visit, Segment: SegmentInactive, IsActive: false}

	c.RecomputeSegment(now)

	assert.Equal(t, SegmentHighValue, c.Segment)
	assert.True(t, c.IsActive)
	assert.Equal(t, NeverVisitedDays, DaysSinceLastVisit(nil, now))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a.nguyen@example.com", NormalizeEmail("  A.Nguyen@Example.COM "))
}
