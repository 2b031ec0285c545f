package segmentation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCompile(t *testing.T, rules ...Rule) *Predicate {
	t.Helper()
	p, err := Compile(rules, testNow)
	require.NoError(t, err)
	return p
}

func TestMatches(t *testing.T) {
	lastWeek := testNow.AddDate(0, 0, -7)
	longAgo := testNow.AddDate(0, -6, 0)

	alice := Record{
		"name": "Alice Nguyen", "email": "alice@example.com", "segment": "high-value",
		"totalSpent": 12000.0, "orderCount": 3.0, "avgOrderValue": 4000.0,
		"visitCount": 8.0, "isActive": true, "lastVisit": lastWeek, "lastOrderDate": lastWeek,
	}
	bob := Record{
		"name": "Bob", "email": "bob@example.org", "segment": "inactive",
		"totalSpent": 0.0, "orderCount": 0.0, "avgOrderValue": nil,
		"visitCount": 1.0, "isActive": false, "lastVisit": longAgo, "lastOrderDate": nil,
	}

	tests := []struct {
		name      string
		predicate *Predicate
		alice     bool
		bob       bool
	}{
		{"gt", mustCompile(t, Rule{Field: "totalSpent", Operator: OpGreaterThan, Value: 5000.0}), true, false},
		{"contains ignores case", mustCompile(t, Rule{Field: "name", Operator: OpContains, Value: "NGUYEN"}), true, false},
		{"days ago", mustCompile(t, Rule{Field: "lastVisit", Operator: OpDaysAgo, Value: 90.0}), false, true},
		{"ne skips null", mustCompile(t, Rule{Field: "avgOrderValue", Operator: OpNotEqual, Value: 1.0}), true, false},
		{"exists false matches missing value", mustCompile(t, Rule{Field: "lastOrderDate", Operator: OpExists, Value: false}), false, true},
		{"in", mustCompile(t, Rule{Field: "segment", Operator: OpIn, Value: "inactive,regular"}), false, true},
		{"bool eq", mustCompile(t, Rule{Field: "isActive", Operator: OpEqual, Value: false}), false, true},
		{
			"or of groups",
			mustCompile(t,
				Rule{Field: "totalSpent", Operator: OpGreaterThan, Value: 20000.0, LogicalOperator: LogicalOr},
				Rule{Field: "visitCount", Operator: OpLessThanEqual, Value: 1.0},
			),
			false, true,
		},
		{
			"and within group",
			mustCompile(t,
				Rule{Field: "orderCount", Operator: OpGreaterThanEqual, Value: 1.0},
				Rule{Field: "email", Operator: OpContains, Value: "example"},
			),
			true, false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.alice, tt.predicate.Matches(alice), "alice")
			assert.Equal(t, tt.bob, tt.predicate.Matches(bob), "bob")
		})
	}
}

func TestMatches_NilTimePointer(t *testing.T) {
	var missing *time.Time
	p := mustCompile(t, Rule{Field: "lastVisit", Operator: OpExists, Value: true})
	assert.False(t, p.Matches(Record{"lastVisit": missing}))
	assert.True(t, p.Matches(Record{"lastVisit": &testNow}))
}
