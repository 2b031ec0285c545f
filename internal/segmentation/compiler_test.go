package segmentation

import (
	"testing"
	"time"

	"github.com/onegreenvn/crm-campaign-backend/internal/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func groupFields(p *Predicate) [][]string {
	out := make([][]string, len(p.Groups))
	for i, g := range p.Groups {
		for _, c := range g {
			out[i] = append(out[i], c.Field.Name)
		}
	}
	return out
}

func TestCompile_Grouping(t *testing.T) {
	tests := []struct {
		name  string
		rules []Rule
		want  [][]string
	}{
		{
			name: "no OR is a single conjunction",
			rules: []Rule{
				{Field: "totalSpent", Operator: OpGreaterThan, Value: 5000.0},
				{Field: "visitCount", Operator: OpLessThan, Value: 3.0, LogicalOperator: LogicalAnd},
				{Field: "segment", Operator: OpEqual, Value: "regular"},
			},
			want: [][]string{{"totalSpent", "visitCount", "segment"}},
		},
		{
			name: "OR on the first rule splits after it",
			rules: []Rule{
				{Field: "totalSpent", Operator: OpGreaterThan, Value: 5000.0, LogicalOperator: LogicalOr},
				{Field: "visitCount", Operator: OpLessThan, Value: 3.0},
			},
			want: [][]string{{"totalSpent"}, {"visitCount"}},
		},
		{
			name: "A AND B OR C",
			rules: []Rule{
				{Field: "totalSpent", Operator: OpGreaterThan, Value: 100.0, LogicalOperator: LogicalAnd},
				{Field: "visitCount", Operator: OpGreaterThan, Value: 1.0, LogicalOperator: LogicalOr},
				{Field: "segment", Operator: OpEqual, Value: "inactive"},
			},
			want: [][]string{{"totalSpent", "visitCount"}, {"segment"}},
		},
		{
			name: "trailing OR adds no empty group",
			rules: []Rule{
				{Field: "totalSpent", Operator: OpGreaterThan, Value: 100.0, LogicalOperator: LogicalOr},
			},
			want: [][]string{{"totalSpent"}},
		},
		{
			name: "logical operator is case-insensitive",
			rules: []Rule{
				{Field: "name", Operator: OpContains, Value: "an", LogicalOperator: "or"},
				{Field: "email", Operator: OpContains, Value: "gmail"},
			},
			want: [][]string{{"name"}, {"email"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(tt.rules, testNow)
			require.NoError(t, err)
			assert.Equal(t, tt.want, groupFields(p))
		})
	}
}

func TestCompile_CollectsAllViolations(t *testing.T) {
	_, err := Compile([]Rule{
		{Field: "favouriteColour", Operator: OpEqual, Value: "blue"},
		{Field: "totalSpent", Operator: "between", Value: 1.0},
		{Field: "totalSpent", Operator: OpGreaterThan, Value: "lots"},
		{Field: "name", Operator: OpGreaterThan, Value: "a"},
		{Field: "visitCount", Operator: OpContains, Value: "1"},
		{Field: "lastVisit", Operator: OpDaysAgo, Value: -3.0},
		{Field: "segment", Operator: OpEqual, Value: "regular", LogicalOperator: "XOR"},
	}, testNow)
	require.Error(t, err)

	var verr *apperror.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Violations, 7)
	assert.Contains(t, verr.Violations[0], `unknown field "favouriteColour"`)
	assert.Contains(t, verr.Violations[0], "daysSinceLastOrder")
	assert.Contains(t, verr.Violations[1], `unknown operator "between"`)
	assert.Contains(t, verr.Violations[6], `unknown logical operator "XOR"`)
}

func TestCompile_DaysAgoBounds(t *testing.T) {
	p, err := Compile([]Rule{{Field: "lastVisit", Operator: OpDaysAgo, Value: float64(MaxDaysAgo)}}, testNow)
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(-time.Duration(MaxDaysAgo)*24*time.Hour), p.Groups[0][0].Value.Time)

	for _, days := range []float64{MaxDaysAgo + 1, 200000, 1e18} {
		_, err := Compile([]Rule{{Field: "lastVisit", Operator: OpDaysAgo, Value: days}}, testNow)
		var verr *apperror.ValidationError
		require.ErrorAs(t, err, &verr, "%v", days)
		assert.Contains(t, verr.Violations[0], "cannot exceed")
	}
}

func TestCompile_EmptyRules(t *testing.T) {
	_, err := Compile(nil, testNow)
	var verr *apperror.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestCompile_TypedValues(t *testing.T) {
	p, err := Compile([]Rule{
		{Field: "totalSpent", Operator: OpGreaterThanEqual, Value: "2500.50"},
		{Field: "segment", Operator: OpIn, Value: "high-value, regular"},
		{Field: "visitCount", Operator: OpNotIn, Value: []interface{}{1.0, "2"}},
		{Field: "isActive", Operator: OpEqual, Value: "true"},
		{Field: "lastVisit", Operator: OpExists, Value: false},
		{Field: "createdAt", Operator: OpLessThan, Value: "2025-01-01"},
		{Field: "lastOrderDate", Operator: OpDaysAgo, Value: 30.0},
	}, testNow)
	require.NoError(t, err)
	require.Len(t, p.Groups, 1)
	g := p.Groups[0]

	assert.Equal(t, NumberValue(2500.50), g[0].Value)
	assert.Equal(t, ListValue(TextValue("high-value"), TextValue("regular")), g[1].Value)
	assert.Equal(t, ListValue(NumberValue(1), NumberValue(2)), g[2].Value)
	assert.Equal(t, FlagValue(true), g[3].Value)
	assert.Equal(t, FlagValue(false), g[4].Value)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), g[5].Value.Time)
	assert.Equal(t, testNow.AddDate(0, 0, -30), g[6].Value.Time)
}

func TestCompile_DerivedFieldsAreMarked(t *testing.T) {
	for _, name := range []string{"totalSpent", "orderCount", "avgOrderValue", "lastOrderDate", "daysSinceLastOrder"} {
		f, ok := LookupField(name)
		require.True(t, ok, name)
		assert.True(t, f.Derived, name)
	}
	f, ok := LookupField("visitCount")
	require.True(t, ok)
	assert.False(t, f.Derived)
}

func TestJoinAll(t *testing.T) {
	rules := []Rule{
		{Field: "segment", Operator: OpEqual, Value: "regular", LogicalOperator: LogicalAnd},
		{Field: "segment", Operator: OpEqual, Value: "inactive"},
	}

	joined, err := JoinAll(rules, "or")
	require.NoError(t, err)
	assert.Equal(t, LogicalAnd, rules[0].LogicalOperator, "input must not be modified")

	p, err := Compile(joined, testNow)
	require.NoError(t, err)
	assert.Len(t, p.Groups, 2)

	_, err = JoinAll(rules, "XOR")
	assert.Error(t, err)
}
