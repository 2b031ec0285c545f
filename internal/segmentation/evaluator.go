package segmentation

import (
	"strings"
	"time"
)

// Record is one audience row keyed by field name. Values are float64, string,
// time.Time, bool or nil for SQL NULL.
type Record map[string]interface{}

// Matches evaluates p against rec with the same NULL handling as the SQL
// rendering: any comparison with a missing value is false, only exists=false
// matches it.
func (p *Predicate) Matches(rec Record) bool {
	if p == nil || len(p.Groups) == 0 {
		return true
	}
	for _, g := range p.Groups {
		if g.matches(rec) {
			return true
		}
	}
	return false
}

func (g Group) matches(rec Record) bool {
	for _, c := range g {
		if !c.Matches(rec) {
			return false
		}
	}
	return true
}

// Matches evaluates a single condition.
func (c Condition) Matches(rec Record) bool {
	actual := rec[c.Field.Name]
	if t, ok := actual.(*time.Time); ok {
		if t == nil {
			actual = nil
		} else {
			actual = *t
		}
	}

	if c.Operator == OpExists {
		return (actual != nil) == c.Value.Flag
	}
	if actual == nil {
		return false
	}

	switch c.Operator {
	case OpContains:
		s, ok := actual.(string)
		return ok && strings.Contains(strings.ToLower(s), strings.ToLower(c.Value.Text))
	case OpIn, OpNotIn:
		found := false
		for _, item := range c.Value.List {
			if cmp, ok := compare(actual, item); ok && cmp == 0 {
				found = true
				break
			}
		}
		return found == (c.Operator == OpIn)
	}

	cmp, ok := compare(actual, c.Value)
	if !ok {
		return false
	}
	switch c.Operator {
	case OpGreaterThan:
		return cmp > 0
	case OpGreaterThanEqual:
		return cmp >= 0
	case OpLessThan:
		return cmp < 0
	case OpLessThanEqual, OpDaysAgo:
		return cmp <= 0
	case OpEqual:
		return cmp == 0
	case OpNotEqual:
		return cmp != 0
	}
	return false
}

// compare orders actual against v. ok is false when the types do not line up.
func compare(actual interface{}, v Value) (int, bool) {
	switch v.Kind {
	case ValueNumber:
		var n float64
		switch a := actual.(type) {
		case float64:
			n = a
		case int:
			n = float64(a)
		case int64:
			n = float64(a)
		default:
			return 0, false
		}
		switch {
		case n < v.Number:
			return -1, true
		case n > v.Number:
			return 1, true
		}
		return 0, true
	case ValueText:
		s, ok := actual.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(s, v.Text), true
	case ValueTime:
		t, ok := actual.(time.Time)
		if !ok {
			return 0, false
		}
		return t.Compare(v.Time), true
	case ValueFlag:
		b, ok := actual.(bool)
		if !ok {
			return 0, false
		}
		if b == v.Flag {
			return 0, true
		}
		if b {
			return 1, true
		}
		return -1, true
	}
	return 0, false
}
