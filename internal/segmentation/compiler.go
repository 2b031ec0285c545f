package segmentation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/onegreenvn/crm-campaign-backend/internal/apperror"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Compile turns an ordered rule list into a predicate.
//
// Rules are read left to right. Each condition joins the running AND-group;
// a rule whose own logicalOperator is OR closes that group, so the next rule
// opens a new one. The result is the OR of the collected groups.
//
// Every invalid rule is reported in a single ValidationError. Compile does no
// I/O; now anchors days_ago cutoffs.
func Compile(rules []Rule, now time.Time) (*Predicate, error) {
	if len(rules) == 0 {
		return nil, apperror.Validation("Audience rules are required", "at least one audience rule is required")
	}

	var violations []string
	conditions := make([]Condition, 0, len(rules))
	for i, rule := range rules {
		cond, errs := compileRule(rule, now)
		if _, ok := normalizeLogical(rule.LogicalOperator); !ok {
			errs = append(errs, fmt.Sprintf("unknown logical operator %q", rule.LogicalOperator))
		}
		for _, e := range errs {
			violations = append(violations, fmt.Sprintf("rule %d: %s", i+1, e))
		}
		conditions = append(conditions, cond)
	}
	if len(violations) > 0 {
		return nil, apperror.Validation("Invalid audience rules", violations...)
	}

	return groupConditions(rules, conditions), nil
}

// JoinAll returns a copy of rules where every rule is joined to the next by op.
// An empty op means AND.
func JoinAll(rules []Rule, op LogicalOperator) ([]Rule, error) {
	norm, ok := normalizeLogical(op)
	if !ok {
		return nil, apperror.Validation("Invalid search operator", fmt.Sprintf("unknown logical operator %q", op))
	}
	joined := make([]Rule, len(rules))
	for i, r := range rules {
		r.LogicalOperator = norm
		joined[i] = r
	}
	return joined, nil
}

func groupConditions(rules []Rule, conditions []Condition) *Predicate {
	var groups []Group
	var current Group
	for i, cond := range conditions {
		current = append(current, cond)
		if op, _ := normalizeLogical(rules[i].LogicalOperator); op == LogicalOr {
			groups = append(groups, current)
			current = nil
		}
	}
	// A trailing OR leaves nothing to push.
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return &Predicate{Groups: groups}
}

func normalizeLogical(op LogicalOperator) (LogicalOperator, bool) {
	switch LogicalOperator(strings.ToUpper(strings.TrimSpace(string(op)))) {
	case "", LogicalAnd:
		return LogicalAnd, true
	case LogicalOr:
		return LogicalOr, true
	default:
		return "", false
	}
}

// MaxDaysAgo bounds days_ago so the cutoff stays within time.Duration
const MaxDaysAgo = 36500

func compileRule(rule Rule, now time.Time) (Condition, []string) {
	var errs []string
	field, ok := LookupField(rule.Field)
	if !ok {
		errs = append(errs, fmt.Sprintf("unknown field %q (filterable fields: %s)", rule.Field, strings.Join(FieldNames(), ", ")))
	}
	if !knownOperators[rule.Operator] {
		errs = append(errs, fmt.Sprintf("unknown operator %q", rule.Operator))
	}
	if len(errs) > 0 {
		return Condition{}, errs
	}

	cond := Condition{Field: field, Operator: rule.Operator}
	var err error
	switch rule.Operator {
	case OpGreaterThan, OpGreaterThanEqual, OpLessThan, OpLessThanEqual:
		if field.Kind != KindNumeric && field.Kind != KindTime {
			return cond, []string{fmt.Sprintf("operator %s is not supported for %s field %s", rule.Operator, field.Kind, field.Name)}
		}
		cond.Value, err = scalarFor(field, rule.Value)

	case OpEqual, OpNotEqual:
		cond.Value, err = scalarFor(field, rule.Value)

	case OpIn, OpNotIn:
		if field.Kind != KindNumeric && field.Kind != KindText {
			return cond, []string{fmt.Sprintf("operator %s is not supported for %s field %s", rule.Operator, field.Kind, field.Name)}
		}
		cond.Value, err = listFor(field, rule.Value)

	case OpExists:
		var flag bool
		flag, err = parseBool(rule.Value)
		cond.Value = FlagValue(flag)

	case OpContains:
		if field.Kind != KindText {
			return cond, []string{fmt.Sprintf("operator contains requires a text field, %s is %s", field.Name, field.Kind)}
		}
		var text string
		text, err = parseText(rule.Value)
		if err == nil && text == "" {
			err = fmt.Errorf("contains requires a non-empty value")
		}
		cond.Value = TextValue(text)

	case OpDaysAgo:
		if field.Kind != KindTime {
			return cond, []string{fmt.Sprintf("operator days_ago requires a date field, %s is %s", field.Name, field.Kind)}
		}
		var days float64
		days, err = parseNumber(rule.Value)
		switch {
		case err != nil:
		case days < 0:
			err = fmt.Errorf("days_ago requires a non-negative number of days")
		case days > MaxDaysAgo:
			err = fmt.Errorf("days_ago cannot exceed %d days", MaxDaysAgo)
		default:
			cond.Value = TimeValue(now.Add(-time.Duration(days * float64(24*time.Hour))))
		}
	}

	if err != nil {
		return cond, []string{fmt.Sprintf("field %s: %v", field.Name, err)}
	}
	return cond, nil
}

func scalarFor(field Field, raw interface{}) (Value, error) {
	switch field.Kind {
	case KindNumeric:
		n, err := parseNumber(raw)
		return NumberValue(n), err
	case KindText:
		s, err := parseText(raw)
		return TextValue(s), err
	case KindTime:
		t, err := parseTime(raw)
		return TimeValue(t), err
	case KindBool:
		b, err := parseBool(raw)
		return FlagValue(b), err
	}
	return Value{}, fmt.Errorf("unsupported field kind")
}

func listFor(field Field, raw interface{}) (Value, error) {
	var items []interface{}
	switch v := raw.(type) {
	case []interface{}:
		items = v
	case []string:
		for _, s := range v {
			items = append(items, s)
		}
	case string:
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				items = append(items, part)
			}
		}
	case float64, int, int64:
		items = []interface{}{v}
	default:
		return Value{}, fmt.Errorf("expected a list or comma-separated values, got %T", raw)
	}
	if len(items) == 0 {
		return Value{}, fmt.Errorf("list must contain at least one value")
	}

	list := make([]Value, 0, len(items))
	for _, item := range items {
		v, err := scalarFor(field, item)
		if err != nil {
			return Value{}, err
		}
		list = append(list, v)
	}
	return ListValue(list...), nil
}

func parseNumber(raw interface{}) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, checkFinite(v)
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", v)
		}
		return n, checkFinite(n)
	}
	return 0, fmt.Errorf("expected a number, got %T", raw)
}

func checkFinite(n float64) error {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return fmt.Errorf("number must be finite")
	}
	return nil
}

func parseText(raw interface{}) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(v), nil
	}
	return "", fmt.Errorf("expected text, got %T", raw)
}

func parseTime(raw interface{}) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("%q is not a valid date", v)
	}
	return time.Time{}, fmt.Errorf("expected a date, got %T", raw)
}

func parseBool(raw interface{}) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, fmt.Errorf("%q is not a boolean", v)
		}
		return b, nil
	case float64:
		if v == 0 || v == 1 {
			return v == 1, nil
		}
	}
	return false, fmt.Errorf("expected a boolean, got %v", raw)
}
