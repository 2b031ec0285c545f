package segmentation

import (
	"fmt"
	"strings"
	"time"
)

// Operator is a rule comparison operator as sent on the wire.
type Operator string

const (
	OpGreaterThan      Operator = "gt"
	OpGreaterThanEqual Operator = "gte"
	OpLessThan         Operator = "lt"
	OpLessThanEqual    Operator = "lte"
	OpEqual            Operator = "eq"
	OpNotEqual         Operator = "ne"
	OpIn               Operator = "in"
	OpNotIn            Operator = "nin"
	OpExists           Operator = "exists"
	OpContains         Operator = "contains"
	OpDaysAgo          Operator = "days_ago"
)

var knownOperators = map[Operator]bool{
	OpGreaterThan: true, OpGreaterThanEqual: true, OpLessThan: true, OpLessThanEqual: true,
	OpEqual: true, OpNotEqual: true, OpIn: true, OpNotIn: true,
	OpExists: true, OpContains: true, OpDaysAgo: true,
}

// LogicalOperator joins a rule to the one after it.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "AND"
	LogicalOr  LogicalOperator = "OR"
)

// Rule is one audience rule as received from the client.
// Value is whatever JSON decoded into: string, float64, bool or []interface{}.
type Rule struct {
	Field           string          `json:"field" example:"totalSpent"`
	Operator        Operator        `json:"operator" example:"gt"`
	Value           interface{}     `json:"value" swaggertype:"string" example:"5000"`
	LogicalOperator LogicalOperator `json:"logicalOperator,omitempty" example:"AND"`
}

// ValueKind tags the variant held by a Value.
type ValueKind int

const (
	ValueNumber ValueKind = iota + 1
	ValueText
	ValueTime
	ValueList
	ValueFlag
)

// Value is a typed rule operand.
type Value struct {
	Kind   ValueKind
	Number float64
	Text   string
	Time   time.Time
	Flag   bool
	List   []Value
}

func NumberValue(n float64) Value { return Value{Kind: ValueNumber, Number: n} }
func TextValue(s string) Value { return Value{Kind: ValueText, Text: s} }
func TimeValue(t time.Time) Value { return Value{Kind: ValueTime, Time: t} }
func FlagValue(b bool) Value { return Value{Kind: ValueFlag, Flag: b} }
func ListValue(items ...Value) Value { return Value{Kind: ValueList, List: items} }

// SQLArg returns the driver argument for a scalar value.
func (v Value) SQLArg() interface{} {
	switch v.Kind {
	case ValueNumber:
		return v.Number
	case ValueText:
		return v.Text
	case ValueTime:
		return v.Time
	case ValueFlag:
		return v.Flag
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.Kind {
	case ValueNumber:
		return fmt.Sprintf("%g", v.Number)
	case ValueText:
		return fmt.Sprintf("%q", v.Text)
	case ValueTime:
		return v.Time.Format(time.RFC3339)
	case ValueFlag:
		return fmt.Sprintf("%t", v.Flag)
	case ValueList:
		parts := make([]string, len(v.List))
		for i, item := range v.List {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return "<nil>"
	}
}

// Condition is a single compiled field test.
type Condition struct {
	Field    Field
	Operator Operator
	Value    Value
}

func (c Condition) String() string {
	return fmt.Sprintf("%s %s %s", c.Field.Name, c.Operator, c.Value)
}

// Group is a conjunction of conditions.
type Group []Condition

// Predicate is a disjunction of groups. A single group is a plain conjunction.
type Predicate struct {
	Groups []Group
}

func (p *Predicate) String() string {
	groups := make([]string, len(p.Groups))
	for i, g := range p.Groups {
		conds := make([]string, len(g))
		for j, c := range g {
			conds[j] = c.String()
		}
		groups[i] = "(" + strings.Join(conds, " AND ") + ")"
	}
	return strings.Join(groups, " OR ")
}
