package segmentation

import (
	"fmt"
	"strings"
	"time"
)

// audienceCTE exposes every whitelisted field as a column, one row per customer.
// The single placeholder is the reference time for days_since_last_order.
const audienceCTE = `WITH audience AS (
	SELECT c.id, c.name, c.email, c.phone, c.visit_count, c.last_visit,
		c.is_active, c.segment, c.created_at,
		COALESCE(SUM(o.order_value), 0) AS total_spent,
		COUNT(o.id) AS order_count,
		AVG(o.order_value) AS avg_order_value,
		MAX(o.order_date) AS last_order_date,
		EXTRACT(EPOCH FROM (CAST(? AS timestamptz) - MAX(o.order_date))) / 86400.0 AS days_since_last_order
	FROM customers c
	LEFT JOIN orders o ON o.customer_id = c.id
	GROUP BY c.id
)`

// QueryBuilder renders a Predicate as parameterised SQL over the audience CTE.
// Count and select queries share the same WHERE rendering.
type QueryBuilder struct {
	now  time.Time
	args []interface{}
}

// NewQueryBuilder creates a QueryBuilder anchored at now
func NewQueryBuilder(now time.Time) *QueryBuilder {
	return &QueryBuilder{now: now}
}

// BuildCountQuery returns a query yielding a single count column.
func (qb *QueryBuilder) BuildCountQuery(p *Predicate) (string, []interface{}) {
	qb.reset()
	where := qb.buildWhere(p)
	query := audienceCTE + "\nSELECT COUNT(*) FROM audience\nWHERE " + where
	return query, qb.args
}

// BuildSelectQuery returns a query yielding the audience members in creation order.
func (qb *QueryBuilder) BuildSelectQuery(p *Predicate) (string, []interface{}) {
	qb.reset()
	where := qb.buildWhere(p)
	query := audienceCTE +
		"\nSELECT id, name, email, phone, total_spent, order_count FROM audience\nWHERE " + where +
		"\nORDER BY created_at ASC, id ASC"
	return query, qb.args
}

func (qb *QueryBuilder) reset() {
	qb.args = []interface{}{qb.now}
}

func (qb *QueryBuilder) buildWhere(p *Predicate) string {
	if p == nil || len(p.Groups) == 0 {
		return "1=1"
	}
	groups := make([]string, 0, len(p.Groups))
	for _, g := range p.Groups {
		conds := make([]string, 0, len(g))
		for _, c := range g {
			conds = append(conds, qb.buildCondition(c))
		}
		groups = append(groups, "("+strings.Join(conds, " AND ")+")")
	}
	return strings.Join(groups, " OR ")
}

func (qb *QueryBuilder) buildCondition(c Condition) string {
	col := c.Field.Column
	switch c.Operator {
	case OpGreaterThan:
		return fmt.Sprintf("%s > %s", col, qb.arg(c.Value))
	case OpGreaterThanEqual:
		return fmt.Sprintf("%s >= %s", col, qb.arg(c.Value))
	case OpLessThan:
		return fmt.Sprintf("%s < %s", col, qb.arg(c.Value))
	case OpLessThanEqual, OpDaysAgo:
		return fmt.Sprintf("%s <= %s", col, qb.arg(c.Value))
	case OpEqual:
		return fmt.Sprintf("%s = %s", col, qb.arg(c.Value))
	case OpNotEqual:
		return fmt.Sprintf("%s <> %s", col, qb.arg(c.Value))
	case OpIn, OpNotIn:
		placeholders := make([]string, len(c.Value.List))
		for i, item := range c.Value.List {
			placeholders[i] = qb.arg(item)
		}
		keyword := "IN"
		if c.Operator == OpNotIn {
			keyword = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", col, keyword, strings.Join(placeholders, ", "))
	case OpExists:
		if c.Value.Flag {
			return col + " IS NOT NULL"
		}
		return col + " IS NULL"
	case OpContains:
		qb.args = append(qb.args, "%"+escapeLike(c.Value.Text)+"%")
		return col + ` ILIKE ? ESCAPE '\'`
	}
	return "1=0"
}

// arg appends v and returns a placeholder cast to the column type.
func (qb *QueryBuilder) arg(v Value) string {
	qb.args = append(qb.args, v.SQLArg())
	switch v.Kind {
	case ValueNumber:
		return "CAST(? AS double precision)"
	case ValueTime:
		return "CAST(? AS timestamptz)"
	case ValueFlag:
		return "CAST(? AS boolean)"
	default:
		return "?"
	}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
