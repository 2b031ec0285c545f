package segmentation

import "sort"

// FieldKind is the value domain of an audience field
type FieldKind int

const (
	KindNumeric FieldKind = iota + 1
	KindText
	KindTime
	KindBool
)

func (k FieldKind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindText:
		return "text"
	case KindTime:
		return "date"
	case KindBool:
		return "boolean"
	default:
		return "unknown"
	}
}

// Field is one entry of the audience field whitelist.
// Column names the column in the audience CTE built by QueryBuilder.
type Field struct {
	Name     string
	Column   string
	Kind     FieldKind
	Derived  bool
	Nullable bool
}

var fields = map[string]Field{
	// Stored on the customer row
	"name":       {Name: "name", Column: "name", Kind: KindText},
	"email":      {Name: "email", Column: "email", Kind: KindText},
	"phone":      {Name: "phone", Column: "phone", Kind: KindText},
	"visitCount": {Name: "visitCount", Column: "visit_count", Kind: KindNumeric},
	"lastVisit":  {Name: "lastVisit", Column: "last_visit", Kind: KindTime, Nullable: true},
	"isActive":   {Name: "isActive", Column: "is_active", Kind: KindBool},
	"segment":    {Name: "segment", Column: "segment", Kind: KindText},
	"createdAt":  {Name: "createdAt", Column: "created_at", Kind: KindTime},

	// Aggregated from orders
	"totalSpent":         {Name: "totalSpent", Column: "total_spent", Kind: KindNumeric, Derived: true},
	"orderCount":         {Name: "orderCount", Column: "order_count", Kind: KindNumeric, Derived: true},
	"avgOrderValue":      {Name: "avgOrderValue", Column: "avg_order_value", Kind: KindNumeric, Derived: true, Nullable: true},
	"lastOrderDate":      {Name: "lastOrderDate", Column: "last_order_date", Kind: KindTime, Derived: true, Nullable: true},
	"daysSinceLastOrder": {Name: "daysSinceLastOrder", Column: "days_since_last_order", Kind: KindNumeric, Derived: true, Nullable: true},
}

// LookupField returns the whitelisted field with the given wire name.
func LookupField(name string) (Field, bool) {
	f, ok := fields[name]
	return f, ok
}

// FieldNames lists the filterable wire names in order.
func FieldNames() []string {
	out := make([]string, 0, len(fields))
	for name := range fields {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
