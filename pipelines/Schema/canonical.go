package schema

// FieldKind classifies the expected type of a canonical field
type FieldKind string

const (
	KindIdentifier FieldKind = "identifier"
	KindNumeric    FieldKind = "numeric"
	KindTemporal   FieldKind = "temporal"
)

// Canonical field names understood by the pipeline
const (
	FieldUserID         = "user_id"
	FieldLastActiveDays = "last_active_days"
	FieldLastActiveDate = "last_active_date"
	FieldTotalSessions  = "total_sessions"
	FieldOrders         = "orders"
	FieldCartValue      = "cart_value"
	FieldRevenue        = "revenue"
	FieldProductViews   = "product_views"
	FieldCartItems      = "cart_items"
)

// Field describes one canonical field and the ordered alias list used to
// locate it in an uploaded table. The canonical name is always the first
// alias so an already-canonical table maps to itself.
type Field struct {
	Name    string    `json:"name"`
	Kind    FieldKind `json:"kind"`
	Aliases []string  `json:"aliases"`
}

// DefaultFields returns the canonical field vocabulary with its built-in
// alias dictionary. Alias order matters: earlier aliases are tried first.
func DefaultFields() []Field {
	return []Field{
		{
			Name: FieldUserID,
			Kind: KindIdentifier,
			Aliases: []string{
				"user_id", "userid", "customer_id", "customerid", "user id",
				"uid", "client_id", "member_id",
			},
		},
		{
			Name: FieldLastActiveDays,
			Kind: KindNumeric,
			Aliases: []string{
				"last_active_days", "last_seen_days", "days_since_active",
				"days_since_last_active", "inactive_days", "recency_days",
				"days_inactive", "last_active",
			},
		},
		{
			Name: FieldLastActiveDate,
			Kind: KindTemporal,
			Aliases: []string{
				"last_active_date", "last_activity_date", "last_purchase_date",
				"last_seen", "last_order_date", "last_login_date",
			},
		},
		{
			Name: FieldTotalSessions,
			Kind: KindNumeric,
			Aliases: []string{
				"total_sessions", "sessions", "session_count", "num_sessions",
				"visits", "visit_count", "sessions_last_7_days",
			},
		},
		{
			Name: FieldOrders,
			Kind: KindNumeric,
			Aliases: []string{
				"orders", "purchases", "order_count", "num_orders",
				"total_orders", "transactions", "purchase_count",
			},
		},
		{
			Name: FieldCartValue,
			Kind: KindNumeric,
			Aliases: []string{
				"cart_value", "basket_value", "cart_total", "avg_cart_value",
				"average_cart_value",
			},
		},
		{
			Name: FieldRevenue,
			Kind: KindNumeric,
			Aliases: []string{
				"revenue", "total_revenue", "total_spend", "monetary",
				"amount_spent", "spend", "sales", "lifetime_value",
			},
		},
		{
			Name: FieldProductViews,
			Kind: KindNumeric,
			Aliases: []string{
				"product_views", "views", "page_views", "items_viewed",
				"view_count",
			},
		},
		{
			Name: FieldCartItems,
			Kind: KindNumeric,
			Aliases: []string{
				"cart_items", "items_in_cart", "basket_items", "cart_size",
				"abandoned_items",
			},
		},
	}
}

// WithAliasOverrides replaces the alias lists of matching fields. Fields not
// named in overrides keep their defaults; override lists that omit the
// canonical name get it prepended so idempotence is preserved.
func WithAliasOverrides(fields []Field, overrides map[string][]string) []Field {
	if len(overrides) == 0 {
		return fields
	}

	result := make([]Field, len(fields))
	copy(result, fields)
	for i := range result {
		aliases, ok := overrides[result[i].Name]
		if !ok {
			continue
		}
		hasCanonical := false
		for _, a := range aliases {
			if a == result[i].Name {
				hasCanonical = true
				break
			}
		}
		if !hasCanonical {
			aliases = append([]string{result[i].Name}, aliases...)
		}
		result[i].Aliases = aliases
	}
	return result
}

// FieldByName looks up a canonical field descriptor
func FieldByName(fields []Field, name string) (Field, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}
