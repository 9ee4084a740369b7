package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestInferMapping_CanonicalIdentity tests that a table already using
// canonical column names maps every field onto itself
func TestInferMapping_CanonicalIdentity(t *testing.T) {
	fields := DefaultFields()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	mapping := InferMapping(columns, fields, 0)

	assert.Empty(t, mapping.Unmapped)
	for _, f := range fields {
		source, ok := mapping.Source(f.Name)
		require.True(t, ok, "field %s should be mapped", f.Name)
		assert.Equal(t, f.Name, source, "field %s should map to itself", f.Name)
	}
}

// TestInferMapping_AliasMatching tests resolution through the alias dictionary
func TestInferMapping_AliasMatching(t *testing.T) {
	columns := []string{"customer_id", "last_seen_days", "visits", "purchases", "total_spend"}
	mapping := InferMapping(columns, DefaultFields(), 0)

	expected := map[string]string{
		FieldUserID:         "customer_id",
		FieldLastActiveDays: "last_seen_days",
		FieldTotalSessions:  "visits",
		FieldOrders:         "purchases",
		FieldRevenue:        "total_spend",
	}
	for field, column := range expected {
		source, ok := mapping.Source(field)
		require.True(t, ok, "field %s should be mapped", field)
		assert.Equal(t, column, source)
	}
}

// TestInferMapping_UnmappedFields tests that unmatched fields are reported
// rather than guessed
func TestInferMapping_UnmappedFields(t *testing.T) {
	mapping := InferMapping([]string{"zzz_one", "qqq_two"}, DefaultFields(), 0)

	assert.Empty(t, mapping.Fields)
	assert.Len(t, mapping.Unmapped, len(DefaultFields()))
	assert.Contains(t, mapping.Unmapped, FieldUserID)
	assert.Contains(t, mapping.Unmapped, FieldOrders)
}

// TestInferMapping_AmbiguityWarning tests that a field matched by several
// columns keeps the first and surfaces the rest
func TestInferMapping_AmbiguityWarning(t *testing.T) {
	mapping := InferMapping([]string{"user_id", "customer_id"}, DefaultFields(), 0)

	source, ok := mapping.Source(FieldUserID)
	require.True(t, ok)
	assert.Equal(t, "user_id", source)

	found := false
	for _, w := range mapping.Warnings {
		if w.Kind == WarnAmbiguousField && w.Field == FieldUserID {
			found = true
			assert.Equal(t, "user_id", w.Column)
		}
	}
	assert.True(t, found, "expected an ambiguous_field warning for %s", FieldUserID)
}

// TestInferMapping_Deterministic tests that repeated inference over the same
// columns yields the same assignment
func TestInferMapping_Deterministic(t *testing.T) {
	columns := []string{"uid", "recency_days", "session_count", "num_orders"}
	first := InferMapping(columns, DefaultFields(), 0)
	for i := 0; i < 5; i++ {
		again := InferMapping(columns, DefaultFields(), 0)
		assert.Equal(t, first.Fields, again.Fields)
		assert.Equal(t, first.Unmapped, again.Unmapped)
	}
}

func TestApplyOverrides(t *testing.T) {
	columns := []string{"zzz_one", "orders"}
	mapping := InferMapping(columns, DefaultFields(), 0)
	assert.Contains(t, mapping.Unmapped, FieldUserID)

	err := mapping.ApplyOverrides(map[string]string{FieldUserID: "zzz_one"}, columns)
	require.NoError(t, err)

	source, ok := mapping.Source(FieldUserID)
	require.True(t, ok)
	assert.Equal(t, "zzz_one", source)
	assert.NotContains(t, mapping.Unmapped, FieldUserID)
}

func TestApplyOverrides_UnknownField(t *testing.T) {
	columns := []string{"orders"}
	mapping := InferMapping(columns, DefaultFields(), 0)

	err := mapping.ApplyOverrides(map[string]string{"not_a_field": "orders"}, columns)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not_a_field")
}

func TestApplyOverrides_UnknownColumn(t *testing.T) {
	columns := []string{"orders"}
	mapping := InferMapping(columns, DefaultFields(), 0)

	err := mapping.ApplyOverrides(map[string]string{FieldUserID: "missing_col"}, columns)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing_col")
}

// TestWithAliasOverrides tests custom alias dictionaries, including the
// canonical-name prepend that keeps identity mapping intact
func TestWithAliasOverrides(t *testing.T) {
	fields := WithAliasOverrides(DefaultFields(), map[string][]string{
		FieldUserID: {"shopper_ref"},
	})

	userField, ok := FieldByName(fields, FieldUserID)
	require.True(t, ok)
	assert.Equal(t, []string{FieldUserID, "shopper_ref"}, userField.Aliases)

	mapping := InferMapping([]string{"shopper_ref"}, fields, 0)
	source, ok := mapping.Source(FieldUserID)
	require.True(t, ok)
	assert.Equal(t, "shopper_ref", source)
}

func TestMapping_Numeric(t *testing.T) {
	mapping := InferMapping([]string{"orders"}, DefaultFields(), 0)

	cases := []struct {
		name  string
		value any
		want  float64
		ok    bool
	}{
		{"float", 7.0, 7.0, true},
		{"int", 3, 3.0, true},
		{"numeric string", " 12.5 ", 12.5, true},
		{"bool true", true, 1.0, true},
		{"garbage string", "n/a", 0, false},
		{"nil", nil, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := mapping.Numeric(map[string]any{"orders": tc.value}, FieldOrders)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}

	_, ok := mapping.Numeric(map[string]any{"orders": 1.0}, FieldUserID)
	assert.False(t, ok, "unmapped field should not resolve")
}
