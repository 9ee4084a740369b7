package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
)

// DefaultThreshold is the partial-ratio score (0-100) a source column must
// reach before it is accepted as a match for a canonical field.
const DefaultThreshold = 80

// WarningKind classifies mapping warnings
type WarningKind string

const (
	// WarnAmbiguousField reports a canonical field with more than one
	// above-threshold source column; the first in table order was kept.
	WarnAmbiguousField WarningKind = "ambiguous_field"
	// WarnSharedColumn reports a source column consumed by more than one
	// canonical field.
	WarnSharedColumn WarningKind = "shared_column"
)

// Warning describes a mapping ambiguity. The offending names are carried so
// a caller can surface them for explicit resolution.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Field   string      `json:"field,omitempty"`
	Column  string      `json:"column,omitempty"`
	Details string      `json:"details"`
}

// Mapping is the resolved canonical field -> source column assignment for
// one upload. Fields with no confident match appear in Unmapped and are
// treated as absent downstream.
type Mapping struct {
	Fields   map[string]string `json:"fields"`
	Unmapped []string          `json:"unmapped"`
	Warnings []Warning         `json:"warnings,omitempty"`

	fieldDefs []Field
}

// InferMapping builds a Mapping from the uploaded column names.
//
// For each canonical field the source columns are scanned in table order. A
// column whose lower-cased name equals an alias exactly wins outright, so a
// table already in canonical form maps to itself. Otherwise the first column
// whose name scores at least threshold against a lower-cased alias wins:
// first match, not best match, so the result is deterministic given stable
// column ordering. Remaining columns are still checked so that additional
// above-threshold candidates can be reported as ambiguity warnings; the
// winning match is kept regardless.
func InferMapping(columns []string, fields []Field, threshold int) Mapping {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	mapping := Mapping{
		Fields:    make(map[string]string, len(fields)),
		fieldDefs: fields,
	}
	columnUses := make(map[string][]string)

	for _, field := range fields {
		matched := ""
		var extras []string

		for _, column := range columns {
			if exactAliasMatch(column, field) {
				matched = column
				break
			}
		}

		for _, column := range columns {
			if column == matched || !columnMatchesField(column, field, threshold) {
				continue
			}
			if matched == "" {
				matched = column
			} else {
				extras = append(extras, column)
			}
		}

		if matched == "" {
			mapping.Unmapped = append(mapping.Unmapped, field.Name)
			continue
		}

		mapping.Fields[field.Name] = matched
		columnUses[matched] = append(columnUses[matched], field.Name)

		if len(extras) > 0 {
			mapping.Warnings = append(mapping.Warnings, Warning{
				Kind:   WarnAmbiguousField,
				Field:  field.Name,
				Column: matched,
				Details: fmt.Sprintf("field %q also matches columns %s; kept %q (first in table order)",
					field.Name, strings.Join(quoteAll(extras), ", "), matched),
			})
		}
	}

	for column, usedBy := range columnUses {
		if len(usedBy) > 1 {
			sort.Strings(usedBy)
			mapping.Warnings = append(mapping.Warnings, Warning{
				Kind:   WarnSharedColumn,
				Column: column,
				Details: fmt.Sprintf("column %q is mapped to multiple fields: %s",
					column, strings.Join(usedBy, ", ")),
			})
		}
	}

	sort.Slice(mapping.Warnings, func(i, j int) bool {
		if mapping.Warnings[i].Kind != mapping.Warnings[j].Kind {
			return mapping.Warnings[i].Kind < mapping.Warnings[j].Kind
		}
		return mapping.Warnings[i].Details < mapping.Warnings[j].Details
	})

	return mapping
}

// exactAliasMatch reports whether the column name equals one of the field's
// aliases after lower-casing and trimming
func exactAliasMatch(column string, field Field) bool {
	lowered := strings.ToLower(strings.TrimSpace(column))
	for _, alias := range field.Aliases {
		if lowered == strings.ToLower(alias) {
			return true
		}
	}
	return false
}

// columnMatchesField checks a single column against a field's alias list.
// Aliases are tried in order; the first one at or above threshold accepts
// the column.
func columnMatchesField(column string, field Field, threshold int) bool {
	lowered := strings.ToLower(strings.TrimSpace(column))
	for _, alias := range field.Aliases {
		if fuzzy.PartialRatio(lowered, strings.ToLower(alias)) >= threshold {
			return true
		}
	}
	return false
}

// ApplyOverrides applies caller-supplied explicit assignments on top of the
// inferred mapping. Overrides win over inference. An override naming an
// unknown canonical field or a column absent from the table is an error
// carrying the offending name.
func (m *Mapping) ApplyOverrides(overrides map[string]string, columns []string) error {
	columnSet := make(map[string]bool, len(columns))
	for _, c := range columns {
		columnSet[c] = true
	}

	for field, column := range overrides {
		if _, ok := FieldByName(m.fieldDefs, field); !ok {
			return fmt.Errorf("override for unknown canonical field %q", field)
		}
		if !columnSet[column] {
			return fmt.Errorf("override for field %q names column %q which is not in the uploaded table", field, column)
		}

		m.Fields[field] = column
		for i, unmapped := range m.Unmapped {
			if unmapped == field {
				m.Unmapped = append(m.Unmapped[:i], m.Unmapped[i+1:]...)
				break
			}
		}
	}
	return nil
}

// Has reports whether the canonical field resolved to a source column
func (m *Mapping) Has(field string) bool {
	_, ok := m.Fields[field]
	return ok
}

// Source returns the source column a canonical field resolved to
func (m *Mapping) Source(field string) (string, bool) {
	col, ok := m.Fields[field]
	return col, ok
}

// Numeric reads the canonical field from a row and coerces it to float64.
// Returns false when the field is unmapped, the cell is empty, or the value
// cannot be interpreted as a number; callers decide whether that is neutral
// (rule scorer) or fatal (probability classifier).
func (m *Mapping) Numeric(row map[string]any, field string) (float64, bool) {
	column, ok := m.Fields[field]
	if !ok {
		return 0, false
	}
	value, ok := row[column]
	if !ok || value == nil {
		return 0, false
	}

	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// String reads the canonical field from a row as text
func (m *Mapping) String(row map[string]any, field string) (string, bool) {
	column, ok := m.Fields[field]
	if !ok {
		return "", false
	}
	value, ok := row[column]
	if !ok || value == nil {
		return "", false
	}
	return fmt.Sprintf("%v", value), true
}

func quoteAll(values []string) []string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return quoted
}
