package registry

import (
	"slices"
	"strings"
)

// FieldType is the declared type of a column. Only the coarse class
// matters to the engine: ES bucket keys are coerced by it.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeInt    FieldType = "int"
	TypeFloat  FieldType = "float"
	TypeBool   FieldType = "bool"
)

// NormalizeType maps common database and mapping type names onto the
// four classes. Unknown names are treated as strings.
func NormalizeType(name string) FieldType {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "int", "integer", "long", "short", "byte", "bigint", "smallint", "tinyint", "int64", "int32":
		return TypeInt
	case "float", "double", "real", "numeric", "decimal", "number", "half_float", "scaled_float", "float64":
		return TypeFloat
	case "bool", "boolean":
		return TypeBool
	default:
		return TypeString
	}
}

// Table lists the columns of one table with their declared types.
type Table struct {
	Fields map[string]FieldType
}

// Schema maps table names to their columns.
type Schema map[string]Table

// HasTable reports whether the table is declared.
func (s Schema) HasTable(table string) bool {
	_, ok := s[table]
	return ok
}

// HasColumn reports whether table declares col.
func (s Schema) HasColumn(table, col string) bool {
	t, ok := s[table]
	if !ok {
		return false
	}
	_, ok = t.Fields[col]
	return ok
}

// TypeOf returns the declared type of table.col, or TypeString.
func (s Schema) TypeOf(table, col string) FieldType {
	if t, ok := s[table]; ok {
		if ft, ok := t.Fields[col]; ok {
			return ft
		}
	}
	return TypeString
}

// Tables returns the declared table names in sorted order.
func (s Schema) Tables() []string {
	out := make([]string, 0, len(s))
	for name := range s {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Columns returns the declared columns of table in sorted order.
func (s Schema) Columns(table string) []string {
	t, ok := s[table]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(t.Fields))
	for name := range t.Fields {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}
