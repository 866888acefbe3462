package fields

import (
	"tabula/internal/db"
	"tabula/internal/meta"
)

// Schema is the physical-column descriptor of a field. On reads, every value
// comes from the schema inspector; on writes, nil pointers mean "leave as is".
type Schema struct {
	DefaultValue any     `json:"default_value,omitempty"`
	MaxLength    *int    `json:"max_length,omitempty"`
	IsNullable   *bool   `json:"is_nullable,omitempty"`
	Comment      string  `json:"comment,omitempty"`
	NativeType   string  `json:"native_type,omitempty"`
	DefaultExpr  *string `json:"-"` // raw engine default, reads only
}

// Field is the merged view: physical facts from the inspector layered with
// the metadata row. The two layers own disjoint attributes.
type Field struct {
	Collection string         `json:"collection"`
	Field      string         `json:"field"`
	Type       string         `json:"type,omitempty"`
	Schema     *Schema        `json:"schema,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// merge builds the caller-visible Field from a column (may be nil for
// metadata-only fields and half-written ghosts) and a metadata row (may be
// nil for columns that lost their metadata). At least one must be present.
func merge(collection, name string, col *db.Column, row *meta.FieldRow) Field {
	f := Field{Collection: collection, Field: name}

	if col != nil {
		f.Type = col.Type
		nullable := col.IsNullable
		f.Schema = &Schema{
			IsNullable: &nullable,
			MaxLength:  col.MaxLength,
			Comment:    col.Comment,
			NativeType: col.NativeType,
		}
		if col.Default != nil {
			f.Schema.DefaultValue = *col.Default
			f.Schema.DefaultExpr = col.Default
		}
	}
	if row != nil {
		f.Meta = row.Meta
		if col == nil {
			f.Type = row.Type
		}
	}
	return f
}
