package dsl

import (
	"encoding/json"
	"time"
)

// FieldType is one entry of the field-type catalog.
type FieldType struct {
	ID         string `json:"id" yaml:"-"`
	Label      string `json:"label" yaml:"label"`
	ColumnType string `json:"column_type" yaml:"column_type"`
}

// Entity describes one generatable model.
type Entity struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Table     string     `json:"table"`
	Fields    []Field    `json:"fields"`
	Relations []Relation `json:"relations"`
	Appends   []Append   `json:"appends"`
	Casts     []Cast     `json:"casts"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// MarshalJSON writes empty lists as [] rather than null.
func (e Entity) MarshalJSON() ([]byte, error) {
	type plain Entity
	p := plain(e)
	p.Fields = orEmpty(p.Fields)
	p.Relations = orEmpty(p.Relations)
	p.Appends = orEmpty(p.Appends)
	p.Casts = orEmpty(p.Casts)
	return json.Marshal(p)
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Field is one stored column of an entity, already joined to its catalog type.
type Field struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Label         string    `json:"label"`
	Type          FieldType `json:"field_type"`
	Default       *string   `json:"default"`
	Nullable      bool      `json:"nullable"`
	Unique        bool      `json:"unique"`
	Index         bool      `json:"index"`
	Primary       bool      `json:"primary"`
	AutoIncrement bool      `json:"auto_increment"`
	Foreign       bool      `json:"foreign"`
	ForeignTable  string    `json:"foreign_table,omitempty"`
	ForeignKey    string    `json:"foreign_key,omitempty"`
}

// Relation declares a belongs-to edge; the target type is Name with the first letter upper-cased.
type Relation struct {
	Name       string `json:"name" yaml:"name"`
	ForeignKey string `json:"foreignKey" yaml:"foreignKey"`
}

// Append kinds with generated accessors.
const (
	AppendMath   = "operacion_matematica"
	AppendConcat = "concatenar"
)

// Append is a computed attribute.
type Append struct {
	Name    string         `json:"name"`
	Type    string         `json:"type"`
	Fields  []string       `json:"fields,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

// Cast associates a field key with a cast token. Key need not name an existing field.
type Cast struct {
	Key  string `json:"key"`
	Type string `json:"type"`
}

// FieldNames returns field names in stored order.
func (e *Entity) FieldNames() []string {
	out := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		out = append(out, f.Name)
	}
	return out
}

// Formula returns the raw formula of a math append.
func (a Append) Formula() (string, bool) {
	if a.Options == nil {
		return "", false
	}
	s, ok := a.Options["formula"].(string)
	return s, ok
}

// SourceFields returns the fields joined by a concat append. The top-level list wins over options.fields.
func (a Append) SourceFields() []string {
	if len(a.Fields) > 0 {
		return a.Fields
	}
	if a.Options == nil {
		return nil
	}
	switch v := a.Options["fields"].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, it := range v {
			if s, ok := it.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Separator returns the concat separator, a single space when unset.
func (a Append) Separator() string {
	if a.Options != nil {
		if s, ok := a.Options["separator"].(string); ok {
			return s
		}
	}
	return " "
}
