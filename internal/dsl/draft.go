package dsl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// EntityDraft is a submitted description before its field types are resolved.
type EntityDraft struct {
	Name      string       `json:"name"`
	Table     string       `json:"table"`
	Fields    []FieldDraft `json:"fields"`
	Relations []Relation   `json:"relations"`
	Appends   []Append     `json:"appends"`
	Casts     []Cast       `json:"casts"`
}

// FieldDraft carries the raw column-type token as submitted.
type FieldDraft struct {
	Name          string  `json:"name"`
	Type          string  `json:"type"`
	Label         string  `json:"label,omitempty"`
	Default       *string `json:"default,omitempty"`
	Nullable      bool    `json:"nullable,omitempty"`
	Unique        bool    `json:"unique,omitempty"`
	Index         bool    `json:"index,omitempty"`
	Primary       bool    `json:"primary,omitempty"`
	AutoIncrement bool    `json:"auto_increment,omitempty"`
	Foreign       bool    `json:"foreign,omitempty"`
	ForeignTable  string  `json:"foreign_table,omitempty"`
	ForeignKey    string  `json:"foreign_key,omitempty"`
}

// UnmarshalJSON accepts any scalar default. Numbers keep their literal text, booleans become "1" or "0".
func (f *FieldDraft) UnmarshalJSON(b []byte) error {
	type plain FieldDraft
	aux := struct {
		*plain
		Default json.RawMessage `json:"default"`
	}{plain: (*plain)(f)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	v, err := scalarText(aux.Default)
	if err != nil {
		return fmt.Errorf("field %q: %w", f.Name, err)
	}
	f.Default = v
	return nil
}

func scalarText(raw json.RawMessage) (*string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	var s string
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		s = x
	case json.Number:
		s = x.String()
	case bool:
		s = "0"
		if x {
			s = "1"
		}
	default:
		return nil, fmt.Errorf("default must be a scalar, got %s", raw)
	}
	return &s, nil
}

// Issue is a blocking problem found in a draft.
type Issue struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Check runs presence checks only.
func (d EntityDraft) Check() []Issue {
	var issues []Issue
	if strings.TrimSpace(d.Name) == "" {
		issues = append(issues, Issue{Field: "name", Code: "required", Message: "name is required"})
	}
	if strings.TrimSpace(d.Table) == "" {
		issues = append(issues, Issue{Field: "table", Code: "required", Message: "table is required"})
	}
	seen := make(map[string]struct{}, len(d.Fields))
	for i, f := range d.Fields {
		if f.Name == "" {
			continue
		}
		if _, dup := seen[f.Name]; dup {
			issues = append(issues, Issue{
				Field:   fmt.Sprintf("fields[%d].name", i),
				Code:    "duplicate",
				Message: fmt.Sprintf("field %q is declared more than once", f.Name),
			})
		}
		seen[f.Name] = struct{}{}
	}
	return issues
}

// Catalog resolves column-type tokens to catalog entries.
type Catalog interface {
	Lookup(token string) (FieldType, bool)
}

// CatalogList is an in-memory Catalog over a loaded list of entries.
type CatalogList []FieldType

// Lookup prefers an exact match and falls back to a case-insensitive one; first entry wins.
func (c CatalogList) Lookup(token string) (FieldType, bool) {
	for _, ft := range c {
		if ft.ColumnType == token {
			return ft, true
		}
	}
	for _, ft := range c {
		if strings.EqualFold(ft.ColumnType, token) {
			return ft, true
		}
	}
	return FieldType{}, false
}

// Resolve turns a draft into an entity. Fields whose type token has no catalog entry are
// dropped and reported in the second return value; that is not an error.
func Resolve(d EntityDraft, catalog Catalog) (*Entity, []FieldDraft) {
	e := &Entity{
		Name:  strings.TrimSpace(d.Name),
		Table: strings.TrimSpace(d.Table),
	}
	var dropped []FieldDraft
	for _, fd := range d.Fields {
		if fd.Name == "" {
			continue
		}
		ft, ok := catalog.Lookup(fd.Type)
		if !ok {
			dropped = append(dropped, fd)
			continue
		}
		label := fd.Label
		if label == "" {
			label = DefaultLabel(fd.Name)
		}
		e.Fields = append(e.Fields, Field{
			Name:          fd.Name,
			Label:         label,
			Type:          ft,
			Default:       fd.Default,
			Nullable:      fd.Nullable,
			Unique:        fd.Unique,
			Index:         fd.Index,
			Primary:       fd.Primary,
			AutoIncrement: fd.AutoIncrement,
			Foreign:       fd.Foreign,
			ForeignTable:  fd.ForeignTable,
			ForeignKey:    fd.ForeignKey,
		})
	}
	// a nameless relation still marks its foreign key column
	for _, r := range d.Relations {
		if r.ForeignKey != "" {
			e.Relations = append(e.Relations, r)
		}
	}
	for _, a := range d.Appends {
		if a.Name != "" {
			e.Appends = append(e.Appends, a)
		}
	}
	for _, c := range d.Casts {
		if c.Key != "" && c.Type != "" {
			e.Casts = append(e.Casts, c)
		}
	}
	return e, dropped
}

// DefaultLabel turns "first_name" into "First Name".
func DefaultLabel(name string) string {
	return UpperWords(strings.ReplaceAll(name, "_", " "))
}

// UpperWords upper-cases the first byte of every space-separated word and leaves the rest alone.
func UpperWords(s string) string {
	b := []byte(s)
	start := true
	for i, c := range b {
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			start = true
			continue
		}
		if start && c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
		start = false
	}
	return string(b)
}
