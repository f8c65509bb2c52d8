package reference

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"modelforge/internal/dsl"
)

//go:embed field_types.yaml
var defaultCatalog []byte

// FieldTypeFile is the on-disk shape of a field-type catalog.
type FieldTypeFile struct {
	Name  string          `yaml:"name"`
	Items []dsl.FieldType `yaml:"items"`
}

// DefaultFieldTypes returns the built-in catalog.
func DefaultFieldTypes() ([]dsl.FieldType, error) {
	return ParseFieldTypes(defaultCatalog)
}

// LoadFieldTypes reads a catalog from path; an empty path means the built-in one.
func LoadFieldTypes(path string) ([]dsl.FieldType, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultFieldTypes()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	items, err := ParseFieldTypes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return items, nil
}

// ParseFieldTypes decodes a catalog. Labels and column types must be present and unique.
func ParseFieldTypes(data []byte) ([]dsl.FieldType, error) {
	var file FieldTypeFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	labels := make(map[string]struct{}, len(file.Items))
	tokens := make(map[string]struct{}, len(file.Items))
	for i, it := range file.Items {
		if it.Label == "" || it.ColumnType == "" {
			return nil, fmt.Errorf("item %d: label and column_type are required", i)
		}
		if _, dup := labels[it.Label]; dup {
			return nil, fmt.Errorf("duplicate label %q", it.Label)
		}
		if _, dup := tokens[it.ColumnType]; dup {
			return nil, fmt.Errorf("duplicate column_type %q", it.ColumnType)
		}
		labels[it.Label] = struct{}{}
		tokens[it.ColumnType] = struct{}{}
	}
	return file.Items, nil
}
