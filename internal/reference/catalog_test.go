package reference

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelforge/internal/dsl"
)

func TestDefaultFieldTypes(t *testing.T) {
	items, err := DefaultFieldTypes()
	require.NoError(t, err)
	assert.Len(t, items, 44)
	assert.Equal(t, dsl.FieldType{Label: "String", ColumnType: "string"}, items[0])

	ft, ok := dsl.CatalogList(items).Lookup("unsignedBigInteger")
	require.True(t, ok)
	assert.Equal(t, "Unsigned Big Integer", ft.Label)

	_, ok = dsl.CatalogList(items).Lookup("vector")
	assert.False(t, ok)
}

func TestLoadFieldTypes(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "types.yaml")
	require.NoError(t, os.WriteFile(p, []byte("items:\n  - {label: Money, column_type: decimal}\n"), 0o644))

	items, err := LoadFieldTypes(p)
	require.NoError(t, err)
	assert.Equal(t, []dsl.FieldType{{Label: "Money", ColumnType: "decimal"}}, items)

	items, err = LoadFieldTypes("  ")
	require.NoError(t, err)
	assert.Len(t, items, 44)

	_, err = LoadFieldTypes(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestParseFieldTypes_Rejects(t *testing.T) {
	_, err := ParseFieldTypes([]byte("items:\n  - {label: A}\n"))
	assert.ErrorContains(t, err, "required")

	_, err = ParseFieldTypes([]byte("items:\n  - {label: A, column_type: x}\n  - {label: B, column_type: x}\n"))
	assert.ErrorContains(t, err, "duplicate column_type")

	_, err = ParseFieldTypes([]byte("items: [\n"))
	assert.Error(t, err)
}
