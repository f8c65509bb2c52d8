package codegen

import (
	"path"
	"regexp"
	"strings"
	"time"

	"modelforge/internal/dsl"
)

// MigrationTimeLayout is the timestamp prefix of migration file names (Y_m_d_His).
const MigrationTimeLayout = "2006_01_02_150405"

var (
	migrationNameRe = regexp.MustCompile(`^\d+_\d+_\d+_\d+_create_(.+)_table$`)
	accessorRe      = regexp.MustCompile(`(?i)^get(.+)Attribute$`)
)

// Studly turns "full_name" into "FullName". Only word starts change case.
func Studly(s string) string {
	return strings.ReplaceAll(dsl.UpperWords(strings.ReplaceAll(s, "_", " ")), " ", "")
}

// UpperFirst upper-cases the first ASCII letter.
func UpperFirst(s string) string {
	if s == "" {
		return s
	}
	if c := s[0]; c >= 'a' && c <= 'z' {
		return string(c-'a'+'A') + s[1:]
	}
	return s
}

// AppendAttribute is the name exposed in $appends: the get…Attribute wrapper is stripped, then lower-cased.
func AppendAttribute(name string) string {
	return strings.ToLower(accessorRe.ReplaceAllString(name, "$1"))
}

// ConcatAccessor is the accessor method generated for a concat append.
func ConcatAccessor(name string) string {
	return "get" + Studly(name) + "Attribute"
}

// LegacyRelatedTable is the table the legacy relation foreign key points at.
func LegacyRelatedTable(relation string) string {
	return strings.ToLower(relation) + "s"
}

// ModelPath is where the model class for name is written.
func ModelPath(modelsDir, name string) string {
	return path.Join(modelsDir, name+".php")
}

// MigrationPath is where the create-table migration for table is written.
// MigrationClassName inverts this naming.
func MigrationPath(migrationsDir, table string, now time.Time) string {
	return path.Join(migrationsDir, now.Format(MigrationTimeLayout)+"_create_"+table+"_table.php")
}

// MigrationClassName derives the migration class from its file name.
func MigrationClassName(migrationPath string) string {
	base := strings.TrimSuffix(path.Base(migrationPath), ".php")
	base = migrationNameRe.ReplaceAllString(base, "$1")
	return "Create" + Studly(base) + "Table"
}
