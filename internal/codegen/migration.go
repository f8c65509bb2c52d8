package codegen

import (
	"fmt"
	"strings"

	"modelforge/internal/dsl"
)

// GenerateMigrationSource renders the create-table migration for e. The class name is derived
// from migrationPath, which must follow MigrationPath's naming.
func (g Generator) GenerateMigrationSource(e *dsl.Entity, migrationPath string) string {
	var sb strings.Builder

	sb.WriteString("<?php\n\n")
	sb.WriteString("use Illuminate\\Database\\Migrations\\Migration;\n")
	sb.WriteString("use Illuminate\\Database\\Schema\\Blueprint;\n")
	sb.WriteString("use Illuminate\\Support\\Facades\\Schema;\n\n")
	fmt.Fprintf(&sb, "class %s extends Migration\n{\n", MigrationClassName(migrationPath))
	sb.WriteString("    public function up()\n    {\n")
	fmt.Fprintf(&sb, "        Schema::create('%s', function (Blueprint $table) {\n", e.Table)
	sb.WriteString("            $table->id();\n")

	foreignKeys := make(map[string]struct{}, len(e.Relations))
	for _, r := range e.Relations {
		if r.ForeignKey != "" {
			foreignKeys[r.ForeignKey] = struct{}{}
		}
	}

	for _, f := range e.Fields {
		if f.Name == "id" {
			continue
		}
		sb.WriteString("            ")
		sb.WriteString(columnLine(f, foreignKeys))
		sb.WriteString(";\n")

		if f.Foreign && f.ForeignTable != "" && f.ForeignKey != "" {
			fmt.Fprintf(&sb, "            $table->foreign('%s')->references('%s')->on('%s');\n",
				f.Name, f.ForeignKey, f.ForeignTable)
		}
	}
	sb.WriteString("            $table->timestamps();\n")

	// legacy relation constraints; may repeat a per-field foreign() above
	for _, r := range e.Relations {
		if r.ForeignKey == "" || r.Name == "" {
			continue
		}
		fmt.Fprintf(&sb, "            $table->foreign('%s')->references('id')->on('%s');\n",
			r.ForeignKey, LegacyRelatedTable(r.Name))
	}

	sb.WriteString("        });\n    }\n\n")
	sb.WriteString("    public function down()\n    {\n")
	fmt.Fprintf(&sb, "        Schema::dropIfExists('%s');\n", e.Table)
	sb.WriteString("    }\n}\n")
	return sb.String()
}

// columnLine renders "$table->verb('name')" plus modifiers, without the trailing semicolon.
// Modifier order is fixed: nullable, unique, index, default, autoIncrement.
func columnLine(f dsl.Field, foreignKeys map[string]struct{}) string {
	verb := MapColumnType(f.Type.ColumnType)
	if _, ok := foreignKeys[f.Name]; ok {
		verb = ForeignIDVerb
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "$table->%s('%s')", verb, f.Name)
	if f.Nullable {
		sb.WriteString("->nullable()")
	}
	if f.Unique {
		sb.WriteString("->unique()")
	}
	if f.Index {
		sb.WriteString("->index()")
	}
	if hasDefault(f.Default) {
		fmt.Fprintf(&sb, "->default('%s')", *f.Default)
	}
	if f.AutoIncrement {
		sb.WriteString("->autoIncrement()")
	}
	return sb.String()
}

// hasDefault treats "" and "0" as no default, matching how stored defaults were always read.
func hasDefault(v *string) bool {
	return v != nil && *v != "" && *v != "0"
}
