package codegen

import (
	"time"

	"modelforge/internal/dsl"
)

// Artifact kinds.
const (
	KindModel     = "model"
	KindMigration = "migration"
)

// Artifact is one rendered source file.
type Artifact struct {
	Kind    string `json:"kind"`
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Layout holds the destination directories of generated files.
type Layout struct {
	ModelsDir     string
	MigrationsDir string
}

// Paths returns the model and migration destinations for e at time now.
func (l Layout) Paths(e *dsl.Entity, now time.Time) (modelPath, migrationPath string) {
	return ModelPath(l.ModelsDir, e.Name), MigrationPath(l.MigrationsDir, e.Table, now)
}

// Render produces both artifacts, model first.
func (g Generator) Render(e *dsl.Entity, modelPath, migrationPath string) []Artifact {
	return []Artifact{
		{Kind: KindModel, Path: modelPath, Content: g.GenerateModelSource(e)},
		{Kind: KindMigration, Path: migrationPath, Content: g.GenerateMigrationSource(e, migrationPath)},
	}
}
