package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"modelforge/internal/artifact"
	"modelforge/internal/cmdqueue"
	"modelforge/internal/codegen"
	"modelforge/internal/dsl"
	"modelforge/internal/store"
)

var (
	ErrInvalid           = errors.New("invalid model description")
	ErrDuplicateArtifact = errors.New("artifact already exists")
)

// ValidationError carries the presence issues of a rejected draft.
type ValidationError struct {
	Issues []dsl.Issue
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, it := range e.Issues {
		msgs = append(msgs, it.Message)
	}
	return ErrInvalid.Error() + ": " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalid }

// DescriptionStore persists entity descriptions. *store.SQLStore implements it.
type DescriptionStore interface {
	FieldTypes(ctx context.Context) ([]dsl.FieldType, error)
	Catalog(ctx context.Context) (dsl.CatalogList, error)
	NameTaken(ctx context.Context, name, table, exceptID string) (bool, error)
	Create(ctx context.Context, e *dsl.Entity) error
	Get(ctx context.Context, id string) (*dsl.Entity, error)
	List(ctx context.Context) ([]*dsl.Entity, error)
	Update(ctx context.Context, e *dsl.Entity) error
	Delete(ctx context.Context, id string) error
}

// Options configures generation.
type Options struct {
	Layout        codegen.Layout
	Generator     codegen.Generator
	TwoPhaseWrite bool
	// PostCommands run in CommandDir after both artifacts were written.
	PostCommands []string
	CommandDir   string
	Runner       cmdqueue.Runner
	Now          func() time.Time
}

// Models runs the model-description workflows.
type Models struct {
	store     DescriptionStore
	artifacts artifact.Store
	log       *zap.Logger
	opts      Options
}

func New(st DescriptionStore, artifacts artifact.Store, log *zap.Logger, opts Options) *Models {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Models{store: st, artifacts: artifacts, log: log, opts: opts}
}

// Result is the outcome of a create or generate call.
type Result struct {
	Entity    *dsl.Entity        `json:"model"`
	Artifacts []codegen.Artifact `json:"artifacts"`
}

// Details is what Show returns.
type Details struct {
	Entity           *dsl.Entity     `json:"model"`
	FieldTypes       []dsl.FieldType `json:"fieldTypes"`
	ModelFileContent *string         `json:"modelFileContent"`
}

// FieldTypes returns the catalog.
func (m *Models) FieldTypes(ctx context.Context) ([]dsl.FieldType, error) {
	return m.store.FieldTypes(ctx)
}

// Create stores the description and writes both artifacts. Nothing is mutated when either
// destination already exists or the name/table is taken.
func (m *Models) Create(ctx context.Context, draft dsl.EntityDraft) (*Result, error) {
	if issues := draft.Check(); len(issues) > 0 {
		return nil, &ValidationError{Issues: issues}
	}
	e, err := m.resolve(ctx, draft)
	if err != nil {
		return nil, err
	}

	modelPath, migrationPath := m.opts.Layout.Paths(e, m.opts.Now())
	if err := m.ensureFree(ctx, modelPath, migrationPath); err != nil {
		return nil, err
	}
	taken, err := m.store.NameTaken(ctx, e.Name, e.Table, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, store.ErrDuplicateName
	}

	if err := m.store.Create(ctx, e); err != nil {
		return nil, err
	}
	m.log.Info("model description stored", zap.String("id", e.ID), zap.String("name", e.Name), zap.Int("fields", len(e.Fields)))

	arts, err := m.write(ctx, e, modelPath, migrationPath)
	if err != nil {
		return nil, err
	}
	return &Result{Entity: e, Artifacts: arts}, nil
}

// Generate renders and writes the artifacts of a stored description again, under a fresh
// migration timestamp. A renamed entity yields new files; old ones are left alone.
func (m *Models) Generate(ctx context.Context, id string) (*Result, error) {
	e, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	modelPath, migrationPath := m.opts.Layout.Paths(e, m.opts.Now())
	if err := m.ensureFree(ctx, modelPath, migrationPath); err != nil {
		return nil, err
	}
	arts, err := m.write(ctx, e, modelPath, migrationPath)
	if err != nil {
		return nil, err
	}
	return &Result{Entity: e, Artifacts: arts}, nil
}

// Preview renders both artifacts without writing anything.
func (m *Models) Preview(ctx context.Context, id string) ([]codegen.Artifact, error) {
	e, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	modelPath, migrationPath := m.opts.Layout.Paths(e, m.opts.Now())
	return m.opts.Generator.Render(e, modelPath, migrationPath), nil
}

// Show returns the description, the catalog and the current model file, if any.
func (m *Models) Show(ctx context.Context, id string) (*Details, error) {
	e, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	types, err := m.store.FieldTypes(ctx)
	if err != nil {
		return nil, err
	}
	d := &Details{Entity: e, FieldTypes: types}
	text, ok, err := m.artifacts.ReadText(ctx, codegen.ModelPath(m.opts.Layout.ModelsDir, e.Name))
	if err != nil {
		return nil, err
	}
	if ok {
		d.ModelFileContent = &text
	}
	return d, nil
}

// List returns all stored descriptions.
func (m *Models) List(ctx context.Context) ([]*dsl.Entity, error) {
	return m.store.List(ctx)
}

// Update replaces the description, including its whole field set. Artifacts are not touched.
// Lookup maps a reference to a stored id. The reference is either the id itself or a model name,
// matched case-insensitively; a name shared by two descriptions never resolves.
func (m *Models) Lookup(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", store.ErrNotFound
	}
	all, err := m.store.List(ctx)
	if err != nil {
		return "", err
	}
	for _, e := range all {
		if e.ID == ref {
			return e.ID, nil
		}
	}
	var found string
	for _, e := range all {
		if strings.EqualFold(e.Name, ref) {
			if found != "" {
				return "", store.ErrNotFound
			}
			found = e.ID
		}
	}
	if found == "" {
		return "", store.ErrNotFound
	}
	return found, nil
}

func (m *Models) Update(ctx context.Context, id string, draft dsl.EntityDraft) (*dsl.Entity, error) {
	if issues := draft.Check(); len(issues) > 0 {
		return nil, &ValidationError{Issues: issues}
	}
	if _, err := m.store.Get(ctx, id); err != nil {
		return nil, err
	}
	e, err := m.resolve(ctx, draft)
	if err != nil {
		return nil, err
	}
	e.ID = id
	if err := m.store.Update(ctx, e); err != nil {
		return nil, err
	}
	m.log.Info("model description updated", zap.String("id", id), zap.String("name", e.Name))
	return m.store.Get(ctx, id)
}

// Delete removes the description and its fields. Generated files stay.
func (m *Models) Delete(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	m.log.Info("model description deleted", zap.String("id", id))
	return nil
}

var phpFileRe = regexp.MustCompile(`^(.*)\.php$`)

// Search matches query case-insensitively against the model files present in the models directory.
func (m *Models) Search(ctx context.Context, query string) ([]string, error) {
	files, err := m.artifacts.List(ctx, m.opts.Layout.ModelsDir)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	out := []string{}
	for _, f := range files {
		mm := phpFileRe.FindStringSubmatch(f)
		if mm == nil {
			continue
		}
		if strings.Contains(strings.ToLower(mm[1]), q) {
			out = append(out, mm[1])
		}
	}
	sort.Strings(out)
	return out, nil
}

// ImportResult reports one draft of an import batch.
type ImportResult struct {
	Name  string `json:"name"`
	ID    string `json:"id,omitempty"`
	Error string `json:"error,omitempty"`
}

// Import runs Create for each draft and keeps going past failures.
func (m *Models) Import(ctx context.Context, drafts []dsl.EntityDraft) []ImportResult {
	out := make([]ImportResult, 0, len(drafts))
	for _, d := range drafts {
		r := ImportResult{Name: d.Name}
		res, err := m.Create(ctx, d)
		if err != nil {
			r.Error = err.Error()
			m.log.Warn("import failed", zap.String("name", d.Name), zap.Error(err))
		} else {
			r.ID = res.Entity.ID
		}
		out = append(out, r)
	}
	return out
}

// ===== internals =====

func (m *Models) resolve(ctx context.Context, draft dsl.EntityDraft) (*dsl.Entity, error) {
	catalog, err := m.store.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	e, dropped := dsl.Resolve(draft, catalog)
	for _, f := range dropped {
		m.log.Debug("field dropped: unknown type", zap.String("model", e.Name), zap.String("field", f.Name), zap.String("type", f.Type))
	}
	return e, nil
}

func (m *Models) ensureFree(ctx context.Context, modelPath, migrationPath string) error {
	found, err := artifact.AnyExists(ctx, m.artifacts, modelPath, migrationPath)
	if err != nil {
		return err
	}
	if found != "" {
		return fmt.Errorf("%w: one of the following files already exists: %s, %s",
			ErrDuplicateArtifact, path.Base(modelPath), path.Base(migrationPath))
	}
	return nil
}

// write has no cross-artifact transaction unless TwoPhaseWrite is set: a failure on the
// migration leaves the model file in place.
func (m *Models) write(ctx context.Context, e *dsl.Entity, modelPath, migrationPath string) ([]codegen.Artifact, error) {
	arts := m.opts.Generator.Render(e, modelPath, migrationPath)
	if err := artifact.WriteAll(ctx, m.artifacts, arts, m.opts.TwoPhaseWrite); err != nil {
		if errors.Is(err, artifact.ErrExists) {
			return nil, fmt.Errorf("%w: %v", ErrDuplicateArtifact, err)
		}
		return nil, err
	}
	for _, a := range arts {
		m.log.Info("artifact written", zap.String("kind", a.Kind), zap.String("path", a.Path))
	}

	if len(m.opts.PostCommands) > 0 {
		q := &cmdqueue.Queue{Dir: m.opts.CommandDir, Runner: m.opts.Runner}
		for _, c := range m.opts.PostCommands {
			q.Add(c)
		}
		if err := q.ExecuteAll(ctx); err != nil {
			return arts, err
		}
	}
	return arts, nil
}
