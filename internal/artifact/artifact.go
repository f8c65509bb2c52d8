package artifact

import (
	"context"
	"errors"
	"fmt"

	"modelforge/internal/codegen"
)

// ErrExists is returned when a create-only write hits an existing destination.
var ErrExists = errors.New("artifact already exists")

// Store is a destination for generated files. WriteText never overwrites.
type Store interface {
	Exists(ctx context.Context, path string) (bool, error)
	WriteText(ctx context.Context, path, content string) error
	ReadText(ctx context.Context, path string) (string, bool, error)
	// List returns the base names of files directly under dir.
	List(ctx context.Context, dir string) ([]string, error)
}

// Stager is implemented by stores that can write in two phases.
type Stager interface {
	Stage(ctx context.Context, path, content string) (Staged, error)
}

// Staged is a written-but-unpublished artifact.
type Staged interface {
	Commit() error
	Discard() error
}

// AnyExists returns the first of paths that already exists, or "".
func AnyExists(ctx context.Context, s Store, paths ...string) (string, error) {
	for _, p := range paths {
		ok, err := s.Exists(ctx, p)
		if err != nil {
			return "", fmt.Errorf("check %s: %w", p, err)
		}
		if ok {
			return p, nil
		}
	}
	return "", nil
}

// WriteAll writes artifacts in order and stops at the first failure; earlier writes stay in place.
// With twoPhase and a Stager store, everything is staged first and published only when all
// staging succeeded; if publishing fails midway the already published files of the batch are removed.
func WriteAll(ctx context.Context, s Store, arts []codegen.Artifact, twoPhase bool) error {
	if st, ok := s.(Stager); ok && twoPhase {
		return writeStaged(ctx, st, arts)
	}
	for _, a := range arts {
		if err := s.WriteText(ctx, a.Path, a.Content); err != nil {
			return fmt.Errorf("write %s %s: %w", a.Kind, a.Path, err)
		}
	}
	return nil
}

func writeStaged(ctx context.Context, st Stager, arts []codegen.Artifact) error {
	staged := make([]Staged, 0, len(arts))
	discardAll := func(from int) {
		for _, s := range staged[from:] {
			_ = s.Discard()
		}
	}
	for _, a := range arts {
		s, err := st.Stage(ctx, a.Path, a.Content)
		if err != nil {
			discardAll(0)
			return fmt.Errorf("stage %s %s: %w", a.Kind, a.Path, err)
		}
		staged = append(staged, s)
	}
	for i, s := range staged {
		if err := s.Commit(); err != nil {
			for _, done := range staged[:i] {
				_ = done.Discard()
			}
			discardAll(i)
			return fmt.Errorf("publish %s %s: %w", arts[i].Kind, arts[i].Path, err)
		}
	}
	return nil
}
