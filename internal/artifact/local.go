package artifact

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalStore writes under Root on the local filesystem. Paths are slash-separated and relative to Root
// unless absolute.
type LocalStore struct {
	Root string
}

func (s *LocalStore) full(p string) string {
	p = filepath.FromSlash(p)
	if filepath.IsAbs(p) || s.Root == "" {
		return p
	}
	return filepath.Join(s.Root, p)
}

func (s *LocalStore) ensureDir(p string) error {
	return os.MkdirAll(p, 0o755)
}

func (s *LocalStore) Exists(_ context.Context, p string) (bool, error) {
	_, err := os.Stat(s.full(p))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (s *LocalStore) WriteText(_ context.Context, p, content string) error {
	full := s.full(p)
	if err := s.ensureDir(filepath.Dir(full)); err != nil {
		return err
	}
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ErrExists
		}
		return err
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (s *LocalStore) ReadText(_ context.Context, p string) (string, bool, error) {
	b, err := os.ReadFile(s.full(p))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(b), true, nil
}

func (s *LocalStore) List(_ context.Context, dir string) ([]string, error) {
	entries, err := os.ReadDir(s.full(dir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// Stage writes content to a hidden temp file next to the destination.
func (s *LocalStore) Stage(_ context.Context, p, content string) (Staged, error) {
	full := s.full(p)
	dir := filepath.Dir(full)
	if err := s.ensureDir(dir); err != nil {
		return nil, err
	}
	tmp := filepath.Join(dir, "."+filepath.Base(full)+".tmp-"+randomHex(6))
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return nil, err
	}
	return &localStaged{tmp: tmp, dst: full}, nil
}

type localStaged struct {
	tmp, dst  string
	committed bool
}

// Commit links the temp file into place; a hard link never replaces an existing file.
func (l *localStaged) Commit() error {
	if err := os.Link(l.tmp, l.dst); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ErrExists
		}
		return err
	}
	l.committed = true
	return os.Remove(l.tmp)
}

// Discard removes the temp file and, after a commit, the published file.
func (l *localStaged) Discard() error {
	if l.committed {
		l.committed = false
		return os.Remove(l.dst)
	}
	err := os.Remove(l.tmp)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// randomHex returns 2*n hex characters.
func randomHex(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	return strings.ToLower(hex.EncodeToString(buf))
}
