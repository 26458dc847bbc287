package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/mark3labs/postai/internal/spec"
)

const fileExt = ".json"

// FileStore keeps one indented JSON file per document.
type FileStore struct {
	dir    string
	logger hclog.Logger
}

// NewFileStore does not touch the filesystem; dir is created on first save.
func NewFileStore(dir string, logger hclog.Logger) *FileStore {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &FileStore{dir: dir, logger: logger.Named("store")}
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, Sanitize(name)+fileExt)
}

func (s *FileStore) Save(ctx context.Context, name string, doc *spec.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if Sanitize(name) == "" {
		return errors.New("document name is empty")
	}
	if doc == nil {
		return errors.New("nothing to save")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	target := s.path(name)
	tmp, err := os.CreateTemp(s.dir, ".postai-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("move document into place: %w", err)
	}
	s.logger.Debug("saved document", "name", Sanitize(name), "path", target, "endpoints", len(doc.Endpoints))
	return nil
}

func (s *FileStore) Load(ctx context.Context, name string) (*spec.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Name: name}
		}
		return nil, fmt.Errorf("read document %q: %w", name, err)
	}
	var doc spec.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document %q: %w", name, err)
	}
	return &doc, nil
}

func (s *FileStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list store directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), fileExt))
	}
	sort.Strings(names)
	return names, nil
}

func (s *FileStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.path(name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &NotFoundError{Name: name}
		}
		return fmt.Errorf("delete document %q: %w", name, err)
	}
	s.logger.Debug("deleted document", "name", Sanitize(name))
	return nil
}

func (s *FileStore) DeleteAll(ctx context.Context) (int, error) {
	names, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, name := range names {
		if err := os.Remove(filepath.Join(s.dir, name+fileExt)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return n, fmt.Errorf("delete document %q: %w", name, err)
		}
		n++
	}
	s.logger.Debug("deleted all documents", "count", n)
	return n, nil
}

func (s *FileStore) Close() error { return nil }
