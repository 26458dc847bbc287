// Package store persists parsed documents by name so they can be reloaded in
// later sessions.
package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/mark3labs/postai/internal/spec"
)

// Store is the persisted document collection.
type Store interface {
	Save(ctx context.Context, name string, doc *spec.Document) error
	// Load fails with *NotFoundError when name was never saved.
	Load(ctx context.Context, name string) (*spec.Document, error)
	List(ctx context.Context) ([]string, error)
	// Delete fails with *NotFoundError when name was never saved.
	Delete(ctx context.Context, name string) error
	DeleteAll(ctx context.Context) (int, error)
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Open returns the backend named kind rooted at location: a directory for
// the file backend, a database path or DSN for sqlite.
func Open(kind, location string, logger hclog.Logger) (Store, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", BackendFile:
		return NewFileStore(location, logger), nil
	case BackendSQLite:
		return NewSQLiteStore(location, logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", kind)
	}
}

// NotFoundError reports a name absent from the store.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no saved document named %q", e.Name)
}

var unsafeChars = regexp.MustCompile(`(?i)[^a-z0-9가-힣_-]`)

// Sanitize maps a user-chosen name to its storage key.
func Sanitize(name string) string {
	return strings.ToLower(unsafeChars.ReplaceAllString(strings.TrimSpace(name), "_"))
}
