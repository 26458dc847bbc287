package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	_ "modernc.org/sqlite"

	"github.com/mark3labs/postai/internal/spec"
)

// SQLiteStore keeps every document as a JSON row in one table.
type SQLiteStore struct {
	db     *sql.DB
	logger hclog.Logger
}

func NewSQLiteStore(dsn string, logger hclog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if dir := filepath.Dir(dsn); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// A single connection keeps :memory: databases shared across calls.
	db.SetMaxOpenConns(1)
	s := &SQLiteStore{db: db, logger: logger.Named("store")}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS documents (
			name TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			body TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init sqlite store: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, name string, doc *spec.Document) error {
	key := Sanitize(name)
	if key == "" {
		return errors.New("document name is empty")
	}
	if doc == nil {
		return errors.New("nothing to save")
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents(name,title,body,updated_at) VALUES(?,?,?,?)
		 ON CONFLICT(name) DO UPDATE SET title=excluded.title, body=excluded.body, updated_at=excluded.updated_at`,
		key, doc.Title, string(body), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save document %q: %w", name, err)
	}
	s.logger.Debug("saved document", "name", key, "endpoints", len(doc.Endpoints))
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, name string) (*spec.Document, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE name = ?`, Sanitize(name)).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Name: name}
	}
	if err != nil {
		return nil, fmt.Errorf("load document %q: %w", name, err)
	}
	var doc spec.Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("decode document %q: %w", name, err)
	}
	return &doc, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM documents ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (s *SQLiteStore) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE name = ?`, Sanitize(name))
	if err != nil {
		return fmt.Errorf("delete document %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &NotFoundError{Name: name}
	}
	return nil
}

func (s *SQLiteStore) DeleteAll(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents`)
	if err != nil {
		return 0, fmt.Errorf("delete documents: %w", err)
	}
	n, _ := res.RowsAffected()
	s.logger.Debug("deleted all documents", "count", n)
	return int(n), nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
