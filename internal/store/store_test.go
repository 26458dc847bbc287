package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mark3labs/postai/internal/spec"
)

const sampleDoc = `{
  "swagger": "2.0",
  "info": {"title": "Pets <beta>", "version": "1.0"},
  "host": "petstore.swagger.io",
  "basePath": "/v2",
  "paths": {
    "/pet/{petId}": {
      "get": {
        "summary": "Find pet by ID",
        "parameters": [{"name": "petId", "in": "path", "required": true, "type": "integer"}],
        "responses": {"200": {"description": "ok", "schema": {"type": "object"}}}
      }
    },
    "/pet": {
      "post": {"parameters": [{"in": "body", "name": "body", "schema": {"type": "object"}}], "responses": {}}
    }
  }
}`

func parsed(t *testing.T) *spec.Document {
	t.Helper()
	doc, err := spec.Parse([]byte(sampleDoc), "https://petstore.swagger.io/v2/swagger.json")
	require.NoError(t, err)
	return doc
}

func backends(t *testing.T) map[string]Store {
	t.Helper()
	fileStore := NewFileStore(filepath.Join(t.TempDir(), "swagger"), nil)
	sqliteStore, err := NewSQLiteStore(filepath.Join(t.TempDir(), "db", "postai.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteStore.Close() })
	return map[string]Store{"file": fileStore, "sqlite": sqliteStore}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()
	for name, s := range backends(t) {
		s := s
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			doc := parsed(t)
			require.NoError(t, s.Save(ctx, "My Pets", doc))

			got, err := s.Load(ctx, "my pets")
			require.NoError(t, err)
			require.Equal(t, doc, got)

			names, err := s.List(ctx)
			require.NoError(t, err)
			require.Equal(t, []string{"my_pets"}, names)
		})
	}
}

func TestLoadAndDeleteMissing(t *testing.T) {
	t.Parallel()
	for name, s := range backends(t) {
		s := s
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.Load(ctx, "missingname")
			var nf *NotFoundError
			require.True(t, errors.As(err, &nf), "got %v", err)
			require.Equal(t, "missingname", nf.Name)

			err = s.Delete(ctx, "missingname")
			require.True(t, errors.As(err, &nf), "got %v", err)
		})
	}
}

func TestDeleteAll(t *testing.T) {
	t.Parallel()
	for name, s := range backends(t) {
		s := s
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			n, err := s.DeleteAll(ctx)
			require.NoError(t, err)
			require.Zero(t, n)

			doc := parsed(t)
			require.NoError(t, s.Save(ctx, "a", doc))
			require.NoError(t, s.Save(ctx, "b", doc))
			require.NoError(t, s.Save(ctx, "b", doc))

			n, err = s.DeleteAll(ctx)
			require.NoError(t, err)
			require.Equal(t, 2, n)

			names, err := s.List(ctx)
			require.NoError(t, err)
			require.Empty(t, names)
		})
	}
}

func TestFileStoreCreatesDirectoryOnFirstSave(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "nested", "swagger")
	s := NewFileStore(dir, nil)

	names, err := s.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, names)
	_, err = os.Stat(dir)
	require.True(t, os.IsNotExist(err))

	require.NoError(t, s.Save(context.Background(), "x", parsed(t)))
	_, err = os.Stat(filepath.Join(dir, "x.json"))
	require.NoError(t, err)
}

func TestSanitize(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"PetStore":       "petstore",
		"pet store v2":   "pet_store_v2",
		"../etc/passwd":  "___etc_passwd",
		"한글-이름_ok":       "한글-이름_ok",
		"api.example.com": "api_example_com",
	}
	for in, want := range cases {
		require.Equal(t, want, Sanitize(in), in)
	}
}

func TestOpen(t *testing.T) {
	t.Parallel()
	s, err := Open("", t.TempDir(), nil)
	require.NoError(t, err)
	require.IsType(t, &FileStore{}, s)

	_, err = Open("redis", "", nil)
	require.Error(t, err)
}
