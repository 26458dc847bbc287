// Package registry holds the parsed documents of a session and tracks which
// one unqualified commands run against.
package registry

import (
	"sort"
	"strings"

	"github.com/mark3labs/postai/internal/spec"
)

// MaxRecentURLs bounds the recent source history.
const MaxRecentURLs = 10

// Registry is owned by a single pipeline and is not safe for concurrent
// mutation.
type Registry struct {
	documents       map[string]*spec.Document
	current         string
	recentURLs      []string
	baseURLOverride string
}

func New() *Registry {
	return &Registry{documents: make(map[string]*spec.Document)}
}

// Normalize folds a document name to its registry key.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Add inserts or replaces name. The current selection is left alone.
func (r *Registry) Add(name string, doc *spec.Document) {
	key := Normalize(name)
	if key == "" || doc == nil {
		return
	}
	r.documents[key] = doc
}

// SetCurrent makes doc current. With a name the document is also added; an
// empty name derives one from the document title.
func (r *Registry) SetCurrent(doc *spec.Document, name string) string {
	if doc == nil {
		return ""
	}
	key := Normalize(name)
	if key == "" {
		key = r.nameFor(doc)
	}
	r.Add(key, doc)
	r.current = key
	return key
}

// nameFor finds the key doc is already registered under, or derives one.
func (r *Registry) nameFor(doc *spec.Document) string {
	if r.current != "" && r.documents[r.current] == doc {
		return r.current
	}
	for _, k := range r.ListNames() {
		if r.documents[k] == doc {
			return k
		}
	}
	key := Normalize(doc.Title)
	if key == "" {
		key = "default"
	}
	return key
}

// SetCurrentByName reports false without side effects when name is absent.
func (r *Registry) SetCurrentByName(name string) bool {
	key := Normalize(name)
	if _, ok := r.documents[key]; !ok {
		return false
	}
	r.current = key
	return true
}

// Remove deletes name. When it was current, the lexicographically first
// remaining name becomes current.
func (r *Registry) Remove(name string) bool {
	key := Normalize(name)
	if _, ok := r.documents[key]; !ok {
		return false
	}
	delete(r.documents, key)
	if r.current == key {
		r.current = ""
		if names := r.ListNames(); len(names) > 0 {
			r.current = names[0]
		}
	}
	return true
}

// Clear drops every document and the current selection.
func (r *Registry) Clear() {
	r.documents = make(map[string]*spec.Document)
	r.current = ""
}

// ListNames returns the registered names sorted. Callers should not rely on
// any particular order.
func (r *Registry) ListNames() []string {
	names := make([]string, 0, len(r.documents))
	for k := range r.documents {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Get(name string) (*spec.Document, bool) {
	doc, ok := r.documents[Normalize(name)]
	return doc, ok
}

// Current returns the active document or nil.
func (r *Registry) Current() *spec.Document {
	if r.current == "" {
		return nil
	}
	return r.documents[r.current]
}

func (r *Registry) CurrentName() string { return r.current }

func (r *Registry) Len() int { return len(r.documents) }

// SetBaseURLOverride stores url as given; an empty string clears it.
func (r *Registry) SetBaseURLOverride(url string) {
	r.baseURLOverride = strings.TrimSpace(url)
}

func (r *Registry) BaseURLOverride() string { return r.baseURLOverride }

// RecordURL puts url at the front of the recent history. A URL already in
// the history moves to the front.
func (r *Registry) RecordURL(url string) {
	url = strings.TrimSpace(url)
	if url == "" {
		return
	}
	out := make([]string, 0, MaxRecentURLs)
	out = append(out, url)
	for _, u := range r.recentURLs {
		if u != url && len(out) < MaxRecentURLs {
			out = append(out, u)
		}
	}
	r.recentURLs = out
}

// RecentURLs returns a copy of the history, most recent first.
func (r *Registry) RecentURLs() []string {
	return append([]string(nil), r.recentURLs...)
}
