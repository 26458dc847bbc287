// Package search finds endpoints in a parsed document by substring match,
// falling back to the completion model when nothing matches literally.
package search

import (
	"strings"

	"github.com/mark3labs/postai/internal/spec"
)

// Field names a part of an endpoint that a query is matched against.
type Field string

const (
	FieldPath        Field = "path"
	FieldMethod      Field = "method"
	FieldOperationID Field = "operationId"
	FieldDescription Field = "description"
	FieldTags        Field = "tags"
	FieldAll         Field = "all"
)

// AllFields is the default scope.
var AllFields = []Field{FieldAll}

// ParseFields maps names to fields case-insensitively, dropping unknown
// ones. An empty result means AllFields.
func ParseFields(names []string) []Field {
	var out []Field
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case "path":
			out = append(out, FieldPath)
		case "method":
			out = append(out, FieldMethod)
		case "operationid", "operation_id", "id":
			out = append(out, FieldOperationID)
		case "description", "summary":
			out = append(out, FieldDescription)
		case "tags", "tag":
			out = append(out, FieldTags)
		case "all":
			out = append(out, FieldAll)
		}
	}
	if len(out) == 0 {
		return AllFields
	}
	return out
}

type fieldSet map[Field]bool

func newFieldSet(fields []Field) fieldSet {
	if len(fields) == 0 {
		fields = AllFields
	}
	set := make(fieldSet, len(fields))
	for _, f := range fields {
		if f == FieldAll {
			return fieldSet{FieldPath: true, FieldMethod: true, FieldOperationID: true, FieldDescription: true, FieldTags: true}
		}
		set[f] = true
	}
	return set
}

// includesDescription reports whether the semantic fallback may run.
func includesDescription(fields []Field) bool {
	return newFieldSet(fields)[FieldDescription]
}

func contains(haystack, lowerQuery string) bool {
	return strings.Contains(strings.ToLower(haystack), lowerQuery)
}

// text hides the absent-description sentinel from matching.
func text(s string) string {
	if s == spec.NoDescription {
		return ""
	}
	return s
}

// Match returns, in document order, every endpoint where any requested
// field contains query, ignoring case.
func Match(doc *spec.Document, query string, fields []Field) []spec.Endpoint {
	q := strings.ToLower(strings.TrimSpace(query))
	if doc == nil || q == "" {
		return nil
	}
	set := newFieldSet(fields)
	return filter(doc, func(ep spec.Endpoint) bool {
		switch {
		case set[FieldPath] && contains(ep.Path, q):
			return true
		case set[FieldMethod] && contains(string(ep.Method), q):
			return true
		case set[FieldOperationID] && contains(ep.OperationID, q):
			return true
		case set[FieldDescription] && (contains(text(ep.Summary), q) || contains(text(ep.Description), q)):
			return true
		}
		if set[FieldTags] {
			for _, tag := range ep.Tags {
				if contains(tag, q) {
					return true
				}
			}
		}
		return false
	})
}

// MatchRequest searches the request side: path, parameter names and
// descriptions, and the request body schema text.
func MatchRequest(doc *spec.Document, query string) []spec.Endpoint {
	q := strings.ToLower(strings.TrimSpace(query))
	if doc == nil || q == "" {
		return nil
	}
	return filter(doc, func(ep spec.Endpoint) bool {
		if contains(ep.Path, q) {
			return true
		}
		for _, p := range ep.Parameters {
			if contains(p.Name, q) || contains(p.Description, q) {
				return true
			}
		}
		return contains(ep.RequestBody.String(), q)
	})
}

// MatchResponse searches response descriptions and content schemas.
func MatchResponse(doc *spec.Document, query string) []spec.Endpoint {
	q := strings.ToLower(strings.TrimSpace(query))
	if doc == nil || q == "" {
		return nil
	}
	return filter(doc, func(ep spec.Endpoint) bool {
		for _, r := range ep.Responses {
			if contains(r.Description, q) || contains(r.Content.String(), q) {
				return true
			}
		}
		return false
	})
}

// Verify drops results whose (path, method) is not an endpoint of doc.
func Verify(doc *spec.Document, results []spec.Endpoint) []spec.Endpoint {
	if doc == nil {
		return nil
	}
	known := make(map[string]struct{}, len(doc.Endpoints))
	for _, ep := range doc.Endpoints {
		known[ep.Key()] = struct{}{}
	}
	var out []spec.Endpoint
	for _, r := range results {
		if _, ok := known[r.Key()]; ok {
			out = append(out, r)
		}
	}
	return out
}

func filter(doc *spec.Document, keep func(spec.Endpoint) bool) []spec.Endpoint {
	var out []spec.Endpoint
	for _, ep := range doc.Endpoints {
		if keep(ep) {
			out = append(out, ep)
		}
	}
	return out
}
