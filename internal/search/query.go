package search

import (
	"strings"

	"github.com/mark3labs/postai/internal/spec"
)

// Scope selects which entry point answers a query.
type Scope int

const (
	ScopeEndpoint Scope = iota
	ScopeRequest
	ScopeResponse
)

// Query is a search turn reduced to its terms.
type Query struct {
	Scope  Scope
	Text   string
	Fields []Field
}

var koreanStems = []string{"검색", "찾아", "찾기"}

var fillerWords = map[string]bool{
	"api": true, "apis": true, "endpoint": true, "endpoints": true, "for": true, "the": true,
	"a": true, "an": true, "me": true, "please": true, "related": true, "to": true,
	"관련": true, "관련된": true, "메서드": true, "엔드포인트": true, "해줘": true, "줘": true,
	"complete": true, "full": true,
}

// IsSearchTurn reports whether turn asks for an endpoint search.
func IsSearchTurn(turn string) bool {
	for _, w := range strings.Fields(strings.ToLower(turn)) {
		if isCommandWord(strings.Trim(w, `"'.,?!`)) {
			return true
		}
	}
	for _, stem := range koreanStems {
		if strings.Contains(turn, stem) {
			return true
		}
	}
	return false
}

// ParseQuery strips command words and filler from turn. "search request x"
// and "search response x" select the request and response scopes. A lone
// method name searches methods and a leading slash searches paths.
func ParseQuery(turn string) Query {
	words := strings.Fields(strings.TrimSpace(turn))
	q := Query{Scope: ScopeEndpoint}
	if len(words) >= 2 && strings.EqualFold(words[0], "search") {
		switch strings.ToLower(words[1]) {
		case "request", "requests":
			q.Scope = ScopeRequest
			words = words[2:]
		case "response", "responses":
			q.Scope = ScopeResponse
			words = words[2:]
		}
	}

	var kept []string
	for _, w := range words {
		lw := strings.ToLower(strings.Trim(w, `"'.,?!`))
		if lw == "" || fillerWords[lw] || isCommandWord(lw) {
			continue
		}
		kept = append(kept, strings.Trim(w, `"'.,?!`))
	}
	q.Text = strings.Join(kept, " ")

	q.Fields = AllFields
	if q.Scope == ScopeEndpoint && len(kept) == 1 {
		if _, ok := spec.ParseMethod(kept[0]); ok {
			q.Fields = []Field{FieldMethod}
		} else if strings.HasPrefix(kept[0], "/") {
			q.Fields = []Field{FieldPath}
		}
	}
	return q
}

// isCommandWord matches English command words exactly and Korean ones by
// stem, since Korean attaches endings ("검색해줘").
func isCommandWord(w string) bool {
	switch w {
	case "search", "find":
		return true
	}
	for _, stem := range koreanStems {
		if strings.HasPrefix(w, stem) {
			return true
		}
	}
	return false
}
