package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/postai/internal/search"
	"github.com/mark3labs/postai/internal/spec"
)

const (
	maxSearchRows = 30
	maxColumn     = 30
)

func (p *Pipeline) handleSearch(ctx context.Context, _ *Session, turn string) []Message {
	doc := p.Registry.Current()
	if doc == nil {
		return []Message{say("Load an API document before searching, for example 'swagger load <name>' or by its URL.")}
	}
	q := search.ParseQuery(turn)
	if q.Text == "" {
		return []Message{say("What should I search for? For example: 'search pet', 'POST 메서드 API 검색' or '/user 관련 API 찾기'.")}
	}

	var (
		results []spec.Endpoint
		mode    string
	)
	switch q.Scope {
	case search.ScopeRequest:
		results, mode = search.MatchRequest(doc, q.Text), "request"
	case search.ScopeResponse:
		results, mode = search.MatchResponse(doc, q.Text), "response"
	default:
		var m search.Mode
		results, m = p.Search.Search(ctx, doc, q.Text, q.Fields)
		mode = string(m)
	}
	// Only endpoints that exist in the document reach the user.
	results = search.Verify(doc, results)
	if len(results) == 0 {
		mode = string(search.ModeNone)
	}
	p.Metrics.Search(mode)
	p.Logger.Debug("search", "query", q.Text, "mode", mode, "results", len(results))

	if len(results) == 0 {
		return []Message{say("No endpoints in '%s' match %q.", p.Registry.CurrentName(), q.Text)}
	}
	intro := fmt.Sprintf("Found %d endpoint(s) matching %q", len(results), q.Text)
	if mode == string(search.ModeSemantic) {
		intro += " (by meaning, no literal match)"
	}
	out := []Message{say("%s:", intro), code("markdown", endpointTable(results))}
	if len(results) > maxSearchRows {
		out = append(out, say("Showing the first %d. Narrow the query to see the rest.", maxSearchRows))
	}
	return out
}

func endpointTable(eps []spec.Endpoint) string {
	var b strings.Builder
	b.WriteString("| Method | Path | Summary | OperationID |\n")
	b.WriteString("|--------|------|---------|-------------|\n")
	for i, ep := range eps {
		if i == maxSearchRows {
			break
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", ep.Method, clip(ep.Path), clip(ep.Summary), ep.OperationID)
	}
	return strings.TrimRight(b.String(), "\n")
}

// clip shortens s to maxColumn runes, marking the cut with "...".
func clip(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	r := []rune(s)
	if len(r) <= maxColumn {
		return s
	}
	return string(r[:maxColumn-3]) + "..."
}
