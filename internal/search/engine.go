package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/go-hclog"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mark3labs/postai/internal/llm"
	"github.com/mark3labs/postai/internal/spec"
)

// Mode records how a result set was produced.
type Mode string

const (
	ModeLiteral  Mode = "literal"
	ModeSemantic Mode = "semantic"
	ModeNone     Mode = "none"
)

const semanticPrompt = `You match natural-language queries to API endpoints.
You get a query and a list of endpoints, one JSON object per line with an "index".
Reply with a JSON array of the indices of the endpoints that match the query, for example [0, 3].
Reply [] when nothing matches. Do not add any other text.`

// Engine runs literal matching with a model-assisted fallback.
type Engine struct {
	completer llm.Completer
	cache     *lru.Cache[string, []int]
	logger    hclog.Logger
}

// NewEngine builds an engine. A nil completer disables the fallback;
// cacheSize <= 0 disables caching of fallback answers.
func NewEngine(completer llm.Completer, cacheSize int, logger hclog.Logger) *Engine {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	e := &Engine{completer: completer, logger: logger.Named("search")}
	if cacheSize > 0 {
		if c, err := lru.New[string, []int](cacheSize); err == nil {
			e.cache = c
		}
	}
	return e
}

// Search never fails: fallback errors are logged and produce no results.
func (e *Engine) Search(ctx context.Context, doc *spec.Document, query string, fields []Field) ([]spec.Endpoint, Mode) {
	if res := Match(doc, query, fields); len(res) > 0 {
		return res, ModeLiteral
	}
	if doc == nil || e.completer == nil || strings.TrimSpace(query) == "" || !includesDescription(fields) {
		return nil, ModeNone
	}
	res := e.semantic(ctx, doc, query)
	if len(res) == 0 {
		return nil, ModeNone
	}
	return res, ModeSemantic
}

func (e *Engine) semantic(ctx context.Context, doc *spec.Document, query string) []spec.Endpoint {
	listing := endpointListing(doc)
	key := cacheKey(doc, listing, query)
	if e.cache != nil {
		if idx, ok := e.cache.Get(key); ok {
			return pick(doc, idx)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n\nEndpoints:\n", query)
	b.WriteString(listing)

	reply, err := e.completer.Complete(ctx, []llm.Message{llm.System(semanticPrompt), llm.User(b.String())})
	if err != nil {
		e.logger.Warn("semantic search failed", "query", query, "error", err)
		return nil
	}
	idx, err := llm.ExtractIndices(reply)
	if err != nil {
		e.logger.Warn("semantic search reply unusable", "query", query, "error", err)
		return nil
	}
	idx = sanitize(idx, len(doc.Endpoints))
	if e.cache != nil {
		e.cache.Add(key, idx)
	}
	e.logger.Debug("semantic search", "query", query, "matches", len(idx))
	return pick(doc, idx)
}

// endpointListing renders one JSON object per endpoint, keyed by index.
func endpointListing(doc *spec.Document) string {
	var b strings.Builder
	for i, ep := range doc.Endpoints {
		line, _ := json.Marshal(struct {
			Index       int    `json:"index"`
			Path        string `json:"path"`
			Method      string `json:"method"`
			Summary     string `json:"summary,omitempty"`
			Description string `json:"description,omitempty"`
		}{i, ep.Path, string(ep.Method), text(ep.Summary), text(ep.Description)})
		b.Write(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// cacheKey identifies a fallback answer by document content and query, so
// two documents only share answers when they list the same endpoints.
func cacheKey(doc *spec.Document, listing, query string) string {
	d := xxhash.New()
	for _, part := range []string{doc.Source, doc.Title, doc.Version, listing} {
		_, _ = d.WriteString(part)
		_, _ = d.Write([]byte{0})
	}
	return fmt.Sprintf("%016x\x00%s", d.Sum64(), strings.ToLower(strings.TrimSpace(query)))
}

// sanitize removes duplicate and out-of-range indices, keeping first-seen order.
func sanitize(idx []int, n int) []int {
	seen := make(map[int]bool, len(idx))
	out := make([]int, 0, len(idx))
	for _, i := range idx {
		if i < 0 || i >= n || seen[i] {
			continue
		}
		seen[i] = true
		out = append(out, i)
	}
	return out
}

func pick(doc *spec.Document, idx []int) []spec.Endpoint {
	out := make([]spec.Endpoint, 0, len(idx))
	for _, i := range idx {
		if i >= 0 && i < len(doc.Endpoints) {
			out = append(out, doc.Endpoints[i])
		}
	}
	return out
}
