package request

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/mark3labs/postai/internal/spec"
)

// Command is a method-prefixed turn such as "GET /pet/1 a=b".
type Command struct {
	Method    spec.HttpMethod
	RawPath   string
	RawParams string
}

var commandRe = regexp.MustCompile(`(?is)^(GET|POST|PUT|DELETE|PATCH|HEAD|OPTIONS)\s+(\S+)\s*(.*)$`)

// ParseCommand recognizes a method-prefixed turn.
func ParseCommand(turn string) (Command, bool) {
	m := commandRe.FindStringSubmatch(strings.TrimSpace(turn))
	if m == nil {
		return Command{}, false
	}
	method, _ := spec.ParseMethod(m[1])
	return Command{Method: method, RawPath: m[2], RawParams: strings.TrimSpace(m[3])}, true
}

// IsCommand reports whether turn starts with an HTTP method and a space.
func IsCommand(turn string) bool {
	_, ok := ParseCommand(turn)
	return ok
}

// Params are values for an endpoint, grouped by where they are sent.
type Params struct {
	Path   map[string]string
	Query  map[string]string
	Header map[string]string
	Body   any
}

// Builder assembles PendingRequests.
type Builder struct {
	TimeoutMs int
	// Headers are added to every request; Content-Type defaults to JSON.
	Headers map[string]string
}

func NewBuilder(timeoutMs int) *Builder {
	if timeoutMs <= 0 {
		timeoutMs = DefaultTimeoutMs
	}
	return &Builder{TimeoutMs: timeoutMs, Headers: map[string]string{"Content-Type": "application/json"}}
}

func (b *Builder) newPending(method spec.HttpMethod, u string) *PendingRequest {
	p := &PendingRequest{ID: uuid.NewString(), Method: method, URL: u, TimeoutMs: b.TimeoutMs}
	if p.TimeoutMs <= 0 {
		p.TimeoutMs = DefaultTimeoutMs
	}
	for k, v := range b.Headers {
		p.SetHeader(k, v)
	}
	return p
}

// BuildCommand builds a request from a freeform command. When the path
// matches an operation of doc, that operation's required parameters are
// checked as well.
func (b *Builder) BuildCommand(cmd Command, doc *spec.Document, override string) (*PendingRequest, error) {
	var params Params
	residual := strings.TrimSpace(cmd.RawParams)
	if strings.HasPrefix(residual, "{") && strings.HasSuffix(residual, "}") {
		params.Body = jsonBody(residual)
	} else {
		params.Query = parsePairs(residual)
	}
	return b.Build(cmd.Method, cmd.RawPath, params, doc, override)
}

// Build assembles a request for method and a raw path that may carry a
// query string, {tokens} or an absolute URL. Query values named after a
// path token fill the token instead of going into the query string.
func (b *Builder) Build(method spec.HttpMethod, rawPath string, params Params, doc *spec.Document, override string) (*PendingRequest, error) {
	path, query := splitQuery(rawPath)
	for k, v := range params.Query {
		query[k] = v
	}
	for name, v := range params.Path {
		path = substitute(path, name, v)
	}
	for _, name := range pathTokens(path) {
		if v, ok := query[name]; ok {
			path = substitute(path, name, v)
			delete(query, name)
		}
	}

	full, err := resolve(path, doc, override)
	if err != nil {
		return nil, err
	}
	p := b.newPending(method, full)
	for k, v := range params.Header {
		p.SetHeader(k, v)
	}
	if params.Body != nil {
		p.Body = spec.BlobOf(params.Body)
	}
	if len(query) > 0 {
		p.QueryParams = query
	}

	if ep, values, ok := matchEndpoint(doc, method, path); ok {
		p.Endpoint = ep.Key()
		p.Missing = missing(ep, Params{Path: values, Query: query, Header: params.Header, Body: params.Body})
	}
	return p, nil
}

// BuildEndpoint builds a request for a known operation. Missing required
// parameters are reported on the result, not as an error.
func (b *Builder) BuildEndpoint(ep spec.Endpoint, params Params, doc *spec.Document, override string) (*PendingRequest, error) {
	path := ep.Path
	for name, v := range params.Path {
		path = substitute(path, name, v)
	}
	full, err := resolve(path, doc, override)
	if err != nil {
		return nil, err
	}
	p := b.newPending(ep.Method, full)
	p.Endpoint = ep.Key()
	for k, v := range params.Header {
		p.SetHeader(k, v)
	}
	if len(params.Query) > 0 {
		p.QueryParams = make(map[string]string, len(params.Query))
		for k, v := range params.Query {
			p.QueryParams[k] = v
		}
	}
	p.Body = spec.BlobOf(params.Body)
	p.Missing = missing(ep, params)
	return p, nil
}

// substitute replaces the first {name} token in path.
func substitute(path, name, value string) string {
	return strings.Replace(path, "{"+name+"}", value, 1)
}

var tokenRe = regexp.MustCompile(`\{([^{}/]+)\}`)

func pathTokens(path string) []string {
	var out []string
	for _, m := range tokenRe.FindAllStringSubmatch(path, -1) {
		out = append(out, m[1])
	}
	return out
}

func isAbsolute(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// resolve joins path onto the override or the document base URL. Absolute
// paths are used as given.
func resolve(path string, doc *spec.Document, override string) (string, error) {
	if isAbsolute(path) {
		return path, nil
	}
	base := strings.TrimSpace(override)
	if base == "" && doc != nil {
		base = doc.BaseURL
	}
	if base == "" {
		return "", &MissingBaseURLError{Path: path}
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/"), nil
}

func splitQuery(raw string) (string, map[string]string) {
	query := make(map[string]string)
	path, rawQuery, found := strings.Cut(raw, "?")
	if found {
		for k, v := range parsePairs(rawQuery) {
			query[k] = v
		}
	}
	return path, query
}

// parsePairs reads key=value pairs separated by '&' or whitespace. Tokens
// without '=' are ignored.
func parsePairs(s string) map[string]string {
	out := make(map[string]string)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '&' || r == ' ' || r == '\t' || r == '\n'
	})
	for _, f := range fields {
		k, v, ok := strings.Cut(f, "=")
		if !ok || k == "" {
			continue
		}
		if uk, err := url.QueryUnescape(k); err == nil {
			k = uk
		}
		if uv, err := url.QueryUnescape(v); err == nil {
			v = uv
		}
		out[k] = v
	}
	return out
}

// jsonBody accepts strict JSON and the single-quoted variant people type
// by hand. Anything else is sent as a JSON string.
func jsonBody(text string) any {
	for _, candidate := range []string{text, strings.ReplaceAll(text, "'", `"`)} {
		var v any
		if err := json.Unmarshal([]byte(candidate), &v); err == nil {
			return v
		}
	}
	return text
}

// matchEndpoint finds the operation of doc whose path template matches a
// concrete path segment by segment and returns the values bound to its
// tokens.
func matchEndpoint(doc *spec.Document, method spec.HttpMethod, path string) (spec.Endpoint, map[string]string, bool) {
	if doc == nil {
		return spec.Endpoint{}, nil, false
	}
	if isAbsolute(path) {
		if u, err := url.Parse(path); err == nil {
			path = u.Path
			if base, err := url.Parse(doc.BaseURL); err == nil && base.Path != "" {
				path = strings.TrimPrefix(path, strings.TrimRight(base.Path, "/"))
			}
		}
	}
	segs := strings.Split(strings.Trim(path, "/"), "/")
	var (
		best       spec.Endpoint
		bestValues map[string]string
		bestScore  = -1
	)
	for _, ep := range doc.Endpoints {
		if ep.Method != method {
			continue
		}
		tmpl := strings.Split(strings.Trim(ep.Path, "/"), "/")
		if len(tmpl) != len(segs) {
			continue
		}
		values := make(map[string]string)
		score := 0
		ok := true
		for i, t := range tmpl {
			if m := tokenRe.FindStringSubmatch(t); m != nil && m[0] == t {
				if segs[i] == "" {
					ok = false
					break
				}
				// A token the user left unfilled still matches, unbound.
				if segs[i] != t {
					values[m[1]] = segs[i]
				}
				continue
			}
			if t != segs[i] {
				ok = false
				break
			}
			score++
		}
		// Literal segments beat tokens: /pet/findByStatus over /pet/{petId}.
		if ok && score > bestScore {
			best, bestValues, bestScore = ep, values, score
		}
	}
	return best, bestValues, bestScore >= 0
}

func missing(ep spec.Endpoint, p Params) []MissingParam {
	var out []MissingParam
	for _, param := range ep.Parameters {
		if !param.Required || supplied(param, p) {
			continue
		}
		out = append(out, MissingParam{Name: param.Name, Location: param.Location, Description: param.Description})
	}
	if p.Body == nil && bodyRequired(ep.RequestBody) {
		out = append(out, MissingParam{Name: "body", Location: spec.InBody, Description: "request body"})
	}
	return out
}

func supplied(param spec.Parameter, p Params) bool {
	switch param.Location {
	case spec.InPath:
		_, ok := p.Path[param.Name]
		return ok
	case spec.InQuery:
		_, ok := p.Query[param.Name]
		return ok
	case spec.InHeader, spec.InCookie:
		for k := range p.Header {
			if strings.EqualFold(k, param.Name) {
				return true
			}
		}
		return false
	case spec.InBody:
		return p.Body != nil
	case spec.InFormData:
		if m, ok := p.Body.(map[string]any); ok {
			_, has := m[param.Name]
			return has
		}
		_, ok := p.Query[param.Name]
		return ok
	default:
		return true
	}
}

func bodyRequired(rb spec.Blob) bool {
	var v struct {
		Required bool `json:"required"`
	}
	return rb.Decode(&v) == nil && v.Required
}

// Describe renders missing parameters as advisory text.
func Describe(missing []MissingParam) string {
	if len(missing) == 0 {
		return ""
	}
	lines := make([]string, 0, len(missing))
	for _, m := range missing {
		lines = append(lines, "- "+m.String())
	}
	return fmt.Sprintf("Required parameters not supplied:\n%s", strings.Join(lines, "\n"))
}
