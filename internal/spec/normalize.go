package spec

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi3"
)

// BuildOption narrows which operations are flattened into the Document.
type BuildOption func(*buildConfig)

type buildConfig struct {
	includeTags map[string]struct{}
	excludeTags map[string]struct{}
	methods     map[HttpMethod]struct{}
	pathRes     []*regexp.Regexp
}

// WithIncludeTags keeps only endpoints that have at least one of the given tags.
func WithIncludeTags(tags []string) BuildOption {
	return func(c *buildConfig) {
		c.includeTags = addTags(c.includeTags, tags)
	}
}

// WithExcludeTags removes endpoints that have any of the given tags.
func WithExcludeTags(tags []string) BuildOption {
	return func(c *buildConfig) {
		c.excludeTags = addTags(c.excludeTags, tags)
	}
}

func addTags(set map[string]struct{}, tags []string) map[string]struct{} {
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if set == nil {
			set = make(map[string]struct{}, len(tags))
		}
		set[t] = struct{}{}
	}
	return set
}

// WithMethods keeps only endpoints using one of the provided HTTP methods.
func WithMethods(methods []HttpMethod) BuildOption {
	return func(c *buildConfig) {
		for _, m := range methods {
			if c.methods == nil {
				c.methods = make(map[HttpMethod]struct{}, len(methods))
			}
			c.methods[m] = struct{}{}
		}
	}
}

// WithPathPatterns keeps only endpoints whose path matches at least one of
// the regular expressions. Invalid patterns never match.
func WithPathPatterns(patterns []string) BuildOption {
	return func(c *buildConfig) {
		for _, p := range patterns {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			re, err := regexp.Compile(p)
			if err != nil {
				re = regexp.MustCompile("a^$")
			}
			c.pathRes = append(c.pathRes, re)
		}
	}
}

func (c *buildConfig) allows(path string, method HttpMethod, tags []string) bool {
	if len(c.methods) > 0 {
		if _, ok := c.methods[method]; !ok {
			return false
		}
	}
	if len(c.pathRes) > 0 {
		matched := false
		for _, re := range c.pathRes {
			if re.MatchString(path) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if len(c.includeTags) > 0 {
		ok := false
		for _, t := range tags {
			if _, yes := c.includeTags[t]; yes {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	for _, t := range tags {
		if _, blocked := c.excludeTags[t]; blocked {
			return false
		}
	}
	return true
}

// endpointList collects endpoints and keeps (path, method) unique; a later
// definition replaces an earlier one in place.
type endpointList struct {
	items []Endpoint
	index map[string]int
}

func (l *endpointList) add(ep Endpoint) {
	if l.index == nil {
		l.index = make(map[string]int)
	}
	if i, ok := l.index[ep.Key()]; ok {
		l.items[i] = ep
		return
	}
	l.index[ep.Key()] = len(l.items)
	l.items = append(l.items, ep)
}

// orderedPaths returns the document's path keys in source order. Keys the
// node walk missed are appended sorted.
func orderedPaths[V any](paths map[string]V, order []string) []string {
	out := make([]string, 0, len(paths))
	seen := make(map[string]struct{}, len(paths))
	for _, p := range order {
		if _, ok := paths[p]; !ok {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	var rest []string
	for p := range paths {
		if _, ok := seen[p]; !ok {
			rest = append(rest, p)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

func fromV3(doc *openapi3.T, order []string, cfg *buildConfig) *Document {
	out := &Document{SpecVersion: OpenAPIV3}
	if doc.Info != nil {
		out.Title = strings.TrimSpace(doc.Info.Title)
		out.Version = strings.TrimSpace(doc.Info.Version)
		out.Description = strings.TrimSpace(doc.Info.Description)
	}
	for _, s := range doc.Servers {
		if s != nil {
			out.BaseURL = strings.TrimSpace(s.URL)
			break
		}
	}

	var list endpointList
	for _, p := range orderedPaths(doc.Paths, order) {
		item := doc.Paths[p]
		if item == nil {
			continue
		}
		ops := []struct {
			m HttpMethod
			o *openapi3.Operation
		}{
			{GET, item.Get},
			{POST, item.Post},
			{PUT, item.Put},
			{DELETE, item.Delete},
			{PATCH, item.Patch},
		}
		for _, pair := range ops {
			if pair.o == nil {
				continue
			}
			tags := cleanTags(pair.o.Tags)
			if !cfg.allows(p, pair.m, tags) {
				continue
			}
			ep := Endpoint{
				Path:        p,
				Method:      pair.m,
				OperationID: strings.TrimSpace(pair.o.OperationID),
				Summary:     orSentinel(pair.o.Summary),
				Description: orSentinel(pair.o.Description),
				Tags:        tags,
				Parameters:  mergeParams(v3Params(item.Parameters), v3Params(pair.o.Parameters)),
				RequestBody: BlobOf(pair.o.RequestBody),
			}
			for code, ref := range pair.o.Responses {
				if ref == nil {
					continue
				}
				rs := ResponseSpec{}
				if ref.Value != nil {
					if ref.Value.Description != nil {
						rs.Description = *ref.Value.Description
					}
					if len(ref.Value.Content) > 0 {
						rs.Content = BlobOf(ref.Value.Content)
					}
				} else if ref.Ref != "" {
					rs.Content = BlobOf(map[string]string{"$ref": ref.Ref})
				}
				if ep.Responses == nil {
					ep.Responses = make(map[string]ResponseSpec)
				}
				ep.Responses[code] = rs
			}
			list.add(ep)
		}
	}
	out.Endpoints = list.items
	return out
}

func v3Params(refs openapi3.Parameters) []Parameter {
	var out []Parameter
	for _, ref := range refs {
		if ref == nil || ref.Value == nil {
			continue
		}
		p := ref.Value
		out = append(out, Parameter{
			Name:        p.Name,
			Location:    Location(p.In),
			Required:    p.Required,
			Description: strings.TrimSpace(p.Description),
			Schema:      BlobOf(p.Schema),
		})
	}
	return out
}

func fromV2(doc *openapi2.T, order []string, cfg *buildConfig) *Document {
	out := &Document{
		Title:       strings.TrimSpace(doc.Info.Title),
		Version:     strings.TrimSpace(doc.Info.Version),
		Description: strings.TrimSpace(doc.Info.Description),
		SpecVersion: SwaggerV2,
		BaseURL:     v2BaseURL(doc),
	}

	var list endpointList
	for _, p := range orderedPaths(doc.Paths, order) {
		item := doc.Paths[p]
		if item == nil {
			continue
		}
		ops := []struct {
			m HttpMethod
			o *openapi2.Operation
		}{
			{GET, item.Get},
			{POST, item.Post},
			{PUT, item.Put},
			{DELETE, item.Delete},
			{PATCH, item.Patch},
		}
		for _, pair := range ops {
			if pair.o == nil {
				continue
			}
			tags := cleanTags(pair.o.Tags)
			if !cfg.allows(p, pair.m, tags) {
				continue
			}
			ep := Endpoint{
				Path:        p,
				Method:      pair.m,
				OperationID: strings.TrimSpace(pair.o.OperationID),
				Summary:     orSentinel(pair.o.Summary),
				Description: orSentinel(pair.o.Description),
				Tags:        tags,
				Parameters:  mergeParams(v2Params(doc, item.Parameters), v2Params(doc, pair.o.Parameters)),
			}
			for code, resp := range pair.o.Responses {
				if resp == nil {
					continue
				}
				rs := ResponseSpec{Description: resp.Description}
				if resp.Schema != nil {
					rs.Content = BlobOf(map[string]any{"schema": resp.Schema})
				}
				if ep.Responses == nil {
					ep.Responses = make(map[string]ResponseSpec)
				}
				ep.Responses[code] = rs
			}
			list.add(ep)
		}
	}
	out.Endpoints = list.items
	return out
}

// v2BaseURL joins the first scheme, host and basePath. A document without a
// host has no usable base URL.
func v2BaseURL(doc *openapi2.T) string {
	host := strings.TrimSpace(doc.Host)
	if host == "" {
		return ""
	}
	scheme := "http"
	if len(doc.Schemes) > 0 && strings.TrimSpace(doc.Schemes[0]) != "" {
		scheme = strings.TrimSpace(doc.Schemes[0])
	}
	return scheme + "://" + host + strings.TrimSpace(doc.BasePath)
}

func v2Params(doc *openapi2.T, params openapi2.Parameters) []Parameter {
	var out []Parameter
	for _, p := range params {
		if p == nil {
			continue
		}
		if p.Ref != "" {
			name := strings.TrimPrefix(p.Ref, "#/parameters/")
			resolved, ok := doc.Parameters[name]
			if !ok || resolved == nil {
				continue
			}
			p = resolved
		}
		out = append(out, Parameter{
			Name:        p.Name,
			Location:    Location(p.In),
			Required:    p.Required,
			Description: strings.TrimSpace(p.Description),
			Schema:      v2ParamSchema(p),
		})
	}
	return out
}

// v2ParamSchema keeps a body parameter's schema as-is; for the other
// locations the inline type keywords become the schema.
func v2ParamSchema(p *openapi2.Parameter) Blob {
	if p.Schema != nil {
		return BlobOf(p.Schema)
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil
	}
	for _, k := range []string{"name", "in", "required", "description"} {
		delete(fields, k)
	}
	if len(fields) == 0 {
		return nil
	}
	return BlobOf(fields)
}

// mergeParams overlays operation-level parameters on path-level ones, keyed
// by location and name, keeping first-seen order.
func mergeParams(base, op []Parameter) []Parameter {
	if len(base) == 0 && len(op) == 0 {
		return nil
	}
	out := make([]Parameter, 0, len(base)+len(op))
	index := make(map[string]int, len(base)+len(op))
	for _, group := range [][]Parameter{base, op} {
		for _, p := range group {
			key := paramKey(string(p.Location), p.Name)
			if i, ok := index[key]; ok {
				out[i] = p
				continue
			}
			index[key] = len(out)
			out = append(out, p)
		}
	}
	return out
}

func paramKey(in, name string) string { return in + ":" + name }

func cleanTags(tags []string) []string {
	var out []string
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func orSentinel(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return NoDescription
	}
	return s
}
