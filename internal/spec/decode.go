package spec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

// Parse decodes raw JSON or YAML bytes into a Document. source is recorded
// on the result and used in error locations.
func Parse(raw []byte, source string, opts ...BuildOption) (*Document, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &SpecError{Code: ParseError, Message: "spec: document is empty", Location: source}
	}

	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, &SpecError{Code: ParseError, Message: fmt.Sprintf("decode %s: %v", describe(source), err), Location: source, Cause: err}
	}
	var top map[string]any
	if err := root.Decode(&top); err != nil || top == nil {
		return nil, &SpecError{Code: ParseError, Message: fmt.Sprintf("decode %s: document is not an object", describe(source)), Location: source, Cause: err}
	}

	_, isV2 := top["swagger"]
	_, isV3 := top["openapi"]
	if !isV2 && !isV3 {
		return nil, &SpecError{Code: UnsupportedSpec, Message: "spec: document declares neither 'swagger' nor 'openapi'", Location: source}
	}
	if info, ok := top["info"].(map[string]any); !ok || info == nil {
		return nil, &SpecError{Code: ParseError, Message: "spec: document has no 'info' object", Location: source}
	}

	data, err := json.Marshal(jsonCompatible(top))
	if err != nil {
		return nil, &SpecError{Code: ParseError, Message: fmt.Sprintf("re-encode %s: %v", describe(source), err), Location: source, Cause: err}
	}

	cfg := &buildConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	order := pathOrder(&root)

	var doc *Document
	if isV2 {
		var v2 openapi2.T
		if err := json.Unmarshal(data, &v2); err != nil {
			return nil, &SpecError{Code: ParseError, Message: fmt.Sprintf("parse swagger 2.0 document: %v", err), Location: source, Cause: err}
		}
		doc = fromV2(&v2, order, cfg)
	} else {
		v3, err := loadV3(data)
		if err != nil {
			return nil, &SpecError{Code: ParseError, Message: fmt.Sprintf("parse openapi 3 document: %v", err), Location: source, Cause: err}
		}
		doc = fromV3(v3, order, cfg)
		doc.SpecVersion = v3Label(fmt.Sprint(top["openapi"]))
	}
	doc.Source = source
	return doc, nil
}

// loadV3 resolves local references when it can and otherwise settles for a
// plain decode with unresolved refs left in place.
func loadV3(data []byte) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(data)
	if err == nil {
		return doc, nil
	}
	var plain openapi3.T
	if uerr := json.Unmarshal(data, &plain); uerr != nil {
		return nil, err
	}
	return &plain, nil
}

func v3Label(version string) string {
	parts := strings.SplitN(strings.TrimSpace(version), ".", 3)
	if len(parts) < 2 || parts[0] == "" {
		return OpenAPIV3
	}
	return "OpenAPI " + parts[0] + "." + parts[1]
}

// pathOrder returns the keys of the top-level 'paths' mapping as written.
func pathOrder(root *yaml.Node) []string {
	n := root
	if n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		n = n.Content[0]
	}
	if n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value != "paths" {
			continue
		}
		paths := n.Content[i+1]
		if paths.Kind != yaml.MappingNode {
			return nil
		}
		keys := make([]string, 0, len(paths.Content)/2)
		for j := 0; j+1 < len(paths.Content); j += 2 {
			keys = append(keys, paths.Content[j].Value)
		}
		return keys
	}
	return nil
}

// jsonCompatible rewrites YAML-only shapes (non-string map keys such as
// response codes written as bare integers) so the tree can be JSON encoded.
func jsonCompatible(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = jsonCompatible(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = jsonCompatible(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = jsonCompatible(val)
		}
		return out
	default:
		return v
	}
}

func describe(source string) string {
	if source == "" {
		return "document"
	}
	return source
}
