package spec

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Normalized document model shared by the registry, search engine and request builder.

type HttpMethod string

const (
	GET     HttpMethod = "GET"
	POST    HttpMethod = "POST"
	PUT     HttpMethod = "PUT"
	DELETE  HttpMethod = "DELETE"
	PATCH   HttpMethod = "PATCH"
	HEAD    HttpMethod = "HEAD"
	OPTIONS HttpMethod = "OPTIONS"
)

// ParseMethod returns the canonical method for s (case-insensitive).
func ParseMethod(s string) (HttpMethod, bool) {
	switch m := HttpMethod(strings.ToUpper(strings.TrimSpace(s))); m {
	case GET, POST, PUT, DELETE, PATCH, HEAD, OPTIONS:
		return m, true
	}
	return "", false
}

// Location is where a parameter is carried in the request.
type Location string

const (
	InPath     Location = "path"
	InQuery    Location = "query"
	InHeader   Location = "header"
	InBody     Location = "body"
	InFormData Location = "formData"
	InCookie   Location = "cookie"
)

// NoDescription replaces absent summaries and descriptions so display code
// never has to special-case empty strings.
const NoDescription = "(no description)"

// Spec family labels stored in Document.SpecVersion.
const (
	SwaggerV2 = "Swagger 2.0"
	OpenAPIV3 = "OpenAPI 3.0"
)

type Document struct {
	Title       string     `json:"title"`
	Version     string     `json:"version"`
	Description string     `json:"description,omitempty"`
	SpecVersion string     `json:"specVersion"`
	BaseURL     string     `json:"baseUrl"`
	Source      string     `json:"source,omitempty"`
	Endpoints   []Endpoint `json:"endpoints"`
}

type Endpoint struct {
	Path        string                  `json:"path"`
	Method      HttpMethod              `json:"method"`
	OperationID string                  `json:"operationId,omitempty"`
	Summary     string                  `json:"summary"`
	Description string                  `json:"description"`
	Tags        []string                `json:"tags,omitempty"`
	Parameters  []Parameter             `json:"parameters,omitempty"`
	RequestBody Blob                    `json:"requestBody,omitempty"`
	Responses   map[string]ResponseSpec `json:"responses,omitempty"`
}

type Parameter struct {
	Name        string   `json:"name"`
	Location    Location `json:"in"`
	Required    bool     `json:"required,omitempty"`
	Description string   `json:"description,omitempty"`
	Schema      Blob     `json:"schema,omitempty"`
}

type ResponseSpec struct {
	Description string `json:"description,omitempty"`
	Content     Blob   `json:"content,omitempty"`
}

// Key identifies an endpoint within a document.
func (e Endpoint) Key() string { return string(e.Method) + " " + e.Path }

// Find returns the endpoint with the exact (path, method) pair.
func (d *Document) Find(path string, method HttpMethod) (Endpoint, bool) {
	if d == nil {
		return Endpoint{}, false
	}
	for _, ep := range d.Endpoints {
		if ep.Path == path && ep.Method == method {
			return ep, true
		}
	}
	return Endpoint{}, false
}

// Blob is an opaque JSON value carried through without interpretation.
// It is always stored compacted so that documents compare equal after a
// save/load cycle regardless of how the store indents its files.
type Blob []byte

// BlobOf marshals v into a Blob. nil and marshal failures yield a nil Blob.
func BlobOf(v any) Blob {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return nil
	}
	return Blob(data)
}

func (b Blob) MarshalJSON() ([]byte, error) {
	if len(b) == 0 {
		return []byte("null"), nil
	}
	return b, nil
}

func (b *Blob) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		*b = nil
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return err
	}
	*b = Blob(buf.Bytes())
	return nil
}

// String returns the JSON text, or "" for an absent value.
func (b Blob) String() string { return string(b) }

// Decode unmarshals the blob into v.
func (b Blob) Decode(v any) error {
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, v)
}
