// Package request turns commands and resolved endpoints into HTTP requests
// awaiting confirmation, and executes them.
package request

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/postai/internal/spec"
)

// DefaultTimeoutMs applies when the builder is given no timeout.
const DefaultTimeoutMs = 5000

// PendingRequest is a built request waiting for the user to confirm it.
type PendingRequest struct {
	ID          string            `json:"id"`
	URL         string            `json:"url"`
	Method      spec.HttpMethod   `json:"method"`
	Headers     map[string]string `json:"headers,omitempty"`
	Body        spec.Blob         `json:"body,omitempty"`
	QueryParams map[string]string `json:"queryParams,omitempty"`
	TimeoutMs   int               `json:"timeoutMs"`
	// Missing lists required parameters that were not supplied. The request
	// can still be executed.
	Missing []MissingParam `json:"missing,omitempty"`
	// Endpoint is the document operation the request was matched to, if any.
	Endpoint string `json:"endpoint,omitempty"`
}

type MissingParam struct {
	Name        string        `json:"name"`
	Location    spec.Location `json:"in"`
	Description string        `json:"description,omitempty"`
}

func (m MissingParam) String() string {
	s := fmt.Sprintf("%s (%s)", m.Name, m.Location)
	if m.Description != "" && m.Description != spec.NoDescription {
		s += ": " + m.Description
	}
	return s
}

// Header returns the value of a header, matching the name case-insensitively.
func (p *PendingRequest) Header(name string) (string, bool) {
	for k, v := range p.Headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// SetHeader replaces any existing header with the same name, ignoring case.
func (p *PendingRequest) SetHeader(name, value string) {
	if p.Headers == nil {
		p.Headers = make(map[string]string)
	}
	for k := range p.Headers {
		if strings.EqualFold(k, name) {
			delete(p.Headers, k)
		}
	}
	p.Headers[name] = value
}

// Summary is a one-line description used in logs and confirmations.
func (p *PendingRequest) Summary() string {
	s := string(p.Method) + " " + p.URL
	if len(p.QueryParams) > 0 {
		keys := make([]string, 0, len(p.QueryParams))
		for k := range p.QueryParams {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+p.QueryParams[k])
		}
		s += " ?" + strings.Join(parts, "&")
	}
	return s
}
