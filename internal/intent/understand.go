package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/mark3labs/postai/internal/llm"
	"github.com/mark3labs/postai/internal/request"
	"github.com/mark3labs/postai/internal/spec"
)

// MaxCatalogEndpoints bounds how many operations of the current document
// are described to the model.
const MaxCatalogEndpoints = 150

// Understanding is the model's reading of an API request phrased in
// natural language.
type Understanding struct {
	Endpoint    string
	Method      string
	Headers     map[string]string
	QueryParams map[string]string
	Body        any
	Description string
	MissingInfo []string
}

type understandingReply struct {
	Endpoint    string          `json:"endpoint"`
	Method      string          `json:"method"`
	Headers     map[string]any  `json:"headers"`
	QueryParams map[string]any  `json:"queryParams"`
	Body        json.RawMessage `json:"body"`
	Description string          `json:"description"`
	MissingInfo []string        `json:"missingInfo"`
}

const understandPrompt = `You turn natural-language API requests into structured HTTP requests.
Answer with a single JSON object:
{
  "endpoint": "path of the operation (/users/{id}) or an absolute URL",
  "method": "GET | POST | PUT | DELETE | PATCH",
  "headers": {"Header-Name": "value"},
  "queryParams": {"name": "value"},
  "body": {"key": "value"} or null,
  "description": "one-line purpose of the request",
  "missingInfo": ["information that is still unclear"]
}
Values for path parameters go into queryParams under the parameter name.
When an operation list is given, pick the endpoint from it and keep its path template.
If a credential is required but not given, add "auth" to missingInfo.
Output only the JSON object.`

// Understander extracts an Understanding from a turn.
type Understander struct {
	completer llm.Completer
	logger    hclog.Logger
}

func NewUnderstander(completer llm.Completer, logger hclog.Logger) *Understander {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Understander{completer: completer, logger: logger.Named("understand")}
}

// Understand asks the model to read turn against the operations of doc,
// which may be nil.
func (u *Understander) Understand(ctx context.Context, turn string, doc *spec.Document) (Understanding, error) {
	prompt := understandPrompt
	if catalog := Catalog(doc); catalog != "" {
		prompt += "\n\nAvailable operations:\n" + catalog
	}
	reply, err := u.completer.Complete(ctx, []llm.Message{llm.System(prompt), llm.User(turn)})
	if err != nil {
		return Understanding{}, fmt.Errorf("understand request: %w", err)
	}
	var raw understandingReply
	if err := llm.DecodeObject(reply, &raw); err != nil {
		u.logger.Debug("unreadable understanding", "reply", reply)
		return Understanding{}, fmt.Errorf("understand request: %w", err)
	}
	out := Understanding{
		Endpoint:    strings.TrimSpace(raw.Endpoint),
		Method:      strings.ToUpper(strings.TrimSpace(raw.Method)),
		Headers:     stringify(raw.Headers),
		QueryParams: stringify(raw.QueryParams),
		Description: raw.Description,
		MissingInfo: raw.MissingInfo,
	}
	if len(raw.Body) > 0 && string(raw.Body) != "null" {
		var body any
		if err := json.Unmarshal(raw.Body, &body); err == nil {
			out.Body = body
		}
	}
	if m, ok := out.Body.(map[string]any); ok && len(m) == 0 {
		out.Body = nil
	}
	return out, nil
}

// Catalog renders doc's operations one per line.
func Catalog(doc *spec.Document) string {
	if doc == nil {
		return ""
	}
	var b strings.Builder
	for i, ep := range doc.Endpoints {
		if i == MaxCatalogEndpoints {
			fmt.Fprintf(&b, "... %d more\n", len(doc.Endpoints)-i)
			break
		}
		fmt.Fprintf(&b, "%s %s", ep.Method, ep.Path)
		if ep.Summary != spec.NoDescription {
			fmt.Fprintf(&b, " - %s", ep.Summary)
		}
		for _, p := range ep.Parameters {
			if p.Required {
				fmt.Fprintf(&b, " [%s:%s]", p.Location, p.Name)
			}
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// NeedsAuth reports whether the understanding names a missing credential.
func (u Understanding) NeedsAuth() bool {
	for _, item := range u.MissingInfo {
		lower := strings.ToLower(item)
		for _, kw := range []string{"auth", "token", "api key", "apikey", "credential", "인증", "토큰"} {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}

// Target returns the method and the endpoint, or false when the model
// could not name them.
func (u Understanding) Target() (spec.HttpMethod, string, bool) {
	method, ok := spec.ParseMethod(u.Method)
	if !ok || u.Endpoint == "" {
		return "", "", false
	}
	if !strings.HasPrefix(u.Endpoint, "/") {
		if parsed, err := url.Parse(u.Endpoint); err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return "", "", false
		}
	}
	return method, u.Endpoint, true
}

// Params groups the extracted values for the request builder.
func (u Understanding) Params() request.Params {
	return request.Params{Query: u.QueryParams, Header: u.Headers, Body: u.Body}
}

// Merge overlays auth headers and query parameters onto u.
func (u *Understanding) Merge(a Auth) {
	u.Headers = overlay(u.Headers, a.Headers)
	u.QueryParams = overlay(u.QueryParams, a.QueryParams)
}

func overlay(base, extra map[string]string) map[string]string {
	if len(extra) == 0 {
		return base
	}
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func stringify(m map[string]any) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		switch t := v.(type) {
		case nil:
			continue
		case string:
			out[k] = t
		case float64, bool:
			out[k] = fmt.Sprint(t)
		default:
			data, _ := json.Marshal(t)
			out[k] = string(data)
		}
	}
	return out
}
