package intent

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/mark3labs/postai/internal/llm"
)

// Auth is how a credential found in a turn is attached to a request.
type Auth struct {
	Type        string
	Headers     map[string]string
	QueryParams map[string]string
	Flow        string
	Advice      string
}

type authReply struct {
	AuthType       string         `json:"authType"`
	Headers        map[string]any `json:"headers"`
	QueryParams    map[string]any `json:"queryParams"`
	AuthFlow       string         `json:"authFlow"`
	SecurityAdvice string         `json:"securityAdvice"`
}

const authPrompt = `You attach credentials to HTTP requests.
Find the credential in the user's message and answer with a single JSON object:
{
  "authType": "apiKey | bearer | basic | oauth2 | jwt | none",
  "headers": {"Header-Name": "value"},
  "queryParams": {"name": "value"},
  "authFlow": "how the credential is sent",
  "securityAdvice": "one short tip"
}
Bearer and OAuth tokens go into an Authorization header. Basic credentials are base64 encoded
into "Authorization: Basic ...". API keys go into X-API-Key unless the user names another header
or a query parameter. Never invent a credential; use authType "none" when there is none.
Output only the JSON object.`

// AuthExtractor reads credentials out of a turn.
type AuthExtractor struct {
	completer llm.Completer
	logger    hclog.Logger
}

func NewAuthExtractor(completer llm.Completer, logger hclog.Logger) *AuthExtractor {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &AuthExtractor{completer: completer, logger: logger.Named("auth")}
}

// Extract returns the credential placement for turn. The request summary,
// when given, helps the model pick the right header.
func (a *AuthExtractor) Extract(ctx context.Context, turn, summary string) (Auth, error) {
	user := turn
	if summary != "" {
		user = turn + "\n\nRequest: " + summary
	}
	reply, err := a.completer.Complete(ctx, []llm.Message{llm.System(authPrompt), llm.User(user)})
	if err != nil {
		return Auth{}, fmt.Errorf("extract auth: %w", err)
	}
	var raw authReply
	if err := llm.DecodeObject(reply, &raw); err != nil {
		a.logger.Debug("unreadable auth reply", "reply", reply)
		return Auth{}, fmt.Errorf("extract auth: %w", err)
	}
	out := Auth{
		Type:        raw.AuthType,
		Headers:     stringify(raw.Headers),
		QueryParams: stringify(raw.QueryParams),
		Flow:        raw.AuthFlow,
		Advice:      raw.SecurityAdvice,
	}
	if out.Type == "none" {
		out.Headers, out.QueryParams = nil, nil
	}
	a.logger.Debug("extracted auth", "type", out.Type, "headers", len(out.Headers))
	return out, nil
}
