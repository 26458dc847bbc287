package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/mark3labs/postai/internal/metrics"
	"github.com/mark3labs/postai/internal/present"
	"github.com/mark3labs/postai/internal/request"
)

var baseURLRe = regexp.MustCompile(`(?i)^(?:set-base-url|set-baseurl|base-url|baseurl)\s+(\S+)\s*$`)

func isBaseURLDirective(_ *Session, turn string) bool {
	return baseURLRe.MatchString(turn)
}

const confirmHint = "Execute with '실행' or 'execute', cancel with '취소' or 'cancel'."

func (p *Pipeline) handleBaseURL(_ context.Context, s *Session, turn string) []Message {
	raw := baseURLRe.FindStringSubmatch(turn)[1]
	switch strings.ToLower(raw) {
	case "none", "reset", "clear", "off":
		p.Registry.SetBaseURLOverride("")
		s.Pending = nil
		return []Message{say("Base URL override cleared. Requests use the current document's base URL.")}
	}
	// Stored as given; the transport rejects unusable URLs at execution.
	p.Registry.SetBaseURLOverride(raw)
	s.Pending = nil
	return []Message{say("Base URL set to %s. It takes precedence over the document's own base URL.", raw)}
}

func (p *Pipeline) handleConfirm(ctx context.Context, s *Session, _ string) []Message {
	pending := s.Pending
	if pending == nil {
		return []Message{say("There is no pending request to execute. Send a request such as 'GET /users' first.")}
	}
	s.Pending = nil

	p.Logger.Info("executing request", "id", pending.ID, "request", pending.Summary())
	start := time.Now()
	result := request.Run(ctx, p.Transport, pending)
	outcome := metrics.OutcomeOK
	switch {
	case result.Status == request.StatusError:
		outcome = metrics.OutcomeTransportError
	case !result.OK():
		outcome = metrics.OutcomeHTTPError
	}
	p.Metrics.Execution(outcome, time.Since(start))

	var out []Message
	for _, b := range present.Present(result).Blocks() {
		if b.Code {
			out = append(out, code(b.Language, b.Text))
		} else {
			out = append(out, say("%s", b.Text))
		}
	}
	return out
}

func (p *Pipeline) handleCancel(_ context.Context, s *Session, _ string) []Message {
	if s.Pending == nil {
		return []Message{say("There is no pending request to cancel.")}
	}
	p.Logger.Debug("request cancelled", "id", s.Pending.ID)
	s.Pending = nil
	return []Message{say("Request cancelled.")}
}

func (p *Pipeline) handleCommand(_ context.Context, s *Session, turn string) []Message {
	cmd, _ := request.ParseCommand(turn)
	pending, err := p.Builder.BuildCommand(cmd, p.Registry.Current(), p.Registry.BaseURLOverride())
	if err != nil {
		return buildFailure(err)
	}
	return p.stage(s, pending, "")
}

func buildFailure(err error) []Message {
	var mb *request.MissingBaseURLError
	if errors.As(err, &mb) {
		return []Message{say("There is no base URL to send %s to.", mb.Path), say("%s", mb.Guidance())}
	}
	return []Message{say("The request could not be built: %v", err)}
}

// stage makes pending the session's request awaiting confirmation and
// renders the preview.
func (p *Pipeline) stage(s *Session, pending *request.PendingRequest, description string) []Message {
	var out []Message
	if s.Pending != nil {
		out = append(out, say("The previous pending request (%s) was replaced.", s.Pending.Summary()))
	}
	s.Pending = pending
	p.Logger.Debug("request staged", "id", pending.ID, "request", pending.Summary())

	intro := "Ready to send this request:"
	if description != "" {
		intro = description + "\n" + intro
	}
	out = append(out, say("%s", intro), code("json", preview(pending)))
	if len(pending.Missing) > 0 {
		out = append(out, say("%s\nYou can still execute it as is.", request.Describe(pending.Missing)))
	}
	return append(out, say(confirmHint))
}

func preview(p *request.PendingRequest) string {
	view := struct {
		Method      string            `json:"method"`
		URL         string            `json:"url"`
		QueryParams map[string]string `json:"queryParams,omitempty"`
		Headers     map[string]string `json:"headers,omitempty"`
		Body        json.RawMessage   `json:"body,omitempty"`
		TimeoutMs   int               `json:"timeoutMs"`
	}{
		Method:      string(p.Method),
		URL:         p.URL,
		QueryParams: p.QueryParams,
		Headers:     p.Headers,
		TimeoutMs:   p.TimeoutMs,
	}
	if len(p.Body) > 0 {
		view.Body = json.RawMessage(p.Body)
	}
	data, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return p.Summary()
	}
	return string(data)
}
