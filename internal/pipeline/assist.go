package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/mark3labs/postai/internal/intent"
)

const helpText = `postai commands

API documents
- Load by URL: https://petstore.swagger.io/v2/swagger.json load this API document
- swagger save petstore
- swagger load petstore | swagger load petstore,userapi | swagger load all
- swagger use petstore
- swagger list (saved) | swagger loaded (in this session, with recent URLs)
- swagger delete petstore | swagger deleteall

Endpoint search
- 사용자 관련 API 검색
- /user 관련 API 찾기
- POST 메서드 API 검색
- search request email | search response 404

Requests
- GET /pet/findByStatus?status=available
- POST /pet {'name': 'fluffy', 'status': 'available'}
- set-base-url http://localhost:8080 (set-base-url reset to clear)
- 실행 or execute runs the pending request, 취소 or cancel drops it

Anything else is read as a natural-language request, for example
"show me the available pets".

help or 도움말 shows this text.`

func (p *Pipeline) handleHelp(context.Context, *Session, string) []Message {
	return []Message{say(helpText)}
}

func (p *Pipeline) handleAssist(ctx context.Context, s *Session, turn string) []Message {
	if p.Classifier == nil {
		return []Message{say("I can only handle explicit commands right now. Type 'help' to see them.")}
	}
	d, err := p.Classifier.Classify(ctx, turn, history(s))
	if err != nil {
		var ce *intent.ClassificationError
		if errors.As(err, &ce) {
			p.Logger.Warn("classification failed", "error", err)
			return []Message{say("I could not determine what to do with that. Try rephrasing, or type 'help'.")}
		}
		p.Logger.Error("classifier unavailable", "error", err)
		return []Message{say("The language model is not reachable, so free-form requests are unavailable. " +
			"Explicit commands such as 'GET /users' still work.")}
	}
	p.Logger.Debug("assist", "action", d.Action)

	switch d.Action {
	case intent.ProcessAPIRequest:
		return p.understand(ctx, s, turn)
	case intent.RequestMoreInfo:
		if len(d.MissingInfo) == 0 {
			return []Message{say("Please describe the request in more detail.")}
		}
		return []Message{say("More information is needed: %s", strings.Join(d.MissingInfo, ", "))}
	case intent.ProvideHelp:
		if d.HelpMessage != "" {
			return []Message{say("%s", d.HelpMessage)}
		}
		return []Message{say(helpText)}
	case intent.SwaggerOperation:
		if cmd := strings.TrimSpace(d.SwaggerCommand); isSwaggerCommand(s, cmd) {
			return append([]Message{say("Running '%s'.", cmd)}, p.handleSwagger(ctx, s, cmd)...)
		}
		if d.SwaggerCommand != "" {
			return []Message{say("This needs a document command: %s", d.SwaggerCommand), say(swaggerUsage)}
		}
		return []Message{say(swaggerUsage)}
	default:
		if d.NextStep != "" {
			return []Message{say("%s", d.NextStep)}
		}
		return []Message{say("Sorry, I could not decide how to handle that.")}
	}
}

// understand turns a natural-language request into a pending request.
func (p *Pipeline) understand(ctx context.Context, s *Session, turn string) []Message {
	if p.Understander == nil {
		return []Message{say("Natural-language requests are not available. Use an explicit command such as 'GET /users'.")}
	}
	doc := p.Registry.Current()
	u, err := p.Understander.Understand(ctx, turn, doc)
	if err != nil {
		p.Logger.Warn("understanding failed", "error", err)
		return []Message{say("I could not work out the request. Try an explicit command such as 'GET /users'.")}
	}
	method, endpoint, ok := u.Target()
	if !ok {
		if len(u.MissingInfo) > 0 {
			return []Message{say("More information is needed: %s", strings.Join(u.MissingInfo, ", "))}
		}
		return []Message{say("I could not tell which endpoint to call. Name it, or search with 'search <keyword>'.")}
	}

	if u.NeedsAuth() && p.Auth != nil {
		auth, err := p.Auth.Extract(ctx, turn, string(method)+" "+endpoint)
		if err != nil {
			p.Logger.Warn("auth extraction failed", "error", err)
		} else {
			u.Merge(auth)
		}
	}

	pending, err := p.Builder.Build(method, endpoint, u.Params(), doc, p.Registry.BaseURLOverride())
	if err != nil {
		return buildFailure(err)
	}
	return p.stage(s, pending, u.Description)
}
