// Package pipeline routes conversation turns to document management,
// endpoint search, request building and execution.
package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/mark3labs/postai/internal/intent"
	"github.com/mark3labs/postai/internal/llm"
	"github.com/mark3labs/postai/internal/metrics"
	"github.com/mark3labs/postai/internal/registry"
	"github.com/mark3labs/postai/internal/request"
	"github.com/mark3labs/postai/internal/search"
	"github.com/mark3labs/postai/internal/spec"
	"github.com/mark3labs/postai/internal/store"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the conversation. Code blocks carry an optional
// language for highlighting.
type Message struct {
	Role      Role
	Content   string
	CodeBlock bool
	Language  string
}

func say(format string, args ...any) Message {
	return Message{Role: RoleAssistant, Content: fmt.Sprintf(format, args...)}
}

func code(language, content string) Message {
	return Message{Role: RoleAssistant, Content: content, CodeBlock: true, Language: language}
}

// Session is the state of one conversation. At most one request waits for
// confirmation at a time.
type Session struct {
	Pending    *request.PendingRequest
	Transcript []Message
}

// Deps are the collaborators of a Pipeline. Registry, Store and Transport
// are required; a nil Classifier disables the model fallback.
type Deps struct {
	Registry     *registry.Registry
	Store        store.Store
	Search       *search.Engine
	Builder      *request.Builder
	Transport    request.Transport
	Classifier   *intent.Classifier
	Understander *intent.Understander
	Auth         *intent.AuthExtractor
	LoadOptions  []spec.Option
	Metrics      *metrics.Metrics
	Logger       hclog.Logger
}

type rule struct {
	name   string
	match  func(s *Session, turn string) bool
	handle func(ctx context.Context, s *Session, turn string) []Message
}

// Pipeline evaluates its rules in order and lets the first match handle the
// turn.
type Pipeline struct {
	Deps
	rules []rule
}

func New(deps Deps) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = hclog.NewNullLogger()
	}
	deps.Logger = deps.Logger.Named("pipeline")
	if deps.Registry == nil {
		deps.Registry = registry.New()
	}
	if deps.Builder == nil {
		deps.Builder = request.NewBuilder(0)
	}
	if deps.Search == nil {
		deps.Search = search.NewEngine(nil, 0, deps.Logger)
	}
	p := &Pipeline{Deps: deps}
	p.rules = []rule{
		{"base_url", isBaseURLDirective, p.handleBaseURL},
		{"confirm", isConfirm, p.handleConfirm},
		{"cancel", isCancel, p.handleCancel},
		{"command", func(_ *Session, turn string) bool { return request.IsCommand(turn) }, p.handleCommand},
		{"swagger", isSwaggerCommand, p.handleSwagger},
		{"load_url", isDocumentLoad, p.handleLoadURL},
		{"help", isHelp, p.handleHelp},
		{"search", func(_ *Session, turn string) bool { return search.IsSearchTurn(turn) }, p.handleSearch},
		{"assist", func(*Session, string) bool { return true }, p.handleAssist},
	}
	return p
}

// Handle answers one turn. It never panics and always returns at least one
// message; both the turn and the answer are appended to the transcript.
func (p *Pipeline) Handle(ctx context.Context, s *Session, turn string) (out []Message) {
	turn = strings.TrimSpace(turn)
	s.Transcript = append(s.Transcript, Message{Role: RoleUser, Content: turn})
	defer func() {
		if r := recover(); r != nil {
			p.Logger.Error("turn handler panicked", "panic", r, "stack", string(debug.Stack()))
			out = []Message{say("Something went wrong while handling that. Please try again.")}
		}
		s.Transcript = append(s.Transcript, out...)
	}()

	if turn == "" {
		return []Message{say("Type a request, a command, or 'help'.")}
	}
	for _, r := range p.rules {
		if !r.match(s, turn) {
			continue
		}
		p.Logger.Debug("turn matched", "rule", r.name)
		p.Metrics.Turn(r.name)
		out = r.handle(ctx, s, turn)
		if len(out) == 0 {
			out = []Message{say("Done.")}
		}
		return out
	}
	return []Message{say("I could not handle that. Type 'help' to see what I can do.")}
}

// maxHistory bounds the prior messages sent to the classifier.
const maxHistory = 10

// history returns the transcript before the current turn as model input.
func history(s *Session) []llm.Message {
	prior := s.Transcript
	if n := len(prior); n > 0 && prior[n-1].Role == RoleUser {
		prior = prior[:n-1]
	}
	if len(prior) > maxHistory {
		prior = prior[len(prior)-maxHistory:]
	}
	out := make([]llm.Message, 0, len(prior))
	for _, m := range prior {
		role := llm.RoleUser
		if m.Role == RoleAssistant {
			role = llm.RoleAssistant
		}
		out = append(out, llm.Message{Role: role, Content: m.Content})
	}
	return out
}

// word lower-cases turn and drops surrounding punctuation so "Execute!"
// and "실행." match.
func word(turn string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(turn), ".!?'\""))
}

func isConfirm(_ *Session, turn string) bool {
	w := word(turn)
	return w == "실행" || w == "execute"
}

func isCancel(_ *Session, turn string) bool {
	w := word(turn)
	return w == "취소" || w == "cancel"
}

func isHelp(_ *Session, turn string) bool {
	w := word(turn)
	return w == "help" || w == "도움말"
}
