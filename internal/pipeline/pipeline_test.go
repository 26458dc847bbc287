package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mark3labs/postai/internal/intent"
	"github.com/mark3labs/postai/internal/llm"
	"github.com/mark3labs/postai/internal/metrics"
	"github.com/mark3labs/postai/internal/request"
	"github.com/mark3labs/postai/internal/search"
	"github.com/mark3labs/postai/internal/spec"
	"github.com/mark3labs/postai/internal/store"
)

func usersDoc(baseURL string) *spec.Document {
	return &spec.Document{
		Title:       "Users",
		Version:     "1.0",
		SpecVersion: spec.OpenAPIV3,
		BaseURL:     baseURL,
		Endpoints: []spec.Endpoint{
			{Path: "/users", Method: spec.GET, Summary: "List users", OperationID: "listUsers", Tags: []string{"users"}},
			{Path: "/users", Method: spec.POST, Summary: "Create a user", OperationID: "createUser", Tags: []string{"users"}},
			{Path: "/users/{id}", Method: spec.GET, Summary: "Get a user", OperationID: "getUser", Parameters: []spec.Parameter{
				{Name: "id", Location: spec.InPath, Required: true},
			}},
			{Path: "/orders", Method: spec.GET, Summary: "List orders", Description: "Past purchases", OperationID: "listOrders"},
		},
	}
}

// fakeAPI records every request it serves.
type fakeAPI struct {
	*httptest.Server
	hits  atomic.Int32
	paths chan string
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{paths: make(chan string, 16)}
	api.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.hits.Add(1)
		api.paths <- r.Method + " " + r.URL.RequestURI()
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/users":
			_, _ = io.WriteString(w, `[{"id": 1, "name": "ada"}, {"id": 2, "name": "linus"}]`)
		case "/panic":
			_, _ = io.WriteString(w, `{}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error": "not found"}`)
		}
	}))
	t.Cleanup(api.Close)
	return api
}

func newPipeline(t *testing.T, completer llm.Completer) (*Pipeline, store.Store) {
	t.Helper()
	st := store.NewFileStore(t.TempDir(), nil)
	deps := Deps{
		Store:     st,
		Transport: request.NewHTTPTransport(nil),
		Metrics:   metrics.New(),
		LoadOptions: []spec.Option{
			spec.WithMaxRetries(0),
			spec.WithBackoffBase(time.Millisecond),
		},
	}
	if completer != nil {
		deps.Search = search.NewEngine(completer, 8, nil)
		deps.Classifier = intent.NewClassifier(completer, nil)
		deps.Understander = intent.NewUnderstander(completer, nil)
		deps.Auth = intent.NewAuthExtractor(completer, nil)
	}
	return New(deps), st
}

func joined(msgs []Message) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, "\n")
}

func TestConfirmExecutesPendingRequest(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)
	p, _ := newPipeline(t, nil)
	p.Registry.SetCurrent(usersDoc(api.URL), "users")
	s := &Session{}

	out := p.Handle(context.Background(), s, "GET /users")
	require.NotNil(t, s.Pending)
	require.Equal(t, api.URL+"/users", s.Pending.URL)
	require.Contains(t, joined(out), confirmHint)
	require.Zero(t, api.hits.Load(), "nothing runs before confirmation")

	out = p.Handle(context.Background(), s, "실행")
	require.Nil(t, s.Pending)
	require.Equal(t, int32(1), api.hits.Load())
	require.Equal(t, "GET /users", <-api.paths)
	text := joined(out)
	require.Contains(t, text, "200 OK")
	require.Contains(t, text, "| id | name |")

	out = p.Handle(context.Background(), s, "execute")
	require.Contains(t, joined(out), "no pending request")
	require.Equal(t, int32(1), api.hits.Load())
}

func TestNewRequestSupersedesPending(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)
	p, _ := newPipeline(t, nil)
	p.Registry.SetCurrent(usersDoc(api.URL), "users")
	s := &Session{}

	p.Handle(context.Background(), s, "GET /orders")
	out := p.Handle(context.Background(), s, "GET /users page=2")
	require.Contains(t, joined(out), "was replaced")

	p.Handle(context.Background(), s, "Execute!")
	require.Equal(t, "GET /users?page=2", <-api.paths)
	require.Equal(t, int32(1), api.hits.Load())
}

func TestCancel(t *testing.T) {
	t.Parallel()
	p, _ := newPipeline(t, nil)
	p.Registry.SetCurrent(usersDoc("http://127.0.0.1:1"), "users")
	s := &Session{}

	require.Contains(t, joined(p.Handle(context.Background(), s, "cancel")), "no pending request to cancel")

	p.Handle(context.Background(), s, "GET /users")
	require.NotNil(t, s.Pending)
	require.Equal(t, "Request cancelled.", joined(p.Handle(context.Background(), s, "취소")))
	require.Nil(t, s.Pending)
	require.Contains(t, joined(p.Handle(context.Background(), s, "실행")), "no pending request")
}

func TestMissingBaseURLGivesGuidance(t *testing.T) {
	t.Parallel()
	p, _ := newPipeline(t, nil)
	s := &Session{}
	out := p.Handle(context.Background(), s, "GET /users")
	require.Nil(t, s.Pending)
	require.Contains(t, joined(out), "set-base-url")
}

func TestBaseURLDirective(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)
	p, _ := newPipeline(t, nil)
	p.Registry.SetCurrent(usersDoc("https://unused.example.com"), "users")
	s := &Session{}

	out := p.Handle(context.Background(), s, "set-base-url "+api.URL)
	require.Contains(t, joined(out), "Base URL set")
	require.Equal(t, api.URL, p.Registry.BaseURLOverride())

	p.Handle(context.Background(), s, "GET /users/7")
	require.Equal(t, api.URL+"/users/7", s.Pending.URL)
	require.Equal(t, "GET /users/{id}", s.Pending.Endpoint)

	// Any value is kept; an unusable one fails when the request runs.
	p.Handle(context.Background(), s, "baseurl ftp://nope")
	require.Equal(t, "ftp://nope", p.Registry.BaseURLOverride())
	p.Handle(context.Background(), s, "GET /users/7")
	require.Equal(t, "ftp://nope/users/7", s.Pending.URL)
	out = p.Handle(context.Background(), s, "execute")
	require.Contains(t, joined(out), "absolute http(s) URL")
	require.Nil(t, s.Pending)

	p.Handle(context.Background(), s, "set-base-url reset")
	require.Empty(t, p.Registry.BaseURLOverride())
	require.Nil(t, s.Pending)
}

func TestRequiredParametersAreAdvisory(t *testing.T) {
	t.Parallel()
	p, _ := newPipeline(t, nil)
	p.Registry.SetCurrent(usersDoc("http://127.0.0.1:1"), "users")
	s := &Session{}
	out := p.Handle(context.Background(), s, "GET /users/{id}")
	require.NotNil(t, s.Pending)
	require.Contains(t, joined(out), "id (path)")
	require.Contains(t, joined(out), "execute it as is")
}

func TestSwaggerDeleteMissing(t *testing.T) {
	t.Parallel()
	p, _ := newPipeline(t, nil)
	out := p.Handle(context.Background(), &Session{}, "swagger delete missingname")
	require.Contains(t, joined(out), "There is no document named 'missingname'")
}

func TestSwaggerSaveLoadAndDelete(t *testing.T) {
	t.Parallel()
	p, st := newPipeline(t, nil)
	s := &Session{}
	ctx := context.Background()

	require.Contains(t, joined(p.Handle(ctx, s, "swagger save x")), "no document to save")

	p.Registry.SetCurrent(usersDoc("https://a.example.com"), "a")
	require.Contains(t, joined(p.Handle(ctx, s, "swagger save a")), "Saved")
	p.Registry.SetCurrent(usersDoc("https://b.example.com"), "b")
	require.Contains(t, joined(p.Handle(ctx, s, "swagger save B")), "as 'b'")

	names, err := st.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, names)
	require.Contains(t, joined(p.Handle(ctx, s, "swagger list")), "a\nb")

	p.Registry.Clear()
	out := p.Handle(ctx, s, "swagger load a, b, ghost")
	text := joined(out)
	require.Contains(t, text, "Loaded 2 documents")
	require.Contains(t, text, "ghost: not saved")
	require.Equal(t, "b", p.Registry.CurrentName())

	loaded := joined(p.Handle(ctx, s, "swagger loaded"))
	require.Contains(t, loaded, "Loaded documents (2)")
	require.Contains(t, loaded, "*")

	// Removing the current document reassigns current to the remaining one.
	out = p.Handle(ctx, s, "swagger remove b")
	require.Contains(t, joined(out), "Current document: 'a'")
	require.Equal(t, "a", p.Registry.CurrentName())

	require.Contains(t, joined(p.Handle(ctx, s, "swagger select nope")), "No loaded document")
	require.Contains(t, joined(p.Handle(ctx, s, "swagger use A")), "Switched to 'a'")

	out = p.Handle(ctx, s, "swagger clear")
	require.Contains(t, joined(out), "Deleted 1 saved document(s) and unloaded 1")
	require.Zero(t, p.Registry.Len())
	require.Contains(t, joined(p.Handle(ctx, s, "swagger load all")), "no saved documents")
}

func TestSwaggerLoadAllSelectsFirst(t *testing.T) {
	t.Parallel()
	p, st := newPipeline(t, nil)
	ctx := context.Background()
	for _, n := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, st.Save(ctx, n, usersDoc("https://"+n+".example.com")))
	}
	out := p.Handle(ctx, &Session{}, "swagger load")
	require.Contains(t, joined(out), "Loaded 3 documents")
	require.Equal(t, "alpha", p.Registry.CurrentName())
	require.Equal(t, 3, p.Registry.Len())
}

const petstoreSwagger = `{
  "swagger": "2.0",
  "info": {"title": "Swagger Petstore", "version": "1.0.7"},
  "host": "petstore.swagger.io",
  "basePath": "/v2",
  "schemes": ["https"],
  "paths": {
    "/pet/findByStatus": {"get": {"summary": "Finds Pets by status", "operationId": "findPetsByStatus",
      "parameters": [{"name": "status", "in": "query", "required": true, "type": "string"}]}}
  }
}`

func TestLoadByURLThenBuild(t *testing.T) {
	t.Parallel()
	docs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, petstoreSwagger)
	}))
	defer docs.Close()

	p, _ := newPipeline(t, nil)
	s := &Session{}
	out := p.Handle(context.Background(), s, docs.URL+"/swagger.json 문서 로드해줘")
	text := joined(out)
	require.Contains(t, text, "Swagger Petstore")
	require.Contains(t, text, "GET /pet/findByStatus - Finds Pets by status")
	require.Equal(t, "swagger_petstore", p.Registry.CurrentName())
	require.Equal(t, []string{docs.URL + "/swagger.json"}, p.Registry.RecentURLs())

	loaded := joined(p.Handle(context.Background(), s, "swagger loaded"))
	require.Contains(t, loaded, "swagger_petstore")
	require.Contains(t, loaded, "Recently loaded URLs")
	require.Contains(t, loaded, docs.URL+"/swagger.json")

	p.Handle(context.Background(), s, "GET /pet/findByStatus status=available")
	require.Equal(t, "https://petstore.swagger.io/v2/pet/findByStatus", s.Pending.URL)
	require.Equal(t, map[string]string{"status": "available"}, s.Pending.QueryParams)
	require.Empty(t, s.Pending.Missing)

	out = p.Handle(context.Background(), s, "load http://127.0.0.1:1/missing.json")
	require.Contains(t, joined(out), "could not be loaded")
}

func TestSearchPostFilter(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	completer := llm.CompleterFunc(func(_ context.Context, msgs []llm.Message) (string, error) {
		calls.Add(1)
		// Index 3 exists, 42 does not.
		return "Matches: [3, 42, 3]", nil
	})
	p, _ := newPipeline(t, completer)
	p.Registry.SetCurrent(usersDoc("http://127.0.0.1:1"), "users")
	s := &Session{}

	out := p.Handle(context.Background(), s, "search users")
	text := joined(out)
	require.Contains(t, text, "Found 3 endpoint(s)")
	require.Contains(t, text, "| GET | /users | List users | listUsers |")
	require.Zero(t, calls.Load())

	out = p.Handle(context.Background(), s, "search purchase history")
	text = joined(out)
	require.Contains(t, text, "Found 1 endpoint(s)")
	require.Contains(t, text, "by meaning")
	require.Contains(t, text, "/orders")
	require.Equal(t, int32(1), calls.Load())

	require.Contains(t, joined(p.Handle(context.Background(), s, "search request id")), "/users/{id}")
}

func TestSearchNeedsDocument(t *testing.T) {
	t.Parallel()
	p, _ := newPipeline(t, nil)
	require.Contains(t, joined(p.Handle(context.Background(), &Session{}, "검색 users")), "Load an API document")
}

func TestHelp(t *testing.T) {
	t.Parallel()
	p, _ := newPipeline(t, nil)
	require.Contains(t, joined(p.Handle(context.Background(), &Session{}, "도움말")), "swagger load all")
}

// scripted answers each prompt kind by the opening of its system prompt.
func scripted(replies map[string]string) llm.Completer {
	return llm.CompleterFunc(func(_ context.Context, msgs []llm.Message) (string, error) {
		for prefix, reply := range replies {
			if strings.HasPrefix(msgs[0].Content, prefix) {
				return reply, nil
			}
		}
		return "", fmt.Errorf("unexpected prompt %.40q", msgs[0].Content)
	})
}

func TestAssistBuildsRequest(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)
	p, _ := newPipeline(t, scripted(map[string]string{
		"You route turns":           `{"action": "process_api_request", "nextStep": "build"}`,
		"You turn natural-language": `{"endpoint": "/users/{id}", "method": "GET", "queryParams": {"id": 5}, "description": "Fetch user 5", "missingInfo": ["auth token"]}`,
		"You attach credentials":    `{"authType": "bearer", "headers": {"Authorization": "Bearer abc"}}`,
	}))
	p.Registry.SetCurrent(usersDoc(api.URL), "users")
	s := &Session{}

	out := p.Handle(context.Background(), s, "show me user 5 with token abc")
	require.NotNil(t, s.Pending)
	require.Equal(t, api.URL+"/users/5", s.Pending.URL)
	auth, _ := s.Pending.Header("authorization")
	require.Equal(t, "Bearer abc", auth)
	require.Contains(t, joined(out), "Fetch user 5")

	var previewed map[string]any
	for _, m := range out {
		if m.CodeBlock {
			require.NoError(t, json.Unmarshal([]byte(m.Content), &previewed))
		}
	}
	require.Equal(t, "GET", previewed["method"])
}

func TestAssistActions(t *testing.T) {
	t.Parallel()
	cases := []struct {
		reply string
		want  string
	}{
		{`{"action": "request_more_info", "missingInfo": ["user id"]}`, "More information is needed: user id"},
		{`{"action": "provide_help", "helpMessage": "Try GET /users"}`, "Try GET /users"},
		{`{"action": "other_operation", "nextStep": "Hello there"}`, "Hello there"},
		{`{"action": "swagger_operation", "swaggerCommand": "swagger list"}`, "There are no saved documents"},
		{`I think you want to list users`, "could not determine"},
	}
	for _, tc := range cases {
		p, _ := newPipeline(t, scripted(map[string]string{"You route turns": tc.reply}))
		require.Contains(t, joined(p.Handle(context.Background(), &Session{}, "hmm")), tc.want, tc.reply)
	}
}

func TestAssistSavesDocumentFromURL(t *testing.T) {
	t.Parallel()
	docs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, petstoreSwagger)
	}))
	defer docs.Close()

	p, st := newPipeline(t, scripted(map[string]string{
		"You route turns": `{"action": "swagger_operation", "swaggerCommand": "swagger save ` + docs.URL + `/swagger.json petstore"}`,
	}))
	p.Registry.SetCurrent(usersDoc("http://127.0.0.1:1"), "users")
	ctx := context.Background()

	out := p.Handle(ctx, &Session{}, "save the petstore docs as petstore")
	require.Contains(t, joined(out), `Saved "Swagger Petstore" as 'petstore'.`)
	require.NotContains(t, joined(out), "Save it for later")

	names, err := st.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"petstore"}, names)
	saved, err := st.Load(ctx, "petstore")
	require.NoError(t, err)
	require.Equal(t, "Swagger Petstore", saved.Title)
	require.Equal(t, "Swagger Petstore", p.Registry.Current().Title)
	require.Equal(t, []string{docs.URL + "/swagger.json"}, p.Registry.RecentURLs())

	// An unreachable URL saves nothing.
	out = p.Handle(ctx, &Session{}, "swagger save http://127.0.0.1:1/missing.json broken")
	require.Contains(t, joined(out), "could not be loaded")
	names, err = st.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"petstore"}, names)
}

func TestAssistWithoutModel(t *testing.T) {
	t.Parallel()
	p, _ := newPipeline(t, nil)
	require.Contains(t, joined(p.Handle(context.Background(), &Session{}, "hello")), "explicit commands")
}

type panicTransport struct{}

func (panicTransport) Execute(context.Context, *request.PendingRequest) (*request.Response, error) {
	panic("boom")
}

func TestPanicsBecomeMessages(t *testing.T) {
	t.Parallel()
	p, _ := newPipeline(t, nil)
	p.Transport = panicTransport{}
	p.Registry.SetCurrent(usersDoc("http://127.0.0.1:1"), "users")
	s := &Session{}
	p.Handle(context.Background(), s, "GET /users")
	out := p.Handle(context.Background(), s, "실행")
	require.Contains(t, joined(out), "Something went wrong")
	require.Equal(t, RoleAssistant, s.Transcript[len(s.Transcript)-1].Role)
}

func TestTranscriptAndHistory(t *testing.T) {
	t.Parallel()
	var seen []llm.Message
	p, _ := newPipeline(t, llm.CompleterFunc(func(_ context.Context, msgs []llm.Message) (string, error) {
		seen = msgs
		return `{"action": "other_operation", "nextStep": "ok"}`, nil
	}))
	s := &Session{}
	p.Handle(context.Background(), s, "help")
	p.Handle(context.Background(), s, "what now")
	require.Len(t, s.Transcript, 4)
	// system prompt, prior user turn, prior answer, current turn
	require.Len(t, seen, 4)
	require.Equal(t, "help", seen[1].Content)
	require.Equal(t, "what now", seen[3].Content)
}
