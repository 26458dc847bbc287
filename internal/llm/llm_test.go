package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExtractObject(t *testing.T) {
	t.Parallel()
	reply := "Sure! Here is the result:\n```json\n{\"action\": \"provide_help\", \"note\": \"use {braces} and \\\"quotes\\\"\"}\n```\nAnything else?"
	obj, ok := ExtractObject(reply)
	require.True(t, ok)

	var v struct {
		Action string `json:"action"`
		Note   string `json:"note"`
	}
	require.NoError(t, json.Unmarshal([]byte(obj), &v))
	require.Equal(t, "provide_help", v.Action)
	require.Equal(t, `use {braces} and "quotes"`, v.Note)
}

func TestExtractObjectSkipsInvalidCandidates(t *testing.T) {
	t.Parallel()
	obj, ok := ExtractObject(`template {name} then {"ok": true}`)
	require.True(t, ok)
	require.Equal(t, `{"ok": true}`, obj)

	_, ok = ExtractObject("no json here {")
	require.False(t, ok)
}

func TestDecodeObject(t *testing.T) {
	t.Parallel()
	var v map[string]any
	require.ErrorIs(t, DecodeObject("nothing", &v), ErrNoJSON)
	require.NoError(t, DecodeObject(`prefix {"a": 1} suffix`, &v))
	require.Equal(t, float64(1), v["a"])
}

func TestExtractIndices(t *testing.T) {
	t.Parallel()
	got, err := ExtractIndices("The matching endpoints are [0, 2, \"x\", 2.5, 7] based on the descriptions.")
	require.NoError(t, err)
	require.Equal(t, []int{0, 2, 7}, got)

	_, err = ExtractIndices("none match")
	require.ErrorIs(t, err, ErrNoJSON)

	got, err = ExtractIndices("[]")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestCompleterFunc(t *testing.T) {
	t.Parallel()
	var c Completer = CompleterFunc(func(ctx context.Context, msgs []Message) (string, error) {
		return msgs[len(msgs)-1].Content, nil
	})
	out, err := c.Complete(context.Background(), []Message{System("s"), User("echo")})
	require.NoError(t, err)
	require.Equal(t, "echo", out)
}

func chatServer(t *testing.T, fail int32) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if n <= fail {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"busy","type":"server_error"}}`))
			return
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   req.Model,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]string{"role": "assistant", "content": "echo: " + req.Messages[len(req.Messages)-1].Content},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestClientComplete(t *testing.T) {
	t.Parallel()
	srv, calls := chatServer(t, 0)
	c, err := NewClient(Config{BaseURL: srv.URL + "/v1", Model: "test-model", RequestsPerSecond: 100, Burst: 1})
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), []Message{System("be brief"), User("hello")})
	require.NoError(t, err)
	require.Equal(t, "echo: hello", out)
	require.EqualValues(t, 1, atomic.LoadInt32(calls))
}

func TestClientRetriesServerErrors(t *testing.T) {
	t.Parallel()
	srv, calls := chatServer(t, 2)
	c, err := NewClient(Config{BaseURL: srv.URL + "/v1", Model: "m", MaxRetries: 2, BackoffBase: time.Millisecond})
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), []Message{User("again")})
	require.NoError(t, err)
	require.Equal(t, "echo: again", out)
	require.EqualValues(t, 3, atomic.LoadInt32(calls))
}

func TestClientGivesUpAfterRetries(t *testing.T) {
	t.Parallel()
	srv, calls := chatServer(t, 10)
	c, err := NewClient(Config{BaseURL: srv.URL + "/v1", Model: "m", MaxRetries: 1, BackoffBase: time.Millisecond})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), []Message{User("x")})
	require.Error(t, err)
	require.EqualValues(t, 2, atomic.LoadInt32(calls))
}

func TestNewClientRequiresModel(t *testing.T) {
	t.Parallel()
	_, err := NewClient(Config{})
	require.Error(t, err)
}
