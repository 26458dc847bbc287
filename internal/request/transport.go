package request

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-hclog"
)

// MaxResponseBytes caps how much of a response body is read.
const MaxResponseBytes = 10 << 20

// Response is a completed HTTP exchange, whatever its status.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Duration   time.Duration
	Truncated  bool
}

// Transport executes pending requests. Implementations return a
// *TransportError only for connection-level failures.
type Transport interface {
	Execute(ctx context.Context, req *PendingRequest) (*Response, error)
}

// HTTPTransport executes requests over net/http without retries.
type HTTPTransport struct {
	client *http.Client
	logger hclog.Logger
}

func NewHTTPTransport(logger hclog.Logger) *HTTPTransport {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &HTTPTransport{client: cleanhttp.DefaultPooledClient(), logger: logger.Named("request")}
}

func (t *HTTPTransport) Execute(ctx context.Context, req *PendingRequest) (*Response, error) {
	target, err := withQuery(req.URL, req.QueryParams)
	if err != nil {
		return nil, &TransportError{Code: CodeBadRequest, Message: err.Error(), Cause: err}
	}
	timeout := time.Duration(req.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = DefaultTimeoutMs * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if len(req.Body) > 0 && req.Method != "GET" && req.Method != "HEAD" {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, string(req.Method), target, body)
	if err != nil {
		return nil, &TransportError{Code: CodeBadRequest, Message: err.Error(), Cause: err}
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	t.logger.Debug("executing request", "id", req.ID, "method", req.Method, "url", target)
	start := time.Now()
	resp, err := t.client.Do(httpReq)
	if err != nil {
		te := classify(err)
		t.logger.Warn("request failed", "id", req.ID, "code", te.Code, "error", err)
		return nil, te
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes+1))
	if err != nil {
		return nil, classify(err)
	}
	out := &Response{
		StatusCode: resp.StatusCode,
		Headers:    make(map[string]string, len(resp.Header)),
		Duration:   time.Since(start),
	}
	if len(data) > MaxResponseBytes {
		data = data[:MaxResponseBytes]
		out.Truncated = true
	}
	out.Body = data
	for k, vs := range resp.Header {
		out.Headers[strings.ToLower(k)] = strings.Join(vs, ", ")
	}
	t.logger.Debug("request complete", "id", req.ID, "status", resp.StatusCode, "duration", out.Duration)
	return out, nil
}

func withQuery(raw string, params map[string]string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("not an absolute URL: %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q in %q", u.Scheme, raw)
	}
	if len(params) == 0 {
		return u.String(), nil
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
