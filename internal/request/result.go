package request

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

type ExecError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ExecutionResult is the outcome of running a PendingRequest. Status is
// success whenever the server answered, including error statuses.
type ExecutionResult struct {
	Status         Status            `json:"status"`
	StatusCode     *int              `json:"statusCode"`
	ResponseTimeMs int64             `json:"responseTimeMs"`
	Headers        map[string]string `json:"headers,omitempty"`
	// Body is the decoded JSON value, or the raw text for non-JSON replies.
	Body      any        `json:"body"`
	Size      int        `json:"size"`
	Truncated bool       `json:"truncated,omitempty"`
	Error     *ExecError `json:"error,omitempty"`
	Request   string     `json:"request"`
}

// OK reports a 2xx reply.
func (r ExecutionResult) OK() bool {
	return r.Status == StatusSuccess && r.StatusCode != nil && *r.StatusCode >= 200 && *r.StatusCode < 300
}

// Run executes req and folds every outcome into an ExecutionResult.
func Run(ctx context.Context, t Transport, req *PendingRequest) ExecutionResult {
	start := time.Now()
	resp, err := t.Execute(ctx, req)
	if err != nil {
		res := ExecutionResult{
			Status:         StatusError,
			ResponseTimeMs: time.Since(start).Milliseconds(),
			Request:        req.Summary(),
		}
		var te *TransportError
		if errors.As(err, &te) {
			res.Error = &ExecError{Name: "TransportError", Message: te.Message, Code: te.Code}
		} else {
			res.Error = &ExecError{Name: "Error", Message: err.Error()}
		}
		return res
	}
	code := resp.StatusCode
	return ExecutionResult{
		Status:         StatusSuccess,
		StatusCode:     &code,
		ResponseTimeMs: resp.Duration.Milliseconds(),
		Headers:        resp.Headers,
		Body:           decodeBody(resp.Body),
		Size:           len(resp.Body),
		Truncated:      resp.Truncated,
		Request:        req.Summary(),
	}
}

func decodeBody(data []byte) any {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err == nil {
		return v
	}
	return string(data)
}
