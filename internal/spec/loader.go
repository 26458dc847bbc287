package spec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

// ErrorCode categorizes loader errors for clearer handling and messaging.
type ErrorCode string

const (
	InputError      ErrorCode = "InputError"
	NetworkError    ErrorCode = "NetworkError"
	ParseError      ErrorCode = "ParseError"
	UnsupportedSpec ErrorCode = "UnsupportedSpec"
)

// SpecError is a structured error carrying the source location.
type SpecError struct {
	Code     ErrorCode
	Message  string
	Location string // file path or URL
	Cause    error
}

func (e *SpecError) Error() string { return e.Message }
func (e *SpecError) Unwrap() error { return e.Cause }

// IsCode reports whether err is a SpecError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var se *SpecError
	return errors.As(err, &se) && se.Code == code
}

// Settings configures loader behavior.
type Settings struct {
	// HTTPTimeout bounds each HTTP request.
	HTTPTimeout time.Duration
	// MaxRetries is the number of attempts for transient HTTP failures
	// (>=500, 429, or network errors).
	MaxRetries int
	// BackoffBase is the base delay for exponential backoff.
	BackoffBase time.Duration
	// Build options applied when flattening the document.
	Build []BuildOption
}

// DefaultSettings returns recommended defaults.
func DefaultSettings() Settings {
	return Settings{
		HTTPTimeout: 10 * time.Second,
		MaxRetries:  3,
		BackoffBase: 200 * time.Millisecond,
	}
}

// Option mutates Settings.
type Option func(*Settings)

func WithHTTPTimeout(d time.Duration) Option { return func(s *Settings) { s.HTTPTimeout = d } }
func WithMaxRetries(n int) Option { return func(s *Settings) { s.MaxRetries = n } }
func WithBackoffBase(d time.Duration) Option { return func(s *Settings) { s.BackoffBase = d } }
func WithBuild(opts ...BuildOption) Option { return func(s *Settings) { s.Build = append(s.Build, opts...) } }

// Load fetches and parses an API description from an http/https URL or a
// local file path. file:// URLs are rejected.
func Load(ctx context.Context, input string, opts ...Option) (*Document, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, &SpecError{Code: InputError, Message: "spec: input is empty"}
	}

	settings := DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}

	u, uerr := url.Parse(input)
	isURL := uerr == nil && u.Scheme != "" && u.Host != ""

	if isURL {
		scheme := strings.ToLower(u.Scheme)
		if scheme == "file" {
			return nil, &SpecError{Code: InputError, Message: "spec: file:// URLs are blocked", Location: input}
		}
		if scheme != "http" && scheme != "https" {
			return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("spec: unsupported URL scheme %q (only http/https allowed)", scheme), Location: input}
		}
		raw, err := fetchWithRetry(ctx, input, settings)
		if err != nil {
			return nil, &SpecError{Code: NetworkError, Message: fmt.Sprintf("fetch %s: %v", input, err), Location: input, Cause: err}
		}
		return Parse(raw, input, settings.Build...)
	}

	abs, err := filepath.Abs(input)
	if err != nil {
		return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("resolve path: %v", err), Location: input, Cause: err}
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("read file %s: %v", abs, err), Location: abs, Cause: err}
	}
	return Parse(raw, abs, settings.Build...)
}

// MaxDocumentBytes bounds a fetched document.
const MaxDocumentBytes = 32 << 20

// transientError marks a fetch failure worth another attempt.
type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// fetchWithRetry makes up to settings.MaxRetries attempts, doubling the
// wait after each transient failure.
func fetchWithRetry(ctx context.Context, rawURL string, settings Settings) ([]byte, error) {
	client := cleanhttp.DefaultClient()
	client.Timeout = settings.HTTPTimeout
	wait := settings.BackoffBase
	if wait <= 0 {
		wait = 200 * time.Millisecond
	}
	attempts := max(settings.MaxRetries, 1)

	for attempt := 1; ; attempt++ {
		data, err := fetchOnce(ctx, client, rawURL)
		var te *transientError
		if err == nil || !errors.As(err, &te) || attempt >= attempts {
			return data, err
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		wait *= 2
	}
}

func fetchOnce(ctx context.Context, client *http.Client, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json, application/yaml;q=0.9, */*;q=0.5")
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, &transientError{err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, &transientError{fmt.Errorf("server answered %s", resp.Status)}
	case resp.StatusCode >= 300:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("server answered %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxDocumentBytes+1))
	if err != nil {
		return nil, &transientError{err}
	}
	if len(data) > MaxDocumentBytes {
		return nil, fmt.Errorf("document is larger than %d bytes", MaxDocumentBytes)
	}
	return data, nil
}
