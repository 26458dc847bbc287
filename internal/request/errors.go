package request

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
)

// MissingBaseURLError is returned for a relative path when neither an
// override nor the current document supplies a base URL.
type MissingBaseURLError struct {
	Path string
}

func (e *MissingBaseURLError) Error() string {
	return fmt.Sprintf("no base URL to resolve %q", e.Path)
}

// Guidance lists the ways the user can supply a base URL.
func (e *MissingBaseURLError) Guidance() string {
	return "Use an absolute URL (GET https://api.example.com" + e.Path + "), " +
		"set one with 'set-base-url <url>', or load an API document first."
}

// Transport error codes.
const (
	CodeTimeout    = "ETIMEDOUT"
	CodeNotFound   = "ENOTFOUND"
	CodeRefused    = "ECONNREFUSED"
	CodeNetwork    = "ENETWORK"
	CodeBadRequest = "EBADREQUEST"
)

// TransportError is a connection-level failure. HTTP error statuses are
// responses, not TransportErrors.
type TransportError struct {
	Code    string
	Message string
	Cause   error
}

func (e *TransportError) Error() string { return e.Code + ": " + e.Message }
func (e *TransportError) Unwrap() error { return e.Cause }

func classify(err error) *TransportError {
	var te *TransportError
	if errors.As(err, &te) {
		return te
	}
	code := CodeNetwork
	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		code = CodeTimeout
	case errors.As(err, &dnsErr):
		code = CodeNotFound
		if dnsErr.IsTimeout {
			code = CodeTimeout
		}
	case errors.Is(err, syscall.ECONNREFUSED):
		code = CodeRefused
	case errors.As(err, &netErr) && netErr.Timeout():
		code = CodeTimeout
	}
	msg := err.Error()
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		msg = urlErr.Err.Error()
	}
	return &TransportError{Code: code, Message: msg, Cause: err}
}
