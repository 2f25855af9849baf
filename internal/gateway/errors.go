package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	// ErrAuthentication covers rejected credentials and sender registrations.
	ErrAuthentication = errors.New("gateway: authentication failed")
	// ErrServiceUnavailable is returned for 500/503 and unreachable hosts.
	ErrServiceUnavailable = errors.New("gateway: service unavailable")
	// ErrHTTP is any other unexpected HTTP status.
	ErrHTTP = errors.New("gateway: unexpected http status")
	// ErrTimeout marks a connect or read timeout. Only timeouts trigger failover.
	ErrTimeout = errors.New("gateway: timeout")
	// ErrMalformedResponse means the body could not be decoded.
	ErrMalformedResponse = errors.New("gateway: malformed response")
	// ErrUnclassified is a gateway result code with no known meaning.
	ErrUnclassified = errors.New("gateway: unclassified gateway error")
)

// Error is the typed failure returned by the gateway layer.
type Error struct {
	Kind       error
	Op         Operation
	Host       string
	StatusCode int
	// Code is the gateway result code, -1 when none was parsed.
	Code int
	// Reason is the message shown to the account holder.
	Reason  string
	Payload string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Code >= 0 {
		fmt.Fprintf(&b, " #%d", e.Code)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status=%d)", e.StatusCode)
	}
	if e.Host != "" {
		fmt.Fprintf(&b, " host=%s", e.Host)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, reason string) *Error {
	return &Error{Kind: kind, Code: -1, Reason: reason}
}

// AuthError builds an authentication failure with the user-facing reason.
func AuthError(code int, reason string) *Error {
	e := newError(ErrAuthentication, reason)
	e.Code = code
	return e
}

// MalformedError reports an undecodable response body.
func MalformedError(reason, payload string) *Error {
	e := newError(ErrMalformedResponse, reason)
	e.Payload = payload
	return e
}

// UnclassifiedError preserves the raw payload and result code.
func UnclassifiedError(code int, payload string) *Error {
	e := newError(ErrUnclassified, "")
	e.Code = code
	e.Payload = payload
	return e
}

// StatusError classifies a non-success HTTP status.
func StatusError(status int, statusText string) *Error {
	switch status {
	case 403:
		e := newError(ErrAuthentication, "wrong username or password")
		e.StatusCode = status
		return e
	case 500, 503:
		e := newError(ErrServiceUnavailable, "service temporarily unavailable")
		e.StatusCode = status
		return e
	default:
		e := newError(ErrHTTP, statusText)
		e.StatusCode = status
		return e
	}
}

// TransportError classifies a failed round trip. Timeouts become ErrTimeout,
// everything else ErrServiceUnavailable.
func TransportError(err error) *Error {
	if IsTimeoutCause(err) {
		e := newError(ErrTimeout, "")
		e.Err = err
		return e
	}
	e := newError(ErrServiceUnavailable, "connection failed")
	e.Err = err
	return e
}

// IsTimeoutCause reports whether err is a network level timeout.
func IsTimeoutCause(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsTimeout reports whether err was classified as a timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// Reason returns the user-facing reason of a gateway error, or its text.
func Reason(err error) string {
	var gwErr *Error
	if errors.As(err, &gwErr) && gwErr.Reason != "" {
		return gwErr.Reason
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
