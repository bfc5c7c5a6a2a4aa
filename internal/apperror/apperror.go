// Package apperror classifies failures from remote services into a closed set
// of kinds. Classification happens exactly once, at the HTTP boundary; callers
// branch on the kind instead of inspecting error strings.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	NotFound  Kind = "NOT_FOUND"
	Forbidden Kind = "FORBIDDEN"
	Transient Kind = "TRANSIENT"
	Other     Kind = "OTHER"
)

// RemoteError is a classified failure from a remote call.
type RemoteError struct {
	kind    Kind
	op      string
	status  int
	message string
}

func New(kind Kind, op, message string) *RemoteError {
	return &RemoteError{kind: kind, op: op, message: message}
}

// FromStatus classifies an HTTP status code. 404 maps to NotFound, 401/403 to
// Forbidden, rate limits and server errors to Transient, everything else to
// Other.
func FromStatus(op string, status int, message string) *RemoteError {
	var kind Kind
	switch {
	case status == http.StatusNotFound:
		kind = NotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = Forbidden
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500:
		kind = Transient
	default:
		kind = Other
	}
	return &RemoteError{kind: kind, op: op, status: status, message: message}
}

func (e *RemoteError) Error() string {
	if e.status != 0 {
		return fmt.Sprintf("%s: HTTP %d: %s", e.op, e.status, e.message)
	}
	return fmt.Sprintf("%s: %s", e.op, e.message)
}

func (e *RemoteError) Kind() Kind  { return e.kind }
func (e *RemoteError) Status() int { return e.status }
func (e *RemoteError) Op() string  { return e.op }

// KindOf extracts the classification from an error chain. Errors that did not
// pass through the remote boundary are Other.
func KindOf(err error) Kind {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Kind()
	}
	return Other
}
