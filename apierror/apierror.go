// Package apierror defines the single error kind surfaced by account and
// access-control operations. Every failure a client is allowed to see is an
// *Error carrying a kind, an HTTP status and either a message list or
// per-field messages.
package apierror

import (
	"errors"
	"net/http"
	"sort"
	"strings"
)

type Kind string

const (
	KindValidation           Kind = "validation"
	KindNotFound             Kind = "not_found"
	KindExpired              Kind = "expired"
	KindInvalidToken         Kind = "invalid_token"
	KindForbidden            Kind = "forbidden"
	KindUnauthorized         Kind = "unauthorized"
	KindUnsupportedMediaType Kind = "unsupported_media_type"
	KindRateLimited          Kind = "rate_limited"
)

type Error struct {
	Kind     Kind
	Status   int
	Messages []string
	Fields   map[string][]string
}

func New(kind Kind, status int, messages ...string) *Error {
	return &Error{Kind: kind, Status: status, Messages: messages}
}

func (e *Error) Error() string {
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+strings.Join(e.Fields[k], " "))
		}
		return string(e.Kind) + ": " + strings.Join(parts, "; ")
	}
	return string(e.Kind) + ": " + strings.Join(e.Messages, "; ")
}

// Detail is the value rendered into the envelope's "error" member.
func (e *Error) Detail() any {
	if len(e.Fields) > 0 {
		return e.Fields
	}
	return e.Messages
}

// WithStatus returns a copy of e answering with a different HTTP status.
func (e *Error) WithStatus(status int) *Error {
	clone := *e
	clone.Status = status
	return &clone
}

func Validation(messages ...string) *Error {
	return New(KindValidation, http.StatusBadRequest, messages...)
}

func NotFound(messages ...string) *Error {
	return New(KindNotFound, http.StatusBadRequest, messages...)
}

func Expired(messages ...string) *Error {
	return New(KindExpired, http.StatusBadRequest, messages...)
}

func InvalidToken(messages ...string) *Error {
	return New(KindInvalidToken, http.StatusBadRequest, messages...)
}

func Forbidden(messages ...string) *Error {
	return New(KindForbidden, http.StatusForbidden, messages...)
}

func Unauthorized(messages ...string) *Error {
	return New(KindUnauthorized, http.StatusUnauthorized, messages...)
}

func UnsupportedMediaType() *Error {
	return New(KindUnsupportedMediaType, http.StatusUnsupportedMediaType, "Unsupported Media Type")
}

func RateLimited() *Error {
	return New(KindRateLimited, http.StatusTooManyRequests, "Too Many Requests")
}

func As(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func IsKind(err error, kind Kind) bool {
	apiErr, ok := As(err)
	return ok && apiErr.Kind == kind
}
