package errors

import (
	"fmt"
	"time"
)

// Kind classifies a WPError so callers can branch on retriability and
// surface category without string-matching messages.
type Kind string

const (
	KindConfigInvalid        Kind = "config_invalid"
	KindUnknownSite          Kind = "unknown_site"
	KindUnknownOperation     Kind = "unknown_operation"
	KindParamInvalid         Kind = "param_invalid"
	KindAuthRequired         Kind = "auth_required"
	KindAuthExpired          Kind = "auth_expired"
	KindAuthRefreshFailed    Kind = "auth_refresh_failed"
	KindAuthMethodUnsupported Kind = "auth_method_unsupported"
	KindRateLimited          Kind = "rate_limited"
	KindUpstreamRateLimited  Kind = "upstream_rate_limited"
	KindUpstreamUnavailable  Kind = "upstream_unavailable"
	KindUpstreamClient       Kind = "upstream_client"
	KindTransportError       Kind = "transport_error"
	KindConnectionFailed     Kind = "connection_failed"
	KindTimeout              Kind = "timeout"
	KindCancelled            Kind = "cancelled"
	KindCacheCorruption      Kind = "cache_corruption"
	KindInvalidationFailed   Kind = "invalidation_failed"
	KindFeatureUnsupported   Kind = "feature_unsupported"
)

// WPError is the single error type returned across the router, auth
// manager, request manager, and cache store. Every non-nil error
// surfaced to an MCP tool call is a *WPError.
type WPError struct {
	Kind        Kind
	Message     string
	HTTPStatus  int    // upstream HTTP status, 0 if not applicable
	BodyExcerpt string // truncated upstream response body, for diagnostics
	Retriable   bool
	RetryAfter  time.Duration // server-requested backoff, 0 if none was given
	Cause       error
}

func (e *WPError) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("%s: %s (http %d)", e.Kind, e.Message, e.HTTPStatus)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *WPError) Unwrap() error {
	return e.Cause
}

// New builds a WPError with no upstream context.
func New(kind Kind, message string) *WPError {
	return &WPError{Kind: kind, Message: message}
}

// Wrap attaches a Kind and message to an underlying cause.
func Wrap(kind Kind, message string, cause error) *WPError {
	return &WPError{Kind: kind, Message: message, Cause: cause}
}

// FromUpstream classifies an HTTP response from a WordPress site into a
// WPError, deciding retriability from the status class.
func FromUpstream(status int, bodyExcerpt string) *WPError {
	switch {
	case status == 401:
		return &WPError{Kind: KindAuthExpired, Message: "request rejected as unauthenticated", HTTPStatus: status, BodyExcerpt: bodyExcerpt, Retriable: false}
	case status == 403:
		return &WPError{Kind: KindUpstreamClient, Message: "request forbidden", HTTPStatus: status, BodyExcerpt: bodyExcerpt, Retriable: false}
	case status == 429:
		return &WPError{Kind: KindUpstreamRateLimited, Message: "upstream rate limit exceeded", HTTPStatus: status, BodyExcerpt: bodyExcerpt, Retriable: true}
	case status >= 500:
		return &WPError{Kind: KindUpstreamUnavailable, Message: "upstream server error", HTTPStatus: status, BodyExcerpt: bodyExcerpt, Retriable: true}
	case status >= 400:
		return &WPError{Kind: KindUpstreamClient, Message: "upstream rejected request", HTTPStatus: status, BodyExcerpt: bodyExcerpt, Retriable: false}
	default:
		return &WPError{Kind: KindUpstreamClient, Message: "unexpected upstream status", HTTPStatus: status, BodyExcerpt: bodyExcerpt, Retriable: false}
	}
}

// Is reports whether err is a *WPError of the given kind.
func Is(err error, kind Kind) bool {
	var w *WPError
	if As(err, &w) {
		return w.Kind == kind
	}
	return false
}

// As mirrors errors.As for *WPError without importing the stdlib package
// name twice in call sites that already alias it.
func As(err error, target **WPError) bool {
	for err != nil {
		if w, ok := err.(*WPError); ok {
			*target = w
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
