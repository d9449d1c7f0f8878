package logger

import (
	"log/slog"
	"net/url"
	"strconv"
	"time"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Errors groups multiple non-nil errors under the key "errors".
// If all errors are nil, it returns an empty Attr.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// SubjectID records the authenticated subject under the key "subject_id".
// An empty id yields an empty Attr.
func SubjectID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("subject_id", id)
}

// RequestID records the request identifier under the key "request_id".
// An empty id yields an empty Attr.
func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}

// Endpoint records an outgoing request as {"method", "url"} under "endpoint".
// Query strings are dropped so credentials passed as parameters never reach logs.
func Endpoint(method string, u *url.URL) slog.Attr {
	if u == nil {
		return slog.Attr{}
	}
	clean := *u
	clean.RawQuery = ""
	clean.User = nil
	return Group("endpoint",
		slog.String("method", method),
		slog.String("url", clean.String()),
	)
}

// StatusCode records an HTTP status under the key "status_code".
func StatusCode(code int) slog.Attr {
	return slog.Int("status_code", code)
}

// ExpiresAt records a token expiry (seconds since epoch) under "expires_at".
// Zero is recorded as-is and means the expiry is unknown.
func ExpiresAt(unix int64) slog.Attr {
	if unix == 0 {
		return slog.Int64("expires_at", 0)
	}
	return slog.Time("expires_at", time.Unix(unix, 0).UTC())
}

// Delay records a scheduling delay under the key "delay".
func Delay(d time.Duration) slog.Attr {
	return slog.Duration("delay", d)
}

// RetryCount records the retry count under the key "retry_count".
func RetryCount(count int) slog.Attr {
	return slog.Int("retry_count", count)
}

// Duration records a duration under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Event records the event name under the key "event".
func Event(name string) slog.Attr {
	return slog.String("event", name)
}

// State records a state machine state under the key "state".
func State(name string) slog.Attr {
	return slog.String("state", name)
}
