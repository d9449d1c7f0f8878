package logger

import (
	"log/slog"
	"strings"
)

const redacted = "[REDACTED]"

// defaultRedactedKeys covers the credential-bearing keys this module could
// plausibly log by accident.
func defaultRedactedKeys() map[string]struct{} {
	return map[string]struct{}{
		"authorization": {},
		"access_token":  {},
		"renewal_token": {},
		"refresh_token": {},
		"password":      {},
	}
}

func redactor(keys map[string]struct{}) func(groups []string, a slog.Attr) slog.Attr {
	return func(_ []string, a slog.Attr) slog.Attr {
		if _, ok := keys[strings.ToLower(a.Key)]; ok {
			return slog.String(a.Key, redacted)
		}
		return a
	}
}
