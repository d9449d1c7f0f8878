package session

import "time"

// EventKind names an auth state change.
type EventKind string

const (
	EventAuthenticated EventKind = "authenticated"
	EventRenewed       EventKind = "renewed"
	EventLoggedOut     EventKind = "logged_out"
)

// Event is published to subscribers whenever the session changes.
type Event struct {
	Kind      EventKind
	SubjectID string
	ExpiresAt int64
	// Reason is set on forced logouts.
	Reason error
	At     time.Time
}
