package session

import "errors"

var (
	ErrNoSession        = errors.New("session.not_found")
	ErrIncompletePair   = errors.New("session.incomplete_pair")
	ErrSessionExpired   = errors.New("session.expired")
	ErrNotAuthenticated = errors.New("session.not_authenticated")
	ErrNoAuthenticator  = errors.New("session.no_authenticator")

	// Renewal failures. Every one of them terminates the session.
	ErrNoRenewalToken   = errors.New("session.no_renewal_token")
	ErrRenewalRejected  = errors.New("session.renewal_rejected")
	ErrTransportFailure = errors.New("session.transport_failure")
	ErrLoggedOut        = errors.New("session.logged_out")
)

// rejecter is implemented by backend errors that carry a definitive refusal
// (for example a 4xx response to the refresh endpoint).
type rejecter interface {
	Rejected() bool
}

// classifyRenewalError tags a failed renewal call as either a rejection of the
// renewal token or a failure to reach the backend. The cause stays reachable
// through errors.Is/As.
func classifyRenewalError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrRenewalRejected) || errors.Is(err, ErrTransportFailure) {
		return err
	}
	var r rejecter
	if errors.As(err, &r) && r.Rejected() {
		return errors.Join(ErrRenewalRejected, err)
	}
	return errors.Join(ErrTransportFailure, err)
}
