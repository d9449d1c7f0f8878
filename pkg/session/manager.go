package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/authkit/pkg/broadcast"
	"github.com/dmitrymomot/authkit/pkg/logger"
	"github.com/dmitrymomot/authkit/pkg/statemachine"
)

// Auth status of a Manager.
const (
	StatusUnauthenticated = statemachine.StringState("unauthenticated")
	StatusAuthenticated   = statemachine.StringState("authenticated")
	StatusRenewing        = statemachine.StringState("renewing")
)

var (
	statusLogin   = statemachine.StringEvent("login")
	statusRenew   = statemachine.StringEvent("renew")
	statusRenewed = statemachine.StringEvent("renewed")
	statusLogout  = statemachine.StringEvent("logout")
)

func newStatusMachine(log *slog.Logger) statemachine.StateMachine {
	all := []statemachine.State{StatusUnauthenticated, StatusAuthenticated, StatusRenewing}
	opts := []statemachine.Option{
		statemachine.WithObserver(func(ctx context.Context, from, to statemachine.State, _ statemachine.Event) {
			if from.Name() != to.Name() {
				log.DebugContext(ctx, "status changed", logger.State(to.Name()), slog.String("from", from.Name()))
			}
		}),
		statemachine.WithTransition(StatusAuthenticated, StatusRenewing, statusRenew),
		statemachine.WithTransition(StatusUnauthenticated, StatusRenewing, statusRenew),
		statemachine.WithTransition(StatusRenewing, StatusAuthenticated, statusRenewed),
	}
	for _, from := range all {
		opts = append(opts,
			statemachine.WithTransition(from, StatusAuthenticated, statusLogin),
			statemachine.WithTransition(from, StatusUnauthenticated, statusLogout),
		)
	}
	return statemachine.MustNew(StatusUnauthenticated, opts...)
}

// Manager owns the client-side session: it persists the token pair, renews
// the access token ahead of expiry, collapses concurrent renewals into one
// network call and decorates outgoing requests through Transport.
type Manager struct {
	store    Store
	auth     Authenticator
	config   Config
	logger   *slog.Logger
	metrics  *Metrics
	events   broadcast.Broadcaster[Event]
	onLogout []LogoutHandler
	now      func() time.Time

	// mu guards session and epoch and orders store writes against them.
	mu      sync.RWMutex
	session *Session
	// epoch changes on every login and logout. A renewal that started under
	// an older epoch must not commit its result.
	epoch uint64
	// seq numbers every session change made under mu.
	seq uint64

	// notifyMu orders what observers see: the gauge, the log line, events and
	// logout handlers of a change are dropped once a later change was delivered.
	notifyMu sync.Mutex
	notified uint64

	status    statemachine.StateMachine
	scheduler *Scheduler
	renewals  *coordinator
	endpoints *EndpointMatcher
}

// New creates a Manager. WithAuthenticator is required; the store defaults
// to a MemoryStore.
func New(opts ...Option) (*Manager, error) {
	m := &Manager{
		store:  NewMemoryStore(),
		config: DefaultConfig(),
		logger: logger.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.auth == nil {
		return nil, ErrNoAuthenticator
	}
	if m.config.MaxReplayBody <= 0 {
		m.config.MaxReplayBody = DefaultConfig().MaxReplayBody
	}
	if m.events == nil {
		m.events = broadcast.NewMemoryBroadcaster[Event](16)
	}

	m.logger = m.logger.With(logger.Component("session"))
	m.status = newStatusMachine(m.logger)

	m.scheduler = NewScheduler(m.renewOnSchedule, m.config.RenewLead, m.config.MinRenewDelay)
	m.scheduler.now = m.now
	m.scheduler.logger = m.logger

	m.renewals = &coordinator{renew: m.renew, onJoin: func() { m.metrics.joined() }}
	m.endpoints = NewEndpointMatcher(m.config.APIBaseURLs, m.config.AuthPaths...)

	return m, nil
}

// Login exchanges credentials for a token pair and makes it the current session.
func (m *Manager) Login(ctx context.Context, creds Credentials) (*Session, error) {
	pair, err := m.auth.Login(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return m.establish(ctx, pair)
}

// Register creates an account and makes the returned pair the current session.
func (m *Manager) Register(ctx context.Context, creds Credentials) (*Session, error) {
	pair, err := m.auth.Register(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return m.establish(ctx, pair)
}

// Restore loads a previously persisted pair. A pair whose access token is no
// longer valid is cleared and ErrSessionExpired is returned; an empty store
// yields ErrNoSession.
func (m *Manager) Restore(ctx context.Context) (*Session, error) {
	pair, err := m.store.Get(ctx)
	if errors.Is(err, ErrNoSession) {
		// drops a half-written pair if one is lying around
		_ = m.end(ctx, ErrNoSession, nil)
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	sess := NewSession(pair)
	if !sess.IsAuthenticatedAt(m.now(), m.config.ClockSkew) {
		m.logger.InfoContext(ctx, "stored session expired", logger.ExpiresAt(sess.ExpiresAt))
		_ = m.end(ctx, ErrSessionExpired, nil)
		return nil, ErrSessionExpired
	}

	m.mu.Lock()
	m.epoch++
	m.session = sess
	m.scheduler.Arm(sess)
	m.transition(ctx, statusLogin)
	seq := m.nextSeq()
	m.mu.Unlock()

	m.authenticated(ctx, seq, EventAuthenticated, sess)
	return sess, nil
}

// Logout cancels any scheduled renewal, clears the store and forgets the
// session. Calling it without a session is a no-op apart from clearing the
// store; logout handlers and events only fire when a session was held.
func (m *Manager) Logout(ctx context.Context) error {
	return m.end(ctx, nil, nil)
}

// IsAuthenticated reports whether the current access token is still valid,
// allowing for the configured clock skew.
func (m *Manager) IsAuthenticated() bool {
	return m.Session().IsAuthenticatedAt(m.now(), m.config.ClockSkew)
}

// CurrentSubjectID returns the sub claim of the current access token.
func (m *Manager) CurrentSubjectID() (string, bool) {
	sess := m.Session()
	if sess == nil || sess.SubjectID == "" {
		return "", false
	}
	return sess.SubjectID, true
}

// Session returns the current session or nil. The value must not be modified.
func (m *Manager) Session() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// ObtainFreshSession renews the access token. Concurrent callers share one
// network call and observe the same result. A failed renewal ends the session.
// Cancelling ctx stops the wait but not the renewal.
func (m *Manager) ObtainFreshSession(ctx context.Context) (*Session, error) {
	return m.renewals.obtain(ctx)
}

// RenewalInFlight reports whether a renewal call is currently outstanding.
func (m *Manager) RenewalInFlight() bool {
	return m.renewals.inFlight()
}

// Status returns StatusUnauthenticated, StatusAuthenticated or StatusRenewing.
func (m *Manager) Status() statemachine.State {
	return m.status.Current()
}

// Scheduler exposes the renewal scheduler for inspection.
func (m *Manager) Scheduler() *Scheduler {
	return m.scheduler
}

// Subscribe returns a subscriber receiving an Event for every login,
// renewal and effective logout until ctx is done.
func (m *Manager) Subscribe(ctx context.Context) broadcast.Subscriber[Event] {
	return m.events.Subscribe(ctx)
}

// Close stops the scheduler and closes all subscribers. The stored pair is kept.
func (m *Manager) Close() error {
	m.scheduler.Stop()
	return m.events.Close()
}

func (m *Manager) establish(ctx context.Context, pair Pair) (*Session, error) {
	if err := pair.Validate(); err != nil {
		return nil, err
	}
	sess := NewSession(pair)

	m.mu.Lock()
	if err := m.store.Put(ctx, pair); err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("persist session: %w", err)
	}
	m.epoch++
	m.session = sess
	m.scheduler.Arm(sess)
	m.transition(ctx, statusLogin)
	seq := m.nextSeq()
	m.mu.Unlock()

	m.authenticated(ctx, seq, EventAuthenticated, sess)
	return sess, nil
}

// renew performs the single network renewal behind the coordinator.
func (m *Manager) renew(ctx context.Context) (*Session, error) {
	m.mu.RLock()
	epoch := m.epoch
	m.mu.RUnlock()

	pair, err := m.store.Get(ctx)
	if err != nil || pair.RenewalToken == "" {
		if err != nil && !errors.Is(err, ErrNoSession) {
			err = errors.Join(ErrNoRenewalToken, err)
		} else {
			err = ErrNoRenewalToken
		}
		m.metrics.renewal(err, 0)
		_ = m.end(ctx, err, &epoch)
		return nil, err
	}

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return m.superseded()
	}
	m.transition(ctx, statusRenew)
	m.mu.Unlock()

	m.logger.DebugContext(ctx, "renewing session")
	start := time.Now()
	fresh, err := m.auth.Refresh(ctx, pair.RenewalToken)
	if err == nil {
		if verr := fresh.Validate(); verr != nil {
			err = errors.Join(ErrTransportFailure, fmt.Errorf("refresh response: %w", verr))
		}
	}
	if err != nil {
		err = classifyRenewalError(err)
		m.metrics.renewal(err, time.Since(start).Seconds())
		m.logger.WarnContext(ctx, "session renewal failed", logger.Error(err))
		_ = m.end(ctx, err, &epoch)
		return nil, err
	}

	sess, err := m.commitRenewal(ctx, epoch, fresh)
	m.metrics.renewal(err, time.Since(start).Seconds())
	return sess, err
}

func (m *Manager) commitRenewal(ctx context.Context, epoch uint64, pair Pair) (*Session, error) {
	sess := NewSession(pair)

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		m.logger.DebugContext(ctx, "discarding renewal result, session changed meanwhile")
		return m.superseded()
	}
	if err := m.store.Put(ctx, pair); err != nil {
		m.mu.Unlock()
		err = fmt.Errorf("persist renewed session: %w", err)
		_ = m.end(ctx, err, &epoch)
		return nil, err
	}
	m.session = sess
	m.scheduler.Arm(sess)
	m.transition(ctx, statusRenewed)
	seq := m.nextSeq()
	m.mu.Unlock()

	m.authenticated(ctx, seq, EventRenewed, sess)
	return sess, nil
}

// superseded resolves a renewal that lost to a logout or a newer login.
func (m *Manager) superseded() (*Session, error) {
	if sess := m.Session(); sess != nil {
		return sess, nil
	}
	return nil, ErrLoggedOut
}

func (m *Manager) renewOnSchedule(ctx context.Context) {
	if _, err := m.ObtainFreshSession(ctx); err != nil {
		m.logger.WarnContext(ctx, "scheduled renewal failed", logger.Error(err))
	}
}

// end clears the session. With epoch set it only acts if no login or logout
// happened since that epoch was read.
func (m *Manager) end(ctx context.Context, reason error, epoch *uint64) error {
	m.mu.Lock()
	if epoch != nil && *epoch != m.epoch {
		m.mu.Unlock()
		return nil
	}
	m.scheduler.Cancel()
	prev := m.session
	m.session = nil
	m.epoch++
	// a cancelled caller must not leave the pair behind for the next Restore
	err := m.store.Clear(context.WithoutCancel(ctx))
	m.transition(ctx, statusLogout)
	seq := m.nextSeq()
	m.mu.Unlock()

	if err != nil {
		m.logger.ErrorContext(ctx, "failed to clear stored session", logger.Error(err))
		err = fmt.Errorf("clear session: %w", err)
	}
	if prev == nil {
		return err
	}

	ev := Event{Kind: EventLoggedOut, SubjectID: prev.SubjectID, Reason: reason}
	if !m.notify(ctx, seq, ev, func() { m.metrics.loggedOut(reason) }) {
		return err
	}
	m.logger.InfoContext(ctx, "logged out",
		logger.SubjectID(prev.SubjectID),
		logger.Error(reason),
	)
	for _, fn := range m.onLogout {
		fn(ctx, reason)
	}
	return err
}

func (m *Manager) authenticated(ctx context.Context, seq uint64, kind EventKind, sess *Session) {
	ev := Event{Kind: kind, SubjectID: sess.SubjectID, ExpiresAt: sess.ExpiresAt}
	if !m.notify(ctx, seq, ev, m.metrics.authenticated) {
		return
	}
	m.logger.InfoContext(ctx, "session "+string(kind),
		logger.SubjectID(sess.SubjectID),
		logger.ExpiresAt(sess.ExpiresAt),
	)
}

// nextSeq must be called with mu held.
func (m *Manager) nextSeq() uint64 {
	m.seq++
	return m.seq
}

// notify delivers the change numbered seq unless a later one already went
// out, in which case it reports false and the change stays silent. Broadcast
// never blocks, so holding notifyMu across it is safe.
func (m *Manager) notify(ctx context.Context, seq uint64, ev Event, record func()) bool {
	ev.At = m.now()

	m.notifyMu.Lock()
	if seq <= m.notified {
		m.notifyMu.Unlock()
		m.logger.DebugContext(ctx, "dropping stale session event", logger.Event(string(ev.Kind)))
		return false
	}
	m.notified = seq
	record()
	err := m.events.Broadcast(ctx, broadcast.Message[Event]{Data: ev})
	m.notifyMu.Unlock()

	if err != nil {
		m.logger.DebugContext(ctx, "event broadcast failed", logger.Event(string(ev.Kind)), logger.Error(err))
	}
	return true
}

// transition must be called with mu held so status follows session changes in order.
func (m *Manager) transition(ctx context.Context, ev statemachine.Event) {
	if err := m.status.Fire(ctx, ev); err != nil {
		m.logger.DebugContext(ctx, "status transition skipped",
			logger.Event(ev.Name()),
			logger.State(m.status.Current().Name()),
			logger.Error(err),
		)
	}
}
