package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/authkit/pkg/logger"
	"github.com/dmitrymomot/authkit/pkg/statemachine"
)

// Scheduler states.
const (
	SchedulerIdle  = statemachine.StringState("idle")
	SchedulerArmed = statemachine.StringState("armed")
)

var (
	schedulerArm    = statemachine.StringEvent("arm")
	schedulerFire   = statemachine.StringEvent("fire")
	schedulerCancel = statemachine.StringEvent("cancel")
)

// RenewalDelay computes how long to wait before renewing a token that expires
// at expiresAt (seconds since epoch): the time left minus lead, but never
// less than floor. An unknown or past expiry counts as zero time left.
func RenewalDelay(expiresAt int64, now time.Time, lead, floor time.Duration) time.Duration {
	var left time.Duration
	if expiresAt > 0 {
		left = max(time.Unix(expiresAt, 0).Sub(now), 0)
	}
	return max(left-lead, floor)
}

// Scheduler keeps at most one pending renewal timer.
// Arming replaces the previous timer; a timer that was replaced or cancelled
// never invokes the callback even if it had already fired.
type Scheduler struct {
	lead   time.Duration
	floor  time.Duration
	fire   func(ctx context.Context)
	now    func() time.Time
	logger *slog.Logger

	mu       sync.Mutex
	timer    *time.Timer
	gen      uint64
	stopped  bool
	deadline time.Time
	state    statemachine.StateMachine
}

// NewScheduler returns an idle scheduler that calls fire when a timer elapses.
func NewScheduler(fire func(ctx context.Context), lead, floor time.Duration) *Scheduler {
	return &Scheduler{
		lead:   lead,
		floor:  floor,
		fire:   fire,
		now:    time.Now,
		logger: logger.Discard(),
		state: statemachine.MustNew(SchedulerIdle,
			statemachine.WithTransition(SchedulerIdle, SchedulerArmed, schedulerArm),
			statemachine.WithTransition(SchedulerArmed, SchedulerArmed, schedulerArm),
			statemachine.WithTransition(SchedulerArmed, SchedulerIdle, schedulerFire),
			statemachine.WithTransition(SchedulerArmed, SchedulerIdle, schedulerCancel),
			statemachine.WithTransition(SchedulerIdle, SchedulerIdle, schedulerCancel),
		),
	}
}

// Arm schedules a renewal for sess, replacing any pending one, and returns the
// chosen delay. A nil session or one without an access token cancels instead.
func (s *Scheduler) Arm(sess *Session) time.Duration {
	if sess == nil || sess.AccessToken == "" {
		s.Cancel()
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return 0
	}

	s.stopLocked()
	s.gen++
	gen := s.gen

	now := s.now()
	delay := RenewalDelay(sess.ExpiresAt, now, s.lead, s.floor)
	s.deadline = now.Add(delay)
	s.timer = time.AfterFunc(delay, func() { s.elapsed(gen) })
	_ = s.state.Fire(context.Background(), schedulerArm)

	s.logger.Debug("renewal scheduled",
		logger.Delay(delay),
		logger.ExpiresAt(sess.ExpiresAt),
	)
	return delay
}

// Cancel drops the pending renewal, if any. Safe to call repeatedly.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.gen++
	_ = s.state.Fire(context.Background(), schedulerCancel)
}

// Stop cancels the pending renewal and makes later Arm calls no-ops.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.Cancel()
}

// State reports SchedulerIdle or SchedulerArmed.
func (s *Scheduler) State() statemachine.State {
	return s.state.Current()
}

// Deadline returns when the pending timer fires.
func (s *Scheduler) Deadline() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer == nil {
		return time.Time{}, false
	}
	return s.deadline, true
}

func (s *Scheduler) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
		s.deadline = time.Time{}
	}
}

func (s *Scheduler) elapsed(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.deadline = time.Time{}
	_ = s.state.Fire(context.Background(), schedulerFire)
	s.mu.Unlock()

	s.fire(context.Background())
}
