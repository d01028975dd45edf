// Package session implements the two-tier session lifetime policy: a
// sliding expiry extended on qualifying activity, bounded by a hard maximum
// lifetime counted from session start. Both bounds are enforced by a
// periodic sweep and by on-demand status checks; teardown happens after a
// short grace delay so the operator sees the warning before the redirect.
//
// The session record {user, sessionStart, sessionExpiry} lives in a durable
// key/value store (see repo.SessionStore) so a restarted process resumes
// the same window. Multi-tab consistency is the storage collaborator's
// concern, which is why every check reloads the record instead of trusting
// an in-memory mirror.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Status is the tracker's externally visible state.
type Status string

const (
	StatusNoSession   Status = "no-session"
	StatusActive      Status = "active"
	StatusExpired     Status = "expired"
	StatusMaxLifetime Status = "max-lifetime"
)

var (
	ErrMissingStore = errors.New("session tracker: store required")
	ErrNoSession    = errors.New("session tracker: no active session")
	ErrBadPolicy    = errors.New("session tracker: invalid policy durations")
)

// Store is the durable persistence contract for the session record.
// Satisfied by repo.SessionStore.
type Store interface {
	Load(ctx context.Context) (user string, start, expiry time.Time, ok bool, err error)
	Save(ctx context.Context, user string, start, expiry time.Time) error
	SetExpiry(ctx context.Context, expiry time.Time) error
	Clear(ctx context.Context) error
}

// NotifyFunc surfaces a user-facing warning. Fire-and-forget; no return
// value is consumed. Wired to the dashboard's toast collaborator.
type NotifyFunc func(message, severity string)

// Config describes the session policy.
type Config struct {
	TTL             time.Duration // sliding expiry amount
	MaxLifetime     time.Duration // hard ceiling from session start
	ExtendThreshold time.Duration // extend only when remaining < threshold
	GraceDelay      time.Duration // warn-to-teardown delay
	SweepInterval   time.Duration // Run's check cadence
	Clock           func() time.Time
}

// Info is a read-only snapshot of the current session for status endpoints.
type Info struct {
	Status Status    `json:"status"`
	User   string    `json:"user,omitempty"`
	Start  time.Time `json:"session_start,omitempty"`
	Expiry time.Time `json:"session_expiry,omitempty"`
}

// Tracker owns the session lifecycle. Safe for concurrent use.
type Tracker struct {
	cfg    Config
	store  Store
	clock  func() time.Time
	notify NotifyFunc
	log    zerolog.Logger

	mu sync.Mutex
	// pendingSince is set when an expiry/max-lifetime warning was issued;
	// the record is cleared once the grace delay elapses past it.
	pendingSince  time.Time
	pendingStatus Status
}

// NewTracker constructs a tracker. A nil clock defaults to time.Now; a nil
// notify drops warnings (they are still logged).
func NewTracker(cfg Config, store Store, notify NotifyFunc, log zerolog.Logger) (*Tracker, error) {
	if store == nil {
		return nil, ErrMissingStore
	}
	if cfg.TTL <= 0 || cfg.MaxLifetime < cfg.TTL || cfg.ExtendThreshold <= 0 || cfg.GraceDelay < 0 {
		return nil, ErrBadPolicy
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	if notify == nil {
		notify = func(string, string) {}
	}
	return &Tracker{cfg: cfg, store: store, clock: clock, notify: notify, log: log}, nil
}

// Begin creates a fresh session record for user. The initial expiry is
// start+TTL, clamped to the hard ceiling.
func (t *Tracker) Begin(ctx context.Context, user string) (Info, error) {
	now := t.clock()
	expiry := now.Add(t.cfg.TTL)
	if ceiling := now.Add(t.cfg.MaxLifetime); expiry.After(ceiling) {
		expiry = ceiling
	}
	if err := t.store.Save(ctx, user, now, expiry); err != nil {
		return Info{}, err
	}
	t.mu.Lock()
	t.pendingSince = time.Time{}
	t.pendingStatus = ""
	t.mu.Unlock()
	t.log.Info().Str("user", user).Time("expiry", expiry).Msg("session started")
	return Info{Status: StatusActive, User: user, Start: now, Expiry: expiry}, nil
}

// Check evaluates the session state and drives the warn-then-clear
// transition. A terminal status is reported while the grace delay runs;
// once it elapses the record is cleared and subsequent checks report
// NoSession.
func (t *Tracker) Check(ctx context.Context) (Info, error) {
	user, start, expiry, ok, err := t.store.Load(ctx)
	if err != nil {
		return Info{}, err
	}
	if !ok {
		t.resetPending()
		return Info{Status: StatusNoSession}, nil
	}

	now := t.clock()
	status := StatusActive
	switch {
	case !now.Before(expiry):
		status = StatusExpired
	case now.Sub(start) >= t.cfg.MaxLifetime:
		status = StatusMaxLifetime
	}

	if status == StatusActive {
		t.resetPending()
		return Info{Status: StatusActive, User: user, Start: start, Expiry: expiry}, nil
	}

	t.mu.Lock()
	if t.pendingSince.IsZero() || t.pendingStatus != status {
		t.pendingSince = now
		t.pendingStatus = status
		t.mu.Unlock()
		msg := "Your session has expired. Please log in again."
		if status == StatusMaxLifetime {
			msg = "Your session has reached its maximum duration. Please log in again."
		}
		t.notify(msg, "warning")
		t.log.Warn().Str("user", user).Str("status", string(status)).Msg("session invalidated")
		return Info{Status: status, User: user, Start: start, Expiry: expiry}, nil
	}
	pendingSince := t.pendingSince
	t.mu.Unlock()

	if now.Sub(pendingSince) >= t.cfg.GraceDelay {
		if err := t.store.Clear(ctx); err != nil {
			return Info{Status: status, User: user, Start: start, Expiry: expiry}, err
		}
		t.resetPending()
		t.log.Info().Str("user", user).Msg("session record cleared")
		return Info{Status: StatusNoSession}, nil
	}
	return Info{Status: status, User: user, Start: start, Expiry: expiry}, nil
}

// Touch registers qualifying user activity. When the session is active, has
// not hit the hard ceiling, and its remaining time is under the extension
// threshold, the expiry slides forward by TTL — clamped so it never exceeds
// start+MaxLifetime. Returns the possibly-updated snapshot and whether an
// extension happened.
func (t *Tracker) Touch(ctx context.Context) (Info, bool, error) {
	user, start, expiry, ok, err := t.store.Load(ctx)
	if err != nil {
		return Info{}, false, err
	}
	if !ok {
		return Info{Status: StatusNoSession}, false, ErrNoSession
	}

	now := t.clock()
	if !now.Before(expiry) || now.Sub(start) >= t.cfg.MaxLifetime {
		// Terminal; activity cannot revive it. Check drives teardown.
		info, err := t.Check(ctx)
		return info, false, err
	}

	info := Info{Status: StatusActive, User: user, Start: start, Expiry: expiry}
	if expiry.Sub(now) >= t.cfg.ExtendThreshold {
		return info, false, nil
	}

	next := now.Add(t.cfg.TTL)
	if ceiling := start.Add(t.cfg.MaxLifetime); next.After(ceiling) {
		next = ceiling
	}
	if !next.After(expiry) {
		return info, false, nil
	}
	if err := t.store.SetExpiry(ctx, next); err != nil {
		return info, false, err
	}
	info.Expiry = next
	t.log.Debug().Str("user", user).Time("expiry", next).Msg("session extended")
	return info, true, nil
}

// End clears the session record immediately (logout).
func (t *Tracker) End(ctx context.Context) error {
	t.resetPending()
	return t.store.Clear(ctx)
}

// Run checks the session on a fixed interval until ctx is done. The sweep
// is what turns a warned session into a cleared one when no requests
// arrive during the grace delay.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := t.Check(ctx); err != nil {
				t.log.Error().Err(err).Msg("session sweep failed")
			}
		}
	}
}

func (t *Tracker) resetPending() {
	t.mu.Lock()
	t.pendingSince = time.Time{}
	t.pendingStatus = ""
	t.mu.Unlock()
}
