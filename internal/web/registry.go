package web

// registry.go holds the server's filtering sessions.
//
// core.Session does no locking, so every operation on a session runs inside
// Registry.With, which holds that session's mutex. Sessions idle longer than
// the configured timeout are dropped by a background sweep.

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/JonMunkholm/filterit/internal/audit"
	"github.com/JonMunkholm/filterit/internal/core"
	"github.com/JonMunkholm/filterit/internal/logging"
	"github.com/JonMunkholm/filterit/internal/metrics"
	"github.com/google/uuid"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrTooManySessions  = errors.New("session limit reached")
	errInvalidSessionID = errors.New("invalid request: malformed session id")
)

type entry struct {
	mu       sync.Mutex
	session  *core.Session
	lastUsed time.Time
	closed   bool
}

// Registry maps session IDs to sessions.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry

	lists   core.MatchLists
	max     int
	idle    time.Duration
	metrics *metrics.Metrics
	audit   audit.Recorder
	now     func() time.Time
}

// RegistryConfig configures NewRegistry.
type RegistryConfig struct {
	Lists       core.MatchLists
	MaxSessions int
	IdleTimeout time.Duration
	Metrics     *metrics.Metrics
	Audit       audit.Recorder
}

// NewRegistry returns an empty registry. Every session it creates starts with
// cfg.Lists.
func NewRegistry(cfg RegistryConfig) *Registry {
	rec := cfg.Audit
	if rec == nil {
		rec = audit.Nop{}
	}
	return &Registry{
		entries: make(map[string]*entry),
		lists:   cfg.Lists,
		max:     cfg.MaxSessions,
		idle:    cfg.IdleTimeout,
		metrics: cfg.Metrics,
		audit:   rec,
		now:     time.Now,
	}
}

// Create starts a new empty session.
func (r *Registry) Create() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.max > 0 && len(r.entries) >= r.max {
		return "", ErrTooManySessions
	}

	id := uuid.NewString()
	r.entries[id] = &entry{
		session:  core.NewSession(r.lists, core.WithLogger(logging.ForSession(id))),
		lastUsed: r.now(),
	}
	r.setActive()
	return id, nil
}

// With runs fn with exclusive access to the session.
func (r *Registry) With(id string, fn func(*core.Session) error) error {
	if _, err := uuid.Parse(id); err != nil {
		return errInvalidSessionID
	}

	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Removed while we waited for the lock.
	if e.closed {
		return ErrSessionNotFound
	}
	e.lastUsed = r.now()
	return fn(e.session)
}

// Remove drops a session. It reports whether the session existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	e, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
		r.setActive()
	}
	r.mu.Unlock()

	if ok {
		e.mu.Lock()
		e.closed = true
		e.mu.Unlock()
	}
	return ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep removes sessions idle longer than the idle timeout and returns how
// many it removed. Sessions busy in With are skipped.
func (r *Registry) Sweep(ctx context.Context) int {
	if r.idle <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.idle)

	r.mu.Lock()
	var expired []string
	for id, e := range r.entries {
		if !e.mu.TryLock() {
			continue
		}
		if e.lastUsed.Before(cutoff) {
			e.closed = true
			delete(r.entries, id)
			expired = append(expired, id)
		}
		e.mu.Unlock()
	}
	r.setActive()
	r.mu.Unlock()

	for _, id := range expired {
		if err := r.audit.Record(ctx, audit.NewEntry(audit.ActionExpire, id)); err != nil {
			slog.Warn("audit record failed", "action", audit.ActionExpire, "session_id", id, "error", err)
		}
	}
	return len(expired)
}

// StartSweeper runs Sweep every interval until ctx is cancelled.
func (r *Registry) StartSweeper(ctx context.Context, interval time.Duration) {
	slog.Info("session sweeper started", "interval", interval, "idle_timeout", r.idle)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session sweeper stopped")
			return
		case <-ticker.C:
			if n := r.Sweep(ctx); n > 0 {
				slog.Info("expired idle sessions", "count", n, "remaining", r.Len())
			}
		}
	}
}

// setActive must be called with r.mu held.
func (r *Registry) setActive() {
	if r.metrics != nil {
		r.metrics.SessionsActive.Set(float64(len(r.entries)))
	}
}
