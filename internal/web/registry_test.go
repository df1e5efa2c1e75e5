package web

import (
	"context"
	"testing"
	"time"

	"github.com/JonMunkholm/filterit/internal/audit"
	"github.com/JonMunkholm/filterit/internal/core"
	"github.com/JonMunkholm/filterit/internal/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRecorder struct {
	entries []audit.Entry
}

func (m *memRecorder) Record(_ context.Context, e audit.Entry) error {
	m.entries = append(m.entries, e)
	return nil
}

func (m *memRecorder) Recent(_ context.Context, sessionID string, limit int) ([]audit.Entry, error) {
	var out []audit.Entry
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if m.entries[i].SessionID == sessionID {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

func TestRegistry_CreateAndLimit(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	r := NewRegistry(RegistryConfig{MaxSessions: 2, IdleTimeout: time.Minute, Metrics: m})

	a, err := r.Create()
	require.NoError(t, err)
	_, err = r.Create()
	require.NoError(t, err)

	_, err = r.Create()
	assert.ErrorIs(t, err, ErrTooManySessions)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SessionsActive))

	assert.True(t, r.Remove(a))
	assert.False(t, r.Remove(a))
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsActive))
}

func TestRegistry_With(t *testing.T) {
	lists := core.MatchLists{EmailSuffixes: []string{".edu"}}
	r := NewRegistry(RegistryConfig{Lists: lists})

	id, err := r.Create()
	require.NoError(t, err)

	var got core.MatchLists
	require.NoError(t, r.With(id, func(s *core.Session) error {
		got = s.MatchLists()
		return nil
	}))
	assert.Equal(t, []string{".edu"}, got.EmailSuffixes)

	assert.ErrorIs(t, r.With(uuid.NewString(), func(*core.Session) error { return nil }), ErrSessionNotFound)
	assert.ErrorIs(t, r.With("nope", func(*core.Session) error { return nil }), errInvalidSessionID)
}

func TestRegistry_Sweep(t *testing.T) {
	rec := &memRecorder{}
	r := NewRegistry(RegistryConfig{IdleTimeout: 10 * time.Minute, Audit: rec})
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	stale, err := r.Create()
	require.NoError(t, err)

	now = now.Add(8 * time.Minute)
	fresh, err := r.Create()
	require.NoError(t, err)

	now = now.Add(5 * time.Minute)
	assert.Equal(t, 1, r.Sweep(context.Background()))

	assert.ErrorIs(t, r.With(stale, func(*core.Session) error { return nil }), ErrSessionNotFound)
	assert.NoError(t, r.With(fresh, func(*core.Session) error { return nil }))

	require.Len(t, rec.entries, 1)
	assert.Equal(t, audit.ActionExpire, rec.entries[0].Action)
	assert.Equal(t, stale, rec.entries[0].SessionID)
}

func TestRegistry_SweepDisabled(t *testing.T) {
	r := NewRegistry(RegistryConfig{})
	_, err := r.Create()
	require.NoError(t, err)
	assert.Equal(t, 0, r.Sweep(context.Background()))
}

func TestRegistry_StartSweeperStops(t *testing.T) {
	r := NewRegistry(RegistryConfig{IdleTimeout: time.Minute})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		r.StartSweeper(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
