package web

// load_limiter.go caps how many uploaded files are parsed at once.
//
// Spreadsheet parsing holds the whole workbook in memory, so a burst of large
// uploads is throttled here rather than left to exhaust the process. A request
// that cannot get a slot within maxWait fails with errTooManyLoads.

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

var errTooManyLoads = errors.New("too many concurrent uploads, please try again later")

const (
	defaultMaxConcurrentLoads = 4
	defaultLoadWait           = 30 * time.Second
)

type loadLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
	active  atomic.Int32
}

func newLoadLimiter(maxConcurrent int, maxWait time.Duration) *loadLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrentLoads
	}
	if maxWait <= 0 {
		maxWait = defaultLoadWait
	}
	return &loadLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// acquire waits for a slot. Callers must release exactly once on success.
func (l *loadLimiter) acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errTooManyLoads
	}
}

func (l *loadLimiter) release() {
	l.active.Add(-1)
	<-l.slots
}

func (l *loadLimiter) activeCount() int {
	return int(l.active.Load())
}

// waitForDrain blocks until no load is in progress or ctx ends.
func (l *loadLimiter) waitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.activeCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
