// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// DefaultSweepInterval is how often expired sessions are collected.
const DefaultSweepInterval = time.Minute

// Sweeper periodically removes expired sessions from a SessionStore.
type Sweeper struct {
	sessions SessionStore
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
	onSwept  func(n int64)
}

// NewSweeper creates a Sweeper.
func NewSweeper(sessions SessionStore, interval time.Duration, logger *slog.Logger) (*Sweeper, error) {
	if sessions == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("session store is required")
	}
	if interval <= 0 {
		return nil, oops.Code("CONFIG_INVALID").
			With("interval", interval).
			Errorf("sweep interval must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		sessions: sessions,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// OnSwept registers fn to receive the count of every successful sweep.
// It must be called before Run.
func (w *Sweeper) OnSwept(fn func(n int64)) {
	w.onSwept = fn
}

// Run sweeps until ctx is cancelled. It returns once the loop has exited.
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep performs a single collection pass and returns the number removed.
func (w *Sweeper) Sweep(ctx context.Context) int64 {
	n, err := w.sessions.DeleteExpired(ctx, w.now())
	if err != nil {
		w.logger.WarnContext(ctx, "expired session sweep failed", "error", err)
		return 0
	}
	if w.onSwept != nil {
		w.onSwept(n)
	}
	if n > 0 {
		w.logger.DebugContext(ctx, "expired sessions removed", "count", n)
	}
	return n
}
