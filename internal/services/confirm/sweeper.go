// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package confirm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"codeberg.org/oliverandrich/go-account-template/internal/metrics"
	"github.com/robfig/cron/v3"
)

// Sweeper periodically deletes tokens that expired without being redeemed.
type Sweeper struct {
	tokens TokenStore
	cron   *cron.Cron
	now    func() time.Time
}

// NewSweeper schedules sweeps using a cron spec such as "@every 1h".
func NewSweeper(tokens TokenStore, schedule string, opts ...Option) (*Sweeper, error) {
	o := buildOptions(opts)
	s := &Sweeper{
		tokens: tokens,
		cron:   cron.New(),
		now:    o.now,
	}

	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start runs the schedule in the background.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep deletes every token that expired before now.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	n, err := s.tokens.DeleteExpiredPendingTokens(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("deleting expired tokens: %w", err)
	}
	metrics.TokensSwept.Add(float64(n))
	return n, nil
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := s.Sweep(ctx)
	if err != nil {
		slog.Error("token_sweep_failed", "error", err)
		return
	}
	if n > 0 {
		slog.Info("token_sweep", "deleted", n)
	}
}
