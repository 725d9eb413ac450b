// Package jobs runs periodic maintenance against the ledger store.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mmynk/splitit/internal/clock"
)

// InvitationExpirer is the part of the store the expiry sweep needs.
type InvitationExpirer interface {
	ExpireInvitations(ctx context.Context, now int64) (int64, error)
}

// sweepTimeout bounds a single sweep.
const sweepTimeout = 10 * time.Second

// ExpireInvitations marks every pending invitation past its expiry as
// expired and returns how many changed.
func ExpireInvitations(ctx context.Context, store InvitationExpirer, clk clock.Clock, logger *slog.Logger) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	n, err := store.ExpireInvitations(ctx, clk.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to expire invitations: %w", err)
	}
	if n > 0 {
		logger.Info("Expired invitations", "count", n)
	}
	return n, nil
}

// Scheduler owns the cron runner for background jobs.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// NewScheduler registers the invitation expiry sweep on the given cron
// schedule (standard five-field syntax or descriptors like "@hourly").
func NewScheduler(schedule string, store InvitationExpirer, clk clock.Clock, logger *slog.Logger) (*Scheduler, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if _, err := ExpireInvitations(context.Background(), store, clk, logger); err != nil {
			logger.Error("Invitation expiry sweep failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid invitation sweep schedule %q: %w", schedule, err)
	}
	return &Scheduler{cron: c, logger: logger}, nil
}

// Start runs the scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Background jobs started", "jobs", len(s.cron.Entries()))
}

// Stop stops scheduling and waits for running jobs to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
