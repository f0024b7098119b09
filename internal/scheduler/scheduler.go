// Package scheduler runs the background loops of the match server:
//  1. deadlineLoop – announces betting_closed once for each match whose
//     deadline has passed.
//  2. auditLoop    – reconciles recent vaults and logs any imbalance.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/giovanna-britto/Snake-Battle/internal/config"
	"github.com/giovanna-britto/Snake-Battle/internal/domain"
)

// auditPageSize bounds how many of the newest vaults one audit pass checks.
const auditPageSize = 100

// ──────────────────────────────────────────────────────────────────────────────
// Dependencies
// ──────────────────────────────────────────────────────────────────────────────

// DeadlineAnnouncer is the part of service.MatchEngine the deadline loop needs.
type DeadlineAnnouncer interface {
	Now() time.Time
	AnnounceClosedBetting(ctx context.Context, after, upTo time.Time) (int, error)
}

// Auditor is the part of service.TreasuryService the audit loop needs.
type Auditor interface {
	AuditMatches(ctx context.Context, limit, offset int) ([]*domain.VaultAudit, error)
}

// ──────────────────────────────────────────────────────────────────────────────
// Scheduler
// ──────────────────────────────────────────────────────────────────────────────

// Scheduler owns the background loops. Call Start(ctx) once from main();
// cancel the context to shut it down.
type Scheduler struct {
	engine  DeadlineAnnouncer
	auditor Auditor // optional
	cfg     *config.Config
	logger  *slog.Logger

	lastSweep time.Time
}

// NewScheduler creates a Scheduler. auditor may be nil.
func NewScheduler(engine DeadlineAnnouncer, auditor Auditor, cfg *config.Config, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		engine:  engine,
		auditor: auditor,
		cfg:     cfg,
		logger:  logger.With("component", "scheduler"),
	}
}

// Start launches the background goroutines. It returns immediately; all
// loops run until ctx is cancelled. Deadlines that passed before Start are
// not announced.
func (s *Scheduler) Start(ctx context.Context) {
	s.lastSweep = s.engine.Now()
	go s.deadlineLoop(ctx)
	if s.auditor != nil {
		go s.auditLoop(ctx)
	}
	s.logger.Info("scheduler started", "deadline_interval", s.cfg.Scheduler.DeadlineInterval)
}

// ──────────────────────────────────────────────────────────────────────────────
// deadlineLoop
// ──────────────────────────────────────────────────────────────────────────────

func (s *Scheduler) deadlineLoop(ctx context.Context) {
	defer s.recoverAndLog("deadlineLoop")

	ticker := time.NewTicker(s.cfg.Scheduler.DeadlineInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("deadlineLoop: shutting down")
			return
		case <-ticker.C:
			s.SweepDeadlines(ctx)
		}
	}
}

// SweepDeadlines announces every deadline crossed since the previous
// successful sweep. A failed sweep is retried on the next tick over the same
// window, so no deadline is skipped and none is announced twice.
func (s *Scheduler) SweepDeadlines(ctx context.Context) {
	now := s.engine.Now()
	n, err := s.engine.AnnounceClosedBetting(ctx, s.lastSweep, now)
	if err != nil {
		s.logger.Error("deadlineLoop: AnnounceClosedBetting", "err", err)
		return
	}
	if n > 0 {
		s.logger.Info("betting closed", "matches", n)
	}
	s.lastSweep = now
}

// ──────────────────────────────────────────────────────────────────────────────
// auditLoop
// ──────────────────────────────────────────────────────────────────────────────

// auditLoop reconciles the newest vaults once a minute. Imbalances are logged
// by the auditor itself.
func (s *Scheduler) auditLoop(ctx context.Context) {
	defer s.recoverAndLog("auditLoop")

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("auditLoop: shutting down")
			return
		case <-ticker.C:
			if _, err := s.auditor.AuditMatches(ctx, auditPageSize, 0); err != nil {
				s.logger.Error("auditLoop: AuditMatches", "err", err)
			}
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Panic recovery
// ──────────────────────────────────────────────────────────────────────────────

// recoverAndLog is deferred inside each goroutine to catch unexpected panics,
// log them, and allow the process to continue running.
func (s *Scheduler) recoverAndLog(loop string) {
	if r := recover(); r != nil {
		s.logger.Error("PANIC recovered in scheduler loop",
			"loop", loop, "panic", r)
	}
}
