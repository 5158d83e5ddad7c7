package crawl

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SweeperConfig controls the unknown-detail sweep.
type SweeperConfig struct {
	// PerItemDelay scales the sweep period.
	PerItemDelay time.Duration
	// BatchSize is how many incomplete records one cycle re-queues.
	BatchSize int
}

// Sweeper periodically re-queues already-known records whose metadata is
// still empty, fetching their watch pages at top priority for the richer
// extraction shape. Per-item timeouts are staggered so a batch does not hit
// the upstream at once.
type Sweeper struct {
	sched  *Scheduler
	store  Store
	cfg    SweeperConfig
	logger *zap.Logger
}

// NewSweeper constructs a Sweeper.
func NewSweeper(sched *Scheduler, store Store, cfg SweeperConfig, logger *zap.Logger) *Sweeper {
	if cfg.PerItemDelay <= 0 {
		cfg.PerItemDelay = 15 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 4
	}
	return &Sweeper{sched: sched, store: store, cfg: cfg, logger: logger}
}

// Run executes the sweeper as a self-repeating task. It always reschedules,
// batch or no batch.
func (s *Sweeper) Run(ctx context.Context) {
	Loop(ctx, Jitter(s.period()), s.tick)
}

func (s *Sweeper) period() time.Duration {
	return s.cfg.PerItemDelay * time.Duration(s.cfg.BatchSize)
}

func (s *Sweeper) tick(ctx context.Context) time.Duration {
	recs, err := s.store.FindIncomplete(ctx, s.cfg.BatchSize)
	if err != nil {
		s.logger.Warn("find incomplete failed", zap.Error(err))
		return Jitter(s.period())
	}
	for i, rec := range recs {
		timeout := s.cfg.PerItemDelay + time.Duration(i)*s.cfg.PerItemDelay/2
		s.sched.Submit(rec.URI, PriorityTop, FetchOptions{Timeout: timeout})
	}
	if len(recs) > 0 {
		s.logger.Debug("requeued incomplete records", zap.Int("count", len(recs)))
	}
	return Jitter(s.period())
}
