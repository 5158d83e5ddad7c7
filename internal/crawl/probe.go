package crawl

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ProberConfig controls probe submission and the random-probe strategy.
type ProberConfig struct {
	// BaseDelay is the random-probe inter-tick base.
	BaseDelay time.Duration
	// DeferDelay is the short wait applied when probing is deferred.
	DeferDelay time.Duration
	// SoftCap defers random probes once the queue holds this many entries.
	SoftCap int
}

// Prober builds probe URIs and submits them to the scheduler. Trusted
// identifiers (discovered by another strategy) are persisted as placeholder
// records before the fetch is queued so they survive a process crash; random
// identifiers are throwaway and get no placeholder.
type Prober struct {
	sched  *Scheduler
	state  *State
	store  Store
	cfg    ProberConfig
	logger *zap.Logger
}

// NewProber constructs a Prober.
func NewProber(sched *Scheduler, state *State, store Store, cfg ProberConfig, logger *zap.Logger) *Prober {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 1500 * time.Millisecond
	}
	if cfg.DeferDelay <= 0 {
		cfg.DeferDelay = 500 * time.Millisecond
	}
	if cfg.SoftCap <= 0 {
		cfg.SoftCap = 64
	}
	return &Prober{sched: sched, state: state, store: store, cfg: cfg, logger: logger}
}

// SubmitID probes a trusted identifier at the caller's priority. The
// placeholder upsert runs before the enqueue so the identifier is not lost if
// the process terminates before the fetch completes.
func (p *Prober) SubmitID(ctx context.Context, id string, priority int) {
	watch := WatchURL(id)
	if err := p.store.UpsertVideo(ctx, VideoRecord{URI: watch}); err != nil {
		p.logger.Warn("placeholder upsert failed", zap.String("uri", watch), zap.Error(err))
	}
	p.sched.Submit(ProbeURL(watch), priority, FetchOptions{})
}

// Run is the random-probe strategy: each tick generates a fresh identifier
// and probes it at a random priority within the low-priority band, deferring
// with a short jittered delay while the scheduler is under backpressure or
// above its soft capacity.
func (p *Prober) Run(ctx context.Context) {
	Loop(ctx, Jitter(p.cfg.BaseDelay), p.tick)
}

func (p *Prober) tick(_ context.Context) time.Duration {
	depth := p.sched.Depth()
	if p.state.UpdateBackpressure(depth) || depth > p.cfg.SoftCap {
		return Jitter(p.cfg.DeferDelay)
	}
	id, err := NewVideoID()
	if err != nil {
		p.logger.Error("generate video id", zap.Error(err))
		return Jitter(p.cfg.BaseDelay)
	}
	p.sched.Submit(ProbeURL(WatchURL(id)), RandomPriority(), FetchOptions{})
	return Jitter(p.cfg.BaseDelay)
}
