package crawl

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SearchDriverConfig controls the platform-search strategy.
type SearchDriverConfig struct {
	// BaseDelay is the inter-tick base window.
	BaseDelay time.Duration
	// MinDelay is the lower bound on any rescheduling delay.
	MinDelay time.Duration
	// ManualQueries enables consuming externally submitted query records.
	ManualQueries bool
	// Suggestions enables the suggestion feedback loop.
	Suggestions bool
	// Priority applies to submitted identifiers.
	Priority int
}

// SearchDriver issues queries against the platform's internal search and
// probes every identifier it returns. Query strings are resolved in priority
// order: an externally submitted query record, a pending suggestion, a random
// dictionary word.
type SearchDriver struct {
	prober    *Prober
	state     *State
	store     Store
	searcher  Searcher
	suggester Suggester
	cfg       SearchDriverConfig
	logger    *zap.Logger
}

// NewSearchDriver constructs a SearchDriver.
func NewSearchDriver(
	prober *Prober,
	state *State,
	store Store,
	searcher Searcher,
	suggester Suggester,
	cfg SearchDriverConfig,
	logger *zap.Logger,
) *SearchDriver {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 10 * time.Second
	}
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = 2 * time.Second
	}
	if cfg.Priority <= 0 {
		cfg.Priority = PriorityDefault
	}
	return &SearchDriver{
		prober:    prober,
		state:     state,
		store:     store,
		searcher:  searcher,
		suggester: suggester,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run executes the driver as a self-repeating task.
func (d *SearchDriver) Run(ctx context.Context) {
	Loop(ctx, Jitter(d.cfg.BaseDelay), d.tick)
}

func (d *SearchDriver) tick(ctx context.Context) time.Duration {
	delay := Jitter(d.cfg.BaseDelay)
	if delay < d.cfg.MinDelay {
		delay = d.cfg.MinDelay
	}
	if d.state.UpdateBackpressure(d.prober.sched.Depth()) {
		return delay
	}

	query := d.resolveQuery(ctx)
	if !d.state.MarkQueried(query) {
		// Issued recently; skip this tick rather than hammer a repeat.
		return delay
	}

	ids, err := d.searcher.Search(ctx, query)
	if err != nil {
		d.logger.Warn("platform search failed", zap.String("query", query), zap.Error(err))
		return delay
	}
	for _, id := range ids {
		d.prober.SubmitID(ctx, id, d.cfg.Priority)
	}
	d.logger.Debug("platform search done", zap.String("query", query), zap.Int("ids", len(ids)))

	// Fetch suggestions at most while the cache is drained, to bound
	// suggestion-fetch volume.
	if len(ids) > 0 && d.cfg.Suggestions && d.suggester != nil && d.state.SuggestionsEmpty() {
		go d.fetchSuggestions(ctx, query)
	}
	return delay
}

// resolveQuery picks the next query string: a claimed submitted query first,
// then a pending suggestion, then a random dictionary word.
func (d *SearchDriver) resolveQuery(ctx context.Context) string {
	if d.cfg.ManualQueries {
		if q, ok, err := d.store.ClaimNextQuery(ctx); err != nil {
			d.logger.Warn("claim query failed", zap.Error(err))
		} else if ok {
			return q
		}
	}
	if q, ok := d.state.PopSuggestion(); ok {
		return q
	}
	return RandomWord()
}

func (d *SearchDriver) fetchSuggestions(ctx context.Context, query string) {
	suggestions, err := d.suggester.Suggest(ctx, query)
	if err != nil {
		d.logger.Debug("suggestion fetch failed", zap.String("query", query), zap.Error(err))
		return
	}
	if len(suggestions) > 0 {
		d.state.PushSuggestions(suggestions)
	}
}
