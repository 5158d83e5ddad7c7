package crawl

import (
	"sync"

	"github.com/tubedex/tubedex/internal/metrics"
)

// StateConfig names the cache bounds and hysteresis thresholds. Zero values
// fall back to the defaults below; the exact numbers are tunables, not
// invariants, beyond low < high.
type StateConfig struct {
	SeenCap        int
	RecentQueryCap int
	QueueHighWater int
	QueueLowWater  int
}

const (
	defaultSeenCap        = 50000
	defaultRecentQueryCap = 20000
	defaultQueueHighWater = 256
	defaultQueueLowWater  = 4
)

// State is the shared mutable crawl state: the seen-URI set, counters, the
// recently-queried ring, the suggestion queue and the backpressure gate.
// Every strategy and the extractor hold the same instance; all check-and-set
// operations run under one mutex so no concurrent submission can observe the
// seen-set as "not present" twice for one URI.
type State struct {
	mu sync.Mutex

	seen    map[string]struct{}
	seenCap int
	// seenTotal counts every first sighting, surviving wholesale resets.
	seenTotal uint64

	recentQueries map[string]struct{}
	recentCap     int

	suggestions []string

	indexed uint64
	failed  uint64

	backpressure bool
	highWater    int
	lowWater     int
}

// NewState builds a State with the given bounds.
func NewState(cfg StateConfig) *State {
	if cfg.SeenCap <= 0 {
		cfg.SeenCap = defaultSeenCap
	}
	if cfg.RecentQueryCap <= 0 {
		cfg.RecentQueryCap = defaultRecentQueryCap
	}
	if cfg.QueueHighWater <= 0 {
		cfg.QueueHighWater = defaultQueueHighWater
	}
	if cfg.QueueLowWater <= 0 {
		cfg.QueueLowWater = defaultQueueLowWater
	}
	return &State{
		seen:          make(map[string]struct{}, cfg.SeenCap),
		seenCap:       cfg.SeenCap,
		recentQueries: make(map[string]struct{}),
		recentCap:     cfg.RecentQueryCap,
		highWater:     cfg.QueueHighWater,
		lowWater:      cfg.QueueLowWater,
	}
}

// MarkSeen records uri in the seen-set, reporting whether it was a first
// sighting. When the set reaches its cap it is cleared wholesale, accepting
// possible re-fetch of stale entries over the cost of precise eviction.
func (s *State) MarkSeen(uri string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[uri]; ok {
		return false
	}
	if len(s.seen) >= s.seenCap {
		s.seen = make(map[string]struct{}, s.seenCap)
	}
	s.seen[uri] = struct{}{}
	s.seenTotal++
	return true
}

// MarkQueried records a query string in the recently-issued ring, reporting
// whether it was absent. The ring is cleared wholesale on overflow.
func (s *State) MarkQueried(query string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recentQueries[query]; ok {
		return false
	}
	if len(s.recentQueries) >= s.recentCap {
		s.recentQueries = make(map[string]struct{})
	}
	s.recentQueries[query] = struct{}{}
	return true
}

// PushSuggestions appends follow-up queries for the platform-search driver.
func (s *State) PushSuggestions(queries []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suggestions = append(s.suggestions, queries...)
}

// PopSuggestion removes and returns the oldest pending suggestion.
func (s *State) PopSuggestion() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.suggestions) == 0 {
		return "", false
	}
	q := s.suggestions[0]
	s.suggestions = s.suggestions[1:]
	return q, true
}

// SuggestionsEmpty reports whether the suggestion queue is drained.
func (s *State) SuggestionsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.suggestions) == 0
}

// UpdateBackpressure re-evaluates the gate against the current queue depth:
// engage above the high-water mark, release at or below the low-water mark.
// Depths between the two marks leave the gate unchanged.
func (s *State) UpdateBackpressure(depth int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backpressure {
		if depth <= s.lowWater {
			s.backpressure = false
		}
	} else if depth > s.highWater {
		s.backpressure = true
	}
	metrics.SetBackpressure(s.backpressure)
	return s.backpressure
}

// Backpressure reports the gate without re-evaluating it.
func (s *State) Backpressure() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backpressure
}

// AddIndexed counts one successfully extracted and persisted record.
func (s *State) AddIndexed() {
	s.mu.Lock()
	s.indexed++
	s.mu.Unlock()
	metrics.IncIndexed()
}

// AddFailed counts one fetch that ended in failure.
func (s *State) AddFailed() {
	s.mu.Lock()
	s.failed++
	s.mu.Unlock()
	metrics.IncFailed()
}

// Counters is a point-in-time snapshot of the crawl counters.
type Counters struct {
	Seen    uint64 `json:"seen"`
	Indexed uint64 `json:"indexed"`
	Failed  uint64 `json:"failed"`
}

// Snapshot returns the current counter values.
func (s *State) Snapshot() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Counters{Seen: s.seenTotal, Indexed: s.indexed, Failed: s.failed}
}
