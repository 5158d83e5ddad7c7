package crawl

import (
	"container/heap"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tubedex/tubedex/internal/metrics"
)

// SchedulerConfig controls the fetch pool.
type SchedulerConfig struct {
	// MaxConns caps simultaneously in-flight fetches.
	MaxConns int
	// RatePerSecond gates dispatch when > 0.
	RatePerSecond float64
	// Timeout bounds each fetch unless overridden per item.
	Timeout time.Duration
	// MaxRetries is the extra attempt count after a transport failure.
	MaxRetries int
	// Gather globally disables fetching when false; submissions still mark
	// the seen-set so callers observe the same dedup behavior.
	Gather bool
	// UserAgent supplies the outbound User-Agent string per request.
	UserAgent func() string
}

type fetchTask struct {
	uri      string
	priority int
	opts     FetchOptions
	seq      uint64
}

// taskHeap orders by priority (lower first), then submission order.
type taskHeap []*fetchTask

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)   { *h = append(*h, x.(*fetchTask)) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

// Scheduler is the dedup-fronted, priority-ordered fetch pool. Submissions
// pass through the shared seen-set before entering the queue; the dispatch
// loop respects the in-flight cap and the optional rate gate, and completed
// fetches are delivered on the Results channel for the extraction loop.
type Scheduler struct {
	cfg     SchedulerConfig
	state   *State
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger

	mu       sync.Mutex
	queue    taskHeap
	inflight int
	seq      uint64

	wake    chan struct{}
	results chan FetchResult
}

// NewScheduler builds a Scheduler around the shared state.
func NewScheduler(state *State, cfg SchedulerConfig, logger *zap.Logger) *Scheduler {
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	return &Scheduler{
		cfg:     cfg,
		state:   state,
		client:  &http.Client{},
		limiter: limiter,
		logger:  logger,
		wake:    make(chan struct{}, 1),
		results: make(chan FetchResult, cfg.MaxConns),
	}
}

// Submit records uri in the seen-set and enqueues a fetch at the given
// priority. It returns false without side effects when uri was already seen.
// The seen-set insertion and the enqueue are atomic relative to other
// submissions for the same URI.
func (s *Scheduler) Submit(uri string, priority int, opts FetchOptions) bool {
	if !s.state.MarkSeen(uri) {
		return false
	}
	if !s.cfg.Gather {
		return true
	}
	s.mu.Lock()
	s.seq++
	heap.Push(&s.queue, &fetchTask{uri: uri, priority: priority, opts: opts, seq: s.seq})
	depth := len(s.queue)
	s.mu.Unlock()
	metrics.SetQueueDepth(depth)
	s.signal()
	return true
}

// Depth returns the number of fetches waiting in the queue.
func (s *Scheduler) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Results is the channel of completed fetches.
func (s *Scheduler) Results() <-chan FetchResult {
	return s.results
}

// Run dispatches queued fetches until the context finishes. In-flight
// fetches are abandoned on shutdown without cleanup guarantees.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		task, ok := s.next(ctx)
		if !ok {
			return
		}
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return
			}
		}
		go s.execute(ctx, task)
	}
}

func (s *Scheduler) next(ctx context.Context) (*fetchTask, bool) {
	for {
		s.mu.Lock()
		if s.inflight < s.cfg.MaxConns && len(s.queue) > 0 {
			task := heap.Pop(&s.queue).(*fetchTask)
			s.inflight++
			depth := len(s.queue)
			s.mu.Unlock()
			metrics.SetQueueDepth(depth)
			return task, true
		}
		s.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, false
		case <-s.wake:
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, task *fetchTask) {
	defer func() {
		s.mu.Lock()
		s.inflight--
		s.mu.Unlock()
		s.signal()
	}()

	result := s.fetch(ctx, task)
	metrics.ObserveFetch(result.StatusCode)
	select {
	case s.results <- result:
	case <-ctx.Done():
	}
}

func (s *Scheduler) fetch(ctx context.Context, task *fetchTask) FetchResult {
	timeout := s.cfg.Timeout
	if task.opts.Timeout > 0 {
		timeout = task.opts.Timeout
	}

	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		status, body, err := s.fetchOnce(ctx, task, timeout)
		if err == nil {
			return FetchResult{URI: task.uri, StatusCode: status, Body: body}
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		s.logger.Debug("fetch attempt failed",
			zap.String("uri", task.uri),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return FetchResult{URI: task.uri, Err: lastErr}
}

func (s *Scheduler) fetchOnce(ctx context.Context, task *fetchTask, timeout time.Duration) (int, []byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, task.uri, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	if s.cfg.UserAgent != nil {
		req.Header.Set("User-Agent", s.cfg.UserAgent())
	}
	for key, values := range task.opts.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, body, nil
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
