package crawl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitDedup(t *testing.T) {
	t.Parallel()

	state := NewState(StateConfig{})
	s := NewScheduler(state, SchedulerConfig{Gather: true}, testLogger())

	require.True(t, s.Submit("https://example.com/a", PriorityDefault, FetchOptions{}))
	assert.Equal(t, 1, s.Depth())

	assert.False(t, s.Submit("https://example.com/a", PriorityTop, FetchOptions{}))
	assert.Equal(t, 1, s.Depth(), "rejected submission must not enqueue")
}

func TestSubmitGatherDisabled(t *testing.T) {
	t.Parallel()

	state := NewState(StateConfig{})
	s := NewScheduler(state, SchedulerConfig{Gather: false}, testLogger())

	assert.True(t, s.Submit("https://example.com/a", PriorityDefault, FetchOptions{}))
	assert.Equal(t, 0, s.Depth(), "gathering disabled leaves the queue empty")
	assert.False(t, s.Submit("https://example.com/a", PriorityDefault, FetchOptions{}),
		"the seen-set still records the uri")
}

func TestPriorityOrdering(t *testing.T) {
	t.Parallel()

	state := NewState(StateConfig{})
	s := NewScheduler(state, SchedulerConfig{Gather: true, MaxConns: 1}, testLogger())

	s.Submit("https://example.com/low", PriorityProbeMax, FetchOptions{})
	s.Submit("https://example.com/top", PriorityTop, FetchOptions{})
	s.Submit("https://example.com/mid", PriorityDefault, FetchOptions{})

	ctx := context.Background()
	first, ok := s.next(ctx)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/top", first.uri)
}

func TestPriorityFIFOWithinBand(t *testing.T) {
	t.Parallel()

	state := NewState(StateConfig{})
	s := NewScheduler(state, SchedulerConfig{Gather: true}, testLogger())

	s.Submit("https://example.com/first", PriorityDefault, FetchOptions{})
	s.Submit("https://example.com/second", PriorityDefault, FetchOptions{})

	ctx := context.Background()
	first, ok := s.next(ctx)
	require.True(t, ok)
	second, ok := s.next(ctx)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/first", first.uri)
	assert.Equal(t, "https://example.com/second", second.uri)
}

func TestRunDeliversResults(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"title":"ok"}`))
	}))
	defer upstream.Close()

	state := NewState(StateConfig{})
	s := NewScheduler(state, SchedulerConfig{Gather: true, MaxConns: 2, Timeout: 5 * time.Second}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	require.True(t, s.Submit(upstream.URL+"/one", PriorityDefault, FetchOptions{}))
	require.True(t, s.Submit(upstream.URL+"/two", PriorityDefault, FetchOptions{}))

	got := map[string]FetchResult{}
	for i := 0; i < 2; i++ {
		select {
		case res := <-s.Results():
			got[res.URI] = res
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for results")
		}
	}
	require.Len(t, got, 2)
	for _, res := range got {
		assert.NoError(t, res.Err)
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, `{"title":"ok"}`, string(res.Body))
	}
	assert.Equal(t, int32(2), hits.Load())
}

func TestRunRetriesTransportErrors(t *testing.T) {
	t.Parallel()

	state := NewState(StateConfig{})
	s := NewScheduler(state, SchedulerConfig{
		Gather:     true,
		MaxConns:   1,
		Timeout:    200 * time.Millisecond,
		MaxRetries: 2,
	}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	// Nothing listens on this address; every attempt fails at transport level.
	require.True(t, s.Submit("http://127.0.0.1:1/unreachable", PriorityTop, FetchOptions{}))

	select {
	case res := <-s.Results():
		assert.Error(t, res.Err)
		assert.Zero(t, res.StatusCode)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the failed result")
	}
}

func TestPerItemHeaderAndTimeout(t *testing.T) {
	t.Parallel()

	headerSeen := make(chan string, 1)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headerSeen <- r.Header.Get("X-Probe")
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	state := NewState(StateConfig{})
	s := NewScheduler(state, SchedulerConfig{Gather: true, MaxConns: 1, Timeout: 5 * time.Second}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	header := http.Header{}
	header.Set("X-Probe", "sweep")
	require.True(t, s.Submit(upstream.URL, PriorityTop, FetchOptions{Header: header, Timeout: time.Second}))

	select {
	case got := <-headerSeen:
		assert.Equal(t, "sweep", got)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the request")
	}
	select {
	case res := <-s.Results():
		assert.NoError(t, res.Err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the result")
	}
}
