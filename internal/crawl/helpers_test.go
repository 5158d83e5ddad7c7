package crawl

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// fakeStore is an in-memory Store for pipeline tests.
type fakeStore struct {
	mu         sync.Mutex
	upserts    []VideoRecord
	incomplete []VideoRecord
	queries    []string
	claimable  []string
}

func (f *fakeStore) UpsertVideo(_ context.Context, rec VideoRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, rec)
	return nil
}

func (f *fakeStore) FindIncomplete(_ context.Context, limit int) ([]VideoRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.incomplete) > limit {
		return f.incomplete[:limit], nil
	}
	return f.incomplete, nil
}

func (f *fakeStore) ClaimNextQuery(_ context.Context) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.claimable) == 0 {
		return "", false, nil
	}
	q := f.claimable[0]
	f.claimable = f.claimable[1:]
	return q, true, nil
}

func (f *fakeStore) RecordQuery(_ context.Context, query string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	return nil
}

func (f *fakeStore) SearchVideos(_ context.Context, _ string, _, _ int) (SearchResult, error) {
	return SearchResult{}, nil
}

func (f *fakeStore) upsertedURIs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	uris := make([]string, 0, len(f.upserts))
	for _, rec := range f.upserts {
		uris = append(uris, rec.URI)
	}
	return uris
}

func (f *fakeStore) lastUpsert() (VideoRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.upserts) == 0 {
		return VideoRecord{}, false
	}
	return f.upserts[len(f.upserts)-1], true
}

// fakeFollower records followed channels and signals each call.
type fakeFollower struct {
	mu       sync.Mutex
	channels []string
	called   chan string
}

func newFakeFollower() *fakeFollower {
	return &fakeFollower{called: make(chan string, 8)}
}

func (f *fakeFollower) Follow(_ context.Context, channelID string) {
	f.mu.Lock()
	f.channels = append(f.channels, channelID)
	f.mu.Unlock()
	f.called <- channelID
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}
