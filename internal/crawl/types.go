package crawl

import (
	"context"
	"net/http"
	"time"
)

// VideoRecord is the canonical metadata record keyed by watch-page URI.
// Fields other than URI are populated progressively; zero values mean "unknown"
// and are never allowed to overwrite richer stored values on upsert.
type VideoRecord struct {
	URI           string
	Title         string
	Description   string
	AuthorName    string
	AuthorURL     string
	LengthSeconds int64
	ViewCount     int64
	Category      string
	UploadDate    string
	FuzzyWords    string
}

// SearchResult is one page of ranked hits plus the total match count.
type SearchResult struct {
	Hits  []VideoRecord
	Total int
}

// Store is the persistence contract the crawl pipeline depends on.
type Store interface {
	// UpsertVideo merges the non-empty fields of rec into the stored record,
	// creating it if absent. The merge is additive at the field level.
	UpsertVideo(ctx context.Context, rec VideoRecord) error

	// FindIncomplete returns up to limit records whose title and description
	// are both still empty.
	FindIncomplete(ctx context.Context, limit int) ([]VideoRecord, error)

	// ClaimNextQuery atomically returns one not-yet-crawled query and marks it
	// crawled. ok is false when no unclaimed query exists.
	ClaimNextQuery(ctx context.Context) (query string, ok bool, err error)

	// RecordQuery upserts a query string with its last-seen time.
	RecordQuery(ctx context.Context, query string, seen time.Time) error

	// SearchVideos runs a ranked full-text search over the fuzzy token field.
	// Pages are 1-based.
	SearchVideos(ctx context.Context, query string, page, pageSize int) (SearchResult, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// Searcher issues a query against the platform's internal search and returns
// the video identifiers it surfaced.
type Searcher interface {
	Search(ctx context.Context, query string) ([]string, error)
}

// Suggester returns follow-up query suggestions for a query string.
type Suggester interface {
	Suggest(ctx context.Context, query string) ([]string, error)
}

// ChannelFollower is invoked by the extractor when a record carries a
// recognized channel reference.
type ChannelFollower interface {
	Follow(ctx context.Context, channelID string)
}

// Fetch priorities. Lower is more urgent.
const (
	// PriorityTop is used for externally validated identifiers and sweeps.
	PriorityTop = 0
	// PriorityDefault is used for feed items and platform search results.
	PriorityDefault = 5
	// Random probes land in the [PriorityProbeMin, PriorityProbeMax] band.
	PriorityProbeMin = 8
	PriorityProbeMax = 15
)

// FetchOptions carries per-request overrides for a scheduled fetch.
type FetchOptions struct {
	// Timeout overrides the scheduler's default per-fetch timeout when > 0.
	Timeout time.Duration
	// Header entries are added to the outbound request.
	Header http.Header
}

// FetchResult is a completed fetch delivered to the extraction loop.
type FetchResult struct {
	URI        string
	StatusCode int
	Body       []byte
	Err        error
}
