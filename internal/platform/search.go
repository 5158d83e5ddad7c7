// Package platform provides thin clients for the content platform's internal
// search and query-suggestion endpoints. Both are opaque to the crawl engine:
// a query string in, a result list out.
package platform

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"go.uber.org/zap"
)

// SearchConfig controls the search client.
type SearchConfig struct {
	// BaseURL is the platform origin.
	BaseURL string
	// UserAgent supplies the outbound User-Agent string.
	UserAgent func() string
	// Timeout bounds each request.
	Timeout time.Duration
}

// SearchClient scrapes the platform's public results page for video
// identifiers. The page embeds them as watch references in its initial data
// blob; a pattern scan is enough, ordering and metadata are not needed here.
type SearchClient struct {
	cfg    SearchConfig
	client *http.Client
	logger *zap.Logger
}

var watchRefPattern = regexp.MustCompile(`"videoId":"([0-9A-Za-z_-]{11})"`)

// NewSearchClient constructs a SearchClient.
func NewSearchClient(cfg SearchConfig, logger *zap.Logger) *SearchClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.youtube.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &SearchClient{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

// Search returns the video identifiers surfaced for query, de-duplicated in
// result order.
func (c *SearchClient) Search(ctx context.Context, query string) ([]string, error) {
	endpoint := fmt.Sprintf("%s/results?search_query=%s", c.cfg.BaseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	if c.cfg.UserAgent != nil {
		req.Header.Set("User-Agent", c.cfg.UserAgent())
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read search body: %w", err)
	}

	matches := watchRefPattern.FindAllSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		id := string(m[1])
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}
