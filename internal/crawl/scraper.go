package crawl

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// scrapeState tracks where the scraper is in its request/parse cycle.
type scrapeState int

const (
	scrapeIdle scrapeState = iota
	scrapeSending
	scrapeParsingResults
	scrapeParsingContinuation
	scrapeRateLimited
)

// continuation is the opaque set of hidden form fields carried between
// successive result pages of one scrape session. It is produced and consumed
// only here; nothing else may inspect it.
type continuation struct {
	fields url.Values
}

// ScraperConfig controls the search-engine scraper.
type ScraperConfig struct {
	// Endpoint is the HTML search endpoint accepting form POSTs.
	Endpoint string
	// BaseDelay is the inter-tick base window.
	BaseDelay time.Duration
	// PenaltyDelay is added to the backoff after a rate-limited response.
	PenaltyDelay time.Duration
	// UserAgent supplies the outbound User-Agent string.
	UserAgent func() string
}

// Scraper drives a stateful paginated scrape of a general web search engine,
// harvesting embedded-platform URLs from result markup. Identifiers surfaced
// here are externally validated and cheap to confirm, so they probe at the
// most urgent priority.
type Scraper struct {
	prober *Prober
	state  *State
	client *http.Client
	cfg    ScraperConfig
	logger *zap.Logger

	st    scrapeState
	query string
	cont  *continuation
}

// NewScraper constructs a Scraper.
func NewScraper(prober *Prober, state *State, cfg ScraperConfig, logger *zap.Logger) *Scraper {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://html.duckduckgo.com/html/"
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 20 * time.Second
	}
	if cfg.PenaltyDelay <= 0 {
		cfg.PenaltyDelay = 2 * time.Minute
	}
	if cfg.UserAgent == nil {
		cfg.UserAgent = RandomUserAgent
	}
	return &Scraper{
		prober: prober,
		state:  state,
		client: &http.Client{Timeout: 20 * time.Second},
		cfg:    cfg,
		logger: logger,
		st:     scrapeIdle,
		query:  seedQuery(),
	}
}

// seedQuery starts a new randomized site-restricted scrape session.
func seedQuery() string {
	return fmt.Sprintf("site:youtube.com %c", 'a'+rand.IntN(26))
}

// Run executes the scraper as a self-repeating task.
func (s *Scraper) Run(ctx context.Context) {
	Loop(ctx, Jitter(s.cfg.BaseDelay), s.tick)
}

func (s *Scraper) tick(ctx context.Context) time.Duration {
	// Under backpressure the pending request is rescheduled unchanged; no
	// state transition happens.
	if s.state.UpdateBackpressure(s.prober.sched.Depth()) {
		return Jitter(s.cfg.BaseDelay / 2)
	}

	s.st = scrapeSending
	body, err := s.request(ctx)
	if err != nil {
		s.st = scrapeRateLimited
		s.cont = nil
		s.query = seedQuery()
		s.logger.Info("scrape treated as rate limited", zap.Error(err))
		return Jitter(s.cfg.BaseDelay) + s.cfg.PenaltyDelay
	}

	s.st = scrapeParsingResults
	ids := ExtractVideoIDs(body)
	for _, id := range ids {
		s.prober.SubmitID(ctx, id, PriorityTop)
	}

	s.st = scrapeParsingContinuation
	if cont := parseContinuation(body); cont != nil {
		s.cont = cont
	} else {
		// Query exhausted; start a fresh session next tick.
		s.cont = nil
		s.query = seedQuery()
	}
	s.logger.Debug("scrape page processed",
		zap.Int("ids", len(ids)),
		zap.Bool("continued", s.cont != nil),
	)

	s.st = scrapeIdle
	return Jitter(s.cfg.BaseDelay)
}

func (s *Scraper) request(ctx context.Context) (string, error) {
	form := url.Values{}
	if s.cont != nil {
		form = s.cont.fields
	} else {
		form.Set("q", s.query)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build scrape request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", s.cfg.UserAgent())

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("scrape request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("scrape status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read scrape body: %w", err)
	}
	return string(body), nil
}

// parseContinuation scans the result markup for the next-page form and
// captures its hidden fields. A nil return signals end-of-results.
func parseContinuation(body string) *continuation {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil
	}

	var fields url.Values
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "form" {
			if f := hiddenFields(n); f != nil {
				fields = f
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if fields == nil {
		return nil
	}
	return &continuation{fields: fields}
}

// hiddenFields collects the hidden inputs of a form, requiring the paging
// marker field so the top-of-page search box is not mistaken for a
// continuation.
func hiddenFields(form *html.Node) url.Values {
	fields := url.Values{}
	hasPaging := false
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "input" {
			var name, value, typ string
			for _, attr := range n.Attr {
				switch attr.Key {
				case "name":
					name = attr.Val
				case "value":
					value = attr.Val
				case "type":
					typ = attr.Val
				}
			}
			if typ == "hidden" && name != "" {
				fields.Set(name, value)
				if name == "s" || name == "dc" {
					hasPaging = true
				}
			}
			if name == "q" {
				fields.Set(name, value)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(form)

	if !hasPaging {
		return nil
	}
	return fields
}
