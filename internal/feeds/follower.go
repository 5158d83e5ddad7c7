// Package feeds follows publisher syndication feeds discovered during
// extraction, enqueueing every listed video identifier.
package feeds

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/tubedex/tubedex/internal/crawl"
)

// Submitter probes a trusted identifier at the given priority.
type Submitter interface {
	SubmitID(ctx context.Context, id string, priority int)
}

// Config controls the follower.
type Config struct {
	// BaseURL is the platform origin serving the feeds.
	BaseURL string
	// UserAgent supplies the outbound User-Agent string.
	UserAgent string
	// Timeout bounds each feed fetch.
	Timeout time.Duration
}

// Follower fetches a channel's video feed and submits each entry. Feed
// volume is small, so fetches run through their own collector rather than
// the priority-managed scheduler.
type Follower struct {
	state     *crawl.State
	submitter Submitter
	cfg       Config
	base      *colly.Collector
	logger    *zap.Logger
}

// New constructs a Follower.
func New(state *crawl.State, submitter Submitter, cfg Config, logger *zap.Logger) *Follower {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.youtube.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.SetRequestTimeout(cfg.Timeout)
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	return &Follower{state: state, submitter: submitter, cfg: cfg, base: c, logger: logger}
}

// Follow fetches the channel's syndication feed and submits every listed
// identifier at default priority. The feed URI passes through the shared
// seen-set so one channel is followed at most once per cache window.
func (f *Follower) Follow(ctx context.Context, channelID string) {
	feedURL := fmt.Sprintf("%s/feeds/videos.xml?channel_id=%s", f.cfg.BaseURL, channelID)
	if !f.state.MarkSeen(feedURL) {
		return
	}

	collector := f.base.Clone()
	count := 0
	collector.OnXML("//entry/videoId", func(e *colly.XMLElement) {
		id := e.Text
		if len(id) != crawl.IDLength {
			return
		}
		f.submitter.SubmitID(ctx, id, crawl.PriorityDefault)
		count++
	})
	collector.OnError(func(_ *colly.Response, err error) {
		f.logger.Debug("feed fetch failed", zap.String("channel", channelID), zap.Error(err))
	})

	if err := collector.Visit(feedURL); err != nil {
		f.logger.Debug("feed visit failed", zap.String("channel", channelID), zap.Error(err))
		return
	}
	f.logger.Debug("feed followed", zap.String("channel", channelID), zap.Int("ids", count))
}
