package crawl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// responseClass is the tagged classification of a completed fetch, decided
// before any field mapping is attempted.
type responseClass int

const (
	classTransportError responseClass = iota
	classOEmbed
	classWatchPage
	classUnauthorized
	classNotFound
	classRateLimited
	classServerError
	classUnexpected
)

// classify inspects status code and body shape. It is pure: no side effects,
// no parsing beyond a cheap prefix/substring check.
func classify(res FetchResult) responseClass {
	if res.Err != nil {
		return classTransportError
	}
	switch {
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		return classUnauthorized
	case res.StatusCode == http.StatusNotFound:
		return classNotFound
	case res.StatusCode == http.StatusTooManyRequests:
		return classRateLimited
	case res.StatusCode >= 500:
		return classServerError
	case res.StatusCode >= 200 && res.StatusCode < 300:
		body := bytes.TrimSpace(res.Body)
		if bytes.HasPrefix(body, []byte("{")) {
			return classOEmbed
		}
		if bytes.Contains(body, []byte(videoDetailsMarker)) {
			return classWatchPage
		}
		return classUnexpected
	default:
		return classUnexpected
	}
}

// ExtractorConfig controls extraction side effects.
type ExtractorConfig struct {
	// FollowChannels enables feed discovery from extracted channel references.
	FollowChannels bool
}

// Extractor turns completed fetches into canonical records: classify, map,
// index, persist, and optionally follow the publisher's feed. Extraction
// errors are contained here; nothing propagates past the loop.
type Extractor struct {
	state    *State
	store    Store
	follower ChannelFollower
	cfg      ExtractorConfig
	logger   *zap.Logger
}

// NewExtractor constructs an Extractor.
func NewExtractor(state *State, store Store, follower ChannelFollower, cfg ExtractorConfig, logger *zap.Logger) *Extractor {
	return &Extractor{state: state, store: store, follower: follower, cfg: cfg, logger: logger}
}

// Run consumes fetch results until the channel closes or the context ends.
func (e *Extractor) Run(ctx context.Context, results <-chan FetchResult) {
	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-results:
			if !ok {
				return
			}
			e.Process(ctx, res)
		}
	}
}

// Process handles one completed fetch according to the status/shape policy.
func (e *Extractor) Process(ctx context.Context, res FetchResult) {
	uri := CleanURI(res.URI)
	switch classify(res) {
	case classTransportError:
		e.state.AddFailed()
		e.logger.Debug("fetch failed", zap.String("uri", uri), zap.Error(res.Err))
	case classServerError:
		e.state.AddFailed()
		e.logger.Debug("upstream server error", zap.String("uri", uri), zap.Int("status", res.StatusCode))
	case classUnauthorized:
		// The item exists but its metadata is inaccessible through this
		// channel; record the sighting only.
		if err := e.store.UpsertVideo(ctx, VideoRecord{URI: uri}); err != nil {
			e.logger.Warn("placeholder upsert failed", zap.String("uri", uri), zap.Error(err))
		}
	case classNotFound:
		// Benign absence: most probed identifiers are invalid.
	case classRateLimited:
		e.logger.Info("rate limited by upstream", zap.String("uri", uri))
	case classOEmbed:
		rec, err := parseOEmbed(res.Body)
		if err != nil {
			e.logger.Warn("oembed parse failed", zap.String("uri", uri), zap.Error(err))
			return
		}
		rec.URI = uri
		e.persist(ctx, rec)
	case classWatchPage:
		rec, err := parseWatchPage(res.Body)
		if err != nil {
			e.logger.Warn("watch page parse failed", zap.String("uri", uri), zap.Error(err))
			return
		}
		rec.URI = uri
		e.persist(ctx, rec)
	default:
		e.state.AddFailed()
		e.logger.Warn("unexpected response", zap.String("uri", uri), zap.Int("status", res.StatusCode))
	}
}

func (e *Extractor) persist(ctx context.Context, rec VideoRecord) {
	if tokens := FuzzyTokens(rec.Title, rec.Description, rec.AuthorName); tokens != "" {
		rec.FuzzyWords = tokens
	}
	if err := e.store.UpsertVideo(ctx, rec); err != nil {
		e.logger.Warn("upsert failed", zap.String("uri", rec.URI), zap.Error(err))
		return
	}
	e.state.AddIndexed()

	if !e.cfg.FollowChannels || e.follower == nil || e.state.Backpressure() {
		return
	}
	if channelID, ok := ChannelIDFromURL(rec.AuthorURL); ok {
		go e.follower.Follow(ctx, channelID)
	}
}

// oEmbed is the compact probe response shape.
type oEmbed struct {
	Title      string `json:"title"`
	AuthorName string `json:"author_name"`
	AuthorURL  string `json:"author_url"`
}

func parseOEmbed(body []byte) (VideoRecord, error) {
	var o oEmbed
	if err := json.Unmarshal(bytes.TrimSpace(body), &o); err != nil {
		return VideoRecord{}, fmt.Errorf("decode oembed: %w", err)
	}
	return VideoRecord{Title: o.Title, AuthorName: o.AuthorName, AuthorURL: o.AuthorURL}, nil
}

const (
	videoDetailsMarker = `"videoDetails":`
	microformatMarker  = `"playerMicroformatRenderer":`
)

// videoDetails is the embedded player metadata block of a watch page.
type videoDetails struct {
	Title            string `json:"title"`
	ShortDescription string `json:"shortDescription"`
	LengthSeconds    string `json:"lengthSeconds"`
	ViewCount        string `json:"viewCount"`
	Author           string `json:"author"`
	ChannelID        string `json:"channelId"`
}

type microformat struct {
	Category    string `json:"category"`
	UploadDate  string `json:"uploadDate"`
	PublishDate string `json:"publishDate"`
}

// parseWatchPage locates the embedded player JSON by its textual delimiter
// and isolates the object with a string-aware brace scan, which also covers
// the optional nested sub-blocks (live broadcast details and the like) that a
// naive terminator search would trip over.
func parseWatchPage(body []byte) (VideoRecord, error) {
	block, err := jsonBlockAfter(body, videoDetailsMarker)
	if err != nil {
		return VideoRecord{}, fmt.Errorf("locate video details: %w", err)
	}
	var vd videoDetails
	if err := json.Unmarshal(block, &vd); err != nil {
		return VideoRecord{}, fmt.Errorf("decode video details: %w", err)
	}

	rec := VideoRecord{
		Title:       vd.Title,
		Description: vd.ShortDescription,
		AuthorName:  vd.Author,
	}
	if vd.ChannelID != "" {
		rec.AuthorURL = "https://www.youtube.com/channel/" + vd.ChannelID
	}
	if vd.LengthSeconds != "" {
		n, err := strconv.ParseInt(vd.LengthSeconds, 10, 64)
		if err != nil {
			return VideoRecord{}, fmt.Errorf("parse length: %w", err)
		}
		rec.LengthSeconds = n
	}
	if vd.ViewCount != "" {
		n, err := strconv.ParseInt(vd.ViewCount, 10, 64)
		if err != nil {
			return VideoRecord{}, fmt.Errorf("parse view count: %w", err)
		}
		rec.ViewCount = n
	}

	// The microformat renderer is present on most but not all pages.
	if mfBlock, err := jsonBlockAfter(body, microformatMarker); err == nil {
		var mf microformat
		if err := json.Unmarshal(mfBlock, &mf); err == nil {
			rec.Category = mf.Category
			rec.UploadDate = mf.UploadDate
			if rec.UploadDate == "" {
				rec.UploadDate = mf.PublishDate
			}
		}
	}
	return rec, nil
}

// jsonBlockAfter returns the balanced JSON object immediately following
// marker, honoring string literals and escapes.
func jsonBlockAfter(body []byte, marker string) ([]byte, error) {
	idx := bytes.Index(body, []byte(marker))
	if idx < 0 {
		return nil, errors.New("marker not found")
	}
	rest := body[idx+len(marker):]
	start := bytes.IndexByte(rest, '{')
	if start < 0 || len(bytes.TrimSpace(rest[:start])) != 0 {
		return nil, errors.New("no object after marker")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(rest); i++ {
		c := rest[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return rest[start : i+1], nil
			}
		}
	}
	return nil, errors.New("unterminated object")
}
