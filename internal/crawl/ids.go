package crawl

import (
	"crypto/rand"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// IDLength is the fixed length of a video identifier.
const IDLength = 11

// idAlphabet is the 64-symbol identifier alphabet. 64 divides 256, so masking
// a random byte to 6 bits keeps each character independently uniform.
const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// NewVideoID generates a syntactically valid, statistically
// unlikely-to-collide video identifier from a cryptographically sound source.
// No collision check is attempted; the platform's existence probe is the
// real filter.
func NewVideoID() (string, error) {
	buf := make([]byte, IDLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	for i, b := range buf {
		buf[i] = idAlphabet[b&0x3f]
	}
	return string(buf), nil
}

// videoURLPattern matches embedded-platform URLs in arbitrary text and
// captures the identifier portion of each known URL shape.
var videoURLPattern = regexp.MustCompile(
	`(?:youtu\.be/|youtube\.com/(?:watch\?v=|embed/|shorts/|v/))([0-9A-Za-z_-]+)`,
)

// channelURLPattern recognizes publisher channel references.
var channelURLPattern = regexp.MustCompile(`youtube\.com/channel/([0-9A-Za-z_-]+)`)

// ExtractVideoIDs scans text for embedded-platform URLs and returns the
// identifiers they carry, truncated to the fixed length and de-duplicated
// within the batch.
func ExtractVideoIDs(text string) []string {
	matches := videoURLPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		id := m[1]
		if len(id) > IDLength {
			id = id[:IDLength]
		}
		if len(id) < IDLength {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// ChannelIDFromURL extracts the channel identifier from a publisher URL,
// reporting whether the URL has a recognized channel shape.
func ChannelIDFromURL(rawURL string) (string, bool) {
	m := channelURLPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// WatchURL builds the canonical watch-page URI for an identifier.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

// ProbeURL builds the lightweight oEmbed metadata probe for a watch URI.
func ProbeURL(watchURL string) string {
	return "https://www.youtube.com/oembed?format=json&url=" + url.QueryEscape(watchURL)
}

// CleanURI maps a fetched URI back to its canonical watch-page form: probe
// URIs yield the watch URI they wrap, watch URIs are stripped of extra
// parameters. URIs without a recognizable identifier pass through unchanged.
func CleanURI(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if strings.Contains(u.Path, "/oembed") {
		if wrapped := u.Query().Get("url"); wrapped != "" {
			return CleanURI(wrapped)
		}
	}
	if id := u.Query().Get("v"); len(id) >= IDLength {
		return WatchURL(id[:IDLength])
	}
	if m := videoURLPattern.FindStringSubmatch(rawURL); m != nil && len(m[1]) >= IDLength {
		return WatchURL(m[1][:IDLength])
	}
	return rawURL
}
