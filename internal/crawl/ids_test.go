package crawl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVideoID(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id, err := NewVideoID()
		require.NoError(t, err)
		assert.Len(t, id, IDLength)
		for _, c := range id {
			assert.Contains(t, idAlphabet, string(c))
		}
		seen[id] = struct{}{}
	}
	// 100 draws from a 64^11 space colliding would mean a broken source.
	assert.Len(t, seen, 100)
}

func TestExtractVideoIDs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "short link with params",
			text: `<a href="https://youtu.be/abc12345678?t=5">clip</a>`,
			want: []string{"abc12345678"},
		},
		{
			name: "watch link",
			text: `https://www.youtube.com/watch?v=abc12345678`,
			want: []string{"abc12345678"},
		},
		{
			name: "embed and shorts",
			text: `youtube.com/embed/AAA-bbb_123 and youtube.com/shorts/ZZZ999xxx00`,
			want: []string{"AAA-bbb_123", "ZZZ999xxx00"},
		},
		{
			name: "duplicates collapse within batch",
			text: `youtu.be/abc12345678 youtube.com/watch?v=abc12345678`,
			want: []string{"abc12345678"},
		},
		{
			name: "overlong identifier truncates",
			text: `youtube.com/watch?v=abc12345678extratail`,
			want: []string{"abc12345678"},
		},
		{
			name: "too short is dropped",
			text: `youtu.be/short`,
			want: nil,
		},
		{
			name: "no platform urls",
			text: `<html>nothing to see</html>`,
			want: nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, ExtractVideoIDs(tc.text))
		})
	}
}

func TestChannelIDFromURL(t *testing.T) {
	t.Parallel()

	id, ok := ChannelIDFromURL("https://www.youtube.com/channel/UCabc123DEF")
	require.True(t, ok)
	assert.Equal(t, "UCabc123DEF", id)

	_, ok = ChannelIDFromURL("https://www.youtube.com/user/someone")
	assert.False(t, ok)
}

func TestProbeAndCleanURIRoundTrip(t *testing.T) {
	t.Parallel()

	watch := WatchURL("abc12345678")
	probe := ProbeURL(watch)
	assert.True(t, strings.Contains(probe, "oembed"))
	assert.Equal(t, watch, CleanURI(probe))
}

func TestCleanURI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "watch uri with extras",
			in:   "https://www.youtube.com/watch?v=abc12345678&t=12",
			want: "https://www.youtube.com/watch?v=abc12345678",
		},
		{
			name: "short link",
			in:   "https://youtu.be/abc12345678",
			want: "https://www.youtube.com/watch?v=abc12345678",
		},
		{
			name: "unrecognized passes through",
			in:   "https://example.com/page",
			want: "https://example.com/page",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, CleanURI(tc.in))
		})
	}
}
