package platform

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSearchExtractsIdentifiers(t *testing.T) {
	t.Parallel()

	page := `<html><script>var ytInitialData = {"contents":[` +
		`{"videoRenderer":{"videoId":"abc12345678"}},` +
		`{"videoRenderer":{"videoId":"def12345678"}},` +
		`{"videoRenderer":{"videoId":"abc12345678"}}]};</script></html>`

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/results", r.URL.Path)
		assert.Equal(t, "cats & dogs", r.URL.Query().Get("search_query"))
		_, _ = w.Write([]byte(page))
	}))
	defer upstream.Close()

	c := NewSearchClient(SearchConfig{BaseURL: upstream.URL, Timeout: 5 * time.Second}, zap.NewNop())
	ids, err := c.Search(context.Background(), "cats & dogs")
	require.NoError(t, err)
	assert.Equal(t, []string{"abc12345678", "def12345678"}, ids,
		"repeated references collapse in order")
}

func TestSearchEmptyPage(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>no results</html>"))
	}))
	defer upstream.Close()

	c := NewSearchClient(SearchConfig{BaseURL: upstream.URL}, zap.NewNop())
	ids, err := c.Search(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSearchNonOKStatus(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer upstream.Close()

	c := NewSearchClient(SearchConfig{BaseURL: upstream.URL}, zap.NewNop())
	_, err := c.Search(context.Background(), "anything")
	assert.ErrorContains(t, err, "429")
}

func TestSearchSendsUserAgent(t *testing.T) {
	t.Parallel()

	seen := make(chan string, 1)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Header.Get("User-Agent")
	}))
	defer upstream.Close()

	c := NewSearchClient(SearchConfig{
		BaseURL:   upstream.URL,
		UserAgent: func() string { return "tester/1.0" },
	}, zap.NewNop())
	_, err := c.Search(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "tester/1.0", <-seen)
}
