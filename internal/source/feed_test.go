package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"disasterwatch/internal/config"
	"disasterwatch/internal/dedup"
	"disasterwatch/internal/metrics"
)

// -- Helpers ---

const rssTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>World</title>
<item><title>Floods displace thousands in Assam</title><link>%[1]s/a/flood</link><pubDate>Tue, 02 Jan 2024 10:00:00 GMT</pubDate></item>
<item><title></title><link>%[1]s/a/quake</link></item>
<item><title>Broken page</title><link>%[1]s/a/missing</link></item>
</channel></rss>`

const floodPage = `<html><head><title>BBC - Floods</title><script>var x = 1;</script></head>
<body><nav>Home | World</nav><header>Site header</header>
<article><h1>Floods displace thousands</h1>
<p>Heavy   monsoon rain
flooded villages.</p><style>.x{}</style></article>
<footer>Copyright</footer></body></html>`

const quakePage = `<html><body><h1>Strong earthquake hits Izmir</h1><p>Buildings collapsed.</p></body></html>`

type feedServer struct {
	*httptest.Server
	articleHits atomic.Int32
	userAgent   atomic.Value
}

func newFeedServer(t *testing.T) *feedServer {
	t.Helper()
	fs := &feedServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/rss", func(w http.ResponseWriter, r *http.Request) {
		fs.userAgent.Store(r.Header.Get("User-Agent"))
		fmt.Fprintf(w, rssTemplate, fs.URL)
	})
	mux.HandleFunc("/a/flood", func(w http.ResponseWriter, r *http.Request) {
		fs.articleHits.Add(1)
		w.Write([]byte(floodPage))
	})
	mux.HandleFunc("/a/quake", func(w http.ResponseWriter, r *http.Request) {
		fs.articleHits.Add(1)
		w.Write([]byte(quakePage))
	})
	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

func newTestFeed(t *testing.T, urls []string, seen *dedup.SeenSet, m *metrics.Metrics) *Feed {
	return NewFeed(config.FeedSourceConfig{
		URLs:            urls,
		RatePerSecond:   1000,
		TimeoutSecs:     5,
		UserAgent:       "disasterwatch-test",
		MaxArticleChars: 50_000,
	}, seen, zaptest.NewLogger(t), m)
}

// -- Poll ---

func TestFeed_Poll(t *testing.T) {
	srv := newFeedServer(t)
	m := metrics.NewNop()
	f := newTestFeed(t, []string{srv.URL + "/rss"}, dedup.NewSeenSet(), m)

	items, err := f.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)

	flood := items[0]
	assert.Equal(t, "Floods displace thousands in Assam", flood.Title)
	assert.Equal(t, srv.URL+"/a/flood", flood.SourceKey)
	assert.Equal(t, "Floods displace thousands Heavy monsoon rain flooded villages.", flood.Body)
	require.NotNil(t, flood.Published)
	assert.Equal(t, time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC), flood.Published.UTC())

	quake := items[1]
	assert.Equal(t, "Strong earthquake hits Izmir", quake.Title, "falls back to first h1")
	assert.Nil(t, quake.Published)

	assert.Equal(t, "disasterwatch-test", srv.userAgent.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SourceErrors.WithLabelValues("feed", "article")))
}

func TestFeed_DownloadsEachLinkOnce(t *testing.T) {
	srv := newFeedServer(t)
	f := newTestFeed(t, []string{srv.URL + "/rss"}, dedup.NewSeenSet(), nil)

	_, err := f.Poll(context.Background())
	require.NoError(t, err)
	items, err := f.Poll(context.Background())
	require.NoError(t, err)

	assert.Empty(t, items)
	assert.Equal(t, int32(2), srv.articleHits.Load())
}

func TestFeed_SkipsSeenLinks(t *testing.T) {
	srv := newFeedServer(t)
	seen := dedup.NewSeenSet()
	seen.Admit(srv.URL + "/a/flood")
	f := newTestFeed(t, []string{srv.URL + "/rss"}, seen, nil)

	items, err := f.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, srv.URL+"/a/quake", items[0].SourceKey)
}

func TestFeed_Unavailable(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()
	srv := newFeedServer(t)

	f := newTestFeed(t, []string{down.URL + "/rss"}, dedup.NewSeenSet(), nil)
	_, err := f.Poll(context.Background())
	assert.ErrorIs(t, err, ErrSourceUnavailable)

	// one healthy feed is enough
	f = newTestFeed(t, []string{down.URL + "/rss", srv.URL + "/rss"}, dedup.NewSeenSet(), nil)
	items, err := f.Poll(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestFeed_NotAFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("definitely not xml"))
	}))
	defer srv.Close()

	_, err := newTestFeed(t, []string{srv.URL}, nil, nil).Poll(context.Background())
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

// -- ExtractArticle ---

func TestExtractArticle(t *testing.T) {
	title, text, err := ExtractArticle([]byte(floodPage), 0)
	require.NoError(t, err)
	assert.Equal(t, "BBC - Floods", title)
	assert.NotContains(t, text, "var x")
	assert.NotContains(t, text, "Site header")
	assert.NotContains(t, text, "Copyright")

	_, text, err = ExtractArticle([]byte("<html><body><p>"+strings.Repeat("é", 10)+"</p></body></html>"), 5)
	require.NoError(t, err)
	assert.Equal(t, "éé", text)
}
