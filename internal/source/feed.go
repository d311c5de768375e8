package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"disasterwatch/internal/config"
	"disasterwatch/internal/dedup"
	"disasterwatch/internal/domain"
	"disasterwatch/internal/metrics"
)

const maxDownload = 5 * 1024 * 1024

var errEmptyArticle = errors.New("empty article")

// Feed lists RSS/Atom feeds and downloads the articles they link to.
// A link is downloaded at most once per connector after a successful parse.
type Feed struct {
	urls      []string
	seen      *dedup.SeenSet
	visited   map[string]struct{}
	limiter   *rate.Limiter
	client    *http.Client
	parser    *gofeed.Parser
	userAgent string
	maxChars  int
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

func NewFeed(cfg config.FeedSourceConfig, seen *dedup.SeenSet, logger *zap.Logger, m *metrics.Metrics) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	rps := cfg.RatePerSecond
	if rps <= 0 {
		rps = 2
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Feed{
		urls:      cfg.URLs,
		seen:      seen,
		visited:   make(map[string]struct{}),
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
		client:    newHTTPClient(timeout),
		parser:    gofeed.NewParser(),
		userAgent: cfg.UserAgent,
		maxChars:  cfg.MaxArticleChars,
		logger:    logger.Named("feed"),
		metrics:   m,
	}
}

func (f *Feed) Name() string { return "feed" }

func (f *Feed) Poll(ctx context.Context) ([]domain.RawItem, error) {
	var (
		out    []domain.RawItem
		failed int
	)
	for _, u := range f.urls {
		items, err := f.pollFeed(ctx, u)
		out = append(out, items...)
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		if err != nil {
			failed++
			f.logger.Warn("feed unreachable", zap.String("url", u), zap.Error(err))
		}
	}
	if len(f.urls) > 0 && failed == len(f.urls) {
		return out, fmt.Errorf("%w: all %d feeds failed", ErrSourceUnavailable, failed)
	}
	return out, nil
}

func (f *Feed) pollFeed(ctx context.Context, feedURL string) ([]domain.RawItem, error) {
	body, err := f.fetch(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	feed, err := f.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	var out []domain.RawItem
	for _, entry := range feed.Items {
		link := strings.TrimSpace(entry.Link)
		if link == "" {
			continue
		}
		if _, ok := f.visited[link]; ok {
			continue
		}
		if f.seen != nil && f.seen.Seen(link) {
			continue
		}
		if err := f.limiter.Wait(ctx); err != nil {
			return out, nil
		}
		item, err := f.article(ctx, link, entry)
		if err != nil {
			f.logger.Warn("skipping article", zap.String("url", link), zap.Error(err))
			if f.metrics != nil {
				f.metrics.SourceErrors.WithLabelValues(f.Name(), "article").Inc()
			}
			continue
		}
		f.visited[link] = struct{}{}
		out = append(out, item)
	}
	return out, nil
}

func (f *Feed) article(ctx context.Context, link string, entry *gofeed.Item) (domain.RawItem, error) {
	html, err := f.fetch(ctx, link)
	if err != nil {
		return domain.RawItem{}, err
	}
	pageTitle, text, err := ExtractArticle(html, f.maxChars)
	if err != nil {
		return domain.RawItem{}, err
	}
	if text == "" {
		return domain.RawItem{}, errEmptyArticle
	}
	title := strings.TrimSpace(entry.Title)
	if title == "" {
		title = pageTitle
	}
	item := domain.RawItem{Title: title, Body: text, SourceKey: link, Source: f.Name()}
	switch {
	case entry.PublishedParsed != nil:
		item.Published = entry.PublishedParsed
	case entry.UpdatedParsed != nil:
		item.Published = entry.UpdatedParsed
	}
	return item, nil
}

func (f *Feed) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDownload))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// ExtractArticle returns the page title (<title>, else the first <h1>) and the
// visible article text with boilerplate removed and whitespace collapsed.
// Text longer than maxChars is truncated; maxChars <= 0 disables the limit.
func ExtractArticle(html []byte, maxChars int) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", "", fmt.Errorf("parse html: %w", err)
	}
	title := collapse(doc.Find("title").First().Text())
	if title == "" {
		title = collapse(doc.Find("h1").First().Text())
	}

	doc.Find("script, style, nav, header, footer, noscript, iframe").Remove()

	root := doc.Find("article")
	if root.Length() == 0 {
		root = doc.Find("body")
	}
	text := collapse(root.Text())
	if maxChars > 0 && len(text) > maxChars {
		text = text[:maxChars]
		for !utf8.ValidString(text) {
			text = text[:len(text)-1]
		}
	}
	return title, text, nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
