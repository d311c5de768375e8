// Package source polls external inputs and emits raw items.
package source

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"disasterwatch/internal/config"
	"disasterwatch/internal/dedup"
	"disasterwatch/internal/domain"
	"disasterwatch/internal/metrics"
)

// ErrSourceUnavailable is returned by Poll when the underlying input cannot
// be reached. Run logs it and retries after the interval.
var ErrSourceUnavailable = errors.New("source unavailable")

// Source produces the raw items that are new since its previous poll.
type Source interface {
	Name() string
	Poll(ctx context.Context) ([]domain.RawItem, error)
}

// Scheduled pairs a source with its polling interval.
type Scheduled struct {
	Source   Source
	Interval time.Duration
}

// New builds a connector from config. Connectors consult seen to skip keys
// that were already admitted.
func New(c config.SourceConfig, seen *dedup.SeenSet, logger *zap.Logger, m *metrics.Metrics) (Scheduled, error) {
	switch c.Type {
	case "file":
		if c.File == nil {
			return Scheduled{}, errors.New("file source without file config")
		}
		return Scheduled{Source: NewFileTail(c.File.Path, c.File.Mode, seen), Interval: c.File.Interval}, nil
	case "feed":
		if c.Feed == nil {
			return Scheduled{}, errors.New("feed source without feed config")
		}
		return Scheduled{Source: NewFeed(*c.Feed, seen, logger, m), Interval: c.Feed.Interval}, nil
	default:
		return Scheduled{}, fmt.Errorf("unknown source type: %s", c.Type)
	}
}

// Run polls s until ctx is cancelled, sending items to out in arrival order.
// Poll errors are logged and never stop the loop. out is closed on return.
func Run(ctx context.Context, s Scheduled, out chan<- domain.RawItem, logger *zap.Logger, m *metrics.Metrics) {
	defer close(out)
	if logger == nil {
		logger = zap.NewNop()
	}
	name := s.Source.Name()
	logger = logger.Named("source").With(zap.String("source", name))
	logger.Info("connector started", zap.Duration("interval", s.Interval))

	for {
		items, err := s.Source.Poll(ctx)
		if err != nil && ctx.Err() == nil {
			if errors.Is(err, ErrSourceUnavailable) {
				logger.Warn("source unavailable, retrying", zap.Error(err))
			} else {
				logger.Error("poll failed", zap.Error(err))
			}
			if m != nil {
				m.SourceErrors.WithLabelValues(name, "poll").Inc()
			}
		}
		for _, it := range items {
			select {
			case out <- it:
			case <-ctx.Done():
				logger.Info("connector stopped")
				return
			}
		}
		if len(items) > 0 {
			logger.Debug("poll emitted items", zap.Int("count", len(items)))
		}
		if !sleepCtx(ctx, s.Interval) {
			logger.Info("connector stopped")
			return
		}
	}
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}
