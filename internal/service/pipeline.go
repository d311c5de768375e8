package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"disasterwatch/internal/dedup"
	"disasterwatch/internal/domain"
	"disasterwatch/internal/filter"
	"disasterwatch/internal/metrics"
	"disasterwatch/internal/normalize"
	"disasterwatch/internal/notify"
	"disasterwatch/internal/source"
)

const eventType = "disaster"

// Outcome is what happened to one raw item.
type Outcome int

const (
	Indexed Outcome = iota
	NotCandidate
	Duplicate
	UnknownType
	IndexFailed
)

func (o Outcome) String() string {
	switch o {
	case Indexed:
		return "indexed"
	case NotCandidate:
		return "not_candidate"
	case Duplicate:
		return "duplicate"
	case UnknownType:
		return "unknown_type"
	case IndexFailed:
		return "index_failed"
	default:
		return "unknown"
	}
}

// Extractor performs structured extraction; it never fails.
type Extractor interface {
	Extract(ctx context.Context, title, body string) domain.Extraction
}

// Sink receives each narrative document once.
type Sink interface {
	Upsert(ctx context.Context, doc domain.NarrativeDocument) error
}

// Pipeline filters, deduplicates, extracts, normalizes and indexes raw items.
// Extraction is skipped when the extractor is nil and for items that arrive
// as typed alert rows. The publisher is optional.
type Pipeline struct {
	seen      *dedup.SeenSet
	extractor Extractor
	sink      Sink
	publisher notify.Publisher
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

func NewPipeline(seen *dedup.SeenSet, extractor Extractor, sink Sink, publisher notify.Publisher, logger *zap.Logger, m *metrics.Metrics) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Pipeline{
		seen:      seen,
		extractor: extractor,
		sink:      sink,
		publisher: publisher,
		logger:    logger.Named("pipeline"),
		metrics:   m,
	}
}

// Run starts one connector and one processing goroutine per source and blocks
// until ctx is cancelled and all of them have returned.
func (p *Pipeline) Run(ctx context.Context, sources []source.Scheduled) {
	var wg sync.WaitGroup
	for _, s := range sources {
		ch := make(chan domain.RawItem, 16)
		wg.Add(2)
		go func(s source.Scheduled) {
			defer wg.Done()
			source.Run(ctx, s, ch, p.logger, p.metrics)
		}(s)
		go func() {
			defer wg.Done()
			for item := range ch {
				if ctx.Err() != nil {
					return
				}
				p.Process(ctx, item)
			}
		}()
	}
	wg.Wait()
	p.logger.Info("pipeline stopped")
}

// Process runs one item through every stage and reports where it ended.
func (p *Pipeline) Process(ctx context.Context, item domain.RawItem) Outcome {
	log := p.logger.With(zap.String("source", item.Source), zap.String("key", item.SourceKey))
	p.metrics.ItemsReceived.WithLabelValues(item.Source).Inc()

	if !filter.IsCandidate(item.Text()) {
		p.drop(item, metrics.ReasonNotCandidate)
		return NotCandidate
	}
	if !p.seen.Admit(item.SourceKey) {
		p.drop(item, metrics.ReasonDuplicate)
		return Duplicate
	}

	var rec domain.Record
	if item.Structured != nil {
		rec = structured(item)
	} else if p.extractor != nil {
		ext := p.extractor.Extract(ctx, item.Title, item.Body)
		if ext.DisasterType == domain.UnknownType || ext.DisasterType == "" {
			log.Debug("dropping item without a known disaster type", zap.String("title", item.Title))
			p.drop(item, metrics.ReasonUnknownType)
			return UnknownType
		}
		rec = enriched(item, ext)
	} else {
		rec = minimal(item)
	}

	doc := normalize.Document(item.SourceKey, item.Source, rec)
	if err := p.sink.Upsert(ctx, doc); err != nil {
		log.Error("index upsert failed", zap.Error(err))
		p.metrics.IndexErrors.WithLabelValues(item.Source).Inc()
		return IndexFailed
	}
	base := rec.Base()
	p.metrics.DocumentsIndexed.WithLabelValues(item.Source, string(base.DisasterType)).Inc()
	log.Info("indexed",
		zap.String("id", doc.ID),
		zap.String("disaster_type", string(base.DisasterType)),
		zap.String("severity", string(base.Severity)),
	)

	if p.publisher != nil {
		if err := p.publisher.Publish(ctx, doc); err != nil {
			log.Warn("publish failed", zap.Error(err))
			p.metrics.NotifyErrors.Inc()
		}
	}
	return Indexed
}

func (p *Pipeline) drop(item domain.RawItem, reason string) {
	p.metrics.ItemsDropped.WithLabelValues(item.Source, reason).Inc()
}

func timestamp(item domain.RawItem) *string {
	if item.Published == nil {
		return nil
	}
	s := item.Published.UTC().Format(time.RFC3339)
	return &s
}

func minimal(item domain.RawItem) domain.MinimalRecord {
	return domain.MinimalRecord{DisasterRecord: domain.DisasterRecord{
		Title:        item.Title,
		EventType:    eventType,
		DisasterType: filter.Classify(item.Text()),
		Severity:     domain.UnknownSeverity,
		Country:      "unknown",
		Timestamp:    timestamp(item),
		Status:       domain.Active,
	}}
}

func enriched(item domain.RawItem, ext domain.Extraction) domain.EnrichedRecord {
	return domain.EnrichedRecord{
		DisasterRecord: domain.DisasterRecord{
			Title:        item.Title,
			EventType:    eventType,
			DisasterType: ext.DisasterType,
			Severity:     ext.Severity,
			Country:      ext.Location,
			Timestamp:    timestamp(item),
			Status:       domain.Active,
		},
		Deaths:  ext.Deaths,
		Injured: ext.Injured,
		Summary: ext.Summary,
	}
}

// structured builds a minimal record from an alert row, keeping its region.
func structured(item domain.RawItem) domain.MinimalRecord {
	row := item.Structured
	rec := minimal(item)
	if row.EventType != "" {
		rec.EventType = row.EventType
		if t := domain.ParseDisasterType(row.EventType); t != domain.UnknownType {
			rec.DisasterType = t
		}
	}
	rec.Severity = domain.ParseSeverity(row.AlertLevel)
	if c := strings.TrimSpace(row.Country); c != "" {
		rec.Country = c
	}
	if r := strings.TrimSpace(row.Region); r != "" {
		rec.Region = &r
	}
	if ts := strings.TrimSpace(row.Timestamp); ts != "" {
		rec.Timestamp = &ts
	}
	rec.Status = domain.ParseStatus(row.Status)
	return rec
}
