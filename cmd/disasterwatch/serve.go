package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"disasterwatch/internal/config"
	"disasterwatch/internal/dedup"
	"disasterwatch/internal/domain"
	"disasterwatch/internal/embedding/hashing"
	"disasterwatch/internal/embedding/openai"
	"disasterwatch/internal/extract"
	"disasterwatch/internal/httpapi"
	"disasterwatch/internal/index"
	"disasterwatch/internal/llm"
	"disasterwatch/internal/logging"
	"disasterwatch/internal/metrics"
	"disasterwatch/internal/notify"
	"disasterwatch/internal/service"
	"disasterwatch/internal/source"
	"disasterwatch/internal/summarizer"
	"disasterwatch/internal/vectorstore/memory"
	"disasterwatch/internal/vectorstore/pgvector"
	"disasterwatch/internal/vectorstore/qdrant"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ingestion pipeline and the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	seen := dedup.NewSeenSet()
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, seen.Len)

	gen, err := llm.NewClient(llm.Config{
		BaseURL:   cfg.LLM.BaseURL,
		APIKeyEnv: cfg.LLM.APIKeyEnv,
		Timeout:   time.Duration(cfg.LLM.TimeoutSecs) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("llm client init failed: %w", err)
	}

	emb, err := buildEmbedder(cfg.Embedder)
	if err != nil {
		return err
	}
	store, closeStore, err := buildStore(ctx, cfg.VectorStore)
	if err != nil {
		return err
	}
	defer closeStore()

	idx := index.New(emb, store, logger)
	if err := idx.Warm(ctx); err != nil {
		return fmt.Errorf("vector store init failed: %w", err)
	}

	var extractor service.Extractor
	if cfg.Extraction.Enabled {
		extractor = extract.New(gen, summarizer.NewFrequency(), extract.Config{
			Model:            cfg.Extraction.Model,
			MaxBodyChars:     cfg.Extraction.MaxBodyChars,
			SummarySentences: cfg.Extraction.SummarySentences,
			Failures:         m.ExtractionFailed,
		}, logger)
	}

	var publisher notify.Publisher
	if n := cfg.Notify.NATS; n != nil && n.URL != "" {
		pub, err := notify.Connect(n.URL, n.Subject, logger)
		if err != nil {
			return fmt.Errorf("nats connect failed: %w", err)
		}
		defer pub.Close()
		publisher = pub
	}

	sources := make([]source.Scheduled, 0, len(cfg.Sources))
	for _, sc := range cfg.Sources {
		s, err := source.New(sc, seen, logger, m)
		if err != nil {
			return err
		}
		sources = append(sources, s)
	}

	pipeline := service.NewPipeline(seen, extractor, index.NewSink(idx), publisher, logger, m)
	answerer := service.NewAnswerer(idx, gen, service.AnswerConfig{
		Model:       cfg.LLM.AnswerModel,
		Temperature: cfg.LLM.AnswerTemperature,
		DefaultK:    cfg.Query.TopK,
	}, logger, m)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpapi.NewRouter(answerer, reg, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("starting",
		zap.Int("sources", len(sources)),
		zap.String("embedder", emb.Name()),
		zap.String("vector_store", cfg.VectorStore.Type),
		zap.Bool("extraction", cfg.Extraction.Enabled),
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		pipeline.Run(ctx, sources)
	}()

	err = httpapi.Serve(ctx, srv, logger)
	stop()
	wg.Wait()
	return err
}

func buildEmbedder(cfg config.EmbedderConfig) (domain.Embedder, error) {
	switch cfg.Type {
	case "hashing", "":
		dim := 0
		if cfg.Hashing != nil {
			dim = cfg.Hashing.Dimension
		}
		return hashing.New(dim), nil
	case "openai":
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("openai embedder config missing")
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:    cfg.OpenAI.BaseURL,
			APIKeyEnv:  cfg.OpenAI.APIKeyEnv,
			Model:      cfg.OpenAI.Model,
			Timeout:    time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
			MaxRetries: cfg.OpenAI.MaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
}

func buildStore(ctx context.Context, cfg config.VectorStoreConfig) (domain.VectorStore, func(), error) {
	noop := func() {}
	switch cfg.Type {
	case "memory", "":
		return memory.NewStorage(), noop, nil
	case "qdrant":
		if cfg.Qdrant == nil {
			return nil, noop, fmt.Errorf("qdrant config missing")
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:        cfg.Qdrant.URL,
			APIKey:     cfg.Qdrant.APIKey,
			Collection: cfg.Qdrant.Collection,
			Timeout:    time.Duration(cfg.Qdrant.TimeoutSecs) * time.Second,
		}), noop, nil
	case "pgvector":
		if cfg.Pgvector == nil {
			return nil, noop, fmt.Errorf("pgvector config missing")
		}
		st, err := pgvector.New(ctx, pgvector.Config{DSN: cfg.Pgvector.DSN, Table: cfg.Pgvector.Table})
		if err != nil {
			return nil, noop, fmt.Errorf("pgvector init failed: %w", err)
		}
		return st, st.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown vector store: %s", cfg.Type)
	}
}
