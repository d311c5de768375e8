package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"disasterwatch/internal/domain"
	"disasterwatch/internal/metrics"
)

// NoDataAnswer is returned, without calling the LLM, when retrieval finds nothing.
const NoDataAnswer = "The latest data stream does not contain enough information yet."

const (
	contextSeparator = "\n\n---\n\n"
	minK             = 3
	maxK             = 5
)

var (
	ErrEmptyQuestion = errors.New("question is empty")
	ErrRetrieval     = errors.New("retrieval failed")
	ErrGeneration    = errors.New("answer generation failed")
)

const answerPromptTemplate = `You are a disaster monitoring assistant.

Answer the question using ONLY the information in the context below.
If the context does not contain enough information to answer, say so explicitly.
Do not use outside knowledge.

Context:
%s

Question: %s
`

// AnswerConfig tunes the read path.
type AnswerConfig struct {
	Model       string
	Temperature float64
	DefaultK    int
}

// Answerer answers questions from the narratives in the index.
type Answerer struct {
	index   domain.Index
	llm     domain.Generator
	cfg     AnswerConfig
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewAnswerer(index domain.Index, llm domain.Generator, cfg AnswerConfig, logger *zap.Logger, m *metrics.Metrics) *Answerer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Answerer{index: index, llm: llm, cfg: cfg, logger: logger.Named("answer"), metrics: m}
}

// AnswerPrompt renders the context-only prompt for a question.
func AnswerPrompt(question string, texts []string) string {
	return fmt.Sprintf(answerPromptTemplate, strings.Join(texts, contextSeparator), question)
}

// ClampK maps a requested retrieval depth onto [3, 5]; k <= 0 selects def.
func ClampK(k, def int) int {
	if k <= 0 {
		k = def
	}
	if k < minK {
		return minK
	}
	if k > maxK {
		return maxK
	}
	return k
}

// Answer retrieves up to k narratives and asks the LLM once. Sources are the
// retrieved narratives verbatim, in retrieval order.
func (a *Answerer) Answer(ctx context.Context, question string, k int) (domain.Answer, error) {
	start := time.Now()
	defer func() { a.metrics.AnswerDuration.Observe(time.Since(start).Seconds()) }()

	question = strings.TrimSpace(question)
	if question == "" {
		return domain.Answer{}, ErrEmptyQuestion
	}
	k = ClampK(k, a.cfg.DefaultK)

	docs, err := a.index.Query(ctx, question, k)
	if err != nil {
		a.metrics.Answers.WithLabelValues("error").Inc()
		a.logger.Error("retrieval failed", zap.Error(err))
		return domain.Answer{}, fmt.Errorf("%w: %v", ErrRetrieval, err)
	}
	if len(docs) > k {
		docs = docs[:k]
	}
	if len(docs) == 0 {
		a.metrics.Answers.WithLabelValues("no_data").Inc()
		return domain.Answer{Text: NoDataAnswer, Sources: []string{}}, nil
	}

	sources := make([]string, len(docs))
	for i, d := range docs {
		sources[i] = d.Text
	}
	text, err := a.llm.Generate(ctx, AnswerPrompt(question, sources), a.cfg.Model, a.cfg.Temperature)
	if err != nil {
		a.metrics.Answers.WithLabelValues("error").Inc()
		a.logger.Error("generation failed", zap.Error(err))
		return domain.Answer{}, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	a.metrics.Answers.WithLabelValues("answered").Inc()
	a.logger.Debug("answered", zap.Int("sources", len(sources)))
	return domain.Answer{Text: strings.TrimSpace(text), Sources: sources}, nil
}
