// Package extract asks the LLM for a structured disaster record.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"disasterwatch/internal/domain"
)

const promptTemplate = `You are a disaster analysis system.

From the following news article, extract the information below.

Return ONLY one valid JSON object with exactly these keys. Do not include explanations or markdown.

Fields:
- disaster_type (e.g. flood, earthquake, cyclone, wildfire; "unknown" if the article is not about a natural disaster)
- severity (minor | moderate | severe | catastrophic)
- location (city, country if possible)
- deaths (number or null)
- injured (number or null)
- summary (max 2 factual sentences)

Article Title:
%s

Article Content:
%s
`

var errNoObject = errors.New("no JSON object in response")

// Condenser shortens long article bodies before they are sent to the model.
type Condenser interface {
	Condense(text string, maxChars, maxSentences int) string
}

// Config tunes the extractor. Failures may be nil.
type Config struct {
	Model            string
	MaxBodyChars     int
	SummarySentences int
	Failures         prometheus.Counter
}

// Extractor turns a (title, body) pair into a domain.Extraction with one LLM call.
type Extractor struct {
	llm       domain.Generator
	condenser Condenser
	cfg       Config
	logger    *zap.Logger
}

func New(llm domain.Generator, condenser Condenser, cfg Config, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{llm: llm, condenser: condenser, cfg: cfg, logger: logger.Named("extract")}
}

// Prompt renders the extraction prompt for an article.
func Prompt(title, body string) string {
	return fmt.Sprintf(promptTemplate, title, body)
}

// Fallback is the record used whenever extraction fails.
func Fallback(title string) domain.Extraction {
	return domain.Extraction{
		DisasterType: domain.UnknownType,
		Severity:     domain.UnknownSeverity,
		Location:     "unknown",
		Summary:      title,
	}
}

// Extract never fails; any error yields Fallback(title).
func (e *Extractor) Extract(ctx context.Context, title, body string) domain.Extraction {
	if e.condenser != nil {
		body = e.condenser.Condense(body, e.cfg.MaxBodyChars, e.cfg.SummarySentences)
	}
	raw, err := e.llm.Generate(ctx, Prompt(title, body), e.cfg.Model, 0)
	if err != nil {
		return e.fail(title, fmt.Errorf("generate: %w", err))
	}
	out, err := Parse(raw)
	if err != nil {
		return e.fail(title, err)
	}
	return out
}

func (e *Extractor) fail(title string, err error) domain.Extraction {
	e.logger.Warn("extraction failed, using fallback", zap.String("title", title), zap.Error(err))
	if e.cfg.Failures != nil {
		e.cfg.Failures.Inc()
	}
	return Fallback(title)
}

type payload struct {
	DisasterType *string  `json:"disaster_type"`
	Severity     *string  `json:"severity"`
	Location     *string  `json:"location"`
	Deaths       casualty `json:"deaths"`
	Injured      casualty `json:"injured"`
	Summary      *string  `json:"summary"`
}

// Parse decodes a model reply. Code fences and text around the object are ignored.
func Parse(raw string) (domain.Extraction, error) {
	obj, err := jsonObject(raw)
	if err != nil {
		return domain.Extraction{}, err
	}
	var p payload
	if err := json.Unmarshal([]byte(obj), &p); err != nil {
		return domain.Extraction{}, fmt.Errorf("decode extraction: %w", err)
	}
	out := domain.Extraction{
		DisasterType: domain.UnknownType,
		Severity:     domain.UnknownSeverity,
		Location:     "unknown",
		Deaths:       p.Deaths.n,
		Injured:      p.Injured.n,
	}
	if p.DisasterType != nil {
		out.DisasterType = domain.ParseDisasterType(*p.DisasterType)
	}
	if p.Severity != nil {
		out.Severity = domain.ParseSeverity(*p.Severity)
	}
	if p.Location != nil && strings.TrimSpace(*p.Location) != "" {
		out.Location = strings.TrimSpace(*p.Location)
	}
	if p.Summary != nil {
		out.Summary = strings.TrimSpace(*p.Summary)
	}
	return out, nil
}

func jsonObject(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return "", errNoObject
	}
	return s[start : end+1], nil
}

// maxCasualties bounds counts taken from model output.
const maxCasualties = math.MaxInt32

// casualty accepts a JSON number, a numeric string or null. Anything else,
// including prose like "at least 12", decodes to nil instead of failing the
// whole object.
type casualty struct{ n *int }

func (c *casualty) UnmarshalJSON(b []byte) error {
	c.n = nil
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || f < 0 || f > maxCasualties {
		return nil
	}
	n := int(f)
	c.n = &n
	return nil
}
