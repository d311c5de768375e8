package domain

import (
	"context"
	"strings"
	"time"
)

// RawItem is one unstructured unit produced by a source connector.
// Structured is set by connectors that read typed alert rows.
type RawItem struct {
	Title      string
	Body       string
	SourceKey  string
	Source     string
	Published  *time.Time
	Structured *Structured
}

// Structured holds the fields an alert row already carries. Items with it
// bypass extraction.
type Structured struct {
	EventType  string
	AlertLevel string
	Country    string
	Region     string
	Timestamp  string
	Status     string
}

// Text returns the title, body and any event type joined for keyword screening.
func (r RawItem) Text() string {
	parts := []string{r.Title}
	if r.Body != "" {
		parts = append(parts, r.Body)
	}
	if r.Structured != nil && r.Structured.EventType != "" {
		parts = append(parts, r.Structured.EventType)
	}
	return strings.Join(parts, " ")
}

// Metadata is the unembedded field set stored next to a narrative.
type Metadata struct {
	Title        string  `json:"title"`
	EventType    string  `json:"event_type"`
	DisasterType string  `json:"disaster_type"`
	Severity     string  `json:"severity"`
	Country      string  `json:"country"`
	Region       *string `json:"region"`
	Timestamp    *string `json:"timestamp"`
	Status       string  `json:"status"`
	Source       string  `json:"source,omitempty"`
}

// NarrativeDocument is the unit handed to the index.
type NarrativeDocument struct {
	ID       string
	Text     string
	Metadata Metadata
}

// Point is a stored vector with its narrative and metadata.
type Point struct {
	ID       string
	Text     string
	Metadata Metadata
	Vector   []float64
}

// SearchResult represents a matching point with a relevance score.
type SearchResult struct {
	ID       string
	Text     string
	Metadata Metadata
	Score    float64
}

// Retrieved is what the index returns for a query, ordered by relevance.
type Retrieved struct {
	Text     string
	Metadata Metadata
}

// Answer is a grounded response plus the narratives it was built from.
type Answer struct {
	Text    string   `json:"answer"`
	Sources []string `json:"sources"`
}

// Embedder converts free text into a numeric vector representation.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}

// VectorStore persists vectors and supports similarity search.
type VectorStore interface {
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, points []Point) error
	Search(ctx context.Context, vector []float64, topK int) ([]SearchResult, error)
	Clear(ctx context.Context) error
}

// Index is the vector-index collaborator shared by the write and read paths.
type Index interface {
	Upsert(ctx context.Context, id, text string, metadata Metadata) error
	Query(ctx context.Context, text string, k int) ([]Retrieved, error)
}

// Generator is the LLM completion collaborator.
type Generator interface {
	Generate(ctx context.Context, prompt, model string, temperature float64) (string, error)
}
