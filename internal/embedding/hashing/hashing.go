// Package hashing implements an offline embedder that needs no corpus.
package hashing

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

var tokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

// Embedder maps unigrams and adjacent bigrams into a fixed number of buckets
// with log-scaled term frequency, then L2-normalizes the vector. Because the
// vocabulary is never materialized, documents can be embedded one at a time
// as they stream in.
type Embedder struct {
	dimension int
	stopwords map[string]struct{}
}

// New returns an embedder with the given dimension (512 if dimension <= 0).
func New(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = 512
	}
	return &Embedder{dimension: dimension, stopwords: defaultStopwords()}
}

func (e *Embedder) Name() string   { return "hashing" }
func (e *Embedder) Dimension() int { return e.dimension }

func (e *Embedder) Embed(_ context.Context, text string) ([]float64, error) {
	vec := make([]float64, e.dimension)
	tokens := e.tokenize(text)
	if len(tokens) == 0 {
		return vec, nil
	}
	counts := make(map[int]float64)
	add := func(term string) {
		h := fnv.New32a()
		h.Write([]byte(term))
		sum := h.Sum32()
		idx := int(sum % uint32(e.dimension))
		// the top bit picks the sign so collisions tend to cancel out
		if sum&(1<<31) != 0 {
			counts[idx]--
		} else {
			counts[idx]++
		}
	}
	for i, tok := range tokens {
		add(tok)
		if i > 0 {
			add(tokens[i-1] + " " + tok)
		}
	}
	for idx, c := range counts {
		if c == 0 {
			continue
		}
		vec[idx] = math.Copysign(1+math.Log(math.Abs(c)), c)
	}
	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

func (e *Embedder) tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := e.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "should", "now",
		"what", "which", "who", "where", "when", "how", "any", "there", "has", "have", "had", "do", "does", "did",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
