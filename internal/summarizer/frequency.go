package summarizer

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

var (
	tokenPattern    = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentencePattern = regexp.MustCompile(`[^.!?\n]+[.!?]+|[^.!?\n]+$`)
)

// Frequency keeps the sentences whose non-stopword terms occur most often
// across the text. Used to bound article bodies before extraction.
type Frequency struct {
	stopwords map[string]struct{}
}

// NewFrequency returns a summarizer with the built-in English stopword list.
func NewFrequency() *Frequency {
	return &Frequency{stopwords: stopwords()}
}

// Summarize returns at most maxSentences sentences in their original order.
func (f *Frequency) Summarize(text string, maxSentences int) (string, error) {
	if maxSentences <= 0 {
		maxSentences = 5
	}
	sentences := splitSentences(text)
	if len(sentences) <= maxSentences {
		return strings.Join(sentences, " "), nil
	}

	weight := map[string]float64{}
	tokens := make([][]string, len(sentences))
	top := 0.0
	for i, sent := range sentences {
		tokens[i] = f.terms(sent)
		for _, tok := range tokens[i] {
			weight[tok]++
			top = math.Max(top, weight[tok])
		}
	}

	type ranked struct {
		idx   int
		score float64
	}
	scores := make([]ranked, len(sentences))
	for i, toks := range tokens {
		s := 0.0
		for _, tok := range toks {
			s += weight[tok] / top
		}
		if len(toks) > 0 {
			s /= math.Sqrt(float64(len(toks)))
		}
		scores[i] = ranked{i, s}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	keep := make([]int, maxSentences)
	for i := range keep {
		keep[i] = scores[i].idx
	}
	sort.Ints(keep)
	out := make([]string, len(keep))
	for i, idx := range keep {
		out[i] = sentences[idx]
	}
	return strings.Join(out, " "), nil
}

// Condense returns text unchanged when it fits in maxChars, otherwise the
// maxSentences best sentences cut to maxChars.
func (f *Frequency) Condense(text string, maxChars, maxSentences int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	out, _ := f.Summarize(text, maxSentences)
	if len(out) > maxChars {
		out = cut(out, maxChars)
	}
	return out
}

func (f *Frequency) terms(sentence string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(sentence), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, stop := f.stopwords[t]; !stop {
			out = append(out, t)
		}
	}
	return out
}

func splitSentences(text string) []string {
	var out []string
	for _, s := range sentencePattern.FindAllString(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// cut truncates at a rune boundary.
func cut(s string, n int) string {
	for n > 0 && n < len(s) && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

func stopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "its", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "should", "now", "has", "have", "had", "said", "says", "he", "she", "they", "we", "not",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
