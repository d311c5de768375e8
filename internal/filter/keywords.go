package filter

import (
	"strings"

	"disasterwatch/internal/domain"
)

// vocabulary is ordered; Classify reports the first keyword that matches.
var vocabulary = []struct {
	word string
	kind domain.DisasterType
}{
	{"flood", domain.Flood},
	{"earthquake", domain.Earthquake},
	{"tsunami", domain.Tsunami},
	{"wildfire", domain.Wildfire},
	{"forest fire", domain.Wildfire},
	{"hurricane", domain.Hurricane},
	{"cyclone", domain.Cyclone},
	{"typhoon", domain.Typhoon},
	{"storm", domain.Storm},
	{"tornado", domain.Tornado},
	{"landslide", domain.Landslide},
	{"mudslide", domain.Landslide},
	{"volcano", domain.Volcano},
	{"eruption", domain.Volcano},
	{"drought", domain.Drought},
	{"heatwave", domain.Heatwave},
	{"heat wave", domain.Heatwave},
}

// IsCandidate reports whether text mentions any disaster keyword.
// It is a cheap gate in front of extraction and is deliberately permissive.
func IsCandidate(text string) bool {
	return Classify(text) != domain.UnknownType
}

// Classify returns the disaster type of the first keyword found in text.
func Classify(text string) domain.DisasterType {
	if text == "" {
		return domain.UnknownType
	}
	lower := strings.ToLower(text)
	for _, v := range vocabulary {
		if strings.Contains(lower, v.word) {
			return v.kind
		}
	}
	return domain.UnknownType
}

// Keywords returns a copy of the vocabulary words.
func Keywords() []string {
	out := make([]string, len(vocabulary))
	for i, v := range vocabulary {
		out[i] = v.word
	}
	return out
}
