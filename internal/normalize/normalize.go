// Package normalize turns disaster records into embeddable narratives.
package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"disasterwatch/internal/domain"
)

const (
	UnknownTime = "an unknown time"

	activePhrase   = "This alert is currently active and requires attention."
	inactivePhrase = "This alert is no longer active."
)

var timestampLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Narrative renders rec with the template matching its variant.
func Narrative(rec domain.Record) string {
	switch r := rec.(type) {
	case domain.EnrichedRecord:
		return enrichedNarrative(r)
	case domain.MinimalRecord:
		return minimalNarrative(r.DisasterRecord)
	default:
		return minimalNarrative(rec.Base())
	}
}

func minimalNarrative(r domain.DisasterRecord) string {
	location := r.Country
	if r.Region != nil && strings.TrimSpace(*r.Region) != "" {
		location = *r.Region + ", " + r.Country
	}
	phrase := inactivePhrase
	if strings.EqualFold(string(r.Status), string(domain.Active)) {
		phrase = activePhrase
	}
	return fmt.Sprintf("URGENT ALERT: A %s severity %s event titled '%s' was reported in %s at %s. %s",
		r.Severity, r.DisasterType, r.Title, location, FormatTimestamp(r.Timestamp), phrase)
}

func enrichedNarrative(r domain.EnrichedRecord) string {
	return fmt.Sprintf("Disaster type: %s. Location: %s. Severity: %s. Deaths: %s. Injured: %s. Summary: %s",
		r.DisasterType, r.Country, r.Severity, count(r.Deaths), count(r.Injured), r.Summary)
}

func count(n *int) string {
	if n == nil {
		return "unknown"
	}
	return strconv.Itoa(*n)
}

// FormatTimestamp renders an ISO8601 timestamp as "2006-01-02 15:04 UTC".
// Absent or unparsable input yields UnknownTime.
func FormatTimestamp(ts *string) string {
	if ts == nil {
		return UnknownTime
	}
	s := strings.TrimSpace(*ts)
	if s == "" {
		return UnknownTime
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format("2006-01-02 15:04") + " UTC"
		}
	}
	return UnknownTime
}

// Metadata returns the unembedded fields stored next to the narrative.
func Metadata(rec domain.Record, source string) domain.Metadata {
	b := rec.Base()
	return domain.Metadata{
		Title:        b.Title,
		EventType:    b.EventType,
		DisasterType: string(b.DisasterType),
		Severity:     string(b.Severity),
		Country:      b.Country,
		Region:       b.Region,
		Timestamp:    b.Timestamp,
		Status:       string(b.Status),
		Source:       source,
	}
}

// DocumentID maps a source key to a stable UUIDv5.
func DocumentID(key string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

// Document builds the narrative document for the record admitted under key.
func Document(key, source string, rec domain.Record) domain.NarrativeDocument {
	return domain.NarrativeDocument{
		ID:       DocumentID(key),
		Text:     Narrative(rec),
		Metadata: Metadata(rec, source),
	}
}
