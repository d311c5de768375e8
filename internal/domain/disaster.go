package domain

import "strings"

// DisasterType is the kind of natural hazard a record describes.
type DisasterType string

const (
	Flood      DisasterType = "flood"
	Earthquake DisasterType = "earthquake"
	Tsunami    DisasterType = "tsunami"
	Wildfire   DisasterType = "wildfire"
	Hurricane  DisasterType = "hurricane"
	Cyclone    DisasterType = "cyclone"
	Typhoon    DisasterType = "typhoon"
	Storm      DisasterType = "storm"
	Tornado    DisasterType = "tornado"
	Landslide  DisasterType = "landslide"
	Volcano    DisasterType = "volcano"
	Drought    DisasterType = "drought"
	Heatwave   DisasterType = "heatwave"
	// UnknownType marks records that must not be indexed.
	UnknownType DisasterType = "unknown"
)

var disasterSynonyms = map[string]DisasterType{
	"flood":             Flood,
	"floods":            Flood,
	"flooding":          Flood,
	"flash flood":       Flood,
	"earthquake":        Earthquake,
	"earthquakes":       Earthquake,
	"quake":             Earthquake,
	"tsunami":           Tsunami,
	"wildfire":          Wildfire,
	"wildfires":         Wildfire,
	"forest fire":       Wildfire,
	"bushfire":          Wildfire,
	"hurricane":         Hurricane,
	"cyclone":           Cyclone,
	"tropical cyclone":  Cyclone,
	"typhoon":           Typhoon,
	"storm":             Storm,
	"storms":            Storm,
	"tropical storm":    Storm,
	"tornado":           Tornado,
	"tornadoes":         Tornado,
	"landslide":         Landslide,
	"landslides":        Landslide,
	"mudslide":          Landslide,
	"volcano":           Volcano,
	"eruption":          Volcano,
	"volcanic eruption": Volcano,
	"drought":           Drought,
	"heatwave":          Heatwave,
	"heat wave":         Heatwave,
}

// ParseDisasterType maps free text to a DisasterType, UnknownType if unrecognized.
func ParseDisasterType(s string) DisasterType {
	key := strings.Join(strings.Fields(strings.ToLower(s)), " ")
	if t, ok := disasterSynonyms[key]; ok {
		return t
	}
	return UnknownType
}

// Severity grades the impact of a disaster.
type Severity string

const (
	Minor           Severity = "minor"
	Moderate        Severity = "moderate"
	Severe          Severity = "severe"
	Catastrophic    Severity = "catastrophic"
	UnknownSeverity Severity = "unknown"
)

// ParseSeverity maps free text to a Severity. Common alert-level words are
// folded onto the four grades.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "minor", "low":
		return Minor
	case "moderate", "medium":
		return Moderate
	case "severe", "high":
		return Severe
	case "catastrophic", "extreme", "critical":
		return Catastrophic
	default:
		return UnknownSeverity
	}
}

// Status tells whether an alert still requires attention.
type Status string

const (
	Active   Status = "active"
	Resolved Status = "resolved"
)

// ParseStatus defaults to Active for empty input.
func ParseStatus(s string) Status {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, string(Active)) {
		return Active
	}
	return Resolved
}

// DisasterRecord holds the canonical fields shared by both record variants.
type DisasterRecord struct {
	Title        string       `json:"title"`
	EventType    string       `json:"event_type"`
	DisasterType DisasterType `json:"disaster_type"`
	Severity     Severity     `json:"alert_level"`
	Country      string       `json:"country"`
	Region       *string      `json:"region"`
	Timestamp    *string      `json:"timestamp"`
	Status       Status       `json:"status"`
}

// Record is either a MinimalRecord or an EnrichedRecord.
type Record interface {
	Base() DisasterRecord
	isRecord()
}

// MinimalRecord is produced when only the keyword filter has run.
type MinimalRecord struct {
	DisasterRecord
}

func (r MinimalRecord) Base() DisasterRecord { return r.DisasterRecord }
func (MinimalRecord) isRecord()              {}

// EnrichedRecord is produced by structured extraction.
type EnrichedRecord struct {
	DisasterRecord
	Deaths  *int   `json:"deaths"`
	Injured *int   `json:"injured"`
	Summary string `json:"summary"`
}

func (r EnrichedRecord) Base() DisasterRecord { return r.DisasterRecord }
func (EnrichedRecord) isRecord()              {}

// Extraction is the structured output of one extraction call.
type Extraction struct {
	DisasterType DisasterType
	Severity     Severity
	Location     string
	Deaths       *int
	Injured      *int
	Summary      string
}
