// Package signal converts parsed feed records into normalized,
// analysis-ready signals with guaranteed coordinates.
package signal

import "time"

// Location is a resolved geo-mention attached to a signal. Unlike raw
// parsed locations, every Location here carries coordinates.
type Location struct {
	CountryCode  string  `json:"country_code"`
	CountryName  string  `json:"country_name,omitempty"`
	LocationName string  `json:"location_name,omitempty"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	LocationType int     `json:"location_type"`
	FeatureID    string  `json:"feature_id,omitempty"`
	CharOffset   int     `json:"char_offset,omitempty"`
	MentionCount int     `json:"mention_count"`
}

// Tone carries the sentiment metrics from the source record.
type Tone struct {
	Overall         float64 `json:"overall"`
	PositivePct     float64 `json:"positive_pct"`
	NegativePct     float64 `json:"negative_pct"`
	Polarity        float64 `json:"polarity"`
	ActivityDensity float64 `json:"activity_density"`
	SelfReference   float64 `json:"self_reference"`
}

// SourceAttribution records which upstream sources contributed.
type SourceAttribution struct {
	Feed      bool `json:"gdelt"`
	Trends    bool `json:"google_trends"`
	Wikipedia bool `json:"wikipedia"`
}

// ConfidenceScore weights the primary feed heaviest; each secondary
// source adds a smaller increment. Result ∈ [0, 1].
func (s SourceAttribution) ConfidenceScore() float64 {
	score := 0.0
	if s.Feed {
		score += 0.7
	}
	if s.Trends {
		score += 0.15
	}
	if s.Wikipedia {
		score += 0.15
	}
	return score
}

// Signal is the normalized unit of analysis. One signal is emitted per
// theme of a record; signals from the same record share locations,
// tone and counts.
type Signal struct {
	SignalID           string    `json:"signal_id"`
	Timestamp          time.Time `json:"timestamp"`
	Bucket15Min        time.Time `json:"bucket_15min"`
	SourceCollectionID int       `json:"source_collection_id"`

	Locations       []Location `json:"locations"`
	PrimaryLocation Location   `json:"primary_location"`

	Themes       []string       `json:"themes"`
	ThemeLabels  []string       `json:"theme_labels"`
	ThemeCounts  map[string]int `json:"theme_counts"`
	PrimaryTheme string         `json:"primary_theme"`

	Tone Tone `json:"tone"`

	Intensity           float64 `json:"intensity"`
	SentimentLabel      string  `json:"sentiment_label"`
	GeographicPrecision string  `json:"geographic_precision"`

	Persons       []string `json:"persons,omitempty"`
	Organizations []string `json:"organizations,omitempty"`
	SourceURL     string   `json:"source_url,omitempty"`
	SourceOutlet  string   `json:"source_outlet,omitempty"`

	Sources    SourceAttribution `json:"sources"`
	Confidence float64           `json:"confidence"`

	URLHash          string   `json:"url_hash"`
	DuplicateCount   int      `json:"duplicate_count"`
	DuplicateOutlets []string `json:"duplicate_outlets"`
}

// SentimentLabelFor buckets an overall tone value into a categorical
// label.
func SentimentLabelFor(overall float64) string {
	switch {
	case overall < -10:
		return "very_negative"
	case overall < -2:
		return "negative"
	case overall < 2:
		return "neutral"
	case overall < 10:
		return "positive"
	default:
		return "very_positive"
	}
}

// GeographicPrecisionFor maps a location type code to a precision
// label: 1 is country, 2 and 5 are state-level, everything else city.
func GeographicPrecisionFor(locationType int) string {
	switch locationType {
	case 1:
		return "country"
	case 2, 5:
		return "state"
	default:
		return "city"
	}
}
