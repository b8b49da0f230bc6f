// Package flow detects cross-country narrative flows from per-country
// topic snapshots: TF-IDF topic similarity combined with exponential
// time decay.
package flow

import "time"

// Topic is one trending narrative in a country's snapshot.
type Topic struct {
	Label      string   `json:"label"`
	Count      int      `json:"count"`
	Confidence float64  `json:"confidence"`
	Sources    []string `json:"sources,omitempty"`
}

// TopicSummary is the trimmed topic view embedded in hotspots.
type TopicSummary struct {
	Label      string  `json:"label"`
	Count      int     `json:"count"`
	Confidence float64 `json:"confidence"`
}

// SignalSummary is the lightweight per-signal view carried by a
// hotspot when raw signals were available.
type SignalSummary struct {
	SignalID       string    `json:"signal_id"`
	Timestamp      time.Time `json:"timestamp"`
	Themes         []string  `json:"themes"`
	ThemeLabels    []string  `json:"theme_labels"`
	PrimaryTheme   string    `json:"primary_theme"`
	SentimentLabel string    `json:"sentiment_label"`
	SentimentScore float64   `json:"sentiment_score"`
	CountryCode    string    `json:"country_code"`
	LocationName   string    `json:"location_name,omitempty"`
	Persons        []string  `json:"persons,omitempty"`
	Organizations  []string  `json:"organizations,omitempty"`
	SourceOutlet   string    `json:"source_outlet,omitempty"`
}

// Hotspot is the per-country aggregate of one detection run.
type Hotspot struct {
	CountryCode       string          `json:"country_code"`
	CountryName       string          `json:"country_name"`
	Latitude          float64         `json:"latitude"`
	Longitude         float64         `json:"longitude"`
	Intensity         float64         `json:"intensity"`
	TopicCount        int             `json:"topic_count"`
	Confidence        float64         `json:"confidence"`
	TopTopics         []TopicSummary  `json:"top_topics"`
	Signals           []SignalSummary `json:"signals,omitempty"`
	DominantSentiment string          `json:"dominant_sentiment"`
	AvgSentimentScore float64         `json:"avg_sentiment_score"`
	ThemeDistribution map[string]int  `json:"theme_distribution"`
	SourceCount       int             `json:"source_count"`
	SourceDiversity   float64         `json:"source_diversity"`
}

// Flow is a directed narrative edge between two countries, ordered
// earlier timestamp to later.
type Flow struct {
	FromCountry      string    `json:"from_country"`
	ToCountry        string    `json:"to_country"`
	Heat             float64   `json:"heat"`
	Similarity       float64   `json:"similarity"`
	TimeDeltaMinutes float64   `json:"time_delta_minutes"`
	SharedTopics     []string  `json:"shared_topics"`
	FromCoords       []float64 `json:"from_coords"` // [lng, lat]
	ToCoords         []float64 `json:"to_coords"`   // [lng, lat]
}

// CountrySnapshot is one country's input to a detection run.
type CountrySnapshot struct {
	Topics    []Topic
	Timestamp time.Time
}

// RunMetadata describes one detection run for API consumers.
type RunMetadata struct {
	Formula            string   `json:"formula"`
	Threshold          float64  `json:"threshold"`
	TimeWindowHours    float64  `json:"time_window_hours"`
	TotalFlowsComputed int      `json:"total_flows_computed"`
	FlowsReturned      int      `json:"flows_returned"`
	CountriesAnalyzed  []string `json:"countries_analyzed"`
}
