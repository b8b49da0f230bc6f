package signal

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/observatory-global/narrative-flow/internal/gkg"
	"github.com/observatory-global/narrative-flow/internal/monitoring"
)

// intensityCeiling is the mention total treated as maximum attention.
const intensityCeiling = 500.0

// noURLSentinel keys records without a source URL so they never dedup
// against each other by accident of an empty hash.
const noURLSentinel = "no_url"

// Converter turns parsed records into signals. Pure per-record: no
// I/O, no shared mutable state, safe for concurrent use.
type Converter struct {
	fallbackCountry string
	logger          *monitoring.Logger
}

func NewConverter(fallbackCountry string, logger *monitoring.Logger) *Converter {
	if fallbackCountry == "" {
		fallbackCountry = "US"
	}
	return &Converter{fallbackCountry: fallbackCountry, logger: logger}
}

// Convert fans a record out into one Signal per theme. A record with
// no themes contributes nothing. A failure deriving one theme's signal
// skips that theme only.
func (c *Converter) Convert(record gkg.Record) []Signal {
	if len(record.Themes) == 0 {
		return nil
	}

	locations := c.convertLocations(record)
	primary := locations[0]

	tone := Tone{
		Overall:         record.Tone.Overall,
		PositivePct:     record.Tone.PositivePct,
		NegativePct:     record.Tone.NegativePct,
		Polarity:        record.Tone.Polarity,
		ActivityDensity: record.Tone.ActivityDensity,
		SelfReference:   record.Tone.SelfReference,
	}

	themeCounts := buildThemeCounts(record)
	totalCount := 0
	for _, n := range themeCounts {
		totalCount += n
	}
	intensity := min(float64(totalCount)/intensityCeiling, 1.0)

	primaryTheme := argmaxTheme(themeCounts, record.Themes)

	themeLabels := make([]string, len(record.Themes))
	for i, t := range record.Themes {
		themeLabels[i] = ThemeLabel(t)
	}

	sources := SourceAttribution{Feed: true}

	signals := make([]Signal, 0, len(record.Themes))
	for _, theme := range record.Themes {
		sig, err := buildSignal(record, theme, buildParams{
			locations:    locations,
			primary:      primary,
			tone:         tone,
			themeCounts:  themeCounts,
			primaryTheme: primaryTheme,
			themeLabels:  themeLabels,
			intensity:    intensity,
			sources:      sources,
		})
		if err != nil {
			if c.logger != nil {
				c.logger.RowSkipLogger(record.RecordID, record.LineNumber,
					fmt.Sprintf("signal for theme %q: %v", theme, err))
			}
			continue
		}
		signals = append(signals, sig)
	}
	return signals
}

type buildParams struct {
	locations    []Location
	primary      Location
	tone         Tone
	themeCounts  map[string]int
	primaryTheme string
	themeLabels  []string
	intensity    float64
	sources      SourceAttribution
}

func buildSignal(record gkg.Record, theme string, p buildParams) (Signal, error) {
	if record.RecordID == "" {
		return Signal{}, fmt.Errorf("record has no id")
	}
	return Signal{
		SignalID:            record.RecordID + "_" + theme,
		Timestamp:           record.Timestamp,
		Bucket15Min:         Bucket15Min(record.Timestamp),
		SourceCollectionID:  record.SourceCollectionID,
		Locations:           p.locations,
		PrimaryLocation:     p.primary,
		Themes:              record.Themes,
		ThemeLabels:         p.themeLabels,
		ThemeCounts:         p.themeCounts,
		PrimaryTheme:        p.primaryTheme,
		Tone:                p.tone,
		Intensity:           p.intensity,
		SentimentLabel:      SentimentLabelFor(p.tone.Overall),
		GeographicPrecision: GeographicPrecisionFor(p.primary.LocationType),
		Persons:             record.Persons,
		Organizations:       record.Organizations,
		SourceURL:           record.SourceURL,
		SourceOutlet:        record.SourceName,
		Sources:             p.sources,
		Confidence:          p.sources.ConfidenceScore(),
		URLHash:             URLHash(record.SourceURL),
		DuplicateCount:      1,
		DuplicateOutlets:    []string{},
	}, nil
}

// convertLocations maps the record's parsed locations, or synthesizes
// a country-level centroid fallback so every signal has coordinates.
func (c *Converter) convertLocations(record gkg.Record) []Location {
	if len(record.Locations) == 0 {
		return []Location{c.fallbackLocation()}
	}

	locations := make([]Location, len(record.Locations))
	for i, raw := range record.Locations {
		locations[i] = Location{
			CountryCode:  raw.CountryCode,
			CountryName:  CountryName(raw.CountryCode),
			LocationName: raw.FullName,
			Latitude:     raw.Latitude,
			Longitude:    raw.Longitude,
			LocationType: raw.Type,
			FeatureID:    raw.FeatureID,
			CharOffset:   raw.CharOffset,
			MentionCount: 1,
		}
	}
	return locations
}

func (c *Converter) fallbackLocation() Location {
	centroid, ok := CountryCentroid(c.fallbackCountry)
	if !ok {
		centroid = Centroid{Name: c.fallbackCountry}
	}
	return Location{
		CountryCode:  c.fallbackCountry,
		CountryName:  centroid.Name,
		Latitude:     centroid.Latitude,
		Longitude:    centroid.Longitude,
		LocationType: 1,
		MentionCount: 1,
	}
}

// buildThemeCounts sums count numbers grouped by count type, keeping
// only types that are themes of the record. Without usable counts,
// every theme defaults to 1.
func buildThemeCounts(record gkg.Record) map[string]int {
	themeSet := make(map[string]struct{}, len(record.Themes))
	for _, t := range record.Themes {
		themeSet[t] = struct{}{}
	}

	counts := make(map[string]int)
	for _, c := range record.Counts {
		if _, ok := themeSet[c.CountType]; ok {
			counts[c.CountType] += c.Number
		}
	}
	if len(counts) == 0 {
		for _, t := range record.Themes {
			counts[t] = 1
		}
	}
	return counts
}

// argmaxTheme picks the highest-count theme, breaking ties by the
// record's theme order so the result is deterministic.
func argmaxTheme(counts map[string]int, themes []string) string {
	best := ""
	bestCount := -1
	for _, t := range themes {
		if n, ok := counts[t]; ok && n > bestCount {
			best = t
			bestCount = n
		}
	}
	if best == "" && len(themes) > 0 {
		best = themes[0]
	}
	return best
}

// Bucket15Min floors a timestamp onto the 15-minute publication grid.
func Bucket15Min(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), (t.Minute()/15)*15, 0, 0, t.Location())
}

// URLHash keys a source URL for cross-record dedup; absent URLs get a
// shared sentinel so they are never merged.
func URLHash(sourceURL string) string {
	if sourceURL == "" {
		return noURLSentinel
	}
	sum := md5.Sum([]byte(sourceURL))
	return hex.EncodeToString(sum[:])
}
