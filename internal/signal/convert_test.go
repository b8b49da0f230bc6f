package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/observatory-global/narrative-flow/internal/gkg"
)

func sampleRecord() gkg.Record {
	return gkg.Record{
		RecordID:           "20250115120000-T52",
		Timestamp:          time.Date(2025, 1, 15, 12, 7, 33, 0, time.UTC),
		SourceCollectionID: 1,
		SourceName:         "example.com",
		SourceURL:          "https://example.com/article",
		Themes:             []string{"ARMEDCONFLICT", "KILL", "PROTEST"},
		Locations: []gkg.Location{
			{Type: 3, FullName: "Bogotá, Colombia", CountryCode: "CO", Latitude: 4.71, Longitude: -74.07},
		},
		Tone:   gkg.Tone{Overall: -5.2},
		Counts: []gkg.Count{{CountType: "KILL", Number: 12}, {CountType: "KILL", Number: 8}},
	}
}

func TestConvertFansOutPerTheme(t *testing.T) {
	converter := NewConverter("US", nil)
	signals := converter.Convert(sampleRecord())

	require.Len(t, signals, 3)
	assert.Equal(t, "20250115120000-T52_ARMEDCONFLICT", signals[0].SignalID)
	assert.Equal(t, "20250115120000-T52_KILL", signals[1].SignalID)
	assert.Equal(t, "20250115120000-T52_PROTEST", signals[2].SignalID)

	// Shared fields are identical across the fan-out.
	for _, s := range signals {
		assert.Equal(t, signals[0].ThemeCounts, s.ThemeCounts)
		assert.Equal(t, signals[0].PrimaryLocation, s.PrimaryLocation)
		assert.Equal(t, signals[0].URLHash, s.URLHash)
	}
}

func TestConvertNoThemesYieldsNothing(t *testing.T) {
	converter := NewConverter("US", nil)
	record := sampleRecord()
	record.Themes = nil
	assert.Empty(t, converter.Convert(record))
}

func TestThemeCountsAggregatedByType(t *testing.T) {
	converter := NewConverter("US", nil)
	signals := converter.Convert(sampleRecord())
	require.NotEmpty(t, signals)

	// Two KILL counts (12 + 8) merge; other themes carry no counts.
	assert.Equal(t, map[string]int{"KILL": 20}, signals[0].ThemeCounts)
	assert.Equal(t, "KILL", signals[0].PrimaryTheme)
	assert.InDelta(t, 20.0/500.0, signals[0].Intensity, 1e-9)
}

func TestThemeCountsDefaultToOnePerTheme(t *testing.T) {
	converter := NewConverter("US", nil)
	record := sampleRecord()
	record.Counts = nil
	signals := converter.Convert(record)
	require.NotEmpty(t, signals)

	assert.Equal(t, map[string]int{"ARMEDCONFLICT": 1, "KILL": 1, "PROTEST": 1}, signals[0].ThemeCounts)
	// Tie-break follows theme order.
	assert.Equal(t, "ARMEDCONFLICT", signals[0].PrimaryTheme)
}

func TestIntensityClampedAtOne(t *testing.T) {
	converter := NewConverter("US", nil)
	record := sampleRecord()
	record.Counts = []gkg.Count{{CountType: "KILL", Number: 9000}}
	signals := converter.Convert(record)
	require.NotEmpty(t, signals)
	assert.Equal(t, 1.0, signals[0].Intensity)
}

func TestCentroidFallbackWhenNoLocations(t *testing.T) {
	converter := NewConverter("CO", nil)
	record := sampleRecord()
	record.Locations = nil
	signals := converter.Convert(record)
	require.NotEmpty(t, signals)

	loc := signals[0].PrimaryLocation
	assert.Equal(t, "CO", loc.CountryCode)
	assert.Equal(t, "Colombia", loc.CountryName)

	centroid, ok := CountryCentroid("CO")
	require.True(t, ok)
	assert.Equal(t, centroid.Latitude, loc.Latitude)
	assert.Equal(t, centroid.Longitude, loc.Longitude)
	assert.Equal(t, "country", signals[0].GeographicPrecision)
}

func TestBucket15MinFloors(t *testing.T) {
	tests := []struct {
		name   string
		minute int
		second int
		want   int
	}{
		{name: "within first quarter", minute: 7, second: 33, want: 0},
		{name: "exact boundary", minute: 15, second: 0, want: 15},
		{name: "just before boundary", minute: 29, second: 59, want: 15},
		{name: "last quarter", minute: 58, second: 1, want: 45},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := time.Date(2025, 1, 15, 12, tt.minute, tt.second, 0, time.UTC)
			got := Bucket15Min(in)
			assert.Equal(t, tt.want, got.Minute())
			assert.Zero(t, got.Second())
			assert.Equal(t, in.Hour(), got.Hour())
		})
	}
}

func TestSentimentLabels(t *testing.T) {
	tests := []struct {
		overall float64
		want    string
	}{
		{-15, "very_negative"},
		{-10, "negative"},
		{-5.2, "negative"},
		{-2, "neutral"},
		{0, "neutral"},
		{2, "positive"},
		{9.99, "positive"},
		{10, "very_positive"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SentimentLabelFor(tt.overall), "overall=%v", tt.overall)
	}
}

func TestGeographicPrecision(t *testing.T) {
	assert.Equal(t, "country", GeographicPrecisionFor(1))
	assert.Equal(t, "state", GeographicPrecisionFor(2))
	assert.Equal(t, "city", GeographicPrecisionFor(3))
	assert.Equal(t, "city", GeographicPrecisionFor(4))
	assert.Equal(t, "state", GeographicPrecisionFor(5))
}

func TestURLHash(t *testing.T) {
	assert.Equal(t, "no_url", URLHash(""))

	a := URLHash("https://example.com/a")
	b := URLHash("https://example.com/b")
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, URLHash("https://example.com/a"))
}

func TestConfidenceScore(t *testing.T) {
	assert.InDelta(t, 0.7, SourceAttribution{Feed: true}.ConfidenceScore(), 1e-9)
	assert.InDelta(t, 0.85, SourceAttribution{Feed: true, Trends: true}.ConfidenceScore(), 1e-9)
	assert.InDelta(t, 1.0, SourceAttribution{Feed: true, Trends: true, Wikipedia: true}.ConfidenceScore(), 1e-9)
	assert.Zero(t, SourceAttribution{}.ConfidenceScore())
}
