package gkg

import (
	"bufio"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildLine creates a 27-column tab-delimited line with the given columns set.
func buildLine(fields map[int]string) string {
	columns := make([]string, expectedColumns)
	for i, v := range fields {
		columns[i] = v
	}
	return strings.Join(columns, "\t")
}

func validLine() string {
	return buildLine(map[int]string{
		colRecordID:         "20250115120000-T52",
		colDate:             "20250115120000",
		colSourceCollection: "1",
		colSourceName:       "example.com",
		colSourceURL:        "https://example.com/article",
		colCounts:           "KILL#12#civilians#3#Pacific Palisades, California, United States#US#USCA#34.0481#-118.526#1661169",
		colThemes:           "ARMEDCONFLICT;ECON_INFLATION",
		colEnhancedLocs:     "3#Los Angeles, California, United States#US#USCA#CA037#34.0522#-118.244#1662328#1325",
		colPersons:          "Jane Doe;John Smith",
		colOrganizations:    "United Nations",
		colTone:             "-3.5,2.1,5.6,7.7,21.3,2.5,523",
	})
}

func TestParseValidLine(t *testing.T) {
	parser := NewParser(nil, 10)
	scanner := parser.Parse(strings.NewReader(validLine()+"\n"), "test.csv")

	require.True(t, scanner.Scan())
	record := scanner.Record()

	assert.Equal(t, "20250115120000-T52", record.RecordID)
	assert.Equal(t, time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC), record.Timestamp)
	assert.Equal(t, 1, record.SourceCollectionID)
	assert.Equal(t, "example.com", record.SourceName)
	assert.Equal(t, []string{"ARMEDCONFLICT", "ECON_INFLATION"}, record.Themes)
	assert.Equal(t, []string{"Jane Doe", "John Smith"}, record.Persons)
	assert.Equal(t, []string{"United Nations"}, record.Organizations)

	require.Len(t, record.Locations, 1)
	loc := record.Locations[0]
	assert.Equal(t, 3, loc.Type)
	assert.Equal(t, "US", loc.CountryCode)
	assert.InDelta(t, 34.0522, loc.Latitude, 1e-9)
	assert.InDelta(t, -118.244, loc.Longitude, 1e-9)
	assert.Equal(t, "1662328", loc.FeatureID)
	assert.Equal(t, 1325, loc.CharOffset)

	require.Len(t, record.Counts, 1)
	assert.Equal(t, "KILL", record.Counts[0].CountType)
	assert.Equal(t, 12, record.Counts[0].Number)
	assert.Equal(t, "civilians", record.Counts[0].ObjectType)
	require.NotNil(t, record.Counts[0].Location)
	assert.Equal(t, "US", record.Counts[0].Location.CountryCode)

	assert.InDelta(t, -3.5, record.Tone.Overall, 1e-9)
	assert.Equal(t, 523, record.Tone.WordCount)

	assert.False(t, scanner.Scan())
	summary := scanner.Summary()
	assert.Equal(t, 1, summary.Successes)
	assert.Equal(t, 0, summary.Errors)
	assert.False(t, summary.Alert)
}

func TestWrongColumnCountSkipsLine(t *testing.T) {
	parser := NewParser(nil, 10)
	input := "only\tthree\tcolumns\n" + validLine() + "\n"
	scanner := parser.Parse(strings.NewReader(input), "test.csv")

	require.True(t, scanner.Scan())
	assert.Equal(t, "20250115120000-T52", scanner.Record().RecordID)
	assert.False(t, scanner.Scan())

	summary := scanner.Summary()
	assert.Equal(t, 1, summary.Successes)
	assert.Equal(t, 1, summary.Errors)
}

func TestMalformedDateSkipsRow(t *testing.T) {
	tests := []struct {
		name string
		date string
	}{
		{name: "too short", date: "20250115"},
		{name: "non-numeric", date: "2025011512zzzz"},
		{name: "empty", date: ""},
		{name: "month out of range", date: "20251315120000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := NewParser(nil, 10)
			line := buildLine(map[int]string{
				colRecordID: "id",
				colDate:     tt.date,
				colThemes:   "PROTEST",
			})
			scanner := parser.Parse(strings.NewReader(line+"\n"), "test.csv")
			assert.False(t, scanner.Scan())
			assert.Equal(t, 1, scanner.Summary().Errors)
		})
	}
}

func TestParseTone(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Tone
	}{
		{
			name:  "complete tone string",
			input: "-3.5,2.1,5.6,7.7,21.3,2.5,523",
			expected: Tone{
				Overall: -3.5, PositivePct: 2.1, NegativePct: 5.6,
				Polarity: 7.7, ActivityDensity: 21.3, SelfReference: 2.5,
				WordCount: 523,
			},
		},
		{name: "empty string", input: "", expected: Tone{}},
		{name: "fewer than seven values", input: "-3.5,2.1,5.6", expected: Tone{}},
		{name: "non-numeric value defaults whole block", input: "-3.5,abc,5.6,7.7,21.3,2.5,523", expected: Tone{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseTone(tt.input))
		})
	}
}

func TestParseThemes(t *testing.T) {
	assert.Equal(t, []string{"A", "B"}, ParseThemes("A;;B;"))
	assert.Nil(t, ParseThemes(""))
	assert.Nil(t, ParseThemes("  ;  "))
}

func TestParseLocationsDroppedBlocks(t *testing.T) {
	parser := NewParser(nil, 10)

	tests := []struct {
		name  string
		input string
		want  int
	}{
		{name: "too few fields", input: "3#Somewhere#US", want: 0},
		{name: "non-numeric type code", input: "x#Somewhere#US##Z#1.0#2.0#f", want: 0},
		{name: "empty full name", input: "3##US###1.0#2.0#f", want: 0},
		{name: "empty country code", input: "3#Somewhere####1.0#2.0#f", want: 0},
		{
			name:  "one bad block does not kill the others",
			input: "bad#block#US;1#France#FR###46.2#2.2#FR",
			want:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, parser.ParseLocations(tt.input), tt.want)
		})
	}
}

func TestOutOfRangeCoordinatesClampedByDefault(t *testing.T) {
	parser := NewParser(nil, 10)
	locs := parser.ParseLocations("1#Nowhere#XX###95.0#200.0#f")
	require.Len(t, locs, 1)
	assert.Zero(t, locs[0].Latitude)
	assert.Zero(t, locs[0].Longitude)
}

func TestOutOfRangeCoordinatesDropPolicy(t *testing.T) {
	parser := NewParser(nil, 10)
	parser.SetCoordinatePolicy(CoordinateDrop)
	assert.Empty(t, parser.ParseLocations("1#Nowhere#XX###95.0#200.0#f"))
}

func TestParseCounts(t *testing.T) {
	parser := NewParser(nil, 10)

	t.Run("same count type kept separate", func(t *testing.T) {
		counts := parser.ParseCounts("KILL#5#;KILL#7#")
		require.Len(t, counts, 2)
		assert.Equal(t, 5, counts[0].Number)
		assert.Equal(t, 7, counts[1].Number)
	})

	t.Run("minimum two fields", func(t *testing.T) {
		assert.Empty(t, parser.ParseCounts("KILL"))
	})

	t.Run("negative number dropped", func(t *testing.T) {
		assert.Empty(t, parser.ParseCounts("KILL#-4#"))
	})

	t.Run("bad embedded location degrades to no location", func(t *testing.T) {
		counts := parser.ParseCounts("WOUND#3#people#z##??###x")
		require.Len(t, counts, 1)
		assert.Nil(t, counts[0].Location)
		assert.Equal(t, 3, counts[0].Number)
	})
}

func TestHighErrorRateAlert(t *testing.T) {
	parser := NewParser(nil, 10)

	var b strings.Builder
	b.WriteString(validLine() + "\n")
	for i := 0; i < 5; i++ {
		b.WriteString("short\tline\n")
	}

	scanner := parser.Parse(strings.NewReader(b.String()), "noisy.csv")
	for scanner.Scan() {
	}

	summary := scanner.Summary()
	assert.Equal(t, 1, summary.Successes)
	assert.Equal(t, 5, summary.Errors)
	assert.True(t, summary.Alert)
	assert.InDelta(t, 83.33, summary.ErrorRatePct(), 0.01)
}

func TestOversizedRowSurfacesReadError(t *testing.T) {
	parser := NewParser(nil, 10)

	var b strings.Builder
	b.WriteString(strings.Repeat("x", 5*1024*1024))
	b.WriteString("\n")
	b.WriteString(validLine() + "\n")

	scanner := parser.Parse(strings.NewReader(b.String()), "huge.csv")
	for scanner.Scan() {
	}

	summary := scanner.Summary()
	require.Error(t, summary.ReadErr)
	assert.ErrorIs(t, summary.ReadErr, bufio.ErrTooLong)
	assert.Equal(t, 1, summary.Errors)
	assert.Equal(t, 0, summary.Successes)
	assert.True(t, summary.Alert)
}

func TestEmptyLinesIgnored(t *testing.T) {
	parser := NewParser(nil, 10)
	scanner := parser.Parse(strings.NewReader("\n\n"+validLine()+"\n\n"), "test.csv")

	require.True(t, scanner.Scan())
	assert.False(t, scanner.Scan())

	summary := scanner.Summary()
	assert.Equal(t, 1, summary.Successes)
	assert.Equal(t, 0, summary.Errors)
}
