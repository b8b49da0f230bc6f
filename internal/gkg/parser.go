package gkg

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/observatory-global/narrative-flow/internal/monitoring"
)

// Column indices of the 27-column tab-delimited snapshot schema.
const (
	colRecordID         = 0
	colDate             = 1
	colSourceCollection = 2
	colSourceName       = 3
	colSourceURL        = 4
	colCounts           = 5
	colThemes           = 7
	colEnhancedLocs     = 10
	colPersons          = 11
	colOrganizations    = 13
	colTone             = 15
)

const expectedColumns = 27

// CoordinatePolicy controls how out-of-range coordinates in a location
// block are handled.
type CoordinatePolicy int

const (
	// CoordinateClamp zeroes an out-of-range latitude or longitude and keeps
	// the location. This preserves the feed's historical best-effort behavior
	// but a zeroed pair silently lands in the Gulf of Guinea; prefer
	// CoordinateDrop for consumers that plot raw locations.
	CoordinateClamp CoordinatePolicy = iota
	// CoordinateDrop discards the whole location block when either
	// coordinate is out of range.
	CoordinateDrop
)

// Parser is a streaming parser for snapshot files. Each file is consumed in
// a single pass; malformed rows are skipped and logged, never fatal.
//
// A Parser value is not safe for concurrent use across files; parse
// independent files with independent Parser values.
type Parser struct {
	logger      *monitoring.Logger
	alertPct    float64
	coordPolicy CoordinatePolicy
}

// NewParser creates a parser. alertPct is the per-file error-rate ceiling
// (percent) above which the end-of-stream summary escalates to an alert.
func NewParser(logger *monitoring.Logger, alertPct float64) *Parser {
	return &Parser{logger: logger, alertPct: alertPct, coordPolicy: CoordinateClamp}
}

// SetCoordinatePolicy overrides the out-of-range coordinate handling.
func (p *Parser) SetCoordinatePolicy(policy CoordinatePolicy) {
	p.coordPolicy = policy
}

// Summary reports per-file parse statistics.
type Summary struct {
	File      string
	Successes int
	Errors    int
	Alert     bool
	ReadErr   error
}

// ErrorRatePct returns the per-file error rate in percent.
func (s Summary) ErrorRatePct() float64 {
	total := s.Successes + s.Errors
	if total == 0 {
		return 0
	}
	return float64(s.Errors) / float64(total) * 100
}

// Scanner streams records out of a single snapshot file, in the style of
// bufio.Scanner: call Scan until it returns false, then Summary.
type Scanner struct {
	parser   *Parser
	scanner  *bufio.Scanner
	file     string
	closer   io.Closer
	record   Record
	lineNum  int
	summary  Summary
	finished bool
}

// ParseFile opens path and returns a Scanner over its records.
func (p *Parser) ParseFile(path string) (*Scanner, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot file: %w", err)
	}
	s := p.Parse(f, filepath.Base(path))
	s.closer = f
	return s, nil
}

// Parse returns a Scanner over the records in r. name is used for logging.
func (p *Parser) Parse(r io.Reader, name string) *Scanner {
	sc := bufio.NewScanner(r)
	// Snapshot rows routinely exceed bufio's default 64K line limit.
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &Scanner{
		parser:  p,
		scanner: sc,
		file:    name,
		summary: Summary{File: name},
	}
}

// Scan advances to the next valid record. It returns false at end of
// stream, after emitting the per-file summary log (and the alert-level
// signal when the error rate exceeds the configured ceiling).
func (s *Scanner) Scan() bool {
	for s.scanner.Scan() {
		s.lineNum++
		line := strings.ToValidUTF8(strings.TrimRight(s.scanner.Text(), "\r\n"), "�")
		if strings.TrimSpace(line) == "" {
			continue
		}

		record, err := s.parser.parseRow(line, s.lineNum)
		if err != nil {
			s.summary.Errors++
			if s.parser.logger != nil {
				s.parser.logger.RowSkipLogger(s.file, s.lineNum, err.Error())
			}
			continue
		}

		s.summary.Successes++
		s.record = record
		return true
	}

	s.finish()
	return false
}

// Record returns the record produced by the last successful Scan.
func (s *Scanner) Record() Record {
	return s.record
}

// Summary returns the per-file statistics accumulated so far.
func (s *Scanner) Summary() Summary {
	return s.summary
}

func (s *Scanner) finish() {
	if s.finished {
		return
	}
	s.finished = true

	if s.closer != nil {
		s.closer.Close()
	}

	// A scanner error (oversized row, read failure) truncates the
	// stream; it must not masquerade as a clean end of file.
	if err := s.scanner.Err(); err != nil {
		s.summary.Errors++
		s.summary.ReadErr = err
		if s.parser.logger != nil {
			s.parser.logger.RowSkipLogger(s.file, s.lineNum+1, "stream read: "+err.Error())
		}
	}

	rate := s.summary.ErrorRatePct()
	if s.parser.logger != nil {
		s.parser.logger.ParseSummaryLogger(s.file, s.summary.Successes, s.summary.Errors, rate)
	}
	if rate > s.parser.alertPct && s.summary.Errors > 0 {
		s.summary.Alert = true
		if s.parser.logger != nil {
			s.parser.logger.ParseAlertLogger(s.file, rate)
		}
	}
}

// parseRow parses a single tab-delimited line into a Record.
func (p *Parser) parseRow(line string, lineNum int) (Record, error) {
	columns := strings.Split(line, "\t")
	if len(columns) != expectedColumns {
		return Record{}, fmt.Errorf("expected %d columns, got %d", expectedColumns, len(columns))
	}

	timestamp, err := ParseDate(columns[colDate])
	if err != nil {
		return Record{}, err
	}

	return Record{
		RecordID:           columns[colRecordID],
		Timestamp:          timestamp,
		SourceCollectionID: parseIntSafe(columns[colSourceCollection], 1),
		SourceName:         columns[colSourceName],
		SourceURL:          columns[colSourceURL],
		Themes:             ParseThemes(columns[colThemes]),
		Locations:          p.ParseLocations(columns[colEnhancedLocs]),
		Persons:            parseList(columns[colPersons]),
		Organizations:      parseList(columns[colOrganizations]),
		Tone:               ParseTone(columns[colTone]),
		Counts:             p.ParseCounts(columns[colCounts]),
		LineNumber:         lineNum,
	}, nil
}

// ParseDate parses the 14-digit YYYYMMDDHHMMSS timestamp column as UTC.
func ParseDate(dateStr string) (time.Time, error) {
	dateStr = strings.TrimSpace(dateStr)
	if len(dateStr) != 14 {
		return time.Time{}, fmt.Errorf("invalid date %q: expected 14 digits", dateStr)
	}
	t, err := time.ParseInLocation("20060102150405", dateStr, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", dateStr, err)
	}
	return t, nil
}

// ParseThemes splits the semicolon-separated theme codes, filtering blanks.
// No upper bound is enforced here; fan-out limiting happens downstream.
func ParseThemes(themesStr string) []string {
	return parseList(themesStr)
}

// ParseTone parses the 7 comma-separated tone metrics. Fewer than 7 values,
// or any value failing numeric parse, yields the all-zero Tone; the block
// is never partially filled.
func ParseTone(toneStr string) Tone {
	toneStr = strings.TrimSpace(toneStr)
	if toneStr == "" {
		return Tone{}
	}

	values := strings.Split(toneStr, ",")
	if len(values) < 7 {
		return Tone{}
	}

	parsed := make([]float64, 7)
	for i := 0; i < 7; i++ {
		f, err := strconv.ParseFloat(strings.TrimSpace(values[i]), 64)
		if err != nil {
			return Tone{}
		}
		parsed[i] = f
	}

	return Tone{
		Overall:         parsed[0],
		PositivePct:     parsed[1],
		NegativePct:     parsed[2],
		Polarity:        parsed[3],
		ActivityDensity: parsed[4],
		SelfReference:   parsed[5],
		WordCount:       int(parsed[6]),
	}
}

// ParseLocations parses the semicolon-separated location blocks. Invalid
// blocks are dropped individually; the rest of the record still parses.
func (p *Parser) ParseLocations(locationsStr string) []Location {
	locationsStr = strings.TrimSpace(locationsStr)
	if locationsStr == "" {
		return nil
	}

	var locations []Location
	for _, block := range strings.Split(locationsStr, ";") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		loc, ok := p.parseLocationBlock(strings.Split(block, "#"))
		if !ok {
			continue
		}
		locations = append(locations, loc)
	}
	return locations
}

// parseLocationBlock parses one '#'-delimited location block of at least 7
// fields: Type, FullName, CountryCode, ADM1, ADM2, Lat, Long, [FeatureID,
// CharOffset].
func (p *Parser) parseLocationBlock(parts []string) (Location, bool) {
	if len(parts) < 7 {
		return Location{}, false
	}

	locType, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Location{}, false
	}

	fullName := strings.TrimSpace(parts[1])
	countryCode := strings.TrimSpace(parts[2])
	if fullName == "" || countryCode == "" {
		return Location{}, false
	}

	lat := parseFloatSafe(parts[5], 0)
	lon := parseFloatSafe(parts[6], 0)

	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		if p.coordPolicy == CoordinateDrop {
			return Location{}, false
		}
		if lat < -90 || lat > 90 {
			lat = 0
		}
		if lon < -180 || lon > 180 {
			lon = 0
		}
	}

	loc := Location{
		Type:        locType,
		FullName:    fullName,
		CountryCode: countryCode,
		Adm1Code:    strings.TrimSpace(parts[3]),
		Adm2Code:    strings.TrimSpace(parts[4]),
		Latitude:    lat,
		Longitude:   lon,
	}
	if len(parts) > 7 {
		loc.FeatureID = strings.TrimSpace(parts[7])
	}
	if len(parts) > 8 {
		loc.CharOffset = parseIntSafe(parts[8], 0)
	}
	return loc, true
}

// ParseCounts parses the semicolon-separated count blocks. A block needs at
// least a type and a number; an embedded location (10+ fields) that fails
// to parse degrades to a count without location rather than dropping the
// count.
func (p *Parser) ParseCounts(countsStr string) []Count {
	countsStr = strings.TrimSpace(countsStr)
	if countsStr == "" {
		return nil
	}

	var counts []Count
	for _, block := range strings.Split(countsStr, ";") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}

		parts := strings.Split(block, "#")
		if len(parts) < 2 {
			continue
		}

		countType := strings.TrimSpace(parts[0])
		if countType == "" {
			continue
		}
		number, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil || number < 0 {
			continue
		}

		count := Count{CountType: countType, Number: number}
		if len(parts) > 2 {
			count.ObjectType = strings.TrimSpace(parts[2])
		}

		// Embedded location layout: Type#Name#Country#ADM1#Lat#Long#FeatureID
		// shifted by the three leading count fields.
		if len(parts) >= 10 {
			locParts := []string{
				parts[3], parts[4], parts[5], parts[6], "",
				parts[7], parts[8], parts[9],
			}
			if loc, ok := p.parseLocationBlock(locParts); ok {
				count.Location = &loc
			}
		}

		counts = append(counts, count)
	}
	return counts
}

func parseList(fieldStr string) []string {
	fieldStr = strings.TrimSpace(fieldStr)
	if fieldStr == "" {
		return nil
	}
	var items []string
	for _, item := range strings.Split(fieldStr, ";") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

func parseIntSafe(value string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return def
	}
	return n
}

func parseFloatSafe(value string, def float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return def
	}
	return f
}
