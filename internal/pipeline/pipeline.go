// Package pipeline orchestrates one request-scoped run: fetch the
// latest snapshot, parse it, convert records to signals, group them by
// country and hand the result to the flow detector.
package pipeline

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/observatory-global/narrative-flow/internal/downloader"
	"github.com/observatory-global/narrative-flow/internal/flow"
	"github.com/observatory-global/narrative-flow/internal/gkg"
	"github.com/observatory-global/narrative-flow/internal/monitoring"
	"github.com/observatory-global/narrative-flow/internal/signal"
	"github.com/observatory-global/narrative-flow/internal/store"
)

// perCountryCap bounds how many signals per country feed a detection
// run; the feed skews heavily toward a few countries.
const perCountryCap = 10

// Pipeline wires the stages together. Stateless between runs apart
// from the downloader's file cache and the optional archive.
type Pipeline struct {
	downloader *downloader.Downloader
	parser     *gkg.Parser
	converter  *signal.Converter
	detector   *flow.Detector
	archive    *store.Store
	logger     *monitoring.Logger
	metrics    *monitoring.Metrics
}

func New(
	dl *downloader.Downloader,
	parser *gkg.Parser,
	converter *signal.Converter,
	detector *flow.Detector,
	archive *store.Store,
	logger *monitoring.Logger,
	metrics *monitoring.Metrics,
) *Pipeline {
	return &Pipeline{
		downloader: dl,
		parser:     parser,
		converter:  converter,
		detector:   detector,
		archive:    archive,
		logger:     logger,
		metrics:    metrics,
	}
}

// Result is one full detection run.
type Result struct {
	Hotspots    []flow.Hotspot   `json:"hotspots"`
	Flows       []flow.Flow      `json:"flows"`
	Metadata    flow.RunMetadata `json:"metadata"`
	GeneratedAt time.Time        `json:"generated_at"`
	// Degraded is set when no fresh snapshot was available and the
	// run produced an empty result instead of failing.
	Degraded bool `json:"degraded"`
}

// Run executes the full pipeline for the given countries. An empty
// country list means the default analysis set. A missing snapshot
// yields an empty degraded result, never an error.
func (p *Pipeline) Run(ctx context.Context, countries []string, timeWindowHours float64) (*Result, error) {
	if len(countries) == 0 {
		countries = signal.DefaultCountries
	}

	path, err := p.downloader.FetchLatest(ctx)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return &Result{
			Hotspots:    []flow.Hotspot{},
			Flows:       []flow.Flow{},
			GeneratedAt: time.Now().UTC(),
			Degraded:    true,
		}, nil
	}

	signalsByCountry, err := p.collectSignals(path, countries)
	if err != nil {
		return nil, err
	}

	if p.archive != nil {
		p.archiveSignals(signalsByCountry)
	}

	fetchTime := time.Now().UTC()
	snapshots := make(map[string]flow.CountrySnapshot, len(signalsByCountry))
	for country, signals := range signalsByCountry {
		snapshots[country] = flow.CountrySnapshot{
			Topics:    SignalsToTopics(signals),
			Timestamp: fetchTime,
		}
	}

	hotspots, flows, meta := p.detector.DetectFlows(snapshots, timeWindowHours, signalsByCountry)
	if p.metrics != nil {
		p.metrics.IncrementFlowRuns()
	}

	return &Result{
		Hotspots:    hotspots,
		Flows:       flows,
		Metadata:    meta,
		GeneratedAt: fetchTime,
	}, nil
}

// collectSignals parses the snapshot file and groups converted
// signals by primary country, deduplicated and capped per country.
func (p *Pipeline) collectSignals(path string, countries []string) (map[string][]signal.Signal, error) {
	wanted := make(map[string]struct{}, len(countries))
	for _, c := range countries {
		wanted[c] = struct{}{}
	}

	scanner, err := p.parser.ParseFile(path)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]signal.Signal)
	for scanner.Scan() {
		for _, sig := range p.converter.Convert(scanner.Record()) {
			country := sig.PrimaryLocation.CountryCode
			if _, ok := wanted[country]; !ok {
				continue
			}
			grouped[country] = append(grouped[country], sig)
		}
	}

	summary := scanner.Summary()
	if p.metrics != nil {
		p.metrics.AddRecordsParsed(int64(summary.Successes))
		p.metrics.AddRowsSkipped(int64(summary.Errors))
	}

	emitted := int64(0)
	for country, signals := range grouped {
		deduped := DeduplicateSignals(signals)
		if len(deduped) > perCountryCap {
			deduped = deduped[:perCountryCap]
		}
		grouped[country] = deduped
		emitted += int64(len(deduped))
	}
	if p.metrics != nil {
		p.metrics.AddSignalsEmitted(emitted)
	}
	return grouped, nil
}

func (p *Pipeline) archiveSignals(grouped map[string][]signal.Signal) {
	var all []signal.Signal
	for _, signals := range grouped {
		all = append(all, signals...)
	}
	if _, err := p.archive.ArchiveSignals(all); err != nil {
		if p.logger != nil {
			p.logger.Warn("archiving signals failed", "error", err.Error())
		}
	}
}

// DeduplicateSignals merges signals covering the same article and
// theme (same url_hash and fan-out theme). The first occurrence wins;
// merged duplicates bump its count and record the extra outlets. The
// "no_url" sentinel is never merged.
func DeduplicateSignals(signals []signal.Signal) []signal.Signal {
	out := make([]signal.Signal, 0, len(signals))
	index := make(map[string]int)

	for _, sig := range signals {
		if sig.URLHash == "no_url" {
			out = append(out, sig)
			continue
		}
		key := sig.URLHash + "_" + fanOutTheme(sig.SignalID)
		if i, ok := index[key]; ok {
			out[i].DuplicateCount++
			if sig.SourceOutlet != "" && !containsString(out[i].DuplicateOutlets, sig.SourceOutlet) {
				out[i].DuplicateOutlets = append(out[i].DuplicateOutlets, sig.SourceOutlet)
			}
			continue
		}
		index[key] = len(out)
		out = append(out, sig)
	}
	return out
}

// SignalsToTopics adapts signals to the topic shape the detector
// scores: display label, total mention count and signal confidence.
func SignalsToTopics(signals []signal.Signal) []flow.Topic {
	topics := make([]flow.Topic, 0, len(signals))
	for _, sig := range signals {
		label := sig.PrimaryTheme
		if len(sig.ThemeLabels) > 0 {
			label = sig.ThemeLabels[0]
		}
		total := 0
		for _, n := range sig.ThemeCounts {
			total += n
		}
		topics = append(topics, flow.Topic{
			Label:      label,
			Count:      total,
			Confidence: sig.Confidence,
			Sources:    []string{"gdelt"},
		})
	}
	sort.SliceStable(topics, func(i, j int) bool { return topics[i].Count > topics[j].Count })
	return topics
}

// fanOutTheme extracts the theme suffix from a signal id. Record ids
// carry no underscores, so everything after the first one is the
// theme code.
func fanOutTheme(signalID string) string {
	if i := strings.Index(signalID, "_"); i >= 0 {
		return signalID[i+1:]
	}
	return signalID
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
