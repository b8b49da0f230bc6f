package flow

import (
	"fmt"
	"math"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/observatory-global/narrative-flow/internal/errors"
	"github.com/observatory-global/narrative-flow/internal/monitoring"
	"github.com/observatory-global/narrative-flow/internal/signal"
)

const (
	DefaultHalflifeHours = 6.0
	DefaultThreshold     = 0.5

	sharedTopicLimit = 3
	topTopicLimit    = 5
)

// Detector runs flow detection over per-country topic snapshots. It
// holds only configuration; every detection run is independent.
type Detector struct {
	halflifeHours float64
	threshold     float64
	logger        *monitoring.Logger
	similarity    func(a, b []string) float64
}

func NewDetector(halflifeHours, threshold float64, logger *monitoring.Logger) *Detector {
	if halflifeHours <= 0 {
		halflifeHours = DefaultHalflifeHours
	}
	return &Detector{
		halflifeHours: halflifeHours,
		threshold:     threshold,
		logger:        logger,
		similarity:    Similarity,
	}
}

// UseWordOverlap switches the detector to the degraded word-overlap
// similarity mode.
func (d *Detector) UseWordOverlap() {
	d.similarity = WordOverlapSimilarity
}

// TimeDecay returns exp(-Δt/halflife); negative deltas clamp to decay 1.
func (d *Detector) TimeDecay(deltaHours float64) float64 {
	if deltaHours < 0 {
		deltaHours = 0
	}
	return math.Exp(-deltaHours / d.halflifeHours)
}

// Heat is the edge weight: similarity attenuated by time decay.
func (d *Detector) Heat(similarity, deltaHours float64) float64 {
	return similarity * d.TimeDecay(deltaHours)
}

// HotspotIntensity scores a country from topic aggregates:
// 0.4×volume + 0.3×velocity + 0.3×avg confidence, clamped to [0, 1].
func (d *Detector) HotspotIntensity(topics []Topic) float64 {
	if len(topics) == 0 {
		return 0
	}

	volumeScore := math.Min(float64(len(topics))/100.0, 1.0)

	var totalCount int
	var totalConfidence float64
	for _, t := range topics {
		totalCount += t.Count
		totalConfidence += t.Confidence
	}
	avgCount := float64(totalCount) / float64(len(topics))
	velocityScore := math.Min(avgCount/1000.0, 1.0)
	avgConfidence := totalConfidence / float64(len(topics))

	intensity := 0.4*volumeScore + 0.3*velocityScore + 0.3*avgConfidence
	return math.Min(intensity, 1.0)
}

// IntensityFromSignals is the preferred intensity mode when raw
// signals are available: the mean of their pre-computed intensities.
func (d *Detector) IntensityFromSignals(signals []signal.Signal) float64 {
	if len(signals) == 0 {
		return 0
	}
	var sum float64
	for _, s := range signals {
		sum += s.Intensity
	}
	return math.Min(sum/float64(len(signals)), 1.0)
}

// pairScore is the result of scoring one country pair.
type pairScore struct {
	a, b       string
	similarity float64
	deltaHours float64
}

// DetectFlows computes hotspots and directed flows from per-country
// snapshots. signalsByCountry is optional; when a country has raw
// signals they drive its hotspot intensity and enrichment fields.
// Pairs outside the time window are skipped entirely and not counted.
func (d *Detector) DetectFlows(
	snapshots map[string]CountrySnapshot,
	timeWindowHours float64,
	signalsByCountry map[string][]signal.Signal,
) ([]Hotspot, []Flow, RunMetadata) {
	start := time.Now()

	countries := make([]string, 0, len(snapshots))
	for c := range snapshots {
		countries = append(countries, c)
	}
	sort.Strings(countries)

	hotspots := d.buildHotspots(countries, snapshots, signalsByCountry)

	// Candidate pairs: upper triangle, both sides non-empty, within
	// the time window.
	var pairs []pairScore
	for i, a := range countries {
		for _, b := range countries[i+1:] {
			snapA, snapB := snapshots[a], snapshots[b]
			if len(snapA.Topics) == 0 || len(snapB.Topics) == 0 {
				continue
			}
			deltaHours := math.Abs(snapB.Timestamp.Sub(snapA.Timestamp).Hours())
			if deltaHours > timeWindowHours {
				continue
			}
			pairs = append(pairs, pairScore{a: a, b: b, deltaHours: deltaHours})
		}
	}

	d.scorePairs(pairs, snapshots)

	flows := make([]Flow, 0, len(pairs))
	for _, p := range pairs {
		heat := p.similarity * d.TimeDecay(p.deltaHours)
		if heat < d.threshold {
			continue
		}

		snapA, snapB := snapshots[p.a], snapshots[p.b]
		from, to := p.a, p.b
		fromLabels, toLabels := topicLabels(snapA.Topics), topicLabels(snapB.Topics)
		if snapB.Timestamp.Before(snapA.Timestamp) {
			from, to = p.b, p.a
		}

		fromCentroid, okFrom := signal.CountryCentroid(from)
		toCentroid, okTo := signal.CountryCentroid(to)
		if !okFrom || !okTo {
			if d.logger != nil {
				d.logger.Warn("missing centroid for flow, skipping",
					"from_country", from, "to_country", to)
			}
			continue
		}

		flows = append(flows, Flow{
			FromCountry:      from,
			ToCountry:        to,
			Heat:             heat,
			Similarity:       p.similarity,
			TimeDeltaMinutes: p.deltaHours * 60.0,
			SharedTopics:     sharedTopics(fromLabels, toLabels, sharedTopicLimit),
			FromCoords:       []float64{fromCentroid.Longitude, fromCentroid.Latitude},
			ToCoords:         []float64{toCentroid.Longitude, toCentroid.Latitude},
		})
	}

	sort.SliceStable(flows, func(i, j int) bool { return flows[i].Heat > flows[j].Heat })

	meta := RunMetadata{
		Formula:            fmt.Sprintf("heat = similarity × exp(-Δt / %gh)", d.halflifeHours),
		Threshold:          d.threshold,
		TimeWindowHours:    timeWindowHours,
		TotalFlowsComputed: len(pairs),
		FlowsReturned:      len(flows),
		CountriesAnalyzed:  countries,
	}

	if d.logger != nil {
		d.logger.FlowRunLogger(len(countries), len(hotspots), len(flows), len(pairs), time.Since(start))
	}
	return hotspots, flows, meta
}

// scorePairs fills in similarity for each candidate pair. Pair
// computations are independent, so they fan out across workers; the
// caller's slice is the reduction barrier.
func (d *Detector) scorePairs(pairs []pairScore, snapshots map[string]CountrySnapshot) {
	workers := runtime.NumCPU()
	if workers > len(pairs) {
		workers = len(pairs)
	}
	if workers <= 1 {
		for i := range pairs {
			d.scorePair(&pairs[i], snapshots)
		}
		return
	}

	var wg sync.WaitGroup
	work := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				d.scorePair(&pairs[i], snapshots)
			}
		}()
	}
	for i := range pairs {
		work <- i
	}
	close(work)
	wg.Wait()
}

func (d *Detector) scorePair(p *pairScore, snapshots map[string]CountrySnapshot) {
	p.similarity = d.similarity(
		topicLabels(snapshots[p.a].Topics),
		topicLabels(snapshots[p.b].Topics),
	)
}

func (d *Detector) buildHotspots(
	countries []string,
	snapshots map[string]CountrySnapshot,
	signalsByCountry map[string][]signal.Signal,
) []Hotspot {
	hotspots := make([]Hotspot, 0, len(countries))
	for _, country := range countries {
		snap := snapshots[country]
		if len(snap.Topics) == 0 {
			continue
		}

		centroid, ok := signal.CountryCentroid(country)
		if !ok {
			if d.logger != nil {
				d.logger.Warn("missing centroid for hotspot, skipping", "country", country)
			}
			continue
		}

		hotspot := Hotspot{
			CountryCode:       country,
			CountryName:       centroid.Name,
			Latitude:          centroid.Latitude,
			Longitude:         centroid.Longitude,
			TopicCount:        len(snap.Topics),
			Confidence:        avgConfidence(snap.Topics),
			TopTopics:         topTopics(snap.Topics, topTopicLimit),
			DominantSentiment: "neutral",
			ThemeDistribution: map[string]int{},
		}

		if signals := signalsByCountry[country]; len(signals) > 0 {
			hotspot.Intensity = d.IntensityFromSignals(signals)
			hotspot.Signals = summarizeSignals(signals)
			hotspot.DominantSentiment = dominantSentiment(signals)
			hotspot.AvgSentimentScore = avgSentiment(signals)
			hotspot.ThemeDistribution = themeDistribution(signals)
			hotspot.SourceCount, hotspot.SourceDiversity = sourceDiversity(signals)
		} else {
			hotspot.Intensity = d.HotspotIntensity(snap.Topics)
		}

		hotspots = append(hotspots, hotspot)
	}

	sort.SliceStable(hotspots, func(i, j int) bool { return hotspots[i].Intensity > hotspots[j].Intensity })
	return hotspots
}

func topicLabels(topics []Topic) []string {
	labels := make([]string, len(topics))
	for i, t := range topics {
		labels[i] = t.Label
	}
	return labels
}

func avgConfidence(topics []Topic) float64 {
	if len(topics) == 0 {
		return 0
	}
	var sum float64
	for _, t := range topics {
		sum += t.Confidence
	}
	return sum / float64(len(topics))
}

func topTopics(topics []Topic, limit int) []TopicSummary {
	sorted := make([]Topic, len(topics))
	copy(sorted, topics)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Count > sorted[j].Count })
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	out := make([]TopicSummary, len(sorted))
	for i, t := range sorted {
		out[i] = TopicSummary{Label: t.Label, Count: t.Count, Confidence: t.Confidence}
	}
	return out
}

func summarizeSignals(signals []signal.Signal) []SignalSummary {
	out := make([]SignalSummary, len(signals))
	for i, s := range signals {
		out[i] = SignalSummary{
			SignalID:       s.SignalID,
			Timestamp:      s.Timestamp,
			Themes:         s.Themes,
			ThemeLabels:    s.ThemeLabels,
			PrimaryTheme:   s.PrimaryTheme,
			SentimentLabel: s.SentimentLabel,
			SentimentScore: s.Tone.Overall,
			CountryCode:    s.PrimaryLocation.CountryCode,
			LocationName:   s.PrimaryLocation.LocationName,
			Persons:        s.Persons,
			Organizations:  s.Organizations,
			SourceOutlet:   s.SourceOutlet,
		}
	}
	return out
}

func dominantSentiment(signals []signal.Signal) string {
	if len(signals) == 0 {
		return "neutral"
	}
	counts := make(map[string]int)
	for _, s := range signals {
		counts[s.SentimentLabel]++
	}
	best, bestCount := "neutral", 0
	for _, s := range signals {
		if n := counts[s.SentimentLabel]; n > bestCount {
			best, bestCount = s.SentimentLabel, n
		}
	}
	return best
}

func avgSentiment(signals []signal.Signal) float64 {
	if len(signals) == 0 {
		return 0
	}
	var sum float64
	for _, s := range signals {
		sum += s.Tone.Overall
	}
	return sum / float64(len(signals))
}

// themeDistribution aggregates per-theme mention counts across
// signals, keyed by display label.
func themeDistribution(signals []signal.Signal) map[string]int {
	dist := make(map[string]int)
	for _, s := range signals {
		for i, code := range s.Themes {
			if i >= len(s.ThemeLabels) {
				break
			}
			dist[s.ThemeLabels[i]] += s.ThemeCounts[code]
		}
	}
	return dist
}

// sourceDiversity reports unique outlet count and the ratio of unique
// outlets to signals: 0 means one outlet dominates, 1 means every
// signal came from a different outlet.
func sourceDiversity(signals []signal.Signal) (int, float64) {
	if len(signals) == 0 {
		return 0, 0
	}
	outlets := make(map[string]struct{})
	for _, s := range signals {
		if s.SourceOutlet != "" {
			outlets[s.SourceOutlet] = struct{}{}
		}
	}
	if len(outlets) == 0 {
		return 0, 0
	}
	return len(outlets), math.Min(float64(len(outlets))/float64(len(signals)), 1.0)
}

// sharedTopics lists up to limit topics present on both sides: exact
// case-insensitive matches first, then substring containment filling
// the remaining slots.
func sharedTopics(labelsA, labelsB []string, limit int) []string {
	shared := make([]string, 0, limit)
	seen := make(map[string]struct{})

	lowerB := make(map[string]struct{}, len(labelsB))
	for _, b := range labelsB {
		lowerB[strings.ToLower(b)] = struct{}{}
	}

	for _, a := range labelsA {
		if len(shared) >= limit {
			return shared
		}
		if _, ok := lowerB[strings.ToLower(a)]; ok {
			if _, dup := seen[a]; !dup {
				shared = append(shared, a)
				seen[a] = struct{}{}
			}
		}
	}

	for _, a := range labelsA {
		if len(shared) >= limit {
			break
		}
		if _, dup := seen[a]; dup {
			continue
		}
		la := strings.ToLower(a)
		for _, b := range labelsB {
			lb := strings.ToLower(b)
			if strings.Contains(la, lb) || strings.Contains(lb, la) {
				shared = append(shared, a)
				seen[a] = struct{}{}
				break
			}
		}
	}
	return shared
}

// ParseTimeWindow converts a window string like "24h" to hours. The
// trailing "h" is required and the value must be positive.
func ParseTimeWindow(windowStr string) (float64, error) {
	s := strings.ToLower(strings.TrimSpace(windowStr))
	if !strings.HasSuffix(s, "h") {
		return 0, errors.NewConfigurationError(
			fmt.Sprintf("time window must end with 'h': %q", windowStr), nil)
	}
	hours, err := strconv.ParseFloat(strings.TrimSuffix(s, "h"), 64)
	if err != nil {
		return 0, errors.NewConfigurationError(
			fmt.Sprintf("invalid time window %q", windowStr), err)
	}
	if hours <= 0 {
		return 0, errors.NewConfigurationError(
			fmt.Sprintf("time window must be positive: %q", windowStr), nil)
	}
	return hours, nil
}
