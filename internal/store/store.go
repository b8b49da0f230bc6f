package store

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	apperrors "github.com/observatory-global/narrative-flow/internal/errors"
	"github.com/observatory-global/narrative-flow/internal/signal"
)

// Store wraps the archive database. All methods are safe for
// concurrent use; SQLite serializes writes internally.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the SQLite database at path and migrates
// the schema. ":memory:" works for tests.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, apperrors.NewConfigurationError("opening archive database", err)
	}
	if err := db.AutoMigrate(&SignalRow{}, &ThemeAggregation1h{}); err != nil {
		return nil, apperrors.NewInternalError("migrating archive schema", err)
	}
	return &Store{db: db}, nil
}

// ArchiveSignals persists signals, skipping any whose signal_id is
// already archived.
func (s *Store) ArchiveSignals(signals []signal.Signal) (int, error) {
	archived := 0
	for _, sig := range signals {
		row, err := toRow(sig)
		if err != nil {
			continue
		}
		result := s.db.Where("signal_id = ?", row.SignalID).
			FirstOrCreate(&row)
		if result.Error != nil {
			return archived, apperrors.NewInternalError("archiving signal", result.Error)
		}
		if result.RowsAffected > 0 {
			archived++
		}
	}
	return archived, nil
}

// SignalsSince returns archived rows with timestamps at or after the
// cutoff, newest first.
func (s *Store) SignalsSince(cutoff time.Time) ([]SignalRow, error) {
	var rows []SignalRow
	err := s.db.Where("timestamp >= ?", cutoff).
		Order("timestamp DESC").
		Find(&rows).Error
	if err != nil {
		return nil, apperrors.NewInternalError("querying archived signals", err)
	}
	return rows, nil
}

// AggregateHourly rebuilds the hour × country × theme rollups for the
// given window ending now. Existing rollups inside the window are
// replaced.
func (s *Store) AggregateHourly(window time.Duration) (int, error) {
	windowStart := time.Now().UTC().Add(-window).Truncate(time.Hour)

	var rows []SignalRow
	if err := s.db.Where("timestamp >= ?", windowStart).Find(&rows).Error; err != nil {
		return 0, apperrors.NewInternalError("loading signals for aggregation", err)
	}

	type aggKey struct {
		bucket  time.Time
		country string
		theme   string
	}
	type aggVal struct {
		count    int
		toneSum  float64
		mentions int
	}

	aggs := make(map[aggKey]*aggVal)
	for _, row := range rows {
		counts := map[string]int{}
		if row.ThemeCounts != "" {
			if err := json.Unmarshal([]byte(row.ThemeCounts), &counts); err != nil {
				slog.Warn("corrupt theme_counts blob, counting zero mentions",
					"signal_id", row.SignalID, "error", err.Error())
			}
		}
		theme := row.PrimaryTheme
		if theme == "" {
			theme = "GENERAL"
		}
		key := aggKey{
			bucket:  row.Timestamp.UTC().Truncate(time.Hour),
			country: row.CountryCode,
			theme:   theme,
		}
		val := aggs[key]
		if val == nil {
			val = &aggVal{}
			aggs[key] = val
		}
		val.count++
		val.toneSum += row.ToneOverall
		val.mentions += counts[theme]
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("hour_bucket >= ?", windowStart).
			Delete(&ThemeAggregation1h{}).Error; err != nil {
			return err
		}
		for key, val := range aggs {
			agg := ThemeAggregation1h{
				HourBucket:         key.bucket,
				CountryCode:        key.country,
				ThemeCode:          key.theme,
				SignalCount:        val.count,
				AvgTone:            val.toneSum / float64(val.count),
				TotalThemeMentions: val.mentions,
			}
			if err := tx.Create(&agg).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, apperrors.NewInternalError("writing hourly rollups", err)
	}
	return len(aggs), nil
}

// AggregationsSince returns rollups with buckets at or after the
// cutoff, ordered by bucket.
func (s *Store) AggregationsSince(cutoff time.Time) ([]ThemeAggregation1h, error) {
	var rows []ThemeAggregation1h
	err := s.db.Where("hour_bucket >= ?", cutoff).
		Order("hour_bucket ASC").
		Find(&rows).Error
	if err != nil {
		return nil, apperrors.NewInternalError("querying rollups", err)
	}
	return rows, nil
}

// PruneSignals deletes archived signals older than the retention
// period, returning how many were removed. Rollups are kept.
func (s *Store) PruneSignals(retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	result := s.db.Where("timestamp < ?", cutoff).Delete(&SignalRow{})
	if result.Error != nil {
		return 0, apperrors.NewInternalError("pruning archived signals", result.Error)
	}
	return result.RowsAffected, nil
}

func toRow(sig signal.Signal) (SignalRow, error) {
	counts, err := json.Marshal(sig.ThemeCounts)
	if err != nil {
		return SignalRow{}, err
	}
	return SignalRow{
		SignalID:     sig.SignalID,
		Timestamp:    sig.Timestamp,
		Bucket15Min:  sig.Bucket15Min,
		CountryCode:  sig.PrimaryLocation.CountryCode,
		PrimaryTheme: sig.PrimaryTheme,
		ThemeCounts:  string(counts),
		ToneOverall:  sig.Tone.Overall,
		Intensity:    sig.Intensity,
		Sentiment:    sig.SentimentLabel,
		Confidence:   sig.Confidence,
		SourceOutlet: sig.SourceOutlet,
		URLHash:      sig.URLHash,
	}, nil
}
