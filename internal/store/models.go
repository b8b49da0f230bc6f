// Package store persists signal archives and hourly theme rollups in
// an embedded SQLite database.
package store

import "time"

// SignalRow is the archived form of one emitted signal, flattened for
// querying. ThemeCounts and list fields serialize as JSON strings.
type SignalRow struct {
	ID           uint      `gorm:"primaryKey"`
	SignalID     string    `gorm:"uniqueIndex;size:128"`
	Timestamp    time.Time `gorm:"index"`
	Bucket15Min  time.Time `gorm:"index"`
	CountryCode  string    `gorm:"index;size:2"`
	PrimaryTheme string    `gorm:"size:64"`
	ThemeCounts  string
	ToneOverall  float64
	Intensity    float64
	Sentiment    string `gorm:"size:16"`
	Confidence   float64
	SourceOutlet string `gorm:"size:256"`
	URLHash      string `gorm:"index;size:32"`
	CreatedAt    time.Time
}

func (SignalRow) TableName() string { return "signals" }

// ThemeAggregation1h is one hour × country × theme rollup row.
type ThemeAggregation1h struct {
	ID                 uint      `gorm:"primaryKey"`
	HourBucket         time.Time `gorm:"index:idx_agg_bucket"`
	CountryCode        string    `gorm:"index:idx_agg_bucket;size:2"`
	ThemeCode          string    `gorm:"index:idx_agg_bucket;size:64"`
	SignalCount        int
	AvgTone            float64
	TotalThemeMentions int
	CreatedAt          time.Time
}

func (ThemeAggregation1h) TableName() string { return "theme_aggregations_1h" }
