package gkg

import "time"

// Location is one geo-mention parsed from a record's locations column.
//
// Block format (secondary '#' delimiter, 7+ fields):
//
//	Type#FullName#CountryCode#ADM1Code#ADM2Code#Lat#Long#FeatureID#CharOffset
//
// Location types: 1=country, 2=US state, 3=US city, 4=world city,
// 5=world state/province.
type Location struct {
	Type        int
	FullName    string
	CountryCode string
	Adm1Code    string
	Adm2Code    string
	Latitude    float64
	Longitude   float64
	FeatureID   string
	CharOffset  int
}

// Tone holds the 7 comma-separated sentiment metrics of a record. A missing
// or malformed tone column yields the zero value, never an error.
type Tone struct {
	Overall         float64
	PositivePct     float64
	NegativePct     float64
	Polarity        float64
	ActivityDensity float64
	SelfReference   float64
	WordCount       int
}

// Count is one quantified event mention ("KILL 12", "ARREST 3", ...).
// Counts of the same type are kept separate at parse time; their embedded
// locations carry distinct context. Aggregation happens during signal
// conversion.
type Count struct {
	CountType  string
	Number     int
	ObjectType string
	Location   *Location
}

// Record is one successfully parsed line of a snapshot file.
type Record struct {
	RecordID           string
	Timestamp          time.Time
	SourceCollectionID int
	SourceName         string
	SourceURL          string
	Themes             []string
	Locations          []Location
	Persons            []string
	Organizations      []string
	Tone               Tone
	Counts             []Count
	LineNumber         int
}
