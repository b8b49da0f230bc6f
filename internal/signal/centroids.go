package signal

// Centroid is the representative point for a country, used when a
// record carries no parseable locations and for hotspot placement.
type Centroid struct {
	Latitude  float64
	Longitude float64
	Name      string
}

// countryCentroids covers the 50 countries with the heaviest news
// coverage. Codes are ISO 3166-1 alpha-2.
var countryCentroids = map[string]Centroid{
	"US": {37.0902, -95.7129, "United States"},
	"GB": {55.3781, -3.4360, "United Kingdom"},
	"CA": {56.1304, -106.3468, "Canada"},
	"AU": {-25.2744, 133.7751, "Australia"},
	"DE": {51.1657, 10.4515, "Germany"},
	"FR": {46.2276, 2.2137, "France"},
	"IT": {41.8719, 12.5674, "Italy"},
	"ES": {40.4637, -3.7492, "Spain"},
	"NL": {52.1326, 5.2913, "Netherlands"},
	"BE": {50.5039, 4.4699, "Belgium"},
	"CH": {46.8182, 8.2275, "Switzerland"},
	"AT": {47.5162, 14.5501, "Austria"},
	"SE": {60.1282, 18.6435, "Sweden"},
	"NO": {60.4720, 8.4689, "Norway"},
	"DK": {56.2639, 9.5018, "Denmark"},
	"FI": {61.9241, 25.7482, "Finland"},
	"PL": {51.9194, 19.1451, "Poland"},
	"CZ": {49.8175, 15.4730, "Czech Republic"},
	"RU": {61.5240, 105.3188, "Russia"},
	"UA": {48.3794, 31.1656, "Ukraine"},
	"TR": {38.9637, 35.2433, "Turkey"},
	"CN": {35.8617, 104.1954, "China"},
	"JP": {36.2048, 138.2529, "Japan"},
	"KR": {35.9078, 127.7669, "South Korea"},
	"IN": {20.5937, 78.9629, "India"},
	"PK": {30.3753, 69.3451, "Pakistan"},
	"BD": {23.6850, 90.3563, "Bangladesh"},
	"ID": {-0.7893, 113.9213, "Indonesia"},
	"TH": {15.8700, 100.9925, "Thailand"},
	"VN": {14.0583, 108.2772, "Vietnam"},
	"PH": {12.8797, 121.7740, "Philippines"},
	"MY": {4.2105, 101.9758, "Malaysia"},
	"SG": {1.3521, 103.8198, "Singapore"},
	"BR": {-14.2350, -51.9253, "Brazil"},
	"AR": {-38.4161, -63.6167, "Argentina"},
	"MX": {23.6345, -102.5528, "Mexico"},
	"CO": {4.5709, -74.2973, "Colombia"},
	"CL": {-35.6751, -71.5430, "Chile"},
	"PE": {-9.1900, -75.0152, "Peru"},
	"VE": {6.4238, -66.5897, "Venezuela"},
	"ZA": {-30.5595, 22.9375, "South Africa"},
	"EG": {26.8206, 30.8025, "Egypt"},
	"NG": {9.0820, 8.6753, "Nigeria"},
	"KE": {-0.0236, 37.9062, "Kenya"},
	"IL": {31.0461, 34.8516, "Israel"},
	"SA": {23.8859, 45.0792, "Saudi Arabia"},
	"AE": {23.4241, 53.8478, "United Arab Emirates"},
	"IR": {32.4279, 53.6880, "Iran"},
	"IQ": {33.2232, 43.6793, "Iraq"},
	"SY": {34.8021, 38.9968, "Syria"},
}

// DefaultCountries is the analysis set used when a caller does not
// name its own.
var DefaultCountries = []string{"US", "CO", "BR", "MX", "AR", "GB", "FR", "DE", "ES", "IT"}

// CountryCentroid looks up the representative point for an ISO code.
// The second return reports whether the country is known.
func CountryCentroid(countryCode string) (Centroid, bool) {
	c, ok := countryCentroids[countryCode]
	return c, ok
}

// CountryName returns the display name for an ISO code, or the code
// itself when unknown.
func CountryName(countryCode string) string {
	if c, ok := countryCentroids[countryCode]; ok {
		return c.Name
	}
	return countryCode
}
