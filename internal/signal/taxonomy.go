package signal

import (
	"strings"
	"unicode"
)

// ThemeInfo is a curated entry for a well-known theme code.
type ThemeInfo struct {
	Label    string
	Category string
}

// themeTaxonomy maps the most common raw theme codes to display labels
// and coarse categories. Codes not listed here fall through to
// NormalizeThemeLabel.
var themeTaxonomy = map[string]ThemeInfo{
	"TAX_TERROR":                 {"Terrorism", "security"},
	"ARMEDCONFLICT":              {"Armed Conflict", "security"},
	"CRISISLEX_C03_DEAD_WOUNDED": {"Casualties", "security"},
	"CRISISLEX_C06_VIOLENCE":     {"Violence", "security"},
	"CRIME":                      {"Crime & Law Enforcement", "security"},
	"ARREST":                     {"Arrests", "security"},
	"KILL":                       {"Killings", "security"},
	"MILITARY":                   {"Military Affairs", "security"},
	"SEIZE":                      {"Seizures & Confiscations", "security"},
	"CYBERATTACK":                {"Cyber Attacks", "security"},

	"TAX_FNCACT":                {"Financial Activity", "economy"},
	"ECON_INFLATION":            {"Inflation", "economy"},
	"ECON_TRADE":                {"International Trade", "economy"},
	"ECON_BANKRUPTCY":           {"Bankruptcy", "economy"},
	"WB_633_ECONOMIC_STABILITY": {"Economic Stability", "economy"},
	"AGRICULTURE":               {"Agriculture", "economy"},
	"ENERGY":                    {"Energy", "economy"},
	"LABOR":                     {"Labor & Employment", "economy"},
	"STRIKE":                    {"Strikes", "economy"},

	"LEADER":                   {"Political Leadership", "politics"},
	"ELECTION":                 {"Elections", "politics"},
	"GOVERNMENT":               {"Government Actions", "politics"},
	"PROTEST":                  {"Protests & Demonstrations", "politics"},
	"CORRUPTION":               {"Corruption", "politics"},
	"TAX_DIPLOMACY":            {"Diplomacy", "politics"},
	"WB_632_WOMEN_IN_POLITICS": {"Women in Politics", "politics"},
	"SANCTION":                 {"Sanctions", "politics"},
	"TREATY":                   {"Treaties & Agreements", "politics"},
	"COURT":                    {"Legal Proceedings", "politics"},
	"INVESTIGATION":            {"Investigations", "politics"},

	"ENV_CLIMATECHANGE": {"Climate Change", "environment"},
	"ENV_FORESTS":       {"Deforestation & Forests", "environment"},
	"ENV_POLLUTION":     {"Pollution", "environment"},
	"UNGP_DISASTER":     {"Natural Disasters", "environment"},
	"DISASTER_RESPONSE": {"Disaster Response", "environment"},

	"HEALTH": {"Public Health", "health"},

	"EDUCATION":        {"Education", "social"},
	"HUMAN_RIGHTS":     {"Human Rights", "social"},
	"MIGRATION":        {"Migration & Refugees", "social"},
	"RELIGION":         {"Religion", "social"},
	"SOC_POINTSOFVIEW": {"Social Perspectives", "social"},

	"MEDIA_MSM":     {"Mainstream Media", "media"},
	"TECHNOLOGY":    {"Technology", "technology"},
	"SPACE":         {"Space Exploration", "technology"},
	"TRANSPORT":     {"Transportation", "infrastructure"},
	"SPORTS":        {"Sports", "culture"},
	"ENTERTAINMENT": {"Entertainment", "culture"},
}

// themePrefixes are namespace markers stripped before formatting an
// unknown code.
var themePrefixes = []string{"WB_", "TAX_", "ECON_", "ENV_", "UNGP_", "CRISISLEX_"}

// ThemeLabel returns the human-readable label for a theme code. Known
// codes use the curated taxonomy; everything else is normalized from
// the raw code.
func ThemeLabel(code string) string {
	if info, ok := themeTaxonomy[code]; ok {
		return info.Label
	}
	return NormalizeThemeLabel(code)
}

// ThemeCategory returns the coarse category for a theme code, or
// "other" when the code is not curated.
func ThemeCategory(code string) string {
	if info, ok := themeTaxonomy[code]; ok {
		return info.Category
	}
	return "other"
}

// NormalizeThemeLabel formats a raw theme code for display: strip the
// first matching namespace prefix, replace underscores with spaces,
// title-case, and drop a leading numeric token
// ("WB_632_WOMEN_IN_POLITICS" becomes "Women In Politics").
func NormalizeThemeLabel(code string) string {
	for _, prefix := range themePrefixes {
		if strings.HasPrefix(code, prefix) {
			code = code[len(prefix):]
			break
		}
	}

	words := strings.Split(strings.ReplaceAll(code, "_", " "), " ")
	out := words[:0]
	for _, w := range words {
		if w == "" {
			continue
		}
		out = append(out, titleWord(w))
	}
	if len(out) > 1 && isDigits(out[0]) {
		out = out[1:]
	}
	return strings.Join(out, " ")
}

func titleWord(w string) string {
	r := []rune(strings.ToLower(w))
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
