package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThemeLabelCurated(t *testing.T) {
	assert.Equal(t, "Terrorism", ThemeLabel("TAX_TERROR"))
	assert.Equal(t, "Armed Conflict", ThemeLabel("ARMEDCONFLICT"))
	assert.Equal(t, "Casualties", ThemeLabel("CRISISLEX_C03_DEAD_WOUNDED"))
}

func TestThemeLabelFallback(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"WB_632_WOMEN_IN_POLITICS_EXTRA", "Women In Politics Extra"},
		{"TAX_SOMETHING_NEW", "Something New"},
		{"UNSEEN_THEME_CODE", "Unseen Theme Code"},
		{"ECON_99_MARKETS", "Markets"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, ThemeLabel(tt.code))
		})
	}
}

func TestThemeCategory(t *testing.T) {
	assert.Equal(t, "security", ThemeCategory("KILL"))
	assert.Equal(t, "environment", ThemeCategory("ENV_CLIMATECHANGE"))
	assert.Equal(t, "other", ThemeCategory("UNSEEN_THEME_CODE"))
}

func TestNormalizeThemeLabelEdgeCases(t *testing.T) {
	// Only the first matching prefix is stripped.
	assert.Equal(t, "Tax Terror", NormalizeThemeLabel("WB_TAX_TERROR"))
	// Pure numeric code survives as-is rather than becoming empty.
	assert.Equal(t, "42", NormalizeThemeLabel("42"))
	assert.Equal(t, "", NormalizeThemeLabel(""))
}

func TestCountryCentroidLookup(t *testing.T) {
	c, ok := CountryCentroid("BR")
	assert.True(t, ok)
	assert.Equal(t, "Brazil", c.Name)
	assert.InDelta(t, -14.2350, c.Latitude, 1e-9)

	_, ok = CountryCentroid("ZZ")
	assert.False(t, ok)
	assert.Equal(t, "ZZ", CountryName("ZZ"))
}
