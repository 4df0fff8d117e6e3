package scrape_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rentwatch/rentwatch/internal/scrape"
)

func TestNormalizeAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw      string
		expected string
	}{
		{"  123  Main   St.  ", "123 Main St"},
		{"45 E 9th St,", "45 E 9th St"},
		{"\n78 Bedford Ave\t Brooklyn ", "78 Bedford Ave Brooklyn"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, scrape.NormalizeAddress(tt.raw), "%q", tt.raw)
	}
}

func TestInferNeighborhood(t *testing.T) {
	t.Parallel()

	tests := []struct {
		address      string
		neighborhood string
		borough      string
	}{
		{"200 E 82nd St, Upper East Side", "Upper East Side", "Manhattan"},
		{"78 Bedford Ave, Williamsburg, Brooklyn", "Williamsburg", "Brooklyn"},
		{"30-10 38th St, Astoria", "Astoria", "Queens"},
		// "east village" must beat accidental substring matches.
		{"100 Ave A, East Village", "East Village", "Manhattan"},
		{"400 Main St, Springfield", "", ""},
	}
	for _, tt := range tests {
		neighborhood, borough := scrape.InferNeighborhood(tt.address)
		assert.Equal(t, tt.neighborhood, neighborhood, "%q", tt.address)
		assert.Equal(t, tt.borough, borough, "%q", tt.address)
	}
}

func TestLocateAddress(t *testing.T) {
	t.Parallel()

	normalized, neighborhood, borough := scrape.LocateAddress("  78 Bedford Ave,  Williamsburg. ")
	assert.Equal(t, "78 Bedford Ave, Williamsburg", normalized)
	assert.Equal(t, "Williamsburg", neighborhood)
	assert.Equal(t, "Brooklyn", borough)

	// Borough keyword fallback when no gazetteer entry matches.
	_, neighborhood, borough = scrape.LocateAddress("999 Somewhere Rd, Queens NY")
	assert.Empty(t, neighborhood)
	assert.Equal(t, "Queens", borough)
}
