package scrape_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentwatch/rentwatch/internal/scrape"
)

func TestParseBeds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text     string
		expected *float64
	}{
		{"Spacious 2BR with views", f(2)},
		{"3 bedroom apartment", f(3)},
		{"1.5 beds in prime location", f(1.5)},
		{"Charming studio in the Village", f(0)},
		{"Studio apartment", f(0)},
		{"Commercial space for lease", nil},
	}
	for _, tt := range tests {
		got := scrape.ParseBeds(tt.text)
		if tt.expected == nil {
			assert.Nil(t, got, "%q", tt.text)
		} else {
			require.NotNil(t, got, "%q", tt.text)
			assert.Equal(t, *tt.expected, *got, "%q", tt.text)
		}
	}
}

func TestParseBaths(t *testing.T) {
	t.Parallel()

	got := scrape.ParseBaths("2BR / 1.5BA")
	require.NotNil(t, got)
	assert.Equal(t, 1.5, *got)

	// No bath signal defaults to 1.
	got = scrape.ParseBaths("Spacious 2BR with views")
	require.NotNil(t, got)
	assert.Equal(t, 1.0, *got)
}

func TestParseSqft(t *testing.T) {
	t.Parallel()

	got := scrape.ParseSqft("850 sqft of living space")
	require.NotNil(t, got)
	assert.Equal(t, 850, *got)

	got = scrape.ParseSqft("1,200 sq. ft")
	require.NotNil(t, got)
	assert.Equal(t, 1200, *got)

	assert.Nil(t, scrape.ParseSqft("no size given"))
}

func TestParsePrice(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 2500.0, scrape.ParsePrice("Rent: $2,500/month"))
	assert.Equal(t, 3200.50, scrape.ParsePrice("$3,200.50"))
	assert.Equal(t, 0.0, scrape.ParsePrice("price on request"))
}

func f(v float64) *float64 { return &v }
