package scrape_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentwatch/rentwatch/internal/scrape"
)

const nextDataPage = `<html><head>
<script id="__NEXT_DATA__" type="application/json">
{
  "props": {
    "pageProps": {
      "listing": {
        "title": "No-Fee 1BR in Astoria",
        "price": 2650,
        "bedrooms": 1,
        "bathrooms": 1,
        "squareFeet": 700,
        "address": "30-10 38th St, Astoria",
        "neighborhood": "Astoria",
        "zipCode": "11103",
        "images": ["https://img.example.com/a.jpg"],
        "amenities": ["Dishwasher", "Laundry"],
        "noFee": true,
        "netEffectivePrice": 2540.5,
        "monthsFree": 0.5,
        "leaseTermMonths": 12,
        "brokerName": "Jane Agent"
      }
    }
  }
}
</script>
</head><body></body></html>`

func TestMarketplaceParse_NextData(t *testing.T) {
	t.Parallel()

	adapter := scrape.NewMarketplaceAdapter(testSource(), scrape.Options{})
	listings, err := adapter.Parse(context.Background(), fetchedPage(nextDataPage))
	require.NoError(t, err)
	require.Len(t, listings, 1)

	listing := listings[0]
	assert.Equal(t, "No-Fee 1BR in Astoria", listing.Title)
	assert.Equal(t, 2650.0, listing.Price)
	require.NotNil(t, listing.Beds)
	assert.Equal(t, 1.0, *listing.Beds)
	require.NotNil(t, listing.Sqft)
	assert.Equal(t, 700, *listing.Sqft)
	assert.Equal(t, "Astoria", listing.Address.Neighborhood)
	assert.Equal(t, "Queens", listing.Address.Borough, "borough inferred from the gazetteer")
	assert.Equal(t, []string{"https://img.example.com/a.jpg"}, listing.ImageURLs)

	require.NotNil(t, listing.Extension.NoFee)
	assert.True(t, *listing.Extension.NoFee)
	require.NotNil(t, listing.Extension.NetEffectivePrice)
	assert.Equal(t, 2540.5, *listing.Extension.NetEffectivePrice)
	require.NotNil(t, listing.Extension.LeaseTermMonths)
	assert.Equal(t, 12, *listing.Extension.LeaseTermMonths)
	assert.Equal(t, "Jane Agent", listing.BrokerName)
}

const initialStatePage = `<html><body>
<script>
window.__INITIAL_STATE__ = {"page":{"rental":{"price":"3,100","displayAddress":"200 E 82nd St","bedrooms":"2"}}};
</script>
</body></html>`

func TestMarketplaceParse_InitialState(t *testing.T) {
	t.Parallel()

	adapter := scrape.NewMarketplaceAdapter(testSource(), scrape.Options{})
	listings, err := adapter.Parse(context.Background(), fetchedPage(initialStatePage))
	require.NoError(t, err)
	require.Len(t, listings, 1)

	listing := listings[0]
	assert.Equal(t, 3100.0, listing.Price)
	assert.Equal(t, "200 E 82nd St", listing.Address.Raw)
	require.NotNil(t, listing.Beds)
	assert.Equal(t, 2.0, *listing.Beds)
}

func TestMarketplaceParse_FallsBackToCascade(t *testing.T) {
	t.Parallel()

	adapter := scrape.NewMarketplaceAdapter(testSource(), scrape.Options{})

	// No embedded state: the JSON-LD cascade still applies.
	listings, err := adapter.Parse(context.Background(), fetchedPage(jsonLDPage))
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, 3400.0, listings[0].Price)
}
