package domain

import (
	"time"

	"github.com/google/uuid"
)

// ListingStatus is the lifecycle state of a normalized listing.
type ListingStatus string

// Listing statuses.
const (
	ListingActive   ListingStatus = "active"
	ListingDelisted ListingStatus = "delisted"
	ListingExpired  ListingStatus = "expired"
	ListingUnknown  ListingStatus = "unknown"
)

// Address holds raw and normalized location fields for a listing.
type Address struct {
	Raw          string   `bson:"raw,omitempty" json:"raw,omitempty"`
	Normalized   string   `bson:"normalized,omitempty" json:"normalized,omitempty"`
	Neighborhood string   `bson:"neighborhood,omitempty" json:"neighborhood,omitempty"`
	Borough      string   `bson:"borough,omitempty" json:"borough,omitempty"`
	City         string   `bson:"city,omitempty" json:"city,omitempty"`
	State        string   `bson:"state,omitempty" json:"state,omitempty"`
	Zip          string   `bson:"zip,omitempty" json:"zip,omitempty"`
	Latitude     *float64 `bson:"latitude,omitempty" json:"latitude,omitempty"`
	Longitude    *float64 `bson:"longitude,omitempty" json:"longitude,omitempty"`
}

// PriceChange is one historical price point, appended whenever the scraped
// price differs from the stored one.
type PriceChange struct {
	Price float64   `bson:"price" json:"price"`
	Date  time.Time `bson:"date" json:"date"`
}

// Extension carries source-specific fields that do not generalize across sources.
type Extension struct {
	NetEffectivePrice *float64          `bson:"net_effective_price,omitempty" json:"netEffectivePrice,omitempty"`
	MonthsFree        *float64          `bson:"months_free,omitempty" json:"monthsFree,omitempty"`
	LeaseTermMonths   *int              `bson:"lease_term_months,omitempty" json:"leaseTermMonths,omitempty"`
	NoFee             *bool             `bson:"no_fee,omitempty" json:"noFee,omitempty"`
	Extra             map[string]string `bson:"extra,omitempty" json:"extra,omitempty"`
}

// Dedup holds duplicate-candidate bookkeeping. Resolution into a canonical
// listing is performed by a separate consumer.
type Dedup struct {
	IsDuplicate        bool    `bson:"is_duplicate" json:"isDuplicate"`
	DuplicateOf        string  `bson:"duplicate_of,omitempty" json:"duplicateOf,omitempty"`
	CanonicalListingID string  `bson:"canonical_listing_id,omitempty" json:"canonicalListingId,omitempty"`
	Confidence         float64 `bson:"confidence,omitempty" json:"confidence,omitempty"`
}

// NormalizedListing is the canonical per-source-per-URL record.
// (SourceID, SourceURL) is the natural key and identifies at most one listing;
// ListingID is generated once and preserved across re-fetches of the same key.
type NormalizedListing struct {
	ListingID string `bson:"_id" json:"listingId"`
	SourceID  string `bson:"source_id" json:"sourceId"`
	SourceURL string `bson:"source_url" json:"sourceUrl"`

	Title string   `bson:"title,omitempty" json:"title,omitempty"`
	Price float64  `bson:"price" json:"price"`
	Beds  *float64 `bson:"beds,omitempty" json:"beds,omitempty"`
	Baths *float64 `bson:"baths,omitempty" json:"baths,omitempty"`
	Sqft  *int     `bson:"sqft,omitempty" json:"sqft,omitempty"`

	Address   Address  `bson:"address" json:"address"`
	ImageURLs []string `bson:"image_urls,omitempty" json:"imageURLs,omitempty"`
	Amenities []string `bson:"amenities,omitempty" json:"amenities,omitempty"`

	BrokerName  string `bson:"broker_name,omitempty" json:"brokerName,omitempty"`
	BrokerPhone string `bson:"broker_phone,omitempty" json:"brokerPhone,omitempty"`
	BrokerEmail string `bson:"broker_email,omitempty" json:"brokerEmail,omitempty"`

	Extension Extension `bson:"extension,omitempty" json:"extension,omitempty"`

	Status        ListingStatus `bson:"status" json:"status"`
	FirstSeenAt   time.Time     `bson:"first_seen_at" json:"firstSeenAt"`
	LastSeenAt    time.Time     `bson:"last_seen_at" json:"lastSeenAt"`
	LastUpdatedAt time.Time     `bson:"last_updated_at" json:"lastUpdatedAt"`
	DelistedAt    *time.Time    `bson:"delisted_at,omitempty" json:"delistedAt,omitempty"`
	// RelistDetected is set when a delisted listing reappears in a crawl.
	RelistDetected bool `bson:"relist_detected,omitempty" json:"relistDetected,omitempty"`

	PriceHistory []PriceChange `bson:"price_history" json:"priceHistory"`
	Dedup        Dedup         `bson:"dedup" json:"dedup"`

	// StoredImageAnalysis is an opaque sub-document written by the external
	// image-analysis consumer; this core only filters on its presence.
	StoredImageAnalysis map[string]any `bson:"stored_image_analysis,omitempty" json:"storedImageAnalysis,omitempty"`
}

// NewListingID generates a stable internal listing identifier.
func NewListingID() string {
	return uuid.New().String()
}

// ApplyScrape folds a freshly scraped listing into an existing stored record,
// returning the merged record. Identity fields (ListingID, FirstSeenAt) and the
// natural key come from the existing record; every other field is overwritten
// by the scrape. A price change appends the old price to the history.
func ApplyScrape(existing, scraped *NormalizedListing, now time.Time) *NormalizedListing {
	merged := *scraped
	merged.ListingID = existing.ListingID
	merged.SourceID = existing.SourceID
	merged.SourceURL = existing.SourceURL
	merged.FirstSeenAt = existing.FirstSeenAt
	merged.LastSeenAt = now
	merged.LastUpdatedAt = now
	merged.Dedup = existing.Dedup
	merged.StoredImageAnalysis = existing.StoredImageAnalysis

	merged.PriceHistory = existing.PriceHistory
	if existing.Price != scraped.Price {
		merged.PriceHistory = append(merged.PriceHistory, PriceChange{
			Price: existing.Price,
			Date:  existing.LastSeenAt,
		})
	}

	if merged.Status == "" {
		merged.Status = ListingActive
	}
	if existing.Status == ListingDelisted && merged.Status == ListingActive {
		merged.RelistDetected = true
		merged.DelistedAt = nil
	}

	return &merged
}

// NewFromScrape initializes a stored record from a first-time scrape.
func NewFromScrape(scraped *NormalizedListing, now time.Time) *NormalizedListing {
	fresh := *scraped
	if fresh.ListingID == "" {
		fresh.ListingID = NewListingID()
	}
	if fresh.Status == "" {
		fresh.Status = ListingActive
	}
	fresh.FirstSeenAt = now
	fresh.LastSeenAt = now
	fresh.LastUpdatedAt = now
	fresh.PriceHistory = []PriceChange{}
	fresh.Dedup = Dedup{IsDuplicate: false}
	return &fresh
}
