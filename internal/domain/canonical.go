package domain

import "time"

// CanonicalListing represents one physical unit seen across sources. It is the
// merge target referenced by NormalizedListing.Dedup.CanonicalListingID; this
// core only defines the shape, a separate resolver populates it.
type CanonicalListing struct {
	ID string `bson:"_id" json:"id"`

	Price float64  `bson:"price" json:"price"`
	Beds  *float64 `bson:"beds,omitempty" json:"beds,omitempty"`
	Baths *float64 `bson:"baths,omitempty" json:"baths,omitempty"`

	Address Address `bson:"address" json:"address"`

	SourceIDs  []string `bson:"source_ids" json:"sourceIds"`
	SourceURLs []string `bson:"source_urls" json:"sourceUrls"`
	ImageURLs  []string `bson:"image_urls,omitempty" json:"imageURLs,omitempty"`

	DataQualityScore float64   `bson:"data_quality_score" json:"dataQualityScore"`
	UpdatedAt        time.Time `bson:"updated_at" json:"updatedAt"`
}
