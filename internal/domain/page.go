package domain

import "time"

// ParseStatus tracks the parse lifecycle of a fetched page.
type ParseStatus string

// Parse statuses.
const (
	ParsePending ParseStatus = "pending"
	ParseParsed  ParseStatus = "parsed"
	ParseFailed  ParseStatus = "failed"
)

// RawPage records one fetch attempt. Write-once per fetch; only the parse
// outcome fields are updated afterwards. Retained as an audit trail, not
// authoritative state.
type RawPage struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	SourceID  string    `bson:"source_id" json:"sourceId"`
	URL       string    `bson:"url" json:"url"`
	FetchedAt time.Time `bson:"fetched_at" json:"fetchedAt"`

	// HTTPStatus is the response status code; 0 encodes a network-level failure.
	HTTPStatus int    `bson:"http_status" json:"httpStatus"`
	Content    string `bson:"content,omitempty" json:"-"`
	// ContentHash is the SHA-256 of the body, kept for change detection.
	ContentHash string   `bson:"content_hash,omitempty" json:"contentHash,omitempty"`
	ImageURLs   []string `bson:"image_urls,omitempty" json:"imageURLs,omitempty"`

	ParseStatus  ParseStatus `bson:"parse_status" json:"parseStatus"`
	ParsedAt     *time.Time  `bson:"parsed_at,omitempty" json:"parsedAt,omitempty"`
	ErrorMessage string      `bson:"error_message,omitempty" json:"errorMessage,omitempty"`
}

// Fetched reports whether the fetch itself succeeded with a 200 response.
func (p *RawPage) Fetched() bool {
	return p.HTTPStatus == 200
}
