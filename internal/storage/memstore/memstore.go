// Package memstore provides in-memory implementations of the storage
// contracts. They share the same merge and backoff semantics as the MongoDB
// repositories and back the unit tests, which must run without a cluster.
package memstore

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rentwatch/rentwatch/internal/domain"
	"github.com/rentwatch/rentwatch/internal/storage"
)

// Listings is an in-memory ListingStore keyed by the natural key.
type Listings struct {
	mu   sync.Mutex
	byID map[string]*domain.NormalizedListing
	// keys maps "sourceID|sourceURL" to listing id.
	keys map[string]string
}

// Ensure Listings implements ListingStore
var _ storage.ListingStore = (*Listings)(nil)

// NewListings creates an empty in-memory listing store.
func NewListings() *Listings {
	return &Listings{
		byID: make(map[string]*domain.NormalizedListing),
		keys: make(map[string]string),
	}
}

func naturalKey(sourceID, sourceURL string) string {
	return sourceID + "|" + sourceURL
}

// Upsert mirrors the MongoDB repository: merge through domain.ApplyScrape on
// update, domain.NewFromScrape on insert.
func (s *Listings) Upsert(_ context.Context, scraped *domain.NormalizedListing) (*storage.UpsertOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	key := naturalKey(scraped.SourceID, scraped.SourceURL)
	if id, ok := s.keys[key]; ok {
		existing := s.byID[id]
		merged := domain.ApplyScrape(existing, scraped, now)
		s.byID[id] = merged
		return &storage.UpsertOutcome{
			Created:        false,
			PriceChanged:   len(merged.PriceHistory) > len(existing.PriceHistory),
			RelistDetected: merged.RelistDetected && !existing.RelistDetected,
			Listing:        merged,
		}, nil
	}

	fresh := domain.NewFromScrape(scraped, now)
	s.byID[fresh.ListingID] = fresh
	s.keys[key] = fresh.ListingID
	return &storage.UpsertOutcome{Created: true, Listing: fresh}, nil
}

// MarkListingsDelisted flips active listings absent from activeURLs.
func (s *Listings) MarkListingsDelisted(_ context.Context, sourceID string, activeURLs []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := make(map[string]bool, len(activeURLs))
	for _, u := range activeURLs {
		active[u] = true
	}

	now := time.Now().UTC()
	var flipped int64
	for _, listing := range s.byID {
		if listing.SourceID != sourceID || listing.Status != domain.ListingActive {
			continue
		}
		if active[listing.SourceURL] {
			continue
		}
		listing.Status = domain.ListingDelisted
		delistedAt := now
		listing.DelistedAt = &delistedAt
		listing.LastUpdatedAt = now
		flipped++
	}
	return flipped, nil
}

// FindPotentialDuplicates applies the candidate filter over the in-memory set.
func (s *Listings) FindPotentialDuplicates(_ context.Context, listing *domain.NormalizedListing, opts storage.DuplicateFilterOptions) ([]*domain.NormalizedListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tolerance := opts.PriceTolerance
	if tolerance <= 0 {
		tolerance = storage.DefaultPriceTolerance
	}
	low := listing.Price * (1 - tolerance)
	high := listing.Price * (1 + tolerance)

	var out []*domain.NormalizedListing
	for _, other := range s.byID {
		if other.ListingID == listing.ListingID || other.Dedup.IsDuplicate {
			continue
		}
		if other.Price < low || other.Price > high {
			continue
		}
		if !floatPtrEqual(other.Beds, listing.Beds) || !floatPtrEqual(other.Baths, listing.Baths) {
			continue
		}
		if other.Address.Borough != listing.Address.Borough {
			continue
		}
		out = append(out, other)
	}
	return out, nil
}

// Find returns listings matching the filter, newest first.
func (s *Listings) Find(_ context.Context, filter storage.ListingFilter) ([]*domain.NormalizedListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.NormalizedListing
	for _, l := range s.byID {
		if filter.SourceID != "" && l.SourceID != filter.SourceID {
			continue
		}
		if filter.Borough != "" && l.Address.Borough != filter.Borough {
			continue
		}
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		if filter.MinPrice > 0 && l.Price < filter.MinPrice {
			continue
		}
		if filter.MaxPrice > 0 && l.Price > filter.MaxPrice {
			continue
		}
		if filter.Beds != nil && !floatPtrEqual(l.Beds, filter.Beds) {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastSeenAt.After(out[j].LastSeenAt)
	})
	if filter.Limit > 0 && int64(len(out)) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// CountByStatus returns listing counts grouped by status.
func (s *Listings) CountByStatus(context.Context) (map[domain.ListingStatus]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[domain.ListingStatus]int64)
	for _, l := range s.byID {
		out[l.Status]++
	}
	return out, nil
}

// CountBySource returns listing counts grouped by source.
func (s *Listings) CountBySource(context.Context) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int64)
	for _, l := range s.byID {
		out[l.SourceID]++
	}
	return out, nil
}

// CountDuplicates returns how many listings are flagged duplicate.
func (s *Listings) CountDuplicates(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, l := range s.byID {
		if l.Dedup.IsDuplicate {
			n++
		}
	}
	return n, nil
}

// FindUnanalyzed returns listings without a stored image analysis.
func (s *Listings) FindUnanalyzed(_ context.Context, sourceID string, limit int64) ([]*domain.NormalizedListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.NormalizedListing
	for _, l := range s.byID {
		if l.Status == domain.ListingDelisted || l.StoredImageAnalysis != nil || len(l.ImageURLs) == 0 {
			continue
		}
		if sourceID != "" && l.SourceID != sourceID {
			continue
		}
		out = append(out, l)
	}
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Get returns a stored listing by natural key, for test assertions.
func (s *Listings) Get(sourceID, sourceURL string) *domain.NormalizedListing {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.keys[naturalKey(sourceID, sourceURL)]
	if !ok {
		return nil
	}
	return s.byID[id]
}

// Len returns the number of stored listings.
func (s *Listings) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Pages is an in-memory PageStore.
type Pages struct {
	mu    sync.Mutex
	pages map[string]*domain.RawPage
	seq   int
}

// Ensure Pages implements PageStore
var _ storage.PageStore = (*Pages)(nil)

// NewPages creates an empty in-memory page store.
func NewPages() *Pages {
	return &Pages{pages: make(map[string]*domain.RawPage)}
}

// Insert records one fetch attempt.
func (s *Pages) Insert(_ context.Context, page *domain.RawPage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if page.ID == "" {
		s.seq++
		page.ID = "page-" + strconv.Itoa(s.seq)
	}
	copied := *page
	s.pages[page.ID] = &copied
	return nil
}

// SetParseStatus updates the parse outcome of a stored page.
func (s *Pages) SetParseStatus(_ context.Context, pageID string, status domain.ParseStatus, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	page, ok := s.pages[pageID]
	if !ok {
		return storage.ErrNotFound
	}
	now := time.Now().UTC()
	page.ParseStatus = status
	page.ParsedAt = &now
	if errorMessage != "" {
		page.ErrorMessage = errorMessage
	}
	return nil
}

// Get returns a stored page by id, for test assertions.
func (s *Pages) Get(pageID string) *domain.RawPage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pages[pageID]
}

// All returns every stored page, for test assertions.
func (s *Pages) All() []*domain.RawPage {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.RawPage, 0, len(s.pages))
	for _, page := range s.pages {
		copied := *page
		out = append(out, &copied)
	}
	return out
}
