package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rentwatch/rentwatch/internal/domain"
)

// BatchAdapter integrates an external batch-scrape provider. The provider
// crawls on its own infrastructure and exposes run management plus a
// structured dataset, so Fetch and Parse are structured no-ops here; the real
// entry points are TriggerRun, PollRun, WaitForCompletion, and PullDataset.
type BatchAdapter struct {
	*baseAdapter
	pollInterval time.Duration
}

// BatchRunner is implemented by adapters whose sources are ingested through
// a provider-run batch rather than page-by-page crawling.
type BatchRunner interface {
	// Ingest triggers a run, waits for completion, and returns the
	// normalized dataset.
	Ingest(ctx context.Context, timeout time.Duration) ([]*domain.NormalizedListing, error)
}

// Run states reported by the provider.
const (
	BatchRunPending   = "pending"
	BatchRunRunning   = "running"
	BatchRunCompleted = "completed"
	BatchRunFailed    = "failed"
)

// Batch provider defaults.
const (
	defaultPollInterval = 15 * time.Second
	defaultBatchTimeout = 10 * time.Minute
)

// Batch provider errors.
var (
	// ErrBatchRunFailed is returned when the provider reports a failed run.
	ErrBatchRunFailed = errors.New("batch run failed")
	// ErrBatchTimeout is returned when a run does not complete in time.
	ErrBatchTimeout = errors.New("batch run timed out")
	// ErrNoAPIURL is returned when the source has no provider endpoint.
	ErrNoAPIURL = errors.New("source has no api_url configured")
)

// Ensure BatchAdapter implements both contracts
var (
	_ Adapter     = (*BatchAdapter)(nil)
	_ BatchRunner = (*BatchAdapter)(nil)
)

// NewBatchAdapter builds the external-provider adapter.
func NewBatchAdapter(source *domain.SourceConfig, opts Options) *BatchAdapter {
	return &BatchAdapter{
		baseAdapter:  newBaseAdapter(source, opts),
		pollInterval: defaultPollInterval,
	}
}

// ListListingURLs returns nothing: batch sources have no per-URL discovery.
func (a *BatchAdapter) ListListingURLs(context.Context, ListParams) ([]DiscoveredURL, error) {
	return nil, nil
}

// Parse is a structured no-op: provider datasets are already normalized.
func (a *BatchAdapter) Parse(context.Context, *domain.RawPage) ([]*domain.NormalizedListing, error) {
	return nil, nil
}

// batchRun is the provider's run-status record.
type batchRun struct {
	RunID  string `json:"runId"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// TriggerRun asks the provider to start a new scrape run.
func (a *BatchAdapter) TriggerRun(ctx context.Context) (string, error) {
	if a.source.APIURL == "" {
		return "", ErrNoAPIURL
	}
	var run batchRun
	if err := a.postJSON(ctx, a.source.APIURL+"/runs", &run); err != nil {
		return "", fmt.Errorf("failed to trigger run: %w", err)
	}
	if run.RunID == "" {
		return "", errors.New("provider returned no run id")
	}
	return run.RunID, nil
}

// PollRun fetches the current status of a run.
func (a *BatchAdapter) PollRun(ctx context.Context, runID string) (string, error) {
	var run batchRun
	if err := a.getJSON(ctx, a.source.APIURL+"/runs/"+runID, &run); err != nil {
		return "", fmt.Errorf("failed to poll run %s: %w", runID, err)
	}
	if run.Status == BatchRunFailed {
		return run.Status, fmt.Errorf("%w: %s", ErrBatchRunFailed, run.Error)
	}
	return run.Status, nil
}

// WaitForCompletion polls until the run completes or the timeout elapses.
func (a *BatchAdapter) WaitForCompletion(ctx context.Context, runID string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultBatchTimeout
	}
	deadline := time.Now().Add(timeout)
	for {
		status, err := a.PollRun(ctx, runID)
		if err != nil {
			return err
		}
		if status == BatchRunCompleted {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: run %s after %s", ErrBatchTimeout, runID, timeout)
		}
		select {
		case <-time.After(a.pollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// batchRecord is one dataset row from the provider.
type batchRecord struct {
	URL       string   `json:"url"`
	Title     string   `json:"title"`
	Price     float64  `json:"price"`
	Beds      *float64 `json:"beds"`
	Baths     *float64 `json:"baths"`
	Sqft      *int     `json:"sqft"`
	Address   string   `json:"address"`
	City      string   `json:"city"`
	State     string   `json:"state"`
	Zip       string   `json:"zip"`
	Images    []string `json:"images"`
	Amenities []string `json:"amenities"`
}

// PullDataset downloads and normalizes the run's dataset. Borough and
// neighborhood are inferred with the same gazetteer logic as every adapter.
func (a *BatchAdapter) PullDataset(ctx context.Context, runID string) ([]*domain.NormalizedListing, error) {
	var records []batchRecord
	if err := a.getJSON(ctx, a.source.APIURL+"/runs/"+runID+"/dataset", &records); err != nil {
		return nil, fmt.Errorf("failed to pull dataset for run %s: %w", runID, err)
	}

	listings := make([]*domain.NormalizedListing, 0, len(records))
	for _, rec := range records {
		if rec.URL == "" {
			continue
		}
		normalized, neighborhood, borough := LocateAddress(rec.Address)
		listings = append(listings, &domain.NormalizedListing{
			SourceID:  a.source.ID,
			SourceURL: rec.URL,
			Title:     rec.Title,
			Price:     rec.Price,
			Beds:      rec.Beds,
			Baths:     rec.Baths,
			Sqft:      rec.Sqft,
			Address: domain.Address{
				Raw:          rec.Address,
				Normalized:   normalized,
				Neighborhood: neighborhood,
				Borough:      borough,
				City:         rec.City,
				State:        rec.State,
				Zip:          rec.Zip,
			},
			ImageURLs: rec.Images,
			Amenities: rec.Amenities,
			Status:    domain.ListingActive,
		})
	}
	return listings, nil
}

// Ingest runs the full trigger-wait-pull sequence.
func (a *BatchAdapter) Ingest(ctx context.Context, timeout time.Duration) ([]*domain.NormalizedListing, error) {
	runID, err := a.TriggerRun(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.WaitForCompletion(ctx, runID, timeout); err != nil {
		return nil, err
	}
	return a.PullDataset(ctx, runID)
}

// getJSON issues a GET and decodes the JSON response body.
func (a *BatchAdapter) getJSON(ctx context.Context, url string, out any) error {
	return a.requestJSON(ctx, http.MethodGet, url, out)
}

// postJSON issues a POST with no body and decodes the JSON response body.
func (a *BatchAdapter) postJSON(ctx context.Context, url string, out any) error {
	return a.requestJSON(ctx, http.MethodPost, url, out)
}

func (a *BatchAdapter) requestJSON(ctx context.Context, method, url string, out any) error {
	reqCtx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, url, http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode provider response: %w", err)
	}
	return nil
}
