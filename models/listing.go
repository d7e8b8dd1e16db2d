package models

import "time"

// PreviewRecord is one entry of marketplace_listings.json. Optional fields are
// nil when the scraper left them out or wrote a placeholder.
type PreviewRecord struct {
	Link     string
	Title    *string
	Price    *string
	Location *string
	ImageURL *string
}

// PreviewFallback is the original_preview_data block embedded in a detail record.
type PreviewFallback struct {
	Title    *string
	Price    *string
	Location *string
}

// DetailRecord is one entry of detailed_listings.json.
type DetailRecord struct {
	UUID        string
	URL         string
	Title       *string
	Price       *string
	Location    *string
	Description *string
	Condition   *string
	ImageURLs   []string
	ScrapedAt   *time.Time
	Preview     *PreviewFallback
}

// EstimateRecord is the value side of a price_estimates file, keyed by listing id.
type EstimateRecord struct {
	EstimatedPrice *string `json:"estimated_price"`
	AIResponse     *string `json:"ai_response"`
}

// ListingPreview is a lightweight sighting of a listing, keyed by Link.
type ListingPreview struct {
	ID               string
	Link             string
	Title            string
	Price            string
	Location         *string
	ImageURL         *string
	FirstSeenAt      time.Time
	LastSeenAt       time.Time
	DetailsScrapedAt *time.Time
}

// Listing is a fully scraped listing, keyed by SourceURL.
type Listing struct {
	ID          string
	SourceURL   string
	Title       string
	Price       string
	Description *string
	Condition   *string
	Location    *string
	ImageURLs   []string
	ScrapedAt   time.Time
}

// PriceEstimate is attached one-to-one to a Listing.
type PriceEstimate struct {
	ListingID      string
	EstimatedPrice *string
	AIResponse     *string
}

// CatalogEntry is a listing joined with its estimate, used for export.
type CatalogEntry struct {
	Listing  Listing
	Estimate *PriceEstimate
}

// UpsertOutcome reports whether an upsert created or updated a row.
type UpsertOutcome int

const (
	Inserted UpsertOutcome = iota + 1
	Updated
)

func (o UpsertOutcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	default:
		return "unknown"
	}
}

// ImportStats holds the per-stage counts of one reconciliation run.
// PriceEstimates is set by detail imports only, including when it is zero.
type ImportStats struct {
	Total          int  `json:"total"`
	Created        int  `json:"created"`
	Updated        int  `json:"updated"`
	PriceEstimates *int `json:"priceEstimates,omitempty"`
}

// Record adds one upsert outcome to the counts.
func (s *ImportStats) Record(o UpsertOutcome) {
	if o == Inserted {
		s.Created++
		return
	}
	s.Updated++
}

// PreviewStatus summarises how many previews still await a detail scrape.
type PreviewStatus struct {
	Total             int `json:"total"`
	Pending           int `json:"pending"`
	Scraped           int `json:"scraped"`
	PendingPercentage int `json:"pendingPercentage"`
}
