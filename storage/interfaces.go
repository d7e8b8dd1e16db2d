package storage

import (
	"context"

	"marketplace-sync/models"
)

// PreviewWriter upserts preview sightings keyed by link.
type PreviewWriter interface {
	UpsertPreview(ctx context.Context, p *models.ListingPreview) (models.UpsertOutcome, error)
}

// ListingWriter upserts full listings keyed by source URL.
type ListingWriter interface {
	UpsertListing(ctx context.Context, l *models.Listing) (models.UpsertOutcome, error)
}

// EstimateWriter attaches a price estimate to an existing listing. applied is
// false when no listing with that id exists.
type EstimateWriter interface {
	UpsertEstimate(ctx context.Context, e *models.PriceEstimate) (applied bool, err error)
}

// Session is the store handle scoped to one pipeline run.
type Session interface {
	PreviewWriter
	ListingWriter
	EstimateWriter
	Close() error
}

// Catalog is the long-lived store: it hands out per-run sessions and answers
// the read-side queries.
type Catalog interface {
	Session(ctx context.Context) (Session, error)
	PreviewStatus(ctx context.Context) (models.PreviewStatus, error)
	FetchCatalog(ctx context.Context) ([]models.CatalogEntry, error)
}
