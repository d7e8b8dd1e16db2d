package services

import (
	"context"
	"fmt"
	"time"

	"marketplace-sync/models"
	"marketplace-sync/storage"
	"marketplace-sync/utils"
)

// DetailReconciler merges fully scraped listings into the catalog, keyed by
// source URL.
type DetailReconciler struct {
	logger *utils.Logger
	now    func() time.Time
}

// NewDetailReconciler creates a DetailReconciler with the given logger.
func NewDetailReconciler(logger *utils.Logger) *DetailReconciler {
	return &DetailReconciler{logger: logger, now: time.Now}
}

// Reconcile upserts records in input order. The returned map takes each
// record's uuid to the id actually stored for its source URL, which differs
// when the URL was first imported under another uuid.
func (r *DetailReconciler) Reconcile(ctx context.Context, store storage.ListingWriter, records []models.DetailRecord) (models.ImportStats, map[string]string, error) {
	stats := models.ImportStats{Total: len(records)}
	storedIDs := make(map[string]string, len(records))

	for i, rec := range records {
		l := r.resolve(rec)

		outcome, err := store.UpsertListing(ctx, l)
		if err != nil {
			return stats, storedIDs, fmt.Errorf("listing %d of %d: %w", i+1, len(records), err)
		}
		stats.Record(outcome)
		storedIDs[rec.UUID] = l.ID

		if outcome == models.Updated && l.ID != rec.UUID {
			r.logger.Debug("[details] %s already stored as %s", rec.UUID, l.ID)
		}
	}

	r.logger.Info("[details] Reconciled %d listings (created %d, updated %d)",
		stats.Total, stats.Created, stats.Updated)
	return stats, storedIDs, nil
}

// resolve applies the field precedence: the record's own value, then the
// embedded preview data, then a per-field default.
func (r *DetailReconciler) resolve(rec models.DetailRecord) *models.Listing {
	var fb models.PreviewFallback
	if rec.Preview != nil {
		fb = *rec.Preview
	}

	scrapedAt := r.now()
	if rec.ScrapedAt != nil {
		scrapedAt = *rec.ScrapedAt
	}

	images := rec.ImageURLs
	if images == nil {
		images = []string{}
	}

	return &models.Listing{
		ID:          rec.UUID,
		SourceURL:   rec.URL,
		Title:       firstPresentOr(defaultTitle, rec.Title, fb.Title),
		Price:       firstPresentOr(defaultPrice, rec.Price, fb.Price),
		Location:    firstPresent(rec.Location, fb.Location),
		Description: rec.Description,
		Condition:   rec.Condition,
		ImageURLs:   images,
		ScrapedAt:   scrapedAt,
	}
}
