package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"marketplace-sync/models"
	"marketplace-sync/storage"
	"marketplace-sync/utils"
)

// PreviewReconciler merges preview sightings into the catalog, keyed by link.
type PreviewReconciler struct {
	logger *utils.Logger
	now    func() time.Time
	newID  func() string
}

// NewPreviewReconciler creates a PreviewReconciler with the given logger.
func NewPreviewReconciler(logger *utils.Logger) *PreviewReconciler {
	return &PreviewReconciler{logger: logger, now: time.Now, newID: uuid.NewString}
}

// Reconcile upserts records one at a time in input order. On error the
// returned stats hold the counts of the records persisted before the failure.
func (r *PreviewReconciler) Reconcile(ctx context.Context, store storage.PreviewWriter, records []models.PreviewRecord) (models.ImportStats, error) {
	stats := models.ImportStats{Total: len(records)}

	for i, rec := range records {
		now := r.now()
		p := &models.ListingPreview{
			ID:          r.newID(),
			Link:        rec.Link,
			Title:       firstPresentOr(defaultTitle, rec.Title),
			Price:       firstPresentOr(defaultPrice, rec.Price),
			Location:    rec.Location,
			ImageURL:    rec.ImageURL,
			FirstSeenAt: now,
			LastSeenAt:  now,
		}

		outcome, err := store.UpsertPreview(ctx, p)
		if err != nil {
			return stats, fmt.Errorf("preview %d of %d: %w", i+1, len(records), err)
		}
		stats.Record(outcome)
		r.logger.Debug("[previews] %s %s", outcome, rec.Link)
	}

	r.logger.Info("[previews] Reconciled %d previews (created %d, updated %d)",
		stats.Total, stats.Created, stats.Updated)
	return stats, nil
}
