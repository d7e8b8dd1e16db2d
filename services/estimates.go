package services

import (
	"context"
	"fmt"
	"sort"

	"marketplace-sync/models"
	"marketplace-sync/storage"
	"marketplace-sync/utils"
)

// EstimateOverlay attaches price estimates to listings by listing id.
type EstimateOverlay struct {
	logger *utils.Logger
}

// NewEstimateOverlay creates an EstimateOverlay with the given logger.
func NewEstimateOverlay(logger *utils.Logger) *EstimateOverlay {
	return &EstimateOverlay{logger: logger}
}

// Apply upserts one estimate per key of estimates, in key order. storedIDs
// redirects a key to the id its listing is stored under, and the redirect
// wins even when the key is also the id of another stored listing: estimate
// keys are snapshot record uuids, so the estimate belongs to the listing that
// record was reconciled into. Keys with no stored listing are skipped;
// listings without a key keep their current estimate.
func (o *EstimateOverlay) Apply(ctx context.Context, store storage.EstimateWriter, estimates map[string]models.EstimateRecord, storedIDs map[string]string) (int, error) {
	keys := make([]string, 0, len(estimates))
	for k := range estimates {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	applied := 0
	for _, key := range keys {
		listingID := key
		if id, ok := storedIDs[key]; ok {
			listingID = id
		}

		est := estimates[key]
		ok, err := store.UpsertEstimate(ctx, &models.PriceEstimate{
			ListingID:      listingID,
			EstimatedPrice: est.EstimatedPrice,
			AIResponse:     est.AIResponse,
		})
		if err != nil {
			return applied, fmt.Errorf("estimate for %s: %w", listingID, err)
		}
		if !ok {
			o.logger.Debug("[estimates] No listing %s, skipped", listingID)
			continue
		}
		applied++
	}

	return applied, nil
}
