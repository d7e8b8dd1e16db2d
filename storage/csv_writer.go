package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lib/pq"

	"marketplace-sync/models"
)

// CSVWriter exports the reconciled catalog as two CSV files, one for listings
// and one for price estimates, in a form Postgres COPY can load back.
type CSVWriter struct {
	dir string
	now func() time.Time
}

// NewCSVWriter creates the export directory if needed.
func NewCSVWriter(dir string) (*CSVWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}
	return &CSVWriter{dir: dir, now: time.Now}, nil
}

// WriteCatalog writes listings_<ts>.csv and price_estimates_<ts>.csv and
// returns their paths.
func (c *CSVWriter) WriteCatalog(entries []models.CatalogEntry) (listingsPath, estimatesPath string, err error) {
	stamp := c.now().Format("20060102_150405")
	listingsPath = filepath.Join(c.dir, "listings_"+stamp+".csv")
	estimatesPath = filepath.Join(c.dir, "price_estimates_"+stamp+".csv")

	listingRows := [][]string{{
		"id", "title", "price", "description", "condition", "location", "imageUrls", "sourceUrl", "scrapedAt",
	}}
	// the estimate id doubles as the listing id, matching the 1:1 relation
	estimateRows := [][]string{{"id", "estimatedPrice", "aiResponse", "listingId"}}

	for _, e := range entries {
		l := e.Listing
		images, err := pgArray(l.ImageURLs)
		if err != nil {
			return "", "", fmt.Errorf("csv: encode image urls for %s: %w", l.ID, err)
		}
		listingRows = append(listingRows, []string{
			l.ID,
			l.Title,
			l.Price,
			deref(l.Description),
			deref(l.Condition),
			deref(l.Location),
			images,
			l.SourceURL,
			l.ScrapedAt.Format(time.RFC3339),
		})

		if e.Estimate != nil {
			estimateRows = append(estimateRows, []string{
				e.Estimate.ListingID,
				deref(e.Estimate.EstimatedPrice),
				deref(e.Estimate.AIResponse),
				e.Estimate.ListingID,
			})
		}
	}

	if err := writeCSV(listingsPath, listingRows); err != nil {
		return "", "", err
	}
	if err := writeCSV(estimatesPath, estimateRows); err != nil {
		_ = os.Remove(listingsPath)
		return "", "", err
	}
	return listingsPath, estimatesPath, nil
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		_ = f.Close()
		return fmt.Errorf("csv: write %q: %w", path, err)
	}
	return f.Close()
}

// pgArray renders a text[] literal such as {"a","b"}.
func pgArray(items []string) (string, error) {
	if len(items) == 0 {
		return "{}", nil
	}
	v, err := pq.StringArray(items).Value()
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
