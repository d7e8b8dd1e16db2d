package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"marketplace-sync/models"
)

// placeholder is what the scraper writes for a field it could not find.
const placeholder = "N/A"

var scrapedAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

type rawPreview struct {
	Link     *string `json:"link"`
	Title    *string `json:"title"`
	Price    *string `json:"price"`
	Location *string `json:"location"`
	ImageURL *string `json:"image_url"`
}

type rawPreviewData struct {
	Title    *string `json:"title"`
	Price    *string `json:"price"`
	Location *string `json:"location"`
}

type rawDetail struct {
	UUID                *string         `json:"uuid"`
	URL                 *string         `json:"url"`
	Title               *string         `json:"title"`
	Price               *string         `json:"price"`
	Location            *string         `json:"location"`
	Description         *string         `json:"description"`
	Condition           *string         `json:"condition"`
	ImageURLs           json.RawMessage `json:"image_urls"`
	ScrapedAt           *string         `json:"scraped_at"`
	OriginalPreviewData *rawPreviewData `json:"original_preview_data"`
}

// ReadPreviews decodes marketplace_listings.json from a run directory.
func ReadPreviews(runDir string) ([]models.PreviewRecord, error) {
	path := filepath.Join(runDir, PreviewsFile)

	var raw []rawPreview
	if err := readJSON(path, &raw); err != nil {
		return nil, err
	}

	records := make([]models.PreviewRecord, 0, len(raw))
	for i, r := range raw {
		link := key(r.Link)
		if link == nil {
			return nil, &ParseError{Path: path, Err: fmt.Errorf("record %d: missing link", i)}
		}
		records = append(records, models.PreviewRecord{
			Link:     *link,
			Title:    present(r.Title),
			Price:    present(r.Price),
			Location: present(r.Location),
			ImageURL: present(r.ImageURL),
		})
	}
	return records, nil
}

// ReadDetails decodes detailed_listings.json from a run directory. An
// unparseable scraped_at is left nil so the reconciler stamps the current time.
func ReadDetails(runDir string) ([]models.DetailRecord, error) {
	path := filepath.Join(runDir, DetailsFile)

	var raw []rawDetail
	if err := readJSON(path, &raw); err != nil {
		return nil, err
	}

	records := make([]models.DetailRecord, 0, len(raw))
	for i, r := range raw {
		id, url := key(r.UUID), key(r.URL)
		if id == nil {
			return nil, &ParseError{Path: path, Err: fmt.Errorf("record %d: missing uuid", i)}
		}
		if url == nil {
			return nil, &ParseError{Path: path, Err: fmt.Errorf("record %d: missing url", i)}
		}

		rec := models.DetailRecord{
			UUID:        *id,
			URL:         *url,
			Title:       present(r.Title),
			Price:       present(r.Price),
			Location:    present(r.Location),
			Description: present(r.Description),
			Condition:   present(r.Condition),
			ImageURLs:   imageURLs(r.ImageURLs),
			ScrapedAt:   parseScrapedAt(r.ScrapedAt),
		}
		if p := r.OriginalPreviewData; p != nil {
			rec.Preview = &models.PreviewFallback{
				Title:    present(p.Title),
				Price:    present(p.Price),
				Location: present(p.Location),
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// ReadEstimates loads the latest price_estimates file in dir. A missing
// directory or no matching file yields an empty mapping and an empty path.
func ReadEstimates(dir string) (map[string]models.EstimateRecord, string, error) {
	path, ok, err := LatestEstimatesFile(dir)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return map[string]models.EstimateRecord{}, "", nil
	}

	estimates := make(map[string]models.EstimateRecord)
	if err := readJSON(path, &estimates); err != nil {
		return nil, "", err
	}
	return estimates, path, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &ParseError{Path: path, Err: err}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &ParseError{Path: path, Err: err}
	}
	return nil
}

// present returns nil for absent, blank or placeholder values.
func present(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" || v == placeholder {
		return nil
	}
	return &v
}

// key returns an identity field verbatim, or nil when it is absent or blank.
// Keys are never trimmed so they match the stored value byte for byte.
func key(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

// imageURLs keeps the string members of an image_urls array; anything that is
// not an array becomes an empty list.
func imageURLs(raw json.RawMessage) []string {
	urls := []string{}
	var items []any
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return urls
	}
	for _, it := range items {
		if s, ok := it.(string); ok && s != "" {
			urls = append(urls, s)
		}
	}
	return urls
}

func parseScrapedAt(s *string) *time.Time {
	v := present(s)
	if v == nil {
		return nil
	}
	for _, layout := range scrapedAtLayouts {
		if t, err := time.ParseInLocation(layout, *v, time.Local); err == nil {
			return &t
		}
	}
	return nil
}

// IsParseError reports whether err carries a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
