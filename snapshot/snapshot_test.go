package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func mkdirs(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, n := range names {
		if err := os.MkdirAll(filepath.Join(root, n), 0o755); err != nil {
			t.Fatal(err)
		}
	}
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLatestRunPicksLastDatePrefixedDir(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "2024-01-05-run", "2024-01-20-run", "2023-12-31-run", "latest", "tmp")
	// a file with a date-like name is not a run
	writeFile(t, filepath.Join(root, "2099-01-01.json"), "[]")

	got, err := LatestRun(root)
	if err != nil {
		t.Fatalf("LatestRun: %v", err)
	}
	if want := filepath.Join(root, "2024-01-20-run"); got != want {
		t.Errorf("LatestRun = %q; want %q", got, want)
	}
}

func TestLatestRunNotFound(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "runs", "v2024-01-01")

	if _, err := LatestRun(root); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := LatestRun(filepath.Join(root, "missing")); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing root, got %v", err)
	}
}

func TestLatestEstimatesFile(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{
		"price_estimates.json",
		"price_estimates_2024-01-01.json",
		"price_estimates_2024-02-01.json",
		"price_estimates_2024-03-01.json.bak",
		"other.json",
	} {
		writeFile(t, filepath.Join(dir, n), "{}")
	}

	got, ok, err := LatestEstimatesFile(dir)
	if err != nil || !ok {
		t.Fatalf("LatestEstimatesFile: ok=%v err=%v", ok, err)
	}
	if want := filepath.Join(dir, "price_estimates_2024-02-01.json"); got != want {
		t.Errorf("got %q; want %q", got, want)
	}
}

func TestLatestEstimatesFileUnversionedOnly(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "price_estimates.json"), "{}")

	got, ok, err := LatestEstimatesFile(dir)
	if err != nil || !ok {
		t.Fatalf("LatestEstimatesFile: ok=%v err=%v", ok, err)
	}
	if filepath.Base(got) != "price_estimates.json" {
		t.Errorf("got %q", got)
	}
}

func TestReadEstimatesAbsentIsEmpty(t *testing.T) {
	est, path, err := ReadEstimates(filepath.Join(t.TempDir(), "responses"))
	if err != nil {
		t.Fatalf("ReadEstimates: %v", err)
	}
	if len(est) != 0 || path != "" {
		t.Errorf("expected empty mapping, got %d entries from %q", len(est), path)
	}

	empty := t.TempDir()
	writeFile(t, filepath.Join(empty, "notes.txt"), "x")
	est, _, err = ReadEstimates(empty)
	if err != nil || len(est) != 0 {
		t.Errorf("expected empty mapping without error, got %d, %v", len(est), err)
	}
}

func TestReadEstimatesLatestWins(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "price_estimates_2024-01-01.json"),
		`{"abc": {"estimated_price": "$10", "ai_response": "old"}}`)
	writeFile(t, filepath.Join(dir, "price_estimates_2024-02-01.json"),
		`{"abc": {"estimated_price": "$20 - $30", "ai_response": "<price>$20 - $30</price>"}, "def": {}}`)

	est, path, err := ReadEstimates(dir)
	if err != nil {
		t.Fatalf("ReadEstimates: %v", err)
	}
	if filepath.Base(path) != "price_estimates_2024-02-01.json" {
		t.Errorf("path: got %q", path)
	}
	if got := est["abc"].EstimatedPrice; got == nil || *got != "$20 - $30" {
		t.Errorf("abc estimated_price: got %v", got)
	}
	if d, ok := est["def"]; !ok || d.EstimatedPrice != nil || d.AIResponse != nil {
		t.Errorf("def should be present with nil fields, got %+v ok=%v", d, ok)
	}
}

func TestReadEstimatesMalformed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "price_estimates_2024-01-01.json"), `{"abc": `)

	if _, _, err := ReadEstimates(dir); !IsParseError(err) {
		t.Errorf("expected ParseError, got %v", err)
	}
}

func TestReadPreviews(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, PreviewsFile), `[
		{"link": "https://m.example/item/1", "title": "Bike", "price": "$50", "location": "Austin, TX", "image_url": "https://img/1.jpg"},
		{"link": "https://m.example/item/2", "title": "N/A", "price": "", "location": "N/A", "image_url": "N/A"},
		{"link": "https://m.example/item/3"}
	]`)

	recs, err := ReadPreviews(dir)
	if err != nil {
		t.Fatalf("ReadPreviews: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("len: got %d, want 3", len(recs))
	}
	if recs[0].Title == nil || *recs[0].Title != "Bike" || recs[0].ImageURL == nil {
		t.Errorf("record 0 decoded wrong: %+v", recs[0])
	}
	r := recs[1]
	if r.Title != nil || r.Price != nil || r.Location != nil || r.ImageURL != nil {
		t.Errorf("placeholders should decode to nil: %+v", r)
	}
	if recs[2].Link != "https://m.example/item/3" || recs[2].Title != nil {
		t.Errorf("record 2 decoded wrong: %+v", recs[2])
	}
}

func TestReadPreviewsErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := ReadPreviews(dir); !IsParseError(err) {
		t.Errorf("missing file: expected ParseError, got %v", err)
	}

	writeFile(t, filepath.Join(dir, PreviewsFile), `{"not": "an array"}`)
	if _, err := ReadPreviews(dir); !IsParseError(err) {
		t.Errorf("object instead of array: expected ParseError, got %v", err)
	}

	writeFile(t, filepath.Join(dir, PreviewsFile), `[{"title": "no link"}]`)
	if _, err := ReadPreviews(dir); !IsParseError(err) {
		t.Errorf("missing link: expected ParseError, got %v", err)
	}
}

func TestReadDetails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, DetailsFile), `[
		{
			"uuid": "u-1", "url": "https://m.example/item/1",
			"title": "Couch", "price": "N/A", "description": "N/A", "condition": "Used - good",
			"image_urls": ["https://img/a.jpg", 7, "https://img/b.jpg"],
			"scraped_at": "2024-02-01 10:30:00",
			"original_preview_data": {"title": "Couch!", "price": "$50", "location": "Dallas, TX"}
		},
		{"uuid": "u-2", "url": "https://m.example/item/2", "image_urls": "none", "scraped_at": "yesterday"}
	]`)

	recs, err := ReadDetails(dir)
	if err != nil {
		t.Fatalf("ReadDetails: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("len: got %d", len(recs))
	}

	a := recs[0]
	if a.Price != nil || a.Description != nil {
		t.Errorf("N/A fields should be nil: price=%v description=%v", a.Price, a.Description)
	}
	if a.Preview == nil || a.Preview.Price == nil || *a.Preview.Price != "$50" {
		t.Errorf("original_preview_data not decoded: %+v", a.Preview)
	}
	if len(a.ImageURLs) != 2 || a.ImageURLs[1] != "https://img/b.jpg" {
		t.Errorf("ImageURLs: got %v", a.ImageURLs)
	}
	if a.ScrapedAt == nil || a.ScrapedAt.Hour() != 10 || a.ScrapedAt.Minute() != 30 {
		t.Errorf("ScrapedAt: got %v", a.ScrapedAt)
	}

	b := recs[1]
	if b.ImageURLs == nil || len(b.ImageURLs) != 0 {
		t.Errorf("non-array image_urls should be empty, got %v", b.ImageURLs)
	}
	if b.ScrapedAt != nil {
		t.Errorf("unparseable scraped_at should be nil, got %v", b.ScrapedAt)
	}
	if b.Preview != nil {
		t.Errorf("absent original_preview_data should be nil")
	}
}

func TestReadDetailsMissingKey(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, DetailsFile), `[{"uuid": "u-1"}]`)
	if _, err := ReadDetails(dir); !IsParseError(err) {
		t.Errorf("missing url: expected ParseError, got %v", err)
	}

	writeFile(t, filepath.Join(dir, DetailsFile), `[{"url": "https://m.example/item/1"}]`)
	if _, err := ReadDetails(dir); !IsParseError(err) {
		t.Errorf("missing uuid: expected ParseError, got %v", err)
	}
}

func TestReadKeepsKeysVerbatim(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, PreviewsFile), `[{"link": " https://m.example/item/1 ", "title": "  Bike "}]`)
	writeFile(t, filepath.Join(dir, DetailsFile), `[{"uuid": "u-1 ", "url": "https://m.example/item/1\n"}]`)

	previews, err := ReadPreviews(dir)
	if err != nil {
		t.Fatalf("ReadPreviews: %v", err)
	}
	if got := previews[0].Link; got != " https://m.example/item/1 " {
		t.Errorf("link should be kept as written, got %q", got)
	}
	if got := previews[0].Title; got == nil || *got != "Bike" {
		t.Errorf("non-key fields are still trimmed, got %v", got)
	}

	details, err := ReadDetails(dir)
	if err != nil {
		t.Fatalf("ReadDetails: %v", err)
	}
	if details[0].UUID != "u-1 " || details[0].URL != "https://m.example/item/1\n" {
		t.Errorf("uuid/url should be kept as written: %q %q", details[0].UUID, details[0].URL)
	}

	writeFile(t, filepath.Join(dir, PreviewsFile), `[{"link": "   "}]`)
	if _, err := ReadPreviews(dir); !IsParseError(err) {
		t.Errorf("blank link: expected ParseError, got %v", err)
	}
}
