// Package snapshot locates dated scrape runs on disk and decodes the JSON
// files the scraper and the pricing step leave behind.
package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

const (
	PreviewsFile = "marketplace_listings.json"
	DetailsFile  = "detailed_listings.json"

	estimatesPrefix     = "price_estimates"
	estimatesExt        = ".json"
	unversionedEstimate = estimatesPrefix + estimatesExt
)

// runDirRegexp matches run directories named with a zero-padded ISO date prefix.
var runDirRegexp = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// ErrNotFound is returned when no run directory matches the date-prefixed naming.
var ErrNotFound = errors.New("no scraped runs found")

// ParseError reports a snapshot file that is missing or cannot be decoded.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("snapshot: parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// LatestRun returns the path of the lexicographically last date-prefixed
// subdirectory of root. Names are compared as strings only.
func LatestRun(root string) (string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("snapshot: %w in %s", ErrNotFound, root)
		}
		return "", fmt.Errorf("snapshot: read %s: %w", root, err)
	}

	runs := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && runDirRegexp.MatchString(e.Name()) {
			runs = append(runs, e.Name())
		}
	}
	if len(runs) == 0 {
		return "", fmt.Errorf("snapshot: %w in %s", ErrNotFound, root)
	}

	sort.Strings(runs)
	return filepath.Join(root, runs[len(runs)-1]), nil
}

// LatestEstimatesFile returns the last price_estimates file in dir by name.
// ok is false when the directory is absent or holds no candidate file.
func LatestEstimatesFile(dir string) (path string, ok bool, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("snapshot: read %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if isEstimatesFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", false, nil
	}

	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1]), true, nil
}

func isEstimatesFile(name string) bool {
	if name == unversionedEstimate {
		return true
	}
	return strings.HasPrefix(name, estimatesPrefix+"_") && strings.HasSuffix(name, estimatesExt)
}
