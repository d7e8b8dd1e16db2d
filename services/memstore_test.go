package services

import (
	"context"
	"fmt"

	"marketplace-sync/models"
	"marketplace-sync/storage"
)

// memCatalog is an in-memory storage.Catalog with the same upsert rules as
// the Postgres store.
type memCatalog struct {
	previews  map[string]models.ListingPreview
	listings  map[string]models.Listing
	estimates map[string]models.PriceEstimate

	failKey   string
	mutations int
	sessions  int
	closed    int
}

func newMemCatalog() *memCatalog {
	return &memCatalog{
		previews:  make(map[string]models.ListingPreview),
		listings:  make(map[string]models.Listing),
		estimates: make(map[string]models.PriceEstimate),
	}
}

func (m *memCatalog) Session(ctx context.Context) (storage.Session, error) {
	m.sessions++
	return &memSession{m: m}, nil
}

func (m *memCatalog) PreviewStatus(ctx context.Context) (models.PreviewStatus, error) {
	st := models.PreviewStatus{Total: len(m.previews)}
	for _, p := range m.previews {
		if p.DetailsScrapedAt == nil {
			st.Pending++
		}
	}
	st.Scraped = st.Total - st.Pending
	return st, nil
}

func (m *memCatalog) FetchCatalog(ctx context.Context) ([]models.CatalogEntry, error) {
	var out []models.CatalogEntry
	for _, l := range m.listings {
		e := models.CatalogEntry{Listing: l}
		if est, ok := m.estimates[l.ID]; ok {
			e.Estimate = &est
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memCatalog) listingByID(id string) (models.Listing, bool) {
	for _, l := range m.listings {
		if l.ID == id {
			return l, true
		}
	}
	return models.Listing{}, false
}

type memSession struct {
	m *memCatalog
}

func (s *memSession) conflict(key string) error {
	if s.m.failKey != "" && key == s.m.failKey {
		return fmt.Errorf("mem: upsert %s: %w", key, storage.ErrConstraintViolation)
	}
	return nil
}

func (s *memSession) UpsertPreview(ctx context.Context, p *models.ListingPreview) (models.UpsertOutcome, error) {
	if err := s.conflict(p.Link); err != nil {
		return 0, err
	}
	s.m.mutations++

	stored, ok := s.m.previews[p.Link]
	if !ok {
		s.m.previews[p.Link] = *p
		return models.Inserted, nil
	}

	stored.Title = p.Title
	stored.Price = p.Price
	stored.Location = p.Location
	stored.ImageURL = p.ImageURL
	if p.LastSeenAt.After(stored.LastSeenAt) {
		stored.LastSeenAt = p.LastSeenAt
	}
	s.m.previews[p.Link] = stored
	*p = stored
	return models.Updated, nil
}

func (s *memSession) UpsertListing(ctx context.Context, l *models.Listing) (models.UpsertOutcome, error) {
	if err := s.conflict(l.SourceURL); err != nil {
		return 0, err
	}
	s.m.mutations++

	stored, ok := s.m.listings[l.SourceURL]
	if !ok {
		s.m.listings[l.SourceURL] = *l
		return models.Inserted, nil
	}

	stored.Title = l.Title
	stored.Price = l.Price
	stored.Description = l.Description
	stored.Condition = l.Condition
	stored.Location = l.Location
	stored.ImageURLs = l.ImageURLs
	s.m.listings[l.SourceURL] = stored
	*l = stored
	return models.Updated, nil
}

func (s *memSession) UpsertEstimate(ctx context.Context, e *models.PriceEstimate) (bool, error) {
	if _, ok := s.m.listingByID(e.ListingID); !ok {
		return false, nil
	}
	s.m.mutations++
	s.m.estimates[e.ListingID] = *e
	return true, nil
}

func (s *memSession) Close() error {
	s.m.closed++
	return nil
}
