package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/lib/pq"

	"marketplace-sync/models"
	"marketplace-sync/utils"
)

// uniqueViolation is the Postgres SQLSTATE for a unique-key conflict.
const uniqueViolation = "23505"

// ErrConstraintViolation wraps a duplicate-key conflict raised during an upsert.
var ErrConstraintViolation = errors.New("constraint violation")

// Options tunes the connection pool.
type Options struct {
	MaxConnections     int
	ConnectionLifetime time.Duration
	ConnectRetries     int
}

// PostgresStore is the catalog backed by PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger *utils.Logger
}

// OpenPostgres opens a connection pool, waits for the server to answer,
// runs schema migrations and returns a ready-to-use PostgresStore.
func OpenPostgres(ctx context.Context, dsn string, opts Options, logger *utils.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(opts.MaxConnections)
	db.SetMaxIdleConns(opts.MaxConnections)
	db.SetConnMaxLifetime(opts.ConnectionLifetime)

	attempts := opts.ConnectRetries
	if attempts < 1 {
		attempts = 1
	}
	err = retry.Do(
		func() error { return db.PingContext(ctx) },
		retry.Attempts(uint(attempts)),
		retry.Delay(2*time.Second),
		retry.MaxDelay(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("[postgres] Ping failed (attempt %d/%d): %v", n+1, attempts, err)
		}),
	)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	ps := &PostgresStore{db: db, logger: logger}
	if err := ps.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	logger.Info("[postgres] Connected and migrated")
	return ps, nil
}

func (ps *PostgresStore) migrate(ctx context.Context) error {
	_, err := ps.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS listing_previews (
			id                 TEXT        PRIMARY KEY,
			link               TEXT        UNIQUE NOT NULL,
			title              TEXT        NOT NULL,
			price              TEXT        NOT NULL,
			location           TEXT,
			image_url          TEXT,
			first_seen_at      TIMESTAMPTZ NOT NULL,
			last_seen_at       TIMESTAMPTZ NOT NULL,
			details_scraped_at TIMESTAMPTZ
		);

		CREATE TABLE IF NOT EXISTS listings (
			id          TEXT        PRIMARY KEY,
			source_url  TEXT        UNIQUE NOT NULL,
			title       TEXT        NOT NULL,
			price       TEXT        NOT NULL,
			description TEXT,
			condition   TEXT,
			location    TEXT,
			image_urls  TEXT[]      NOT NULL DEFAULT '{}',
			scraped_at  TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS price_estimates (
			listing_id      TEXT        PRIMARY KEY REFERENCES listings(id) ON DELETE CASCADE,
			estimated_price TEXT,
			ai_response     TEXT,
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_previews_pending
			ON listing_previews(first_seen_at) WHERE details_scraped_at IS NULL;
	`)
	return err
}

// Session acquires a dedicated connection for one pipeline run. The caller
// must Close it when the run ends.
func (ps *PostgresStore) Session(ctx context.Context) (Session, error) {
	conn, err := ps.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: acquire session: %w", err)
	}
	return &PostgresSession{conn: conn}, nil
}

// PreviewStatus counts previews and how many still lack a detail scrape.
func (ps *PostgresStore) PreviewStatus(ctx context.Context) (models.PreviewStatus, error) {
	var st models.PreviewStatus
	err := ps.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE details_scraped_at IS NULL)
		FROM listing_previews
	`).Scan(&st.Total, &st.Pending)
	if err != nil {
		return st, fmt.Errorf("postgres: preview status: %w", err)
	}
	st.Scraped = st.Total - st.Pending
	if st.Total > 0 {
		st.PendingPercentage = int(math.Round(float64(st.Pending) / float64(st.Total) * 100))
	}
	return st, nil
}

// FetchCatalog returns every listing with its estimate, newest scrape first.
func (ps *PostgresStore) FetchCatalog(ctx context.Context) ([]models.CatalogEntry, error) {
	rows, err := ps.db.QueryContext(ctx, `
		SELECT l.id, l.source_url, l.title, l.price, l.description, l.condition,
		       l.location, l.image_urls, l.scraped_at,
		       e.listing_id, e.estimated_price, e.ai_response
		FROM listings l
		LEFT JOIN price_estimates e ON e.listing_id = l.id
		ORDER BY l.scraped_at DESC, l.id
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch catalog: %w", err)
	}
	defer rows.Close()

	var entries []models.CatalogEntry
	for rows.Next() {
		var (
			l                           models.Listing
			description, cond, loc      sql.NullString
			estID, estPrice, aiResponse sql.NullString
		)
		if err := rows.Scan(
			&l.ID, &l.SourceURL, &l.Title, &l.Price, &description, &cond,
			&loc, pq.Array(&l.ImageURLs), &l.ScrapedAt,
			&estID, &estPrice, &aiResponse,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		l.Description = nullable(description)
		l.Condition = nullable(cond)
		l.Location = nullable(loc)

		entry := models.CatalogEntry{Listing: l}
		if estID.Valid {
			entry.Estimate = &models.PriceEstimate{
				ListingID:      estID.String,
				EstimatedPrice: nullable(estPrice),
				AIResponse:     nullable(aiResponse),
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}

// PostgresSession runs one record's upsert per statement on a single connection.
type PostgresSession struct {
	conn *sql.Conn
}

// UpsertPreview inserts a new preview or refreshes the mutable fields of an
// existing one. first_seen_at, details_scraped_at and id are never touched on
// update. p is refreshed with the stored id and timestamps.
func (s *PostgresSession) UpsertPreview(ctx context.Context, p *models.ListingPreview) (models.UpsertOutcome, error) {
	var inserted bool
	err := s.conn.QueryRowContext(ctx, `
		INSERT INTO listing_previews
			(id, link, title, price, location, image_url, first_seen_at, last_seen_at, details_scraped_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7, NULL)
		ON CONFLICT (link) DO UPDATE SET
			title        = EXCLUDED.title,
			price        = EXCLUDED.price,
			location     = EXCLUDED.location,
			image_url    = EXCLUDED.image_url,
			last_seen_at = GREATEST(listing_previews.last_seen_at, EXCLUDED.last_seen_at)
		RETURNING id, first_seen_at, last_seen_at, details_scraped_at, (xmax = 0) AS inserted`,
		p.ID, p.Link, p.Title, p.Price, p.Location, p.ImageURL, p.LastSeenAt,
	).Scan(&p.ID, &p.FirstSeenAt, &p.LastSeenAt, &p.DetailsScrapedAt, &inserted)
	if err != nil {
		return 0, fmt.Errorf("postgres: upsert preview %s: %w", p.Link, classify(err))
	}
	return outcome(inserted), nil
}

// UpsertListing inserts a listing or overwrites the mutable fields of the row
// with the same source_url. scraped_at is set on insert only. l is refreshed
// with the stored id and scraped_at.
func (s *PostgresSession) UpsertListing(ctx context.Context, l *models.Listing) (models.UpsertOutcome, error) {
	images := l.ImageURLs
	if images == nil {
		images = []string{}
	}

	var inserted bool
	err := s.conn.QueryRowContext(ctx, `
		INSERT INTO listings
			(id, source_url, title, price, description, condition, location, image_urls, scraped_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (source_url) DO UPDATE SET
			title       = EXCLUDED.title,
			price       = EXCLUDED.price,
			description = EXCLUDED.description,
			condition   = EXCLUDED.condition,
			location    = EXCLUDED.location,
			image_urls  = EXCLUDED.image_urls
		RETURNING id, scraped_at, (xmax = 0) AS inserted`,
		l.ID, l.SourceURL, l.Title, l.Price, l.Description, l.Condition, l.Location,
		pq.Array(images), l.ScrapedAt,
	).Scan(&l.ID, &l.ScrapedAt, &inserted)
	if err != nil {
		return 0, fmt.Errorf("postgres: upsert listing %s: %w", l.SourceURL, classify(err))
	}
	return outcome(inserted), nil
}

// UpsertEstimate replaces the estimate of an existing listing wholesale.
func (s *PostgresSession) UpsertEstimate(ctx context.Context, e *models.PriceEstimate) (bool, error) {
	res, err := s.conn.ExecContext(ctx, `
		INSERT INTO price_estimates (listing_id, estimated_price, ai_response, updated_at)
		SELECT $1::text, $2::text, $3::text, NOW()
		WHERE EXISTS (SELECT 1 FROM listings WHERE id = $1::text)
		ON CONFLICT (listing_id) DO UPDATE SET
			estimated_price = EXCLUDED.estimated_price,
			ai_response     = EXCLUDED.ai_response,
			updated_at      = EXCLUDED.updated_at`,
		e.ListingID, e.EstimatedPrice, e.AIResponse,
	)
	if err != nil {
		return false, fmt.Errorf("postgres: upsert estimate %s: %w", e.ListingID, classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("postgres: upsert estimate %s: %w", e.ListingID, err)
	}
	return n > 0, nil
}

// Close returns the session's connection to the pool.
func (s *PostgresSession) Close() error {
	return s.conn.Close()
}

func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %w", ErrConstraintViolation, err)
	}
	return err
}

func outcome(inserted bool) models.UpsertOutcome {
	if inserted {
		return models.Inserted
	}
	return models.Updated
}

func nullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
