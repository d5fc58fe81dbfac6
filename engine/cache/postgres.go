package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/99souls/kycscan/engine/models"
)

// schema (see DESIGN.md): url (PK), canonical_url, page_type, content_hash,
// html, status, headers, expires_at, created_at.
const createTableSQL = `
CREATE TABLE IF NOT EXISTS page_cache (
	url TEXT PRIMARY KEY,
	canonical_url TEXT,
	page_type TEXT NOT NULL,
	content_hash TEXT,
	html TEXT,
	status INTEGER NOT NULL,
	headers JSONB,
	expires_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
)`

// PostgresCache is a durable page_cache table backed by database/sql + lib/pq.
type PostgresCache struct {
	db *sql.DB
}

// Config holds Postgres connection parameters.
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open connects to Postgres and ensures the page_cache table exists.
// Callers should fall back to NoopCache if Open returns an error — the
// cache is never load-bearing for a scan.
func Open(ctx context.Context, cfg Config) (*PostgresCache, error) {
	if cfg.SSLMode == "" {
		cfg.SSLMode = "require"
	}
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("cache: open: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache: migrate: %w", err)
	}
	return &PostgresCache{db: db}, nil
}

// NewPostgresCache wraps an already-open *sql.DB, primarily for tests using
// go-sqlmock.
func NewPostgresCache(db *sql.DB) *PostgresCache {
	return &PostgresCache{db: db}
}

func (c *PostgresCache) Get(ctx context.Context, normalizedURL string) (*models.PageArtifact, bool, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT canonical_url, page_type, content_hash, html, status, headers, expires_at, created_at
		FROM page_cache WHERE url = $1`, normalizedURL)

	var canonicalURL, pageType, contentHash, html string
	var status int
	var headersJSON []byte
	var expiresAt, createdAt time.Time
	if err := row.Scan(&canonicalURL, &pageType, &contentHash, &html, &status, &headersJSON, &expiresAt, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache: get: %w", err)
	}

	if time.Now().After(expiresAt) {
		return nil, false, nil
	}

	var headers map[string]string
	if len(headersJSON) > 0 {
		_ = json.Unmarshal(headersJSON, &headers)
	}

	return &models.PageArtifact{
		RequestedURL: normalizedURL,
		FinalURL:     normalizedURL,
		CanonicalURL: canonicalURL,
		PageType:     models.PageType(pageType),
		ContentHash:  contentHash,
		HTML:         html,
		Status:       status,
		Source:       models.SourceCache,
		RenderType:   models.RenderCache,
		FetchedAt:    createdAt,
	}, true, nil
}

func (c *PostgresCache) Put(ctx context.Context, a *models.PageArtifact) error {
	if !shouldCache(a) {
		return nil
	}
	headersJSON, err := json.Marshal(map[string]string{"content-type": a.ContentType})
	if err != nil {
		return fmt.Errorf("cache: marshal headers: %w", err)
	}
	now := time.Now()
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO page_cache (url, canonical_url, page_type, content_hash, html, status, headers, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (url) DO UPDATE SET
			canonical_url = EXCLUDED.canonical_url,
			page_type = EXCLUDED.page_type,
			content_hash = EXCLUDED.content_hash,
			html = EXCLUDED.html,
			status = EXCLUDED.status,
			headers = EXCLUDED.headers,
			expires_at = EXCLUDED.expires_at,
			created_at = EXCLUDED.created_at`,
		a.RequestedURL, a.CanonicalURL, string(a.PageType), a.ContentHash, a.HTML, a.Status,
		headersJSON, now.Add(TTL(a.PageType)), now,
	)
	if err != nil {
		return fmt.Errorf("cache: put: %w", err)
	}
	return nil
}

func (c *PostgresCache) Close() error {
	return c.db.Close()
}
