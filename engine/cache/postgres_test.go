package cache

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99souls/kycscan/engine/models"
)

func TestPostgresCacheGetMiss(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT canonical_url, page_type").
		WithArgs("https://example.com/").
		WillReturnError(sql.ErrNoRows)

	c := NewPostgresCache(db)
	artifact, found, err := c.Get(context.Background(), "https://example.com/")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, artifact)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCacheGetHit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"canonical_url", "page_type", "content_hash", "html", "status", "headers", "expires_at", "created_at"}).
		AddRow("https://example.com/privacy", "privacy_policy", "abc123", "<html></html>", 200, []byte(`{"content-type":"text/html"}`), time.Now().Add(time.Hour), time.Now())

	mock.ExpectQuery("SELECT canonical_url, page_type").
		WithArgs("https://example.com/privacy").
		WillReturnRows(rows)

	c := NewPostgresCache(db)
	artifact, found, err := c.Get(context.Background(), "https://example.com/privacy")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.PagePrivacyPolicy, artifact.PageType)
	assert.Equal(t, models.SourceCache, artifact.Source)
	assert.Equal(t, models.RenderCache, artifact.RenderType)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCacheGetExpired(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"canonical_url", "page_type", "content_hash", "html", "status", "headers", "expires_at", "created_at"}).
		AddRow("https://example.com/", "home", "abc", "<html></html>", 200, []byte(`{}`), time.Now().Add(-time.Hour), time.Now().Add(-2*time.Hour))

	mock.ExpectQuery("SELECT canonical_url, page_type").
		WithArgs("https://example.com/").
		WillReturnRows(rows)

	c := NewPostgresCache(db)
	_, found, err := c.Get(context.Background(), "https://example.com/")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPostgresCachePutSkipsNonStatus200(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	c := NewPostgresCache(db)
	err = c.Put(context.Background(), &models.PageArtifact{Status: 404})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCachePutUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO page_cache").WillReturnResult(sqlmock.NewResult(0, 1))

	c := NewPostgresCache(db)
	err = c.Put(context.Background(), &models.PageArtifact{
		RequestedURL: "https://example.com/",
		PageType:     models.PageHome,
		Status:       200,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNoopCacheAlwaysMisses(t *testing.T) {
	c := NewNoopCache()
	artifact, found, err := c.Get(context.Background(), "https://example.com/")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, artifact)
	require.NoError(t, c.Put(context.Background(), &models.PageArtifact{Status: 200}))
}

func TestTTLByPageType(t *testing.T) {
	assert.Equal(t, 7*24*time.Hour, TTL(models.PagePrivacyPolicy))
	assert.Equal(t, 24*time.Hour, TTL(models.PageProduct))
	assert.Equal(t, 6*time.Hour, TTL(models.PageHome))
	assert.Equal(t, time.Hour, TTL(models.PageBlog))
}
