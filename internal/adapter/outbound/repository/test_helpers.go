package repository

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const testClientID = "test-client"

// testSchema is created on demand so the integration tests can run against an empty database.
var testSchema = []string{ //nolint:gochecknoglobals // fixture DDL
	`CREATE EXTENSION IF NOT EXISTS vector`,
	`CREATE TABLE IF NOT EXISTS enrichment_jobs (
		id            BIGSERIAL PRIMARY KEY,
		client_id     TEXT NOT NULL,
		content_id    TEXT NOT NULL,
		content_type  TEXT NOT NULL,
		status        TEXT NOT NULL DEFAULT 'pending',
		attempts      INTEGER NOT NULL DEFAULT 0,
		error_message TEXT,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		started_at    TIMESTAMPTZ,
		completed_at  TIMESTAMPTZ,
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS instagram_posts (
		id              TEXT PRIMARY KEY,
		client_id       TEXT NOT NULL,
		caption         TEXT,
		media_type      TEXT,
		media_url       TEXT,
		thumbnail_url   TEXT,
		embedding       vector(1408),
		embedding_model TEXT,
		embedded_at     TIMESTAMPTZ,
		transcript      TEXT,
		has_audio       BOOLEAN,
		audio_language  TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS instagram_post_children (
		id            TEXT PRIMARY KEY,
		post_id       TEXT NOT NULL,
		client_id     TEXT NOT NULL,
		media_type    TEXT,
		media_url     TEXT,
		thumbnail_url TEXT
	)`,
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// setupTestDB connects to the integration database or skips the test.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database integration test in short mode")
	}

	port, err := strconv.Atoi(envOr("ENRICH_TEST_DATABASE_PORT", "5432"))
	if err != nil {
		t.Fatalf("invalid ENRICH_TEST_DATABASE_PORT: %v", err)
	}

	config := DatabaseConfig{
		Host:           envOr("ENRICH_TEST_DATABASE_HOST", "localhost"),
		Port:           port,
		Database:       envOr("ENRICH_TEST_DATABASE_NAME", "analytics_test"),
		Username:       envOr("ENRICH_TEST_DATABASE_USER", "dev"),
		Password:       envOr("ENRICH_TEST_DATABASE_PASSWORD", "dev"),
		Schema:         "public",
		MaxConnections: 10,
		PingTimeout:    2 * time.Second,
	}

	ctx := context.Background()
	pool, err := NewDatabaseConnection(ctx, config)
	if err != nil {
		t.Skipf("database not available: %v", err)
	}

	for _, ddl := range testSchema {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			pool.Close()
			t.Skipf("cannot prepare test schema: %v", err)
		}
	}

	cleanupTestData(t, pool)
	t.Cleanup(func() {
		cleanupTestData(t, pool)
		pool.Close()
	})
	return pool
}

// cleanupTestData removes only rows owned by the test tenants.
func cleanupTestData(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()
	queries := []string{
		"DELETE FROM instagram_post_children WHERE client_id LIKE 'test-%'",
		"DELETE FROM instagram_posts WHERE client_id LIKE 'test-%'",
		"DELETE FROM enrichment_jobs WHERE client_id LIKE 'test-%'",
	}
	for _, query := range queries {
		if _, err := pool.Exec(ctx, query); err != nil {
			t.Logf("Warning: Failed to clean up with query %s: %v", query, err)
		}
	}
}

// insertJob inserts a pending job whose eligibility is offset from now.
func insertJob(t *testing.T, pool *pgxpool.Pool, clientID, contentID string, attempts int, createdOffset time.Duration) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(), `
		INSERT INTO enrichment_jobs (client_id, content_id, content_type, status, attempts, created_at)
		VALUES ($1, $2, 'instagram_posts', 'pending', $3, NOW() + make_interval(secs => $4))
		RETURNING id`,
		clientID, contentID, attempts, createdOffset.Seconds(),
	).Scan(&id)
	if err != nil {
		t.Fatalf("insert job: %v", err)
	}
	return id
}

func insertPost(t *testing.T, pool *pgxpool.Pool, clientID, id, mediaType, mediaURL, thumbnailURL string) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO instagram_posts (id, client_id, caption, media_type, media_url, thumbnail_url)
		VALUES ($1, $2, 'caption for '||$1, $3, NULLIF($4, ''), NULLIF($5, ''))`,
		id, clientID, mediaType, mediaURL, thumbnailURL,
	)
	if err != nil {
		t.Fatalf("insert post: %v", err)
	}
}

func insertChild(t *testing.T, pool *pgxpool.Pool, clientID, postID, id, mediaType, mediaURL, thumbnailURL string) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO instagram_post_children (id, post_id, client_id, media_type, media_url, thumbnail_url)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''))`,
		id, postID, clientID, mediaType, mediaURL, thumbnailURL,
	)
	if err != nil {
		t.Fatalf("insert child: %v", err)
	}
}
