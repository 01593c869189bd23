package repository

import (
	"context"
	"strings"
	"time"

	"mediaenrich/internal/domain/entity"
	"mediaenrich/internal/domain/valueobject"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const enrichmentJobColumns = `id, client_id, content_id::text, content_type, status, attempts,
	error_message, created_at, started_at, completed_at, updated_at`

// claimNextJobQuery moves the oldest eligible job to processing in one statement.
// SKIP LOCKED lets concurrent workers pass over a row another worker is claiming.
const claimNextJobQuery = `
	UPDATE enrichment_jobs
	SET status = 'processing', started_at = NOW(), updated_at = NOW()
	WHERE id = (
		SELECT id
		FROM enrichment_jobs
		WHERE status = 'pending'
		  AND attempts < $1
		  AND client_id = $2
		  AND created_at <= NOW()
		ORDER BY created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	)
	RETURNING ` + enrichmentJobColumns

// PostgreSQLEnrichmentJobRepository implements outbound.EnrichmentJobRepository.
type PostgreSQLEnrichmentJobRepository struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLEnrichmentJobRepository creates a new PostgreSQL enrichment job repository
func NewPostgreSQLEnrichmentJobRepository(pool *pgxpool.Pool) *PostgreSQLEnrichmentJobRepository {
	return &PostgreSQLEnrichmentJobRepository{
		pool: pool,
	}
}

// ClaimNext atomically claims the oldest eligible pending job of the tenant.
func (r *PostgreSQLEnrichmentJobRepository) ClaimNext(
	ctx context.Context,
	clientID string,
	maxAttempts int,
) (*entity.EnrichmentJob, error) {
	if strings.TrimSpace(clientID) == "" || maxAttempts < 1 {
		return nil, ErrInvalidArgument
	}

	qi := GetQueryInterface(ctx, r.pool)
	job, err := scanEnrichmentJob(qi.QueryRow(ctx, claimNextJobQuery, maxAttempts, clientID))
	if err != nil {
		if IsNotFoundError(err) {
			return nil, nil //nolint:nilnil // no eligible job is not an error
		}
		return nil, WrapError(err, "claim next enrichment job")
	}

	return job, nil
}

// FindByID loads a job. It returns ErrNotFound when the row does not exist.
func (r *PostgreSQLEnrichmentJobRepository) FindByID(ctx context.Context, id int64) (*entity.EnrichmentJob, error) {
	query := `SELECT ` + enrichmentJobColumns + ` FROM enrichment_jobs WHERE id = $1`

	qi := GetQueryInterface(ctx, r.pool)
	job, err := scanEnrichmentJob(qi.QueryRow(ctx, query, id))
	if err != nil {
		return nil, WrapError(err, "find enrichment job by ID")
	}
	return job, nil
}

// MarkCompleted sets the job to completed.
func (r *PostgreSQLEnrichmentJobRepository) MarkCompleted(ctx context.Context, jobID int64) error {
	query := `
		UPDATE enrichment_jobs
		SET status = 'completed', completed_at = NOW(), updated_at = NOW()
		WHERE id = $1`

	return r.execOne(ctx, "mark enrichment job completed", query, jobID)
}

// MarkFailed sets the job to its terminal failed state.
func (r *PostgreSQLEnrichmentJobRepository) MarkFailed(
	ctx context.Context,
	jobID int64,
	message string,
	attempts int,
) error {
	query := `
		UPDATE enrichment_jobs
		SET status = 'failed', error_message = $2, attempts = $3, updated_at = NOW()
		WHERE id = $1`

	return r.execOne(ctx, "mark enrichment job failed", query, jobID, message, attempts)
}

// Reschedule puts the job back to pending and moves its eligibility into the future.
func (r *PostgreSQLEnrichmentJobRepository) Reschedule(
	ctx context.Context,
	jobID int64,
	message string,
	attempts int,
	delay time.Duration,
) error {
	query := `
		UPDATE enrichment_jobs
		SET status = 'pending',
		    error_message = $2,
		    attempts = $3,
		    started_at = NULL,
		    updated_at = NOW(),
		    created_at = NOW() + make_interval(secs => $4)
		WHERE id = $1`

	return r.execOne(ctx, "reschedule enrichment job", query, jobID, message, attempts, delay.Seconds())
}

func (r *PostgreSQLEnrichmentJobRepository) execOne(ctx context.Context, operation, query string, args ...any) error {
	qi := GetQueryInterface(ctx, r.pool)
	result, err := qi.Exec(ctx, query, args...)
	if err != nil {
		return WrapError(err, operation)
	}

	if result.RowsAffected() == 0 {
		return WrapError(ErrNotFound, operation)
	}

	return nil
}

func scanEnrichmentJob(row pgx.Row) (*entity.EnrichmentJob, error) {
	var (
		id                     int64
		clientID, contentID    string
		contentType, statusStr string
		attempts               int
		errorMessage           *string
		createdAt, updatedAt   time.Time
		startedAt, completedAt *time.Time
	)

	if err := row.Scan(
		&id, &clientID, &contentID, &contentType, &statusStr, &attempts,
		&errorMessage, &createdAt, &startedAt, &completedAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	status, err := valueobject.NewJobStatus(statusStr)
	if err != nil {
		return nil, err
	}

	return entity.RestoreEnrichmentJob(
		id,
		clientID,
		contentID,
		valueobject.ContentType(contentType),
		status,
		attempts,
		errorMessage,
		createdAt,
		startedAt,
		completedAt,
		updatedAt,
	), nil
}
