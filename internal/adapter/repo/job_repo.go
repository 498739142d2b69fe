package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"videostyler/internal/domain"
)

const pgUniqueViolation = "23505"

// JobRepositoryPG implements domain.JobRepository on PostgreSQL. Every
// mutation is a single guarded UPDATE, which is the only concurrency control
// the lifecycle needs.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

// Create inserts a new job record in status "pending".
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	query := `
INSERT INTO jobs (id, owner_id, source_ref, source_name, source_size, source_format, parameters, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
`
	_, err := r.pool.Exec(ctx, query,
		job.ID,
		job.OwnerID,
		job.SourceRef,
		job.SourceName,
		job.SourceSize,
		job.SourceFormat,
		job.Parameters,
		job.Status,
		job.CreatedAt,
	)
	return err
}

// AttachTicket records the provider ticket and flips the job to "submitted".
// The ticket is write-once; the unique index on provider_ticket enforces that
// no two jobs ever share one.
func (r *JobRepositoryPG) AttachTicket(ctx context.Context, jobID, ticket string, submittedAt time.Time) error {
	query := `
UPDATE jobs
SET provider_ticket = $2,
    status = 'submitted',
    submitted_at = $3
WHERE id = $1 AND status = 'pending' AND provider_ticket IS NULL;
`
	tag, err := r.pool.Exec(ctx, query, jobID, ticket, submittedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("%w: ticket %q already attached to another job", domain.ErrConflict, ticket)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: job %s is not pending", domain.ErrConflict, jobID)
	}
	return nil
}

const jobColumns = `id, owner_id, source_ref, source_name, source_size, source_format, parameters, provider_ticket, status, result_ref, error_detail, created_at, submitted_at, finalized_at`

// FindByID fetches a job by identifier, scoped to its owner.
func (r *JobRepositoryPG) FindByID(ctx context.Context, jobID, ownerID string) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1 AND owner_id = $2;`
	return r.scanJob(r.pool.QueryRow(ctx, query, jobID, ownerID))
}

// FindByTicket fetches the job correlated with a provider ticket.
func (r *JobRepositoryPG) FindByTicket(ctx context.Context, ticket string) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE provider_ticket = $1;`
	return r.scanJob(r.pool.QueryRow(ctx, query, ticket))
}

// Finalize is a compare-and-set on status: the terminal state is written only
// while the job is still "submitted". A lost race returns domain.ErrConflict.
func (r *JobRepositoryPG) Finalize(ctx context.Context, jobID string, status domain.JobStatus, resultRef, errorDetail string, finalizedAt time.Time) error {
	if !status.Terminal() {
		return fmt.Errorf("%w: %q is not a terminal status", domain.ErrValidation, status)
	}
	query := `
UPDATE jobs
SET status = $2,
    result_ref = $3,
    error_detail = $4,
    finalized_at = $5
WHERE id = $1 AND status = 'submitted';
`
	tag, err := r.pool.Exec(ctx, query, jobID, status, resultRef, errorDetail, finalizedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: job %s is not submitted", domain.ErrConflict, jobID)
	}
	return nil
}

// FailPending moves a job that never reached the provider to "failed".
func (r *JobRepositoryPG) FailPending(ctx context.Context, jobID, errorDetail string, finalizedAt time.Time) error {
	query := `
UPDATE jobs
SET status = 'failed',
    error_detail = $2,
    finalized_at = $3
WHERE id = $1 AND status = 'pending';
`
	tag, err := r.pool.Exec(ctx, query, jobID, errorDetail, finalizedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: job %s is not pending", domain.ErrConflict, jobID)
	}
	return nil
}

// ListByOwner returns one page of the owner's jobs, newest first, plus the
// total match count. An empty status matches all statuses.
func (r *JobRepositoryPG) ListByOwner(ctx context.Context, ownerID string, status domain.JobStatus, page, pageSize int) ([]domain.Job, int, error) {
	if page < 1 {
		page = 1
	}
	countQuery := `SELECT count(*) FROM jobs WHERE owner_id = $1 AND ($2 = '' OR status = $2);`
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, ownerID, string(status)).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := `
SELECT ` + jobColumns + `
FROM jobs
WHERE owner_id = $1 AND ($2 = '' OR status = $2)
ORDER BY created_at DESC
LIMIT $3 OFFSET $4;
`
	rows, err := r.pool.Query(ctx, listQuery, ownerID, string(status), pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := r.scanJob(rows)
		if err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

// CountSince counts the owner's jobs created at or after the given instant.
func (r *JobRepositoryPG) CountSince(ctx context.Context, ownerID string, since time.Time) (int, error) {
	query := `SELECT count(*) FROM jobs WHERE owner_id = $1 AND created_at >= $2;`
	var n int
	if err := r.pool.QueryRow(ctx, query, ownerID, since).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// FailStale fails every job submitted before the cutoff.
func (r *JobRepositoryPG) FailStale(ctx context.Context, cutoff time.Time, errorDetail string, finalizedAt time.Time) (int, error) {
	query := `
UPDATE jobs
SET status = 'failed',
    error_detail = $2,
    finalized_at = $3
WHERE status = 'submitted' AND submitted_at < $1;
`
	tag, err := r.pool.Exec(ctx, query, cutoff, errorDetail, finalizedAt)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *JobRepositoryPG) scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	var ticket *string
	if err := row.Scan(
		&job.ID,
		&job.OwnerID,
		&job.SourceRef,
		&job.SourceName,
		&job.SourceSize,
		&job.SourceFormat,
		&job.Parameters,
		&ticket,
		&job.Status,
		&job.ResultRef,
		&job.ErrorDetail,
		&job.CreatedAt,
		&job.SubmittedAt,
		&job.FinalizedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if ticket != nil {
		job.ProviderTicket = *ticket
	}
	return &job, nil
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
