package repo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"videostyler/internal/domain"
)

// JobRepositoryMemory implements domain.JobRepository in process memory. It is
// intended for development and test environments where PostgreSQL is not
// available; the guard semantics match the SQL implementation exactly.
type JobRepositoryMemory struct {
	mu      sync.Mutex
	jobs    map[string]*domain.Job
	tickets map[string]string
}

// NewMemoryJobRepository creates an empty in-memory job repository.
func NewMemoryJobRepository() *JobRepositoryMemory {
	return &JobRepositoryMemory{
		jobs:    make(map[string]*domain.Job),
		tickets: make(map[string]string),
	}
}

// Create inserts a new job record.
func (r *JobRepositoryMemory) Create(ctx context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.ID]; exists {
		return fmt.Errorf("%w: job %s already exists", domain.ErrConflict, job.ID)
	}
	stored := *job
	r.jobs[job.ID] = &stored
	return nil
}

// AttachTicket records the provider ticket and flips the job to "submitted".
func (r *JobRepositoryMemory) AttachTicket(ctx context.Context, jobID, ticket string, submittedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.tickets[ticket]; taken {
		return fmt.Errorf("%w: ticket %q already attached to another job", domain.ErrConflict, ticket)
	}
	job, ok := r.jobs[jobID]
	if !ok || job.Status != domain.JobStatusPending || job.ProviderTicket != "" {
		return fmt.Errorf("%w: job %s is not pending", domain.ErrConflict, jobID)
	}
	job.ProviderTicket = ticket
	job.Status = domain.JobStatusSubmitted
	at := submittedAt
	job.SubmittedAt = &at
	r.tickets[ticket] = jobID
	return nil
}

// FindByID fetches a job by identifier, scoped to its owner.
func (r *JobRepositoryMemory) FindByID(ctx context.Context, jobID, ownerID string) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok || job.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	copied := *job
	return &copied, nil
}

// FindByTicket fetches the job correlated with a provider ticket.
func (r *JobRepositoryMemory) FindByTicket(ctx context.Context, ticket string) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	jobID, ok := r.tickets[ticket]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *r.jobs[jobID]
	return &copied, nil
}

// Finalize applies the terminal state only while the job is still "submitted".
func (r *JobRepositoryMemory) Finalize(ctx context.Context, jobID string, status domain.JobStatus, resultRef, errorDetail string, finalizedAt time.Time) error {
	if !status.Terminal() {
		return fmt.Errorf("%w: %q is not a terminal status", domain.ErrValidation, status)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok || job.Status != domain.JobStatusSubmitted {
		return fmt.Errorf("%w: job %s is not submitted", domain.ErrConflict, jobID)
	}
	job.Status = status
	job.ResultRef = resultRef
	job.ErrorDetail = errorDetail
	at := finalizedAt
	job.FinalizedAt = &at
	return nil
}

// FailPending moves a job that never reached the provider to "failed".
func (r *JobRepositoryMemory) FailPending(ctx context.Context, jobID, errorDetail string, finalizedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok || job.Status != domain.JobStatusPending {
		return fmt.Errorf("%w: job %s is not pending", domain.ErrConflict, jobID)
	}
	job.Status = domain.JobStatusFailed
	job.ErrorDetail = errorDetail
	at := finalizedAt
	job.FinalizedAt = &at
	return nil
}

// ListByOwner returns one page of the owner's jobs, newest first.
func (r *JobRepositoryMemory) ListByOwner(ctx context.Context, ownerID string, status domain.JobStatus, page, pageSize int) ([]domain.Job, int, error) {
	if page < 1 {
		page = 1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []domain.Job
	for _, job := range r.jobs {
		if job.OwnerID != ownerID {
			continue
		}
		if status != "" && job.Status != status {
			continue
		}
		matched = append(matched, *job)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := len(matched)
	start := (page - 1) * pageSize
	if start >= total {
		return nil, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// CountSince counts the owner's jobs created at or after the given instant.
func (r *JobRepositoryMemory) CountSince(ctx context.Context, ownerID string, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, job := range r.jobs {
		if job.OwnerID == ownerID && !job.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// FailStale fails every job submitted before the cutoff.
func (r *JobRepositoryMemory) FailStale(ctx context.Context, cutoff time.Time, errorDetail string, finalizedAt time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, job := range r.jobs {
		if job.Status != domain.JobStatusSubmitted || job.SubmittedAt == nil || !job.SubmittedAt.Before(cutoff) {
			continue
		}
		job.Status = domain.JobStatusFailed
		job.ErrorDetail = errorDetail
		at := finalizedAt
		job.FinalizedAt = &at
		n++
	}
	return n, nil
}

var _ domain.JobRepository = (*JobRepositoryMemory)(nil)
