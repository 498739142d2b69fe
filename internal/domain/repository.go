package domain

import (
	"context"
	"time"
)

// JobRepository defines persistence for job records. All mutations are
// single-row atomic updates; Finalize and AttachTicket carry a status guard
// and return ErrConflict when the guard does not hold.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	AttachTicket(ctx context.Context, jobID, ticket string, submittedAt time.Time) error
	FindByID(ctx context.Context, jobID, ownerID string) (*Job, error)
	FindByTicket(ctx context.Context, ticket string) (*Job, error)
	// Finalize moves a submitted job to a terminal status. The update applies
	// only while the current status is still "submitted", which makes duplicate
	// webhook deliveries race-safe: the second writer gets ErrConflict.
	Finalize(ctx context.Context, jobID string, status JobStatus, resultRef, errorDetail string, finalizedAt time.Time) error
	// FailPending moves a pending job to failed when provider submission never
	// succeeded. Guarded on status "pending".
	FailPending(ctx context.Context, jobID, errorDetail string, finalizedAt time.Time) error
	ListByOwner(ctx context.Context, ownerID string, status JobStatus, page, pageSize int) ([]Job, int, error)
	CountSince(ctx context.Context, ownerID string, since time.Time) (int, error)
	// FailStale fails every job submitted before the cutoff and returns how
	// many rows were affected.
	FailStale(ctx context.Context, cutoff time.Time, errorDetail string, finalizedAt time.Time) (int, error)
}
