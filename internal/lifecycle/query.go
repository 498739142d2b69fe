package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"videostyler/internal/domain"
)

const (
	defaultPageSize = 10
	maxPageSize     = 50
)

// Pagination describes the position of a history page.
type Pagination struct {
	CurrentPage     int  `json:"currentPage"`
	TotalPages      int  `json:"totalPages"`
	TotalRecords    int  `json:"totalRecords"`
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
}

// HistoryPage is one page of an owner's job history, newest first.
type HistoryPage struct {
	Items      []domain.Job
	Pagination Pagination
}

// Query is the read side of the job store. It never mutates state.
type Query struct {
	repo domain.JobRepository
}

// NewQuery constructs the status/history query service.
func NewQuery(repo domain.JobRepository) *Query {
	return &Query{repo: repo}
}

// Status returns a single job, visible only to its owner.
func (q *Query) Status(ctx context.Context, jobID, ownerID string) (*domain.Job, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, fmt.Errorf("%w: job id is required", domain.ErrValidation)
	}
	if ownerID == "" {
		return nil, fmt.Errorf("%w: missing owner", domain.ErrUnauthorized)
	}
	return q.repo.FindByID(ctx, jobID, ownerID)
}

// History lists the owner's jobs ordered by creation time descending, with an
// optional status filter. Page numbering starts at 1.
func (q *Query) History(ctx context.Context, ownerID string, status domain.JobStatus, page, pageSize int) (*HistoryPage, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: missing owner", domain.ErrUnauthorized)
	}
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, status)
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	items, total, err := q.repo.ListByOwner(ctx, ownerID, status, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	totalPages := (total + pageSize - 1) / pageSize
	return &HistoryPage{
		Items: items,
		Pagination: Pagination{
			CurrentPage:     page,
			TotalPages:      totalPages,
			TotalRecords:    total,
			HasNextPage:     page < totalPages,
			HasPreviousPage: page > 1,
		},
	}, nil
}
