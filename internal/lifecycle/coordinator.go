package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"videostyler/internal/domain"
	"videostyler/internal/storage"
)

// ObjectStore relocates remotely hosted media into durable storage.
type ObjectStore interface {
	Relocate(ctx context.Context, sourceURL string) (*storage.Object, error)
	RelocateWithRetry(ctx context.Context, sourceURL string) (*storage.Object, error)
}

// Provider submits transformation work to the external inference queue and
// returns a ticket that a later webhook will reference.
type Provider interface {
	Submit(ctx context.Context, params map[string]any) (string, error)
}

// CoordinatorOptions configures a Coordinator.
type CoordinatorOptions struct {
	Repo          domain.JobRepository
	Store         ObjectStore
	Provider      Provider
	Logger        zerolog.Logger
	DailyJobLimit int
}

// Coordinator owns the job lifecycle: it accepts submissions, hands work to
// the inference provider and later consumes the provider's callback to
// finalize the record. All status writes go through the repository's guarded
// single-row updates, so concurrent submissions, callbacks and sweeps never
// need application-level locking.
type Coordinator struct {
	repo       domain.JobRepository
	store      ObjectStore
	provider   Provider
	logger     zerolog.Logger
	dailyLimit int

	now func() time.Time
}

// NewCoordinator wires a coordinator from its collaborators.
func NewCoordinator(opts CoordinatorOptions) (*Coordinator, error) {
	if opts.Repo == nil {
		return nil, errors.New("lifecycle: job repository is required")
	}
	if opts.Store == nil {
		return nil, errors.New("lifecycle: object store is required")
	}
	if opts.Provider == nil {
		return nil, errors.New("lifecycle: provider is required")
	}
	return &Coordinator{
		repo:       opts.Repo,
		store:      opts.Store,
		provider:   opts.Provider,
		logger:     opts.Logger,
		dailyLimit: opts.DailyJobLimit,
		now:        time.Now,
	}, nil
}

// SubmitRequest carries a validated owner's submission.
type SubmitRequest struct {
	OwnerID    string
	SourceURL  string
	SourceName string
	Parameters map[string]any
}

// Submit relocates the source media, records the job and queues the
// transformation. The returned job is in status "submitted" on success. A
// provider failure finalizes the job as failed before the error is returned,
// so no job is ever left pending without a ticket.
func (c *Coordinator) Submit(ctx context.Context, req SubmitRequest) (*domain.Job, error) {
	if req.OwnerID == "" {
		return nil, fmt.Errorf("%w: missing owner", domain.ErrUnauthorized)
	}
	if strings.TrimSpace(req.SourceURL) == "" {
		return nil, fmt.Errorf("%w: source_url is required", domain.ErrValidation)
	}
	params, err := domain.ValidateParameters(req.Parameters)
	if err != nil {
		return nil, err
	}

	now := c.now().UTC()
	if c.dailyLimit > 0 {
		since := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		used, err := c.repo.CountSince(ctx, req.OwnerID, since)
		if err != nil {
			return nil, fmt.Errorf("check daily usage: %w", err)
		}
		if used >= c.dailyLimit {
			return nil, fmt.Errorf("%w: daily limit of %d jobs reached", domain.ErrQuotaExceeded, c.dailyLimit)
		}
	}

	obj, err := c.store.RelocateWithRetry(ctx, req.SourceURL)
	if err != nil {
		return nil, fmt.Errorf("relocate source: %w", err)
	}
	params["video_url"] = obj.URL

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("%w: encode parameters: %v", domain.ErrValidation, err)
	}

	job := &domain.Job{
		ID:           uuid.NewString(),
		OwnerID:      req.OwnerID,
		SourceRef:    obj.URL,
		SourceName:   strings.TrimSpace(req.SourceName),
		SourceSize:   obj.Size,
		SourceFormat: obj.ContentType,
		Parameters:   paramsJSON,
		Status:       domain.JobStatusPending,
		CreatedAt:    now,
	}
	if err := c.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job record: %w", err)
	}
	c.logger.Info().
		Str("job_id", job.ID).
		Str("owner_id", job.OwnerID).
		Msg("lifecycle: job created")

	ticket, err := c.provider.Submit(ctx, params)
	if err != nil {
		finalizedAt := c.now().UTC()
		if failErr := c.repo.FailPending(ctx, job.ID, err.Error(), finalizedAt); failErr != nil {
			c.logger.Error().Err(failErr).Str("job_id", job.ID).Msg("lifecycle: failed to mark job failed after submit error")
		}
		return nil, fmt.Errorf("submit to provider: %w", err)
	}

	submittedAt := c.now().UTC()
	if err := c.repo.AttachTicket(ctx, job.ID, ticket, submittedAt); err != nil {
		return nil, fmt.Errorf("attach ticket: %w", err)
	}
	job.ProviderTicket = ticket
	job.Status = domain.JobStatusSubmitted
	job.SubmittedAt = &submittedAt

	c.logger.Info().
		Str("job_id", job.ID).
		Str("ticket", ticket).
		Msg("lifecycle: job submitted to provider")
	return job, nil
}

// Callback is the normalized inbound completion notification.
type Callback struct {
	Ticket       string
	OK           bool
	ResultURL    string
	ErrorMessage string
}

const defaultFailureMessage = "transformation failed without error detail"

// HandleCallback finalizes the job referenced by the callback ticket. It is
// idempotent: duplicate deliveries for an already-terminal job return nil, and
// a lost race on the conditional finalize is treated the same way. The
// provider must receive success for any handled delivery or it keeps
// redelivering.
func (c *Coordinator) HandleCallback(ctx context.Context, cb Callback) error {
	if strings.TrimSpace(cb.Ticket) == "" {
		return fmt.Errorf("%w: missing ticket", domain.ErrValidation)
	}

	job, err := c.repo.FindByTicket(ctx, cb.Ticket)
	if err != nil {
		return fmt.Errorf("lookup ticket %q: %w", cb.Ticket, err)
	}
	if job.Status.Terminal() {
		c.logger.Debug().
			Str("job_id", job.ID).
			Str("ticket", cb.Ticket).
			Msg("lifecycle: duplicate callback for terminal job")
		return nil
	}

	if !cb.OK || cb.ResultURL == "" {
		msg := cb.ErrorMessage
		if msg == "" {
			msg = defaultFailureMessage
		}
		return c.finalize(ctx, job.ID, domain.JobStatusFailed, "", msg)
	}

	obj, err := c.store.RelocateWithRetry(ctx, cb.ResultURL)
	if err != nil {
		// The remote transformation succeeded but its output could not be
		// captured durably. Surfaced under the same failed status, with a
		// message that distinguishes it from a provider-side failure.
		c.logger.Error().
			Err(err).
			Str("job_id", job.ID).
			Str("result_url", cb.ResultURL).
			Msg("lifecycle: result relocation exhausted retries")
		msg := fmt.Sprintf("result relocation failed: %v", err)
		return c.finalize(ctx, job.ID, domain.JobStatusFailed, "", msg)
	}

	return c.finalize(ctx, job.ID, domain.JobStatusCompleted, obj.URL, "")
}

func (c *Coordinator) finalize(ctx context.Context, jobID string, status domain.JobStatus, resultRef, errorDetail string) error {
	err := c.repo.Finalize(ctx, jobID, status, resultRef, errorDetail, c.now().UTC())
	if errors.Is(err, domain.ErrConflict) {
		// Another delivery won the conditional update first.
		c.logger.Debug().Str("job_id", jobID).Msg("lifecycle: finalize lost race, treating as no-op")
		return nil
	}
	if err != nil {
		return fmt.Errorf("finalize job %s: %w", jobID, err)
	}
	c.logger.Info().
		Str("job_id", jobID).
		Str("status", string(status)).
		Msg("lifecycle: job finalized")
	return nil
}
