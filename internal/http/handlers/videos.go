package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"videostyler/internal/domain"
	"videostyler/internal/lifecycle"
	"videostyler/internal/middleware"
)

type transformRequest struct {
	SourceURL  string         `json:"source_url"`
	SourceName string         `json:"source_name"`
	Parameters map[string]any `json:"parameters"`
}

type transformResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// VideosTransform accepts a style-transfer submission and returns the job id.
// The transformation itself completes asynchronously via the provider webhook.
func (a *App) VideosTransform(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req transformRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if len(req.Parameters) > 0 {
		if _, ok := req.Parameters["locale"]; !ok {
			req.Parameters["locale"] = middleware.LocaleFromContext(r.Context())
		}
	}

	job, err := a.Coordinator.Submit(r.Context(), lifecycle.SubmitRequest{
		OwnerID:    userID,
		SourceURL:  req.SourceURL,
		SourceName: req.SourceName,
		Parameters: req.Parameters,
	})
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, transformResponse{JobID: job.ID, Status: string(job.Status)})
}

// VideoStatus returns the public fields of one job for its owner.
func (a *App) VideoStatus(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	job, err := a.Query.Status(r.Context(), jobID, userID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, jobPayload(*job))
}

// VideosHistory lists the owner's jobs, newest first, with pagination
// metadata and an optional status filter.
func (a *App) VideosHistory(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", 10)
	status := domain.JobStatus(r.URL.Query().Get("status"))

	result, err := a.Query.History(r.Context(), userID, status, page, pageSize)
	if err != nil {
		a.domainError(w, err)
		return
	}

	items := make([]map[string]any, 0, len(result.Items))
	for _, job := range result.Items {
		items = append(items, jobPayload(job))
	}
	a.json(w, http.StatusOK, map[string]any{
		"items":      items,
		"pagination": result.Pagination,
	})
}

func jobPayload(job domain.Job) map[string]any {
	payload := map[string]any{
		"id":            job.ID,
		"status":        string(job.Status),
		"source_url":    job.SourceRef,
		"source_name":   job.SourceName,
		"source_size":   job.SourceSize,
		"source_format": job.SourceFormat,
		"parameters":    json.RawMessage(job.Parameters),
		"created_at":    job.CreatedAt,
	}
	if job.ResultRef != "" {
		payload["result_url"] = job.ResultRef
	}
	if job.ErrorDetail != "" {
		payload["error"] = job.ErrorDetail
	}
	if job.SubmittedAt != nil {
		payload["submitted_at"] = job.SubmittedAt.Format(time.RFC3339Nano)
	}
	if job.FinalizedAt != nil {
		payload["finalized_at"] = job.FinalizedAt.Format(time.RFC3339Nano)
	}
	return payload
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
