package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videostyler/internal/domain"
	"videostyler/internal/providers/fal"
)

func submitJob(t *testing.T, f *appFixture, ticket string) string {
	t.Helper()
	f.provider.ticket = ticket
	payload := `{"source_url":"https://uploads.example.com/src.mp4","parameters":{"prompt":"x"}}`
	rec := httptest.NewRecorder()
	f.app.VideosTransform(rec, authedRequest(http.MethodPost, "/v1/videos/transform", payload, "owner-1"))
	require.Equal(t, http.StatusAccepted, rec.Code)
	return decodeBody(t, rec)["job_id"].(string)
}

func signedCallback(secret, body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/v1/videos/callback", strings.NewReader(body))
	r.Header.Set(fal.SignatureHeader, fal.SignPayload(secret, []byte(body)))
	return r
}

func TestProviderCallback_CompletesJob(t *testing.T) {
	f := newAppFixture(t)
	jobID := submitJob(t, f, "tkt-1")

	body := `{"request_id":"tkt-1","status":"OK","payload":{"video":{"url":"https://cdn.fal.ai/r1.mp4"}}}`
	rec := httptest.NewRecorder()
	f.app.ProviderCallback(rec, signedCallback("hook-secret", body))
	require.Equal(t, http.StatusOK, rec.Code)

	job, err := f.repo.FindByID(context.Background(), jobID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, "https://store/r1.mp4", job.ResultRef)
}

func TestProviderCallback_FailsJob(t *testing.T) {
	f := newAppFixture(t)
	jobID := submitJob(t, f, "tkt-1")

	body := `{"request_id":"tkt-1","status":"ERROR","error":"unsafe content"}`
	rec := httptest.NewRecorder()
	f.app.ProviderCallback(rec, signedCallback("hook-secret", body))
	require.Equal(t, http.StatusOK, rec.Code)

	job, err := f.repo.FindByID(context.Background(), jobID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Equal(t, "unsafe content", job.ErrorDetail)
}

func TestProviderCallback_RejectsBadSignature(t *testing.T) {
	f := newAppFixture(t)
	submitJob(t, f, "tkt-1")

	body := `{"request_id":"tkt-1","status":"OK","payload":{"video":{"url":"https://cdn.fal.ai/r1.mp4"}}}`

	// Missing signature.
	rec := httptest.NewRecorder()
	f.app.ProviderCallback(rec, httptest.NewRequest(http.MethodPost, "/v1/videos/callback", strings.NewReader(body)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Signed with the wrong secret.
	rec = httptest.NewRecorder()
	f.app.ProviderCallback(rec, signedCallback("wrong-secret", body))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Body altered after signing.
	r := signedCallback("hook-secret", body)
	tampered := strings.Replace(body, "r1.mp4", "evil.mp4", 1)
	r.Body = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tampered)).Body
	rec = httptest.NewRecorder()
	f.app.ProviderCallback(rec, r)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Nothing was finalized by the rejected deliveries.
	job, err := f.repo.FindByTicket(context.Background(), "tkt-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusSubmitted, job.Status)
}

func TestProviderCallback_DuplicateDelivery(t *testing.T) {
	f := newAppFixture(t)
	jobID := submitJob(t, f, "tkt-1")

	body := `{"request_id":"tkt-1","status":"OK","payload":{"video":{"url":"https://cdn.fal.ai/r1.mp4"}}}`
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		f.app.ProviderCallback(rec, signedCallback("hook-secret", body))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	job, err := f.repo.FindByID(context.Background(), jobID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
}

func TestProviderCallback_BadPayloads(t *testing.T) {
	f := newAppFixture(t)

	rec := httptest.NewRecorder()
	f.app.ProviderCallback(rec, signedCallback("hook-secret", `{not json`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Valid signature, unknown ticket.
	rec = httptest.NewRecorder()
	f.app.ProviderCallback(rec, signedCallback("hook-secret", `{"request_id":"tkt-ghost","status":"OK"}`))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// No ticket anywhere in the delivery.
	rec = httptest.NewRecorder()
	f.app.ProviderCallback(rec, signedCallback("hook-secret", `{"status":"OK"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProviderCallback_TicketFromQueryFallback(t *testing.T) {
	f := newAppFixture(t)
	jobID := submitJob(t, f, "tkt-1")

	body := `{"status":"ERROR","error":"boom"}`
	r := httptest.NewRequest(http.MethodPost, "/v1/videos/callback?request_id=tkt-1", strings.NewReader(body))
	r.Header.Set(fal.SignatureHeader, fal.SignPayload("hook-secret", []byte(body)))
	rec := httptest.NewRecorder()
	f.app.ProviderCallback(rec, r)
	require.Equal(t, http.StatusOK, rec.Code)

	job, err := f.repo.FindByID(context.Background(), jobID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
}
