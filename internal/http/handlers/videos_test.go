package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videostyler/internal/adapter/repo"
	"videostyler/internal/domain"
	"videostyler/internal/lifecycle"
	"videostyler/internal/middleware"
	"videostyler/internal/storage"
)

type stubStore struct {
	fail error
}

func (s *stubStore) Relocate(ctx context.Context, sourceURL string) (*storage.Object, error) {
	if s.fail != nil {
		return nil, s.fail
	}
	return &storage.Object{URL: "https://store/" + path.Base(sourceURL), Size: 64, ContentType: "video/mp4"}, nil
}

func (s *stubStore) RelocateWithRetry(ctx context.Context, sourceURL string) (*storage.Object, error) {
	return s.Relocate(ctx, sourceURL)
}

type stubProvider struct {
	ticket string
	params map[string]any
}

func (p *stubProvider) Submit(ctx context.Context, params map[string]any) (string, error) {
	p.params = params
	return p.ticket, nil
}

type appFixture struct {
	app      *App
	repo     *repo.JobRepositoryMemory
	store    *stubStore
	provider *stubProvider
}

func newAppFixture(t *testing.T) *appFixture {
	t.Helper()
	f := &appFixture{
		repo:     repo.NewMemoryJobRepository(),
		store:    &stubStore{},
		provider: &stubProvider{ticket: "tkt-1"},
	}
	coord, err := lifecycle.NewCoordinator(lifecycle.CoordinatorOptions{
		Repo:     f.repo,
		Store:    f.store,
		Provider: f.provider,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)
	f.app = NewApp(coord, lifecycle.NewQuery(f.repo), "hook-secret", zerolog.Nop())
	return f
}

func authedRequest(method, target, body, userID string) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	if userID != "" {
		r = r.WithContext(middleware.WithUserID(r.Context(), userID))
	}
	return r
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestVideosTransform(t *testing.T) {
	f := newAppFixture(t)
	payload := `{"source_url":"https://uploads.example.com/src.mp4","source_name":"src.mp4","parameters":{"prompt":"anime style"}}`

	rec := httptest.NewRecorder()
	f.app.VideosTransform(rec, authedRequest(http.MethodPost, "/v1/videos/transform", payload, "owner-1"))

	require.Equal(t, http.StatusAccepted, rec.Code)
	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["job_id"])
	assert.Equal(t, "submitted", body["status"])

	// The request locale rides along to the provider.
	assert.Equal(t, "en", f.provider.params["locale"])
}

func TestVideosTransform_Errors(t *testing.T) {
	f := newAppFixture(t)
	payload := `{"source_url":"https://uploads.example.com/src.mp4","parameters":{"prompt":"x"}}`

	rec := httptest.NewRecorder()
	f.app.VideosTransform(rec, authedRequest(http.MethodPost, "/v1/videos/transform", payload, ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	f.app.VideosTransform(rec, authedRequest(http.MethodPost, "/v1/videos/transform", `{not json`, "owner-1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	f.app.VideosTransform(rec, authedRequest(http.MethodPost, "/v1/videos/transform",
		`{"source_url":"https://x/y.mp4","parameters":{"prompt":""}}`, "owner-1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.store.fail = fmt.Errorf("%w: unreachable", domain.ErrTransient)
	rec = httptest.NewRecorder()
	f.app.VideosTransform(rec, authedRequest(http.MethodPost, "/v1/videos/transform", payload, "owner-1"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestVideoStatus(t *testing.T) {
	f := newAppFixture(t)
	payload := `{"source_url":"https://uploads.example.com/src.mp4","parameters":{"prompt":"x"}}`
	rec := httptest.NewRecorder()
	f.app.VideosTransform(rec, authedRequest(http.MethodPost, "/v1/videos/transform", payload, "owner-1"))
	require.Equal(t, http.StatusAccepted, rec.Code)
	jobID := decodeBody(t, rec)["job_id"].(string)

	statusReq := func(id, owner string) *httptest.ResponseRecorder {
		r := authedRequest(http.MethodGet, "/v1/videos/"+id, "", owner)
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("job_id", id)
		r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
		rec := httptest.NewRecorder()
		f.app.VideoStatus(rec, r)
		return rec
	}

	rec = statusReq(jobID, "owner-1")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "submitted", body["status"])
	assert.Equal(t, "https://store/src.mp4", body["source_url"])
	assert.NotContains(t, body, "result_url")
	assert.NotContains(t, body, "error")

	assert.Equal(t, http.StatusNotFound, statusReq(jobID, "owner-2").Code)
	assert.Equal(t, http.StatusNotFound, statusReq("nope", "owner-1").Code)
	assert.Equal(t, http.StatusUnauthorized, statusReq(jobID, "").Code)
}

func TestVideosHistory(t *testing.T) {
	f := newAppFixture(t)
	for i := 0; i < 3; i++ {
		f.provider.ticket = fmt.Sprintf("tkt-%d", i)
		payload := `{"source_url":"https://uploads.example.com/src.mp4","parameters":{"prompt":"x"}}`
		rec := httptest.NewRecorder()
		f.app.VideosTransform(rec, authedRequest(http.MethodPost, "/v1/videos/transform", payload, "owner-1"))
		require.Equal(t, http.StatusAccepted, rec.Code)
	}

	rec := httptest.NewRecorder()
	f.app.VideosHistory(rec, authedRequest(http.MethodGet, "/v1/videos?page=1&page_size=2", "", "owner-1"))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	items := body["items"].([]any)
	assert.Len(t, items, 2)
	pagination := body["pagination"].(map[string]any)
	assert.Equal(t, float64(1), pagination["currentPage"])
	assert.Equal(t, float64(2), pagination["totalPages"])
	assert.Equal(t, float64(3), pagination["totalRecords"])
	assert.Equal(t, true, pagination["hasNextPage"])
	assert.Equal(t, false, pagination["hasPreviousPage"])

	rec = httptest.NewRecorder()
	f.app.VideosHistory(rec, authedRequest(http.MethodGet, "/v1/videos?status=bogus", "", "owner-1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	f.app.VideosHistory(rec, authedRequest(http.MethodGet, "/v1/videos", "", ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
