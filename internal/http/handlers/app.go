package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"videostyler/internal/domain"
	"videostyler/internal/infra"
	"videostyler/internal/lifecycle"
	"videostyler/internal/middleware"
)

// App is the handler container; it carries the lifecycle services and the
// shared response helpers.
type App struct {
	Coordinator    *lifecycle.Coordinator
	Query          *lifecycle.Query
	CallbackSecret string
	Logger         infra.Logger
}

// NewApp wires the handler container.
func NewApp(coordinator *lifecycle.Coordinator, query *lifecycle.Query, callbackSecret string, logger infra.Logger) *App {
	return &App{
		Coordinator:    coordinator,
		Query:          query,
		CallbackSecret: callbackSecret,
		Logger:         logger,
	}
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]any{
		"error": map[string]string{"code": errCode, "message": message},
	})
}

// domainError maps the error taxonomy onto HTTP statuses. Adapter and store
// failures surface as 500; their detail stays in the logs and on the job
// record, not in the response body.
func (a *App) domainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
	case errors.Is(err, domain.ErrQuotaExceeded):
		a.error(w, http.StatusForbidden, "quota_exceeded", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "job not found")
	default:
		a.Logger.Error().Err(err).Msg("handlers: request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}
