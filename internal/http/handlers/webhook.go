package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"videostyler/internal/lifecycle"
	"videostyler/internal/providers/fal"
)

const maxCallbackBody = 1 << 20

// ProviderCallback consumes the inference provider's completion webhook.
// Delivery is at-least-once; any successfully handled delivery (including a
// duplicate) must get a 200 or the provider keeps redelivering.
func (a *App) ProviderCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "unreadable body")
		return
	}

	signature := r.Header.Get(fal.SignatureHeader)
	if !fal.VerifySignature(a.CallbackSecret, body, signature) {
		a.Logger.Warn().Str("remote", r.RemoteAddr).Msg("handlers: rejected callback with bad signature")
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing or invalid signature")
		return
	}

	var payload fal.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	ticket := strings.TrimSpace(payload.RequestID)
	if ticket == "" {
		ticket = strings.TrimSpace(r.URL.Query().Get("request_id"))
	}

	err = a.Coordinator.HandleCallback(r.Context(), lifecycle.Callback{
		Ticket:       ticket,
		OK:           payload.OK(),
		ResultURL:    payload.ResultURL(),
		ErrorMessage: payload.ErrorMessage(),
	})
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"message": "callback processed"})
}
