package fal

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "X-Callback-Signature"

// Webhook outcome values sent by the queue.
const (
	WebhookStatusOK    = "OK"
	WebhookStatusError = "ERROR"
)

// WebhookVideo describes the transformed media referenced by a callback.
type WebhookVideo struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
	FileName    string `json:"file_name,omitempty"`
	FileSize    int64  `json:"file_size,omitempty"`
}

// WebhookOutput is the payload attached to a successful callback.
type WebhookOutput struct {
	Video WebhookVideo `json:"video"`
	Seed  *int64       `json:"seed,omitempty"`
}

// WebhookPayload is the body the queue POSTs to the callback endpoint when a
// request finishes. Delivery is at-least-once; handlers must tolerate
// duplicates.
type WebhookPayload struct {
	RequestID        string         `json:"request_id"`
	GatewayRequestID string         `json:"gateway_request_id,omitempty"`
	Status           string         `json:"status"`
	Error            string         `json:"error,omitempty"`
	Payload          *WebhookOutput `json:"payload,omitempty"`
	PayloadError     string         `json:"payload_error,omitempty"`
}

// OK reports whether the callback signals a successful transformation.
func (p *WebhookPayload) OK() bool {
	return strings.EqualFold(p.Status, WebhookStatusOK) && p.Error == ""
}

// ResultURL returns the transformed media URL, if any.
func (p *WebhookPayload) ResultURL() string {
	if p.Payload == nil {
		return ""
	}
	return strings.TrimSpace(p.Payload.Video.URL)
}

// ErrorMessage returns the provider-supplied failure reason, if any.
func (p *WebhookPayload) ErrorMessage() string {
	if p.Error != "" {
		return p.Error
	}
	return p.PayloadError
}

// SignPayload computes the hex HMAC-SHA256 of body under secret.
func SignPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the callback signature in constant time. No state
// mutation may happen before this check passes.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := SignPayload(secret, body)
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature)))
}
