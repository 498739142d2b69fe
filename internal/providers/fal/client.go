package fal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"videostyler/internal/domain"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("fal: api key is required")

// Options configures the fal queue client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	WebhookURL     string
	HTTPClient     *http.Client
	Logger         *zerolog.Logger
	RequestTimeout time.Duration
}

// Client submits transformation requests to the fal queue API. Submissions
// return a request ticket immediately; completion is signalled later through
// the registered webhook.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	webhookURL string
	httpClient *http.Client
	logger     *zerolog.Logger
}

type queueResponse struct {
	RequestID   string `json:"request_id"`
	GatewayURL  string `json:"gateway_request_url"`
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
}

type errorResponse struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 45 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://queue.fal.run"
	}
	model := strings.Trim(strings.TrimSpace(opts.Model), "/")
	if model == "" {
		model = "fal-ai/hunyuan-video/video-to-video"
	}
	var logger *zerolog.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		webhookURL: strings.TrimSpace(opts.WebhookURL),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Submit enqueues a transformation and returns the queue ticket. The call
// never blocks until completion. Missing required parameters wrap
// domain.ErrValidation; unreachable or overloaded remotes wrap
// domain.ErrTransient; any other remote rejection wraps domain.ErrPermanent.
func (c *Client) Submit(ctx context.Context, params map[string]any) (string, error) {
	if !c.HasCredentials() {
		return "", ErrMissingAPIKey
	}
	if prompt, _ := params["prompt"].(string); strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: prompt is required", domain.ErrValidation)
	}
	if videoURL, _ := params["video_url"].(string); strings.TrimSpace(videoURL) == "" {
		return "", fmt.Errorf("%w: video_url is required", domain.ErrValidation)
	}

	endpoint := c.baseURL + "/" + c.model
	if c.webhookURL != "" {
		endpoint += "?fal_webhook=" + url.QueryEscape(c.webhookURL)
	}
	body, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("fal: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("fal: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Key "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: fal: submit request: %v", domain.ErrTransient, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: fal: read response: %v", domain.ErrTransient, err)
	}

	if resp.StatusCode >= 300 {
		return "", c.remoteError(resp.StatusCode, raw)
	}

	var decoded queueResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("%w: fal: decode response: %v", domain.ErrPermanent, err)
	}
	if strings.TrimSpace(decoded.RequestID) == "" {
		return "", fmt.Errorf("%w: fal: response missing request_id", domain.ErrPermanent)
	}

	c.logger.Info().
		Str("model", c.model).
		Str("request_id", decoded.RequestID).
		Msg("fal: queued transformation")
	return decoded.RequestID, nil
}

func (c *Client) remoteError(status int, raw []byte) error {
	detail := remoteErrorDetail(raw)
	switch {
	case status >= 500 || status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: fal: status %d: %s", domain.ErrTransient, status, detail)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: fal: status %d: %s", domain.ErrValidation, status, detail)
	default:
		return fmt.Errorf("%w: fal: status %d: %s", domain.ErrPermanent, status, detail)
	}
}

func remoteErrorDetail(raw []byte) string {
	var decoded errorResponse
	if err := json.Unmarshal(raw, &decoded); err == nil {
		if decoded.Message != "" {
			return decoded.Message
		}
		if len(decoded.Detail) > 0 {
			return string(decoded.Detail)
		}
	}
	detail := strings.TrimSpace(string(raw))
	if detail == "" {
		detail = "no error detail"
	}
	if len(detail) > 256 {
		detail = detail[:256]
	}
	return detail
}
