package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"videostyler/internal/domain"
)

const (
	relocateMaxAttempts = 4
	relocateBaseDelay   = time.Second
	maxObjectBytes      = 512 << 20
)

// BlobWriter is the slice of FileStore the relocator needs.
type BlobWriter interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
}

// Object describes a relocated piece of media in durable storage.
type Object struct {
	URL         string
	Size        int64
	ContentType string
}

// RelocatorOptions configures a Relocator.
type RelocatorOptions struct {
	Store      BlobWriter
	BaseURL    string
	KeyPrefix  string
	HTTPClient *http.Client
	Logger     *zerolog.Logger
}

// Relocator fetches an externally hosted file and re-hosts it under this
// system's durable storage namespace. Individual fetches are not idempotent;
// callers must use only the returned URL.
type Relocator struct {
	store     BlobWriter
	baseURL   string
	keyPrefix string
	client    *http.Client
	logger    *zerolog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewRelocator constructs a relocator with sane defaults.
func NewRelocator(opts RelocatorOptions) (*Relocator, error) {
	if opts.Store == nil {
		return nil, errors.New("storage: blob store is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("storage: base url is required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	prefix := strings.Trim(opts.KeyPrefix, "/")
	if prefix == "" {
		prefix = "videos"
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	return &Relocator{
		store:     opts.Store,
		baseURL:   baseURL,
		keyPrefix: prefix,
		client:    client,
		logger:    logger,
		sleep:     sleepContext,
	}, nil
}

// Relocate downloads sourceURL and stores a copy, returning the durable
// object. Network failures, timeouts and remote 5xx responses wrap
// domain.ErrTransient; malformed input and remote 4xx wrap domain.ErrPermanent.
func (r *Relocator) Relocate(ctx context.Context, sourceURL string) (*Object, error) {
	parsed, err := url.Parse(strings.TrimSpace(sourceURL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("%w: invalid source url %q", domain.ErrPermanent, sourceURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build fetch request: %v", domain.ErrPermanent, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", domain.ErrTransient, parsed.Host, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: remote returned status %d", domain.ErrTransient, resp.StatusCode)
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: remote returned status %d", domain.ErrPermanent, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxObjectBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read remote body: %v", domain.ErrTransient, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: remote object is empty", domain.ErrPermanent)
	}

	contentType := resp.Header.Get("Content-Type")
	key := r.keyPrefix + "/" + uuid.NewString() + extensionFor(contentType, parsed.Path)
	storedKey, err := r.store.Write(ctx, key, data)
	if err != nil {
		return nil, fmt.Errorf("store relocated object: %w", err)
	}

	obj := &Object{
		URL:         r.baseURL + "/" + storedKey,
		Size:        int64(len(data)),
		ContentType: contentType,
	}
	r.logger.Debug().
		Str("source", parsed.String()).
		Str("key", storedKey).
		Int64("bytes", obj.Size).
		Msg("storage: relocated object")
	return obj, nil
}

// RelocateWithRetry retries Relocate with exponential backoff (1s, doubling)
// for transient failures only, up to four attempts in total. The job record is
// untouched between attempts; no lock is held during the waits.
func (r *Relocator) RelocateWithRetry(ctx context.Context, sourceURL string) (*Object, error) {
	delay := relocateBaseDelay
	var lastErr error
	for attempt := 1; attempt <= relocateMaxAttempts; attempt++ {
		obj, err := r.Relocate(ctx, sourceURL)
		if err == nil {
			return obj, nil
		}
		lastErr = err
		if !domain.IsTransient(err) || attempt == relocateMaxAttempts {
			break
		}
		r.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("storage: relocation failed, retrying")
		if err := r.sleep(ctx, delay); err != nil {
			return nil, err
		}
		delay *= 2
	}
	return nil, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func extensionFor(contentType, urlPath string) string {
	if contentType != "" {
		if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
			switch mediaType {
			case "video/mp4":
				return ".mp4"
			case "video/quicktime":
				return ".mov"
			case "video/x-msvideo":
				return ".avi"
			case "video/webm":
				return ".webm"
			}
		}
	}
	if ext := path.Ext(urlPath); ext != "" && len(ext) <= 5 {
		return ext
	}
	return ".mp4"
}
