package metadata

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/onnwee/vod-danmaku/danmaku"
	"github.com/onnwee/vod-danmaku/telemetry"
)

const (
	maxDocumentBytes = 128 << 20
	maxErrorBody     = 512
)

// Client fetches and decodes chat documents from the CDN.
type Client struct {
	urls    URLs
	http    *http.Client
	retries int
	backoff time.Duration
	log     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRetries sets how many times a retryable failure is retried.
func WithRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.retries = n
		}
	}
}

// WithBackoff sets the base delay between attempts.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.backoff = d
		}
	}
}

// NewClient returns a client resolving documents against urls.
func NewClient(urls URLs, opts ...Option) *Client {
	c := &Client{
		urls:    urls,
		http:    &http.Client{Timeout: 10 * time.Second},
		retries: 2,
		backoff: 500 * time.Millisecond,
		log:     slog.Default().With(slog.String("component", "metadata")),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// URLs returns the URL builder the client uses.
func (c *Client) URLs() URLs { return c.urls }

// Load implements replay.Loader.
func (c *Client) Load(ctx context.Context, uuid string) ([]danmaku.Event, error) {
	return c.Fetch(ctx, uuid)
}

// Fetch downloads and parses the chat document of uuid. A 404 means the video
// has no chat log and yields nil, nil. Every other failure wraps ErrFetch or
// ErrParse.
func (c *Client) Fetch(ctx context.Context, uuid string) ([]danmaku.Event, error) {
	_, events, err := c.fetch(ctx, uuid, false)
	return events, err
}

// FetchDocument is Fetch that also decodes the recording header, which is nil
// when the document has none or the video has no chat log.
func (c *Client) FetchDocument(ctx context.Context, uuid string) (*danmaku.Header, []danmaku.Event, error) {
	return c.fetch(ctx, uuid, true)
}

func (c *Client) fetch(ctx context.Context, uuid string, withHeader bool) (*danmaku.Header, []danmaku.Event, error) {
	ctx, span := telemetry.StartSpan(ctx, "metadata", "metadata.fetch", telemetry.VideoAttr(uuid))
	defer span.End()
	start := time.Now()

	var lastErr error
attempts:
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			wait := c.backoff * time.Duration(1<<(attempt-1))
			if c.backoff > 0 {
				wait += time.Duration(rand.Int63n(int64(c.backoff))) // jitter
			}
			c.log.Warn("retrying metadata fetch", slog.String("uuid", uuid), slog.Int("attempt", attempt), slog.Duration("backoff", wait), slog.Any("err", lastErr))
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				break attempts
			case <-time.After(wait):
			}
		}

		header, events, missing, err := c.fetchOnce(ctx, uuid, withHeader)
		if err == nil {
			outcome := telemetry.OutcomeOK
			if missing {
				outcome = telemetry.OutcomeMissing
			}
			telemetry.RecordMetadataLoad(outcome, time.Since(start))
			telemetry.RecordParsed(danmaku.CountByKind(events))
			telemetry.SetSpanSuccess(span)
			return header, events, nil
		}
		lastErr = err
		if ctx.Err() != nil || !IsRetryableError(err) {
			break
		}
	}

	telemetry.RecordMetadataLoad(telemetry.OutcomeError, time.Since(start))
	telemetry.RecordError(span, lastErr)
	return nil, nil, lastErr
}

func (c *Client) fetchOnce(ctx context.Context, uuid string, withHeader bool) (*danmaku.Header, []danmaku.Event, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.urls.Metadata(uuid), nil)
	if err != nil {
		return nil, nil, false, fmt.Errorf("%w: build request: %w", ErrFetch, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, false, fmt.Errorf("%w: %s: %w", ErrFetch, uuid, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.Debug("failed to close metadata body", slog.Any("err", err))
		}
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil, true, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, nil, false, &FetchError{UUID: uuid, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, nil, false, fmt.Errorf("%w: read %s: %w", ErrFetch, uuid, err)
	}
	var (
		header *danmaku.Header
		events []danmaku.Event
	)
	if withHeader {
		header, events, err = danmaku.ParseDocument(bytes.NewReader(body))
	} else {
		events, err = danmaku.ParseBytes(body)
	}
	if err != nil {
		return nil, nil, false, fmt.Errorf("%w: %s: %w", ErrParse, uuid, err)
	}
	return header, events, false, nil
}
