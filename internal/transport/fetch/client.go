// Package fetch downloads remote images referenced by URL.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/domain"
)

// Default limits applied when Config leaves them zero.
const (
	DefaultTimeout  = 15 * time.Second
	DefaultMaxBytes = 10 << 20
)

// Config holds download limits.
type Config struct {
	Timeout  time.Duration
	MaxBytes int64
}

// Client downloads resources over HTTP(S).
// Every failure wraps domain.ErrFetch so callers can report it as a failed dependency.
type Client struct {
	http     *http.Client
	maxBytes int64
}

// New creates a fetch client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	return &Client{
		http:     &http.Client{Timeout: cfg.Timeout},
		maxBytes: cfg.MaxBytes,
	}
}

// Fetch downloads rawURL. Non-2xx responses, transport errors and bodies
// larger than the configured limit fail with domain.ErrFetch.
func (c *Client) Fetch(ctx context.Context, rawURL string) (domain.Resource, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return domain.Resource{}, fmt.Errorf("invalid url %q: %w", rawURL, domain.ErrFetch)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return domain.Resource{}, fmt.Errorf("build request: %v: %w", err, domain.ErrFetch)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Resource{}, fmt.Errorf("get %s: %v: %w", u.Redacted(), err, domain.ErrFetch)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return domain.Resource{}, fmt.Errorf("get %s: status %d: %w", u.Redacted(), resp.StatusCode, domain.ErrFetch)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return domain.Resource{}, fmt.Errorf("read %s: %v: %w", u.Redacted(), err, domain.ErrFetch)
	}
	if int64(len(data)) > c.maxBytes {
		return domain.Resource{}, fmt.Errorf("%s exceeds %d bytes: %w", u.Redacted(), c.maxBytes, domain.ErrFetch)
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	return domain.Resource{Data: data, ContentType: ct}, nil
}
