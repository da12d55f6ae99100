// Package inference is the HTTP client for the image feature extraction service.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/comparator/image"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/domain"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/metrics"
)

const (
	variant         = "image"
	maxResponseSize = 1 << 20
)

var _ image.Backbone = (*Client)(nil)

// Config holds the inference service settings.
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
	Logger  *zap.Logger
}

// Client posts preprocessed tensors to POST {base}/v1/features and reads back
// the pooled feature vector.
type Client struct {
	baseURL string
	model   string
	http    *http.Client
	logger  *zap.Logger
}

type featuresRequest struct {
	Model string       `json:"model,omitempty"`
	Input image.Tensor `json:"input"`
}

type featuresResponse struct {
	Features []float32 `json:"features"`
	Error    string    `json:"error,omitempty"`
}

// New creates an inference client.
func New(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Features implements image.Backbone.
func (c *Client) Features(ctx context.Context, t image.Tensor) ([]float32, error) {
	body, err := json.Marshal(featuresRequest{Model: c.model, Input: t})
	if err != nil {
		return nil, fmt.Errorf("marshal tensor: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/features", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.recordFailure("transport")
		return nil, fmt.Errorf("inference request: %v: %w", err, domain.ErrEmbeddingProviderError)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		c.recordFailure("read_body")
		return nil, fmt.Errorf("read inference response: %v: %w", err, domain.ErrEmbeddingProviderError)
	}

	var out featuresResponse
	if resp.StatusCode != http.StatusOK {
		c.recordFailure("api_error")
		if json.Unmarshal(data, &out) == nil && out.Error != "" {
			return nil, fmt.Errorf("inference error %d: %s: %w", resp.StatusCode, out.Error, domain.ErrEmbeddingProviderError)
		}
		return nil, fmt.Errorf("inference error %d: %w", resp.StatusCode, domain.ErrEmbeddingProviderError)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		c.recordFailure("bad_response")
		return nil, fmt.Errorf("decode inference response: %v: %w", err, domain.ErrEmbeddingProviderError)
	}
	if len(out.Features) == 0 {
		c.recordFailure("empty_response")
		return nil, fmt.Errorf("empty feature vector: %w", domain.ErrEmbeddingProviderError)
	}

	metrics.EncoderRequestsTotal.WithLabelValues(variant, "inference", "success").Inc()
	metrics.EncoderRequestDuration.WithLabelValues(variant, "inference").Observe(time.Since(start).Seconds())
	return out.Features, nil
}

// HealthCheck calls GET {base}/health.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("inference health: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inference health: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) recordFailure(errType string) {
	metrics.EncoderRequestsTotal.WithLabelValues(variant, "inference", "error").Inc()
	metrics.EncoderErrorsTotal.WithLabelValues(variant, "inference", errType).Inc()
	c.logger.Debug("Inference request failed", zap.String("error_type", errType))
}
