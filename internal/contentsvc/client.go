// Package contentsvc is the client for the external content generation and
// search backend. The orchestration core treats it as an injected async
// function with no knowledge of transport details beyond error class.
package contentsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/horizon-research/horizon/internal/metrics"
	"github.com/horizon-research/horizon/internal/models"
)

// ErrInvalidCredential marks a permanent authentication failure. Callers
// must not retry operations that fail with this error.
var ErrInvalidCredential = errors.New("content service: invalid credential")

// PromptSpec is a single generation request. ThinkingBudget is an opaque
// service-level hint and is forwarded without interpretation.
type PromptSpec struct {
	Operation      string  `json:"-"` // metrics label only
	System         string  `json:"system,omitempty"`
	Prompt         string  `json:"prompt"`
	UseSearch      bool    `json:"use_search,omitempty"`
	JSONResponse   bool    `json:"json_response,omitempty"`
	ThinkingBudget int     `json:"thinking_budget,omitempty"`
	Temperature    float64 `json:"temperature,omitempty"`
}

// Generation is the service's response: generated text plus optional
// grounding citations.
type Generation struct {
	Text       string          `json:"text"`
	Citations  []models.Source `json:"citations,omitempty"`
	TokensUsed int             `json:"tokens_used,omitempty"`
}

// Client issues generation requests. Implementations must be stateless and
// safe for concurrent use.
type Client interface {
	Generate(ctx context.Context, spec PromptSpec) (*Generation, error)
}

// HTTPClient talks JSON over HTTP to the content service.
type HTTPClient struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
	tracer  trace.Tracer
}

// Config for the HTTP client.
type Config struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	RequestsPerSec float64
	Burst          int
}

// NewHTTPClient builds a rate-limited client. A zero RequestsPerSec disables
// client-side limiting.
func NewHTTPClient(cfg Config, logger *zap.Logger) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), burst)
	}
	return &HTTPClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpc:   &http.Client{Timeout: timeout},
		limiter: limiter,
		logger:  logger,
		tracer:  otel.Tracer("contentsvc"),
	}
}

// Ping probes the service's health endpoint. Used by readiness checks only.
func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("content service health status %d", resp.StatusCode)
	}
	return nil
}

// Generate issues one request. 401/403 responses map to
// ErrInvalidCredential; every other failure is transient from the caller's
// point of view.
func (c *HTTPClient) Generate(ctx context.Context, spec PromptSpec) (*Generation, error) {
	op := spec.Operation
	if op == "" {
		op = "generate"
	}

	ctx, span := c.tracer.Start(ctx, "contentsvc.Generate",
		trace.WithAttributes(
			attribute.String("operation", op),
			attribute.Bool("use_search", spec.UseSearch),
			attribute.Int("thinking_budget", spec.ThinkingBudget),
		))
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("marshal prompt spec: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpc.Do(req)
	if err != nil {
		metrics.ContentRequests.WithLabelValues(op, "transport_error").Inc()
		return nil, fmt.Errorf("content service request: %w", err)
	}
	defer resp.Body.Close()
	metrics.ContentRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		metrics.ContentRequests.WithLabelValues(op, "auth_error").Inc()
		return nil, fmt.Errorf("%w (status %d)", ErrInvalidCredential, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		metrics.ContentRequests.WithLabelValues(op, "http_error").Inc()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("content service status %d: %s", resp.StatusCode, string(snippet))
	}

	var out Generation
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.ContentRequests.WithLabelValues(op, "decode_error").Inc()
		return nil, fmt.Errorf("decode content response: %w", err)
	}
	metrics.ContentRequests.WithLabelValues(op, "ok").Inc()

	c.logger.Debug("Content service call completed",
		zap.String("operation", op),
		zap.Int("citations", len(out.Citations)),
		zap.Int("tokens_used", out.TokensUsed),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &out, nil
}
