// Package inference provides a client for a model-serving backend that hosts
// pretrained text-classification pipelines.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/sentiment-cli/internal/resilience"
)

const defaultBaseURL = "http://localhost:8080"

// Client defines the inference backend operations.
type Client interface {
	// Health reports backend status and the accelerators it can place models on.
	Health(ctx context.Context) (*HealthResponse, error)
	// LoadPipeline loads a model for a task on a device and returns its handle.
	LoadPipeline(ctx context.Context, req LoadRequest) (*LoadResponse, error)
	// Predict classifies texts with a loaded pipeline. Predictions are in input
	// order, one score list per text.
	Predict(ctx context.Context, pipelineID string, texts []string) (*PredictResponse, error)
	// UnloadPipeline releases a loaded pipeline.
	UnloadPipeline(ctx context.Context, pipelineID string) error
}

// HealthResponse is the parsed /health response.
type HealthResponse struct {
	Status       string   `json:"status"`
	Accelerators []string `json:"accelerators"`
}

// LoadRequest asks the backend to load a pipeline.
type LoadRequest struct {
	Task   string `json:"task"`
	Model  string `json:"model"`
	Device string `json:"device"`
}

// LoadResponse identifies a loaded pipeline.
type LoadResponse struct {
	PipelineID string `json:"pipeline_id"`
	Device     string `json:"device"`
	Model      string `json:"model"`
}

// Prediction is one label score.
type Prediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// PredictResponse holds per-text label scores.
type PredictResponse struct {
	Predictions [][]Prediction `json:"predictions"`
}

type predictRequest struct {
	Inputs []string `json:"inputs"`
}

// Option configures the inference client.
type Option func(*httpClient)

// WithBaseURL sets the backend base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http.Timeout = d
	}
}

// WithRetry overrides the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

// WithRateLimit caps outgoing requests per second. Zero or less disables it.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(log *zap.Logger) Option {
	return func(c *httpClient) {
		c.log = log
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	retry   resilience.RetryConfig
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewClient creates a new inference client. apiKey may be empty for
// unauthenticated local backends.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 120 * time.Second,
		},
		retry: resilience.DefaultRetryConfig(),
		log:   zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.call(ctx, "health", http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) LoadPipeline(ctx context.Context, req LoadRequest) (*LoadResponse, error) {
	var out LoadResponse
	if err := c.call(ctx, "load pipeline", http.MethodPost, "/v1/pipelines", req, &out); err != nil {
		return nil, err
	}
	if out.PipelineID == "" {
		return nil, eris.New("inference: load pipeline: empty pipeline id")
	}
	return &out, nil
}

func (c *httpClient) Predict(ctx context.Context, pipelineID string, texts []string) (*PredictResponse, error) {
	var out PredictResponse
	path := "/v1/pipelines/" + url.PathEscape(pipelineID) + "/predict"
	if err := c.callOnce(ctx, "predict", http.MethodPost, path, predictRequest{Inputs: texts}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) UnloadPipeline(ctx context.Context, pipelineID string) error {
	const op = "unload pipeline"
	path := "/v1/pipelines/" + url.PathEscape(pipelineID)
	return resilience.Do(ctx, c.retryFor(op), func(ctx context.Context) error {
		_, err := c.do(ctx, op, http.MethodDelete, path, nil)
		return err
	})
}

func (c *httpClient) retryFor(op string) resilience.RetryConfig {
	retry := c.retry
	retry.OnRetry = resilience.RetryLogger(c.log, "inference", op)
	return retry
}

// call sends one JSON request, retrying transient failures, and decodes the
// response into out when out is non-nil.
func (c *httpClient) call(ctx context.Context, op, method, path string, in, out any) error {
	return c.send(ctx, c.retryFor(op), op, method, path, in, out)
}

// callOnce is call without retries. Predictions are not replayed; the
// caller decides what a failed batch means.
func (c *httpClient) callOnce(ctx context.Context, op, method, path string, in, out any) error {
	return c.send(ctx, resilience.RetryConfig{MaxAttempts: 1}, op, method, path, in, out)
}

func (c *httpClient) send(ctx context.Context, retry resilience.RetryConfig, op, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return eris.Wrapf(err, "inference: %s: marshal request", op)
		}
		payload = b
	}

	respBody, err := resilience.DoVal(ctx, retry, func(ctx context.Context) ([]byte, error) {
		return c.do(ctx, op, method, path, payload)
	})
	if err != nil {
		return err
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return eris.Wrapf(err, "inference: %s: unmarshal response", op)
	}
	return nil
}

func (c *httpClient) do(ctx context.Context, op, method, path string, payload []byte) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrapf(err, "inference: %s: rate limit", op)
		}
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, eris.Wrapf(err, "inference: %s: create request", op)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "inference: %s: send request", op)
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "inference: %s: read response", op)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := eris.Errorf("inference: %s: unexpected status %d: %s", op, resp.StatusCode, strings.TrimSpace(string(respBody)))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}
	return respBody, nil
}
