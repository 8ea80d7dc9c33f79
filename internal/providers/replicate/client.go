// Package replicate is a thin HTTP client for the Replicate predictions API.
// It creates a prediction, polls it to a terminal state within a bounded
// budget, and classifies access-denial responses so callers can skip retries
// that are known not to help.
package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"server/internal/infra"
)

// ErrMissingAPIToken indicates the client was configured without credentials.
var ErrMissingAPIToken = errors.New("replicate: api token is required")

// ErrBlocked marks an access-denial response (403, anti-bot block). Retrying a
// blocked request wastes the retry budget, so callers must fail the attempt
// immediately when errors.Is(err, ErrBlocked).
var ErrBlocked = errors.New("replicate: request blocked by provider")

// ErrPollBudgetExhausted indicates the prediction never reached a terminal
// state within the polling budget.
var ErrPollBudgetExhausted = errors.New("replicate: prediction polling budget exhausted")

// Options configures the Replicate client.
type Options struct {
	APIToken     string
	BaseURL      string
	Model        string
	HTTPClient   *http.Client
	Logger       *infra.Logger
	PollInterval time.Duration
	MaxPolls     int
}

// Client performs HTTP calls against the predictions API.
type Client struct {
	apiToken     string
	baseURL      string
	model        string
	httpClient   *http.Client
	logger       *infra.Logger
	pollInterval time.Duration
	maxPolls     int
}

// PredictionInput mirrors the model input for flux-style text-to-image models.
type PredictionInput struct {
	Prompt        string `json:"prompt"`
	AspectRatio   string `json:"aspect_ratio,omitempty"`
	NumOutputs    int    `json:"num_outputs,omitempty"`
	OutputFormat  string `json:"output_format,omitempty"`
	OutputQuality int    `json:"output_quality,omitempty"`
}

type createRequest struct {
	Input PredictionInput `json:"input"`
}

type prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  any             `json:"error"`
	URLs   struct {
		Get string `json:"get"`
	} `json:"urls"`
}

type apiError struct {
	Detail string `json:"detail"`
	Title  string `json:"title"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 45 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.replicate.com/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "black-forest-labs/flux-schnell"
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	maxPolls := opts.MaxPolls
	if maxPolls <= 0 {
		maxPolls = 60
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiToken:     strings.TrimSpace(opts.APIToken),
		baseURL:      baseURL,
		model:        model,
		httpClient:   httpClient,
		logger:       logger,
		pollInterval: pollInterval,
		maxPolls:     maxPolls,
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiToken != ""
}

// Generate creates one prediction and waits for its terminal state. The
// returned value is the raw model output (URL string, URL array, or an object,
// depending on the model) left for the materializer to interpret.
func (c *Client) Generate(ctx context.Context, input PredictionInput) (any, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIToken
	}
	if strings.TrimSpace(input.Prompt) == "" {
		return nil, errors.New("replicate: prompt is required")
	}

	pred, err := c.createPrediction(ctx, input)
	if err != nil {
		return nil, err
	}
	c.logger.Debug().Str("prediction_id", pred.ID).Str("model", c.model).Msg("replicate: prediction created")

	for poll := 0; !isTerminal(pred.Status); poll++ {
		if poll >= c.maxPolls {
			return nil, fmt.Errorf("%w after %d polls (prediction %s)", ErrPollBudgetExhausted, c.maxPolls, pred.ID)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
		pred, err = c.getPrediction(ctx, pred)
		if err != nil {
			return nil, err
		}
	}

	if pred.Status != "succeeded" {
		return nil, fmt.Errorf("replicate: prediction %s %s: %s", pred.ID, pred.Status, predictionError(pred))
	}
	if len(pred.Output) == 0 || string(pred.Output) == "null" {
		return nil, errors.New("replicate: no output received")
	}
	var output any
	if err := json.Unmarshal(pred.Output, &output); err != nil {
		return nil, fmt.Errorf("replicate: decode output: %w", err)
	}
	return output, nil
}

// Probe performs a cheap authenticated call, reporting nil when the provider is
// reachable, ErrBlocked when it denies access, or another error otherwise.
func (c *Client) Probe(ctx context.Context) error {
	if !c.HasCredentials() {
		return ErrMissingAPIToken
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/account", nil)
	if err != nil {
		return fmt.Errorf("replicate: build probe request: %w", err)
	}
	c.setHeaders(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("replicate: probe: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if blocked(resp.StatusCode, raw) {
		return fmt.Errorf("%w: status %d", ErrBlocked, resp.StatusCode)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("replicate: probe status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) createPrediction(ctx context.Context, input PredictionInput) (prediction, error) {
	body, err := json.Marshal(createRequest{Input: input})
	if err != nil {
		return prediction{}, fmt.Errorf("replicate: encode request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/models/%s/predictions", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return prediction{}, fmt.Errorf("replicate: build request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	// Idempotency key guards against duplicate predictions when a response is
	// lost mid-flight and the attempt is retried.
	req.Header.Set("Idempotency-Key", uuid.NewString())
	return c.doPrediction(req)
}

func (c *Client) getPrediction(ctx context.Context, pred prediction) (prediction, error) {
	endpoint := pred.URLs.Get
	if endpoint == "" {
		endpoint = fmt.Sprintf("%s/predictions/%s", c.baseURL, pred.ID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return prediction{}, fmt.Errorf("replicate: build poll request: %w", err)
	}
	c.setHeaders(req)
	return c.doPrediction(req)
}

func (c *Client) doPrediction(req *http.Request) (prediction, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return prediction{}, fmt.Errorf("replicate: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return prediction{}, fmt.Errorf("replicate: read response: %w", err)
	}
	if blocked(resp.StatusCode, raw) {
		return prediction{}, fmt.Errorf("%w: status %d", ErrBlocked, resp.StatusCode)
	}
	if resp.StatusCode >= 300 {
		var detail apiError
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Detail != "" {
			return prediction{}, fmt.Errorf("replicate: status %d: %s", resp.StatusCode, detail.Detail)
		}
		return prediction{}, fmt.Errorf("replicate: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var pred prediction
	if err := json.Unmarshal(raw, &pred); err != nil {
		return prediction{}, fmt.Errorf("replicate: decode response: %w", err)
	}
	return pred, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Accept", "application/json")
}

func isTerminal(status string) bool {
	switch status {
	case "succeeded", "failed", "canceled":
		return true
	}
	return false
}

func predictionError(pred prediction) string {
	if pred.Error == nil {
		return "no error detail"
	}
	return fmt.Sprint(pred.Error)
}

// blocked recognizes access-denial responses, including anti-bot interstitials
// that arrive with misleading status codes.
func blocked(status int, body []byte) bool {
	if status == http.StatusForbidden || status == http.StatusUnauthorized {
		return true
	}
	lower := strings.ToLower(string(body))
	return strings.Contains(lower, "forbidden") ||
		strings.Contains(lower, "access denied") ||
		strings.Contains(lower, "cloudflare") && strings.Contains(lower, "blocked")
}
