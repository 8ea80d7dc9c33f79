// Package gemini calls the Generative Language API over plain HTTP for product
// analysis and brand-prompt generation. When no API key is configured the
// client returns deterministic canned responses so the rest of the pipeline
// stays exercisable offline.
package gemini

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

	"server/internal/brands"
	"server/internal/infra"
)

const defaultTimeout = 30 * time.Second

// Options configures the Gemini client.
type Options struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client performs generateContent calls against the Gemini REST API.
type Client struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	logger  *infra.Logger
}

// ImagePart is one inline image sent with an analysis request.
type ImagePart struct {
	Base64   string
	MIMEType string
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	TopP            float64 `json:"topP,omitempty"`
	TopK            int     `json:"topK,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gemini-2.0-flash"
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
		apiKey:  strings.TrimSpace(opts.APIKey),
		model:   model,
		baseURL: baseURL,
		client:  httpClient,
		logger:  logger,
	}
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// AnalyzeProduct runs the vision analysis over one or more inline images and
// returns the freeform analysis text.
func (c *Client) AnalyzeProduct(ctx context.Context, images []ImagePart) (string, error) {
	if len(images) == 0 {
		return "", errors.New("gemini: at least one image is required")
	}
	if !c.HasCredentials() {
		c.logger.Warn().Msg("gemini: no api key, returning canned analysis")
		return mockAnalysis, nil
	}

	parts := []part{{Text: analysisInstruction}}
	for _, img := range images {
		mime := strings.TrimSpace(img.MIMEType)
		if mime == "" {
			mime = "image/jpeg"
		}
		parts = append(parts, part{InlineData: &inlineData{MIMEType: mime, Data: img.Base64}})
	}
	payload := generateRequest{
		Contents: []content{{Role: "user", Parts: parts}},
		GenerationConfig: &generationConfig{
			Temperature:     0.7,
			TopP:            0.8,
			TopK:            40,
			MaxOutputTokens: 1024,
		},
	}

	text, err := c.generate(ctx, payload)
	if err != nil {
		return "", fmt.Errorf("gemini: product analysis: %w", err)
	}
	return text, nil
}

// GenerateBrandPrompt turns a product analysis and a brand into the four-prompt
// photoshoot text the image pipeline parses downstream.
func (c *Client) GenerateBrandPrompt(ctx context.Context, productAnalysis string, brand brands.Brand) (string, error) {
	productAnalysis = strings.TrimSpace(productAnalysis)
	if productAnalysis == "" {
		return "", errors.New("gemini: product analysis is required")
	}
	if !c.HasCredentials() {
		c.logger.Warn().Str("brand", brand.ID).Msg("gemini: no api key, returning canned brand prompt")
		return mockBrandPrompt(brand), nil
	}

	payload := generateRequest{
		Contents: []content{{
			Role:  "user",
			Parts: []part{{Text: buildBrandPromptInstruction(productAnalysis, brand)}},
		}},
		GenerationConfig: &generationConfig{
			Temperature:     0.7,
			TopP:            0.8,
			TopK:            40,
			MaxOutputTokens: 1024,
		},
	}

	text, err := c.generate(ctx, payload)
	if err != nil {
		return "", fmt.Errorf("gemini: brand prompt: %w", err)
	}
	return text, nil
}

func (c *Client) generate(ctx context.Context, payload generateRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(c.model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var decoded generateResponse
		if err := json.Unmarshal(raw, &decoded); err == nil && decoded.Error != nil {
			return "", fmt.Errorf("status %d: %s", resp.StatusCode, decoded.Error.Message)
		}
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded generateResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	text := extractText(decoded)
	if text == "" {
		return "", errors.New("empty response text")
	}
	c.logger.Debug().Str("model", c.model).Int("chars", len(text)).Msg("gemini: generated content")
	return text, nil
}

func extractText(resp generateResponse) string {
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			sb.WriteString(p.Text)
		}
		if strings.TrimSpace(sb.String()) != "" {
			break
		}
	}
	return strings.TrimSpace(sb.String())
}
