package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"server/internal/brands"
)

func testBrand() brands.Brand {
	return brands.Brand{
		ID:            "nike",
		Name:          "Nike",
		StyleKeywords: []string{"dynamic", "bold"},
	}
}

func TestAnalyzeProductSendsInlineImages(t *testing.T) {
	transport := &captureTransport{}
	transport.setJSON(map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{
				map[string]any{"text": "A black top with white trim."},
			}}},
		},
	})
	client := NewClient(Options{
		APIKey:     "test-key",
		HTTPClient: &http.Client{Transport: transport},
	})

	analysis, err := client.AnalyzeProduct(context.Background(), []ImagePart{
		{Base64: "aGVsbG8=", MIMEType: "image/jpeg"},
		{Base64: "d29ybGQ=", MIMEType: "image/png"},
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if analysis != "A black top with white trim." {
		t.Fatalf("analysis = %q", analysis)
	}
	if got := transport.lastRequest.Header.Get("x-goog-api-key"); got != "test-key" {
		t.Fatalf("api key header = %q", got)
	}

	var payload map[string]any
	if err := json.Unmarshal(transport.lastBody, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	contents := payload["contents"].([]any)
	parts := contents[0].(map[string]any)["parts"].([]any)
	if len(parts) != 3 {
		t.Fatalf("parts len = %d, want 3 (instruction + 2 images)", len(parts))
	}
	second := parts[1].(map[string]any)["inlineData"].(map[string]any)
	if second["mimeType"] != "image/jpeg" {
		t.Fatalf("mimeType = %v", second["mimeType"])
	}
}

func TestAnalyzeProductWithoutKeyReturnsCannedText(t *testing.T) {
	client := NewClient(Options{})
	analysis, err := client.AnalyzeProduct(context.Background(), []ImagePart{{Base64: "aGk="}})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !strings.Contains(analysis, "Product Analysis") {
		t.Fatalf("unexpected canned analysis: %q", analysis)
	}
}

func TestGenerateBrandPromptUpstreamError(t *testing.T) {
	transport := &captureTransport{status: http.StatusTooManyRequests, body: []byte(`{"error":{"code":429,"message":"quota"}}`)}
	client := NewClient(Options{
		APIKey:     "test-key",
		HTTPClient: &http.Client{Transport: transport},
	})
	_, err := client.GenerateBrandPrompt(context.Background(), "some analysis", testBrand())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "quota") {
		t.Fatalf("error = %v, want upstream message surfaced", err)
	}
}

func TestGenerateBrandPromptWithoutKeyIsParseable(t *testing.T) {
	client := NewClient(Options{})
	text, err := client.GenerateBrandPrompt(context.Background(), "a cotton shirt", testBrand())
	if err != nil {
		t.Fatalf("brand prompt: %v", err)
	}
	if got := strings.Count(text, "**PROMPT"); got != 4 {
		t.Fatalf("prompt markers = %d, want 4", got)
	}
	if !strings.Contains(text, CombinationSentinel) {
		t.Fatal("combination sentinel missing")
	}
}

type captureTransport struct {
	status      int
	body        []byte
	lastRequest *http.Request
	lastBody    []byte
}

func (c *captureTransport) setJSON(payload any) {
	c.body, _ = json.Marshal(payload)
	c.status = http.StatusOK
}

func (c *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.lastRequest = req
	if req.Body != nil {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		c.lastBody = body
	}
	status := c.status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(c.body)),
	}, nil
}
