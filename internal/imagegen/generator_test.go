package imagegen

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"server/internal/providers/replicate"
	"server/internal/storage"
)

// stubProvider returns scripted results in order, repeating the last one.
type stubProvider struct {
	outputs []any
	errs    []error
	calls   int
	inputs  []replicate.PredictionInput
}

func (s *stubProvider) Generate(_ context.Context, input replicate.PredictionInput) (any, error) {
	s.inputs = append(s.inputs, input)
	i := s.calls
	s.calls++
	if i >= len(s.errs) {
		i = len(s.errs) - 1
	}
	return s.outputs[i], s.errs[i]
}

func newTestGenerator(t *testing.T, provider Provider) *VariationGenerator {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	m, err := NewMaterializer(MaterializerOptions{
		Store:      store,
		BaseURL:    "http://localhost:3001",
		HTTPClient: &http.Client{Transport: &downloadTransport{body: pngMagic}},
	})
	if err != nil {
		t.Fatalf("new materializer: %v", err)
	}
	g, err := NewVariationGenerator(GeneratorOptions{
		Provider:     provider,
		Materializer: m,
		MaxAttempts:  3,
		RetryDelay:   time.Millisecond,
		Timeout:      time.Second,
	})
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	return g
}

func TestGenerateFirstAttemptSuccess(t *testing.T) {
	provider := &stubProvider{outputs: []any{pngMagic}, errs: []error{nil}}
	g := newTestGenerator(t, provider)

	url, err := g.Generate(context.Background(), "studio shot", "Nike", 1)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.Contains(url, "nike_1_") {
		t.Fatalf("url = %q, want slot label in filename", url)
	}
	if provider.calls != 1 {
		t.Fatalf("provider called %d times, want 1", provider.calls)
	}
	in := provider.inputs[0]
	if in.Prompt != "studio shot" || in.NumOutputs != 1 || in.OutputFormat != "png" {
		t.Fatalf("unexpected prediction input %+v", in)
	}
}

func TestGenerateRetriesTransientFailure(t *testing.T) {
	provider := &stubProvider{
		outputs: []any{nil, nil, pngMagic},
		errs:    []error{errors.New("upstream 500"), errors.New("timeout"), nil},
	}
	g := newTestGenerator(t, provider)

	url, err := g.Generate(context.Background(), "studio shot", "Nike", 2)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if provider.calls != 3 {
		t.Fatalf("provider called %d times, want 3", provider.calls)
	}
	if !strings.Contains(url, "nike_2_") {
		t.Fatalf("url = %q", url)
	}
}

func TestGenerateExhaustsAttempts(t *testing.T) {
	provider := &stubProvider{
		outputs: []any{nil},
		errs:    []error{errors.New("upstream 500")},
	}
	g := newTestGenerator(t, provider)

	_, err := g.Generate(context.Background(), "studio shot", "Nike", 3)
	if err == nil {
		t.Fatal("want error after exhausting attempts")
	}
	if provider.calls != 3 {
		t.Fatalf("provider called %d times, want 3", provider.calls)
	}
	if !strings.Contains(err.Error(), "variation 3") || !strings.Contains(err.Error(), "3 attempts") {
		t.Fatalf("err = %v, want slot and attempt count", err)
	}
	if !strings.Contains(err.Error(), "upstream 500") {
		t.Fatalf("err = %v, want last provider error preserved", err)
	}
}

func TestGenerateDoesNotRetryWhenBlocked(t *testing.T) {
	provider := &stubProvider{
		outputs: []any{nil},
		errs:    []error{replicate.ErrBlocked},
	}
	g := newTestGenerator(t, provider)

	_, err := g.Generate(context.Background(), "studio shot", "Nike", 1)
	if !errors.Is(err, replicate.ErrBlocked) {
		t.Fatalf("err = %v, want ErrBlocked", err)
	}
	if provider.calls != 1 {
		t.Fatalf("provider called %d times, want exactly 1 on block", provider.calls)
	}
}

func TestGenerateRetriesMaterializeFailure(t *testing.T) {
	// Provider succeeds but hands back garbage; the attempt still fails and
	// a later attempt with usable output recovers.
	provider := &stubProvider{
		outputs: []any{map[string]any{"status": "done"}, pngMagic},
		errs:    []error{nil, nil},
	}
	g := newTestGenerator(t, provider)

	url, err := g.Generate(context.Background(), "studio shot", "Nike", 1)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if provider.calls != 2 {
		t.Fatalf("provider called %d times, want 2", provider.calls)
	}
	if url == "" {
		t.Fatal("empty url")
	}
}

func TestGenerateCombinedLabel(t *testing.T) {
	provider := &stubProvider{outputs: []any{pngMagic}, errs: []error{nil}}
	g := newTestGenerator(t, provider)

	url, err := g.GenerateCombined(context.Background(), "merge the products", "Nike")
	if err != nil {
		t.Fatalf("generate combined: %v", err)
	}
	if !strings.Contains(url, "nike_combined_") {
		t.Fatalf("url = %q, want combined label", url)
	}
}
