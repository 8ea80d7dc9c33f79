package imagegen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"server/internal/infra"
	"server/internal/providers/replicate"
)

const (
	defaultMaxAttempts = 3
	defaultRetryDelay  = 2 * time.Second
	defaultTimeout     = 60 * time.Second
)

// VariationGenerator produces one stored image for one prompt, retrying
// transient provider failures. A blocked response ends the attempt loop
// immediately: retrying a block only burns quota and reinforces the block.
type VariationGenerator struct {
	provider     Provider
	materializer *Materializer
	logger       *infra.Logger
	maxAttempts  int
	retryDelay   time.Duration
	timeout      time.Duration
}

// GeneratorOptions configures a VariationGenerator. Zero durations and counts
// fall back to the defaults used in production.
type GeneratorOptions struct {
	Provider     Provider
	Materializer *Materializer
	Logger       *infra.Logger
	MaxAttempts  int
	RetryDelay   time.Duration
	Timeout      time.Duration
}

// NewVariationGenerator wires a generator onto a provider and a materializer.
func NewVariationGenerator(opts GeneratorOptions) (*VariationGenerator, error) {
	if opts.Provider == nil {
		return nil, errors.New("imagegen: provider is required")
	}
	if opts.Materializer == nil {
		return nil, errors.New("imagegen: materializer is required")
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	g := &VariationGenerator{
		provider:     opts.Provider,
		materializer: opts.Materializer,
		logger:       logger,
		maxAttempts:  opts.MaxAttempts,
		retryDelay:   opts.RetryDelay,
		timeout:      opts.Timeout,
	}
	if g.maxAttempts <= 0 {
		g.maxAttempts = defaultMaxAttempts
	}
	if g.retryDelay <= 0 {
		g.retryDelay = defaultRetryDelay
	}
	if g.timeout <= 0 {
		g.timeout = defaultTimeout
	}
	return g, nil
}

// Generate produces and stores the image for one numbered variation slot,
// returning its public URL.
func (g *VariationGenerator) Generate(ctx context.Context, prompt, brandName string, slot int) (string, error) {
	url, err := g.generate(ctx, prompt, brandName, strconv.Itoa(slot))
	if err != nil {
		return "", fmt.Errorf("variation %d: %w", slot, err)
	}
	return url, nil
}

// GenerateCombined produces and stores a single multi-product composition.
func (g *VariationGenerator) GenerateCombined(ctx context.Context, prompt, brandName string) (string, error) {
	return g.generate(ctx, prompt, brandName, "combined")
}

func (g *VariationGenerator) generate(ctx context.Context, prompt, brandName, label string) (string, error) {
	input := replicate.PredictionInput{
		Prompt:        prompt,
		AspectRatio:   "1:1",
		NumOutputs:    1,
		OutputFormat:  "png",
		OutputQuality: 90,
	}

	var lastErr error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		url, err := g.attempt(ctx, input, brandName, label)
		if err == nil {
			if attempt > 1 {
				g.logger.Info().Str("label", label).Int("attempt", attempt).Msg("image generated after retry")
			}
			return url, nil
		}
		if errors.Is(err, replicate.ErrBlocked) {
			g.logger.Warn().Str("label", label).Msg("provider blocked the request, abandoning slot")
			return "", err
		}
		lastErr = err
		g.logger.Warn().Err(err).Str("label", label).Int("attempt", attempt).Int("max_attempts", g.maxAttempts).Msg("image attempt failed")
		if attempt < g.maxAttempts {
			// Linear backoff: each retry waits one base delay longer.
			if err := sleepCtx(ctx, g.retryDelay*time.Duration(attempt)); err != nil {
				return "", err
			}
		}
	}
	return "", fmt.Errorf("failed after %d attempts: %w", g.maxAttempts, lastErr)
}

// attempt is one provider call plus materialization under a per-attempt
// deadline. A download or decode failure counts as an attempt failure too.
func (g *VariationGenerator) attempt(ctx context.Context, input replicate.PredictionInput, brandName, label string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	output, err := g.provider.Generate(attemptCtx, input)
	if err != nil {
		return "", err
	}
	return g.materializer.Materialize(attemptCtx, output, brandName, label)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
