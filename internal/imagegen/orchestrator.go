package imagegen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"server/internal/brands"
	"server/internal/infra"
)

// SlotGenerator abstracts the single-variation generator so the fan-out logic
// can be tested without a provider.
type SlotGenerator interface {
	Generate(ctx context.Context, prompt, brandName string, slot int) (string, error)
	GenerateCombined(ctx context.Context, prompt, brandName string) (string, error)
}

// Orchestrator runs one generation job end to end: prompt parsing, a paced
// concurrent fan-out across variation slots, settle-all collection, and the
// degraded-mode and backfill recovery paths.
type Orchestrator struct {
	generator           SlotGenerator
	materializer        *Materializer
	logger              *infra.Logger
	limiter             *rate.Limiter
	degraded            bool
	placeholderFallback bool
	backfillAttempts    int
}

// OrchestratorOptions configures an Orchestrator.
type OrchestratorOptions struct {
	Generator    SlotGenerator
	Materializer *Materializer
	Logger       *infra.Logger
	// LaunchPerSecond paces slot launches so four near-simultaneous
	// predictions do not trip provider rate limits. Zero disables pacing.
	LaunchPerSecond float64
	// Degraded makes every job render local placeholders without touching
	// the provider. Set when the service starts without image credentials.
	Degraded bool
	// PlaceholderFallback renders placeholders when every slot fails,
	// instead of surfacing an error.
	PlaceholderFallback bool
	// BackfillAttempts bounds extra sequential passes over failed slots.
	BackfillAttempts int
}

// NewOrchestrator wires an orchestrator onto a slot generator.
func NewOrchestrator(opts OrchestratorOptions) (*Orchestrator, error) {
	if opts.Generator == nil {
		return nil, errors.New("imagegen: slot generator is required")
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
	limit := rate.Inf
	if opts.LaunchPerSecond > 0 {
		limit = rate.Limit(opts.LaunchPerSecond)
	}
	return &Orchestrator{
		generator:           opts.Generator,
		materializer:        opts.Materializer,
		logger:              logger,
		limiter:             rate.NewLimiter(limit, 1),
		degraded:            opts.Degraded,
		placeholderFallback: opts.PlaceholderFallback,
		backfillAttempts:    opts.BackfillAttempts,
	}, nil
}

// Degraded reports whether the orchestrator renders placeholders only.
func (o *Orchestrator) Degraded() bool {
	return o.degraded
}

// Run produces the variation set for one job. It returns a Result with at
// least one image, or an *AllFailedError carrying every slot's reason.
func (o *Orchestrator) Run(ctx context.Context, job Job) (*Result, error) {
	count := job.Count
	if count <= 0 {
		count = DefaultVariationCount
	}
	if count > MaxVariationCount {
		count = MaxVariationCount
	}
	promptText := strings.TrimSpace(CanonicalPromptText(job.BrandPromptText))
	switch {
	case len(job.ProductImageURLs) == 0:
		return nil, fmt.Errorf("%w: at least one product image url is required", ErrInvalidInput)
	case promptText == "":
		return nil, fmt.Errorf("%w: brand prompt text is required", ErrInvalidInput)
	case strings.TrimSpace(job.Brand.ID) == "":
		return nil, fmt.Errorf("%w: brand is required", ErrInvalidInput)
	}

	if o.degraded {
		return o.renderPlaceholders(ctx, job.Brand, count)
	}

	// The parsed list is used only when it covers every slot. A short list
	// means the text was not a clean per-slot structure, so all slots reuse
	// the full original text instead of cycling a partial set.
	prompts := ParsePrompts(job.BrandPromptText)
	if len(prompts) < count {
		prompts = make([]string, count)
		for i := range prompts {
			prompts[i] = promptText
		}
	}
	slotPrompt := func(slot int) string {
		return prompts[slot-1]
	}

	results := make([]string, count)
	reasons := make([]string, count)

	// A plain group, not WithContext: one slot failing must not cancel its
	// siblings. Each closure records its outcome by index and returns nil.
	var eg errgroup.Group
	for i := 0; i < count; i++ {
		slot := i + 1
		eg.Go(func() error {
			if err := o.limiter.Wait(ctx); err != nil {
				reasons[slot-1] = err.Error()
				return nil
			}
			url, err := o.generator.Generate(ctx, slotPrompt(slot), job.Brand.Name, slot)
			if err != nil {
				reasons[slot-1] = err.Error()
				return nil
			}
			results[slot-1] = url
			return nil
		})
	}
	_ = eg.Wait() // closures always return nil

	o.backfill(ctx, job.Brand, slotPrompt, results, reasons)

	images := make([]string, 0, count)
	failures := make([]SlotFailure, 0)
	for i := 0; i < count; i++ {
		if results[i] != "" {
			images = append(images, results[i])
			continue
		}
		failures = append(failures, SlotFailure{Slot: i + 1, Prompt: slotPrompt(i + 1), Reason: reasons[i]})
	}

	if len(images) == 0 {
		if o.placeholderFallback {
			o.logger.Warn().Int("count", count).Msg("all variations failed, falling back to placeholders")
			return o.renderPlaceholders(ctx, job.Brand, count)
		}
		return nil, &AllFailedError{Failures: failures}
	}

	if len(failures) > 0 {
		o.logger.Warn().Int("succeeded", len(images)).Int("failed", len(failures)).Msg("job completed partially")
	}
	return &Result{Images: images, Failures: failures, Method: "replicate"}, nil
}

// backfill makes bounded sequential passes over failed slots, reusing their
// prompts and numbering the extra variations past the initial set. Succeeded
// slots are never re-run.
func (o *Orchestrator) backfill(ctx context.Context, brand brands.Brand, slotPrompt func(int) string, results, reasons []string) {
	next := len(results) + 1
	for round := 0; round < o.backfillAttempts; round++ {
		retried := false
		for i := range results {
			if results[i] != "" {
				continue
			}
			retried = true
			url, err := o.generator.Generate(ctx, slotPrompt(i+1), brand.Name, next)
			next++
			if err != nil {
				reasons[i] = err.Error()
				continue
			}
			o.logger.Info().Int("slot", i+1).Int("as_variation", next-1).Msg("slot recovered by backfill")
			results[i] = url
			reasons[i] = ""
		}
		if !retried {
			return
		}
	}
}

func (o *Orchestrator) renderPlaceholders(ctx context.Context, brand brands.Brand, count int) (*Result, error) {
	images := make([]string, 0, count)
	for slot := 1; slot <= count; slot++ {
		data := RenderPlaceholder(brand, slot)
		url, err := o.materializer.SaveBytes(ctx, data, brand.Name, fmt.Sprintf("mock_%d", slot))
		if err != nil {
			return nil, fmt.Errorf("render placeholder %d: %w", slot, err)
		}
		images = append(images, url)
	}
	return &Result{Images: images, Method: "placeholder"}, nil
}

// Combine produces one composition image from several product photos.
func (o *Orchestrator) Combine(ctx context.Context, imageURLs []string, prompt string, brand brands.Brand) (*Result, error) {
	if len(imageURLs) < 2 {
		return nil, fmt.Errorf("%w: combining requires at least 2 image urls", ErrInvalidInput)
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("%w: combination prompt is required", ErrInvalidInput)
	}

	if o.degraded {
		return o.renderCombinedPlaceholder(ctx, brand)
	}

	url, err := o.generator.GenerateCombined(ctx, prompt, brand.Name)
	if err != nil {
		if o.placeholderFallback {
			o.logger.Warn().Err(err).Msg("combination failed, falling back to placeholder")
			return o.renderCombinedPlaceholder(ctx, brand)
		}
		return nil, fmt.Errorf("combine images: %w", err)
	}
	return &Result{Images: []string{url}, Method: "replicate"}, nil
}

func (o *Orchestrator) renderCombinedPlaceholder(ctx context.Context, brand brands.Brand) (*Result, error) {
	data := RenderPlaceholder(brand, 1)
	url, err := o.materializer.SaveBytes(ctx, data, brand.Name, "mock_combined")
	if err != nil {
		return nil, fmt.Errorf("render combined placeholder: %w", err)
	}
	return &Result{Images: []string{url}, Method: "placeholder"}, nil
}
