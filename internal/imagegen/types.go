// Package imagegen turns one user-facing generation request into a set of
// provider calls: prompt parsing, per-slot generation with bounded retries,
// result materialization, and a settle-all fan-out that tolerates partial
// failure.
package imagegen

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"server/internal/brands"
	"server/internal/providers/replicate"
)

// DefaultVariationCount is how many variations one job produces unless the
// request says otherwise.
const DefaultVariationCount = 4

// MaxVariationCount caps the per-job fan-out. Each slot holds a goroutine and
// a slice of the provider budget for the whole request, so oversized counts
// are clamped rather than rejected.
const MaxVariationCount = 8

// ErrInvalidInput rejects a job before any provider call is made.
var ErrInvalidInput = errors.New("imagegen: invalid job input")

// Provider produces one raw model output for one prompt. Implemented by the
// replicate client; tests substitute stubs.
type Provider interface {
	Generate(ctx context.Context, input replicate.PredictionInput) (any, error)
}

// Job is one user request to produce brand-styled image variations. It is
// immutable once created and lives only for the request.
type Job struct {
	ProductImageURLs []string
	// BrandPromptText is whatever the prompt-generation step produced: a
	// string, or a JSON object carrying the text under conventional keys.
	BrandPromptText any
	Brand           brands.Brand
	Count           int
}

// SlotFailure records why one variation slot produced no image. The slot index
// keeps the failure attributable to the prompt that filled it.
type SlotFailure struct {
	Slot   int
	Prompt string
	Reason string
}

// Result is the outcome of a completed job: at least one image, in slot order,
// plus per-slot failure diagnostics for the slots that produced nothing.
type Result struct {
	Images   []string
	Failures []SlotFailure
	Method   string
}

// AllFailedError reports a job in which every slot failed, carrying each
// slot's reason.
type AllFailedError struct {
	Failures []SlotFailure
}

func (e *AllFailedError) Error() string {
	reasons := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		reasons[i] = fmt.Sprintf("variation %d: %s", f.Slot, f.Reason)
	}
	return fmt.Sprintf("imagegen: all %d variations failed: %s", len(e.Failures), strings.Join(reasons, "; "))
}
