package imagegen

import (
	"fmt"
	"strings"
	"testing"
)

func structuredPromptText() string {
	var sb strings.Builder
	for i := 1; i <= 4; i++ {
		fmt.Fprintf(&sb, "**PROMPT %d:**\n%s: a professional model in pose number %d, studio lighting, premium composition.\n\n",
			i, CombinationSentinel, i)
	}
	return sb.String()
}

func TestParsePromptsStructuredHeaders(t *testing.T) {
	prompts := ParsePrompts(structuredPromptText())
	if len(prompts) != 4 {
		t.Fatalf("prompt count = %d, want 4", len(prompts))
	}
	for i, p := range prompts {
		if !strings.Contains(p, fmt.Sprintf("pose number %d", i+1)) {
			t.Fatalf("prompt %d out of order: %q", i+1, p)
		}
		if strings.Contains(p, "PROMPT") {
			t.Fatalf("header leaked into prompt %d: %q", i+1, p)
		}
	}
}

func TestParsePromptsHeaderRuleWinsOverSentinel(t *testing.T) {
	// Both rules could match; headers take priority.
	text := structuredPromptText()
	prompts := ParsePrompts(text)
	if len(prompts) != 4 {
		t.Fatalf("prompt count = %d, want 4", len(prompts))
	}
	for i, p := range prompts {
		if !strings.HasPrefix(p, CombinationSentinel) {
			t.Fatalf("prompt %d should be the header block (which starts with the sentinel): %q", i+1, p)
		}
	}
}

func TestParsePromptsSentinelFallback(t *testing.T) {
	var sb strings.Builder
	for i := 1; i <= 4; i++ {
		fmt.Fprintf(&sb, "%s: scene variant %d with detailed styling notes and setting description.\n", CombinationSentinel, i)
	}
	prompts := ParsePrompts(sb.String())
	if len(prompts) != 4 {
		t.Fatalf("prompt count = %d, want 4", len(prompts))
	}
	for i, p := range prompts {
		if !strings.HasPrefix(p, CombinationSentinel+": ") {
			t.Fatalf("sentinel not re-prepended on prompt %d: %q", i+1, p)
		}
		if !strings.Contains(p, fmt.Sprintf("variant %d", i+1)) {
			t.Fatalf("prompt %d out of order: %q", i+1, p)
		}
	}
}

func TestParsePromptsLineFallback(t *testing.T) {
	text := strings.Join([]string{
		"A studio photograph of the product on a marble pedestal, softly lit.",
		"short",
		"The product resting on a sand dune at golden hour with long shadows.",
		"An overhead flat-lay of the product surrounded by brand props and colors.",
		"",
		"A lifestyle shot of the product in use on a busy city street at night.",
	}, "\n")
	prompts := ParsePrompts(text)
	if len(prompts) != 4 {
		t.Fatalf("prompt count = %d, want 4", len(prompts))
	}
	if prompts[0] != "A studio photograph of the product on a marble pedestal, softly lit." {
		t.Fatalf("first prompt = %q", prompts[0])
	}
}

func TestParsePromptsNeverReturnsPartialList(t *testing.T) {
	cases := map[string]any{
		"empty":              "",
		"three headers only": "**PROMPT 1:** first detailed prompt text here\n**PROMPT 2:** second detailed prompt text here\n**PROMPT 3:** third detailed prompt text here",
		"short blocks":       "**PROMPT 1:** a\n**PROMPT 2:** b\n**PROMPT 3:** c\n**PROMPT 4:** d",
		"unstructured":       "just two lines\nneither of them long enough",
		"nil":                nil,
		"number":             42,
	}
	for name, input := range cases {
		if got := ParsePrompts(input); got != nil {
			t.Errorf("%s: got %d prompts, want nil", name, len(got))
		}
	}
}

func TestParsePromptsTruncatesToFour(t *testing.T) {
	var sb strings.Builder
	for i := 1; i <= 6; i++ {
		fmt.Fprintf(&sb, "PROMPT %d: a sufficiently long prompt body for slot number %d here.\n", i, i)
	}
	prompts := ParsePrompts(sb.String())
	if len(prompts) != 4 {
		t.Fatalf("prompt count = %d, want 4", len(prompts))
	}
}

func TestParsePromptsIsDeterministic(t *testing.T) {
	text := structuredPromptText()
	first := ParsePrompts(text)
	for i := 0; i < 5; i++ {
		again := ParsePrompts(text)
		if len(again) != len(first) {
			t.Fatal("nondeterministic length")
		}
		for j := range first {
			if first[j] != again[j] {
				t.Fatalf("nondeterministic prompt %d", j+1)
			}
		}
	}
}

func TestCanonicalPromptText(t *testing.T) {
	if got := CanonicalPromptText("plain"); got != "plain" {
		t.Fatalf("string: %q", got)
	}
	if got := CanonicalPromptText(map[string]any{"brandPrompt": "wrapped"}); got != "wrapped" {
		t.Fatalf("brandPrompt key: %q", got)
	}
	if got := CanonicalPromptText(map[string]any{"text": "inner"}); got != "inner" {
		t.Fatalf("text key: %q", got)
	}
	if got := CanonicalPromptText(map[string]any{"other": 1}); got != `{"other":1}` {
		t.Fatalf("object: %q", got)
	}
	if got := CanonicalPromptText(nil); got != "" {
		t.Fatalf("nil: %q", got)
	}
}
