package imagegen

import (
	"encoding/json"
	"regexp"
	"strings"
)

// CombinationSentinel is the fixed phrase the prompt-generation step puts in
// front of every combination prompt.
const CombinationSentinel = "Combine these product images into one cohesive scene"

const (
	maxParsedPrompts  = 4
	minHeaderBlockLen = 20
	minSentinelLen    = 50
	minLineLen        = 30
)

var (
	promptHeaderRe = regexp.MustCompile(`(?i)\*{0,2}PROMPT\s+\d+\s*:\s*\*{0,2}`)
	sentinelRe     = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(CombinationSentinel) + `:?`)
)

// ParsePrompts extracts up to four distinct generation prompts from a raw
// LLM response. Rules run in strict priority order and the first one that
// yields at least four usable prompts wins; anything less means the text is
// unusable as a structured list, so the caller gets nil and replicates the
// whole original text across its slots instead. Parsing is deterministic and
// never panics, whatever shape the input has.
func ParsePrompts(v any) []string {
	text := CanonicalPromptText(v)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	if prompts := splitByHeaders(text); len(prompts) >= maxParsedPrompts {
		return prompts[:maxParsedPrompts]
	}
	if prompts := splitBySentinel(text); len(prompts) >= maxParsedPrompts {
		return prompts[:maxParsedPrompts]
	}
	if prompts := qualifyingLines(text); len(prompts) >= maxParsedPrompts {
		return prompts[:maxParsedPrompts]
	}
	return nil
}

// CanonicalPromptText reduces any JSON-ish value to the string the parser and
// the replication fallback operate on. Conventional wrapper keys win over a
// raw re-encoding.
func CanonicalPromptText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case map[string]any:
		for _, key := range []string{"brandPrompt", "text"} {
			if s, ok := t[key].(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(encoded)
}

// splitByHeaders captures the text between consecutive `PROMPT n:` headers.
func splitByHeaders(text string) []string {
	locs := promptHeaderRe.FindAllStringIndex(text, -1)
	var prompts []string
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		block := strings.TrimSpace(text[loc[1]:end])
		if len(block) > minHeaderBlockLen {
			prompts = append(prompts, block)
		}
	}
	return prompts
}

// splitBySentinel captures blocks opened by the combination sentinel phrase,
// re-prepending the sentinel so each prompt stands alone.
func splitBySentinel(text string) []string {
	locs := sentinelRe.FindAllStringIndex(text, -1)
	var prompts []string
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		rest := strings.TrimSpace(text[loc[1]:end])
		prompt := CombinationSentinel + ": " + rest
		if len(prompt) > minSentinelLen {
			prompts = append(prompts, prompt)
		}
	}
	return prompts
}

func qualifyingLines(text string) []string {
	var prompts []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) > minLineLen {
			prompts = append(prompts, line)
		}
	}
	return prompts
}
