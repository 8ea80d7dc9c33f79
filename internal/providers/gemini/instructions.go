package gemini

import (
	"fmt"
	"strings"

	"server/internal/brands"
)

const analysisInstruction = `Analyze this product image and provide a detailed description focusing on:

1. Product Type: What type of product is this?
2. Visual Style: Describe the current visual presentation, colors, materials, textures
3. Target Audience: Who would typically buy this product?
4. Current Brand Feeling: What brand vibe does it currently convey?
5. Key Features: What are the standout visual elements?

Provide a comprehensive analysis that will help transform this product into different brand aesthetics.`

// CombinationSentinel is the fixed phrase every combination prompt must start
// with; the prompt parser keys on it.
const CombinationSentinel = "Combine these product images into one cohesive scene"

var clothingMarkers = []string{
	"clothing", "shirt", "dress", "skirt", "pants", "pajama",
	"top", "bottom", "fashion", "wear", "garment",
}

func isClothingAnalysis(analysis string) bool {
	lower := strings.ToLower(analysis)
	for _, marker := range clothingMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// buildBrandPromptInstruction produces the instruction that asks the model for
// exactly four PROMPT n blocks, each opening with the combination sentinel.
func buildBrandPromptInstruction(productAnalysis string, brand brands.Brand) string {
	style := brand.StyleDescription()
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "You are an expert fashion and product marketing image prompt generator.\n\n")
	fmt.Fprintf(sb, "Transform the analyzed product into 4 different marketing photoshoot prompts with different poses while keeping the same product and the %s aesthetic of %s.\n\n", style, brand.Name)
	fmt.Fprintf(sb, "Product analysis:\n%s\n\n", productAnalysis)
	fmt.Fprintf(sb, "Brand style requirements:\n- Style aesthetic: %s\n- Brand identity: %s\n- Marketing focus: professional photoshoot content\n\n", style, brand.Name)
	if isClothingAnalysis(productAnalysis) {
		sb.WriteString("This is a clothing item: every prompt MUST include a professional human model wearing the product. No flat-lay or product-only shots. Keep the exact colors from the input images.\n\n")
	} else {
		sb.WriteString("Show the product in a premium marketing presentation with relevant lifestyle context.\n\n")
	}
	fmt.Fprintf(sb, "Each prompt must start with %q and merge all input images into one unified composition.\n\n", CombinationSentinel+":")
	sb.WriteString(`Output format, EXACTLY:

**PROMPT 1:**
` + CombinationSentinel + `: [detailed prompt for front pose]

**PROMPT 2:**
` + CombinationSentinel + `: [detailed prompt for profile/side pose]

**PROMPT 3:**
` + CombinationSentinel + `: [detailed prompt for dynamic/movement pose]

**PROMPT 4:**
` + CombinationSentinel + `: [detailed prompt for close-up/detail pose]

Generate ONLY the 4 prompts in the exact format above, no extra explanations.`)
	return sb.String()
}

const mockAnalysis = `Product Analysis: This appears to be a black clothing item, likely a top or garment with white trim details. The product has a classic, minimalist aesthetic with clean lines and contrasting white piping or binding. The color scheme is predominantly black with white accents, giving it a timeless and versatile appearance. The style suggests it could appeal to a fashion-conscious audience looking for sophisticated basics. The current brand feeling conveys elegance, simplicity, and modern sophistication. Key visual elements include the contrasting trim details and the clean, structured silhouette.`

// mockBrandPrompt matches the format real responses are expected to follow, so
// the downstream parser finds four structured prompts even without an API key.
func mockBrandPrompt(brand brands.Brand) string {
	style := brand.StyleDescription()
	poses := []string{
		"front pose, clean background, premium lighting, model looking directly at camera, confident pose, minimalist composition",
		"profile side pose, elegant lighting, sophisticated styling, model in three-quarter turn, premium fashion photography",
		"dynamic pose in motion, lifestyle photography, model walking or moving naturally, capturing fabric flow and movement",
		"close-up detail shot focusing on the product, premium texture visible, artistic composition, model partially visible",
	}
	sb := &strings.Builder{}
	for i, pose := range poses {
		fmt.Fprintf(sb, "**PROMPT %d:**\n%s: Professional model presenting the product in a %s setting, %s, %s brand aesthetic.\n\n",
			i+1, CombinationSentinel, style, pose, brand.Name)
	}
	return strings.TrimSpace(sb.String())
}
