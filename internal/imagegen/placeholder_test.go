package imagegen

import (
	"bytes"
	"image/png"
	"testing"

	"server/internal/brands"
)

func TestRenderPlaceholderDeterministic(t *testing.T) {
	brand := testBrand()
	a := RenderPlaceholder(brand, 2)
	b := RenderPlaceholder(brand, 2)
	if !bytes.Equal(a, b) {
		t.Fatal("same brand and slot must render identical bytes")
	}
	if bytes.Equal(a, RenderPlaceholder(brand, 3)) {
		t.Fatal("different slots must render distinct images")
	}
}

func TestRenderPlaceholderIsValidPNG(t *testing.T) {
	img, err := png.Decode(bytes.NewReader(RenderPlaceholder(testBrand(), 1)))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != 512 || bounds.Dy() != 512 {
		t.Fatalf("bounds = %v, want 512x512", bounds)
	}
}

func TestRenderPlaceholderEmptyPalette(t *testing.T) {
	data := RenderPlaceholder(brands.Brand{ID: "bare", Name: "Bare"}, 1)
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		t.Fatalf("decode with fallback palette: %v", err)
	}
}
