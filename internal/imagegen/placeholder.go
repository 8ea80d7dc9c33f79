package imagegen

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	"server/internal/brands"
)

const placeholderSize = 512

var placeholderFallbackPalette = []string{"#9E9E9E", "#616161", "#BDBDBD", "#E0E0E0"}

// RenderPlaceholder draws a deterministic stand-in image for one variation
// slot: horizontal bands of the brand palette with tick marks encoding the
// slot number. Used when no image provider is reachable, so it must never
// touch the network.
func RenderPlaceholder(brand brands.Brand, slot int) []byte {
	palette := brand.ColorPalette
	if len(palette) == 0 {
		palette = placeholderFallbackPalette
	}
	colors := make([]color.RGBA, len(palette))
	for i, hex := range palette {
		colors[i] = parseHexColor(hex)
	}

	img := image.NewRGBA(image.Rect(0, 0, placeholderSize, placeholderSize))
	bandHeight := placeholderSize / len(colors)
	for y := 0; y < placeholderSize; y++ {
		band := y / bandHeight
		if band >= len(colors) {
			band = len(colors) - 1
		}
		for x := 0; x < placeholderSize; x++ {
			img.SetRGBA(x, y, colors[band])
		}
	}

	// One tick mark per slot number along the top edge.
	tick := color.RGBA{A: 255}
	if luminance(colors[0]) < 128 {
		tick = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	}
	for n := 0; n < slot; n++ {
		x0 := 16 + n*24
		for x := x0; x < x0+12 && x < placeholderSize; x++ {
			for y := 16; y < 28; y++ {
				img.SetRGBA(x, y, tick)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		// Encoding an in-memory RGBA image cannot fail in practice.
		return nil
	}
	return buf.Bytes()
}

func parseHexColor(s string) color.RGBA {
	if len(s) == 7 && s[0] == '#' {
		return color.RGBA{
			R: hexByte(s[1], s[2]),
			G: hexByte(s[3], s[4]),
			B: hexByte(s[5], s[6]),
			A: 255,
		}
	}
	return color.RGBA{R: 128, G: 128, B: 128, A: 255}
}

func hexByte(hi, lo byte) uint8 {
	return hexNibble(hi)<<4 | hexNibble(lo)
}

func hexNibble(c byte) uint8 {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}

func luminance(c color.RGBA) int {
	return (299*int(c.R) + 587*int(c.G) + 114*int(c.B)) / 1000
}
