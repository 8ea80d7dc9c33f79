// Package brands holds the static catalog of brand aesthetics that generation
// requests reference by id.
package brands

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed brands.yaml
var defaultCatalogYAML []byte

// Brand describes one brand aesthetic users can restyle their product into.
type Brand struct {
	ID              string   `yaml:"id" json:"id"`
	Name            string   `yaml:"name" json:"name"`
	Tagline         string   `yaml:"tagline" json:"tagline"`
	BaseDescription string   `yaml:"base_description" json:"baseDescription"`
	ColorPalette    []string `yaml:"color_palette" json:"colorPalette"`
	StyleKeywords   []string `yaml:"style_keywords" json:"styleKeywords"`
}

// StyleDescription joins the style keywords the way prompt templates expect.
func (b Brand) StyleDescription() string {
	if len(b.StyleKeywords) == 0 {
		return "modern, stylish, premium"
	}
	return strings.Join(b.StyleKeywords, ", ")
}

// Catalog is an immutable, id-indexed set of brands.
type Catalog struct {
	brands []Brand
	byID   map[string]Brand
}

type catalogFile struct {
	Brands []Brand `yaml:"brands"`
}

// Load reads the catalog from path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	data := defaultCatalogYAML
	if strings.TrimSpace(path) != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("brands: read catalog: %w", err)
		}
	}
	return parse(data)
}

func parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("brands: parse catalog: %w", err)
	}
	if len(file.Brands) == 0 {
		return nil, errors.New("brands: catalog is empty")
	}
	byID := make(map[string]Brand, len(file.Brands))
	for _, b := range file.Brands {
		id := strings.ToLower(strings.TrimSpace(b.ID))
		if id == "" || strings.TrimSpace(b.Name) == "" {
			return nil, fmt.Errorf("brands: entry %q missing id or name", b.Name)
		}
		if _, dup := byID[id]; dup {
			return nil, fmt.Errorf("brands: duplicate id %q", id)
		}
		b.ID = id
		byID[id] = b
	}
	return &Catalog{brands: file.Brands, byID: byID}, nil
}

// ByID looks up a brand by its lowercase id.
func (c *Catalog) ByID(id string) (Brand, bool) {
	b, ok := c.byID[strings.ToLower(strings.TrimSpace(id))]
	return b, ok
}

// List returns all brands in catalog order.
func (c *Catalog) List() []Brand {
	out := make([]Brand, len(c.brands))
	copy(out, c.brands)
	return out
}
