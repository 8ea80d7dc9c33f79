package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"server/internal/brands"
	"server/internal/imagegen"
)

type combineImagesRequest struct {
	ProductImageURLs  []string `json:"productImageUrls"`
	CombinationPrompt string   `json:"combinationPrompt"`
	BrandID           string   `json:"brandId"`
	BrandName         string   `json:"brandName"`
}

// CombineImages produces a single scene holding every uploaded product.
func (a *App) CombineImages(w http.ResponseWriter, r *http.Request) {
	var req combineImagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if len(req.ProductImageURLs) < 2 {
		a.error(w, http.StatusBadRequest, "bad_request", "combining requires at least 2 product image urls")
		return
	}

	prompt := strings.TrimSpace(req.CombinationPrompt)
	if prompt == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "combinationPrompt is required")
		return
	}
	if !strings.Contains(strings.ToLower(prompt), strings.ToLower(imagegen.CombinationSentinel)) {
		prompt = imagegen.CombinationSentinel + ": " + prompt
	}

	brand := a.combineBrand(req)
	result, err := a.Images.Combine(r.Context(), req.ProductImageURLs, prompt, brand)
	if err != nil {
		if errors.Is(err, imagegen.ErrInvalidInput) {
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		a.Logger.Error().Err(err).Msg("image combination failed")
		a.error(w, http.StatusInternalServerError, "generation_failed", "failed to combine product images")
		return
	}

	a.json(w, http.StatusOK, map[string]any{
		"image":           result.Images[0],
		"inputImageCount": len(req.ProductImageURLs),
		"method":          result.Method,
		"success":         true,
	})
}

func (a *App) combineBrand(req combineImagesRequest) brands.Brand {
	if req.BrandID != "" {
		if brand, ok := a.Catalog.ByID(req.BrandID); ok {
			return brand
		}
	}
	name := strings.TrimSpace(req.BrandName)
	if name == "" {
		name = "combined"
	}
	return brands.Brand{ID: "adhoc", Name: name}
}
