package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"server/internal/imagegen"
)

type generateImagesRequest struct {
	// ProductImageURLs arrives as either a single string or an array.
	ProductImageURLs json.RawMessage `json:"productImageUrls"`
	// ProductImageURL is the older single-image field still sent by cached
	// frontend builds.
	ProductImageURL string          `json:"productImageUrl"`
	BrandPrompt     json.RawMessage `json:"brandPrompt"`
	BrandID         string          `json:"brandId"`
	Count           int             `json:"count"`
}

// GenerateBrandImages runs the variation fan-out for one brand restyling job.
func (a *App) GenerateBrandImages(w http.ResponseWriter, r *http.Request) {
	var req generateImagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	imageURLs := normalizeImageURLs(req.ProductImageURLs, req.ProductImageURL)
	if len(imageURLs) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "productImageUrls is required")
		return
	}
	if len(req.BrandPrompt) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "brandPrompt is required")
		return
	}
	if strings.TrimSpace(req.BrandID) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "brandId is required")
		return
	}
	brand, ok := a.Catalog.ByID(req.BrandID)
	if !ok {
		a.error(w, http.StatusNotFound, "unknown_brand", "brand not found: "+req.BrandID)
		return
	}

	var promptValue any
	if err := json.Unmarshal(req.BrandPrompt, &promptValue); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "brandPrompt is not valid JSON")
		return
	}

	result, err := a.Images.Run(r.Context(), imagegen.Job{
		ProductImageURLs: imageURLs,
		BrandPromptText:  promptValue,
		Brand:            brand,
		Count:            req.Count,
	})
	if err != nil {
		var allFailed *imagegen.AllFailedError
		switch {
		case errors.As(err, &allFailed):
			a.Logger.Error().Str("brand", brand.ID).Int("failures", len(allFailed.Failures)).Msg("every variation failed")
			a.error(w, http.StatusInternalServerError, "generation_failed", allFailed.Error())
		case errors.Is(err, imagegen.ErrInvalidInput):
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		default:
			a.Logger.Error().Err(err).Str("brand", brand.ID).Msg("image generation failed")
			a.error(w, http.StatusInternalServerError, "generation_failed", "failed to generate brand images")
		}
		return
	}

	a.json(w, http.StatusOK, map[string]any{
		"images":    result.Images,
		"brandName": brand.Name,
		"method":    result.Method,
		"success":   true,
	})
}

// normalizeImageURLs accepts a string, an array of strings, or the legacy
// single-url field, returning the non-empty urls in order.
func normalizeImageURLs(raw json.RawMessage, legacy string) []string {
	var urls []string
	if len(raw) > 0 {
		var single string
		var many []string
		if err := json.Unmarshal(raw, &single); err == nil {
			urls = append(urls, single)
		} else if err := json.Unmarshal(raw, &many); err == nil {
			urls = append(urls, many...)
		}
	}
	if len(urls) == 0 && legacy != "" {
		urls = append(urls, legacy)
	}
	out := urls[:0]
	for _, u := range urls {
		if strings.TrimSpace(u) != "" {
			out = append(out, u)
		}
	}
	return out
}
