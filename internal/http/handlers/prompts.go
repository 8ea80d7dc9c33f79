package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"server/internal/brands"
)

type brandPromptRequest struct {
	ProductAnalysis string       `json:"productAnalysis"`
	BrandData       brands.Brand `json:"brandData"`
	BrandID         string       `json:"brandId"`
}

// GenerateBrandPrompt turns a product analysis plus a brand into the prompt
// text the image step consumes.
func (a *App) GenerateBrandPrompt(w http.ResponseWriter, r *http.Request) {
	var req brandPromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if strings.TrimSpace(req.ProductAnalysis) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "productAnalysis is required")
		return
	}

	brand, ok := a.resolveBrand(req.BrandID, req.BrandData)
	if !ok {
		a.error(w, http.StatusBadRequest, "bad_request", "brandData or brandId is required")
		return
	}

	prompt, err := a.Prompter.GenerateBrandPrompt(r.Context(), req.ProductAnalysis, brand)
	if err != nil {
		a.Logger.Error().Err(err).Str("brand", brand.ID).Msg("brand prompt generation failed")
		a.error(w, http.StatusInternalServerError, "prompt_failed", "failed to generate brand prompt")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"brandPrompt": prompt,
		"brandName":   brand.Name,
		"success":     true,
	})
}

// resolveBrand prefers the catalog entry when an id is known, falling back to
// the caller-supplied brand object so custom aesthetics still work.
func (a *App) resolveBrand(brandID string, data brands.Brand) (brands.Brand, bool) {
	id := strings.TrimSpace(brandID)
	if id == "" {
		id = strings.TrimSpace(data.ID)
	}
	if id != "" {
		if brand, ok := a.Catalog.ByID(id); ok {
			return brand, true
		}
	}
	if strings.TrimSpace(data.Name) != "" {
		return data, true
	}
	return brands.Brand{}, false
}
