package handlers

import "net/http"

// ListBrands returns the brand catalog the frontend renders as style cards.
func (a *App) ListBrands(w http.ResponseWriter, r *http.Request) {
	list := a.Catalog.List()
	a.json(w, http.StatusOK, map[string]any{
		"brands":  list,
		"count":   len(list),
		"success": true,
	})
}
