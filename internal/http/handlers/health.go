package handlers

import (
	"net/http"
	"time"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"service":   "brand-image-api",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"port":      a.Config.Port,
		"configuration": map[string]bool{
			"geminiConfigured":    a.Config.GeminiConfigured(),
			"replicateConfigured": a.Config.ReplicateConfigured(),
		},
	})
}
