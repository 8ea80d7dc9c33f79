// Package handlers holds the HTTP endpoints of the brand restyling service.
// Handlers depend on small interfaces so tests can substitute every provider.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"server/internal/brands"
	"server/internal/imagegen"
	"server/internal/infra"
	"server/internal/providers/gemini"
	"server/internal/storage"
)

// ProductAnalyzer describes products from photos. Implemented by the gemini
// client.
type ProductAnalyzer interface {
	AnalyzeProduct(ctx context.Context, images []gemini.ImagePart) (string, error)
}

// BrandPromptGenerator turns a product analysis and a brand into prompt text.
type BrandPromptGenerator interface {
	GenerateBrandPrompt(ctx context.Context, productAnalysis string, brand brands.Brand) (string, error)
}

// ImageOrchestrator runs generation jobs. Implemented by imagegen.Orchestrator.
type ImageOrchestrator interface {
	Run(ctx context.Context, job imagegen.Job) (*imagegen.Result, error)
	Combine(ctx context.Context, imageURLs []string, prompt string, brand brands.Brand) (*imagegen.Result, error)
}

const analysisCacheTTL = 15 * time.Minute

// App carries the wired dependencies every handler needs.
type App struct {
	Config   *infra.Config
	Logger   *infra.Logger
	Catalog  *brands.Catalog
	Store    *storage.FileStore
	Analyzer ProductAnalyzer
	Prompter BrandPromptGenerator
	Images   ImageOrchestrator
	Fetcher  *http.Client
	analyses *gocache.Cache
}

// NewApp wires the handler set.
func NewApp(cfg *infra.Config, logger *infra.Logger, catalog *brands.Catalog, store *storage.FileStore, analyzer ProductAnalyzer, prompter BrandPromptGenerator, images ImageOrchestrator) *App {
	return &App{
		Config:   cfg,
		Logger:   logger,
		Catalog:  catalog,
		Store:    store,
		Analyzer: analyzer,
		Prompter: prompter,
		Images:   images,
		Fetcher:  &http.Client{Timeout: 30 * time.Second},
		analyses: gocache.New(analysisCacheTTL, 2*analysisCacheTTL),
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]any{"error": code, "message": message, "success": false})
}
