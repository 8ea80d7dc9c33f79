package handlers

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	gocache "github.com/patrickmn/go-cache"

	"server/internal/providers/gemini"
)

type analyzeRequest struct {
	ImageBase64 string   `json:"imageBase64"`
	MimeType    string   `json:"mimeType"`
	ImageURLs   []string `json:"imageUrls"`
}

// AnalyzeProduct describes the uploaded product photos. Accepts either one
// inline base64 image or a list of previously uploaded image URLs.
func (a *App) AnalyzeProduct(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.ImageBase64 == "" && len(req.ImageURLs) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "imageBase64 or imageUrls is required")
		return
	}

	parts, err := a.resolveImageParts(r, req)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	// Re-analyzing the same photos is common when users flip between brands.
	cacheKey := analysisCacheKey(parts)
	if cached, ok := a.analyses.Get(cacheKey); ok {
		a.json(w, http.StatusOK, map[string]any{"analysis": cached, "success": true, "cached": true})
		return
	}

	analysis, err := a.Analyzer.AnalyzeProduct(r.Context(), parts)
	if err != nil {
		a.Logger.Error().Err(err).Msg("product analysis failed")
		a.error(w, http.StatusInternalServerError, "analysis_failed", "failed to analyze product image")
		return
	}
	a.analyses.Set(cacheKey, analysis, gocache.DefaultExpiration)
	a.json(w, http.StatusOK, map[string]any{"analysis": analysis, "success": true})
}

func (a *App) resolveImageParts(r *http.Request, req analyzeRequest) ([]gemini.ImagePart, error) {
	if req.ImageBase64 != "" {
		mimeType := req.MimeType
		if mimeType == "" {
			mimeType = "image/png"
		}
		return []gemini.ImagePart{{Base64: req.ImageBase64, MIMEType: mimeType}}, nil
	}

	parts := make([]gemini.ImagePart, 0, len(req.ImageURLs))
	for _, rawURL := range req.ImageURLs {
		data, mimeType, err := a.loadImage(r, rawURL)
		if err != nil {
			return nil, err
		}
		parts = append(parts, gemini.ImagePart{
			Base64:   base64.StdEncoding.EncodeToString(data),
			MIMEType: mimeType,
		})
	}
	return parts, nil
}

// loadImage resolves one image URL to bytes. URLs pointing at our own uploads
// directory are read from disk, anything else is fetched.
func (a *App) loadImage(r *http.Request, rawURL string) ([]byte, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Path == "" {
		return nil, "", fmt.Errorf("invalid image url %q", rawURL)
	}
	if strings.Contains(parsed.Path, "/uploads/") {
		data, err := a.Store.Read(path.Base(parsed.Path))
		if err != nil {
			return nil, "", fmt.Errorf("uploaded file not found for %q", rawURL)
		}
		return data, mimeFromExt(parsed.Path), nil
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, "", fmt.Errorf("unsupported image url %q", rawURL)
	}

	fetchReq, err := http.NewRequestWithContext(r.Context(), http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("invalid image url %q", rawURL)
	}
	resp, err := a.Fetcher.Do(fetchReq)
	if err != nil {
		return nil, "", fmt.Errorf("fetch image %q: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch image %q: status %d", rawURL, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxUploadBytes))
	if err != nil {
		return nil, "", fmt.Errorf("fetch image %q: %w", rawURL, err)
	}
	mimeType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = mimeFromExt(parsed.Path)
	}
	return data, mimeType, nil
}

func mimeFromExt(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "image/png"
	}
}

func analysisCacheKey(parts []gemini.ImagePart) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p.MIMEType))
		h.Write([]byte(p.Base64))
	}
	return hex.EncodeToString(h.Sum(nil))
}
