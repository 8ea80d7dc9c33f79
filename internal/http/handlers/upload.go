package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"server/internal/storage"
)

const (
	maxUploadBytes = 10 << 20
	maxBatchFiles  = 5
)

type uploadedFile struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	SavedAs  string `json:"savedAs"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimetype"`
}

// UploadSingle accepts one product photo under the multipart field "file".
func (a *App) UploadSingle(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart payload")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "no file uploaded")
		return
	}
	defer file.Close()

	saved, err := a.saveUpload(r, file, header)
	if err != nil {
		a.uploadError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"url":      saved.URL,
		"filename": saved.Filename,
		"savedAs":  saved.SavedAs,
		"size":     saved.Size,
		"mimetype": saved.MimeType,
		"success":  true,
	})
}

// UploadBatch accepts up to five product photos under the multipart field
// "files".
func (a *App) UploadBatch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxBatchFiles * maxUploadBytes); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart payload")
		return
	}
	if r.MultipartForm == nil {
		a.error(w, http.StatusBadRequest, "bad_request", "no files uploaded")
		return
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "no files uploaded")
		return
	}
	if len(headers) > maxBatchFiles {
		a.error(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("at most %d files per upload", maxBatchFiles))
		return
	}

	files := make([]uploadedFile, 0, len(headers))
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "unreadable file in upload")
			return
		}
		saved, err := a.saveUpload(r, file, header)
		file.Close()
		if err != nil {
			a.uploadError(w, err)
			return
		}
		files = append(files, saved)
	}
	a.json(w, http.StatusOK, map[string]any{
		"files":   files,
		"count":   len(files),
		"success": true,
	})
}

var errUnsupportedMediaType = fmt.Errorf("only image uploads are accepted")

func (a *App) saveUpload(r *http.Request, file multipart.File, header *multipart.FileHeader) (uploadedFile, error) {
	if header.Size > maxUploadBytes {
		return uploadedFile{}, fmt.Errorf("file %q exceeds the %d MB limit", header.Filename, maxUploadBytes>>20)
	}
	mimeType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(mimeType, "image/") {
		return uploadedFile{}, errUnsupportedMediaType
	}
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		return uploadedFile{}, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > maxUploadBytes {
		return uploadedFile{}, fmt.Errorf("file %q exceeds the %d MB limit", header.Filename, maxUploadBytes>>20)
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext == "" {
		ext = ".png"
	}
	key := fmt.Sprintf("upload_%d_%s%s", time.Now().UnixMilli(), uuid.NewString()[:8], ext)
	if _, err := a.Store.Write(r.Context(), key, data); err != nil {
		return uploadedFile{}, fmt.Errorf("store upload: %w", err)
	}

	a.Logger.Info().Str("key", key).Int("bytes", len(data)).Msg("upload stored")
	return uploadedFile{
		URL:      storage.PublicURL(a.Config.PublicBaseURL, key),
		Filename: header.Filename,
		SavedAs:  key,
		Size:     int64(len(data)),
		MimeType: mimeType,
	}, nil
}

func (a *App) uploadError(w http.ResponseWriter, err error) {
	if err == errUnsupportedMediaType {
		a.error(w, http.StatusBadRequest, "unsupported_media_type", err.Error())
		return
	}
	if strings.Contains(err.Error(), "exceeds") {
		a.error(w, http.StatusBadRequest, "file_too_large", err.Error())
		return
	}
	a.Logger.Error().Err(err).Msg("upload failed")
	a.error(w, http.StatusInternalServerError, "internal", "failed to store upload")
}
