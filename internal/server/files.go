package server

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/document-locker/locker/internal/constants"
	"github.com/document-locker/locker/internal/models"
	"github.com/document-locker/locker/internal/storage"
	"github.com/document-locker/locker/internal/validation"
)

const noBackendMessage = "Storage service not available. Please configure a storage backend."

// multipartMemory is how much of an upload is held in memory before
// spilling to a temp file.
const multipartMemory = 32 << 20

// keyParam returns the object key from the wildcard. chi matches on the
// escaped path when the URL has one, so escaped slashes arrive encoded.
func keyParam(r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "*")
	if r.URL.RawPath == "" {
		return raw, raw != ""
	}
	key, err := url.PathUnescape(raw)
	if err != nil || key == "" {
		return "", false
	}
	return key, true
}

func contentTypeFor(name, declared string) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.backend == nil {
		writeError(w, http.StatusServiceUnavailable, noBackendMessage)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		s.logger.Debug().Err(err).Msg("Bad multipart body")
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	name := validation.SanitizeFilename(header.Filename)
	if name == "" {
		writeError(w, http.StatusBadRequest, "Empty file")
		return
	}
	key := name
	if folder := validation.SanitizeFolder(r.FormValue("folder")); folder != "" {
		key = path.Join(folder, name)
	}
	if err := validation.ValidateObjectKey(key); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid file name")
		return
	}

	ctx := r.Context()
	if _, err := s.backend.Stat(ctx, key); err == nil {
		s.metrics.uploads.WithLabelValues("exists").Inc()
		writeError(w, http.StatusBadRequest, "File already exists")
		return
	} else if !errors.Is(err, storage.ErrNotFound) {
		s.logger.Error().Err(err).Str("key", key).Msg("Stat before upload failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ct := contentTypeFor(name, header.Header.Get("Content-Type"))
	if err := s.backend.Put(ctx, key, ct, file, header.Size); err != nil {
		s.metrics.uploads.WithLabelValues("failed").Inc()
		s.logger.Error().Err(err).Str("key", key).Msg("Upload failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.metrics.uploads.WithLabelValues("ok").Inc()
	s.metrics.bytesUploaded.Add(float64(header.Size))
	s.logger.Info().Str("key", key).Int64("size", header.Size).Str("content_type", ct).Msg("File uploaded")
	writeJSON(w, http.StatusOK, models.MessageResponse{
		Message: key + " uploaded to " + s.backend.Name(),
		Key:     key,
	})
}

func toFileInfo(o storage.Object) models.FileInfo {
	info := models.FileInfo{
		Name:        o.Name(),
		Key:         o.Key,
		Size:        o.Size,
		ContentType: o.ContentType,
	}
	if !o.LastModified.IsZero() {
		info.LastModified = o.LastModified.Format(time.RFC3339)
	}
	return info
}

// handleListFiles answers with an empty list when no backend is
// configured, so the client still renders.
func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	if s.backend == nil {
		writeJSON(w, http.StatusOK, struct {
			Files   []models.FileInfo `json:"files"`
			Message string            `json:"message"`
		}{Files: []models.FileInfo{}, Message: noBackendMessage})
		return
	}

	objs, err := s.backend.List(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("List failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	folder := validation.SanitizeFolder(r.URL.Query().Get("folder"))
	files := make([]models.FileInfo, 0, len(objs))
	for _, o := range objs {
		if folder != "" && o.Folder() != folder {
			continue
		}
		files = append(files, toFileInfo(o))
	}
	writeJSON(w, http.StatusOK, models.ListFilesResponse{Files: files})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if s.backend == nil {
		writeError(w, http.StatusServiceUnavailable, noBackendMessage)
		return
	}
	key, ok := keyParam(r)
	if !ok {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}

	rc, obj, err := s.backend.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidKey) {
			s.metrics.downloads.WithLabelValues("not_found").Inc()
			writeError(w, http.StatusNotFound, "File not found")
			return
		}
		s.metrics.downloads.WithLabelValues("failed").Inc()
		s.logger.Error().Err(err).Str("key", key).Msg("Download failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer rc.Close()

	ct := obj.ContentType
	if ct == "" {
		ct = contentTypeFor(obj.Name(), "")
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": obj.Name()}))
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	n, err := io.Copy(w, rc)
	s.metrics.bytesDownload.Add(float64(n))
	if err != nil {
		s.metrics.downloads.WithLabelValues("aborted").Inc()
		s.logger.Warn().Err(err).Str("key", key).Int64("sent", n).Msg("Download interrupted")
		return
	}
	s.metrics.downloads.WithLabelValues("ok").Inc()
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if s.backend == nil {
		writeError(w, http.StatusServiceUnavailable, noBackendMessage)
		return
	}
	key, ok := keyParam(r)
	if !ok {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}

	if err := s.backend.Delete(r.Context(), key); err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidKey) {
			writeError(w, http.StatusNotFound, "File not found")
			return
		}
		s.logger.Error().Err(err).Str("key", key).Msg("Delete failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info().Str("key", key).Msg("File deleted")
	writeMessage(w, http.StatusOK, key+" deleted from "+s.backend.Name())
}

func (s *Server) handleStorage(w http.ResponseWriter, r *http.Request) {
	if s.backend == nil {
		writeJSON(w, http.StatusOK, struct {
			models.StorageResponse
			Message string `json:"message"`
		}{Message: noBackendMessage})
		return
	}
	objs, err := s.backend.List(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Storage usage failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, models.StorageResponse{
		TotalBytes: storage.TotalSize(objs),
		FileCount:  len(objs),
	})
}
