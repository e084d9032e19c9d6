package models

import (
	"net/url"
	"strings"
	"time"
)

// Kind distinguishes stored files from client-side folders.
type Kind string

const (
	KindFile   Kind = "file"
	KindFolder Kind = "folder"
)

// FileRecord is one entry in the dashboard list.
//
// ID is client generated and only meaningful for the current session.
// Key is the server storage key; it is empty for folders created locally,
// which never exist on the server.
type FileRecord struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Kind         Kind      `json:"kind"`
	Size         *int64    `json:"size,omitempty"`
	ModTime      time.Time `json:"mod_time"`
	Key          string    `json:"key,omitempty"`
	MimeType     string    `json:"mime_type,omitempty"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
}

// IsFolder reports whether the record is a folder.
func (r FileRecord) IsFolder() bool {
	return r.Kind == KindFolder
}

// HasKey reports whether the record is backed by a server object.
func (r FileRecord) HasKey() bool {
	return r.Key != ""
}

// SizeOrZero returns the size, treating an unknown size as zero.
func (r FileRecord) SizeOrZero() int64 {
	if r.Size == nil {
		return 0
	}
	return *r.Size
}

// IsImage reports whether the MIME type is an image type.
func (r FileRecord) IsImage() bool {
	return strings.HasPrefix(r.MimeType, "image/")
}

// IsText reports whether the MIME type is a text type.
func (r FileRecord) IsText() bool {
	return strings.HasPrefix(r.MimeType, "text/")
}

// SizePtr is a helper for building records with a known size.
func SizePtr(n int64) *int64 {
	return &n
}

// DownloadURL returns the API URL that serves the object with the given key.
func DownloadURL(baseURL, key string) string {
	return strings.TrimRight(baseURL, "/") + "/download/" + url.PathEscape(key)
}

// ThumbnailFor returns the thumbnail URL for an object, or "" when the
// MIME type is not an image.
func ThumbnailFor(baseURL, key, mimeType string) string {
	if key == "" || !strings.HasPrefix(mimeType, "image/") {
		return ""
	}
	return DownloadURL(baseURL, key)
}

// FileInfo is one object as reported by GET /files.
type FileInfo struct {
	Name         string `json:"name"`
	Key          string `json:"key"`
	Size         int64  `json:"size"`
	ContentType  string `json:"content_type"`
	LastModified string `json:"last_modified"`
}

// ModTime parses LastModified. Servers emit RFC 3339 or ISO 8601 without a
// zone; anything unparseable yields the zero time.
func (f FileInfo) ModTime() time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, f.LastModified); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ListFilesResponse is the body of GET /files.
type ListFilesResponse struct {
	Files []FileInfo `json:"files"`
}

// MessageResponse is the generic {message} body returned by mutating endpoints.
// Error responses may carry either "message" or "error".
type MessageResponse struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Key     string `json:"key,omitempty"`
}

// Text returns whichever of Message or Error is set.
func (m MessageResponse) Text() string {
	if m.Message != "" {
		return m.Message
	}
	return m.Error
}

// StorageResponse is the body of GET /storage.
type StorageResponse struct {
	TotalBytes int64 `json:"total_bytes"`
	FileCount  int   `json:"file_count,omitempty"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Status   string `json:"status"`
	Backend  string `json:"backend"`
	Bucket   string `json:"bucket,omitempty"`
	Version  string `json:"version,omitempty"`
	AuthMode string `json:"auth_mode,omitempty"`
}
