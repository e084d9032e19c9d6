package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	nethttp "net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/document-locker/locker/internal/models"
)

// UploadRequest describes one file to send to POST /upload.
type UploadRequest struct {
	Name        string
	Folder      string // optional; the server prefixes the key with it
	ContentType string

	// Open returns a fresh reader over the content. Upload calls it once
	// before sending, and once more for each retry.
	Open func() (io.ReadCloser, error)

	// Progress, when set, receives byte counts as the body is streamed.
	Progress func(n int)
}

// Download is an open GET /download response. The caller must Close it.
type Download struct {
	Body        io.ReadCloser
	Size        int64 // -1 when the server sent no length
	ContentType string
}

func (d *Download) Close() error { return d.Body.Close() }

// ListFiles fetches every object visible to the user.
func (c *Client) ListFiles(ctx context.Context) ([]models.FileInfo, error) {
	var out models.ListFilesResponse
	if err := c.doJSON(ctx, nethttp.MethodGet, "/files", nil, &out); err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return out.Files, nil
}

// Upload streams one file as multipart/form-data (field "file", plus
// "folder" when set) and returns the server's message.
func (c *Client) Upload(ctx context.Context, up UploadRequest) (*models.MessageResponse, error) {
	if up.Open == nil {
		return nil, fmt.Errorf("upload %s: no content", up.Name)
	}

	boundary, err := newBoundary()
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", up.Name, err)
	}

	// Opening up front fails fast before any bytes go out.
	first, err := up.Open()
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", up.Name, err)
	}
	srcs := &uploadSource{next: first, open: up.Open}
	defer srcs.release()

	// retryablehttp calls the ReaderFunc once while building the request to
	// probe for a length. The body stays unopened until the transport reads
	// it, so that call never touches the source.
	body := retryablehttp.ReaderFunc(func() (io.Reader, error) {
		return &lazyBody{open: func() (io.ReadCloser, error) {
			src, err := srcs.take()
			if err != nil {
				return nil, err
			}
			pr, pw := io.Pipe()
			go func() {
				defer src.Close()
				pw.CloseWithError(writeMultipart(pw, boundary, up, src))
			}()
			return pr, nil
		}}, nil
	})

	req, err := c.newRequest(ctx, nethttp.MethodPost, "/upload", body)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", up.Name, err)
	}
	req.Header.Set("Content-Type", "multipart/form-data; boundary="+boundary)

	resp, err := c.send(req)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", up.Name, err)
	}
	defer resp.Body.Close()

	// A success body that is not JSON still counts as success.
	var msg models.MessageResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&msg)
	return &msg, nil
}

// uploadSource hands out the reader opened before sending, then fresh ones
// for retries.
type uploadSource struct {
	mu   sync.Mutex
	next io.ReadCloser
	open func() (io.ReadCloser, error)
}

func (s *uploadSource) take() (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next != nil {
		r := s.next
		s.next = nil
		return r, nil
	}
	return s.open()
}

// release closes the first reader if no attempt used it.
func (s *uploadSource) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next != nil {
		s.next.Close()
		s.next = nil
	}
}

// lazyBody defers open until the first Read.
type lazyBody struct {
	mu     sync.Mutex
	open   func() (io.ReadCloser, error)
	r      io.ReadCloser
	err    error
	closed bool
}

func (b *lazyBody) reader() (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.r == nil && b.err == nil {
		if b.closed {
			b.err = io.ErrClosedPipe
		} else {
			b.r, b.err = b.open()
		}
	}
	return b.r, b.err
}

func (b *lazyBody) Read(p []byte) (int, error) {
	r, err := b.reader()
	if err != nil {
		return 0, err
	}
	return r.Read(p)
}

func (b *lazyBody) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	if b.r != nil {
		return b.r.Close()
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeMultipart(w io.Writer, boundary string, up UploadRequest, src io.Reader) error {
	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(boundary); err != nil {
		return err
	}

	if up.Folder != "" {
		if err := mw.WriteField("folder", up.Folder); err != nil {
			return err
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(up.Name)))
	ct := up.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if up.Progress != nil {
		src = &countingReader{r: src, fn: up.Progress}
	}
	if _, err := io.Copy(part, src); err != nil {
		return err
	}
	return mw.Close()
}

func newBoundary() (string, error) {
	var buf [24]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return "locker-" + hex.EncodeToString(buf[:]), nil
}

type countingReader struct {
	r  io.Reader
	fn func(int)
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.fn(n)
	}
	return n, err
}

// Delete removes the object with the given key.
func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.doJSON(ctx, nethttp.MethodDelete, "/delete/"+url.PathEscape(key), nil, nil); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// OpenDownload starts GET /download/{key}.
func (c *Client) OpenDownload(ctx context.Context, key string) (*Download, error) {
	req, err := c.newRequest(ctx, nethttp.MethodGet, "/download/"+url.PathEscape(key), nil)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", key, err)
	}
	req.Header.Set("Accept", "*/*")

	resp, err := c.send(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", key, err)
	}

	size := resp.ContentLength
	if size < 0 {
		if n, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64); err == nil {
			size = n
		}
	}
	return &Download{Body: resp.Body, Size: size, ContentType: resp.Header.Get("Content-Type")}, nil
}

// Download copies the object with the given key into w.
func (c *Client) Download(ctx context.Context, key string, w io.Writer) (int64, error) {
	d, err := c.OpenDownload(ctx, key)
	if err != nil {
		return 0, err
	}
	defer d.Close()

	n, err := io.Copy(w, d.Body)
	if err != nil {
		return n, fmt.Errorf("download %s: %w", key, &NetworkError{Method: nethttp.MethodGet, Path: "/download/" + key, Err: err})
	}
	return n, nil
}

// StorageUsage returns the total bytes stored by the user.
func (c *Client) StorageUsage(ctx context.Context) (int64, error) {
	var out models.StorageResponse
	if err := c.doJSON(ctx, nethttp.MethodGet, "/storage", nil, &out); err != nil {
		return 0, fmt.Errorf("storage usage: %w", err)
	}
	return out.TotalBytes, nil
}

// Status reports server health and the configured backend.
func (c *Client) Status(ctx context.Context) (*models.StatusResponse, error) {
	var out models.StatusResponse
	if err := c.doJSON(ctx, nethttp.MethodGet, "/status", nil, &out); err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	return &out, nil
}
