package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/document-locker/locker/internal/config"
	"github.com/document-locker/locker/internal/logging"
	"github.com/document-locker/locker/internal/models"
)

func newTestClient(t *testing.T, h nethttp.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := config.NewConfig()
	cfg.APIURL = srv.URL
	opts = append([]Option{WithLogger(logging.Nop())}, opts...)
	c, err := NewClient(cfg, opts...)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func TestNewClientRejectsEmptyBaseURL(t *testing.T) {
	cfg := config.NewConfig()
	cfg.APIURL = ""

	_, err := NewClient(cfg)
	if err == nil {
		t.Fatal("NewClient() should return error for empty APIURL")
	}
	if !strings.Contains(err.Error(), "API base URL is empty") {
		t.Errorf("NewClient() error = %q, want error containing 'API base URL is empty'", err.Error())
	}
}

func TestListFiles(t *testing.T) {
	c := newTestClient(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet || r.URL.Path != "/files" {
			t.Errorf("got %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer tok")
		}
		io.WriteString(w, `{"files":[{"name":"a.txt","key":"a.txt","size":5,"content_type":"text/plain","last_modified":"2024-01-02T03:04:05Z"}]}`)
	}), WithToken("tok"))

	files, err := c.ListFiles(context.Background())
	if err != nil {
		t.Fatalf("ListFiles() error = %v", err)
	}
	if len(files) != 1 || files[0].Key != "a.txt" || files[0].Size != 5 {
		t.Errorf("ListFiles() = %+v", files)
	}
}

func TestListFilesMalformed(t *testing.T) {
	c := newTestClient(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		io.WriteString(w, "<html>not json</html>")
	}))

	_, err := c.ListFiles(context.Background())
	if !IsMalformed(err) {
		t.Errorf("ListFiles() error = %v, want malformed", err)
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(nethttp.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cfg := config.NewConfig()
	cfg.APIURL = url
	c, err := NewClient(cfg, WithLogger(logging.Nop()))
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.ListFiles(context.Background())
	if !IsNetworkError(err) {
		t.Errorf("ListFiles() error = %v, want network error", err)
	}
	if got := Describe(err); got != "server unreachable" {
		t.Errorf("Describe() = %q", got)
	}
}

func TestHTTPErrorMessage(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		wantExists  bool
	}{
		{"json message", 400, `{"message":"File already exists"}`, "File already exists", true},
		{"json error", 400, `{"error":"No file part"}`, "No file part", false},
		{"plain text", 500, "boom\n", "boom", false},
		{"empty", 404, "", "Not Found", false},
		{"conflict status", 409, `{}`, "Conflict", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))

			err := c.Delete(context.Background(), "x")
			he, ok := AsHTTPError(err)
			if !ok {
				t.Fatalf("Delete() error = %v, want HTTPError", err)
			}
			if he.StatusCode != tt.status || he.Message != tt.wantMessage {
				t.Errorf("got %d %q, want %d %q", he.StatusCode, he.Message, tt.status, tt.wantMessage)
			}
			if IsFileExistsError(err) != tt.wantExists {
				t.Errorf("IsFileExistsError() = %v, want %v", !tt.wantExists, tt.wantExists)
			}
		})
	}
}

func TestNoRetriesByDefault(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		hits.Add(1)
		w.WriteHeader(nethttp.StatusServiceUnavailable)
	}))

	_, err := c.StorageUsage(context.Background())
	if StatusCode(err) != nethttp.StatusServiceUnavailable {
		t.Errorf("StorageUsage() error = %v, want 503", err)
	}
	if hits.Load() != 1 {
		t.Errorf("server hit %d times, want 1", hits.Load())
	}
}

func TestRetriesWhenConfigured(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(nethttp.StatusBadGateway)
			return
		}
		io.WriteString(w, `{"total_bytes":42}`)
	}))
	defer srv.Close()

	cfg := config.NewConfig()
	cfg.APIURL = srv.URL
	cfg.MaxRetries = 2
	c, err := NewClient(cfg, WithLogger(logging.Nop()))
	if err != nil {
		t.Fatal(err)
	}

	n, err := c.StorageUsage(context.Background())
	if err != nil || n != 42 {
		t.Errorf("StorageUsage() = %d, %v; want 42, nil", n, err)
	}
}

func TestUpload(t *testing.T) {
	var gotName, gotFolder, gotType, gotBody string
	c := newTestClient(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm() error = %v", err)
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile() error = %v", err)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		gotName, gotType, gotBody = hdr.Filename, hdr.Header.Get("Content-Type"), string(data)
		gotFolder = r.FormValue("folder")
		json.NewEncoder(w).Encode(models.MessageResponse{Message: "File uploaded successfully"})
	}))

	var progressed atomic.Int64
	msg, err := c.Upload(context.Background(), UploadRequest{
		Name:        `report "final".pdf`,
		Folder:      "work",
		ContentType: "application/pdf",
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("%PDF-1.7")), nil
		},
		Progress: func(n int) { progressed.Add(int64(n)) },
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if msg.Text() != "File uploaded successfully" {
		t.Errorf("message = %q", msg.Text())
	}
	if gotName != `report "final".pdf` || gotFolder != "work" || gotType != "application/pdf" || gotBody != "%PDF-1.7" {
		t.Errorf("server saw name=%q folder=%q type=%q body=%q", gotName, gotFolder, gotType, gotBody)
	}
	if progressed.Load() != int64(len("%PDF-1.7")) {
		t.Errorf("progress = %d, want %d", progressed.Load(), len("%PDF-1.7"))
	}
}

func TestUploadOpensOncePerAttempt(t *testing.T) {
	tests := []struct {
		name       string
		maxRetries int
		failFirst  bool
		wantOpens  int32
	}{
		{"single attempt", 0, false, 1},
		{"retried once", 1, true, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
				io.Copy(io.Discard, r.Body)
				if hits.Add(1) == 1 && tt.failFirst {
					w.WriteHeader(nethttp.StatusBadGateway)
					return
				}
				json.NewEncoder(w).Encode(models.MessageResponse{Message: "File uploaded successfully"})
			}))
			defer srv.Close()

			cfg := config.NewConfig()
			cfg.APIURL = srv.URL
			cfg.MaxRetries = tt.maxRetries
			c, err := NewClient(cfg, WithLogger(logging.Nop()))
			if err != nil {
				t.Fatal(err)
			}

			var opens atomic.Int32
			_, err = c.Upload(context.Background(), UploadRequest{
				Name: "a.txt",
				Open: func() (io.ReadCloser, error) {
					opens.Add(1)
					return io.NopCloser(strings.NewReader("abc")), nil
				},
			})
			if err != nil {
				t.Fatalf("Upload() error = %v", err)
			}
			if got := opens.Load(); got != tt.wantOpens {
				t.Errorf("Open called %d times, want %d", got, tt.wantOpens)
			}
			if got := hits.Load(); got != tt.wantOpens {
				t.Errorf("server hit %d times, want %d", got, tt.wantOpens)
			}
		})
	}
}

func TestUploadOpenFailure(t *testing.T) {
	c := newTestClient(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		t.Error("request should not reach the server")
	}))

	_, err := c.Upload(context.Background(), UploadRequest{
		Name: "gone.txt",
		Open: func() (io.ReadCloser, error) { return nil, errors.New("permission denied") },
	})
	if err == nil || !strings.Contains(err.Error(), "permission denied") {
		t.Errorf("Upload() error = %v, want open failure", err)
	}
}

func TestDeleteEscapesKey(t *testing.T) {
	c := newTestClient(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodDelete {
			t.Errorf("method = %s", r.Method)
		}
		if got := r.URL.EscapedPath(); got != "/delete/docs%2Fa%20b.pdf" {
			t.Errorf("path = %s", got)
		}
		io.WriteString(w, `{"message":"deleted"}`)
	}))

	if err := c.Delete(context.Background(), "docs/a b.pdf"); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
}

func TestDownload(t *testing.T) {
	c := newTestClient(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		io.WriteString(w, "hello world")
	}))

	var buf bytes.Buffer
	n, err := c.Download(context.Background(), "hello.txt", &buf)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if n != 11 || buf.String() != "hello world" {
		t.Errorf("Download() = %d %q", n, buf.String())
	}

	d, err := c.OpenDownload(context.Background(), "hello.txt")
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	if d.Size != 11 || d.ContentType != "text/plain" {
		t.Errorf("OpenDownload() size=%d type=%q", d.Size, d.ContentType)
	}
}

func TestLoginAndMe(t *testing.T) {
	mux := nethttp.NewServeMux()
	mux.HandleFunc("/login", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var in models.LoginRequest
		json.NewDecoder(r.Body).Decode(&in)
		if in.Email != "a@b.co" || !in.RememberMe {
			t.Errorf("login body = %+v", in)
		}
		io.WriteString(w, `{"token":"jwt"}`)
	})
	mux.HandleFunc("/me", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Header.Get("Authorization") != "Bearer jwt" {
			w.WriteHeader(nethttp.StatusUnauthorized)
			return
		}
		io.WriteString(w, `{"name":"Ann","email":"a@b.co"}`)
	})
	c := newTestClient(t, mux)

	if _, err := c.Me(context.Background()); !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("Me() before login = %v, want ErrNotLoggedIn", err)
	}

	resp, err := c.Login(context.Background(), models.LoginRequest{Email: "a@b.co", Password: "secret", RememberMe: true})
	if err != nil || resp.Token != "jwt" {
		t.Fatalf("Login() = %+v, %v", resp, err)
	}
	c.SetToken(resp.Token)

	me, err := c.Me(context.Background())
	if err != nil || me.Name != "Ann" {
		t.Errorf("Me() = %+v, %v", me, err)
	}
}
