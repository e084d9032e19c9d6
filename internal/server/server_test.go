package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/document-locker/locker/internal/api"
	"github.com/document-locker/locker/internal/config"
	"github.com/document-locker/locker/internal/logging"
	"github.com/document-locker/locker/internal/models"
	"github.com/document-locker/locker/internal/storage"
)

func newTestServer(t *testing.T, mutate func(*config.ServerConfig), withBackend bool) *httptest.Server {
	t.Helper()
	cfg := config.NewServerConfig()
	cfg.JWTSecret = "test-secret"
	cfg.AuthRatePerMinute = 0
	if mutate != nil {
		mutate(cfg)
	}

	var backend storage.Backend
	if withBackend {
		b, err := storage.NewLocal(t.TempDir())
		if err != nil {
			t.Fatal(err)
		}
		backend = b
	}

	s, err := New(Options{Config: cfg, Backend: backend, BcryptCost: bcrypt.MinCost})
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body interface{}, header http.Header) *http.Response {
	t.Helper()
	data, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func upload(t *testing.T, base, name, folder, content string, header http.Header) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if name != "" {
		fw, _ := mw.CreateFormFile("file", name)
		io.WriteString(fw, content)
	}
	if folder != "" {
		mw.WriteField("folder", folder)
	}
	mw.Close()

	req, _ := http.NewRequest(http.MethodPost, base+"/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name       string
		demo       bool
		register   bool
		email      string
		password   string
		wantStatus int
	}{
		{"demo accepts anyone", true, false, "demo@demo.com", "whatever", http.StatusOK},
		{"missing password", true, false, "demo@demo.com", "", http.StatusUnauthorized},
		{"registered user", false, true, "ada@example.com", "secret1", http.StatusOK},
		{"registered wrong password", true, true, "ada@example.com", "wrong-pw", http.StatusUnauthorized},
		{"unknown without demo", false, false, "who@example.com", "secret1", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, func(c *config.ServerConfig) { c.DemoLogin = tt.demo }, false)
			if tt.register {
				resp := postJSON(t, ts.URL+"/register", models.RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "secret1"}, nil)
				resp.Body.Close()
				if resp.StatusCode != http.StatusCreated {
					t.Fatalf("register status = %d", resp.StatusCode)
				}
			}

			resp := postJSON(t, ts.URL+"/login", models.LoginRequest{Email: tt.email, Password: tt.password}, nil)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			var out models.LoginResponse
			decode(t, resp, &out)
			if tt.wantStatus == http.StatusOK && out.Token == "" {
				t.Error("no token issued")
			}
			if tt.wantStatus == http.StatusUnauthorized && out.Message != "Invalid credentials" {
				t.Errorf("message = %q", out.Message)
			}
		})
	}
}

func TestAuthThrottle(t *testing.T) {
	ts := newTestServer(t, func(c *config.ServerConfig) {
		c.DemoLogin = true
		c.AuthRatePerMinute = 1
	}, false)

	login := models.LoginRequest{Email: "demo@demo.com", Password: "whatever"}
	for i := 0; i < 5; i++ {
		resp := postJSON(t, ts.URL+"/login", login, nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("login %d status = %d", i+1, resp.StatusCode)
		}
	}

	resp := postJSON(t, ts.URL+"/login", login, nil)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
	if ra, err := strconv.Atoi(resp.Header.Get("Retry-After")); err != nil || ra < 1 || ra > 60 {
		t.Errorf("Retry-After = %q", resp.Header.Get("Retry-After"))
	}
	var out models.MessageResponse
	decode(t, resp, &out)
	if out.Error != "Too many requests" {
		t.Errorf("error = %q", out.Error)
	}

	// /status is not throttled.
	st, err := http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	st.Body.Close()
	if st.StatusCode != http.StatusOK {
		t.Errorf("status endpoint = %d", st.StatusCode)
	}
}

func TestRegisterConflictAndValidation(t *testing.T) {
	ts := newTestServer(t, nil, false)
	req := models.RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "secret1"}

	resp := postJSON(t, ts.URL+"/register", req, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("first register = %d", resp.StatusCode)
	}

	req.Email = "ADA@example.com"
	resp = postJSON(t, ts.URL+"/register", req, nil)
	var msg models.MessageResponse
	decode(t, resp, &msg)
	if resp.StatusCode != http.StatusConflict || msg.Message != "User already exists" {
		t.Errorf("duplicate register = %d %q", resp.StatusCode, msg.Message)
	}

	resp = postJSON(t, ts.URL+"/register", models.RegisterRequest{Name: "A", Email: "x@y.co", Password: "secret1"}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("short name register = %d", resp.StatusCode)
	}
}

func TestMeRequiresToken(t *testing.T) {
	ts := newTestServer(t, nil, false)

	resp, err := http.Get(ts.URL + "/me")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("/me without token = %d", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/login", models.LoginRequest{Email: "jane.doe@example.com", Password: "secret1"}, nil)
	var login models.LoginResponse
	decode(t, resp, &login)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/me", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	var me models.UserProfile
	decode(t, resp, &me)
	if me.Email != "jane.doe@example.com" || me.Name != "jane.doe" {
		t.Errorf("/me = %+v", me)
	}
}

func TestUploadListDownloadDelete(t *testing.T) {
	ts := newTestServer(t, nil, true)

	resp := upload(t, ts.URL, "report.txt", "Work", "quarterly numbers", nil)
	var up models.MessageResponse
	decode(t, resp, &up)
	if resp.StatusCode != http.StatusOK || up.Key != "Work/report.txt" {
		t.Fatalf("upload = %d %+v", resp.StatusCode, up)
	}

	resp = upload(t, ts.URL, "report.txt", "Work", "again", nil)
	decode(t, resp, &up)
	if resp.StatusCode != http.StatusBadRequest || up.Error != "File already exists" {
		t.Errorf("duplicate upload = %d %+v", resp.StatusCode, up)
	}

	resp = upload(t, ts.URL, "", "", "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("upload without file = %d", resp.StatusCode)
	}

	resp = upload(t, ts.URL, "root.txt", "", "hi", nil)
	resp.Body.Close()

	var list models.ListFilesResponse
	r, _ := http.Get(ts.URL + "/files")
	decode(t, r, &list)
	if len(list.Files) != 2 {
		t.Fatalf("files = %+v", list.Files)
	}
	f := list.Files[0]
	if f.Name != "report.txt" || f.Size != 17 || !strings.HasPrefix(f.ContentType, "text/plain") || f.ModTime().IsZero() {
		t.Errorf("listed = %+v", f)
	}

	r, _ = http.Get(ts.URL + "/files?folder=Work")
	decode(t, r, &list)
	if len(list.Files) != 1 || list.Files[0].Key != "Work/report.txt" {
		t.Errorf("folder filter = %+v", list.Files)
	}

	r, _ = http.Get(ts.URL + "/download/" + url.PathEscape("Work/report.txt"))
	body, _ := io.ReadAll(r.Body)
	r.Body.Close()
	if r.StatusCode != http.StatusOK || string(body) != "quarterly numbers" {
		t.Errorf("download = %d %q", r.StatusCode, body)
	}
	if cd := r.Header.Get("Content-Disposition"); !strings.Contains(cd, "report.txt") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	var usage models.StorageResponse
	r, _ = http.Get(ts.URL + "/storage")
	decode(t, r, &usage)
	if usage.TotalBytes != 19 || usage.FileCount != 2 {
		t.Errorf("storage = %+v", usage)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/delete/"+url.PathEscape("Work/report.txt"), nil)
	r, _ = http.DefaultClient.Do(req)
	r.Body.Close()
	if r.StatusCode != http.StatusOK {
		t.Errorf("delete = %d", r.StatusCode)
	}
	r, _ = http.DefaultClient.Do(req.Clone(context.Background()))
	r.Body.Close()
	if r.StatusCode != http.StatusNotFound {
		t.Errorf("second delete = %d", r.StatusCode)
	}

	r, _ = http.Get(ts.URL + "/download/missing.txt")
	r.Body.Close()
	if r.StatusCode != http.StatusNotFound {
		t.Errorf("download missing = %d", r.StatusCode)
	}
}

func TestNoBackend(t *testing.T) {
	ts := newTestServer(t, func(c *config.ServerConfig) { c.Backend = "" }, false)

	resp := upload(t, ts.URL, "a.txt", "", "x", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("upload = %d, want 503", resp.StatusCode)
	}

	var list models.ListFilesResponse
	r, _ := http.Get(ts.URL + "/files")
	if r.StatusCode != http.StatusOK {
		t.Errorf("files = %d, want 200", r.StatusCode)
	}
	decode(t, r, &list)
	if list.Files == nil || len(list.Files) != 0 {
		t.Errorf("files = %#v", list.Files)
	}

	var status models.StatusResponse
	r, _ = http.Get(ts.URL + "/status")
	decode(t, r, &status)
	if status.Backend != "none" || status.AuthMode != "demo" {
		t.Errorf("status = %+v", status)
	}
}

func TestRequireAuth(t *testing.T) {
	ts := newTestServer(t, func(c *config.ServerConfig) { c.RequireAuth = true }, true)

	r, _ := http.Get(ts.URL + "/files")
	r.Body.Close()
	if r.StatusCode != http.StatusUnauthorized {
		t.Fatalf("files without token = %d", r.StatusCode)
	}

	resp := postJSON(t, ts.URL+"/login", models.LoginRequest{Email: "a@b.co", Password: "secret1"}, nil)
	var login models.LoginResponse
	decode(t, resp, &login)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/files", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	r, _ = http.DefaultClient.Do(req)
	r.Body.Close()
	if r.StatusCode != http.StatusOK {
		t.Errorf("files with token = %d", r.StatusCode)
	}

	req.Header.Set("Authorization", "Bearer not-a-jwt")
	r, _ = http.DefaultClient.Do(req)
	r.Body.Close()
	if r.StatusCode != http.StatusUnauthorized {
		t.Errorf("files with bad token = %d", r.StatusCode)
	}
}

func TestTokenExpiry(t *testing.T) {
	issuer, _, err := newTokenIssuer("k")
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return now }

	tok, err := issuer.issue("a@b.co", "", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if c, err := issuer.verify(tok); err != nil || c.Email != "a@b.co" {
		t.Fatalf("verify() = %+v, %v", c, err)
	}

	now = now.Add(2 * time.Hour)
	if _, err := issuer.verify(tok); err == nil {
		t.Error("expired token accepted")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil, false)
	r, _ := http.Get(ts.URL + "/status")
	r.Body.Close()

	r, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(r.Body)
	r.Body.Close()
	if !strings.Contains(string(body), `locker_http_requests_total{method="GET",route="/status",status="200"} 1`) {
		t.Errorf("metrics missing /status counter:\n%s", body)
	}
}

// The locker client against a real server.
func TestClientAgainstServer(t *testing.T) {
	ts := newTestServer(t, nil, true)

	cfg := config.NewConfig()
	cfg.APIURL = ts.URL
	c, err := api.NewClient(cfg, api.WithLogger(logging.Nop()))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	login, err := c.Login(ctx, models.LoginRequest{Email: "demo@demo.com", Password: "secret1"})
	if err != nil || login.Token == "" {
		t.Fatalf("Login() = %+v, %v", login, err)
	}
	c.SetToken(login.Token)

	content := "hello locker"
	msg, err := c.Upload(ctx, api.UploadRequest{
		Name:        "hello.txt",
		Folder:      "Docs",
		ContentType: "text/plain",
		Open:        func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(content)), nil },
	})
	if err != nil || msg.Key != "Docs/hello.txt" {
		t.Fatalf("Upload() = %+v, %v", msg, err)
	}

	_, err = c.Upload(ctx, api.UploadRequest{
		Name: "hello.txt", Folder: "Docs",
		Open: func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader("x")), nil },
	})
	if !api.IsFileExistsError(err) {
		t.Errorf("duplicate Upload() error = %v", err)
	}

	files, err := c.ListFiles(ctx)
	if err != nil || len(files) != 1 {
		t.Fatalf("ListFiles() = %+v, %v", files, err)
	}

	var buf bytes.Buffer
	if n, err := c.Download(ctx, "Docs/hello.txt", &buf); err != nil || n != int64(len(content)) || buf.String() != content {
		t.Errorf("Download() = %d %q, %v", n, buf.String(), err)
	}

	used, err := c.StorageUsage(ctx)
	if err != nil || used != int64(len(content)) {
		t.Errorf("StorageUsage() = %d, %v", used, err)
	}

	if err := c.Delete(ctx, "Docs/hello.txt"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	err = c.Delete(ctx, "Docs/hello.txt")
	if !api.IsNotFound(err) {
		t.Errorf("second Delete() error = %v", err)
	}
	var he *api.HTTPError
	if !errors.As(err, &he) || he.Message != "File not found" {
		t.Errorf("HTTPError = %+v", he)
	}
}
