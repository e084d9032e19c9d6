package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/document-locker/locker/internal/config"
)

func TestLocalRoundTrip(t *testing.T) {
	ctx := context.Background()
	b, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if err := b.Put(ctx, "Work/report.pdf", "application/pdf", strings.NewReader("pdf-bytes"), 9); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := b.Put(ctx, "notes.txt", "text/plain", strings.NewReader("hi"), 2); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	obj, err := b.Stat(ctx, "Work/report.pdf")
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if obj.Size != 9 || obj.ContentType != "application/pdf" || obj.Name() != "report.pdf" || obj.Folder() != "Work" {
		t.Errorf("Stat() = %+v", obj)
	}

	rc, got, err := b.Get(ctx, "notes.txt")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "hi" || got.ContentType != "text/plain" {
		t.Errorf("Get() = %q, %+v", data, got)
	}

	objs, err := b.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(objs) != 2 || objs[0].Key != "Work/report.pdf" || objs[1].Key != "notes.txt" {
		t.Errorf("List() = %+v", objs)
	}
	if TotalSize(objs) != 11 {
		t.Errorf("TotalSize() = %d", TotalSize(objs))
	}

	if err := b.Delete(ctx, "notes.txt"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := b.Stat(ctx, "notes.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Stat() after delete error = %v", err)
	}
	if err := b.Delete(ctx, "notes.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v", err)
	}
}

func TestLocalDeleteIgnoresDirectories(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	b, err := NewLocal(root)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(root, "Empty"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := b.Put(ctx, "Work/a.txt", "text/plain", strings.NewReader("a"), 1); err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{"Empty", "Work"} {
		if err := b.Delete(ctx, key); !errors.Is(err, ErrNotFound) {
			t.Errorf("Delete(%q) error = %v, want ErrNotFound", key, err)
		}
		if info, err := os.Stat(filepath.Join(root, key)); err != nil || !info.IsDir() {
			t.Errorf("directory %q removed", key)
		}
	}
}

func TestLocalRejectsBadKeys(t *testing.T) {
	b, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"", "../escape.txt", "/abs.txt", "a//b", metaDir + "/x.json"} {
		err := b.Put(context.Background(), key, "", strings.NewReader("x"), 1)
		if !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Put(%q) error = %v, want ErrInvalidKey", key, err)
		}
	}
}

func TestFolderOf(t *testing.T) {
	tests := map[string]string{
		"a.txt":      "",
		"Work/a.txt": "Work",
		"A/B/c.txt":  "A/B",
	}
	for key, want := range tests {
		if got := FolderOf(key); got != want {
			t.Errorf("FolderOf(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestNewSelectsBackend(t *testing.T) {
	cfg := config.NewServerConfig()
	cfg.LocalDir = t.TempDir()

	b, err := New(context.Background(), cfg, nil)
	if err != nil || b == nil || b.Name() != "local" {
		t.Fatalf("New(local) = %v, %v", b, err)
	}

	cfg.Backend = ""
	b, err = New(context.Background(), cfg, nil)
	if err != nil || b != nil {
		t.Errorf("New(none) = %v, %v", b, err)
	}

	cfg.Backend = "ftp"
	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Error("New(ftp) should fail")
	}
}
