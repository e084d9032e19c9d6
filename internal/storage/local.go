package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/document-locker/locker/internal/validation"
)

// metaDir holds per-object sidecars under the root. Keys never start with
// it because it is skipped on listing and rejected on write.
const metaDir = ".locker-meta"

type sidecar struct {
	ContentType string `json:"content_type"`
}

// Local stores objects as plain files under a root directory. The content
// type of each object lives in a JSON sidecar.
type Local struct {
	root string
}

// NewLocal creates root if needed.
func NewLocal(root string) (*Local, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &Local{root: abs}, nil
}

func (l *Local) Name() string     { return "local" }
func (l *Local) Location() string { return l.root }

func (l *Local) paths(key string) (string, string, error) {
	if err := validation.ValidateObjectKey(key); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if key == metaDir || strings.HasPrefix(key, metaDir+"/") {
		return "", "", fmt.Errorf("%w: reserved prefix %s", ErrInvalidKey, metaDir)
	}
	p := filepath.Join(l.root, filepath.FromSlash(key))
	if err := validation.ValidatePathInDirectory(p, l.root); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return p, filepath.Join(l.root, metaDir, filepath.FromSlash(key)+".json"), nil
}

// Put writes the object through a temp file and renames it into place.
func (l *Local) Put(ctx context.Context, key, contentType string, r io.Reader, size int64) error {
	p, meta, err := l.paths(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("failed to create folder: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}

	if err := os.MkdirAll(filepath.Dir(meta), 0755); err != nil {
		return fmt.Errorf("failed to create metadata folder: %w", err)
	}
	data, _ := json.Marshal(sidecar{ContentType: contentType})
	if err := os.WriteFile(meta, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata for %s: %w", key, err)
	}
	return nil
}

func (l *Local) Get(ctx context.Context, key string) (io.ReadCloser, Object, error) {
	obj, err := l.Stat(ctx, key)
	if err != nil {
		return nil, Object{}, err
	}
	p, _, _ := l.paths(key)
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, Object{}, ErrNotFound
		}
		return nil, Object{}, fmt.Errorf("failed to open %s: %w", key, err)
	}
	return f, obj, nil
}

func (l *Local) Stat(ctx context.Context, key string) (Object, error) {
	p, meta, err := l.paths(key)
	if err != nil {
		return Object{}, err
	}
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Object{}, ErrNotFound
		}
		return Object{}, fmt.Errorf("failed to stat %s: %w", key, err)
	}
	if info.IsDir() {
		return Object{}, ErrNotFound
	}
	return Object{
		Key:          key,
		Size:         info.Size(),
		ContentType:  readSidecar(meta),
		LastModified: info.ModTime().UTC(),
	}, nil
}

func (l *Local) Delete(ctx context.Context, key string) error {
	p, meta, err := l.paths(key)
	if err != nil {
		return err
	}
	// Directories only hold keys; they are never objects themselves.
	if info, err := os.Stat(p); err == nil && info.IsDir() {
		return ErrNotFound
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	_ = os.Remove(meta)
	return nil
}

// List walks the root, sorted by key.
func (l *Local) List(ctx context.Context) ([]Object, error) {
	var objs []Object
	err := filepath.WalkDir(l.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if p != l.root && name == metaDir {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".upload-") {
			return nil
		}
		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		objs = append(objs, Object{
			Key:          key,
			Size:         info.Size(),
			ContentType:  readSidecar(filepath.Join(l.root, metaDir, rel+".json")),
			LastModified: info.ModTime().UTC(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", l.root, err)
	}
	sort.Slice(objs, func(i, j int) bool { return objs[i].Key < objs[j].Key })
	return objs, nil
}

func readSidecar(p string) string {
	data, err := os.ReadFile(p)
	if err != nil {
		return ""
	}
	var s sidecar
	if json.Unmarshal(data, &s) != nil {
		return ""
	}
	return s.ContentType
}
