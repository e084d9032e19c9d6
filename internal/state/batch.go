package state

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/document-locker/locker/internal/api"
	"github.com/document-locker/locker/internal/models"
)

// UploadFile is one local file handed to Upload. Open is called once per
// attempt and must return a fresh reader each time.
type UploadFile struct {
	Name        string
	Size        int64
	ContentType string
	Open        func() (io.ReadCloser, error)

	// Progress, when set, receives byte counts as the body is sent.
	Progress func(n int)
}

// ItemResult is the outcome for one item of a batch.
type ItemResult struct {
	Name string
	ID   string // record ID (delete) or new record ID (upload success)
	Key  string
	Err  error
}

func (r ItemResult) OK() bool { return r.Err == nil }

func countResults(results []ItemResult) (ok, failed int) {
	for _, r := range results {
		if r.OK() {
			ok++
		} else {
			failed++
		}
	}
	return ok, failed
}

func (m *Manager) group() *errgroup.Group {
	g := &errgroup.Group{}
	if m.limit > 0 {
		g.SetLimit(m.limit)
	}
	return g
}

// Upload sends every file concurrently and waits for all of them. Files the
// server accepted are appended to the current view using the local
// metadata; the list is not re-fetched. Failures are reported per item and
// never roll back the successes.
func (m *Manager) Upload(ctx context.Context, files []UploadFile) []ItemResult {
	if len(files) == 0 {
		return nil
	}

	op := m.begin(OpUpload)
	defer op.settle()
	m.notifier.Info("Uploading %d file(s)...", len(files))

	folder := strings.Join(m.Path(), "/")
	results := make([]ItemResult, len(files))

	g := m.group()
	for i, f := range files {
		g.Go(func() error {
			results[i] = ItemResult{Name: f.Name}
			resp, err := m.api.Upload(ctx, api.UploadRequest{
				Name:        f.Name,
				Folder:      folder,
				ContentType: f.ContentType,
				Open:        f.Open,
				Progress:    f.Progress,
			})
			if err != nil {
				m.logger.Warn().Err(err).Str("file", f.Name).Msg("Upload failed")
				results[i].Err = err
				return nil
			}
			results[i].Key = uploadedKey(resp, folder, f.Name)
			return nil
		})
	}
	// Every goroutine returns nil so all items settle.
	_ = g.Wait()

	base := m.api.BaseURL()
	now := m.now()

	m.mu.Lock()
	for i, f := range files {
		if !results[i].OK() {
			continue
		}
		rec := models.FileRecord{
			ID:           m.newIDLocked(),
			Name:         f.Name,
			Kind:         models.KindFile,
			Size:         models.SizePtr(f.Size),
			ModTime:      now,
			Key:          results[i].Key,
			MimeType:     f.ContentType,
			ThumbnailURL: models.ThumbnailFor(base, results[i].Key, f.ContentType),
		}
		results[i].ID = rec.ID
		m.records = append(m.records, rec)
	}
	m.syncFolderLocked()
	m.mu.Unlock()

	ok, failed := countResults(results)
	if failed > 0 {
		op.finish(fmt.Errorf("%d of %d uploads failed", failed, len(files)))
	} else {
		op.finish(nil)
	}

	m.Render()
	if ok > 0 {
		m.UpdateStorageUsage(ctx)
		m.notifier.Success("Successfully uploaded %d file(s)", ok)
	}
	if failed > 0 {
		m.notifier.Error("Failed to upload %d file(s)", failed)
	}
	return results
}

// uploadedKey prefers the key the server reports and otherwise assumes the
// server stored the file under folder/name.
func uploadedKey(resp *models.MessageResponse, folder, name string) string {
	if resp != nil && resp.Key != "" {
		return resp.Key
	}
	if folder == "" {
		return name
	}
	return path.Join(folder, name)
}

// DeleteSelected deletes every selected record after confirmation. With an
// empty selection it only warns; when declined nothing is sent.
func (m *Manager) DeleteSelected(ctx context.Context, confirm Confirmer) []ItemResult {
	ids := m.SelectedIDs()
	if len(ids) == 0 {
		m.notifier.Warning("Please select items to delete")
		return nil
	}
	if !confirmed(confirm, fmt.Sprintf("Are you sure you want to delete %d item(s)?", len(ids))) {
		return nil
	}

	results := m.deleteRecords(ctx, ids)
	ok, failed := countResults(results)
	switch {
	case failed == 0:
		m.notifier.Success("Deleted %d item(s)", ok)
	case ok == 0:
		m.notifier.Error("Failed to delete %d item(s)", failed)
	default:
		m.notifier.Warning("Deleted %d item(s), failed to delete %d item(s)", ok, failed)
	}
	return results
}

// DeleteOne deletes a single record after confirmation.
func (m *Manager) DeleteOne(ctx context.Context, id string, confirm Confirmer) (ItemResult, error) {
	rec, ok := m.Find(id)
	if !ok {
		return ItemResult{}, fmt.Errorf("%s: %w", id, ErrUnknownRecord)
	}
	if !confirmed(confirm, fmt.Sprintf("Are you sure you want to delete %q?", rec.Name)) {
		return ItemResult{}, nil
	}

	results := m.deleteRecords(ctx, []string{id})
	if len(results) == 0 {
		return ItemResult{}, fmt.Errorf("%s: %w", id, ErrUnknownRecord)
	}
	res := results[0]
	if res.OK() {
		m.notifier.Success("Deleted %q", rec.Name)
	} else {
		m.notifier.Error("Failed to delete %q", rec.Name)
	}
	return res, nil
}

func confirmed(c Confirmer, message string) bool {
	return c != nil && c.Confirm(message)
}

// deleteRecords issues the deletes concurrently and removes only the
// records the server confirmed. Records without a key are local and need
// no request.
func (m *Manager) deleteRecords(ctx context.Context, ids []string) []ItemResult {
	op := m.begin(OpDelete)
	defer op.settle()

	m.mu.Lock()
	targets := make([]models.FileRecord, 0, len(ids))
	for _, id := range ids {
		if i := m.indexLocked(id); i >= 0 {
			targets = append(targets, m.records[i])
		}
	}
	m.mu.Unlock()

	results := make([]ItemResult, len(targets))
	g := m.group()
	for i, rec := range targets {
		results[i] = ItemResult{Name: rec.Name, ID: rec.ID, Key: rec.Key}
		if !rec.HasKey() {
			continue
		}
		g.Go(func() error {
			if err := m.api.Delete(ctx, rec.Key); err != nil {
				m.logger.Warn().Err(err).Str("key", rec.Key).Msg("Delete failed")
				results[i].Err = err
			}
			return nil
		})
	}
	_ = g.Wait()

	removed := make(map[string]bool, len(results))
	for _, r := range results {
		if r.OK() {
			removed[r.ID] = true
		}
	}

	m.mu.Lock()
	kept := make([]models.FileRecord, 0, len(m.records))
	for _, r := range m.records {
		if removed[r.ID] {
			if r.IsFolder() {
				m.folders.Delete(r.Name)
			}
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	for id := range removed {
		m.selection.Remove(id)
	}
	m.syncFolderLocked()
	m.mu.Unlock()

	ok, failed := countResults(results)
	if failed > 0 {
		op.finish(fmt.Errorf("%d of %d deletes failed", failed, len(results)))
	} else {
		op.finish(nil)
	}

	m.publishSelection(len(removed) > 0)
	m.Render()
	if ok > 0 {
		m.UpdateStorageUsage(ctx)
	}
	return results
}
