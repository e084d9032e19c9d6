package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/document-locker/locker/internal/api"
	"github.com/document-locker/locker/internal/constants"
	"github.com/document-locker/locker/internal/diskspace"
	"github.com/document-locker/locker/internal/progress"
	"github.com/document-locker/locker/internal/render"
	"github.com/document-locker/locker/internal/state"
	"github.com/document-locker/locker/internal/validation"
)

// newFilesCmd creates the 'files' command group.
func newFilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "List, upload, download and delete files",
	}
	cmd.AddCommand(newFilesListCmd())
	cmd.AddCommand(newFilesUploadCmd())
	cmd.AddCommand(newFilesDownloadCmd())
	cmd.AddCommand(newFilesDeleteCmd())
	return cmd
}

func newFilesListCmd() *cobra.Command {
	var search, sortBy string
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List stored files",
		RunE: func(cmd *cobra.Command, args []string) error {
			by, err := state.ParseSortBy(sortBy)
			if err != nil {
				return err
			}
			client, cfg, err := getAPIClient(false)
			if err != nil {
				return err
			}
			m, err := newManager(client, cfg, nil)
			if err != nil {
				return err
			}
			defer m.Close()

			ctx := GetContext()
			m.Refresh(ctx)
			m.UpdateStorageUsage(ctx)
			m.SetSort(by)
			if search != "" {
				m.SetSearchFilter(search)
				m.SubmitSearch()
			}

			vm := m.View()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(vm.Records())
			}
			render.NewText(cmd.OutOrStdout()).Render(vm)
			return nil
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "Only show names containing this text")
	cmd.Flags().StringVar(&sortBy, "sort", "", "Sort by name, size or date")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print records as JSON")
	return cmd
}

func newFilesUploadCmd() *cobra.Command {
	var folder string
	var maxConcurrent int

	cmd := &cobra.Command{
		Use:   "upload <file> [file...]",
		Short: "Upload files",
		Long: `Upload one or more local files.

Examples:
  locker files upload report.pdf
  locker files upload *.png --folder Photos/2025`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeUpload(cmd, args, folder, maxConcurrent)
		},
	}
	cmd.Flags().StringVarP(&folder, "folder", "d", "", "Upload into this folder (e.g. Work/2025)")
	cmd.Flags().IntVarP(&maxConcurrent, "max-concurrent", "m", 4, "Maximum concurrent uploads (0 = unlimited)")
	return cmd
}

// executeUpload is shared by 'files upload' and the 'upload' shortcut.
func executeUpload(cmd *cobra.Command, paths []string, folder string, maxConcurrent int) error {
	if maxConcurrent < 0 {
		return fmt.Errorf("--max-concurrent must not be negative")
	}
	client, cfg, err := getAPIClient(false)
	if err != nil {
		return err
	}

	ui := progress.NewUploadUI(len(paths), os.Stderr)
	files, bars, err := buildUploads(paths, ui)
	if err != nil {
		return err
	}

	m, err := state.New(state.Options{
		API:           client,
		Notifier:      newNotifier(cfg),
		Logger:        GetLogger(),
		MaxConcurrent: maxConcurrent,
	})
	if err != nil {
		return err
	}
	defer m.Close()

	ctx := GetContext()
	m.Refresh(ctx)
	if err := enterFolder(ctx, m, folder); err != nil {
		return err
	}

	results := m.Upload(ctx, files)
	for i, r := range results {
		bars[i].Complete(r.Err)
	}
	ui.Wait()

	failed := 0
	for _, r := range results {
		if r.OK() {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", r.Key)
		} else {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(results))
	}
	return nil
}

// buildUploads stats each path and wires its progress bar.
func buildUploads(paths []string, ui *progress.UploadUI) ([]state.UploadFile, []*progress.FileBar, error) {
	files := make([]state.UploadFile, 0, len(paths))
	bars := make([]*progress.FileBar, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, nil, fmt.Errorf("cannot upload %s: %w", p, err)
		}
		if info.IsDir() {
			return nil, nil, fmt.Errorf("cannot upload %s: is a directory", p)
		}
		name := filepath.Base(p)
		if err := validation.ValidateFilename(name); err != nil {
			return nil, nil, err
		}

		bar := ui.AddFileBar(name, info.Size())
		localPath := p
		files = append(files, state.UploadFile{
			Name:        name,
			Size:        info.Size(),
			ContentType: contentTypeOf(name),
			Open:        func() (io.ReadCloser, error) { return os.Open(localPath) },
			Progress:    bar.Progress,
		})
		bars = append(bars, bar)
	}
	return files, bars, nil
}

func contentTypeOf(name string) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// enterFolder walks the manager into folder, creating each client-side
// folder on the way.
func enterFolder(ctx context.Context, m *state.Manager, folder string) error {
	for _, seg := range strings.Split(validation.SanitizeFolder(folder), "/") {
		if seg == "" {
			continue
		}
		if err := m.CreateFolder(seg); err != nil && !errors.Is(err, state.ErrFolderExists) {
			return err
		}
		if err := m.NavigateInto(ctx, seg); err != nil {
			return err
		}
	}
	return nil
}

func newFilesDownloadCmd() *cobra.Command {
	var output string
	var force bool

	cmd := &cobra.Command{
		Use:   "download <key>",
		Short: "Download a file by its storage key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeDownload(cmd, args[0], output, force)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file or directory (default: current directory)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	return cmd
}

func executeDownload(cmd *cobra.Command, key, output string, force bool) error {
	client, _, err := getAPIClient(false)
	if err != nil {
		return err
	}
	dest, n, err := downloadTo(GetContext(), client, key, output, force, progress.NewReporter(os.Stderr))
	if diskspace.IsInsufficientSpaceError(err) {
		return fmt.Errorf("%w (use -o to save on another disk)", err)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s)\n", dest, render.FormatFileSize(n))
	return nil
}

// checkSpace is swapped in tests.
var checkSpace = diskspace.CheckAvailableSpace

type downloadOpener interface {
	OpenDownload(ctx context.Context, key string) (*api.Download, error)
}

// downloadTo streams key into output through a temp file next to it. The
// destination defaults to the key's base name in the current directory.
func downloadTo(ctx context.Context, c downloadOpener, key, output string, force bool, reporter progress.Reporter) (string, int64, error) {
	dest := output
	name := path.Base(key)
	if dest == "" {
		dest = name
	} else if info, err := os.Stat(dest); err == nil && info.IsDir() {
		dest = filepath.Join(dest, name)
	}
	if _, err := os.Stat(dest); err == nil && !force {
		return "", 0, fmt.Errorf("%s already exists (use --force to overwrite)", dest)
	}

	d, err := c.OpenDownload(ctx, key)
	if err != nil {
		return "", 0, err
	}
	defer d.Close()

	if err := checkSpace(dest, d.Size, constants.DiskSpaceSafetyMargin); err != nil {
		return "", 0, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".locker-download-*")
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	reporter.Start(d.Size, "Downloading "+name)
	pw := progress.NewWriter(tmp, reporter)
	if _, err := io.Copy(pw, d.Body); err != nil {
		tmp.Close()
		reporter.Error(err)
		return "", 0, fmt.Errorf("download %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		reporter.Error(err)
		return "", 0, err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		reporter.Error(err)
		return "", 0, fmt.Errorf("failed to save %s: %w", dest, err)
	}
	reporter.Finish()
	return dest, pw.Written(), nil
}

func newFilesDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "rm <key> [key...]",
		Aliases: []string{"delete"},
		Short:   "Delete files by storage key",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := getAPIClient(false)
			if err != nil {
				return err
			}
			m, err := newManager(client, cfg, nil)
			if err != nil {
				return err
			}
			defer m.Close()

			ctx := GetContext()
			m.Refresh(ctx)
			if err := selectKeys(m, args); err != nil {
				return err
			}

			p := newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
			results := m.DeleteSelected(ctx, p.confirmer(yes))
			if results == nil {
				return nil
			}
			for _, r := range results {
				if !r.OK() {
					return fmt.Errorf("some files could not be deleted")
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

// selectKeys selects exactly the records whose key is in keys.
func selectKeys(m *state.Manager, keys []string) error {
	byKey := make(map[string]string)
	for _, r := range m.Records() {
		if r.HasKey() {
			byKey[r.Key] = r.ID
		}
	}
	m.ClearSelection()
	var missing []string
	for _, k := range keys {
		id, ok := byKey[k]
		if !ok {
			missing = append(missing, k)
			continue
		}
		if !m.IsSelected(id) {
			m.ToggleSelection(id)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("no such file: %s", strings.Join(missing, ", "))
	}
	return nil
}

func newStorageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "storage",
		Short: "Show storage usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := getAPIClient(false)
			if err != nil {
				return err
			}
			m, err := newManager(client, cfg, nil)
			if err != nil {
				return err
			}
			defer m.Close()

			u := m.UpdateStorageUsage(GetContext())
			fmt.Fprintln(cmd.OutOrStdout(), render.StorageBar(u, constants.ProgressBarWidth))
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := getAPIClient(false)
			if err != nil {
				return err
			}
			st, err := client.Status(GetContext())
			if err != nil {
				return fmt.Errorf("%s", api.Describe(err))
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Server:   %s\n", client.BaseURL())
			fmt.Fprintf(out, "Status:   %s\n", st.Status)
			fmt.Fprintf(out, "Backend:  %s\n", st.Backend)
			if st.Bucket != "" {
				fmt.Fprintf(out, "Location: %s\n", st.Bucket)
			}
			if st.AuthMode != "" {
				fmt.Fprintf(out, "Auth:     %s\n", st.AuthMode)
			}
			if st.Version != "" {
				fmt.Fprintf(out, "Version:  %s\n", st.Version)
			}
			return nil
		},
	}
}
