package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/document-locker/locker/internal/constants"
	"github.com/document-locker/locker/internal/progress"
	"github.com/document-locker/locker/internal/render"
	"github.com/document-locker/locker/internal/state"
)

// newShellCmd creates the 'shell' command: an interactive file dashboard.
func newShellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Browse and manage files interactively",
		Long: `Start an interactive dashboard.

Items are addressed by the row number shown by 'ls' or by name.
Type 'help' for the list of commands.`,
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

			sh := newShell(m, cmd.InOrStdin(), cmd.OutOrStdout())
			sh.progressOut = os.Stderr
			return sh.run(GetContext())
		},
	}
}

type shellCommand struct {
	usage string
	help  string
	run   func(s *shell, ctx context.Context, args []string) error
}

var shellCommands map[string]shellCommand

func init() {
	shellCommands = map[string]shellCommand{
		"ls":        {"ls", "List the current folder", (*shell).cmdList},
		"cd":        {"cd <folder|..|/>", "Open a folder, go up, or go home", (*shell).cmdCd},
		"mkdir":     {"mkdir <name>", "Create a folder here", (*shell).cmdMkdir},
		"upload":    {"upload <path...>", "Upload local files into the current folder", (*shell).cmdUpload},
		"rm":        {"rm [item...]", "Delete the given items, or the selection", (*shell).cmdRemove},
		"select":    {"select <item...>", "Toggle items in the selection", (*shell).cmdSelect},
		"selectall": {"selectall", "Select every listed item", (*shell).cmdSelectAll},
		"clear":     {"clear", "Clear the selection", (*shell).cmdClear},
		"rename":    {"rename [item] <new name>", "Rename an item, or the single selected one", (*shell).cmdRename},
		"search":    {"search [text]", "Filter by name; no text clears the filter", (*shell).cmdSearch},
		"sort":      {"sort <name|size|date|none>", "Change the sort order", (*shell).cmdSort},
		"details":   {"details", "Show details for the selection", (*shell).cmdDetails},
		"share":     {"share", "Share the selection", (*shell).cmdShare},
		"preview":   {"preview <item>", "Show a text or image preview", (*shell).cmdPreview},
		"get":       {"get <item> [dest]", "Download a file", (*shell).cmdGet},
		"storage":   {"storage", "Show storage usage", (*shell).cmdStorage},
		"refresh":   {"refresh", "Reload the file list from the server", (*shell).cmdRefresh},
		"help":      {"help", "Show this help", (*shell).cmdHelp},
	}
}

var errQuit = errors.New("quit")

// shell reads commands line by line and drives a state.Manager.
type shell struct {
	m      *state.Manager
	prompt *prompter
	out    io.Writer

	// progressOut receives upload bars; nil disables them.
	progressOut *os.File
}

func newShell(m *state.Manager, in io.Reader, out io.Writer) *shell {
	return &shell{m: m, prompt: newPrompter(in, out), out: out}
}

func (s *shell) run(ctx context.Context) error {
	s.m.Refresh(ctx)
	s.m.UpdateStorageUsage(ctx)
	s.show()

	for {
		fmt.Fprintf(s.out, "locker:/%s> ", strings.Join(s.m.Path(), "/"))
		line, err := s.prompt.in.ReadString('\n')
		if strings.TrimSpace(line) != "" {
			if xerr := s.exec(ctx, line); errors.Is(xerr, errQuit) {
				return nil
			} else if xerr != nil {
				fmt.Fprintf(s.out, "Error: %v\n", xerr)
			}
		}
		if err != nil {
			if err == io.EOF {
				fmt.Fprintln(s.out)
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// exec runs one command line. It returns errQuit for quit and exit.
func (s *shell) exec(ctx context.Context, line string) error {
	args, err := splitArgs(line)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}
	name := strings.ToLower(args[0])
	if name == "quit" || name == "exit" {
		return errQuit
	}
	c, ok := shellCommands[name]
	if !ok {
		return fmt.Errorf("unknown command %q (type 'help')", args[0])
	}
	return c.run(s, ctx, args[1:])
}

// splitArgs splits on whitespace; double quotes group words.
func splitArgs(line string) ([]string, error) {
	var args []string
	var cur strings.Builder
	inQuote, have := false, false
	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
			have = true
		case !inQuote && (r == ' ' || r == '\t' || r == '\n' || r == '\r'):
			if have {
				args = append(args, cur.String())
				cur.Reset()
				have = false
			}
		default:
			cur.WriteRune(r)
			have = true
		}
	}
	if inQuote {
		return nil, errors.New("unterminated quote")
	}
	if have {
		args = append(args, cur.String())
	}
	return args, nil
}

func (s *shell) show() {
	render.NewText(s.out).Render(s.m.View())
}

// item resolves a row number from the last listing, or a name.
func (s *shell) item(ref string) (state.ViewItem, error) {
	items := s.m.View().Items
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(items) {
			return state.ViewItem{}, fmt.Errorf("no row %d", n)
		}
		return items[n-1], nil
	}
	for _, it := range items {
		if it.Name == ref {
			return it, nil
		}
	}
	return state.ViewItem{}, fmt.Errorf("%s: %w", ref, state.ErrUnknownRecord)
}

func (s *shell) cmdList(ctx context.Context, args []string) error {
	s.show()
	return nil
}

func (s *shell) cmdCd(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: cd <folder|..|/>")
	}
	var err error
	switch args[0] {
	case "..":
		err = s.m.NavigateBack(ctx)
	case "/", "~":
		err = s.m.NavigateRoot(ctx)
	default:
		it, ierr := s.item(args[0])
		if ierr != nil {
			return ierr
		}
		err = s.m.NavigateInto(ctx, it.Name)
	}
	if err != nil {
		return err
	}
	s.show()
	return nil
}

func (s *shell) cmdMkdir(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: mkdir <name>")
	}
	if err := s.m.CreateFolder(args[0]); err != nil {
		return err
	}
	s.show()
	return nil
}

func (s *shell) cmdUpload(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: upload <path...>")
	}
	ui := progress.NewUploadUI(len(args), s.progressOut)
	files, bars, err := buildUploads(args, ui)
	if err != nil {
		return err
	}
	results := s.m.Upload(ctx, files)
	for i, r := range results {
		bars[i].Complete(r.Err)
	}
	ui.Wait()
	s.show()
	return nil
}

func (s *shell) cmdRemove(ctx context.Context, args []string) error {
	if len(args) > 0 {
		ids := make([]string, 0, len(args))
		for _, a := range args {
			it, err := s.item(a)
			if err != nil {
				return err
			}
			ids = append(ids, it.ID)
		}
		s.m.ClearSelection()
		for _, id := range ids {
			if !s.m.IsSelected(id) {
				s.m.ToggleSelection(id)
			}
		}
	}
	if s.m.DeleteSelected(ctx, s.prompt.confirmer(false)) != nil {
		s.show()
	}
	return nil
}

func (s *shell) cmdSelect(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: select <item...>")
	}
	for _, a := range args {
		it, err := s.item(a)
		if err != nil {
			return err
		}
		s.m.ToggleSelection(it.ID)
	}
	fmt.Fprintf(s.out, "%d selected\n", len(s.m.SelectedIDs()))
	return nil
}

func (s *shell) cmdSelectAll(ctx context.Context, args []string) error {
	s.m.SelectAll()
	fmt.Fprintf(s.out, "%d selected\n", len(s.m.SelectedIDs()))
	return nil
}

func (s *shell) cmdClear(ctx context.Context, args []string) error {
	s.m.ClearSelection()
	return nil
}

func (s *shell) cmdRename(ctx context.Context, args []string) error {
	switch len(args) {
	case 1:
		return s.m.RenameSelected(args[0])
	case 2:
		it, err := s.item(args[0])
		if err != nil {
			return err
		}
		return s.m.Rename(it.ID, args[1])
	}
	return errors.New(`usage: rename [item] <new name> (quote names with spaces)`)
}

func (s *shell) cmdSearch(ctx context.Context, args []string) error {
	s.m.SetSearchFilter(strings.Join(args, " "))
	s.m.SubmitSearch()
	s.show()
	return nil
}

func (s *shell) cmdSort(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: sort <name|size|date|none>")
	}
	by, err := state.ParseSortBy(args[0])
	if err != nil {
		return err
	}
	s.m.SetSort(by)
	s.show()
	return nil
}

func (s *shell) cmdDetails(ctx context.Context, args []string) error {
	render.WriteDetails(s.out, s.m.Details())
	return nil
}

func (s *shell) cmdShare(ctx context.Context, args []string) error {
	s.m.Share()
	return nil
}

func (s *shell) cmdPreview(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: preview <item>")
	}
	it, err := s.item(args[0])
	if err != nil {
		return err
	}
	p, err := s.m.Preview(ctx, it.ID)
	if err != nil {
		return err
	}
	render.WritePreview(s.out, p, 20)
	return nil
}

func (s *shell) cmdGet(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errors.New("usage: get <item> [dest]")
	}
	it, err := s.item(args[0])
	if err != nil {
		return err
	}
	dest := it.Name
	if len(args) == 2 {
		dest = args[1]
		if info, err := os.Stat(dest); err == nil && info.IsDir() {
			dest = filepath.Join(dest, it.Name)
		}
	}

	if it.Size != nil {
		if err := checkSpace(dest, *it.Size, constants.DiskSpaceSafetyMargin); err != nil {
			return err
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".locker-download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	n, err := s.m.Download(ctx, it.ID, tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Saved %s (%s)\n", dest, render.FormatFileSize(n))
	return nil
}

func (s *shell) cmdStorage(ctx context.Context, args []string) error {
	u := s.m.UpdateStorageUsage(ctx)
	fmt.Fprintln(s.out, render.StorageBar(u, 30))
	return nil
}

func (s *shell) cmdRefresh(ctx context.Context, args []string) error {
	if err := s.m.NavigateRoot(ctx); err != nil {
		return err
	}
	s.m.UpdateStorageUsage(ctx)
	s.show()
	return nil
}

func (s *shell) cmdHelp(ctx context.Context, args []string) error {
	names := make([]string, 0, len(shellCommands))
	for name := range shellCommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := shellCommands[name]
		fmt.Fprintf(s.out, "  %-28s %s\n", c.usage, c.help)
	}
	fmt.Fprintf(s.out, "  %-28s %s\n", "quit", "Leave the shell")
	return nil
}
