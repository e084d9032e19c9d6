package cli

import (
	"testing"

	"github.com/spf13/cobra"
)

func TestShortcuts(t *testing.T) {
	tests := []struct {
		name  string
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{"upload", newUploadShortcut(), "upload <file> [file...]", []string{"folder", "max-concurrent"}},
		{"download", newDownloadShortcut(), "download <key>", []string{"output", "force"}},
		{"ls", newLsShortcut(), "ls", []string{"search", "sort", "json"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.cmd.Use != tt.use {
				t.Errorf("Use = %q, want %q", tt.cmd.Use, tt.use)
			}
			if tt.cmd.Short == "" {
				t.Error("Short description is empty")
			}
			if tt.cmd.RunE == nil {
				t.Error("RunE function is nil")
			}
			for _, f := range tt.flags {
				if tt.cmd.Flags().Lookup(f) == nil {
					t.Errorf("--%s flag not found", f)
				}
			}
		})
	}
}

func TestAddShortcuts(t *testing.T) {
	root := &cobra.Command{Use: "locker"}
	AddShortcuts(root)

	for _, name := range []string{"upload", "download", "ls"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("shortcut %q not registered", name)
		}
	}
}

func TestUploadShortcutRequiresArgs(t *testing.T) {
	cmd := newUploadShortcut()
	if err := cmd.Args(cmd, nil); err == nil {
		t.Error("expected an error with no files")
	}
}
