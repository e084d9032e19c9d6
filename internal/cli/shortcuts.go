package cli

import (
	"github.com/spf13/cobra"
)

// AddShortcuts adds top-level aliases for the common file commands.
func AddShortcuts(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newUploadShortcut())
	rootCmd.AddCommand(newDownloadShortcut())
	rootCmd.AddCommand(newLsShortcut())
}

// newUploadShortcut creates the 'upload' shortcut command.
// Shortcut for: files upload
func newUploadShortcut() *cobra.Command {
	var folder string
	var maxConcurrent int

	cmd := &cobra.Command{
		Use:   "upload <file> [file...]",
		Short: "Upload files (shortcut for 'files upload')",
		Long: `Shortcut for uploading files.

Equivalent to: locker files upload <files>

Examples:
  locker upload notes.txt photo.png
  locker upload *.pdf --folder Work`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeUpload(cmd, args, folder, maxConcurrent)
		},
	}

	cmd.Flags().StringVarP(&folder, "folder", "d", "", "Upload into this folder (e.g. Work/2025)")
	cmd.Flags().IntVarP(&maxConcurrent, "max-concurrent", "m", 4, "Maximum concurrent uploads (0 = unlimited)")
	return cmd
}

// newDownloadShortcut creates the 'download' shortcut command.
// Shortcut for: files download
func newDownloadShortcut() *cobra.Command {
	var output string
	var force bool

	cmd := &cobra.Command{
		Use:   "download <key>",
		Short: "Download a file (shortcut for 'files download')",
		Long: `Shortcut for downloading a file.

Equivalent to: locker files download <key>

Examples:
  locker download report.pdf
  locker download Work/report.pdf -o ./downloads`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeDownload(cmd, args[0], output, force)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file or directory")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	return cmd
}

// newLsShortcut creates the 'ls' shortcut command.
// Shortcut for: files ls
func newLsShortcut() *cobra.Command {
	cmd := newFilesListCmd()
	cmd.Aliases = nil
	cmd.Short = "List files (shortcut for 'files ls')"
	return cmd
}
