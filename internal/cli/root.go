// Package cli provides the command-line interface for locker.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/document-locker/locker/internal/logging"
	"github.com/document-locker/locker/internal/version"
)

var (
	// Global flags
	cfgFile    string
	apiBaseURL string
	tokenFlag  string
	tokenFile  string
	logFile    string
	verbose    bool
	debug      bool

	// Proxy overrides
	proxyMode string
	proxyHost string
	proxyPort int

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "locker",
		Short: "Document Locker - command-line client",
		Long: `Document Locker ` + version.Version + ` - Built: ` + version.BuildTime + `
Sign in, upload, browse, download and delete files stored in a
Document Locker server.

Run 'locker shell' for the interactive file dashboard.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			file := logFile
			if file == "" {
				if cfg, err := loadConfig(); err == nil {
					file = cfg.LogFile
				}
			}
			logger = logging.NewLogger(logging.Options{Mode: logging.ModeCLI, File: file})
			if verbose || debug {
				logging.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Close()
			}
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	pf.StringVar(&apiBaseURL, "api-url", "", "API base URL (overrides config)")
	pf.StringVar(&tokenFlag, "token", "", "Auth token (overrides LOCKER_TOKEN and the token file)")
	pf.StringVar(&tokenFile, "token-file", "", "Path of the token file written by 'locker login'")
	pf.StringVar(&logFile, "log-file", "", "Also write logs to this file (rotated)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	pf.BoolVar(&debug, "debug", false, "Enable debug output (same as --verbose)")
	pf.StringVar(&proxyMode, "proxy-mode", "", "Proxy mode: no-proxy, system, basic, ntlm")
	pf.StringVar(&proxyHost, "proxy-host", "", "Proxy host")
	pf.IntVar(&proxyPort, "proxy-port", 0, "Proxy port")

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"

	completionCmd := &cobra.Command{
		Use:       "completion [bash|zsh|fish|powershell]",
		Short:     "Generate a shell completion script",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return rootCmd.GenBashCompletion(out)
			case "zsh":
				return rootCmd.GenZshCompletion(out)
			case "fish":
				return rootCmd.GenFishCompletion(out, true)
			default:
				return rootCmd.GenPowerShellCompletion(out)
			}
		},
	}
	rootCmd.AddCommand(completionCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	return rootCmd
}

// Execute runs the CLI.
func Execute() error {
	rootContext, cancelFunc = context.WithCancel(context.Background())
	defer cancelFunc()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\nReceived signal %v, cancelling...\n", sig)
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.Execute()

	signal.Stop(sigChan)
	close(sigChan)
	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newRegisterCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newWhoamiCmd())
	rootCmd.AddCommand(newFilesCmd())
	rootCmd.AddCommand(newStorageCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newShellCmd())
	rootCmd.AddCommand(newConfigCmd())

	AddShortcuts(rootCmd)
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the global CLI context, cancelled on Ctrl+C.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}
