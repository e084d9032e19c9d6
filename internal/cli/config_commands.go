package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/document-locker/locker/internal/api"
	"github.com/document-locker/locker/internal/config"
	"github.com/document-locker/locker/internal/constants"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage locker configuration",
		Long: `Configuration management commands for locker.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  set   - Change one setting
  test  - Test the server connection
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigSetCmd())
	configCmd.AddCommand(newConfigTestCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for locker.

Use --force to overwrite an existing configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			out := cmd.OutOrStdout()

			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Fprintf(out, "Configuration already exists at: %s\n", path)
					fmt.Fprintln(out, "Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			fmt.Fprintln(out, "Document Locker Configuration Setup")
			fmt.Fprintln(out, "===================================")
			fmt.Fprintln(out)

			p := newPrompter(cmd.InOrStdin(), out)
			cfg := config.NewConfig()

			apiURL, err := p.line("Server URL", constants.DefaultAPIURL)
			if err != nil {
				return err
			}
			cfg.APIURL = apiURL

			mode, err := p.line("Proxy mode (no-proxy, system, basic, ntlm)", cfg.ProxyMode)
			if err != nil {
				return err
			}
			cfg.ProxyMode = mode
			if mode == "basic" || mode == "ntlm" {
				if cfg.ProxyHost, err = p.line("Proxy host", ""); err != nil {
					return err
				}
				port, err := p.line("Proxy port", "8080")
				if err != nil {
					return err
				}
				if err := cfg.Set("http.proxy_port", port); err != nil {
					return err
				}
				if cfg.ProxyUser, err = p.line("Proxy user", ""); err != nil {
					return err
				}
			}

			cfg.DesktopNotifications = p.yesNo("Show desktop notifications?")

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := config.Save(cfg, path); err != nil {
				return err
			}

			fmt.Fprintln(out)
			fmt.Fprintf(out, "✓ Configuration saved to: %s\n", path)
			fmt.Fprintln(out, "Run 'locker login' to sign in.")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")
	return cmd
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the current configuration settings.

Settings are merged from:
  1. Configuration file
  2. Environment variables (LOCKER_API_URL, LOCKER_PROXY_*)
  3. Command-line flags (--api-url, --proxy-*)

Priority: flags > environment > config file > defaults`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath())
			if err != nil {
				return err
			}
			cfg.ApplyEnv()
			cfg.MergeWithFlags(apiBaseURL, proxyMode, proxyHost, proxyPort)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Current Configuration")
			fmt.Fprintln(out, "=====================")
			for _, key := range config.Keys() {
				v, _ := cfg.Get(key)
				fmt.Fprintf(out, "%-30s %s\n", key, v)
			}

			_, source := config.ResolveTokenSource(tokenFlag, tokenPath())
			if source == "" {
				source = "(not logged in)"
			}
			fmt.Fprintf(out, "%-30s %s\n", "token", source)
			return nil
		},
	}
}

// newConfigSetCmd creates the 'config set' command.
func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting",
		Long: `Change one setting in the configuration file.

Examples:
  locker config set locker.api_url http://files.example.com:5000
  locker config set notifications.desktop true`,
		Args: cobra.ExactArgs(2),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return config.Keys(), cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := config.Save(cfg, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], args[1])
			return nil
		},
	}
}

// newConfigTestCmd creates the 'config test' command.
func newConfigTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Test the server connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := getAPIClient(false)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Connecting to %s...\n", client.BaseURL())

			st, err := client.Status(GetContext())
			if err != nil {
				fmt.Fprintf(out, "✗ %s\n", api.Describe(err))
				return err
			}
			fmt.Fprintf(out, "✓ Connected (backend: %s)\n", st.Backend)

			if client.Token() == "" {
				fmt.Fprintln(out, "Not logged in.")
				return nil
			}
			me, err := client.Me(GetContext())
			if err != nil {
				fmt.Fprintf(out, "✗ Token rejected: %s\n", api.Describe(err))
				return nil
			}
			fmt.Fprintf(out, "✓ Logged in as %s\n", me.Email)
			return nil
		},
	}
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			path := configPath()
			fmt.Fprintf(out, "Config: %s\n", path)
			fmt.Fprintf(out, "Token:  %s\n", tokenPath())

			if info, err := os.Stat(path); err == nil {
				fmt.Fprintf(out, "Status: ✓ File exists (%d bytes, modified %s)\n",
					info.Size(), info.ModTime().Format("2006-01-02 15:04:05"))
			} else {
				fmt.Fprintln(out, "Status: File does not exist")
				fmt.Fprintln(out, "Create a configuration file with: locker config init")
			}
			return nil
		},
	}
}
