package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/document-locker/locker/internal/api"
	"github.com/document-locker/locker/internal/config"
	"github.com/document-locker/locker/internal/notify"
	"github.com/document-locker/locker/internal/state"
)

// errNotLoggedIn is returned by commands that need a token when none is found.
var errNotLoggedIn = errors.New("not logged in; run 'locker login' first")

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

func tokenPath() string {
	if tokenFile != "" {
		return tokenFile
	}
	return config.DefaultTokenPath()
}

// loadConfig reads the config file and applies env and flag overrides.
// Precedence: flag > env > file > defaults.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	cfg.MergeWithFlags(apiBaseURL, proxyMode, proxyHost, proxyPort)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// getAPIClient loads configuration and creates an API client carrying the
// resolved token. With requireToken it fails when nobody is logged in.
func getAPIClient(requireToken bool) (*api.Client, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	token := config.ResolveToken(tokenFlag, tokenPath())
	if requireToken && token == "" {
		return nil, nil, errNotLoggedIn
	}

	client, err := api.NewClient(cfg, api.WithToken(token), api.WithLogger(GetLogger()))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create API client: %w", err)
	}
	return client, cfg, nil
}

// newNotifier prints notifications on stderr and, when enabled in config,
// mirrors warnings and errors to the desktop.
func newNotifier(cfg *config.Config) *notify.Center {
	return notify.NewCenter(
		notify.Config{TTL: cfg.DismissAfter(), Logger: GetLogger()},
		notify.NewConsoleSink(os.Stderr),
		notify.NewDesktopSink(cfg.DesktopNotifications, false, GetLogger()),
	)
}

// newManager builds the dashboard view-model over client.
func newManager(client *api.Client, cfg *config.Config, renderer state.Renderer) (*state.Manager, error) {
	return state.New(state.Options{
		API:      client,
		Renderer: renderer,
		Notifier: newNotifier(cfg),
		Logger:   GetLogger(),
	})
}
