package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/document-locker/locker/internal/constants"
)

// Config holds client settings.
//
// INI format:
//
//	[locker]
//	api_url = http://localhost:5000
//
//	[http]
//	proxy_mode = no-proxy
//	proxy_host =
//	proxy_port = 0
//	proxy_user =
//	no_proxy =
//	max_retries = 0
//	timeout_seconds = 0
//
//	[notifications]
//	desktop = false
//	dismiss_seconds = 5
//
//	[log]
//	file =
type Config struct {
	APIURL string

	ProxyMode     string // "no-proxy", "system", "basic", "ntlm"
	ProxyHost     string
	ProxyPort     int
	ProxyUser     string
	ProxyPassword string // never persisted; prompted or taken from LOCKER_PROXY_PASSWORD
	NoProxy       string // comma-separated hosts that bypass the proxy

	MaxRetries     int
	TimeoutSeconds int // 0 = no client-side timeout

	DesktopNotifications bool
	DismissSeconds       int

	LogFile string
}

// Validation errors
var (
	ErrMissingAPIURL     = errors.New("api_url is required")
	ErrInvalidAPIURL     = errors.New("api_url must be an absolute http(s) URL")
	ErrInvalidProxyMode  = errors.New("proxy_mode must be one of no-proxy, system, basic, ntlm")
	ErrMissingProxyHost  = errors.New("proxy_host is required for basic and ntlm proxy modes")
	ErrInvalidMaxRetries = errors.New("max_retries must be between 0 and 10")
	ErrUnknownKey        = errors.New("unknown config key")
)

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		APIURL:         constants.DefaultAPIURL,
		ProxyMode:      "no-proxy",
		MaxRetries:     constants.DefaultMaxRetries,
		DismissSeconds: int(constants.NotificationTTL / time.Second),
	}
}

// Load reads an INI config file. A missing file yields defaults and no error.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		path = DefaultConfigPath()
		if path == "" {
			return cfg, nil
		}
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	locker := f.Section("locker")
	cfg.APIURL = locker.Key("api_url").MustString(cfg.APIURL)

	h := f.Section("http")
	cfg.ProxyMode = h.Key("proxy_mode").MustString(cfg.ProxyMode)
	cfg.ProxyHost = h.Key("proxy_host").String()
	cfg.ProxyPort = h.Key("proxy_port").MustInt(0)
	cfg.ProxyUser = h.Key("proxy_user").String()
	cfg.NoProxy = h.Key("no_proxy").String()
	cfg.MaxRetries = h.Key("max_retries").MustInt(cfg.MaxRetries)
	cfg.TimeoutSeconds = h.Key("timeout_seconds").MustInt(0)

	n := f.Section("notifications")
	cfg.DesktopNotifications = n.Key("desktop").MustBool(false)
	cfg.DismissSeconds = n.Key("dismiss_seconds").MustInt(cfg.DismissSeconds)

	cfg.LogFile = f.Section("log").Key("file").String()

	return cfg, nil
}

// Save writes cfg as INI, atomically and with owner-only permissions.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = DefaultConfigPath()
		if path == "" {
			return errors.New("failed to determine config path")
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f := ini.Empty()
	for _, kv := range cfg.pairs() {
		section, key, _ := strings.Cut(kv[0], ".")
		f.Section(section).Key(key).SetValue(kv[1])
	}

	tmpPath := path + ".tmp"
	if err := f.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// pairs lists every persisted setting as "section.key" / value.
func (c *Config) pairs() [][2]string {
	return [][2]string{
		{"locker.api_url", c.APIURL},
		{"http.proxy_mode", c.ProxyMode},
		{"http.proxy_host", c.ProxyHost},
		{"http.proxy_port", strconv.Itoa(c.ProxyPort)},
		{"http.proxy_user", c.ProxyUser},
		{"http.no_proxy", c.NoProxy},
		{"http.max_retries", strconv.Itoa(c.MaxRetries)},
		{"http.timeout_seconds", strconv.Itoa(c.TimeoutSeconds)},
		{"notifications.desktop", strconv.FormatBool(c.DesktopNotifications)},
		{"notifications.dismiss_seconds", strconv.Itoa(c.DismissSeconds)},
		{"log.file", c.LogFile},
	}
}

// Keys returns the settable keys in "section.key" form, sorted.
func Keys() []string {
	var keys []string
	for _, kv := range NewConfig().pairs() {
		keys = append(keys, kv[0])
	}
	sort.Strings(keys)
	return keys
}

// Get returns the string form of a setting.
func (c *Config) Get(key string) (string, error) {
	for _, kv := range c.pairs() {
		if kv[0] == key {
			return kv[1], nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
}

// Set assigns a setting from its string form.
func (c *Config) Set(key, value string) error {
	atoi := func() (int, error) {
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("%s: %q is not a number", key, value)
		}
		return n, nil
	}

	var err error
	switch key {
	case "locker.api_url":
		c.APIURL = value
	case "http.proxy_mode":
		c.ProxyMode = value
	case "http.proxy_host":
		c.ProxyHost = value
	case "http.proxy_port":
		c.ProxyPort, err = atoi()
	case "http.proxy_user":
		c.ProxyUser = value
	case "http.no_proxy":
		c.NoProxy = value
	case "http.max_retries":
		c.MaxRetries, err = atoi()
	case "http.timeout_seconds":
		c.TimeoutSeconds, err = atoi()
	case "notifications.desktop":
		c.DesktopNotifications, err = strconv.ParseBool(value)
	case "notifications.dismiss_seconds":
		c.DismissSeconds, err = atoi()
	case "log.file":
		c.LogFile = value
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return err
}

// ApplyEnv overlays LOCKER_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("LOCKER_API_URL"); v != "" {
		c.APIURL = v
	}
	if v := os.Getenv("LOCKER_PROXY_PASSWORD"); v != "" {
		c.ProxyPassword = v
	}
	if c.ProxyMode == "system" && c.ProxyHost == "" {
		c.parseProxyURL(firstEnv("HTTPS_PROXY", "https_proxy", "HTTP_PROXY", "http_proxy"))
	}
}

// MergeWithFlags lets non-empty command-line values win over file and env.
func (c *Config) MergeWithFlags(apiURL, proxyMode, proxyHost string, proxyPort int) {
	if apiURL != "" {
		c.APIURL = apiURL
	}
	if proxyMode != "" {
		c.ProxyMode = proxyMode
	}
	if proxyHost != "" {
		c.ProxyHost = proxyHost
	}
	if proxyPort > 0 {
		c.ProxyPort = proxyPort
	}
}

func (c *Config) parseProxyURL(raw string) {
	if raw == "" {
		return
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return
	}
	c.ProxyHost = u.Hostname()
	if p, err := strconv.Atoi(u.Port()); err == nil {
		c.ProxyPort = p
	}
	if u.User != nil {
		c.ProxyUser = u.User.Username()
		if pw, ok := u.User.Password(); ok && c.ProxyPassword == "" {
			c.ProxyPassword = pw
		}
	}
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

// Validate checks the settings needed to talk to the API.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIURL) == "" {
		return ErrMissingAPIURL
	}
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidAPIURL
	}
	switch c.ProxyMode {
	case "", "no-proxy", "system":
	case "basic", "ntlm":
		if c.ProxyHost == "" {
			return ErrMissingProxyHost
		}
	default:
		return ErrInvalidProxyMode
	}
	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return ErrInvalidMaxRetries
	}
	return nil
}

// Timeout returns the client-side request timeout; zero means none.
func (c *Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DismissAfter returns how long notifications stay visible.
func (c *Config) DismissAfter() time.Duration {
	if c.DismissSeconds <= 0 {
		return constants.NotificationTTL
	}
	return time.Duration(c.DismissSeconds) * time.Second
}
