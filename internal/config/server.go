package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/document-locker/locker/internal/constants"
)

// Storage backends supported by locker-server.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
	BackendAzure = "azure"
)

// ServerConfig holds locker-server settings.
//
// INI format:
//
//	[server]
//	addr = :5000
//	backend = local
//	require_auth = false
//	demo_login = true
//	jwt_secret =
//	cors_origins = *
//	auth_rate_per_minute = 20
//
//	[storage.local]
//	dir = ./data
//
//	[storage.s3]
//	bucket =
//	region = us-east-1
//	endpoint =
//	access_key =
//	secret_key =
//
//	[storage.azure]
//	connection_string =
//	container =
type ServerConfig struct {
	Addr        string
	Backend     string
	RequireAuth bool
	DemoLogin   bool
	JWTSecret   string
	CORSOrigins []string

	// AuthRatePerMinute throttles /login and /register per client address.
	// Zero disables throttling.
	AuthRatePerMinute int

	LocalDir string

	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string

	AzureConnectionString string
	AzureContainer        string

	LogFile string
}

// NewServerConfig returns defaults suitable for local development.
func NewServerConfig() *ServerConfig {
	return &ServerConfig{
		Addr:              constants.DefaultServerAddr,
		Backend:           BackendLocal,
		DemoLogin:         true,
		CORSOrigins:       []string{"*"},
		AuthRatePerMinute: constants.DefaultAuthRatePerMinute,
		LocalDir:          "./data",
		S3Region:          "us-east-1",
	}
}

// LoadServerConfig reads server settings from an INI file, then overlays
// LOCKER_SERVER_* and the standard AWS variables. An empty path skips the file.
func LoadServerConfig(path string) (*ServerConfig, error) {
	cfg := NewServerConfig()

	if path != "" {
		f, err := ini.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load server config: %w", err)
		}
		s := f.Section("server")
		cfg.Addr = s.Key("addr").MustString(cfg.Addr)
		cfg.Backend = s.Key("backend").MustString(cfg.Backend)
		cfg.RequireAuth = s.Key("require_auth").MustBool(false)
		cfg.DemoLogin = s.Key("demo_login").MustBool(true)
		cfg.JWTSecret = s.Key("jwt_secret").String()
		if origins := s.Key("cors_origins").Strings(","); len(origins) > 0 {
			cfg.CORSOrigins = origins
		}
		cfg.AuthRatePerMinute = s.Key("auth_rate_per_minute").MustInt(cfg.AuthRatePerMinute)
		cfg.LogFile = s.Key("log_file").String()

		cfg.LocalDir = f.Section("storage.local").Key("dir").MustString(cfg.LocalDir)

		s3 := f.Section("storage.s3")
		cfg.S3Bucket = s3.Key("bucket").String()
		cfg.S3Region = s3.Key("region").MustString(cfg.S3Region)
		cfg.S3Endpoint = s3.Key("endpoint").String()
		cfg.S3AccessKey = s3.Key("access_key").String()
		cfg.S3SecretKey = s3.Key("secret_key").String()

		az := f.Section("storage.azure")
		cfg.AzureConnectionString = az.Key("connection_string").String()
		cfg.AzureContainer = az.Key("container").String()
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *ServerConfig) applyEnv() {
	set := func(dst *string, names ...string) {
		if v := firstEnv(names...); v != "" {
			*dst = v
		}
	}
	set(&c.Addr, "LOCKER_SERVER_ADDR")
	set(&c.Backend, "LOCKER_SERVER_BACKEND")
	set(&c.JWTSecret, "LOCKER_JWT_SECRET")
	set(&c.LocalDir, "LOCKER_STORAGE_DIR")
	set(&c.S3Bucket, "LOCKER_S3_BUCKET", "S3_BUCKET")
	set(&c.S3Region, "AWS_REGION")
	set(&c.S3Endpoint, "LOCKER_S3_ENDPOINT")
	set(&c.S3AccessKey, "AWS_ACCESS_KEY_ID")
	set(&c.S3SecretKey, "AWS_SECRET_ACCESS_KEY")
	set(&c.AzureConnectionString, "AZURE_STORAGE_CONNECTION_STRING")
	set(&c.AzureContainer, "LOCKER_AZURE_CONTAINER")
	if v := os.Getenv("LOCKER_REQUIRE_AUTH"); v != "" {
		c.RequireAuth = strings.EqualFold(v, "true") || v == "1"
	}
}

// Validate checks that the selected backend has what it needs.
func (c *ServerConfig) Validate() error {
	switch c.Backend {
	case BackendLocal:
		if c.LocalDir == "" {
			return errors.New("storage.local dir is required for the local backend")
		}
	case BackendS3:
		if c.S3Bucket == "" {
			return errors.New("storage.s3 bucket is required for the s3 backend")
		}
	case BackendAzure:
		if c.AzureConnectionString == "" || c.AzureContainer == "" {
			return errors.New("storage.azure connection_string and container are required for the azure backend")
		}
	case "":
		// no backend: file routes answer 503
	default:
		return fmt.Errorf("unknown storage backend %q", c.Backend)
	}
	if c.AuthRatePerMinute < 0 {
		return errors.New("auth_rate_per_minute must not be negative")
	}
	if c.RequireAuth && c.JWTSecret == "" {
		return errors.New("jwt_secret is required when require_auth is enabled")
	}
	return nil
}
