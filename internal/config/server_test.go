package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearServerEnv(t *testing.T) {
	for _, k := range []string{
		"LOCKER_SERVER_ADDR", "LOCKER_SERVER_BACKEND", "LOCKER_JWT_SECRET", "LOCKER_STORAGE_DIR",
		"LOCKER_S3_BUCKET", "S3_BUCKET", "AWS_REGION", "LOCKER_S3_ENDPOINT", "AWS_ACCESS_KEY_ID",
		"AWS_SECRET_ACCESS_KEY", "AZURE_STORAGE_CONNECTION_STRING", "LOCKER_AZURE_CONTAINER", "LOCKER_REQUIRE_AUTH",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadServerConfig(t *testing.T) {
	clearServerEnv(t)

	path := filepath.Join(t.TempDir(), "server.ini")
	body := `[server]
addr = :8080
backend = s3
require_auth = true
jwt_secret = s3cret
cors_origins = http://a.test, http://b.test
auth_rate_per_minute = 6

[storage.s3]
bucket = docs
endpoint = http://minio:9000
`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("LoadServerConfig failed: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.Backend != BackendS3 || cfg.S3Bucket != "docs" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.S3Region != "us-east-1" {
		t.Errorf("S3Region = %s, want default us-east-1", cfg.S3Region)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b.test" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if cfg.AuthRatePerMinute != 6 {
		t.Errorf("AuthRatePerMinute = %d", cfg.AuthRatePerMinute)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestServerConfigEnvOverride(t *testing.T) {
	clearServerEnv(t)
	t.Setenv("LOCKER_SERVER_BACKEND", "azure")
	t.Setenv("LOCKER_REQUIRE_AUTH", "1")

	cfg, err := LoadServerConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend != BackendAzure || !cfg.RequireAuth {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for azure without connection string")
	}
}

func TestServerConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ServerConfig
		wantErr bool
	}{
		{"local", ServerConfig{Backend: BackendLocal, LocalDir: "/tmp"}, false},
		{"local without dir", ServerConfig{Backend: BackendLocal}, true},
		{"no backend", ServerConfig{}, false},
		{"unknown", ServerConfig{Backend: "gcs"}, true},
		{"auth without secret", ServerConfig{Backend: BackendLocal, LocalDir: "/tmp", RequireAuth: true}, true},
		{"negative auth rate", ServerConfig{Backend: BackendLocal, LocalDir: "/tmp", AuthRatePerMinute: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
