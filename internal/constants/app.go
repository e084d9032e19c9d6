package constants

import (
	"time"
)

// Dashboard behaviour
const (
	// SearchDebounceDelay - quiet period before a typed search query re-renders the list (300 ms)
	SearchDebounceDelay = 300 * time.Millisecond

	// NotificationTTL - how long a status notification stays visible before auto-dismiss (5 seconds)
	NotificationTTL = 5 * time.Second

	// StorageQuotaBytes - fixed per-account quota shown in the usage bar (15 GB)
	// The server does not report a quota; the value is display-only.
	StorageQuotaBytes int64 = 15 * 1024 * 1024 * 1024

	// StorageQuotaLabel - quota as rendered next to the usage figure
	StorageQuotaLabel = "15 GB"

	// PreviewMaxBytes - largest download the dashboard will hold in memory for a preview (10 MB)
	PreviewMaxBytes int64 = 10 * 1024 * 1024
)

// Auth form validation limits
const (
	// MinPasswordLength - minimum accepted password length on login and register
	MinPasswordLength = 6

	// MinNameLength - minimum accepted full name length on register
	MinNameLength = 2
)

// Event bus buffer sizes
const (
	// EventBusDefaultBuffer - default buffer size for event channels (256)
	// Dashboard events are low volume; one per user action.
	EventBusDefaultBuffer = 256

	// EventBusMaxBuffer - maximum buffer size (2048)
	EventBusMaxBuffer = 2048
)

// HTTP Client Timeouts
const (
	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake (30 seconds)
	HTTPTLSHandshakeTimeout = 30 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPDialTimeout - timeout for establishing connection (30 seconds)
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - keep-alive period for dialer (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second

	// ProxyWarmupTimeout - timeout for the optional proxy warmup request (10 seconds)
	ProxyWarmupTimeout = 10 * time.Second
)

// API retry policy
// Requests are single-shot by default; retries are opt-in through config.
const (
	// DefaultMaxRetries - retries per request when config does not override (0)
	DefaultMaxRetries = 0

	// RetryInitialDelay - first backoff delay when retries are enabled (200 ms)
	RetryInitialDelay = 200 * time.Millisecond

	// RetryMaxDelay - backoff ceiling when retries are enabled (5 seconds)
	RetryMaxDelay = 5 * time.Second
)

// Server defaults
const (
	// DefaultServerAddr - listen address for locker-server
	DefaultServerAddr = ":5000"

	// DefaultAPIURL - base URL the client talks to when nothing is configured
	DefaultAPIURL = "http://localhost:5000"

	// TokenTTL - lifetime of tokens issued by locker-server (24 hours)
	TokenTTL = 24 * time.Hour

	// RememberMeTokenTTL - lifetime when the login form asked to be remembered (30 days)
	RememberMeTokenTTL = 30 * 24 * time.Hour

	// MaxUploadBytes - per-request body limit on /upload (5 GB)
	MaxUploadBytes int64 = 5 * 1024 * 1024 * 1024

	// ServerReadHeaderTimeout - header read timeout for locker-server (10 seconds)
	ServerReadHeaderTimeout = 10 * time.Second

	// ServerShutdownTimeout - grace period for in-flight requests on shutdown (15 seconds)
	ServerShutdownTimeout = 15 * time.Second

	// DefaultAuthRatePerMinute - login/register attempts allowed per client address per minute
	DefaultAuthRatePerMinute = 20

	// AuthRateBurst - attempts a client may make back to back before throttling starts
	AuthRateBurst = 5

	// AuthLimiterIdleTTL - how long an idle client's limiter is kept (10 minutes)
	AuthLimiterIdleTTL = 10 * time.Minute
)

// Disk space
const (
	// DiskSpaceSafetyMargin - extra headroom required before writing a download (5%)
	DiskSpaceSafetyMargin = 0.05
)

// Log file rotation
const (
	// LogMaxSizeMB - rotate the log file after this many megabytes
	LogMaxSizeMB = 10

	// LogMaxBackups - rotated files to keep
	LogMaxBackups = 5

	// LogMaxAgeDays - days to keep rotated files
	LogMaxAgeDays = 30
)

// Progress display
const (
	// ProgressRefreshRate - redraw interval for multi-file upload bars (150 ms)
	ProgressRefreshRate = 150 * time.Millisecond

	// ProgressBarWidth - width of the bar portion in characters
	ProgressBarWidth = 40
)
