package postal

import (
	"net/http"
	"time"
)

// Concurrency constants for component downloads.
const (
	// DefaultConcurrency is the default number of concurrent component
	// downloads. Model versions typically carry three components.
	DefaultConcurrency = 3

	// MaxConcurrency is the maximum allowed concurrent component downloads.
	MaxConcurrency = 8
)

// Retry configuration constants for failed HTTP requests.
// Only clearly transient failures are retried; a checksum mismatch never is.
const (
	// MaxRetries is the maximum number of retry attempts for failed requests.
	MaxRetries = 3

	// InitialBackoff is the initial backoff duration before the first retry.
	InitialBackoff = 1 * time.Second

	// MaxBackoff is the maximum backoff duration between retries.
	MaxBackoff = 4 * time.Second
)

// SetupFunc hands a data directory to the native libpostal library. It is
// called at most once per process, is expensive (loads all models into
// memory), and is not interruptible once invoked.
type SetupFunc func(datadir string) error

// DownloadOption configures a model download.
type DownloadOption func(*downloadConfig)

// downloadConfig holds configuration for one download operation.
type downloadConfig struct {
	// force re-downloads every component even if the version is complete.
	force bool

	// concurrency is the number of concurrent component downloads.
	concurrency int

	// progressFn is called with progress updates during download.
	progressFn func(DownloadProgress)
}

// newDownloadConfig returns a downloadConfig with default values.
func newDownloadConfig() *downloadConfig {
	return &downloadConfig{
		concurrency: DefaultConcurrency,
	}
}

// WithForce re-downloads every component even if the version is already
// complete on disk.
func WithForce() DownloadOption {
	return func(c *downloadConfig) {
		c.force = true
	}
}

// WithConcurrency sets the number of concurrent component downloads.
// Values are clamped to the range [1, MaxConcurrency].
func WithConcurrency(n int) DownloadOption {
	return func(c *downloadConfig) {
		if n < 1 {
			n = 1
		}
		if n > MaxConcurrency {
			n = MaxConcurrency
		}
		c.concurrency = n
	}
}

// WithProgress sets a callback for progress updates during download.
// The callback is invoked from download worker goroutines and must be
// thread-safe. A failing callback never aborts the download.
func WithProgress(fn func(DownloadProgress)) DownloadOption {
	return func(c *downloadConfig) {
		c.progressFn = fn
	}
}

// ManagerOption configures a Manager.
type ManagerOption func(*managerConfig)

// managerConfig holds configuration for Manager construction.
type managerConfig struct {
	// httpClient is used for all HTTP requests.
	httpClient HTTPClient

	// logger receives diagnostic log messages.
	logger Logger

	// setup hands the resolved data directory to the native library.
	setup SetupFunc
}

// newManagerConfig returns a managerConfig with default values.
func newManagerConfig() *managerConfig {
	return &managerConfig{
		httpClient: http.DefaultClient,
		setup:      nativeSetup,
	}
}

// WithHTTPClient sets a custom HTTP client for manifest and archive requests.
// Useful for testing with mock servers or customizing timeouts.
// If not set, http.DefaultClient is used.
func WithHTTPClient(client HTTPClient) ManagerOption {
	return func(c *managerConfig) {
		c.httpClient = client
	}
}

// WithLogger sets a logger for diagnostic output.
// If not set, logging is disabled.
func WithLogger(logger Logger) ManagerOption {
	return func(c *managerConfig) {
		c.logger = logger
	}
}

// WithNativeSetup replaces the native setup entry point. Intended for tests
// and for embedders that link libpostal through their own shim.
func WithNativeSetup(setup SetupFunc) ManagerOption {
	return func(c *managerConfig) {
		if setup != nil {
			c.setup = setup
		}
	}
}

// HTTPClient is the interface for HTTP operations.
// *http.Client satisfies this interface.
type HTTPClient interface {
	// Do sends an HTTP request and returns an HTTP response.
	Do(req *http.Request) (*http.Response, error)
}

// Logger is the interface for diagnostic logging.
// Compatible with slog, zap, logrus, and other structured loggers.
type Logger interface {
	// Debug logs a debug-level message with optional key-value pairs.
	Debug(msg string, keysAndValues ...any)

	// Info logs an info-level message with optional key-value pairs.
	Info(msg string, keysAndValues ...any)

	// Warn logs a warning-level message with optional key-value pairs.
	Warn(msg string, keysAndValues ...any)

	// Error logs an error-level message with optional key-value pairs.
	Error(msg string, keysAndValues ...any)
}
