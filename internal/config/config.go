package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dshills/linkarchiver/pkg/types"
)

const (
	// DefaultBatchInterval is the minimum gap between automatic flushes
	DefaultBatchInterval = 10 * time.Second
	// DefaultSubmitTimeout bounds the add-endpoint call
	DefaultSubmitTimeout = 2 * time.Second
	// DefaultLoginTimeout bounds each login request
	DefaultLoginTimeout = 10 * time.Second
	// DefaultWatchDebounce coalesces bursts of writes to the same file
	DefaultWatchDebounce = 500 * time.Millisecond
)

// Config is an immutable settings snapshot. Components read it at the start
// of every operation and never keep it across calls.
type Config struct {
	ArchiveBox ArchiveBoxConfig `mapstructure:"archivebox"`
	BasicAuth  BasicAuthConfig  `mapstructure:"basic_auth"`
	Filters    FiltersConfig    `mapstructure:"filters"`
	Batch      BatchConfig      `mapstructure:"batch"`
	Submit     SubmitConfig     `mapstructure:"submit"`
	Session    SessionConfig    `mapstructure:"session"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Watch      WatchConfig      `mapstructure:"watch"`
	Logger     LoggerConfig     `mapstructure:"logger"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// ArchiveBoxConfig locates and authenticates against the archiving service
type ArchiveBoxConfig struct {
	URI          string        `mapstructure:"uri"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	LoginTimeout time.Duration `mapstructure:"login_timeout"`
}

// BasicAuthConfig wraps every request in HTTP Basic authentication
type BasicAuthConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// FiltersConfig toggles the filter chain stages
type FiltersConfig struct {
	Dedup                  bool   `mapstructure:"dedup"`
	IgnorePrivateAddresses bool   `mapstructure:"ignore_private_addresses"`
	IgnoreDomains          string `mapstructure:"ignore_domains"` // Comma-separated
}

// BatchConfig controls when accumulated links are flushed
type BatchConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// SubmitConfig controls the add-endpoint call
type SubmitConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// SessionConfig controls session validity. A zero TTL never expires.
type SessionConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// StorageConfig locates the SQLite database used to persist fingerprints.
// An empty path keeps the dedup cache in memory only.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// WatchConfig controls the directory watcher
type WatchConfig struct {
	AutoSubmit bool          `mapstructure:"auto_submit"`
	Extensions []string      `mapstructure:"extensions"`
	Debounce   time.Duration `mapstructure:"debounce"`
}

// LoggerConfig configures the zap logger
type LoggerConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"` // "console" or "json"
	ServiceName string `mapstructure:"service_name"`
	LogFile     string `mapstructure:"log_file"`
	MaxSize     int    `mapstructure:"max_size"` // megabytes
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAge      int    `mapstructure:"max_age"` // days
	Compress    bool   `mapstructure:"compress"`
	AddSource   bool   `mapstructure:"add_source"`
}

// MetricsConfig exposes Prometheus metrics when Addr is set
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// ValidationError describes the first configuration problem found.
// It unwraps to types.ErrConfigInvalid.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", types.ErrConfigInvalid, e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return types.ErrConfigInvalid
}

// Validate checks the settings that must hold before any network call
func (c *Config) Validate() error {
	u, err := url.Parse(strings.TrimSpace(c.ArchiveBox.URI))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ValidationError{Field: "archivebox.uri", Message: "Missing ArchiveBox URI."}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ValidationError{Field: "archivebox.uri", Message: "ArchiveBox URI must be http or https."}
	}

	// Username and password come as a pair
	if c.ArchiveBox.Username == "" && c.ArchiveBox.Password != "" {
		return &ValidationError{Field: "archivebox.username", Message: "Missing ArchiveBox username."}
	}
	if c.ArchiveBox.Password == "" && c.ArchiveBox.Username != "" {
		return &ValidationError{Field: "archivebox.password", Message: "Missing ArchiveBox password."}
	}

	if c.BasicAuth.Enabled {
		if c.BasicAuth.Username == "" {
			return &ValidationError{Field: "basic_auth.username", Message: "Missing basic auth username."}
		}
		if c.BasicAuth.Password == "" {
			return &ValidationError{Field: "basic_auth.password", Message: "Missing basic auth password."}
		}
	}

	return nil
}

// BaseURL returns the service URI without a trailing slash
func (c *Config) BaseURL() string {
	return strings.TrimRight(strings.TrimSpace(c.ArchiveBox.URI), "/")
}

// IgnoredDomains splits the comma-separated ignore list, dropping empty entries
func (c *Config) IgnoredDomains() []string {
	if strings.TrimSpace(c.Filters.IgnoreDomains) == "" {
		return nil
	}
	parts := strings.Split(c.Filters.IgnoreDomains, ",")
	domains := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			domains = append(domains, p)
		}
	}
	return domains
}

// FlushInterval returns the batch interval, never negative
func (c *Config) FlushInterval() time.Duration {
	if c.Batch.Interval < 0 {
		return 0
	}
	return c.Batch.Interval
}

// SubmitTimeout returns the add-endpoint timeout, falling back to the default
func (c *Config) SubmitTimeout() time.Duration {
	if c.Submit.Timeout <= 0 {
		return DefaultSubmitTimeout
	}
	return c.Submit.Timeout
}

// LoginTimeout returns the per-request login timeout
func (c *Config) LoginTimeout() time.Duration {
	if c.ArchiveBox.LoginTimeout <= 0 {
		return DefaultLoginTimeout
	}
	return c.ArchiveBox.LoginTimeout
}

// ConnectionKey identifies the settings a session depends on. A change in
// the key invalidates any session obtained under the previous value.
func (c *Config) ConnectionKey() string {
	var b strings.Builder
	b.WriteString(c.BaseURL())
	b.WriteByte('\x00')
	b.WriteString(c.ArchiveBox.Username)
	b.WriteByte('\x00')
	b.WriteString(c.ArchiveBox.Password)
	b.WriteByte('\x00')
	if c.BasicAuth.Enabled {
		b.WriteString(c.BasicAuth.Username)
		b.WriteByte('\x00')
		b.WriteString(c.BasicAuth.Password)
	}
	return b.String()
}

// WatchesExtension reports whether files with ext should trigger the watcher
func (c *Config) WatchesExtension(ext string) bool {
	exts := c.Watch.Extensions
	if len(exts) == 0 {
		exts = []string{".md"}
	}
	for _, e := range exts {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}
