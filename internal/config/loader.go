package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix namespaces environment overrides (LINKARCHIVER_ARCHIVEBOX_URI)
	EnvPrefix = "LINKARCHIVER"
	// DefaultFileName is looked up in the working directory when no path is given
	DefaultFileName = "linkarchiver.yaml"
)

// defaultSetting is a single dotted key with its default value
type defaultSetting struct {
	key   string
	value interface{}
}

// defaults are applied before the file and environment are read
var defaults = []defaultSetting{
	{"archivebox.uri", ""},
	{"archivebox.username", ""},
	{"archivebox.password", ""},
	{"archivebox.login_timeout", "10s"},
	{"basic_auth.enabled", false},
	{"basic_auth.username", ""},
	{"basic_auth.password", ""},
	{"filters.dedup", true},
	{"filters.ignore_private_addresses", true},
	{"filters.ignore_domains", ""},
	{"batch.interval", "10s"},
	{"submit.timeout", "2s"},
	{"session.ttl", "0s"},
	{"storage.path", ""},
	{"watch.auto_submit", false},
	{"watch.extensions", []string{".md"}},
	{"watch.debounce", "500ms"},
	{"logger.level", "info"},
	{"logger.format", "console"},
	{"logger.service_name", "linkarchiver"},
	{"logger.log_file", ""},
	{"logger.max_size", 10},
	{"logger.max_backups", 3},
	{"logger.max_age", 28},
	{"logger.compress", false},
	{"logger.add_source", false},
	{"metrics.addr", ""},
}

// Provider supplies the current settings snapshot
type Provider interface {
	Current() *Config
}

// Static is a Provider that always returns the same snapshot
type Static struct {
	cfg *Config
}

// NewStatic wraps a fixed configuration
func NewStatic(cfg *Config) *Static {
	return &Static{cfg: cfg}
}

// Current implements Provider
func (s *Static) Current() *Config {
	return s.cfg
}

// Default returns the built-in defaults as a Config
func Default() *Config {
	v := newViper()
	var cfg Config
	// Defaults always decode
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// newViper returns an isolated viper instance with defaults and env binding
func newViper() *viper.Viper {
	v := viper.New()
	for _, d := range defaults {
		v.SetDefault(d.key, d.value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file at path (or ./linkarchiver.yaml when empty),
// applies environment overrides and returns the decoded snapshot.
// A missing default file is not an error; a missing explicit file is.
func Load(path string) (*Config, error) {
	v, err := readViper(path)
	if err != nil {
		return nil, err
	}
	return decode(v)
}

func readViper(path string) (*viper.Viper, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(strings.TrimSuffix(DefaultFileName, filepath.Ext(DefaultFileName)))
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// FileProvider re-reads the config file whenever it changes on disk, so that
// every operation sees the latest settings without a restart.
type FileProvider struct {
	mu       sync.RWMutex
	v        *viper.Viper
	cfg      *Config
	onChange []func(*Config)
}

// NewFileProvider loads the config once and returns a provider for it
func NewFileProvider(path string) (*FileProvider, error) {
	v, err := readViper(path)
	if err != nil {
		return nil, err
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	return &FileProvider{v: v, cfg: cfg}, nil
}

// Current implements Provider
func (p *FileProvider) Current() *Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

// OnChange registers a callback fired after a successful reload
func (p *FileProvider) OnChange(fn func(*Config)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChange = append(p.onChange, fn)
}

// Watch starts watching the backing file. It is a no-op when no file was read.
func (p *FileProvider) Watch() {
	if p.v.ConfigFileUsed() == "" {
		return
	}
	p.v.OnConfigChange(func(fsnotify.Event) {
		_ = p.Reload()
	})
	p.v.WatchConfig()
}

// Reload decodes the current viper state. A decode failure keeps the
// previous snapshot.
func (p *FileProvider) Reload() error {
	if p.v.ConfigFileUsed() != "" {
		if err := p.v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to reload config: %w", err)
		}
	}
	cfg, err := decode(p.v)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.cfg = cfg
	callbacks := append([]func(*Config){}, p.onChange...)
	p.mu.Unlock()

	for _, fn := range callbacks {
		fn(cfg)
	}
	return nil
}

// DefaultDocument renders the defaults as a nested YAML document
func DefaultDocument() ([]byte, error) {
	root := map[string]interface{}{}
	for _, d := range defaults {
		parts := strings.Split(d.key, ".")
		node := root
		for _, part := range parts[:len(parts)-1] {
			child, ok := node[part].(map[string]interface{})
			if !ok {
				child = map[string]interface{}{}
				node[part] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = d.value
	}
	return yaml.Marshal(root)
}

// WriteDefault writes the default document to path. It refuses to overwrite
// an existing file unless force is set.
func WriteDefault(path string, force bool) error {
	if path == "" {
		path = DefaultFileName
	}
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file %s already exists", path)
	}

	data, err := DefaultDocument()
	if err != nil {
		return fmt.Errorf("failed to render default config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
