// Package config loads receiptify settings from a TOML file.
//
// Every field has a default (see [Default]); a file only needs the values it
// changes. Command-line flags are applied on top of the loaded config by the
// CLI.
//
// Configuration sections by subsystem:
//   - Browser: Chrome launch or remote connection and tab lifetime
//   - Capture: receipt selector, capture backend and image settling
//   - Delivery: default mode, download directory and object URL timing
//   - Retry: attempt ceiling and backoff for capture and encode
//   - Server: HTTP bind address and the optional shared Redis store
//   - Log: log level
package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/receiptify/pkg/errors"
)

const appName = "receiptify"

// Browser configures the Chrome instance that hosts receipt pages.
type Browser struct {
	RemoteURL       string        `toml:"remote_url"`
	Bin             string        `toml:"bin"`
	Headful         bool          `toml:"headful"`
	NoSandbox       bool          `toml:"no_sandbox"`
	Stealth         bool          `toml:"stealth"`
	UserAgent       string        `toml:"user_agent"`
	RecycleInterval time.Duration `toml:"recycle_interval"`
	NavigateTimeout time.Duration `toml:"navigate_timeout"`
}

// Capture configures how the receipt element is rasterized.
type Capture struct {
	Selector      string        `toml:"selector"`
	Backend       string        `toml:"backend"` // clone or mutate
	Scheme        string        `toml:"scheme"`  // dark, light, or empty to detect
	SettleTimeout time.Duration `toml:"settle_timeout"`
}

// Delivery configures how the artifact reaches the user.
type Delivery struct {
	Mode        string        `toml:"mode"` // share or download
	DownloadDir string        `toml:"download_dir"`
	RevokeDelay time.Duration `toml:"revoke_delay"`
	ObjectTTL   time.Duration `toml:"object_ttl"`
}

// Retry bounds repeated capture and encode attempts.
type Retry struct {
	MaxAttempts int           `toml:"max_attempts"`
	Backoff     time.Duration `toml:"backoff"`
}

// Server configures the HTTP API.
type Server struct {
	Addr          string `toml:"addr"`
	RedisAddr     string `toml:"redis_addr"` // empty keeps object URLs in memory
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	ObjectDir     string `toml:"object_dir"` // file-backed object URLs; exclusive with redis_addr
}

// Log configures log output.
type Log struct {
	Level string `toml:"level"`
}

// Config encapsulates all configuration values for receiptify.
type Config struct {
	Browser  Browser  `toml:"browser"`
	Capture  Capture  `toml:"capture"`
	Delivery Delivery `toml:"delivery"`
	Retry    Retry    `toml:"retry"`
	Server   Server   `toml:"server"`
	Log      Log      `toml:"log"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Browser: Browser{
			RecycleInterval: 4 * time.Hour,
			NavigateTimeout: 30 * time.Second,
		},
		Capture: Capture{
			Selector:      "#receipt",
			Backend:       "clone",
			SettleTimeout: 10 * time.Second,
		},
		Delivery: Delivery{
			Mode:        "download",
			DownloadDir: ".",
			RevokeDelay: time.Second,
			ObjectTTL:   time.Minute,
		},
		Retry: Retry{
			MaxAttempts: 3,
			Backoff:     time.Second,
		},
		Server: Server{
			Addr: "127.0.0.1:8080",
		},
		Log: Log{
			Level: "info",
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/receiptify/config.toml, falling back
// to ~/.config/receiptify/config.toml.
func DefaultPath() (string, error) {
	if base := os.Getenv("XDG_CONFIG_HOME"); strings.TrimSpace(base) != "" {
		return filepath.Join(base, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// Load reads the config at path, or at DefaultPath when path is empty.
// A missing file is not an error: the defaults are returned and exists is
// false. The result is validated.
func Load(path string) (cfg *Config, resolved string, exists bool, err error) {
	c := Default()

	resolved = path
	if resolved == "" {
		if resolved, err = DefaultPath(); err != nil {
			return nil, "", false, err
		}
	}

	md, err := toml.DecodeFile(resolved, &c)
	switch {
	case err == nil:
		exists = true
	case stderrors.Is(err, fs.ErrNotExist):
	default:
		return nil, "", false, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse config %s", resolved)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, "", false, errors.New(errors.ErrCodeInvalidInput, "unknown config key %q in %s", undecoded[0].String(), resolved)
	}

	if err := c.Validate(); err != nil {
		return nil, "", false, err
	}
	return &c, resolved, exists, nil
}

// Write encodes c as TOML to path, creating parent directories.
func (c *Config) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		f.Close()
		return fmt.Errorf("encode config: %w", err)
	}
	return f.Close()
}

// String renders c as TOML.
func (c *Config) String() string {
	var b strings.Builder
	if err := toml.NewEncoder(&b).Encode(c); err != nil {
		return fmt.Sprintf("# encode config: %v\n", err)
	}
	return b.String()
}
