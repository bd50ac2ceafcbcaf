package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// FileConfig mirrors config.toml.
type FileConfig struct {
	APIURL         string            `toml:"api_url"`
	SiteID         int64             `toml:"site_id"`
	VisitorID      string            `toml:"visitor_id"`
	AdminToken     string            `toml:"admin_token,omitempty"`
	DataDirectory  string            `toml:"data_directory"`
	WelcomeMessage string            `toml:"welcome_message"`
	AutosaveDelay  string            `toml:"autosave_delay"`
	Log            LogConfig         `toml:"log"`
	Keys           map[string]string `toml:"keys,omitempty"`
}

// Config is the resolved runtime configuration.
type Config struct {
	APIURL         string
	SiteID         int64
	VisitorID      string
	AdminToken     string
	DataDirectory  string
	WelcomeMessage string
	AutosaveDelay  time.Duration
	LogLevel       string
	LogFormat      string
	Keys           *KeyBindings

	// Path is the file the configuration was read from.
	Path string
}

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

const envPrefix = "WIKICHAT_"

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv(envPrefix + "API_URL"); v != "" {
		c.APIURL = v
	}
	if v := os.Getenv(envPrefix + "SITE_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %sSITE_ID %q: %w", envPrefix, v, err)
		}
		c.SiteID = id
	}
	if v := os.Getenv(envPrefix + "VISITOR_ID"); v != "" {
		c.VisitorID = v
	}
	if v := os.Getenv(envPrefix + "ADMIN_TOKEN"); v != "" {
		c.AdminToken = v
	}
	if v := os.Getenv(envPrefix + "DATA_DIR"); v != "" {
		c.DataDirectory = v
	}
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if CheckDebug() {
		c.LogLevel = "debug"
	}
	return nil
}

// CheckDebug reports whether WIKICHAT_DEBUG is set.
func CheckDebug() bool {
	debug := os.Getenv(envPrefix + "DEBUG")
	return debug == "true" || debug == "1"
}

func (c *Config) validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api_url %q must be an absolute http(s) URL", c.APIURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api_url %q must use http or https", c.APIURL)
	}
	if c.SiteID < 0 {
		return errors.New("site_id must not be negative")
	}
	if c.DataDirectory == "" {
		return errors.New("data_directory must not be empty")
	}
	return nil
}

// Load reads the configuration at path, or the default location when path
// is empty. A missing file is created from the template. A visitor id is
// minted and written back the first time one is needed.
func Load(path string) (*Config, error) {
	if path == "" {
		path = GetSettingsFilePath()
	}

	fc, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	if fc.VisitorID == "" {
		fc.VisitorID = uuid.New().String()
		if err := SaveFile(path, fc); err != nil {
			return nil, fmt.Errorf("failed to persist visitor id: %w", err)
		}
	}

	cfg, err := fromFile(fc)
	if err != nil {
		return nil, err
	}
	cfg.Path = path

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}

	dataDir := cfg.DataDir()
	if err := EnsureDataDirPermissions(dataDir); err != nil {
		return nil, fmt.Errorf("failed to set data directory permissions: %w", err)
	}

	return cfg, nil
}

func fromFile(fc *FileConfig) (*Config, error) {
	def := DefaultFileConfig()
	cfg := &Config{
		APIURL:         orDefault(fc.APIURL, def.APIURL),
		SiteID:         fc.SiteID,
		VisitorID:      fc.VisitorID,
		AdminToken:     fc.AdminToken,
		DataDirectory:  orDefault(fc.DataDirectory, def.DataDirectory),
		WelcomeMessage: fc.WelcomeMessage,
		LogLevel:       orDefault(fc.Log.Level, def.Log.Level),
		LogFormat:      orDefault(fc.Log.Format, def.Log.Format),
		Keys:           NewKeyBindings(fc.Keys),
	}

	delay := orDefault(fc.AutosaveDelay, def.AutosaveDelay)
	d, err := time.ParseDuration(delay)
	if err != nil {
		return nil, fmt.Errorf("invalid autosave_delay %q: %w", delay, err)
	}
	if d <= 0 {
		return nil, fmt.Errorf("autosave_delay must be positive, got %s", d)
	}
	cfg.AutosaveDelay = d

	return cfg, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
