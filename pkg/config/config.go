// Package config handles loading and saving datefacet configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/datefacet/config.yaml
//   - Data:    ~/.local/share/datefacet/ (document store)
//   - State:   ~/.local/state/datefacet/ (logs, snapshots)
//
// Values from a .env file and DATEFACET_* environment variables override
// the file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/datefacet/pkg/chart"
	"github.com/vanderheijden86/datefacet/pkg/palette"
	"github.com/vanderheijden86/datefacet/pkg/search"
	"github.com/vanderheijden86/datefacet/pkg/taginput"
)

const appName = "datefacet"

// Environment overrides.
const (
	EnvAddr       = "DATEFACET_ADDR"
	EnvDB         = "DATEFACET_DB"
	EnvFetchURL   = "DATEFACET_FETCH_URL"
	EnvQueryParam = "DATEFACET_QUERY_PARAM"
	EnvLogLevel   = "DATEFACET_LOG_LEVEL"
	EnvLogFile    = "DATEFACET_LOG_FILE"
	EnvWidth      = "DATEFACET_WIDTH"
)

// ChartConfig holds chart layout settings.
type ChartConfig struct {
	Width        float64  `yaml:"width,omitempty"`
	Height       float64  `yaml:"height,omitempty"`
	MarginTop    float64  `yaml:"margin_top,omitempty"`
	MarginRight  float64  `yaml:"margin_right,omitempty"`
	MarginBottom float64  `yaml:"margin_bottom,omitempty"`
	MarginLeft   float64  `yaml:"margin_left,omitempty"`
	Curve        string   `yaml:"curve,omitempty"`   // catmullrom, linear, monotone
	Palette      []string `yaml:"palette,omitempty"` // overrides Tableau10
}

// SearchConfig controls remote facet lookups.
type SearchConfig struct {
	FetchURL    string        `yaml:"fetch_url,omitempty"`
	QueryParam  string        `yaml:"query_param,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
	Concurrency int           `yaml:"concurrency,omitempty"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr,omitempty"`
	Title        string        `yaml:"title,omitempty"`
	DBPath       string        `yaml:"db_path,omitempty"`
	DataFile     string        `yaml:"data_file,omitempty"`
	ReadTimeout  time.Duration `yaml:"read_timeout,omitempty"`
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level,omitempty"` // debug, info, warn, error
	File  string `yaml:"file,omitempty"`
}

// Config is the top-level configuration.
type Config struct {
	Chart  ChartConfig      `yaml:"chart,omitempty"`
	Search SearchConfig     `yaml:"search,omitempty"`
	Tags   taginput.Options `yaml:"tags,omitempty"`
	Server ServerConfig     `yaml:"server,omitempty"`
	Log    LogConfig        `yaml:"log,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	dims := chart.DefaultDimensions()
	tags := taginput.DefaultOptions()
	tags.AddItemText = `Press Enter to add "` + taginput.ValuePlaceholder + `"`
	tags.LoadingText = "Loading..."
	tags.NoResultsText = "No results found"
	tags.NoChoicesText = "Type a search term"
	tags.ItemSelectText = "Press to select"
	tags.UniqueItemText = "Only unique values can be added"

	return Config{
		Chart: ChartConfig{
			Width:        dims.Width,
			Height:       dims.Height,
			MarginTop:    dims.MarginTop,
			MarginRight:  dims.MarginRight,
			MarginBottom: dims.MarginBottom,
			MarginLeft:   dims.MarginLeft,
			Curve:        "catmullrom",
		},
		Search: SearchConfig{
			QueryParam:  search.DefaultQueryParam,
			Timeout:     10 * time.Second,
			Concurrency: 4,
		},
		Tags: tags,
		Server: ServerConfig{
			Addr:         "127.0.0.1:8080",
			Title:        "Date facets",
			DBPath:       filepath.Join(DataDir(), "documents.db"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(StateDir(), "datefacet.log"),
		},
	}
}

// ConfigDir returns the XDG config directory.
func ConfigDir() string {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// DataDir returns the XDG data directory.
func DataDir() string {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// StateDir returns the XDG state directory.
func StateDir() string {
	return xdgDir("XDG_STATE_HOME", filepath.Join(".local", "state"))
}

func xdgDir(env, fallback string) string {
	if dir := os.Getenv(env); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, fallback, appName)
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	cfg.Server.DBPath = expandHome(cfg.Server.DBPath)
	cfg.Server.DataFile = expandHome(cfg.Server.DataFile)
	cfg.Log.File = expandHome(cfg.Log.File)
	return cfg, nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// LoadDotEnv loads .env files into the environment without overriding
// variables that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		slog.Debug("no .env file loaded", "candidates", files)
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("loading env file: %w", err)
	}
	return nil
}

// ApplyEnv overrides settings from DATEFACET_* variables.
func (c *Config) ApplyEnv() {
	c.Server.Addr = getEnvOrDefault(EnvAddr, c.Server.Addr)
	c.Server.DBPath = expandHome(getEnvOrDefault(EnvDB, c.Server.DBPath))
	c.Search.FetchURL = getEnvOrDefault(EnvFetchURL, c.Search.FetchURL)
	c.Search.QueryParam = getEnvOrDefault(EnvQueryParam, c.Search.QueryParam)
	c.Log.Level = getEnvOrDefault(EnvLogLevel, c.Log.Level)
	c.Log.File = expandHome(getEnvOrDefault(EnvLogFile, c.Log.File))
	c.Chart.Width = getEnvFloatOrDefault(EnvWidth, c.Chart.Width)
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if c.Chart.Width < 0 || c.Chart.Height < 0 {
		errs = append(errs, fmt.Errorf("chart: negative size %vx%v", c.Chart.Width, c.Chart.Height))
	}
	if _, err := chart.CurveByName(c.Chart.Curve); err != nil {
		errs = append(errs, fmt.Errorf("chart: %w", err))
	}
	for _, col := range c.Chart.Palette {
		if _, err := palette.ParseHex(col); err != nil {
			errs = append(errs, fmt.Errorf("chart palette: %w", err))
		}
	}
	if c.Search.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("search: negative concurrency %d", c.Search.Concurrency))
	}
	if c.Tags.MaxItems < 0 {
		errs = append(errs, fmt.Errorf("tags: negative max_items %d", c.Tags.MaxItems))
	}
	if n := len(c.Chart.Palette); n > 0 && c.Tags.MaxItems > n {
		errs = append(errs, fmt.Errorf("tags: max_items %d exceeds %d palette colours", c.Tags.MaxItems, n))
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log: unknown level %q", c.Log.Level))
	}
	return errors.Join(errs...)
}

// ChartOptions converts the chart section.
func (c Config) ChartOptions() (chart.Options, error) {
	curve, err := chart.CurveByName(c.Chart.Curve)
	if err != nil {
		return chart.Options{}, err
	}
	return chart.Options{
		Dims: chart.Dimensions{
			Width:        c.Chart.Width,
			Height:       c.Chart.Height,
			MarginTop:    c.Chart.MarginTop,
			MarginRight:  c.Chart.MarginRight,
			MarginBottom: c.Chart.MarginBottom,
			MarginLeft:   c.Chart.MarginLeft,
		}.WithDefaults(),
		Curve:  curve,
		Colors: c.Chart.Palette,
	}, nil
}

// TagOptions returns the tag input settings with the search section's
// fetch URL and query parameter filled in where the tags section has none.
func (c Config) TagOptions() taginput.Options {
	o := c.Tags
	if o.FetchURL == "" {
		o.FetchURL = c.Search.FetchURL
	}
	if o.QueryParam == "" || o.QueryParam == search.DefaultQueryParam {
		if c.Search.QueryParam != "" {
			o.QueryParam = c.Search.QueryParam
		}
	}
	if n := len(c.Chart.Palette); n > 0 && (o.MaxItems == 0 || o.MaxItems > n) {
		o.MaxItems = n
	}
	return o
}

// SearchOptions returns client options for the search section.
func (c Config) SearchOptions() []search.Option {
	var opts []search.Option
	if c.Search.Timeout > 0 {
		opts = append(opts, search.WithTimeout(c.Search.Timeout))
	}
	if c.Search.Concurrency > 0 {
		opts = append(opts, search.WithConcurrency(c.Search.Concurrency))
	}
	return opts
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvFloatOrDefault(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil && f > 0 {
			return f
		}
		slog.Warn("ignoring invalid env value", "key", key, "value", val)
	}
	return defaultVal
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
