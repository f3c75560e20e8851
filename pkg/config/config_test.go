package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vanderheijden86/datefacet/pkg/chart"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Chart.Width != 640 || cfg.Chart.Height != 300 {
		t.Errorf("expected 640x300, got %vx%v", cfg.Chart.Width, cfg.Chart.Height)
	}
	if cfg.Search.QueryParam != "q" {
		t.Errorf("expected query param q, got %q", cfg.Search.QueryParam)
	}
	if cfg.Tags.Delimiter != "," || cfg.Tags.MaxItems != 10 {
		t.Errorf("unexpected tag defaults: %+v", cfg.Tags)
	}
	if !strings.Contains(cfg.Tags.AddItemText, "${value}") {
		t.Errorf("add item text lacks placeholder: %q", cfg.Tags.AddItemText)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestXDGDirs(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(dir, "state"))

	if got := ConfigPath(); got != filepath.Join(dir, "config", "datefacet", "config.yaml") {
		t.Errorf("ConfigPath = %s", got)
	}
	if got := DataDir(); got != filepath.Join(dir, "data", "datefacet") {
		t.Errorf("DataDir = %s", got)
	}
	if got := StateDir(); got != filepath.Join(dir, "state", "datefacet") {
		t.Errorf("StateDir = %s", got)
	}
}

func TestLoadFrom_NonExistent(t *testing.T) {
	cfg, err := LoadFrom("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if cfg.Chart.Curve != "catmullrom" {
		t.Errorf("expected default config, got curve %q", cfg.Chart.Curve)
	}
}

func TestLoadFrom_ValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
chart:
  width: 900
  curve: monotone
  palette: ["#111111", "#222222", "#333333"]
search:
  fetch_url: https://example.org/facet.json
  timeout: 3s
tags:
  add_item_text: 'Add "${value}"'
  max_items: 3
server:
  db_path: ~/data/documents.db
  read_timeout: 5s
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Chart.Width != 900 || cfg.Chart.Height != 300 {
		t.Errorf("chart = %+v", cfg.Chart)
	}
	if cfg.Search.Timeout != 3*time.Second || cfg.Search.QueryParam != "q" {
		t.Errorf("search = %+v", cfg.Search)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("read timeout = %v", cfg.Server.ReadTimeout)
	}
	if strings.HasPrefix(cfg.Server.DBPath, "~") {
		t.Errorf("db path not expanded: %s", cfg.Server.DBPath)
	}
	if cfg.Tags.AddItem("tax") != `Add "tax"` {
		t.Errorf("AddItem = %q", cfg.Tags.AddItem("tax"))
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	opts, err := cfg.ChartOptions()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := opts.Curve.(chart.Monotone); !ok {
		t.Errorf("curve = %T", opts.Curve)
	}
	if len(opts.Colors) != 3 || opts.Dims.Width != 900 {
		t.Errorf("options = %+v", opts)
	}
	tags := cfg.TagOptions()
	if tags.FetchURL != "https://example.org/facet.json" || tags.MaxItems != 3 {
		t.Errorf("tag options = %+v", tags)
	}
}

func TestLoadFrom_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("chart: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestSaveTo_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Chart.Curve = "linear"
	cfg.Search.Timeout = 2 * time.Minute
	cfg.Server.DataFile = "/srv/facets.json"

	if err := SaveTo(cfg, path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}
	got, err := LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Chart.Curve != "linear" || got.Search.Timeout != 2*time.Minute || got.Server.DataFile != "/srv/facets.json" {
		t.Errorf("round trip lost values: %+v", got)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvAddr, ":9000")
	t.Setenv(EnvFetchURL, "/facet.json")
	t.Setenv(EnvQueryParam, "term")
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvWidth, "1024")

	cfg := DefaultConfig()
	cfg.ApplyEnv()
	if cfg.Server.Addr != ":9000" || cfg.Search.FetchURL != "/facet.json" {
		t.Errorf("server/search = %+v %+v", cfg.Server, cfg.Search)
	}
	if cfg.Log.Level != "warn" || cfg.Chart.Width != 1024 {
		t.Errorf("log/chart = %+v %+v", cfg.Log, cfg.Chart)
	}
	if cfg.TagOptions().QueryParam != "term" {
		t.Errorf("tag query param = %q", cfg.TagOptions().QueryParam)
	}

	t.Setenv(EnvWidth, "wide")
	cfg = DefaultConfig()
	cfg.ApplyEnv()
	if cfg.Chart.Width != 640 {
		t.Errorf("invalid width applied: %v", cfg.Chart.Width)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("DATEFACET_ADDR=:7000\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvAddr, "")
	os.Unsetenv(EnvAddr)

	if err := LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv(EnvAddr); got != ":7000" {
		t.Errorf("%s = %q", EnvAddr, got)
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Chart.Curve = "bezier"
	cfg.Chart.Palette = []string{"#fff", "blue"}
	cfg.Tags.MaxItems = 5
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, want := range []string{"bezier", `"blue"`, "max_items 5", "loud"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestWizardAnswers(t *testing.T) {
	cfg := DefaultConfig()
	a := answersFrom(cfg)
	if a.Width != "640" || a.Curve != "catmullrom" {
		t.Errorf("answers = %+v", a)
	}

	a.FetchURL = " https://example.org/facet.json "
	a.Width = "800"
	a.LogLevel = "warn"
	next, err := a.apply(cfg)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if next.Search.FetchURL != "https://example.org/facet.json" || next.Chart.Width != 800 || next.Log.Level != "warn" {
		t.Errorf("applied = %+v", next)
	}

	a.Width = "0"
	if _, err := a.apply(cfg); err == nil {
		t.Error("zero width accepted")
	}
	if validateFetchURL("ftp://example.org") == nil {
		t.Error("ftp scheme accepted")
	}
	if validateFetchURL("") != nil || validateFetchURL("/facet.json") != nil {
		t.Error("empty and relative URLs should be accepted")
	}
}
