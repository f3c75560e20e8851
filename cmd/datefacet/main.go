package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/pprof"
	"strings"

	// sets CI before anything queries the terminal
	_ "github.com/vanderheijden86/datefacet/internal/ttyguard"

	"github.com/vanderheijden86/datefacet/internal/datasource"
	"github.com/vanderheijden86/datefacet/internal/logging"
	"github.com/vanderheijden86/datefacet/pkg/config"
	"github.com/vanderheijden86/datefacet/pkg/loader"
	"github.com/vanderheijden86/datefacet/pkg/model"
	"github.com/vanderheijden86/datefacet/pkg/search"
	"github.com/vanderheijden86/datefacet/pkg/taginput"
	"github.com/vanderheijden86/datefacet/pkg/version"
)

type cliFlags struct {
	data       string
	db         string
	importFile string
	serve      bool
	addr       string
	render     string
	out        string
	baseURL    string
	snapshot   string
	terms      string
	from, to   string
	initConfig bool
	fetchURL   string
	configPath string
	version    bool
	help       bool
	cpuProfile string
}

func parseFlags(args []string, output io.Writer) (cliFlags, *flag.FlagSet, error) {
	var f cliFlags
	fs := flag.NewFlagSet("datefacet", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&f.data, "data", "", "Facet payload file (.json), document file (.jsonl) or store (.db)")
	fs.StringVar(&f.db, "db", "", "Document store path (default from config)")
	fs.StringVar(&f.importFile, "import", "", "Import documents from a JSONL file into the store")
	fs.BoolVar(&f.serve, "serve", false, "Serve the chart page and facet API")
	fs.StringVar(&f.addr, "addr", "", "Listen address for -serve")
	fs.StringVar(&f.render, "render", "", "Bootstrap the charts in an HTML file")
	fs.StringVar(&f.out, "o", "", "Output file for -render (default stdout)")
	fs.StringVar(&f.baseURL, "base-url", "", "Origin relative fetch URLs resolve against in -render")
	fs.StringVar(&f.snapshot, "snapshot", "", "Write the chart to an .svg or .png file")
	fs.StringVar(&f.terms, "terms", "", "Comma-separated terms to chart")
	fs.StringVar(&f.from, "from", "", "First year to include")
	fs.StringVar(&f.to, "to", "", "Last year to include")
	fs.BoolVar(&f.initConfig, "init", false, "Run the interactive configuration wizard")
	fs.StringVar(&f.fetchURL, "fetch-url", "", "Remote facet endpoint for new terms")
	fs.StringVar(&f.configPath, "config", "", "Config file (default "+config.ConfigPath()+")")
	fs.BoolVar(&f.version, "version", false, "Show version")
	fs.BoolVar(&f.help, "help", false, "Show help")
	fs.StringVar(&f.cpuProfile, "cpu-profile", "", "Write CPU profile to file")
	err := fs.Parse(args)
	return f, fs, err
}

// splitTerms splits a comma-separated list, dropping blanks.
func splitTerms(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// loadConfig reads the config file, .env and environment, then applies
// command-line overrides.
func loadConfig(f cliFlags) (config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return config.Config{}, err
	}
	var cfg config.Config
	var err error
	if f.configPath != "" {
		cfg, err = config.LoadFrom(f.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return config.Config{}, err
	}
	cfg.ApplyEnv()
	if f.db != "" {
		cfg.Server.DBPath = f.db
	}
	if f.addr != "" {
		cfg.Server.Addr = f.addr
	}
	if f.fetchURL != "" {
		cfg.Search.FetchURL = f.fetchURL
	}
	if f.data != "" {
		cfg.Server.DataFile = f.data
	}
	return cfg, cfg.Validate()
}

func main() {
	f, fs, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	if f.cpuProfile != "" {
		pf, err := os.Create(f.cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pf.Close()
		if err := pprof.StartCPUProfile(pf); err != nil {
			fmt.Fprintf(os.Stderr, "Could not start CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	if f.help {
		fmt.Println("Usage: datefacet [options]")
		fmt.Println("\nChart how often terms appear per year, relative to all documents.")
		fs.PrintDefaults()
		return
	}
	if f.version {
		fmt.Printf("datefacet %s\n", version.Version)
		return
	}

	if err := run(f); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		pprof.StopCPUProfile()
		os.Exit(1)
	}
}

func run(f cliFlags) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}

	if f.initConfig {
		path := f.configPath
		if path == "" {
			path = config.ConfigPath()
		}
		_, err := config.RunWizard(cfg, path)
		return err
	}

	tui := !f.serve && f.render == "" && f.snapshot == "" && f.importFile == ""
	var console io.Writer = os.Stderr
	logFile := cfg.Log.File
	if tui {
		// stderr belongs to the alt screen
		console = nil
	} else if !f.serve {
		logFile = ""
	}
	closer, err := logging.Setup(cfg.Log.Level, logFile, console)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx := context.Background()

	if f.importFile != "" {
		if err := importDocuments(ctx, cfg.Server.DBPath, f.importFile); err != nil {
			return err
		}
		if !f.serve && f.render == "" && f.snapshot == "" {
			return nil
		}
	}

	switch {
	case f.serve:
		return serve(cfg, f)
	case f.render != "":
		return renderPage(cfg, f)
	case f.snapshot != "":
		return writeSnapshot(ctx, cfg, f)
	default:
		return runTUI(ctx, cfg, f)
	}
}

func importDocuments(ctx context.Context, dbPath, file string) error {
	in, err := os.Open(file)
	if err != nil {
		return err
	}
	defer in.Close()

	store, err := datasource.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.ImportJSONL(ctx, in)
	if err != nil {
		return fmt.Errorf("import %s: %w", file, err)
	}
	fmt.Printf("Imported %d documents into %s\n", n, dbPath)
	return nil
}

// source is where a payload comes from: a payload file or the document
// store.
type source struct {
	file  string
	store *datasource.Store
	rng   datasource.YearRange
}

func (s source) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// payload returns the chart data for terms. A payload file holds a fixed
// facet set; terms only narrows it when given.
func (s source) payload(ctx context.Context, terms []string) (model.Payload, error) {
	if s.store != nil {
		return s.store.Payload(ctx, terms, s.rng)
	}
	p, err := loader.LoadPayload(s.file)
	if err != nil {
		return model.Payload{}, err
	}
	if len(terms) == 0 {
		return p, nil
	}
	keep := make(map[string]bool, len(terms))
	for _, t := range terms {
		keep[t] = true
	}
	facets := p.Facets[:0:0]
	for _, fc := range p.Facets {
		if keep[fc.Term] {
			facets = append(facets, fc)
		}
	}
	p.Facets = facets
	return p, nil
}

// openSource picks the data source: an explicit -data path classified by
// content, then a payload file in the working directory, then the store.
func openSource(ctx context.Context, cfg config.Config, f cliFlags) (source, error) {
	rng, err := datasource.ParseYearRange(f.from, f.to)
	if err != nil {
		return source{}, err
	}

	path := cfg.Server.DataFile
	if path == "" && f.db == "" {
		if found, err := loader.ResolveDataPath("", ""); err == nil {
			path = found
		}
	}
	if path == "" {
		store, err := datasource.Open(cfg.Server.DBPath)
		if err != nil {
			return source{}, err
		}
		return source{store: store, rng: rng}, nil
	}

	ds, err := datasource.DetectSource(path)
	if err != nil {
		return source{}, err
	}
	slog.Debug("data source", "source", ds.String())
	switch ds.Type {
	case datasource.SourceTypeSQLite:
		store, err := datasource.Open(ds.Path)
		if err != nil {
			return source{}, err
		}
		return source{store: store, rng: rng}, nil
	case datasource.SourceTypeJSONL:
		if err := importDocuments(ctx, cfg.Server.DBPath, ds.Path); err != nil {
			return source{}, err
		}
		store, err := datasource.Open(cfg.Server.DBPath)
		if err != nil {
			return source{}, err
		}
		return source{store: store, rng: rng}, nil
	default:
		abs, err := filepath.Abs(ds.Path)
		if err != nil {
			abs = ds.Path
		}
		return source{file: abs, rng: rng}, nil
	}
}

// storeFetcher answers term lookups from the local store.
type storeFetcher struct {
	store *datasource.Store
	rng   datasource.YearRange
}

func (s storeFetcher) Fetch(ctx context.Context, term string) ([]model.Facet, error) {
	f, err := s.store.Facet(ctx, term, s.rng)
	if err != nil {
		return nil, err
	}
	return []model.Facet{f}, nil
}

// newFetcher returns the remote client when a fetch URL is configured,
// otherwise the store when there is one.
func newFetcher(cfg config.Config, src source) (taginput.Fetcher, error) {
	if cfg.Search.FetchURL != "" {
		return search.NewClient(cfg.Search.FetchURL, cfg.Search.QueryParam, cfg.SearchOptions()...)
	}
	if src.store != nil {
		return storeFetcher{store: src.store, rng: src.rng}, nil
	}
	return nil, nil
}
