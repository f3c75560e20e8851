package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/vanderheijden86/datefacet/pkg/chart"
	"github.com/vanderheijden86/datefacet/pkg/config"
	"github.com/vanderheijden86/datefacet/pkg/export"
	"github.com/vanderheijden86/datefacet/pkg/page"
	"github.com/vanderheijden86/datefacet/pkg/search"
	"github.com/vanderheijden86/datefacet/pkg/taginput"
)

// renderPage bootstraps every chart container in the input document and
// writes the rendered HTML.
func renderPage(cfg config.Config, f cliFlags) error {
	in, err := os.Open(f.render)
	if err != nil {
		return err
	}
	defer in.Close()

	doc, err := page.Parse(in)
	if err != nil {
		return err
	}
	chartOpts, err := cfg.ChartOptions()
	if err != nil {
		return err
	}

	searchOpts := cfg.SearchOptions()
	if f.baseURL != "" {
		searchOpts = append(searchOpts, search.WithBaseURL(f.baseURL))
	}
	widgets, err := doc.Bootstrap(page.BootstrapOptions{
		Dims:   chartOpts.Dims,
		Curve:  chartOpts.Curve,
		Colors: chartOpts.Colors,
		NewFetcher: func(o taginput.Options) taginput.Fetcher {
			if o.FetchURL == "" {
				return nil
			}
			c, err := search.NewClient(o.FetchURL, o.QueryParam, searchOpts...)
			if err != nil {
				slog.Warn("fetching disabled", "fetch_url", o.FetchURL, "error", err)
				return nil
			}
			return c
		},
		Logger: slog.Default(),
	})
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if f.out != "" {
		out, err := os.Create(f.out)
		if err != nil {
			return err
		}
		defer out.Close()
		w = out
	}
	if err := doc.Render(w, widgets); err != nil {
		return fmt.Errorf("render %s: %w", f.render, err)
	}
	return nil
}

// writeSnapshot draws the chart for -terms and saves it as SVG or PNG.
func writeSnapshot(ctx context.Context, cfg config.Config, f cliFlags) error {
	src, err := openSource(ctx, cfg, f)
	if err != nil {
		return err
	}
	defer src.Close()

	p, err := src.payload(ctx, splitTerms(f.terms))
	if err != nil {
		return err
	}
	chartOpts, err := cfg.ChartOptions()
	if err != nil {
		return err
	}
	state, err := chart.NewState(p, chartOpts)
	if state == nil {
		return err
	}
	if err != nil {
		slog.Warn("not every facet was drawn", "error", err)
	}

	path, err := export.SaveSnapshot(export.SnapshotOptions{Path: f.snapshot, Scene: state.Scene()})
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}
