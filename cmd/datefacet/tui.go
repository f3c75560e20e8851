package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/datefacet/pkg/config"
	"github.com/vanderheijden86/datefacet/pkg/ui"
	"github.com/vanderheijden86/datefacet/pkg/watcher"
)

func runTUI(ctx context.Context, cfg config.Config, f cliFlags) error {
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
	fetcher, err := newFetcher(cfg, src)
	if err != nil {
		return err
	}

	opts := ui.Options{
		Title:       cfg.Server.Title,
		Tags:        cfg.TagOptions(),
		Chart:       chartOpts,
		Fetcher:     fetcher,
		SnapshotDir: filepath.Join(config.DataDir(), "snapshots"),
		Logger:      slog.Default(),
	}

	if src.file != "" {
		w, err := watcher.New(src.file,
			watcher.WithOnError(func(err error) {
				slog.Warn("watch error", "path", src.file, "error", err)
			}),
		)
		if err == nil {
			err = w.Start(ctx)
		}
		if err != nil {
			slog.Warn("live reload disabled", "path", src.file, "error", err)
		} else {
			defer w.Stop()
			opts.DataPath = src.file
			opts.Changes = w.Changed()
		}
	}

	m, err := ui.New(p, opts)
	if m.State() == nil {
		return err
	}
	if err != nil {
		slog.Warn("not every facet was drawn", "error", err)
	}
	if err := runTUIProgram(m); err != nil {
		return fmt.Errorf("running datefacet: %w", err)
	}
	return nil
}

func runTUIProgram(m ui.Model) error {
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	)

	runDone := make(chan struct{})
	defer close(runDone)

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}

		p.Quit()

		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}

		p.Kill()
	}()

	// DATEFACET_TUI_AUTOCLOSE_MS quits after the given delay; used by smoke tests.
	if v := os.Getenv("DATEFACET_TUI_AUTOCLOSE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			go func() {
				timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
				defer timer.Stop()
				select {
				case <-runDone:
					return
				case <-timer.C:
				}
				p.Quit()
			}()
		}
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted) {
		return nil
	}
	return err
}
