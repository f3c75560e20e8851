package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/vanderheijden86/datefacet/internal/server"
	"github.com/vanderheijden86/datefacet/pkg/config"
)

func serve(cfg config.Config, f cliFlags) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src, err := openSource(ctx, cfg, f)
	if err != nil {
		return err
	}
	defer src.Close()

	chartOpts, err := cfg.ChartOptions()
	if err != nil {
		return err
	}
	broker := server.NewBroker()

	var svc server.Service
	if src.store != nil {
		svc = server.StoreService{Store: src.store}
	} else {
		fileSvc, err := server.NewFileService(src.file)
		if err != nil {
			return err
		}
		w, err := server.WatchFile(ctx, fileSvc, broker)
		if err != nil {
			slog.Warn("live reload disabled", "path", src.file, "error", err)
		} else {
			defer w.Stop()
		}
		svc = fileSvc
	}

	h := server.NewServer(svc, broker, server.Options{
		Title: cfg.Server.Title,
		Chart: chartOpts,
		Tags:  cfg.TagOptions(),
	})
	addr := cfg.Server.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("datefacet listening", "addr", addr, "url", "http://"+addr+"/")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			slog.Error("hint: kill the process holding the port with: lsof -ti:" + addr[strings.LastIndex(addr, ":")+1:] + " | xargs kill -9")
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-serverErr:
		runErr = fmt.Errorf("serve %s: %w", addr, err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
	}
	if runErr == nil {
		fmt.Fprintln(os.Stderr, "datefacet stopped")
	}
	return runErr
}
