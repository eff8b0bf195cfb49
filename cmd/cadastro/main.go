package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"cadastro/internal/cache"
	"cadastro/internal/cli"
	apphttp "cadastro/internal/http"
	applog "cadastro/internal/log"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.MustLoadConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentApp, nil)

	logger.Info("Starting cadastro",
		applog.FieldOperation, applog.OpStartup,
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"owner", cfg.OwnerName)

	ctx, stop := cli.SignalContext(context.Background(), logger)
	defer stop()

	res := cli.MustInitBackend(ctx, logger, cfg)

	caches := cache.NewManager()
	caches.Register(res.Views)
	caches.StartCleanup(cfg.CacheTTL)

	opts := apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		MaxUploadBytes:     cfg.MaxUploadBytes,
		Logger:             logger.WithComponent(applog.ComponentHTTP),
		Storage:            res.Store,
	}
	if res.BackupLog != nil {
		opts.Backups = res.BackupLog
	}
	srv := apphttp.NewServer(":"+cfg.Port, res.Records, opts)
	srv.MaxHeaderBytes = 1 << 16

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return cli.Shutdown(logger, 30*time.Second,
			srv.Shutdown,
			func(context.Context) error {
				caches.Stop()
				caches.Wait()
				return nil
			},
			func(context.Context) error { return res.Cleanup() },
		)
	})

	if err := g.Wait(); err != nil {
		logger.Error("cadastro stopped with error", applog.FieldError, err.Error())
		os.Exit(1)
	}
}
