package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"cadastro/internal/amqp"
	"cadastro/internal/backup"
	"cadastro/internal/cli"
	applog "cadastro/internal/log"
	"cadastro/internal/sheets"
	gsheet "cadastro/internal/sheets/google"
	"cadastro/internal/storage"
	"cadastro/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.MustLoadConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentWorker, nil)

	logger.Info("Starting cadastro-worker",
		applog.FieldOperation, applog.OpStartup,
		"backup_dir", cfg.BackupDir,
		"schedule", cfg.BackupSchedule,
		"retention", cfg.BackupRetention)

	// The worker reads the same database file the HTTP service writes.
	if cfg.DataBackend != "sqlite" {
		logger.Error("cadastro-worker requires the sqlite backend", "backend", cfg.DataBackend)
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext(context.Background(), logger)
	defer stop()

	store, err := storage.NewSQLiteStore(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite store", applog.FieldError, err.Error(), "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}

	var exporter sheets.ReportExporter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err.Error())
			os.Exit(1)
		}
		exporter = client
		logger.WithComponent(applog.ComponentSheets).Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	} else {
		logger.WithComponent(applog.ComponentSheets).Info("Google Sheets disabled, no GOOGLE_SPREADSHEET_ID provided")
	}

	backups := worker.NewBackupWorker(store, store, exporter, worker.Config{
		Dir:        cfg.BackupDir,
		StorageKey: cfg.StorageKey,
		Owner:      cfg.OwnerName,
		Retention:  cfg.BackupRetention,
	})

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err.Error())
			os.Exit(1)
		}
	} else {
		logger.WithComponent(applog.ComponentAMQP).Warn("AMQP_URL not set, only scheduled backups will run")
	}

	var scheduler *worker.Scheduler
	if cfg.BackupSchedule != "" {
		scheduler, err = worker.NewScheduler(cfg.BackupSchedule, func(ctx context.Context) error {
			_, err := backups.Snapshot(ctx, "scheduled")
			if errors.Is(err, backup.ErrEmptyDataset) {
				return nil
			}
			return err
		})
		if err != nil {
			logger.Error("Invalid backup schedule", applog.FieldError, err.Error())
			os.Exit(1)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if amqpClient != nil {
		g.Go(func() error {
			err := amqpClient.ConsumeDatasetChanged(gctx, backups.HandleDatasetChanged)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("consume dataset changes: %w", err)
			}
			return nil
		})
	}
	if scheduler != nil {
		if err := scheduler.Start(gctx); err != nil {
			logger.Error("Failed to start scheduler", applog.FieldError, err.Error())
			os.Exit(1)
		}
	}
	g.Go(func() error {
		<-gctx.Done()
		return cli.Shutdown(logger, 30*time.Second,
			func(ctx context.Context) error {
				if scheduler == nil {
					return nil
				}
				return scheduler.Stop(ctx)
			},
			func(context.Context) error {
				if amqpClient == nil {
					return nil
				}
				return amqpClient.Close()
			},
			func(context.Context) error { return store.Close() },
		)
	})

	if err := g.Wait(); err != nil {
		logger.Error("cadastro-worker stopped with error", applog.FieldError, err.Error())
		os.Exit(1)
	}
}
