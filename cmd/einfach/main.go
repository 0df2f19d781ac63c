package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/1fach/einfach-budget/internal/amqp"
	"github.com/1fach/einfach-budget/internal/cli"
	apphttp "github.com/1fach/einfach-budget/internal/http"
	"github.com/1fach/einfach-budget/internal/log"
	"github.com/1fach/einfach-budget/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger().WithComponent(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)

	// Events are optional. Without a broker the API still works; the
	// spreadsheet mirror just never hears about changes.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to connect to AMQP broker, events disabled", log.FieldError, err)
			amqpClient = nil
		}
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	budgets := services.NewBudgetService(repo, amqpClient)

	srv := apphttp.NewServer(":"+cfg.Port, budgets)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := budgets.Close(); err != nil {
			logger.Error("Service close error", log.FieldError, err)
		}
	})

	logger.Info("Starting einfach server", log.FieldOperation, log.OpStartup, "port", cfg.Port, "db", cfg.SQLiteDBPath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
