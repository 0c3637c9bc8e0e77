package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"OpportunityScanner/internal/api"
	"OpportunityScanner/internal/notifier"
	"OpportunityScanner/internal/scanner"
	"OpportunityScanner/internal/scheduler"
)

func newServeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run periodic scans with Telegram delivery and an HTTP endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runNow, _ := cmd.Flags().GetBool("run-now")
			return runServe(cmd.Context(), app, runNow)
		},
	}
	cmd.Flags().Bool("run-now", false, "Run one scan immediately on start")
	return cmd
}

func runServe(ctx context.Context, app *App, runNow bool) error {
	cfg := app.Config
	if err := cfg.ValidateServe(); err != nil {
		return err
	}
	logger := app.Logger

	sc, err := app.scanner(ctx, func(p scanner.Progress) {
		logger.Debug("scan progress", zap.Int("done", p.Done), zap.Int("total", p.Total), zap.String("ticker", p.Ticker))
	})
	if err != nil {
		return err
	}
	rec := app.recorder()

	var tn *notifier.TelegramNotifier
	var sender scheduler.Sender
	if cfg.Telegram.BotToken != "" {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, logger)
		sender = tn
	}

	sched := scheduler.NewScheduler(ctx, sc, sender, rec, scanner.Request{Mode: cfg.Schedule.Mode}, logger)
	if err := sched.Register(cfg.Schedule.ScanCron); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		logger.Info("telegram polling started")
	}

	if runNow {
		logger.Info("run-now enabled, executing scan")
		go sched.RunScheduledNow()
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.NewRouter(api.NewHandler(sched.Latest, logger), app.Registry),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
