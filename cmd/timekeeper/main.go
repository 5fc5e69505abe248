package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	msql "timekeeper/internal/adapter/mysql"
	"timekeeper/internal/api"
	"timekeeper/internal/auth"
	"timekeeper/internal/config"
	"timekeeper/internal/migrate"
	"timekeeper/internal/usecase"
)

func main() {
	// Flags
	addr := flag.String("addr", "", "Listen address (overrides TIMEKEEPER_HTTP_ADDR)")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	flag.Parse()

	// Logger
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if *addr != "" {
		cfg.HTTPAddr = *addr
	}

	// Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Run migrations before opening the store for use
	if err := migrate.Run(ctx, cfg.MySQLDSN, logger); err != nil {
		logger.Error("migrations failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	store, err := msql.NewStore(ctx, cfg.MySQLDSN, logger)
	if err != nil {
		logger.Error("failed to open mysql store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	router := api.New(api.Deps{
		Log:      logger,
		Verifier: auth.NewVerifier([]byte(cfg.AuthSecret)),
		Timers:   &usecase.TimerService{Log: logger, Entries: store, Items: store},
		Items:    &usecase.ItemService{Log: logger, Items: store},
		Health:   store,
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", slog.String("error", err.Error()))
	}
}
