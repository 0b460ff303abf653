// main is the entry point of the ID card validation portal.
//
// STARTUP SEQUENCE:
//  1. Load configuration from a YAML file (plus .env / env overrides)
//  2. Initialise the logger
//  3. Open the SQLite submission history
//  4. Build the validation service client, sessions and pages
//  5. Register all HTTP routes and start the server in a goroutine
//  6. Block until an OS signal (Ctrl+C / kill) arrives
//  7. Gracefully shut down: finish in-flight requests, then exit
//
// RUNNING THE SERVER:
//
//	go run ./cmd/idcard-portal --config=config/local.yaml
//
// or (with the environment variable):
//
//	CONFIG_PATH=config/local.yaml go run ./cmd/idcard-portal
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aanand-mishra/idcard-portal/internal/config"
	"github.com/aanand-mishra/idcard-portal/internal/history"
	"github.com/aanand-mishra/idcard-portal/internal/http/handlers/page"
	"github.com/aanand-mishra/idcard-portal/internal/http/router"
	"github.com/aanand-mishra/idcard-portal/internal/idcheck"
	"github.com/aanand-mishra/idcard-portal/internal/session"
	"github.com/aanand-mishra/idcard-portal/internal/storage/sqlite"
	"github.com/aanand-mishra/idcard-portal/internal/widget"
)

func main() {
	// ── 1. Load Config ────────────────────────────────────────────────────
	cfg := config.MustLoad()

	// ── 2. Initialise Logger ──────────────────────────────────────────────
	log := setupLogger(cfg.Env)
	slog.SetDefault(log)

	log.Info("starting idcard-portal",
		slog.String("env", cfg.Env),
		slog.String("variant", string(cfg.Validator.Variant)),
		slog.String("validator", cfg.Validator.BaseURL),
	)

	// ── 3. Initialise Storage (Database) ──────────────────────────────────
	store, err := sqlite.New(cfg.StoragePath)
	if err != nil {
		log.Error("failed to initialise storage",
			slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	log.Info("storage initialised",
		slog.String("path", cfg.StoragePath))

	// ── 4. Client, Sessions, Pages ────────────────────────────────────────
	client := idcheck.New(cfg.Validator.BaseURL, cfg.Validator.Variant)
	recorder := history.NewRecorder(store, client, log)

	sessions := session.NewStore(func() *widget.Widget {
		return widget.New(client, cfg.Validator.Variant,
			widget.WithLogger(log),
			widget.WithModel(cfg.Validator.DefaultModel),
			widget.WithOnSettle(recorder.OnSettle),
		)
	}, cfg.Session.TTL, cfg.Session.SecureCookie)

	pages, err := page.NewPages()
	if err != nil {
		log.Error("failed to parse templates", slog.String("error", err.Error()))
		os.Exit(1)
	}

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
	if err := client.Ping(pingCtx); err != nil {
		log.Warn("validation service not reachable yet", slog.String("error", err.Error()))
	}
	cancelPing()

	// ── 5. Routes + Server ────────────────────────────────────────────────
	handler := router.New(router.Deps{
		Log:          log,
		Client:       client,
		Store:        store,
		Sessions:     sessions,
		Pages:        pages,
		Variant:      cfg.Validator.Variant,
		DefaultModel: cfg.Validator.DefaultModel,
		MaxBytes:     cfg.Upload.MaxBytes,
		OnSettle:     recorder.OnSettle,
	})

	// WriteTimeout defaults to 0: a single-variant POST /submit waits for the
	// validation service, which has no deadline of its own.
	server := &http.Server{
		Addr:         cfg.HTTPServer.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go sessions.Run(sweepCtx, time.Minute)

	go func() {
		log.Info("server started", slog.String("address", cfg.HTTPServer.Addr))

		if err := server.ListenAndServe(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			log.Error("server encountered an error",
				slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// ── 6. Wait for Shutdown Signal ───────────────────────────────────────
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	<-done

	log.Info("shutdown signal received, stopping server...")

	// ── 7. Graceful Shutdown ──────────────────────────────────────────────
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("failed to shutdown server gracefully",
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("server stopped gracefully")
}

// setupLogger returns a *slog.Logger configured for the given environment.
//
// Development (dev): human-readable text output at DEBUG level.
// Production (prod): machine-readable JSON output at INFO level.
func setupLogger(env string) *slog.Logger {
	switch env {
	case "prod":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}),
		)
	case "staging":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			}),
		)
	default:
		return slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			}),
		)
	}
}
