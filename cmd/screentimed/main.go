/**
 * CONTEXT:   screentimed daemon entrypoint
 * INPUT:     --config flag and OS signals
 * OUTPUT:    Running tick loop plus loopback admin HTTP API until shutdown
 * BUSINESS:  Single daemon process is the only writer of enforcement state
 * RISK:      Medium - process entrypoint wiring every subsystem together
 */
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aaronsb/screentimed/internal/accountant"
	"github.com/aaronsb/screentimed/internal/admin"
	"github.com/aaronsb/screentimed/internal/config"
	"github.com/aaronsb/screentimed/internal/daemon"
	"github.com/aaronsb/screentimed/internal/kernel"
	"github.com/aaronsb/screentimed/internal/notify"
	"github.com/aaronsb/screentimed/internal/patterns"
	"github.com/aaronsb/screentimed/internal/router"
	"github.com/aaronsb/screentimed/internal/schedule"
	"github.com/aaronsb/screentimed/internal/store"
	"github.com/aaronsb/screentimed/internal/workers"
	"github.com/aaronsb/screentimed/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	listenAddr := flag.String("listen", "", "override admin HTTP listen address")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "screentimed: %v\n", err)
		os.Exit(4)
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}

	log := logger.New("daemon", logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputFile: cfg.Logging.OutputFile,
	})

	if err := run(cfg, log); err != nil {
		log.Fatal("fatal startup error", "error", err)
	}
}

func run(cfg *config.DaemonConfig, log logger.Logger) error {
	st, err := store.Open(store.Config{
		Path:            cfg.Daemon.DBPath,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, log.With("store"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	engine := patterns.New(st, log.With("patterns"), 3, 3600)
	oracle := schedule.New(st)
	account := accountant.New(st, log.With("accountant"), cfg.PollInterval())

	killer := kernel.NewProcessGroupKiller()
	kern := kernel.New(st, log.With("kernel"), kernel.Mode(cfg.Daemon.Mode), cfg.GracePeriod(),
		cfg.Daemon.ResetHour, cfg.Daemon.WarningThresholdsMin, killer)

	dispatcher := notify.NewDispatcher(log.With("notify"),
		notify.NewClippyBackend(nil, nil),
		notify.NewFreedesktopBackend(nil),
		notify.NewLogOnlyBackend(log.With("notify.log_only")),
	)
	rt := router.New(st, dispatcher, log.With("router"), router.VariantRandom)

	ws := []workers.Worker{
		workers.NewProcessWorker(cfg.Daemon.CPUThreshold, nil),
		workers.NewProtonWorker(),
		workers.NewChromeWorker(),
		workers.NewFirefoxWorker(),
	}

	loop := daemon.New(cfg, st, engine, oracle, account, kern, rt, ws, log.With("loop"))

	surface := admin.New(st)
	adminServer := admin.NewServer(surface, cfg.Database, log.With("admin"))
	httpServer := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      adminServer.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("admin HTTP API listening", "addr", cfg.Server.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	loopErrCh := make(chan error, 1)
	go func() {
		loopErrCh <- loop.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		log.Warn("admin HTTP server failed", "error", err)
		stop()
	case err := <-loopErrCh:
		if err != nil {
			log.Warn("daemon loop exited with error", "error", err)
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("admin HTTP server shutdown error", "error", err)
	}

	select {
	case <-loopErrCh:
	case <-time.After(cfg.Server.ShutdownTimeout):
		log.Warn("daemon loop did not exit before shutdown timeout")
	}

	return nil
}
