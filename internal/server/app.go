// Package server wires the bank server together: it loads the ledger from
// the configured snapshot store, serves the line protocol and the health
// endpoint, runs interest accrual, and saves a final snapshot on shutdown.
package server

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/gophbank/internal/logging"
	"github.com/dmitrijs2005/gophbank/internal/server/activity"
	"github.com/dmitrijs2005/gophbank/internal/server/config"
	"github.com/dmitrijs2005/gophbank/internal/server/interest"
	"github.com/dmitrijs2005/gophbank/internal/server/ledger"
	"github.com/dmitrijs2005/gophbank/internal/server/persistence"
	"github.com/dmitrijs2005/gophbank/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophbank/internal/server/sessions"
	"github.com/dmitrijs2005/gophbank/internal/server/tcp"

	gs "github.com/dmitrijs2005/gophbank/internal/server/grpc"
)

type App struct {
	config *config.Config
	logger logging.Logger
}

// NewApp builds the application logger; everything else is created in Run.
func NewApp(c *config.Config, out io.Writer) (*App, error) {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	return &App{config: c, logger: logging.NewJSONLogger(out, level)}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) openRecorder(ctx context.Context) (*activity.Recorder, func() error) {
	if app.config.ActivityLogPath == "" {
		return activity.NewRecorder(app.logger.With("module", "activity")), func() error { return nil }
	}
	r, closeFn, err := activity.Open(app.config.ActivityLogPath)
	if err != nil {
		app.logger.Warn(ctx, "Activity log unavailable, using main log", "error", err.Error())
		return activity.NewRecorder(app.logger.With("module", "activity")), func() error { return nil }
	}
	return r, closeFn
}

// Run serves until ctx is cancelled or a termination signal arrives, then
// shuts down in order: stop accepting, drain or close connections, stop the
// scheduler, save the final snapshot, stop the health endpoint.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	recorder, closeRecorder := app.openRecorder(ctx)
	defer func() {
		if err := closeRecorder(); err != nil {
			app.logger.Warn(context.Background(), "Error closing activity log", "error", err.Error())
		}
	}()

	rm, err := repomanager.Open(ctx, app.config)
	if err != nil {
		return err
	}
	defer func() {
		if err := rm.Close(); err != nil {
			app.logger.Warn(context.Background(), "Error closing snapshot store", "error", err.Error())
		}
	}()

	pm := persistence.NewManager(rm.Snapshots(), app.logger)
	l := pm.Load(ctx, ledger.WithHashConcurrency(app.config.HashConcurrency))
	registry := sessions.NewRegistry()

	handler := tcp.NewHandler(l, registry, pm, recorder, app.logger)
	srv := tcp.NewServer(app.config.ListenAddr, app.config.ShutdownGracePeriod, handler, app.logger)

	// the health endpoint outlives the listener so probes see NOT_SERVING
	healthCtx, stopHealth := context.WithCancel(context.Background())
	defer stopHealth()
	var health *gs.HealthServer
	var healthWG sync.WaitGroup
	if app.config.HealthAddr != "" {
		health = gs.NewHealthServer(app.config.HealthAddr, app.logger)
		healthWG.Add(1)
		go func() {
			defer healthWG.Done()
			if err := health.Run(healthCtx); err != nil {
				app.logger.Error(ctx, "Health server failed", "error", err.Error())
			}
		}()
	}

	if err := srv.Start(ctx); err != nil {
		stopHealth()
		healthWG.Wait()
		return fmt.Errorf("listen %s: %w", app.config.ListenAddr, err)
	}
	if health != nil {
		health.SetServing(true)
	}

	scheduler := interest.NewScheduler(l, pm, recorder, app.logger, app.config.InterestRate, app.config.InterestPeriod)
	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		scheduler.Run(ctx)
	}()

	<-ctx.Done()

	shutdownCtx := context.Background()
	app.logger.Info(shutdownCtx, "Shutting down...")
	if health != nil {
		health.SetServing(false)
	}

	srv.Stop()
	if n := registry.Len(); n > 0 {
		app.logger.Warn(shutdownCtx, "Sessions still registered after connections closed", "sessions", n)
	}
	<-schedulerDone

	if err := pm.Save(shutdownCtx, l); err != nil {
		app.logger.Error(shutdownCtx, "Final snapshot not saved", "error", err.Error())
	} else {
		app.logger.Info(shutdownCtx, "Final snapshot saved", "accounts", l.Len())
	}

	stopHealth()
	healthWG.Wait()

	app.logger.Info(shutdownCtx, "Shutdown complete")
	return nil
}
