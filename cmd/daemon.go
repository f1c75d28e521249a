package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/btorch/btaudiod/internal/bluez"
	"github.com/btorch/btaudiod/internal/config"
	"github.com/btorch/btaudiod/internal/events"
	"github.com/btorch/btaudiod/internal/httpapi"
	"github.com/btorch/btaudiod/internal/mpdbridge"
	"github.com/btorch/btaudiod/internal/orchestrator"
	"github.com/btorch/btaudiod/internal/pulse"
	"github.com/btorch/btaudiod/internal/store"
	"github.com/charmbracelet/log"
	"github.com/coreos/go-systemd/v22/daemon"
)

// runDaemon wires every collaborator described in §4/§5/§9 and blocks until
// a shutdown signal or an unrecoverable startup error.
func runDaemon(cfg *config.Config) error {
	logger := newLogger(cfg.Values.LogLevel, cfg.Values.LogFormat)

	devicesPath, err := cfg.DevicesPath()
	if err != nil {
		return fmt.Errorf("resolve devices store path: %w", err)
	}
	settingsPath, err := cfg.SettingsPath()
	if err != nil {
		return fmt.Errorf("resolve settings store path: %w", err)
	}

	settings := store.NewSettingsStore(logger, settingsPath)
	if err := settings.Load(); err != nil {
		return fmt.Errorf("load settings store: %w", err)
	}
	devices := store.NewDeviceStore(logger, devicesPath)

	bus := events.NewBus(func(msg string, args ...interface{}) { logger.Warn(msg, args...) })

	session := bluez.NewSession(logger)
	puls := pulse.New(logger, "")
	bridge := mpdbridge.NewProcessBridge(logger)

	ctrl := orchestrator.New(logger, session, puls, devices, settings, bus, bridge, cfg.ConfigDir())

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	if err := session.Start(ctx); err != nil {
		return fmt.Errorf("start bluez session: %w", err)
	}
	defer session.Stop()

	if err := ctrl.Start(ctx); err != nil {
		return fmt.Errorf("controller startup reconciliation: %w", err)
	}
	defer ctrl.Stop()

	subscriber := pulse.NewSubscriber(logger, "", ctrl.OnPulseEvent)
	go subscriber.Run(ctx)

	watchPaths := []string{}
	if p, err := cfg.ConfigFilePath(); err == nil {
		watchPaths = append(watchPaths, p)
	}
	watchPaths = append(watchPaths, devicesPath, settingsPath)
	watcher, err := config.NewReloadWatcher(logger, watchPaths, func(path string) {
		logger.Info("configuration file changed on disk, restart required to apply", "path", path)
	})
	if err != nil {
		logger.Warn("config reload watcher unavailable", "error", err)
	} else {
		defer watcher.Close()
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	requestShutdown := func() { sigc <- syscall.SIGTERM }

	errc := make(chan error, 1)
	srv := httpapi.NewServer(ctrl, logger, cfg.Values.HTTPListen, requestShutdown)
	srv.Start(errc)

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logger.Debug("systemd notify failed", "error", err)
	} else if ok {
		logger.Debug("systemd notified ready")
	}

	select {
	case sig := <-sigc:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errc:
		logger.Error("http server failed", "error", err)
	case <-ctx.Done():
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown error", "error", err)
	}

	return nil
}

// newLogger builds the charmbracelet/log logger the whole daemon shares,
// honoring the configured level and format.
func newLogger(level, format string) *log.Logger {
	logger := log.New(os.Stderr)

	switch strings.ToLower(format) {
	case "json":
		logger.SetFormatter(log.JSONFormatter)
	default:
		logger.SetFormatter(log.TextFormatter)
	}

	parsed, err := log.ParseLevel(level)
	if err != nil {
		parsed = log.InfoLevel
	}
	logger.SetLevel(parsed)

	return logger
}
