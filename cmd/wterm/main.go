package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/codefionn/wterm/internal/config"
	"github.com/codefionn/wterm/internal/logger"
	"github.com/codefionn/wterm/internal/session"
	"github.com/codefionn/wterm/internal/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = pflag.String("config", "config.json", "path to the config file")
		port       = pflag.Int("port", 0, "listen port (overrides the config file)")
		shell      = pflag.String("shell", "", "shell to spawn per session (overrides $SHELL)")
		logLevel   = pflag.String("log-level", "info", "log level (debug, info, warn, error, none)")
		logPath    = pflag.String("log-file", "", "log file path (default stderr)")
	)
	pflag.Parse()

	if err := logger.Init(logger.ParseLevel(*logLevel), *logPath); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}

	store, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg := store.Get()
	if cfg.DebugLog {
		logger.Global().SetLevel(logger.LevelDebug)
	}

	listenPort := cfg.Port
	if *port != 0 {
		listenPort = *port
	}

	shellCmd := cfg.Shell
	if *shell != "" {
		shellCmd = *shell
	}

	manager := session.NewManager(session.Options{
		APIBaseURL:     fmt.Sprintf("http://localhost:%d", listenPort),
		Shell:          shellCmd,
		BufferSize:     cfg.BufferSize,
		MaxHistory:     cfg.MaxHistorySize,
		EnterDelay:     time.Duration(cfg.EnterDelayMs) * time.Millisecond,
		CommandDelay:   time.Duration(cfg.CommandDelayMs) * time.Millisecond,
		ResponseSettle: time.Duration(cfg.ResponseSettleMs) * time.Millisecond,
	})

	server := web.NewServer(listenPort, store, manager)

	// Pick up external edits to the config file while running.
	stopWatch, err := store.Watch(func() {
		logger.Info("Config file changed, reloaded")
	})
	if err != nil {
		logger.Warn("Config watcher unavailable: %v", err)
	} else {
		defer stopWatch()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		manager.Shutdown()
		return err
	case sig := <-sigCh:
		logger.Info("Received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		logger.Warn("Server shutdown: %v", err)
	}
	manager.Shutdown()
	return nil
}
