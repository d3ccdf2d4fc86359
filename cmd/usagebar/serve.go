package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ternarybob/usagebar/internal/app"
	"github.com/ternarybob/usagebar/internal/common"
	"github.com/ternarybob/usagebar/internal/server"
)

var (
	serverPort int
	serverHost string
)

var serveCmd = &cobra.Command{
	Use:         "serve",
	Short:       "Poll usage in the background and serve it over HTTP",
	Long:        `Starts the scheduled usage monitor and the local HTTP API that tray or menu bar front ends read from.`,
	Annotations: map[string]string{consoleLogs: "true"},
	RunE:        runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "Server port (overrides config)")
	serveCmd.Flags().StringVar(&serverHost, "host", "", "Server host (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	common.ApplyFlagOverrides(config, serverPort, serverHost)
	common.PrintBanner(common.GetVersion())

	logger.Info().
		Int("port", config.Server.Port).
		Str("host", config.Server.Host).
		Str("schedule", config.Scheduler.Interval).
		Str("environment", config.Environment).
		Str("log_file", common.GetLogFilePath(logger)).
		Msg("Starting Usagebar server")

	application, err := app.New(config, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	if config.Browser.ProbeOnStartup {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := application.FetcherService.Probe(ctx)
		cancel()
		if err != nil {
			return err
		}
	}

	if err := application.MonitorService.Start(); err != nil {
		return fmt.Errorf("failed to start monitor: %w", err)
	}

	srv := server.New(application)
	serverErr := make(chan error, 1)
	common.SafeGo(logger, "http-server", func() {
		serverErr <- srv.Start()
	})

	logger.Info().
		Str("url", fmt.Sprintf("http://%s", srv.Addr())).
		Msg("Server ready - Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-sigChan:
		logger.Info().Msg("Interrupt signal received")
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}

	logger.Info().
		Int64("background_goroutines", common.GetGoroutineCount()).
		Msg("Server stopped")
	return nil
}
