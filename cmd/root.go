// Package cmd holds the rover-bridge command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"rover-bridge/config"
	"rover-bridge/handlers"
	"rover-bridge/logging"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

// flags override values loaded from the environment.
type flags struct {
	mode      string
	httpAddr  string
	adminAddr string
	statePath string
	logLevel  string
}

func (f *flags) register(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&f.mode, "mode", "", "deployment mode: local, device or relay (env MODE)")
	cmd.PersistentFlags().StringVar(&f.httpAddr, "addr", "", "public API listen address (env HTTP_ADDR)")
	cmd.PersistentFlags().StringVar(&f.adminAddr, "admin-addr", "", "health and metrics listen address (env ADMIN_ADDR)")
	cmd.PersistentFlags().StringVar(&f.statePath, "state", "", "state file path (env STATE_PATH)")
	cmd.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error (env LOG_LEVEL)")
}

// load reads the environment and applies any flags that were set.
func (f *flags) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if f.mode != "" {
		cfg.Mode = config.Mode(strings.ToLower(f.mode))
	}
	if f.httpAddr != "" {
		cfg.HTTPAddr = f.httpAddr
	}
	if f.adminAddr != "" {
		cfg.AdminAddr = f.adminAddr
	}
	if f.statePath != "" {
		cfg.StatePath = f.statePath
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, logging.NewLogger(cfg.LogLevel), nil
}

// NewRootCommand builds the rover-bridge command tree.
func NewRootCommand() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:   "rover-bridge",
		Short: "Remote control coordinator for a two-motor rover",
		Long: `rover-bridge accepts directional control intents over HTTP and MQTT, keeps
one authoritative control state, and either drives the motors directly,
records the state, or relays it to the on-device service.`,
		SilenceUsage: true,
	}
	f.register(root)
	root.AddCommand(newServeCommand(f), newFollowCommand(f))
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// serveHTTP runs srv until ctx is done, then shuts it down gracefully.
func serveHTTP(ctx context.Context, srv *http.Server, name string, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "server", name, "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("%s server failed: %w", name, err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...", "server", name)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s server shutdown: %w", name, err)
	}
	return nil
}

func adminServer(cfg *config.Config, checks map[string]handlers.HealthCheck, logger *slog.Logger) *http.Server {
	return handlers.NewHTTPServer(cfg.AdminAddr, handlers.NewAdminRouter(checks, logger))
}
