package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rover-bridge/actuation"
	"rover-bridge/config"
	"rover-bridge/handlers"
	"rover-bridge/state"
	"rover-bridge/watcher"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newFollowCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "follow",
		Short: "Drive the motors from a state file written by a local-mode instance",
		Long: "Drive the motors from a state file written by a local-mode instance.\n" +
			"Commands without a duration stop after DEFAULT_DURATION seconds.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := f.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runFollow(ctx, cfg, logger)
		},
	}
}

func runFollow(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	act, release, err := openActuator(cfg, logger)
	if err != nil {
		return err
	}
	defer release()

	follower := watcher.NewFollower(cfg.StatePath, seconds(cfg.DefaultDuration), logger)
	scheduler := actuation.New(act, follower.CurrentID, logger)
	defer scheduler.Close()
	follower.SetDispatcher(scheduler)

	checks := map[string]handlers.HealthCheck{
		"state_file": func(context.Context) error {
			if _, err := state.ReadFile(cfg.StatePath); err != nil {
				return fmt.Errorf("state file unreadable: %w", err)
			}
			return nil
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return follower.Run(gctx) })
	g.Go(func() error { return serveHTTP(gctx, adminServer(cfg, checks, logger), "admin", logger) })
	return g.Wait()
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
