package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"rover-bridge/actuation"
	"rover-bridge/command"
	"rover-bridge/config"
	"rover-bridge/database"
	"rover-bridge/handlers"
	"rover-bridge/mqtt"
	"rover-bridge/redis"
	"rover-bridge/repositories/interfaces"
	"rover-bridge/services"
	"rover-bridge/state"
	"rover-bridge/transport"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the control API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := f.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, logger)
		},
	}
}

// cleanup runs registered close functions in reverse order.
type cleanup []func()

func (c *cleanup) add(fn func()) { *c = append(*c, fn) }

func (c cleanup) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger = logger.With("mode", string(cfg.Mode))
	var closers cleanup
	defer closers.run()

	opts := command.Options{
		Timed:           cfg.Timed(),
		DefaultSpeed:    cfg.DefaultSpeed,
		DefaultDuration: cfg.DefaultDuration,
	}
	checks := map[string]handlers.HealthCheck{}

	// Persistence
	file := state.NewFilePersister(cfg.StatePath)
	persisters := state.Chain{file}
	var mirror *redis.StateMirror
	if cfg.StateRedisMirror {
		var err error
		if mirror, err = redis.NewStateMirror(ctx, cfg, logger); err != nil {
			return err
		}
		closers.add(func() { mirror.Close() })
		persisters = append(persisters, mirror)
	}
	store := state.NewStore(persisters, state.Initial(opts))
	if mirror != nil {
		checks["redis"] = func(ctx context.Context) error {
			return mirror.Fresh(ctx, store.CurrentID())
		}
	}
	logger.Info("Control state ready", "state_path", file.Path())

	var journal interfaces.CommandRepositoryInterface
	if cfg.JournalEnabled {
		db, err := database.NewDatabase(cfg, logger)
		if err != nil {
			return err
		}
		closers.add(func() { db.Close() })
		journal = db.CommandRepo
		checks["database"] = db.Ping
	}

	var mqttClient *mqtt.Client
	if cfg.MQTTEnabled {
		client, err := mqtt.NewClient(cfg, mqtt.Options{
			Announce: cfg.Mode != config.ModeRelay,
			Timeout:  cfg.RelayTimeout,
		}, logger)
		if err != nil {
			return err
		}
		closers.add(client.Disconnect)
		mqttClient = client
		checks["mqtt"] = func(context.Context) error {
			if !client.IsConnected() {
				return fmt.Errorf("not connected to %s", cfg.MQTTBroker)
			}
			return nil
		}
	}

	deps := services.Deps{
		Store:        store,
		RelayTimeout: cfg.RelayTimeout,
		Journal:      journal,
		Logger:       logger,
	}

	switch cfg.Mode {
	case config.ModeDevice:
		act, release, err := openActuator(cfg, logger)
		if err != nil {
			return err
		}
		closers.add(func() { release() })
		scheduler := actuation.New(act, store.CurrentID, logger)
		closers.add(func() { scheduler.Close() })
		deps.Scheduler = scheduler
		deps.Info.Driver = cfg.MotorDriver
		deps.Info.PWMFreq = cfg.PWMFreq
	case config.ModeRelay:
		relay, err := newRelay(cfg, mqttClient, logger)
		if err != nil {
			return err
		}
		closers.add(func() { relay.Close() })
		deps.Relay = relay
		deps.Info.Transport = string(relay.Type())
		if relay.Type() == transport.TransportTypeHTTP {
			deps.Info.RobotBaseURL = cfg.RobotBaseURL
		}
	}

	if mqttClient != nil && cfg.Mode != config.ModeRelay {
		deps.Publisher = mqtt.NewStatePublisher(mqttClient, mqttClient.Topics())
	}

	controlService := services.NewControlService(cfg.Mode, opts, deps)

	g, gctx := errgroup.WithContext(ctx)

	if mqttClient != nil && cfg.Mode != config.ModeRelay {
		listener := mqtt.NewListener(mqttClient, mqttClient.Topics(), controlService, logger)
		if err := listener.Start(gctx); err != nil {
			return fmt.Errorf("failed to start MQTT listener: %w", err)
		}
	}

	e := handlers.NewEcho(logger)
	handlers.NewControlHandler(controlService).Register(e)

	g.Go(func() error {
		return serveHTTP(gctx, handlers.NewHTTPServer(cfg.HTTPAddr, e), "api", logger)
	})
	g.Go(func() error {
		return serveHTTP(gctx, adminServer(cfg, checks, logger), "admin", logger)
	})

	err := g.Wait()
	logger.Info("Server stopped")
	return err
}

func newRelay(cfg *config.Config, client *mqtt.Client, logger *slog.Logger) (transport.Relay, error) {
	if transport.TransportType(cfg.RelayTransport) == transport.TransportTypeMQTT {
		if client == nil {
			return nil, fmt.Errorf("relay transport mqtt requires MQTT_ENABLED=true")
		}
		return transport.NewMQTTRelay(client, client.Topics(), logger)
	}
	return transport.NewHTTPRelay(cfg.RobotBaseURL, cfg.RelayTimeout, logger), nil
}
