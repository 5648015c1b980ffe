package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"rover-bridge/command"
	"rover-bridge/config"
	"rover-bridge/metrics"
	"rover-bridge/models"
	"rover-bridge/repositories/interfaces"
	"rover-bridge/state"
	"rover-bridge/transport"
	"rover-bridge/utils"
)

// Response messages for each mode.
const (
	MessageUpdated      = "Updated"
	MessageDriving      = "Updated & driving"
	MessageForwarded    = "Updated & forwarded"
	MessageStopped      = "stopped"
	historyMaxLimit     = 500
	historyDefaultLimit = 50
)

// Dispatcher hands an accepted command to the motors without blocking.
type Dispatcher interface {
	Dispatch(id uint64, left, right float64, duration time.Duration)
}

// Publisher announces each new snapshot.
type Publisher interface {
	Publish(ctx context.Context, snap state.Snapshot) error
}

// Forwarded reports the outcome of relaying a command to the robot host.
type Forwarded struct {
	OK         bool            `json:"ok"`
	RobotReply json.RawMessage `json:"robot_reply,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// Result is the body returned by set and stop.
type Result struct {
	Message   string         `json:"message"`
	State     state.Snapshot `json:"state"`
	Forwarded *Forwarded     `json:"forwarded,omitempty"`
}

// Info describes this instance for GET /.
type Info struct {
	OK           bool    `json:"ok"`
	Mode         string  `json:"mode"`
	Driver       string  `json:"driver,omitempty"`
	PWMFreq      float64 `json:"pwm_freq,omitempty"`
	RobotBaseURL string  `json:"robot_base_url,omitempty"`
	Transport    string  `json:"transport,omitempty"`
}

// Deps are the collaborators of a ControlService. Scheduler is required in
// device mode and Relay in relay mode; Journal and Publisher are optional.
type Deps struct {
	Store        *state.Store
	Scheduler    Dispatcher
	Relay        transport.Relay
	RelayTimeout time.Duration
	Journal      interfaces.CommandRepositoryInterface
	Publisher    Publisher
	Info         Info
	Logger       *slog.Logger
}

// ControlService runs the control flow: validate, derive, apply, then drive
// or forward depending on the mode.
type ControlService struct {
	mode         config.Mode
	opts         command.Options
	store        *state.Store
	scheduler    Dispatcher
	relay        transport.Relay
	relayTimeout time.Duration
	journal      interfaces.CommandRepositoryInterface
	publisher    Publisher
	status       *StatusAggregator
	info         Info
	logger       *slog.Logger
}

func NewControlService(mode config.Mode, opts command.Options, deps Deps) *ControlService {
	if deps.RelayTimeout <= 0 {
		deps.RelayTimeout = 2500 * time.Millisecond
	}
	deps.Info.OK = true
	deps.Info.Mode = string(mode)

	s := &ControlService{
		mode:         mode,
		opts:         opts,
		store:        deps.Store,
		scheduler:    deps.Scheduler,
		relay:        deps.Relay,
		relayTimeout: deps.RelayTimeout,
		journal:      deps.Journal,
		publisher:    deps.Publisher,
		info:         deps.Info,
		logger:       deps.Logger.With("component", "control_service", "mode", string(mode)),
	}
	if mode == config.ModeRelay {
		s.status = NewStatusAggregator(deps.Store, deps.Relay, deps.RelayTimeout, deps.Logger)
	}
	return s
}

// Set applies a control intent. A *command.ValidationError means nothing was
// changed. A *state.PersistenceError comes with a valid Result: the state
// moved and the motors or relay were still updated, only the write failed.
func (s *ControlService) Set(ctx context.Context, in command.Intent) (*Result, error) {
	if err := command.Validate(in, s.opts.Timed); err != nil {
		return nil, err
	}
	derived := command.Derive(in, s.opts)

	snap, applyErr := s.store.Apply(ctx, derived)
	if applyErr != nil {
		metrics.PersistFailures.Inc()
		s.logger.Error("Failed to persist state", "command_id", snap.CommandID, slog.Any("error", applyErr))
	}
	metrics.CommandsApplied.WithLabelValues(commandLabel(snap.Command)).Inc()

	res := &Result{Message: MessageUpdated, State: snap}
	switch s.mode {
	case config.ModeDevice:
		left, right := command.ToTank(snap.Command.String(), snap.Speed)
		s.scheduler.Dispatch(snap.CommandID, left, right, seconds(snap.Duration))
		res.Message = MessageDriving
	case config.ModeRelay:
		res.Forwarded = s.forward(ctx, func(ctx context.Context) (json.RawMessage, error) {
			return s.relay.Forward(ctx, requestFor(snap))
		})
		res.Message = MessageForwarded
	}

	s.after(ctx, snap)
	s.logger.Info("Command applied", "command", snap.Command.String(), "command_id", snap.CommandID,
		"speed", snap.Speed, "duration", snap.Duration)
	return res, applyErr
}

// Stop forces the stop command. In device mode the motors stop immediately.
func (s *ControlService) Stop(ctx context.Context) (*Result, error) {
	snap, applyErr := s.store.Stop(ctx)
	if applyErr != nil {
		metrics.PersistFailures.Inc()
		s.logger.Error("Failed to persist state", "command_id", snap.CommandID, slog.Any("error", applyErr))
	}
	metrics.CommandsApplied.WithLabelValues(commandLabel(snap.Command)).Inc()

	res := &Result{Message: MessageStopped, State: snap}
	switch s.mode {
	case config.ModeDevice:
		s.scheduler.Dispatch(snap.CommandID, 0, 0, 0)
	case config.ModeRelay:
		res.Forwarded = s.forward(ctx, s.relay.Stop)
	}

	s.after(ctx, snap)
	s.logger.Info("Stop applied", "command_id", snap.CommandID)
	return res, applyErr
}

// Status returns the snapshot, or in relay mode the aggregate with the
// robot host's view.
func (s *ControlService) Status(ctx context.Context) any {
	if s.status != nil {
		return s.status.Aggregate(ctx)
	}
	return s.store.Snapshot()
}

func (s *ControlService) Info() Info {
	return s.info
}

// History returns the newest journaled commands and the journal size.
func (s *ControlService) History(ctx context.Context, limit int) ([]models.CommandRecord, int64, error) {
	if s.journal == nil {
		return nil, 0, utils.NewNotFoundError("command journal is disabled")
	}
	if limit <= 0 {
		limit = historyDefaultLimit
	}
	if limit > historyMaxLimit {
		limit = historyMaxLimit
	}
	records, err := s.journal.Recent(ctx, limit)
	if err != nil {
		return nil, 0, utils.NewInternalServerError("failed to read command history", err)
	}
	total, err := s.journal.Count(ctx)
	if err != nil {
		return nil, 0, utils.NewInternalServerError("failed to count command history", err)
	}
	return records, total, nil
}

// HandleSet lets the MQTT listener share the HTTP control flow.
func (s *ControlService) HandleSet(ctx context.Context, in command.Intent) (state.Snapshot, error) {
	res, err := s.Set(ctx, in)
	if res == nil {
		return state.Snapshot{}, err
	}
	return res.State, err
}

func (s *ControlService) HandleStop(ctx context.Context) (state.Snapshot, error) {
	res, err := s.Stop(ctx)
	return res.State, err
}

func (s *ControlService) forward(ctx context.Context, call func(context.Context) (json.RawMessage, error)) *Forwarded {
	ctx, cancel := context.WithTimeout(ctx, s.relayTimeout)
	defer cancel()

	reply, err := call(ctx)
	if err != nil {
		s.logger.Warn("Robot host unreachable", slog.Any("error", err))
		return &Forwarded{OK: false, Error: err.Error()}
	}
	return &Forwarded{OK: true, RobotReply: reply}
}

// after runs the best-effort side effects of an accepted mutation.
func (s *ControlService) after(ctx context.Context, snap state.Snapshot) {
	if s.journal != nil {
		if err := s.journal.Record(ctx, models.NewCommandRecord(snap, string(s.mode))); err != nil {
			s.logger.Warn("Failed to journal command", "command_id", snap.CommandID, slog.Any("error", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, snap); err != nil {
			s.logger.Warn("Failed to publish state", "command_id", snap.CommandID, slog.Any("error", err))
		}
	}
}

func requestFor(snap state.Snapshot) transport.Request {
	return transport.Request{
		Directional: snap.Directional,
		Command:     snap.Command.String(),
		Speed:       snap.Speed,
		Duration:    snap.Duration,
	}
}

func commandLabel(c command.Command) string {
	if c.IsOverride() {
		return "override"
	}
	return c.String()
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
