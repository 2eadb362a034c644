package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nerrad567/scene-rotator/internal/infrastructure/mqtt"
	"github.com/nerrad567/scene-rotator/internal/rotation"
)

// Command names.
const (
	CmdEnable     = "enable"
	CmdDisable    = "disable"
	CmdInterval   = "interval"
	CmdActive     = "active"
	CmdSwitch     = "switch"
	CmdClearError = "clear_error"
)

// outboxSize bounds queued outbound messages.
const outboxSize = 64

// ErrUnknownCommand is returned for command topics with an unrecognised name.
var ErrUnknownCommand = errors.New("control: unknown command")

// ErrInvalidPayload is returned when a command body cannot be decoded.
var ErrInvalidPayload = errors.New("control: invalid command payload")

// Broker is the subset of the MQTT client the bridge needs.
type Broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Logger defines the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// StatusMessage is the retained status payload.
type StatusMessage struct {
	Rotation  rotation.Status  `json:"rotation"`
	LastError *rotation.Report `json:"last_error,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// EventMessage wraps a rotation event for publication.
type EventMessage struct {
	Channel   string    `json:"channel"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

type outMsg struct {
	topic    string
	payload  []byte
	retained bool
}

// Bridge maps MQTT commands onto the scheduler and rotation events onto MQTT.
// It implements rotation.Broadcaster.
type Bridge struct {
	broker    Broker
	topics    mqtt.Topics
	qos       byte
	scheduler *rotation.Scheduler
	executor  *rotation.SwitchExecutor
	reporter  *rotation.ErrorReporter
	logger    Logger
	now       func() time.Time

	outbox  chan outMsg
	dropped atomic.Uint64
}

// Compile-time check.
var _ rotation.Broadcaster = (*Bridge)(nil)

// NewBridge creates a bridge. executor may be nil, which disables the switch command.
func NewBridge(broker Broker, topics mqtt.Topics, qos byte, scheduler *rotation.Scheduler,
	executor *rotation.SwitchExecutor, reporter *rotation.ErrorReporter, logger Logger) *Bridge {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Bridge{
		broker:    broker,
		topics:    topics,
		qos:       qos,
		scheduler: scheduler,
		executor:  executor,
		reporter:  reporter,
		logger:    logger,
		now:       time.Now,
		outbox:    make(chan outMsg, outboxSize),
	}
}

// Start subscribes to the command topics and queues the initial status.
func (b *Bridge) Start() error {
	if err := b.broker.Subscribe(b.topics.AllCommands(), b.qos, b.handleCommand); err != nil {
		return fmt.Errorf("subscribing to commands: %w", err)
	}
	b.logger.Info("MQTT control bridge started", "commands", b.topics.AllCommands())
	b.queueStatus()
	return nil
}

// Stop unsubscribes from the command topics.
func (b *Bridge) Stop() error {
	return b.broker.Unsubscribe(b.topics.AllCommands())
}

// Resync re-queues the retained status, e.g. after a broker reconnect.
func (b *Bridge) Resync() {
	b.queueStatus()
}

// Run publishes queued messages until ctx is cancelled. It blocks.
func (b *Bridge) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-b.outbox:
			if err := b.broker.Publish(msg.topic, msg.payload, b.qos, msg.retained); err != nil {
				if errors.Is(err, mqtt.ErrNotConnected) {
					b.logger.Debug("MQTT publish skipped, broker offline", "topic", msg.topic)
					continue
				}
				b.logger.Warn("MQTT publish failed", "topic", msg.topic, "error", err)
			}
		}
	}
}

// Dropped returns the number of messages discarded because the outbox was full.
func (b *Bridge) Dropped() uint64 {
	return b.dropped.Load()
}

// Broadcast implements rotation.Broadcaster. It never blocks.
func (b *Bridge) Broadcast(channel string, payload any) {
	data, err := json.Marshal(EventMessage{Channel: channel, Timestamp: b.now().UTC(), Payload: payload})
	if err != nil {
		b.logger.Error("marshalling MQTT event", "channel", channel, "error", err)
		return
	}
	b.enqueue(outMsg{topic: b.topics.Event(channel), payload: data})

	switch channel {
	case rotation.ChannelState, rotation.ChannelError, rotation.ChannelErrorCleared:
		b.queueStatus()
	}
}

func (b *Bridge) queueStatus() {
	msg := StatusMessage{Rotation: b.scheduler.Status(), UpdatedAt: b.now().UTC()}
	if rep, ok := b.reporter.Last(); ok {
		msg.LastError = &rep
	}
	data, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("marshalling MQTT status", "error", err)
		return
	}
	b.enqueue(outMsg{topic: b.topics.Status(), payload: data, retained: true})
}

func (b *Bridge) enqueue(msg outMsg) {
	select {
	case b.outbox <- msg:
	default:
		b.dropped.Add(1)
		b.logger.Debug("MQTT outbox full, dropping message", "topic", msg.topic)
	}
}

type enableCommand struct {
	Group string `json:"group"`
}

type intervalCommand struct {
	IntervalMS int64 `json:"interval_ms"`
}

type activeCommand struct {
	Group string `json:"group"`
}

type switchCommand struct {
	Scene string `json:"scene"`
}

// handleCommand dispatches one command message. Rotation failures are
// surfaced through the reporter; the returned error is only logged.
func (b *Bridge) handleCommand(topic string, payload []byte) error {
	name := b.topics.CommandName(topic)
	b.logger.Debug("MQTT command received", "command", name)

	switch name {
	case CmdEnable:
		var cmd enableCommand
		if err := decode(payload, &cmd); err != nil {
			return err
		}
		if cmd.Group != "" {
			return b.scheduler.StartGroup(cmd.Group)
		}
		b.scheduler.Start()
		return nil

	case CmdDisable:
		b.scheduler.Stop()
		return nil

	case CmdInterval:
		var cmd intervalCommand
		if err := decode(payload, &cmd); err != nil {
			return err
		}
		return b.scheduler.SetIntervalMS(cmd.IntervalMS)

	case CmdActive:
		var cmd activeCommand
		if err := decode(payload, &cmd); err != nil {
			return err
		}
		if cmd.Group == "" {
			b.scheduler.ClearActiveGroup()
			return nil
		}
		return b.scheduler.SetActiveGroup(cmd.Group)

	case CmdSwitch:
		if b.executor == nil {
			return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
		}
		var cmd switchCommand
		if err := decode(payload, &cmd); err != nil {
			return err
		}
		if cmd.Scene == "" {
			return fmt.Errorf("%w: scene is required", ErrInvalidPayload)
		}
		b.executor.Apply(cmd.Scene)
		return nil

	case CmdClearError:
		b.reporter.Clear()
		return nil
	}

	return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
}

// decode unmarshals a command body. An empty body decodes to the zero value.
func decode(payload []byte, v any) error {
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return nil
}
