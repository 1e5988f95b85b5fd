// Package notify publishes leave lifecycle events to a message broker
// so downstream consumers (mail bots, chat hooks) learn about new
// requests and decisions.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leave-notifier/apiserver/config"
	"github.com/leave-notifier/apiserver/types"
)

// Event kinds carried on the wire.
const (
	KindLeaveCreated = "leave.created"
	KindLeaveDecided = "leave.decided"
)

// Event is the payload published for every leave lifecycle change.
// It is JSON-encoded on the wire; the kind is duplicated into message
// attributes so consumers can filter without decoding.
type Event struct {
	Kind  string          `json:"kind"`
	Leave types.LeaveView `json:"leave"`
}

// Handler processes an event. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, event Event) error

// Broker is implemented by message-broker backends.
type Broker interface {
	Publish(ctx context.Context, event Event) (string, error)
	Subscribe(ctx context.Context, handler Handler) error
	Close() error
}

// Notifier publishes events best-effort: a broker outage must never
// fail the request that triggered the event.
type Notifier struct {
	broker Broker
	logger *slog.Logger
}

// NewNotifier wraps a broker. A nil broker disables publishing.
func NewNotifier(broker Broker, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{broker: broker, logger: logger}
}

// LeaveCreated announces a newly created leave request.
func (n *Notifier) LeaveCreated(ctx context.Context, leave types.LeaveView) {
	n.publish(ctx, Event{Kind: KindLeaveCreated, Leave: leave})
}

// LeaveDecided announces an approval or denial.
func (n *Notifier) LeaveDecided(ctx context.Context, leave types.LeaveView) {
	n.publish(ctx, Event{Kind: KindLeaveDecided, Leave: leave})
}

// Close closes the underlying broker.
func (n *Notifier) Close() error {
	if n.broker == nil {
		return nil
	}
	return n.broker.Close()
}

func (n *Notifier) publish(ctx context.Context, event Event) {
	if n.broker == nil {
		return
	}
	id, err := n.broker.Publish(ctx, event)
	if err != nil {
		n.logger.Error("failed to publish leave event",
			"kind", event.Kind, "leave_id", event.Leave.ID, "error", err)
		return
	}
	n.logger.Info("published leave event",
		"kind", event.Kind, "leave_id", event.Leave.ID, "message_id", id)
}

// NewBroker selects and constructs a broker from config. It returns a
// nil Broker when the backend is "none".
func NewBroker(ctx context.Context, cfg config.NotifyConfig) (Broker, error) {
	switch cfg.Backend {
	case "rabbitmq":
		return NewRabbitMQBroker(cfg)
	case "pubsub":
		return NewPubSubBroker(ctx, cfg)
	case "", "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown notify backend %q", cfg.Backend)
	}
}
