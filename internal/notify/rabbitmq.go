package notify

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/leave-notifier/apiserver/config"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQBroker publishes leave events to a RabbitMQ queue.
type RabbitMQBroker struct {
	conn            *amqp.Connection
	channel         *amqp.Channel
	queue           string
	queueDurable    bool
	queueAutoDelete bool
}

// NewRabbitMQBroker constructs a RabbitMQ broker from config. The
// queue name comes from the notify channel setting.
func NewRabbitMQBroker(cfg config.NotifyConfig) (*RabbitMQBroker, error) {
	if strings.TrimSpace(cfg.RabbitMQ.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	if strings.TrimSpace(cfg.Channel) == "" {
		return nil, errors.New("notify channel is required")
	}

	conn, err := amqp.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if cfg.RabbitMQ.PrefetchCount > 0 {
		if err := ch.Qos(cfg.RabbitMQ.PrefetchCount, 0, false); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, err
		}
	}

	return &RabbitMQBroker{
		conn:            conn,
		channel:         ch,
		queue:           cfg.Channel,
		queueDurable:    cfg.RabbitMQ.QueueDurable,
		queueAutoDelete: cfg.RabbitMQ.QueueAutoDelete,
	}, nil
}

// Publish sends the event to the configured queue.
func (r *RabbitMQBroker) Publish(ctx context.Context, event Event) (string, error) {
	if _, err := r.declareQueue(); err != nil {
		return "", err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return "", err
	}

	messageID := newMessageID()
	err = r.channel.PublishWithContext(ctx, "", r.queue, false, false, amqp.Publishing{
		ContentType: "application/json",
		MessageId:   messageID,
		Headers:     amqp.Table{"kind": event.Kind},
		Body:        body,
	})
	if err != nil {
		return "", err
	}
	return messageID, nil
}

// Subscribe consumes events from the configured queue until ctx ends.
func (r *RabbitMQBroker) Subscribe(ctx context.Context, handler Handler) error {
	if _, err := r.declareQueue(); err != nil {
		return err
	}

	consumerTag := fmt.Sprintf("consumer-%s", newMessageID())
	deliveries, err := r.channel.Consume(r.queue, consumerTag, false, false, false, false, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = r.channel.Cancel(consumerTag, false)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			var event Event
			if err := json.Unmarshal(delivery.Body, &event); err != nil {
				// Undecodable payloads would loop forever if requeued.
				_ = delivery.Nack(false, false)
				continue
			}
			if err := handler(ctx, event); err != nil {
				_ = delivery.Nack(false, true)
				continue
			}
			_ = delivery.Ack(false)
		}
	}
}

// Close closes the underlying channel and connection.
func (r *RabbitMQBroker) Close() error {
	if r.channel != nil {
		_ = r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func (r *RabbitMQBroker) declareQueue() (amqp.Queue, error) {
	return r.channel.QueueDeclare(
		r.queue,
		r.queueDurable,
		r.queueAutoDelete,
		false,
		false,
		nil,
	)
}

func newMessageID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return ""
	}
	return hex.EncodeToString(buf[:])
}
