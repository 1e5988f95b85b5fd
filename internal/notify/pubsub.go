package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"cloud.google.com/go/pubsub"
	"github.com/leave-notifier/apiserver/config"
	"google.golang.org/api/option"
)

// PubSubBroker publishes leave events to a Google Cloud Pub/Sub topic.
type PubSubBroker struct {
	client             *pubsub.Client
	topicName          string
	subscriptionSuffix string
}

// NewPubSubBroker constructs a Pub/Sub broker from config. The topic
// name comes from the notify channel setting.
func NewPubSubBroker(ctx context.Context, cfg config.NotifyConfig) (*PubSubBroker, error) {
	if strings.TrimSpace(cfg.PubSub.ProjectID) == "" {
		return nil, errors.New("pubsub project id is required")
	}
	if strings.TrimSpace(cfg.Channel) == "" {
		return nil, errors.New("notify channel is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.PubSub.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.PubSub.CredentialsFile))
	}

	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID, opts...)
	if err != nil {
		return nil, err
	}

	suffix := cfg.PubSub.SubscriptionSuffix
	if suffix == "" {
		suffix = "-sub"
	}

	return &PubSubBroker{
		client:             client,
		topicName:          cfg.Channel,
		subscriptionSuffix: suffix,
	}, nil
}

// Publish sends the event to the configured topic.
func (p *PubSubBroker) Publish(ctx context.Context, event Event) (string, error) {
	topic, err := p.ensureTopic(ctx)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return "", err
	}

	result := topic.Publish(ctx, &pubsub.Message{
		Data:       body,
		Attributes: map[string]string{"kind": event.Kind},
	})
	return result.Get(ctx)
}

// Subscribe consumes events from the configured topic until ctx ends.
func (p *PubSubBroker) Subscribe(ctx context.Context, handler Handler) error {
	topic, err := p.ensureTopic(ctx)
	if err != nil {
		return err
	}

	sub, err := p.ensureSubscription(ctx, topic)
	if err != nil {
		return err
	}

	return sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			// Undecodable payloads would redeliver forever.
			msg.Ack()
			return
		}
		if err := handler(ctx, event); err != nil {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// Close closes the underlying Pub/Sub client.
func (p *PubSubBroker) Close() error {
	return p.client.Close()
}

func (p *PubSubBroker) ensureTopic(ctx context.Context) (*pubsub.Topic, error) {
	topic := p.client.Topic(p.topicName)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return p.client.CreateTopic(ctx, p.topicName)
	}
	return topic, nil
}

func (p *PubSubBroker) ensureSubscription(ctx context.Context, topic *pubsub.Topic) (*pubsub.Subscription, error) {
	name := p.topicName + p.subscriptionSuffix
	sub := p.client.Subscription(name)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return p.client.CreateSubscription(ctx, name, pubsub.SubscriptionConfig{Topic: topic})
	}
	return sub, nil
}
