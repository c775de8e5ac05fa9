package mqtt

import (
	"context"
)

// MessageHandler processes one received message. It runs on its own
// goroutine with a bounded context.
type MessageHandler func(ctx context.Context, topic string, payload []byte)

// Client is a reconnecting MQTT v5 client.
type Client interface {
	// Start connects in the background and returns immediately.
	Start(ctx context.Context) error

	Disconnect(ctx context.Context)

	Publish(ctx context.Context, topic string, qos int, retain bool, payload []byte) error

	// Subscribe registers handler for a topic filter. Subscriptions are
	// restored after every reconnect.
	Subscribe(ctx context.Context, topic string, qos int, handler MessageHandler) error

	Unsubscribe(ctx context.Context, topic string) error

	// AwaitConnection blocks until connected or ctx is done.
	AwaitConnection(ctx context.Context) error

	IsConnected() bool
}
