package notifier

import (
	"context"
	"sync"
	"time"

	"github.com/solar-synergy/dockrelay/internal/pkg/metrics"
	"github.com/solar-synergy/dockrelay/internal/relay/core"
	"github.com/solar-synergy/dockrelay/pkg/dock"
	"github.com/solar-synergy/dockrelay/pkg/log"
	pkgmqtt "github.com/solar-synergy/dockrelay/pkg/mqtt"
	"github.com/solar-synergy/dockrelay/pkg/mqtt/topic"
)

var _ core.Notifier = (*MQTTNotifier)(nil)

// MQTTNotifier publishes each dock's command token, retained, so a
// controller subscribing late still gets the current command.
type MQTTNotifier struct {
	client pkgmqtt.Client
	topics *topic.TopicBuilder

	mu        sync.Mutex
	published map[string]uint64
}

func NewMQTTNotifier(client pkgmqtt.Client, topics *topic.TopicBuilder) *MQTTNotifier {
	return &MQTTNotifier{
		client:    client,
		topics:    topics,
		published: make(map[string]uint64),
	}
}

// Start keeps the egress connection open until ctx is done.
func (n *MQTTNotifier) Start(ctx context.Context) error {
	if err := n.client.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n.client.Disconnect(shutdownCtx)
	return nil
}

// Notify publishes the bare token of cmd. Changes older than one already
// published for the dock are skipped so the retained message never goes
// backwards. Ack-only changes republish the same token, which is harmless.
func (n *MQTTNotifier) Notify(ctx context.Context, cmd *dock.Command) error {
	n.mu.Lock()
	if last, ok := n.published[cmd.DockID]; ok && cmd.Version < last {
		n.mu.Unlock()
		metrics.MQTTPublishTotal.WithLabelValues("skipped").Inc()
		return nil
	}
	n.mu.Unlock()

	t := n.topics.DockCommand(cmd.DockID)
	if err := n.client.Publish(ctx, t, 1, true, []byte(cmd.State.Token())); err != nil {
		metrics.MQTTPublishTotal.WithLabelValues("failed").Inc()
		return err
	}

	n.mu.Lock()
	if cmd.Version > n.published[cmd.DockID] {
		n.published[cmd.DockID] = cmd.Version
	}
	n.mu.Unlock()

	metrics.MQTTPublishTotal.WithLabelValues("success").Inc()
	log.Debug("Published dock command", "topic", t, "command", cmd.State.Token(), "version", cmd.Version)
	return nil
}
