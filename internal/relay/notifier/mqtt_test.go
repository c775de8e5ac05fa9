package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solar-synergy/dockrelay/pkg/dock"
	pkgmqtt "github.com/solar-synergy/dockrelay/pkg/mqtt"
	"github.com/solar-synergy/dockrelay/pkg/mqtt/topic"
)

type publish struct {
	topic   string
	qos     int
	retain  bool
	payload string
}

type fakeClient struct {
	pkgmqtt.Client

	mu   sync.Mutex
	sent []publish
	err  error
}

func (f *fakeClient) Publish(_ context.Context, t string, qos int, retain bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, publish{topic: t, qos: qos, retain: retain, payload: string(payload)})
	return nil
}

func command(id string, state dock.State, version uint64) *dock.Command {
	return &dock.Command{DockID: id, State: state, Version: version}
}

func TestMQTTNotifier_Notify(t *testing.T) {
	client := &fakeClient{}
	n := NewMQTTNotifier(client, topic.NewTopicBuilder("solar/v1"))
	ctx := context.Background()

	require.NoError(t, n.Notify(ctx, command("BAY-1", dock.StateUnlocked, 1)))
	require.NoError(t, n.Notify(ctx, command("BAY-1", dock.StateLocked, 2)))
	// Out of order for BAY-1, skipped.
	require.NoError(t, n.Notify(ctx, command("BAY-1", dock.StateUnlocked, 1)))
	require.NoError(t, n.Notify(ctx, command("BAY-2", dock.StateUnlocked, 1)))

	assert.Equal(t, []publish{
		{topic: "solar/v1/dock/command/BAY-1", qos: 1, retain: true, payload: "UNLOCK"},
		{topic: "solar/v1/dock/command/BAY-1", qos: 1, retain: true, payload: "LOCK"},
		{topic: "solar/v1/dock/command/BAY-2", qos: 1, retain: true, payload: "UNLOCK"},
	}, client.sent)
}

func TestMQTTNotifier_NotifyAckRepublishes(t *testing.T) {
	client := &fakeClient{}
	n := NewMQTTNotifier(client, topic.NewTopicBuilder("solar/v1"))

	cmd := command("BAY-1", dock.StateUnlocked, 3)
	require.NoError(t, n.Notify(context.Background(), cmd))
	cmd.Applied = &dock.Ack{State: dock.StateUnlocked, Version: 3}
	require.NoError(t, n.Notify(context.Background(), cmd))

	assert.Len(t, client.sent, 2)
}

func TestMQTTNotifier_PublishError(t *testing.T) {
	client := &fakeClient{err: errors.New("broker gone")}
	n := NewMQTTNotifier(client, topic.NewTopicBuilder("solar/v1"))

	err := n.Notify(context.Background(), command("BAY-1", dock.StateUnlocked, 1))
	require.Error(t, err)

	// A failed publish does not advance the watermark.
	client.err = nil
	require.NoError(t, n.Notify(context.Background(), command("BAY-1", dock.StateUnlocked, 1)))
	assert.Len(t, client.sent, 1)
}
