package topic

import (
	"fmt"
	"strings"
)

// TopicBuilder constructs the dock topics below a root namespace.
type TopicBuilder struct {
	root string
}

func NewTopicBuilder(root string) *TopicBuilder {
	return &TopicBuilder{root: strings.TrimSuffix(root, "/")}
}

// DockCommand is where the relay publishes a dock's current command.
func (b *TopicBuilder) DockCommand(dockID string) string {
	return b.build(SuffixDockCommand, dockID)
}

// DockAck is where a controller reports what it applied.
func (b *TopicBuilder) DockAck(dockID string) string {
	return b.build(SuffixDockAck, dockID)
}

// DockAckWildcard subscribes to acknowledgements from every dock.
func (b *TopicBuilder) DockAckWildcard() string {
	return b.build(SuffixDockAck, Wildcard)
}

func (b *TopicBuilder) RelayStatus(relayID string) string {
	return b.build(SuffixRelayStatus, relayID)
}

// DockIDFromAck extracts the dock id from an ack topic.
func (b *TopicBuilder) DockIDFromAck(topic string) (string, bool) {
	prefix := b.root + "/" + SuffixDockAck + "/"
	if !strings.HasPrefix(topic, prefix) {
		return "", false
	}
	id := strings.TrimPrefix(topic, prefix)
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// build returns {root}/{suffix}/{id}.
func (b *TopicBuilder) build(suffix, id string) string {
	return fmt.Sprintf("%s/%s/%s", b.root, suffix, id)
}
