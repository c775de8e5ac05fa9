package topic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopicBuilder(t *testing.T) {
	b := NewTopicBuilder("solar/v1/")

	assert.Equal(t, "solar/v1/dock/command/ETP-G17-HUB", b.DockCommand("ETP-G17-HUB"))
	assert.Equal(t, "solar/v1/dock/ack/ETP-G17-HUB", b.DockAck("ETP-G17-HUB"))
	assert.Equal(t, "solar/v1/dock/ack/+", b.DockAckWildcard())
	assert.Equal(t, "solar/v1/relay/status/r1", b.RelayStatus("r1"))
}

func TestDockIDFromAck(t *testing.T) {
	b := NewTopicBuilder("solar/v1")

	tests := []struct {
		topic  string
		wantID string
		wantOK bool
	}{
		{"solar/v1/dock/ack/bay-1", "bay-1", true},
		{"solar/v1/dock/ack/", "", false},
		{"solar/v1/dock/ack/a/b", "", false},
		{"solar/v1/dock/command/bay-1", "", false},
		{"other/dock/ack/bay-1", "", false},
	}
	for _, tt := range tests {
		id, ok := b.DockIDFromAck(tt.topic)
		assert.Equal(t, tt.wantOK, ok, tt.topic)
		assert.Equal(t, tt.wantID, id, tt.topic)
	}
}
