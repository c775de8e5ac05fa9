package topic

// MQTT wildcards.
const (
	// Wildcard matches exactly one topic level.
	Wildcard = "+"

	// MultiWildcard matches the remaining levels and must come last.
	MultiWildcard = "#"
)

// Topic segments shared by the relay and controllers. Controllers in the
// field subscribe to these; renaming them strands those devices.
const (
	// SuffixDockCommand carries the bare command token, retained.
	// Structure: {root}/dock/command/{dockID}
	SuffixDockCommand = "dock/command"

	// SuffixDockAck carries a controller's applied state.
	// Structure: {root}/dock/ack/{dockID}
	SuffixDockAck = "dock/ack"

	// SuffixRelayStatus carries the relay's presence, set by its last will.
	// Structure: {root}/relay/status/{relayID}
	SuffixRelayStatus = "relay/status"
)
