package dock

import "time"

// ContentTypeView marks the versioned JSON dock view. The issuer treats its
// presence as proof it reached a live relay.
const ContentTypeView = "application/vnd.dockrelay.v1+json"

// MessageInvalidCommand is the fixed error string returned for rejected
// command tokens.
const MessageInvalidCommand = "Invalid Command"

// MessageRequestIDReused is returned when a request id is replayed with a
// different command.
const MessageRequestIDReused = "Request ID Reused"

// CommandRequest is the body of a write.
type CommandRequest struct {
	Command   string  `json:"command" validate:"required"`
	DockID    string  `json:"dockId,omitempty" validate:"omitempty,max=64"`
	IfVersion *uint64 `json:"ifVersion,omitempty"`
	RequestID string  `json:"requestId,omitempty" validate:"omitempty,max=128"`
}

// CommandResponse is returned for an accepted write.
type CommandResponse struct {
	Success   bool      `json:"success"`
	NewState  string    `json:"newState"`
	DockID    string    `json:"dockId"`
	Version   uint64    `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ErrorResponse is returned for any rejected request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Version uint64 `json:"version,omitempty"`
}

// AckRequest is what a controller posts after actuating.
type AckRequest struct {
	State   string `json:"state" validate:"required"`
	Version uint64 `json:"version"`
}

// View is the JSON representation of a dock served to clients.
type View struct {
	DockID    string    `json:"dockId"`
	Command   string    `json:"command"`
	State     State     `json:"state"`
	Version   uint64    `json:"version"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
	UpdatedBy string    `json:"updatedBy,omitempty"`
	Applied   *Ack      `json:"applied,omitempty"`
	Stale     bool      `json:"stale"`
	Converged bool      `json:"converged"`
}

// NewView renders c for clients at time now.
func NewView(c *Command, now time.Time, staleAfter time.Duration) View {
	return View{
		DockID:    c.DockID,
		Command:   c.State.Token(),
		State:     c.State,
		Version:   c.Version,
		UpdatedAt: c.UpdatedAt,
		UpdatedBy: c.UpdatedBy,
		Applied:   c.Applied,
		Stale:     c.Stale(now, staleAfter),
		Converged: c.Converged(),
	}
}

// ListResponse wraps the dock list.
type ListResponse struct {
	Docks []View `json:"docks"`
}
