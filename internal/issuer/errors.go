package issuer

import (
	"errors"
	"fmt"

	"github.com/solar-synergy/dockrelay/pkg/dock"
)

var (
	ErrInvalidCommand = errors.New("invalid command")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrConflict       = errors.New("version conflict")
	ErrUnreachable    = errors.New("relay unreachable")
	ErrUnexpected     = errors.New("unexpected relay response")
)

// StatusError carries the relay's status and message behind one of the
// sentinel errors above.
type StatusError struct {
	Kind    error
	Status  int
	Message string
	// Version is the current dock version reported with a conflict.
	Version uint64
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%v (HTTP %d)", e.Kind, e.Status)
	}
	return fmt.Sprintf("%v (HTTP %d): %s", e.Kind, e.Status, e.Message)
}

func (e *StatusError) Unwrap() error { return e.Kind }

// UserMessage renders err as the one short line shown to a person.
func UserMessage(err error) string {
	var se *StatusError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCommand):
		return "The relay rejected the command."
	case errors.Is(err, ErrUnauthorized):
		return "Not authorised to command this dock."
	case errors.As(err, &se) && se.Message == dock.MessageRequestIDReused:
		return "That request id was already used for a different command."
	case errors.As(err, &se) && errors.Is(err, ErrConflict):
		return fmt.Sprintf("The dock changed meanwhile (now version %d). Check its state and try again.", se.Version)
	case errors.Is(err, ErrConflict):
		return "The dock changed meanwhile. Check its state and try again."
	case errors.Is(err, ErrUnreachable):
		return "Dock relay unreachable. Check the hub connection."
	default:
		return "The relay returned an unexpected response."
	}
}
