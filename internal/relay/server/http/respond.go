package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/solar-synergy/dockrelay/internal/pkg/auth"
	"github.com/solar-synergy/dockrelay/internal/relay/core"
	"github.com/solar-synergy/dockrelay/pkg/dock"
	"github.com/solar-synergy/dockrelay/pkg/log"
)

const contentTypeJSON = "application/json"

func writeJSON(w http.ResponseWriter, status int, contentType string, v any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error(err, "Failed to encode response")
	}
}

// writeError is the single place errors become HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status, body := classify(err)
	if status == http.StatusInternalServerError {
		log.Error(err, "Request failed")
	}
	writeJSON(w, status, contentTypeJSON, body)
}

func classify(err error) (int, dock.ErrorResponse) {
	var (
		conflict *core.ConflictError
		tooLarge *http.MaxBytesError
	)
	switch {
	case errors.Is(err, dock.ErrInvalidCommand):
		return http.StatusBadRequest, dock.ErrorResponse{Error: dock.MessageInvalidCommand}
	case errors.Is(err, dock.ErrInvalidDockID):
		return http.StatusBadRequest, dock.ErrorResponse{Error: "Invalid Dock ID"}
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, dock.ErrorResponse{Error: "Request Too Large"}
	case errors.Is(err, dock.ErrRequestIDReused):
		return http.StatusConflict, dock.ErrorResponse{Error: dock.MessageRequestIDReused}
	case errors.As(err, &conflict):
		return http.StatusConflict, dock.ErrorResponse{Error: "Version Conflict", Version: conflict.Current}
	case errors.Is(err, auth.ErrMissingToken), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, dock.ErrorResponse{Error: "Unauthorized"}
	default:
		return http.StatusInternalServerError, dock.ErrorResponse{Error: "Internal Error"}
	}
}
