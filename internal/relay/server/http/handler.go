package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/solar-synergy/dockrelay/internal/pkg/auth"
	"github.com/solar-synergy/dockrelay/internal/pkg/metrics"
	"github.com/solar-synergy/dockrelay/internal/relay/core/service"
	"github.com/solar-synergy/dockrelay/pkg/dock"
)

// Service is the part of the relay service the HTTP layer drives.
type Service interface {
	SetCommand(ctx context.Context, in service.SetCommandInput) (*service.SetCommandResult, error)
	GetCommand(ctx context.Context, dockID string) (*dock.Command, error)
	ListCommands(ctx context.Context) ([]*dock.Command, error)
	Ack(ctx context.Context, in service.AckInput) (*dock.Command, bool, error)
	View(cmd *dock.Command) dock.View
	Ready(ctx context.Context) error
}

type handler struct {
	svc          Service
	auth         *auth.Authenticator
	maxBodyBytes int64
}

// postCommand accepts {"command":"LOCK"|"UNLOCK"} and overwrites the dock.
func (h *handler) postCommand(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(r)
	if err != nil {
		metrics.CommandsTotal.WithLabelValues("", "unauthorized").Inc()
		writeError(w, err)
		return
	}

	var req dock.CommandRequest
	if err := h.decode(w, r, &req); err != nil {
		metrics.CommandsTotal.WithLabelValues("", "invalid").Inc()
		writeError(w, err)
		return
	}
	state, err := dock.ParseToken(req.Command)
	if err != nil {
		metrics.CommandsTotal.WithLabelValues("", "invalid").Inc()
		writeError(w, err)
		return
	}

	if req.DockID == "" {
		req.DockID = r.URL.Query().Get("dockId")
	}
	if req.RequestID == "" {
		req.RequestID = r.Header.Get("X-Request-ID")
	}

	res, err := h.svc.SetCommand(r.Context(), service.SetCommandInput{
		DockID:    req.DockID,
		State:     state,
		IfVersion: req.IfVersion,
		RequestID: req.RequestID,
		Caller:    caller,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, contentTypeJSON, dock.CommandResponse{
		Success:   true,
		NewState:  res.Command.State.Token(),
		DockID:    res.Command.DockID,
		Version:   res.Command.Version,
		UpdatedAt: res.Command.UpdatedAt,
	})
}

// getCommand serves the bare token polled by controllers. The body is
// exactly LOCK or UNLOCK with no trailing newline.
func (h *handler) getCommand(w http.ResponseWriter, r *http.Request) {
	cmd, err := h.svc.GetCommand(r.Context(), r.URL.Query().Get("dockId"))
	if err != nil {
		writeError(w, err)
		return
	}
	metrics.ReadsTotal.WithLabelValues("controller").Inc()

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, cmd.State.Token())
}

func (h *handler) getDock(w http.ResponseWriter, r *http.Request) {
	cmd, err := h.svc.GetCommand(r.Context(), mux.Vars(r)["dockId"])
	if err != nil {
		writeError(w, err)
		return
	}
	metrics.ReadsTotal.WithLabelValues("json").Inc()
	writeJSON(w, http.StatusOK, dock.ContentTypeView, h.svc.View(cmd))
}

func (h *handler) listDocks(w http.ResponseWriter, r *http.Request) {
	cmds, err := h.svc.ListCommands(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	metrics.ReadsTotal.WithLabelValues("json").Inc()

	resp := dock.ListResponse{Docks: make([]dock.View, 0, len(cmds))}
	for _, c := range cmds {
		resp.Docks = append(resp.Docks, h.svc.View(c))
	}
	writeJSON(w, http.StatusOK, dock.ContentTypeView, resp)
}

// postAck records what a controller applied. Acks are unauthenticated
// like controller polls.
func (h *handler) postAck(w http.ResponseWriter, r *http.Request) {
	var req dock.AckRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	state, err := dock.ParseToken(req.State)
	if err != nil {
		writeError(w, err)
		return
	}

	cmd, _, err := h.svc.Ack(r.Context(), service.AckInput{
		DockID:  mux.Vars(r)["dockId"],
		State:   state,
		Version: req.Version,
		Source:  "http",
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dock.ContentTypeView, h.svc.View(cmd))
}

func (h *handler) healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *handler) readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Ready(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// decode reads a size-limited JSON body and validates it. Malformed input
// is reported as an invalid command.
func (h *handler) decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return fmt.Errorf("%w: %v", dock.ErrInvalidCommand, err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", dock.ErrInvalidCommand, err)
	}
	return nil
}

func (h *handler) caller(r *http.Request) (string, error) {
	if h.auth == nil {
		return auth.Anonymous, nil
	}
	token, err := auth.FromHeader(r.Header.Get("Authorization"))
	if err != nil {
		return "", err
	}
	return h.auth.Verify(token)
}
