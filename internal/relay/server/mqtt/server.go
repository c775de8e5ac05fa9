package mqtt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/solar-synergy/dockrelay/internal/relay/core/service"
	"github.com/solar-synergy/dockrelay/pkg/dock"
	"github.com/solar-synergy/dockrelay/pkg/log"
	pkgmqtt "github.com/solar-synergy/dockrelay/pkg/mqtt"
	"github.com/solar-synergy/dockrelay/pkg/mqtt/topic"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// AckService records controller acknowledgements.
type AckService interface {
	Ack(ctx context.Context, in service.AckInput) (*dock.Command, bool, error)
}

// Server implements the MQTT ingress layer: controller acks in, relay
// presence out.
type Server struct {
	client     pkgmqtt.Client
	topics     *topic.TopicBuilder
	svc        AckService
	relayID    string
	shareGroup string
}

func NewServer(client pkgmqtt.Client, topics *topic.TopicBuilder, svc AckService, relayID, shareGroup string) *Server {
	return &Server{
		client:     client,
		topics:     topics,
		svc:        svc,
		relayID:    relayID,
		shareGroup: shareGroup,
	}
}

// Start connects, subscribes to acks and blocks until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	if err := s.client.Start(ctx); err != nil {
		return err
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// Graceful disconnect suppresses the will, so say goodbye ourselves.
		if err := s.client.Publish(shutdownCtx, s.topics.RelayStatus(s.relayID), 1, true, []byte(StatusOffline)); err != nil {
			log.Warn("Failed to publish relay status", "error", err)
		}
		s.client.Disconnect(shutdownCtx)
		log.Info("MQTT client disconnected")
	}()

	log.Info("Waiting for MQTT connection...")
	if err := s.client.AwaitConnection(ctx); err != nil {
		return err
	}
	log.Info("MQTT connected")

	filter := s.ackFilter()
	if err := s.client.Subscribe(ctx, filter, 1, s.handleAck); err != nil {
		return fmt.Errorf("failed to subscribe to topic: %s, err: %w", filter, err)
	}

	if err := s.client.Publish(ctx, s.topics.RelayStatus(s.relayID), 1, true, []byte(StatusOnline)); err != nil {
		log.Warn("Failed to publish relay status", "error", err)
	}

	<-ctx.Done()
	return nil
}

func (s *Server) ackFilter() string {
	filter := s.topics.DockAckWildcard()
	if s.shareGroup != "" {
		filter = fmt.Sprintf("$share/%s/%s", s.shareGroup, filter)
	}
	return filter
}

func (s *Server) handleAck(ctx context.Context, t string, payload []byte) {
	dockID, ok := s.topics.DockIDFromAck(t)
	if !ok {
		log.Warn("Ack on unexpected topic", "topic", t)
		return
	}

	state, version, err := ParseAck(payload)
	if err != nil {
		log.Warn("Dropping malformed ack", "topic", t, "error", err)
		return
	}

	if _, _, err := s.svc.Ack(ctx, service.AckInput{
		DockID:  dockID,
		State:   state,
		Version: version,
		Source:  "mqtt",
	}); err != nil {
		log.Error(err, "Handler execution failed", "topic", t)
	}
}

// ParseAck accepts either {"state":"LOCK","version":3} or a bare token.
// A bare token carries no version.
func ParseAck(payload []byte) (dock.State, uint64, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) > 0 && payload[0] == '{' {
		var req dock.AckRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return "", 0, fmt.Errorf("%w: %v", dock.ErrInvalidCommand, err)
		}
		state, err := dock.ParseToken(req.State)
		if err != nil {
			return "", 0, err
		}
		return state, req.Version, nil
	}

	state, err := dock.ParseToken(string(payload))
	if err != nil {
		return "", 0, err
	}
	return state, 0, nil
}
