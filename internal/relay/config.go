package relay

import (
	"context"
	"fmt"

	"github.com/solar-synergy/dockrelay/internal/pkg/auth"
	"github.com/solar-synergy/dockrelay/internal/relay/core/service"
	"github.com/solar-synergy/dockrelay/internal/relay/notifier"
	"github.com/solar-synergy/dockrelay/internal/relay/server"
	"github.com/solar-synergy/dockrelay/internal/relay/server/grpc"
	"github.com/solar-synergy/dockrelay/internal/relay/server/http"
	"github.com/solar-synergy/dockrelay/internal/relay/server/mqtt"
	"github.com/solar-synergy/dockrelay/internal/relay/server/websocket"
	"github.com/solar-synergy/dockrelay/pkg/mqtt/topic"
	"github.com/solar-synergy/dockrelay/pkg/options"
)

type Config struct {
	HttpOptions     *options.HttpOptions
	GrpcOptions     *options.GrpcOptions
	MqttOptions     *options.MqttOptions
	S3Options       *options.S3Options
	PostgresOptions *options.PostgresOptions
	StoreOptions    *options.StoreOptions
	AuthOptions     *options.AuthOptions
	RelayOptions    *options.RelayOptions
}

// NewRelayServer wires store, service and every enabled transport.
func (cfg *Config) NewRelayServer(ctx context.Context) (*RelayServer, error) {
	// 1. Infrastructure: Command Store
	store, err := InitializeStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}

	// 2. Core Domain Service
	svc := service.New(store, service.Config{
		DefaultDockID: cfg.RelayOptions.DefaultDockID,
		StaleAfter:    cfg.RelayOptions.StaleAfter,
		DedupeWindow:  cfg.RelayOptions.DedupeWindow,
	})

	mgr := server.NewManager(server.ServerFunc(svc.Start))

	// 3. Notifiers: websocket push, optionally MQTT egress
	hub := websocket.NewHub(svc)
	svc.AddNotifier(hub)
	mgr.Add(hub)

	if cfg.MqttOptions.Enabled {
		topics := topic.NewTopicBuilder(cfg.MqttOptions.TopicRoot)

		egress, err := InitializeMQTTClient(cfg.MqttOptions, "notifier", nil)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to init notifier: %w", err)
		}
		n := notifier.NewMQTTNotifier(egress, topics)
		svc.AddNotifier(n)
		mgr.Add(n)

		id := relayID(cfg.MqttOptions)
		ingress, err := InitializeMQTTClient(cfg.MqttOptions, "", &will{
			topic:   topics.RelayStatus(id),
			payload: mqtt.StatusOffline,
		})
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to init mqtt server: %w", err)
		}
		mgr.Add(mqtt.NewServer(ingress, topics, svc, id, cfg.MqttOptions.ShareGroup))
	}

	// 4. Ingress servers
	var authenticator *auth.Authenticator
	if cfg.AuthOptions.Enabled() {
		authenticator = auth.NewAuthenticator(cfg.AuthOptions.JWTSecret, cfg.AuthOptions.Issuer)
	}
	router := http.NewRouter(http.RouterConfig{
		Path:         cfg.RelayOptions.Path,
		MaxBodyBytes: cfg.RelayOptions.MaxBodyBytes,
		Auth:         authenticator,
		Websocket:    hub,
	}, svc)
	mgr.Add(http.NewServer(cfg.HttpOptions, router))

	if cfg.GrpcOptions.Enabled {
		mgr.Add(grpc.NewServer(cfg.GrpcOptions, svc))
	}

	return &RelayServer{
		serverManager: mgr,
		store:         store,
	}, nil
}
