package relay

import (
	"context"
	"fmt"
	"os"

	"github.com/solar-synergy/dockrelay/internal/relay/core"
	"github.com/solar-synergy/dockrelay/internal/relay/store/memory"
	"github.com/solar-synergy/dockrelay/internal/relay/store/postgres"
	"github.com/solar-synergy/dockrelay/internal/relay/store/s3"
	"github.com/solar-synergy/dockrelay/pkg/log"
	"github.com/solar-synergy/dockrelay/pkg/mqtt"
	"github.com/solar-synergy/dockrelay/pkg/options"
)

func InitializeStore(ctx context.Context, cfg *Config) (core.Store, error) {
	switch cfg.StoreOptions.Backend {
	case options.StorePostgres:
		return postgres.New(ctx, cfg.PostgresOptions)

	case options.StoreS3:
		bucket, err := s3.NewMinIOBucket(ctx, cfg.S3Options)
		if err != nil {
			return nil, err
		}
		return s3.New(bucket, cfg.S3Options.Prefix), nil

	case options.StoreMemory, "":
		log.Info("Using in-memory command store, commands reset on restart")
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreOptions.Backend)
}

type will struct {
	topic   string
	payload string
}

// InitializeMQTTClient builds a client; suffix distinguishes the ingress
// and egress connections of one relay.
func InitializeMQTTClient(opts *options.MqttOptions, suffix string, w *will) (mqtt.Client, error) {
	cfg := opts.ToClientConfig()
	cfg.ClientID = relayID(opts)
	if suffix != "" {
		cfg.ClientID += "-" + suffix
	}
	if w != nil {
		cfg.WillTopic = w.topic
		cfg.WillPayload = []byte(w.payload)
		cfg.WillQoS = 1
		cfg.WillRetain = true
	}

	client, err := mqtt.NewClient(cfg)
	if err != nil {
		log.Error(err, "failed to new mqtt client")
		return nil, err
	}
	return client, nil
}

func relayID(opts *options.MqttOptions) string {
	if opts.ClientID != "" {
		return opts.ClientID
	}
	hostname, _ := os.Hostname()
	return fmt.Sprintf("dock-relay-%s", hostname)
}
