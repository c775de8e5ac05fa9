package grpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	grpcmw "github.com/solar-synergy/dockrelay/internal/pkg/middleware/grpc"
	"github.com/solar-synergy/dockrelay/pkg/options"
)

type checker struct{ err error }

func (c checker) Ready(context.Context) error { return c.err }

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func check(t *testing.T, ready error) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	opts := options.NewGrpcOptions()
	opts.Addr = freeAddr(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := NewServer(opts, checker{err: ready})
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	conn, err := grpc.NewClient(opts.Addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(grpcmw.UnaryTimeoutInterceptor),
	)
	require.NoError(t, err)
	defer conn.Close()

	var resp *healthpb.HealthCheckResponse
	require.Eventually(t, func() bool {
		resp, err = healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
	return resp.GetStatus()
}

func TestHealthServing(t *testing.T) {
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, nil))
}

func TestHealthNotServing(t *testing.T) {
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, errors.New("store down")))
}
