package app

import (
	"fmt"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/solar-synergy/dockrelay/cmd/dockctl/app/options"
	grpcmw "github.com/solar-synergy/dockrelay/internal/pkg/middleware/grpc"
	relaygrpc "github.com/solar-synergy/dockrelay/internal/relay/server/grpc"
)

func newHealthCmd(opts *options.CtlOptions) *cobra.Command {
	var service string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Query the relay's gRPC health service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, err := grpc.NewClient(opts.ClientOptions.GrpcAddr,
				grpc.WithTransportCredentials(insecure.NewCredentials()),
				grpc.WithUnaryInterceptor(grpcmw.UnaryTimeoutInterceptor),
			)
			if err != nil {
				return err
			}
			defer conn.Close()

			resp, err := healthpb.NewHealthClient(conn).Check(cmd.Context(), &healthpb.HealthCheckRequest{Service: service})
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.GetStatus().String())
			if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
				return fmt.Errorf("relay is %s", resp.GetStatus())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&service, "service", relaygrpc.ServiceName, "Service name to check. Empty checks the whole server.")
	return cmd
}
