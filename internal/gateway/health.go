// ABOUTME: Optional gRPC health service reporting gateway readiness
// ABOUTME: SERVING once tools are registered, NOT_SERVING from the start of shutdown

package gateway

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// HealthService is the service name reported alongside the overall ("") status.
const HealthService = "sei.mcp.Gateway"

// newHealthServer creates a gRPC server exposing only grpc.health.v1.
func newHealthServer() (*grpc.Server, *health.Server) {
	server := grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    15 * time.Second,
			Timeout: 5 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
	)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(HealthService, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(server, hs)

	return server, hs
}

// setServing flips both health entries. No-op without a gRPC server.
func (g *Gateway) setServing(serving bool) {
	if g.health == nil {
		return
	}
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving && g.registry.Ready() {
		status = healthpb.HealthCheckResponse_SERVING
	}
	g.health.SetServingStatus("", status)
	g.health.SetServingStatus(HealthService, status)
}

// HealthStatus returns the gRPC health status for service, or UNKNOWN without a gRPC server.
func (g *Gateway) HealthStatus(ctx context.Context, service string) healthpb.HealthCheckResponse_ServingStatus {
	if g.health == nil {
		return healthpb.HealthCheckResponse_UNKNOWN
	}
	resp, err := g.health.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_SERVICE_UNKNOWN
	}
	return resp.GetStatus()
}

// shutdownGRPCServer gracefully stops the gRPC server or force-stops on context cancel.
func (g *Gateway) shutdownGRPCServer(ctx context.Context) {
	if g.grpcServer == nil {
		return
	}
	g.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		g.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-ctx.Done():
		g.grpcServer.Stop()
	}
}
