package twin

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the gRPC health service name of the twin.
const ServiceName = "farmtwin.Twin"

// NewGRPCServer builds a server exposing the standard health service. The
// returned health server starts as NOT_SERVING.
func NewGRPCServer() (*grpc.Server, *health.Server) {
	srv := grpc.NewServer()
	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)
	return srv, hs
}

// WatchReadiness mirrors the readiness rule into hs every interval until ctx
// ends, then marks everything NOT_SERVING.
func (a *App) WatchReadiness(ctx context.Context, hs *health.Server, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	set := func() {
		st := healthpb.HealthCheckResponse_NOT_SERVING
		if Ready(a.MQTT, a.Archive, 30*time.Second) {
			st = healthpb.HealthCheckResponse_SERVING
		}
		hs.SetServingStatus(ServiceName, st)
		hs.SetServingStatus("", st)
	}
	set()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-ticker.C:
			set()
		}
	}
}
