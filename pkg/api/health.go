package api

import (
	"sync"
	"time"

	"github.com/cuemby/felt/pkg/metrics"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name reported alongside ""
const ServiceName = "felt"

// GRPCHealth mirrors the readiness of the critical components onto the
// standard grpc.health.v1 service
type GRPCHealth struct {
	server *health.Server

	mu      sync.Mutex
	stopCh  chan struct{}
	stopped bool
}

// NewGRPCHealth creates a health service that starts NOT_SERVING
func NewGRPCHealth() *GRPCHealth {
	g := &GRPCHealth{server: health.NewServer()}
	g.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return g
}

// Register adds the health service to a gRPC server
func (g *GRPCHealth) Register(srv *grpc.Server) {
	healthpb.RegisterHealthServer(srv, g.server)
}

func (g *GRPCHealth) set(status healthpb.HealthCheckResponse_ServingStatus) {
	g.server.SetServingStatus("", status)
	g.server.SetServingStatus(ServiceName, status)
}

// Sync copies the current readiness into the health service
func (g *GRPCHealth) Sync() {
	if metrics.Ready() {
		g.set(healthpb.HealthCheckResponse_SERVING)
	} else {
		g.set(healthpb.HealthCheckResponse_NOT_SERVING)
	}
}

// Watch syncs every interval until Shutdown
func (g *GRPCHealth) Watch(interval time.Duration) {
	g.mu.Lock()
	if g.stopped || g.stopCh != nil {
		g.mu.Unlock()
		return
	}
	stopCh := make(chan struct{})
	g.stopCh = stopCh
	g.mu.Unlock()

	g.Sync()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				g.Sync()
			case <-stopCh:
				return
			}
		}
	}()
}

// Shutdown stops watching and reports NOT_SERVING from now on
func (g *GRPCHealth) Shutdown() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped {
		return
	}
	g.stopped = true
	if g.stopCh != nil {
		close(g.stopCh)
	}
	g.server.Shutdown()
}
