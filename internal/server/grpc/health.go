// Package grpcserver runs the optional gRPC health endpoint for orchestrators.
package grpcserver

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is reported alongside the overall ("") status.
const ServiceName = "patientregistry.Registry"

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthProbe serves grpc.health.v1 and keeps its status in step with the store.
type HealthProbe struct {
	srv    *grpc.Server
	hs     *health.Server
	pinger Pinger
	log    *zap.Logger
}

// NewHealthProbe builds the gRPC server with the logging and recover interceptors.
// reflect enables server reflection (dev only).
func NewHealthProbe(p Pinger, log *zap.Logger, reflect bool) *HealthProbe {
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoverUnary(log),
			LoggingUnary(log),
		),
		grpc.ChainStreamInterceptor(
			RecoverStream(log),
			LoggingStream(log),
		),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	if reflect {
		reflection.Register(s)
	}
	return &HealthProbe{srv: s, hs: hs, pinger: p, log: log}
}

// Refresh pings the store once and publishes the result.
func (h *HealthProbe) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	st := healthpb.HealthCheckResponse_SERVING
	if h.pinger != nil {
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := h.pinger.Ping(pctx)
		cancel()
		if err != nil {
			h.log.Warn("store ping failed", zap.Error(err))
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	h.hs.SetServingStatus("", st)
	h.hs.SetServingStatus(ServiceName, st)
	return st
}

// Watch refreshes the status every interval until ctx is done.
func (h *HealthProbe) Watch(ctx context.Context, every time.Duration) {
	h.Refresh(ctx)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			h.Refresh(ctx)
		}
	}
}

// Serve accepts connections on lis until Stop.
func (h *HealthProbe) Serve(lis net.Listener) error { return h.srv.Serve(lis) }

// Stop marks the probe NOT_SERVING and stops gracefully, forcing after timeout.
func (h *HealthProbe) Stop(timeout time.Duration) {
	h.hs.Shutdown()
	done := make(chan struct{})
	go func() {
		h.srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		h.srv.Stop()
	}
}
