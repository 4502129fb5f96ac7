package grpcserver

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

type switchPinger struct {
	mu  sync.Mutex
	err error
}

func (p *switchPinger) Ping(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *switchPinger) set(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

func TestHealthProbe_FollowsStore(t *testing.T) {
	t.Parallel()

	pinger := &switchPinger{}
	probe := NewHealthProbe(pinger, zaptest.NewLogger(t), true)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = probe.Serve(lis) }()
	defer probe.Stop(time.Second)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)
	ctx := context.Background()

	if st := probe.Refresh(ctx); st != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("want SERVING, got %v", st)
	}
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("want SERVING, got %v", resp.GetStatus())
	}

	pinger.set(errors.New("db down"))
	probe.Refresh(ctx)
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("want NOT_SERVING, got %v", resp.GetStatus())
	}
}

func TestHealthProbe_WatchStopsOnCancel(t *testing.T) {
	t.Parallel()

	probe := NewHealthProbe(nil, zaptest.NewLogger(t), false)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		probe.Watch(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("watch did not stop")
	}
}
