package health

import (
	"context"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func startTestServer(t *testing.T) (*Server, healthpb.HealthClient) {
	t.Helper()

	listener := bufconn.Listen(1 << 20)
	server := NewServer(zap.NewNop())
	done := make(chan error, 1)
	go func() { done <- server.Serve(listener) }()

	conn, err := grpc.Dial("bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("failed to dial health server: %v", err)
	}
	t.Cleanup(func() {
		conn.Close()
		server.Stop()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("serve returned error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("health server did not stop")
		}
	})

	return server, healthpb.NewHealthClient(conn)
}

func TestHealthServerReportsServing(t *testing.T) {
	_, client := startTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for _, service := range []string{"", ServiceName} {
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
		if err != nil {
			t.Fatalf("check %q failed: %v", service, err)
		}
		if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
			t.Fatalf("expected SERVING for %q, got %s", service, resp.GetStatus())
		}
	}
}

func TestHealthServerUnknownService(t *testing.T) {
	_, client := startTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: "unknown"}); err == nil {
		t.Fatal("expected error for unknown service")
	}
}
