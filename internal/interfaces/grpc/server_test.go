package grpc

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/turtacn/LoreKit/internal/config"
	"github.com/turtacn/LoreKit/internal/testutil"
)

type rpcRecord struct {
	service, method, code string
}

type recordingRecorder struct {
	mu      sync.Mutex
	records []rpcRecord
}

func (r *recordingRecorder) RecordGRPCRequest(service, method, code string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rpcRecord{service, method, code})
}

func (r *recordingRecorder) get() []rpcRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]rpcRecord(nil), r.records...)
}

func startBufconn(t *testing.T, opts ...Option) (*Server, healthpb.HealthClient) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv, err := NewServer(config.GRPCConfig{Enabled: true}, append(opts, WithListener(lis))...)
	require.NoError(t, err)

	go func() { _ = srv.Start() }()
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })

	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return srv, healthpb.NewHealthClient(conn)
}

func check(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestServer_HealthFollowsReadiness(t *testing.T) {
	rec := &recordingRecorder{}
	srv, client := startBufconn(t, WithLogger(testutil.NewMockLogger()), WithRecorder(rec))

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, AnnotationServiceName))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, ""))

	srv.SetServing(true)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, AnnotationServiceName))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ""))

	srv.SetServing(false)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, AnnotationServiceName))

	records := rec.get()
	require.NotEmpty(t, records)
	assert.Equal(t, rpcRecord{"grpc.health.v1.Health", "Check", "OK"}, records[0])
}

func TestServer_UnknownService(t *testing.T) {
	_, client := startBufconn(t)

	_, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "lorekit.unknown"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestServer_StopBeforeStart(t *testing.T) {
	srv, err := NewServer(config.GRPCConfig{}, WithListener(bufconn.Listen(1024)))
	require.NoError(t, err)
	assert.NoError(t, srv.Stop(context.Background()))
}

func TestServer_DoubleStart(t *testing.T) {
	srv, _ := startBufconn(t)
	require.Eventually(t, func() bool {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		return srv.started
	}, time.Second, 10*time.Millisecond)

	assert.EqualError(t, srv.Start(), "server already started")
}

func TestNewServer_BindsConfiguredPort(t *testing.T) {
	srv, err := NewServer(config.GRPCConfig{Enabled: true, Port: 0})
	require.NoError(t, err)
	defer srv.Stop(context.Background())

	_, port, err := net.SplitHostPort(srv.Addr())
	require.NoError(t, err)
	assert.NotEqual(t, "0", port)
}

func TestRecoveryUnaryInterceptor(t *testing.T) {
	logger := testutil.NewMockLogger()
	interceptor := recoveryUnaryInterceptor(logger)

	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/svc/Boom"},
		func(context.Context, interface{}) (interface{}, error) { panic("boom") })
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.True(t, logger.HasMessage("error", "grpc panic recovered"))

	resp, err := interceptor(context.Background(), "req", &grpc.UnaryServerInfo{FullMethod: "/svc/Ok"},
		func(_ context.Context, req interface{}) (interface{}, error) { return req, nil })
	require.NoError(t, err)
	assert.Equal(t, "req", resp)
}

func TestLoggingUnaryInterceptor(t *testing.T) {
	logger := testutil.NewMockLogger()
	interceptor := loggingUnaryInterceptor(logger)
	failing := func(context.Context, interface{}) (interface{}, error) {
		return nil, status.Error(codes.Unavailable, "down")
	}

	_, _ = interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}, failing)
	assert.Empty(t, logger.GetMessages())

	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/lorekit.Svc/Do"}, failing)
	assert.Equal(t, codes.Unavailable, status.Code(err))
	msg, ok := logger.Find("info", "grpc request")
	require.True(t, ok)
	code, _ := msg.Field("code")
	assert.Equal(t, "Unavailable", code)
}

func TestMetricsUnaryInterceptor_NilRecorder(t *testing.T) {
	wantErr := errors.New("plain")
	_, err := metricsUnaryInterceptor(nil)(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/a.B/C"},
		func(context.Context, interface{}) (interface{}, error) { return nil, wantErr })
	assert.Equal(t, wantErr, err)
}

func TestSplitMethodName(t *testing.T) {
	tests := []struct {
		full, service, method string
	}{
		{"/grpc.health.v1.Health/Check", "grpc.health.v1.Health", "Check"},
		{"/pkg.Svc/Method", "pkg.Svc", "Method"},
		{"NoSlash", "unknown", "NoSlash"},
	}
	for _, tt := range tests {
		service, method := splitMethodName(tt.full)
		assert.Equal(t, tt.service, service, tt.full)
		assert.Equal(t, tt.method, method, tt.full)
	}
}

func TestIsHealthCheck(t *testing.T) {
	assert.True(t, isHealthCheck("/grpc.health.v1.Health/Watch"))
	assert.False(t, isHealthCheck("/lorekit.annotation/Parse"))
}
