package router

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	grpcctx "github.com/dtroode/easygrocer/internal/api/grpc/context"
	"github.com/dtroode/easygrocer/internal/api/grpc/handler"
	"github.com/dtroode/easygrocer/internal/model"
	"github.com/dtroode/easygrocer/internal/repository/memory"
	"github.com/dtroode/easygrocer/internal/service"
	"github.com/dtroode/easygrocer/internal/testutil"
	"github.com/dtroode/easygrocer/internal/token"
)

func TestRouter_Register(t *testing.T) {
	t.Parallel()

	lg := testutil.MakeNoopLogger()
	r := New(memory.NewDocumentRepository(), nil, grpcctx.NewManager(), nil, nil, lg)
	s := r.Register()
	if s == nil {
		t.Fatalf("expected non-nil grpc server")
	}
	assert.Contains(t, s.GetServiceInfo(), handler.MirrorServiceName)
}

func dial(t *testing.T, srv *grpc.Server) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestRouter_AuthAndHealth(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	lg := testutil.MakeNoopLogger()
	jwt := token.NewJWT("secret")
	tokens := service.NewTokenService(jwt, lg)

	store := memory.NewDocumentRepository()
	require.NoError(t, store.MergeOne(ctx, model.CollectionProducts, "p1", model.Fields{"name": "Rice"}))

	hs := health.NewServer()
	hs.SetServingStatus(handler.MirrorServiceName, healthpb.HealthCheckResponse_SERVING)

	r := New(store, tokens, grpcctx.NewManager(), hs, []string{model.CollectionProducts}, lg)
	conn := dial(t, r.Register())

	t.Run("health needs no token", func(t *testing.T) {
		resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: handler.MirrorServiceName})
		require.NoError(t, err)
		assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
	})

	t.Run("watch without token", func(t *testing.T) {
		stream, err := handler.NewMirrorClient(conn).Watch(ctx, model.CollectionProducts)
		require.NoError(t, err)
		_, err = stream.Recv()
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("watch with token", func(t *testing.T) {
		access, err := tokens.Issue("actor-1")
		require.NoError(t, err)

		authCtx := metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+access)
		stream, err := handler.NewMirrorClient(conn).Watch(authCtx, model.CollectionProducts)
		require.NoError(t, err)

		msg, err := stream.Recv()
		require.NoError(t, err)
		snap, err := handler.DecodeSnapshot(msg)
		require.NoError(t, err)
		require.Len(t, snap.Documents, 1)
		assert.Equal(t, "p1", snap.Documents[0].Key)
	})
}
