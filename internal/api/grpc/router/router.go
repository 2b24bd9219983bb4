package router

import (
	"context"
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/selector"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/dtroode/easygrocer/internal/api/grpc/handler"
	"github.com/dtroode/easygrocer/internal/api/grpc/middleware"
	"github.com/dtroode/easygrocer/internal/logger"
	"github.com/dtroode/easygrocer/internal/model"
	"github.com/dtroode/easygrocer/internal/service"
)

// Router builds the daemon's gRPC server.
type Router struct {
	store          model.DocumentStore
	tokenService   *service.TokenService
	contextManager model.ContextManager
	health         *health.Server
	collections    []string
	logger         *logger.Logger
}

// New creates a Router. collections lists what Watch may serve.
func New(
	store model.DocumentStore,
	tokenService *service.TokenService,
	contextManager model.ContextManager,
	health *health.Server,
	collections []string,
	logger *logger.Logger,
) *Router {
	return &Router{
		store:          store,
		tokenService:   tokenService,
		contextManager: contextManager,
		health:         health,
		collections:    collections,
		logger:         logger,
	}
}

// requiresAuth exempts health checks and reflection.
func requiresAuth(_ context.Context, c interceptors.CallMeta) bool {
	method := c.FullMethod()
	return !strings.HasPrefix(method, "/grpc.health.v1.Health/") &&
		!strings.HasPrefix(method, "/grpc.reflection.")
}

// Register builds the server with recovery, logging and authentication
// interceptors and registers all services.
func (r *Router) Register() *grpc.Server {
	logging := middleware.NewLogging(r.logger)
	authenticate := middleware.NewAuthenticate(r.tokenService, r.contextManager, r.logger)
	recoveryOpt := recovery.WithRecoveryHandler(middleware.NewRecoveryHandler(r.logger))

	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			recovery.UnaryServerInterceptor(recoveryOpt),
			logging.HandleGRPC,
			selector.UnaryServerInterceptor(
				auth.UnaryServerInterceptor(authenticate.AuthFunc),
				selector.MatchFunc(requiresAuth),
			),
		),
		grpc.ChainStreamInterceptor(
			recovery.StreamServerInterceptor(recoveryOpt),
			logging.HandleStream,
			selector.StreamServerInterceptor(
				auth.StreamServerInterceptor(authenticate.AuthFunc),
				selector.MatchFunc(requiresAuth),
			),
		),
	)
	r.registerMirrorRoutes(s)
	r.registerHealth(s)
	reflection.Register(s)

	return s
}

func (r *Router) registerMirrorRoutes(server *grpc.Server) {
	mirrorHandler := handler.NewMirror(r.store, r.contextManager, r.collections, r.logger)
	server.RegisterService(&handler.MirrorServiceDesc, mirrorHandler)
}

func (r *Router) registerHealth(server *grpc.Server) {
	if r.health == nil {
		return
	}
	healthpb.RegisterHealthServer(server, r.health)
}
