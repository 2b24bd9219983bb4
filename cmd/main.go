package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	grpcctx "github.com/dtroode/easygrocer/internal/api/grpc/context"
	"github.com/dtroode/easygrocer/internal/api/grpc/handler"
	"github.com/dtroode/easygrocer/internal/api/grpc/router"
	grpcServer "github.com/dtroode/easygrocer/internal/api/grpc/server"
	"github.com/dtroode/easygrocer/internal/config"
	"github.com/dtroode/easygrocer/internal/logger"
	"github.com/dtroode/easygrocer/internal/mirror"
	"github.com/dtroode/easygrocer/internal/model"
	"github.com/dtroode/easygrocer/internal/repository/memory"
	"github.com/dtroode/easygrocer/internal/repository/postgres"
	"github.com/dtroode/easygrocer/internal/server"
	"github.com/dtroode/easygrocer/internal/service"
	storage "github.com/dtroode/easygrocer/internal/storage/minio"
	"github.com/dtroode/easygrocer/internal/token"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

// imageFields names the field holding an uploaded image per collection.
var imageFields = map[string]string{
	model.CollectionProducts: "imageUrl",
	model.CollectionUsers:    "photoURL",
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	store, closeStore := openStore(ctx, cfg, logger)
	defer closeStore()

	tokenService := service.NewTokenService(token.NewJWT(cfg.JWT.Secret), logger)
	ctxMgr := grpcctx.NewManager()

	healthServer := health.NewServer()
	healthServer.SetServingStatus(handler.MirrorServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	var janitor *service.AssetJanitor
	if cfg.Storage.Enabled {
		storageClient, err := storage.Connect(ctx, storage.Options{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			UseSSL:    cfg.Storage.UseSSL,
		})
		if err != nil {
			logger.Fatal("failed to initialize storage client", "error", err)
		}
		asset := service.NewAsset(storageClient, cfg.Storage.PublicBaseURL(), logger)
		janitor = service.NewAssetJanitor(asset, logger)
	}

	sub := startMirror(ctx, cfg.Mirror.Collection, store, healthServer, janitor, logger)
	defer func() {
		if err := sub.Close(); err != nil {
			logger.Error("failed to close mirror", "error", err)
		}
	}()

	r := router.New(store, tokenService, ctxMgr, healthServer, cfg.Mirror.Collections, logger)
	grpcServer := grpcServer.NewGRPCServer(r.Register(), fmt.Sprintf(":%s", cfg.GRPC.Port))

	var sl model.SecurityLayer
	if cfg.GRPC.EnableHTTPS {
		sl = server.NewTLSListener(cfg.GRPC.CertFileName, cfg.GRPC.PrivateKeyFileName)
	} else {
		sl = server.NewPlainListener()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func(s model.Server) {
		defer wg.Done()
		logger.Info("Starting server on", "address", s.Address())
		if err := s.Start(sl); err != nil {
			logger.Error("failed to start server", "error", err)
			stop()
		}
	}(grpcServer)

	logAppVersion()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")
	healthServer.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := grpcServer.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err, "address", grpcServer.Address())
	}

	wg.Wait()
	logger.Info("shutdown complete")
}

func openStore(ctx context.Context, cfg *config.Config, logger *logger.Logger) (model.DocumentStore, func()) {
	if cfg.Store == config.StoreMemory {
		logger.Warn("using in-memory store, documents are lost on exit")
		return memory.NewDocumentRepository(), func() {}
	}

	db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("failed to initialize storage", "error", err)
	}

	notifier := postgres.NewNotifier(db, logger)
	if err := notifier.Start(ctx); err != nil {
		db.Close()
		logger.Fatal("failed to start change notifier", "error", err)
	}

	return postgres.NewDocumentRepository(db, notifier), func() {
		notifier.Close()
		db.Close()
	}
}

// startMirror keeps a live view of collection. Health follows the view and
// every snapshot is swept for orphaned images.
func startMirror(
	ctx context.Context,
	collection string,
	store model.DocumentStore,
	healthServer *health.Server,
	janitor *service.AssetJanitor,
	logger *logger.Logger,
) *mirror.Subscription[model.Document] {
	logger = logger.With("collection", collection)
	sub := mirror.New(store, collection, mirror.Documents, logger)

	sub.OnSnapshot(func(docs []model.Document) {
		logger.Info("collection changed", "documents", len(docs))
		healthServer.SetServingStatus(handler.MirrorServiceName, healthpb.HealthCheckResponse_SERVING)

		field, ok := imageFields[collection]
		if janitor == nil || !ok {
			return
		}
		urls := make([]string, 0, len(docs))
		for _, doc := range docs {
			urls = append(urls, doc.Fields.String(field))
		}
		sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		janitor.Sweep(sweepCtx, urls)
	})
	sub.OnError(func(err error) {
		logger.Error("mirror failed", "error", err)
		healthServer.SetServingStatus(handler.MirrorServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	})

	if err := sub.Open(ctx); err != nil {
		logger.Fatal("failed to open mirror", "error", err)
	}
	return sub
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}
