package handler

import (
	"slices"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dtroode/easygrocer/internal/logger"
	"github.com/dtroode/easygrocer/internal/mirror"
	"github.com/dtroode/easygrocer/internal/model"
)

var _ MirrorServer = (*Mirror)(nil)

// Mirror streams live snapshots of a collection to authenticated clients.
// Each stream owns its own subscription, closed when the stream ends.
type Mirror struct {
	store          model.DocumentStore
	contextManager model.ContextManager
	collections    []string
	logger         *logger.Logger
}

// NewMirror creates a Mirror handler that serves the given collections.
func NewMirror(store model.DocumentStore, contextManager model.ContextManager, collections []string, logger *logger.Logger) *Mirror {
	return &Mirror{
		store:          store,
		contextManager: contextManager,
		collections:    collections,
		logger:         logger,
	}
}

// Watch sends the current snapshot and then one message per change. When
// the client falls behind, intermediate snapshots are dropped and only the
// latest is sent. Profiles are filtered down to the caller's own document.
func (h *Mirror) Watch(req *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	ctx := stream.Context()

	actorID, ok := h.contextManager.GetActorIDFromContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing actor")
	}

	collection := req.GetFields()["collection"].GetStringValue()
	if collection == "" {
		return handleError(&model.ValidationError{Field: "collection", Reason: "is required"})
	}
	if !slices.Contains(h.collections, collection) {
		return status.Errorf(codes.PermissionDenied, "collection %q is not served", collection)
	}

	log := h.logger.With("actor", actorID, "collection", collection)
	log.Debug("watch started")

	sub := mirror.New(h.store, collection, mirror.Documents, log)

	latest := make(chan []model.Document, 1)
	failed := make(chan error, 1)
	sub.OnSnapshot(func(docs []model.Document) {
		select {
		case <-latest:
		default:
		}
		latest <- docs
	})
	sub.OnError(func(err error) {
		select {
		case failed <- err:
		default:
		}
	})

	if err := sub.Open(ctx); err != nil {
		return handleError(err)
	}
	defer func() { _ = sub.Close() }()

	for {
		select {
		case <-ctx.Done():
			log.Debug("watch ended", "reason", ctx.Err())
			return nil
		case err := <-failed:
			log.Error("watch subscription failed", "error", err)
			return handleError(err)
		case docs := <-latest:
			if collection == model.CollectionUsers {
				docs = ownDocuments(docs, actorID)
			}
			msg, err := EncodeSnapshot(model.Snapshot{Collection: collection, Documents: docs})
			if err != nil {
				log.Error("failed to encode snapshot", "error", err)
				return status.Error(codes.Internal, "internal server error")
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

func ownDocuments(docs []model.Document, actorID string) []model.Document {
	own := make([]model.Document, 0, 1)
	for _, d := range docs {
		if d.Key == actorID {
			own = append(own, d)
		}
	}
	return own
}
