package handler

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/easygrocer/internal/model"
)

func handleError(err error) error {
	var validationErr *model.ValidationError
	var subscriptionErr *model.SubscriptionError

	switch {
	case errors.Is(err, model.ErrNotFound):
		return status.Error(codes.NotFound, "document not found")
	case errors.As(err, &validationErr):
		return status.Error(codes.InvalidArgument, validationErr.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "canceled")
	case errors.As(err, &subscriptionErr):
		return status.Error(codes.Unavailable, "subscription failed")
	default:
		return status.Error(codes.Internal, "internal server error")
	}
}
