package model

import (
	"context"
	"io"
)

// Storage holds uploaded images under object keys. Deleting a missing key
// is not an error.
type Storage interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) error
	Delete(ctx context.Context, key string) error
}
