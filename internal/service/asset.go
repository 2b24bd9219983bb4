package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/dtroode/easygrocer/internal/logger"
	"github.com/dtroode/easygrocer/internal/model"
)

// Asset folders.
const (
	FolderProducts = "products"
	FolderProfiles = "profiles"
)

// ErrNotAnImage is returned when an upload is not an image.
var ErrNotAnImage = errors.New("asset is not an image")

// Asset stores images in object storage and hands out their public URLs.
type Asset struct {
	storage   model.Storage
	publicURL string
	logger    *logger.Logger
}

// NewAsset creates an asset service. publicURL is the base under which
// stored objects are reachable, typically endpoint plus bucket.
func NewAsset(storage model.Storage, publicURL string, logger *logger.Logger) *Asset {
	return &Asset{
		storage:   storage,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger,
	}
}

// UploadImage stores r under folder and returns the public URL. The object
// name is random; only the extension of filename is kept.
func (s *Asset) UploadImage(ctx context.Context, folder, filename string, r io.Reader, contentType string) (string, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return "", ErrNotAnImage
	}

	key := s.generateKey(folder, filename)
	if err := s.storage.Upload(ctx, key, r, contentType); err != nil {
		s.logger.Error("failed to upload image",
			"folder", folder,
			"key", key,
			"error", err)
		return "", fmt.Errorf("failed to upload image: %w", err)
	}

	s.logger.Debug("image uploaded", "key", key)
	return s.URL(key), nil
}

// Remove deletes the object behind url. URLs outside publicURL are ignored.
func (s *Asset) Remove(ctx context.Context, url string) error {
	key, ok := s.KeyFromURL(url)
	if !ok {
		return nil
	}

	if err := s.storage.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}

// URL returns the public URL of key.
func (s *Asset) URL(key string) string {
	return s.publicURL + "/" + key
}

// KeyFromURL is the inverse of URL.
func (s *Asset) KeyFromURL(url string) (string, bool) {
	key, ok := strings.CutPrefix(url, s.publicURL+"/")
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

func (s *Asset) generateKey(folder, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return path.Join(folder, uuid.NewString()+ext)
}
