package service

import (
	"context"
	"sync"

	"github.com/dtroode/easygrocer/internal/logger"
)

// AssetJanitor removes images that no longer back any document. It compares
// consecutive snapshots of image URLs and deletes the ones that disappeared,
// either with their document or because the document switched images.
type AssetJanitor struct {
	asset  *Asset
	logger *logger.Logger

	mu     sync.Mutex
	primed bool
	seen   map[string]struct{}
}

func NewAssetJanitor(asset *Asset, logger *logger.Logger) *AssetJanitor {
	return &AssetJanitor{
		asset:  asset,
		logger: logger,
		seen:   make(map[string]struct{}),
	}
}

// Sweep records urls as the current set of referenced images and removes
// what the previous call referenced but this one does not. The first call
// only records. It returns the number of removed objects.
func (j *AssetJanitor) Sweep(ctx context.Context, urls []string) int {
	j.mu.Lock()
	defer j.mu.Unlock()

	current := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		if u != "" {
			current[u] = struct{}{}
		}
	}

	if !j.primed {
		j.primed = true
		j.seen = current
		return 0
	}

	removed := 0
	for u := range j.seen {
		if _, ok := current[u]; ok {
			continue
		}
		if _, ours := j.asset.KeyFromURL(u); !ours {
			continue
		}
		if err := j.asset.Remove(ctx, u); err != nil {
			// keep it so the next sweep retries
			j.logger.Warn("failed to remove orphaned image", "url", u, "error", err)
			current[u] = struct{}{}
			continue
		}
		removed++
	}
	j.seen = current

	if removed > 0 {
		j.logger.Info("removed orphaned images", "count", removed)
	}
	return removed
}
