package cache

import (
	"context"

	"github.com/99souls/kycscan/engine/models"
)

// NoopCache always misses and silently accepts writes. It is the fallback
// used when a durable store is unconfigured or has become unavailable
// mid-scan — caching is an optimization, never a scan dependency.
type NoopCache struct{}

// NewNoopCache returns a cache that never stores or returns anything.
func NewNoopCache() *NoopCache { return &NoopCache{} }

func (NoopCache) Get(_ context.Context, _ string) (*models.PageArtifact, bool, error) {
	return nil, false, nil
}

func (NoopCache) Put(_ context.Context, _ *models.PageArtifact) error {
	return nil
}

func (NoopCache) Close() error { return nil }
