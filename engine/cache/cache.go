// Package cache provides a durable page cache keyed by normalized URL, with
// a fail-open no-op fallback so an unavailable store degrades a scan rather
// than failing it.
package cache

import (
	"context"
	"time"

	"github.com/99souls/kycscan/engine/models"
)

// TTL returns how long a page of the given type remains fresh once cached.
// Policy pages change rarely and are cached longest; the homepage and
// marketing pages churn more often.
func TTL(pt models.PageType) time.Duration {
	switch pt {
	case models.PagePrivacyPolicy, models.PageTermsConditions, models.PageRefundPolicy, models.PageShippingDelivery:
		return 7 * 24 * time.Hour
	case models.PageAbout, models.PageContact, models.PageProduct, models.PagePricing:
		return 24 * time.Hour
	case models.PageHome:
		return 6 * time.Hour
	default:
		return time.Hour
	}
}

// PageCache stores and retrieves fetched pages by normalized URL.
type PageCache interface {
	Get(ctx context.Context, normalizedURL string) (*models.PageArtifact, bool, error)
	Put(ctx context.Context, artifact *models.PageArtifact) error
	Close() error
}

// Put only stores status-200 artifacts; errors and non-2xx responses are
// never cached, so a transient failure doesn't poison future scans.
func shouldCache(a *models.PageArtifact) bool {
	return a != nil && a.Status == 200 && a.Error == nil
}
