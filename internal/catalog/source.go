// Package catalog serves the product catalog from the remote feed, a cache, or the
// built-in fallback. Catalog never fails: feed problems degrade to the fallback.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"storefront/internal/feed"
	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	ErrFeedUnavailable = errors.New("catalog: feed unavailable")
	ErrFeedMalformed   = errors.New("catalog: feed has no usable records")
)

const maxFeedBytes = 10 << 20

// Source fetches, parses and caches the catalog feed.
type Source struct {
	feedURL  string
	expiry   time.Duration
	client   *http.Client
	cache    SnapshotCache
	fallback []models.Product
	group    singleflight.Group
	logger   *zap.Logger
	now      func() time.Time
}

// NewSource creates a catalog source. A nil client uses http.DefaultClient, a nil cache
// keeps snapshots in memory and an empty fallback uses the embedded catalog.
func NewSource(
	feedURL string,
	expiry time.Duration,
	client *http.Client,
	cache SnapshotCache,
	fallback []models.Product,
) *Source {
	if client == nil {
		client = http.DefaultClient
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	if len(fallback) == 0 {
		fallback = DefaultFallback()
	}

	return &Source{
		feedURL:  feedURL,
		expiry:   expiry,
		client:   client,
		cache:    cache,
		fallback: fallback,
		logger:   util.GetLogger(),
		now:      time.Now,
	}
}

// Catalog returns the current snapshot: a fresh cached one without I/O, otherwise the
// feed, otherwise the fallback catalog. Fallback results never touch the cache.
func (s *Source) Catalog(ctx context.Context) models.CatalogSnapshot {
	ctx, span := util.StartSpan(ctx, "CatalogSource.Catalog")
	defer span.End()

	if snap, ok := s.fresh(ctx); ok {
		util.CatalogCacheHitsTotal.Inc()
		return snap
	}

	v, _, _ := s.group.Do("catalog", func() (interface{}, error) {
		if snap, ok := s.fresh(ctx); ok {
			return snap, nil
		}
		return s.fetchOrFallback(ctx), nil
	})

	return v.(models.CatalogSnapshot).Clone()
}

// Featured returns in-stock products flagged as featured.
func (s *Source) Featured(ctx context.Context) []models.Product {
	return filter(s.Catalog(ctx).Products, func(p models.Product) bool {
		return p.Featured && p.InStock()
	})
}

// Available returns in-stock products.
func (s *Source) Available(ctx context.Context) []models.Product {
	return filter(s.Catalog(ctx).Products, models.Product.InStock)
}

// ByID returns the first product with the given id.
func (s *Source) ByID(ctx context.Context, id string) (models.Product, bool) {
	for _, p := range s.Catalog(ctx).Products {
		if p.ID == id {
			return p, true
		}
	}
	return models.Product{}, false
}

// Invalidate drops the cached snapshot so the next read goes to the feed.
func (s *Source) Invalidate(ctx context.Context) error {
	if err := s.cache.Invalidate(ctx); err != nil {
		return fmt.Errorf("failed to invalidate catalog cache: %w", err)
	}
	return nil
}

// Refresh invalidates the cache and reloads the catalog.
func (s *Source) Refresh(ctx context.Context) models.CatalogSnapshot {
	if err := s.Invalidate(ctx); err != nil {
		s.logger.Warn("Catalog refresh could not clear cache", zap.Error(err))
	}
	return s.Catalog(ctx)
}

func (s *Source) fresh(ctx context.Context) (models.CatalogSnapshot, bool) {
	cached, err := s.cache.Load(ctx)
	if err != nil {
		s.logger.Warn("Catalog cache read failed, treating as miss", zap.Error(err))
		return models.CatalogSnapshot{}, false
	}
	if cached == nil || s.now().Sub(cached.FetchedAt) >= s.expiry {
		return models.CatalogSnapshot{}, false
	}

	snap := cached.Clone()
	snap.Origin = models.OriginCache
	return snap, true
}

func (s *Source) fetchOrFallback(ctx context.Context) models.CatalogSnapshot {
	fetchedAt := s.now()
	start := time.Now()

	s.logger.Info("Loading catalog from feed", zap.String("url", s.feedURL))
	products, err := s.fetch(ctx)
	util.CatalogFetchLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		reason := "unavailable"
		if errors.Is(err, ErrFeedMalformed) {
			reason = "malformed"
			s.logger.Warn("Feed has no usable products, serving fallback catalog", zap.Error(err))
		} else {
			s.logger.Error("Failed to fetch catalog feed, serving fallback catalog", zap.Error(err))
		}
		util.CatalogFetchTotal.WithLabelValues(reason).Inc()
		util.CatalogFallbackTotal.WithLabelValues(reason).Inc()
		return s.fallbackSnapshot()
	}

	snap := models.CatalogSnapshot{
		Products:  products,
		FetchedAt: fetchedAt,
		Origin:    models.OriginFeed,
	}
	if err := s.cache.Save(ctx, snap); err != nil {
		s.logger.Warn("Failed to cache catalog snapshot", zap.Error(err))
	}

	util.CatalogFetchTotal.WithLabelValues("success").Inc()
	util.CatalogProducts.Set(float64(len(products)))
	s.logger.Info("Catalog loaded from feed", zap.Int("products", len(products)))
	return snap
}

func (s *Source) fetch(ctx context.Context) (products []models.Product, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic while loading feed: %v", ErrFeedUnavailable, r)
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrFeedUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read body: %v", ErrFeedUnavailable, err)
	}

	products, stats := feed.ParseWithStats(string(body))
	util.FeedRowsSkippedTotal.WithLabelValues("short_row").Add(float64(stats.SkippedShort))
	util.FeedRowsSkippedTotal.WithLabelValues("missing_id_or_name").Add(float64(stats.SkippedInvalid))

	if len(products) == 0 {
		return nil, fmt.Errorf("%w: %d bytes, %d rows", ErrFeedMalformed, len(body), stats.Rows)
	}
	return products, nil
}

func (s *Source) fallbackSnapshot() models.CatalogSnapshot {
	products := make([]models.Product, len(s.fallback))
	copy(products, s.fallback)

	return models.CatalogSnapshot{
		Products:  products,
		FetchedAt: s.now(),
		Origin:    models.OriginFallback,
	}
}

func filter(products []models.Product, keep func(models.Product) bool) []models.Product {
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}
