package worker

import (
	"context"
	"fmt"

	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// CatalogRefresher reloads the catalog bypassing the cache.
type CatalogRefresher interface {
	Refresh(ctx context.Context) models.CatalogSnapshot
}

// RefreshedPublisher announces completed refreshes.
type RefreshedPublisher interface {
	PublishCatalogRefreshed(ctx context.Context, event *models.CatalogRefreshedEvent) error
}

// CatalogWorker refreshes the catalog when a refresh request arrives on the event topic.
type CatalogWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	source       CatalogRefresher
	publisher    RefreshedPublisher
	logger       *zap.Logger
}

// NewCatalogWorker creates a new catalog worker. publisher may be nil.
func NewCatalogWorker(
	consumer *broker.Consumer,
	source CatalogRefresher,
	publisher RefreshedPublisher,
) *CatalogWorker {
	w := &CatalogWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		source:       source,
		publisher:    publisher,
		logger:       util.GetLogger(),
	}

	w.eventHandler.OnCatalogRefreshRequested(w.HandleRefreshRequested)
	w.eventHandler.OnOrderPlaced(w.handleOrderPlaced)

	return w
}

// Start starts the worker
func (w *CatalogWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting catalog worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *CatalogWorker) Stop() error {
	w.logger.Info("Stopping catalog worker")
	return w.consumer.Close()
}

// HandleRefreshRequested reloads the catalog and publishes CATALOG_REFRESHED.
func (w *CatalogWorker) HandleRefreshRequested(ctx context.Context, event *models.CatalogRefreshRequestedEvent) error {
	ctx, span := util.StartSpan(ctx, "CatalogWorker.HandleRefreshRequested")
	defer span.End()

	w.logger.Info("Catalog refresh requested",
		zap.String("event_id", event.EventID),
		zap.String("reason", event.Reason))

	snap := w.source.Refresh(ctx)

	if w.publisher == nil {
		return nil
	}

	refreshed := &models.CatalogRefreshedEvent{
		BaseEvent:    broker.NewBaseEvent(models.EventTypeCatalogRefreshed),
		Origin:       snap.Origin,
		ProductCount: len(snap.Products),
	}
	if err := w.publisher.PublishCatalogRefreshed(ctx, refreshed); err != nil {
		return fmt.Errorf("failed to publish CatalogRefreshed event: %w", err)
	}
	return nil
}

func (w *CatalogWorker) handleOrderPlaced(_ context.Context, event *models.OrderPlacedEvent) error {
	w.logger.Info("Order placed",
		zap.String("order_id", event.OrderID),
		zap.String("delivery", string(event.Delivery.Method)),
		zap.String("total", event.Total.String()),
		zap.Int("items", len(event.Items)))
	return nil
}
