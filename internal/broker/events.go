package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing storefront events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// NewBaseEvent stamps a new event of the given type.
func NewBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

// PublishOrderPlaced publishes OrderPlaced event
func (ep *EventPublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	return ep.producer.PublishEvent(ctx, "order-"+event.OrderID, event)
}

// PublishCatalogRefreshRequested publishes CatalogRefreshRequested event
func (ep *EventPublisher) PublishCatalogRefreshRequested(ctx context.Context, event *models.CatalogRefreshRequestedEvent) error {
	return ep.producer.PublishEvent(ctx, "catalog", event)
}

// PublishCatalogRefreshed publishes CatalogRefreshed event
func (ep *EventPublisher) PublishCatalogRefreshed(ctx context.Context, event *models.CatalogRefreshedEvent) error {
	return ep.producer.PublishEvent(ctx, "catalog", event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onCatalogRefreshRequested func(context.Context, *models.CatalogRefreshRequestedEvent) error
	onOrderPlaced             func(context.Context, *models.OrderPlacedEvent) error
	logger                    *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnCatalogRefreshRequested registers a handler for CatalogRefreshRequested events
func (eh *EventHandler) OnCatalogRefreshRequested(handler func(context.Context, *models.CatalogRefreshRequestedEvent) error) {
	eh.onCatalogRefreshRequested = handler
}

// OnOrderPlaced registers a handler for OrderPlaced events
func (eh *EventHandler) OnOrderPlaced(handler func(context.Context, *models.OrderPlacedEvent) error) {
	eh.onOrderPlaced = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeCatalogRefreshRequested:
		if eh.onCatalogRefreshRequested != nil {
			var event models.CatalogRefreshRequestedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal CatalogRefreshRequested event: %w", err)
			}
			return eh.onCatalogRefreshRequested(ctx, &event)
		}

	case models.EventTypeOrderPlaced:
		if eh.onOrderPlaced != nil {
			var event models.OrderPlacedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderPlaced event: %w", err)
			}
			return eh.onOrderPlaced(ctx, &event)
		}

	default:
		eh.logger.Debug("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
