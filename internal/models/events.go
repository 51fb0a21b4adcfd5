package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderPlaced             = "ORDER_PLACED"
	EventTypeCatalogRefreshRequested = "CATALOG_REFRESH_REQUESTED"
	EventTypeCatalogRefreshed        = "CATALOG_REFRESHED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacedEvent published after a checkout was handed to the messaging link
type OrderPlacedEvent struct {
	BaseEvent
	OrderID   string          `json:"order_id"`
	Delivery  DeliveryInfo    `json:"delivery"`
	Total     decimal.Decimal `json:"total"`
	Items     []OrderItemData `json:"items"`
	Message   string          `json:"message"`
	Recipient string          `json:"recipient"`
}

// CatalogRefreshRequestedEvent asks every storefront instance to drop its cached catalog
type CatalogRefreshRequestedEvent struct {
	BaseEvent
	Reason string `json:"reason,omitempty"`
}

// CatalogRefreshedEvent published after a refresh completed
type CatalogRefreshedEvent struct {
	BaseEvent
	Origin       string `json:"origin"`
	ProductCount int    `json:"product_count"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}
