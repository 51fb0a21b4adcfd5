package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is one sellable catalog record. Records are values: the cart copies them
// and nothing mutates them after parsing.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	ImageURL    string          `json:"image_url"`
	Featured    bool            `json:"featured"`
	Category    string          `json:"category,omitempty"`
}

// InStock reports whether the product can currently be sold.
func (p Product) InStock() bool {
	return p.Stock > 0
}

// Snapshot origins
const (
	OriginFeed     = "feed"
	OriginCache    = "cache"
	OriginFallback = "fallback"
)

// CatalogSnapshot is the ordered result of one fetch-or-fallback cycle.
type CatalogSnapshot struct {
	Products  []Product `json:"products"`
	FetchedAt time.Time `json:"fetched_at"`
	Origin    string    `json:"origin"`
}

// Clone returns a copy whose product slice is not shared with s.
func (s CatalogSnapshot) Clone() CatalogSnapshot {
	products := make([]Product, len(s.Products))
	copy(products, s.Products)
	return CatalogSnapshot{
		Products:  products,
		FetchedAt: s.FetchedAt,
		Origin:    s.Origin,
	}
}

// IsFallback reports whether the snapshot came from the built-in fixture.
func (s CatalogSnapshot) IsFallback() bool {
	return s.Origin == OriginFallback
}

// CartLine pairs a product with a quantity of at least one.
type CartLine struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// Subtotal returns price × quantity.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// DeliveryMethod is how the customer receives the order.
type DeliveryMethod string

// Delivery methods
const (
	DeliveryStorePickup  DeliveryMethod = "store_pickup"
	DeliveryHomeDelivery DeliveryMethod = "home_delivery"
)

// Valid reports whether m is a known delivery method.
func (m DeliveryMethod) Valid() bool {
	return m == DeliveryStorePickup || m == DeliveryHomeDelivery
}

// DeliveryInfo carries the chosen method. Address is only meaningful for home delivery.
type DeliveryInfo struct {
	Method  DeliveryMethod `json:"method"`
	Address string         `json:"address,omitempty"`
}

// Order is the immutable checkout snapshot.
type Order struct {
	ID        string          `json:"id"`
	Lines     []CartLine      `json:"lines"`
	Delivery  DeliveryInfo    `json:"delivery"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"created_at"`
}

// CartChangedEvent is pushed to cart listeners after every mutation.
type CartChangedEvent struct {
	Lines     []CartLine      `json:"lines"`
	Total     decimal.Decimal `json:"total"`
	LineCount int             `json:"line_count"`
}
