package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/broker"
	"storefront/internal/cart"
	"storefront/internal/messaging"
	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrOutOfStock      = errors.New("product out of stock")
	ErrInvalidDelivery = errors.New("invalid delivery method")
	ErrEventsDisabled  = errors.New("event publishing is disabled")
)

// CatalogSource is the read side of the catalog.
type CatalogSource interface {
	Catalog(ctx context.Context) models.CatalogSnapshot
	Featured(ctx context.Context) []models.Product
	Available(ctx context.Context) []models.Product
	ByID(ctx context.Context, id string) (models.Product, bool)
	Refresh(ctx context.Context) models.CatalogSnapshot
}

// EventPublisher announces placed orders and asks other instances to refresh the catalog.
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishCatalogRefreshRequested(ctx context.Context, event *models.CatalogRefreshRequestedEvent) error
}

// StoreInfo is the static store description shown by the presentation layer.
type StoreInfo struct {
	Name      string `json:"name"`
	Address   string `json:"address"`
	Hours     string `json:"hours"`
	Currency  string `json:"currency"`
	Recipient string `json:"recipient"`
}

// CheckoutResult is what the presentation needs to hand the order to the messaging app.
type CheckoutResult struct {
	Order   models.Order `json:"order"`
	Message string       `json:"message"`
	Link    string       `json:"link"`
}

// Storefront is the command surface the presentation layer drives.
type Storefront struct {
	source    CatalogSource
	ledger    *cart.Ledger
	formatter *messaging.Formatter
	publisher EventPublisher
	info      StoreInfo
	endpoint  string
	logger    *zap.Logger
}

// NewStorefront creates a new storefront. publisher may be nil.
func NewStorefront(
	source CatalogSource,
	ledger *cart.Ledger,
	formatter *messaging.Formatter,
	publisher EventPublisher,
	info StoreInfo,
	messagingEndpoint string,
) *Storefront {
	logger := util.GetLogger()

	if !messaging.ValidPhone(info.Recipient) {
		logger.Warn("Messaging recipient does not look like a phone number", zap.String("recipient", info.Recipient))
	}
	info.Recipient = messaging.NormalizePhone(info.Recipient)

	return &Storefront{
		source:    source,
		ledger:    ledger,
		formatter: formatter,
		publisher: publisher,
		info:      info,
		endpoint:  messagingEndpoint,
		logger:    logger,
	}
}

// Catalog returns the catalog view.
func (s *Storefront) Catalog(ctx context.Context) CatalogView {
	return BuildCatalogView(s.source.Catalog(ctx), s.formatter)
}

// Featured returns in-stock featured products.
func (s *Storefront) Featured(ctx context.Context) []ProductView {
	return buildProductViews(s.source.Featured(ctx), s.formatter)
}

// Available returns in-stock products.
func (s *Storefront) Available(ctx context.Context) []ProductView {
	return buildProductViews(s.source.Available(ctx), s.formatter)
}

// Product returns one product view.
func (s *Storefront) Product(ctx context.Context, id string) (ProductView, error) {
	p, ok := s.source.ByID(ctx, id)
	if !ok {
		return ProductView{}, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	return BuildProductView(p, s.formatter), nil
}

// RefreshCatalog drops the cached catalog and reloads it.
func (s *Storefront) RefreshCatalog(ctx context.Context) CatalogView {
	snap := s.source.Refresh(ctx)
	s.logger.Info("Catalog refreshed",
		zap.String("origin", snap.Origin),
		zap.Int("products", len(snap.Products)))
	return BuildCatalogView(snap, s.formatter)
}

// RequestCatalogRefresh publishes CATALOG_REFRESH_REQUESTED for the catalog workers.
func (s *Storefront) RequestCatalogRefresh(ctx context.Context, reason string) error {
	if s.publisher == nil {
		return ErrEventsDisabled
	}

	event := &models.CatalogRefreshRequestedEvent{
		BaseEvent: broker.NewBaseEvent(models.EventTypeCatalogRefreshRequested),
		Reason:    reason,
	}
	if err := s.publisher.PublishCatalogRefreshRequested(ctx, event); err != nil {
		return fmt.Errorf("failed to publish CatalogRefreshRequested event: %w", err)
	}
	return nil
}

// Cart returns the cart view.
func (s *Storefront) Cart() CartView {
	return BuildCartView(s.ledger.Lines(), s.ledger.Delivery(), s.ledger.IsCheckoutValid(), s.formatter)
}

// AddToCart adds quantity units of the catalog product id.
func (s *Storefront) AddToCart(ctx context.Context, id string, quantity int) (CartView, error) {
	ctx, span := util.StartSpan(ctx, "Storefront.AddToCart")
	defer span.End()

	p, ok := s.source.ByID(ctx, id)
	if !ok {
		return CartView{}, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	if !p.InStock() {
		return CartView{}, fmt.Errorf("%w: %s", ErrOutOfStock, id)
	}

	s.ledger.AddLine(p, quantity)
	s.logger.Info("Product added to cart",
		zap.String("product_id", p.ID),
		zap.String("name", p.Name),
		zap.Int("quantity", quantity))
	return s.Cart(), nil
}

// UpdateQuantity sets a line quantity. Zero or less removes the line.
func (s *Storefront) UpdateQuantity(id string, quantity int) CartView {
	s.ledger.SetQuantity(id, quantity)
	return s.Cart()
}

// RemoveItem removes a line.
func (s *Storefront) RemoveItem(id string) CartView {
	s.ledger.RemoveLine(id)
	return s.Cart()
}

// ClearCart empties the cart.
func (s *Storefront) ClearCart() CartView {
	s.ledger.Clear()
	return s.Cart()
}

// SetDelivery changes the method, the address, or both as a single cart mutation.
// An empty method keeps the current one; a new method without an address forgets the
// old address; a nil address otherwise keeps it.
func (s *Storefront) SetDelivery(method models.DeliveryMethod, address *string) (CartView, error) {
	if method != "" && !method.Valid() {
		return CartView{}, fmt.Errorf("%w: %q", ErrInvalidDelivery, method)
	}

	s.ledger.UpdateDelivery(func(info models.DeliveryInfo) models.DeliveryInfo {
		if method != "" {
			info = models.DeliveryInfo{Method: method}
		}
		if address != nil {
			info.Address = *address
		}
		return info
	})
	return s.Cart(), nil
}

// SetDeliveryMethod switches the delivery method and forgets any address.
func (s *Storefront) SetDeliveryMethod(method models.DeliveryMethod) (CartView, error) {
	if method == "" {
		return CartView{}, fmt.Errorf("%w: empty", ErrInvalidDelivery)
	}
	return s.SetDelivery(method, nil)
}

// SetAddress sets the delivery address and keeps the current method.
func (s *Storefront) SetAddress(address string) CartView {
	view, _ := s.SetDelivery("", &address)
	return view
}

// Subscribe forwards cart change notifications.
func (s *Storefront) Subscribe(fn cart.Listener) func() {
	return s.ledger.Subscribe(fn)
}

// ProceedToCheckout takes the order and clears the cart in one step, then renders the
// message and deep link and announces the order. An invalid cart is left untouched.
func (s *Storefront) ProceedToCheckout(ctx context.Context) (*CheckoutResult, error) {
	ctx, span := util.StartSpan(ctx, "Storefront.ProceedToCheckout")
	defer span.End()

	order, err := s.ledger.CheckoutAndClear()
	if err != nil {
		util.CheckoutsRejectedTotal.WithLabelValues(rejectReason(err)).Inc()
		s.logger.Info("Checkout rejected", zap.Error(err))
		return nil, err
	}

	message := s.formatter.FormatOrderMessage(order)
	result := &CheckoutResult{
		Order:   order,
		Message: message,
		Link:    messaging.DeepLink(s.endpoint, s.info.Recipient, message),
	}

	if s.publisher != nil {
		if err := s.publisher.PublishOrderPlaced(ctx, s.orderPlacedEvent(order, message)); err != nil {
			s.logger.Error("Failed to publish OrderPlaced event",
				zap.String("order_id", order.ID),
				zap.Error(err))
		}
	}

	util.CheckoutsTotal.WithLabelValues(string(order.Delivery.Method)).Inc()
	s.logger.Info("Order checked out",
		zap.String("order_id", order.ID),
		zap.String("delivery", string(order.Delivery.Method)),
		zap.String("total", order.Total.String()),
		zap.Int("lines", len(order.Lines)))

	return result, nil
}

// TestMessage returns the messaging test message and its deep link.
func (s *Storefront) TestMessage() (string, string) {
	message := s.formatter.FormatTestMessage()
	return message, messaging.DeepLink(s.endpoint, s.info.Recipient, message)
}

// StoreInfo returns the store description.
func (s *Storefront) StoreInfo() StoreInfo {
	return s.info
}

func (s *Storefront) orderPlacedEvent(order models.Order, message string) *models.OrderPlacedEvent {
	items := make([]models.OrderItemData, 0, len(order.Lines))
	for _, line := range order.Lines {
		items = append(items, models.OrderItemData{
			ProductID: line.Product.ID,
			Name:      line.Product.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.Product.Price,
		})
	}

	return &models.OrderPlacedEvent{
		BaseEvent: broker.NewBaseEvent(models.EventTypeOrderPlaced),
		OrderID:   order.ID,
		Delivery:  order.Delivery,
		Total:     order.Total,
		Items:     items,
		Message:   message,
		Recipient: strings.TrimPrefix(s.info.Recipient, "+"),
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, cart.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, cart.ErrMissingAddress):
		return "missing_address"
	default:
		return "invalid"
	}
}
