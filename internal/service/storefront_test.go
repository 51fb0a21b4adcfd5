package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"storefront/internal/cart"
	"storefront/internal/messaging"
	"storefront/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSource struct {
	mock.Mock
	products []models.Product
	origin   string
}

func (m *mockSource) snapshot() models.CatalogSnapshot {
	origin := m.origin
	if origin == "" {
		origin = models.OriginFeed
	}
	return models.CatalogSnapshot{Products: m.products, Origin: origin, FetchedAt: time.Now()}
}

func (m *mockSource) Catalog(context.Context) models.CatalogSnapshot {
	return m.snapshot()
}

func (m *mockSource) Featured(context.Context) []models.Product {
	var out []models.Product
	for _, p := range m.products {
		if p.Featured && p.InStock() {
			out = append(out, p)
		}
	}
	return out
}

func (m *mockSource) Available(context.Context) []models.Product {
	var out []models.Product
	for _, p := range m.products {
		if p.InStock() {
			out = append(out, p)
		}
	}
	return out
}

func (m *mockSource) ByID(_ context.Context, id string) (models.Product, bool) {
	for _, p := range m.products {
		if p.ID == id {
			return p, true
		}
	}
	return models.Product{}, false
}

func (m *mockSource) Refresh(ctx context.Context) models.CatalogSnapshot {
	m.Called(ctx)
	return m.snapshot()
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *mockPublisher) PublishCatalogRefreshRequested(ctx context.Context, event *models.CatalogRefreshRequestedEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func testProducts() []models.Product {
	return []models.Product{
		{ID: "X", Name: "Widget", Price: decimal.NewFromInt(1000), Stock: 5, Featured: true},
		{ID: "Y", Name: "Gadget", Price: decimal.NewFromInt(2500), Stock: 0, Featured: true},
		{ID: "Z", Name: "Gizmo", Price: decimal.NewFromInt(15990), Stock: 60},
	}
}

func newTestStorefront(publisher EventPublisher) (*Storefront, *mockSource) {
	source := &mockSource{products: testProducts()}
	sf := NewStorefront(
		source,
		cart.NewLedger(),
		messaging.NewFormatter("Ferretería El Tornillo", "$"),
		publisher,
		StoreInfo{Name: "Ferretería El Tornillo", Recipient: "9 1234 5678", Currency: "CLP"},
		"https://wa.me",
	)
	return sf, source
}

func TestAddToCart(t *testing.T) {
	sf, _ := newTestStorefront(nil)
	ctx := context.Background()

	view, err := sf.AddToCart(ctx, "X", 1)
	require.NoError(t, err)
	view, err = sf.AddToCart(ctx, "X", 2)
	require.NoError(t, err)

	require.Len(t, view.Lines, 1)
	assert.Equal(t, 3, view.Lines[0].Quantity)
	assert.Equal(t, "$3.000", view.TotalFormatted)
	assert.Equal(t, 3, view.LineCount)

	_, err = sf.AddToCart(ctx, "missing", 1)
	assert.ErrorIs(t, err, ErrProductNotFound)

	_, err = sf.AddToCart(ctx, "Y", 1)
	assert.ErrorIs(t, err, ErrOutOfStock)
	assert.Len(t, sf.Cart().Lines, 1)
}

func TestUpdateRemoveClear(t *testing.T) {
	sf, _ := newTestStorefront(nil)
	ctx := context.Background()
	_, _ = sf.AddToCart(ctx, "X", 1)
	_, _ = sf.AddToCart(ctx, "Z", 1)

	view := sf.UpdateQuantity("Z", 4)
	assert.Equal(t, 5, view.LineCount)

	view = sf.UpdateQuantity("X", 0)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, "Z", view.Lines[0].ProductID)

	view = sf.RemoveItem("Z")
	assert.Empty(t, view.Lines)

	_, _ = sf.AddToCart(ctx, "X", 1)
	view = sf.ClearCart()
	assert.Empty(t, view.Lines)
	assert.True(t, view.Total.IsZero())
}

func TestDeliverySelection(t *testing.T) {
	sf, _ := newTestStorefront(nil)
	_, _ = sf.AddToCart(context.Background(), "X", 1)

	view, err := sf.SetDeliveryMethod(models.DeliveryHomeDelivery)
	require.NoError(t, err)
	assert.False(t, view.CheckoutValid)

	view = sf.SetAddress("Calle Falsa 123")
	assert.True(t, view.CheckoutValid)
	assert.Equal(t, models.DeliveryHomeDelivery, view.Delivery.Method)

	// switching method forgets the address
	_, err = sf.SetDeliveryMethod(models.DeliveryStorePickup)
	require.NoError(t, err)
	view, err = sf.SetDeliveryMethod(models.DeliveryHomeDelivery)
	require.NoError(t, err)
	assert.Empty(t, view.Delivery.Address)

	_, err = sf.SetDeliveryMethod("drone")
	assert.ErrorIs(t, err, ErrInvalidDelivery)
}

func TestProceedToCheckout(t *testing.T) {
	publisher := &mockPublisher{}
	publisher.On("PublishOrderPlaced", mock.Anything, mock.MatchedBy(func(e *models.OrderPlacedEvent) bool {
		return e.EventType == models.EventTypeOrderPlaced &&
			e.Total.Equal(decimal.NewFromInt(1000)) &&
			len(e.Items) == 1 && e.Items[0].ProductID == "X" &&
			e.Recipient == "56912345678"
	})).Return(nil)

	sf, _ := newTestStorefront(publisher)
	_, err := sf.AddToCart(context.Background(), "X", 1)
	require.NoError(t, err)

	result, err := sf.ProceedToCheckout(context.Background())
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(1000).Equal(result.Order.Total))
	assert.Contains(t, result.Message, "1 x Widget")
	assert.True(t, strings.HasSuffix(result.Message, "Quedo atento a cualquier confirmación!"))

	link, err := url.Parse(result.Link)
	require.NoError(t, err)
	assert.Equal(t, "wa.me", link.Host)
	assert.Equal(t, "/56912345678", link.Path)
	assert.Equal(t, result.Message, link.Query().Get("text"))

	assert.Empty(t, sf.Cart().Lines)
	publisher.AssertExpectations(t)
}

func TestProceedToCheckoutRejectsInvalidCart(t *testing.T) {
	publisher := &mockPublisher{}
	sf, _ := newTestStorefront(publisher)

	_, err := sf.ProceedToCheckout(context.Background())
	assert.ErrorIs(t, err, cart.ErrInvalidOrder)

	_, _ = sf.AddToCart(context.Background(), "X", 2)
	_, _ = sf.SetDeliveryMethod(models.DeliveryHomeDelivery)
	sf.SetAddress("   ")

	_, err = sf.ProceedToCheckout(context.Background())
	assert.ErrorIs(t, err, cart.ErrMissingAddress)

	view := sf.Cart()
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 2, view.Lines[0].Quantity)
	publisher.AssertNotCalled(t, "PublishOrderPlaced", mock.Anything, mock.Anything)
}

func TestProceedToCheckoutSurvivesPublishFailure(t *testing.T) {
	publisher := &mockPublisher{}
	publisher.On("PublishOrderPlaced", mock.Anything, mock.Anything).Return(errors.New("kafka down"))

	sf, _ := newTestStorefront(publisher)
	_, _ = sf.AddToCart(context.Background(), "X", 1)

	result, err := sf.ProceedToCheckout(context.Background())

	require.NoError(t, err)
	assert.NotEmpty(t, result.Link)
	assert.Empty(t, sf.Cart().Lines)
}

func TestCatalogQueries(t *testing.T) {
	sf, source := newTestStorefront(nil)
	ctx := context.Background()

	catalog := sf.Catalog(ctx)
	assert.Len(t, catalog.Products, 3)
	require.Len(t, catalog.Featured, 1)
	assert.Equal(t, "X", catalog.Featured[0].ID)
	assert.Empty(t, catalog.Notice)

	assert.Len(t, sf.Available(ctx), 2)
	assert.Len(t, sf.Featured(ctx), 1)

	p, err := sf.Product(ctx, "Z")
	require.NoError(t, err)
	assert.Equal(t, "$15.990", p.PriceFormatted)
	assert.Equal(t, "high", p.StockStatus.Status)

	_, err = sf.Product(ctx, "nope")
	assert.ErrorIs(t, err, ErrProductNotFound)

	source.origin = models.OriginFallback
	source.On("Refresh", mock.Anything).Once()
	refreshed := sf.RefreshCatalog(ctx)
	assert.Equal(t, models.OriginFallback, refreshed.Origin)
	assert.NotEmpty(t, refreshed.Notice)
	source.AssertExpectations(t)
}

func TestSubscribeForwardsCartEvents(t *testing.T) {
	sf, _ := newTestStorefront(nil)
	var counts []int
	unsubscribe := sf.Subscribe(func(e models.CartChangedEvent) { counts = append(counts, e.LineCount) })
	defer unsubscribe()

	_, _ = sf.AddToCart(context.Background(), "X", 2)
	sf.ClearCart()

	assert.Equal(t, []int{2, 0}, counts)
}

func TestTestMessageAndStoreInfo(t *testing.T) {
	sf, _ := newTestStorefront(nil)

	message, link := sf.TestMessage()
	assert.Contains(t, message, "mensaje de prueba")
	assert.True(t, strings.HasPrefix(link, "https://wa.me/56912345678?text="))

	info := sf.StoreInfo()
	assert.Equal(t, "Ferretería El Tornillo", info.Name)
	assert.Equal(t, "+56912345678", info.Recipient)
}

func TestRequestCatalogRefresh(t *testing.T) {
	sf, _ := newTestStorefront(nil)
	assert.ErrorIs(t, sf.RequestCatalogRefresh(context.Background(), "manual"), ErrEventsDisabled)

	publisher := &mockPublisher{}
	publisher.On("PublishCatalogRefreshRequested", mock.Anything, mock.MatchedBy(func(e *models.CatalogRefreshRequestedEvent) bool {
		return e.EventType == models.EventTypeCatalogRefreshRequested && e.Reason == "manual"
	})).Return(nil).Once()
	publisher.On("PublishCatalogRefreshRequested", mock.Anything, mock.Anything).Return(errors.New("kafka down")).Once()

	sf, _ = newTestStorefront(publisher)
	assert.NoError(t, sf.RequestCatalogRefresh(context.Background(), "manual"))
	assert.ErrorContains(t, sf.RequestCatalogRefresh(context.Background(), "again"), "kafka down")
	publisher.AssertExpectations(t)
}

func TestProceedToCheckoutKeepsLinesAddedWhilePublishing(t *testing.T) {
	publisher := &mockPublisher{}
	sf, _ := newTestStorefront(publisher)
	ctx := context.Background()

	publisher.On("PublishOrderPlaced", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			_, err := sf.AddToCart(ctx, "Z", 1)
			require.NoError(t, err)
		}).
		Return(nil)

	_, err := sf.AddToCart(ctx, "X", 1)
	require.NoError(t, err)

	result, err := sf.ProceedToCheckout(ctx)
	require.NoError(t, err)

	require.Len(t, result.Order.Lines, 1)
	assert.Equal(t, "X", result.Order.Lines[0].Product.ID)

	view := sf.Cart()
	require.Len(t, view.Lines, 1)
	assert.Equal(t, "Z", view.Lines[0].ProductID)
}

func TestSetDeliveryAppliesMethodAndAddressTogether(t *testing.T) {
	sf, _ := newTestStorefront(nil)
	_, _ = sf.AddToCart(context.Background(), "X", 1)

	var states []models.DeliveryInfo
	unsubscribe := sf.Subscribe(func(models.CartChangedEvent) { states = append(states, sf.ledger.Delivery()) })
	defer unsubscribe()

	address := "Calle Falsa 123"
	view, err := sf.SetDelivery(models.DeliveryHomeDelivery, &address)
	require.NoError(t, err)

	require.Len(t, states, 1)
	assert.Equal(t, models.DeliveryInfo{Method: models.DeliveryHomeDelivery, Address: address}, states[0])
	assert.True(t, view.CheckoutValid)

	other := "Otra Calle 456"
	view, err = sf.SetDelivery("", &other)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryHomeDelivery, view.Delivery.Method)
	assert.Equal(t, other, view.Delivery.Address)

	view, err = sf.SetDelivery(models.DeliveryStorePickup, nil)
	require.NoError(t, err)
	assert.Empty(t, view.Delivery.Address)

	_, err = sf.SetDelivery("drone", &address)
	assert.ErrorIs(t, err, ErrInvalidDelivery)
	assert.Len(t, states, 3)
}
