package service

import (
	"strings"
	"testing"

	"storefront/internal/messaging"
	"storefront/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStockStatusFor(t *testing.T) {
	tests := []struct {
		stock int
		want  string
	}{
		{0, "out"},
		{-1, "out"},
		{1, "low"},
		{9, "low"},
		{10, "medium"},
		{49, "medium"},
		{50, "high"},
		{500, "high"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StockStatusFor(tt.stock).Status, "stock %d", tt.stock)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "corto", Truncate("corto", 10))
	assert.Equal(t, "exacto", Truncate("exacto", 6))
	assert.Equal(t, "Descri...", Truncate("Descripción larga", 6))
}

func TestBuildProductView(t *testing.T) {
	f := messaging.NewFormatter("Tienda", "$")
	p := models.Product{
		ID:          "A",
		Name:        "Taladro",
		Description: strings.Repeat("á", 150),
		Price:       decimal.NewFromInt(129990),
		Stock:       0,
	}

	view := BuildProductView(p, f)

	assert.Equal(t, "$129.990", view.PriceFormatted)
	assert.Equal(t, 103, len([]rune(view.Description)))
	assert.False(t, view.Purchasable)
	assert.Equal(t, "Sin Stock", view.StockStatus.Label)
}

func TestBuildCartView(t *testing.T) {
	f := messaging.NewFormatter("Tienda", "$")
	lines := []models.CartLine{
		{Product: models.Product{ID: "A", Name: "Martillo", Price: decimal.NewFromInt(15990)}, Quantity: 2},
		{Product: models.Product{ID: "B", Name: "Clavos", Price: decimal.NewFromInt(4500)}, Quantity: 1},
	}
	delivery := models.DeliveryInfo{Method: models.DeliveryStorePickup}

	view := BuildCartView(lines, delivery, true, f)

	require.Len(t, view.Lines, 2)
	assert.Equal(t, "$31.980", view.Lines[0].SubtotalFormatted)
	assert.Equal(t, "$15.990", view.Lines[0].UnitPriceFormatted)
	assert.Equal(t, "$36.480", view.TotalFormatted)
	assert.Equal(t, 3, view.LineCount)
	assert.True(t, view.CheckoutValid)

	empty := BuildCartView(nil, delivery, false, f)
	assert.NotNil(t, empty.Lines)
	assert.Equal(t, "$0", empty.TotalFormatted)
}
