package service

import (
	"time"
	"unicode/utf8"

	"storefront/internal/messaging"
	"storefront/internal/models"

	"github.com/shopspring/decimal"
)

const descriptionLimit = 100

const fallbackNotice = "No pudimos cargar el catálogo actualizado. Mostrando productos de ejemplo."

// StockStatus buckets a stock level for display.
type StockStatus struct {
	Status string `json:"status"`
	Label  string `json:"label"`
}

// ProductView is a product ready to render.
type ProductView struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Price          decimal.Decimal `json:"price"`
	PriceFormatted string          `json:"price_formatted"`
	Stock          int             `json:"stock"`
	StockStatus    StockStatus     `json:"stock_status"`
	ImageURL       string          `json:"image_url"`
	Category       string          `json:"category,omitempty"`
	Featured       bool            `json:"featured"`
	Purchasable    bool            `json:"purchasable"`
}

// CatalogView is the catalog page.
type CatalogView struct {
	Products  []ProductView `json:"products"`
	Featured  []ProductView `json:"featured"`
	Origin    string        `json:"origin"`
	Notice    string        `json:"notice,omitempty"`
	FetchedAt time.Time     `json:"fetched_at"`
}

// CartLineView is one cart row.
type CartLineView struct {
	ProductID          string          `json:"product_id"`
	Name               string          `json:"name"`
	ImageURL           string          `json:"image_url"`
	Quantity           int             `json:"quantity"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	UnitPriceFormatted string          `json:"unit_price_formatted"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	SubtotalFormatted  string          `json:"subtotal_formatted"`
}

// CartView is the cart drawer.
type CartView struct {
	Lines          []CartLineView      `json:"lines"`
	Total          decimal.Decimal     `json:"total"`
	TotalFormatted string              `json:"total_formatted"`
	LineCount      int                 `json:"line_count"`
	Delivery       models.DeliveryInfo `json:"delivery"`
	CheckoutValid  bool                `json:"checkout_valid"`
}

// StockStatusFor buckets stock into out, low, medium and high.
func StockStatusFor(stock int) StockStatus {
	switch {
	case stock <= 0:
		return StockStatus{Status: "out", Label: "Sin Stock"}
	case stock < 10:
		return StockStatus{Status: "low", Label: "Stock Bajo"}
	case stock < 50:
		return StockStatus{Status: "medium", Label: "Stock Medio"}
	default:
		return StockStatus{Status: "high", Label: "Stock Alto"}
	}
}

// Truncate cuts text to max runes and appends "..." when it was longer.
func Truncate(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	return string([]rune(text)[:max]) + "..."
}

// BuildProductView renders p.
func BuildProductView(p models.Product, f *messaging.Formatter) ProductView {
	return ProductView{
		ID:             p.ID,
		Name:           p.Name,
		Description:    Truncate(p.Description, descriptionLimit),
		Price:          p.Price,
		PriceFormatted: f.Price(p.Price),
		Stock:          p.Stock,
		StockStatus:    StockStatusFor(p.Stock),
		ImageURL:       p.ImageURL,
		Category:       p.Category,
		Featured:       p.Featured,
		Purchasable:    p.InStock(),
	}
}

// BuildCatalogView renders a snapshot. Featured holds in-stock featured products.
func BuildCatalogView(snap models.CatalogSnapshot, f *messaging.Formatter) CatalogView {
	view := CatalogView{
		Products:  buildProductViews(snap.Products, f),
		Featured:  []ProductView{},
		Origin:    snap.Origin,
		FetchedAt: snap.FetchedAt,
	}
	for _, p := range view.Products {
		if p.Featured && p.Purchasable {
			view.Featured = append(view.Featured, p)
		}
	}
	if snap.IsFallback() {
		view.Notice = fallbackNotice
	}
	return view
}

// BuildCartView renders cart state.
func BuildCartView(lines []models.CartLine, delivery models.DeliveryInfo, checkoutValid bool, f *messaging.Formatter) CartView {
	view := CartView{
		Lines:         make([]CartLineView, 0, len(lines)),
		Total:         decimal.Zero,
		Delivery:      delivery,
		CheckoutValid: checkoutValid,
	}

	for _, line := range lines {
		subtotal := line.Subtotal()
		view.Lines = append(view.Lines, CartLineView{
			ProductID:          line.Product.ID,
			Name:               line.Product.Name,
			ImageURL:           line.Product.ImageURL,
			Quantity:           line.Quantity,
			UnitPrice:          line.Product.Price,
			UnitPriceFormatted: f.Price(line.Product.Price),
			Subtotal:           subtotal,
			SubtotalFormatted:  f.Price(subtotal),
		})
		view.Total = view.Total.Add(subtotal)
		view.LineCount += line.Quantity
	}
	view.TotalFormatted = f.Price(view.Total)

	return view
}

func buildProductViews(products []models.Product, f *messaging.Formatter) []ProductView {
	out := make([]ProductView, 0, len(products))
	for _, p := range products {
		out = append(out, BuildProductView(p, f))
	}
	return out
}
