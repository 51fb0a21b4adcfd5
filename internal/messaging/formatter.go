// Package messaging renders orders as chat messages and builds the deep link that opens them.
package messaging

import (
	"net/url"
	"strconv"
	"strings"

	"storefront/internal/models"

	"github.com/shopspring/decimal"
)

const (
	closingHomeDelivery = "¡Quedo atento a la confirmación!"
	closingStorePickup  = "Quedo atento a cualquier confirmación!"
)

// Formatter builds order messages for one store.
type Formatter struct {
	StoreName      string
	CurrencySymbol string
}

// NewFormatter creates a formatter. An empty symbol defaults to "$".
func NewFormatter(storeName, currencySymbol string) *Formatter {
	if currencySymbol == "" {
		currencySymbol = "$"
	}
	return &Formatter{StoreName: storeName, CurrencySymbol: currencySymbol}
}

// FormatOrderMessage renders order. The output depends only on its lines, delivery and total.
func (f *Formatter) FormatOrderMessage(order models.Order) string {
	var b strings.Builder

	b.WriteString(f.greeting())
	b.WriteString("Quisiera hacer el siguiente pedido:\n\n")

	b.WriteString("*Método de Entrega:* ")
	if order.Delivery.Method == models.DeliveryHomeDelivery {
		b.WriteString("Despacho a Domicilio\n")
		b.WriteString("*Dirección de Envío:* " + order.Delivery.Address + "\n")
	} else {
		b.WriteString("Retiro en Tienda\n")
	}

	b.WriteString("\n*Productos:*\n")
	for _, line := range order.Lines {
		b.WriteString("- ")
		b.WriteString(strconv.Itoa(line.Quantity))
		b.WriteString(" x ")
		b.WriteString(line.Product.Name)
		b.WriteString(" (" + f.Price(line.Subtotal()) + ")\n")
	}

	b.WriteString("\n*Total del Pedido:* " + f.Price(order.Total) + "\n\n")

	if order.Delivery.Method == models.DeliveryHomeDelivery {
		b.WriteString(closingHomeDelivery)
	} else {
		b.WriteString(closingStorePickup)
	}

	return b.String()
}

// FormatTestMessage renders the message used to check the messaging setup.
func (f *Formatter) FormatTestMessage() string {
	return f.greeting() +
		"Este es un mensaje de prueba para verificar que la integración con WhatsApp funciona correctamente.\n\n" +
		"¡Gracias!"
}

// Price formats amount with the currency symbol, e.g. "$15.990".
func (f *Formatter) Price(amount decimal.Decimal) string {
	return f.CurrencySymbol + FormatAmount(amount)
}

func (f *Formatter) greeting() string {
	return "¡Hola " + f.StoreName + "! 🔩\n\n"
}

// FormatAmount rounds amount to an integer and groups thousands with ".".
func FormatAmount(amount decimal.Decimal) string {
	digits := amount.Round(0).String()

	sign := ""
	if strings.HasPrefix(digits, "-") {
		sign, digits = "-", digits[1:]
	}
	if digits == "0" {
		sign = ""
	}

	var b strings.Builder
	b.WriteString(sign)
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// DeepLink returns endpoint/recipient?text=message. The recipient keeps only its digits.
func DeepLink(endpoint, recipient, message string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, recipient)

	encoded := strings.ReplaceAll(url.QueryEscape(message), "+", "%20")
	return strings.TrimRight(endpoint, "/") + "/" + digits + "?text=" + encoded
}
