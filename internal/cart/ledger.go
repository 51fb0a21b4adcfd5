// Package cart holds the in-process shopping cart.
package cart

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MaxLineQuantity caps the quantity of a single line.
const MaxLineQuantity = 10000

var (
	ErrInvalidOrder   = errors.New("invalid order")
	ErrEmptyCart      = fmt.Errorf("%w: empty cart", ErrInvalidOrder)
	ErrMissingAddress = fmt.Errorf("%w: missing delivery address", ErrInvalidOrder)
)

// Listener receives the cart state after every mutation. Listeners may read the
// ledger but must not mutate it.
type Listener func(models.CartChangedEvent)

type subscription struct {
	id int
	fn Listener
}

// Ledger owns the cart lines and the delivery choice. All accessors return copies.
type Ledger struct {
	// notifyMu is held across a mutation and its delivery so listeners see events in order.
	notifyMu  sync.Mutex
	mu        sync.Mutex
	lines     []models.CartLine
	delivery  models.DeliveryInfo
	listeners []subscription
	nextID    int
	logger    *zap.Logger
	now       func() time.Time
}

// NewLedger creates an empty cart with store pickup selected.
func NewLedger() *Ledger {
	return &Ledger{
		delivery: models.DeliveryInfo{Method: models.DeliveryStorePickup},
		logger:   util.GetLogger(),
		now:      time.Now,
	}
}

// AddLine adds quantity units of p, merging with an existing line for the same id.
// Non-positive quantities are ignored and a line never exceeds MaxLineQuantity.
func (l *Ledger) AddLine(p models.Product, quantity int) {
	if quantity <= 0 {
		return
	}

	l.mutate("add", func() bool {
		if i := l.indexOf(p.ID); i >= 0 {
			l.lines[i].Quantity = capQuantity(l.lines[i].Quantity, quantity)
		} else {
			l.lines = append(l.lines, models.CartLine{Product: p, Quantity: capQuantity(0, quantity)})
		}
		return true
	})
	l.logger.Debug("Cart line added", zap.String("product_id", p.ID), zap.Int("quantity", quantity))
}

// SetQuantity sets the quantity of the line for id, capped at MaxLineQuantity.
// Zero or less removes the line. Unknown ids are ignored.
func (l *Ledger) SetQuantity(id string, quantity int) {
	if quantity <= 0 {
		l.RemoveLine(id)
		return
	}

	l.mutate("set_quantity", func() bool {
		i := l.indexOf(id)
		if i < 0 {
			return false
		}
		l.lines[i].Quantity = capQuantity(0, quantity)
		return true
	})
}

// RemoveLine deletes the line for id if present.
func (l *Ledger) RemoveLine(id string) {
	l.mutate("remove", func() bool {
		i := l.indexOf(id)
		if i < 0 {
			return false
		}
		l.lines = append(l.lines[:i], l.lines[i+1:]...)
		return true
	})
}

// Clear empties the cart. The delivery choice is kept.
func (l *Ledger) Clear() {
	l.mutate("clear", func() bool {
		l.lines = nil
		return true
	})
}

// SetDelivery replaces the delivery info. An address is not required until checkout.
func (l *Ledger) SetDelivery(info models.DeliveryInfo) {
	l.UpdateDelivery(func(models.DeliveryInfo) models.DeliveryInfo { return info })
}

// UpdateDelivery replaces the delivery info with fn(current) as one mutation.
func (l *Ledger) UpdateDelivery(fn func(models.DeliveryInfo) models.DeliveryInfo) {
	l.mutate("delivery", func() bool {
		l.delivery = fn(l.delivery)
		return true
	})
}

// Lines returns a copy of the cart lines in insertion order.
func (l *Ledger) Lines() []models.CartLine {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.copyLines()
}

// Delivery returns the current delivery info.
func (l *Ledger) Delivery() models.DeliveryInfo {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.delivery
}

// Total returns the sum of price × quantity.
func (l *Ledger) Total() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return total(l.lines)
}

// LineCount returns the number of units in the cart, not the number of lines.
func (l *Ledger) LineCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return count(l.lines)
}

// IsEmpty reports whether the cart has no lines.
func (l *Ledger) IsEmpty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines) == 0
}

// IsCheckoutValid reports whether Checkout would succeed.
func (l *Ledger) IsCheckoutValid() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.validateLocked() == nil
}

// Checkout returns an order snapshot of the cart. The cart itself is left untouched.
func (l *Ledger) Checkout() (models.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.orderLocked()
}

// CheckoutAndClear takes the order snapshot and empties the cart in one step, so a line
// added concurrently is either in the order or still in the cart. An invalid cart is
// left untouched.
func (l *Ledger) CheckoutAndClear() (models.Order, error) {
	var (
		order models.Order
		err   error
	)
	l.mutate("checkout", func() bool {
		order, err = l.orderLocked()
		if err != nil {
			return false
		}
		l.lines = nil
		return true
	})
	return order, err
}

// Subscribe registers fn for change notifications and returns a function that removes it.
// Listeners are called in subscription order.
func (l *Ledger) Subscribe(fn Listener) func() {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.listeners = append(l.listeners, subscription{id: id, fn: fn})
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			for i, s := range l.listeners {
				if s.id == id {
					l.listeners = append(l.listeners[:i:i], l.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// mutate applies change under the state lock and, when it reports a change, delivers
// the resulting event before any later mutation can deliver its own.
func (l *Ledger) mutate(op string, change func() bool) {
	l.notifyMu.Lock()
	defer l.notifyMu.Unlock()

	l.mu.Lock()
	if !change() {
		l.mu.Unlock()
		return
	}
	event := l.eventLocked()
	listeners := make([]Listener, 0, len(l.listeners))
	for _, s := range l.listeners {
		listeners = append(listeners, s.fn)
	}
	l.mu.Unlock()

	util.CartMutationsTotal.WithLabelValues(op).Inc()
	for _, fn := range listeners {
		fn(event)
	}
}

func (l *Ledger) orderLocked() (models.Order, error) {
	if err := l.validateLocked(); err != nil {
		return models.Order{}, err
	}

	return models.Order{
		ID:        uuid.New().String(),
		Lines:     l.copyLines(),
		Delivery:  l.delivery,
		Total:     total(l.lines),
		CreatedAt: l.now(),
	}, nil
}

func (l *Ledger) validateLocked() error {
	if len(l.lines) == 0 {
		return ErrEmptyCart
	}
	if l.delivery.Method == models.DeliveryHomeDelivery && strings.TrimSpace(l.delivery.Address) == "" {
		return ErrMissingAddress
	}
	return nil
}

func (l *Ledger) indexOf(id string) int {
	for i, line := range l.lines {
		if line.Product.ID == id {
			return i
		}
	}
	return -1
}

func (l *Ledger) copyLines() []models.CartLine {
	out := make([]models.CartLine, len(l.lines))
	copy(out, l.lines)
	return out
}

func (l *Ledger) eventLocked() models.CartChangedEvent {
	return models.CartChangedEvent{
		Lines:     l.copyLines(),
		Total:     total(l.lines),
		LineCount: count(l.lines),
	}
}

// capQuantity returns current+add without exceeding MaxLineQuantity. Both are non-negative.
func capQuantity(current, add int) int {
	if add >= MaxLineQuantity-current {
		return MaxLineQuantity
	}
	return current + add
}

func total(lines []models.CartLine) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(line.Subtotal())
	}
	return sum
}

func count(lines []models.CartLine) int {
	n := 0
	for _, line := range lines {
		n += line.Quantity
	}
	return n
}
