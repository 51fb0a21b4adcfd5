package broker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"storefront/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

// fakeReader hands out queued messages, then blocks until ctx is done.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	fetchErrs int
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if r.fetchErrs > 0 {
		r.fetchErrs--
		r.mu.Unlock()
		return kafka.Message{}, errors.New("broker not available")
	}
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()

	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) Committed() []kafka.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]kafka.Message(nil), r.committed...)
}

func mustMessage(t *testing.T, offset int64, event interface{}) kafka.Message {
	t.Helper()
	value, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: value}
}

func TestPublishOrderPlaced(t *testing.T) {
	w := &fakeWriter{}
	publisher := NewEventPublisher(NewProducerWithWriter(w))

	event := &models.OrderPlacedEvent{
		BaseEvent: NewBaseEvent(models.EventTypeOrderPlaced),
		OrderID:   "abc",
		Delivery:  models.DeliveryInfo{Method: models.DeliveryStorePickup},
		Total:     decimal.NewFromInt(1000),
		Items:     []models.OrderItemData{{ProductID: "X", Name: "Widget", Quantity: 1, UnitPrice: decimal.NewFromInt(1000)}},
	}

	require.NoError(t, publisher.PublishOrderPlaced(context.Background(), event))
	require.Len(t, w.messages, 1)
	assert.Equal(t, "order-abc", string(w.messages[0].Key))

	var decoded models.OrderPlacedEvent
	require.NoError(t, json.Unmarshal(w.messages[0].Value, &decoded))
	assert.Equal(t, models.EventTypeOrderPlaced, decoded.EventType)
	assert.NotEmpty(t, decoded.EventID)
	assert.True(t, decimal.NewFromInt(1000).Equal(decoded.Total))
	assert.Equal(t, "Widget", decoded.Items[0].Name)
}

func TestPublishFailureIsWrapped(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	publisher := NewEventPublisher(NewProducerWithWriter(w))

	err := publisher.PublishCatalogRefreshed(context.Background(), &models.CatalogRefreshedEvent{
		BaseEvent: NewBaseEvent(models.EventTypeCatalogRefreshed),
	})

	assert.ErrorContains(t, err, "failed to write message to kafka")
	assert.ErrorContains(t, err, "leader not available")
}

func TestHandleMessageRoutesByType(t *testing.T) {
	h := NewEventHandler()
	var refreshReason string
	var orderID string
	h.OnCatalogRefreshRequested(func(_ context.Context, e *models.CatalogRefreshRequestedEvent) error {
		refreshReason = e.Reason
		return nil
	})
	h.OnOrderPlaced(func(_ context.Context, e *models.OrderPlacedEvent) error {
		orderID = e.OrderID
		return nil
	})
	ctx := context.Background()

	err := h.HandleMessage(ctx, mustMessage(t, 0, &models.CatalogRefreshRequestedEvent{
		BaseEvent: NewBaseEvent(models.EventTypeCatalogRefreshRequested),
		Reason:    "sheet edited",
	}))
	require.NoError(t, err)
	assert.Equal(t, "sheet edited", refreshReason)

	err = h.HandleMessage(ctx, mustMessage(t, 1, &models.OrderPlacedEvent{
		BaseEvent: NewBaseEvent(models.EventTypeOrderPlaced),
		OrderID:   "o-1",
	}))
	require.NoError(t, err)
	assert.Equal(t, "o-1", orderID)

	err = h.HandleMessage(ctx, mustMessage(t, 2, &models.BaseEvent{EventType: "SOMETHING_ELSE"}))
	assert.NoError(t, err)

	err = h.HandleMessage(ctx, kafka.Message{Value: []byte("not json")})
	assert.Error(t, err)
}

func TestStartConsumingCommitsHandledMessages(t *testing.T) {
	reader := &fakeReader{
		fetchErrs: 1,
		queue: []kafka.Message{
			{Offset: 1, Value: []byte("ok")},
			{Offset: 2, Value: []byte("fail")},
			{Offset: 3, Value: []byte("ok")},
		},
	}
	consumer := NewConsumerWithReader(reader, "storefront-events")
	consumer.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- consumer.StartConsuming(ctx, func(_ context.Context, msg kafka.Message) error {
			if string(msg.Value) == "fail" {
				return errors.New("handler failed")
			}
			return nil
		})
	}()

	require.Eventually(t, func() bool { return len(reader.Committed()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}

	committed := reader.Committed()
	assert.Equal(t, int64(1), committed[0].Offset)
	assert.Equal(t, int64(3), committed[1].Offset)
}
