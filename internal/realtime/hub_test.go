package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishReachesSubscribers(t *testing.T) {
	hub := NewHub()

	ch, cancel := hub.Subscribe("INV-1")
	defer cancel()

	hub.Publish(Update{InvoiceID: "INV-1", Status: "paid", PaidAt: time.Now()})

	select {
	case update := <-ch:
		assert.Equal(t, "INV-1", update.InvoiceID)
		assert.Equal(t, "paid", update.Status)
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the update")
	}
}

func TestHub_PublishIsScopedToInvoice(t *testing.T) {
	hub := NewHub()

	ch, cancel := hub.Subscribe("INV-1")
	defer cancel()

	hub.Publish(Update{InvoiceID: "INV-2", Status: "paid"})

	select {
	case <-ch:
		t.Fatal("received an update for another invoice")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestHub_CancelClosesChannelAndIsIdempotent(t *testing.T) {
	hub := NewHub()

	ch, cancel := hub.Subscribe("INV-1")
	require.Equal(t, 1, hub.SubscriberCount("INV-1"))

	cancel()
	cancel()

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, hub.SubscriberCount("INV-1"))

	// Publishing after cancellation must not panic or block.
	hub.Publish(Update{InvoiceID: "INV-1", Status: "paid"})
}

func TestHub_SlowSubscriberDoesNotBlockPublish(t *testing.T) {
	hub := NewHub()

	_, cancel := hub.Subscribe("INV-1")
	defer cancel()

	done := make(chan struct{})
	go func() {
		// More publishes than the channel buffers; extras are dropped.
		for i := 0; i < 100; i++ {
			hub.Publish(Update{InvoiceID: "INV-1", Status: "paid"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}
