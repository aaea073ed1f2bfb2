package realtime

import (
	"sync"
	"time"
)

// Update is emitted whenever an invoice's payment status changes.
type Update struct {
	InvoiceID string    `json:"invoice_id"`
	Status    string    `json:"status"`
	PaidAt    time.Time `json:"paid_at"`
}

// Hub fans invoice status changes out to subscribers keyed by invoice id.
// Publish never blocks: a subscriber that stops draining its channel misses
// updates instead of stalling the write path.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan Update
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]chan Update)}
}

// Subscribe registers for updates on one invoice. The returned cancel
// function is idempotent and closes the channel.
func (h *Hub) Subscribe(invoiceID string) (<-chan Update, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	ch := make(chan Update, 8)

	if h.subs[invoiceID] == nil {
		h.subs[invoiceID] = make(map[int]chan Update)
	}
	h.subs[invoiceID][id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if subs, ok := h.subs[invoiceID]; ok {
			if c, ok := subs[id]; ok {
				delete(subs, id)
				close(c)
				if len(subs) == 0 {
					delete(h.subs, invoiceID)
				}
			}
		}
	}
	return ch, cancel
}

func (h *Hub) Publish(update Update) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs[update.InvoiceID] {
		select {
		case ch <- update:
		default:
		}
	}
}

// SubscriberCount reports active subscriptions for an invoice.
func (h *Hub) SubscriberCount(invoiceID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[invoiceID])
}
