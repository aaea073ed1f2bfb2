package monitor

import (
	"context"
	"time"

	"payment-reconciliation-service/internal/models"
	"payment-reconciliation-service/internal/realtime"
	"payment-reconciliation-service/internal/services"
)

// StatusSource is any implementation of the status query, whether the
// in-process resolver or an HTTP client against the status endpoint.
type StatusSource interface {
	ResolveStatus(ctx context.Context, invoiceID, transactionID string) (*services.StatusResult, error)
}

// Subscriber is the optional push channel. The realtime.Hub satisfies it.
type Subscriber interface {
	Subscribe(invoiceID string) (<-chan realtime.Update, func())
}

type EventKind string

const (
	// EventStatus carries a non-terminal poll result.
	EventStatus EventKind = "status"
	// EventError carries a transient polling error; the loop continues.
	EventError EventKind = "error"
	// Terminal kinds. Exactly one of these ends the stream.
	EventPaid    EventKind = "paid"
	EventFailed  EventKind = "failed"
	EventTimeout EventKind = "timeout"
)

type Event struct {
	Kind   EventKind
	Result *services.StatusResult
	Err    error
}

// Terminal reports whether the event ends the monitor.
func (e Event) Terminal() bool {
	return e.Kind == EventPaid || e.Kind == EventFailed || e.Kind == EventTimeout
}

type Config struct {
	// PollInterval between status reads. Default 4s.
	PollInterval time.Duration
	// MaxDuration is the wall-clock budget for the whole watch. On expiry
	// the monitor gives up with a timeout event; it does not declare
	// failure. Default 5m.
	MaxDuration time.Duration
}

// Monitor watches one invoice until a terminal payment state, a timeout, or
// caller cancellation. Polling and the optional push subscription are two
// producers racing into one consumer loop; whichever signals a terminal
// state first wins, and exactly one terminal event is emitted.
type Monitor struct {
	source     StatusSource
	subscriber Subscriber
	cfg        Config
}

func New(source StatusSource, subscriber Subscriber, cfg Config) *Monitor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 4 * time.Second
	}
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = 5 * time.Minute
	}
	return &Monitor{source: source, subscriber: subscriber, cfg: cfg}
}

// Start begins watching and returns the event stream. The stream is closed
// after the terminal event, or silently when ctx is cancelled; no events
// fire after either. Cancelling ctx releases the poll timer and the push
// subscription deterministically.
func (m *Monitor) Start(ctx context.Context, invoiceID string) <-chan Event {
	events := make(chan Event, 16)
	go m.run(ctx, invoiceID, events)
	return events
}

func (m *Monitor) run(parent context.Context, invoiceID string, events chan<- Event) {
	defer close(events)

	ctx, cancel := context.WithTimeout(parent, m.cfg.MaxDuration)
	defer cancel()

	var push <-chan realtime.Update
	if m.subscriber != nil {
		ch, unsubscribe := m.subscriber.Subscribe(invoiceID)
		defer unsubscribe()
		push = ch
	}

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if done := m.poll(ctx, parent, invoiceID, events); done {
			return
		}

		select {
		case <-ctx.Done():
			m.finish(parent, events)
			return

		case update, ok := <-push:
			if !ok {
				push = nil
				continue
			}
			if update.Status == models.InvoiceStatusPaid {
				m.emit(parent, events, Event{Kind: EventPaid, Result: &services.StatusResult{
					Status:        models.InvoiceStatusPaid,
					InvoiceStatus: models.InvoiceStatusPaid,
				}})
				return
			}

		case <-ticker.C:
		}
	}
}

// poll performs one status read. It returns true when the monitor is done,
// either on a terminal status or because the budget/caller ended the watch.
func (m *Monitor) poll(ctx, parent context.Context, invoiceID string, events chan<- Event) bool {
	result, err := m.source.ResolveStatus(ctx, invoiceID, "")
	if err != nil {
		if ctx.Err() != nil {
			m.finish(parent, events)
			return true
		}
		// Transient failure: surface it, keep polling.
		m.emit(parent, events, Event{Kind: EventError, Err: err})
		return false
	}

	switch result.Status {
	case models.InvoiceStatusPaid, models.TxStatusCompleted:
		m.emit(parent, events, Event{Kind: EventPaid, Result: result})
		return true
	case models.TxStatusFailed:
		m.emit(parent, events, Event{Kind: EventFailed, Result: result})
		return true
	default:
		m.emit(parent, events, Event{Kind: EventStatus, Result: result})
		return false
	}
}

// finish emits the timeout event when the wall-clock budget expired. Caller
// cancellation ends the stream with no further events.
func (m *Monitor) finish(parent context.Context, events chan<- Event) {
	if parent.Err() != nil {
		return
	}
	m.emit(parent, events, Event{Kind: EventTimeout})
}

func (m *Monitor) emit(parent context.Context, events chan<- Event, e Event) {
	select {
	case events <- e:
	case <-parent.Done():
	}
}
