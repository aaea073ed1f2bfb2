package provider

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"payment-reconciliation-service/internal/models"
)

var (
	ErrMalformedPayload = errors.New("malformed webhook payload")
	ErrMissingReference = errors.New("webhook payload missing invoice reference")
	ErrUnknownEventType = errors.New("unknown webhook event type")
)

// Event is a provider webhook notification normalised into the shape the
// reconciliation core consumes.
type Event struct {
	Provider              string
	EventID               string
	Type                  string
	InvoiceID             string
	ExternalTransactionID string
	Amount                decimal.Decimal
	// Status is the canonical outcome the event reports.
	Status string
	Raw    json.RawMessage
}

// webhookEnvelope is the aggregator's delivery format: a typed event with a
// provider-specific data object carrying the correlation ids.
type webhookEnvelope struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Event string `json:"event"`
	Data  struct {
		InvoiceID     string          `json:"invoice_id"`
		Reference     string          `json:"client_reference"`
		TransactionID string          `json:"transaction_id"`
		SessionID     string          `json:"session_id"`
		Amount        decimal.Decimal `json:"amount"`
		Status        string          `json:"status"`
	} `json:"data"`
}

// Wave and Orange Money event names mapped onto the canonical enum. Events
// absent from the table are acked and ignored by the caller.
var eventStatusByType = map[string]string{
	// Wave
	"checkout.session.completed":      models.TxStatusCompleted,
	"checkout.session.payment_failed": models.TxStatusFailed,
	"merchant.payment_received":       models.TxStatusCompleted,
	// Orange Money
	"payment.success": models.TxStatusCompleted,
	"payment.failed":  models.TxStatusFailed,
	"payment.expired": models.TxStatusFailed,
}

var providerByEventPrefix = map[string]string{
	"checkout": models.MethodWave,
	"merchant": models.MethodWave,
	"payment":  models.MethodOrangeMoney,
}

// ParseWebhookEvent decodes and normalises an inbound webhook body. It
// returns ErrUnknownEventType for event names outside the mapping table so
// the handler can ack without acting.
func ParseWebhookEvent(body []byte) (*Event, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, ErrMalformedPayload
	}

	eventType := env.Type
	if eventType == "" {
		eventType = env.Event
	}
	if eventType == "" {
		return nil, ErrMalformedPayload
	}

	invoiceID := env.Data.InvoiceID
	if invoiceID == "" {
		invoiceID = env.Data.Reference
	}

	externalID := env.Data.TransactionID
	if externalID == "" {
		externalID = env.Data.SessionID
	}

	evt := &Event{
		Provider:              providerForEventType(eventType),
		EventID:               env.ID,
		Type:                  eventType,
		InvoiceID:             invoiceID,
		ExternalTransactionID: externalID,
		Amount:                env.Data.Amount,
		Raw:                   json.RawMessage(body),
	}

	status, ok := eventStatusByType[eventType]
	if !ok {
		return evt, ErrUnknownEventType
	}
	evt.Status = status

	if evt.InvoiceID == "" && evt.ExternalTransactionID == "" {
		return nil, ErrMissingReference
	}
	return evt, nil
}

func providerForEventType(eventType string) string {
	prefix, _, _ := strings.Cut(eventType, ".")
	return providerByEventPrefix[prefix]
}
