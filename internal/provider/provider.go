package provider

import (
	"context"
)

// CheckResult is the normalised outcome of an on-demand status check
// against an aggregator.
type CheckResult struct {
	// Status is one of the canonical transaction statuses
	// (models.TxStatusPending/Completed/Failed).
	Status string
	// ExternalID is the provider-assigned transaction id, when the
	// provider returns one.
	ExternalID string
	// RawStatus is the provider's own status string, kept for logging.
	RawStatus string
}

// Verifier abstracts a payment provider's status-check endpoint. One
// implementation per payment method that supports on-demand querying.
type Verifier interface {
	Name() string
	CheckStatus(ctx context.Context, externalID string) (*CheckResult, error)
}

// Registry maps payment_method values to their Verifier. Methods without an
// entry (currently orange_money) are webhook-only: the resolver skips the
// auto-check for them. Adding a provider is one Register call.
type Registry struct {
	verifiers map[string]Verifier
}

func NewRegistry() *Registry {
	return &Registry{verifiers: make(map[string]Verifier)}
}

func (r *Registry) Register(method string, v Verifier) {
	r.verifiers[method] = v
}

func (r *Registry) ForMethod(method string) (Verifier, bool) {
	v, ok := r.verifiers[method]
	return v, ok
}

// SupportsQuery reports whether the payment method has an on-demand
// status-check path.
func (r *Registry) SupportsQuery(method string) bool {
	_, ok := r.verifiers[method]
	return ok
}
