// Package balance receives Up Banking webhooks and turns them into transaction
// events for registered handlers
package balance

import (
	"github.com/baely/balance/pkg/model"
)

// EventTransactionCreated is the webhook event type Up sends once per new transaction
const EventTransactionCreated = "TRANSACTION_CREATED"

// TransactionEvent contains information about a bank transaction
type TransactionEvent struct {
	Type        string                    // Webhook event type, such as TRANSACTION_CREATED
	Account     model.AccountResource     // Account details
	Transaction model.TransactionResource // Transaction details
}

// TransactionEventHandler defines the interface for handling transaction events
type TransactionEventHandler interface {
	// HandleEvent processes a transaction event
	// Returns an error if the handling fails
	HandleEvent(event TransactionEvent) error
}
