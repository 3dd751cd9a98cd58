package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Routing keys.
const (
	InvoiceCreated = "invoice.created"
	InvoiceUpdated = "invoice.updated"
	InvoiceSent    = "invoice.sent"
	InvoicePaid    = "invoice.paid"
	InvoiceDeleted = "invoice.deleted"

	SessionSignedUp  = "session.signed_up"
	SessionSignedIn  = "session.signed_in"
	SessionSignedOut = "session.signed_out"
)

type InvoiceEvent struct {
	Type          string          `json:"type"`
	InvoiceID     uuid.UUID       `json:"invoiceId"`
	OwnerID       uuid.UUID       `json:"ownerId"`
	InvoiceNumber string          `json:"invoiceNumber"`
	Status        string          `json:"status"`
	GrandTotal    decimal.Decimal `json:"grandTotal"`
	DueAmount     decimal.Decimal `json:"dueAmount"`
	At            time.Time       `json:"at"`
}

type SessionEvent struct {
	Type   string    `json:"type"`
	UserID uuid.UUID `json:"userId"`
	At     time.Time `json:"at"`
}
