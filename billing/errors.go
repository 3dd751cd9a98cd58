// billing/errors.go
package billing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// InvalidItemError reports a line item field that is negative, out of range or not a number.
type InvalidItemError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InvalidItemError) Error() string {
	return fmt.Sprintf("invalid item %s %q: %s", e.Field, e.Value, e.Reason)
}

// InvalidAdjustmentError reports a discount, shipping or received amount that
// is negative, too large or too precise.
type InvalidAdjustmentError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InvalidAdjustmentError) Error() string {
	return fmt.Sprintf("invalid %s %s: %s", e.Field, e.Value, e.Reason)
}

// TotalOutOfRangeError is returned when the items add up to more than an invoice can store.
type TotalOutOfRangeError struct {
	GrandTotal decimal.Decimal
}

func (e *TotalOutOfRangeError) Error() string {
	return fmt.Sprintf("grand total %s exceeds the maximum of %s", e.GrandTotal.StringFixed(2), MaxAmount.String())
}

// NegativeTotalError is returned when the discount exceeds what the invoice is worth.
type NegativeTotalError struct {
	GrandTotal decimal.Decimal
}

func (e *NegativeTotalError) Error() string {
	return fmt.Sprintf("grand total would be negative (%s)", e.GrandTotal.StringFixed(2))
}

// OverpaymentError is returned when the received amount is larger than the grand total.
type OverpaymentError struct {
	ReceivedAmount decimal.Decimal
	GrandTotal     decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("received amount %s exceeds grand total %s",
		e.ReceivedAmount.StringFixed(2), e.GrandTotal.StringFixed(2))
}

type IndexOutOfRangeError struct {
	Index  int
	Length int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("item index %d out of range [0,%d)", e.Index, e.Length)
}

// InvoiceLockedError is returned for any mutation of a paid invoice.
type InvoiceLockedError struct {
	Status Status
}

func (e *InvoiceLockedError) Error() string {
	return fmt.Sprintf("invoice is %s and can no longer be edited", e.Status)
}

type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move invoice from %s to %s", e.From, e.To)
}

// IncompleteInvoiceError lists the fields an invoice needs before it can be sent.
type IncompleteInvoiceError struct {
	Missing []string
}

func (e *IncompleteInvoiceError) Error() string {
	return "invoice cannot be sent, missing: " + strings.Join(e.Missing, ", ")
}
