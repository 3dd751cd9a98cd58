// Package billing computes invoice line totals and summaries and guards the
// invoice status lifecycle. It has no I/O and is safe for concurrent use.
package billing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Places is the number of decimal places money is rounded to.
const Places = 2

// MaxScale bounds the exponent of any amount accepted as input, in both directions.
const MaxScale = 12

// MaxAmount is the exclusive upper bound of any stored amount, matching the
// decimal(14,2) columns.
var MaxAmount = decimal.New(1, 12)

var hundred = decimal.NewFromInt(100)

// LineItem is one billable row. LineTotal is always derived from the other fields.
type LineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	TaxPercent  decimal.Decimal `json:"taxPercent"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
}

// Adjustments are the invoice-level amounts entered by the user.
type Adjustments struct {
	Discount       decimal.Decimal `json:"discount"`
	Shipping       decimal.Decimal `json:"shipping"`
	ReceivedAmount decimal.Decimal `json:"receivedAmount"`
}

// Summary holds the invoice-level aggregates.
type Summary struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxTotal       decimal.Decimal `json:"taxTotal"`
	Discount       decimal.Decimal `json:"discount"`
	Shipping       decimal.Decimal `json:"shipping"`
	GrandTotal     decimal.Decimal `json:"grandTotal"`
	ReceivedAmount decimal.Decimal `json:"receivedAmount"`
	DueAmount      decimal.Decimal `json:"dueAmount"`
}

// Round rounds an amount half-up to two decimal places.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// checkAmount reports why d cannot be used as a money input, or "" when it can.
// The exponent is checked first: rescaling a value like 1e2000000000 never finishes.
func checkAmount(d decimal.Decimal) string {
	if exp := d.Exponent(); exp > MaxScale || exp < -MaxScale {
		return "too many digits"
	}
	if d.IsNegative() {
		return "must not be negative"
	}
	if d.GreaterThanOrEqual(MaxAmount) {
		return "must be less than " + MaxAmount.String()
	}
	return ""
}

// describe renders d without expanding its exponent.
func describe(d decimal.Decimal) string {
	if exp := d.Exponent(); exp > MaxScale || exp < -MaxScale {
		return fmt.Sprintf("%se%d", d.Coefficient(), exp)
	}
	return d.String()
}

// ValidateItem checks the numeric fields of an item.
func ValidateItem(item LineItem) error {
	if reason := checkAmount(item.Quantity); reason != "" {
		return &InvalidItemError{Field: FieldQuantity, Value: describe(item.Quantity), Reason: reason}
	}
	if reason := checkAmount(item.UnitPrice); reason != "" {
		return &InvalidItemError{Field: FieldUnitPrice, Value: describe(item.UnitPrice), Reason: reason}
	}
	if reason := checkAmount(item.TaxPercent); reason != "" {
		return &InvalidItemError{Field: FieldTaxPercent, Value: describe(item.TaxPercent), Reason: reason}
	}
	if item.TaxPercent.GreaterThan(hundred) {
		return &InvalidItemError{Field: FieldTaxPercent, Value: item.TaxPercent.String(), Reason: "must be between 0 and 100"}
	}
	return nil
}

// ComputeLineTotal returns quantity * unitPrice * (1 + taxPercent/100) rounded to cents.
func ComputeLineTotal(item LineItem) (decimal.Decimal, error) {
	if err := ValidateItem(item); err != nil {
		return decimal.Zero, err
	}
	net := item.Quantity.Mul(item.UnitPrice)
	gross := Round(net.Mul(decimal.NewFromInt(1).Add(item.TaxPercent.Div(hundred))))
	if gross.GreaterThanOrEqual(MaxAmount) {
		return decimal.Zero, &InvalidItemError{Field: "lineTotal", Value: gross.String(), Reason: "must be less than " + MaxAmount.String()}
	}
	return gross, nil
}

// ComputeSummary aggregates the items and applies the adjustments. Subtotal and
// tax are summed unrounded and rounded once, so per-line rounding never compounds.
func ComputeSummary(items []LineItem, adj Adjustments) (Summary, error) {
	if err := validateAdjustments(adj); err != nil {
		return Summary{}, err
	}

	subtotal := decimal.Zero
	taxTotal := decimal.Zero
	for _, item := range items {
		if _, err := ComputeLineTotal(item); err != nil {
			return Summary{}, err
		}
		net := item.Quantity.Mul(item.UnitPrice)
		subtotal = subtotal.Add(net)
		taxTotal = taxTotal.Add(net.Mul(item.TaxPercent).Div(hundred))
	}
	subtotal = Round(subtotal)
	taxTotal = Round(taxTotal)

	grandTotal := Round(subtotal.Add(taxTotal).Add(adj.Shipping).Sub(adj.Discount))
	if subtotal.Add(taxTotal).GreaterThanOrEqual(MaxAmount) || grandTotal.GreaterThanOrEqual(MaxAmount) {
		return Summary{}, &TotalOutOfRangeError{GrandTotal: grandTotal}
	}
	if grandTotal.IsNegative() {
		return Summary{}, &NegativeTotalError{GrandTotal: grandTotal}
	}
	if adj.ReceivedAmount.GreaterThan(grandTotal) {
		return Summary{}, &OverpaymentError{ReceivedAmount: adj.ReceivedAmount, GrandTotal: grandTotal}
	}

	return Summary{
		Subtotal:       subtotal,
		TaxTotal:       taxTotal,
		Discount:       adj.Discount,
		Shipping:       adj.Shipping,
		GrandTotal:     grandTotal,
		ReceivedAmount: adj.ReceivedAmount,
		DueAmount:      Round(grandTotal.Sub(adj.ReceivedAmount)),
	}, nil
}

// Adjustments returns the inputs the summary was computed from.
func (s Summary) Adjustments() Adjustments {
	return Adjustments{Discount: s.Discount, Shipping: s.Shipping, ReceivedAmount: s.ReceivedAmount}
}

func validateAdjustments(adj Adjustments) error {
	for _, f := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"discount", adj.Discount},
		{"shipping", adj.Shipping},
		{"receivedAmount", adj.ReceivedAmount},
	} {
		if reason := checkAmount(f.value); reason != "" {
			return &InvalidAdjustmentError{Field: f.name, Value: describe(f.value), Reason: reason}
		}
	}
	return nil
}
