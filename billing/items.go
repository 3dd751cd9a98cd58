// billing/items.go
package billing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Editable line item fields.
const (
	FieldDescription = "description"
	FieldQuantity    = "quantity"
	FieldUnitPrice   = "unitPrice"
	FieldTaxPercent  = "taxPercent"
)

// NewItem returns the blank row appended by AddItem.
func NewItem() LineItem {
	return LineItem{
		Quantity:   decimal.NewFromInt(1),
		UnitPrice:  decimal.Zero,
		TaxPercent: decimal.Zero,
		LineTotal:  decimal.Zero,
	}
}

// AddItem returns a copy of items with a blank row appended.
func AddItem(items []LineItem) []LineItem {
	out := make([]LineItem, len(items), len(items)+1)
	copy(out, items)
	return append(out, NewItem())
}

// RemoveItem returns a copy of items without the row at index.
func RemoveItem(items []LineItem, index int) ([]LineItem, error) {
	if index < 0 || index >= len(items) {
		return nil, &IndexOutOfRangeError{Index: index, Length: len(items)}
	}
	out := make([]LineItem, 0, len(items)-1)
	out = append(out, items[:index]...)
	return append(out, items[index+1:]...), nil
}

// ApplyItemEdit returns a copy of items with one field of one row replaced.
// Only the edited row's line total is recomputed.
func ApplyItemEdit(items []LineItem, index int, field, value string) ([]LineItem, error) {
	if index < 0 || index >= len(items) {
		return nil, &IndexOutOfRangeError{Index: index, Length: len(items)}
	}

	item := items[index]
	switch field {
	case FieldDescription:
		item.Description = value
	case FieldQuantity, FieldUnitPrice, FieldTaxPercent:
		d, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return nil, &InvalidItemError{Field: field, Value: value, Reason: "not a number"}
		}
		if reason := checkAmount(d); reason != "" {
			return nil, &InvalidItemError{Field: field, Value: value, Reason: reason}
		}
		switch field {
		case FieldQuantity:
			item.Quantity = d
		case FieldUnitPrice:
			item.UnitPrice = d
		default:
			item.TaxPercent = d
		}
	default:
		return nil, &InvalidItemError{Field: field, Value: value, Reason: "unknown field"}
	}

	total, err := ComputeLineTotal(item)
	if err != nil {
		return nil, err
	}
	item.LineTotal = total

	out := make([]LineItem, len(items))
	copy(out, items)
	out[index] = item
	return out, nil
}

// NormalizeItems recomputes every line total, discarding whatever totals the caller sent.
func NormalizeItems(items []LineItem) ([]LineItem, error) {
	out := make([]LineItem, len(items))
	for i, item := range items {
		total, err := ComputeLineTotal(item)
		if err != nil {
			return nil, err
		}
		item.LineTotal = total
		out[i] = item
	}
	return out, nil
}
