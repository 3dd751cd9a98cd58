// billing/status.go
package billing

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusDraft Status = "draft"
	StatusSent  Status = "sent"
	StatusPaid  Status = "paid"
)

// ParseStatus accepts a status name in any case.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusDraft, StatusSent, StatusPaid:
		return st, nil
	}
	return "", fmt.Errorf("unknown invoice status %q", s)
}

// Label is the capitalised status used in exports.
func (s Status) Label() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// EnsureEditable fails once an invoice has been paid.
func EnsureEditable(s Status) error {
	if s == StatusPaid {
		return &InvoiceLockedError{Status: s}
	}
	return nil
}

// Transition checks that an invoice may move from one status to another.
func Transition(from, to Status) error {
	if from == StatusPaid {
		return &InvoiceLockedError{Status: from}
	}
	switch {
	case from == StatusDraft && to == StatusSent:
		return nil
	case (from == StatusDraft || from == StatusSent) && to == StatusPaid:
		return nil
	}
	return &InvalidTransitionError{From: from, To: to}
}

// SendRequirements are the fields that must be present before an invoice goes out.
type SendRequirements struct {
	ItemCount  int
	ClientName string
	HasDueDate bool
}

func (r SendRequirements) Validate() error {
	var missing []string
	if r.ItemCount == 0 {
		missing = append(missing, "items")
	}
	if strings.TrimSpace(r.ClientName) == "" {
		missing = append(missing, "clientName")
	}
	if !r.HasDueDate {
		missing = append(missing, "dueDate")
	}
	if len(missing) > 0 {
		return &IncompleteInvoiceError{Missing: missing}
	}
	return nil
}
