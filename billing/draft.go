// billing/draft.go
package billing

// Draft is the editable state of an invoice: its status, items and the summary
// derived from them. Values are never mutated in place; every edit yields a new Draft.
type Draft struct {
	Status  Status
	Items   []LineItem
	Summary Summary
}

// Edit is one user change to a Draft.
type Edit interface {
	apply(d Draft) ([]LineItem, Adjustments, error)
}

// ItemEdit sets one field of the item at Index.
type ItemEdit struct {
	Index int
	Field string
	Value string
}

// ItemAdd appends a blank item.
type ItemAdd struct{}

// ItemRemove drops the item at Index.
type ItemRemove struct {
	Index int
}

// Replace swaps the whole item list and the adjustments in one step, so the
// summary is only checked against the final combination.
type Replace struct {
	Items       []LineItem
	Adjustments Adjustments
}

// AdjustmentsEdit sets discount, shipping and received amount.
type AdjustmentsEdit struct {
	Adjustments Adjustments
}

func (e ItemEdit) apply(d Draft) ([]LineItem, Adjustments, error) {
	items, err := ApplyItemEdit(d.Items, e.Index, e.Field, e.Value)
	return items, d.Summary.Adjustments(), err
}

func (ItemAdd) apply(d Draft) ([]LineItem, Adjustments, error) {
	return AddItem(d.Items), d.Summary.Adjustments(), nil
}

func (e ItemRemove) apply(d Draft) ([]LineItem, Adjustments, error) {
	items, err := RemoveItem(d.Items, e.Index)
	return items, d.Summary.Adjustments(), err
}

func (e Replace) apply(d Draft) ([]LineItem, Adjustments, error) {
	items, err := NormalizeItems(e.Items)
	return items, e.Adjustments, err
}

func (e AdjustmentsEdit) apply(d Draft) ([]LineItem, Adjustments, error) {
	return d.Items, e.Adjustments, nil
}

// NewDraft builds a consistent Draft from raw input.
func NewDraft(status Status, items []LineItem, adj Adjustments) (Draft, error) {
	if status == "" {
		status = StatusDraft
	}
	normalized, err := NormalizeItems(items)
	if err != nil {
		return Draft{}, err
	}
	summary, err := ComputeSummary(normalized, adj)
	if err != nil {
		return Draft{}, err
	}
	return Draft{Status: status, Items: normalized, Summary: summary}, nil
}

// Apply runs one edit and recomputes the summary. On error the receiver is
// returned unchanged alongside the error.
func (d Draft) Apply(e Edit) (Draft, error) {
	if err := EnsureEditable(d.Status); err != nil {
		return d, err
	}
	items, adj, err := e.apply(d)
	if err != nil {
		return d, err
	}
	summary, err := ComputeSummary(items, adj)
	if err != nil {
		return d, err
	}
	return Draft{Status: d.Status, Items: items, Summary: summary}, nil
}

// ApplyAll applies edits in order, stopping at the first failure.
func (d Draft) ApplyAll(edits ...Edit) (Draft, error) {
	next := d
	for _, e := range edits {
		var err error
		if next, err = next.Apply(e); err != nil {
			return d, err
		}
	}
	return next, nil
}

// Send moves a draft to sent once the required fields are present.
func (d Draft) Send(req SendRequirements) (Draft, error) {
	if err := Transition(d.Status, StatusSent); err != nil {
		return d, err
	}
	if err := req.Validate(); err != nil {
		return d, err
	}
	d.Status = StatusSent
	return d, nil
}

// MarkPaid settles the invoice: the received amount becomes the grand total.
func (d Draft) MarkPaid() (Draft, error) {
	if err := Transition(d.Status, StatusPaid); err != nil {
		return d, err
	}
	adj := d.Summary.Adjustments()
	adj.ReceivedAmount = d.Summary.GrandTotal
	summary, err := ComputeSummary(d.Items, adj)
	if err != nil {
		return d, err
	}
	return Draft{Status: StatusPaid, Items: d.Items, Summary: summary}, nil
}
