package services

import (
	"context"
	"testing"

	"invoicely-backend/billing"
	"invoicely-backend/events"
	"invoicely-backend/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertMoney(t *testing.T, want string, got interface{ StringFixed(int32) string }) {
	t.Helper()
	assert.Equal(t, want, got.StringFixed(2))
}

func TestCreateInvoice_ComputesTotalsAndNumbers(t *testing.T) {
	svc, pub := newInvoiceService(t)
	ctx := context.Background()

	in := sendableInput()
	in.Items[0].LineTotal = d("999") // ignored
	inv, err := svc.Create(ctx, ownerA, in)
	require.NoError(t, err)

	assert.Equal(t, "INV-0001", inv.InvoiceNumber)
	assert.Equal(t, billing.StatusDraft, inv.Status)
	require.Len(t, inv.Items, 1)
	assertMoney(t, "110.00", inv.Items[0].LineTotal)
	assertMoney(t, "100.00", inv.Summary.Subtotal)
	assertMoney(t, "10.00", inv.Summary.TaxTotal)
	assertMoney(t, "115.00", inv.Summary.GrandTotal)
	assertMoney(t, "115.00", inv.Summary.DueAmount)
	assert.Nil(t, inv.SentAt)

	second, err := svc.Create(ctx, ownerB, sendableInput())
	require.NoError(t, err)
	assert.Equal(t, "INV-0002", second.InvoiceNumber)

	assert.Equal(t, []string{events.InvoiceCreated, events.InvoiceCreated}, pub.keys())
}

func TestCreateInvoice_AsSent(t *testing.T) {
	svc, pub := newInvoiceService(t)

	in := sendableInput()
	in.Status = billing.StatusSent
	inv, err := svc.Create(context.Background(), ownerA, in)
	require.NoError(t, err)

	assert.Equal(t, billing.StatusSent, inv.Status)
	require.NotNil(t, inv.SentAt)
	assert.Equal(t, []string{events.InvoiceCreated, events.InvoiceSent}, pub.keys())
}

func TestCreateInvoice_Rejections(t *testing.T) {
	svc, _ := newInvoiceService(t)
	ctx := context.Background()

	t.Run("incomplete when sent", func(t *testing.T) {
		in := sendableInput()
		in.Status = billing.StatusSent
		in.DueDate = nil
		in.BillTo.ClientName = " "
		_, err := svc.Create(ctx, ownerA, in)

		var incomplete *billing.IncompleteInvoiceError
		require.ErrorAs(t, err, &incomplete)
		assert.Equal(t, []string{"clientName", "dueDate"}, incomplete.Missing)
	})

	t.Run("paid on create", func(t *testing.T) {
		in := sendableInput()
		in.Status = billing.StatusPaid
		_, err := svc.Create(ctx, ownerA, in)

		var transition *billing.InvalidTransitionError
		assert.ErrorAs(t, err, &transition)
	})

	t.Run("invalid item", func(t *testing.T) {
		in := sendableInput()
		in.Items[0].TaxPercent = d("101")
		_, err := svc.Create(ctx, ownerA, in)

		var invalid *billing.InvalidItemError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, billing.FieldTaxPercent, invalid.Field)
	})

	t.Run("overpayment", func(t *testing.T) {
		in := sendableInput()
		in.Adjustments.ReceivedAmount = d("200")
		_, err := svc.Create(ctx, ownerA, in)

		var over *billing.OverpaymentError
		assert.ErrorAs(t, err, &over)
	})

	// Rejected creates never consume a number.
	next, err := svc.NextNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, "INV-0001", next)
}

func TestGetInvoice_ScopedToOwner(t *testing.T) {
	svc, _ := newInvoiceService(t)
	ctx := context.Background()

	inv, err := svc.Create(ctx, ownerA, sendableInput())
	require.NoError(t, err)

	got, err := svc.Get(ctx, ownerA, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, inv.InvoiceNumber, got.InvoiceNumber)
	assertMoney(t, "115.00", got.Summary.DueAmount)
	assert.Equal(t, "Acme Ltd", got.BillTo.ClientName)

	_, err = svc.Get(ctx, ownerB, inv.ID)
	assert.ErrorIs(t, err, ErrInvoiceNotFound)
}

func TestEditInvoice_ItemOperations(t *testing.T) {
	svc, pub := newInvoiceService(t)
	ctx := context.Background()

	inv, err := svc.Create(ctx, ownerA, sendableInput())
	require.NoError(t, err)

	inv, err = svc.Edit(ctx, ownerA, inv.ID, billing.ItemEdit{Index: 0, Field: billing.FieldQuantity, Value: "3"})
	require.NoError(t, err)
	assertMoney(t, "150.00", inv.Summary.Subtotal)
	assertMoney(t, "15.00", inv.Summary.TaxTotal)
	assertMoney(t, "170.00", inv.Summary.GrandTotal)

	inv, err = svc.Edit(ctx, ownerA, inv.ID,
		billing.ItemAdd{},
		billing.ItemEdit{Index: 1, Field: billing.FieldDescription, Value: "Hosting"},
		billing.ItemEdit{Index: 1, Field: billing.FieldUnitPrice, Value: "20"},
	)
	require.NoError(t, err)
	assertMoney(t, "190.00", inv.Summary.GrandTotal)

	stored, err := svc.Get(ctx, ownerA, inv.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
	assert.Equal(t, "Design", stored.Items[0].Description)
	assert.Equal(t, "Hosting", stored.Items[1].Description)
	assertMoney(t, "20.00", stored.Items[1].LineTotal)
	assertMoney(t, "190.00", stored.Summary.GrandTotal)

	inv, err = svc.Edit(ctx, ownerA, inv.ID, billing.ItemRemove{Index: 0})
	require.NoError(t, err)
	require.Len(t, inv.Items, 1)
	assertMoney(t, "25.00", inv.Summary.GrandTotal)

	assert.Equal(t, events.InvoiceUpdated, pub.keys()[len(pub.keys())-1])
}

func TestEditInvoice_FailureKeepsStoredState(t *testing.T) {
	svc, _ := newInvoiceService(t)
	ctx := context.Background()

	inv, err := svc.Create(ctx, ownerA, sendableInput())
	require.NoError(t, err)

	_, err = svc.Edit(ctx, ownerA, inv.ID,
		billing.ItemAdd{},
		billing.ItemRemove{Index: 5},
	)
	var oob *billing.IndexOutOfRangeError
	require.ErrorAs(t, err, &oob)
	assert.Equal(t, 5, oob.Index)

	_, err = svc.Edit(ctx, ownerA, inv.ID, billing.ItemEdit{Index: 0, Field: billing.FieldQuantity, Value: "abc"})
	var invalid *billing.InvalidItemError
	require.ErrorAs(t, err, &invalid)

	stored, err := svc.Get(ctx, ownerA, inv.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assertMoney(t, "115.00", stored.Summary.GrandTotal)
}

func TestUpdateInvoice(t *testing.T) {
	svc, _ := newInvoiceService(t)
	ctx := context.Background()

	inv, err := svc.Create(ctx, ownerA, sendableInput())
	require.NoError(t, err)

	in := sendableInput()
	in.Items = []billing.LineItem{
		lineItem("Widget", "2", "10.00", "10"),
		lineItem("Gadget", "1", "5.50", "0"),
	}
	in.Adjustments = billing.Adjustments{Discount: d("3"), Shipping: d("2"), ReceivedAmount: d("10")}
	in.Notes = "Thanks"

	updated, err := svc.Update(ctx, ownerA, inv.ID, in)
	require.NoError(t, err)
	assertMoney(t, "25.50", updated.Summary.Subtotal)
	assertMoney(t, "2.00", updated.Summary.TaxTotal)
	assertMoney(t, "26.50", updated.Summary.GrandTotal)
	assertMoney(t, "16.50", updated.Summary.DueAmount)
	assert.Equal(t, inv.InvoiceNumber, updated.InvoiceNumber)

	stored, err := svc.Get(ctx, ownerA, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Thanks", stored.Notes)
	require.Len(t, stored.Items, 2)
	assert.Equal(t, "Gadget", stored.Items[1].Description)

	in.Adjustments.ReceivedAmount = d("100")
	_, err = svc.Update(ctx, ownerA, inv.ID, in)
	var over *billing.OverpaymentError
	require.ErrorAs(t, err, &over)

	stored, err = svc.Get(ctx, ownerA, inv.ID)
	require.NoError(t, err)
	assertMoney(t, "10.00", stored.Summary.ReceivedAmount)

	_, err = svc.Update(ctx, ownerB, inv.ID, in)
	assert.ErrorIs(t, err, ErrInvoiceNotFound)
}

func TestUpdateInvoice_RejectsStatusChange(t *testing.T) {
	svc, pub := newInvoiceService(t)
	ctx := context.Background()

	inv, err := svc.Create(ctx, ownerA, sendableInput())
	require.NoError(t, err)

	in := sendableInput()
	in.Status = billing.StatusSent
	in.Notes = "changed"
	_, err = svc.Update(ctx, ownerA, inv.ID, in)
	var statusChange *StatusChangeError
	require.ErrorAs(t, err, &statusChange)
	assert.Equal(t, billing.StatusDraft, statusChange.From)
	assert.Equal(t, billing.StatusSent, statusChange.To)

	stored, err := svc.Get(ctx, ownerA, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusDraft, stored.Status)
	assert.Empty(t, stored.Notes)

	// Repeating the current status is allowed.
	in.Status = billing.StatusDraft
	_, err = svc.Update(ctx, ownerA, inv.ID, in)
	require.NoError(t, err)
	assert.Equal(t, []string{events.InvoiceCreated, events.InvoiceUpdated}, pub.keys())
}

func TestInvoiceLifecycle(t *testing.T) {
	svc, pub := newInvoiceService(t)
	ctx := context.Background()

	inv, err := svc.Create(ctx, ownerA, sendableInput())
	require.NoError(t, err)

	sent, err := svc.Send(ctx, ownerA, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusSent, sent.Status)
	require.NotNil(t, sent.SentAt)

	_, err = svc.Send(ctx, ownerA, inv.ID)
	var transition *billing.InvalidTransitionError
	require.ErrorAs(t, err, &transition)

	// A sent invoice can still be edited but must stay complete.
	in := sendableInput()
	in.DueDate = nil
	_, err = svc.Update(ctx, ownerA, inv.ID, in)
	var incomplete *billing.IncompleteInvoiceError
	require.ErrorAs(t, err, &incomplete)

	paid, err := svc.MarkPaid(ctx, ownerA, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusPaid, paid.Status)
	assertMoney(t, "115.00", paid.Summary.ReceivedAmount)
	assertMoney(t, "0.00", paid.Summary.DueAmount)
	require.NotNil(t, paid.PaidAt)

	var locked *billing.InvoiceLockedError
	_, err = svc.Edit(ctx, ownerA, inv.ID, billing.ItemAdd{})
	assert.ErrorAs(t, err, &locked)
	_, err = svc.Update(ctx, ownerA, inv.ID, sendableInput())
	assert.ErrorAs(t, err, &locked)
	_, err = svc.MarkPaid(ctx, ownerA, inv.ID)
	assert.ErrorAs(t, err, &locked)

	stored, err := svc.Get(ctx, ownerA, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusPaid, stored.Status)
	assertMoney(t, "0.00", stored.Summary.DueAmount)

	assert.Equal(t, []string{events.InvoiceCreated, events.InvoiceSent, events.InvoicePaid}, pub.keys())
}

func TestSendInvoice_Incomplete(t *testing.T) {
	svc, _ := newInvoiceService(t)
	ctx := context.Background()

	in := sendableInput()
	in.Items = nil
	in.Adjustments = billing.Adjustments{}
	inv, err := svc.Create(ctx, ownerA, in)
	require.NoError(t, err)

	_, err = svc.Send(ctx, ownerA, inv.ID)
	var incomplete *billing.IncompleteInvoiceError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, []string{"items"}, incomplete.Missing)
}

func TestListInvoices(t *testing.T) {
	svc, _ := newInvoiceService(t)
	ctx := context.Background()

	mk := func(owner uuid.UUID, client string, day int, due int, price string, status billing.Status) *models.Invoice {
		in := sendableInput()
		in.BillTo.ClientName = client
		in.InvoiceDate = *dayPtr(2026, 10, day)
		in.DueDate = dayPtr(2026, 10, due)
		in.Items = []billing.LineItem{lineItem("Work", "1", price, "0")}
		in.Adjustments = billing.Adjustments{}
		in.Status = status
		inv, err := svc.Create(ctx, owner, in)
		require.NoError(t, err)
		return inv
	}
	mk(ownerA, "Acme Ltd", 1, 10, "100", billing.StatusSent)
	mk(ownerA, "Globex", 5, 30, "300", billing.StatusSent)
	// Drafts are never overdue.
	mk(ownerA, "acme west", 8, 12, "50", billing.StatusDraft)
	mk(ownerB, "Acme Ltd", 2, 3, "999", billing.StatusSent)

	page, err := svc.List(ctx, ownerA, InvoiceFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)
	assert.Equal(t, DefaultPageSize, page.Limit)
	require.Len(t, page.Items, 3)
	assert.Equal(t, "acme west", page.Items[0].BillTo.ClientName, "newest first by default")

	page, err = svc.List(ctx, ownerA, InvoiceFilter{Search: "ACME"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)

	page, err = svc.List(ctx, ownerA, InvoiceFilter{Status: billing.StatusSent, Sort: "-total"})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Globex", page.Items[0].BillTo.ClientName)

	page, err = svc.List(ctx, ownerA, InvoiceFilter{Overdue: true})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Acme Ltd", page.Items[0].BillTo.ClientName)

	page, err = svc.List(ctx, ownerA, InvoiceFilter{From: dayPtr(2026, 10, 5), To: dayPtr(2026, 10, 8)})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)

	page, err = svc.List(ctx, ownerA, InvoiceFilter{Sort: "date", Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Globex", page.Items[0].BillTo.ClientName)

	page, err = svc.List(ctx, ownerA, InvoiceFilter{Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize, page.Limit)

	all, err := svc.ListAll(ctx, ownerA, InvoiceFilter{Sort: "number"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "INV-0001", all[0].InvoiceNumber)
}

func TestDeleteInvoice(t *testing.T) {
	svc, pub := newInvoiceService(t)
	ctx := context.Background()

	inv, err := svc.Create(ctx, ownerA, sendableInput())
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, ownerB, inv.ID), ErrInvoiceNotFound)
	require.NoError(t, svc.Delete(ctx, ownerA, inv.ID))

	_, err = svc.Get(ctx, ownerA, inv.ID)
	assert.ErrorIs(t, err, ErrInvoiceNotFound)

	var items int64
	require.NoError(t, svc.db.Model(&models.InvoiceItem{}).Where("invoice_id = ?", inv.ID).Count(&items).Error)
	assert.Zero(t, items)
	assert.Equal(t, events.InvoiceDeleted, pub.keys()[len(pub.keys())-1])

	// Numbers are never reused.
	next, err := svc.Create(ctx, ownerA, sendableInput())
	require.NoError(t, err)
	assert.Equal(t, "INV-0002", next.InvoiceNumber)
}

func TestNextNumber_DoesNotConsume(t *testing.T) {
	svc, _ := newInvoiceService(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		next, err := svc.NextNumber(ctx)
		require.NoError(t, err)
		assert.Equal(t, "INV-0001", next)
	}

	_, err := svc.Create(ctx, ownerA, sendableInput())
	require.NoError(t, err)
	next, err := svc.NextNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, "INV-0002", next)
}

func TestDashboard(t *testing.T) {
	svc, _ := newInvoiceService(t)
	ctx := context.Background()

	empty, err := svc.Dashboard(ctx, ownerA)
	require.NoError(t, err)
	assert.Zero(t, empty.TotalInvoices)
	assertMoney(t, "0.00", empty.Outstanding)
	assert.Empty(t, empty.RecentInvoices)

	draft := sendableInput()
	_, err = svc.Create(ctx, ownerA, draft)
	require.NoError(t, err)

	overdue := sendableInput()
	overdue.Status = billing.StatusSent
	overdue.DueDate = dayPtr(2026, 10, 2)
	overdue.Adjustments.ReceivedAmount = d("15")
	_, err = svc.Create(ctx, ownerA, overdue)
	require.NoError(t, err)

	settled, err := svc.Create(ctx, ownerA, sendableInput())
	require.NoError(t, err)
	_, err = svc.MarkPaid(ctx, ownerA, settled.ID)
	require.NoError(t, err)

	overview, err := svc.Dashboard(ctx, ownerA)
	require.NoError(t, err)
	assert.EqualValues(t, 3, overview.TotalInvoices)
	assert.EqualValues(t, 1, overview.StatusCounts[billing.StatusDraft])
	assert.EqualValues(t, 1, overview.StatusCounts[billing.StatusSent])
	assert.EqualValues(t, 1, overview.StatusCounts[billing.StatusPaid])
	assertMoney(t, "230.00", overview.TotalInvoiced)
	assertMoney(t, "130.00", overview.TotalReceived)
	assertMoney(t, "100.00", overview.Outstanding)
	assert.EqualValues(t, 1, overview.OverdueCount)
	assert.Len(t, overview.RecentInvoices, 3)
}
