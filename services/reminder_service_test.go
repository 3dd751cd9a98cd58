package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"invoicely-backend/billing"
	"invoicely-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sentSMS struct {
	to   string
	body string
}

type fakeSender struct {
	sent []sentSMS
	fail map[string]bool
}

func (f *fakeSender) Send(_ context.Context, to, body string) (string, error) {
	if f.fail[to] {
		return "", errors.New("carrier rejected")
	}
	f.sent = append(f.sent, sentSMS{to: to, body: body})
	return "SM123", nil
}

func TestSendOverdueReminders(t *testing.T) {
	invoices, _ := newInvoiceService(t)
	ctx := context.Background()

	create := func(client, phone string, due *time.Time, status billing.Status) *models.Invoice {
		in := sendableInput()
		in.BillTo.ClientName = client
		in.BillTo.Phone = phone
		in.DueDate = due
		in.Status = status
		inv, err := invoices.Create(ctx, ownerA, in)
		require.NoError(t, err)
		return inv
	}

	overdue := create("Acme Ltd", "+1 (555) 123-4567", dayPtr(2026, 10, 10), billing.StatusSent)
	create("Globex", "+15550000000", dayPtr(2026, 10, 30), billing.StatusSent)
	create("Initech", "+15551111111", dayPtr(2026, 10, 1), billing.StatusDraft)
	create("No Phone", "", dayPtr(2026, 10, 1), billing.StatusSent)
	failing := create("Umbrella", "+15552222222", dayPtr(2026, 10, 1), billing.StatusSent)
	paid := create("Hooli", "+15553333333", dayPtr(2026, 10, 1), billing.StatusSent)
	_, err := invoices.MarkPaid(ctx, ownerA, paid.ID)
	require.NoError(t, err)

	sender := &fakeSender{fail: map[string]bool{"+15552222222": true}}
	svc := NewReminderService(invoices.db, sender, zap.NewNop())
	svc.now = func() time.Time { return fixedNow }

	n, err := svc.SendOverdueReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "+15551234567", sender.sent[0].to)
	assert.Contains(t, sender.sent[0].body, overdue.InvoiceNumber)
	assert.Contains(t, sender.sent[0].body, "115.00")
	assert.Contains(t, sender.sent[0].body, "2026-10-10")

	logs, err := svc.ListReminders(ctx, ownerA, 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	statuses := map[string]string{}
	for _, l := range logs {
		statuses[l.InvoiceID.String()] = l.Status
	}
	assert.Equal(t, "sent", statuses[overdue.ID.String()])
	assert.Equal(t, "failed", statuses[failing.ID.String()])

	// Same day: the delivered reminder is not repeated, the failed one is retried.
	n, err = svc.SendOverdueReminders(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, sender.sent, 1)

	// Next day the overdue client is reminded again.
	svc.now = func() time.Time { return fixedNow.AddDate(0, 0, 1) }
	n, err = svc.SendOverdueReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	others, err := svc.ListReminders(ctx, ownerB, 10)
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestReminderService_StartRejectsBadSchedule(t *testing.T) {
	svc := NewReminderService(setupTestDB(t), &fakeSender{}, zap.NewNop())
	assert.Error(t, svc.Start("not a schedule"))

	require.NoError(t, svc.Start("0 9 * * *"))
	svc.Stop()
}
