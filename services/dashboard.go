// services/dashboard.go
package services

import (
	"context"

	"invoicely-backend/billing"
	"invoicely-backend/models"
	"invoicely-backend/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const recentInvoiceCount = 5

type DashboardOverview struct {
	StatusCounts   map[billing.Status]int64 `json:"statusCounts"`
	TotalInvoices  int64                    `json:"totalInvoices"`
	TotalInvoiced  decimal.Decimal          `json:"totalInvoiced"`
	TotalReceived  decimal.Decimal          `json:"totalReceived"`
	Outstanding    decimal.Decimal          `json:"outstanding"`
	OverdueCount   int64                    `json:"overdueCount"`
	RecentInvoices []RecentInvoice          `json:"recentInvoices"`
}

type RecentInvoice struct {
	ID            uuid.UUID       `json:"id"`
	InvoiceNumber string          `json:"invoiceNumber"`
	ClientName    string          `json:"clientName"`
	GrandTotal    decimal.Decimal `json:"grandTotal"`
	Status        billing.Status  `json:"status"`
	InvoiceDate   string          `json:"invoiceDate"`
}

type dashboardRow struct {
	Status         billing.Status
	GrandTotal     decimal.Decimal
	ReceivedAmount decimal.Decimal
}

// Dashboard aggregates the owner's invoices. Amounts are summed in decimal
// rather than in SQL so sqlite and postgres agree to the cent.
func (s *InvoiceService) Dashboard(ctx context.Context, ownerID uuid.UUID) (*DashboardOverview, error) {
	overview := &DashboardOverview{
		StatusCounts: map[billing.Status]int64{
			billing.StatusDraft: 0,
			billing.StatusSent:  0,
			billing.StatusPaid:  0,
		},
		TotalInvoiced:  decimal.Zero,
		TotalReceived:  decimal.Zero,
		Outstanding:    decimal.Zero,
		RecentInvoices: []RecentInvoice{},
	}

	var rows []dashboardRow
	if err := s.db.WithContext(ctx).Model(&models.Invoice{}).
		Select("status, grand_total, received_amount").
		Where("owner_id = ?", ownerID).
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	for _, row := range rows {
		overview.StatusCounts[row.Status]++
		overview.TotalInvoices++
		if row.Status == billing.StatusDraft {
			continue
		}
		overview.TotalInvoiced = overview.TotalInvoiced.Add(row.GrandTotal)
		overview.TotalReceived = overview.TotalReceived.Add(row.ReceivedAmount)
		overview.Outstanding = overview.Outstanding.Add(row.GrandTotal.Sub(row.ReceivedAmount))
	}
	overview.TotalInvoiced = billing.Round(overview.TotalInvoiced)
	overview.TotalReceived = billing.Round(overview.TotalReceived)
	overview.Outstanding = billing.Round(overview.Outstanding)

	if err := s.filtered(ctx, ownerID, InvoiceFilter{Overdue: true}).
		Count(&overview.OverdueCount).Error; err != nil {
		return nil, err
	}

	var recent []models.Invoice
	if err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Limit(recentInvoiceCount).
		Find(&recent).Error; err != nil {
		return nil, err
	}
	for _, inv := range recent {
		overview.RecentInvoices = append(overview.RecentInvoices, RecentInvoice{
			ID:            inv.ID,
			InvoiceNumber: inv.InvoiceNumber,
			ClientName:    inv.BillTo.ClientName,
			GrandTotal:    inv.Summary.GrandTotal,
			Status:        inv.Status,
			InvoiceDate:   inv.InvoiceDate.Format(utils.DateLayout),
		})
	}

	return overview, nil
}
