// services/report_service.go
package services

import (
	"context"
	"sort"
	"time"

	"invoicely-backend/billing"
	"invoicely-backend/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RevenueReport compares paid revenue against the previous period.
type RevenueReport struct {
	CurrentMonthRevenue   decimal.Decimal `json:"currentMonthRevenue"`
	MonthGrowth           float64         `json:"monthGrowth"`
	CurrentQuarterRevenue decimal.Decimal `json:"currentQuarterRevenue"`
	QuarterGrowth         float64         `json:"quarterGrowth"`
	CurrentYearRevenue    decimal.Decimal `json:"currentYearRevenue"`
	YearGrowth            float64         `json:"yearGrowth"`
	TopClients            []ClientSummary `json:"topClients"`
	QuickStats            QuickStatistics `json:"quickStats"`
}

type ClientSummary struct {
	Name     string          `json:"name"`
	Invoices int             `json:"invoices"`
	Billed   decimal.Decimal `json:"billed"`
}

type QuickStatistics struct {
	TotalInvoices   int             `json:"totalInvoices"`
	PaidInvoices    int             `json:"paidInvoices"`
	AvgInvoiceValue decimal.Decimal `json:"avgInvoiceValue"`
}

// ReportService builds revenue analytics. Revenue is the grand total of paid
// invoices, bucketed by the day they were paid.
type ReportService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewReportService(db *gorm.DB) *ReportService {
	return &ReportService{db: db, now: time.Now}
}

type revenueRow struct {
	GrandTotal decimal.Decimal
	PaidAt     *time.Time
	ClientName string
	Status     billing.Status
}

func (s *ReportService) Revenue(ctx context.Context, ownerID uuid.UUID) (*RevenueReport, error) {
	var rows []revenueRow
	if err := s.db.WithContext(ctx).Model(&models.Invoice{}).
		Select("grand_total, paid_at, bill_to_client_name AS client_name, status").
		Where("owner_id = ?", ownerID).
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	now := s.now()
	year, month, _ := now.Date()
	loc := now.Location()

	firstOfMonth := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	quarterStart := getQuarterStart(now)
	firstOfYear := time.Date(year, 1, 1, 0, 0, 0, 0, loc)

	// Periods are half-open [start, end).
	revenue := func(start, end time.Time) decimal.Decimal {
		total := decimal.Zero
		for _, r := range rows {
			if r.Status != billing.StatusPaid || r.PaidAt == nil {
				continue
			}
			paid := r.PaidAt.In(loc)
			if !paid.Before(start) && paid.Before(end) {
				total = total.Add(r.GrandTotal)
			}
		}
		return billing.Round(total)
	}

	report := &RevenueReport{
		CurrentMonthRevenue:   revenue(firstOfMonth, firstOfMonth.AddDate(0, 1, 0)),
		CurrentQuarterRevenue: revenue(quarterStart, getQuarterEnd(now)),
		CurrentYearRevenue:    revenue(firstOfYear, firstOfYear.AddDate(1, 0, 0)),
	}
	report.MonthGrowth = calculateGrowthPercentage(report.CurrentMonthRevenue,
		revenue(firstOfMonth.AddDate(0, -1, 0), firstOfMonth))
	report.QuarterGrowth = calculateGrowthPercentage(report.CurrentQuarterRevenue,
		revenue(quarterStart.AddDate(0, -3, 0), quarterStart))
	report.YearGrowth = calculateGrowthPercentage(report.CurrentYearRevenue,
		revenue(firstOfYear.AddDate(-1, 0, 0), firstOfYear))

	report.TopClients = topClients(rows, 4)

	paidTotal := decimal.Zero
	for _, r := range rows {
		report.QuickStats.TotalInvoices++
		if r.Status == billing.StatusPaid {
			report.QuickStats.PaidInvoices++
			paidTotal = paidTotal.Add(r.GrandTotal)
		}
	}
	report.QuickStats.AvgInvoiceValue = decimal.Zero
	if report.QuickStats.PaidInvoices > 0 {
		report.QuickStats.AvgInvoiceValue = billing.Round(paidTotal.Div(decimal.NewFromInt(int64(report.QuickStats.PaidInvoices))))
	}

	return report, nil
}

func topClients(rows []revenueRow, limit int) []ClientSummary {
	byName := map[string]*ClientSummary{}
	var order []string
	for _, r := range rows {
		if r.Status == billing.StatusDraft || r.ClientName == "" {
			continue
		}
		cs, ok := byName[r.ClientName]
		if !ok {
			cs = &ClientSummary{Name: r.ClientName, Billed: decimal.Zero}
			byName[r.ClientName] = cs
			order = append(order, r.ClientName)
		}
		cs.Invoices++
		cs.Billed = cs.Billed.Add(r.GrandTotal)
	}

	clients := make([]ClientSummary, 0, len(order))
	for _, name := range order {
		clients = append(clients, *byName[name])
	}
	sort.SliceStable(clients, func(i, j int) bool {
		return clients[i].Billed.GreaterThan(clients[j].Billed)
	})
	if len(clients) > limit {
		clients = clients[:limit]
	}
	return clients
}

func getQuarterStart(date time.Time) time.Time {
	quarter := (int(date.Month())-1)/3 + 1
	startMonth := time.Month((quarter-1)*3 + 1)
	return time.Date(date.Year(), startMonth, 1, 0, 0, 0, 0, date.Location())
}

// getQuarterEnd is the first instant of the following quarter.
func getQuarterEnd(date time.Time) time.Time {
	return getQuarterStart(date).AddDate(0, 3, 0)
}

func calculateGrowthPercentage(current, previous decimal.Decimal) float64 {
	if previous.IsZero() {
		if current.IsZero() {
			return 0
		}
		return 100
	}
	growth, _ := current.Sub(previous).Div(previous).Mul(decimal.NewFromInt(100)).Round(2).Float64()
	return growth
}
