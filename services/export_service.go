// services/export_service.go
package services

import (
	"bytes"
	"fmt"
	"time"

	"invoicely-backend/models"
	"invoicely-backend/utils"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const ExportSheet = "Invoices"

var exportHeaders = []string{
	"Invoice Number", "Date", "Due Date", "Client Name", "Company", "Email", "Phone",
	"Subtotal", "Tax Total", "Discount", "Shipping", "Grand Total", "Received Amount",
	"Due Amount", "Status", "Items Count", "Notes",
}

var exportColumnWidths = map[string]float64{
	"A": 16, "B": 12, "C": 12, "D": 24, "E": 24, "F": 28, "G": 16,
	"H": 12, "I": 12, "J": 12, "K": 12, "L": 14, "M": 16, "N": 12, "O": 10, "P": 12, "Q": 40,
}

// ExportFileName is invoices_YYYY-MM-DD.xlsx for the given day.
func ExportFileName(now time.Time) string {
	return fmt.Sprintf("invoices_%s.xlsx", now.Format(utils.DateLayout))
}

func money(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

// ExportInvoices renders invoices as an xlsx workbook with one row per invoice.
func ExportInvoices(invoices []models.Invoice) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ExportSheet); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return nil, err
	}

	if err := f.SetSheetRow(ExportSheet, "A1", &exportHeaders); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(ExportSheet, "A1", "Q1", headerStyle); err != nil {
		return nil, err
	}
	for col, width := range exportColumnWidths {
		if err := f.SetColWidth(ExportSheet, col, col, width); err != nil {
			return nil, err
		}
	}

	for i, inv := range invoices {
		dueDate := ""
		if inv.DueDate != nil {
			dueDate = inv.DueDate.Format(utils.DateLayout)
		}
		row := []interface{}{
			inv.InvoiceNumber,
			inv.InvoiceDate.Format(utils.DateLayout),
			dueDate,
			inv.BillTo.ClientName,
			inv.BillTo.CompanyName,
			inv.BillTo.Email,
			inv.BillTo.Phone,
			money(inv.Summary.Subtotal),
			money(inv.Summary.TaxTotal),
			money(inv.Summary.Discount),
			money(inv.Summary.Shipping),
			money(inv.Summary.GrandTotal),
			money(inv.Summary.ReceivedAmount),
			money(inv.Summary.DueAmount),
			inv.Status.Label(),
			len(inv.Items),
			inv.Notes,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(ExportSheet, cell, &row); err != nil {
			return nil, err
		}
	}
	if n := len(invoices); n > 0 {
		if err := f.SetCellStyle(ExportSheet, "H2", fmt.Sprintf("N%d", n+1), amountStyle); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
