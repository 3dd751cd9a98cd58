// controllers/invoice.go
package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"invoicely-backend/billing"
	"invoicely-backend/models"
	"invoicely-backend/services"
	"invoicely-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InvoiceItemInput is one line item as submitted by the form. Any lineTotal
// sent by the client is ignored.
type InvoiceItemInput struct {
	Description string          `json:"description" binding:"max=500"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	TaxPercent  decimal.Decimal `json:"taxPercent"`
}

type BillFromInput struct {
	CompanyName string `json:"companyName"`
	Address     string `json:"address"`
	Email       string `json:"email" binding:"omitempty,email"`
	Phone       string `json:"phone" binding:"omitempty,phone"`
}

type BillToInput struct {
	ClientName  string `json:"clientName"`
	CompanyName string `json:"companyName"`
	Address     string `json:"address"`
	Email       string `json:"email" binding:"omitempty,email"`
	Phone       string `json:"phone" binding:"omitempty,phone"`
}

// InvoiceRequest is the body of create and full update.
type InvoiceRequest struct {
	InvoiceDate    string             `json:"invoiceDate"`
	DueDate        string             `json:"dueDate"`
	BillFrom       BillFromInput      `json:"billFrom"`
	BillTo         BillToInput        `json:"billTo"`
	Items          []InvoiceItemInput `json:"items" binding:"dive"`
	Discount       decimal.Decimal    `json:"discount"`
	Shipping       decimal.Decimal    `json:"shipping"`
	ReceivedAmount decimal.Decimal    `json:"receivedAmount"`
	Notes          string             `json:"notes"`
	PaymentMethod  string             `json:"paymentMethod" binding:"omitempty,oneof=bank_transfer credit_card paypal check cash"`
	Status         string             `json:"status" binding:"omitempty,oneof=draft sent"`
}

// ItemEditRequest sets one field of one line item. Value may be a JSON string or number.
type ItemEditRequest struct {
	Field string          `json:"field" binding:"required"`
	Value json.RawMessage `json:"value"`
}

type ListInvoicesQuery struct {
	Status  string `form:"status" binding:"omitempty,oneof=draft sent paid"`
	Search  string `form:"search"`
	From    string `form:"from"`
	To      string `form:"to"`
	Overdue bool   `form:"overdue"`
	Sort    string `form:"sort" binding:"omitempty,oneof=date -date total -total number -number"`
	Limit   int    `form:"limit" binding:"min=0"`
	Offset  int    `form:"offset" binding:"min=0"`
}

type InvoiceController struct {
	invoices *services.InvoiceService
	logger   *zap.Logger
	now      func() time.Time
}

func NewInvoiceController(invoices *services.InvoiceService, logger *zap.Logger) *InvoiceController {
	return &InvoiceController{invoices: invoices, logger: logger, now: time.Now}
}

func parseOptionalDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := utils.ParseDate(value, time.UTC)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r InvoiceRequest) toInput() (services.InvoiceInput, error) {
	in := services.InvoiceInput{
		BillFrom: models.BillFrom{
			CompanyName: strings.TrimSpace(r.BillFrom.CompanyName),
			Address:     r.BillFrom.Address,
			Email:       strings.TrimSpace(r.BillFrom.Email),
			Phone:       utils.NormalizePhone(r.BillFrom.Phone),
		},
		BillTo: models.BillTo{
			ClientName:  strings.TrimSpace(r.BillTo.ClientName),
			CompanyName: strings.TrimSpace(r.BillTo.CompanyName),
			Address:     r.BillTo.Address,
			Email:       strings.TrimSpace(r.BillTo.Email),
			Phone:       utils.NormalizePhone(r.BillTo.Phone),
		},
		Adjustments: billing.Adjustments{
			Discount:       r.Discount,
			Shipping:       r.Shipping,
			ReceivedAmount: r.ReceivedAmount,
		},
		Notes:         r.Notes,
		PaymentMethod: r.PaymentMethod,
		Status:        billing.Status(r.Status),
	}

	invoiceDate, err := parseOptionalDate(r.InvoiceDate)
	if err != nil {
		return in, err
	}
	if invoiceDate != nil {
		in.InvoiceDate = *invoiceDate
	}
	if in.DueDate, err = parseOptionalDate(r.DueDate); err != nil {
		return in, err
	}

	in.Items = make([]billing.LineItem, len(r.Items))
	for i, item := range r.Items {
		in.Items[i] = billing.LineItem{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			TaxPercent:  item.TaxPercent,
		}
	}
	return in, nil
}

func (ic *InvoiceController) bindInvoice(c *gin.Context) (services.InvoiceInput, bool) {
	var req InvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return services.InvoiceInput{}, false
	}
	in, err := req.toInput()
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Dates must use YYYY-MM-DD")
		return services.InvoiceInput{}, false
	}
	return in, true
}

// owner returns the signed-in user; AuthMiddleware guarantees it on /api routes.
func owner(c *gin.Context) (uuid.UUID, bool) {
	id, ok := utils.CurrentUserID(c)
	if !ok {
		utils.RespondWithError(c, http.StatusUnauthorized, "User not found in context")
	}
	return id, ok
}

func invoiceID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid invoice ID")
		return uuid.Nil, false
	}
	return id, true
}

func itemIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid item index")
		return 0, false
	}
	return index, true
}

// CreateInvoice creates a new invoice for the signed-in user
func (ic *InvoiceController) CreateInvoice(c *gin.Context) {
	ownerID, ok := owner(c)
	if !ok {
		return
	}
	in, ok := ic.bindInvoice(c)
	if !ok {
		return
	}

	invoice, err := ic.invoices.Create(c.Request.Context(), ownerID, in)
	if err != nil {
		respondServiceError(c, ic.logger, err)
		return
	}
	c.JSON(http.StatusCreated, invoice)
}

func (q ListInvoicesQuery) toFilter() (services.InvoiceFilter, error) {
	f := services.InvoiceFilter{
		Status:  billing.Status(q.Status),
		Search:  q.Search,
		Overdue: q.Overdue,
		Sort:    q.Sort,
		Limit:   q.Limit,
		Offset:  q.Offset,
	}
	var err error
	if f.From, err = parseOptionalDate(q.From); err != nil {
		return f, err
	}
	if f.To, err = parseOptionalDate(q.To); err != nil {
		return f, err
	}
	return f, nil
}

func (ic *InvoiceController) bindFilter(c *gin.Context) (services.InvoiceFilter, bool) {
	var q ListInvoicesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid query: "+err.Error())
		return services.InvoiceFilter{}, false
	}
	f, err := q.toFilter()
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Dates must use YYYY-MM-DD")
		return services.InvoiceFilter{}, false
	}
	return f, true
}

// GetInvoices lists the user's invoices with filtering and pagination
func (ic *InvoiceController) GetInvoices(c *gin.Context) {
	ownerID, ok := owner(c)
	if !ok {
		return
	}
	filter, ok := ic.bindFilter(c)
	if !ok {
		return
	}

	page, err := ic.invoices.List(c.Request.Context(), ownerID, filter)
	if err != nil {
		respondServiceError(c, ic.logger, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (ic *InvoiceController) GetInvoice(c *gin.Context) {
	ownerID, ok := owner(c)
	if !ok {
		return
	}
	id, ok := invoiceID(c)
	if !ok {
		return
	}

	invoice, err := ic.invoices.Get(c.Request.Context(), ownerID, id)
	if err != nil {
		respondServiceError(c, ic.logger, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

// UpdateInvoice replaces the editable content of an invoice
func (ic *InvoiceController) UpdateInvoice(c *gin.Context) {
	ownerID, ok := owner(c)
	if !ok {
		return
	}
	id, ok := invoiceID(c)
	if !ok {
		return
	}
	in, ok := ic.bindInvoice(c)
	if !ok {
		return
	}

	invoice, err := ic.invoices.Update(c.Request.Context(), ownerID, id, in)
	if err != nil {
		respondServiceError(c, ic.logger, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (ic *InvoiceController) DeleteInvoice(c *gin.Context) {
	ownerID, ok := owner(c)
	if !ok {
		return
	}
	id, ok := invoiceID(c)
	if !ok {
		return
	}

	if err := ic.invoices.Delete(c.Request.Context(), ownerID, id); err != nil {
		respondServiceError(c, ic.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Invoice deleted successfully"})
}

func (ic *InvoiceController) edit(c *gin.Context, edit func(c *gin.Context) (billing.Edit, bool)) {
	ownerID, ok := owner(c)
	if !ok {
		return
	}
	id, ok := invoiceID(c)
	if !ok {
		return
	}
	e, ok := edit(c)
	if !ok {
		return
	}

	invoice, err := ic.invoices.Edit(c.Request.Context(), ownerID, id, e)
	if err != nil {
		respondServiceError(c, ic.logger, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

// AddItem appends a blank line item.
func (ic *InvoiceController) AddItem(c *gin.Context) {
	ic.edit(c, func(*gin.Context) (billing.Edit, bool) {
		return billing.ItemAdd{}, true
	})
}

// UpdateItem sets one field of one line item and recomputes the totals.
func (ic *InvoiceController) UpdateItem(c *gin.Context) {
	ic.edit(c, func(c *gin.Context) (billing.Edit, bool) {
		index, ok := itemIndex(c)
		if !ok {
			return nil, false
		}
		var req ItemEditRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
			return nil, false
		}
		return billing.ItemEdit{Index: index, Field: req.Field, Value: rawValue(req.Value)}, true
	})
}

// rawValue unquotes JSON strings and passes numbers through verbatim, so
// 0.1 arrives as "0.1" rather than a float.
func rawValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if string(raw) == "null" {
		return ""
	}
	return strings.TrimSpace(string(raw))
}

func (ic *InvoiceController) RemoveItem(c *gin.Context) {
	ic.edit(c, func(c *gin.Context) (billing.Edit, bool) {
		index, ok := itemIndex(c)
		if !ok {
			return nil, false
		}
		return billing.ItemRemove{Index: index}, true
	})
}

func (ic *InvoiceController) SendInvoice(c *gin.Context) {
	ownerID, ok := owner(c)
	if !ok {
		return
	}
	id, ok := invoiceID(c)
	if !ok {
		return
	}

	invoice, err := ic.invoices.Send(c.Request.Context(), ownerID, id)
	if err != nil {
		respondServiceError(c, ic.logger, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (ic *InvoiceController) MarkPaid(c *gin.Context) {
	ownerID, ok := owner(c)
	if !ok {
		return
	}
	id, ok := invoiceID(c)
	if !ok {
		return
	}

	invoice, err := ic.invoices.MarkPaid(c.Request.Context(), ownerID, id)
	if err != nil {
		respondServiceError(c, ic.logger, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

// NextNumber previews the next invoice number without reserving it.
func (ic *InvoiceController) NextNumber(c *gin.Context) {
	next, err := ic.invoices.NextNumber(c.Request.Context())
	if err != nil {
		respondServiceError(c, ic.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoiceNumber": next})
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportInvoices downloads the filtered invoices as a spreadsheet.
func (ic *InvoiceController) ExportInvoices(c *gin.Context) {
	ownerID, ok := owner(c)
	if !ok {
		return
	}
	filter, ok := ic.bindFilter(c)
	if !ok {
		return
	}

	invoices, err := ic.invoices.ListAll(c.Request.Context(), ownerID, filter)
	if err != nil {
		respondServiceError(c, ic.logger, err)
		return
	}
	data, err := services.ExportInvoices(invoices)
	if err != nil {
		respondServiceError(c, ic.logger, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+services.ExportFileName(ic.now())+`"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}
