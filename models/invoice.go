package models

import (
	"time"

	"invoicely-backend/billing"
	"invoicely-backend/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Payment methods offered on the invoice form.
var PaymentMethods = []string{"bank_transfer", "credit_card", "paypal", "check", "cash"}

type Invoice struct {
	ID      uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	OwnerID uuid.UUID `gorm:"type:uuid;index;not null" json:"ownerId"`

	InvoiceNumber string     `gorm:"uniqueIndex;not null" json:"invoiceNumber"`
	InvoiceDate   time.Time  `gorm:"index;not null" json:"invoiceDate"`
	DueDate       *time.Time `gorm:"index" json:"dueDate"`

	BillFrom BillFrom `gorm:"embedded;embeddedPrefix:bill_from_" json:"billFrom"`
	BillTo   BillTo   `gorm:"embedded;embeddedPrefix:bill_to_" json:"billTo"`

	Items         []InvoiceItem  `gorm:"foreignKey:InvoiceID" json:"items"`
	Summary       InvoiceSummary `gorm:"embedded" json:"summary"`
	Notes         string         `gorm:"type:text" json:"notes"`
	PaymentMethod string         `gorm:"type:varchar(20)" json:"paymentMethod"`
	Status        billing.Status `gorm:"type:varchar(10);index;not null;default:'draft'" json:"status"`

	SentAt    *time.Time `json:"sentAt"`
	PaidAt    *time.Time `json:"paidAt"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

type BillFrom struct {
	CompanyName string `json:"companyName"`
	Address     string `gorm:"type:text" json:"address"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
}

type BillTo struct {
	ClientName  string `gorm:"index" json:"clientName"`
	CompanyName string `json:"companyName"`
	Address     string `gorm:"type:text" json:"address"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
}

// InvoiceSummary is the persisted copy of billing.Summary. DueAmount is derived
// after every load and never stored.
type InvoiceSummary struct {
	Subtotal       decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"subtotal"`
	TaxTotal       decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"taxTotal"`
	Discount       decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"discount"`
	Shipping       decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"shipping"`
	GrandTotal     decimal.Decimal `gorm:"type:decimal(14,2);index;not null;default:0" json:"grandTotal"`
	ReceivedAmount decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"receivedAmount"`
	DueAmount      decimal.Decimal `gorm:"-" json:"dueAmount"`
}

type InvoiceItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key" json:"-"`
	InvoiceID   uuid.UUID       `gorm:"type:uuid;index;not null" json:"-"`
	Position    int             `gorm:"not null" json:"-"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `gorm:"type:numeric;not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric;not null" json:"unitPrice"`
	TaxPercent  decimal.Decimal `gorm:"type:numeric;not null" json:"taxPercent"`
	LineTotal   decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"lineTotal"`
}

func (i *Invoice) BeforeCreate(tx *gorm.DB) (err error) {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return
}

func (i *Invoice) AfterFind(tx *gorm.DB) (err error) {
	i.Summary.DueAmount = billing.Round(i.Summary.GrandTotal.Sub(i.Summary.ReceivedAmount))
	return
}

func (it *InvoiceItem) BeforeCreate(tx *gorm.DB) (err error) {
	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	return
}

// Draft returns the billing state of the invoice.
func (i *Invoice) Draft() billing.Draft {
	items := make([]billing.LineItem, len(i.Items))
	for idx, it := range i.Items {
		items[idx] = billing.LineItem{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TaxPercent:  it.TaxPercent,
			LineTotal:   it.LineTotal,
		}
	}
	return billing.Draft{
		Status: i.Status,
		Items:  items,
		Summary: billing.Summary{
			Subtotal:       i.Summary.Subtotal,
			TaxTotal:       i.Summary.TaxTotal,
			Discount:       i.Summary.Discount,
			Shipping:       i.Summary.Shipping,
			GrandTotal:     i.Summary.GrandTotal,
			ReceivedAmount: i.Summary.ReceivedAmount,
			DueAmount:      i.Summary.DueAmount,
		},
	}
}

// ApplyDraft copies a computed billing state onto the invoice, replacing its items.
func (i *Invoice) ApplyDraft(d billing.Draft) {
	items := make([]InvoiceItem, len(d.Items))
	for idx, it := range d.Items {
		items[idx] = InvoiceItem{
			InvoiceID:   i.ID,
			Position:    idx,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TaxPercent:  it.TaxPercent,
			LineTotal:   it.LineTotal,
		}
	}
	i.Items = items
	i.Status = d.Status
	i.Summary = InvoiceSummary{
		Subtotal:       d.Summary.Subtotal,
		TaxTotal:       d.Summary.TaxTotal,
		Discount:       d.Summary.Discount,
		Shipping:       d.Summary.Shipping,
		GrandTotal:     d.Summary.GrandTotal,
		ReceivedAmount: d.Summary.ReceivedAmount,
		DueAmount:      d.Summary.DueAmount,
	}
}

// SendRequirements reports what the invoice has for the send check.
func (i *Invoice) SendRequirements() billing.SendRequirements {
	return billing.SendRequirements{
		ItemCount:  len(i.Items),
		ClientName: i.BillTo.ClientName,
		HasDueDate: i.DueDate != nil && !i.DueDate.IsZero(),
	}
}

// IsOverdue reports whether a sent invoice was due before today.
func (i *Invoice) IsOverdue(now time.Time) bool {
	return i.Status == billing.StatusSent && i.DueDate != nil && i.DueDate.Before(utils.BeginningOfDay(now))
}
