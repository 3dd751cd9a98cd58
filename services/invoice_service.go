// services/invoice_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"invoicely-backend/billing"
	"invoicely-backend/events"
	"invoicely-backend/models"
	"invoicely-backend/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrInvoiceNotFound = errors.New("invoice not found")

// StatusChangeError is returned when an update asks for a different status.
// Status only moves through Send and MarkPaid.
type StatusChangeError struct {
	From billing.Status
	To   billing.Status
}

func (e *StatusChangeError) Error() string {
	return fmt.Sprintf("status cannot be changed from %s to %s by an update", e.From, e.To)
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// InvoiceInput is everything a user can set on an invoice form.
type InvoiceInput struct {
	InvoiceDate   time.Time
	DueDate       *time.Time
	BillFrom      models.BillFrom
	BillTo        models.BillTo
	Items         []billing.LineItem
	Adjustments   billing.Adjustments
	Notes         string
	PaymentMethod string
	Status        billing.Status
}

// InvoiceFilter narrows List and ListAll.
type InvoiceFilter struct {
	Status  billing.Status
	Search  string
	From    *time.Time
	To      *time.Time
	Overdue bool
	Sort    string
	Limit   int
	Offset  int
}

// InvoicePage is one page of List results.
type InvoicePage struct {
	Items  []models.Invoice `json:"items"`
	Total  int64            `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

var sortColumns = map[string]string{
	"date":    "invoice_date ASC, invoice_number ASC",
	"-date":   "invoice_date DESC, invoice_number DESC",
	"total":   "grand_total ASC",
	"-total":  "grand_total DESC",
	"number":  "invoice_number ASC",
	"-number": "invoice_number DESC",
}

// InvoiceService stores invoices per owner and keeps their totals consistent.
type InvoiceService struct {
	db        *gorm.DB
	sequencer Sequencer
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewInvoiceService(db *gorm.DB, sequencer Sequencer, publisher events.Publisher, logger *zap.Logger) *InvoiceService {
	return &InvoiceService{db: db, sequencer: sequencer, publisher: publisher, logger: logger, now: time.Now}
}

func (s *InvoiceService) publish(ctx context.Context, routingKey string, inv *models.Invoice) {
	event := events.InvoiceEvent{
		Type:          routingKey,
		InvoiceID:     inv.ID,
		OwnerID:       inv.OwnerID,
		InvoiceNumber: inv.InvoiceNumber,
		Status:        string(inv.Status),
		GrandTotal:    inv.Summary.GrandTotal,
		DueAmount:     inv.Summary.DueAmount,
		At:            s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, routingKey, event); err != nil {
		s.logger.Warn("failed to publish invoice event",
			zap.String("routing_key", routingKey),
			zap.String("invoice_id", inv.ID.String()),
			zap.Error(err))
	}
}

// Create computes the totals, allocates the next invoice number and stores the invoice.
func (s *InvoiceService) Create(ctx context.Context, ownerID uuid.UUID, in InvoiceInput) (*models.Invoice, error) {
	status := in.Status
	if status == "" {
		status = billing.StatusDraft
	}
	if status == billing.StatusPaid {
		return nil, &billing.InvalidTransitionError{From: billing.StatusDraft, To: billing.StatusPaid}
	}

	draft, err := billing.NewDraft(billing.StatusDraft, in.Items, in.Adjustments)
	if err != nil {
		return nil, err
	}

	invoice := &models.Invoice{
		ID:            uuid.New(),
		OwnerID:       ownerID,
		InvoiceDate:   in.InvoiceDate,
		DueDate:       in.DueDate,
		BillFrom:      in.BillFrom,
		BillTo:        in.BillTo,
		Notes:         in.Notes,
		PaymentMethod: in.PaymentMethod,
	}
	if invoice.InvoiceDate.IsZero() {
		invoice.InvoiceDate = utils.BeginningOfDay(s.now())
	}
	invoice.ApplyDraft(draft)

	if status == billing.StatusSent {
		sent, err := draft.Send(invoice.SendRequirements())
		if err != nil {
			return nil, err
		}
		invoice.ApplyDraft(sent)
		now := s.now()
		invoice.SentAt = &now
	}

	n, err := s.sequencer.Next(ctx)
	if err != nil {
		return nil, err
	}
	invoice.InvoiceNumber = FormatInvoiceNumber(n)

	if err := s.db.WithContext(ctx).Create(invoice).Error; err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	s.logger.Info("invoice created",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("invoice_number", invoice.InvoiceNumber))
	s.publish(ctx, events.InvoiceCreated, invoice)
	if invoice.Status == billing.StatusSent {
		s.publish(ctx, events.InvoiceSent, invoice)
	}
	return invoice, nil
}

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func (s *InvoiceService) load(tx *gorm.DB, ownerID, id uuid.UUID, lock bool) (*models.Invoice, error) {
	var invoice models.Invoice
	q := tx.Preload("Items", orderedItems).Where("owner_id = ? AND id = ?", ownerID, id)
	if lock && tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := q.First(&invoice).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	return &invoice, nil
}

// Get returns one invoice with its items in order.
func (s *InvoiceService) Get(ctx context.Context, ownerID, id uuid.UUID) (*models.Invoice, error) {
	return s.load(s.db.WithContext(ctx), ownerID, id, false)
}

func (s *InvoiceService) filtered(ctx context.Context, ownerID uuid.UUID, f InvoiceFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&models.Invoice{}).Where("owner_id = ?", ownerID)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(bill_to_client_name) LIKE ? OR LOWER(bill_to_company_name) LIKE ? OR LOWER(invoice_number) LIKE ?",
			like, like, like)
	}
	if f.From != nil {
		q = q.Where("invoice_date >= ?", utils.BeginningOfDay(*f.From))
	}
	if f.To != nil {
		q = q.Where("invoice_date < ?", utils.BeginningOfDay(*f.To).AddDate(0, 0, 1))
	}
	if f.Overdue {
		q = q.Where("status = ? AND due_date IS NOT NULL AND due_date < ?", billing.StatusSent, utils.BeginningOfDay(s.now()))
	}
	return q
}

func sortOrder(sort string) string {
	if order, ok := sortColumns[sort]; ok {
		return order
	}
	return sortColumns["-date"]
}

// List returns one page of the owner's invoices.
func (s *InvoiceService) List(ctx context.Context, ownerID uuid.UUID, f InvoiceFilter) (*InvoicePage, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	var total int64
	if err := s.filtered(ctx, ownerID, f).Count(&total).Error; err != nil {
		return nil, err
	}

	invoices := []models.Invoice{}
	if err := s.filtered(ctx, ownerID, f).
		Preload("Items", orderedItems).
		Order(sortOrder(f.Sort)).
		Limit(f.Limit).
		Offset(f.Offset).
		Find(&invoices).Error; err != nil {
		return nil, err
	}

	return &InvoicePage{Items: invoices, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

// ListAll returns every matching invoice, ignoring pagination.
func (s *InvoiceService) ListAll(ctx context.Context, ownerID uuid.UUID, f InvoiceFilter) ([]models.Invoice, error) {
	invoices := []models.Invoice{}
	err := s.filtered(ctx, ownerID, f).
		Preload("Items", orderedItems).
		Order(sortOrder(f.Sort)).
		Find(&invoices).Error
	return invoices, err
}

// mutate loads the invoice under a row lock, lets fn change it and persists
// the result with its items replaced.
func (s *InvoiceService) mutate(ctx context.Context, ownerID, id uuid.UUID, fn func(inv *models.Invoice) error) (*models.Invoice, error) {
	var invoice *models.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv, err := s.load(tx, ownerID, id, true)
		if err != nil {
			return err
		}
		if err := fn(inv); err != nil {
			return err
		}

		if err := tx.Where("invoice_id = ?", inv.ID).Delete(&models.InvoiceItem{}).Error; err != nil {
			return err
		}
		if len(inv.Items) > 0 {
			for i := range inv.Items {
				inv.Items[i].ID = uuid.Nil
				inv.Items[i].InvoiceID = inv.ID
			}
			if err := tx.Create(&inv.Items).Error; err != nil {
				return err
			}
		}
		if err := tx.Omit(clause.Associations).Save(inv).Error; err != nil {
			return err
		}
		invoice = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// Update replaces the editable content of an invoice. Paid invoices are locked.
func (s *InvoiceService) Update(ctx context.Context, ownerID, id uuid.UUID, in InvoiceInput) (*models.Invoice, error) {
	invoice, err := s.mutate(ctx, ownerID, id, func(inv *models.Invoice) error {
		draft, err := inv.Draft().Apply(billing.Replace{Items: in.Items, Adjustments: in.Adjustments})
		if err != nil {
			return err
		}
		if in.Status != "" && in.Status != inv.Status {
			return &StatusChangeError{From: inv.Status, To: in.Status}
		}
		if !in.InvoiceDate.IsZero() {
			inv.InvoiceDate = in.InvoiceDate
		}
		inv.DueDate = in.DueDate
		inv.BillFrom = in.BillFrom
		inv.BillTo = in.BillTo
		inv.Notes = in.Notes
		inv.PaymentMethod = in.PaymentMethod
		inv.ApplyDraft(draft)

		if inv.Status == billing.StatusSent {
			// A sent invoice must stay sendable.
			return inv.SendRequirements().Validate()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.InvoiceUpdated, invoice)
	return invoice, nil
}

// Edit applies item and adjustment edits in order and persists the result.
func (s *InvoiceService) Edit(ctx context.Context, ownerID, id uuid.UUID, edits ...billing.Edit) (*models.Invoice, error) {
	invoice, err := s.mutate(ctx, ownerID, id, func(inv *models.Invoice) error {
		draft, err := inv.Draft().ApplyAll(edits...)
		if err != nil {
			return err
		}
		inv.ApplyDraft(draft)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.InvoiceUpdated, invoice)
	return invoice, nil
}

// Send marks a draft as sent once the client, items and due date are present.
func (s *InvoiceService) Send(ctx context.Context, ownerID, id uuid.UUID) (*models.Invoice, error) {
	invoice, err := s.mutate(ctx, ownerID, id, func(inv *models.Invoice) error {
		draft, err := inv.Draft().Send(inv.SendRequirements())
		if err != nil {
			return err
		}
		inv.ApplyDraft(draft)
		now := s.now()
		inv.SentAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.InvoiceSent, invoice)
	return invoice, nil
}

// MarkPaid settles the invoice in full and locks it.
func (s *InvoiceService) MarkPaid(ctx context.Context, ownerID, id uuid.UUID) (*models.Invoice, error) {
	invoice, err := s.mutate(ctx, ownerID, id, func(inv *models.Invoice) error {
		draft, err := inv.Draft().MarkPaid()
		if err != nil {
			return err
		}
		inv.ApplyDraft(draft)
		now := s.now()
		inv.PaidAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.InvoicePaid, invoice)
	return invoice, nil
}

// Delete removes an invoice and its items.
func (s *InvoiceService) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	var invoice *models.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv, err := s.load(tx, ownerID, id, true)
		if err != nil {
			return err
		}
		if err := tx.Where("invoice_id = ?", inv.ID).Delete(&models.InvoiceItem{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(inv).Error; err != nil {
			return err
		}
		invoice = inv
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("invoice deleted", zap.String("invoice_id", id.String()))
	s.publish(ctx, events.InvoiceDeleted, invoice)
	return nil
}

// NextNumber previews the number the next created invoice would get. It does
// not consume the sequence, so a concurrent create may take it first.
func (s *InvoiceService) NextNumber(ctx context.Context) (string, error) {
	current, err := s.sequencer.Current(ctx)
	if err != nil {
		return "", err
	}
	return FormatInvoiceNumber(current + 1), nil
}
