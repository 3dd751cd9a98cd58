// services/reminder_service.go
package services

import (
	"context"
	"fmt"
	"time"

	"invoicely-backend/billing"
	"invoicely-backend/models"
	"invoicely-backend/utils"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SMSSender delivers a text message and returns the provider's message id.
type SMSSender interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// TwilioSender sends SMS through the Twilio REST API.
type TwilioSender struct {
	client *twilio.RestClient
	from   string
}

func NewTwilioSender(accountSid, authToken, from string) *TwilioSender {
	return &TwilioSender{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSid,
			Password: authToken,
		}),
		from: from,
	}
}

func (t *TwilioSender) Send(_ context.Context, to, body string) (string, error) {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(t.from)
	params.SetBody(body)

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		return "", err
	}
	if resp.Sid == nil {
		return "", nil
	}
	return *resp.Sid, nil
}

// ReminderService texts clients whose sent invoices are past due.
type ReminderService struct {
	db     *gorm.DB
	sender SMSSender
	logger *zap.Logger
	now    func() time.Time
	cron   *cron.Cron
}

func NewReminderService(db *gorm.DB, sender SMSSender, logger *zap.Logger) *ReminderService {
	return &ReminderService{db: db, sender: sender, logger: logger, now: time.Now}
}

// Start runs SendOverdueReminders on the given cron schedule.
func (s *ReminderService) Start(schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if _, err := s.SendOverdueReminders(context.Background()); err != nil {
			s.logger.Error("overdue reminder run failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("invalid reminder schedule %q: %w", schedule, err)
	}
	c.Start()
	s.cron = c
	s.logger.Info("reminder scheduler started", zap.String("schedule", schedule))
	return nil
}

// Stop waits for a running job to finish.
func (s *ReminderService) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

func reminderMessage(inv models.Invoice) string {
	name := inv.BillTo.ClientName
	from := inv.BillFrom.CompanyName
	if from == "" {
		from = "us"
	}
	return fmt.Sprintf("Hi %s, invoice %s for %s was due on %s. Please arrange payment with %s.",
		name, inv.InvoiceNumber, inv.Summary.DueAmount.StringFixed(billing.Places),
		inv.DueDate.Format(utils.DateLayout), from)
}

// SendOverdueReminders texts every overdue invoice's client at most once a day
// and returns how many messages were sent.
func (s *ReminderService) SendOverdueReminders(ctx context.Context) (int, error) {
	now := s.now()
	today := utils.BeginningOfDay(now)

	var invoices []models.Invoice
	if err := s.db.WithContext(ctx).
		Where("status = ? AND due_date IS NOT NULL AND due_date < ?", billing.StatusSent, today).
		Find(&invoices).Error; err != nil {
		return 0, err
	}

	sent := 0
	for _, inv := range invoices {
		if !inv.IsOverdue(now) {
			continue
		}
		phone := utils.NormalizePhone(inv.BillTo.Phone)
		if phone == "" || !utils.ValidatePhone(phone) {
			s.logger.Debug("skipping reminder, no valid phone",
				zap.String("invoice_number", inv.InvoiceNumber))
			continue
		}

		var already int64
		if err := s.db.WithContext(ctx).Model(&models.ReminderLog{}).
			Where("invoice_id = ? AND status = ? AND sent_at >= ?", inv.ID, "sent", today).
			Count(&already).Error; err != nil {
			return sent, err
		}
		if already > 0 {
			continue
		}

		message := reminderMessage(inv)
		status := "sent"
		errorMsg := ""
		sid, err := s.sender.Send(ctx, phone, message)
		if err != nil {
			s.logger.Warn("failed to send reminder",
				zap.String("invoice_number", inv.InvoiceNumber), zap.Error(err))
			status = "failed"
			errorMsg = err.Error()
		} else {
			sent++
			s.logger.Info("reminder sent",
				zap.String("invoice_number", inv.InvoiceNumber), zap.String("sid", sid))
		}

		reminderLog := models.ReminderLog{
			OwnerID:      inv.OwnerID,
			InvoiceID:    inv.ID,
			Recipient:    phone,
			Message:      message,
			Status:       status,
			ErrorMessage: errorMsg,
			Channel:      "sms",
			SentAt:       now,
		}
		if err := s.db.WithContext(ctx).Create(&reminderLog).Error; err != nil {
			s.logger.Error("failed to log reminder",
				zap.String("invoice_id", inv.ID.String()), zap.Error(err))
		}
	}
	return sent, nil
}

// ListReminders returns the owner's reminder history, newest first.
func (s *ReminderService) ListReminders(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.ReminderLog, error) {
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	logs := []models.ReminderLog{}
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("sent_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
