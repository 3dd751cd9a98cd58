package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"invoicely-backend/billing"
	"invoicely-backend/config"
	"invoicely-backend/events"
	"invoicely-backend/models"
	"invoicely-backend/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	utils.BcryptCost = 4
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, config.Migrate(db))
	return db
}

type recordedEvent struct {
	key  string
	body interface{}
}

type recordingPublisher struct {
	events []recordedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, body interface{}) error {
	p.events = append(p.events, recordedEvent{key: routingKey, body: body})
	return nil
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) keys() []string {
	keys := make([]string, len(p.events))
	for i, e := range p.events {
		keys[i] = e.key
	}
	return keys
}

var _ events.Publisher = (*recordingPublisher)(nil)

// fixedNow is a Monday in mid October.
var fixedNow = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

func newInvoiceService(t *testing.T) (*InvoiceService, *recordingPublisher) {
	t.Helper()
	db := setupTestDB(t)
	pub := &recordingPublisher{}
	svc := NewInvoiceService(db, NewDBSequencer(db, InvoiceCounterName), pub, zap.NewNop())
	svc.now = func() time.Time { return fixedNow }
	return svc, pub
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func lineItem(desc, qty, price, tax string) billing.LineItem {
	return billing.LineItem{Description: desc, Quantity: d(qty), UnitPrice: d(price), TaxPercent: d(tax)}
}

func dayPtr(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &t
}

func sendableInput() InvoiceInput {
	return InvoiceInput{
		InvoiceDate: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		DueDate:     dayPtr(2026, 10, 31),
		BillTo:      models.BillTo{ClientName: "Acme Ltd", CompanyName: "Acme", Phone: "+15551234567"},
		Items: []billing.LineItem{
			lineItem("Design", "2", "50", "10"),
		},
		Adjustments: billing.Adjustments{Shipping: d("5")},
	}
}

var ownerA = uuid.MustParse("11111111-1111-1111-1111-111111111111")
var ownerB = uuid.MustParse("22222222-2222-2222-2222-222222222222")
