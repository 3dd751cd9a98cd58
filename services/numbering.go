// services/numbering.go
package services

import (
	"context"
	"errors"
	"fmt"

	"invoicely-backend/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InvoiceCounterName is the sequence invoice numbers are drawn from.
const InvoiceCounterName = "invoice"

// FormatInvoiceNumber renders a sequence value as INV-0001.
func FormatInvoiceNumber(n int64) string {
	return fmt.Sprintf("INV-%04d", n)
}

// Sequencer hands out strictly increasing numbers. Next must be an atomic
// increment-and-read so concurrent creates never share a number.
type Sequencer interface {
	Next(ctx context.Context) (int64, error)
	// Current returns the last value handed out, or 0.
	Current(ctx context.Context) (int64, error)
}

// DBSequencer keeps the counter in the invoice_counters table.
type DBSequencer struct {
	db   *gorm.DB
	name string
}

func NewDBSequencer(db *gorm.DB, name string) *DBSequencer {
	return &DBSequencer{db: db, name: name}
}

func (s *DBSequencer) Next(ctx context.Context) (int64, error) {
	var value int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.InvoiceCounter{Name: s.name}).Error; err != nil {
			return err
		}
		return tx.Raw("UPDATE invoice_counters SET value = value + 1 WHERE name = ? RETURNING value", s.name).
			Scan(&value).Error
	})
	if err != nil {
		return 0, fmt.Errorf("allocate %s number: %w", s.name, err)
	}
	return value, nil
}

// Advance raises the counter to at least value. It never lowers it.
func (s *DBSequencer) Advance(ctx context.Context, value int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.InvoiceCounter{Name: s.name}).Error; err != nil {
			return err
		}
		return tx.Model(&models.InvoiceCounter{}).
			Where("name = ? AND value < ?", s.name, value).
			Update("value", value).Error
	})
}

func (s *DBSequencer) Current(ctx context.Context) (int64, error) {
	var counter models.InvoiceCounter
	err := s.db.WithContext(ctx).Where("name = ?", s.name).First(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return counter.Value, nil
}

// RedisSequencer keeps the counter under a Redis key and relies on INCR.
// With a mirror set, every allocated value is also written to the table so
// the service can fall back to DBSequencer without reissuing numbers.
type RedisSequencer struct {
	client redis.UniversalClient
	key    string
	mirror *DBSequencer
}

func NewRedisSequencer(client redis.UniversalClient, name string) *RedisSequencer {
	return &RedisSequencer{client: client, key: "invoicely:counter:" + name}
}

// MirrorTo makes Next advance the table-backed counter as well.
func (s *RedisSequencer) MirrorTo(db *DBSequencer) *RedisSequencer {
	s.mirror = db
	return s
}

func (s *RedisSequencer) Next(ctx context.Context) (int64, error) {
	value, err := s.client.Incr(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("allocate number from redis: %w", err)
	}
	if s.mirror != nil {
		if err := s.mirror.Advance(ctx, value); err != nil {
			return 0, fmt.Errorf("mirror number %d: %w", value, err)
		}
	}
	return value, nil
}

func (s *RedisSequencer) Current(ctx context.Context) (int64, error) {
	value, err := s.client.Get(ctx, s.key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return value, err
}

var seedScript = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
local floor = tonumber(ARGV[1])
if current < floor then
  redis.call("SET", KEYS[1], ARGV[1])
  return floor
end
return current
`)

// Seed raises the counter to at least floor, for switching over from the table-backed sequence.
func (s *RedisSequencer) Seed(ctx context.Context, floor int64) error {
	return seedScript.Run(ctx, s.client, []string{s.key}, floor).Err()
}
