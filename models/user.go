package models

import (
	"time"

	"invoicely-backend/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Email    string    `gorm:"uniqueIndex;not null" json:"email"`
	Password string    `gorm:"not null" json:"-"`

	// HasAccess is granted at signup once the access code matched; revoking it ends every session.
	HasAccess bool `gorm:"default:true" json:"hasAccess"`

	LastLogin *time.Time `json:"lastLogin"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Initialize UUID and hash the password before creating
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	hashed, err := utils.HashPassword(u.Password)
	if err != nil {
		return err
	}
	u.Password = hashed
	return
}

// RevokedToken records a signed-out token until it would have expired anyway.
type RevokedToken struct {
	JTI       string    `gorm:"primary_key;type:varchar(64)"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	CreatedAt time.Time
}

// InvoiceCounter is a named monotonically increasing sequence.
type InvoiceCounter struct {
	Name  string `gorm:"primary_key;type:varchar(32)"`
	Value int64  `gorm:"not null;default:0"`
}
