package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base is the base model for all entities.
// ID is a UUID string so records move between the SQL and document backends unchanged.
type Base struct {
	ID        string    `json:"id"        bson:"_id"       gorm:"type:char(36);primaryKey"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

func (b *Base) BeforeCreate(tx *gorm.DB) error {
	b.EnsureID()
	return nil
}

// EnsureID assigns a fresh UUID when the record has none yet.
func (b *Base) EnsureID() {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
}
