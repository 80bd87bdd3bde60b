package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Event is one delivered provider webhook. The primary key is the provider's
// event id, which is what makes redelivery detection a plain insert.
type Event struct {
	ID         string         `gorm:"primaryKey;type:text" json:"id"`
	EventType  string         `gorm:"type:text;not null" json:"event_type"`
	Payload    datatypes.JSON `gorm:"type:jsonb" json:"payload"`
	ReceivedAt time.Time      `gorm:"not null" json:"received_at"`
}

func (Event) TableName() string { return "billing_events" }
